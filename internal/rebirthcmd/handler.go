package rebirthcmd

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/park285/rebirth-chess-bot/internal/adapter/rebirthpresenter"
	"github.com/park285/rebirth-chess-bot/internal/domain"
	"github.com/park285/rebirth-chess-bot/internal/rebirth"
	svc "github.com/park285/rebirth-chess-bot/internal/service/rebirth"
)

// Backend is the subset of *svc.Service the chat commands drive.
type Backend interface {
	Start(ctx context.Context, meta svc.SessionMeta, color rebirth.Color, force bool) (*svc.SessionState, error)
	Reset(ctx context.Context, meta svc.SessionMeta) (int64, error)
	Status(ctx context.Context, meta svc.SessionMeta) (*svc.SessionState, error)
	Select(ctx context.Context, meta svc.SessionMeta, sq rebirth.Square) (*svc.SessionState, error)
	Move(ctx context.Context, meta svc.SessionMeta, from, to rebirth.Square) (*svc.SessionState, error)
	EnterResurrection(ctx context.Context, meta svc.SessionMeta) (*svc.SessionState, error)
	CancelResurrection(ctx context.Context, meta svc.SessionMeta) (*svc.SessionState, error)
	PickCaptured(ctx context.Context, meta svc.SessionMeta, id uint64) (*svc.SessionState, error)
	Place(ctx context.Context, meta svc.SessionMeta, sq rebirth.Square) (*svc.SessionState, error)
	History(ctx context.Context, meta svc.SessionMeta, limit int) ([]*domain.GameRecord, error)
	Game(ctx context.Context, meta svc.SessionMeta, id int64) (*domain.GameRecord, error)
}

var _ Backend = (*svc.Service)(nil)

// Handler turns parsed commands into service calls and room replies.
type Handler struct {
	backend   Backend
	formatter *rebirthpresenter.Formatter
	presenter *rebirthpresenter.Presenter
	logger    *zap.Logger
}

func NewHandler(backend Backend, formatter *rebirthpresenter.Formatter, presenter *rebirthpresenter.Presenter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{backend: backend, formatter: formatter, presenter: presenter, logger: logger}
}

// Handle runs one command. The returned error is a delivery failure; command
// failures are answered in the room.
func (h *Handler) Handle(ctx context.Context, meta svc.SessionMeta, args []string) error {
	room := meta.Room
	cmd, err := Parse(args)
	if err != nil {
		return h.fail(room, err)
	}

	switch cmd.Kind {
	case KindHelp:
		return h.presenter.Text(room, h.formatter.Help())
	case KindUnknown:
		return h.presenter.Text(room, h.formatter.UnknownCommand())
	case KindStart:
		state, err := h.backend.Start(ctx, meta, cmd.Color, cmd.Force)
		resumed := false
		if errors.Is(err, svc.ErrSessionInProgress) && state != nil {
			resumed, err = true, nil
		}
		if err != nil {
			return h.fail(room, err)
		}
		dto := rebirthpresenter.ToDTOState(state)
		return h.presenter.Board(room, h.formatter.Start(dto, resumed), dto)
	case KindReset:
		id, err := h.backend.Reset(ctx, meta)
		if errors.Is(err, svc.ErrSessionNotFound) {
			return h.presenter.Text(room, h.formatter.NoSession())
		}
		if err != nil {
			return h.fail(room, err)
		}
		return h.presenter.Text(room, h.formatter.Reset(id))
	case KindStatus:
		state, err := h.backend.Status(ctx, meta)
		if err != nil {
			return h.fail(room, err)
		}
		dto := rebirthpresenter.ToDTOState(state)
		return h.presenter.Board(room, h.formatter.Status(dto), dto)
	case KindHistory:
		games, err := h.backend.History(ctx, meta, cmd.Limit)
		if err != nil {
			return h.fail(room, err)
		}
		return h.presenter.Text(room, h.formatter.History(rebirthpresenter.ToDTOGames(games)))
	case KindGame:
		game, err := h.backend.Game(ctx, meta, cmd.GameID)
		if err != nil {
			return h.fail(room, err)
		}
		return h.presenter.Text(room, h.formatter.Game(rebirthpresenter.ToDTOGame(game)))
	}

	var state *svc.SessionState
	switch cmd.Kind {
	case KindSelect:
		state, err = h.backend.Select(ctx, meta, cmd.To)
	case KindMove:
		state, err = h.backend.Move(ctx, meta, cmd.From, cmd.To)
	case KindEnter:
		state, err = h.backend.EnterResurrection(ctx, meta)
	case KindCancel:
		state, err = h.backend.CancelResurrection(ctx, meta)
	case KindPick:
		state, err = h.backend.PickCaptured(ctx, meta, cmd.CaptureID)
	case KindPlace:
		state, err = h.backend.Place(ctx, meta, cmd.To)
	}
	if err != nil {
		return h.fail(room, err)
	}
	dto := rebirthpresenter.ToDTOState(state)
	if dto == nil {
		return h.presenter.Text(room, h.formatter.UnknownCommand())
	}
	if dto.Rejected {
		return h.presenter.Text(room, h.formatter.Command(dto))
	}
	return h.presenter.Board(room, h.formatter.Command(dto), dto)
}

// OpponentActed pushes the opponent's move to the room the game was started in.
func (h *Handler) OpponentActed(_ context.Context, meta svc.SessionMeta, state *svc.SessionState) {
	dto := rebirthpresenter.ToDTOState(state)
	if dto == nil {
		return
	}
	if err := h.presenter.Board(meta.Room, h.formatter.Opponent(dto), dto); err != nil {
		h.logger.Warn("rebirth_notify_failed", zap.String("session_uuid", dto.SessionUUID), zap.Error(err))
	}
}

func (h *Handler) fail(room string, err error) error {
	if de := rebirthpresenter.ToDomainError(err); de != nil && de.Retryable {
		h.logger.Error("rebirth_command_failed", zap.Error(err))
	}
	return h.presenter.Text(room, h.formatter.Error(err))
}
