package rebirth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/park285/rebirth-chess-bot/internal/notation"
	corerebirth "github.com/park285/rebirth-chess-bot/internal/rebirth"
	"github.com/park285/rebirth-chess-bot/internal/render"
)

// Attempt echoes the squares and capture id a command named, for messages.
type Attempt struct {
	From      corerebirth.Square
	To        corerebirth.Square
	CaptureID uint64
}

var noAttempt = Attempt{From: corerebirth.NoSquare, To: corerebirth.NoSquare}

// SessionState is what every command hands back to the presentation layer.
type SessionState struct {
	SessionUUID string
	PlayerHash  string
	RoomHash    string
	PlayerName  string

	PlayerColor corerebirth.Color
	ActiveColor corerebirth.Color
	Weighting   corerebirth.Weighting
	Ply         int
	FEN         string
	BoardImage  []byte

	WhitePool      []corerebirth.CapturedPiece
	BlackPool      []corerebirth.CapturedPiece
	Selection      corerebirth.Selection
	CanResurrect   bool
	InResurrection bool
	PendingCapture *corerebirth.CapturedPiece
	LastMove       *render.LastMove

	// Result is set for an accepted command, Event for an opponent notification.
	Result *corerebirth.Result
	Event  *corerebirth.Event

	// Advisory is a message catalog key; Rejected marks it as a refusal.
	Advisory string
	Rejected bool
	Attempt  *Attempt

	StartedAt time.Time
}

// PlayerTurn reports whether the human is to move.
func (st *SessionState) PlayerTurn() bool {
	return st != nil && st.PlayerColor != corerebirth.NoColor && st.ActiveColor == st.PlayerColor
}

func (st *SessionState) Pool(c corerebirth.Color) []corerebirth.CapturedPiece {
	if c == corerebirth.White {
		return st.WhitePool
	}
	return st.BlackPool
}

func (s *Service) stateOf(ctx context.Context, ls *liveSession) *SessionState {
	v := ls.game.View()
	state := &SessionState{
		SessionUUID:    ls.sessionUUID,
		PlayerHash:     ls.identity.PlayerHash,
		RoomHash:       ls.identity.RoomHash,
		PlayerName:     ls.playerName,
		PlayerColor:    v.PlayerColor,
		ActiveColor:    v.ActiveColor,
		Weighting:      v.Weighting,
		Ply:            v.Ply,
		WhitePool:      v.White,
		BlackPool:      v.Black,
		Selection:      v.Selection,
		CanResurrect:   v.CanResurrect,
		InResurrection: v.InResurrection,
		PendingCapture: v.PendingCapture,
		LastMove:       ls.getLastMove(),
		StartedAt:      ls.startedAt,
	}
	state.FEN = notation.FEN(v.Board, state.ActiveColor, state.Ply)
	s.attachBoardImage(ctx, state, v.Board)
	return state
}

func (s *Service) attachBoardImage(ctx context.Context, state *SessionState, board *corerebirth.Board) {
	if state == nil || board == nil || s.renderer == nil {
		return
	}
	opts := render.RenderOptions{
		Flip:      state.PlayerColor == corerebirth.Black,
		Hints:     state.Selection.Hints,
		LastMove:  state.LastMove,
		WhitePool: state.WhitePool,
		BlackPool: state.BlackPool,
		HUDHeader: hudHeader(state),
		HUDTurn:   hudTurn(state),
	}
	if state.Selection.Selected {
		sq := state.Selection.Square
		opts.Selected = &sq
	}
	if state.PendingCapture != nil {
		opts.PendingCapture = state.PendingCapture.ID
	}
	data, err := s.renderer.RenderPNG(ctx, board, opts)
	if err != nil {
		s.logger.Warn("failed to render rebirth board image", zap.Error(err))
		return
	}
	state.BoardImage = data
}

// The HUD font only covers ASCII, so these lines stay in English.
func hudHeader(state *SessionState) string {
	return fmt.Sprintf("Rebirth Chess - you play %s", state.PlayerColor)
}

func hudTurn(state *SessionState) string {
	move := state.Ply/2 + 1
	switch {
	case state.InResurrection:
		return fmt.Sprintf("Move %d - resurrecting", move)
	case state.PlayerTurn():
		return fmt.Sprintf("Move %d - %s to move (you)", move, state.ActiveColor)
	default:
		return fmt.Sprintf("Move %d - %s to move", move, state.ActiveColor)
	}
}
