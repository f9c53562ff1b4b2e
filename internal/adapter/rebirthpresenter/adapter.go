package rebirthpresenter

import (
	"errors"

	"github.com/park285/rebirth-chess-bot/internal/domain"
	"github.com/park285/rebirth-chess-bot/internal/notation"
	"github.com/park285/rebirth-chess-bot/internal/rebirth"
	svc "github.com/park285/rebirth-chess-bot/internal/service/rebirth"
	"github.com/park285/rebirth-chess-bot/pkg/rebirthdto"
)

func ToDTOState(s *svc.SessionState) *rebirthdto.SessionState {
	if s == nil {
		return nil
	}
	out := &rebirthdto.SessionState{
		SessionUUID:    s.SessionUUID,
		PlayerName:     s.PlayerName,
		PlayerColor:    s.PlayerColor.String(),
		ActiveColor:    s.ActiveColor.String(),
		PlayerTurn:     s.PlayerTurn(),
		Weighting:      string(s.Weighting),
		Ply:            s.Ply,
		FEN:            s.FEN,
		BoardImage:     append([]byte(nil), s.BoardImage...),
		WhitePool:      toDTOPool(s.WhitePool),
		BlackPool:      toDTOPool(s.BlackPool),
		CanResurrect:   s.CanResurrect,
		InResurrection: s.InResurrection,
		PendingCapture: toDTOCaptured(s.PendingCapture),
		Advisory:       s.Advisory,
		Rejected:       s.Rejected,
		StartedAt:      s.StartedAt,
	}
	if s.Selection.Selected {
		out.Selected = notation.SquareName(s.Selection.Square)
		out.MoveHints = squareNames(s.Selection.Hints.Moves)
		out.CaptureHints = squareNames(s.Selection.Hints.Captures)
	}
	if s.LastMove != nil {
		out.LastMove = &rebirthdto.Move{From: squareName(s.LastMove.From), To: squareName(s.LastMove.To)}
	}
	if r := s.Result; r != nil {
		out.Outcome = string(r.Outcome)
		out.Action = toDTOResult(*r)
		if r.Outcome == rebirth.OutcomeSelected && r.Piece != nil {
			out.SelectedType = r.Piece.Type.String()
		}
	}
	if e := s.Event; e != nil {
		out.EventKind = string(e.Kind)
		if e.Move != nil {
			out.OpponentMove = &rebirthdto.Move{
				From:     squareName(e.Move.From),
				To:       squareName(e.Move.To),
				Captured: toDTOCaptured(e.Captured),
			}
			if e.Piece != nil {
				out.OpponentMove.Piece, out.OpponentMove.Color = e.Piece.Type.String(), e.Piece.Color.String()
			}
		}
	}
	if a := s.Attempt; a != nil {
		out.AttemptFrom = squareName(a.From)
		out.AttemptTo = squareName(a.To)
		out.AttemptCaptureID = a.CaptureID
	}
	return out
}

func toDTOResult(r rebirth.Result) *rebirthdto.Move {
	switch r.Outcome {
	case rebirth.OutcomeMoved:
		m := &rebirthdto.Move{From: squareName(r.From), To: squareName(r.To), Captured: toDTOCaptured(r.Captured)}
		if r.Piece != nil {
			m.Piece, m.Color = r.Piece.Type.String(), r.Piece.Color.String()
		}
		return m
	case rebirth.OutcomeResurrected:
		m := &rebirthdto.Move{To: squareName(r.To), Consumed: toDTOCaptured(r.Captured)}
		if r.Piece != nil {
			m.Piece, m.Color = r.Piece.Type.String(), r.Piece.Color.String()
		}
		return m
	case rebirth.OutcomePicked:
		return &rebirthdto.Move{Consumed: toDTOCaptured(r.Captured)}
	}
	return nil
}

func toDTOPool(pool []rebirth.CapturedPiece) []rebirthdto.CapturedPiece {
	out := make([]rebirthdto.CapturedPiece, 0, len(pool))
	for _, e := range pool {
		out = append(out, rebirthdto.CapturedPiece{ID: e.ID, Type: e.Piece.Type.String(), Color: e.Piece.Color.String()})
	}
	return out
}

func toDTOCaptured(c *rebirth.CapturedPiece) *rebirthdto.CapturedPiece {
	if c == nil {
		return nil
	}
	return &rebirthdto.CapturedPiece{ID: c.ID, Type: c.Piece.Type.String(), Color: c.Piece.Color.String()}
}

func squareName(sq rebirth.Square) string {
	if !sq.Valid() {
		return ""
	}
	return notation.SquareName(sq)
}

func squareNames(set rebirth.SquareSet) []string {
	squares := set.Squares()
	out := make([]string, 0, len(squares))
	for _, sq := range squares {
		out = append(out, notation.SquareName(sq))
	}
	return out
}

func ToDTOGames(list []*domain.GameRecord) []*rebirthdto.GameRecord {
	out := make([]*rebirthdto.GameRecord, 0, len(list))
	for _, g := range list {
		if g == nil {
			continue
		}
		out = append(out, ToDTOGame(g))
	}
	return out
}

func ToDTOGame(g *domain.GameRecord) *rebirthdto.GameRecord {
	if g == nil {
		return nil
	}
	moves := make([]string, 0, len(g.Log))
	for _, e := range g.Log {
		moves = append(moves, notation.Describe(e))
	}
	return &rebirthdto.GameRecord{
		ID:            g.ID,
		SessionUUID:   g.SessionUUID,
		PlayerColor:   g.PlayerColor.String(),
		Weighting:     string(g.Weighting),
		Plies:         g.Plies,
		WhiteCaptures: g.WhiteCaptures,
		BlackCaptures: g.BlackCaptures,
		Resurrections: g.Resurrections,
		Moves:         moves,
		StartedAt:     g.StartedAt,
		EndedAt:       g.EndedAt,
		Duration:      g.Duration(),
		EndReason:     g.EndReason,
	}
}

// ToDomainError maps service errors onto message catalog keys.
func ToDomainError(err error) *rebirthdto.DomainError {
	if err == nil {
		return nil
	}
	var de *rebirthdto.DomainError
	if errors.As(err, &de) {
		return de
	}
	code := "error.generic"
	retryable := true
	switch {
	case errors.Is(err, svc.ErrSessionNotFound):
		code, retryable = rebirth.ReasonNoGame, false
	case errors.Is(err, svc.ErrRoomNotAllowed):
		code, retryable = "error.room_not_allowed", false
	case errors.Is(err, svc.ErrInvalidSquare), errors.Is(err, notation.ErrBadSquare):
		code, retryable = "error.invalid_square", false
	case errors.Is(err, svc.ErrInvalidColor):
		code, retryable = "error.invalid_color", false
	case errors.Is(err, svc.ErrGameNotFound):
		code, retryable = "error.game_not_found", false
	}
	return &rebirthdto.DomainError{Code: code, Retryable: retryable, Cause: err}
}
