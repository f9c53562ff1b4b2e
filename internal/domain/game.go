package domain

import (
	"time"

	"github.com/park285/rebirth-chess-bot/internal/rebirth"
)

// End reasons stored with a finished game.
const (
	EndReasonReset    = "reset"
	EndReasonReplaced = "replaced"
	EndReasonExpired  = "expired"
)

// GameRecord is one finished rebirth game as kept in the history table.
type GameRecord struct {
	ID            int64
	SessionUUID   string
	PlayerHash    string
	RoomHash      string
	PlayerColor   rebirth.Color
	Weighting     rebirth.Weighting
	Plies         int
	WhiteCaptures int
	BlackCaptures int
	Resurrections int
	Log           []rebirth.LogEntry
	StartedAt     time.Time
	EndedAt       time.Time
	EndReason     string
}

func (g *GameRecord) Duration() time.Duration {
	if g == nil || g.EndedAt.Before(g.StartedAt) {
		return 0
	}
	return g.EndedAt.Sub(g.StartedAt)
}

// Captures returns how many captures the given side made.
func (g *GameRecord) Captures(c rebirth.Color) int {
	switch c {
	case rebirth.White:
		return g.WhiteCaptures
	case rebirth.Black:
		return g.BlackCaptures
	}
	return 0
}
