package rebirthdto

import "time"

type GameRecord struct {
	ID            int64
	SessionUUID   string
	PlayerColor   string
	Weighting     string
	Plies         int
	WhiteCaptures int
	BlackCaptures int
	Resurrections int
	Moves         []string
	StartedAt     time.Time
	EndedAt       time.Time
	Duration      time.Duration
	EndReason     string
}
