package rebirthdto

import "time"

// CapturedPiece is one numbered entry of a captured tray.
type CapturedPiece struct {
	ID    uint64
	Type  string
	Color string
}

// Move is a committed action. From is empty for a resurrection.
type Move struct {
	From     string
	To       string
	Piece    string
	Color    string
	Captured *CapturedPiece
	Consumed *CapturedPiece
}

type SessionState struct {
	SessionUUID string
	PlayerName  string
	PlayerColor string
	ActiveColor string
	PlayerTurn  bool
	Weighting   string
	Ply         int
	FEN         string
	BoardImage  []byte

	WhitePool      []CapturedPiece
	BlackPool      []CapturedPiece
	CanResurrect   bool
	InResurrection bool
	PendingCapture *CapturedPiece

	Selected     string
	SelectedType string
	MoveHints    []string
	CaptureHints []string
	LastMove     *Move

	// Outcome and Action describe the accepted command.
	Outcome string
	Action  *Move

	// EventKind and OpponentMove describe an opponent notification.
	EventKind    string
	OpponentMove *Move

	Advisory         string
	Rejected         bool
	AttemptFrom      string
	AttemptTo        string
	AttemptCaptureID uint64

	StartedAt time.Time
}
