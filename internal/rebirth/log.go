package rebirth

type ActionKind string

const (
	ActionMove      ActionKind = "move"
	ActionCapture   ActionKind = "capture"
	ActionResurrect ActionKind = "resurrect"
)

// LogEntry is one committed action. For a resurrection From is NoSquare,
// Piece is the newborn and Consumed names the pool entry it used up.
type LogEntry struct {
	Ply      int            `json:"ply"`
	Color    Color          `json:"color"`
	Kind     ActionKind     `json:"kind"`
	From     Square         `json:"from"`
	To       Square         `json:"to"`
	Piece    Piece          `json:"piece"`
	Captured *CapturedPiece `json:"captured,omitempty"`
	Consumed uint64         `json:"consumed,omitempty"`
}

// Counts tallies how many of each action a color has committed.
func Counts(log []LogEntry, c Color) (moves, captures, resurrections int) {
	for _, e := range log {
		if e.Color != c {
			continue
		}
		switch e.Kind {
		case ActionMove:
			moves++
		case ActionCapture:
			captures++
		case ActionResurrect:
			resurrections++
		}
	}
	return moves, captures, resurrections
}
