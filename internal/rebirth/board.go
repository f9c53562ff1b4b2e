package rebirth

import (
	"fmt"
	"math/bits"
	"strings"
)

// Color identifies a side.
type Color uint8

const (
	NoColor Color = iota
	White
	Black
)

func (c Color) Opposite() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "none"
	}
}

// ParseColor accepts white|w|black|b in any case.
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	default:
		return NoColor, false
	}
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Color) UnmarshalText(b []byte) error {
	if string(b) == "none" {
		*c = NoColor
		return nil
	}
	v, ok := ParseColor(string(b))
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidColor, b)
	}
	*c = v
	return nil
}

type PieceType uint8

const (
	King PieceType = iota + 1
	Queen
	Rook
	Bishop
	Knight
	Pawn
)

func (t PieceType) String() string {
	switch t {
	case King:
		return "king"
	case Queen:
		return "queen"
	case Rook:
		return "rook"
	case Bishop:
		return "bishop"
	case Knight:
		return "knight"
	case Pawn:
		return "pawn"
	default:
		return fmt.Sprintf("piece(%d)", uint8(t))
	}
}

// Letter returns the upper-case algebraic letter of the type.
func (t PieceType) Letter() string {
	switch t {
	case King:
		return "K"
	case Queen:
		return "Q"
	case Rook:
		return "R"
	case Bishop:
		return "B"
	case Knight:
		return "N"
	case Pawn:
		return "P"
	default:
		return "?"
	}
}

// ParsePieceType is the inverse of PieceType.String.
func ParsePieceType(s string) (PieceType, bool) {
	for t := King; t <= Pawn; t++ {
		if strings.EqualFold(strings.TrimSpace(s), t.String()) {
			return t, true
		}
	}
	return 0, false
}

func (t PieceType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *PieceType) UnmarshalText(b []byte) error {
	v, ok := ParsePieceType(string(b))
	if !ok {
		return fmt.Errorf("unknown piece type %q", b)
	}
	*t = v
	return nil
}

// Piece is a value; two pieces with equal type and color are interchangeable on the board.
type Piece struct {
	Type  PieceType `json:"type"`
	Color Color     `json:"color"`
}

func (p Piece) String() string { return p.Color.String() + " " + p.Type.String() }

// Square is a linear index 0..63, index = rank*8 + file.
// Rank 0 is black's back rank; white's pawns start on rank 6.
type Square int

const (
	NumSquares = 64
	// NoSquare marks the missing origin of a resurrection.
	NoSquare Square = -1
)

func SquareAt(rank, file int) Square { return Square(rank*8 + file) }

func (s Square) Rank() int { return int(s) / 8 }
func (s Square) File() int { return int(s) % 8 }
func (s Square) Valid() bool { return s >= 0 && s < NumSquares }

func inBounds(rank, file int) bool { return rank >= 0 && rank < 8 && file >= 0 && file < 8 }

// SquareSet holds one bit per square.
type SquareSet uint64

func (s SquareSet) Has(sq Square) bool { return s&(1<<uint(sq)) != 0 }
func (s *SquareSet) Add(sq Square) { *s |= 1 << uint(sq) }
func (s SquareSet) Len() int { return bits.OnesCount64(uint64(s)) }
func (s SquareSet) Empty() bool { return s == 0 }

func (s SquareSet) Intersect(o SquareSet) SquareSet { return s & o }

// Squares lists members in ascending order.
func (s SquareSet) Squares() []Square {
	out := make([]Square, 0, s.Len())
	for v := uint64(s); v != 0; v &= v - 1 {
		out = append(out, Square(bits.TrailingZeros64(v)))
	}
	return out
}

// Board is the flat 64-cell grid. A nil slot is empty.
type Board [NumSquares]*Piece

func (b *Board) PieceAt(sq Square) *Piece { return b[sq] }

func (b *Board) Place(sq Square, p Piece) {
	pc := p
	b[sq] = &pc
}

func (b *Board) Clear(sq Square) { b[sq] = nil }

var backRank = [8]PieceType{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// Initialize empties every slot and sets up the standard starting position.
func (b *Board) Initialize() {
	for i := range b {
		b[i] = nil
	}
	for file, t := range backRank {
		b.Place(SquareAt(0, file), Piece{Type: t, Color: Black})
		b.Place(SquareAt(1, file), Piece{Type: Pawn, Color: Black})
		b.Place(SquareAt(6, file), Piece{Type: Pawn, Color: White})
		b.Place(SquareAt(7, file), Piece{Type: t, Color: White})
	}
}

// Clone copies the board so the copy shares no piece pointers with b.
func (b *Board) Clone() *Board {
	var out Board
	for i, p := range b {
		if p != nil {
			pc := *p
			out[i] = &pc
		}
	}
	return &out
}

func (b *Board) Count(c Color) int {
	n := 0
	for _, p := range b {
		if p != nil && p.Color == c {
			n++
		}
	}
	return n
}
