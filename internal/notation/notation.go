// Package notation converts engine squares and boards to algebraic text.
// Engine rank 0 is chess rank 8; engine file 0 is file a.
package notation

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/rebirth-chess-bot/internal/rebirth"
)

var ErrBadSquare = errors.New("invalid square notation")

func toChess(sq rebirth.Square) nchess.Square {
	return nchess.NewSquare(nchess.File(sq.File()), nchess.Rank(7-sq.Rank()))
}

// SquareName returns the algebraic name ("e2") of sq.
func SquareName(sq rebirth.Square) string {
	if !sq.Valid() {
		return "-"
	}
	return toChess(sq).String()
}

// ParseSquare accepts "a1".."h8" in any case.
func ParseSquare(s string) (rebirth.Square, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if len(t) != 2 || t[0] < 'a' || t[0] > 'h' || t[1] < '1' || t[1] > '8' {
		return rebirth.NoSquare, fmt.Errorf("%w: %q", ErrBadSquare, s)
	}
	file := int(t[0] - 'a')
	rank := 7 - int(t[1]-'1')
	return rebirth.SquareAt(rank, file), nil
}

// ParseMove accepts "e2e4", "e2-e4" and "e2 e4".
func ParseMove(s string) (from, to rebirth.Square, err error) {
	t := strings.NewReplacer("-", "", " ", "", "x", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	if len(t) != 4 {
		return rebirth.NoSquare, rebirth.NoSquare, fmt.Errorf("%w: %q", ErrBadSquare, s)
	}
	if from, err = ParseSquare(t[:2]); err != nil {
		return rebirth.NoSquare, rebirth.NoSquare, err
	}
	if to, err = ParseSquare(t[2:]); err != nil {
		return rebirth.NoSquare, rebirth.NoSquare, err
	}
	return from, to, nil
}

// LooksLikeMove reports whether s parses as a move rather than a single square.
func LooksLikeMove(s string) bool {
	_, _, err := ParseMove(s)
	return err == nil
}

var pieceTypes = map[rebirth.PieceType]nchess.PieceType{
	rebirth.King:   nchess.King,
	rebirth.Queen:  nchess.Queen,
	rebirth.Rook:   nchess.Rook,
	rebirth.Bishop: nchess.Bishop,
	rebirth.Knight: nchess.Knight,
	rebirth.Pawn:   nchess.Pawn,
}

func toChessPiece(p rebirth.Piece) nchess.Piece {
	c := nchess.White
	if p.Color == rebirth.Black {
		c = nchess.Black
	}
	return nchess.NewPiece(pieceTypes[p.Type], c)
}

// Placement is the piece-placement field of FEN. Any number of kings is allowed.
func Placement(b *rebirth.Board) string {
	m := make(map[nchess.Square]nchess.Piece)
	for i := rebirth.Square(0); i < rebirth.NumSquares; i++ {
		if p := b.PieceAt(i); p != nil {
			m[toChess(i)] = toChessPiece(*p)
		}
	}
	return nchess.NewBoard(m).String()
}

// FEN renders the board with the side to move. Castling and en passant do
// not exist in this variant, the clocks carry the ply count.
func FEN(b *rebirth.Board, active rebirth.Color, ply int) string {
	side := "w"
	if active == rebirth.Black {
		side = "b"
	}
	return fmt.Sprintf("%s %s - - 0 %d", Placement(b), side, ply/2+1)
}

// PieceLetter uses FEN case: upper for white, lower for black.
func PieceLetter(p rebirth.Piece) string {
	l := p.Type.Letter()
	if p.Color == rebirth.Black {
		return strings.ToLower(l)
	}
	return l
}

// Describe renders one log entry the way the chat shows it ("e2-e4", "d5xe4", "@c3=N").
func Describe(e rebirth.LogEntry) string {
	switch e.Kind {
	case rebirth.ActionResurrect:
		return "@" + SquareName(e.To) + "=" + e.Piece.Type.Letter()
	case rebirth.ActionCapture:
		return SquareName(e.From) + "x" + SquareName(e.To)
	default:
		return SquareName(e.From) + "-" + SquareName(e.To)
	}
}
