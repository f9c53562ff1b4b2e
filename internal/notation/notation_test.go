package notation

import (
	"errors"
	"strings"
	"testing"

	"github.com/park285/rebirth-chess-bot/internal/rebirth"
)

func TestSquareRoundTrip(t *testing.T) {
	for sq := rebirth.Square(0); sq < rebirth.NumSquares; sq++ {
		got, err := ParseSquare(SquareName(sq))
		if err != nil || got != sq {
			t.Fatalf("%d -> %q -> %d (%v)", sq, SquareName(sq), got, err)
		}
	}
	if SquareName(rebirth.SquareAt(6, 4)) != "e2" || SquareName(0) != "a8" || SquareName(63) != "h1" {
		t.Fatalf("names: e2=%s a8=%s h1=%s", SquareName(rebirth.SquareAt(6, 4)), SquareName(0), SquareName(63))
	}
}

func TestParseSquareRejects(t *testing.T) {
	for _, in := range []string{"", "e", "i1", "a9", "a0", "e2e4"} {
		if _, err := ParseSquare(in); !errors.Is(err, ErrBadSquare) {
			t.Fatalf("ParseSquare(%q) = %v", in, err)
		}
	}
}

func TestParseMoveForms(t *testing.T) {
	for _, in := range []string{"e2e4", "E2-E4", "e2 e4"} {
		from, to, err := ParseMove(in)
		if err != nil || from != rebirth.SquareAt(6, 4) || to != rebirth.SquareAt(4, 4) {
			t.Fatalf("ParseMove(%q) = %d %d %v", in, from, to, err)
		}
	}
	if LooksLikeMove("e2") {
		t.Fatalf("single square parsed as a move")
	}
}

func TestFENStartAndExtraKings(t *testing.T) {
	var b rebirth.Board
	b.Initialize()
	if got := FEN(&b, rebirth.White, 0); got != "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w - - 0 1" {
		t.Fatalf("start FEN = %q", got)
	}
	b.Place(rebirth.SquareAt(4, 4), rebirth.Piece{Type: rebirth.King, Color: rebirth.White})
	if got := Placement(&b); strings.Count(got, "K") != 2 {
		t.Fatalf("placement = %q", got)
	}
}

func TestDescribe(t *testing.T) {
	e := rebirth.LogEntry{Kind: rebirth.ActionResurrect, From: rebirth.NoSquare, To: rebirth.SquareAt(5, 2), Piece: rebirth.Piece{Type: rebirth.Knight, Color: rebirth.White}}
	if got := Describe(e); got != "@c3=N" {
		t.Fatalf("Describe = %q", got)
	}
	e = rebirth.LogEntry{Kind: rebirth.ActionCapture, From: rebirth.SquareAt(3, 3), To: rebirth.SquareAt(4, 4)}
	if got := Describe(e); got != "d5xe4" {
		t.Fatalf("Describe = %q", got)
	}
}
