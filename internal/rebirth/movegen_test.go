package rebirth

import (
	"math/rand"
	"testing"
)

func setOf(sqs ...Square) SquareSet {
	var s SquareSet
	for _, sq := range sqs {
		s.Add(sq)
	}
	return s
}

func TestPawnOpeningFromStartRank(t *testing.T) {
	var b Board
	b.Initialize()
	e2 := SquareAt(6, 4)
	ms := LegalMoves(&b, e2)
	if ms.Moves != setOf(SquareAt(5, 4), SquareAt(4, 4)) {
		t.Fatalf("moves = %v", ms.Moves.Squares())
	}
	if !ms.Captures.Empty() {
		t.Fatalf("unexpected captures %v", ms.Captures.Squares())
	}

	b7 := SquareAt(1, 1)
	ms = LegalMoves(&b, b7)
	if ms.Moves != setOf(SquareAt(2, 1), SquareAt(3, 1)) {
		t.Fatalf("black moves = %v", ms.Moves.Squares())
	}
}

func TestPawnTwoStepNeedsBothSquaresEmpty(t *testing.T) {
	var b Board
	b.Initialize()
	e2 := SquareAt(6, 4)

	b.Place(SquareAt(4, 4), Piece{Type: Knight, Color: Black})
	if ms := LegalMoves(&b, e2); ms.Moves != setOf(SquareAt(5, 4)) {
		t.Fatalf("blocked two-step: %v", ms.Moves.Squares())
	}

	b.Clear(SquareAt(4, 4))
	b.Place(SquareAt(5, 4), Piece{Type: Knight, Color: Black})
	if ms := LegalMoves(&b, e2); !ms.Moves.Empty() {
		t.Fatalf("blocked one-step still moves: %v", ms.Moves.Squares())
	}

	// off the start rank the pawn only steps once
	var c Board
	c.Place(SquareAt(5, 0), Piece{Type: Pawn, Color: White})
	if ms := LegalMoves(&c, SquareAt(5, 0)); ms.Moves != setOf(SquareAt(4, 0)) {
		t.Fatalf("moved pawn: %v", ms.Moves.Squares())
	}
}

func TestPawnCapturesOnlyEnemyDiagonals(t *testing.T) {
	var b Board
	from := SquareAt(6, 4)
	b.Place(from, Piece{Type: Pawn, Color: White})
	b.Place(SquareAt(5, 3), Piece{Type: Bishop, Color: Black})
	b.Place(SquareAt(5, 5), Piece{Type: Bishop, Color: White})
	b.Place(SquareAt(7, 3), Piece{Type: Bishop, Color: Black}) // behind
	ms := LegalMoves(&b, from)
	if ms.Captures != setOf(SquareAt(5, 3)) {
		t.Fatalf("captures = %v", ms.Captures.Squares())
	}
}

func TestSlidingStopsAtFirstBlocker(t *testing.T) {
	var b Board
	from := SquareAt(4, 4)
	b.Place(from, Piece{Type: Rook, Color: White})
	b.Place(SquareAt(4, 6), Piece{Type: Pawn, Color: Black})
	b.Place(SquareAt(2, 4), Piece{Type: Pawn, Color: White})

	ms := LegalMoves(&b, from)
	wantMoves := setOf(
		SquareAt(4, 5),
		SquareAt(3, 4),
		SquareAt(5, 4), SquareAt(6, 4), SquareAt(7, 4),
		SquareAt(4, 3), SquareAt(4, 2), SquareAt(4, 1), SquareAt(4, 0),
	)
	if ms.Moves != wantMoves {
		t.Fatalf("moves = %v", ms.Moves.Squares())
	}
	if ms.Captures != setOf(SquareAt(4, 6)) {
		t.Fatalf("captures = %v", ms.Captures.Squares())
	}
	if ms.Contains(SquareAt(4, 7)) || ms.Contains(SquareAt(1, 4)) || ms.Contains(SquareAt(2, 4)) {
		t.Fatalf("ray passed a blocker")
	}
}

func TestQueenIsRookPlusBishop(t *testing.T) {
	var b Board
	b.Initialize()
	from := SquareAt(4, 3)
	b.Place(from, Piece{Type: Rook, Color: White})
	rook := LegalMoves(&b, from)
	b.Place(from, Piece{Type: Bishop, Color: White})
	bishop := LegalMoves(&b, from)
	b.Place(from, Piece{Type: Queen, Color: White})
	queen := LegalMoves(&b, from)

	if queen.Moves != rook.Moves|bishop.Moves || queen.Captures != rook.Captures|bishop.Captures {
		t.Fatalf("queen %v/%v", queen.Moves.Squares(), queen.Captures.Squares())
	}
}

func TestKnightFromStart(t *testing.T) {
	var b Board
	b.Initialize()
	ms := LegalMoves(&b, SquareAt(7, 1))
	if ms.Moves != setOf(SquareAt(5, 0), SquareAt(5, 2)) || !ms.Captures.Empty() {
		t.Fatalf("knight = %v/%v", ms.Moves.Squares(), ms.Captures.Squares())
	}
}

func TestKingIgnoresOtherKings(t *testing.T) {
	var b Board
	b.Place(0, Piece{Type: King, Color: White})
	if ms := LegalMoves(&b, 0); ms.Moves.Len() != 3 {
		t.Fatalf("corner king = %v", ms.Moves.Squares())
	}

	center := SquareAt(4, 4)
	b.Place(center, Piece{Type: King, Color: White})
	b.Place(63, Piece{Type: King, Color: White})
	if ms := LegalMoves(&b, center); ms.Moves.Len() != 8 {
		t.Fatalf("center king = %v", ms.Moves.Squares())
	}
	if ms := LegalMoves(&b, 0); ms.Moves.Len() != 3 {
		t.Fatalf("corner king changed with more kings: %v", ms.Moves.Squares())
	}

	b.Place(SquareAt(3, 4), Piece{Type: King, Color: White})
	b.Place(SquareAt(5, 4), Piece{Type: King, Color: Black})
	ms := LegalMoves(&b, center)
	if ms.Moves.Len() != 6 || ms.Captures != setOf(SquareAt(5, 4)) {
		t.Fatalf("crowded king = %v/%v", ms.Moves.Squares(), ms.Captures.Squares())
	}
}

func TestEmptySourceYieldsNothing(t *testing.T) {
	var b Board
	if ms := LegalMoves(&b, 27); !ms.Empty() {
		t.Fatalf("empty square produced %v", ms)
	}
}

func TestLegalMovesRandomBoards(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 300; round++ {
		var b Board
		for i := 0; i < 20; i++ {
			sq := Square(r.Intn(NumSquares))
			b.Place(sq, Piece{Type: PieceType(1 + r.Intn(6)), Color: Color(1 + r.Intn(2))})
		}
		for sq := Square(0); sq < NumSquares; sq++ {
			p := b.PieceAt(sq)
			if p == nil {
				continue
			}
			ms := LegalMoves(&b, sq)
			if ms.Moves&ms.Captures != 0 {
				t.Fatalf("round %d sq %d: sets overlap", round, sq)
			}
			for _, to := range ms.Moves.Squares() {
				if !to.Valid() || b.PieceAt(to) != nil {
					t.Fatalf("round %d: move %d->%d onto occupied or invalid square", round, sq, to)
				}
			}
			for _, to := range ms.Captures.Squares() {
				q := b.PieceAt(to)
				if !to.Valid() || q == nil || q.Color == p.Color {
					t.Fatalf("round %d: capture %d->%d not on an enemy", round, sq, to)
				}
			}
		}
	}
}

func TestSquareCoordinates(t *testing.T) {
	for sq := Square(0); sq < NumSquares; sq++ {
		if SquareAt(sq.Rank(), sq.File()) != sq {
			t.Fatalf("round trip failed for %d", sq)
		}
	}
	if NoSquare.Valid() || Square(64).Valid() {
		t.Fatalf("out of range squares reported valid")
	}
}
