package rebirth

import "math/rand"

// Candidate is one legal move for a side.
type Candidate struct {
	From      Square
	To        Square
	IsCapture bool
}

// AllMoves lists every legal move of color c, scanning squares in index
// order and listing each piece's captures before its quiet moves.
func AllMoves(b *Board, c Color) []Candidate {
	var out []Candidate
	for i := Square(0); i < NumSquares; i++ {
		p := b.PieceAt(i)
		if p == nil || p.Color != c {
			continue
		}
		ms := LegalMoves(b, i)
		for _, to := range ms.Captures.Squares() {
			out = append(out, Candidate{From: i, To: to, IsCapture: true})
		}
		for _, to := range ms.Moves.Squares() {
			out = append(out, Candidate{From: i, To: to})
		}
	}
	return out
}

// ChooseMove picks uniformly among captures when any exist, otherwise among
// all moves. It reports false when c has nothing to play.
func ChooseMove(b *Board, c Color, r *rand.Rand) (Candidate, bool) {
	all := AllMoves(b, c)
	if len(all) == 0 {
		return Candidate{}, false
	}
	pool := make([]Candidate, 0, len(all))
	for _, m := range all {
		if m.IsCapture {
			pool = append(pool, m)
		}
	}
	if len(pool) == 0 {
		pool = all
	}
	return pool[r.Intn(len(pool))], true
}
