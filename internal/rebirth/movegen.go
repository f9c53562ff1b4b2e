package rebirth

// MoveSet splits the destinations reachable from one square.
// Moves and Captures never share a square.
type MoveSet struct {
	Moves    SquareSet
	Captures SquareSet
}

func (m MoveSet) Empty() bool { return m.Moves.Empty() && m.Captures.Empty() }

func (m MoveSet) Contains(sq Square) bool { return m.Moves.Has(sq) || m.Captures.Has(sq) }

type delta struct{ dr, df int }

var (
	knightDeltas = []delta{{-2, -1}, {-2, 1}, {-1, -2}, {-1, 2}, {1, -2}, {1, 2}, {2, -1}, {2, 1}}
	kingDeltas   = []delta{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	diagonalRays = []delta{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
	straightRays = []delta{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
)

// LegalMoves computes the destinations of the piece on from. It does not
// check ownership or turn, and knows nothing about check: every king moves
// like a plain one-step piece no matter how many a side owns.
func LegalMoves(b *Board, from Square) MoveSet {
	var ms MoveSet
	p := b.PieceAt(from)
	if p == nil {
		return ms
	}
	r, f := from.Rank(), from.File()

	switch p.Type {
	case Pawn:
		pawnMoves(b, p.Color, r, f, &ms)
	case Knight:
		for _, d := range knightDeltas {
			step(b, p.Color, r+d.dr, f+d.df, &ms)
		}
	case Bishop:
		for _, d := range diagonalRays {
			ray(b, p.Color, r, f, d, &ms)
		}
	case Rook:
		for _, d := range straightRays {
			ray(b, p.Color, r, f, d, &ms)
		}
	case Queen:
		for _, d := range diagonalRays {
			ray(b, p.Color, r, f, d, &ms)
		}
		for _, d := range straightRays {
			ray(b, p.Color, r, f, d, &ms)
		}
	case King:
		for _, d := range kingDeltas {
			step(b, p.Color, r+d.dr, f+d.df, &ms)
		}
	}
	return ms
}

func forward(c Color) int {
	if c == White {
		return -1
	}
	return 1
}

func pawnStartRank(c Color) int {
	if c == White {
		return 6
	}
	return 1
}

func pawnMoves(b *Board, c Color, r, f int, ms *MoveSet) {
	dir := forward(c)
	if one := r + dir; inBounds(one, f) && b.PieceAt(SquareAt(one, f)) == nil {
		ms.Moves.Add(SquareAt(one, f))
		two := r + 2*dir
		if r == pawnStartRank(c) && inBounds(two, f) && b.PieceAt(SquareAt(two, f)) == nil {
			ms.Moves.Add(SquareAt(two, f))
		}
	}
	for _, df := range []int{-1, 1} {
		cr, cf := r+dir, f+df
		if !inBounds(cr, cf) {
			continue
		}
		to := SquareAt(cr, cf)
		if q := b.PieceAt(to); q != nil && q.Color != c {
			ms.Captures.Add(to)
		}
	}
}

// step adds a single destination: empty is a move, enemy is a capture, own piece is skipped.
func step(b *Board, c Color, r, f int, ms *MoveSet) {
	if !inBounds(r, f) {
		return
	}
	to := SquareAt(r, f)
	q := b.PieceAt(to)
	switch {
	case q == nil:
		ms.Moves.Add(to)
	case q.Color != c:
		ms.Captures.Add(to)
	}
}

// ray walks one direction until the edge or the first occupied square.
func ray(b *Board, c Color, r, f int, d delta, ms *MoveSet) {
	for rr, ff := r+d.dr, f+d.df; inBounds(rr, ff); rr, ff = rr+d.dr, ff+d.df {
		to := SquareAt(rr, ff)
		q := b.PieceAt(to)
		if q == nil {
			ms.Moves.Add(to)
			continue
		}
		if q.Color != c {
			ms.Captures.Add(to)
		}
		return
	}
}
