package rebirth

import (
	"math/rand"
	"strings"
)

// Weighting names the probability table used to pick a resurrected piece's type.
// The captured piece's own type never influences the draw.
type Weighting string

const (
	// WeightingTiered: king 2%, queen 6%, the remaining 92% split evenly
	// across rook, bishop and knight.
	WeightingTiered Weighting = "tiered"
	// WeightingBag draws one slot of resurrectionBag uniformly.
	WeightingBag Weighting = "bag"

	DefaultWeighting = WeightingTiered
)

const (
	tieredKing  = 0.02
	tieredQueen = 0.08
)

var resurrectionBag = [10]PieceType{King, Queen, Queen, Rook, Rook, Rook, Bishop, Bishop, Knight, Knight}

func ParseWeighting(s string) (Weighting, bool) {
	switch Weighting(strings.ToLower(strings.TrimSpace(s))) {
	case WeightingTiered:
		return WeightingTiered, true
	case WeightingBag:
		return WeightingBag, true
	default:
		return DefaultWeighting, false
	}
}

// DrawType picks a piece type under w. Unknown weightings behave like the default.
func DrawType(w Weighting, r *rand.Rand) PieceType {
	if w == WeightingBag {
		return resurrectionBag[r.Intn(len(resurrectionBag))]
	}
	x := r.Float64()
	switch {
	case x < tieredKing:
		return King
	case x < tieredQueen:
		return Queen
	}
	t := (x - tieredQueen) / (1 - tieredQueen)
	switch {
	case t < 1.0/3:
		return Rook
	case t < 2.0/3:
		return Bishop
	default:
		return Knight
	}
}
