package rebirth

import (
	"math"
	"math/rand"
	"testing"
)

func drawShares(w Weighting, n int) map[PieceType]float64 {
	r := rand.New(rand.NewSource(42))
	counts := map[PieceType]int{}
	for i := 0; i < n; i++ {
		counts[DrawType(w, r)]++
	}
	out := map[PieceType]float64{}
	for k, v := range counts {
		out[k] = float64(v) / float64(n)
	}
	return out
}

func TestDrawTypeWeightings(t *testing.T) {
	cases := []struct {
		w    Weighting
		want map[PieceType]float64
	}{
		{WeightingTiered, map[PieceType]float64{King: 0.02, Queen: 0.06, Rook: 0.92 / 3, Bishop: 0.92 / 3, Knight: 0.92 / 3}},
		{WeightingBag, map[PieceType]float64{King: 0.1, Queen: 0.2, Rook: 0.3, Bishop: 0.2, Knight: 0.2}},
	}
	for _, tc := range cases {
		got := drawShares(tc.w, 200000)
		if got[Pawn] != 0 {
			t.Fatalf("%s: drew a pawn", tc.w)
		}
		for typ, want := range tc.want {
			if math.Abs(got[typ]-want) > 0.01 {
				t.Fatalf("%s: %s share %.4f, want ~%.4f", tc.w, typ, got[typ], want)
			}
		}
	}
}

func TestParseWeighting(t *testing.T) {
	if w, ok := ParseWeighting(" Bag "); !ok || w != WeightingBag {
		t.Fatalf("bag: %v %v", w, ok)
	}
	if w, ok := ParseWeighting("tiered"); !ok || w != WeightingTiered {
		t.Fatalf("tiered: %v %v", w, ok)
	}
	if w, ok := ParseWeighting("loaded-dice"); ok || w != DefaultWeighting {
		t.Fatalf("unknown: %v %v", w, ok)
	}
}
