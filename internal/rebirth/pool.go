package rebirth

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySource    = errors.New("no piece on source square")
	ErrUnknownCapture = errors.New("captured piece not in pool")
)

// CapturedPiece is one pool entry. ID is unique within a session and is
// what resurrection consumes; Piece alone does not identify an entry.
type CapturedPiece struct {
	ID    uint64 `json:"id"`
	Piece Piece  `json:"piece"`
}

// CapturedPool holds pieces of one color in capture order.
type CapturedPool struct {
	entries []CapturedPiece
}

func (p *CapturedPool) Len() int { return len(p.entries) }

// Entries returns a copy in capture order.
func (p *CapturedPool) Entries() []CapturedPiece {
	return append([]CapturedPiece(nil), p.entries...)
}

func (p *CapturedPool) Find(id uint64) (CapturedPiece, bool) {
	for _, e := range p.entries {
		if e.ID == id {
			return e, true
		}
	}
	return CapturedPiece{}, false
}

func (p *CapturedPool) add(e CapturedPiece) { p.entries = append(p.entries, e) }

// Remove drops exactly the entry with the given id.
func (p *CapturedPool) Remove(id uint64) error {
	for i, e := range p.entries {
		if e.ID == id {
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: id=%d", ErrUnknownCapture, id)
}

// Pools pairs the two per-color pools with the id sequence they share.
type Pools struct {
	White CapturedPool
	Black CapturedPool
	seq   uint64
}

func (ps *Pools) Of(c Color) *CapturedPool {
	if c == Black {
		return &ps.Black
	}
	return &ps.White
}

// capture routes a displaced piece into its owner's pool.
func (ps *Pools) capture(p Piece) CapturedPiece {
	ps.seq++
	e := CapturedPiece{ID: ps.seq, Piece: p}
	ps.Of(p.Color).add(e)
	return e
}

// Execute relocates the piece on from to to. An occupant of to goes into
// its owner's pool and the new entry is returned. Legality is the caller's job.
func Execute(b *Board, pools *Pools, from, to Square) (*CapturedPiece, error) {
	p := b.PieceAt(from)
	if p == nil {
		return nil, ErrEmptySource
	}
	var captured *CapturedPiece
	if q := b.PieceAt(to); q != nil {
		e := pools.capture(*q)
		captured = &e
	}
	b[to] = p
	b.Clear(from)
	return captured, nil
}
