package rebirth

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const SnapshotVersion = 1

var ErrBadSnapshot = errors.New("invalid session snapshot")

// Snapshot is the persisted form of a session. Selection is transient and
// is not part of it.
type Snapshot struct {
	Version        int             `json:"version"`
	PlayerColor    Color           `json:"player_color"`
	ActiveColor    Color           `json:"active_color"`
	Board          Board           `json:"board"`
	White          []CapturedPiece `json:"white_pool"`
	Black          []CapturedPiece `json:"black_pool"`
	Seq            uint64          `json:"seq"`
	InResurrection bool            `json:"in_resurrection"`
	PendingCapture uint64          `json:"pending_capture,omitempty"`
	Weighting      Weighting       `json:"weighting"`
	Ply            int             `json:"ply"`
	Log            []LogEntry      `json:"log,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.lock()
	defer s.unlock()
	return Snapshot{
		Version:        SnapshotVersion,
		PlayerColor:    s.player,
		ActiveColor:    s.active,
		Board:          *s.board.Clone(),
		White:          s.pools.White.Entries(),
		Black:          s.pools.Black.Entries(),
		Seq:            s.pools.seq,
		InResurrection: s.resurrecting,
		PendingCapture: s.pendingCapture,
		Weighting:      s.weighting,
		Ply:            s.ply,
		Log:            append([]LogEntry(nil), s.log...),
	}
}

func (snap *Snapshot) validate() error {
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("%w: version %d", ErrBadSnapshot, snap.Version)
	}
	if snap.PlayerColor == NoColor {
		return nil
	}
	if snap.ActiveColor != White && snap.ActiveColor != Black {
		return fmt.Errorf("%w: active color %v", ErrBadSnapshot, snap.ActiveColor)
	}
	seen := map[uint64]bool{}
	check := func(entries []CapturedPiece, c Color) error {
		for _, e := range entries {
			if e.ID == 0 || e.ID > snap.Seq || seen[e.ID] {
				return fmt.Errorf("%w: capture id %d", ErrBadSnapshot, e.ID)
			}
			if e.Piece.Color != c {
				return fmt.Errorf("%w: capture %d in wrong pool", ErrBadSnapshot, e.ID)
			}
			seen[e.ID] = true
		}
		return nil
	}
	if err := check(snap.White, White); err != nil {
		return err
	}
	if err := check(snap.Black, Black); err != nil {
		return err
	}
	if snap.PendingCapture != 0 {
		owned := snap.White
		if snap.PlayerColor == Black {
			owned = snap.Black
		}
		found := false
		for _, e := range owned {
			if e.ID == snap.PendingCapture {
				found = true
			}
		}
		if !found || !snap.InResurrection {
			return fmt.Errorf("%w: pending capture %d", ErrBadSnapshot, snap.PendingCapture)
		}
	}
	return nil
}

// Restore replaces the session state with snap. Any deferred opponent move
// of the replaced state is invalidated; a new one is scheduled if the
// opponent is to move.
func (s *Session) Restore(snap Snapshot) error {
	if err := snap.validate(); err != nil {
		return err
	}
	s.lock()
	defer s.unlock()

	s.clearGame()
	if snap.PlayerColor == NoColor {
		return nil
	}
	s.player = snap.PlayerColor
	s.active = snap.ActiveColor
	s.board = *snap.Board.Clone()
	for _, e := range snap.White {
		s.pools.White.add(e)
	}
	for _, e := range snap.Black {
		s.pools.Black.add(e)
	}
	s.pools.seq = snap.Seq
	s.resurrecting = snap.InResurrection
	s.pendingCapture = snap.PendingCapture
	if w, ok := ParseWeighting(string(snap.Weighting)); ok {
		s.weighting = w
	}
	s.ply = snap.Ply
	s.log = append([]LogEntry(nil), snap.Log...)
	s.logger.Debug("rebirth_session_restore", zap.String("player", s.player.String()), zap.Int("ply", s.ply))
	s.scheduleOpponent()
	return nil
}
