package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/park285/rebirth-chess-bot/internal/domain"
	"github.com/park285/rebirth-chess-bot/internal/rebirth"
)

func game(uuid, player string, ended time.Time) *domain.GameRecord {
	return &domain.GameRecord{
		SessionUUID: uuid,
		PlayerHash:  player,
		RoomHash:    "room",
		PlayerColor: rebirth.White,
		Weighting:   rebirth.WeightingTiered,
		Plies:       2,
		Log: []rebirth.LogEntry{
			{Ply: 1, Color: rebirth.White, Kind: rebirth.ActionMove, From: rebirth.SquareAt(6, 4), To: rebirth.SquareAt(4, 4)},
		},
		StartedAt: ended.Add(-time.Minute),
		EndedAt:   ended,
		EndReason: domain.EndReasonReset,
	}
}

func TestMemoryRepositoryInsertAndRecent(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, uuid := range []string{"a", "b", "c"} {
		id, err := repo.Insert(ctx, game(uuid, "p1", base.Add(time.Duration(i)*time.Hour)))
		if err != nil {
			t.Fatalf("Insert %s: %v", uuid, err)
		}
		if id != int64(i+1) {
			t.Fatalf("id = %d, want %d", id, i+1)
		}
	}
	if _, err := repo.Insert(ctx, game("other", "p2", base)); err != nil {
		t.Fatalf("Insert other: %v", err)
	}

	recent, err := repo.Recent(ctx, "p1", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].SessionUUID != "c" || recent[1].SessionUUID != "b" {
		t.Fatalf("recent = %+v", recent)
	}
	if all, _ := repo.Recent(ctx, "p1", 0); len(all) != 3 {
		t.Fatalf("unlimited recent = %d", len(all))
	}
	if none, _ := repo.Recent(ctx, "nobody", 5); len(none) != 0 {
		t.Fatalf("unknown player = %v", none)
	}
}

func TestMemoryRepositoryDuplicate(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Now()
	if _, err := repo.Insert(ctx, game("dup", "p", now)); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := repo.Insert(ctx, game("dup", "p", now)); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate insert err = %v", err)
	}
	if _, err := repo.Insert(ctx, nil); !errors.Is(err, ErrNilRecord) {
		t.Fatalf("nil insert err = %v", err)
	}
}

func TestMemoryRepositoryGetScopedToPlayer(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	id, _ := repo.Insert(ctx, game("g", "owner", time.Now()))

	got, err := repo.Get(ctx, id, "owner")
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	got.Log[0].Ply = 99
	again, _ := repo.Get(ctx, id, "owner")
	if again.Log[0].Ply != 1 {
		t.Fatalf("stored log mutated through a returned copy")
	}
	if other, _ := repo.Get(ctx, id, "intruder"); other != nil {
		t.Fatalf("game visible to another player")
	}
	if missing, _ := repo.Get(ctx, 404, "owner"); missing != nil {
		t.Fatalf("missing id returned %v", missing)
	}
}
