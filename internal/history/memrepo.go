package history

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/rebirth-chess-bot/internal/domain"
	"github.com/park285/rebirth-chess-bot/internal/rebirth"
)

// memrepo keeps games in process memory when no database is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID int64

	byID      map[int64]*domain.GameRecord
	byPlayer  map[string][]*domain.GameRecord // playerHash -> games, latest last
	bySession map[string]struct{}             // sessionUUID
}

func NewMemoryRepository() Repository {
	return &memrepo{
		byID:      make(map[int64]*domain.GameRecord),
		byPlayer:  make(map[string][]*domain.GameRecord),
		bySession: make(map[string]struct{}),
	}
}

func (m *memrepo) Insert(_ context.Context, game *domain.GameRecord) (int64, error) {
	if game == nil {
		return 0, ErrNilRecord
	}
	key := strings.TrimSpace(game.SessionUUID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.bySession[key]; exists {
		return 0, ErrDuplicate
	}

	m.nextID++
	stored := cloneGame(game)
	stored.ID = m.nextID

	m.byID[stored.ID] = stored
	m.bySession[key] = struct{}{}
	m.byPlayer[game.PlayerHash] = append(m.byPlayer[game.PlayerHash], stored)
	return stored.ID, nil
}

func (m *memrepo) Recent(_ context.Context, playerHash string, limit int) ([]*domain.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.byPlayer[playerHash]
	items := make([]*domain.GameRecord, 0, len(list))
	for _, g := range list {
		items = append(items, cloneGame(g))
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) Get(_ context.Context, id int64, playerHash string) (*domain.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.byID[id]
	if !ok || g.PlayerHash != playerHash {
		return nil, nil
	}
	return cloneGame(g), nil
}

func cloneGame(g *domain.GameRecord) *domain.GameRecord {
	c := *g
	c.Log = append([]rebirth.LogEntry(nil), g.Log...)
	return &c
}
