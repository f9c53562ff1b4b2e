// Package sessionstore persists rebirth session snapshots between commands and restarts.
package sessionstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/park285/rebirth-chess-bot/internal/rebirth"
)

var ErrNilRecord = errors.New("cannot save nil session record")

// Record is what the store keeps per chat session.
type Record struct {
	SessionID   string           `json:"session_id"`
	SessionUUID string           `json:"session_uuid"`
	RoomHash    string           `json:"room_hash"`
	PlayerHash  string           `json:"player_hash"`
	PlayerName  string           `json:"player_name,omitempty"`
	Room        string           `json:"room,omitempty"`
	Game        rebirth.Snapshot `json:"game"`
	StartedAt   time.Time        `json:"started_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type Store interface {
	Save(ctx context.Context, rec *Record) error
	// Load returns nil, nil when the session does not exist.
	Load(ctx context.Context, sessionID string) (*Record, error)
	Delete(ctx context.Context, sessionID string) error
	// IDs lists the indexed session ids.
	IDs(ctx context.Context) ([]string, error)
}

func normalizeID(id string) string { return strings.ToLower(strings.TrimSpace(id)) }

// MemoryStore keeps records in process memory. The TTL is applied lazily on Load.
type MemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	data map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	rec     Record
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, data: map[string]memoryEntry{}, now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, rec *Record) error {
	if rec == nil {
		return ErrNilRecord
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{rec: *rec}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.data[normalizeID(rec.SessionID)] = e
	return nil
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := normalizeID(sessionID)
	e, ok := m.data[id]
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && m.now().After(e.expires) {
		delete(m.data, id)
		return nil, nil
	}
	rec := e.rec
	return &rec, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, normalizeID(sessionID))
	return nil
}

func (m *MemoryStore) IDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.data))
	for id := range m.data {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
