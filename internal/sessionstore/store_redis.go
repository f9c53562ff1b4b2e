package sessionstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "rebirth:session:"
	keyIndex  = "rebirth:sessions"
)

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Dial parses a redis:// URL, connects and pings.
func Dial(ctx context.Context, rawURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := ParseRedisURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStore(rdb, ttl), nil
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// key hashes the id so raw chat identifiers never appear in key names.
func (s *RedisStore) key(sessionID string) string {
	sum := sha256.Sum256([]byte(normalizeID(sessionID)))
	return keyPrefix + hex.EncodeToString(sum[:])
}

func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	if rec == nil {
		return ErrNilRecord
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	id := normalizeID(rec.SessionID)
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.key(id), raw, s.ttl)
	pipe.SAdd(ctx, keyIndex, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired: drop the stale index entry as well
		_ = s.rdb.SRem(ctx, keyIndex, normalizeID(sessionID)).Err()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, s.key(sessionID))
	pipe.SRem(ctx, keyIndex, normalizeID(sessionID))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) IDs(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, keyIndex).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// ParseRedisURL accepts redis:// and rediss:// with optional password and db path.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	port := u.Port()
	if port == "" {
		port = "6379"
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{
		Addr:     u.Hostname() + ":" + port,
		Username: u.User.Username(),
		Password: pass,
		DB:       db,
	}
	return opts, nil
}
