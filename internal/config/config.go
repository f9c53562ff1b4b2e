package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/park285/rebirth-chess-bot/internal/rebirth"
)

type AppConfig struct {
	IrisBaseURL string
	IrisWSURL   string

	BotPrefix string

	XUserID    string
	XUserEmail string
	XSessionID string

	RedisURL    string
	DatabaseURL string

	AllowedRooms []string

	EgressMode   string // http | ws | auto
	EgressDryRun bool

	MessagesDir string

	Weighting       rebirth.Weighting
	OpponentDelayMS int
	SessionTTLSec   int
	HistoryLimit    int
}

func (c *AppConfig) OpponentDelay() time.Duration {
	return time.Duration(c.OpponentDelayMS) * time.Millisecond
}

func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSec) * time.Second
}

// IrisHeaders are the identity headers sent on every Iris request and the WS handshake.
func (c *AppConfig) IrisHeaders() map[string]string {
	h := map[string]string{}
	if c.XUserID != "" {
		h["X-User-Id"] = c.XUserID
	}
	if c.XUserEmail != "" {
		h["X-User-Email"] = c.XUserEmail
	}
	if c.XSessionID != "" {
		h["X-Session-Id"] = c.XSessionID
	}
	return h
}

// Load reads the bot configuration; the Iris gateway keys are required.
func Load() (*AppConfig, error) {
	cfg := loadFrom(os.Getenv)
	if cfg.IrisBaseURL == "" {
		return nil, errors.New("IRIS_BASE_URL is required")
	}
	if cfg.IrisWSURL == "" {
		return nil, errors.New("IRIS_WS_URL is required")
	}
	if cfg.BotPrefix == "" {
		return nil, errors.New("BOT_PREFIX is required")
	}
	return cfg, nil
}

// LoadLocal reads the same keys without the gateway requirements, for the terminal client.
func LoadLocal() *AppConfig { return loadFrom(os.Getenv) }

func loadFrom(getenv func(string) string) *AppConfig {
	get := func(k string) string { return strings.TrimSpace(getenv(k)) }
	cfg := &AppConfig{
		EgressMode:      "http",
		Weighting:       rebirth.DefaultWeighting,
		OpponentDelayMS: int(rebirth.DefaultOpponentDelay / time.Millisecond),
		SessionTTLSec:   86400,
		HistoryLimit:    10,
	}

	cfg.IrisBaseURL = get("IRIS_BASE_URL")
	cfg.IrisWSURL = get("IRIS_WS_URL")
	cfg.BotPrefix = get("BOT_PREFIX")

	cfg.XUserID = get("X_USER_ID")
	cfg.XUserEmail = get("X_USER_EMAIL")
	cfg.XSessionID = get("X_SESSION_ID")

	cfg.RedisURL = get("REDIS_URL")
	cfg.DatabaseURL = get("DATABASE_URL")
	cfg.MessagesDir = get("MESSAGES_DIR")

	cfg.AllowedRooms = splitList(get("ALLOWED_ROOMS"))
	if len(cfg.AllowedRooms) == 0 {
		cfg.AllowedRooms = splitList(get("REBIRTH_ALLOWED_ROOMS"))
	}

	switch v := strings.ToLower(get("EGRESS_MODE")); v {
	case "http", "ws", "auto":
		cfg.EgressMode = v
	}
	if b, err := strconv.ParseBool(get("EGRESS_DRYRUN")); err == nil {
		cfg.EgressDryRun = b
	}

	if w, ok := rebirth.ParseWeighting(get("REBIRTH_WEIGHTING")); ok {
		cfg.Weighting = w
	}
	positive(get("REBIRTH_OPPONENT_DELAY_MS"), &cfg.OpponentDelayMS)
	positive(get("REBIRTH_SESSION_TTL"), &cfg.SessionTTLSec)
	positive(get("REBIRTH_HISTORY_LIMIT"), &cfg.HistoryLimit)
	return cfg
}

func positive(v string, dst *int) {
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		*dst = n
	}
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
