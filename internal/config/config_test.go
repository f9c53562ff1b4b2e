package config

import (
	"testing"
	"time"

	"github.com/park285/rebirth-chess-bot/internal/rebirth"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg := loadFrom(envOf(nil))
	if cfg.Weighting != rebirth.WeightingTiered {
		t.Fatalf("weighting = %q", cfg.Weighting)
	}
	if cfg.OpponentDelay() != 250*time.Millisecond || cfg.SessionTTL() != 24*time.Hour || cfg.HistoryLimit != 10 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.EgressMode != "http" || cfg.EgressDryRun {
		t.Fatalf("egress = %q %v", cfg.EgressMode, cfg.EgressDryRun)
	}
}

func TestOverrides(t *testing.T) {
	cfg := loadFrom(envOf(map[string]string{
		"REBIRTH_WEIGHTING":         " bag ",
		"REBIRTH_OPPONENT_DELAY_MS": "40",
		"REBIRTH_SESSION_TTL":       "-5",
		"REBIRTH_HISTORY_LIMIT":     "abc",
		"ALLOWED_ROOMS":             " r1, ,r2 ",
		"EGRESS_MODE":               "AUTO",
		"EGRESS_DRYRUN":             "true",
	}))
	if cfg.Weighting != rebirth.WeightingBag || cfg.OpponentDelayMS != 40 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.SessionTTLSec != 86400 || cfg.HistoryLimit != 10 {
		t.Fatalf("invalid numbers should keep defaults: %+v", cfg)
	}
	if len(cfg.AllowedRooms) != 2 || cfg.AllowedRooms[1] != "r2" {
		t.Fatalf("rooms = %v", cfg.AllowedRooms)
	}
	if cfg.EgressMode != "auto" || !cfg.EgressDryRun {
		t.Fatalf("egress = %q %v", cfg.EgressMode, cfg.EgressDryRun)
	}
}

func TestLoadRequiresGateway(t *testing.T) {
	t.Setenv("IRIS_BASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without IRIS_BASE_URL")
	}
	t.Setenv("IRIS_BASE_URL", "http://iris")
	t.Setenv("IRIS_WS_URL", "ws://iris/ws")
	t.Setenv("BOT_PREFIX", "!")
	cfg, err := Load()
	if err != nil || cfg.BotPrefix != "!" {
		t.Fatalf("Load = %+v, %v", cfg, err)
	}
}

func TestIrisHeaders(t *testing.T) {
	cfg := loadFrom(envOf(map[string]string{"X_USER_ID": "bot", "X_SESSION_ID": " s1 "}))
	h := cfg.IrisHeaders()
	if len(h) != 2 || h["X-User-Id"] != "bot" || h["X-Session-Id"] != "s1" {
		t.Fatalf("headers = %v", h)
	}
	if _, ok := h["X-User-Email"]; ok {
		t.Fatalf("empty email header sent")
	}
}
