package rebirthbuilder

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/park285/rebirth-chess-bot/internal/config"
	"github.com/park285/rebirth-chess-bot/internal/history"
	"github.com/park285/rebirth-chess-bot/internal/msgcat"
	"github.com/park285/rebirth-chess-bot/internal/rebirth"
	"github.com/park285/rebirth-chess-bot/internal/render"
	"github.com/park285/rebirth-chess-bot/internal/sessionstore"
	svc "github.com/park285/rebirth-chess-bot/internal/service/rebirth"
)

type Deps struct {
	Service *svc.Service
	Store   sessionstore.Store
	Repo    history.Repository
	Catalog *msgcat.Catalog

	closers []func() error
}

// Overrides replaces pieces New would otherwise build from cfg. Zero fields keep the default.
type Overrides struct {
	Scheduler rebirth.Scheduler
	NewRand   func() *rand.Rand
	Renderer  render.BoardRenderer
}

// New wires the rebirth service. REDIS_URL and DATABASE_URL are optional;
// without them sessions and finished games live in process memory.
func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	return NewWith(cfg, logger, Overrides{})
}

func NewWith(cfg *config.AppConfig, logger *zap.Logger, ov Overrides) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	deps := &Deps{}
	ok := false
	defer func() {
		if !ok {
			_ = deps.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	deps.Catalog = catalog

	// Session store (Redis optional)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		store, derr := sessionstore.Dial(ctx, cfg.RedisURL, cfg.SessionTTL())
		if derr != nil {
			return nil, fmt.Errorf("init session store: %w", derr)
		}
		deps.Store = store
		deps.closers = append(deps.closers, store.Close)
	} else {
		logger.Warn("REDIS_URL not set; rebirth sessions are kept in memory")
		deps.Store = sessionstore.NewMemoryStore(cfg.SessionTTL())
	}

	// Repository (Postgres optional)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, oerr := openPostgres(ctx, cfg.DatabaseURL)
		if oerr != nil {
			return nil, oerr
		}
		deps.closers = append(deps.closers, db.Close)
		if serr := history.EnsureSchema(ctx, db); serr != nil {
			return nil, fmt.Errorf("ensure schema: %w", serr)
		}
		deps.Repo = history.NewRepository(db)
	} else {
		logger.Warn("DATABASE_URL not set; rebirth history is kept in memory")
		deps.Repo = history.NewMemoryRepository()
	}

	renderer := ov.Renderer
	if renderer == nil {
		renderer = render.NewSVGBoardRenderer()
	}

	svcCfg := svc.Config{
		Weighting:     cfg.Weighting,
		OpponentDelay: cfg.OpponentDelay(),
		HistoryLimit:  cfg.HistoryLimit,
		AllowedRooms:  append([]string(nil), cfg.AllowedRooms...),
		Scheduler:     ov.Scheduler,
		NewRand:       ov.NewRand,
	}
	service, err := svc.NewService(deps.Store, deps.Repo, renderer, svcCfg, logger.Named("rebirth"))
	if err != nil {
		return nil, err
	}
	deps.Service = service
	ok = true
	return deps, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	// basic pool settings
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Close stops live games, then releases connections in reverse order of opening.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	if d.Service != nil {
		d.Service.Close()
	}
	var result *multierror.Error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	d.closers = nil
	return result.ErrorOrNil()
}
