package rebirth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/rebirth-chess-bot/internal/domain"
	"github.com/park285/rebirth-chess-bot/internal/history"
	corerebirth "github.com/park285/rebirth-chess-bot/internal/rebirth"
	"github.com/park285/rebirth-chess-bot/internal/render"
	"github.com/park285/rebirth-chess-bot/internal/sessionstore"
)

var (
	ErrSessionNotFound   = errors.New("rebirth session not found")
	ErrSessionInProgress = errors.New("rebirth session already in progress")
	ErrRoomNotAllowed    = errors.New("rebirth room not allowed")
	ErrGameNotFound      = errors.New("rebirth game not found")
	ErrInvalidSquare     = corerebirth.ErrInvalidSquare
	ErrInvalidColor      = corerebirth.ErrInvalidColor
)

const (
	maxHistoryLimit      = 50
	playerLabelRuneLimit = 24
	notifyTimeout        = 10 * time.Second
)

type SessionMeta struct {
	SessionID string
	Room      string
	Sender    string
}

type sessionIdentity struct {
	SessionID  string
	RoomHash   string
	PlayerHash string
}

type Config struct {
	Weighting     corerebirth.Weighting
	OpponentDelay time.Duration
	HistoryLimit  int
	AllowedRooms  []string

	// Scheduler and NewRand are replaced in tests.
	Scheduler corerebirth.Scheduler
	NewRand   func() *rand.Rand
}

// Notifier receives the board after the automated opponent acted.
type Notifier interface {
	OpponentActed(ctx context.Context, meta SessionMeta, state *SessionState)
}

type NotifierFunc func(ctx context.Context, meta SessionMeta, state *SessionState)

func (f NotifierFunc) OpponentActed(ctx context.Context, meta SessionMeta, state *SessionState) {
	f(ctx, meta, state)
}

type Service struct {
	store        sessionstore.Store
	repo         history.Repository
	renderer     render.BoardRenderer
	cfg          Config
	allowedRooms map[string]struct{}
	logger       *zap.Logger
	now          func() time.Time

	mu       sync.Mutex
	live     map[string]*liveSession
	notifier Notifier
}

// liveSession is one running game with the identity it belongs to.
type liveSession struct {
	meta        SessionMeta
	identity    sessionIdentity
	sessionUUID string
	playerName  string
	startedAt   time.Time
	game        *corerebirth.Session

	mu       sync.Mutex // guards lastMove and retired, orders saves
	lastMove *render.LastMove
	// retired is set once the game was reset or replaced; later saves are dropped.
	retired bool
}

func NewService(store sessionstore.Store, repo history.Repository, renderer render.BoardRenderer, cfg Config, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("rebirth repository is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("board renderer is required")
	}
	if w, ok := corerebirth.ParseWeighting(string(cfg.Weighting)); ok {
		cfg.Weighting = w
	} else if cfg.Weighting == "" {
		cfg.Weighting = corerebirth.DefaultWeighting
	} else {
		return nil, fmt.Errorf("unknown weighting %q", cfg.Weighting)
	}
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > maxHistoryLimit {
		cfg.HistoryLimit = 10
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = corerebirth.TimerScheduler
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	allowedRooms := make(map[string]struct{})
	for _, room := range cfg.AllowedRooms {
		normalized := strings.ToLower(strings.TrimSpace(room))
		if normalized == "" {
			continue
		}
		allowedRooms[normalized] = struct{}{}
	}
	cfg.AllowedRooms = append([]string(nil), cfg.AllowedRooms...)

	return &Service{
		store:        store,
		repo:         repo,
		renderer:     renderer,
		cfg:          cfg,
		allowedRooms: allowedRooms,
		logger:       logger,
		now:          time.Now,
		live:         make(map[string]*liveSession),
	}, nil
}

func (s *Service) SetNotifier(n Notifier) {
	s.mu.Lock()
	s.notifier = n
	s.mu.Unlock()
}

// Start begins a game with the human on color. A running game is returned
// together with ErrSessionInProgress unless force is set, in which case it
// is archived and replaced.
func (s *Service) Start(ctx context.Context, meta SessionMeta, color corerebirth.Color, force bool) (*SessionState, error) {
	if color != corerebirth.White && color != corerebirth.Black {
		return nil, ErrInvalidColor
	}
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	identity := deriveIdentity(meta)

	existing, err := s.lookup(ctx, identity)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.game.Active() {
		if !force {
			return s.stateOf(ctx, existing), ErrSessionInProgress
		}
		s.archive(ctx, existing, domain.EndReasonReplaced)
		existing.retire(nil)
	}

	ls := s.newLive(meta, identity, uuid.NewString(), s.now().UTC())
	if err := ls.game.Start(color); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if cur := s.live[identity.SessionID]; cur != nil && cur != existing && cur.game.Active() {
		// a concurrent Start for the same player got here first
		s.mu.Unlock()
		ls.retire(nil)
		return s.stateOf(ctx, cur), ErrSessionInProgress
	}
	s.live[identity.SessionID] = ls
	s.mu.Unlock()

	if err := s.persist(ctx, ls); err != nil {
		return nil, err
	}
	s.logger.Info("rebirth_service_start",
		zap.String("session_uuid", ls.sessionUUID),
		zap.String("player", color.String()),
		zap.Bool("forced", force && existing != nil),
	)
	return s.stateOf(ctx, ls), nil
}

// Reset archives and ends the running game. It returns the history record
// id, or 0 when nothing was recorded.
func (s *Service) Reset(ctx context.Context, meta SessionMeta) (int64, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return 0, err
	}
	ls, err := s.active(ctx, meta)
	if err != nil {
		return 0, err
	}
	id := s.archive(ctx, ls, domain.EndReasonReset)

	s.mu.Lock()
	if s.live[ls.identity.SessionID] == ls {
		delete(s.live, ls.identity.SessionID)
	}
	s.mu.Unlock()
	err = ls.retire(func() error { return s.store.Delete(ctx, ls.identity.SessionID) })
	if err != nil {
		return id, fmt.Errorf("delete session: %w", err)
	}
	return id, nil
}

func (s *Service) Status(ctx context.Context, meta SessionMeta) (*SessionState, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	ls, err := s.active(ctx, meta)
	if err != nil {
		return nil, err
	}
	return s.stateOf(ctx, ls), nil
}

// Select taps a square: pick up a piece, move onto a hinted square or place
// a resurrected piece.
func (s *Service) Select(ctx context.Context, meta SessionMeta, sq corerebirth.Square) (*SessionState, error) {
	return s.command(ctx, meta, Attempt{From: sq, To: sq}, func(g *corerebirth.Session) (corerebirth.Result, error) {
		return g.SelectSquare(sq)
	})
}

func (s *Service) Move(ctx context.Context, meta SessionMeta, from, to corerebirth.Square) (*SessionState, error) {
	return s.command(ctx, meta, Attempt{From: from, To: to}, func(g *corerebirth.Session) (corerebirth.Result, error) {
		return g.Move(from, to)
	})
}

func (s *Service) EnterResurrection(ctx context.Context, meta SessionMeta) (*SessionState, error) {
	return s.command(ctx, meta, noAttempt, (*corerebirth.Session).EnterResurrection)
}

func (s *Service) CancelResurrection(ctx context.Context, meta SessionMeta) (*SessionState, error) {
	return s.command(ctx, meta, noAttempt, (*corerebirth.Session).CancelResurrection)
}

func (s *Service) PickCaptured(ctx context.Context, meta SessionMeta, id uint64) (*SessionState, error) {
	return s.command(ctx, meta, Attempt{From: corerebirth.NoSquare, To: corerebirth.NoSquare, CaptureID: id}, func(g *corerebirth.Session) (corerebirth.Result, error) {
		return g.SelectCapturedPiece(id)
	})
}

func (s *Service) Place(ctx context.Context, meta SessionMeta, sq corerebirth.Square) (*SessionState, error) {
	return s.command(ctx, meta, Attempt{From: corerebirth.NoSquare, To: sq}, func(g *corerebirth.Session) (corerebirth.Result, error) {
		return g.PlaceResurrection(sq)
	})
}

func (s *Service) History(ctx context.Context, meta SessionMeta, limit int) ([]*domain.GameRecord, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	identity := deriveIdentity(meta)
	return s.repo.Recent(ctx, identity.PlayerHash, limit)
}

func (s *Service) Game(ctx context.Context, meta SessionMeta, id int64) (*domain.GameRecord, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	identity := deriveIdentity(meta)
	game, err := s.repo.Get(ctx, id, identity.PlayerHash)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	return game, nil
}

// Resume restores every stored session so pending opponent moves run
// without waiting for the player's next command. It returns how many
// sessions were restored.
func (s *Service) Resume(ctx context.Context) (int, error) {
	ids, err := s.store.IDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}
	n := 0
	for _, id := range ids {
		ls, err := s.lookup(ctx, sessionIdentity{SessionID: id})
		if err != nil {
			s.logger.Warn("rebirth_resume_failed", zap.String("session_id", id), zap.Error(err))
			continue
		}
		if ls != nil {
			n++
		}
	}
	s.logger.Info("rebirth_resume", zap.Int("sessions", n), zap.Int("indexed", len(ids)))
	return n, nil
}

// Close stops every live game's deferred opponent move.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ls := range s.live {
		_ = ls.retire(nil)
		delete(s.live, id)
	}
}

func (s *Service) command(ctx context.Context, meta SessionMeta, attempt Attempt, fn func(*corerebirth.Session) (corerebirth.Result, error)) (*SessionState, error) {
	if err := s.ensureRoomAllowed(meta); err != nil {
		return nil, err
	}
	ls, err := s.active(ctx, meta)
	if err != nil {
		return nil, err
	}

	res, err := fn(ls.game)
	if reason, ok := corerebirth.IsRejection(err); ok {
		state := s.stateOf(ctx, ls)
		state.Rejected = true
		state.Advisory = reason
		state.Attempt = &attempt
		return state, nil
	}
	if err != nil {
		return nil, err
	}

	switch res.Outcome {
	case corerebirth.OutcomeMoved:
		ls.setLastMove(&render.LastMove{From: res.From, To: res.To})
	case corerebirth.OutcomeResurrected:
		ls.setLastMove(&render.LastMove{From: corerebirth.NoSquare, To: res.To})
	}
	if err := s.persist(ctx, ls); err != nil {
		return nil, err
	}
	state := s.stateOf(ctx, ls)
	state.Result = &res
	state.Advisory = res.Advisory
	state.Attempt = &attempt
	return state, nil
}

// active returns the running game for meta or ErrSessionNotFound.
func (s *Service) active(ctx context.Context, meta SessionMeta) (*liveSession, error) {
	identity := deriveIdentity(meta)
	ls, err := s.lookup(ctx, identity)
	if err != nil {
		return nil, err
	}
	if ls == nil || !ls.game.Active() {
		return nil, ErrSessionNotFound
	}
	return ls, nil
}

// lookup finds the live session, restoring it from the store on first use.
func (s *Service) lookup(ctx context.Context, identity sessionIdentity) (*liveSession, error) {
	s.mu.Lock()
	ls, ok := s.live[identity.SessionID]
	s.mu.Unlock()
	if ok {
		return ls, nil
	}

	rec, err := s.store.Load(ctx, identity.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	meta := SessionMeta{SessionID: identity.SessionID, Room: rec.Room, Sender: rec.PlayerName}
	identity.RoomHash, identity.PlayerHash = rec.RoomHash, rec.PlayerHash
	restored := s.newLive(meta, identity, rec.SessionUUID, rec.StartedAt)
	restored.playerName = rec.PlayerName
	if err := restored.game.Restore(rec.Game); err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if other, ok := s.live[identity.SessionID]; ok {
		// lost the race to a concurrent restore
		restored.game.Reset()
		return other, nil
	}
	s.live[identity.SessionID] = restored
	return restored, nil
}

func (s *Service) newLive(meta SessionMeta, identity sessionIdentity, sessionUUID string, startedAt time.Time) *liveSession {
	ls := &liveSession{
		meta:        meta,
		identity:    identity,
		sessionUUID: sessionUUID,
		playerName:  normalizePlayerLabel(meta.Sender),
		startedAt:   startedAt,
	}
	var rng *rand.Rand
	if s.cfg.NewRand != nil {
		rng = s.cfg.NewRand()
	}
	ls.game = corerebirth.NewSession(corerebirth.Options{
		Weighting:     s.cfg.Weighting,
		OpponentDelay: s.cfg.OpponentDelay,
		Rand:          rng,
		Scheduler:     s.cfg.Scheduler,
		OnEvent:       func(e corerebirth.Event) { s.onGameEvent(ls, e) },
		Logger:        s.logger.With(zap.String("session_uuid", sessionUUID)),
	})
	return ls
}

// onGameEvent runs outside the game lock, on the scheduler goroutine for
// opponent events.
func (s *Service) onGameEvent(ls *liveSession, e corerebirth.Event) {
	switch e.Kind {
	case corerebirth.EventOpponentMoved:
		if e.Move != nil {
			ls.setLastMove(&render.LastMove{From: e.Move.From, To: e.Move.To})
		}
	case corerebirth.EventOpponentPassed:
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := s.persist(ctx, ls); err != nil {
		s.logger.Warn("rebirth_persist_failed", zap.String("session_uuid", ls.sessionUUID), zap.Error(err))
	}

	s.mu.Lock()
	n := s.notifier
	s.mu.Unlock()
	if n == nil {
		return
	}
	state := s.stateOf(ctx, ls)
	ev := e
	state.Event = &ev
	n.OpponentActed(ctx, ls.meta, state)
}

// persist saves the session unless it was retired; a save already under
// way finishes before retire proceeds.
func (s *Service) persist(ctx context.Context, ls *liveSession) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.retired {
		return nil
	}
	rec := &sessionstore.Record{
		SessionID:   ls.identity.SessionID,
		SessionUUID: ls.sessionUUID,
		RoomHash:    ls.identity.RoomHash,
		PlayerHash:  ls.identity.PlayerHash,
		PlayerName:  ls.playerName,
		Room:        ls.meta.Room,
		Game:        ls.game.Snapshot(),
		StartedAt:   ls.startedAt,
		UpdatedAt:   s.now().UTC(),
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// archive writes the game to history. Failures are logged, never returned,
// so a broken database cannot trap a player in a game.
func (s *Service) archive(ctx context.Context, ls *liveSession, reason string) int64 {
	log := ls.game.Log()
	if len(log) == 0 {
		return 0
	}
	_, whiteCaptures, _ := corerebirth.Counts(log, corerebirth.White)
	_, blackCaptures, _ := corerebirth.Counts(log, corerebirth.Black)
	_, _, resurrections := corerebirth.Counts(log, ls.game.PlayerColor())

	record := &domain.GameRecord{
		SessionUUID:   ls.sessionUUID,
		PlayerHash:    ls.identity.PlayerHash,
		RoomHash:      ls.identity.RoomHash,
		PlayerColor:   ls.game.PlayerColor(),
		Weighting:     ls.game.Weighting(),
		Plies:         ls.game.Ply(),
		WhiteCaptures: whiteCaptures,
		BlackCaptures: blackCaptures,
		Resurrections: resurrections,
		Log:           log,
		StartedAt:     ls.startedAt,
		EndedAt:       s.now().UTC(),
		EndReason:     reason,
	}
	id, err := s.repo.Insert(ctx, record)
	switch {
	case errors.Is(err, history.ErrDuplicate):
		s.logger.Info("rebirth_archive_duplicate", zap.String("session_uuid", ls.sessionUUID))
		return 0
	case err != nil:
		s.logger.Warn("rebirth_archive_failed", zap.String("session_uuid", ls.sessionUUID), zap.Error(err))
		return 0
	}
	s.logger.Info("rebirth_archive",
		zap.Int64("game_id", id),
		zap.String("session_uuid", ls.sessionUUID),
		zap.String("reason", reason),
		zap.Int("plies", record.Plies),
	)
	return id
}

// retire ends the game for good and runs cleanup, if any, with saves held off.
func (ls *liveSession) retire(cleanup func() error) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.retired = true
	ls.game.Reset()
	if cleanup == nil {
		return nil
	}
	return cleanup()
}

func (ls *liveSession) setLastMove(m *render.LastMove) {
	ls.mu.Lock()
	ls.lastMove = m
	ls.mu.Unlock()
}

func (ls *liveSession) getLastMove() *render.LastMove {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.lastMove == nil {
		return nil
	}
	m := *ls.lastMove
	return &m
}

func (s *Service) ensureRoomAllowed(meta SessionMeta) error {
	if len(s.allowedRooms) == 0 {
		return nil
	}

	room := strings.ToLower(strings.TrimSpace(meta.Room))
	if room == "" {
		room = "unknown-room"
	}

	if _, ok := s.allowedRooms[room]; ok {
		return nil
	}

	s.logger.Info("rebirth room access denied",
		zap.String("room", room),
		zap.String("sender", strings.TrimSpace(meta.Sender)),
	)
	return ErrRoomNotAllowed
}

func deriveIdentity(meta SessionMeta) sessionIdentity {
	sessionID := strings.ToLower(strings.TrimSpace(meta.SessionID))
	room := strings.ToLower(strings.TrimSpace(meta.Room))
	sender := strings.ToLower(strings.TrimSpace(meta.Sender))

	return sessionIdentity{
		SessionID:  sessionID,
		RoomHash:   hashString(room),
		PlayerHash: hashString(room + ":" + sender),
	}
}

func hashString(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

func normalizePlayerLabel(raw string) string {
	cleaned := strings.NewReplacer("\r", " ", "\n", " ").Replace(strings.TrimSpace(raw))
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	runes := []rune(cleaned)
	if len(runes) > playerLabelRuneLimit {
		return strings.TrimSpace(string(runes[:playerLabelRuneLimit])) + "..."
	}
	return cleaned
}
