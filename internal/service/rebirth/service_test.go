package rebirth

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/park285/rebirth-chess-bot/internal/domain"
	"github.com/park285/rebirth-chess-bot/internal/history"
	corerebirth "github.com/park285/rebirth-chess-bot/internal/rebirth"
	"github.com/park285/rebirth-chess-bot/internal/render"
	"github.com/park285/rebirth-chess-bot/internal/sessionstore"
)

type stubRenderer struct {
	calls int
	last  render.RenderOptions
}

func (r *stubRenderer) RenderPNG(_ context.Context, _ *corerebirth.Board, opts render.RenderOptions) ([]byte, error) {
	r.calls++
	r.last = opts
	return []byte("png"), nil
}

type harness struct {
	svc      *Service
	store    *sessionstore.MemoryStore
	repo     history.Repository
	sched    *corerebirth.ManualScheduler
	renderer *stubRenderer
	notified []*SessionState
}

func newHarness(t *testing.T, store *sessionstore.MemoryStore, cfg Config) *harness {
	t.Helper()
	if store == nil {
		store = sessionstore.NewMemoryStore(0)
	}
	h := &harness{
		store:    store,
		repo:     history.NewMemoryRepository(),
		sched:    &corerebirth.ManualScheduler{},
		renderer: &stubRenderer{},
	}
	cfg.Scheduler = h.sched
	seed := int64(0)
	cfg.NewRand = func() *rand.Rand {
		seed++
		return rand.New(rand.NewSource(seed))
	}
	svc, err := NewService(h.store, h.repo, h.renderer, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	svc.SetNotifier(NotifierFunc(func(_ context.Context, _ SessionMeta, st *SessionState) {
		h.notified = append(h.notified, st)
	}))
	h.svc = svc
	t.Cleanup(svc.Close)
	return h
}

var alice = SessionMeta{SessionID: "Room-1:Alice", Room: "Room-1", Sender: "Alice"}

func sq(rank, file int) corerebirth.Square { return corerebirth.SquareAt(rank, file) }

func TestNewServiceValidatesDeps(t *testing.T) {
	store := sessionstore.NewMemoryStore(0)
	repo := history.NewMemoryRepository()
	r := &stubRenderer{}
	if _, err := NewService(nil, repo, r, Config{}, nil); err == nil {
		t.Fatalf("nil store accepted")
	}
	if _, err := NewService(store, nil, r, Config{}, nil); err == nil {
		t.Fatalf("nil repo accepted")
	}
	if _, err := NewService(store, repo, nil, Config{}, nil); err == nil {
		t.Fatalf("nil renderer accepted")
	}
	if _, err := NewService(store, repo, r, Config{Weighting: "loaded-dice"}, nil); err == nil {
		t.Fatalf("unknown weighting accepted")
	}
	svc, err := NewService(store, repo, r, Config{HistoryLimit: 500}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if svc.cfg.HistoryLimit != 10 || svc.cfg.Weighting != corerebirth.DefaultWeighting {
		t.Fatalf("defaults not applied: %+v", svc.cfg)
	}
}

func TestStartAndMove(t *testing.T) {
	h := newHarness(t, nil, Config{})
	ctx := context.Background()

	state, err := h.svc.Start(ctx, alice, corerebirth.White, false)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if state.PlayerColor != corerebirth.White || !state.PlayerTurn() || state.SessionUUID == "" {
		t.Fatalf("start state = %+v", state)
	}
	if !strings.HasPrefix(state.FEN, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w") {
		t.Fatalf("FEN = %q", state.FEN)
	}
	if string(state.BoardImage) != "png" || h.renderer.last.Flip {
		t.Fatalf("board image not attached or flipped")
	}
	if rec, _ := h.store.Load(ctx, alice.SessionID); rec == nil || rec.SessionUUID != state.SessionUUID {
		t.Fatalf("session not persisted: %+v", rec)
	}

	state, err = h.svc.Move(ctx, alice, sq(6, 4), sq(4, 4))
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if state.Result == nil || state.Result.Outcome != corerebirth.OutcomeMoved || state.ActiveColor != corerebirth.Black {
		t.Fatalf("move state = %+v", state)
	}
	if state.LastMove == nil || state.LastMove.To != sq(4, 4) {
		t.Fatalf("last move = %+v", state.LastMove)
	}

	if h.sched.RunAll() != 1 {
		t.Fatalf("opponent move not scheduled")
	}
	if len(h.notified) != 1 {
		t.Fatalf("notified %d times", len(h.notified))
	}
	n := h.notified[0]
	if n.Event == nil || n.Event.Kind != corerebirth.EventOpponentMoved || n.Ply != 2 || !n.PlayerTurn() {
		t.Fatalf("notification = %+v", n)
	}
	if n.LastMove == nil || n.LastMove.From != n.Event.Move.From {
		t.Fatalf("opponent last move not tracked: %+v", n.LastMove)
	}
	rec, _ := h.store.Load(ctx, alice.SessionID)
	if rec.Game.Ply != 2 {
		t.Fatalf("opponent move not persisted: ply %d", rec.Game.Ply)
	}
}

func TestStartInProgressAndForce(t *testing.T) {
	h := newHarness(t, nil, Config{})
	ctx := context.Background()

	first, err := h.svc.Start(ctx, alice, corerebirth.White, false)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.svc.Move(ctx, alice, sq(6, 4), sq(4, 4)); err != nil {
		t.Fatalf("Move: %v", err)
	}

	again, err := h.svc.Start(ctx, alice, corerebirth.Black, false)
	if !errors.Is(err, ErrSessionInProgress) {
		t.Fatalf("second Start err = %v", err)
	}
	if again == nil || again.SessionUUID != first.SessionUUID || again.PlayerColor != corerebirth.White {
		t.Fatalf("in-progress state = %+v", again)
	}

	replaced, err := h.svc.Start(ctx, alice, corerebirth.Black, true)
	if err != nil {
		t.Fatalf("forced Start: %v", err)
	}
	if replaced.SessionUUID == first.SessionUUID || replaced.PlayerColor != corerebirth.Black || !h.renderer.last.Flip {
		t.Fatalf("replaced state = %+v", replaced)
	}
	games, _ := h.svc.History(ctx, alice, 0)
	if len(games) != 1 || games[0].EndReason != domain.EndReasonReplaced || games[0].SessionUUID != first.SessionUUID {
		t.Fatalf("history = %+v", games)
	}

	// the stale opponent reply of the first game is queued ahead of the new one
	h.sched.RunAll()
	st, err := h.svc.Status(ctx, alice)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Ply != 1 || !st.PlayerTurn() {
		t.Fatalf("after replace ply=%d turn=%v", st.Ply, st.ActiveColor)
	}

	if _, err := h.svc.Start(ctx, alice, corerebirth.NoColor, true); !errors.Is(err, ErrInvalidColor) {
		t.Fatalf("NoColor start err = %v", err)
	}
}

func TestRejectionIsAdvisory(t *testing.T) {
	h := newHarness(t, nil, Config{})
	ctx := context.Background()
	if _, err := h.svc.Start(ctx, alice, corerebirth.White, false); err != nil {
		t.Fatalf("Start: %v", err)
	}

	st, err := h.svc.Select(ctx, alice, sq(4, 4))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !st.Rejected || st.Advisory != corerebirth.ReasonEmptySquare || st.Ply != 0 {
		t.Fatalf("state = %+v", st)
	}

	st, _ = h.svc.EnterResurrection(ctx, alice)
	if !st.Rejected || st.Advisory != corerebirth.ReasonPoolEmpty {
		t.Fatalf("resurrection with empty pool = %+v", st)
	}

	st, _ = h.svc.Select(ctx, alice, sq(6, 3))
	if st.Rejected || !st.Selection.Selected || st.Selection.Hints.Moves.Len() != 2 {
		t.Fatalf("selection = %+v", st.Selection)
	}
	if h.renderer.last.Selected == nil || *h.renderer.last.Selected != sq(6, 3) {
		t.Fatalf("selection not rendered")
	}

	if _, err := h.svc.Select(ctx, alice, corerebirth.Square(64)); !errors.Is(err, ErrInvalidSquare) {
		t.Fatalf("invalid square err = %v", err)
	}
}

func TestCommandsWithoutSession(t *testing.T) {
	h := newHarness(t, nil, Config{})
	ctx := context.Background()
	if _, err := h.svc.Status(ctx, alice); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Status err = %v", err)
	}
	if _, err := h.svc.Move(ctx, alice, sq(6, 4), sq(4, 4)); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Move err = %v", err)
	}
	if _, err := h.svc.Reset(ctx, alice); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Reset err = %v", err)
	}
}

func TestResetArchivesGame(t *testing.T) {
	h := newHarness(t, nil, Config{})
	ctx := context.Background()
	if _, err := h.svc.Start(ctx, alice, corerebirth.White, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.svc.Move(ctx, alice, sq(6, 4), sq(4, 4)); err != nil {
		t.Fatalf("Move: %v", err)
	}
	h.sched.RunAll()

	id, err := h.svc.Reset(ctx, alice)
	if err != nil || id == 0 {
		t.Fatalf("Reset = %d, %v", id, err)
	}
	if _, err := h.svc.Status(ctx, alice); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("status after reset: %v", err)
	}
	if rec, _ := h.store.Load(ctx, alice.SessionID); rec != nil {
		t.Fatalf("store still holds the session")
	}

	game, err := h.svc.Game(ctx, alice, id)
	if err != nil {
		t.Fatalf("Game: %v", err)
	}
	if game.Plies != 2 || len(game.Log) != 2 || game.PlayerColor != corerebirth.White || game.EndReason != domain.EndReasonReset {
		t.Fatalf("record = %+v", game)
	}
	bob := SessionMeta{SessionID: "room-1:bob", Room: "Room-1", Sender: "Bob"}
	if _, err := h.svc.Game(ctx, bob, id); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("foreign game lookup err = %v", err)
	}

	// an untouched game leaves no history
	if _, err := h.svc.Start(ctx, alice, corerebirth.White, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if id, err := h.svc.Reset(ctx, alice); err != nil || id != 0 {
		t.Fatalf("empty Reset = %d, %v", id, err)
	}
}

func TestResurrectionThroughService(t *testing.T) {
	store := sessionstore.NewMemoryStore(0)
	snap := corerebirth.Snapshot{
		Version:     corerebirth.SnapshotVersion,
		PlayerColor: corerebirth.White,
		ActiveColor: corerebirth.White,
		White:       []corerebirth.CapturedPiece{{ID: 1, Piece: corerebirth.Piece{Type: corerebirth.Pawn, Color: corerebirth.White}}},
		Black:       []corerebirth.CapturedPiece{{ID: 2, Piece: corerebirth.Piece{Type: corerebirth.Rook, Color: corerebirth.Black}}},
		Seq:         2,
		Weighting:   corerebirth.WeightingBag,
	}
	snap.Board.Place(sq(7, 4), corerebirth.Piece{Type: corerebirth.King, Color: corerebirth.White})
	snap.Board.Place(sq(0, 4), corerebirth.Piece{Type: corerebirth.King, Color: corerebirth.Black})
	identity := deriveIdentity(alice)
	if err := store.Save(context.Background(), &sessionstore.Record{
		SessionID: identity.SessionID, SessionUUID: "restored", RoomHash: identity.RoomHash,
		PlayerHash: identity.PlayerHash, PlayerName: "Alice", Room: alice.Room, Game: snap,
	}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	h := newHarness(t, store, Config{})
	ctx := context.Background()

	st, err := h.svc.EnterResurrection(ctx, alice)
	if err != nil || st.Rejected || !st.InResurrection || st.Advisory != corerebirth.AdvisoryPickCaptured {
		t.Fatalf("enter = %+v, %v", st, err)
	}
	st, _ = h.svc.PickCaptured(ctx, alice, 2)
	if !st.Rejected || st.Advisory != corerebirth.ReasonCaptureNotOwned {
		t.Fatalf("pick foreign = %+v", st)
	}
	st, _ = h.svc.PickCaptured(ctx, alice, 1)
	if st.Rejected || st.PendingCapture == nil || st.PendingCapture.ID != 1 || h.renderer.last.PendingCapture != 1 {
		t.Fatalf("pick = %+v", st)
	}
	st, _ = h.svc.Place(ctx, alice, sq(7, 4))
	if !st.Rejected || st.Advisory != corerebirth.ReasonSquareOccupied {
		t.Fatalf("place on occupied = %+v", st)
	}

	st, err = h.svc.Place(ctx, alice, sq(4, 4))
	if err != nil || st.Result == nil || st.Result.Outcome != corerebirth.OutcomeResurrected {
		t.Fatalf("place = %+v, %v", st, err)
	}
	if len(st.WhitePool) != 0 || st.ActiveColor != corerebirth.Black || st.Ply != 1 {
		t.Fatalf("after place pool=%v active=%v ply=%d", st.WhitePool, st.ActiveColor, st.Ply)
	}
	if st.LastMove == nil || st.LastMove.From != corerebirth.NoSquare || st.LastMove.To != sq(4, 4) {
		t.Fatalf("last move = %+v", st.LastMove)
	}

	st, _ = h.svc.Start(ctx, alice, corerebirth.White, false)
	if st.SessionUUID != "restored" {
		t.Fatalf("restored uuid lost: %q", st.SessionUUID)
	}
}

func TestCancelResurrectionThroughService(t *testing.T) {
	store := sessionstore.NewMemoryStore(0)
	snap := corerebirth.Snapshot{
		Version:     corerebirth.SnapshotVersion,
		PlayerColor: corerebirth.White,
		ActiveColor: corerebirth.White,
		White:       []corerebirth.CapturedPiece{{ID: 1, Piece: corerebirth.Piece{Type: corerebirth.Queen, Color: corerebirth.White}}},
		Seq:         1,
	}
	snap.Board.Place(sq(7, 4), corerebirth.Piece{Type: corerebirth.King, Color: corerebirth.White})
	identity := deriveIdentity(alice)
	_ = store.Save(context.Background(), &sessionstore.Record{SessionID: identity.SessionID, SessionUUID: "c", Game: snap})

	h := newHarness(t, store, Config{})
	ctx := context.Background()
	if st, _ := h.svc.EnterResurrection(ctx, alice); !st.InResurrection {
		t.Fatalf("not resurrecting")
	}
	st, err := h.svc.CancelResurrection(ctx, alice)
	if err != nil || st.InResurrection || len(st.WhitePool) != 1 || !st.PlayerTurn() {
		t.Fatalf("cancel = %+v, %v", st, err)
	}
}

func TestRestoreAcrossInstances(t *testing.T) {
	store := sessionstore.NewMemoryStore(0)
	ctx := context.Background()

	first := newHarness(t, store, Config{})
	if _, err := first.svc.Start(ctx, alice, corerebirth.Black, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if first.sched.Pending() != 1 {
		t.Fatalf("opponent not scheduled")
	}

	// a restart: the new process resumes the pending opponent move
	second := newHarness(t, store, Config{})
	n, err := second.svc.Resume(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Resume = %d, %v", n, err)
	}
	if second.sched.Pending() != 1 {
		t.Fatalf("restored opponent not scheduled: %d", second.sched.Pending())
	}
	second.sched.RunAll()
	if len(second.notified) != 1 {
		t.Fatalf("restored opponent did not notify")
	}
	if second.notified[0].PlayerName != "Alice" {
		t.Fatalf("player name lost: %q", second.notified[0].PlayerName)
	}
	st, err := second.svc.Status(ctx, alice)
	if err != nil || st.Ply != 1 || !st.PlayerTurn() {
		t.Fatalf("restored status = %+v, %v", st, err)
	}
}

func TestRoomFilter(t *testing.T) {
	h := newHarness(t, nil, Config{AllowedRooms: []string{" Room-1 "}})
	ctx := context.Background()
	if _, err := h.svc.Start(ctx, alice, corerebirth.White, false); err != nil {
		t.Fatalf("allowed room rejected: %v", err)
	}
	other := SessionMeta{SessionID: "x:y", Room: "elsewhere", Sender: "y"}
	if _, err := h.svc.Start(ctx, other, corerebirth.White, false); !errors.Is(err, ErrRoomNotAllowed) {
		t.Fatalf("Start err = %v", err)
	}
	if _, err := h.svc.History(ctx, other, 5); !errors.Is(err, ErrRoomNotAllowed) {
		t.Fatalf("History err = %v", err)
	}
}

func TestDeriveIdentityHashes(t *testing.T) {
	id := deriveIdentity(SessionMeta{SessionID: " Room:Alice ", Room: "Room", Sender: "Alice"})
	if id.SessionID != "room:alice" {
		t.Fatalf("session id = %q", id.SessionID)
	}
	if len(id.RoomHash) != 64 || len(id.PlayerHash) != 64 || id.RoomHash == id.PlayerHash {
		t.Fatalf("hashes = %q %q", id.RoomHash, id.PlayerHash)
	}
	if strings.Contains(id.PlayerHash, "alice") {
		t.Fatalf("raw sender in hash")
	}
	if got := normalizePlayerLabel("  a\nb   c "); got != "a b c" {
		t.Fatalf("label = %q", got)
	}
	if got := normalizePlayerLabel(strings.Repeat("가", 30)); got != strings.Repeat("가", 24)+"..." {
		t.Fatalf("long label = %q", got)
	}
}

func TestRealRendererProducesPNG(t *testing.T) {
	svc, err := NewService(sessionstore.NewMemoryStore(0), history.NewMemoryRepository(), render.NewSVGBoardRenderer(),
		Config{Scheduler: &corerebirth.ManualScheduler{}}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	defer svc.Close()
	st, err := svc.Start(context.Background(), alice, corerebirth.White, false)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(st.BoardImage)); err != nil {
		t.Fatalf("board image: %v", err)
	}
}

// gatedStore holds selected Save and Load calls so tests can interleave
// them with other commands.
type gatedStore struct {
	sessionstore.Store

	mu          sync.Mutex
	holdSave    bool
	saveEntered chan struct{}
	saveRelease chan struct{}
	loads       *sync.WaitGroup
	loadsLeft   int
}

// holdNextSave makes the next Save block until the returned release is closed.
func (g *gatedStore) holdNextSave() (entered <-chan struct{}, release chan<- struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.holdSave = true
	g.saveEntered = make(chan struct{})
	g.saveRelease = make(chan struct{})
	return g.saveEntered, g.saveRelease
}

// meetLoads makes the next n Loads wait for each other before reading.
func (g *gatedStore) meetLoads(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loads = &sync.WaitGroup{}
	g.loads.Add(n)
	g.loadsLeft = n
}

func (g *gatedStore) Save(ctx context.Context, rec *sessionstore.Record) error {
	g.mu.Lock()
	hold, entered, release := g.holdSave, g.saveEntered, g.saveRelease
	g.holdSave = false
	g.mu.Unlock()
	if hold {
		close(entered)
		<-release
	}
	return g.Store.Save(ctx, rec)
}

func (g *gatedStore) Load(ctx context.Context, sessionID string) (*sessionstore.Record, error) {
	g.mu.Lock()
	wg := g.loads
	if wg != nil {
		g.loadsLeft--
		if g.loadsLeft == 0 {
			g.loads = nil
		}
	}
	g.mu.Unlock()
	if wg != nil {
		wg.Done()
		wg.Wait()
	}
	return g.Store.Load(ctx, sessionID)
}

// pngRenderer is safe for concurrent use, unlike stubRenderer.
type pngRenderer struct{}

func (pngRenderer) RenderPNG(context.Context, *corerebirth.Board, render.RenderOptions) ([]byte, error) {
	return []byte("png"), nil
}

func newGatedService(t *testing.T, store *gatedStore) (*Service, *corerebirth.ManualScheduler) {
	t.Helper()
	sched := &corerebirth.ManualScheduler{}
	svc, err := NewService(store, history.NewMemoryRepository(), pngRenderer{}, Config{
		Scheduler: sched,
		NewRand:   func() *rand.Rand { return rand.New(rand.NewSource(5)) },
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc, sched
}

func TestResetWinsOverInFlightSave(t *testing.T) {
	store := &gatedStore{Store: sessionstore.NewMemoryStore(0)}
	svc, sched := newGatedService(t, store)
	ctx := context.Background()

	if _, err := svc.Start(ctx, alice, corerebirth.White, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.Move(ctx, alice, sq(6, 4), sq(4, 4)); err != nil {
		t.Fatalf("Move: %v", err)
	}

	entered, release := store.holdNextSave()
	opponentDone := make(chan struct{})
	go func() {
		defer close(opponentDone)
		sched.Run()
	}()
	<-entered

	resetDone := make(chan error, 1)
	go func() {
		_, err := svc.Reset(ctx, alice)
		resetDone <- err
	}()
	// let Reset reach the session before the opponent's save lands
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-opponentDone
	if err := <-resetDone; err != nil {
		t.Fatalf("Reset: %v", err)
	}

	if rec, _ := store.Load(ctx, alice.SessionID); rec != nil {
		t.Fatalf("store after reset holds record: player=%v active=%v ply=%d",
			rec.Game.PlayerColor, rec.Game.ActiveColor, rec.Game.Ply)
	}
	restarted, _ := newGatedService(t, store)
	if st, err := restarted.Status(ctx, alice); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("reset game came back after restart: %+v, %v", st, err)
	}
	if st, err := svc.Status(ctx, alice); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("reset game came back: %+v, %v", st, err)
	}
}

func TestConcurrentStartKeepsOneGame(t *testing.T) {
	store := &gatedStore{Store: sessionstore.NewMemoryStore(0)}
	svc, _ := newGatedService(t, store)
	ctx := context.Background()
	store.meetLoads(2)

	type outcome struct {
		state *SessionState
		err   error
	}
	results := make(chan outcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			st, err := svc.Start(ctx, alice, corerebirth.White, false)
			results <- outcome{st, err}
		}()
	}
	a, b := <-results, <-results
	if a.err != nil {
		a, b = b, a
	}
	if a.err != nil || !errors.Is(b.err, ErrSessionInProgress) {
		t.Fatalf("start errors = %v / %v", a.err, b.err)
	}
	if b.state == nil || b.state.SessionUUID != a.state.SessionUUID {
		t.Fatalf("loser did not see the winning game: %+v", b.state)
	}

	svc.mu.Lock()
	live := svc.live[alice.SessionID]
	svc.mu.Unlock()
	if live == nil || live.sessionUUID != a.state.SessionUUID {
		t.Fatalf("live session is not the winner")
	}
	if rec, _ := store.Load(ctx, alice.SessionID); rec == nil || rec.SessionUUID != a.state.SessionUUID {
		t.Fatalf("stored session = %+v", rec)
	}
}

func TestCloseDropsLateSaves(t *testing.T) {
	store := &gatedStore{Store: sessionstore.NewMemoryStore(0)}
	svc, _ := newGatedService(t, store)
	ctx := context.Background()
	if _, err := svc.Start(ctx, alice, corerebirth.White, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	svc.mu.Lock()
	ls := svc.live[alice.SessionID]
	svc.mu.Unlock()

	svc.Close()
	if err := svc.persist(ctx, ls); err != nil {
		t.Fatalf("persist: %v", err)
	}
	rec, _ := store.Load(ctx, alice.SessionID)
	if rec == nil || rec.Game.PlayerColor != corerebirth.White {
		t.Fatalf("shutdown overwrote the stored game: %+v", rec)
	}
}
