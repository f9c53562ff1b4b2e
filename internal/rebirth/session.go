package rebirth

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultOpponentDelay = 250 * time.Millisecond

var (
	ErrInvalidColor  = errors.New("invalid color")
	ErrInvalidSquare = errors.New("square out of range")
)

// Rejection reasons double as message catalog keys.
const (
	ReasonNoGame              = "rejection.no_game"
	ReasonOpponentTurn        = "rejection.opponent_turn"
	ReasonEmptySquare         = "rejection.empty_square"
	ReasonNotYourPiece        = "rejection.not_your_piece"
	ReasonPoolEmpty           = "rejection.pool_empty"
	ReasonAlreadyResurrecting = "rejection.already_resurrecting"
	ReasonNotResurrecting     = "rejection.not_resurrecting"
	ReasonCaptureNotOwned     = "rejection.capture_not_owned"
	ReasonUnknownCapture      = "rejection.unknown_capture"
	ReasonNoCaptureSelected   = "rejection.no_capture_selected"
	ReasonSquareOccupied      = "rejection.square_occupied"
	ReasonNotAMove            = "rejection.not_a_move"
)

// Advisory keys attached to successful results.
const (
	AdvisoryPickCaptured = "advisory.pick_captured"
	AdvisoryPickTarget   = "advisory.pick_target"
)

// Rejection is a recoverable input error. The session is unchanged when one is returned.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return "rejected: " + r.Reason }

func reject(reason string) error { return &Rejection{Reason: reason} }

// IsRejection reports whether err is a *Rejection and returns its reason.
func IsRejection(err error) (string, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Reason, true
	}
	return "", false
}

type Outcome string

const (
	OutcomeSelected     Outcome = "selected"
	OutcomeCleared      Outcome = "cleared"
	OutcomeMoved        Outcome = "moved"
	OutcomeResurrecting Outcome = "resurrecting"
	OutcomePicked       Outcome = "picked"
	OutcomeResurrected  Outcome = "resurrected"
	OutcomeCancelled    Outcome = "cancelled"
)

// Result describes an accepted human action.
type Result struct {
	Outcome  Outcome
	From     Square
	To       Square
	Piece    *Piece
	Captured *CapturedPiece
	Advisory string
}

type EventKind string

const (
	EventStarted        EventKind = "started"
	EventReset          EventKind = "reset"
	EventTurn           EventKind = "turn"
	EventOpponentMoved  EventKind = "opponent_moved"
	EventOpponentPassed EventKind = "opponent_passed"
)

// Event is delivered to Options.OnEvent after the session lock is released.
type Event struct {
	Kind         EventKind
	Active       Color
	CanResurrect bool
	Move         *Candidate
	Piece        *Piece // the opponent's moving piece
	Captured     *CapturedPiece
	Ply          int
}

// Selection is the transient pick-up state of the human.
type Selection struct {
	Selected bool
	Square   Square
	Hints    MoveSet
}

type Options struct {
	Weighting     Weighting
	OpponentDelay time.Duration
	Rand          *rand.Rand
	Scheduler     Scheduler
	OnEvent       func(Event)
	Logger        *zap.Logger
}

// Session is one game between a human and the automated opponent. All
// methods are safe for concurrent use; they serialize on one lock, which the
// deferred opponent callback takes as well.
type Session struct {
	mu sync.Mutex

	board          Board
	pools          Pools
	player         Color
	active         Color
	selection      Selection
	resurrecting   bool
	pendingCapture uint64 // 0 when none; capture ids start at 1
	ply            int
	log            []LogEntry

	// generation changes on every start, reset and restore; a deferred
	// opponent move carries the value it was scheduled under.
	generation uint64
	timer      Stopper

	weighting Weighting
	delay     time.Duration
	rng       *rand.Rand
	scheduler Scheduler
	onEvent   func(Event)
	logger    *zap.Logger
	events    []Event
}

func NewSession(opts Options) *Session {
	w, ok := ParseWeighting(string(opts.Weighting))
	if !ok {
		w = DefaultWeighting
	}
	if opts.OpponentDelay <= 0 {
		opts.OpponentDelay = DefaultOpponentDelay
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TimerScheduler
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Session{
		active:    White,
		weighting: w,
		delay:     opts.OpponentDelay,
		rng:       opts.Rand,
		scheduler: opts.Scheduler,
		onEvent:   opts.OnEvent,
		logger:    opts.Logger,
	}
}

func (s *Session) lock() { s.mu.Lock() }

// unlock releases the lock and then delivers queued events, so handlers may
// call back into the session.
func (s *Session) unlock() {
	events := s.events
	s.events = nil
	fn := s.onEvent
	s.mu.Unlock()
	if fn == nil {
		return
	}
	for _, e := range events {
		fn(e)
	}
}

func (s *Session) emit(e Event) {
	e.Ply = s.ply
	s.events = append(s.events, e)
}

// Start discards any previous game and begins a new one with the human on
// the given color. White moves first, so a black human sees the opponent
// move right away.
func (s *Session) Start(human Color) error {
	if human != White && human != Black {
		return ErrInvalidColor
	}
	s.lock()
	defer s.unlock()

	s.clearGame()
	s.player = human
	s.board.Initialize()
	s.emit(Event{Kind: EventStarted, Active: s.active, CanResurrect: s.canResurrect()})
	s.logger.Info("rebirth_session_start", zap.String("player", human.String()), zap.String("weighting", string(s.weighting)))
	s.scheduleOpponent()
	return nil
}

// Reset returns to the "no active game" state.
func (s *Session) Reset() {
	s.lock()
	defer s.unlock()
	s.clearGame()
	s.emit(Event{Kind: EventReset, Active: s.active})
}

func (s *Session) clearGame() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.board = Board{}
	s.pools = Pools{}
	s.player = NoColor
	s.active = White
	s.resurrecting = false
	s.pendingCapture = 0
	s.ply = 0
	s.log = nil
	s.clearSelection()
}

func (s *Session) clearSelection() { s.selection = Selection{} }

func (s *Session) opponent() Color { return s.player.Opposite() }

func (s *Session) humanTurn() bool { return s.player != NoColor && s.active == s.player }

func (s *Session) canResurrect() bool {
	return s.humanTurn() && s.pools.Of(s.player).Len() > 0 && !s.resurrecting
}

// SelectSquare handles a tap on the board: place a resurrected piece while in
// resurrection mode, commit a move onto a hinted square, or (re)select one
// of the human's own pieces.
func (s *Session) SelectSquare(sq Square) (Result, error) {
	if !sq.Valid() {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidSquare, sq)
	}
	s.lock()
	defer s.unlock()

	if s.player == NoColor {
		return Result{}, reject(ReasonNoGame)
	}
	if !s.humanTurn() {
		return Result{}, reject(ReasonOpponentTurn)
	}
	if s.resurrecting {
		return s.place(sq)
	}

	if s.selection.Selected && s.selection.Hints.Contains(sq) {
		return s.commitMove(s.selection.Square, sq)
	}

	p := s.board.PieceAt(sq)
	if p == nil {
		if !s.selection.Selected {
			return Result{}, reject(ReasonEmptySquare)
		}
		s.clearSelection()
		return Result{Outcome: OutcomeCleared, To: sq}, nil
	}
	if p.Color != s.player {
		return Result{}, reject(ReasonNotYourPiece)
	}
	s.selection = Selection{Selected: true, Square: sq, Hints: LegalMoves(&s.board, sq)}
	pc := *p
	return Result{Outcome: OutcomeSelected, From: sq, Piece: &pc}, nil
}

func (s *Session) commitMove(from, to Square) (Result, error) {
	mover := *s.board.PieceAt(from)
	captured, err := Execute(&s.board, &s.pools, from, to)
	if err != nil {
		return Result{}, err
	}
	s.clearSelection()
	s.record(LogEntry{Color: mover.Color, Kind: kindFor(captured), From: from, To: to, Piece: mover, Captured: captured})
	s.switchTurn()
	return Result{Outcome: OutcomeMoved, From: from, To: to, Piece: &mover, Captured: captured}, nil
}

// Move commits from -> to in one step, ignoring any current selection.
// The destination must be one LegalMoves reports for the human's piece.
func (s *Session) Move(from, to Square) (Result, error) {
	if !from.Valid() || !to.Valid() {
		return Result{}, fmt.Errorf("%w: %d-%d", ErrInvalidSquare, from, to)
	}
	s.lock()
	defer s.unlock()

	switch {
	case s.player == NoColor:
		return Result{}, reject(ReasonNoGame)
	case !s.humanTurn():
		return Result{}, reject(ReasonOpponentTurn)
	case s.resurrecting:
		return Result{}, reject(ReasonAlreadyResurrecting)
	}
	p := s.board.PieceAt(from)
	if p == nil {
		return Result{}, reject(ReasonEmptySquare)
	}
	if p.Color != s.player {
		return Result{}, reject(ReasonNotYourPiece)
	}
	if !LegalMoves(&s.board, from).Contains(to) {
		return Result{}, reject(ReasonNotAMove)
	}
	return s.commitMove(from, to)
}

func kindFor(captured *CapturedPiece) ActionKind {
	if captured != nil {
		return ActionCapture
	}
	return ActionMove
}

// EnterResurrection switches the human into resurrection mode. It needs a
// game, the human's turn and a non-empty own pool.
func (s *Session) EnterResurrection() (Result, error) {
	s.lock()
	defer s.unlock()
	switch {
	case s.player == NoColor:
		return Result{}, reject(ReasonNoGame)
	case !s.humanTurn():
		return Result{}, reject(ReasonOpponentTurn)
	case s.resurrecting:
		return Result{}, reject(ReasonAlreadyResurrecting)
	case s.pools.Of(s.player).Len() == 0:
		return Result{}, reject(ReasonPoolEmpty)
	}
	s.clearSelection()
	s.resurrecting = true
	s.pendingCapture = 0
	return Result{Outcome: OutcomeResurrecting, Advisory: AdvisoryPickCaptured}, nil
}

// CancelResurrection leaves resurrection mode without consuming anything.
func (s *Session) CancelResurrection() (Result, error) {
	s.lock()
	defer s.unlock()
	if !s.resurrecting {
		return Result{}, reject(ReasonNotResurrecting)
	}
	s.resurrecting = false
	s.pendingCapture = 0
	s.clearSelection()
	return Result{Outcome: OutcomeCancelled}, nil
}

// SelectCapturedPiece designates the pool entry a placement will consume.
// Only entries of the human's own pool qualify.
func (s *Session) SelectCapturedPiece(id uint64) (Result, error) {
	s.lock()
	defer s.unlock()
	switch {
	case s.player == NoColor:
		return Result{}, reject(ReasonNoGame)
	case !s.resurrecting:
		return Result{}, reject(ReasonNotResurrecting)
	case !s.humanTurn():
		return Result{}, reject(ReasonOpponentTurn)
	}
	e, ok := s.pools.Of(s.player).Find(id)
	if !ok {
		if _, theirs := s.pools.Of(s.opponent()).Find(id); theirs {
			return Result{}, reject(ReasonCaptureNotOwned)
		}
		return Result{}, reject(ReasonUnknownCapture)
	}
	s.pendingCapture = e.ID
	return Result{Outcome: OutcomePicked, Captured: &e, Advisory: AdvisoryPickTarget}, nil
}

// PlaceResurrection puts a freshly drawn piece of the human's color on an
// empty square, consuming the designated pool entry and the turn.
func (s *Session) PlaceResurrection(sq Square) (Result, error) {
	if !sq.Valid() {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidSquare, sq)
	}
	s.lock()
	defer s.unlock()
	if s.player == NoColor {
		return Result{}, reject(ReasonNoGame)
	}
	if !s.humanTurn() {
		return Result{}, reject(ReasonOpponentTurn)
	}
	return s.place(sq)
}

func (s *Session) place(sq Square) (Result, error) {
	if !s.resurrecting {
		return Result{}, reject(ReasonNotResurrecting)
	}
	if s.pendingCapture == 0 {
		return Result{}, reject(ReasonNoCaptureSelected)
	}
	if s.board.PieceAt(sq) != nil {
		return Result{}, reject(ReasonSquareOccupied)
	}
	pool := s.pools.Of(s.player)
	source, ok := pool.Find(s.pendingCapture)
	if !ok {
		return Result{}, fmt.Errorf("%w: id=%d", ErrUnknownCapture, s.pendingCapture)
	}

	born := Piece{Type: DrawType(s.weighting, s.rng), Color: s.player}
	s.board.Place(sq, born)
	if err := pool.Remove(source.ID); err != nil {
		return Result{}, err
	}
	s.resurrecting = false
	s.pendingCapture = 0
	s.clearSelection()
	s.record(LogEntry{Color: s.player, Kind: ActionResurrect, From: NoSquare, To: sq, Piece: born, Consumed: source.ID})
	s.logger.Info("rebirth_resurrect",
		zap.String("player", s.player.String()),
		zap.Uint64("consumed_id", source.ID),
		zap.String("consumed", source.Piece.Type.String()),
		zap.String("born", born.Type.String()),
		zap.Int("square", int(sq)),
	)
	s.switchTurn()
	return Result{Outcome: OutcomeResurrected, To: sq, Piece: &born, Captured: &source}, nil
}

func (s *Session) record(e LogEntry) {
	s.ply++
	e.Ply = s.ply
	s.log = append(s.log, e)
}

// switchTurn flips the active color, announces it and wakes the opponent if it is now to move.
func (s *Session) switchTurn() {
	s.active = s.active.Opposite()
	s.emit(Event{Kind: EventTurn, Active: s.active, CanResurrect: s.canResurrect()})
	s.scheduleOpponent()
}

func (s *Session) scheduleOpponent() {
	if s.player == NoColor || s.active != s.opponent() || s.resurrecting {
		return
	}
	gen := s.generation
	s.timer = s.scheduler.AfterFunc(s.delay, func() { s.opponentMove(gen) })
}

// opponentMove runs on the scheduler. The state it was scheduled for may be
// gone by now, so every guard is checked again before acting.
func (s *Session) opponentMove(gen uint64) {
	s.lock()
	defer s.unlock()
	if gen != s.generation || s.player == NoColor || s.active != s.opponent() || s.resurrecting {
		return
	}
	s.timer = nil
	color := s.opponent()
	cand, ok := ChooseMove(&s.board, color, s.rng)
	if !ok {
		s.logger.Info("rebirth_opponent_pass", zap.String("color", color.String()))
		s.emit(Event{Kind: EventOpponentPassed, Active: s.active})
		return
	}
	mover := *s.board.PieceAt(cand.From)
	captured, err := Execute(&s.board, &s.pools, cand.From, cand.To)
	if err != nil {
		s.logger.Error("rebirth_opponent_move_error", zap.Error(err))
		return
	}
	s.clearSelection()
	s.record(LogEntry{Color: color, Kind: kindFor(captured), From: cand.From, To: cand.To, Piece: mover, Captured: captured})
	s.logger.Debug("rebirth_opponent_move",
		zap.String("color", color.String()),
		zap.Int("from", int(cand.From)),
		zap.Int("to", int(cand.To)),
		zap.Bool("capture", cand.IsCapture),
	)
	mv := cand
	s.emit(Event{Kind: EventOpponentMoved, Active: s.active, Move: &mv, Piece: &mover, Captured: captured})
	s.switchTurn()
}

// View is a consistent copy of everything a board display needs.
type View struct {
	Board          *Board
	PlayerColor    Color
	ActiveColor    Color
	Weighting      Weighting
	Ply            int
	White          []CapturedPiece
	Black          []CapturedPiece
	Selection      Selection
	CanResurrect   bool
	InResurrection bool
	PendingCapture *CapturedPiece
}

// View reads the whole display state under one lock, so no opponent move
// can land halfway through.
func (s *Session) View() View {
	s.lock()
	defer s.unlock()
	v := View{
		Board:          s.board.Clone(),
		PlayerColor:    s.player,
		ActiveColor:    s.active,
		Weighting:      s.weighting,
		Ply:            s.ply,
		White:          s.pools.White.Entries(),
		Black:          s.pools.Black.Entries(),
		Selection:      s.selection,
		CanResurrect:   s.canResurrect(),
		InResurrection: s.resurrecting,
	}
	if s.pendingCapture != 0 {
		if p, ok := s.pools.Of(s.player).Find(s.pendingCapture); ok {
			v.PendingCapture = &p
		}
	}
	return v
}

// Board returns a copy of the current board.
func (s *Session) Board() *Board {
	s.lock()
	defer s.unlock()
	return s.board.Clone()
}

// Active reports whether a game is in progress.
func (s *Session) Active() bool {
	s.lock()
	defer s.unlock()
	return s.player != NoColor
}

func (s *Session) ActiveColor() Color {
	s.lock()
	defer s.unlock()
	return s.active
}

func (s *Session) PlayerColor() Color {
	s.lock()
	defer s.unlock()
	return s.player
}

func (s *Session) OpponentColor() Color {
	s.lock()
	defer s.unlock()
	return s.opponent()
}

// Captured returns the pool of pieces of color c that have been taken.
func (s *Session) Captured(c Color) []CapturedPiece {
	s.lock()
	defer s.unlock()
	return s.pools.Of(c).Entries()
}

func (s *Session) Selection() Selection {
	s.lock()
	defer s.unlock()
	return s.selection
}

// CanResurrect is true when the human could enter resurrection mode right now.
func (s *Session) CanResurrect() bool {
	s.lock()
	defer s.unlock()
	return s.canResurrect()
}

func (s *Session) InResurrection() bool {
	s.lock()
	defer s.unlock()
	return s.resurrecting
}

// PendingCapture returns the designated pool entry, if any.
func (s *Session) PendingCapture() (CapturedPiece, bool) {
	s.lock()
	defer s.unlock()
	if s.pendingCapture == 0 {
		return CapturedPiece{}, false
	}
	return s.pools.Of(s.player).Find(s.pendingCapture)
}

func (s *Session) Ply() int {
	s.lock()
	defer s.unlock()
	return s.ply
}

func (s *Session) Weighting() Weighting {
	s.lock()
	defer s.unlock()
	return s.weighting
}

// Log returns a copy of the committed actions.
func (s *Session) Log() []LogEntry {
	s.lock()
	defer s.unlock()
	return append([]LogEntry(nil), s.log...)
}
