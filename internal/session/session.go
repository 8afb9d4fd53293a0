package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chessdream/chessd/internal/chess"
)

// State is the lifecycle stage of a session.
type State string

const (
	StateWaiting    State = "waiting"
	StateInProgress State = "in_progress"
	StateTerminated State = "terminated"
)

// MoveOutcome is what a successful SubmitMove reports back to the mover.
type MoveOutcome struct {
	chess.MoveResult
	Status chess.GameStatus `json:"status"`
	Clocks ClockView        `json:"clocks"`
	Ply    int              `json:"ply"`
}

// Session is the state machine for one live game. All mutable state sits
// behind mu; observers are notified only after mu has been released.
type Session struct {
	id      string
	players [2]string
	tc      chess.TimeControl

	engine    *chess.Engine
	clocks    [2]Clock
	result    chess.GameResult
	drawOffer *chess.Color

	createdAt time.Time
	updatedAt time.Time
	version   uint64

	time     TimeSource
	timer    Timer
	timerGen uint64
	observer Observer
	logger   zerolog.Logger

	// Notices queue up under mu and are drained by one goroutine at a time,
	// so observers hear changes in the order they happened.
	pending  []notice
	draining bool

	mu sync.Mutex
}

// Option configures a session.
type Option func(*Session)

// WithObserver sets who hears about moves and terminations.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithTimeSource replaces the wall clock, mostly for tests.
func WithTimeSource(ts TimeSource) Option {
	return func(s *Session) {
		if ts != nil {
			s.time = ts
		}
	}
}

// New creates an in-progress session between two paired players. fen may be
// empty for the standard starting position.
func New(id, white, black string, tc chess.TimeControl, fen string, opts ...Option) (*Session, error) {
	if white == "" || black == "" || white == black {
		return nil, fmt.Errorf("%w: white %q, black %q", ErrInvalidPlayers, white, black)
	}
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	engine := chess.NewEngine()
	if fen != "" {
		var err error
		if engine, err = chess.NewEngineFromFEN(fen); err != nil {
			return nil, err
		}
	}

	s := newSession(id, white, black, tc, engine, opts)
	now := s.time.Now()
	s.createdAt, s.updatedAt = now, now
	for i := range s.clocks {
		s.clocks[i] = Clock{Remaining: tc.InitialDuration(), LastUpdate: now}
	}
	s.result = engine.Result()
	if !s.result.IsOngoing() {
		engine.Finish()
	}
	return s, nil
}

func newSession(id, white, black string, tc chess.TimeControl, engine *chess.Engine, opts []Option) *Session {
	s := &Session{
		id:       id,
		players:  [2]string{white, black},
		tc:       tc,
		engine:   engine,
		time:     SystemTime,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.With().Str("component", "session").Str("gameID", id).Logger()
	return s
}

// ID returns the game id.
func (s *Session) ID() string { return s.id }

// Players returns the white and black player ids.
func (s *Session) Players() (white, black string) {
	return s.players[chess.White], s.players[chess.Black]
}

func (s *Session) TimeControl() chess.TimeControl { return s.tc }

// Start arms the flag timer for the side to move. Sessions are usable
// without it; timeouts are then only noticed on the next submission.
func (s *Session) Start() {
	s.mu.Lock()
	s.armTimerLocked()
	s.mu.Unlock()
}

// Stop disarms the flag timer without changing the game.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.mu.Unlock()
}

// notice collects what observers must hear once the mutex is released.
type notice struct {
	applied   *MoveApplied
	drawOffer *chess.Color
	ended     bool
	result    chess.GameResult
}

func (n notice) empty() bool {
	return n.applied == nil && n.drawOffer == nil && !n.ended
}

func (s *Session) queueLocked(n notice) {
	if !n.empty() {
		s.pending = append(s.pending, n)
	}
}

// flush delivers queued notices. If another goroutine is already draining,
// it will pick up what this one queued.
func (s *Session) flush() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.pending) > 0 {
		n := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		s.dispatch(n)
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

func (s *Session) dispatch(n notice) {
	if n.applied != nil {
		s.observer.OnMoveApplied(s.id, *n.applied)
	}
	if n.drawOffer != nil {
		if d, ok := s.observer.(DrawOfferObserver); ok {
			d.OnDrawOffered(s.id, *n.drawOffer)
		}
	}
	if n.ended {
		s.observer.OnGameTerminated(s.id, n.result)
	}
}

// SubmitMove applies m on behalf of player. An exhausted clock is flagged
// before anything else, after which the game reports ErrGameAlreadyTerminated.
// Rejected moves leave the session untouched.
func (s *Session) SubmitMove(player string, m chess.Move) (*MoveOutcome, error) {
	s.mu.Lock()
	out, n, err := s.submitLocked(player, m)
	s.queueLocked(n)
	s.mu.Unlock()

	s.flush()
	return out, err
}

func (s *Session) submitLocked(player string, m chess.Move) (*MoveOutcome, notice, error) {
	now := s.time.Now()
	if n, flagged := s.flagLocked(now); flagged {
		return nil, n, ErrGameAlreadyTerminated
	}
	if !s.result.IsOngoing() {
		return nil, notice{}, ErrGameAlreadyTerminated
	}

	mover := s.engine.Board().Turn()
	if c, ok := s.colorOf(player); !ok || c != mover {
		return nil, notice{}, ErrNotYourTurn
	}

	res, err := s.engine.MakeMove(m)
	if err != nil {
		var ise *chess.IllegalStateError
		if errors.As(err, &ise) {
			s.logger.Error().Err(err).Str("move", m.String()).Msg("Move aborted on broken board invariant")
		}
		return nil, notice{}, err
	}

	if !s.tc.Untimed() {
		remaining := s.clocks[mover].Remaining - now.Sub(s.clocks[mover].LastUpdate)
		if remaining < 0 {
			remaining = 0
		}
		// Each side's first move earns no increment.
		if s.engine.Ply() > 2 {
			remaining += s.tc.IncrementDuration()
		}
		s.clocks[mover] = Clock{Remaining: remaining, LastUpdate: now}
		s.clocks[mover.Other()].LastUpdate = now
	}

	if s.drawOffer != nil && *s.drawOffer != mover {
		s.drawOffer = nil
	}
	s.result = s.engine.Result()
	s.touchLocked(now)

	if s.result.IsOngoing() {
		s.armTimerLocked()
	} else {
		s.drawOffer = nil
		s.stopTimerLocked()
	}

	board := s.engine.Board()
	clocks := s.clockViewLocked(now)
	applied := &MoveApplied{
		Player:    player,
		UCI:       res.UCI,
		SAN:       res.SAN,
		FEN:       res.FEN,
		Signature: board.Signature(),
		Check:     res.Check,
		Result:    s.result,
		Status:    s.result.Status(),
		Clocks:    clocks,
		Ply:       s.engine.Ply(),

		Repetitions: res.Repetitions,
	}
	applied.Move, _ = s.engine.LastMove()

	s.logger.Debug().
		Str("player", player).
		Str("move", res.UCI).
		Str("san", res.SAN).
		Int("ply", applied.Ply).
		Msg("Move applied")

	n := notice{applied: applied}
	if !s.result.IsOngoing() {
		n.ended, n.result = true, s.result
	}
	return &MoveOutcome{MoveResult: *res, Status: s.result.Status(), Clocks: clocks, Ply: applied.Ply}, n, nil
}

// Resign ends the game in favor of player's opponent.
func (s *Session) Resign(player string) error {
	s.mu.Lock()
	n, err := s.resignLocked(player)
	s.queueLocked(n)
	s.mu.Unlock()

	s.flush()
	return err
}

func (s *Session) resignLocked(player string) (notice, error) {
	now := s.time.Now()
	if n, flagged := s.flagLocked(now); flagged {
		return n, ErrGameAlreadyTerminated
	}
	if !s.result.IsOngoing() {
		return notice{}, ErrGameAlreadyTerminated
	}
	c, ok := s.colorOf(player)
	if !ok {
		return notice{}, ErrNotParticipant
	}
	return s.terminateLocked(chess.ResignedResult(c.Other()), now), nil
}

// OfferDraw records a draw offer by player. Offering while the opponent's
// offer is pending accepts it; repeating one's own offer is a no-op.
func (s *Session) OfferDraw(player string) error {
	s.mu.Lock()
	n, err := s.offerDrawLocked(player)
	s.queueLocked(n)
	s.mu.Unlock()

	s.flush()
	return err
}

func (s *Session) offerDrawLocked(player string) (notice, error) {
	now := s.time.Now()
	if n, flagged := s.flagLocked(now); flagged {
		return n, ErrGameAlreadyTerminated
	}
	if !s.result.IsOngoing() {
		return notice{}, ErrGameAlreadyTerminated
	}
	c, ok := s.colorOf(player)
	if !ok {
		return notice{}, ErrNotParticipant
	}
	switch {
	case s.drawOffer == nil:
		s.drawOffer = &c
		s.touchLocked(now)
		by := c
		return notice{drawOffer: &by}, nil
	case *s.drawOffer == c:
		return notice{}, nil
	}
	return s.terminateLocked(chess.DrawResult(chess.DrawAgreement), now), nil
}

// RespondDraw answers the opponent's pending offer.
func (s *Session) RespondDraw(player string, accept bool) error {
	s.mu.Lock()
	n, err := s.respondDrawLocked(player, accept)
	s.queueLocked(n)
	s.mu.Unlock()

	s.flush()
	return err
}

func (s *Session) respondDrawLocked(player string, accept bool) (notice, error) {
	now := s.time.Now()
	if n, flagged := s.flagLocked(now); flagged {
		return n, ErrGameAlreadyTerminated
	}
	if !s.result.IsOngoing() {
		return notice{}, ErrGameAlreadyTerminated
	}
	c, ok := s.colorOf(player)
	if !ok {
		return notice{}, ErrNotParticipant
	}
	if s.drawOffer == nil || *s.drawOffer == c {
		return notice{}, ErrNoDrawOffer
	}
	if !accept {
		s.drawOffer = nil
		s.touchLocked(now)
		return notice{}, nil
	}
	return s.terminateLocked(chess.DrawResult(chess.DrawAgreement), now), nil
}

// Abandon force-terminates the game with no winner.
func (s *Session) Abandon() error {
	s.mu.Lock()
	var n notice
	err := ErrGameAlreadyTerminated
	if s.result.IsOngoing() {
		n, err = s.terminateLocked(chess.GameResult{Kind: chess.Abandoned}, s.time.Now()), nil
	}
	s.queueLocked(n)
	s.mu.Unlock()

	s.flush()
	return err
}

// expire is the flag timer callback. gen guards against timers armed for an
// earlier turn.
func (s *Session) expire(gen uint64) {
	s.mu.Lock()
	if gen != s.timerGen || !s.result.IsOngoing() {
		s.mu.Unlock()
		return
	}
	n, flagged := s.flagLocked(s.time.Now())
	if !flagged {
		// Fired early; wait for the rest of the budget.
		s.armTimerLocked()
	}
	s.queueLocked(n)
	s.mu.Unlock()

	s.flush()
}

// flagLocked terminates the game on time if the side to move has run out.
func (s *Session) flagLocked(now time.Time) (notice, bool) {
	if s.tc.Untimed() || !s.result.IsOngoing() {
		return notice{}, false
	}
	turn := s.engine.Board().Turn()
	if s.remainingLocked(turn, now) > 0 {
		return notice{}, false
	}
	s.logger.Info().Str("flagged", turn.String()).Msg("Clock expired")
	return s.terminateLocked(chess.TimeoutResult(turn.Other()), now), true
}

func (s *Session) terminateLocked(r chess.GameResult, now time.Time) notice {
	if !s.tc.Untimed() {
		turn := s.engine.Board().Turn()
		s.clocks[turn] = Clock{Remaining: s.remainingLocked(turn, now), LastUpdate: now}
	}
	s.result = r
	s.drawOffer = nil
	s.engine.Finish()
	s.stopTimerLocked()
	s.touchLocked(now)

	s.logger.Info().Str("result", r.String()).Msg("Game terminated")
	return notice{ended: true, result: r}
}

func (s *Session) touchLocked(now time.Time) {
	s.updatedAt = now
	s.version++
}

func (s *Session) remainingLocked(c chess.Color, now time.Time) time.Duration {
	clock := s.clocks[c]
	if s.tc.Untimed() || !s.result.IsOngoing() || c != s.engine.Board().Turn() {
		return clock.Remaining
	}
	if rem := clock.Remaining - now.Sub(clock.LastUpdate); rem > 0 {
		return rem
	}
	return 0
}

func (s *Session) armTimerLocked() {
	if s.tc.Untimed() || !s.result.IsOngoing() {
		return
	}
	s.stopTimerLocked()
	s.timerGen++
	gen := s.timerGen
	d := s.remainingLocked(s.engine.Board().Turn(), s.time.Now())
	s.timer = s.time.AfterFunc(d, func() { s.expire(gen) })
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

func (s *Session) colorOf(player string) (chess.Color, bool) {
	switch player {
	case "":
		return chess.White, false
	case s.players[chess.White]:
		return chess.White, true
	case s.players[chess.Black]:
		return chess.Black, true
	}
	return chess.White, false
}

func (s *Session) clockViewLocked(now time.Time) ClockView {
	turn := s.engine.Board().Turn()
	white, black := s.remainingLocked(chess.White, now), s.remainingLocked(chess.Black, now)
	view := ClockView{
		WhiteMS: white.Milliseconds(),
		BlackMS: black.Milliseconds(),
		Turn:    turn.String(),
		Running: !s.tc.Untimed() && s.result.IsOngoing(),
		Untimed: s.tc.Untimed(),
	}
	if !view.Untimed {
		view.WhiteDisplay = chess.FormatTimeRemaining(white)
		view.BlackDisplay = chess.FormatTimeRemaining(black)
	}
	return view
}

// Clocks returns both budgets as of now.
func (s *Session) Clocks() ClockView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clockViewLocked(s.time.Now())
}

// State reports the lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result.IsOngoing() {
		return StateInProgress
	}
	return StateTerminated
}

func (s *Session) Result() chess.GameResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// LegalMoves lists the moves available to the side to move, in UCI.
func (s *Session) LegalMoves() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.result.IsOngoing() {
		return []string{}
	}
	moves := s.engine.LegalMoves()
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		out = append(out, m.String())
	}
	return out
}

// FEN returns the current position.
func (s *Session) FEN() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.GetFEN()
}

// DrawOffer returns the side with a pending draw offer, if any.
func (s *Session) DrawOffer() (chess.Color, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawOffer == nil {
		return chess.White, false
	}
	return *s.drawOffer, true
}

// Version increases with every state change; the registry uses it to skip
// saving unchanged sessions.
func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// LastActivity is the time of the last state change.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}
