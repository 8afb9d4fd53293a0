package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/chessdream/chessd/internal/chess"
)

// Store persists session snapshots. LoadGame returns ErrGameNotFound when
// the id is unknown. SaveGame must keep the newer record: a snapshot whose
// Version is below the stored one is dropped without error.
type Store interface {
	LoadGame(ctx context.Context, id string) (*Snapshot, error)
	SaveGame(ctx context.Context, id string, snap *Snapshot) error
}

// ActiveLister is implemented by stores that can enumerate in-progress games
// for crash recovery.
type ActiveLister interface {
	ListActive(ctx context.Context) ([]string, error)
}

const (
	DefaultSnapshotInterval = 30 * time.Second
	DefaultAbandonTimeout   = 30 * time.Minute
	defaultSaveTimeout      = 5 * time.Second
)

type entry struct {
	session *Session
	saved   uint64
}

// Registry maps game ids to live sessions. Its mutex guards the map only;
// moves and store I/O run without it.
type Registry struct {
	sessions map[string]*entry
	mu       sync.RWMutex

	store            Store
	observer         Observer
	time             TimeSource
	loads            singleflight.Group
	snapshotInterval time.Duration
	abandonTimeout   time.Duration
	logger           zerolog.Logger
}

// RegistryOption configures a registry.
type RegistryOption func(*Registry)

// WithRegistryObserver forwards every session notification to o.
func WithRegistryObserver(o Observer) RegistryOption {
	return func(r *Registry) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithClock replaces the wall clock for every session the registry owns.
func WithClock(ts TimeSource) RegistryOption {
	return func(r *Registry) {
		if ts != nil {
			r.time = ts
		}
	}
}

// WithSnapshotInterval sets how often Run saves changed sessions.
func WithSnapshotInterval(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.snapshotInterval = d
	}
}

// WithAbandonTimeout sets how long a game may sit idle before Run abandons
// it. Zero disables abandonment.
func WithAbandonTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.abandonTimeout = d
	}
}

// NewRegistry creates a registry persisting through store.
func NewRegistry(store Store, opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions:         make(map[string]*entry),
		store:            store,
		observer:         nopObserver{},
		time:             SystemTime,
		snapshotInterval: DefaultSnapshotInterval,
		abandonTimeout:   DefaultAbandonTimeout,
		logger:           log.With().Str("component", "registry").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// hook is the observer installed on every registry-owned session: it
// forwards to the registry's observer and finalizes terminated games.
type hook struct {
	r *Registry
}

func (h hook) OnMoveApplied(gameID string, ev MoveApplied) {
	h.r.observer.OnMoveApplied(gameID, ev)
}

func (h hook) OnGameTerminated(gameID string, result chess.GameResult) {
	h.r.observer.OnGameTerminated(gameID, result)
	h.r.finalize(gameID)
}

func (h hook) OnDrawOffered(gameID string, by chess.Color) {
	if d, ok := h.r.observer.(DrawOfferObserver); ok {
		d.OnDrawOffered(gameID, by)
	}
}

func (r *Registry) sessionOptions() []Option {
	return []Option{WithObserver(hook{r}), WithTimeSource(r.time)}
}

// CreateGame pairs white and black into a new session and persists its
// initial snapshot.
func (r *Registry) CreateGame(ctx context.Context, white, black string, tc chess.TimeControl) (string, error) {
	return r.CreateGameFromFEN(ctx, white, black, tc, "")
}

// CreateGameFromFEN is CreateGame starting from an arbitrary position.
func (r *Registry) CreateGameFromFEN(ctx context.Context, white, black string, tc chess.TimeControl, fen string) (string, error) {
	id := uuid.NewString()
	s, err := New(id, white, black, tc, fen, r.sessionOptions()...)
	if err != nil {
		return "", err
	}

	snap := s.Snapshot()
	if err := r.store.SaveGame(ctx, id, snap); err != nil {
		return "", fmt.Errorf("save new game: %w", err)
	}

	if !snap.Active() {
		// Started from a decided position; nothing to host.
		return id, nil
	}

	r.mu.Lock()
	r.sessions[id] = &entry{session: s, saved: snap.Version}
	r.mu.Unlock()
	s.Start()

	r.logger.Info().
		Str("gameID", id).
		Str("white", white).
		Str("black", black).
		Str("timeControl", tc.String()).
		Msg("Game created")
	return id, nil
}

// Get returns the session for id, loading it from the store on a miss.
// Active games loaded this way are registered again; decided games are
// returned without being registered.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	if s, ok := r.lookup(id); ok {
		return s, nil
	}

	v, err, _ := r.loads.Do(id, func() (interface{}, error) {
		if s, ok := r.lookup(id); ok {
			return s, nil
		}
		snap, err := r.store.LoadGame(ctx, id)
		if err != nil {
			return nil, err
		}
		s, err := Restore(snap, r.sessionOptions()...)
		if err != nil {
			return nil, err
		}
		if s.State() != StateInProgress {
			return s, nil
		}

		r.mu.Lock()
		if e, ok := r.sessions[id]; ok {
			r.mu.Unlock()
			return e.session, nil
		}
		r.sessions[id] = &entry{session: s, saved: snap.Version}
		r.mu.Unlock()
		s.Start()

		r.logger.Info().Str("gameID", id).Int("ply", len(snap.Moves)).Msg("Game restored from store")
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (r *Registry) lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// SubmitMove routes a move to the game's session.
func (r *Registry) SubmitMove(ctx context.Context, id, player string, m chess.Move) (*MoveOutcome, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.SubmitMove(player, m)
}

func (r *Registry) Resign(ctx context.Context, id, player string) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.Resign(player)
}

func (r *Registry) OfferDraw(ctx context.Context, id, player string) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.OfferDraw(player)
}

func (r *Registry) RespondDraw(ctx context.Context, id, player string, accept bool) error {
	s, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.RespondDraw(player, accept)
}

func (r *Registry) Clocks(ctx context.Context, id string) (ClockView, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return ClockView{}, err
	}
	return s.Clocks(), nil
}

// Active returns the number of sessions currently hosted.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sessions returns the hosted sessions ordered by id.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.session)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// finalize persists a terminated session and drops it from the map. It runs
// in the goroutine that ended the game, after the session mutex is released.
func (r *Registry) finalize(id string) {
	r.mu.RLock()
	e, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return
	}

	snap := e.session.Snapshot()
	ctx, cancel := context.WithTimeout(context.Background(), defaultSaveTimeout)
	defer cancel()
	if err := r.store.SaveGame(ctx, id, snap); err != nil {
		// Keep the session so the next sweep or Shutdown retries the save.
		r.logger.Error().Err(err).Str("gameID", id).Msg("Failed to persist finished game")
		return
	}

	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	r.logger.Info().
		Str("gameID", id).
		Str("result", snap.Result.String()).
		Int("ply", len(snap.Moves)).
		Msg("Game finished")
}

func (r *Registry) entries() map[string]*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*entry, len(r.sessions))
	for id, e := range r.sessions {
		out[id] = e
	}
	return out
}

// Run saves changed sessions and abandons idle ones every snapshot interval
// until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	if r.snapshotInterval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(r.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs one pass of the Run loop.
func (r *Registry) Sweep(ctx context.Context) {
	now := r.time.Now()
	for id, e := range r.entries() {
		s := e.session
		if s.State() == StateTerminated {
			// A failed final save; try again.
			r.finalize(id)
			continue
		}
		if r.abandonTimeout > 0 && now.Sub(s.LastActivity()) > r.abandonTimeout {
			r.logger.Info().Str("gameID", id).Dur("idle", now.Sub(s.LastActivity())).Msg("Abandoning idle game")
			if err := s.Abandon(); err != nil && !errors.Is(err, ErrGameAlreadyTerminated) {
				r.logger.Error().Err(err).Str("gameID", id).Msg("Failed to abandon game")
			}
			continue
		}
		if err := r.saveIfChanged(ctx, id, e); err != nil {
			r.logger.Error().Err(err).Str("gameID", id).Msg("Failed to snapshot game")
		}
	}
}

func (r *Registry) saveIfChanged(ctx context.Context, id string, e *entry) error {
	r.mu.RLock()
	saved := e.saved
	hosted := r.sessions[id] == e
	r.mu.RUnlock()

	if !hosted || e.session.Version() == saved {
		return nil
	}
	snap := e.session.Snapshot()
	if !snap.Active() {
		// Ended since the sweep started; finalize owns the last save.
		return nil
	}
	if err := r.store.SaveGame(ctx, id, snap); err != nil {
		return err
	}

	r.mu.Lock()
	if snap.Version > e.saved {
		e.saved = snap.Version
	}
	r.mu.Unlock()
	return nil
}

// Recover re-registers every active game the store can list. Stores that
// cannot list games make this a no-op.
func (r *Registry) Recover(ctx context.Context) (int, error) {
	lister, ok := r.store.(ActiveLister)
	if !ok {
		return 0, nil
	}
	ids, err := lister.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active games: %w", err)
	}

	var errs error
	recovered := 0
	for _, id := range ids {
		if _, err := r.Get(ctx, id); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("recover %s: %w", id, err))
			continue
		}
		recovered++
	}
	r.logger.Info().Int("recovered", recovered).Int("listed", len(ids)).Msg("Recovered active games")
	return recovered, errs
}

// Shutdown stops every flag timer and saves every hosted session.
func (r *Registry) Shutdown(ctx context.Context) error {
	var errs error
	for id, e := range r.entries() {
		e.session.Stop()
		snap := e.session.Snapshot()
		if err := r.store.SaveGame(ctx, id, snap); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("save %s: %w", id, err))
		}
	}
	return errs
}
