package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chessdream/chessd/internal/chess"
)

func newTestRegistry(t *testing.T, opts ...RegistryOption) (*Registry, *memStore, *fakeTime) {
	t.Helper()
	store := newMemStore()
	ft := newFakeTime()
	r := NewRegistry(store, append([]RegistryOption{WithClock(ft)}, opts...)...)
	return r, store, ft
}

func TestCreateGame(t *testing.T) {
	r, store, _ := newTestRegistry(t)
	ctx := context.Background()

	id, err := r.CreateGame(ctx, "alice", "bob", chess.TimeControl{Initial: 300, Increment: 3})
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.Equal(t, 1, r.Active())

	snap := store.get(t, id)
	assert.Equal(t, "alice", snap.White)
	assert.Equal(t, "bob", snap.Black)
	assert.Equal(t, chess.StartFEN, snap.FEN)
	assert.True(t, snap.Active())

	s, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, s.ID())
	assert.Equal(t, []*Session{s}, r.Sessions())
}

func TestCreateGameRejectsBadInput(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.CreateGame(ctx, "alice", "alice", chess.TimeControl{})
	assert.ErrorIs(t, err, ErrInvalidPlayers)

	_, err = r.CreateGame(ctx, "alice", "", chess.TimeControl{})
	assert.ErrorIs(t, err, ErrInvalidPlayers)

	_, err = r.CreateGame(ctx, "alice", "bob", chess.TimeControl{Initial: 20000})
	assert.ErrorIs(t, err, chess.ErrInvalidTimeControl)

	assert.Equal(t, 0, r.Active())
}

func TestCreateGameFailsWhenStoreIsDown(t *testing.T) {
	r, store, _ := newTestRegistry(t)
	store.failing = true

	_, err := r.CreateGame(context.Background(), "alice", "bob", chess.TimeControl{})
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, 0, r.Active())
}

func TestGetUnknownGame(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	_, err := r.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestTerminatedGameIsPersistedAndRemoved(t *testing.T) {
	rec := &recorder{}
	r, store, _ := newTestRegistry(t, WithRegistryObserver(rec))
	ctx := context.Background()

	id, err := r.CreateGame(ctx, "alice", "bob", chess.TimeControl{Initial: 60})
	require.NoError(t, err)

	for _, step := range []struct{ player, uci string }{
		{"alice", "f2f3"}, {"bob", "e7e5"}, {"alice", "g2g4"}, {"bob", "d8h4"},
	} {
		_, err := r.SubmitMove(ctx, id, step.player, mv(t, step.uci))
		require.NoError(t, err, step.uci)
	}

	assert.Equal(t, 0, r.Active())
	assert.Len(t, rec.moves, 4)
	assert.Equal(t, []chess.GameResult{chess.CheckmateResult(chess.Black)}, rec.endings())

	snap := store.get(t, id)
	assert.Equal(t, StateTerminated, snap.State)
	assert.Equal(t, chess.StatusBlackWon, snap.Status)
	assert.Equal(t, []string{"f2f3", "e7e5", "g2g4", "d8h4"}, snap.Moves)

	// The decided game is still readable but accepts nothing.
	s, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateTerminated, s.State())
	assert.Equal(t, 0, r.Active())
	_, err = r.SubmitMove(ctx, id, "alice", mv(t, "e1f2"))
	assert.ErrorIs(t, err, ErrGameAlreadyTerminated)
}

func TestRegistryDelegatesSessionActions(t *testing.T) {
	r, store, _ := newTestRegistry(t)
	ctx := context.Background()

	id, err := r.CreateGame(ctx, "alice", "bob", chess.TimeControl{})
	require.NoError(t, err)

	require.NoError(t, r.OfferDraw(ctx, id, "alice"))
	assert.ErrorIs(t, r.RespondDraw(ctx, id, "mallory", true), ErrNotParticipant)
	require.NoError(t, r.RespondDraw(ctx, id, "bob", false))
	assert.ErrorIs(t, r.Resign(ctx, id, "mallory"), ErrNotParticipant)

	view, err := r.Clocks(ctx, id)
	require.NoError(t, err)
	assert.True(t, view.Untimed)

	require.NoError(t, r.Resign(ctx, id, "alice"))
	assert.Equal(t, chess.ResignedResult(chess.Black), store.get(t, id).Result)
}

func TestTimeoutFinalizesThroughTimer(t *testing.T) {
	r, store, ft := newTestRegistry(t)
	ctx := context.Background()

	id, err := r.CreateGame(ctx, "alice", "bob", chess.TimeControl{Initial: 30})
	require.NoError(t, err)

	ft.Advance(31 * time.Second)
	assert.Equal(t, 0, r.Active())
	snap := store.get(t, id)
	assert.Equal(t, chess.TimeoutResult(chess.Black), snap.Result)
	assert.Contains(t, snap.PGN, `[Termination "time forfeit"]`)
}

func TestSweepSavesChangedSessions(t *testing.T) {
	r, store, _ := newTestRegistry(t)
	ctx := context.Background()

	id, err := r.CreateGame(ctx, "alice", "bob", chess.TimeControl{})
	require.NoError(t, err)
	_, err = r.SubmitMove(ctx, id, "alice", mv(t, "e2e4"))
	require.NoError(t, err)
	assert.Empty(t, store.get(t, id).Moves)

	r.Sweep(ctx)
	assert.Equal(t, []string{"e2e4"}, store.get(t, id).Moves)
}

func TestSweepSaveCannotReviveFinishedGame(t *testing.T) {
	r, store, _ := newTestRegistry(t)
	ctx := context.Background()

	id, err := r.CreateGame(ctx, "alice", "bob", chess.TimeControl{Initial: 300})
	require.NoError(t, err)
	_, err = r.SubmitMove(ctx, id, "alice", mv(t, "e2e4"))
	require.NoError(t, err)

	// Hold the sweep's in-progress save until bob has resigned.
	blocked := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	store.beforeSave = func(snap *Snapshot) {
		if snap.Active() {
			once.Do(func() {
				close(blocked)
				<-release
			})
		}
	}

	swept := make(chan struct{})
	go func() {
		r.Sweep(ctx)
		close(swept)
	}()
	<-blocked
	require.NoError(t, r.Resign(ctx, id, "bob"))
	close(release)
	<-swept

	snap := store.get(t, id)
	assert.Equal(t, StateTerminated, snap.State)
	assert.Equal(t, chess.ResignedResult(chess.White), snap.Result)

	s, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateTerminated, s.State())
	assert.Equal(t, 0, r.Active())

	_, err = r.SubmitMove(ctx, id, "bob", mv(t, "e7e5"))
	assert.ErrorIs(t, err, ErrGameAlreadyTerminated)
}

func TestSweepAbandonsIdleGames(t *testing.T) {
	rec := &recorder{}
	r, store, ft := newTestRegistry(t, WithAbandonTimeout(time.Minute), WithRegistryObserver(rec))
	ctx := context.Background()

	idle, err := r.CreateGame(ctx, "alice", "bob", chess.TimeControl{})
	require.NoError(t, err)
	busy, err := r.CreateGame(ctx, "carol", "dave", chess.TimeControl{})
	require.NoError(t, err)

	ft.Advance(50 * time.Second)
	_, err = r.SubmitMove(ctx, busy, "carol", mv(t, "d2d4"))
	require.NoError(t, err)
	ft.Advance(20 * time.Second)

	r.Sweep(ctx)
	assert.Equal(t, 1, r.Active())
	assert.Equal(t, chess.StatusAbandoned, store.get(t, idle).Status)
	assert.Equal(t, chess.StatusActive, store.get(t, busy).Status)
	assert.Len(t, rec.endings(), 1)
}

func TestRecoverRestoresActiveGames(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	live, err := New("live", "alice", "bob", chess.TimeControl{}, "")
	require.NoError(t, err)
	play(t, live, "e2e4", "e7e5")
	require.NoError(t, store.SaveGame(ctx, "live", live.Snapshot()))

	done, err := New("done", "carol", "dave", chess.TimeControl{}, "")
	require.NoError(t, err)
	require.NoError(t, done.Resign("carol"))
	require.NoError(t, store.SaveGame(ctx, "done", done.Snapshot()))

	r := NewRegistry(store, WithClock(newFakeTime()))
	n, err := r.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, r.Active())

	out, err := r.SubmitMove(ctx, "live", "alice", mv(t, "g1f3"))
	require.NoError(t, err)
	assert.Equal(t, "Nf3", out.SAN)
}

func TestConcurrentGetLoadsOnce(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	s, err := New("g", "alice", "bob", chess.TimeControl{}, "")
	require.NoError(t, err)
	require.NoError(t, store.SaveGame(ctx, "g", s.Snapshot()))

	r := NewRegistry(store, WithClock(newFakeTime()))
	var wg sync.WaitGroup
	got := make([]*Session, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = r.Get(ctx, "g")
		}(i)
	}
	wg.Wait()

	for _, s := range got {
		require.NotNil(t, s)
		assert.Same(t, got[0], s)
	}
	assert.Equal(t, 1, r.Active())
}

func TestShutdownAggregatesErrors(t *testing.T) {
	r, store, _ := newTestRegistry(t)
	ctx := context.Background()

	for _, pair := range [][2]string{{"a", "b"}, {"c", "d"}} {
		_, err := r.CreateGame(ctx, pair[0], pair[1], chess.TimeControl{Initial: 60})
		require.NoError(t, err)
	}

	store.failing = true
	err := r.Shutdown(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Contains(t, err.Error(), "2 errors occurred")

	store.failing = false
	assert.NoError(t, r.Shutdown(ctx))
}
