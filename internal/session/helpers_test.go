package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chessdream/chessd/internal/chess"
)

// fakeTime is a manually advanced TimeSource. Timers fire inside Advance,
// never inside AfterFunc.
type fakeTime struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	ft      *fakeTime
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeTime() *fakeTime {
	return &fakeTime{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (ft *fakeTime) Now() time.Time {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.now
}

func (ft *fakeTime) AfterFunc(d time.Duration, f func()) Timer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{ft: ft, at: ft.now.Add(d), f: f}
	ft.timers = append(ft.timers, t)
	return t
}

func (ft *fakeTime) Advance(d time.Duration) {
	ft.mu.Lock()
	ft.now = ft.now.Add(d)
	var due []*fakeTimer
	for _, t := range ft.timers {
		if !t.stopped && !t.fired && !t.at.After(ft.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	ft.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.ft.mu.Lock()
	defer t.ft.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// recorder is an Observer that keeps everything it hears.
type recorder struct {
	mu         sync.Mutex
	moves      []MoveApplied
	ended      []chess.GameResult
	drawOffers []chess.Color
}

func (r *recorder) OnMoveApplied(gameID string, ev MoveApplied) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moves = append(r.moves, ev)
}

func (r *recorder) OnGameTerminated(gameID string, result chess.GameResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = append(r.ended, result)
}

func (r *recorder) OnDrawOffered(gameID string, by chess.Color) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drawOffers = append(r.drawOffers, by)
}

func (r *recorder) endings() []chess.GameResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chess.GameResult(nil), r.ended...)
}

var errStoreDown = errors.New("store down")

func encodeSnapshot(snap *Snapshot) ([]byte, error) {
	return json.Marshal(snap)
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// memStore is a minimal Store for registry tests. beforeSave, when set, runs
// ahead of every save with the store unlocked.
type memStore struct {
	mu         sync.Mutex
	games      map[string][]byte
	versions   map[string]uint64
	loads      int
	failing    bool
	beforeSave func(snap *Snapshot)
}

func newMemStore() *memStore {
	return &memStore{games: make(map[string][]byte), versions: make(map[string]uint64)}
}

func (m *memStore) LoadGame(ctx context.Context, id string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	data, ok := m.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return decodeSnapshot(data)
}

func (m *memStore) SaveGame(ctx context.Context, id string, snap *Snapshot) error {
	if m.beforeSave != nil {
		m.beforeSave(snap)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errStoreDown
	}
	if v, ok := m.versions[id]; ok && v > snap.Version {
		return nil
	}
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	m.games[id] = data
	m.versions[id] = snap.Version
	return nil
}

func (m *memStore) ListActive(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, data := range m.games {
		snap, err := decodeSnapshot(data)
		if err != nil {
			return nil, err
		}
		if snap.Active() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) get(t *testing.T, id string) *Snapshot {
	t.Helper()
	snap, err := m.LoadGame(context.Background(), id)
	require.NoError(t, err)
	return snap
}

func mv(t *testing.T, uci string) chess.Move {
	t.Helper()
	m, err := chess.ParseMove(uci)
	require.NoError(t, err)
	return m
}

func play(t *testing.T, s *Session, moves ...string) {
	t.Helper()
	white, black := s.Players()
	for _, uci := range moves {
		player := white
		if s.Clocks().Turn == "black" {
			player = black
		}
		_, err := s.SubmitMove(player, mv(t, uci))
		require.NoError(t, err, uci)
	}
}
