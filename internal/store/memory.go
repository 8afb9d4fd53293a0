package store

import (
	"context"
	"sort"
	"sync"

	"github.com/chessdream/chessd/internal/session"
)

// Memory keeps encoded snapshots in a map. Nothing survives a restart; it
// is the default for development and tests.
type Memory struct {
	games    map[string][]byte
	versions map[string]uint64
	active   map[string]bool
	mu       sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{
		games:    make(map[string][]byte),
		versions: make(map[string]uint64),
		active:   make(map[string]bool),
	}
}

func (m *Memory) LoadGame(ctx context.Context, id string) (*session.Snapshot, error) {
	m.mu.RLock()
	data, ok := m.games[id]
	m.mu.RUnlock()
	if !ok {
		return nil, session.ErrGameNotFound
	}
	return decode(id, data)
}

func (m *Memory) SaveGame(ctx context.Context, id string, snap *session.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.versions[id]; ok && v > snap.Version {
		return nil
	}
	m.games[id] = data
	m.versions[id] = snap.Version
	if snap.Active() {
		m.active[id] = true
	} else {
		delete(m.active, id)
	}
	return nil
}

func (m *Memory) ListActive(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) Close() error { return nil }
