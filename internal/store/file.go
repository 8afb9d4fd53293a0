package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/chessdream/chessd/internal/session"
)

// File stores one JSON document per game under a directory.
type File struct {
	dir string
	mu  sync.Mutex // serializes version checks with writes
}

// NewFile creates the directory if needed.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory not configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create games directory: %w", err)
	}
	return &File{dir: dir}, nil
}

var errInvalidID = errors.New("invalid game id")

func (f *File) path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w %q", errInvalidID, id)
	}
	return filepath.Join(f.dir, id+".json"), nil
}

// LoadGame reports ErrGameNotFound for ids that cannot name a game file.
func (f *File) LoadGame(ctx context.Context, id string) (*session.Snapshot, error) {
	p, err := f.path(id)
	if err != nil {
		return nil, session.ErrGameNotFound
	}
	return f.load(id, p)
}

func (f *File) load(id, p string) (*session.Snapshot, error) {
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, session.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read game file: %w", err)
	}
	return decode(id, data)
}

// SaveGame writes through a temporary file and renames it into place, so a
// crash never leaves a half-written snapshot behind. An older version than
// the one on disk is dropped.
func (f *File) SaveGame(ctx context.Context, id string, snap *session.Snapshot) error {
	p, err := f.path(id)
	if err != nil {
		return err
	}
	data, err := encode(snap)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	cur, err := f.load(id, p)
	switch {
	case errors.Is(err, session.ErrGameNotFound):
	case err != nil:
		return err
	case cur.Version > snap.Version:
		return nil
	}

	tmp, err := os.CreateTemp(f.dir, "."+id+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write game file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write game file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("failed to replace game file: %w", err)
	}
	return nil
}

// ListActive scans every game file; fine for the volumes a single node holds.
func (f *File) ListActive(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read games directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := strings.TrimSuffix(name, ".json")
		snap, err := f.LoadGame(ctx, id)
		if err != nil {
			return nil, err
		}
		if snap.Active() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *File) Close() error { return nil }
