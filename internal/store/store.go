// Package store holds the persistence backends for game snapshots.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/chessdream/chessd/internal/config"
	"github.com/chessdream/chessd/internal/session"
)

// Store is a session.Store that can also enumerate active games and release
// its connections.
type Store interface {
	session.Store
	session.ActiveLister
	Close() error
}

// Open builds the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	logger := log.With().Str("component", "store").Str("driver", cfg.Driver).Logger()

	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "memory":
		s = NewMemory()
	case "file":
		s, err = NewFile(cfg.Dir)
	case "redis":
		s, err = NewRedis(ctx, cfg.RedisURL)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	logger.Info().Msg("Store opened")
	return s, nil
}

func encode(snap *session.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot %s: %w", snap.ID, err)
	}
	return data, nil
}

func decode(id string, data []byte) (*session.Snapshot, error) {
	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %s: %w", id, err)
	}
	return &snap, nil
}
