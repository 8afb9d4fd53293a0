package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chessdream/chessd/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
	id         TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	version    BIGINT NOT NULL,
	snapshot   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS games_state_idx ON games (state);
`

// Postgres upserts snapshots into a jsonb column. Writes carrying an older
// version than the stored row are ignored.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a pool and makes sure the games table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn not configured")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create games table: %w", err)
	}
	return nil
}

func (p *Postgres) LoadGame(ctx context.Context, id string) (*session.Snapshot, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT snapshot FROM games WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", id, err)
	}
	return decode(id, raw)
}

func (p *Postgres) SaveGame(ctx context.Context, id string, snap *session.Snapshot) error {
	raw, err := encode(snap)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO games (id, state, version, snapshot, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id) DO UPDATE
		SET state = EXCLUDED.state,
		    version = EXCLUDED.version,
		    snapshot = EXCLUDED.snapshot,
		    updated_at = now()
		WHERE games.version <= EXCLUDED.version`,
		id, string(snap.State), int64(snap.Version), raw)
	if err != nil {
		return fmt.Errorf("save game %s: %w", id, err)
	}
	return nil
}

func (p *Postgres) ListActive(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT id FROM games WHERE state = $1 ORDER BY id`, string(session.StateInProgress))
	if err != nil {
		return nil, fmt.Errorf("list active games: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list active games: %w", err)
	}
	return ids, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
