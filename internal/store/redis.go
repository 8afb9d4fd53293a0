package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chessdream/chessd/internal/session"
)

const (
	redisKeyPrefix = "chessd:game:"
	redisActiveKey = "chessd:games:active"

	// Finished games are kept for replay and then left to expire.
	redisFinishedTTL = 30 * 24 * time.Hour

	redisSaveRetries = 5
)

var errStaleSnapshot = errors.New("stored snapshot is newer")

// Redis stores each snapshot as a JSON string and indexes in-progress games
// in a set.
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects using a redis:// URL and pings the server.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url not configured")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

func gameKey(id string) string { return redisKeyPrefix + id }

func (r *Redis) LoadGame(ctx context.Context, id string) (*session.Snapshot, error) {
	raw, err := r.rdb.Get(ctx, gameKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", id, err)
	}
	return decode(id, raw)
}

// SaveGame writes under WATCH so a snapshot older than the stored one never
// replaces it. Conflicting writers retry a few times before giving up.
func (r *Redis) SaveGame(ctx context.Context, id string, snap *session.Snapshot) error {
	raw, err := encode(snap)
	if err != nil {
		return err
	}
	key := gameKey(id)

	save := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			stored, err := decode(id, cur)
			if err != nil {
				return err
			}
			if stored.Version > snap.Version {
				return errStaleSnapshot
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if snap.Active() {
				pipe.Set(ctx, key, raw, 0)
				pipe.SAdd(ctx, redisActiveKey, id)
			} else {
				pipe.Set(ctx, key, raw, redisFinishedTTL)
				pipe.SRem(ctx, redisActiveKey, id)
			}
			return nil
		})
		return err
	}

	for i := 0; i < redisSaveRetries; i++ {
		err = r.rdb.Watch(ctx, save, key)
		switch {
		case err == nil, errors.Is(err, errStaleSnapshot):
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		}
		return fmt.Errorf("redis save %s: %w", id, err)
	}
	return fmt.Errorf("redis save %s: %w", id, err)
}

func (r *Redis) ListActive(ctx context.Context) ([]string, error) {
	ids, err := r.rdb.SMembers(ctx, redisActiveKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list active: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
