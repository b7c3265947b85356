package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frandy73/Lumina/internal/domain"
)

// RedisConfig configures the Redis-backed cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
	Prefix   string
}

// Redis is a DocumentCache shared by every API replica.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("cache: missing redis address")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisWithClient(rdb, cfg.TTL, cfg.Prefix), nil
}

func newRedisWithClient(rdb *redis.Client, ttl time.Duration, prefix string) *Redis {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if prefix == "" {
		prefix = "lumina"
	}
	return &Redis{rdb: rdb, ttl: ttl, prefix: prefix}
}

// Close releases the connection pool.
func (r *Redis) Close() error { return r.rdb.Close() }

func (r *Redis) key(ownerID string) string {
	return r.prefix + ":docs:" + ownerID
}

func (r *Redis) genKey(ownerID string) string {
	return r.prefix + ":docs-gen:" + ownerID
}

// redisEntry is the stored value; Gen must equal the owner's current
// generation for the entry to be served.
type redisEntry struct {
	Gen  int64             `json:"gen"`
	Docs []domain.Document `json:"docs"`
}

func (r *Redis) GetList(ctx context.Context, ownerID string) (Lookup, error) {
	vals, err := r.rdb.MGet(ctx, r.key(ownerID), r.genKey(ownerID)).Result()
	if err != nil {
		return Lookup{}, err
	}
	var gen int64
	if s, ok := vals[1].(string); ok {
		if gen, err = strconv.ParseInt(s, 10, 64); err != nil {
			return Lookup{}, fmt.Errorf("cache: bad generation %q: %w", s, err)
		}
	}
	raw, ok := vals[0].(string)
	if !ok {
		return Lookup{Generation: gen}, nil
	}
	var e redisEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		// A corrupt entry behaves like a miss and is dropped.
		_ = r.rdb.Del(ctx, r.key(ownerID)).Err()
		return Lookup{Generation: gen}, nil
	}
	if e.Gen != gen {
		return Lookup{Generation: gen}, nil
	}
	return Lookup{Docs: e.Docs, Hit: true, Generation: gen}, nil
}

// SetList writes under WATCH on the generation key: an Invalidate between
// the check and the write aborts the transaction and the listing is dropped.
func (r *Redis) SetList(ctx context.Context, ownerID string, gen int64, docs []domain.Document) error {
	raw, err := json.Marshal(redisEntry{Gen: gen, Docs: strip(docs)})
	if err != nil {
		return err
	}
	err = r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, r.genKey(ownerID)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, r.key(ownerID), raw, r.ttl)
			return nil
		})
		return err
	}, r.genKey(ownerID))
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (r *Redis) Invalidate(ctx context.Context, ownerID string) error {
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.key(ownerID))
		p.Incr(ctx, r.genKey(ownerID))
		return nil
	})
	return err
}
