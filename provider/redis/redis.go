package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/rwcache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

// addFloor adds ARGV[1] to KEYS[1] and clamps the result at zero in one step.
var addFloor = goredis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0') + tonumber(ARGV[1])
if n < 0 then n = 0 end
redis.call('SET', KEYS[1], n)
return n
`)

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var (
	_ pr.Provider    = (*Redis)(nil)
	_ pr.Counter     = (*Redis)(nil)
	_ pr.BatchGetter = (*Redis)(nil)
)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte) error {
	return p.rdb.Set(ctx, key, value, 0).Err()
}

func (p *Redis) Del(ctx context.Context, key string) error {
	return p.rdb.Del(ctx, key).Err()
}

// GetMany issues a single MGET. Keys in a Redis Cluster must share a hash slot;
// use a hash-tagged namespace such as "{blog}" there.
func (p *Redis) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := p.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		switch vv := v.(type) {
		case nil:
		case string:
			out[keys[i]] = []byte(vv)
		case []byte:
			out[keys[i]] = vv
		default:
			return nil, fmt.Errorf("redis provider: unexpected MGET value %T at %s", v, keys[i])
		}
	}
	return out, nil
}

func (p *Redis) Load(ctx context.Context, key string) (uint64, error) {
	res, err := p.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis counter parse: %w", err)
	}
	return n, nil
}

// Add uses INCRBY for increments and a floor script for decrements.
func (p *Redis) Add(ctx context.Context, key string, delta int64) (uint64, error) {
	if delta >= 0 {
		n, err := p.rdb.IncrBy(ctx, key, delta).Result()
		if err != nil {
			return 0, err
		}
		return uint64(n), nil
	}
	n, err := addFloor.Run(ctx, p.rdb, []string{key}, delta).Int64()
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

func (p *Redis) Store(ctx context.Context, key string, n uint64) error {
	return p.rdb.Set(ctx, key, strconv.FormatUint(n, 10), 0).Err()
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
