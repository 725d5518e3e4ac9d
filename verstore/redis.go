package verstore

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// nextVersion: v = max(stored or high-water mark, floor) + 1, refusing to pass
// uint32 max. KEYS[1] is the per-key version, KEYS[2] the namespace high-water
// mark, which never expires.
var nextVersion = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
local hwm = tonumber(redis.call('GET', KEYS[2]) or '0')
local v = hwm
if cur then v = tonumber(cur) end
local floor = tonumber(ARGV[1])
if v < floor then v = floor end
if v >= tonumber(ARGV[3]) then return -1 end
v = v + 1
local ttl = tonumber(ARGV[2])
if ttl > 0 then
  redis.call('SET', KEYS[1], v, 'PX', ttl)
else
  redis.call('SET', KEYS[1], v)
end
if v > hwm then redis.call('SET', KEYS[2], v) end
return v
`)

// Redis shares issued versions across processes and survives restarts.
// Optionally, a TTL bounds the lifetime of version keys. A key Redis does not
// hold, new or expired, starts above the highest version issued in the
// namespace. All keys of one namespace share a cluster hash slot.
type Redis struct {
	rdb redis.UniversalClient
	ns  string
	ttl time.Duration
}

var _ Store = (*Redis)(nil)

// NewRedis creates a Redis-backed version store without TTL.
func NewRedis(client redis.UniversalClient, namespace string) *Redis {
	return &Redis{rdb: client, ns: namespace}
}

// NewRedisWithTTL creates a Redis-backed version store with TTL.
// If ttl <= 0, keys do not expire.
func NewRedisWithTTL(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Redis) key(k string) string { return "ver:{" + s.ns + "}:" + k }

func (s *Redis) hwmKey() string { return "ver:{" + s.ns + "}" }

func (s *Redis) Next(ctx context.Context, storageKey string, floor uint32) (uint32, error) {
	v, err := nextVersion.Run(ctx, s.rdb, []string{s.key(storageKey), s.hwmKey()},
		floor, s.ttl.Milliseconds(), uint32(math.MaxUint32)).Int64()
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, ErrExhausted
	}
	if v > math.MaxUint32 {
		return 0, errors.New("verstore: redis returned out-of-range version")
	}
	return uint32(v), nil
}

// Cleanup is not applicable (Redis handles expiry if TTL is set).
func (s *Redis) Cleanup(time.Duration) {}

// Close closes the underlying Redis client.
func (s *Redis) Close(context.Context) error { return s.rdb.Close() }
