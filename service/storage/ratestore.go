package storage

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"

	redisdb "CollabProject/service/storage/redis"
)

// rateWindowScript bumps a fixed-window counter and arms the window TTL on
// first increment, returning {count, remaining-ms} in one round trip so the
// caller can compute retry-after without a second call.
var rateWindowScript = goredis.NewScript(`
local c = redis.call('INCR', KEYS[1])
if c == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {c, ttl}
`)

// Rates is the shared fixed-window counter store behind the limiter.
type Rates struct{}

func NewRates() *Rates { return &Rates{} }

// IncrWindow increments the counter at key within the given window and
// returns the post-increment count plus the time left in the window.
func (r *Rates) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, Status) {
	rdb, ok := redisdb.Client()
	if !ok {
		return 0, 0, Degraded(ErrNotReady)
	}
	res, err := rateWindowScript.Run(ctx, rdb, []string{key}, window.Milliseconds()).Slice()
	if err != nil {
		return 0, 0, Degraded(err)
	}
	if len(res) != 2 {
		return 0, 0, Degraded(ErrNotReady)
	}
	count, _ := res[0].(int64)
	ttlMS, _ := res[1].(int64)
	if ttlMS < 0 {
		ttlMS = window.Milliseconds()
	}
	return count, time.Duration(ttlMS) * time.Millisecond, Ok()
}

// Clear drops a counter, used when a connection goes away.
func (r *Rates) Clear(ctx context.Context, key string) Status {
	rdb, ok := redisdb.Client()
	if !ok {
		return Degraded(ErrNotReady)
	}
	if err := rdb.Del(ctx, key).Err(); err != nil {
		return Degraded(err)
	}
	return Ok()
}
