package storage

import (
	"context"
	"time"

	"CollabProject/global"
	redisdb "CollabProject/service/storage/redis"
)

// Denylist tracks revoked credentials by token hash. Lookups fail open:
// on a store error the answer is "not denied" plus a degraded status, and
// the caller decides what to do with it.
type Denylist struct{}

func NewDenylist() *Denylist { return &Denylist{} }

func (d *Denylist) IsDenied(ctx context.Context, tokenHash string) (bool, Status) {
	rdb, ok := redisdb.Client()
	if !ok {
		return false, Degraded(ErrNotReady)
	}
	n, err := rdb.Exists(ctx, global.DenyKey(tokenHash)).Result()
	if err != nil {
		return false, Degraded(err)
	}
	return n > 0, Ok()
}

// Deny marks a credential revoked until ttl passes. The entry only needs
// to outlive the token itself.
func (d *Denylist) Deny(ctx context.Context, tokenHash string, ttl time.Duration) Status {
	rdb, ok := redisdb.Client()
	if !ok {
		return Degraded(ErrNotReady)
	}
	if err := rdb.Set(ctx, global.DenyKey(tokenHash), "1", ttl).Err(); err != nil {
		return Degraded(err)
	}
	return Ok()
}
