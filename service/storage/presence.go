package storage

import (
	"context"
	"time"

	redissrv "MChat/service/storage/redis"
	"MChat/tools/security"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Presence mirror: every broadcast snapshot also lands in redis under
// im:presence:<userid> with a TTL, so liveness can be inspected without a
// socket. Delivery never reads these keys; the in-process registry is the
// source of truth.

const presenceTTL = 60 * time.Second

func presenceKey(user string) string { return "im:presence:" + user }

type RedisPresenceMirror struct {
	node string
}

func NewRedisPresenceMirror(node string) *RedisPresenceMirror {
	return &RedisPresenceMirror{node: node}
}

// Sync refreshes one key per online identity. Absent users simply expire.
func (m *RedisPresenceMirror) Sync(ctx context.Context, online []security.Identity) error {
	rdb := redissrv.Client()
	if rdb == nil {
		return errors.New("redis not initialized")
	}
	pipe := rdb.Pipeline()
	for _, id := range online {
		pipe.Set(ctx, presenceKey(id.UserID), m.node, presenceTTL)
	}
	_, err := pipe.Exec(ctx)
	return errors.WithStack(err)
}

// Offline drops the key immediately instead of waiting for the TTL.
func (m *RedisPresenceMirror) Offline(ctx context.Context, userID string) error {
	rdb := redissrv.Client()
	if rdb == nil {
		return errors.New("redis not initialized")
	}
	return errors.WithStack(rdb.Del(ctx, presenceKey(userID)).Err())
}

// Lookup reports whether a user currently holds a mirrored presence key.
func (m *RedisPresenceMirror) Lookup(ctx context.Context, userID string) (node string, online bool, err error) {
	rdb := redissrv.Client()
	if rdb == nil {
		return "", false, errors.New("redis not initialized")
	}
	val, err := rdb.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.WithStack(err)
	}
	return val, true, nil
}
