package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Sycamoie/Bear-Hole-server/internal/core/domain"
)

// RedisPresenceStore keeps one ZSET per room, scored by check-in time.
// Reads trim anything older than the liveness window first, so the set
// self-cleans even when a process dies without checking out.
type RedisPresenceStore struct {
	rdb    *redis.Client
	window time.Duration
}

func NewRedisPresenceStore(rdb *redis.Client, window time.Duration) *RedisPresenceStore {
	return &RedisPresenceStore{rdb: rdb, window: window}
}

func (p *RedisPresenceStore) key(room domain.RoomID) string {
	return "presence:" + room.String()
}

func (p *RedisPresenceStore) CheckIn(ctx context.Context, room domain.RoomID, id uuid.UUID) error {
	key := p.key(room)
	err := p.rdb.ZAdd(ctx, key, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: id.String(),
	}).Err()
	if err != nil {
		return err
	}
	// Expire the whole set so an abandoned room does not leak memory.
	return p.rdb.Expire(ctx, key, p.window*2).Err()
}

func (p *RedisPresenceStore) Online(ctx context.Context, room domain.RoomID) ([]string, error) {
	key := p.key(room)
	threshold := time.Now().Add(-p.window).Unix()
	p.rdb.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(threshold, 10))
	return p.rdb.ZRange(ctx, key, 0, -1).Result()
}

func (p *RedisPresenceStore) CheckOut(ctx context.Context, room domain.RoomID, id uuid.UUID) error {
	return p.rdb.ZRem(ctx, p.key(room), id.String()).Err()
}

func (p *RedisPresenceStore) ClearRoom(ctx context.Context, room domain.RoomID) error {
	return p.rdb.Del(ctx, p.key(room)).Err()
}
