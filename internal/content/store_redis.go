// Copyright (c) 2026 Atrium. All rights reserved.

package content

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/atriumhq/atrium/internal/platform/constants"
)

// RedisViewCounter buffers view increments in Redis so a hot post does not
// turn every read into an UPDATE. A background flusher drains the buffer
// into PostgreSQL on an interval.
type RedisViewCounter struct {
	client *redis.Client
}

// NewRedisViewCounter creates the Redis implementation of [ViewCounter].
func NewRedisViewCounter(client *redis.Client) *RedisViewCounter {
	return &RedisViewCounter{client: client}
}

func viewKey(publishedID int64) string {
	return constants.RedisPrefixViewCount + strconv.FormatInt(publishedID, 10)
}

// Increment bumps the buffered counter for one post and returns the count
// accumulated since the last drain.
func (counter *RedisViewCounter) Increment(context context.Context, publishedID int64) (int64, error) {
	return counter.client.Incr(context, viewKey(publishedID)).Result()
}

/*
Drain atomically collects and resets all buffered view counters.

Description: Keys are discovered with SCAN and consumed with GETDEL, so a
view that lands between the read and the reset is never lost; it simply
starts the next window.

Returns:
  - map[int64]int64: Buffered delta per published post ID
  - error: Redis connectivity errors
*/
func (counter *RedisViewCounter) Drain(context context.Context) (map[int64]int64, error) {
	deltas := make(map[int64]int64)

	iterator := counter.client.Scan(context, 0, constants.RedisPrefixViewCount+"*", 100).Iterator()
	for iterator.Next(context) {
		key := iterator.Val()

		value, err := counter.client.GetDel(context, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}

		id, err := strconv.ParseInt(strings.TrimPrefix(key, constants.RedisPrefixViewCount), 10, 64)
		if err != nil {
			continue
		}

		delta, err := strconv.ParseInt(value, 10, 64)
		if err != nil || delta == 0 {
			continue
		}
		deltas[id] += delta
	}
	if err := iterator.Err(); err != nil {
		return nil, err
	}

	return deltas, nil
}
