package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var NilError = goredis.Nil

type Options = goredis.UniversalOptions

type StreamMessage struct {
	ID     string
	Values map[string]interface{}
}

type RedisAdapter interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, keys ...string) error
	Exist(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Ping(ctx context.Context) error
	Close() error

	XAdd(ctx context.Context, key string, values map[string]interface{}) (string, error)
	XReadGroup(ctx context.Context, group, consumer, key, id string, count int64) ([]StreamMessage, error)
	XAck(ctx context.Context, key, group string, ids ...string) error
	XGroupCreateMkStream(ctx context.Context, key, group, start string) error
	XLen(ctx context.Context, key string) (int64, error)
	XTrimApprox(ctx context.Context, key string, maxLen int64) error
	XPending(ctx context.Context, key, group string) (*goredis.XPending, error)
	XPendingExt(ctx context.Context, key, group, start, end string, count int64) ([]goredis.XPendingExt, error)
	XClaim(ctx context.Context, key, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error)
}

type redisAdapter struct {
	prefix string
	conn   goredis.UniversalClient
}

// NewRedisAdapter connects and pings; every key is namespaced with keysPrefix.
func NewRedisAdapter(keysPrefix string, opts *Options) (RedisAdapter, error) {
	c := goredis.NewUniversalClient(opts)
	if err := c.Ping(context.Background()).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &redisAdapter{conn: c, prefix: keysPrefix}, nil
}

func (r *redisAdapter) key(k string) string {
	return r.prefix + k
}

func (r *redisAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.conn.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *redisAdapter) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return r.conn.SetNX(ctx, r.key(key), value, ttl).Result()
}

func (r *redisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	return r.conn.Get(ctx, r.key(key)).Bytes()
}

func (r *redisAdapter) Del(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	return r.conn.Del(ctx, full...).Err()
}

func (r *redisAdapter) Exist(ctx context.Context, key string) (int64, error) {
	return r.conn.Exists(ctx, r.key(key)).Result()
}

// Incr increments key and refreshes its ttl in one MULTI.
func (r *redisAdapter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *goredis.IntCmd
	_, err := r.conn.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		incr = p.Incr(ctx, r.key(key))
		if ttl > 0 {
			p.Expire(ctx, r.key(key), ttl)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (r *redisAdapter) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx).Err()
}

func (r *redisAdapter) Close() error {
	return r.conn.Close()
}

func (r *redisAdapter) XAdd(ctx context.Context, key string, values map[string]interface{}) (string, error) {
	return r.conn.XAdd(ctx, &goredis.XAddArgs{
		Stream: r.key(key),
		ID:     "*",
		Values: values,
	}).Result()
}

// XReadGroup never blocks; an empty stream yields NilError.
func (r *redisAdapter) XReadGroup(ctx context.Context, group, consumer, key, id string, count int64) ([]StreamMessage, error) {
	streams, err := r.conn.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{r.key(key), id},
		Count:    count,
		Block:    -1,
	}).Result()
	if err != nil {
		return nil, err
	}

	var messages []StreamMessage
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			messages = append(messages, StreamMessage{ID: msg.ID, Values: msg.Values})
		}
	}
	return messages, nil
}

func (r *redisAdapter) XAck(ctx context.Context, key, group string, ids ...string) error {
	return r.conn.XAck(ctx, r.key(key), group, ids...).Err()
}

func (r *redisAdapter) XGroupCreateMkStream(ctx context.Context, key, group, start string) error {
	err := r.conn.XGroupCreateMkStream(ctx, r.key(key), group, start).Err()
	if err != nil && isBusyGroup(err) {
		return nil
	}
	return err
}

func (r *redisAdapter) XLen(ctx context.Context, key string) (int64, error) {
	return r.conn.XLen(ctx, r.key(key)).Result()
}

func (r *redisAdapter) XTrimApprox(ctx context.Context, key string, maxLen int64) error {
	return r.conn.XTrimMaxLenApprox(ctx, r.key(key), maxLen, 0).Err()
}

func (r *redisAdapter) XPending(ctx context.Context, key, group string) (*goredis.XPending, error) {
	return r.conn.XPending(ctx, r.key(key), group).Result()
}

func (r *redisAdapter) XPendingExt(ctx context.Context, key, group, start, end string, count int64) ([]goredis.XPendingExt, error) {
	return r.conn.XPendingExt(ctx, &goredis.XPendingExtArgs{
		Stream: r.key(key),
		Group:  group,
		Start:  start,
		End:    end,
		Count:  count,
	}).Result()
}

func (r *redisAdapter) XClaim(ctx context.Context, key, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error) {
	claimed, err := r.conn.XClaim(ctx, &goredis.XClaimArgs{
		Stream:   r.key(key),
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]StreamMessage, 0, len(claimed))
	for _, msg := range claimed {
		messages = append(messages, StreamMessage{ID: msg.ID, Values: msg.Values})
	}
	return messages, nil
}

func isBusyGroup(err error) bool {
	var rerr goredis.Error
	if errors.As(err, &rerr) {
		msg := rerr.Error()
		return len(msg) >= 9 && msg[:9] == "BUSYGROUP"
	}
	return false
}
