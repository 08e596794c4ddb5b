package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-media-bot/internal/domain"
)

// RedisLanes открывает линии на базе Redis lists. Вариант для dev и
// малых установок: доставка at-most-once, ack — no-op.
type RedisLanes struct {
	client *redis.Client
}

// NewRedisLanes создаёт фабрику линий.
func NewRedisLanes(client *redis.Client) *RedisLanes {
	return &RedisLanes{client: client}
}

// Open возвращает линию по ключу списка.
func (r *RedisLanes) Open(lane string) (Lane, error) {
	if lane == "" {
		return nil, errors.New("queue name is empty")
	}
	return &redisLane{client: r.client, key: lane}, nil
}

type redisLane struct {
	client *redis.Client
	key    string
}

// Publish публикует задачу в список.
func (l *redisLane) Publish(ctx context.Context, payload []byte) error {
	if err := l.client.LPush(ctx, l.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из списка.
func (l *redisLane) Receive(ctx context.Context) ([]byte, domain.AckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		res, err := l.client.BRPop(ctx, time.Second, l.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return nil, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, nil, err
		}
		if len(res) != 2 {
			return nil, nil, errors.New("redis queue: unexpected response")
		}
		noop := func(bool) error { return nil }
		return []byte(res[1]), noop, nil
	}
}
