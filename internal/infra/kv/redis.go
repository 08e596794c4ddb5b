package kv

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis реализует domain.KV поверх одиночных атомарных команд Redis.
// Значения сериализуются в JSON внутри адаптера; любая ошибка
// сериализации или сети превращается в false/промах и логируется.
type Redis struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedis создаёт адаптер.
func NewRedis(client *redis.Client, log zerolog.Logger) *Redis {
	return &Redis{client: client, log: log}
}

// Put записывает значение с TTL.
func (r *Redis) Put(ctx context.Context, key string, value any, ttl time.Duration) bool {
	payload, err := json.Marshal(value)
	if err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("kv: ошибка сериализации")
		return false
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("kv: ошибка записи")
		return false
	}
	return true
}

// PutNX записывает значение только при отсутствии ключа (SET NX EX).
// Атомарность условной записи закрывает гонку между проверкой
// занятости и установкой аренды.
func (r *Redis) PutNX(ctx context.Context, key string, value any, ttl time.Duration) bool {
	payload, err := json.Marshal(value)
	if err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("kv: ошибка сериализации")
		return false
	}
	ok, err := r.client.SetNX(ctx, key, payload, ttl).Result()
	if err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("kv: ошибка условной записи")
		return false
	}
	return ok
}

// Get читает значение и атомарно продлевает TTL (GETEX).
func (r *Redis) Get(ctx context.Context, key string, dest any, ttl time.Duration) bool {
	payload, err := r.client.GetEx(ctx, key, ttl).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Error().Err(err).Str("key", key).Msg("kv: ошибка чтения")
		}
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("kv: ошибка десериализации")
		return false
	}
	return true
}

// Delete удаляет ключ; false означает, что ключа уже не было.
func (r *Redis) Delete(ctx context.Context, key string) bool {
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("kv: ошибка удаления")
		return false
	}
	return n > 0
}
