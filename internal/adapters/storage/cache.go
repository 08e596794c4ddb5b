package storage

import (
	"context"
	"crypto/md5"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-media-bot/internal/domain"
)

// MediaCache кэширует результаты извлечения по хэшу исходной ссылки.
// Формат ключей media_cache:{md5(url)} сохранён для совместимости с
// существующими инсталляциями.
type MediaCache struct {
	kv  domain.KV
	ttl time.Duration
	log zerolog.Logger
}

// NewMediaCache создаёт кэш с указанным TTL.
func NewMediaCache(kv domain.KV, ttl time.Duration, log zerolog.Logger) *MediaCache {
	return &MediaCache{kv: kv, ttl: ttl, log: log}
}

type cacheEntry struct {
	URL   string           `json:"url"`
	Media domain.MediaInfo `json:"data"`
}

func cacheKey(url string) string {
	return fmt.Sprintf("media_cache:%x", md5.Sum([]byte(url)))
}

// Store кладёт результат извлечения в кэш.
func (c *MediaCache) Store(ctx context.Context, url string, media domain.MediaInfo) bool {
	ok := c.kv.Put(ctx, cacheKey(url), cacheEntry{URL: url, Media: media}, c.ttl)
	if ok {
		c.log.Debug().Str("url", url).Dur("ttl", c.ttl).Msg("медиа закэшировано")
	} else {
		c.log.Warn().Str("url", url).Msg("не удалось закэшировать медиа")
	}
	return ok
}

// Fetch читает результат из кэша, продлевая TTL. Промах — не ошибка,
// а сигнал извлечь заново.
func (c *MediaCache) Fetch(ctx context.Context, url string) (domain.MediaInfo, bool) {
	var entry cacheEntry
	if !c.kv.Get(ctx, cacheKey(url), &entry, c.ttl) {
		c.log.Debug().Str("url", url).Msg("кэш медиа не найден")
		return domain.MediaInfo{}, false
	}
	c.log.Debug().Str("url", url).Msg("кэш медиа получен, TTL обновлён")
	return entry.Media, true
}
