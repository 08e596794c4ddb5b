package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-media-bot/internal/domain"
)

// SessionStore хранит по чату последний результат извлечения.
// Ключи user_session:{chatId}; чтение продлевает TTL, чтобы сессия
// активного пользователя не истекала между нажатиями кнопок.
type SessionStore struct {
	kv  domain.KV
	ttl time.Duration
	log zerolog.Logger
}

// NewSessionStore создаёт хранилище сессий.
func NewSessionStore(kv domain.KV, ttl time.Duration, log zerolog.Logger) *SessionStore {
	return &SessionStore{kv: kv, ttl: ttl, log: log}
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("user_session:%d", chatID)
}

// Create создаёт или замещает сессию чата.
func (s *SessionStore) Create(ctx context.Context, chatID int64, url string, platform domain.Platform, media domain.MediaInfo) bool {
	session := domain.Session{
		ChatID:    chatID,
		OriginURL: url,
		Platform:  platform,
		Media:     media,
	}
	ok := s.kv.Put(ctx, sessionKey(chatID), session, s.ttl)
	if ok {
		s.log.Debug().Int64("chat_id", chatID).Str("platform", string(platform)).Msg("сессия создана")
	} else {
		s.log.Warn().Int64("chat_id", chatID).Msg("не удалось создать сессию")
	}
	return ok
}

// Fetch возвращает сессию чата, продлевая TTL. Отсутствие означает,
// что пользователя нужно попросить прислать ссылку заново.
func (s *SessionStore) Fetch(ctx context.Context, chatID int64) (domain.Session, bool) {
	var session domain.Session
	if !s.kv.Get(ctx, sessionKey(chatID), &session, s.ttl) {
		s.log.Debug().Int64("chat_id", chatID).Msg("сессия не найдена")
		return domain.Session{}, false
	}
	return session, true
}
