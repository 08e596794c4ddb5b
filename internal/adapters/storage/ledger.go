package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-media-bot/internal/domain"
)

// Ledger реализует single-flight допуск операций пользователя поверх
// условной записи KV. Ключи user_extract:{chatId} и
// user_download:{chatId}; наличие записи и есть сигнал «занято».
// TTL — предохранитель: аренда зависшей задачи истекает сама, и
// следующая проверка просто не найдёт её.
type Ledger struct {
	kv  domain.KV
	ttl time.Duration
	log zerolog.Logger
}

// NewLedger создаёт журнал допуска.
func NewLedger(kv domain.KV, ttl time.Duration, log zerolog.Logger) *Ledger {
	return &Ledger{kv: kv, ttl: ttl, log: log}
}

func leaseKey(chatID int64, kind domain.LeaseKind) string {
	return fmt.Sprintf("user_%s:%d", kind, chatID)
}

// TryAcquire пытается установить аренду. false при живой аренде того
// же вида: без очереди, вызывающий должен сразу ответить пользователю
// «уже выполняется» и остановиться.
func (l *Ledger) TryAcquire(ctx context.Context, chatID int64, kind domain.LeaseKind, url string, platform domain.Platform) bool {
	lease := domain.ActivityLease{
		ChatID:    chatID,
		Kind:      kind,
		OriginURL: url,
		Platform:  platform,
	}
	ok := l.kv.PutNX(ctx, leaseKey(chatID, kind), lease, l.ttl)
	if ok {
		l.log.Info().Int64("chat_id", chatID).Str("kind", string(kind)).Msg("аренда установлена")
	} else {
		l.log.Debug().Int64("chat_id", chatID).Str("kind", string(kind)).Msg("аренда уже занята")
	}
	return ok
}

// Peek возвращает живую аренду, продлевая её TTL: пока задача
// активно проверяется, аренда не истекает.
func (l *Ledger) Peek(ctx context.Context, chatID int64, kind domain.LeaseKind) (domain.ActivityLease, bool) {
	var lease domain.ActivityLease
	if !l.kv.Get(ctx, leaseKey(chatID, kind), &lease, l.ttl) {
		return domain.ActivityLease{}, false
	}
	return lease, true
}

// Release снимает аренду после доставки терминального исхода.
// Идемпотентен: повторное снятие возвращает false без ошибки.
func (l *Ledger) Release(ctx context.Context, chatID int64, kind domain.LeaseKind) bool {
	ok := l.kv.Delete(ctx, leaseKey(chatID, kind))
	if ok {
		l.log.Info().Int64("chat_id", chatID).Str("kind", string(kind)).Msg("аренда снята")
	}
	return ok
}
