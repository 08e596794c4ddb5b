package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-media-bot/internal/domain"
)

// fakeKV — KV в памяти с ручными часами: тесты управляют течением
// времени сами, продление TTL при чтении воспроизводится честно.
type fakeKV struct {
	now     time.Time
	entries map[string]fakeEntry
}

type fakeEntry struct {
	payload   []byte
	expiresAt time.Time
}

func newFakeKV() *fakeKV {
	return &fakeKV{now: time.Unix(0, 0), entries: make(map[string]fakeEntry)}
}

func (f *fakeKV) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fakeKV) alive(key string) (fakeEntry, bool) {
	entry, ok := f.entries[key]
	if !ok || f.now.After(entry.expiresAt) {
		delete(f.entries, key)
		return fakeEntry{}, false
	}
	return entry, true
}

func (f *fakeKV) Put(_ context.Context, key string, value any, ttl time.Duration) bool {
	payload, err := json.Marshal(value)
	if err != nil {
		return false
	}
	f.entries[key] = fakeEntry{payload: payload, expiresAt: f.now.Add(ttl)}
	return true
}

func (f *fakeKV) PutNX(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if _, ok := f.alive(key); ok {
		return false
	}
	return f.Put(ctx, key, value, ttl)
}

func (f *fakeKV) Get(_ context.Context, key string, dest any, ttl time.Duration) bool {
	entry, ok := f.alive(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return false
	}
	entry.expiresAt = f.now.Add(ttl)
	f.entries[key] = entry
	return true
}

func (f *fakeKV) Delete(_ context.Context, key string) bool {
	_, ok := f.alive(key)
	delete(f.entries, key)
	return ok
}

var _ domain.KV = (*fakeKV)(nil)

func TestLedgerSingleFlight(t *testing.T) {
	kv := newFakeKV()
	ledger := NewLedger(kv, time.Hour, zerolog.Nop())
	ctx := context.Background()

	if !ledger.TryAcquire(ctx, 42, domain.LeaseExtract, "https://youtu.be/a", domain.PlatformYouTube) {
		t.Fatalf("первая аренда должна устанавливаться")
	}
	if ledger.TryAcquire(ctx, 42, domain.LeaseExtract, "https://youtu.be/b", domain.PlatformYouTube) {
		t.Fatalf("повторная аренда того же вида должна отклоняться")
	}
	// Аренды разных видов независимы.
	if !ledger.TryAcquire(ctx, 42, domain.LeaseDownload, "https://youtu.be/a", domain.PlatformYouTube) {
		t.Fatalf("аренда другого вида должна устанавливаться")
	}
	// Аренды разных чатов независимы.
	if !ledger.TryAcquire(ctx, 43, domain.LeaseExtract, "https://youtu.be/a", domain.PlatformYouTube) {
		t.Fatalf("аренда другого чата должна устанавливаться")
	}

	if !ledger.Release(ctx, 42, domain.LeaseExtract) {
		t.Fatalf("снятие живой аренды должно вернуть true")
	}
	if ledger.Release(ctx, 42, domain.LeaseExtract) {
		t.Fatalf("повторное снятие должно вернуть false без ошибки")
	}
	if !ledger.TryAcquire(ctx, 42, domain.LeaseExtract, "https://youtu.be/c", domain.PlatformYouTube) {
		t.Fatalf("после снятия аренда должна устанавливаться заново")
	}
}

func TestLedgerLeaseExpires(t *testing.T) {
	kv := newFakeKV()
	ledger := NewLedger(kv, time.Hour, zerolog.Nop())
	ctx := context.Background()

	if !ledger.TryAcquire(ctx, 1, domain.LeaseDownload, "u", domain.PlatformTikTok) {
		t.Fatalf("аренда должна устанавливаться")
	}
	kv.advance(2 * time.Hour)
	// Истёкшая аренда зависшей задачи не блокирует пользователя.
	if !ledger.TryAcquire(ctx, 1, domain.LeaseDownload, "u", domain.PlatformTikTok) {
		t.Fatalf("после истечения TTL аренда должна устанавливаться")
	}
}

func TestLedgerPeek(t *testing.T) {
	kv := newFakeKV()
	ledger := NewLedger(kv, time.Hour, zerolog.Nop())
	ctx := context.Background()

	if _, ok := ledger.Peek(ctx, 7, domain.LeaseExtract); ok {
		t.Fatalf("не ожидали живую аренду")
	}
	ledger.TryAcquire(ctx, 7, domain.LeaseExtract, "https://reddit.com/r/x", domain.PlatformReddit)
	lease, ok := ledger.Peek(ctx, 7, domain.LeaseExtract)
	if !ok {
		t.Fatalf("ожидали живую аренду")
	}
	if lease.OriginURL != "https://reddit.com/r/x" || lease.Platform != domain.PlatformReddit {
		t.Fatalf("аренда несёт не те данные: %+v", lease)
	}
}

func TestMediaCacheRoundTrip(t *testing.T) {
	kv := newFakeKV()
	cache := NewMediaCache(kv, time.Hour, zerolog.Nop())
	ctx := context.Background()

	url := "https://www.youtube.com/watch?v=abc"
	media := domain.MediaInfo{
		OriginURL: url,
		Platform:  domain.PlatformYouTube,
		Title:     "пример",
		IsVideo:   true,
		Videos:    []domain.Rendition{{ID: "137", DisplayName: "1080p"}},
	}

	if _, ok := cache.Fetch(ctx, url); ok {
		t.Fatalf("не ожидали попадание до записи")
	}
	if !cache.Store(ctx, url, media) {
		t.Fatalf("запись должна пройти")
	}
	got, ok := cache.Fetch(ctx, url)
	if !ok {
		t.Fatalf("ожидали попадание после записи")
	}
	if got.Title != media.Title || len(got.Videos) != 1 || got.Videos[0].ID != "137" {
		t.Fatalf("кэш вернул не тот результат: %+v", got)
	}

	// Разные ссылки — разные ключи.
	if _, ok := cache.Fetch(ctx, url+"&t=1"); ok {
		t.Fatalf("другая ссылка не должна попадать в тот же ключ")
	}
}

func TestMediaCacheExpiresAndRefreshes(t *testing.T) {
	kv := newFakeKV()
	cache := NewMediaCache(kv, time.Hour, zerolog.Nop())
	ctx := context.Background()

	cache.Store(ctx, "u1", domain.MediaInfo{Title: "a"})
	kv.advance(2 * time.Hour)
	if _, ok := cache.Fetch(ctx, "u1"); ok {
		t.Fatalf("после истечения TTL запись должна пропасть")
	}

	cache.Store(ctx, "u2", domain.MediaInfo{Title: "b"})
	kv.advance(40 * time.Minute)
	if _, ok := cache.Fetch(ctx, "u2"); !ok {
		t.Fatalf("запись ещё жива")
	}
	// Чтение продлило TTL: ещё 40 минут спустя запись всё ещё на месте.
	kv.advance(40 * time.Minute)
	if _, ok := cache.Fetch(ctx, "u2"); !ok {
		t.Fatalf("чтение должно было продлить TTL")
	}
}

func TestSessionStoreReplacesAndRefreshes(t *testing.T) {
	kv := newFakeKV()
	sessions := NewSessionStore(kv, time.Hour, zerolog.Nop())
	ctx := context.Background()

	sessions.Create(ctx, 5, "https://youtu.be/a", domain.PlatformYouTube, domain.MediaInfo{Title: "первый"})
	sessions.Create(ctx, 5, "https://rutu.be/b", domain.PlatformRutube, domain.MediaInfo{Title: "второй"})

	session, ok := sessions.Fetch(ctx, 5)
	if !ok {
		t.Fatalf("ожидали сессию")
	}
	// Новая ссылка замещает сессию целиком.
	if session.Platform != domain.PlatformRutube || session.Media.Title != "второй" {
		t.Fatalf("сессия не замещена: %+v", session)
	}

	kv.advance(45 * time.Minute)
	if _, ok := sessions.Fetch(ctx, 5); !ok {
		t.Fatalf("сессия ещё жива")
	}
	kv.advance(45 * time.Minute)
	if _, ok := sessions.Fetch(ctx, 5); !ok {
		t.Fatalf("чтение должно было продлить TTL сессии")
	}

	if _, ok := sessions.Fetch(ctx, 6); ok {
		t.Fatalf("чужой чат не должен видеть сессию")
	}
}
