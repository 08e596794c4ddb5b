package extract

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"tg-media-bot/internal/domain"
)

func iptr(v int) *int { return &v }

type stubLedger struct {
	released []domain.LeaseKind
}

func (s *stubLedger) TryAcquire(context.Context, int64, domain.LeaseKind, string, domain.Platform) bool {
	return true
}
func (s *stubLedger) Peek(context.Context, int64, domain.LeaseKind) (domain.ActivityLease, bool) {
	return domain.ActivityLease{}, false
}
func (s *stubLedger) Release(_ context.Context, _ int64, kind domain.LeaseKind) bool {
	s.released = append(s.released, kind)
	return true
}

type stubCache struct {
	entries map[string]domain.MediaInfo
	stored  []string
}

func (s *stubCache) Store(_ context.Context, url string, media domain.MediaInfo) bool {
	if s.entries == nil {
		s.entries = make(map[string]domain.MediaInfo)
	}
	s.entries[url] = media
	s.stored = append(s.stored, url)
	return true
}
func (s *stubCache) Fetch(_ context.Context, url string) (domain.MediaInfo, bool) {
	media, ok := s.entries[url]
	return media, ok
}

type stubSessions struct {
	created []domain.Session
}

func (s *stubSessions) Create(_ context.Context, chatID int64, url string, platform domain.Platform, media domain.MediaInfo) bool {
	s.created = append(s.created, domain.Session{ChatID: chatID, OriginURL: url, Platform: platform, Media: media})
	return true
}
func (s *stubSessions) Fetch(context.Context, int64) (domain.Session, bool) {
	return domain.Session{}, false
}

type stubExtractor struct {
	result domain.ExtractResult
	calls  int
}

func (s *stubExtractor) ExtractInfo(context.Context, string) domain.ExtractResult {
	s.calls++
	return s.result
}
func (s *stubExtractor) Download(context.Context, string, string, string) domain.DownloadResult {
	return domain.DownloadResult{}
}
func (s *stubExtractor) Describe(code domain.ErrorCode) string { return "причина " + string(code) }

type stubRegistry struct {
	extractor domain.Extractor
}

func (s *stubRegistry) Lookup(domain.Platform) (domain.Extractor, bool) {
	if s.extractor == nil {
		return nil, false
	}
	return s.extractor, true
}

type stubNotifier struct {
	starts   int
	offers   []domain.MediaOffer
	failures []string
}

func (s *stubNotifier) NotifyStart(_ context.Context, chatID int64, _ string) (domain.MessageHandle, error) {
	s.starts++
	return domain.MessageHandle{ChatID: chatID, MessageID: 100 + s.starts}, nil
}
func (s *stubNotifier) OfferChoices(_ context.Context, _ int64, _ domain.MessageHandle, offer domain.MediaOffer) error {
	s.offers = append(s.offers, offer)
	return nil
}
func (s *stubNotifier) DeliverVideo(context.Context, int64, domain.MessageHandle, string, string) error {
	return nil
}
func (s *stubNotifier) DeliverAudio(context.Context, int64, domain.MessageHandle, string, string) error {
	return nil
}
func (s *stubNotifier) DeliverPhotoURL(context.Context, int64, domain.MessageHandle, string, string) error {
	return nil
}
func (s *stubNotifier) DeliverFailure(_ context.Context, _ int64, _ domain.MessageHandle, reason string) error {
	s.failures = append(s.failures, reason)
	return nil
}

func sampleMedia() domain.MediaInfo {
	return domain.MediaInfo{
		Title:      "пример",
		AuthorName: "автор",
		IsVideo:    true,
		Videos: []domain.Rendition{
			{ID: "v360", Width: iptr(640), Height: iptr(360)},
			{ID: "v720", Width: iptr(1280), Height: iptr(720)},
			{ID: "v1080", Width: iptr(1920), Height: iptr(1080)},
		},
		Audios:     []domain.Rendition{{ID: "a128", Bitrate: iptr(128)}},
		Thumbnails: []domain.Rendition{{ID: "t1", SourceURL: "https://img/1.jpg", Width: iptr(1280), Height: iptr(720)}},
	}
}

func newService(reg domain.ExtractorRegistry) (*Service, *stubLedger, *stubCache, *stubSessions, *stubNotifier) {
	ledger := &stubLedger{}
	cache := &stubCache{}
	sessions := &stubSessions{}
	notifier := &stubNotifier{}
	service := NewService(ledger, cache, sessions, reg, notifier, zerolog.Nop())
	return service, ledger, cache, sessions, notifier
}

func extractJob() domain.ExtractJob {
	return domain.ExtractJob{
		Version:  domain.ExtractJobVersion,
		ID:       "job-1",
		ChatID:   42,
		URL:      "https://www.youtube.com/watch?v=abc",
		Platform: domain.PlatformYouTube,
	}
}

func TestProcessSuccess(t *testing.T) {
	media := sampleMedia()
	ex := &stubExtractor{result: domain.ExtractResult{Status: domain.StatusSuccess, Code: domain.CodeSuccess, Media: &media}}
	service, ledger, cache, sessions, notifier := newService(&stubRegistry{extractor: ex})

	service.Process(context.Background(), extractJob())

	if notifier.starts != 1 {
		t.Fatalf("ожидали один плейсхолдер, получили %d", notifier.starts)
	}
	if len(notifier.offers) != 1 {
		t.Fatalf("ожидали одно предложение, получили %d", len(notifier.offers))
	}
	offer := notifier.offers[0]
	// Три видео + аудио + превью.
	if len(offer.Buttons) != 5 {
		t.Fatalf("ожидали 5 кнопок, получили %d", len(offer.Buttons))
	}
	if offer.Buttons[0].Callback != "video:v1080" {
		t.Fatalf("кнопки видео идут от высокого качества: %s", offer.Buttons[0].Callback)
	}
	if offer.PreviewURL != "https://img/1.jpg" {
		t.Fatalf("превью должно взяться из лучшей миниатюры, получили %q", offer.PreviewURL)
	}

	if len(sessions.created) != 1 {
		t.Fatalf("ожидали одну сессию, получили %d", len(sessions.created))
	}
	if sessions.created[0].Media.OriginURL != extractJob().URL {
		t.Fatalf("сессия должна нести исходную ссылку")
	}
	if len(cache.stored) != 1 {
		t.Fatalf("результат должен попасть в кэш")
	}
	if len(ledger.released) != 1 || ledger.released[0] != domain.LeaseExtract {
		t.Fatalf("аренда извлечения должна сняться ровно один раз: %v", ledger.released)
	}
}

func TestProcessCacheHitSkipsExtractor(t *testing.T) {
	media := sampleMedia()
	media.OriginURL = extractJob().URL
	media.Platform = domain.PlatformYouTube
	ex := &stubExtractor{result: domain.ExtractResult{Status: domain.StatusSuccess, Code: domain.CodeSuccess, Media: &media}}
	service, ledger, cache, sessions, notifier := newService(&stubRegistry{extractor: ex})
	cache.Store(context.Background(), extractJob().URL, media)
	cache.stored = nil

	service.Process(context.Background(), extractJob())

	if ex.calls != 0 {
		t.Fatalf("при попадании в кэш извлекатель не вызывается, вызовов %d", ex.calls)
	}
	if len(notifier.offers) != 1 {
		t.Fatalf("ожидали предложение из кэша")
	}
	// Кэшированный результат тоже кладётся в сессию, иначе кнопки не
	// разрешатся.
	if len(sessions.created) != 1 {
		t.Fatalf("сессия должна создаться и при попадании в кэш")
	}
	if len(cache.stored) != 0 {
		t.Fatalf("повторная запись в кэш не нужна")
	}
	if len(ledger.released) != 1 {
		t.Fatalf("аренда должна сняться и при попадании в кэш")
	}
}

func TestProcessExtractorFailure(t *testing.T) {
	ex := &stubExtractor{result: domain.ExtractResult{Status: domain.StatusError, Code: "PRIVATE_CONTENT", Context: "login required"}}
	service, ledger, cache, sessions, notifier := newService(&stubRegistry{extractor: ex})

	service.Process(context.Background(), extractJob())

	if len(notifier.failures) != 1 {
		t.Fatalf("ожидали одно сообщение об ошибке, получили %d", len(notifier.failures))
	}
	if notifier.failures[0] != "причина PRIVATE_CONTENT" {
		t.Fatalf("причина должна идти из Describe извлекателя: %q", notifier.failures[0])
	}
	if len(notifier.offers) != 0 {
		t.Fatalf("предложение при ошибке не отправляется")
	}
	if len(sessions.created) != 0 || len(cache.stored) != 0 {
		t.Fatalf("ошибка не должна попадать в сессию и кэш")
	}
	if len(ledger.released) != 1 {
		t.Fatalf("аренда должна сняться при любом исходе")
	}
}

func TestProcessUnknownPlatform(t *testing.T) {
	service, ledger, _, _, notifier := newService(&stubRegistry{})

	service.Process(context.Background(), extractJob())

	if len(notifier.failures) != 1 {
		t.Fatalf("без извлекателя ожидали сообщение об ошибке")
	}
	if len(ledger.released) != 1 {
		t.Fatalf("аренда должна сняться")
	}
}

func TestProcessNoRenditions(t *testing.T) {
	empty := domain.MediaInfo{Title: "пусто"}
	ex := &stubExtractor{result: domain.ExtractResult{Status: domain.StatusSuccess, Code: domain.CodeSuccess, Media: &empty}}
	service, ledger, _, _, notifier := newService(&stubRegistry{extractor: ex})

	service.Process(context.Background(), extractJob())

	if len(notifier.offers) != 0 {
		t.Fatalf("без вариантов предложение не отправляется")
	}
	if len(notifier.failures) != 1 {
		t.Fatalf("без вариантов пользователь получает отказ")
	}
	if len(ledger.released) != 1 {
		t.Fatalf("аренда должна сняться")
	}
}

func TestBuildOfferImage(t *testing.T) {
	media := domain.MediaInfo{
		IsImage: true,
		Images: []domain.Rendition{
			{ID: "i1", SourceURL: "https://img/a.jpg", Width: iptr(1080)},
			{ID: "i2", SourceURL: "https://img/b.jpg", Width: iptr(1080)},
		},
	}
	offer, ok := BuildOffer(domain.PlatformInstagram, media)
	if !ok {
		t.Fatalf("ожидали предложение для изображений")
	}
	if len(offer.Buttons) != 1 {
		t.Fatalf("ожидали одну кнопку, получили %d", len(offer.Buttons))
	}
	if offer.PreviewURL != "https://img/a.jpg" {
		t.Fatalf("превью должно указывать на картинку, получили %q", offer.PreviewURL)
	}
}
