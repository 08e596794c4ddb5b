// Package extract реализует конвейер извлечения: кэш, внешний
// извлекатель, подбор вариантов, запись сессии и предложение выбора.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-media-bot/internal/domain"
	"tg-media-bot/internal/infra/metrics"
	"tg-media-bot/internal/usecase/selector"
)

const (
	searchingText  = "🔍 Ищу медиа-контент... пожалуйста, подождите ⏳"
	genericFailure = "внутренняя ошибка, попробуйте позже"
)

// Service обрабатывает задачи извлечения метаданных.
type Service struct {
	ledger     domain.ActivityLedger
	cache      domain.MediaCache
	sessions   domain.SessionStore
	extractors domain.ExtractorRegistry
	notifier   domain.Notifier
	log        zerolog.Logger
}

// NewService создаёт сервис извлечения.
func NewService(ledger domain.ActivityLedger, cache domain.MediaCache, sessions domain.SessionStore, extractors domain.ExtractorRegistry, notifier domain.Notifier, log zerolog.Logger) *Service {
	return &Service{
		ledger:     ledger,
		cache:      cache,
		sessions:   sessions,
		extractors: extractors,
		notifier:   notifier,
		log:        log,
	}
}

// Process выполняет одну задачу извлечения. Любой исход завершается
// ровно одним уведомлением пользователю и снятием аренды извлечения.
func (s *Service) Process(ctx context.Context, job domain.ExtractJob) {
	jobLog := s.log.With().
		Str("job_id", job.ID).
		Int64("chat_id", job.ChatID).
		Str("platform", string(job.Platform)).
		Logger()

	metrics.ExtractRequestsTotal.WithLabelValues(string(job.Platform)).Inc()
	defer s.ledger.Release(ctx, job.ChatID, domain.LeaseExtract)

	placeholder, err := s.notifier.NotifyStart(ctx, job.ChatID, searchingText)
	if err != nil {
		jobLog.Error().Err(err).Msg("extract: не удалось отправить плейсхолдер")
	}

	extractor, haveExtractor := s.extractors.Lookup(job.Platform)

	media, cached := s.cache.Fetch(ctx, job.URL)
	if cached {
		metrics.ExtractCacheHits.Inc()
		jobLog.Debug().Msg("extract: результат взят из кэша")
		// Кэшированный результат тоже должен попасть в сессию, иначе
		// кнопки не разрешатся.
		s.sessions.Create(ctx, job.ChatID, job.URL, job.Platform, media)
		s.offer(ctx, jobLog, job, placeholder, media)
		return
	}

	if !haveExtractor {
		jobLog.Error().Msg("extract: извлекатель сервиса не зарегистрирован")
		s.fail(ctx, jobLog, job, placeholder, genericFailure)
		return
	}

	start := time.Now()
	result := extractor.ExtractInfo(ctx, job.URL)
	metrics.ExtractDuration.WithLabelValues(string(job.Platform)).Observe(time.Since(start).Seconds())

	if result.Status != domain.StatusSuccess || result.Media == nil {
		jobLog.Warn().Str("code", string(result.Code)).Str("context", result.Context).Msg("extract: извлечение завершилось ошибкой")
		s.fail(ctx, jobLog, job, placeholder, extractor.Describe(result.Code))
		return
	}

	media = *result.Media
	media.OriginURL = job.URL
	media.Platform = job.Platform

	// Сессия и кэш получают один и тот же результат: нажатие кнопки
	// резолвится по сессии, повторная ссылка — по кэшу.
	s.sessions.Create(ctx, job.ChatID, job.URL, job.Platform, media)
	s.cache.Store(ctx, job.URL, media)

	s.offer(ctx, jobLog, job, placeholder, media)
}

func (s *Service) offer(ctx context.Context, jobLog zerolog.Logger, job domain.ExtractJob, placeholder domain.MessageHandle, media domain.MediaInfo) {
	offer, ok := BuildOffer(job.Platform, media)
	if !ok {
		s.fail(ctx, jobLog, job, placeholder, "не нашёл подходящих вариантов для загрузки")
		return
	}
	if err := s.notifier.OfferChoices(ctx, job.ChatID, placeholder, offer); err != nil {
		jobLog.Error().Err(err).Msg("extract: не удалось отправить предложение")
		metrics.DeliveryErrorsTotal.Inc()
	}
}

func (s *Service) fail(ctx context.Context, jobLog zerolog.Logger, job domain.ExtractJob, placeholder domain.MessageHandle, reason string) {
	if err := s.notifier.DeliverFailure(ctx, job.ChatID, placeholder, reason); err != nil {
		jobLog.Error().Err(err).Msg("extract: не удалось отправить сообщение об ошибке")
		metrics.DeliveryErrorsTotal.Inc()
	}
}

// BuildOffer собирает предложение вариантов: кнопки по виду контента,
// подпись и превью. Пустые коллекции просто не дают кнопок; false
// возвращается, только когда кнопок нет вовсе.
func BuildOffer(platform domain.Platform, media domain.MediaInfo) (domain.MediaOffer, bool) {
	var buttons []selector.Button
	previewURL := ""

	switch {
	case media.IsVideo:
		buttons = append(buttons, selector.VideoButtons(media.Videos)...)
		if audio, ok := selector.AudioButton(media.Audios); ok {
			buttons = append(buttons, audio)
		}
		if thumb, ok := selector.ThumbnailButton(media.Thumbnails); ok {
			buttons = append(buttons, thumb)
			previewURL = thumb.URL
		}
	case media.IsImage:
		if image, ok := selector.ImageButton(media.Images); ok {
			buttons = append(buttons, image)
			previewURL = image.URL
		}
		if audio, ok := selector.AudioButton(media.Audios); ok {
			buttons = append(buttons, audio)
		}
	}

	if len(buttons) == 0 {
		return domain.MediaOffer{}, false
	}

	offerButtons := make([]domain.OfferButton, 0, len(buttons))
	for _, b := range buttons {
		offerButtons = append(offerButtons, domain.OfferButton{
			Row:      b.Row,
			Label:    b.Label,
			Callback: b.Callback,
			URL:      b.URL,
		})
	}

	caption := fmt.Sprintf(
		"✅ Медиа готово!\n\n📹 Сервис: %s\n👤 Автор: %s\n📝 Заголовок: %s\n\n👇 Выберите действие:",
		platform, media.AuthorName, media.Title,
	)

	return domain.MediaOffer{
		Caption:    caption,
		PreviewURL: previewURL,
		Buttons:    offerButtons,
	}, true
}
