// Package download реализует конвейер загрузки выбранного варианта и
// доставки файла пользователю.
package download

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-media-bot/internal/domain"
	"tg-media-bot/internal/infra/metrics"
)

const (
	downloadingText = "📥 Скачиваю выбранный вариант... ⏳"
	genericFailure  = "внутренняя ошибка, попробуйте позже"
)

// Service обрабатывает задачи загрузки.
type Service struct {
	ledger     domain.ActivityLedger
	extractors domain.ExtractorRegistry
	notifier   domain.Notifier
	outputDir  string
	log        zerolog.Logger
}

// NewService создаёт сервис загрузки. outputDir — каталог для
// скачанных файлов, если задача не несёт своей подсказки.
func NewService(ledger domain.ActivityLedger, extractors domain.ExtractorRegistry, notifier domain.Notifier, outputDir string, log zerolog.Logger) *Service {
	return &Service{
		ledger:     ledger,
		extractors: extractors,
		notifier:   notifier,
		outputDir:  outputDir,
		log:        log,
	}
}

// Process выполняет одну задачу загрузки. Любой исход завершается
// ровно одним уведомлением пользователю и снятием аренды загрузки.
func (s *Service) Process(ctx context.Context, job domain.DownloadJob) {
	lane := domain.DownloadLaneFor(job)
	jobLog := s.log.With().
		Str("job_id", job.ID).
		Int64("chat_id", job.ChatID).
		Str("lane", lane).
		Str("kind", string(job.Kind)).
		Logger()

	metrics.DownloadRequestsTotal.WithLabelValues(lane).Inc()
	defer s.ledger.Release(ctx, job.ChatID, domain.LeaseDownload)

	placeholder, err := s.notifier.NotifyStart(ctx, job.ChatID, downloadingText)
	if err != nil {
		jobLog.Error().Err(err).Msg("download: не удалось отправить плейсхолдер")
	}

	// Изображения и превью не требуют загрузчика: задача несёт прямую
	// ссылку на файл, Telegram заберёт его сам.
	if job.Kind == domain.KindImage || job.Kind == domain.KindThumbnail {
		s.deliverByURL(ctx, jobLog, job, placeholder)
		return
	}

	extractor, ok := s.extractors.Lookup(job.Platform)
	if !ok {
		jobLog.Error().Msg("download: извлекатель сервиса не зарегистрирован")
		s.fail(ctx, jobLog, job, placeholder, genericFailure)
		return
	}

	outputDir := job.OutputHint
	if outputDir == "" {
		outputDir = s.outputDir
	}

	start := time.Now()
	result := extractor.Download(ctx, job.URL, job.RenditionID, outputDir)
	metrics.DownloadDuration.WithLabelValues(lane).Observe(time.Since(start).Seconds())

	if result.Status != domain.StatusSuccess || result.LocalPath == "" {
		jobLog.Warn().Str("code", string(result.Code)).Str("context", result.Context).Msg("download: загрузка завершилась ошибкой")
		s.fail(ctx, jobLog, job, placeholder, extractor.Describe(result.Code))
		return
	}

	var deliverErr error
	switch job.Kind {
	case domain.KindAudio:
		deliverErr = s.notifier.DeliverAudio(ctx, job.ChatID, placeholder, result.LocalPath, "🎵 Audio")
	default:
		deliverErr = s.notifier.DeliverVideo(ctx, job.ChatID, placeholder, result.LocalPath, videoCaption(job))
	}
	if deliverErr != nil {
		jobLog.Error().Err(deliverErr).Msg("download: не удалось доставить файл")
		metrics.DeliveryErrorsTotal.Inc()
		return
	}
	jobLog.Info().Str("path", result.LocalPath).Msg("download: файл доставлен")
}

func (s *Service) deliverByURL(ctx context.Context, jobLog zerolog.Logger, job domain.DownloadJob, placeholder domain.MessageHandle) {
	if job.SourceURL == "" {
		s.fail(ctx, jobLog, job, placeholder, genericFailure)
		return
	}
	caption := "🖼️ " + job.DisplayName
	if err := s.notifier.DeliverPhotoURL(ctx, job.ChatID, placeholder, job.SourceURL, caption); err != nil {
		jobLog.Error().Err(err).Msg("download: не удалось доставить изображение")
		metrics.DeliveryErrorsTotal.Inc()
	}
}

func (s *Service) fail(ctx context.Context, jobLog zerolog.Logger, job domain.DownloadJob, placeholder domain.MessageHandle, reason string) {
	if err := s.notifier.DeliverFailure(ctx, job.ChatID, placeholder, reason); err != nil {
		jobLog.Error().Err(err).Msg("download: не удалось отправить сообщение об ошибке")
		metrics.DeliveryErrorsTotal.Inc()
	}
}

func videoCaption(job domain.DownloadJob) string {
	if job.Height > 0 {
		return fmt.Sprintf("🎬 Video %dp", job.Height)
	}
	return "🎬 Video"
}
