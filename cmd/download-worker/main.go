package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-media-bot/internal/adapters/extractor"
	"tg-media-bot/internal/adapters/storage"
	"tg-media-bot/internal/adapters/telegram"
	"tg-media-bot/internal/domain"
	"tg-media-bot/internal/infra/config"
	"tg-media-bot/internal/infra/kv"
	applog "tg-media-bot/internal/infra/log"
	"tg-media-bot/internal/infra/metrics"
	"tg-media-bot/internal/infra/queue"
	"tg-media-bot/internal/usecase/download"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "download-worker")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	if err := os.MkdirAll(cfg.MediaDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.MediaDir).Msg("download-worker: не удалось создать каталог медиа")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("download-worker: нет подключения к Redis")
	}
	defer redisClient.Close()

	store := kv.NewRedis(redisClient, logger)
	ledger := storage.NewLedger(store, time.Duration(cfg.TTL.LeaseSeconds)*time.Second, logger)

	var opener queue.LaneOpener
	if cfg.RabbitURL != "" {
		rabbit, err := queue.NewRabbit(cfg.RabbitURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("download-worker: не удалось подключиться к RabbitMQ")
		}
		defer rabbit.Close()
		opener = rabbit
	} else {
		logger.Warn().Msg("download-worker: RABBITMQ_URL не задан, очереди работают поверх Redis")
		opener = queue.NewRedisLanes(redisClient)
	}

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("download-worker: не указан токен Telegram (TG_BOT_TOKEN)")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("download-worker: не удалось создать бота")
	}
	notifier := telegram.NewNotifier(botAPI, logger)

	registry := buildRegistry(cfg, logger)
	service := download.NewService(ledger, registry, notifier, cfg.MediaDir, logger)

	lanes := cfg.Lanes()
	if len(lanes) == 0 {
		lanes = defaultLanes()
	}

	var wg sync.WaitGroup
	for _, name := range lanes {
		lane, err := queue.NewDownloadLane(opener, name)
		if err != nil {
			logger.Fatal().Err(err).Str("lane", name).Msg("download-worker: не удалось открыть линию")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			runLane(ctx, logger.With().Str("lane", lane.Name()).Logger(), lane, service)
		}()
	}

	logger.Info().Strs("lanes", lanes).Msg("download-worker: запуск обработки очередей")
	wg.Wait()
	logger.Info().Msg("download-worker: остановлен")
}

// defaultLanes возвращает все сервисные линии видео плюс общую
// аудио-линию.
func defaultLanes() []string {
	platforms := domain.SupportedPlatforms()
	lanes := make([]string, 0, len(platforms)+1)
	for _, p := range platforms {
		lanes = append(lanes, domain.VideoLane(p))
	}
	lanes = append(lanes, domain.LaneAudio)
	return lanes
}

// buildRegistry собирает извлекатели для всех поддерживаемых сервисов.
// Файл cookies подхватывается по имени сервиса, если он есть на диске.
func buildRegistry(cfg config.AppConfig, logger zerolog.Logger) *extractor.Registry {
	registry := extractor.NewRegistry()
	for _, platform := range domain.SupportedPlatforms() {
		cookiePath := ""
		if cfg.CookiesDir != "" {
			candidate := filepath.Join(cfg.CookiesDir, string(platform)+".txt")
			if _, err := os.Stat(candidate); err == nil {
				cookiePath = candidate
			}
		}
		registry.Register(platform, extractor.New(platform, cookiePath, logger))
	}
	return registry
}

func runLane(ctx context.Context, logger zerolog.Logger, lane *queue.DownloadLane, service *download.Service) {
	for {
		job, ack, err := lane.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error().Err(err).Msg("download-worker: ошибка чтения очереди")
			if ack != nil {
				// Нечитаемая задача не станет читаемой при повторе.
				if ackErr := ack(true); ackErr != nil {
					logger.Error().Err(ackErr).Msg("download-worker: не удалось подтвердить битую задачу")
				}
			}
			time.Sleep(time.Second)
			continue
		}

		service.Process(ctx, job)

		if err := ack(true); err != nil {
			logger.Error().Err(err).Msg("download-worker: не удалось подтвердить задачу")
		}
	}
}
