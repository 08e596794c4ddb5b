package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
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
	"tg-media-bot/internal/usecase/extract"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "info-worker")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("info-worker: нет подключения к Redis")
	}
	defer redisClient.Close()

	store := kv.NewRedis(redisClient, logger)
	ledger := storage.NewLedger(store, time.Duration(cfg.TTL.LeaseSeconds)*time.Second, logger)
	sessions := storage.NewSessionStore(store, time.Duration(cfg.TTL.SessionSeconds)*time.Second, logger)
	cache := storage.NewMediaCache(store, time.Duration(cfg.TTL.CacheSeconds)*time.Second, logger)

	var opener queue.LaneOpener
	if cfg.RabbitURL != "" {
		rabbit, err := queue.NewRabbit(cfg.RabbitURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("info-worker: не удалось подключиться к RabbitMQ")
		}
		defer rabbit.Close()
		opener = rabbit
	} else {
		logger.Warn().Msg("info-worker: RABBITMQ_URL не задан, очереди работают поверх Redis")
		opener = queue.NewRedisLanes(redisClient)
	}

	extractLane, err := queue.NewExtractLane(opener)
	if err != nil {
		logger.Fatal().Err(err).Msg("info-worker: не удалось открыть очередь извлечения")
	}

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("info-worker: не указан токен Telegram (TG_BOT_TOKEN)")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("info-worker: не удалось создать бота")
	}
	notifier := telegram.NewNotifier(botAPI, logger)

	registry := buildRegistry(cfg, logger)
	service := extract.NewService(ledger, cache, sessions, registry, notifier, logger)

	logger.Info().Msg("info-worker: запуск обработки очереди")
	run(ctx, logger, extractLane, service)
	logger.Info().Msg("info-worker: остановлен")
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

func run(ctx context.Context, logger zerolog.Logger, lane *queue.ExtractLane, service *extract.Service) {
	for {
		job, ack, err := lane.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error().Err(err).Msg("info-worker: ошибка чтения очереди")
			if ack != nil {
				// Нечитаемая задача не станет читаемой при повторе.
				if ackErr := ack(true); ackErr != nil {
					logger.Error().Err(ackErr).Msg("info-worker: не удалось подтвердить битую задачу")
				}
			}
			time.Sleep(time.Second)
			continue
		}

		service.Process(ctx, job)

		if err := ack(true); err != nil {
			logger.Error().Err(err).Msg("info-worker: не удалось подтвердить задачу")
		}
	}
}
