package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"tg-media-bot/internal/adapters/bot"
	"tg-media-bot/internal/adapters/storage"
	"tg-media-bot/internal/domain"
	"tg-media-bot/internal/infra/config"
	"tg-media-bot/internal/infra/kv"
	applog "tg-media-bot/internal/infra/log"
	"tg-media-bot/internal/infra/metrics"
	"tg-media-bot/internal/infra/queue"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "bot-gateway")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("bot-gateway: нет подключения к Redis")
	}
	defer redisClient.Close()

	store := kv.NewRedis(redisClient, logger)
	ledger := storage.NewLedger(store, time.Duration(cfg.TTL.LeaseSeconds)*time.Second, logger)
	sessions := storage.NewSessionStore(store, time.Duration(cfg.TTL.SessionSeconds)*time.Second, logger)

	var opener queue.LaneOpener
	if cfg.RabbitURL != "" {
		rabbit, err := queue.NewRabbit(cfg.RabbitURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("bot-gateway: не удалось подключиться к RabbitMQ")
		}
		defer rabbit.Close()
		opener = rabbit
	} else {
		logger.Warn().Msg("bot-gateway: RABBITMQ_URL не задан, очереди работают поверх Redis")
		opener = queue.NewRedisLanes(redisClient)
	}

	extractLane, err := queue.NewExtractLane(opener)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot-gateway: не удалось открыть очередь извлечения")
	}
	dispatcher := queue.NewDispatcher(opener)

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("bot-gateway: не указан токен Telegram (TG_BOT_TOKEN)")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("bot-gateway: не удалось создать бота")
	}

	if cfg.Telegram.WebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("bot-gateway: некорректный адрес вебхука")
		}
		if _, err := botAPI.Request(wh); err != nil {
			logger.Fatal().Err(err).Msg("bot-gateway: не удалось установить вебхук")
		}
		logger.Info().Str("url", cfg.Telegram.WebhookURL).Msg("bot-gateway: вебхук установлен")
	}

	h := bot.NewHandler(botAPI, logger, ledger, sessions, extractLane, dispatcher, cfg.MediaDir)

	r := chi.NewRouter()
	r.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}
	go func() {
		logger.Info().Int("port", cfg.Port).Msg("bot-gateway: запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("bot-gateway: HTTP сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("bot-gateway: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

var _ domain.ActivityLedger = (*storage.Ledger)(nil)
var _ domain.SessionStore = (*storage.SessionStore)(nil)
var _ domain.ExtractQueue = (*queue.ExtractLane)(nil)
var _ domain.DownloadDispatcher = (*queue.Dispatcher)(nil)
