package config

import (
	"log"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
	} `envconfig:""`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RabbitURL string `envconfig:"RABBITMQ_URL"`

	TTL struct {
		SessionSeconds int `envconfig:"SESSION_TTL_SECONDS" default:"7200"`
		CacheSeconds   int `envconfig:"MEDIA_CACHE_TTL_SECONDS" default:"86400"`
		LeaseSeconds   int `envconfig:"ACTIVITY_LEASE_TTL_SECONDS" default:"7200"`
	} `envconfig:""`

	MediaDir string `envconfig:"MEDIA_DIR" default:"/tmp/tg-media-bot"`

	// Каталог с файлами cookies по сервисам: {platform}.txt. Пустое
	// значение — работать без cookies.
	CookiesDir string `envconfig:"COOKIES_DIR"`

	// Список линий загрузки, которые обслуживает download-worker.
	// Пустое значение означает все сервисные линии плюс audio_queue.
	DownloadLanes string `envconfig:"DOWNLOAD_LANES"`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Lanes разбирает DOWNLOAD_LANES в список имён очередей.
func (c AppConfig) Lanes() []string {
	if strings.TrimSpace(c.DownloadLanes) == "" {
		return nil
	}
	parts := strings.Split(c.DownloadLanes, ",")
	lanes := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			lanes = append(lanes, trimmed)
		}
	}
	return lanes
}
