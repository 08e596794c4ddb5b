package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	ExtractRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "extract_requests_total",
		Help: "Количество задач извлечения по сервисам",
	}, []string{"platform"})

	ExtractCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "extract_cache_hits_total",
		Help: "Попадания в кэш метаданных",
	})

	ExtractDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "extract_duration_seconds",
		Help:    "Время извлечения метаданных",
		Buckets: prometheus.DefBuckets,
	}, []string{"platform"})

	DownloadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "download_requests_total",
		Help: "Количество задач загрузки по линиям",
	}, []string{"lane"})

	DownloadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "download_duration_seconds",
		Help:    "Время загрузки варианта",
		Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"lane"})

	AdmissionRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admission_rejected_total",
		Help: "Отклонённые запросы из-за уже идущей операции",
	}, []string{"kind"})

	DeliveryErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "delivery_errors_total",
		Help: "Ошибки доставки сообщений ботом",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		ExtractRequestsTotal,
		ExtractCacheHits,
		ExtractDuration,
		DownloadRequestsTotal,
		DownloadDuration,
		AdmissionRejectedTotal,
		DeliveryErrorsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
