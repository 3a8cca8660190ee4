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
	CandidatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_candidates_total",
		Help: "Количество поданных кандидатов по результату",
	}, []string{"result"})

	PublishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "publish_total",
		Help: "Количество попыток публикации по результату",
	}, []string{"result"})

	PublishDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "publish_duration_seconds",
		Help:    "Длительность вызова публикации",
		Buckets: prometheus.DefBuckets,
	})

	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_tick_seconds",
		Help:    "Длительность тика планировщика",
		Buckets: prometheus.DefBuckets,
	})

	DuePosts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduler_due_posts",
		Help: "Посты, готовые к публикации на последнем тике",
	})

	SourceErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watcher_source_errors_total",
		Help: "Ошибки опроса источников",
	}, []string{"source"})

	LedgerSaves = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_saves_total",
		Help: "Количество сохранений леджера",
	})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		CandidatesTotal,
		PublishTotal,
		PublishDuration,
		TickDuration,
		DuePosts,
		SourceErrors,
		LedgerSaves,
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

// ObservePublish записывает результат и длительность публикации.
func ObservePublish(start time.Time, result string) {
	PublishTotal.WithLabelValues(result).Inc()
	PublishDuration.Observe(time.Since(start).Seconds())
}
