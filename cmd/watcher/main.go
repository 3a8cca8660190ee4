package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/thealinfix/hypebot/internal/adapters/sources"
	"github.com/thealinfix/hypebot/internal/domain"
	"github.com/thealinfix/hypebot/internal/infra/cache"
	"github.com/thealinfix/hypebot/internal/infra/config"
	applog "github.com/thealinfix/hypebot/internal/infra/log"
	"github.com/thealinfix/hypebot/internal/infra/metrics"
	"github.com/thealinfix/hypebot/internal/infra/queue"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	var (
		candidates domain.CandidateQueue
		pollGuard  domain.Cache
	)
	switch {
	case cfg.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		candidates = queue.NewRedisCandidateQueue(client, cfg.Queues.Candidates)
		pollGuard = cache.NewRedis(client)
		logger.Info().Str("addr", cfg.RedisAddr).Msg("watcher: очередь кандидатов в Redis")
	case cfg.AMQP.URL != "":
		q, err := queue.NewAMQPCandidateQueue(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			logger.Fatal().Err(err).Msg("watcher: не удалось подключиться к AMQP")
		}
		candidates = q
		logger.Info().Str("queue", cfg.AMQP.Queue).Msg("watcher: очередь кандидатов в AMQP")
	default:
		logger.Fatal().Msg("watcher: нужен брокер очереди (REDIS_ADDR или AMQP_URL), без него запускайте hypebot со встроенным вотчером")
	}

	poller := sources.NewPoller(
		sources.DefaultFetchers(cfg.Watcher.MaxPerSource, cfg.Watcher.MaxImages),
		candidates, pollGuard, logger,
	)

	logger.Info().Dur("interval", cfg.Watcher.CheckInterval).Msg("watcher: запущен")
	poller.Run(ctx, cfg.Watcher.CheckInterval)
	logger.Info().Msg("watcher: остановлен")
}
