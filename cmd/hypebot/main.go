package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/thealinfix/hypebot/internal/adapters/bot"
	captionadapter "github.com/thealinfix/hypebot/internal/adapters/caption"
	ledgerstore "github.com/thealinfix/hypebot/internal/adapters/ledger"
	"github.com/thealinfix/hypebot/internal/adapters/sources"
	"github.com/thealinfix/hypebot/internal/adapters/telegram"
	"github.com/thealinfix/hypebot/internal/domain"
	"github.com/thealinfix/hypebot/internal/infra/config"
	"github.com/thealinfix/hypebot/internal/infra/db"
	apphttp "github.com/thealinfix/hypebot/internal/infra/http"
	applog "github.com/thealinfix/hypebot/internal/infra/log"
	"github.com/thealinfix/hypebot/internal/infra/metrics"
	"github.com/thealinfix/hypebot/internal/infra/openai"
	"github.com/thealinfix/hypebot/internal/infra/queue"
	"github.com/thealinfix/hypebot/internal/usecase/ingest"
	"github.com/thealinfix/hypebot/internal/usecase/moderate"
	"github.com/thealinfix/hypebot/internal/usecase/publish"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := buildStore(ctx, cfg, logger)
	if err := store.Bootstrap(domain.Settings{
		AutoPublish: cfg.AutoPublish.Enabled,
		Channel:     cfg.Telegram.Channel,
		Timezone:    cfg.Timezone,
	}); err != nil {
		logger.Fatal().Err(err).Msg("hypebot: не удалось инициализировать леджер")
	}
	if _, err := store.Load(); err != nil {
		logger.Fatal().Err(err).Msg("hypebot: леджер не читается, восстановите файл или очистите его явно")
	}

	if cfg.Telegram.Token == "" {
		logger.Fatal().Msg("hypebot: не указан токен Telegram (TG_BOT_TOKEN)")
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("hypebot: не удалось создать бота")
	}

	publisher := telegram.NewPublisher(botAPI, logger.With().Str("component", "publisher").Logger())
	notifier := telegram.NewNotifier(botAPI, cfg.Telegram.AdminChatID, logger)

	favorites := publish.NewAutoPublisher(store, logger, cfg.AutoPublish.Spacing)
	modService := moderate.NewService(store, favorites, logger)
	ingestService := ingest.NewService(store, logger)

	scheduler := publish.NewScheduler(store, publisher, notifier, logger.With().Str("component", "scheduler").Logger(), publish.Config{
		Tick:           cfg.Scheduler.Tick,
		Concurrency:    cfg.Scheduler.Concurrency,
		PublishTimeout: cfg.Scheduler.PublishTimeout,
		MaxRetries:     cfg.Scheduler.MaxRetries,
		BackoffBase:    cfg.Scheduler.BackoffBase,
		BackoffCap:     cfg.Scheduler.BackoffCap,
	})
	go scheduler.Run(ctx)

	retention := publish.NewRetention(store, logger, cfg.Retention.MaxPostAge)
	go retention.Run(ctx)

	candidates, inProcess := buildQueue(cfg, logger)
	go func() {
		if err := ingestService.Consume(ctx, candidates); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("hypebot: чтение очереди кандидатов остановлено")
		}
	}()

	// Без внешнего брокера вотчер работает внутри процесса бота.
	var checker bot.SourceChecker
	if inProcess {
		poller := sources.NewPoller(
			sources.DefaultFetchers(cfg.Watcher.MaxPerSource, cfg.Watcher.MaxImages),
			candidates, nil, logger.With().Str("component", "watcher").Logger(),
		)
		checker = poller
		go poller.Run(ctx, cfg.Watcher.CheckInterval)
	}

	handler := bot.NewHandler(botAPI, logger, modService, buildCaptions(cfg), checker, cfg.Telegram.AdminChatID)

	srv := apphttp.NewServer(logger)
	apphttp.NewStatusHandler(store).Mount(srv.Router)
	srv.Router.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		handler.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	if cfg.Telegram.WebhookURL == "" {
		go runLongPolling(ctx, botAPI, handler, logger)
	}

	go func() {
		if err := srv.Start(":8080"); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("hypebot: HTTP сервер остановлен")
		}
	}()

	logger.Info().Msg("hypebot: запущен")
	<-ctx.Done()
	logger.Info().Msg("hypebot: остановка, дожидаемся публикаций")

	scheduler.Drain(cfg.Scheduler.DrainTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("hypebot: остановлен")
}

func buildStore(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) domain.LedgerStore {
	if cfg.Ledger.PGDSN != "" {
		pool, err := db.Connect(cfg.Ledger.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("hypebot: нет подключения к БД леджера")
		}
		store := ledgerstore.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("hypebot: миграция леджера не удалась")
		}
		return store
	}
	return ledgerstore.NewFileStore(cfg.Ledger.Path)
}

func buildQueue(cfg config.AppConfig, logger zerolog.Logger) (domain.CandidateQueue, bool) {
	switch {
	case cfg.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		logger.Info().Str("addr", cfg.RedisAddr).Msg("hypebot: очередь кандидатов в Redis")
		return queue.NewRedisCandidateQueue(client, cfg.Queues.Candidates), false
	case cfg.AMQP.URL != "":
		q, err := queue.NewAMQPCandidateQueue(cfg.AMQP.URL, cfg.AMQP.Queue)
		if err != nil {
			logger.Fatal().Err(err).Msg("hypebot: не удалось подключиться к AMQP")
		}
		logger.Info().Str("queue", cfg.AMQP.Queue).Msg("hypebot: очередь кандидатов в AMQP")
		return q, false
	default:
		logger.Info().Msg("hypebot: брокер не настроен, вотчер работает внутри процесса")
		return queue.NewMemoryCandidateQueue(0), true
	}
}

func buildCaptions(cfg config.AppConfig) domain.CaptionGenerator {
	if cfg.OpenAI.APIKey == "" {
		return captionadapter.NewSimple()
	}
	client := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
	return captionadapter.NewOpenAI(client, cfg.OpenAI.Model)
}

func runLongPolling(ctx context.Context, botAPI *tgbotapi.BotAPI, handler *bot.Handler, logger zerolog.Logger) {
	upd := tgbotapi.NewUpdate(0)
	upd.Timeout = 30
	updates := botAPI.GetUpdatesChan(upd)
	logger.Info().Msg("hypebot: long polling запущен")
	for {
		select {
		case <-ctx.Done():
			botAPI.StopReceivingUpdates()
			return
		case update := <-updates:
			handler.HandleUpdate(ctx, update)
		}
	}
}
