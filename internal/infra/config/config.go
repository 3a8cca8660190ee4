package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token       string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL  string `envconfig:"TG_WEBHOOK_URL"`
		Channel     string `envconfig:"TG_CHANNEL" default:"@channelusername"`
		AdminChatID int64  `envconfig:"TG_ADMIN_CHAT_ID"`
	} `envconfig:""`

	Ledger struct {
		Path  string `envconfig:"LEDGER_PATH" default:"data/ledger.json"`
		PGDSN string `envconfig:"LEDGER_PG_DSN"`
	} `envconfig:""`

	Scheduler struct {
		Tick           time.Duration `envconfig:"SCHEDULER_TICK" default:"30s"`
		Concurrency    int           `envconfig:"PUBLISH_CONCURRENCY" default:"2"`
		PublishTimeout time.Duration `envconfig:"PUBLISH_TIMEOUT" default:"30s"`
		MaxRetries     int           `envconfig:"PUBLISH_MAX_RETRIES" default:"3"`
		BackoffBase    time.Duration `envconfig:"PUBLISH_BACKOFF_BASE" default:"1m"`
		BackoffCap     time.Duration `envconfig:"PUBLISH_BACKOFF_CAP" default:"30m"`
		DrainTimeout   time.Duration `envconfig:"SHUTDOWN_DRAIN_TIMEOUT" default:"45s"`
	} `envconfig:""`

	AutoPublish struct {
		Enabled bool          `envconfig:"AUTO_PUBLISH" default:"false"`
		Spacing time.Duration `envconfig:"AUTO_PUBLISH_SPACING" default:"1h"`
	} `envconfig:""`

	Watcher struct {
		CheckInterval time.Duration `envconfig:"CHECK_INTERVAL" default:"30m"`
		MaxPerSource  int           `envconfig:"MAX_PER_SOURCE" default:"10"`
		MaxImages     int           `envconfig:"MAX_IMAGES_PER_POST" default:"10"`
	} `envconfig:""`

	Retention struct {
		MaxPostAge time.Duration `envconfig:"MAX_POST_AGE" default:"168h"`
	} `envconfig:""`

	Timezone string `envconfig:"DEFAULT_TIMEZONE" default:"Europe/Moscow"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	AMQP struct {
		URL   string `envconfig:"AMQP_URL"`
		Queue string `envconfig:"AMQP_CANDIDATE_QUEUE" default:"hype_candidates"`
	} `envconfig:""`

	Queues struct {
		Candidates string `envconfig:"CANDIDATE_QUEUE_KEY" default:"hype_candidates"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"60s"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
