package sources

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/thealinfix/hypebot/internal/adapters/caption"
	"github.com/thealinfix/hypebot/internal/domain"
	"github.com/thealinfix/hypebot/internal/infra/metrics"
)

// Poller опрашивает источники и складывает кандидатов в очередь. Ошибка
// одного источника логируется и не прерывает цикл.
type Poller struct {
	fetchers []domain.SourceFetcher
	queue    domain.CandidateQueue
	cache    domain.Cache
	log      zerolog.Logger
}

// NewPoller создаёт поллер. cache может быть nil, тогда перекрытие циклов
// не контролируется.
func NewPoller(fetchers []domain.SourceFetcher, queue domain.CandidateQueue, cache domain.Cache, log zerolog.Logger) *Poller {
	return &Poller{fetchers: fetchers, queue: queue, cache: cache, log: log}
}

// Run опрашивает источники по интервалу до отмены контекста. Первый цикл
// стартует сразу.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	p.poll(ctx, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, interval)
		}
	}
}

func (p *Poller) poll(ctx context.Context, interval time.Duration) {
	run := func() error {
		p.PollOnce(ctx)
		return nil
	}
	if p.cache == nil {
		_ = run()
		return
	}
	if err := p.cache.Once("watcher:poll", interval/2, run); err != nil {
		p.log.Error().Err(err).Msg("watcher: не удалось взять замок цикла")
	}
}

// PollOnce выполняет один проход по всем источникам.
func (p *Poller) PollOnce(ctx context.Context) {
	for _, fetcher := range p.fetchers {
		candidates, err := fetcher.Fetch(ctx)
		if err != nil {
			metrics.SourceErrors.WithLabelValues(fetcher.Name()).Inc()
			p.log.Error().Err(err).Str("source", fetcher.Name()).Msg("watcher: источник недоступен")
			continue
		}
		p.log.Info().Str("source", fetcher.Name()).Int("items", len(candidates)).Msg("watcher: источник опрошен")
		for _, c := range candidates {
			c.Tags = caption.ExtractTags(c.Title, c.Excerpt)
			if err := p.queue.Enqueue(ctx, c); err != nil {
				p.log.Error().Err(err).Str("link", c.Link).Msg("watcher: кандидат не попал в очередь")
			}
		}
		// Небольшая пауза между источниками, чтобы не выглядеть ботом.
		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// DefaultFetchers собирает штатный набор источников.
func DefaultFetchers(maxPerSource, maxImages int) []domain.SourceFetcher {
	client := &http.Client{Timeout: 20 * time.Second}
	return []domain.SourceFetcher{
		NewWordPress("sneakernews", "sneakers", "https://sneakernews.com/wp-json/wp/v2/posts?per_page=10&_embed", client, maxPerSource),
		NewWordPress("hypebeast", "fashion", "https://hypebeast.com/wp-json/wp/v2/posts?per_page=10&_embed", client, maxPerSource),
		NewRSS("highsnobiety", "sneakers", "https://www.highsnobiety.com/feed/", maxPerSource, maxImages),
	}
}
