package publish

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thealinfix/hypebot/internal/domain"
	"github.com/thealinfix/hypebot/internal/infra/metrics"
)

// Config — настройки планировщика.
type Config struct {
	Tick           time.Duration
	Concurrency    int
	PublishTimeout time.Duration
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
}

// Scheduler периодически находит посты со статусом Scheduled и наступившим
// временем и публикует их. Отбор исключает посты из in-flight набора:
// статус остаётся Scheduled на время сетевого вызова, и только набор
// гарантирует не более одной публикации на пост даже при наложившихся тиках.
type Scheduler struct {
	store    domain.LedgerStore
	pub      domain.Publisher
	notifier domain.Notifier
	log      zerolog.Logger
	cfg      Config

	now func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}

	sem chan struct{}
	wg  sync.WaitGroup
}

// NewScheduler создаёт планировщик.
func NewScheduler(store domain.LedgerStore, pub domain.Publisher, notifier domain.Notifier, log zerolog.Logger, cfg Config) *Scheduler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 30 * time.Second
	}
	return &Scheduler{
		store:    store,
		pub:      pub,
		notifier: notifier,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
		inflight: map[string]struct{}{},
		sem:      make(chan struct{}, cfg.Concurrency),
	}
}

// Run крутит тики до отмены контекста, затем дожидается in-flight публикаций.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Drain ждёт завершения начатых публикаций, но не дольше таймаута. Висящие
// вызовы не бросаются посреди сети, чтобы не плодить «может быть
// опубликованные» посты.
func (s *Scheduler) Drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.log.Warn().Msg("scheduler: drain не дождался части публикаций")
	}
}

// Tick выполняет один проход: отбирает наступившие посты и раздаёт их
// воркерам в пределах лимита одновременных публикаций. Пост, которому не
// хватило слота, просто ждёт следующего тика.
func (s *Scheduler) Tick(ctx context.Context) {
	start := s.now()
	due, err := s.collectDue()
	if err != nil {
		if errors.Is(err, domain.ErrCorruptState) {
			s.log.Error().Err(err).Msg("scheduler: леджер повреждён, планирование остановлено")
			s.notifyCorrupt(ctx, err)
			return
		}
		s.log.Error().Err(err).Msg("scheduler: ошибка выборки постов")
		return
	}
	metrics.DuePosts.Set(float64(len(due)))

	for _, post := range due {
		select {
		case s.sem <- struct{}{}:
		default:
			// Все слоты заняты: пост подождёт следующего тика.
			continue
		}
		if !s.markInflight(post.ID) {
			<-s.sem
			continue
		}
		s.wg.Add(1)
		go s.publishOne(ctx, post)
	}
	metrics.TickDuration.Observe(time.Since(start).Seconds())
}

// collectDue отбирает посты Scheduled с наступившим временем, не находящиеся
// в полёте, в детерминированном порядке: scheduled_at по возрастанию, id как
// тай-брейк.
func (s *Scheduler) collectDue() ([]domain.Post, error) {
	l, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	now := s.now()

	s.mu.Lock()
	var due []domain.Post
	for _, p := range l.Posts {
		if p.Status != domain.StatusScheduled || p.ScheduledAt == nil || p.ScheduledAt.After(now) {
			continue
		}
		if _, busy := s.inflight[p.ID]; busy {
			continue
		}
		due = append(due, p)
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].ScheduledAt.Equal(*due[j].ScheduledAt) {
			return due[i].ID < due[j].ID
		}
		return due[i].ScheduledAt.Before(*due[j].ScheduledAt)
	})
	return due, nil
}

func (s *Scheduler) markInflight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Scheduler) clearInflight(id string) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

// publishOne выполняет протокол публикации одного поста. Статус остаётся
// Scheduled на время вызова; результат применяется под блокировкой леджера
// со свежим перечитыванием статуса.
func (s *Scheduler) publishOne(ctx context.Context, post domain.Post) {
	defer func() {
		s.clearInflight(post.ID)
		<-s.sem
		s.wg.Done()
	}()

	channel, ok := s.reconfirm(post.ID)
	if !ok {
		return
	}

	// Публикация получает собственный дедлайн и переживает отмену общего
	// контекста: начатый сетевой вызов должен завершиться определённо.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PublishTimeout)
	defer cancel()

	start := s.now()
	receipt, pubErr := s.pub.Publish(pctx, post, channel)
	if pubErr == nil {
		s.applySuccess(post.ID, receipt)
		metrics.ObservePublish(start, "success")
		return
	}

	var perm *domain.PermanentPublishError
	if errors.As(pubErr, &perm) {
		s.applyPermanentFailure(ctx, post.ID, pubErr)
		metrics.ObservePublish(start, "permanent_error")
		return
	}
	s.applyTransientFailure(ctx, post.ID, pubErr)
	metrics.ObservePublish(start, "transient_error")
}

// reconfirm перечитывает пост перед сетевым вызовом: он всё ещё должен быть
// Scheduled. Заодно забирает актуальный канал из настроек.
func (s *Scheduler) reconfirm(id string) (string, bool) {
	l, err := s.store.Load()
	if err != nil {
		s.log.Error().Err(err).Str("post", id).Msg("scheduler: не удалось перечитать леджер")
		return "", false
	}
	p, ok := l.Posts[id]
	if !ok || p.Status != domain.StatusScheduled {
		return "", false
	}
	return l.Settings.Channel, true
}

func (s *Scheduler) applySuccess(id string, receipt domain.PublishReceipt) {
	err := s.store.WithLock(func(l *domain.Ledger) error {
		p, ok := l.Posts[id]
		if !ok {
			return domain.ErrPostNotFound
		}
		if err := domain.PublishOK(&p, s.now()); err != nil {
			return err
		}
		l.Posts[id] = p
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("post", id).Msg("scheduler: пост опубликован, но статус не записан")
		return
	}
	s.log.Info().Str("post", id).Int("message", receipt.MessageID).Str("channel", receipt.Channel).Msg("scheduler: пост опубликован")
}

// applyTransientFailure увеличивает счётчик попыток и назначает повтор с
// экспоненциальной задержкой либо сдаётся после maxRetries.
func (s *Scheduler) applyTransientFailure(ctx context.Context, id string, cause error) {
	gaveUp := false
	err := s.store.WithLock(func(l *domain.Ledger) error {
		p, ok := l.Posts[id]
		if !ok {
			return domain.ErrPostNotFound
		}
		if err := domain.PublishFail(&p, cause); err != nil {
			return err
		}
		delay := domain.NextRetryDelay(s.cfg.BackoffBase, s.cfg.BackoffCap, p.RetryCount)
		retryErr := domain.RetrySchedule(&p, s.now().Add(delay), s.now(), s.cfg.MaxRetries)
		if errors.Is(retryErr, domain.ErrRetriesExhausted) {
			if err := domain.GiveUp(&p); err != nil {
				return err
			}
			gaveUp = true
		} else if retryErr != nil {
			return retryErr
		}
		l.Posts[id] = p
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("post", id).Msg("scheduler: не удалось записать результат сбоя")
		return
	}
	if gaveUp {
		s.log.Warn().Str("post", id).Err(cause).Msg("scheduler: попытки исчерпаны, пост отклонён")
		s.notifyAdmin(ctx, domain.AdminEvent{
			Kind:   domain.AdminEventGiveUp,
			PostID: id,
			Text:   "исчерпаны попытки публикации: " + cause.Error(),
		})
		return
	}
	s.log.Warn().Str("post", id).Err(cause).Msg("scheduler: временный сбой, пост уйдёт на повтор")
}

func (s *Scheduler) applyPermanentFailure(ctx context.Context, id string, cause error) {
	err := s.store.WithLock(func(l *domain.Ledger) error {
		p, ok := l.Posts[id]
		if !ok {
			return domain.ErrPostNotFound
		}
		if err := domain.RejectPermanently(&p, cause); err != nil {
			return err
		}
		l.Posts[id] = p
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("post", id).Msg("scheduler: не удалось записать отклонение")
		return
	}
	s.log.Warn().Str("post", id).Err(cause).Msg("scheduler: необратимая ошибка, пост отклонён")
}

func (s *Scheduler) notifyAdmin(ctx context.Context, event domain.AdminEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAdmin(ctx, event); err != nil {
		s.log.Error().Err(err).Str("kind", event.Kind).Msg("scheduler: уведомление не доставлено")
	}
}

func (s *Scheduler) notifyCorrupt(ctx context.Context, cause error) {
	s.notifyAdmin(ctx, domain.AdminEvent{
		Kind: domain.AdminEventCorruptState,
		Text: cause.Error(),
	})
}
