package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/thealinfix/hypebot/internal/domain"
)

// AutoPublisher превращает пометку «избранное» в решение о планировании:
// единственный автономный переход в Scheduled без участия модератора.
type AutoPublisher struct {
	store   domain.LedgerStore
	log     zerolog.Logger
	spacing time.Duration
	now     func() time.Time
}

// NewAutoPublisher создаёт автопланировщик избранного.
func NewAutoPublisher(store domain.LedgerStore, log zerolog.Logger, spacing time.Duration) *AutoPublisher {
	if spacing <= 0 {
		spacing = time.Hour
	}
	return &AutoPublisher{store: store, log: log, spacing: spacing, now: time.Now}
}

// OnFavorite планирует пост в ближайший свободный слот, если автопубликация
// включена в настройках. При выключенной автопубликации пост остаётся в
// Favorite до ручного планирования.
func (a *AutoPublisher) OnFavorite(ctx context.Context, postID string) error {
	var slot time.Time
	scheduled := false
	err := a.store.WithLock(func(l *domain.Ledger) error {
		if !l.Settings.AutoPublish {
			return nil
		}
		p, ok := l.Posts[postID]
		if !ok {
			return fmt.Errorf("пост %s: %w", postID, domain.ErrPostNotFound)
		}
		now := a.now()
		slot = a.nextSlot(l, now)
		if err := domain.Schedule(&p, slot, now); err != nil {
			return err
		}
		l.Posts[postID] = p
		scheduled = true
		return nil
	})
	if err != nil {
		return err
	}
	if scheduled {
		a.log.Info().Str("post", postID).Time("slot", slot).Msg("favorites: пост запланирован автоматически")
	}
	return nil
}

// nextSlot находит первый момент не раньше now+spacing, отстоящий от самого
// позднего запланированного поста минимум на интервал между публикациями.
func (a *AutoPublisher) nextSlot(l *domain.Ledger, now time.Time) time.Time {
	base := now
	for _, p := range l.Posts {
		if p.Status != domain.StatusScheduled || p.ScheduledAt == nil {
			continue
		}
		if p.ScheduledAt.After(base) {
			base = *p.ScheduledAt
		}
	}
	return base.Add(a.spacing)
}
