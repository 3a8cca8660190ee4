package publish

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/thealinfix/hypebot/internal/domain"
)

// Retention выносит из леджера терминальные посты старше порога вместе с их
// записями дедупликации. Нетерминальные посты не трогаются никогда.
type Retention struct {
	store  domain.LedgerStore
	log    zerolog.Logger
	maxAge time.Duration
	now    func() time.Time
}

// NewRetention создаёт политику очистки.
func NewRetention(store domain.LedgerStore, log zerolog.Logger, maxAge time.Duration) *Retention {
	return &Retention{store: store, log: log, maxAge: maxAge, now: time.Now}
}

// Run запускает ежедневную очистку до отмены контекста.
func (r *Retention) Run(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed, err := r.Prune(); err != nil {
				r.log.Error().Err(err).Msg("retention: очистка не удалась")
			} else if removed > 0 {
				r.log.Info().Int("removed", removed).Msg("retention: удалены старые посты")
			}
		}
	}
}

// Prune выполняет одну очистку и возвращает число удалённых постов.
func (r *Retention) Prune() (int, error) {
	if r.maxAge <= 0 {
		return 0, nil
	}
	cutoff := r.now().Add(-r.maxAge)
	removed := 0
	err := r.store.WithLock(func(l *domain.Ledger) error {
		for id, p := range l.Posts {
			if !p.Status.Terminal() || p.CreatedAt.After(cutoff) {
				continue
			}
			delete(l.Posts, id)
			if l.Dedup[p.Fingerprint] == id {
				delete(l.Dedup, p.Fingerprint)
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
