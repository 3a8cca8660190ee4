package moderate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/thealinfix/hypebot/internal/domain"
)

// AutoScheduler реагирует на пометку поста избранным.
type AutoScheduler interface {
	OnFavorite(ctx context.Context, postID string) error
}

// Service выполняет действия модератора над постами. Каждый переход
// перечитывает статус под блокировкой леджера: устаревшее представление
// вызывающего никогда молча не перетирает параллельно применённый переход.
type Service struct {
	store     domain.LedgerStore
	favorites AutoScheduler
	log       zerolog.Logger
	now       func() time.Time
}

// NewService создаёт сервис. favorites может быть nil, тогда избранные
// остаются ждать ручного планирования.
func NewService(store domain.LedgerStore, favorites AutoScheduler, log zerolog.Logger) *Service {
	return &Service{store: store, favorites: favorites, log: log, now: time.Now}
}

func (s *Service) apply(id string, fn func(p *domain.Post) error) (domain.Post, error) {
	var updated domain.Post
	err := s.store.WithLock(func(l *domain.Ledger) error {
		p, ok := l.Posts[id]
		if !ok {
			return fmt.Errorf("пост %s: %w", id, domain.ErrPostNotFound)
		}
		if err := fn(&p); err != nil {
			return err
		}
		l.Posts[id] = p
		updated = p
		return nil
	})
	return updated, err
}

// Approve одобряет пост.
func (s *Service) Approve(ctx context.Context, id string) (domain.Post, error) {
	p, err := s.apply(id, domain.Approve)
	if err != nil {
		return domain.Post{}, err
	}
	s.log.Info().Str("post", id).Msg("moderate: пост одобрен")
	return p, nil
}

// Reject отклоняет пост.
func (s *Service) Reject(ctx context.Context, id string) (domain.Post, error) {
	p, err := s.apply(id, domain.Reject)
	if err != nil {
		return domain.Post{}, err
	}
	s.log.Info().Str("post", id).Msg("moderate: пост отклонён")
	return p, nil
}

// MarkFavorite помечает пост избранным и отдаёт его автопланировщику.
func (s *Service) MarkFavorite(ctx context.Context, id string) (domain.Post, error) {
	if _, err := s.apply(id, domain.MarkFavorite); err != nil {
		return domain.Post{}, err
	}
	s.log.Info().Str("post", id).Msg("moderate: пост в избранном")
	if s.favorites != nil {
		if err := s.favorites.OnFavorite(ctx, id); err != nil {
			s.log.Error().Err(err).Str("post", id).Msg("moderate: автопланирование избранного не удалось")
		}
	}
	// Автопланировщик мог уже перевести пост в Scheduled.
	return s.Get(id)
}

// Schedule назначает время публикации.
func (s *Service) Schedule(ctx context.Context, id string, at time.Time) (domain.Post, error) {
	p, err := s.apply(id, func(p *domain.Post) error {
		return domain.Schedule(p, at, s.now())
	})
	if err != nil {
		return domain.Post{}, err
	}
	s.log.Info().Str("post", id).Time("at", at).Msg("moderate: пост запланирован")
	return p, nil
}

// SetCaption сохраняет сгенерированный текст публикации.
func (s *Service) SetCaption(ctx context.Context, id, caption string) (domain.Post, error) {
	return s.apply(id, func(p *domain.Post) error {
		if p.Status.Terminal() {
			return fmt.Errorf("пост %s в статусе %q: %w", id, p.Status, domain.ErrStaleTransition)
		}
		p.Payload.Caption = caption
		return nil
	})
}

// Get возвращает пост по id.
func (s *Service) Get(id string) (domain.Post, error) {
	l, err := s.store.Load()
	if err != nil {
		return domain.Post{}, err
	}
	p, ok := l.Posts[id]
	if !ok {
		return domain.Post{}, fmt.Errorf("пост %s: %w", id, domain.ErrPostNotFound)
	}
	return p, nil
}

// List возвращает посты в указанном статусе, свежие сверху.
func (s *Service) List(status domain.Status) ([]domain.Post, error) {
	l, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	posts := l.ByStatus(status)
	sortByCreatedDesc(posts)
	return posts, nil
}

// Settings возвращает настройки процесса.
func (s *Service) Settings() (domain.Settings, error) {
	l, err := s.store.Load()
	if err != nil {
		return domain.Settings{}, err
	}
	return l.Settings, nil
}

// SetAutoPublish переключает автопубликацию избранного.
func (s *Service) SetAutoPublish(enabled bool) error {
	return s.store.WithLock(func(l *domain.Ledger) error {
		l.Settings.AutoPublish = enabled
		return nil
	})
}

// SetChannel меняет целевой канал публикации.
func (s *Service) SetChannel(channel string) error {
	if channel == "" {
		return errors.New("канал не задан")
	}
	return s.store.WithLock(func(l *domain.Ledger) error {
		l.Settings.Channel = channel
		return nil
	})
}

// SetTimezone меняет часовой пояс отображения и ввода времени.
func (s *Service) SetTimezone(tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("неизвестный часовой пояс %q: %w", tz, err)
	}
	return s.store.WithLock(func(l *domain.Ledger) error {
		l.Settings.Timezone = tz
		return nil
	})
}

func sortByCreatedDesc(posts []domain.Post) {
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID < posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}
