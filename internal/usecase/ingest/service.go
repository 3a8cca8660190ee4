package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thealinfix/hypebot/internal/domain"
	"github.com/thealinfix/hypebot/internal/infra/metrics"
)

// ErrEmptyCandidate возвращается для кандидата без заголовка или ссылки.
var ErrEmptyCandidate = errors.New("у кандидата нет заголовка или ссылки")

// Service принимает кандидатов от парсера и создаёт посты в статусе Pending.
type Service struct {
	store domain.LedgerStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewService создаёт сервис.
func NewService(store domain.LedgerStore, log zerolog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// SubmitCandidate проверяет кандидата по индексу дедупликации и создаёт пост.
// Живой фингерпринт (не rejected и не failed) даёт ErrDuplicate; отклонённые
// и сбойные материалы могут всплыть снова.
func (s *Service) SubmitCandidate(ctx context.Context, c domain.Candidate) (string, error) {
	if strings.TrimSpace(c.Title) == "" || strings.TrimSpace(c.Link) == "" {
		metrics.CandidatesTotal.WithLabelValues("invalid").Inc()
		return "", ErrEmptyCandidate
	}

	fp := domain.Fingerprint(c)
	id := uuid.NewString()

	err := s.store.WithLock(func(l *domain.Ledger) error {
		if prevID, ok := l.Dedup[fp]; ok {
			if prev, exists := l.Posts[prevID]; exists && domain.DedupBlocks(prev.Status) {
				return fmt.Errorf("фингерпринт %s занят постом %s: %w", fp, prevID, domain.ErrDuplicate)
			}
		}
		l.Posts[id] = domain.Post{
			ID:          id,
			Fingerprint: fp,
			Status:      domain.StatusPending,
			Payload: domain.Payload{
				Title:    c.Title,
				Link:     c.Link,
				Source:   c.Source,
				Category: c.Category,
				Excerpt:  c.Excerpt,
				Images:   append([]string(nil), c.Images...),
				Tags:     c.Tags,
			},
			CreatedAt: s.now().UTC(),
		}
		l.Dedup[fp] = id
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			metrics.CandidatesTotal.WithLabelValues("duplicate").Inc()
			return "", err
		}
		metrics.CandidatesTotal.WithLabelValues("error").Inc()
		return "", err
	}

	metrics.CandidatesTotal.WithLabelValues("created").Inc()
	s.log.Info().Str("post", id).Str("source", c.Source).Str("title", c.Title).Msg("ingest: новый пост в очереди модерации")
	return id, nil
}

// Consume читает кандидатов из очереди до отмены контекста. Дубликаты —
// нормальный исход опроса источников, они не считаются ошибкой.
func (s *Service) Consume(ctx context.Context, queue domain.CandidateQueue) error {
	for {
		c, err := queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			s.log.Error().Err(err).Msg("ingest: ошибка чтения очереди")
			continue
		}
		if _, err := s.SubmitCandidate(ctx, c); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				s.log.Debug().Str("link", c.Link).Msg("ingest: дубликат, пропускаем")
				continue
			}
			s.log.Error().Err(err).Str("link", c.Link).Msg("ingest: не удалось создать пост")
		}
	}
}
