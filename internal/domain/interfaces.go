package domain

import (
	"context"
	"time"
)

// LedgerStore — крэш-безопасное хранилище леджера. Вся мутация идёт через
// WithLock; читатели получают снапшот через Load.
type LedgerStore interface {
	// Load возвращает копию текущего леджера.
	Load() (*Ledger, error)
	// WithLock сериализует read-modify-write: перечитывает леджер, отдаёт
	// его fn и атомарно сохраняет, если fn вернула nil.
	WithLock(fn func(l *Ledger) error) error
	// Bootstrap создаёт пустой леджер, только если его ещё нет. Существующий,
	// даже повреждённый, леджер не трогается.
	Bootstrap(settings Settings) error
}

// Publisher доставляет пост в канал. Ошибки обязаны быть обёрнуты в
// TransientPublishError либо PermanentPublishError.
type Publisher interface {
	Publish(ctx context.Context, post Post, channel string) (PublishReceipt, error)
}

// Notifier уведомляет оператора о событиях, требующих внимания.
type Notifier interface {
	NotifyAdmin(ctx context.Context, event AdminEvent) error
}

// CandidateQueue — очередь сырых кандидатов между вотчером и ботом.
type CandidateQueue interface {
	Enqueue(ctx context.Context, c Candidate) error
	Pop(ctx context.Context) (Candidate, error)
}

// CaptionGenerator готовит текст публикации по материалу поста.
type CaptionGenerator interface {
	Generate(ctx context.Context, post Post) (string, error)
}

// SourceFetcher возвращает свежие кандидаты одного источника.
type SourceFetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]Candidate, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
