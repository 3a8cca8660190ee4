package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thealinfix/hypebot/internal/domain"
	"github.com/thealinfix/hypebot/internal/infra/metrics"
)

// PostgresStore хранит леджер одной jsonb-строкой. Атомарность даёт сама
// транзакция, сериализацию писателей внутри процесса — мьютекс, как и в файловом
// варианте: инстанс бота один, межпроцессная координация не нужна.
type PostgresStore struct {
	pool *pgxpool.Pool
	mu   sync.Mutex
}

var _ domain.LedgerStore = (*PostgresStore)(nil)

// NewPostgresStore создаёт хранилище поверх пула.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate создаёт таблицу леджера.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS hype_ledger (
			id smallint PRIMARY KEY CHECK (id = 1),
			data jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("миграция леджера: %w", err)
	}
	return nil
}

// Bootstrap вставляет пустой леджер, если строки ещё нет.
func (s *PostgresStore) Bootstrap(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	empty := domain.NewLedger()
	empty.Settings = settings
	raw, err := json.Marshal(empty)
	if err != nil {
		return fmt.Errorf("сериализация леджера: %w", err)
	}
	ctx, cancel := s.opCtx()
	defer cancel()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO hype_ledger (id, data) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`, raw)
	if err != nil {
		return fmt.Errorf("bootstrap леджера: %w", err)
	}
	return nil
}

// Load возвращает копию текущего леджера.
func (s *PostgresStore) Load() (*domain.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// WithLock перечитывает леджер, передаёт его fn и сохраняет результат, если
// fn вернула nil.
func (s *PostgresStore) WithLock(fn func(l *domain.Ledger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(l); err != nil {
		return err
	}
	return s.save(l)
}

func (s *PostgresStore) load() (*domain.Ledger, error) {
	ctx, cancel := s.opCtx()
	defer cancel()

	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM hype_ledger WHERE id = 1`).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("строка леджера отсутствует: %w", domain.ErrCorruptState)
		}
		return nil, fmt.Errorf("чтение леджера: %w", err)
	}
	l := domain.NewLedger()
	if err := json.Unmarshal(raw, l); err != nil {
		return nil, fmt.Errorf("разбор леджера: %v: %w", err, domain.ErrCorruptState)
	}
	if l.Posts == nil {
		l.Posts = map[string]domain.Post{}
	}
	if l.Dedup == nil {
		l.Dedup = map[string]string{}
	}
	return l, nil
}

func (s *PostgresStore) save(l *domain.Ledger) error {
	raw, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("сериализация леджера: %w", err)
	}
	ctx, cancel := s.opCtx()
	defer cancel()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO hype_ledger (id, data, updated_at) VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`, raw)
	if err != nil {
		return fmt.Errorf("сохранение леджера: %w", err)
	}
	metrics.LedgerSaves.Inc()
	return nil
}

func (s *PostgresStore) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
