package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/thealinfix/hypebot/internal/domain"
	"github.com/thealinfix/hypebot/internal/infra/metrics"
)

// FileStore хранит леджер в одном JSON-файле. Запись атомарна: содержимое
// пишется во временный файл и подменяется rename-ом, поэтому убитый посреди
// сохранения процесс не оставит леджер полузаписанным. Успешные чтения
// кэшируются в памяти; кэш сбрасывается, если файл изменился извне.
type FileStore struct {
	path string

	mu      sync.Mutex
	cached  *domain.Ledger
	modTime time.Time
	size    int64
}

var _ domain.LedgerStore = (*FileStore)(nil)

// NewFileStore создаёт хранилище по указанному пути.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Bootstrap создаёт пустой леджер, только если файла ещё нет. Существующий
// файл, даже повреждённый, не перезаписывается: потеря данных должна быть
// явным решением оператора, не побочным эффектом старта.
func (s *FileStore) Bootstrap(settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("проверка леджера: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("создание каталога леджера: %w", err)
	}
	empty := domain.NewLedger()
	empty.Settings = settings
	return s.save(empty)
}

// Load возвращает копию текущего леджера.
func (s *FileStore) Load() (*domain.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.load()
	if err != nil {
		return nil, err
	}
	return l.Clone(), nil
}

// WithLock перечитывает леджер, передаёт его fn и сохраняет результат, если
// fn вернула nil. Конкурентные read-modify-write полностью сериализованы.
func (s *FileStore) WithLock(fn func(l *domain.Ledger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load()
	if err != nil {
		return err
	}
	work := current.Clone()
	if err := fn(work); err != nil {
		return err
	}
	return s.save(work)
}

// load читает леджер с диска, отдавая кэш, пока файл не менялся извне.
// Вызывается только под s.mu.
func (s *FileStore) load() (*domain.Ledger, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("файл %s отсутствует: %w", s.path, domain.ErrCorruptState)
		}
		return nil, fmt.Errorf("stat леджера: %w", err)
	}

	if s.cached != nil && info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return s.cached, nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("чтение леджера: %w", err)
	}
	l := domain.NewLedger()
	if err := json.Unmarshal(raw, l); err != nil {
		return nil, fmt.Errorf("разбор леджера %s: %v: %w", s.path, err, domain.ErrCorruptState)
	}
	if l.Posts == nil {
		l.Posts = map[string]domain.Post{}
	}
	if l.Dedup == nil {
		l.Dedup = map[string]string{}
	}

	s.cached = l
	s.modTime = info.ModTime()
	s.size = info.Size()
	return l, nil
}

// save атомарно пишет леджер и обновляет кэш. Вызывается только под s.mu.
func (s *FileStore) save(l *domain.Ledger) error {
	raw, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("сериализация леджера: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("временный файл леджера: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("запись леджера: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("fsync леджера: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("закрытие временного файла: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("права на леджер: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("подмена леджера: %w", err)
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("stat после записи: %w", err)
	}
	s.cached = l.Clone()
	s.modTime = info.ModTime()
	s.size = info.Size()
	metrics.LedgerSaves.Inc()
	return nil
}
