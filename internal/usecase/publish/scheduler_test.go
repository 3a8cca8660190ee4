package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/thealinfix/hypebot/internal/domain"
)

type memStore struct {
	mu      sync.Mutex
	l       *domain.Ledger
	loadErr error
}

func newMemStore() *memStore {
	l := domain.NewLedger()
	l.Settings.Channel = "@hype"
	return &memStore{l: l}
}

func (m *memStore) Load() (*domain.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.l.Clone(), nil
}

func (m *memStore) WithLock(fn func(l *domain.Ledger) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return m.loadErr
	}
	next := m.l.Clone()
	if err := fn(next); err != nil {
		return err
	}
	m.l = next
	return nil
}

func (m *memStore) Bootstrap(settings domain.Settings) error {
	return nil
}

func (m *memStore) put(p domain.Post) {
	m.mu.Lock()
	m.l.Posts[p.ID] = p
	m.mu.Unlock()
}

func (m *memStore) get(id string) domain.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.l.Posts[id]
}

type stubPublisher struct {
	mu    sync.Mutex
	calls []string
	err   error
	gate  chan struct{} // если задан, Publish ждёт сигнала
}

func (p *stubPublisher) Publish(ctx context.Context, post domain.Post, channel string) (domain.PublishReceipt, error) {
	p.mu.Lock()
	p.calls = append(p.calls, post.ID)
	p.mu.Unlock()
	if p.gate != nil {
		<-p.gate
	}
	if p.err != nil {
		return domain.PublishReceipt{}, p.err
	}
	return domain.PublishReceipt{MessageID: 100, Channel: channel, SentAt: time.Now()}, nil
}

func (p *stubPublisher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *stubPublisher) callOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type stubNotifier struct {
	mu     sync.Mutex
	events []domain.AdminEvent
}

func (n *stubNotifier) NotifyAdmin(ctx context.Context, event domain.AdminEvent) error {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
	return nil
}

func (n *stubNotifier) byKind(kind string) []domain.AdminEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.AdminEvent
	for _, e := range n.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		Tick:           time.Second,
		Concurrency:    2,
		PublishTimeout: time.Second,
		MaxRetries:     3,
		BackoffBase:    time.Minute,
		BackoffCap:     30 * time.Minute,
	}
}

func newTestScheduler(store domain.LedgerStore, pub domain.Publisher, notifier domain.Notifier, cfg Config) *Scheduler {
	s := NewScheduler(store, pub, notifier, zerolog.Nop(), cfg)
	s.now = func() time.Time { return testNow }
	return s
}

func scheduledPost(id string, at time.Time) domain.Post {
	sat := at
	return domain.Post{
		ID:     id,
		Status: domain.StatusScheduled,
		Payload: domain.Payload{
			Title: "Post " + id,
			Link:  "https://example.com/" + id,
		},
		CreatedAt:   at.Add(-time.Hour),
		ScheduledAt: &sat,
	}
}

func TestTickPublishesDuePost(t *testing.T) {
	store := newMemStore()
	store.put(scheduledPost("p-1", testNow.Add(-time.Minute)))
	pub := &stubPublisher{}
	s := newTestScheduler(store, pub, nil, testConfig())

	s.Tick(context.Background())
	s.Drain(time.Second)

	got := store.get("p-1")
	if got.Status != domain.StatusPublished {
		t.Fatalf("expected published, got %s", got.Status)
	}
	if got.ScheduledAt != nil {
		t.Fatal("published post must not keep scheduled_at")
	}
	if got.PublishedAt == nil {
		t.Fatal("published post must have published_at")
	}
	if pub.callCount() != 1 {
		t.Fatalf("expected 1 publish call, got %d", pub.callCount())
	}
}

func TestTickIgnoresFuturePosts(t *testing.T) {
	store := newMemStore()
	store.put(scheduledPost("p-1", testNow.Add(time.Hour)))
	pub := &stubPublisher{}
	s := newTestScheduler(store, pub, nil, testConfig())

	s.Tick(context.Background())
	s.Drain(time.Second)

	if pub.callCount() != 0 {
		t.Fatalf("expected no publish calls, got %d", pub.callCount())
	}
	if got := store.get("p-1"); got.Status != domain.StatusScheduled {
		t.Fatalf("future post must stay scheduled, got %s", got.Status)
	}
}

func TestTickOrdersByScheduledAtThenID(t *testing.T) {
	store := newMemStore()
	at := testNow.Add(-time.Minute)
	store.put(scheduledPost("b", testNow.Add(-2*time.Minute)))
	store.put(scheduledPost("c", at))
	store.put(scheduledPost("a", at))
	pub := &stubPublisher{}
	cfg := testConfig()
	cfg.Concurrency = 1
	s := newTestScheduler(store, pub, nil, cfg)

	// Один слот: каждый тик публикует ровно один пост, остальные ждут.
	for i := 0; i < 3; i++ {
		s.Tick(context.Background())
		s.Drain(time.Second)
	}

	order := pub.callOrder()
	want := []string{"b", "a", "c"}
	if len(order) != len(want) {
		t.Fatalf("expected %d publish calls, got %d (%v)", len(want), len(order), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestOverlappingTicksPublishOnce(t *testing.T) {
	store := newMemStore()
	store.put(scheduledPost("p-1", testNow.Add(-time.Minute)))
	pub := &stubPublisher{gate: make(chan struct{})}
	s := newTestScheduler(store, pub, nil, testConfig())

	s.Tick(context.Background())
	// Публикация висит в сети, второй тик видит пост всё ещё Scheduled.
	s.Tick(context.Background())
	close(pub.gate)
	s.Drain(time.Second)

	if pub.callCount() != 1 {
		t.Fatalf("expected exactly 1 publish call across overlapping ticks, got %d", pub.callCount())
	}
	if got := store.get("p-1"); got.Status != domain.StatusPublished {
		t.Fatalf("expected published, got %s", got.Status)
	}
}

func TestConcurrencyLimit(t *testing.T) {
	store := newMemStore()
	for i := 0; i < 5; i++ {
		store.put(scheduledPost(fmt.Sprintf("p-%d", i), testNow.Add(-time.Minute)))
	}
	pub := &stubPublisher{gate: make(chan struct{})}
	cfg := testConfig()
	cfg.Concurrency = 2
	s := newTestScheduler(store, pub, nil, cfg)

	s.Tick(context.Background())
	// Дать воркерам дойти до публикации.
	deadline := time.After(2 * time.Second)
	for pub.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for workers, calls=%d", pub.callCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
	if pub.callCount() != 2 {
		t.Fatalf("expected at most 2 concurrent publishes, got %d", pub.callCount())
	}
	close(pub.gate)
	s.Drain(time.Second)
}

func TestTransientFailureSchedulesRetry(t *testing.T) {
	store := newMemStore()
	store.put(scheduledPost("p-1", testNow.Add(-time.Minute)))
	pub := &stubPublisher{err: &domain.TransientPublishError{Err: errors.New("telegram: 500")}}
	s := newTestScheduler(store, pub, nil, testConfig())

	s.Tick(context.Background())
	s.Drain(time.Second)

	got := store.get("p-1")
	if got.Status != domain.StatusScheduled {
		t.Fatalf("expected retry in scheduled, got %s", got.Status)
	}
	if got.RetryCount != 1 {
		t.Fatalf("expected retry_count 1, got %d", got.RetryCount)
	}
	want := testNow.Add(2 * time.Minute) // base * 2^1
	if got.ScheduledAt == nil || !got.ScheduledAt.Equal(want) {
		t.Fatalf("expected retry at %s, got %v", want, got.ScheduledAt)
	}
	if got.LastError == "" {
		t.Fatal("expected last_error to be recorded")
	}
}

func TestRetriesExhaustedGiveUp(t *testing.T) {
	store := newMemStore()
	p := scheduledPost("p-1", testNow.Add(-time.Minute))
	p.RetryCount = 2 // третья попытка станет последней
	store.put(p)
	pub := &stubPublisher{err: &domain.TransientPublishError{Err: errors.New("telegram: timeout")}}
	notifier := &stubNotifier{}
	s := newTestScheduler(store, pub, notifier, testConfig())

	s.Tick(context.Background())
	s.Drain(time.Second)

	got := store.get("p-1")
	if got.Status != domain.StatusRejected {
		t.Fatalf("expected rejected after give up, got %s", got.Status)
	}
	events := notifier.byKind(domain.AdminEventGiveUp)
	if len(events) != 1 || events[0].PostID != "p-1" {
		t.Fatalf("expected one give_up notification for p-1, got %v", events)
	}
}

func TestPermanentFailureRejectsImmediately(t *testing.T) {
	store := newMemStore()
	store.put(scheduledPost("p-1", testNow.Add(-time.Minute)))
	pub := &stubPublisher{err: &domain.PermanentPublishError{Err: errors.New("telegram: 400 chat not found")}}
	s := newTestScheduler(store, pub, nil, testConfig())

	s.Tick(context.Background())
	s.Drain(time.Second)

	got := store.get("p-1")
	if got.Status != domain.StatusRejected {
		t.Fatalf("expected rejected, got %s", got.Status)
	}
	if got.RetryCount != 0 {
		t.Fatalf("permanent failure must not burn retries, got %d", got.RetryCount)
	}
}

func TestCorruptLedgerStopsTickAndNotifies(t *testing.T) {
	store := newMemStore()
	store.loadErr = fmt.Errorf("файл леджера: %w", domain.ErrCorruptState)
	pub := &stubPublisher{}
	notifier := &stubNotifier{}
	s := newTestScheduler(store, pub, notifier, testConfig())

	s.Tick(context.Background())
	s.Drain(time.Second)

	if pub.callCount() != 0 {
		t.Fatalf("expected no publish attempts on corrupt ledger, got %d", pub.callCount())
	}
	if len(notifier.byKind(domain.AdminEventCorruptState)) != 1 {
		t.Fatal("expected corrupt_state notification")
	}
}
