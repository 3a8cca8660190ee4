package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/thealinfix/hypebot/internal/domain"
)

type memStore struct {
	mu sync.Mutex
	l  *domain.Ledger
}

func newMemStore() *memStore {
	return &memStore{l: domain.NewLedger()}
}

func (m *memStore) Load() (*domain.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.l.Clone(), nil
}

func (m *memStore) WithLock(fn func(l *domain.Ledger) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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

func newService(store domain.LedgerStore) *Service {
	return NewService(store, zerolog.Nop())
}

func candidate() domain.Candidate {
	return domain.Candidate{
		Title:  "Nike Dunk Low вернётся в оригинальной расцветке",
		Link:   "https://sneakernews.com/2025/03/nike-dunk-low",
		Source: "sneakernews",
	}
}

func TestSubmitCandidateCreatesPending(t *testing.T) {
	store := newMemStore()
	svc := newService(store)

	id, err := svc.SubmitCandidate(context.Background(), candidate())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	l, _ := store.Load()
	post, ok := l.Posts[id]
	if !ok {
		t.Fatalf("post %s not found in ledger", id)
	}
	if post.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", post.Status)
	}
	if post.Fingerprint == "" {
		t.Fatal("expected fingerprint to be set")
	}
	if got := l.Dedup[post.Fingerprint]; got != id {
		t.Fatalf("dedup index points to %q, want %q", got, id)
	}
}

func TestSubmitCandidateDuplicate(t *testing.T) {
	store := newMemStore()
	svc := newService(store)

	if _, err := svc.SubmitCandidate(context.Background(), candidate()); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if _, err := svc.SubmitCandidate(context.Background(), candidate()); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	l, _ := store.Load()
	if len(l.Posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(l.Posts))
	}
}

func TestSubmitCandidateTrackingParamsDoNotBypassDedup(t *testing.T) {
	store := newMemStore()
	svc := newService(store)

	if _, err := svc.SubmitCandidate(context.Background(), candidate()); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	c := candidate()
	c.Link += "?utm_source=tg&fbclid=abc"
	if _, err := svc.SubmitCandidate(context.Background(), c); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestSubmitCandidateRejectedDoesNotBlock(t *testing.T) {
	store := newMemStore()
	svc := newService(store)

	id, err := svc.SubmitCandidate(context.Background(), candidate())
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if err := store.WithLock(func(l *domain.Ledger) error {
		p := l.Posts[id]
		p.Status = domain.StatusRejected
		l.Posts[id] = p
		return nil
	}); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	newID, err := svc.SubmitCandidate(context.Background(), candidate())
	if err != nil {
		t.Fatalf("resubmit after reject failed: %v", err)
	}
	if newID == id {
		t.Fatal("expected a new post id after resubmission")
	}

	l, _ := store.Load()
	fp := l.Posts[newID].Fingerprint
	if l.Dedup[fp] != newID {
		t.Fatalf("dedup index should point to the new post, got %q", l.Dedup[fp])
	}
}

func TestSubmitCandidateEmpty(t *testing.T) {
	svc := newService(newMemStore())
	if _, err := svc.SubmitCandidate(context.Background(), domain.Candidate{Link: "https://example.com"}); !errors.Is(err, ErrEmptyCandidate) {
		t.Fatalf("expected ErrEmptyCandidate, got %v", err)
	}
	if _, err := svc.SubmitCandidate(context.Background(), domain.Candidate{Title: "Без ссылки"}); !errors.Is(err, ErrEmptyCandidate) {
		t.Fatalf("expected ErrEmptyCandidate, got %v", err)
	}
}

type sliceQueue struct {
	items []domain.Candidate
}

func (q *sliceQueue) Enqueue(ctx context.Context, c domain.Candidate) error {
	q.items = append(q.items, c)
	return nil
}

func (q *sliceQueue) Pop(ctx context.Context) (domain.Candidate, error) {
	if len(q.items) == 0 {
		<-ctx.Done()
		return domain.Candidate{}, ctx.Err()
	}
	c := q.items[0]
	q.items = q.items[1:]
	return c, nil
}

func TestConsumeDrainsQueue(t *testing.T) {
	store := newMemStore()
	svc := newService(store)

	second := candidate()
	second.Title = "Jordan 4 в новой коллаборации"
	second.Link = "https://sneakernews.com/2025/03/jordan-4"
	queue := &sliceQueue{items: []domain.Candidate{candidate(), candidate(), second}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = svc.Consume(ctx, queue)
		close(done)
	}()

	// Очередь короткая, Pop заблокируется на пустой очереди и выйдет по cancel.
	deadline := time.After(2 * time.Second)
	for {
		l, _ := store.Load()
		if len(l.Posts) == 2 {
			break
		}
		select {
		case <-done:
			t.Fatal("consume exited before processing the queue")
		case <-deadline:
			t.Fatal("timed out waiting for consume to process the queue")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	l, _ := store.Load()
	if len(l.Posts) != 2 {
		t.Fatalf("expected 2 posts (duplicate skipped), got %d", len(l.Posts))
	}
}
