package publish

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/thealinfix/hypebot/internal/domain"
)

func newTestAutoPublisher(store domain.LedgerStore, spacing time.Duration) *AutoPublisher {
	a := NewAutoPublisher(store, zerolog.Nop(), spacing)
	a.now = func() time.Time { return testNow }
	return a
}

func favoritePost(id string) domain.Post {
	return domain.Post{
		ID:     id,
		Status: domain.StatusFavorite,
		Payload: domain.Payload{
			Title: "Post " + id,
			Link:  "https://example.com/" + id,
		},
		CreatedAt: testNow.Add(-time.Hour),
	}
}

func TestOnFavoriteEmptyQueue(t *testing.T) {
	store := newMemStore()
	store.mu.Lock()
	store.l.Settings.AutoPublish = true
	store.mu.Unlock()
	store.put(favoritePost("p-1"))
	a := newTestAutoPublisher(store, time.Hour)

	if err := a.OnFavorite(context.Background(), "p-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got := store.get("p-1")
	if got.Status != domain.StatusScheduled {
		t.Fatalf("expected scheduled, got %s", got.Status)
	}
	want := testNow.Add(time.Hour)
	if got.ScheduledAt == nil || !got.ScheduledAt.Equal(want) {
		t.Fatalf("expected slot %s, got %v", want, got.ScheduledAt)
	}
}

func TestOnFavoriteSlotAfterQueueTail(t *testing.T) {
	store := newMemStore()
	store.mu.Lock()
	store.l.Settings.AutoPublish = true
	store.mu.Unlock()
	tail := testNow.Add(3 * time.Hour)
	store.put(scheduledPost("queued", tail))
	store.put(favoritePost("p-1"))
	a := newTestAutoPublisher(store, time.Hour)

	if err := a.OnFavorite(context.Background(), "p-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got := store.get("p-1")
	want := tail.Add(time.Hour)
	if got.ScheduledAt == nil || !got.ScheduledAt.Equal(want) {
		t.Fatalf("expected slot after queue tail %s, got %v", want, got.ScheduledAt)
	}
}

func TestOnFavoriteDisabled(t *testing.T) {
	store := newMemStore()
	store.put(favoritePost("p-1"))
	a := newTestAutoPublisher(store, time.Hour)

	if err := a.OnFavorite(context.Background(), "p-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := store.get("p-1"); got.Status != domain.StatusFavorite {
		t.Fatalf("with auto publish off the post must stay favorite, got %s", got.Status)
	}
}

func TestOnFavoriteMissingPost(t *testing.T) {
	store := newMemStore()
	store.mu.Lock()
	store.l.Settings.AutoPublish = true
	store.mu.Unlock()
	a := newTestAutoPublisher(store, time.Hour)

	if err := a.OnFavorite(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for unknown post")
	}
}

func TestPruneRemovesOldTerminalPosts(t *testing.T) {
	store := newMemStore()

	old := favoritePost("old")
	old.Status = domain.StatusPublished
	old.Fingerprint = "fp-old"
	old.CreatedAt = testNow.Add(-10 * 24 * time.Hour)
	store.put(old)
	store.mu.Lock()
	store.l.Dedup["fp-old"] = "old"
	store.mu.Unlock()

	fresh := favoritePost("fresh")
	fresh.Status = domain.StatusPublished
	fresh.CreatedAt = testNow.Add(-time.Hour)
	store.put(fresh)

	pending := favoritePost("pending")
	pending.Status = domain.StatusPending
	pending.CreatedAt = testNow.Add(-10 * 24 * time.Hour)
	store.put(pending)

	r := NewRetention(store, zerolog.Nop(), 7*24*time.Hour)
	r.now = func() time.Time { return testNow }

	removed, err := r.Prune()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed post, got %d", removed)
	}

	l, _ := store.Load()
	if _, ok := l.Posts["old"]; ok {
		t.Fatal("old terminal post must be pruned")
	}
	if _, ok := l.Dedup["fp-old"]; ok {
		t.Fatal("dedup entry of pruned post must be removed")
	}
	if _, ok := l.Posts["fresh"]; !ok {
		t.Fatal("fresh post must survive")
	}
	if _, ok := l.Posts["pending"]; !ok {
		t.Fatal("non-terminal post must never be pruned")
	}
}
