package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const wpFixture = `[
	{
		"link": "https://sneakernews.com/2025/03/nike-dunk-low",
		"date": "2025-03-10T12:00:00",
		"title": {"rendered": "Nike Dunk Low &#8220;Panda&#8221; Returns This Fall"},
		"excerpt": {"rendered": "<p>The classic colorway is back.</p>"},
		"_embedded": {"wp:featuredmedia": [{"source_url": "https://cdn.example.com/dunk.jpg"}]}
	},
	{
		"link": "https://sneakernews.com/2025/03/short",
		"date": "2025-03-10T11:00:00",
		"title": {"rendered": "Short"},
		"excerpt": {"rendered": ""}
	},
	{
		"link": "",
		"date": "2025-03-10T10:00:00",
		"title": {"rendered": "Entry without a link should be skipped"},
		"excerpt": {"rendered": ""}
	}
]`

func TestWordPressFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a user agent header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(wpFixture))
	}))
	defer srv.Close()

	src := NewWordPress("sneakernews", "sneakers", srv.URL, srv.Client(), 10)
	candidates, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate (short titles and missing links skipped), got %d", len(candidates))
	}

	c := candidates[0]
	if c.Title != "Nike Dunk Low “Panda” Returns This Fall" {
		t.Fatalf("expected decoded title, got %q", c.Title)
	}
	if c.Excerpt != "The classic colorway is back." {
		t.Fatalf("expected cleaned excerpt, got %q", c.Excerpt)
	}
	if c.Source != "sneakernews" || c.Category != "sneakers" {
		t.Fatalf("unexpected source/category: %q/%q", c.Source, c.Category)
	}
	if len(c.Images) != 1 || c.Images[0] != "https://cdn.example.com/dunk.jpg" {
		t.Fatalf("expected featured image, got %v", c.Images)
	}
	if c.PublishedAt.IsZero() {
		t.Fatal("expected published_at to be parsed")
	}
}

func TestWordPressFetchBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	src := NewWordPress("sneakernews", "sneakers", srv.URL, srv.Client(), 10)
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
