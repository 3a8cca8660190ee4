package http

import (
	"encoding/json"
	"net/http"
	"sort"

	chi "github.com/go-chi/chi/v5"

	"github.com/thealinfix/hypebot/internal/domain"
)

// StatusHandler отдаёт списки постов по статусу для оператора.
type StatusHandler struct {
	store domain.LedgerStore
}

// NewStatusHandler создаёт обработчик.
func NewStatusHandler(store domain.LedgerStore) *StatusHandler {
	return &StatusHandler{store: store}
}

// Mount вешает маршруты на роутер.
func (h *StatusHandler) Mount(r chi.Router) {
	r.Get("/api/posts", h.listPosts)
}

type postView struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Source      string `json:"source"`
	ScheduledAt string `json:"scheduled_at,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	RetryCount  int    `json:"retry_count,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

func (h *StatusHandler) listPosts(w http.ResponseWriter, r *http.Request) {
	ledger, err := h.store.Load()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	want := domain.Status(r.URL.Query().Get("status"))

	var views []postView
	for _, p := range ledger.Posts {
		if want != "" && p.Status != want {
			continue
		}
		v := postView{
			ID:         p.ID,
			Status:     string(p.Status),
			Title:      p.Payload.Title,
			Link:       p.Payload.Link,
			Source:     p.Payload.Source,
			RetryCount: p.RetryCount,
			LastError:  p.LastError,
		}
		if p.ScheduledAt != nil {
			v.ScheduledAt = p.ScheduledAt.Format("2006-01-02T15:04:05Z07:00")
		}
		if p.PublishedAt != nil {
			v.PublishedAt = p.PublishedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(views)
}
