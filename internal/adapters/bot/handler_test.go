package bot

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/thealinfix/hypebot/internal/domain"
)

func TestDescribeErrorKnownSentinels(t *testing.T) {
	h := &Handler{}
	if got := h.describeError(domain.ErrPostNotFound); !strings.Contains(got, "не найден") {
		t.Fatalf("unexpected text for ErrPostNotFound: %q", got)
	}
	if got := h.describeError(domain.ErrInvalidScheduleTime); !strings.Contains(got, "будущем") {
		t.Fatalf("unexpected text for ErrInvalidScheduleTime: %q", got)
	}
	wrapped := errors.New("что-то сломалось")
	if got := h.describeError(wrapped); !strings.Contains(got, "что-то сломалось") {
		t.Fatalf("unexpected text for generic error: %q", got)
	}
}

func TestBuildPreviewIncludesEssentials(t *testing.T) {
	h := &Handler{}
	post := domain.Post{
		ID:        "p-1",
		CreatedAt: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		Payload: domain.Payload{
			Title:   "Nike Air Max 1 получит новую расцветку",
			Link:    "https://example.com/air-max",
			Source:  "sneakernews",
			Excerpt: "Осенью выйдет новая версия классики.",
			Images:  []string{"https://example.com/1.jpg"},
		},
	}
	preview := h.buildPreview(post)
	for _, part := range []string{"Nike Air Max 1", "sneakernews", "p-1", "10.03.2025"} {
		if !strings.Contains(preview, part) {
			t.Fatalf("preview missing %q:\n%s", part, preview)
		}
	}
}

func TestModerationKeyboardActions(t *testing.T) {
	h := &Handler{}
	kb := h.moderationKeyboard("p-2")
	var actions []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				actions = append(actions, *btn.CallbackData)
			}
		}
	}
	want := []string{"approve:p-2", "reject:p-2", "fav:p-2", "sched:p-2", "gen:p-2"}
	if len(actions) != len(want) {
		t.Fatalf("expected %d buttons, got %d (%v)", len(want), len(actions), actions)
	}
	for i, a := range want {
		if actions[i] != a {
			t.Fatalf("expected action %q at %d, got %q", a, i, actions[i])
		}
	}
}
