package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/thealinfix/hypebot/internal/domain"
)

func TestClassifyFloodWait(t *testing.T) {
	err := classify(&tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 30}})
	var transient *domain.TransientPublishError
	if !errors.As(err, &transient) {
		t.Fatalf("expected transient error for 429, got %T", err)
	}
}

func TestClassifyServerError(t *testing.T) {
	err := classify(&tgbotapi.Error{Code: 502, Message: "Bad Gateway"})
	var transient *domain.TransientPublishError
	if !errors.As(err, &transient) {
		t.Fatalf("expected transient error for 502, got %T", err)
	}
}

func TestClassifyClientError(t *testing.T) {
	err := classify(&tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"})
	var perm *domain.PermanentPublishError
	if !errors.As(err, &perm) {
		t.Fatalf("expected permanent error for 400, got %T", err)
	}
}

func TestClassifyWrappedAPIError(t *testing.T) {
	wrapped := fmt.Errorf("send: %w", &tgbotapi.Error{Code: 403, Message: "Forbidden"})
	var perm *domain.PermanentPublishError
	if !errors.As(classify(wrapped), &perm) {
		t.Fatalf("expected permanent error for wrapped 403")
	}
}

func TestClassifyContextDeadline(t *testing.T) {
	err := classify(context.DeadlineExceeded)
	var transient *domain.TransientPublishError
	if !errors.As(err, &transient) {
		t.Fatalf("expected transient error for deadline, got %T", err)
	}
}

func TestClassifyUnknownErrorIsTransient(t *testing.T) {
	err := classify(errors.New("connection reset by peer"))
	var transient *domain.TransientPublishError
	if !errors.As(err, &transient) {
		t.Fatalf("expected transient error by default, got %T", err)
	}
}

func TestPublishEmptyChannel(t *testing.T) {
	p := &Publisher{}
	_, err := p.Publish(context.Background(), domain.Post{}, "")
	var perm *domain.PermanentPublishError
	if !errors.As(err, &perm) {
		t.Fatalf("expected permanent error for empty channel, got %v", err)
	}
}
