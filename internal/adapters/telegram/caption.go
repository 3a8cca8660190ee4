package telegram

import (
	"fmt"
	"strings"

	"github.com/thealinfix/hypebot/internal/domain"
)

const (
	captionLimit = 1024
	messageLimit = 4096
)

var sourceEmojis = map[string]string{
	"sneakernews":  "📰",
	"hypebeast":    "🔥",
	"highsnobiety": "💎",
}

// BuildChannelCaption собирает текст публикации: подпись или выдержка,
// источник, ссылка и хэштеги. Если всё вместе не влезает в лимит подписи,
// текст ужимается, но хэштеги сохраняются.
func BuildChannelCaption(post domain.Post) string {
	body := post.Payload.Caption
	if body == "" {
		body = post.Payload.Excerpt
	}
	if body == "" {
		body = post.Payload.Title
	}
	body = strings.TrimSpace(body)

	emoji, ok := sourceEmojis[strings.ToLower(post.Payload.Source)]
	if !ok {
		emoji = "📍"
	}
	categoryEmoji := "👟"
	if post.Payload.Category == "fashion" {
		categoryEmoji = "👔"
	}

	tail := fmt.Sprintf("\n\n%s %s\n%s <a href=%q>Читать полностью</a>", emoji, post.Payload.Source, categoryEmoji, post.Payload.Link)
	hashtags := Hashtags(post.Payload.Tags)
	if hashtags != "" {
		tail += "\n\n" + hashtags
	}

	if len([]rune(body))+len([]rune(tail)) > captionLimit {
		keep := captionLimit - len([]rune(tail)) - 1
		if keep > 0 {
			body = TruncateCaption(body, keep)
		} else {
			body = ""
		}
	}
	return strings.TrimSpace(body + tail)
}

// Hashtags собирает строку хэштегов из тегов поста.
func Hashtags(tags map[string][]string) string {
	if len(tags) == 0 {
		return ""
	}
	var parts []string
	for _, group := range []string{"brands", "models", "types"} {
		for _, tag := range tags[group] {
			cleaned := strings.ReplaceAll(strings.TrimSpace(tag), " ", "")
			if cleaned == "" {
				continue
			}
			parts = append(parts, "#"+strings.ToLower(cleaned))
		}
	}
	return strings.Join(parts, " ")
}

// TruncateCaption режет текст по рунам с многоточием; предпочитает границу
// слова, чтобы не рвать последнее предложение посередине.
func TruncateCaption(text string, limit int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= limit {
		return string(runes)
	}
	if limit <= 1 {
		return "…"
	}
	cut := runes[:limit-1]
	if idx := lastSpace(cut); idx > limit/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(string(cut)) + "…"
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' || runes[i] == '\n' {
			return i
		}
	}
	return -1
}
