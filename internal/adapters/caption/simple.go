package caption

import (
	"context"
	"strings"

	"github.com/thealinfix/hypebot/internal/domain"
)

// SimpleGenerator собирает подпись эвристикой, без LLM.
type SimpleGenerator struct{}

var _ domain.CaptionGenerator = (*SimpleGenerator)(nil)

// NewSimple создаёт генератора.
func NewSimple() *SimpleGenerator {
	return &SimpleGenerator{}
}

// Generate строит короткий текст из заголовка и выдержки.
func (g *SimpleGenerator) Generate(ctx context.Context, post domain.Post) (string, error) {
	title := strings.TrimSpace(post.Payload.Title)
	excerpt := strings.TrimSpace(post.Payload.Excerpt)

	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(title)
	b.WriteString("</b>")
	if excerpt != "" {
		b.WriteString("\n\n")
		b.WriteString(firstSentences(excerpt, 2))
	}
	return b.String(), nil
}

func firstSentences(text string, n int) string {
	var out []string
	rest := text
	for i := 0; i < n && rest != ""; i++ {
		idx := strings.IndexAny(rest, ".!?")
		if idx < 0 {
			out = append(out, strings.TrimSpace(rest))
			break
		}
		out = append(out, strings.TrimSpace(rest[:idx+1]))
		rest = strings.TrimSpace(rest[idx+1:])
	}
	return strings.Join(out, " ")
}
