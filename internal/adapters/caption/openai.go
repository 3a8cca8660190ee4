package caption

import (
	"context"
	"fmt"
	"strings"

	"github.com/thealinfix/hypebot/internal/domain"
	"github.com/thealinfix/hypebot/internal/infra/openai"
)

const systemPrompt = `Ты редактор Telegram-канала о кроссовках и уличной моде.
Напиши короткую подпись к посту: 2-3 предложения, живой тон без канцелярита,
без выдуманных фактов, цен и дат, которых нет в материале. Разрешён HTML:
<b> и <i>. Не добавляй хэштеги и ссылки, они подставятся отдельно.`

// OpenAIGenerator строит подпись через Chat Completions.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

var _ domain.CaptionGenerator = (*OpenAIGenerator)(nil)

// NewOpenAI создаёт генератора.
func NewOpenAI(client *openai.Client, model string) *OpenAIGenerator {
	return &OpenAIGenerator{client: client, model: model}
}

// Generate запрашивает подпись у модели.
func (g *OpenAIGenerator) Generate(ctx context.Context, post domain.Post) (string, error) {
	var user strings.Builder
	user.WriteString("Заголовок: ")
	user.WriteString(post.Payload.Title)
	if post.Payload.Excerpt != "" {
		user.WriteString("\nВыдержка: ")
		user.WriteString(post.Payload.Excerpt)
	}
	user.WriteString("\nИсточник: ")
	user.WriteString(post.Payload.Source)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: systemPrompt},
			{Role: openai.RoleUser, Content: user.String()},
		},
		Temperature: 0.7,
		MaxTokens:   300,
	})
	if err != nil {
		return "", fmt.Errorf("генерация подписи: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("генерация подписи: пустой ответ модели")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
