package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/thealinfix/hypebot/internal/domain"
)

const maxMediaGroupSize = 10

// Publisher доставляет посты в канал через Bot API.
type Publisher struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

var _ domain.Publisher = (*Publisher)(nil)

// NewPublisher создаёт публикатора.
func NewPublisher(bot *tgbotapi.BotAPI, log zerolog.Logger) *Publisher {
	return &Publisher{bot: bot, log: log}
}

// Publish отправляет пост в канал: медиагруппой, если есть изображения,
// иначе текстовым сообщением. Ошибки Bot API классифицируются на временные
// и необратимые.
func (p *Publisher) Publish(ctx context.Context, post domain.Post, channel string) (domain.PublishReceipt, error) {
	if channel == "" {
		return domain.PublishReceipt{}, &domain.PermanentPublishError{Err: errors.New("канал публикации не задан")}
	}

	caption := BuildChannelCaption(post)
	images := post.Payload.Images
	if len(images) > maxMediaGroupSize {
		images = images[:maxMediaGroupSize]
	}

	var (
		messageID int
		err       error
	)
	if len(images) > 0 {
		messageID, err = p.sendMediaGroup(ctx, channel, images, caption)
	} else {
		messageID, err = p.sendMessage(ctx, channel, caption)
	}
	if err != nil {
		return domain.PublishReceipt{}, classify(err)
	}
	return domain.PublishReceipt{MessageID: messageID, Channel: channel, SentAt: time.Now().UTC()}, nil
}

func (p *Publisher) sendMediaGroup(ctx context.Context, channel string, images []string, caption string) (int, error) {
	media := make([]interface{}, 0, len(images))
	for i, url := range images {
		photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(url))
		if i == 0 {
			photo.Caption = TruncateCaption(caption, captionLimit)
			photo.ParseMode = tgbotapi.ModeHTML
		}
		media = append(media, photo)
	}
	group := tgbotapi.MediaGroupConfig{
		ChannelUsername: channel,
		Media:           media,
	}

	msgs, err := p.send(ctx, func() ([]tgbotapi.Message, error) {
		return p.bot.SendMediaGroup(group)
	})
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, errors.New("пустой ответ на медиагруппу")
	}
	return msgs[0].MessageID, nil
}

func (p *Publisher) sendMessage(ctx context.Context, channel string, text string) (int, error) {
	msg := tgbotapi.NewMessageToChannel(channel, TruncateCaption(text, messageLimit))
	msg.ParseMode = tgbotapi.ModeHTML

	msgs, err := p.send(ctx, func() ([]tgbotapi.Message, error) {
		m, err := p.bot.Send(msg)
		if err != nil {
			return nil, err
		}
		return []tgbotapi.Message{m}, nil
	})
	if err != nil {
		return 0, err
	}
	return msgs[0].MessageID, nil
}

// send исполняет вызов Bot API, уважая дедлайн контекста: клиент библиотеки
// контекст не принимает, поэтому истёкший дедлайн превращается во временную
// ошибку, а сам вызов довершается в фоне.
func (p *Publisher) send(ctx context.Context, call func() ([]tgbotapi.Message, error)) ([]tgbotapi.Message, error) {
	type result struct {
		msgs []tgbotapi.Message
		err  error
	}
	done := make(chan result, 1)
	go func() {
		msgs, err := call()
		done <- result{msgs: msgs, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.msgs, res.err
	}
}

// classify делит ошибки Bot API на временные и необратимые. Лимиты (429),
// пятисотые и сетевые таймауты уходят на повтор; четырёхсотые — отказ.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &domain.TransientPublishError{Err: err}
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429 || apiErr.RetryAfter > 0:
			return &domain.TransientPublishError{Err: fmt.Errorf("flood wait %ds: %w", apiErr.RetryAfter, err)}
		case apiErr.Code >= 500:
			return &domain.TransientPublishError{Err: err}
		case apiErr.Code >= 400:
			return &domain.PermanentPublishError{Err: err}
		}
	}
	return &domain.TransientPublishError{Err: err}
}
