package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/thealinfix/hypebot/internal/adapters/telegram"
	"github.com/thealinfix/hypebot/internal/domain"
	"github.com/thealinfix/hypebot/internal/usecase/moderate"
)

const pendingPageSize = 5

// SourceChecker запускает внеочередной проход по источникам.
type SourceChecker interface {
	PollOnce(ctx context.Context)
}

// Handler обслуживает вебхук бота модерации.
type Handler struct {
	bot      *tgbotapi.BotAPI
	log      zerolog.Logger
	mod      *moderate.Service
	captions domain.CaptionGenerator
	checker  SourceChecker
	adminID  int64

	mu          sync.Mutex
	pendingTime map[int64]string // user -> post, ждущий ввода времени
}

// NewHandler создаёт обработчик. captions и checker могут быть nil, тогда
// соответствующие команды отвечают отказом.
func NewHandler(bot *tgbotapi.BotAPI, log zerolog.Logger, mod *moderate.Service, captions domain.CaptionGenerator, checker SourceChecker, adminID int64) *Handler {
	return &Handler{
		bot:         bot,
		log:         log,
		mod:         mod,
		captions:    captions,
		checker:     checker,
		adminID:     adminID,
		pendingTime: map[int64]string{},
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.adminOnly(h.handleMessage)(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

// adminOnly пропускает сообщение дальше, только если оно от администратора.
// Единственная обязанность обёртки — проверка прав.
func (h *Handler) adminOnly(next func(ctx context.Context, msg *tgbotapi.Message)) func(ctx context.Context, msg *tgbotapi.Message) {
	return func(ctx context.Context, msg *tgbotapi.Message) {
		if msg.From == nil || (h.adminID != 0 && msg.From.ID != h.adminID) {
			h.reply(msg.Chat.ID, "❌ Команда доступна только администратору", nil)
			return
		}
		next(ctx, msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if msg.From != nil && !strings.HasPrefix(text, "/") {
		if h.tryHandleScheduleInput(ctx, msg.Chat.ID, msg.From.ID, text) {
			return
		}
	}
	switch {
	case strings.HasPrefix(text, "/start"):
		h.reply(msg.Chat.ID, h.buildStartMessage(), nil)
	case strings.HasPrefix(text, "/help"):
		h.reply(msg.Chat.ID, h.buildHelpMessage(), nil)
	case strings.HasPrefix(text, "/pending"):
		h.handlePending(msg.Chat.ID)
	case strings.HasPrefix(text, "/queue"):
		h.handleQueue(msg.Chat.ID)
	case strings.HasPrefix(text, "/stats"):
		h.handleStats(msg.Chat.ID)
	case strings.HasPrefix(text, "/autopublish"):
		payload := strings.TrimSpace(strings.TrimPrefix(text, "/autopublish"))
		h.handleAutoPublish(msg.Chat.ID, payload)
	case strings.HasPrefix(text, "/channel"):
		alias := strings.TrimSpace(strings.TrimPrefix(text, "/channel"))
		h.handleChannel(msg.Chat.ID, alias)
	case strings.HasPrefix(text, "/timezone"):
		tz := strings.TrimSpace(strings.TrimPrefix(text, "/timezone"))
		h.handleTimezone(msg.Chat.ID, tz)
	case strings.HasPrefix(text, "/check"):
		h.handleCheck(ctx, msg.Chat.ID)
	default:
		h.reply(msg.Chat.ID, "Неизвестная команда. Используйте /help", nil)
	}
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || (h.adminID != 0 && cb.From.ID != h.adminID) {
		h.answerCallback(cb.ID, "❌ Недостаточно прав")
		return
	}
	action, id, ok := strings.Cut(cb.Data, ":")
	if !ok {
		h.answerCallback(cb.ID, "Непонятное действие")
		return
	}
	chatID := int64(0)
	if cb.Message != nil {
		chatID = cb.Message.Chat.ID
	}

	switch action {
	case "approve":
		post, err := h.mod.Approve(ctx, id)
		h.reportTransition(cb.ID, chatID, post, err, "✅ Одобрен")
	case "reject":
		post, err := h.mod.Reject(ctx, id)
		h.reportTransition(cb.ID, chatID, post, err, "🗑 Отклонён")
	case "fav":
		post, err := h.mod.MarkFavorite(ctx, id)
		h.reportTransition(cb.ID, chatID, post, err, "⭐ В избранном")
	case "sched":
		h.mu.Lock()
		h.pendingTime[cb.From.ID] = id
		h.mu.Unlock()
		h.answerCallback(cb.ID, "")
		h.reply(chatID, "Отправьте время: 15:04, 02.01 15:04 или +2h", nil)
	case "gen":
		h.handleGenerate(ctx, cb.ID, chatID, id)
	default:
		h.answerCallback(cb.ID, "Непонятное действие")
	}
}

func (h *Handler) tryHandleScheduleInput(ctx context.Context, chatID, userID int64, text string) bool {
	h.mu.Lock()
	postID, waiting := h.pendingTime[userID]
	if waiting {
		delete(h.pendingTime, userID)
	}
	h.mu.Unlock()
	if !waiting {
		return false
	}

	settings, err := h.mod.Settings()
	if err != nil {
		h.reply(chatID, "Ошибка чтения настроек: "+err.Error(), nil)
		return true
	}
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		loc = time.UTC
	}
	at, err := moderate.ParseScheduleTime(text, loc, time.Now())
	if err != nil {
		h.reply(chatID, "Не понял время. Примеры: 15:04, 02.01 15:04, +2h", nil)
		return true
	}

	post, err := h.mod.Schedule(ctx, postID, at)
	if err != nil {
		h.reply(chatID, h.describeError(err), nil)
		return true
	}
	h.reply(chatID, fmt.Sprintf("📅 Пост запланирован на %s", at.In(loc).Format("02.01.2006 15:04")), nil)
	h.log.Info().Str("post", post.ID).Time("at", at).Msg("bot: пост запланирован вручную")
	return true
}

func (h *Handler) handlePending(chatID int64) {
	posts, err := h.mod.List(domain.StatusPending)
	if err != nil {
		h.reply(chatID, "Ошибка чтения очереди: "+err.Error(), nil)
		return
	}
	if len(posts) == 0 {
		h.reply(chatID, "📭 Очередь модерации пуста", nil)
		return
	}
	if len(posts) > pendingPageSize {
		posts = posts[:pendingPageSize]
	}
	for _, post := range posts {
		h.reply(chatID, h.buildPreview(post), h.moderationKeyboard(post.ID))
	}
}

func (h *Handler) handleQueue(chatID int64) {
	posts, err := h.mod.List(domain.StatusScheduled)
	if err != nil {
		h.reply(chatID, "Ошибка чтения очереди: "+err.Error(), nil)
		return
	}
	if len(posts) == 0 {
		h.reply(chatID, "📭 Запланированных постов нет", nil)
		return
	}
	settings, _ := h.mod.Settings()
	loc, err := time.LoadLocation(settings.Timezone)
	if err != nil {
		loc = time.UTC
	}

	var b strings.Builder
	b.WriteString("🗓 <b>Запланированные посты</b>\n\n")
	for _, post := range posts {
		when := "—"
		if post.ScheduledAt != nil {
			when = post.ScheduledAt.In(loc).Format("02.01 15:04")
		}
		fmt.Fprintf(&b, "• %s — %s\n", when, post.Payload.Title)
	}
	h.reply(chatID, b.String(), nil)
}

func (h *Handler) handleStats(chatID int64) {
	var b strings.Builder
	b.WriteString("📊 <b>Статистика</b>\n\n")
	for _, status := range []domain.Status{
		domain.StatusPending, domain.StatusApproved, domain.StatusFavorite,
		domain.StatusScheduled, domain.StatusPublished, domain.StatusFailed, domain.StatusRejected,
	} {
		posts, err := h.mod.List(status)
		if err != nil {
			h.reply(chatID, "Ошибка чтения леджера: "+err.Error(), nil)
			return
		}
		fmt.Fprintf(&b, "%s: %d\n", status, len(posts))
	}
	settings, err := h.mod.Settings()
	if err == nil {
		fmt.Fprintf(&b, "\nКанал: %s\nАвтопубликация: %v", settings.Channel, settings.AutoPublish)
	}
	h.reply(chatID, b.String(), nil)
}

func (h *Handler) handleAutoPublish(chatID int64, payload string) {
	switch payload {
	case "on":
		if err := h.mod.SetAutoPublish(true); err != nil {
			h.reply(chatID, "Ошибка: "+err.Error(), nil)
			return
		}
		h.reply(chatID, "🚀 Автопубликация избранного включена", nil)
	case "off":
		if err := h.mod.SetAutoPublish(false); err != nil {
			h.reply(chatID, "Ошибка: "+err.Error(), nil)
			return
		}
		h.reply(chatID, "⏸ Автопубликация избранного выключена", nil)
	default:
		h.reply(chatID, "Используйте /autopublish on или /autopublish off", nil)
	}
}

func (h *Handler) handleChannel(chatID int64, alias string) {
	if alias == "" {
		settings, err := h.mod.Settings()
		if err != nil {
			h.reply(chatID, "Ошибка: "+err.Error(), nil)
			return
		}
		h.reply(chatID, "Текущий канал: "+settings.Channel+"\nСменить: /channel @alias", nil)
		return
	}
	if !strings.HasPrefix(alias, "@") {
		h.reply(chatID, "Алиас канала должен начинаться с @", nil)
		return
	}
	if err := h.mod.SetChannel(alias); err != nil {
		h.reply(chatID, "Ошибка: "+err.Error(), nil)
		return
	}
	h.reply(chatID, "📡 Канал публикации: "+alias, nil)
}

func (h *Handler) handleTimezone(chatID int64, tz string) {
	if tz == "" {
		settings, err := h.mod.Settings()
		if err != nil {
			h.reply(chatID, "Ошибка: "+err.Error(), nil)
			return
		}
		h.reply(chatID, "Текущий пояс: "+settings.Timezone+"\nСменить: /timezone Europe/Moscow", nil)
		return
	}
	if err := h.mod.SetTimezone(tz); err != nil {
		h.reply(chatID, "Неизвестный часовой пояс. Пример: Europe/Moscow", nil)
		return
	}
	h.reply(chatID, "🕐 Часовой пояс: "+tz, nil)
}

func (h *Handler) handleCheck(ctx context.Context, chatID int64) {
	if h.checker == nil {
		h.reply(chatID, "Опрос источников выполняет отдельный сервис, команда здесь недоступна", nil)
		return
	}
	h.reply(chatID, "🔍 Запускаю внеочередной опрос источников…", nil)
	go func() {
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Minute)
		defer cancel()
		h.checker.PollOnce(checkCtx)
		h.reply(chatID, "Опрос источников завершён, новые посты в /pending", nil)
	}()
}

func (h *Handler) handleGenerate(ctx context.Context, cbID string, chatID int64, postID string) {
	if h.captions == nil {
		h.answerCallback(cbID, "Генерация не настроена")
		return
	}
	post, err := h.mod.Get(postID)
	if err != nil {
		h.answerCallback(cbID, h.describeError(err))
		return
	}
	h.answerCallback(cbID, "Генерирую…")

	genCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	text, err := h.captions.Generate(genCtx, post)
	if err != nil {
		h.reply(chatID, "Не удалось сгенерировать подпись: "+err.Error(), nil)
		return
	}
	if _, err := h.mod.SetCaption(ctx, postID, text); err != nil {
		h.reply(chatID, h.describeError(err), nil)
		return
	}
	h.reply(chatID, "✍️ Новая подпись:\n\n"+text, h.moderationKeyboard(postID))
}

func (h *Handler) reportTransition(cbID string, chatID int64, post domain.Post, err error, okText string) {
	if err != nil {
		h.answerCallback(cbID, h.describeError(err))
		return
	}
	h.answerCallback(cbID, okText)
	if chatID != 0 {
		h.reply(chatID, fmt.Sprintf("%s: %s", okText, post.Payload.Title), nil)
	}
}

// describeError переводит доменные ошибки в понятный модератору текст.
func (h *Handler) describeError(err error) string {
	switch {
	case errors.Is(err, domain.ErrPostNotFound):
		return "Пост не найден, возможно уже удалён"
	case errors.Is(err, domain.ErrStaleTransition):
		return "Статус поста уже изменился, обновите список"
	case errors.Is(err, domain.ErrInvalidScheduleTime):
		return "Время должно быть в будущем"
	default:
		return "Ошибка: " + err.Error()
	}
}

func (h *Handler) buildPreview(post domain.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📅 %s\n👟 <b>%s</b>\n\n", post.CreatedAt.Format("02.01.2006"), post.Payload.Title)
	if hashtags := telegram.Hashtags(post.Payload.Tags); hashtags != "" {
		b.WriteString(hashtags + "\n\n")
	}
	if post.Payload.Excerpt != "" {
		b.WriteString(telegram.TruncateCaption(post.Payload.Excerpt, 400) + "\n\n")
	}
	fmt.Fprintf(&b, "📍 Источник: %s\n🔗 %s\n🖼 Изображений: %d\n\n🆔 %s",
		post.Payload.Source, post.Payload.Link, len(post.Payload.Images), post.ID)
	return b.String()
}

func (h *Handler) moderationKeyboard(postID string) *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Одобрить", "approve:"+postID),
			tgbotapi.NewInlineKeyboardButtonData("🗑 Отклонить", "reject:"+postID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⭐ Избранное", "fav:"+postID),
			tgbotapi.NewInlineKeyboardButtonData("📅 Запланировать", "sched:"+postID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ Подпись", "gen:"+postID),
		),
	)
	return &kb
}

func (h *Handler) buildStartMessage() string {
	return "👋 HypeBot на связи.\n\n" +
		"Я слежу за релизами, складываю их в очередь модерации и публикую одобренное в канал по расписанию.\n\n" +
		"Начните с /pending или загляните в /help."
}

func (h *Handler) buildHelpMessage() string {
	return "<b>Команды</b>\n" +
		"/pending — очередь модерации\n" +
		"/queue — запланированные посты\n" +
		"/stats — статистика по статусам\n" +
		"/autopublish on|off — автопубликация избранного\n" +
		"/channel @alias — канал публикации\n" +
		"/timezone Europe/Moscow — часовой пояс\n" +
		"/check — внеочередной опрос источников"
}

func (h *Handler) reply(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	if chatID == 0 {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if kb != nil {
		msg.ReplyMarkup = kb
	}
	if _, err := h.bot.Send(msg); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("bot: не удалось отправить сообщение")
	}
}

func (h *Handler) answerCallback(id, text string) {
	cb := tgbotapi.NewCallback(id, text)
	if _, err := h.bot.Request(cb); err != nil {
		h.log.Error().Err(err).Msg("bot: не удалось ответить на callback")
	}
}
