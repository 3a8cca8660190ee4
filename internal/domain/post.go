package domain

import "time"

// Status описывает состояние поста в жизненном цикле.
type Status string

const (
	// StatusPending — кандидат ждёт модерации.
	StatusPending Status = "pending"
	// StatusApproved — пост одобрен, но ещё не запланирован.
	StatusApproved Status = "approved"
	// StatusFavorite — пост помечен избранным.
	StatusFavorite Status = "favorite"
	// StatusScheduled — пост запланирован к публикации.
	StatusScheduled Status = "scheduled"
	// StatusPublished — пост опубликован в канал.
	StatusPublished Status = "published"
	// StatusRejected — пост отклонён, терминальное состояние.
	StatusRejected Status = "rejected"
	// StatusFailed — публикация завершилась ошибкой, возможен повтор.
	StatusFailed Status = "failed"
)

// Terminal сообщает, является ли состояние терминальным.
func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusRejected
}

// Payload содержит контентную часть поста. Ядро проверяет только наличие
// полей, не их смысл.
type Payload struct {
	Title    string              `json:"title"`
	Link     string              `json:"link"`
	Source   string              `json:"source"`
	Category string              `json:"category,omitempty"`
	Excerpt  string              `json:"excerpt,omitempty"`
	Caption  string              `json:"caption,omitempty"`
	Images   []string            `json:"images,omitempty"`
	Tags     map[string][]string `json:"tags,omitempty"`
}

// Post — единица контента под модерацией и публикацией.
type Post struct {
	ID          string     `json:"id"`
	Fingerprint string     `json:"fingerprint"`
	Status      Status     `json:"status"`
	Payload     Payload    `json:"payload"`
	CreatedAt   time.Time  `json:"created_at"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	RetryCount  int        `json:"retry_count,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// Clone возвращает копию поста с независимыми слайсами и картами.
func (p Post) Clone() Post {
	out := p
	if p.ScheduledAt != nil {
		t := *p.ScheduledAt
		out.ScheduledAt = &t
	}
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		out.PublishedAt = &t
	}
	if p.Payload.Images != nil {
		out.Payload.Images = append([]string(nil), p.Payload.Images...)
	}
	if p.Payload.Tags != nil {
		tags := make(map[string][]string, len(p.Payload.Tags))
		for k, v := range p.Payload.Tags {
			tags[k] = append([]string(nil), v...)
		}
		out.Payload.Tags = tags
	}
	return out
}

// Settings хранит настройки процесса внутри леджера.
type Settings struct {
	AutoPublish bool   `json:"auto_publish"`
	Channel     string `json:"channel"`
	Timezone    string `json:"timezone"`
}

// Ledger — полный набор постов и индекс дедупликации. Персистится как одна
// атомарная единица и является единственным источником истины.
type Ledger struct {
	Posts    map[string]Post   `json:"posts"`
	Dedup    map[string]string `json:"dedup"`
	Settings Settings          `json:"settings"`
}

// NewLedger создаёт пустой леджер.
func NewLedger() *Ledger {
	return &Ledger{
		Posts: map[string]Post{},
		Dedup: map[string]string{},
	}
}

// Clone возвращает глубокую копию леджера.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{
		Posts:    make(map[string]Post, len(l.Posts)),
		Dedup:    make(map[string]string, len(l.Dedup)),
		Settings: l.Settings,
	}
	for id, p := range l.Posts {
		out.Posts[id] = p.Clone()
	}
	for fp, id := range l.Dedup {
		out.Dedup[fp] = id
	}
	return out
}

// ByStatus возвращает посты в указанном статусе.
func (l *Ledger) ByStatus(status Status) []Post {
	var out []Post
	for _, p := range l.Posts {
		if p.Status == status {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Candidate — сырая запись от парсера источников до создания поста.
type Candidate struct {
	Title       string              `json:"title"`
	Link        string              `json:"link"`
	Source      string              `json:"source"`
	Category    string              `json:"category,omitempty"`
	Excerpt     string              `json:"excerpt,omitempty"`
	Images      []string            `json:"images,omitempty"`
	Tags        map[string][]string `json:"tags,omitempty"`
	PublishedAt time.Time           `json:"published_at,omitempty"`
}

// PublishReceipt возвращается публикатором при успешной доставке.
type PublishReceipt struct {
	MessageID int
	Channel   string
	SentAt    time.Time
}

// AdminEvent — событие для уведомления оператора.
type AdminEvent struct {
	Kind   string
	PostID string
	Text   string
}

// Виды административных событий.
const (
	AdminEventGiveUp       = "give_up"
	AdminEventCorruptState = "corrupt_state"
)
