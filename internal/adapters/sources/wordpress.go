package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/thealinfix/hypebot/internal/domain"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// WordPressSource читает список материалов через WP REST API.
type WordPressSource struct {
	name     string
	category string
	apiURL   string
	client   *http.Client
	limit    int
}

var _ domain.SourceFetcher = (*WordPressSource)(nil)

// NewWordPress создаёт источник. apiURL должен указывать на /wp-json/wp/v2/posts
// с параметром _embed для картинок.
func NewWordPress(name, category, apiURL string, client *http.Client, limit int) *WordPressSource {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if limit <= 0 {
		limit = 10
	}
	return &WordPressSource{name: name, category: category, apiURL: apiURL, client: client, limit: limit}
}

// Name возвращает ключ источника.
func (s *WordPressSource) Name() string { return s.name }

type wpPost struct {
	Link  string `json:"link"`
	Date  string `json:"date"`
	Title struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
	Excerpt struct {
		Rendered string `json:"rendered"`
	} `json:"excerpt"`
	Embedded struct {
		FeaturedMedia []struct {
			SourceURL string `json:"source_url"`
		} `json:"wp:featuredmedia"`
	} `json:"_embedded"`
}

// Fetch возвращает свежие кандидаты источника.
func (s *WordPressSource) Fetch(ctx context.Context) ([]domain.Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: построение запроса: %w", s.name, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: запрос: %w", s.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: неожиданный статус %d", s.name, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: чтение ответа: %w", s.name, err)
	}

	var posts []wpPost
	if err := json.Unmarshal(raw, &posts); err != nil {
		return nil, fmt.Errorf("%s: разбор JSON: %w", s.name, err)
	}
	if len(posts) > s.limit {
		posts = posts[:s.limit]
	}

	var out []domain.Candidate
	for _, p := range posts {
		title := CleanHTML(p.Title.Rendered)
		if p.Link == "" || len(title) < 10 {
			continue
		}
		c := domain.Candidate{
			Title:    title,
			Link:     p.Link,
			Source:   s.name,
			Category: s.category,
			Excerpt:  CleanHTML(p.Excerpt.Rendered),
		}
		if t, err := time.Parse(time.RFC3339, p.Date); err == nil {
			c.PublishedAt = t
		} else if t, err := time.Parse("2006-01-02T15:04:05", p.Date); err == nil {
			c.PublishedAt = t.UTC()
		}
		for _, media := range p.Embedded.FeaturedMedia {
			if ValidImageURL(media.SourceURL) {
				c.Images = append(c.Images, media.SourceURL)
			}
		}
		out = append(out, c)
	}
	return out, nil
}
