package sources

import (
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"

	"github.com/thealinfix/hypebot/internal/domain"
)

// RSSSource читает материалы из RSS/Atom ленты.
type RSSSource struct {
	name      string
	category  string
	feedURL   string
	parser    *gofeed.Parser
	limit     int
	maxImages int
}

var _ domain.SourceFetcher = (*RSSSource)(nil)

// NewRSS создаёт источник.
func NewRSS(name, category, feedURL string, limit, maxImages int) *RSSSource {
	if limit <= 0 {
		limit = 10
	}
	if maxImages <= 0 {
		maxImages = 10
	}
	p := gofeed.NewParser()
	p.UserAgent = userAgent
	return &RSSSource{name: name, category: category, feedURL: feedURL, parser: p, limit: limit, maxImages: maxImages}
}

// Name возвращает ключ источника.
func (s *RSSSource) Name() string { return s.name }

// Fetch возвращает свежие кандидаты ленты.
func (s *RSSSource) Fetch(ctx context.Context) ([]domain.Candidate, error) {
	feed, err := s.parser.ParseURLWithContext(s.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: чтение ленты: %w", s.name, err)
	}

	items := feed.Items
	if len(items) > s.limit {
		items = items[:s.limit]
	}

	var out []domain.Candidate
	for _, item := range items {
		title := CleanHTML(item.Title)
		if item.Link == "" || len(title) < 10 {
			continue
		}
		c := domain.Candidate{
			Title:    title,
			Link:     item.Link,
			Source:   s.name,
			Category: s.category,
			Excerpt:  CleanHTML(firstNonEmpty(item.Description, item.Content)),
		}
		if item.PublishedParsed != nil {
			c.PublishedAt = item.PublishedParsed.UTC()
		}
		if item.Image != nil && ValidImageURL(item.Image.URL) {
			c.Images = append(c.Images, item.Image.URL)
		}
		for _, enc := range item.Enclosures {
			if len(c.Images) >= s.maxImages {
				break
			}
			if ValidImageURL(enc.URL) {
				c.Images = append(c.Images, enc.URL)
			}
		}
		if len(c.Images) < s.maxImages {
			for _, img := range ExtractImages(item.Content, s.maxImages-len(c.Images)) {
				c.Images = append(c.Images, img)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
