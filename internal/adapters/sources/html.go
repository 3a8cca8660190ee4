package sources

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanHTML убирает разметку, скрипты и стили, оставляя текст с одиночными
// пробелами.
func CleanHTML(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// ExtractImages собирает адреса картинок из HTML-фрагмента.
func ExtractImages(raw string, max int) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil
	}
	var images []string
	seen := map[string]struct{}{}
	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, ok := sel.Attr("src")
		if !ok || !ValidImageURL(src) {
			return true
		}
		if _, dup := seen[src]; dup {
			return true
		}
		seen[src] = struct{}{}
		images = append(images, src)
		return len(images) < max
	})
	return images
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// ValidImageURL проверяет, похож ли адрес на картинку.
func ValidImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	// CDN-адреса часто без расширения.
	return strings.Contains(path, "image") || strings.Contains(path, "img") || strings.Contains(path, "photo")
}
