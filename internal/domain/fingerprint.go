package domain

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"strings"
)

// Параметры трекинга, не влияющие на идентичность материала.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"yclid":        {},
	"ref":          {},
	"referrer":     {},
}

// Fingerprint строит нормализованную идентичность кандидата. Два кандидата,
// описывающие один релиз, обязаны давать одинаковый результат независимо от
// регистра, трекинговых параметров и лишних пробелов.
func Fingerprint(c Candidate) string {
	link := normalizeLink(c.Link)
	title := collapseSpaces(strings.ToLower(c.Title))
	sum := md5.Sum([]byte(link + "|" + title))
	return hex.EncodeToString(sum[:])
}

func normalizeLink(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if _, ok := trackingParams[strings.ToLower(param)]; ok {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimRight(u.Path, "/")
	return strings.ToLower(u.String())
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
