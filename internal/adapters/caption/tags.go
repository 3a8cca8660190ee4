package caption

import (
	"regexp"
	"sort"
	"strings"
)

var brandKeywords = map[string][]string{
	"nike":       {"nike", "air max", "air force", "dunk", "blazer"},
	"jordan":     {"jordan", "air jordan", "aj1", "aj4", "aj11"},
	"adidas":     {"adidas", "yeezy", "samba", "gazelle", "campus", "superstar"},
	"newbalance": {"new balance", "nb 550", "nb 990", "nb 2002"},
	"asics":      {"asics", "gel-lyte", "gel-kayano", "gt-2160"},
	"puma":       {"puma", "suede", "speedcat"},
	"salomon":    {"salomon", "xt-6", "xt-4"},
	"converse":   {"converse", "chuck taylor", "one star"},
	"vans":       {"vans", "old skool", "sk8-hi"},
	"supreme":    {"supreme"},
	"stussy":     {"stussy", "stüssy"},
	"palace":     {"palace"},
	"offwhite":   {"off-white", "off white"},
	"fearofgod":  {"fear of god", "essentials"},
	"balenciaga": {"balenciaga"},
	"rickowens":  {"rick owens"},
	"miumiu":     {"miu miu"},
}

var typeKeywords = map[string][]string{
	"release": {"release", "releasing", "drops", "drop date", "launch"},
	"collab":  {"collab", "collaboration", "x "},
	"restock": {"restock", "re-release", "returns", "return"},
	"preview": {"first look", "official look", "on-foot", "preview", "teaser"},
}

var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}\s-]`)

// ExtractTags находит бренды и типы релиза в заголовке и выдержке. Ключевые
// слова сверяются по границам слов, чтобы "air" в "fair" не давал ложный тег.
func ExtractTags(title, excerpt string) map[string][]string {
	text := strings.ToLower(title + " " + excerpt)
	normalized := " " + nonWordRe.ReplaceAllString(text, " ") + " "

	tags := map[string][]string{}
	for brand, keywords := range brandKeywords {
		for _, kw := range keywords {
			if containsWord(normalized, kw) {
				tags["brands"] = append(tags["brands"], brand)
				break
			}
		}
	}
	for kind, keywords := range typeKeywords {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				tags["types"] = append(tags["types"], kind)
				break
			}
		}
	}
	sortGroups(tags)
	return tags
}

func containsWord(normalized, keyword string) bool {
	idx := strings.Index(normalized, keyword)
	for idx >= 0 {
		before := normalized[idx-1]
		afterIdx := idx + len(keyword)
		after := byte(' ')
		if afterIdx < len(normalized) {
			after = normalized[afterIdx]
		}
		if isBoundary(before) && isBoundary(after) {
			return true
		}
		next := strings.Index(normalized[idx+1:], keyword)
		if next < 0 {
			return false
		}
		idx = idx + 1 + next
	}
	return false
}

func isBoundary(b byte) bool {
	return b == ' ' || b == '-'
}

func sortGroups(tags map[string][]string) {
	for _, group := range tags {
		sort.Strings(group)
	}
}
