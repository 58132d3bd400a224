package flow

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var tagSplit = regexp.MustCompile(`[,\s，]+`)

// NormalizeTags splits raw on commas, full-width commas and whitespace,
// lower-cases each tag and gives it exactly one leading "#". Tags are
// truncated to maxLen runes, deduplicated in order of first occurrence and
// limited to maxCount entries.
func NormalizeTags(raw string, maxCount, maxLen int) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, part := range tagSplit.Split(raw, -1) {
		if maxCount > 0 && len(tags) >= maxCount {
			break
		}
		name := strings.TrimLeft(strings.ToLower(strings.TrimSpace(part)), "#")
		if name == "" {
			continue
		}
		tag := truncateRunes("#"+name, maxLen)
		if seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
