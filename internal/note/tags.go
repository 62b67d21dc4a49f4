package note

import (
	"regexp"
	"sort"
	"strings"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z0-9_-]+)`)

// extractTags returns the lowercased #word tokens found in text.
func extractTags(text string) []string {
	seen := map[string]struct{}{}
	for _, m := range tagRe.FindAllStringSubmatch(text, -1) {
		seen[strings.ToLower(m[1])] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// mergeTags unions manual and content-derived tags. Lowercased, sorted,
// deduplicated, so repeated merges of the same content are idempotent.
func mergeTags(existing, extracted []string) []string {
	seen := map[string]struct{}{}
	for _, group := range [][]string{existing, extracted} {
		for _, tag := range group {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if tag == "" {
				continue
			}
			seen[tag] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
