package filter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/starford/cowbump/internal/collection"
)

// Complete suggests replacements for the last word of query. A leading '!'
// on that word is ignored. Words starting with ':' complete to directives;
// other words complete to canonical tag names containing them, in tag
// order. Exact matches are not suggested.
func Complete(query string, c *collection.Collection) []string {
	if query == "" {
		return nil
	}
	if r, _ := utf8.DecodeLastRuneInString(query); unicode.IsSpace(r) {
		return nil
	}
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return nil
	}
	last := strings.TrimPrefix(fields[len(fields)-1], NegatePrefix)
	if strings.HasPrefix(last, FilenamePrefix) {
		return nil
	}
	if strings.HasPrefix(last, ":") {
		if strings.HasPrefix(NoTagToken, last) && last != NoTagToken {
			return []string{NoTagToken}
		}
		return nil
	}

	var out []string
	for _, t := range c.Tags().All() {
		name := t.Name()
		if name != last && strings.Contains(name, last) {
			out = append(out, name)
		}
	}
	return out
}
