// Package textclean strips noise from exported chat messages before summarization.
package textclean

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinLength is the shortest cleaned text, in characters, worth keeping.
const MinLength = 3

// mediaPlaceholder is the invisible separator tdl emits for media-only messages.
const mediaPlaceholder = "\u2063"

var (
	urlRe     = regexp.MustCompile(`https?://\S+`)
	mentionRe = regexp.MustCompile(`@[\p{L}\p{N}_]+`)
)

// CleanText removes URLs, @mentions and media placeholders, then collapses whitespace.
func CleanText(text string) string {
	text = urlRe.ReplaceAllString(text, "")
	text = mentionRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, mediaPlaceholder, "")
	return strings.Join(strings.Fields(text), " ")
}

// Clean normalizes one exported message record. ok is false when the record is a
// service message, has no string text, or is too short after cleaning.
func Clean(record map[string]any) (string, bool) {
	if isService(record["service"]) {
		return "", false
	}
	text, isString := record["text"].(string)
	if !isString || text == "" {
		return "", false
	}
	text = CleanText(text)
	if utf8.RuneCountInString(text) < MinLength {
		return "", false
	}
	return text, true
}

// JoinHistory cleans every record in document order and joins the survivors with newlines.
func JoinHistory(records []map[string]any) (string, int) {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		if line, ok := Clean(r); ok {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), len(lines)
}

func isService(v any) bool {
	switch s := v.(type) {
	case nil:
		return false
	case bool:
		return s
	case string:
		return s != ""
	case float64:
		return s != 0
	default:
		return true
	}
}
