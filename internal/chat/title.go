package chat

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	titleMaxWords = 10
	titleMaxChars = 72
)

var leadInRe = regexp.MustCompile(`(?i)^(hi|hello|hey|please|can you|could you|would you|will you|help me)\b[,!. ]*`)

// InitialTitle derives a chat title from the first user message: lead-in
// pleasantries stripped, trimmed to ten words and 72 characters, first
// letter capitalized.
func InitialTitle(first string) string {
	t := strings.TrimSpace(first)
	for {
		stripped := leadInRe.ReplaceAllString(t, "")
		if stripped == t {
			break
		}
		t = strings.TrimSpace(stripped)
	}
	t = strings.TrimRight(t, "?!. ")

	words := strings.Fields(t)
	if len(words) == 0 {
		return "New chat"
	}
	if len(words) > titleMaxWords {
		words = words[:titleMaxWords]
	}
	t = strings.Join(words, " ")
	if len(t) > titleMaxChars {
		t = strings.TrimSpace(t[:titleMaxChars])
	}

	runes := []rune(t)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
