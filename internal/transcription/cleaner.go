package transcription

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Matches a sentence boundary followed by a lowercase letter
var sentenceStart = regexp.MustCompile(`[.!?]\s+[a-z]`)

// CleanTranscript normalizes one transcript fragment: trims surrounding
// whitespace, capitalizes the first letter of the fragment and the first
// letter of every sentence. No other correction happens; fragments are
// cleaned independently, so a sentence spanning two segments is not
// re-capitalized across the boundary. The function is idempotent.
func CleanTranscript(text string) string {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return ""
	}

	cleaned = sentenceStart.ReplaceAllStringFunc(cleaned, func(m string) string {
		r, size := utf8.DecodeLastRuneInString(m)
		return m[:len(m)-size] + string(unicode.ToUpper(r))
	})

	r, size := utf8.DecodeRuneInString(cleaned)
	return string(unicode.ToUpper(r)) + cleaned[size:]
}
