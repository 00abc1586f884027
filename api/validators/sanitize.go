package validators

import (
	"strings"
	"unicode"
)

// CleanText trims input, drops control characters, collapses whitespace runs
// to one space and cuts the result to maxRunes runes. maxRunes <= 0 keeps the
// whole string.
func CleanText(input string, maxRunes int) string {
	var b strings.Builder
	b.Grow(len(input))
	count := 0
	pendingSpace := false
	for _, r := range strings.TrimSpace(input) {
		if maxRunes > 0 && count >= maxRunes {
			break
		}
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
			continue
		case unicode.IsControl(r):
			continue
		}
		if pendingSpace {
			if maxRunes > 0 && count+1 >= maxRunes {
				break
			}
			b.WriteByte(' ')
			count++
			pendingSpace = false
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

// NormalizeEmail trims the address and lowercases its domain. The local part
// is left alone since some mail hosts treat it case-sensitively.
func NormalizeEmail(input string) string {
	trimmed := strings.TrimSpace(input)
	at := strings.LastIndexByte(trimmed, '@')
	if at <= 0 {
		return trimmed
	}
	return trimmed[:at+1] + strings.ToLower(trimmed[at+1:])
}
