package game

import (
	"strings"
	"unicode"
)

// sanitizeInput makes a line of client input safe to echo to other players.
// Whitespace becomes a plain space; control, format and unprintable runes
// are dropped, which removes bidi overrides and terminal escapes.
func sanitizeInput(s string) string {
	return strings.Map(cleanRune, s)
}

// Trim sanitises a line of input and strips surrounding spaces.
func Trim(s string) string {
	return strings.TrimSpace(sanitizeInput(s))
}

func cleanRune(r rune) rune {
	switch {
	case r == '\r':
		return -1
	case unicode.IsSpace(r):
		return ' '
	case unicode.IsControl(r), unicode.Is(unicode.Cf, r), unicode.In(r, unicode.Zl, unicode.Zp):
		return -1
	case !unicode.IsPrint(r):
		return -1
	}
	return r
}
