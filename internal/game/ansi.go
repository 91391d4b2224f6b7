package game

import "strings"

// SGR sequences used for terminal output.
const (
	AnsiReset     = "\x1b[0m"
	AnsiBold      = "\x1b[1m"
	AnsiDim       = "\x1b[2m"
	AnsiItalic    = "\x1b[3m"
	AnsiUnderline = "\x1b[4m"
	AnsiRed       = "\x1b[31m"
	AnsiGreen     = "\x1b[32m"
	AnsiYellow    = "\x1b[33m"
	AnsiMagenta   = "\x1b[35m"
	AnsiCyan      = "\x1b[36m"
)

// Style applies attrs to text and resets afterwards. Without attrs the text
// is returned as is.
func Style(text string, attrs ...string) string {
	if len(attrs) == 0 {
		return text
	}
	var b strings.Builder
	for _, a := range attrs {
		b.WriteString(a)
	}
	b.WriteString(text)
	b.WriteString(AnsiReset)
	return b.String()
}

// Terminated appends a reset to output that opened an escape sequence
// without closing it, so styling never leaks into the next line.
func Terminated(s string) string {
	if !strings.Contains(s, "\x1b[") || strings.HasSuffix(s, AnsiReset) {
		return s
	}
	return s + AnsiReset
}

// HighlightName is how player names appear in output.
func HighlightName(name string) string {
	return Style(name, AnsiBold, AnsiCyan)
}

func HighlightNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, HighlightName(n))
	}
	return out
}

// Prompt is printed whenever the session waits for a command.
func Prompt() string {
	return Style("\r\n> ", AnsiBold, AnsiYellow)
}

// Notice renders msg as a warning on a line of its own.
func Notice(msg string) string {
	return Style("\r\n"+msg, AnsiYellow)
}
