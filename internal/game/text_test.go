package game

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestWrapText(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"disabled", "Cobblestones ring the old well.", 0, "Cobblestones ring the old well."},
		{"splits at width", "Lanterns sway above the quiet market stalls at dusk", 20,
			"Lanterns sway above\nthe quiet market\nstalls at dusk"},
		{"keeps paragraphs", "The inn is warm.\n\nA fire crackles in the wide stone hearth", 25,
			"The inn is warm.\n\nA fire crackles in the\nwide stone hearth"},
		{"cuts long words", "Ssssssssssssssssssssssss hisses", 20,
			"Ssssssssssssssssssss\nssss hisses"},
		{"enforces minimum", "one two three four five six", 5, "one two three four\nfive six"},
		{"collapses spacing", "  wide    gaps   here ", 40, "wide gaps here"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, WrapText(tc.in, tc.width))
		})
	}
}

func TestWrapTextCountsRunes(t *testing.T) {
	got := WrapText(strings.Repeat("é", 45), 20)
	lines := strings.Split(got, "\n")
	assert.Len(t, lines, 3)
	for _, l := range lines[:2] {
		assert.Equal(t, 20, utf8.RuneCountInString(l))
	}
	assert.Equal(t, 5, utf8.RuneCountInString(lines[2]))
}

func TestTrimDropsUnsafeRunes(t *testing.T) {
	cases := map[string]string{
		" \tgo north\x00 ":     "go north",
		"say \u202eevil\u202c": "say evil",
		"say hi\x1b[2J":        "say hi[2J",
		"say soft\u00a0spaced": "say soft spaced",
		"shout\r":              "shout",
		"line\u2028sep":        "line sep",
		"":                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Trim(in), "Trim(%q)", in)
	}
}
