package game

import (
	"strings"
	"unicode/utf8"
)

// minWrapWidth keeps tiny reported windows from shredding descriptions.
const minWrapWidth = 20

// WrapText breaks text into lines of at most width runes. Blank lines
// separate paragraphs and survive; a width of zero or less disables
// wrapping.
func WrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	width = max(width, minWrapWidth)

	paragraphs := strings.Split(text, "\n")
	for i, p := range paragraphs {
		paragraphs[i] = strings.Join(wrapWords(strings.Fields(p), width), "\n")
	}
	return strings.Join(paragraphs, "\n")
}

// wrapWords fills lines greedily. A word longer than width is cut into
// width-sized pieces, each on its own line.
func wrapWords(words []string, width int) []string {
	var lines []string
	var line strings.Builder
	used := 0
	flush := func() {
		if used > 0 {
			lines = append(lines, line.String())
			line.Reset()
			used = 0
		}
	}
	for _, word := range words {
		for utf8.RuneCountInString(word) > width {
			flush()
			cut := byteOffset(word, width)
			lines = append(lines, word[:cut])
			word = word[cut:]
		}
		n := utf8.RuneCountInString(word)
		if used > 0 && used+1+n > width {
			flush()
		}
		if used > 0 {
			line.WriteByte(' ')
			used++
		}
		line.WriteString(word)
		used += n
	}
	flush()
	return lines
}

// byteOffset returns the byte index just past the first n runes of s.
func byteOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}
