package text

import (
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Wrap breaks s into lines no wider than maxWidth pixels, one character at a
// time. Greetings are often written without spaces between words, so there is
// no word boundary to prefer. A character that overflows starts the next line;
// a character wider than maxWidth on its own still occupies a line by itself.
// An explicit '\n' always breaks.
func Wrap(face font.Face, s string, maxWidth float64) []string {
	if s == "" {
		return nil
	}
	limit := fixed.Int26_6(maxWidth * 64)

	var (
		lines []string
		line  []rune
		width fixed.Int26_6
		prev  = rune(-1)
	)
	for _, r := range s {
		if r == '\n' {
			lines = append(lines, string(line))
			line, width, prev = line[:0], 0, -1
			continue
		}
		w := width + advance(face, prev, r)
		if w > limit && len(line) > 0 {
			lines = append(lines, string(line))
			line, prev = line[:0], -1
			w = advance(face, prev, r)
		}
		line = append(line, r)
		width, prev = w, r
	}
	return append(lines, string(line))
}

// Measure returns the advance width of s in pixels, matching the widths Wrap
// compares against maxWidth.
func Measure(face font.Face, s string) float64 {
	var (
		width fixed.Int26_6
		prev  = rune(-1)
	)
	for _, r := range s {
		width += advance(face, prev, r)
		prev = r
	}
	return float64(width) / 64
}

// advance is the pen movement for r following prev, kerning included.
func advance(face font.Face, prev, r rune) fixed.Int26_6 {
	var k fixed.Int26_6
	if prev >= 0 {
		k = face.Kern(prev, r)
	}
	a, ok := face.GlyphAdvance(r)
	if !ok {
		a, _ = face.GlyphAdvance('�')
	}
	return k + a
}
