package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ParseColor parses the colour notations used in template layouts:
// #RGB, #RRGGBB, #RRGGBBAA, rgb(r, g, b) and rgba(r, g, b, a) with a in 0..1.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "#"):
		return parseHash(s[1:])
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		return parseFunc(s[len("rgba("):len(s)-1], 4)
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		return parseFunc(s[len("rgb("):len(s)-1], 3)
	}
	return color.NRGBA{}, fmt.Errorf("invalid colour %q", s)
}

// MustParseColor is ParseColor for compile-time constants.
func MustParseColor(s string) color.NRGBA {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

func parseHash(h string) (color.NRGBA, error) {
	switch len(h) {
	case 3:
		// #RGB expands each nibble
		expanded := []byte{h[0], h[0], h[1], h[1], h[2], h[2]}
		r, g, b, err := ParseHexColor(string(expanded))
		if err != nil {
			return color.NRGBA{}, err
		}
		return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
	case 6:
		r, g, b, err := ParseHexColor(h)
		if err != nil {
			return color.NRGBA{}, err
		}
		return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
	case 8:
		r, g, b, err := ParseHexColor(h[:6])
		if err != nil {
			return color.NRGBA{}, err
		}
		a, err := strconv.ParseUint(h[6:], 16, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid alpha in %q: %w", h, err)
		}
		return color.NRGBA{R: r, G: g, B: b, A: uint8(a)}, nil
	}
	return color.NRGBA{}, fmt.Errorf("invalid hex colour #%s", h)
}

func parseFunc(args string, n int) (color.NRGBA, error) {
	parts := strings.Split(args, ",")
	if len(parts) != n {
		return color.NRGBA{}, fmt.Errorf("want %d components, got %d", n, len(parts))
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || v < 0 || v > 255 {
			return color.NRGBA{}, fmt.Errorf("component %q out of range 0..255", strings.TrimSpace(parts[i]))
		}
		ch[i] = uint8(v)
	}
	a := uint8(0xff)
	if n == 4 {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || f < 0 || f > 1 {
			return color.NRGBA{}, fmt.Errorf("alpha %q out of range 0..1", strings.TrimSpace(parts[3]))
		}
		a = uint8(f*255 + 0.5)
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: a}, nil
}
