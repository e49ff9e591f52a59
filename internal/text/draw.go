package text

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Line is one laid out line. Dot is the left end of its baseline.
type Line struct {
	Text  string
	Width float64
	Dot   fixed.Point26_6
}

// Block is wrapped text positioned around a centre point.
type Block struct {
	Lines         []Line
	LineHeight    float64
	LetterSpacing float64

	face font.Face
}

// Shadow is a blurred, offset copy of the glyphs drawn beneath them.
type Shadow struct {
	Offset image.Point
	Blur   float64
	Color  color.NRGBA
}

// Glow is a blurred halo in Color around the glyphs, scaled by Strength.
type Glow struct {
	Radius   float64
	Color    color.NRGBA
	Strength float64
}

// Style controls how a Block is painted. It never changes line breaks.
type Style struct {
	Color   color.NRGBA
	Shadow  *Shadow
	Glow    *Glow
	Opacity float64 // 0..1, multiplies every colour
	Reveal  float64 // fraction of runes painted, for typewriter output
}

// Layout wraps s to maxWidth and centres the lines on (cx, cy): the block
// vertically, each line horizontally. Letter spacing widens the painted line
// but is ignored while wrapping.
func Layout(face font.Face, s string, cx, cy, maxWidth, lineHeight, letterSpacing float64) *Block {
	b := &Block{LineHeight: lineHeight, LetterSpacing: letterSpacing, face: face}
	lines := Wrap(face, s, maxWidth)
	if len(lines) == 0 {
		return b
	}

	m := face.Metrics()
	ascent := float64(m.Ascent) / 64
	descent := float64(m.Descent) / 64

	top := cy - float64(len(lines))*lineHeight/2
	for i, text := range lines {
		w := Measure(face, text)
		if n := utf8.RuneCountInString(text); n > 1 {
			w += letterSpacing * float64(n-1)
		}
		mid := top + (float64(i)+0.5)*lineHeight
		baseline := mid + (ascent-descent)/2
		b.Lines = append(b.Lines, Line{
			Text:  text,
			Width: w,
			Dot:   fixed.Point26_6{X: toFixed(cx - w/2), Y: toFixed(baseline)},
		})
	}
	return b
}

// Bounds is the union of the line boxes from ascent to descent.
func (b *Block) Bounds() image.Rectangle {
	var r image.Rectangle
	if b.face == nil {
		return r
	}
	m := b.face.Metrics()
	for _, l := range b.Lines {
		lr := image.Rect(
			l.Dot.X.Floor(), (l.Dot.Y - m.Ascent).Floor(),
			(l.Dot.X + toFixed(l.Width)).Ceil()+1, (l.Dot.Y + m.Descent).Ceil()+1,
		)
		r = r.Union(lr)
	}
	return r
}

// Runes counts the characters across all lines.
func (b *Block) Runes() int {
	n := 0
	for _, l := range b.Lines {
		n += utf8.RuneCountInString(l.Text)
	}
	return n
}

// Draw paints the block onto dst: shadow, then glow, then the glyphs.
func (b *Block) Draw(dst draw.Image, st Style) {
	if len(b.Lines) == 0 || st.Opacity <= 0 {
		return
	}
	limit := b.Runes()
	if st.Reveal < 1 {
		limit = int(math.Floor(st.Reveal*float64(limit) + 1e-9))
		if limit <= 0 {
			return
		}
	}

	pad := 0
	if st.Shadow != nil {
		pad = max(pad, blurPad(st.Shadow.Blur)+abs(st.Shadow.Offset.X)+abs(st.Shadow.Offset.Y))
	}
	if st.Glow != nil {
		pad = max(pad, blurPad(st.Glow.Radius))
	}
	bounds := b.Bounds().Inset(-pad)

	mask := image.NewAlpha(bounds)
	b.drawMask(mask, limit)

	if s := st.Shadow; s != nil {
		paint(dst, blurred(mask, s.Blur), bounds.Add(s.Offset), fade(s.Color, st.Opacity))
	}
	if g := st.Glow; g != nil && g.Strength > 0 {
		halo := blurred(mask, g.Radius)
		c := fade(g.Color, st.Opacity*math.Min(g.Strength, 1))
		paint(dst, halo, bounds, c)
		// a second pass makes the halo visible through the glyph edges
		paint(dst, halo, bounds, c)
	}
	paint(dst, mask, bounds, fade(st.Color, st.Opacity))
}

// drawMask rasterizes up to limit runes into mask as coverage.
func (b *Block) drawMask(mask *image.Alpha, limit int) {
	spacing := toFixed(b.LetterSpacing)
	drawn := 0
	for _, l := range b.Lines {
		dot := l.Dot
		prev := rune(-1)
		for _, r := range l.Text {
			if drawn == limit {
				return
			}
			if prev >= 0 {
				dot.X += b.face.Kern(prev, r) + spacing
			}
			dr, gm, gp, adv, ok := b.face.Glyph(dot, r)
			if !ok {
				dr, gm, gp, adv, _ = b.face.Glyph(dot, '�')
			}
			if gm != nil {
				draw.DrawMask(mask, dr, image.Opaque, image.Point{}, gm, gp, draw.Over)
			}
			dot.X += adv
			prev = r
			drawn++
		}
	}
}

// blurred returns a mask blurred by sigma. The result is anchored at the
// origin; callers place it with the bounds of the source mask.
func blurred(mask *image.Alpha, sigma float64) image.Image {
	if sigma <= 0 {
		return mask.SubImage(mask.Rect)
	}
	return imaging.Blur(mask, sigma)
}

// paint fills r with c through the coverage in m, which is read from its own
// Min corner.
func paint(dst draw.Image, m image.Image, r image.Rectangle, c color.NRGBA) {
	if c.A == 0 {
		return
	}
	draw.DrawMask(dst, r, image.NewUniform(c), image.Point{}, m, m.Bounds().Min, draw.Over)
}

func fade(c color.NRGBA, opacity float64) color.NRGBA {
	if opacity >= 1 {
		return c
	}
	c.A = uint8(math.Round(float64(c.A) * opacity))
	return c
}

func blurPad(sigma float64) int {
	if sigma <= 0 {
		return 0
	}
	return int(math.Ceil(sigma * 3))
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
