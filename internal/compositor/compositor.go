// Package compositor renders a single animation frame: background, photo and
// greeting text.
package compositor

import (
	"image"
	"image/color"
	"math"

	"github.com/linuxmatters/greetgif/internal/config"
	"github.com/linuxmatters/greetgif/internal/errdefs"
	"github.com/linuxmatters/greetgif/internal/layout"
	"github.com/linuxmatters/greetgif/internal/text"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Input is everything one frame depends on. Nothing in it is modified.
type Input struct {
	Background image.Image
	Layout     *layout.Layout

	// Photo is the decoded user photo. Tile, when set, is the result of
	// PreparePhoto for the same photo and is used instead.
	Photo image.Image
	Tile  *Tile

	Text string

	// Animation states at this frame's time. Nil means static.
	ImageState *layout.State
	TextState  *layout.State
}

// Compositor draws frames with fonts from a shared library.
type Compositor struct {
	fonts *text.Library
}

func New(fonts *text.Library) *Compositor {
	return &Compositor{fonts: fonts}
}

// CompositeFrame allocates a canvas and composites into it.
func (c *Compositor) CompositeFrame(in Input) (*image.RGBA, error) {
	if in.Layout == nil {
		return nil, errdefs.Configf("layout is missing")
	}
	dst := image.NewRGBA(in.Layout.Canvas.Rect())
	if err := c.Composite(dst, in); err != nil {
		return nil, err
	}
	return dst, nil
}

// Composite overwrites dst, which must be canvas sized, with the frame.
func (c *Compositor) Composite(dst *image.RGBA, in Input) error {
	l := in.Layout
	if l == nil {
		return errdefs.Configf("layout is missing")
	}
	if in.Background == nil {
		return errdefs.Assetf("background frame is missing")
	}
	if in.Photo == nil && in.Tile == nil {
		return errdefs.Assetf("photo is missing")
	}
	ia, ta := l.ImageArea, l.TextArea
	if ia.Width <= 0 || ia.Height <= 0 {
		return errdefs.Configf("image area dimensions must be positive, got %dx%d", ia.Width, ia.Height)
	}
	if ta.MaxWidth <= 0 || ta.FontSize <= 0 {
		return errdefs.Configf("text area max width and font size must be positive, got %d and %g", ta.MaxWidth, ta.FontSize)
	}
	canvas := l.Canvas.Rect()
	if bg := in.Background.Bounds(); bg.Dx() != canvas.Dx() || bg.Dy() != canvas.Dy() {
		return errdefs.Configf("background is %dx%d, canvas is %dx%d", bg.Dx(), bg.Dy(), canvas.Dx(), canvas.Dy())
	}
	if dst.Bounds() != canvas {
		return errdefs.Configf("destination %v does not match canvas %v", dst.Bounds(), canvas)
	}

	tile := in.Tile
	if tile == nil {
		var err error
		if tile, err = PreparePhoto(in.Photo, ia); err != nil {
			return err
		}
	}

	draw.Draw(dst, canvas, in.Background, in.Background.Bounds().Min, draw.Src)
	drawTile(dst, tile, ia, stateOrIdentity(in.ImageState))

	if in.Text == "" {
		return nil
	}
	return c.drawText(dst, ta, in.Text, stateOrIdentity(in.TextState))
}

func stateOrIdentity(s *layout.State) layout.State {
	if s == nil {
		return layout.Identity()
	}
	return *s
}

// drawTile places the photo tile and its shadow with the area's animation.
func drawTile(dst *image.RGBA, tile *Tile, area layout.ImageArea, st layout.State) {
	origin := image.Pt(area.X, area.Y)
	if st.Opacity <= 0 || st.Scale <= 0 {
		return
	}
	if isStill(st) {
		if tile.Shadow != nil {
			draw.Draw(dst, tile.ShadowRect.Add(origin), tile.Shadow, image.Point{}, draw.Over)
		}
		draw.Draw(dst, tile.Image.Bounds().Add(origin), tile.Image, image.Point{}, draw.Over)
		return
	}

	m := areaTransform(float64(area.X), float64(area.Y), float64(area.Width), float64(area.Height), st)
	opts := opacityOptions(st.Opacity)
	if tile.Shadow != nil {
		sm := translate(m, float64(tile.ShadowRect.Min.X), float64(tile.ShadowRect.Min.Y))
		draw.BiLinear.Transform(dst, sm, tile.Shadow, tile.Shadow.Bounds(), draw.Over, opts)
	}
	draw.BiLinear.Transform(dst, m, tile.Image, tile.Image.Bounds(), draw.Over, opts)
}

// drawText lays out and paints the greeting.
func (c *Compositor) drawText(dst *image.RGBA, ta layout.TextArea, s string, st layout.State) error {
	if st.Opacity <= 0 || st.Scale <= 0 || st.Reveal <= 0 {
		return nil
	}
	style, err := textStyle(ta, st)
	if err != nil {
		return err
	}

	face := c.fonts.Face(ta.Font, ta.FontSize, ta.Style.Bold)
	defer face.Close()

	cx, cy := float64(ta.X), float64(ta.Y)+st.OffsetY
	block := text.Layout(face, s, cx, cy, float64(ta.MaxWidth), ta.LineHeight(), ta.Style.LetterSpacing)

	if st.Scale == 1 && st.Rotation == 0 {
		block.Draw(dst, style)
		return nil
	}

	// Scaled or rotated text is painted on its own layer first and
	// transformed about the text anchor.
	layer := image.NewRGBA(dst.Bounds())
	style.Opacity = 1
	block.Draw(layer, style)
	m := aboutPoint(st.Scale, st.Rotation, cx, cy)
	draw.BiLinear.Transform(dst, m, layer, layer.Bounds(), draw.Over, opacityOptions(st.Opacity))
	return nil
}

// textStyle resolves colours and merges static style with the animated glow.
func textStyle(ta layout.TextArea, st layout.State) (text.Style, error) {
	fill, err := parseColor(ta.Color, config.TextColor, "text colour")
	if err != nil {
		return text.Style{}, err
	}
	style := text.Style{Color: fill, Opacity: st.Opacity, Reveal: st.Reveal}

	if s := ta.Style.Shadow; s != nil {
		c, err := parseColor(s.Color, "", "text shadow colour")
		if err != nil {
			return text.Style{}, err
		}
		style.Shadow = &text.Shadow{Offset: image.Pt(s.OffsetX, s.OffsetY), Blur: s.Blur, Color: c}
	}

	radius, glowColor, strength := ta.FontSize/4, config.GlowColor, 0.0
	if g := ta.Style.Glow; g != nil {
		if g.Radius > 0 {
			radius = g.Radius
		}
		glowColor, strength = g.Color, 1
	}
	if st.Glow >= 1.0/255 {
		if st.GlowColor != "" {
			glowColor = st.GlowColor
		}
		strength = st.Glow
	}
	if strength > 0 {
		c, err := parseColor(glowColor, config.GlowColor, "text glow colour")
		if err != nil {
			return text.Style{}, err
		}
		style.Glow = &text.Glow{Radius: radius, Color: c, Strength: strength}
	}
	return style, nil
}

func parseColor(s, fallback, what string) (color.NRGBA, error) {
	if s == "" {
		s = fallback
	}
	c, err := config.ParseColor(s)
	if err != nil {
		return color.NRGBA{}, errdefs.Config(err, "%s", what)
	}
	return c, nil
}

// isStill reports whether an area can be drawn without resampling.
func isStill(st layout.State) bool {
	return st.Opacity >= 1 && st.Scale == 1 && st.Rotation == 0 && st.OffsetY == 0
}

// areaTransform maps area-local coordinates to the canvas: scale and rotate
// about the area centre, then shift down by OffsetY.
func areaTransform(x, y, w, h float64, st layout.State) f64.Aff3 {
	m := aboutPoint(st.Scale, st.Rotation, x+w/2, y+h/2)
	m[5] += st.OffsetY
	return translate(m, x, y)
}

// aboutPoint scales and rotates clockwise by deg around (cx, cy). The source
// point (cx, cy) stays fixed.
func aboutPoint(scale, deg, cx, cy float64) f64.Aff3 {
	rad := deg * math.Pi / 180
	cos, sin := math.Cos(rad)*scale, math.Sin(rad)*scale
	return f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
}

// translate returns m applied after moving the source by (dx, dy).
func translate(m f64.Aff3, dx, dy float64) f64.Aff3 {
	m[2] += m[0]*dx + m[1]*dy
	m[5] += m[3]*dx + m[4]*dy
	return m
}

func opacityOptions(opacity float64) *draw.Options {
	if opacity >= 1 {
		return nil
	}
	a := uint8(math.Round(opacity * 255))
	return &draw.Options{SrcMask: image.NewUniform(color.Alpha{A: a})}
}
