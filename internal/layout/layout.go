// Package layout describes where a template puts the photo and the greeting
// text on each frame, and which animation effects apply to them.
package layout

import (
	"fmt"
	"image"

	"github.com/linuxmatters/greetgif/internal/config"
	"github.com/linuxmatters/greetgif/internal/errdefs"
)

// Shape of the photo clip.
type Shape string

const (
	ShapeRect   Shape = "rect"
	ShapeCircle Shape = "circle"
)

// Layout is the per-template geometry and timing. It is immutable once a
// template has been loaded.
type Layout struct {
	Canvas   Canvas `yaml:"canvas" json:"canvas"`
	FPS      int    `yaml:"fps" json:"fps"`
	Duration int    `yaml:"duration,omitempty" json:"duration,omitempty"`   // ms, 0 plays each background once
	Quality  int    `yaml:"quality" json:"quality"`                         // 1..30, lower is finer
	FrameCap int    `yaml:"frame_cap,omitempty" json:"frameCap,omitempty"` // 0 uses the configured cap

	ImageArea ImageArea `yaml:"image_area" json:"imageArea"`
	TextArea  TextArea  `yaml:"text_area" json:"textArea"`
}

type Canvas struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Rect returns the canvas bounds anchored at the origin.
func (c Canvas) Rect() image.Rectangle {
	return image.Rect(0, 0, c.Width, c.Height)
}

type ImageArea struct {
	X      int     `yaml:"x" json:"x"`
	Y      int     `yaml:"y" json:"y"`
	Width  int     `yaml:"width" json:"width"`
	Height int     `yaml:"height" json:"height"`
	Shape  Shape   `yaml:"shape,omitempty" json:"shape,omitempty"`
	Border *Border `yaml:"border,omitempty" json:"border,omitempty"`
	Shadow *Shadow `yaml:"shadow,omitempty" json:"shadow,omitempty"`

	Animation Animation `yaml:"animation,omitempty" json:"animation,omitempty"`
}

// Rect returns the area in canvas coordinates.
func (a ImageArea) Rect() image.Rectangle {
	return image.Rect(a.X, a.Y, a.X+a.Width, a.Y+a.Height)
}

type Border struct {
	Width int    `yaml:"width" json:"width"`
	Color string `yaml:"color" json:"color"`
}

type Shadow struct {
	OffsetX int     `yaml:"offset_x" json:"offsetX"`
	OffsetY int     `yaml:"offset_y" json:"offsetY"`
	Blur    float64 `yaml:"blur" json:"blur"`
	Color   string  `yaml:"color" json:"color"`
}

// TextArea anchors the text block at its centre point (X, Y).
type TextArea struct {
	X        int       `yaml:"x" json:"x"`
	Y        int       `yaml:"y" json:"y"`
	MaxWidth int       `yaml:"max_width" json:"maxWidth"`
	FontSize float64   `yaml:"font_size" json:"fontSize"`
	Color    string    `yaml:"color,omitempty" json:"color,omitempty"`
	Font     string    `yaml:"font,omitempty" json:"font,omitempty"` // comma separated family list
	Style    TextStyle `yaml:"style,omitempty" json:"style,omitempty"`

	Animation Animation `yaml:"animation,omitempty" json:"animation,omitempty"`
}

// LineHeight is the distance between consecutive baselines.
func (a TextArea) LineHeight() float64 {
	return a.FontSize * config.LineHeight
}

// Box is the single-line text bounding box used for canvas bounds checks.
func (a TextArea) Box() image.Rectangle {
	halfW := a.MaxWidth / 2
	halfH := int(a.LineHeight() / 2)
	return image.Rect(a.X-halfW, a.Y-halfH, a.X+halfW, a.Y+halfH)
}

// TextStyle holds cosmetic post-processing. None of it changes line breaks.
type TextStyle struct {
	Bold          bool    `yaml:"bold,omitempty" json:"bold,omitempty"`
	LetterSpacing float64 `yaml:"letter_spacing,omitempty" json:"letterSpacing,omitempty"`
	Shadow        *Shadow `yaml:"shadow,omitempty" json:"shadow,omitempty"`
	Glow          *Glow   `yaml:"glow,omitempty" json:"glow,omitempty"`
}

type Glow struct {
	Radius float64 `yaml:"radius" json:"radius"`
	Color  string  `yaml:"color" json:"color"`
}

type Animation struct {
	Effects []Effect `yaml:"effects,omitempty" json:"effects,omitempty"`
}

// FrameInterval is the time between frames in milliseconds.
func (l *Layout) FrameInterval() float64 {
	return 1000 / float64(l.FPS)
}

// ApplyDefaults fills the optional cosmetic fields. Geometry and timing are
// never defaulted so that authoring mistakes still fail Validate.
func (l *Layout) ApplyDefaults() {
	if l.ImageArea.Shape == "" {
		l.ImageArea.Shape = ShapeRect
	}
	if l.TextArea.Color == "" {
		l.TextArea.Color = config.TextColor
	}
	if l.TextArea.Font == "" {
		l.TextArea.Font = config.FontFamily
	}
}

// Validate checks the layout against its canvas. All failures are ConfigErrors.
func (l *Layout) Validate() error {
	if l.Canvas.Width <= 0 || l.Canvas.Height <= 0 {
		return errdefs.Configf("canvas must be positive, got %dx%d", l.Canvas.Width, l.Canvas.Height)
	}
	if l.FPS <= 0 {
		return errdefs.Configf("fps must be positive, got %d", l.FPS)
	}
	if l.Duration < 0 {
		return errdefs.Configf("duration must not be negative, got %d", l.Duration)
	}
	if l.Quality < config.MinQuality || l.Quality > config.MaxQuality {
		return errdefs.Configf("quality must be in %d..%d, got %d", config.MinQuality, config.MaxQuality, l.Quality)
	}
	if l.FrameCap < 0 {
		return errdefs.Configf("frame_cap must not be negative, got %d", l.FrameCap)
	}
	if err := l.ImageArea.validate(l.Canvas.Rect()); err != nil {
		return err
	}
	return l.TextArea.validate(l.Canvas.Rect())
}

func (a *ImageArea) validate(canvas image.Rectangle) error {
	if a.Width <= 0 || a.Height <= 0 {
		return errdefs.Configf("image_area dimensions must be positive, got %dx%d", a.Width, a.Height)
	}
	if !a.Rect().In(canvas) {
		return errdefs.Configf("image_area %v lies outside canvas %v", a.Rect(), canvas)
	}
	switch a.Shape {
	case "", ShapeRect, ShapeCircle:
	default:
		return errdefs.Configf("image_area: unknown shape %q", a.Shape)
	}
	if a.Border != nil {
		if a.Border.Width < 0 {
			return errdefs.Configf("image_area border width must not be negative, got %d", a.Border.Width)
		}
		if err := checkColor("image_area border", a.Border.Color); err != nil {
			return err
		}
	}
	if err := a.Shadow.validate("image_area shadow"); err != nil {
		return err
	}
	return validateEffects("image_area", a.Animation.Effects)
}

func (a *TextArea) validate(canvas image.Rectangle) error {
	if a.MaxWidth <= 0 || a.FontSize <= 0 {
		return errdefs.Configf("text_area max_width and font_size must be positive, got %d and %g", a.MaxWidth, a.FontSize)
	}
	if !a.Box().In(canvas) {
		return errdefs.Configf("text_area box %v lies outside canvas %v", a.Box(), canvas)
	}
	if a.Color != "" {
		if err := checkColor("text_area", a.Color); err != nil {
			return err
		}
	}
	if a.Style.LetterSpacing < 0 {
		return errdefs.Configf("text_area letter_spacing must not be negative, got %g", a.Style.LetterSpacing)
	}
	if err := a.Style.Shadow.validate("text_area shadow"); err != nil {
		return err
	}
	if g := a.Style.Glow; g != nil {
		if g.Radius < 0 {
			return errdefs.Configf("text_area glow radius must not be negative, got %g", g.Radius)
		}
		if err := checkColor("text_area glow", g.Color); err != nil {
			return err
		}
	}
	return validateEffects("text_area", a.Animation.Effects)
}

func (s *Shadow) validate(what string) error {
	if s == nil {
		return nil
	}
	if s.Blur < 0 {
		return errdefs.Configf("%s blur must not be negative, got %g", what, s.Blur)
	}
	return checkColor(what, s.Color)
}

func checkColor(what, c string) error {
	if _, err := config.ParseColor(c); err != nil {
		return errdefs.Config(err, "%s colour", what)
	}
	return nil
}

func validateEffects(what string, effects []Effect) error {
	for i, e := range effects {
		if err := e.validate(); err != nil {
			return fmt.Errorf("%s effect %d: %w", what, i, err)
		}
	}
	return nil
}
