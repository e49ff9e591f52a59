package template

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/linuxmatters/greetgif/internal/config"
	"github.com/linuxmatters/greetgif/internal/layout"
	"golang.org/x/image/draw"
)

// SampleOptions describes a generated template.
type SampleOptions struct {
	ID     string
	Name   string
	Frames int // background frames, default 4
	Width  int // default config.Width
	Height int // default config.Height
}

func (o *SampleOptions) setDefaults() {
	if o.ID == "" {
		o.ID = "sample"
	}
	if o.Name == "" {
		o.Name = "Sample greeting"
	}
	if o.Frames <= 0 {
		o.Frames = 4
	}
	if o.Width <= 0 {
		o.Width = config.Width
	}
	if o.Height <= 0 {
		o.Height = config.Height
	}
}

// GenerateSample draws a set of gradient backgrounds with a circular photo
// slot and saves them, a thumbnail and the template document into repo.
func GenerateSample(ctx context.Context, repo *FileRepository, opts SampleOptions) (*Template, error) {
	opts.setDefaults()
	if !ValidID(opts.ID) {
		return nil, fmt.Errorf("invalid template id %q", opts.ID)
	}
	dir := filepath.Join(repo.Root(), opts.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating template directory: %w", err)
	}

	t := &Template{
		ID:          opts.ID,
		Name:        opts.Name,
		Description: "Soft gradient with a circular portrait and rising text",
		Thumbnail:   path.Join(opts.ID, "thumbnail.png"),
		Layout:      sampleLayout(opts.Width, opts.Height),
	}

	var first *image.RGBA
	for i := 0; i < opts.Frames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img := sampleFrame(opts.Width, opts.Height, float64(i)/float64(opts.Frames))
		name := fmt.Sprintf("frame_%02d.png", i)
		if err := imaging.Save(img, filepath.Join(dir, name)); err != nil {
			return nil, fmt.Errorf("writing %s: %w", name, err)
		}
		t.Frames = append(t.Frames, path.Join(opts.ID, name))
		if first == nil {
			first = img
		}
	}

	thumb := imaging.Thumbnail(first, max(1, opts.Width/4), max(1, opts.Height/4), imaging.Lanczos)
	if err := imaging.Save(thumb, filepath.Join(dir, "thumbnail.png")); err != nil {
		return nil, fmt.Errorf("writing thumbnail: %w", err)
	}

	if err := repo.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// sampleLayout scales the 800x1000 reference design to w x h.
func sampleLayout(w, h int) layout.Layout {
	size := min(w/2, 2*h/5)
	l := layout.Layout{
		Canvas:   layout.Canvas{Width: w, Height: h},
		FPS:      config.FPS,
		Duration: 1200,
		Quality:  config.Quality,
		ImageArea: layout.ImageArea{
			X:      (w - size) / 2,
			Y:      h / 5,
			Width:  size,
			Height: size,
			Shape:  layout.ShapeCircle,
			Border: &layout.Border{Width: max(1, w/200), Color: "#748ffc"},
			Shadow: &layout.Shadow{OffsetY: max(1, h/200), Blur: 6, Color: "rgba(0,0,0,0.25)"},
			Animation: layout.Animation{Effects: []layout.Effect{
				{Kind: layout.EffectFadeIn, Duration: 400},
				{Kind: layout.EffectScale, Duration: 400, From: 0.8, To: 1},
			}},
		},
		TextArea: layout.TextArea{
			X:        w / 2,
			Y:        3 * h / 4,
			MaxWidth: 3 * w / 4,
			FontSize: max(8, float64(h)*42/1000),
			Color:    "#2c3e50",
			Font:     config.FontFamily,
			Animation: layout.Animation{Effects: []layout.Effect{
				{Kind: layout.EffectFadeInUp, Delay: 200, Duration: 600, Distance: config.FadeUpShift},
			}},
		},
	}
	l.ApplyDefaults()
	return l
}

var (
	sampleTop    = config.MustParseColor("#f8f9fa")
	sampleMid    = config.MustParseColor("#e9ecef")
	sampleBottom = config.MustParseColor("#dee2e6")
	sampleEdge   = config.MustParseColor("#adb5bd")
	sampleAccent = color.NRGBA{R: 0x74, G: 0x8f, B: 0xfc, A: 0x80}
)

// sampleFrame paints one background at animation phase 0..1: a vertical
// gradient, an inset rule and dots circling each corner.
func sampleFrame(w, h int, phase float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	shift := 0.04 * math.Sin(2*math.Pi*phase)
	for y := 0; y < h; y++ {
		t := math.Max(0, math.Min(1, float64(y)/float64(max(1, h-1))+shift))
		var c color.NRGBA
		if t < 0.5 {
			c = mix(sampleTop, sampleMid, t*2)
		} else {
			c = mix(sampleMid, sampleBottom, t*2-1)
		}
		row := img.Pix[y*img.Stride : y*img.Stride+4*w]
		for x := 0; x < w; x++ {
			row[4*x], row[4*x+1], row[4*x+2], row[4*x+3] = c.R, c.G, c.B, 255
		}
	}

	margin := max(2, w*30/800)
	edge := image.NewUniform(sampleEdge)
	in := image.Rect(margin, margin, w-margin, h-margin)
	for _, r := range []image.Rectangle{
		image.Rect(in.Min.X, in.Min.Y, in.Max.X, in.Min.Y+1),
		image.Rect(in.Min.X, in.Max.Y-1, in.Max.X, in.Max.Y),
		image.Rect(in.Min.X, in.Min.Y, in.Min.X+1, in.Max.Y),
		image.Rect(in.Max.X-1, in.Min.Y, in.Max.X, in.Max.Y),
	} {
		draw.Draw(img, r, edge, image.Point{}, draw.Src)
	}

	accent := image.NewUniform(sampleAccent)
	radius := float64(max(4, w*40/800))
	dot := max(2, w/160)
	for _, c := range []image.Point{in.Min, {in.Max.X, in.Min.Y}, {in.Min.X, in.Max.Y}, in.Max} {
		for k := 0; k < 8; k++ {
			a := 2*math.Pi*float64(k)/8 + 2*math.Pi*phase/8
			x := c.X + int(math.Round(radius*math.Cos(a)))
			y := c.Y + int(math.Round(radius*math.Sin(a)))
			r := image.Rect(x-dot/2, y-dot/2, x-dot/2+dot, y-dot/2+dot)
			draw.Draw(img, r, accent, image.Point{}, draw.Over)
		}
	}
	return img
}

func mix(a, b color.NRGBA, t float64) color.NRGBA {
	l := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.NRGBA{R: l(a.R, b.R), G: l(a.G, b.G), B: l(a.B, b.B), A: 255}
}
