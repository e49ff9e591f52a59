package compositor

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/linuxmatters/greetgif/internal/config"
	"github.com/linuxmatters/greetgif/internal/errdefs"
	"github.com/linuxmatters/greetgif/internal/layout"
	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// bezierCircle is the control point distance for a quarter circle.
const bezierCircle = 0.5522847498

// Tile is a photo fitted to an image area: cover-scaled, clipped and
// bordered. Coordinates are local to the area, so Image spans
// (0,0)-(Width,Height).
type Tile struct {
	Image *image.RGBA

	// Shadow is the blurred silhouette drawn beneath Image at ShadowRect,
	// which is relative to the area origin and already includes the offset.
	Shadow     image.Image
	ShadowRect image.Rectangle
}

// PreparePhoto fits photo into area. The result depends only on its
// arguments, so a request prepares it once and reuses it for every frame.
func PreparePhoto(photo image.Image, area layout.ImageArea) (*Tile, error) {
	if photo == nil {
		return nil, errdefs.Assetf("photo is missing")
	}
	if photo.Bounds().Empty() {
		return nil, errdefs.Assetf("photo has no pixels")
	}
	if area.Width <= 0 || area.Height <= 0 {
		return nil, errdefs.Configf("image area dimensions must be positive, got %dx%d", area.Width, area.Height)
	}

	bounds := image.Rect(0, 0, area.Width, area.Height)
	scaled := image.NewRGBA(bounds)
	draw.CatmullRom.Scale(scaled, bounds, photo, coverRect(photo.Bounds(), area.Width, area.Height), draw.Src, nil)

	tile := &Tile{Image: scaled}
	silhouette := shapeMask(area)
	if silhouette != nil {
		tile.Image = image.NewRGBA(bounds)
		draw.DrawMask(tile.Image, bounds, scaled, image.Point{}, silhouette, image.Point{}, draw.Src)
	}

	if b := area.Border; b != nil && b.Width > 0 {
		c, err := config.ParseColor(b.Color)
		if err != nil {
			return nil, errdefs.Config(err, "image area border colour")
		}
		drawBorder(tile.Image, area, b.Width, c)
	}

	if s := area.Shadow; s != nil {
		c, err := config.ParseColor(s.Color)
		if err != nil {
			return nil, errdefs.Config(err, "image area shadow colour")
		}
		if silhouette == nil {
			full := image.NewAlpha(bounds)
			draw.Draw(full, bounds, image.Opaque, image.Point{}, draw.Src)
			silhouette = full
		}
		tile.Shadow, tile.ShadowRect = shadowOf(silhouette, s, c)
	}
	return tile, nil
}

// coverRect returns the centred part of src that, scaled uniformly, exactly
// fills a w x h area. Overflow on the longer axis is cropped.
func coverRect(src image.Rectangle, w, h int) image.Rectangle {
	pw, ph := float64(src.Dx()), float64(src.Dy())
	scale := max(float64(w)/pw, float64(h)/ph)

	cw := min(pw, float64(w)/scale)
	ch := min(ph, float64(h)/scale)
	x0 := src.Min.X + int((pw-cw)/2+0.5)
	y0 := src.Min.Y + int((ph-ch)/2+0.5)
	r := image.Rect(x0, y0, x0+int(cw+0.5), y0+int(ch+0.5))
	if r.Dx() == 0 {
		r.Max.X = r.Min.X + 1
	}
	if r.Dy() == 0 {
		r.Max.Y = r.Min.Y + 1
	}
	return r.Intersect(src)
}

// shapeMask returns the anti-aliased clip for circular areas, nil for rects.
func shapeMask(area layout.ImageArea) *image.Alpha {
	if area.Shape != layout.ShapeCircle {
		return nil
	}
	w, h := area.Width, area.Height
	z := vector.NewRasterizer(w, h)
	circlePath(z, float32(w)/2, float32(h)/2, float32(min(w, h))/2, false)
	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	z.DrawOp = draw.Src
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask
}

// drawBorder strokes the inside edge of the clip shape.
func drawBorder(dst *image.RGBA, area layout.ImageArea, width int, c color.NRGBA) {
	w, h := area.Width, area.Height
	src := image.NewUniform(c)
	if area.Shape == layout.ShapeCircle {
		outer := float32(min(w, h)) / 2
		inner := max(outer-float32(width), 0)
		z := vector.NewRasterizer(w, h)
		circlePath(z, float32(w)/2, float32(h)/2, outer, false)
		if inner > 0 {
			circlePath(z, float32(w)/2, float32(h)/2, inner, true)
		}
		z.Draw(dst, dst.Bounds(), src, image.Point{})
		return
	}

	width = min(width, (min(w, h)+1)/2)
	for _, r := range []image.Rectangle{
		image.Rect(0, 0, w, width),
		image.Rect(0, h-width, w, h),
		image.Rect(0, width, width, h-width),
		image.Rect(w-width, width, w, h-width),
	} {
		draw.Draw(dst, r, src, image.Point{}, draw.Over)
	}
}

// circlePath adds a closed circle. Clockwise and counter-clockwise paths
// cancel, which punches holes for rings.
func circlePath(z *vector.Rasterizer, cx, cy, r float32, ccw bool) {
	k := r * bezierCircle
	z.MoveTo(cx+r, cy)
	if ccw {
		z.CubeTo(cx+r, cy-k, cx+k, cy-r, cx, cy-r)
		z.CubeTo(cx-k, cy-r, cx-r, cy-k, cx-r, cy)
		z.CubeTo(cx-r, cy+k, cx-k, cy+r, cx, cy+r)
		z.CubeTo(cx+k, cy+r, cx+r, cy+k, cx+r, cy)
	} else {
		z.CubeTo(cx+r, cy+k, cx+k, cy+r, cx, cy+r)
		z.CubeTo(cx-k, cy+r, cx-r, cy+k, cx-r, cy)
		z.CubeTo(cx-r, cy-k, cx-k, cy-r, cx, cy-r)
		z.CubeTo(cx+k, cy-r, cx+r, cy-k, cx+r, cy)
	}
	z.ClosePath()
}

// shadowOf blurs the silhouette and tints it. The returned rectangle is
// relative to the area origin.
func shadowOf(silhouette *image.Alpha, s *layout.Shadow, c color.NRGBA) (image.Image, image.Rectangle) {
	pad := 0
	if s.Blur > 0 {
		pad = int(s.Blur*3 + 0.5)
	}
	padded := image.NewAlpha(silhouette.Bounds().Inset(-pad))
	draw.Draw(padded, silhouette.Bounds(), silhouette, image.Point{}, draw.Src)

	var coverage image.Image = padded
	if s.Blur > 0 {
		coverage = imaging.Blur(padded, s.Blur)
	}

	b := coverage.Bounds()
	tinted := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.DrawMask(tinted, tinted.Bounds(), image.NewUniform(c), image.Point{}, coverage, b.Min, draw.Src)

	rect := tinted.Bounds().Add(padded.Bounds().Min).Add(image.Pt(s.OffsetX, s.OffsetY))
	return tinted, rect
}
