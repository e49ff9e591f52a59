package template

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/linuxmatters/greetgif/internal/errdefs"
	"golang.org/x/image/draw"
	"golang.org/x/sync/singleflight"
)

// FrameLoader decodes template backgrounds from an asset root and keeps them
// for later renders. Decoded frames are shared and must be treated as
// read-only.
type FrameLoader struct {
	assets fs.FS
	group  singleflight.Group

	mu    sync.RWMutex
	cache map[string]*image.RGBA
}

func NewFrameLoader(assets fs.FS) *FrameLoader {
	return &FrameLoader{assets: assets, cache: make(map[string]*image.RGBA)}
}

// Load returns the decoded backgrounds of t in order. Every frame must match
// the layout canvas exactly.
func (l *FrameLoader) Load(ctx context.Context, t *Template) ([]image.Image, error) {
	if len(t.Frames) == 0 {
		return nil, errdefs.Configf("template %s has no frames", t.ID)
	}
	want := t.Layout.Canvas.Rect()
	out := make([]image.Image, len(t.Frames))
	for i, name := range t.Frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := l.frame(name)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", t.ID, err)
		}
		if img.Rect.Size() != want.Size() {
			return nil, errdefs.Configf("template %s: frame %s is %dx%d, canvas is %dx%d",
				t.ID, name, img.Rect.Dx(), img.Rect.Dy(), want.Dx(), want.Dy())
		}
		out[i] = img
	}
	return out, nil
}

// Cached reports how many frames are held.
func (l *FrameLoader) Cached() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}

func (l *FrameLoader) frame(name string) (*image.RGBA, error) {
	l.mu.RLock()
	img, ok := l.cache[name]
	l.mu.RUnlock()
	if ok {
		return img, nil
	}

	v, err, _ := l.group.Do(name, func() (any, error) {
		img, err := decodeFrame(l.assets, name)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.cache[name] = img
		l.mu.Unlock()
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*image.RGBA), nil
}

func decodeFrame(assets fs.FS, name string) (*image.RGBA, error) {
	f, err := assets.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errdefs.Asset(err, "frame %s is missing", name)
		}
		return nil, errdefs.Asset(err, "opening frame %s", name)
	}
	defer f.Close()

	src, err := imaging.Decode(f)
	if err != nil {
		return nil, errdefs.Asset(err, "decoding frame %s", name)
	}
	return toRGBA(src), nil
}

// toRGBA copies img into an RGBA image anchored at the origin.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
