// Package pipeline is the render entry point: it resolves a template and a
// photo, composites every frame and encodes the animation.
package pipeline

import (
	"bytes"
	"context"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/linuxmatters/greetgif/internal/compositor"
	"github.com/linuxmatters/greetgif/internal/errdefs"
	"github.com/linuxmatters/greetgif/internal/gifenc"
	"github.com/linuxmatters/greetgif/internal/sequencer"
	"github.com/linuxmatters/greetgif/internal/template"
	"github.com/linuxmatters/greetgif/internal/text"
)

// PlaceholderSize is the edge length of the built-in default photo.
const PlaceholderSize = 400

// Options tunes a Renderer. Zero values use the compiled defaults.
type Options struct {
	Workers      int    // parallel composites per render
	FrameCap     int    // frame cap for duration-driven templates
	DefaultPhoto string // photo file used when a request has none
	Dither       bool   // error diffusion in the GIF encoder
}

// Renderer turns (template, photo, text) into an animated GIF. It is safe
// for concurrent use; renders share only read-only state.
type Renderer struct {
	repo   template.Repository
	frames *template.FrameLoader
	seq    *sequencer.Sequencer
	opts   Options

	mu       sync.Mutex
	fallback image.Image
}

func New(repo template.Repository, frames *template.FrameLoader, fonts *text.Library, opts Options) *Renderer {
	comp := compositor.New(fonts)
	return &Renderer{
		repo:   repo,
		frames: frames,
		seq:    sequencer.New(comp, sequencer.NewImagePool(), opts.Workers, opts.FrameCap),
		opts:   opts,
	}
}

// Render produces the complete GIF for template id, or an error and no
// output.
func (r *Renderer) Render(ctx context.Context, id string, photo Photo, text string) ([]byte, error) {
	out, err := r.render(ctx, id, photo, text, false)
	if err != nil {
		return nil, err
	}
	return out.gif, nil
}

// Thumbnail renders only the final frame of the animation as a PNG.
func (r *Renderer) Thumbnail(ctx context.Context, id string, photo Photo, text string) ([]byte, error) {
	job, err := r.job(ctx, id, photo, text)
	if err != nil {
		return nil, err
	}
	frame, err := r.seq.RenderFrame(job, r.seq.FrameCount(job)-1)
	if err != nil {
		return nil, err
	}
	return encodePNG(frame)
}

type output struct {
	gif   []byte
	thumb []byte
}

func (r *Renderer) render(ctx context.Context, id string, photo Photo, text string, thumb bool) (output, error) {
	job, err := r.job(ctx, id, photo, text)
	if err != nil {
		return output{}, err
	}
	frames, err := r.seq.Render(ctx, job)
	if err != nil {
		return output{}, err
	}
	defer r.seq.Release(frames)

	var out output
	if out.gif, err = r.encode(ctx, job.Layout.FPS, job.Layout.Quality, frames); err != nil {
		return output{}, err
	}
	if thumb {
		if out.thumb, err = encodePNG(frames[len(frames)-1]); err != nil {
			return output{}, err
		}
	}
	return out, nil
}

func (r *Renderer) job(ctx context.Context, id string, photo Photo, text string) (sequencer.Job, error) {
	t, err := r.repo.Get(ctx, id)
	if err != nil {
		return sequencer.Job{}, err
	}
	img, err := r.resolve(photo)
	if err != nil {
		return sequencer.Job{}, err
	}
	bgs, err := r.frames.Load(ctx, t)
	if err != nil {
		return sequencer.Job{}, err
	}
	tile, err := compositor.PreparePhoto(img, t.Layout.ImageArea)
	if err != nil {
		return sequencer.Job{}, err
	}
	return sequencer.Job{
		Layout:      &t.Layout,
		Backgrounds: bgs,
		Photo:       img,
		Tile:        tile,
		Text:        text,
	}, nil
}

// resolve substitutes the default photo for an empty request photo.
func (r *Renderer) resolve(p Photo) (image.Image, error) {
	if !p.IsDefault() {
		return p.Decode()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fallback != nil {
		return r.fallback, nil
	}
	if r.opts.DefaultPhoto == "" {
		r.fallback = Placeholder(PlaceholderSize)
		return r.fallback, nil
	}
	img, err := PhotoFile(r.opts.DefaultPhoto).Decode()
	if err != nil {
		return nil, err
	}
	r.fallback = img
	return img, nil
}

func (r *Renderer) encode(ctx context.Context, fps, quality int, frames []*image.RGBA) ([]byte, error) {
	b := frames[0].Bounds()
	enc, err := gifenc.New(gifenc.Options{
		Width:   b.Dx(),
		Height:  b.Dy(),
		Delay:   gifenc.DelayForFPS(fps),
		Quality: quality,
		Dither:  r.opts.Dither,
	})
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	if err := enc.Start(); err != nil {
		return nil, err
	}
	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := enc.AddFrame(f); err != nil {
			return nil, err
		}
	}
	if err := enc.Finish(); err != nil {
		return nil, err
	}
	return enc.Bytes()
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, errdefs.Encoding(err, "encoding thumbnail")
	}
	return buf.Bytes(), nil
}
