// Package sequencer turns a template's background frames into the ordered
// frames of one animation, compositing them in parallel.
package sequencer

import (
	"context"
	"fmt"
	"image"
	"runtime"

	"github.com/linuxmatters/greetgif/internal/compositor"
	"github.com/linuxmatters/greetgif/internal/config"
	"github.com/linuxmatters/greetgif/internal/errdefs"
	"github.com/linuxmatters/greetgif/internal/layout"
	"golang.org/x/sync/errgroup"
)

// Job is one animation to render.
type Job struct {
	Layout      *layout.Layout
	Backgrounds []image.Image // in template order, at least one

	// Photo is the decoded user photo; Tile may carry it pre-fitted.
	Photo image.Image
	Tile  *compositor.Tile
	Text  string
}

// Sequencer schedules compositor calls. It holds no per-request state and
// may be shared.
type Sequencer struct {
	comp     *compositor.Compositor
	pool     *ImagePool
	workers  int
	frameCap int
}

// New returns a sequencer running up to workers composites at once (0 means
// GOMAXPROCS) and capping duration-driven animations at frameCap frames (0
// means the compiled default).
func New(comp *compositor.Compositor, pool *ImagePool, workers, frameCap int) *Sequencer {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if frameCap <= 0 {
		frameCap = config.FrameCap
	}
	if pool == nil {
		pool = NewImagePool()
	}
	return &Sequencer{comp: comp, pool: pool, workers: workers, frameCap: frameCap}
}

// FrameCount is the number of output frames. With a duration it is the
// number of frame intervals needed to cover it, capped; without one each
// background is shown once. A positive l.FrameCap overrides frameCap.
func FrameCount(l *layout.Layout, bgCount, frameCap int) int {
	if l.Duration <= 0 {
		return bgCount
	}
	if l.FrameCap > 0 {
		frameCap = l.FrameCap
	}
	// ceil(duration / (1000/fps)) without floating point
	n := (l.Duration*l.FPS + 999) / 1000
	return max(1, min(n, frameCap))
}

// BackgroundIndex maps output frame i of total onto one of bgCount
// backgrounds by animation progress, holding the last background at the end.
func BackgroundIndex(i, total, bgCount int) int {
	if total <= 1 || bgCount <= 1 {
		return 0
	}
	idx := i * bgCount / (total - 1)
	return min(idx, bgCount-1)
}

// FrameTime is the time of frame i in milliseconds.
func FrameTime(i, fps int) float64 {
	return float64(i) * 1000 / float64(fps)
}

// Plan lists the background index for each output frame.
func (s *Sequencer) Plan(l *layout.Layout, bgCount int) []int {
	total := FrameCount(l, bgCount, s.frameCap)
	plan := make([]int, total)
	for i := range plan {
		if l.Duration > 0 {
			plan[i] = BackgroundIndex(i, total, bgCount)
		} else {
			plan[i] = i
		}
	}
	return plan
}

// Render composites every frame of job. Frames are returned in order and
// belong to the caller until passed to Release. On error or cancellation no
// frames are returned.
func (s *Sequencer) Render(ctx context.Context, job Job) ([]*image.RGBA, error) {
	if err := s.check(job); err != nil {
		return nil, err
	}
	l := job.Layout

	tile, err := s.tile(job)
	if err != nil {
		return nil, err
	}

	plan := s.Plan(l, len(job.Backgrounds))
	frames := make([]*image.RGBA, len(plan))
	canvas := l.Canvas.Rect()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, bg := range plan {
		i, bg := i, bg
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dst := s.pool.Get(canvas)
			if err := s.composite(dst, job, tile, bg, i); err != nil {
				s.pool.Put(dst)
				return err
			}
			frames[i] = dst
			return nil
		})
	}

	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.Release(frames)
		return nil, err
	}
	return frames, nil
}

// RenderFrame composites output frame i of job on its own, outside the
// pool. Previews use it to draw the final frame without the rest.
func (s *Sequencer) RenderFrame(job Job, i int) (*image.RGBA, error) {
	if err := s.check(job); err != nil {
		return nil, err
	}
	plan := s.Plan(job.Layout, len(job.Backgrounds))
	if i < 0 || i >= len(plan) {
		return nil, errdefs.Configf("frame %d out of range 0..%d", i, len(plan)-1)
	}
	tile, err := s.tile(job)
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(job.Layout.Canvas.Rect())
	if err := s.composite(dst, job, tile, plan[i], i); err != nil {
		return nil, err
	}
	return dst, nil
}

// FrameCount is the number of frames Render produces for job.
func (s *Sequencer) FrameCount(job Job) int {
	return FrameCount(job.Layout, len(job.Backgrounds), s.frameCap)
}

func (s *Sequencer) check(job Job) error {
	l := job.Layout
	if l == nil {
		return errdefs.Configf("layout is missing")
	}
	if err := l.Validate(); err != nil {
		return err
	}
	if len(job.Backgrounds) == 0 {
		return errdefs.Configf("template has no background frames")
	}
	return nil
}

func (s *Sequencer) tile(job Job) (*compositor.Tile, error) {
	if job.Tile != nil {
		return job.Tile, nil
	}
	return compositor.PreparePhoto(job.Photo, job.Layout.ImageArea)
}

func (s *Sequencer) composite(dst *image.RGBA, job Job, tile *compositor.Tile, bg, i int) error {
	l := job.Layout
	t := FrameTime(i, l.FPS)
	in := compositor.Input{
		Background: job.Backgrounds[bg],
		Layout:     l,
		Tile:       tile,
		Text:       job.Text,
		ImageState: evaluate(l.ImageArea.Animation, t),
		TextState:  evaluate(l.TextArea.Animation, t),
	}
	if err := s.comp.Composite(dst, in); err != nil {
		return fmt.Errorf("frame %d: %w", i, err)
	}
	return nil
}

// Release returns frames to the pool. The frames must not be used afterwards.
func (s *Sequencer) Release(frames []*image.RGBA) {
	for i, f := range frames {
		s.pool.Put(f)
		frames[i] = nil
	}
}

func evaluate(a layout.Animation, t float64) *layout.State {
	if len(a.Effects) == 0 {
		return nil
	}
	st := layout.Evaluate(a.Effects, t)
	return &st
}
