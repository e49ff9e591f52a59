package sequencer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/linuxmatters/greetgif/internal/compositor"
	"github.com/linuxmatters/greetgif/internal/errdefs"
	"github.com/linuxmatters/greetgif/internal/layout"
	"github.com/linuxmatters/greetgif/internal/text"
	"golang.org/x/image/draw"
)

func testLayout(fps, duration int) *layout.Layout {
	return &layout.Layout{
		Canvas:   layout.Canvas{Width: 120, Height: 160},
		FPS:      fps,
		Duration: duration,
		Quality:  10,
		ImageArea: layout.ImageArea{
			X: 30, Y: 20, Width: 60, Height: 60, Shape: layout.ShapeCircle,
		},
		TextArea: layout.TextArea{X: 60, Y: 120, MaxWidth: 100, FontSize: 14, Color: "#333333"},
	}
}

func backgrounds(n, w, h int) []image.Image {
	out := make([]image.Image, n)
	for i := range out {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		c := color.RGBA{R: uint8(40 * i), G: 120, B: 200, A: 255}
		draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
		out[i] = img
	}
	return out
}

func newSequencer(t testing.TB, workers int) *Sequencer {
	t.Helper()
	lib, err := text.NewLibrary()
	if err != nil {
		t.Fatal(err)
	}
	return New(compositor.New(lib), NewImagePool(), workers, 0)
}

func TestFrameCount(t *testing.T) {
	testCases := []struct {
		name                     string
		fps, duration, frameCap  int
		layoutCap, bg, want      int
	}{
		{"native count without duration", 2, 0, 12, 0, 3, 3},
		{"duration capped", 12, 3000, 12, 0, 3, 12},
		{"duration below cap", 10, 500, 12, 0, 3, 5},
		{"partial interval rounds up", 10, 510, 12, 0, 3, 6},
		{"short duration still one frame", 10, 1, 12, 0, 3, 1},
		{"layout cap overrides", 12, 3000, 12, 24, 3, 24},
		{"configured cap", 12, 3000, 8, 0, 3, 8},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := testLayout(tc.fps, tc.duration)
			l.FrameCap = tc.layoutCap
			if got := FrameCount(l, tc.bg, tc.frameCap); got != tc.want {
				t.Errorf("FrameCount() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestBackgroundIndex(t *testing.T) {
	// 12 frames over 3 backgrounds: progress i/11 * 3
	want := []int{0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2}
	for i, w := range want {
		if got := BackgroundIndex(i, 12, 3); got != w {
			t.Errorf("BackgroundIndex(%d, 12, 3) = %d, want %d", i, got, w)
		}
	}
	if got := BackgroundIndex(0, 1, 3); got != 0 {
		t.Errorf("single frame maps to %d, want 0", got)
	}
	// the last frame is clamped onto the last background
	if got := BackgroundIndex(4, 5, 2); got != 1 {
		t.Errorf("BackgroundIndex(4, 5, 2) = %d, want 1", got)
	}
}

func TestFrameTime(t *testing.T) {
	if got := FrameTime(3, 12); got != 250 {
		t.Errorf("FrameTime(3, 12) = %g, want 250", got)
	}
	if got := FrameTime(0, 10); got != 0 {
		t.Errorf("FrameTime(0, 10) = %g", got)
	}
}

func TestPlan_NativeModeMapsOneToOne(t *testing.T) {
	s := newSequencer(t, 1)
	plan := s.Plan(testLayout(2, 0), 3)
	if len(plan) != 3 || plan[0] != 0 || plan[1] != 1 || plan[2] != 2 {
		t.Errorf("Plan = %v, want [0 1 2]", plan)
	}
}

func TestRender_OrderedAndParallelSafe(t *testing.T) {
	defer leaktest.Check(t)()

	l := testLayout(12, 3000)
	l.TextArea.Animation.Effects = []layout.Effect{{Kind: layout.EffectTypewriter, Duration: 1000}}
	photo := backgrounds(1, 90, 50)[0]
	job := Job{Layout: l, Backgrounds: backgrounds(3, 120, 160), Photo: photo, Text: "Greetings"}

	serial := newSequencer(t, 1)
	parallel := newSequencer(t, 8)

	a, err := serial.Render(context.Background(), job)
	if err != nil {
		t.Fatalf("serial Render: %v", err)
	}
	b, err := parallel.Render(context.Background(), job)
	if err != nil {
		t.Fatalf("parallel Render: %v", err)
	}
	if len(a) != 12 || len(b) != 12 {
		t.Fatalf("got %d and %d frames, want 12", len(a), len(b))
	}
	for i := range a {
		if !bytes.Equal(a[i].Pix, b[i].Pix) {
			t.Errorf("frame %d differs between serial and parallel runs", i)
		}
	}
	// typewriter reveals text over time, so early and late frames differ
	if bytes.Equal(a[0].Pix, a[11].Pix) {
		t.Error("first and last frame identical despite animation")
	}
	serial.Release(a)
	parallel.Release(b)
}

func TestRender_FailsFastWithoutPartialOutput(t *testing.T) {
	defer leaktest.Check(t)()

	bgs := backgrounds(3, 120, 160)
	bgs[1] = image.NewRGBA(image.Rect(0, 0, 10, 10))
	job := Job{Layout: testLayout(2, 0), Backgrounds: bgs, Photo: backgrounds(1, 40, 40)[0]}

	frames, err := newSequencer(t, 2).Render(context.Background(), job)
	if !errdefs.IsConfig(err) {
		t.Fatalf("Render() error = %v, want ConfigError", err)
	}
	if frames != nil {
		t.Errorf("Render returned %d frames alongside error", len(frames))
	}
}

func TestRender_Cancelled(t *testing.T) {
	defer leaktest.CheckTimeout(t, 2*time.Second)()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := Job{Layout: testLayout(12, 3000), Backgrounds: backgrounds(3, 120, 160), Photo: backgrounds(1, 40, 40)[0]}
	frames, err := newSequencer(t, 4).Render(ctx, job)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Render() error = %v, want context.Canceled", err)
	}
	if frames != nil {
		t.Error("frames returned after cancellation")
	}
}

func TestRender_InvalidJobs(t *testing.T) {
	s := newSequencer(t, 1)
	photo := backgrounds(1, 40, 40)[0]

	if _, err := s.Render(context.Background(), Job{Layout: testLayout(0, 0), Backgrounds: backgrounds(1, 120, 160), Photo: photo}); !errdefs.IsConfig(err) {
		t.Errorf("zero fps: %v, want ConfigError", err)
	}
	if _, err := s.Render(context.Background(), Job{Layout: testLayout(2, 0), Photo: photo}); !errdefs.IsConfig(err) {
		t.Errorf("no backgrounds: %v, want ConfigError", err)
	}
	if _, err := s.Render(context.Background(), Job{Layout: testLayout(2, 0), Backgrounds: backgrounds(1, 120, 160)}); !errdefs.IsAsset(err) {
		t.Errorf("no photo: %v, want AssetError", err)
	}
}

func TestImagePool(t *testing.T) {
	p := NewImagePool()
	r := image.Rect(0, 0, 4, 4)
	img := p.Get(r)
	if img.Rect != r {
		t.Fatalf("Get returned %v", img.Rect)
	}
	p.Put(img)
	p.Put(nil)
	// a foreign size is dropped silently
	p.Put(image.NewRGBA(image.Rect(0, 0, 9, 9)))
	if got := p.Get(r); got.Rect != r {
		t.Errorf("Get after Put returned %v", got.Rect)
	}
}

func TestRenderFrame_MatchesSequence(t *testing.T) {
	l := testLayout(12, 3000)
	l.ImageArea.Animation.Effects = []layout.Effect{{Kind: layout.EffectScale, Duration: 500, From: 0.5, To: 1}}
	job := Job{Layout: l, Backgrounds: backgrounds(3, 120, 160), Photo: backgrounds(1, 40, 40)[0], Text: "Hi"}
	s := newSequencer(t, 4)

	frames, err := s.Render(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Release(frames)

	for _, i := range []int{0, s.FrameCount(job) - 1} {
		got, err := s.RenderFrame(job, i)
		if err != nil {
			t.Fatalf("RenderFrame(%d) error = %v", i, err)
		}
		if !bytes.Equal(got.Pix, frames[i].Pix) {
			t.Errorf("RenderFrame(%d) differs from Render", i)
		}
	}
	if _, err := s.RenderFrame(job, 12); !errdefs.IsConfig(err) {
		t.Errorf("RenderFrame(12) error = %v, want ConfigError", err)
	}
}
