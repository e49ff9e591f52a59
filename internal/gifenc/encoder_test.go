package gifenc

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"testing"

	"github.com/linuxmatters/greetgif/internal/errdefs"
)

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func rampFrame(w, h, shift int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8((x + shift) * 4), G: uint8(y * 4), B: uint8((x + y) * 2), A: 255})
		}
	}
	return img
}

func TestDelayForFPS(t *testing.T) {
	testCases := []struct{ fps, want int }{
		{2, 500},
		{10, 100},
		{12, 83},
		{24, 42},
		{30, 33},
		{0, 0},
	}
	for _, tc := range testCases {
		if got := DelayForFPS(tc.fps); got != tc.want {
			t.Errorf("DelayForFPS(%d) = %d, want %d", tc.fps, got, tc.want)
		}
	}
}

func TestEncode_StructureAndTiming(t *testing.T) {
	frames := []*image.RGBA{rampFrame(64, 48, 0), rampFrame(64, 48, 5), rampFrame(64, 48, 10)}
	data, err := Encode(frames, 12, 10)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if !bytes.HasPrefix(data, []byte("GIF89a")) {
		t.Errorf("missing GIF89a magic: % x", data[:6])
	}
	if data[len(data)-1] != 0x3b {
		t.Errorf("last byte = %#x, want trailer 0x3b", data[len(data)-1])
	}
	if !bytes.Contains(data, []byte("NETSCAPE2.0")) {
		t.Error("loop extension missing")
	}

	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(g.Image) != 3 {
		t.Fatalf("decoded %d frames, want 3", len(g.Image))
	}
	if g.LoopCount != 0 {
		t.Errorf("LoopCount = %d, want 0 (forever)", g.LoopCount)
	}
	if g.Config.Width != 64 || g.Config.Height != 48 {
		t.Errorf("screen = %dx%d, want 64x48", g.Config.Width, g.Config.Height)
	}
	for i, d := range g.Delay {
		// 83ms rounds to 8 centiseconds
		if d != 8 {
			t.Errorf("frame %d delay = %d cs, want 8", i, d)
		}
		if g.Disposal[i] != gif.DisposalNone {
			t.Errorf("frame %d disposal = %d", i, g.Disposal[i])
		}
	}
}

func TestEncode_SolidColoursAreExact(t *testing.T) {
	colours := []color.RGBA{
		{R: 255, A: 255},
		{R: 0x33, G: 0x33, B: 0x33, A: 255},
		{R: 255, G: 215, A: 255},
	}
	frames := make([]*image.RGBA, len(colours))
	for i, c := range colours {
		frames[i] = solidFrame(16, 16, c)
	}
	data, err := Encode(frames, 2, 1)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	for i, want := range colours {
		if g.Delay[i] != 50 {
			t.Errorf("frame %d delay = %d cs, want 50", i, g.Delay[i])
		}
		r, gg, b, _ := g.Image[i].At(7, 7).RGBA()
		if uint8(r>>8) != want.R || uint8(gg>>8) != want.G || uint8(b>>8) != want.B {
			t.Errorf("frame %d pixel = (%d,%d,%d), want %v", i, r>>8, gg>>8, b>>8, want)
		}
	}
}

func TestEncode_PaletteFidelity(t *testing.T) {
	frame := rampFrame(64, 64, 0)
	for _, dither := range []bool{false, true} {
		enc, err := New(Options{Width: 64, Height: 64, Delay: 100, Quality: 1, Dither: dither})
		if err != nil {
			t.Fatal(err)
		}
		if err := enc.Start(); err != nil {
			t.Fatal(err)
		}
		if err := enc.AddFrame(frame); err != nil {
			t.Fatal(err)
		}
		if err := enc.Finish(); err != nil {
			t.Fatal(err)
		}
		data, err := enc.Bytes()
		if err != nil {
			t.Fatal(err)
		}
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("dither=%v: DecodeAll: %v", dither, err)
		}

		var sum float64
		for y := 0; y < 64; y++ {
			for x := 0; x < 64; x++ {
				a := frame.RGBAAt(x, y)
				r, gg, b, _ := g.Image[0].At(x, y).RGBA()
				sum += absDiff(a.R, uint8(r>>8)) + absDiff(a.G, uint8(gg>>8)) + absDiff(a.B, uint8(b>>8))
			}
		}
		mean := sum / (64 * 64 * 3)
		if mean > 16 {
			t.Errorf("dither=%v: mean channel error %.2f, want <= 16", dither, mean)
		}
		enc.Close()
	}
}

func absDiff(a, b uint8) float64 {
	if a > b {
		return float64(a - b)
	}
	return float64(b - a)
}

func TestEncoder_StateMachine(t *testing.T) {
	frame := solidFrame(8, 8, color.RGBA{B: 255, A: 255})
	enc, err := New(Options{Width: 8, Height: 8, Delay: 100, Quality: 10})
	if err != nil {
		t.Fatal(err)
	}

	if err := enc.AddFrame(frame); !errdefs.IsState(err) {
		t.Errorf("AddFrame before Start = %v, want StateError", err)
	}
	if err := enc.Finish(); !errdefs.IsState(err) {
		t.Errorf("Finish before Start = %v, want StateError", err)
	}
	if _, err := enc.Bytes(); !errdefs.IsState(err) {
		t.Errorf("Bytes before Finish = %v, want StateError", err)
	}
	if err := enc.Start(); err != nil {
		t.Fatal(err)
	}
	if err := enc.Start(); !errdefs.IsState(err) {
		t.Errorf("second Start = %v, want StateError", err)
	}
	if err := enc.Finish(); !errdefs.IsState(err) {
		t.Errorf("Finish with no frames = %v, want StateError", err)
	}
	if err := enc.AddFrame(frame); err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Bytes(); !errdefs.IsState(err) {
		t.Errorf("Bytes before Finish = %v, want StateError", err)
	}
	if err := enc.Finish(); err != nil {
		t.Fatal(err)
	}
	if err := enc.AddFrame(frame); !errdefs.IsState(err) {
		t.Errorf("AddFrame after Finish = %v, want StateError", err)
	}
	if err := enc.Finish(); !errdefs.IsState(err) {
		t.Errorf("second Finish = %v, want StateError", err)
	}
	if enc.Frames() != 1 {
		t.Errorf("Frames() = %d, want 1", enc.Frames())
	}
	if _, err := enc.Bytes(); err != nil {
		t.Errorf("Bytes after Finish = %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Bytes(); !errdefs.IsState(err) {
		t.Errorf("Bytes after Close = %v, want StateError", err)
	}
}

func TestEncoder_SizeMismatch(t *testing.T) {
	enc, err := New(Options{Width: 8, Height: 8, Quality: 10})
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()
	if err := enc.Start(); err != nil {
		t.Fatal(err)
	}
	if err := enc.AddFrame(solidFrame(8, 9, color.RGBA{A: 255})); !errdefs.IsConfig(err) {
		t.Errorf("AddFrame with wrong size = %v, want ConfigError", err)
	}

	_, err = Encode([]*image.RGBA{solidFrame(4, 4, color.RGBA{}), solidFrame(5, 4, color.RGBA{})}, 10, 10)
	if !errdefs.IsConfig(err) {
		t.Errorf("Encode mixed sizes = %v, want ConfigError", err)
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	testCases := []struct {
		name string
		opts Options
	}{
		{"zero width", Options{Height: 4, Quality: 10}},
		{"too tall", Options{Width: 4, Height: 70000, Quality: 10}},
		{"quality zero", Options{Width: 4, Height: 4}},
		{"quality above 30", Options{Width: 4, Height: 4, Quality: 31}},
		{"negative delay", Options{Width: 4, Height: 4, Quality: 10, Delay: -1}},
		{"repeat below -1", Options{Width: 4, Height: 4, Quality: 10, Repeat: -2}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.opts); !errdefs.IsConfig(err) {
				t.Errorf("New() = %v, want ConfigError", err)
			}
		})
	}
}

func TestEncoder_RepeatOptions(t *testing.T) {
	for _, tc := range []struct{ repeat, want int }{{-1, -1}, {0, 0}, {3, 3}} {
		var buf bytes.Buffer
		enc, err := NewWriter(&buf, Options{Width: 4, Height: 4, Quality: 10, Repeat: tc.repeat})
		if err != nil {
			t.Fatal(err)
		}
		if err := enc.Start(); err != nil {
			t.Fatal(err)
		}
		if err := enc.AddFrame(solidFrame(4, 4, color.RGBA{G: 128, A: 255})); err != nil {
			t.Fatal(err)
		}
		if err := enc.Finish(); err != nil {
			t.Fatal(err)
		}
		if _, err := enc.Bytes(); !errdefs.IsState(err) {
			t.Errorf("Bytes on streaming encoder = %v, want StateError", err)
		}
		g, err := gif.DecodeAll(&buf)
		if err != nil {
			t.Fatalf("repeat=%d: DecodeAll: %v", tc.repeat, err)
		}
		if g.LoopCount != tc.want {
			t.Errorf("repeat=%d: LoopCount = %d, want %d", tc.repeat, g.LoopCount, tc.want)
		}
	}
}

type failingWriter struct{ after int }

var errDiskFull = errors.New("disk full")

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, errDiskFull
	}
	w.after -= len(p)
	return len(p), nil
}

func TestEncoder_WriterFailure(t *testing.T) {
	enc, err := NewWriter(&failingWriter{}, Options{Width: 32, Height: 32, Quality: 10})
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.Start(); err != nil {
		t.Fatalf("Start buffers its output, got %v", err)
	}
	_ = enc.AddFrame(rampFrame(32, 32, 0))
	err = enc.Finish()
	if !errdefs.IsEncoding(err) {
		t.Fatalf("Finish = %v, want EncodingError", err)
	}
	if !errors.Is(err, errDiskFull) {
		t.Errorf("cause lost: %v", err)
	}
}

func TestEncoder_AcceptsAnyImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 10, 18, 18))
	for i := range src.Pix {
		src.Pix[i] = 0xff
	}
	enc, err := New(Options{Width: 8, Height: 8, Quality: 5})
	if err != nil {
		t.Fatal(err)
	}
	defer enc.Close()
	if err := enc.Start(); err != nil {
		t.Fatal(err)
	}
	if err := enc.AddFrame(src); err != nil {
		t.Fatalf("AddFrame(NRGBA) = %v", err)
	}
	if err := enc.Finish(); err != nil {
		t.Fatal(err)
	}
	data, _ := enc.Bytes()
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if r, _, _, _ := g.Image[0].At(3, 3).RGBA(); r>>8 != 0xff {
		t.Errorf("pixel red = %d, want 255", r>>8)
	}
}

func TestQuantizer_Deterministic(t *testing.T) {
	frame := rampFrame(80, 60, 3)
	a := newQuantizer().palette(frame.Pix, frame.Stride, 80, 60, 10)
	b := newQuantizer().palette(frame.Pix, frame.Stride, 80, 60, 10)
	if len(a) != len(b) || len(a) > 256 {
		t.Fatalf("palette sizes %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("palette entry %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestBlockWriter_SubBlocks(t *testing.T) {
	var out bytes.Buffer
	bw := &blockWriter{w: &out}
	payload := bytes.Repeat([]byte{0xaa}, 600)
	if _, err := bw.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := bw.close(); err != nil {
		t.Fatal(err)
	}
	b := out.Bytes()
	// 255 + 255 + 90, then the terminator
	if b[0] != 255 || b[256] != 255 || b[512] != 90 || b[len(b)-1] != 0 {
		t.Errorf("unexpected sub-block layout: len=%d", len(b))
	}
	if len(b) != 600+3+1 {
		t.Errorf("len = %d, want %d", len(b), 604)
	}
}

func BenchmarkEncode(b *testing.B) {
	frames := make([]*image.RGBA, 12)
	for i := range frames {
		frames[i] = rampFrame(800, 1000, i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Encode(frames, 12, 10); err != nil {
			b.Fatal(err)
		}
	}
}
