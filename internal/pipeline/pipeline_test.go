package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/fortytw2/leaktest"
	"github.com/linuxmatters/greetgif/internal/errdefs"
	"github.com/linuxmatters/greetgif/internal/layout"
	"github.com/linuxmatters/greetgif/internal/template"
	"github.com/linuxmatters/greetgif/internal/text"
)

// writeTemplate stores a 120x160 template with n solid background frames.
func writeTemplate(t *testing.T, repo *template.FileRepository, id string, fps, duration, n int) {
	t.Helper()
	dir := filepath.Join(repo.Root(), id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	tmpl := &template.Template{
		ID:   id,
		Name: id,
		Layout: layout.Layout{
			Canvas:   layout.Canvas{Width: 120, Height: 160},
			FPS:      fps,
			Duration: duration,
			Quality:  10,
			ImageArea: layout.ImageArea{
				X: 30, Y: 20, Width: 60, Height: 60, Shape: layout.ShapeCircle,
				Border: &layout.Border{Width: 2, Color: "#748ffc"},
			},
			TextArea: layout.TextArea{X: 60, Y: 120, MaxWidth: 100, FontSize: 14},
		},
	}
	tmpl.Layout.ApplyDefaults()
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("bg%d.png", i)
		c := color.NRGBA{R: uint8(60 * i), G: 180, B: 220, A: 255}
		if err := imaging.Save(imaging.New(120, 160, c), filepath.Join(dir, name)); err != nil {
			t.Fatal(err)
		}
		tmpl.Frames = append(tmpl.Frames, path.Join(id, name))
	}
	if err := repo.Save(context.Background(), tmpl); err != nil {
		t.Fatal(err)
	}
}

func newRenderer(t *testing.T, opts Options) (*Renderer, *template.FileRepository) {
	t.Helper()
	repo := template.NewFileRepository(t.TempDir())
	fonts, err := text.NewLibrary()
	if err != nil {
		t.Fatal(err)
	}
	return New(repo, template.NewFrameLoader(repo.Assets()), fonts, opts), repo
}

func decodeGIF(t *testing.T, data []byte) *gif.GIF {
	t.Helper()
	if !bytes.HasPrefix(data, []byte("GIF89a")) {
		t.Fatalf("missing GIF89a header: % x", data[:min(6, len(data))])
	}
	if data[len(data)-1] != 0x3b {
		t.Fatalf("missing trailer, last byte %#x", data[len(data)-1])
	}
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("gif.DecodeAll: %v", err)
	}
	return g
}

func TestRender_Timing(t *testing.T) {
	testCases := []struct {
		name          string
		fps, duration int
		frames        int
		wantFrames    int
		wantDelay     int // centiseconds
	}{
		{"one frame per background", 2, 0, 3, 3, 50},
		{"duration capped at twelve frames", 12, 3000, 3, 12, 8},
		{"short duration", 10, 300, 2, 3, 10},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, repo := newRenderer(t, Options{})
			writeTemplate(t, repo, "card", tc.fps, tc.duration, tc.frames)

			data, err := r.Render(context.Background(), "card", DefaultPhoto, "Happy New Year")
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			g := decodeGIF(t, data)
			if len(g.Image) != tc.wantFrames {
				t.Fatalf("got %d frames, want %d", len(g.Image), tc.wantFrames)
			}
			for i, d := range g.Delay {
				if d != tc.wantDelay {
					t.Errorf("frame %d delay = %d, want %d", i, d, tc.wantDelay)
				}
			}
			if g.LoopCount != 0 {
				t.Errorf("LoopCount = %d, want 0 (forever)", g.LoopCount)
			}
			if g.Config.Width != 120 || g.Config.Height != 160 {
				t.Errorf("size = %dx%d", g.Config.Width, g.Config.Height)
			}
		})
	}
}

func TestRender_Deterministic(t *testing.T) {
	r, repo := newRenderer(t, Options{Workers: 4})
	writeTemplate(t, repo, "card", 10, 600, 2)

	a, err := r.Render(context.Background(), "card", DefaultPhoto, "Same text")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.Render(context.Background(), "card", DefaultPhoto, "Same text")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("identical requests produced different output")
	}
}

func TestRender_DefaultPhotoMatchesExplicitPlaceholder(t *testing.T) {
	r, repo := newRenderer(t, Options{})
	writeTemplate(t, repo, "card", 2, 0, 1)

	var buf bytes.Buffer
	if err := png.Encode(&buf, Placeholder(PlaceholderSize)); err != nil {
		t.Fatal(err)
	}
	explicit, err := r.Render(context.Background(), "card", PhotoBytes(buf.Bytes()), "")
	if err != nil {
		t.Fatal(err)
	}
	implicit, err := r.Render(context.Background(), "card", DefaultPhoto, "")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(explicit, implicit) {
		t.Error("default photo differs from the explicit placeholder")
	}
}

func TestRender_ConfiguredDefaultPhoto(t *testing.T) {
	photoPath := filepath.Join(t.TempDir(), "avatar.png")
	if err := imaging.Save(imaging.New(80, 40, color.NRGBA{R: 255, A: 255}), photoPath); err != nil {
		t.Fatal(err)
	}
	r, repo := newRenderer(t, Options{DefaultPhoto: photoPath})
	writeTemplate(t, repo, "card", 2, 0, 1)

	fromDefault, err := r.Render(context.Background(), "card", DefaultPhoto, "x")
	if err != nil {
		t.Fatal(err)
	}
	fromFile, err := r.Render(context.Background(), "card", PhotoFile(photoPath), "x")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(fromDefault, fromFile) {
		t.Error("configured default photo not used")
	}

	missing, missingRepo := newRenderer(t, Options{DefaultPhoto: filepath.Join(t.TempDir(), "none.png")})
	writeTemplate(t, missingRepo, "card", 2, 0, 1)
	if _, err := missing.Render(context.Background(), "card", DefaultPhoto, ""); !errdefs.IsAsset(err) {
		t.Errorf("Render() error = %v, want AssetError", err)
	}
}

func TestRender_Errors(t *testing.T) {
	defer leaktest.Check(t)()

	r, repo := newRenderer(t, Options{})
	writeTemplate(t, repo, "card", 2, 0, 2)
	writeTemplate(t, repo, "broken", 2, 0, 2)
	if err := os.Remove(filepath.Join(repo.Root(), "broken", "bg1.png")); err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name  string
		id    string
		photo Photo
		is    func(error) bool
	}{
		{"unknown template", "nope", DefaultPhoto, errdefs.IsNotFound},
		{"traversal id", "../card", DefaultPhoto, errdefs.IsNotFound},
		{"corrupt photo", "card", PhotoBytes([]byte("definitely not an image")), errdefs.IsAsset},
		{"missing photo file", "card", PhotoFile(filepath.Join(t.TempDir(), "x.jpg")), errdefs.IsAsset},
		{"missing background", "broken", DefaultPhoto, errdefs.IsAsset},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := r.Render(context.Background(), tc.id, tc.photo, "hi")
			if !tc.is(err) {
				t.Errorf("Render() error = %v", err)
			}
			if data != nil {
				t.Error("partial output returned with error")
			}
		})
	}
}

func TestRender_Cancelled(t *testing.T) {
	defer leaktest.Check(t)()

	r, repo := newRenderer(t, Options{})
	writeTemplate(t, repo, "card", 12, 3000, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data, err := r.Render(ctx, "card", DefaultPhoto, "hi")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Render() error = %v, want context.Canceled", err)
	}
	if data != nil {
		t.Error("output returned after cancellation")
	}
}

func TestThumbnail(t *testing.T) {
	r, repo := newRenderer(t, Options{})
	writeTemplate(t, repo, "card", 2, 0, 3)

	data, err := r.Thumbnail(context.Background(), "card", DefaultPhoto, "hi")
	if err != nil {
		t.Fatalf("Thumbnail() error = %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 120, 160) {
		t.Errorf("bounds = %v", img.Bounds())
	}
	// the final frame uses the last background (R = 120) in the corner
	if r, _, _, _ := img.At(1, 1).RGBA(); r>>8 != 120 {
		t.Errorf("corner red = %d, want 120", r>>8)
	}
}

func TestPreviews_ContinuesPastFailures(t *testing.T) {
	r, repo := newRenderer(t, Options{})
	writeTemplate(t, repo, "alpha", 2, 0, 2)
	writeTemplate(t, repo, "beta", 2, 0, 2)
	writeTemplate(t, repo, "gamma", 2, 0, 1)
	if err := os.Remove(filepath.Join(repo.Root(), "beta", "bg0.png")); err != nil {
		t.Fatal(err)
	}

	var calls []int
	results, err := r.Previews(context.Background(), nil, DefaultPhoto, "Preview", func(done, total int, res PreviewResult) {
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		calls = append(calls, done)
	})
	if err != nil {
		t.Fatalf("Previews() error = %v", err)
	}
	if len(results) != 3 || len(calls) != 3 || calls[2] != 3 {
		t.Fatalf("results = %d, progress calls = %v", len(results), calls)
	}

	for _, res := range results {
		switch res.ID {
		case "beta":
			if !errdefs.IsAsset(res.Err) || res.GIF != nil {
				t.Errorf("beta: err = %v, gif %d bytes", res.Err, len(res.GIF))
			}
		default:
			if res.Err != nil {
				t.Errorf("%s: %v", res.ID, res.Err)
				continue
			}
			decodeGIF(t, res.GIF)
			if _, err := png.Decode(bytes.NewReader(res.Thumbnail)); err != nil {
				t.Errorf("%s thumbnail: %v", res.ID, err)
			}
		}
	}

	// explicit ids keep their order and report unknown templates per item
	results, err = r.Previews(context.Background(), []string{"gamma", "missing"}, DefaultPhoto, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ID != "gamma" || results[0].Err != nil || !errdefs.IsNotFound(results[1].Err) {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.gif")

	if err := WriteFile(target, []byte("GIF89a")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := os.ReadFile(target)
	if err != nil || string(got) != "GIF89a" {
		t.Fatalf("ReadFile = %q, %v", got, err)
	}

	if err := WriteFile(filepath.Join(dir, "missing", "out.gif"), []byte("x")); err == nil {
		t.Error("WriteFile into a missing directory succeeded")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestPlaceholder(t *testing.T) {
	img := Placeholder(100)
	if img.Bounds().Dx() != 100 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if img.NRGBAAt(50, 38) != placeholderFill {
		t.Error("head not drawn")
	}
	if img.NRGBAAt(2, 2) != placeholderBG {
		t.Error("background not drawn")
	}
}
