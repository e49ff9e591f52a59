// Package gifenc writes looping GIF89a animations one frame at a time.
//
// Each frame gets its own colour table, quantized from that frame, so the
// encoder never has to see the whole animation before writing.
package gifenc

import (
	"bufio"
	"bytes"
	"compress/lzw"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/linuxmatters/greetgif/internal/config"
	"github.com/linuxmatters/greetgif/internal/errdefs"
	"golang.org/x/image/draw"
)

// Options configures an Encoder.
type Options struct {
	Width  int
	Height int
	Delay  int // ms per frame, written in centiseconds
	// Quality is the palette sampling stride in 1..30: 1 samples every pixel
	// and gives the most faithful palette, 10 samples every tenth pixel.
	Quality int
	// Repeat is the loop count: 0 loops forever, n plays n+1 times and -1
	// omits the loop extension so the animation plays once.
	Repeat int
	Dither bool // Floyd-Steinberg error diffusion
}

type state int

const (
	stateIdle state = iota
	stateStarted
	stateFinished
	stateClosed
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateStarted:
		return "started"
	case stateFinished:
		return "finished"
	}
	return "closed"
}

// Encoder streams a GIF: Start, AddFrame for each frame, Finish, then Bytes
// (buffered encoders only) and Close.
type Encoder struct {
	opts  Options
	state state
	err   error

	buf *bytes.Buffer // set by New
	out *bufio.Writer

	frames  int
	scratch *image.RGBA
	indices []byte
	q       *quantizer
}

// DelayForFPS is the frame delay in milliseconds for a frame rate.
func DelayForFPS(fps int) int {
	if fps <= 0 {
		return 0
	}
	return int(math.Round(1000 / float64(fps)))
}

// New returns an encoder that collects output in memory for Bytes.
func New(opts Options) (*Encoder, error) {
	buf := new(bytes.Buffer)
	e, err := NewWriter(buf, opts)
	if err != nil {
		return nil, err
	}
	e.buf = buf
	return e, nil
}

// NewWriter returns an encoder that streams to w.
func NewWriter(w io.Writer, opts Options) (*Encoder, error) {
	if opts.Width <= 0 || opts.Height <= 0 || opts.Width > 0xffff || opts.Height > 0xffff {
		return nil, errdefs.Configf("invalid dimensions: %dx%d", opts.Width, opts.Height)
	}
	if opts.Delay < 0 {
		return nil, errdefs.Configf("invalid delay: %dms", opts.Delay)
	}
	if opts.Quality < config.MinQuality || opts.Quality > config.MaxQuality {
		return nil, errdefs.Configf("quality must be in %d..%d, got %d", config.MinQuality, config.MaxQuality, opts.Quality)
	}
	if opts.Repeat < -1 || opts.Repeat > 0xffff {
		return nil, errdefs.Configf("invalid repeat count: %d", opts.Repeat)
	}
	return &Encoder{
		opts:    opts,
		out:     bufio.NewWriter(w),
		indices: make([]byte, opts.Width*opts.Height),
		q:       newQuantizer(),
	}, nil
}

// Frames is the number of frames written so far.
func (e *Encoder) Frames() int {
	return e.frames
}

// Start writes the header, the logical screen descriptor and the loop
// extension.
func (e *Encoder) Start() error {
	if e.state != stateIdle {
		return errdefs.Statef("Start called while %s", e.state)
	}
	e.state = stateStarted

	e.write([]byte("GIF89a"))
	e.write([]byte{
		byte(e.opts.Width), byte(e.opts.Width >> 8),
		byte(e.opts.Height), byte(e.opts.Height >> 8),
		0x00, // no global colour table
		0x00, // background colour index
		0x00, // pixel aspect ratio
	})
	if e.opts.Repeat >= 0 {
		e.write([]byte{0x21, 0xff, 0x0b})
		e.write([]byte("NETSCAPE2.0"))
		e.write([]byte{0x03, 0x01, byte(e.opts.Repeat), byte(e.opts.Repeat >> 8), 0x00})
	}
	return e.err
}

// AddFrame quantizes img and appends it. img must match the configured size.
func (e *Encoder) AddFrame(img image.Image) error {
	if e.state != stateStarted {
		return errdefs.Statef("AddFrame called while %s", e.state)
	}
	if e.err != nil {
		return e.err
	}
	b := img.Bounds()
	if b.Dx() != e.opts.Width || b.Dy() != e.opts.Height {
		return errdefs.Configf("frame is %dx%d, encoder is %dx%d", b.Dx(), b.Dy(), e.opts.Width, e.opts.Height)
	}

	pix, stride := e.rgba(img)
	palette := e.q.palette(pix, stride, e.opts.Width, e.opts.Height, e.opts.Quality)
	if e.opts.Dither {
		e.q.ditherIndices(e.indices, pix, stride, e.opts.Width, e.opts.Height, palette)
	} else {
		e.q.mapIndices(e.indices, pix, stride, e.opts.Width, e.opts.Height, palette)
	}

	e.writeFrame(palette)
	if e.err == nil {
		e.frames++
	}
	return e.err
}

// rgba returns 8-bit RGBA pixels for img, copying only when img is not
// already an *image.RGBA.
func (e *Encoder) rgba(img image.Image) ([]byte, int) {
	if m, ok := img.(*image.RGBA); ok {
		off := m.PixOffset(m.Rect.Min.X, m.Rect.Min.Y)
		return m.Pix[off:], m.Stride
	}
	if e.scratch == nil {
		e.scratch = image.NewRGBA(image.Rect(0, 0, e.opts.Width, e.opts.Height))
	}
	draw.Draw(e.scratch, e.scratch.Bounds(), img, img.Bounds().Min, draw.Src)
	return e.scratch.Pix, e.scratch.Stride
}

func (e *Encoder) writeFrame(palette []rgb) {
	bits := paletteBits(len(palette))
	cs := (e.opts.Delay + 5) / 10

	// Graphic control extension: delay, no disposal, no transparency.
	e.write([]byte{0x21, 0xf9, 0x04, 0x01 << 2, byte(cs), byte(cs >> 8), 0x00, 0x00})

	// Image descriptor with a local colour table.
	e.write([]byte{
		0x2c,
		0x00, 0x00, 0x00, 0x00,
		byte(e.opts.Width), byte(e.opts.Width >> 8),
		byte(e.opts.Height), byte(e.opts.Height >> 8),
		0x80 | byte(bits-1),
	})
	table := make([]byte, 3<<bits)
	for i, c := range palette {
		table[3*i], table[3*i+1], table[3*i+2] = c.r, c.g, c.b
	}
	e.write(table)

	litWidth := max(2, bits)
	e.write([]byte{byte(litWidth)})
	if e.err != nil {
		return
	}
	bw := &blockWriter{w: e.out}
	lz := lzw.NewWriter(bw, lzw.LSB, litWidth)
	if _, err := lz.Write(e.indices); err != nil {
		e.fail(err)
		return
	}
	if err := lz.Close(); err != nil {
		e.fail(err)
		return
	}
	if err := bw.close(); err != nil {
		e.fail(err)
	}
}

// Finish writes the trailer and flushes. It may be called once, after Start.
func (e *Encoder) Finish() error {
	if e.state != stateStarted {
		return errdefs.Statef("Finish called while %s", e.state)
	}
	if e.err != nil {
		return e.err
	}
	if e.frames == 0 {
		return errdefs.Statef("Finish called before any frame was added")
	}
	e.write([]byte{0x3b})
	if e.err == nil {
		if err := e.out.Flush(); err != nil {
			e.fail(err)
		}
	}
	if e.err != nil {
		return e.err
	}
	e.state = stateFinished
	return nil
}

// Bytes returns the encoded animation of a buffered encoder after Finish.
func (e *Encoder) Bytes() ([]byte, error) {
	if e.state != stateFinished {
		return nil, errdefs.Statef("Bytes called while %s", e.state)
	}
	if e.buf == nil {
		return nil, errdefs.Statef("Bytes called on a streaming encoder")
	}
	return e.buf.Bytes(), nil
}

// Close releases buffers. Closing an unfinished encoder abandons the output.
func (e *Encoder) Close() error {
	e.state = stateClosed
	e.buf = nil
	e.scratch = nil
	e.indices = nil
	return nil
}

func (e *Encoder) write(p []byte) {
	if e.err != nil {
		return
	}
	if _, err := e.out.Write(p); err != nil {
		e.fail(err)
	}
}

func (e *Encoder) fail(err error) {
	if e.err == nil {
		e.err = errdefs.Encoding(err, "write gif")
	}
}

// paletteBits is the colour table size exponent: 2^bits >= n, bits >= 1.
func paletteBits(n int) int {
	bits := 1
	for 1<<bits < n {
		bits++
	}
	return bits
}

// blockWriter splits a stream into GIF data sub-blocks of up to 255 bytes.
type blockWriter struct {
	w   io.Writer
	buf [256]byte
	n   int
}

func (b *blockWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		c := copy(b.buf[1+b.n:], p)
		b.n += c
		p = p[c:]
		written += c
		if b.n == 255 {
			if err := b.flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

func (b *blockWriter) flush() error {
	if b.n == 0 {
		return nil
	}
	b.buf[0] = byte(b.n)
	_, err := b.w.Write(b.buf[:1+b.n])
	b.n = 0
	return err
}

// close flushes the last sub-block and writes the block terminator.
func (b *blockWriter) close() error {
	if err := b.flush(); err != nil {
		return err
	}
	_, err := b.w.Write([]byte{0x00})
	return err
}

// Encode is the one-shot form: frames in order, looping forever, with the
// delay derived from fps.
func Encode(frames []*image.RGBA, fps, quality int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, errdefs.Configf("no frames to encode")
	}
	if fps <= 0 {
		return nil, errdefs.Configf("fps must be positive, got %d", fps)
	}
	b := frames[0].Bounds()
	enc, err := New(Options{
		Width:   b.Dx(),
		Height:  b.Dy(),
		Delay:   DelayForFPS(fps),
		Quality: quality,
	})
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	if err := enc.Start(); err != nil {
		return nil, err
	}
	for i, f := range frames {
		if err := enc.AddFrame(f); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
	}
	if err := enc.Finish(); err != nil {
		return nil, err
	}
	out, err := enc.Bytes()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(out), nil
}
