package pipeline

import (
	"bytes"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/linuxmatters/greetgif/internal/errdefs"
)

// Photo is the user photo of a request. The zero value asks for the
// configured default photo.
type Photo struct {
	Data []byte // encoded image
	Path string // image file, used when Data is empty
}

// DefaultPhoto selects the configured default photo.
var DefaultPhoto = Photo{}

func PhotoBytes(data []byte) Photo {
	return Photo{Data: data}
}

func PhotoFile(path string) Photo {
	return Photo{Path: path}
}

func (p Photo) IsDefault() bool {
	return len(p.Data) == 0 && p.Path == ""
}

// Decode reads the photo, honouring EXIF orientation. Failures are
// AssetErrors.
func (p Photo) Decode() (image.Image, error) {
	switch {
	case len(p.Data) > 0:
		img, err := imaging.Decode(bytes.NewReader(p.Data), imaging.AutoOrientation(true))
		if err != nil {
			return nil, errdefs.Asset(err, "decoding photo")
		}
		return img, nil
	case p.Path != "":
		img, err := imaging.Open(p.Path, imaging.AutoOrientation(true))
		if err != nil {
			return nil, errdefs.Asset(err, "opening photo %s", p.Path)
		}
		return img, nil
	}
	return nil, errdefs.Assetf("no photo supplied")
}

var (
	placeholderBG   = color.NRGBA{R: 0xce, G: 0xd4, B: 0xda, A: 0xff}
	placeholderFill = color.NRGBA{R: 0xf1, G: 0xf3, B: 0xf5, A: 0xff}
)

// Placeholder draws a neutral head-and-shoulders avatar of size x size used
// when no default photo file is configured.
func Placeholder(size int) *image.NRGBA {
	img := imaging.New(size, size, placeholderBG)
	s := float64(size)
	headX, headY, headR := s/2, s*0.38, s*0.18
	bodyX, bodyY, bodyRX, bodyRY := s/2, s*0.95, s*0.34, s*0.3

	for y := 0; y < size; y++ {
		fy := float64(y) + 0.5
		for x := 0; x < size; x++ {
			fx := float64(x) + 0.5
			head := math.Hypot(fx-headX, fy-headY) <= headR
			dx, dy := (fx-bodyX)/bodyRX, (fy-bodyY)/bodyRY
			body := dx*dx+dy*dy <= 1
			if head || body {
				img.SetNRGBA(x, y, placeholderFill)
			}
		}
	}
	return img
}
