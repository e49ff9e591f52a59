package ui

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
)

// PreviewConfig holds the size of a terminal thumbnail
type PreviewConfig struct {
	Width  int // Width in terminal cells
	Height int // Height in terminal cells, two pixel rows each
}

// DefaultPreviewConfig suits the default 4:5 portrait canvas.
// A cell is twice as tall as it is wide, so 32x20 cells show 32x40 pixels.
func DefaultPreviewConfig() PreviewConfig {
	return PreviewConfig{
		Width:  32,
		Height: 20,
	}
}

// DownsampleFrame shrinks a frame to the preview grid. Each cell carries two
// vertically stacked pixels, so the grid has 2*Height rows.
func DownsampleFrame(frame image.Image, config PreviewConfig) [][]color.RGBA {
	if config.Width <= 0 || config.Height <= 0 || frame.Bounds().Empty() {
		return nil
	}
	small := imaging.Resize(frame, config.Width, config.Height*2, imaging.Box)

	grid := make([][]color.RGBA, config.Height*2)
	for y := range grid {
		grid[y] = make([]color.RGBA, config.Width)
		for x := range grid[y] {
			c := small.NRGBAAt(x, y)
			// Flatten onto white so transparent areas stay visible
			a := uint32(c.A)
			grid[y][x] = color.RGBA{
				R: uint8((uint32(c.R)*a + 255*(255-a)) / 255),
				G: uint8((uint32(c.G)*a + 255*(255-a)) / 255),
				B: uint8((uint32(c.B)*a + 255*(255-a)) / 255),
				A: 255,
			}
		}
	}
	return grid
}

// RenderPreview draws the grid with ANSI 24-bit colour, using an upper half
// block per cell: foreground for the top pixel, background for the bottom.
func RenderPreview(preview [][]color.RGBA) string {
	if len(preview) < 2 {
		return ""
	}
	width := len(preview[0])

	var sb strings.Builder
	sb.WriteString("  ┌" + strings.Repeat("─", width) + "┐\n")
	for y := 0; y+1 < len(preview); y += 2 {
		sb.WriteString("  │")
		for x := 0; x < width; x++ {
			top, bottom := preview[y][x], preview[y+1][x]
			fmt.Fprintf(&sb, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀\x1b[0m",
				top.R, top.G, top.B, bottom.R, bottom.G, bottom.B)
		}
		sb.WriteString("│\n")
	}
	sb.WriteString("  └" + strings.Repeat("─", width) + "┘\n")
	return sb.String()
}
