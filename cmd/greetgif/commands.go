package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/disintegration/imaging"
	"github.com/linuxmatters/greetgif/internal/cli"
	"github.com/linuxmatters/greetgif/internal/config"
	"github.com/linuxmatters/greetgif/internal/pipeline"
	"github.com/linuxmatters/greetgif/internal/server"
	"github.com/linuxmatters/greetgif/internal/ui"
)

type RenderCmd struct {
	Template string `arg:"" help:"Template id."`
	Output   string `short:"o" help:"Output GIF file." type:"path" default:"greeting.gif"`
	Photo    string `short:"p" help:"Photo file. The default photo is used when omitted." type:"existingfile"`
	Text     string `short:"t" help:"Greeting text. \\n starts a new line."`
}

func (c *RenderCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext()
	defer stop()

	photo := pipeline.DefaultPhoto
	if c.Photo != "" {
		photo = pipeline.PhotoFile(c.Photo)
	}

	start := time.Now()
	out, err := a.renderer.Render(ctx, c.Template, photo, greeting(c.Text))
	if err != nil {
		return fmt.Errorf("rendering %s: %w", c.Template, err)
	}
	if err := pipeline.WriteFile(c.Output, out); err != nil {
		return err
	}

	frames := 0
	if anim, err := gif.DecodeAll(bytes.NewReader(out)); err == nil {
		frames = len(anim.Image)
	}
	cli.PrintRenderSummary(cli.RenderSummary{
		Template: c.Template,
		Output:   c.Output,
		Frames:   frames,
		Size:     int64(len(out)),
		Elapsed:  time.Since(start),
	})
	return nil
}

type PreviewsCmd struct {
	IDs       []string `arg:"" optional:"" name:"id" help:"Template ids. Every template when omitted."`
	Photo     string   `short:"p" help:"Photo file. The default photo is used when omitted." type:"existingfile"`
	Text      string   `short:"t" help:"Preview text. The configured preview text when omitted."`
	NoPreview bool     `help:"Disable the terminal thumbnail preview."`
}

// Run writes <templates-dir>/<id>/preview.gif and thumbnail.png for each
// template, continuing past failures.
func (c *PreviewsCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	photo := pipeline.DefaultPhoto
	if c.Photo != "" {
		photo = pipeline.PhotoFile(c.Photo)
	}
	text := a.cfg.PreviewText
	if c.Text != "" {
		text = greeting(c.Text)
	}

	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(ui.NewPreviewsModel(c.NoPreview))

	var (
		batchErr error
		summary  ui.PreviewsComplete
		done     = make(chan struct{})
	)
	start := time.Now()
	summary.OutputDir = a.cfg.TemplatesDir

	go func() {
		defer close(done)
		_, batchErr = a.renderer.Previews(ctx, c.IDs, photo, text, func(n, total int, res pipeline.PreviewResult) {
			if res.Err == nil {
				res.Err = writePreview(a.cfg.TemplatesDir, res)
			}
			msg := ui.PreviewProgress{
				Done:    n,
				Total:   total,
				ID:      res.ID,
				Err:     res.Err,
				Size:    int64(len(res.GIF)),
				Elapsed: time.Since(start),
			}
			if res.Err != nil {
				summary.Failed++
			} else {
				summary.Written++
				summary.TotalBytes += msg.Size + int64(len(res.Thumbnail))
				if !c.NoPreview {
					msg.Thumbnail = decodeThumbnail(res.Thumbnail)
				}
			}
			p.Send(msg)
		})

		if batchErr != nil {
			p.Quit()
			return
		}
		summary.TotalTime = time.Since(start)
		p.Send(summary)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return fmt.Errorf("running UI: %w", err)
	}
	// Quitting the UI early stops the batch
	cancel()
	<-done

	if batchErr != nil && !errors.Is(batchErr, context.Canceled) {
		return batchErr
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d previews failed", summary.Failed, summary.Failed+summary.Written)
	}
	return nil
}

func writePreview(dir string, res pipeline.PreviewResult) error {
	if err := pipeline.WriteFile(filepath.Join(dir, res.ID, config.PreviewFileName), res.GIF); err != nil {
		return err
	}
	return pipeline.WriteFile(filepath.Join(dir, res.ID, config.ThumbnailFileName), res.Thumbnail)
}

func decodeThumbnail(data []byte) image.Image {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return img
}

type ServeCmd struct {
	Addr string `help:"Listen address. Overrides the configured address." placeholder:"HOST:PORT"`
}

func (c *ServeCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	if c.Addr != "" {
		a.cfg.Server.Addr = c.Addr
	}
	srv := server.New(a.repo, a.renderer, a.cfg.Server, a.cfg.PreviewText)

	ctx, stop := signalContext()
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Start(a.cfg.Server.Addr) }()
	cli.PrintInfo("Listening", a.cfg.Server.Addr)
	cli.PrintInfo("Templates", a.cfg.TemplatesDir)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	cli.PrintSuccess("Server stopped")
	return nil
}
