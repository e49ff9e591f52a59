package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/linuxmatters/greetgif/internal/cli"
	"github.com/linuxmatters/greetgif/internal/config"
	"github.com/linuxmatters/greetgif/internal/pipeline"
	"github.com/linuxmatters/greetgif/internal/template"
	"github.com/linuxmatters/greetgif/internal/text"
)

// version is set via ldflags at build time
// Local dev builds: "dev"
// Release builds: git tag (e.g. "v0.1.0")
var version = "dev"

// Globals are the flags shared by every command. Set flags override
// greetgif.yaml and GREETGIF_* environment values.
type Globals struct {
	Config       string `help:"Config file." type:"path" placeholder:"FILE" env:"GREETGIF_CONFIG"`
	TemplatesDir string `name:"templates-dir" help:"Template directory." type:"path" placeholder:"DIR"`
	Catalog      string `help:"SQLite template catalog." type:"path" placeholder:"FILE"`
	Workers      int    `help:"Parallel frame composites per render (0 uses all CPUs)." default:"-1"`
	Dither       bool   `help:"Use error diffusion when quantising frames."`
}

var CLI struct {
	Globals

	Render    RenderCmd    `cmd:"" help:"Render one greeting GIF."`
	Previews  PreviewsCmd  `cmd:"" help:"Render a preview GIF and thumbnail for each template."`
	Templates TemplatesCmd `cmd:"" help:"Manage templates."`
	Serve     ServeCmd     `cmd:"" help:"Serve the render API over HTTP."`
	Version   VersionCmd   `cmd:"" help:"Show version information."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("greetgif"),
		kong.Description("Turn a photo and a few words into an animated greeting GIF."),
		kong.Vars{"version": version},
		kong.UsageOnError(),
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	if err := ctx.Run(&CLI.Globals); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

// config loads the configuration and applies the global flag overrides.
func (g *Globals) config() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.TemplatesDir != "" {
		cfg.TemplatesDir = g.TemplatesDir
	}
	if g.Catalog != "" {
		cfg.CatalogPath = g.Catalog
	}
	if g.Workers >= 0 {
		cfg.Workers = g.Workers
	}
	return cfg, nil
}

// app holds the components built from the configuration.
type app struct {
	cfg      *config.Config
	files    *template.FileRepository
	repo     template.Repository
	renderer *pipeline.Renderer
	catalog  *template.SQLiteRepository
}

func (g *Globals) open() (*app, error) {
	cfg, err := g.config()
	if err != nil {
		return nil, err
	}

	fonts, err := text.NewLibrary()
	if err != nil {
		return nil, fmt.Errorf("loading fonts: %w", err)
	}
	for _, dir := range cfg.FontDirs {
		if err := fonts.LoadDir(dir); err != nil {
			return nil, fmt.Errorf("loading fonts from %s: %w", dir, err)
		}
	}

	a := &app{cfg: cfg, files: template.NewFileRepository(cfg.TemplatesDir)}
	a.repo = a.files
	if cfg.CatalogPath != "" {
		if a.catalog, err = template.OpenSQLite(cfg.CatalogPath); err != nil {
			return nil, err
		}
		a.repo = a.catalog
	}

	a.renderer = pipeline.New(a.repo, template.NewFrameLoader(a.files.Assets()), fonts, pipeline.Options{
		Workers:      cfg.Workers,
		FrameCap:     cfg.FrameCap,
		DefaultPhoto: cfg.DefaultPhoto,
		Dither:       g.Dither,
	})
	return a, nil
}

func (a *app) Close() error {
	if a.catalog != nil {
		return a.catalog.Close()
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// greeting turns a literal \n typed on the command line into a line break.
func greeting(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	cli.PrintVersion(version)
	return nil
}
