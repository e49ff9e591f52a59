package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/linuxmatters/greetgif/internal/cli"
	"github.com/linuxmatters/greetgif/internal/template"
)

type TemplatesCmd struct {
	List     TemplatesListCmd     `cmd:"" default:"1" help:"List templates."`
	Check    TemplatesCheckCmd    `cmd:"" help:"Check that template frame and thumbnail files exist."`
	Generate TemplatesGenerateCmd `cmd:"" help:"Write a sample template into the template directory."`
	Import   TemplatesImportCmd   `cmd:"" help:"Copy the template directory into the SQLite catalog."`
}

type TemplatesListCmd struct{}

func (c *TemplatesListCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.repo.List(context.Background())
	if err != nil {
		return err
	}
	if len(list) == 0 {
		cli.PrintWarning(fmt.Sprintf("no templates in %s", a.cfg.TemplatesDir))
		return nil
	}

	cli.PrintSection(fmt.Sprintf("Templates (%d)", len(list)))
	fmt.Print(templateTable(list))
	return nil
}

func templateTable(list []*template.Template) string {
	idWidth := len("ID")
	for _, t := range list {
		idWidth = max(idWidth, len(t.ID))
	}
	premium := lipgloss.NewStyle().Foreground(cli.Gold).Render("★")

	var sb strings.Builder
	sb.WriteString(cli.KeyStyle.Render(fmt.Sprintf("  %-*s  %6s  %s", idWidth, "ID", "Frames", "Name")))
	sb.WriteString("\n")
	for _, t := range list {
		fmt.Fprintf(&sb, "  %s  %6d  %s", cli.ValueStyle.Render(fmt.Sprintf("%-*s", idWidth, t.ID)), len(t.Frames), t.Name)
		if t.Premium {
			sb.WriteString(" " + premium)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

type TemplatesCheckCmd struct {
	IDs []string `arg:"" optional:"" name:"id" help:"Template ids. Every template when omitted."`
}

func (c *TemplatesCheckCmd) Run(g *Globals) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	ids := c.IDs
	if len(ids) == 0 {
		list, err := a.repo.List(ctx)
		if err != nil {
			return err
		}
		for _, t := range list {
			ids = append(ids, t.ID)
		}
	}

	failed := 0
	for _, id := range ids {
		t, err := a.repo.Get(ctx, id)
		if err == nil {
			err = template.CheckFiles(a.files.Assets(), t)
		}
		if err != nil {
			failed++
			cli.PrintError(err.Error())
			continue
		}
		cli.PrintSuccess(id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d templates have problems", failed, len(ids))
	}
	return nil
}

type TemplatesGenerateCmd struct {
	ID     string `help:"Template id." default:"sample"`
	Name   string `help:"Display name." default:"Sample greeting"`
	Frames int    `help:"Background frame count." default:"4"`
	Width  int    `help:"Canvas width in pixels." default:"800"`
	Height int    `help:"Canvas height in pixels." default:"1000"`
}

func (c *TemplatesGenerateCmd) Run(g *Globals) error {
	cfg, err := g.config()
	if err != nil {
		return err
	}
	repo := template.NewFileRepository(cfg.TemplatesDir)
	t, err := template.GenerateSample(context.Background(), repo, template.SampleOptions{
		ID:     c.ID,
		Name:   c.Name,
		Frames: c.Frames,
		Width:  c.Width,
		Height: c.Height,
	})
	if err != nil {
		return err
	}
	cli.PrintSuccess(fmt.Sprintf("generated template %q with %d frames in %s", t.ID, len(t.Frames), repo.Root()))
	return nil
}

type TemplatesImportCmd struct{}

func (c *TemplatesImportCmd) Run(g *Globals) error {
	cfg, err := g.config()
	if err != nil {
		return err
	}
	if cfg.CatalogPath == "" {
		return fmt.Errorf("no catalog configured: set --catalog or catalog_path")
	}

	catalog, err := template.OpenSQLite(cfg.CatalogPath)
	if err != nil {
		return err
	}
	defer catalog.Close()

	n, err := catalog.Import(context.Background(), template.NewFileRepository(cfg.TemplatesDir))
	if err != nil {
		return err
	}
	cli.PrintSuccess(fmt.Sprintf("imported %d templates into %s", n, cfg.CatalogPath))
	return nil
}
