package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linuxmatters/greetgif/internal/template"
)

func TestGreeting(t *testing.T) {
	if got := greeting(`Happy New Year!\nLove, Sam`); got != "Happy New Year!\nLove, Sam" {
		t.Errorf("greeting = %q", got)
	}
}

func TestGlobalsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greetgif.yaml")
	if err := os.WriteFile(path, []byte("templates_dir: from-file\nworkers: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	g := &Globals{Config: path, Workers: -1}
	cfg, err := g.config()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TemplatesDir != "from-file" || cfg.Workers != 3 {
		t.Errorf("file values lost: %+v", cfg)
	}

	g = &Globals{Config: path, TemplatesDir: "flag", Catalog: "cat.db", Workers: 0}
	if cfg, err = g.config(); err != nil {
		t.Fatal(err)
	}
	if cfg.TemplatesDir != "flag" || cfg.CatalogPath != "cat.db" || cfg.Workers != 0 {
		t.Errorf("flags not applied: %+v", cfg)
	}
}

func TestTemplateTable(t *testing.T) {
	out := templateTable([]*template.Template{
		{ID: "birthday", Name: "Birthday", Frames: []string{"a.png", "b.png"}},
		{ID: "ny", Name: "New Year", Frames: []string{"a.png"}, Premium: true},
	})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("table has %d lines, want 3:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[1], "birthday") || !strings.Contains(lines[1], "2") {
		t.Errorf("row 1 = %q", lines[1])
	}
	if !strings.Contains(lines[2], "New Year") || !strings.Contains(lines[2], "★") {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestOpen_UnknownFontDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greetgif.yaml")
	if err := os.WriteFile(path, []byte("font_dirs: ["+filepath.Join(dir, "missing")+"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (&Globals{Config: path, Workers: -1}).open(); err == nil {
		t.Error("open should fail for a missing font directory")
	}
}
