// Package template stores greeting templates: their metadata, the ordered
// background frames and the layout the compositor follows.
package template

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"regexp"

	"github.com/linuxmatters/greetgif/internal/errdefs"
	"github.com/linuxmatters/greetgif/internal/layout"
	"gopkg.in/yaml.v3"
)

// FileName is the template document inside a template directory.
const FileName = "template.yaml"

// Template is one animated greeting design. Frames and Thumbnail are slash
// separated paths relative to the asset root.
type Template struct {
	ID          string        `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	Premium     bool          `yaml:"premium,omitempty" json:"premium"`
	Frames      []string      `yaml:"frames" json:"frames"`
	Thumbnail   string        `yaml:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	Layout      layout.Layout `yaml:"layout" json:"layout"`
}

// Repository looks templates up by ID.
type Repository interface {
	Get(ctx context.Context, id string) (*Template, error)
	List(ctx context.Context) ([]*Template, error)
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidID reports whether id is usable as a template ID and directory name.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Validate checks the template and its layout.
func (t *Template) Validate() error {
	if !ValidID(t.ID) {
		return errdefs.Configf("template id %q is invalid", t.ID)
	}
	if t.Name == "" {
		return errdefs.Configf("template %s: name is required", t.ID)
	}
	if len(t.Frames) == 0 {
		return errdefs.Configf("template %s: at least one frame is required", t.ID)
	}
	for i, f := range t.Frames {
		if !fs.ValidPath(f) || f == "." {
			return errdefs.Configf("template %s: frame %d has invalid path %q", t.ID, i, f)
		}
	}
	if err := t.Layout.Validate(); err != nil {
		return fmt.Errorf("template %s: %w", t.ID, err)
	}
	return nil
}

// Decode reads a template document, applies layout defaults and validates it.
func Decode(r io.Reader) (*Template, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var t Template
	if err := dec.Decode(&t); err != nil {
		return nil, errdefs.Config(err, "decoding template")
	}
	t.Layout.ApplyDefaults()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Encode writes t as a template document.
func Encode(w io.Writer, t *Template) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return err
	}
	return enc.Close()
}
