// Package text measures, wraps and draws greeting text with TrueType fonts.
package text

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
)

// FallbackFamily is used when none of a layout's families are registered.
const FallbackFamily = "Go"

type variant struct {
	regular *truetype.Font
	bold    *truetype.Font
}

// Library holds parsed fonts keyed by family name. Parsed fonts are shared;
// faces are not, so Face returns a new one per call.
type Library struct {
	mu       sync.RWMutex
	families map[string]*variant
	names    map[string]string // folded key -> display name
}

// NewLibrary returns a library preloaded with the embedded Go fonts.
func NewLibrary() (*Library, error) {
	l := &Library{
		families: make(map[string]*variant),
		names:    make(map[string]string),
	}
	builtin := []struct {
		family string
		bold   bool
		data   []byte
	}{
		{"Go", false, goregular.TTF},
		{"Go", true, gobold.TTF},
		{"Go Mono", false, gomono.TTF},
		{"Go Mono", true, gomonobold.TTF},
	}
	for _, b := range builtin {
		if err := l.Register(b.family, b.bold, b.data); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Register parses TTF data and files it under family.
func (l *Library) Register(family string, bold bool, data []byte) error {
	f, err := truetype.Parse(data)
	if err != nil {
		return fmt.Errorf("failed to parse font %q: %w", family, err)
	}
	l.add(family, bold, f)
	return nil
}

func (l *Library) add(family string, bold bool, f *truetype.Font) {
	key := foldFamily(family)
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.families[key]
	if !ok {
		v = &variant{}
		l.families[key] = v
		l.names[key] = family
	}
	if bold {
		v.bold = f
	} else {
		v.regular = f
	}
}

// LoadDir registers every .ttf file below dir under the family name stored
// in the font itself.
func (l *Library) LoadDir(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".ttf") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read font: %w", err)
		}
		f, err := truetype.Parse(data)
		if err != nil {
			return fmt.Errorf("failed to parse font %s: %w", path, err)
		}
		family := f.Name(truetype.NameIDFontFamily)
		if family == "" {
			family = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		sub := strings.ToLower(f.Name(truetype.NameIDFontSubfamily))
		l.add(family, strings.Contains(sub, "bold"), f)
		return nil
	})
}

// Families lists registered family names in sorted order.
func (l *Library) Families() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.names))
	for _, name := range l.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Face resolves the first registered family in a comma separated list, like
// a CSS font-family declaration, and returns a face at size pixels. A bold
// request falls back to the regular weight of the same family.
func (l *Library) Face(families string, size float64, bold bool) font.Face {
	f := l.resolve(families, bold)
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func (l *Library) resolve(families string, bold bool) *truetype.Font {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, name := range append(strings.Split(families, ","), FallbackFamily) {
		v, ok := l.families[foldFamily(name)]
		if !ok {
			continue
		}
		if bold && v.bold != nil {
			return v.bold
		}
		if v.regular != nil {
			return v.regular
		}
		return v.bold
	}
	// NewLibrary always registers the fallback family
	panic("text: fallback font family missing")
}

func foldFamily(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, `"'`)
	return strings.ToLower(name)
}
