package template

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/linuxmatters/greetgif/internal/errdefs"
)

// FileRepository reads templates from a directory tree laid out as
// <root>/<id>/template.yaml. Frame paths in the documents are relative to
// root, which doubles as the asset root.
type FileRepository struct {
	root   string
	assets fs.FS
}

func NewFileRepository(root string) *FileRepository {
	return &FileRepository{root: root, assets: os.DirFS(root)}
}

// Root is the directory the repository reads from.
func (r *FileRepository) Root() string {
	return r.root
}

// Assets exposes the asset root for a FrameLoader.
func (r *FileRepository) Assets() fs.FS {
	return r.assets
}

func (r *FileRepository) Get(ctx context.Context, id string) (*Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidID(id) {
		return nil, errdefs.NotFoundf("template %q", id)
	}
	data, err := fs.ReadFile(r.assets, path.Join(id, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errdefs.NotFoundf("template %q", id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", id, err)
	}

	t, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", id, err)
	}
	if t.ID != id {
		return nil, errdefs.Configf("template %s: document declares id %q", id, t.ID)
	}
	return t, nil
}

// List returns every template under root ordered by ID. Directories without
// a template document are skipped; a broken document fails the listing.
func (r *FileRepository) List(ctx context.Context) ([]*Template, error) {
	entries, err := fs.ReadDir(r.assets, ".")
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}

	var out []*Template
	for _, e := range entries {
		if !e.IsDir() || !ValidID(e.Name()) {
			continue
		}
		t, err := r.Get(ctx, e.Name())
		if errdefs.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Save writes t to <root>/<id>/template.yaml, creating the directory.
func (r *FileRepository) Save(ctx context.Context, t *Template) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}
	dir := filepath.Join(r.root, t.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating template directory: %w", err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, t); err != nil {
		return fmt.Errorf("encoding template %s: %w", t.ID, err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing template %s: %w", t.ID, err)
	}
	return nil
}

// Check verifies that every frame and the thumbnail of template id exist.
// A missing file is an AssetError naming the first absent path.
func (r *FileRepository) Check(ctx context.Context, id string) error {
	t, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return CheckFiles(r.assets, t)
}

// CheckFiles verifies that the files t references exist in assets.
func CheckFiles(assets fs.FS, t *Template) error {
	files := append([]string(nil), t.Frames...)
	if t.Thumbnail != "" {
		files = append(files, t.Thumbnail)
	}
	for _, f := range files {
		info, err := fs.Stat(assets, f)
		if err != nil {
			return errdefs.Asset(err, "template %s: missing %s", t.ID, f)
		}
		if info.IsDir() {
			return errdefs.Assetf("template %s: %s is a directory", t.ID, f)
		}
	}
	return nil
}
