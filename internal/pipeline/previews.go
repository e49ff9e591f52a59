package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// PreviewResult is the outcome for one template of a preview batch.
type PreviewResult struct {
	ID        string
	GIF       []byte
	Thumbnail []byte // PNG of the final frame
	Err       error
}

// ProgressFunc is told about each finished template: done of total.
type ProgressFunc func(done, total int, res PreviewResult)

// Previews renders a preview animation and thumbnail for each template in
// ids, or for every template when ids is empty. A failing template is
// recorded in its result and the batch continues; the returned error is set
// only when the batch itself could not run to completion.
func (r *Renderer) Previews(ctx context.Context, ids []string, photo Photo, text string, progress ProgressFunc) ([]PreviewResult, error) {
	if len(ids) == 0 {
		list, err := r.repo.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing templates: %w", err)
		}
		for _, t := range list {
			ids = append(ids, t.ID)
		}
	}

	results := make([]PreviewResult, 0, len(ids))
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		out, err := r.render(ctx, id, photo, text, true)
		res := PreviewResult{ID: id, GIF: out.gif, Thumbnail: out.thumb, Err: err}
		results = append(results, res)
		if progress != nil {
			progress(i+1, len(ids), res)
		}
	}
	return results, nil
}

// WriteFile writes data to path through a temporary file in the same
// directory, so path is either complete or untouched.
func WriteFile(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err = tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
