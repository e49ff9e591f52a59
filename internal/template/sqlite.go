package template

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/linuxmatters/greetgif/internal/errdefs"
	"gopkg.in/yaml.v3"

	_ "modernc.org/sqlite"
)

// SQLiteRepository keeps the template catalogue in a SQLite database. Frame
// paths still refer to an asset root on disk.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the catalogue at path and migrates its schema.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	r := &SQLiteRepository{db: db}
	if err := r.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) ensureSchema() error {
	_, err := r.db.Exec(`
CREATE TABLE IF NOT EXISTS templates (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    premium INTEGER NOT NULL DEFAULT 0,
    frames TEXT NOT NULL,
    thumbnail TEXT NOT NULL DEFAULT '',
    layout TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`)
	return err
}

// Save inserts or replaces t.
func (r *SQLiteRepository) Save(ctx context.Context, t *Template) error {
	return save(ctx, r.db, t)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func save(ctx context.Context, db execer, t *Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	frames, err := yaml.Marshal(t.Frames)
	if err != nil {
		return fmt.Errorf("encoding frames: %w", err)
	}
	lay, err := yaml.Marshal(&t.Layout)
	if err != nil {
		return fmt.Errorf("encoding layout: %w", err)
	}
	premium := 0
	if t.Premium {
		premium = 1
	}
	_, err = db.ExecContext(ctx, `
INSERT INTO templates (id, name, description, premium, frames, thumbnail, layout, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    description = excluded.description,
    premium = excluded.premium,
    frames = excluded.frames,
    thumbnail = excluded.thumbnail,
    layout = excluded.layout,
    updated_at = excluded.updated_at`,
		t.ID, t.Name, t.Description, premium, string(frames), t.Thumbnail, string(lay))
	if err != nil {
		return fmt.Errorf("saving template %s: %w", t.ID, err)
	}
	return nil
}

const selectTemplate = `SELECT id, name, description, premium, frames, thumbnail, layout FROM templates`

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Template, error) {
	row := r.db.QueryRowContext(ctx, selectTemplate+` WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errdefs.NotFoundf("template %q", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading template %s: %w", id, err)
	}
	return t, nil
}

// List returns the catalogue ordered by ID.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Template, error) {
	rows, err := r.db.QueryContext(ctx, selectTemplate+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes template id. Deleting an unknown ID is a NotFoundError.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errdefs.NotFoundf("template %q", id)
	}
	return nil
}

// Import copies every template of from into the catalogue in one
// transaction and returns how many were written.
func (r *SQLiteRepository) Import(ctx context.Context, from Repository) (int, error) {
	list, err := from.List(ctx)
	if err != nil {
		return 0, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, t := range list {
		if err := save(ctx, tx, t); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(list), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTemplate(s scanner) (*Template, error) {
	var (
		t           Template
		premium     int
		frames, lay string
	)
	if err := s.Scan(&t.ID, &t.Name, &t.Description, &premium, &frames, &t.Thumbnail, &lay); err != nil {
		return nil, err
	}
	t.Premium = premium == 1
	if err := yaml.Unmarshal([]byte(frames), &t.Frames); err != nil {
		return nil, errdefs.Config(err, "template %s: frames", t.ID)
	}
	if err := yaml.Unmarshal([]byte(lay), &t.Layout); err != nil {
		return nil, errdefs.Config(err, "template %s: layout", t.ID)
	}
	t.Layout.ApplyDefaults()
	return &t, nil
}
