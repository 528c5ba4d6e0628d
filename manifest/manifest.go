// Package manifest exports a dataset's index into a SQLite database so it
// can be inspected or joined against training logs without re-parsing the
// annotation documents.
package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/model-collapse/ctseg/dataset"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

const schema = `
DROP TABLE IF EXISTS labels;
DROP TABLE IF EXISTS entries;
DROP TABLE IF EXISTS shapes;
CREATE TABLE labels (
	channel INTEGER PRIMARY KEY,
	name    TEXT NOT NULL
);
CREATE TABLE entries (
	global_index INTEGER PRIMARY KEY,
	document     TEXT NOT NULL,
	local_index  INTEGER NOT NULL,
	image_id     INTEGER NOT NULL,
	name         TEXT NOT NULL,
	width        INTEGER NOT NULL,
	height       INTEGER NOT NULL,
	image_path   TEXT,
	split        TEXT
);
CREATE TABLE shapes (
	global_index INTEGER NOT NULL,
	seq          INTEGER NOT NULL,
	kind         TEXT NOT NULL,
	channel      INTEGER NOT NULL,
	points       TEXT NOT NULL,
	PRIMARY KEY (global_index, seq)
);`

// Split names the partition each global index belongs to.
type Split struct {
	Train []int
	Val   []int
}

func (s *Split) lookup(n int) []sql.NullString {
	out := make([]sql.NullString, n)
	if s == nil {
		return out
	}
	for _, i := range s.Train {
		if i >= 0 && i < n {
			out[i] = sql.NullString{String: "train", Valid: true}
		}
	}
	for _, i := range s.Val {
		if i >= 0 && i < n {
			out[i] = sql.NullString{String: "val", Valid: true}
		}
	}
	return out
}

// Open opens a SQLite database with the modernc.org/sqlite driver. Pass a
// file path or ":memory:".
func Open(dsn string) (*sql.DB, error) { return sql.Open("sqlite", dsn) }

// Write replaces the manifest tables in db with the content of ds. split may
// be nil. Images that cannot be resolved are written with a NULL path.
func Write(ctx context.Context, db *sql.DB, ds *dataset.Dataset, split *Split) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("manifest: create schema: %w", err)
	}

	labels := ds.Labels()
	for c := 0; c < labels.Len(); c++ {
		if _, err = tx.ExecContext(ctx, `INSERT INTO labels(channel, name) VALUES (?, ?)`, c, labels.Name(c)); err != nil {
			return fmt.Errorf("manifest: insert label: %w", err)
		}
	}

	entryStmt, err := tx.PrepareContext(ctx, `INSERT INTO entries
		(global_index, document, local_index, image_id, name, width, height, image_path, split)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer entryStmt.Close()

	shapeStmt, err := tx.PrepareContext(ctx, `INSERT INTO shapes
		(global_index, seq, kind, channel, points) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer shapeStmt.Close()

	docs := ds.Documents()
	splits := split.lookup(ds.Len())
	for i := 0; i < ds.Len(); i++ {
		e, err := ds.Entry(i)
		if err != nil {
			return err
		}
		ann := e.Annotation

		var path sql.NullString
		p, rerr := ds.Resolve(ann.Name)
		switch {
		case rerr == nil:
			path = sql.NullString{String: p, Valid: true}
		case !errors.Is(rerr, dataset.ErrImageNotFound):
			return rerr
		}

		if _, err := entryStmt.ExecContext(ctx, i, docs[e.Document].Path(), e.Local, ann.ID, ann.Name,
			ann.Width, ann.Height, path, splits[i]); err != nil {
			return fmt.Errorf("manifest: insert entry %d: %w", i, err)
		}
		for seq, s := range ann.Shapes {
			if _, err := shapeStmt.ExecContext(ctx, i, seq, s.Kind.String(), s.Label, s.Raw); err != nil {
				return fmt.Errorf("manifest: insert shape %d/%d: %w", i, seq, err)
			}
		}
	}

	return tx.Commit()
}
