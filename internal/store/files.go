package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Lookup returns the cached analysis of path if it was stored with hash.
// Returns nil, nil on a miss, including when the file was cached under a
// different hash.
func (s *Store) Lookup(path, hash string) (*File, error) {
	var (
		f                    File
		analysis, dependency string
	)
	err := s.db.QueryRow(
		`SELECT id, path, language, hash, analysis, dependencies, analyzed_at
		 FROM files WHERE path = ? AND hash = ?`, path, hash,
	).Scan(&f.ID, &f.Path, &f.Language, &f.Hash, &analysis, &dependency, &f.AnalyzedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: lookup %s: %w", path, err)
	}
	if err := json.Unmarshal([]byte(analysis), &f.Analysis); err != nil {
		return nil, fmt.Errorf("store: decode analysis of %s: %w", path, err)
	}
	if err := json.Unmarshal([]byte(dependency), &f.Dependencies); err != nil {
		return nil, fmt.Errorf("store: decode dependencies of %s: %w", path, err)
	}
	return &f, nil
}

// Put inserts or replaces the cached analysis of f.Path. A zero AnalyzedAt is
// set to now.
func (s *Store) Put(f *File) error {
	return putFile(s.db, f)
}

func putFile(db execer, f *File) error {
	if f.Analysis == nil {
		return fmt.Errorf("store: put %s: nil analysis", f.Path)
	}
	if f.AnalyzedAt.IsZero() {
		f.AnalyzedAt = time.Now().UTC()
	}
	analysis, err := marshalText(f.Analysis)
	if err != nil {
		return fmt.Errorf("store: encode analysis of %s: %w", f.Path, err)
	}
	dependencies, err := marshalText(f.Dependencies)
	if err != nil {
		return fmt.Errorf("store: encode dependencies of %s: %w", f.Path, err)
	}

	_, err = db.Exec(
		`INSERT INTO files (path, language, hash, analysis, dependencies, analyzed_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   language = excluded.language,
		   hash = excluded.hash,
		   analysis = excluded.analysis,
		   dependencies = excluded.dependencies,
		   analyzed_at = excluded.analyzed_at`,
		f.Path, f.Language, f.Hash, analysis, dependencies, f.AnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("store: put %s: %w", f.Path, err)
	}
	return nil
}

// DeleteFiles removes the cached analyses of paths in one transaction.
func (s *Store) DeleteFiles(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: delete files: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM files WHERE path IN (`+placeholderList(len(paths))+`)`,
		stringsToArgs(paths)...,
	); err != nil {
		return fmt.Errorf("store: delete files: %w", err)
	}
	return tx.Commit()
}

// Paths returns every cached path, sorted.
func (s *Store) Paths() ([]string, error) {
	rows, err := s.db.Query(`SELECT path FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("store: list paths: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("store: list paths: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
