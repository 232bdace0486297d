package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveSnapshot stores a serialized analysis result of root and returns the
// snapshot with its new id.
func (s *Store) SaveSnapshot(root string, fileCount int, result []byte) (*Snapshot, error) {
	snap := &Snapshot{
		ID:        uuid.New().String(),
		Root:      root,
		CreatedAt: time.Now().UTC(),
		FileCount: fileCount,
		Result:    result,
	}
	_, err := s.db.Exec(
		`INSERT INTO snapshots (id, root, created_at, file_count, result) VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.Root, snap.CreatedAt, snap.FileCount, string(snap.Result),
	)
	if err != nil {
		return nil, fmt.Errorf("store: save snapshot: %w", err)
	}
	return snap, nil
}

// LatestSnapshot returns the most recent snapshot of root, or nil, nil when
// there is none.
func (s *Store) LatestSnapshot(root string) (*Snapshot, error) {
	return s.scanSnapshot(s.db.QueryRow(
		`SELECT id, root, created_at, file_count, result FROM snapshots
		 WHERE root = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, root,
	))
}

// SnapshotByID returns the snapshot with id, or nil, nil when it does not
// exist.
func (s *Store) SnapshotByID(id string) (*Snapshot, error) {
	return s.scanSnapshot(s.db.QueryRow(
		`SELECT id, root, created_at, file_count, result FROM snapshots WHERE id = ?`, id,
	))
}

func (s *Store) scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var (
		snap   Snapshot
		result string
	)
	err := row.Scan(&snap.ID, &snap.Root, &snap.CreatedAt, &snap.FileCount, &result)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read snapshot: %w", err)
	}
	snap.Result = []byte(result)
	return &snap, nil
}
