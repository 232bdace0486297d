package arbor

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrNoCache is returned by snapshot operations on an Analyzer created
// without WithCache.
var ErrNoCache = errors.New("arbor: cache disabled")

// SaveSnapshot stores res in the cache database under its root.
func (a *Analyzer) SaveSnapshot(res *AnalysisResult) (*Snapshot, error) {
	if a.store == nil {
		return nil, ErrNoCache
	}
	var buf bytes.Buffer
	if err := res.Encode(&buf, FormatJSON); err != nil {
		return nil, err
	}
	root := res.Root
	if root == "" {
		root = a.root
	}
	return a.store.SaveSnapshot(root, len(res.FileAnalyses), buf.Bytes())
}

// LatestSnapshot returns the most recent snapshot of root, or of the project
// root when root is empty. It returns nil, nil when there is none.
func (a *Analyzer) LatestSnapshot(root string) (*AnalysisResult, error) {
	if a.store == nil {
		return nil, ErrNoCache
	}
	if root == "" {
		root = a.root
	}
	snap, err := a.store.LatestSnapshot(root)
	if err != nil || snap == nil {
		return nil, err
	}
	return decodeSnapshot(snap)
}

// SnapshotByID returns the snapshot with id, or nil, nil when there is none.
func (a *Analyzer) SnapshotByID(id string) (*AnalysisResult, error) {
	if a.store == nil {
		return nil, ErrNoCache
	}
	snap, err := a.store.SnapshotByID(id)
	if err != nil || snap == nil {
		return nil, err
	}
	return decodeSnapshot(snap)
}

func decodeSnapshot(snap *Snapshot) (*AnalysisResult, error) {
	res, err := Decode(bytes.NewReader(snap.Result), FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("arbor: snapshot %s: %w", snap.ID, err)
	}
	return res, nil
}
