package store

import (
	"fmt"
	"sync"
)

// BatchedStore buffers cache writes from concurrent analysis workers so they
// can be committed in a single transaction once the batch is done.
//
// Thread safety: the mutex protects the buffer. Lookups go straight to the
// underlying Store, which is safe for concurrent reads.
type BatchedStore struct {
	store *Store
	mu    sync.Mutex
	files []File
}

// NewBatchedStore creates a BatchedStore backed by s.
func NewBatchedStore(s *Store) *BatchedStore {
	return &BatchedStore{store: s}
}

// Lookup passes through to the underlying Store. Buffered writes are not
// visible until Commit.
func (b *BatchedStore) Lookup(path, hash string) (*File, error) {
	return b.store.Lookup(path, hash)
}

// Put buffers f.
func (b *BatchedStore) Put(f *File) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files = append(b.files, *f)
}

// Len returns the number of buffered writes.
func (b *BatchedStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.files)
}

// Commit writes every buffered file within one transaction and empties the
// buffer. On error nothing is written and the buffer is kept.
func (b *BatchedStore) Commit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.files) == 0 {
		return nil
	}

	tx, err := b.store.db.Begin()
	if err != nil {
		return fmt.Errorf("store: commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	for i := range b.files {
		if err := putFile(tx, &b.files[i]); err != nil {
			return fmt.Errorf("store: commit batch: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit batch: %w", err)
	}
	b.files = nil
	return nil
}
