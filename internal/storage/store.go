package storage

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// Errors for PageStore operations.
var (
	ErrPageNotFound = errors.New("page not found")
	ErrStoreClosed  = errors.New("page store is closed")
)

// PageStore persists variable-length page images under page ids.
// Implementations must be safe for concurrent use.
type PageStore interface {
	// Allocate reserves a new page id holding an empty image.
	Allocate() (PageID, error)
	// Free releases a page id; its image is discarded.
	Free(id PageID) error
	// Read returns the image last written under id.
	Read(id PageID) ([]byte, error)
	// Write replaces the image stored under id.
	Write(id PageID, data []byte) error
	// Root returns the id recorded by SetRoot, or InvalidPageID.
	Root() PageID
	// SetRoot records the entry point page of the store.
	SetRoot(id PageID) error
	// Sync makes written images durable.
	Sync() error
	// Close releases resources held by the store.
	Close() error
}

// MemoryStore is a PageStore held entirely in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	pages  map[PageID][]byte
	free   *FreeList
	next   PageID
	root   PageID
	closed bool
}

var _ PageStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pages: make(map[PageID][]byte),
		free:  NewFreeList(),
		next:  1,
	}
}

func (s *MemoryStore) Allocate() (PageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return InvalidPageID, ErrStoreClosed
	}
	id, ok := s.free.Pop()
	if !ok {
		id = s.next
		s.next++
	}
	s.pages[id] = nil
	return id, nil
}

func (s *MemoryStore) Free(id PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.pages[id]; !ok {
		return errors.Wrapf(ErrPageNotFound, "page %d", id)
	}
	delete(s.pages, id)
	s.free.Push(id)
	return nil
}

func (s *MemoryStore) Read(id PageID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	data, ok := s.pages[id]
	if !ok {
		return nil, errors.Wrapf(ErrPageNotFound, "page %d", id)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Write(id PageID, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.pages[id]; !ok {
		return errors.Wrapf(ErrPageNotFound, "page %d", id)
	}
	img := make([]byte, len(data))
	copy(img, data)
	s.pages[id] = img
	return nil
}

func (s *MemoryStore) Root() PageID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

func (s *MemoryStore) SetRoot(id PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.root = id
	return nil
}

func (s *MemoryStore) Sync() error { return nil }

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.closed = true
	return nil
}

// Len returns the number of allocated pages.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}
