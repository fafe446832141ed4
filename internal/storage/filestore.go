package storage

import (
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/errors"
)

// Head and overflow page layouts inside Page.Data:
//
//	head:     [next PageID 8][image length 4][payload...]
//	overflow: [next PageID 8][payload...]
const (
	headPrefix        = 12
	overflowPrefix    = 8
	headCapacity      = PageDataSize - headPrefix
	overflowCapacity  = PageDataSize - overflowPrefix
	DefaultCachePages = 256
)

// ErrCorruptedPage is returned when a page chain does not decode.
var ErrCorruptedPage = errors.New("corrupted page")

// FileStore is a PageStore over a PageManager file. Each image lives in a
// head page of type PageTypeIndex, continued in a chain of overflow pages
// when it does not fit.
type FileStore struct {
	mu    sync.Mutex
	pm    *PageManager
	cache *LRUCache
}

var _ PageStore = (*FileStore)(nil)

// NewFileStore wraps pm with a cache of DefaultCachePages images.
func NewFileStore(pm *PageManager) *FileStore {
	return NewFileStoreWithCache(pm, DefaultCachePages)
}

// NewFileStoreWithCache wraps pm with a cache of cachePages images.
func NewFileStoreWithCache(pm *PageManager, cachePages int) *FileStore {
	return &FileStore{pm: pm, cache: NewLRUCache(cachePages)}
}

// OpenFileStore opens the page file at path and wraps it.
func OpenFileStore(path string, opts Options) (*FileStore, error) {
	pm, err := OpenPageManager(path, opts)
	if err != nil {
		return nil, err
	}
	return NewFileStore(pm), nil
}

func (s *FileStore) Allocate() (PageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pm.AllocatePage(PageTypeIndex)
}

func (s *FileStore) Free(id PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.readHead(id)
	if err != nil {
		return err
	}
	if err := s.freeChain(NextPageID(head)); err != nil {
		return err
	}
	s.cache.Remove(id)
	return s.pm.FreePage(id)
}

func (s *FileStore) Read(id PageID) ([]byte, error) {
	if data, ok := s.cache.Get(id); ok {
		return append([]byte(nil), data...), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.readHead(id)
	if err != nil {
		return nil, err
	}

	total := int(binary.LittleEndian.Uint32(head.Data[8:12]))
	out := make([]byte, 0, total)
	n := min(total, headCapacity)
	out = append(out, head.Data[headPrefix:headPrefix+n]...)

	for next := NextPageID(head); len(out) < total; {
		if next == InvalidPageID {
			return nil, errors.Wrapf(ErrCorruptedPage, "page %d: chain ends at %d of %d bytes", id, len(out), total)
		}
		page, err := s.pm.ReadPage(next)
		if err != nil {
			return nil, err
		}
		if page.Header.PageType != PageTypeOverflow {
			return nil, errors.Wrapf(ErrCorruptedPage, "page %d: overflow %d has type %s", id, next, page.Header.PageType)
		}
		n := min(total-len(out), overflowCapacity)
		out = append(out, page.Data[overflowPrefix:overflowPrefix+n]...)
		next = NextPageID(page)
	}

	s.cache.Put(id, out)
	return append([]byte(nil), out...), nil
}

func (s *FileStore) Write(id PageID, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.readHead(id)
	if err != nil {
		return err
	}
	if err := s.freeChain(NextPageID(head)); err != nil {
		return err
	}

	// Write overflow pages back to front so each knows its successor.
	rest := data[min(len(data), headCapacity):]
	var chunks [][]byte
	for len(rest) > 0 {
		n := min(len(rest), overflowCapacity)
		chunks = append(chunks, rest[:n])
		rest = rest[n:]
	}

	var next PageID
	for i := len(chunks) - 1; i >= 0; i-- {
		oid, err := s.pm.AllocatePage(PageTypeOverflow)
		if err != nil {
			return err
		}
		page := NewPage(oid, PageTypeOverflow)
		SetNextPageID(page, next)
		copy(page.Data[overflowPrefix:], chunks[i])
		page.Header.FreeSpace = uint16(overflowCapacity - len(chunks[i]))
		if err := s.pm.WritePage(page); err != nil {
			return err
		}
		next = oid
	}

	page := NewPage(id, PageTypeIndex)
	SetNextPageID(page, next)
	binary.LittleEndian.PutUint32(page.Data[8:12], uint32(len(data)))
	n := copy(page.Data[headPrefix:], data)
	page.Header.FreeSpace = uint16(headCapacity - n)
	if err := s.pm.WritePage(page); err != nil {
		s.cache.Remove(id)
		return err
	}

	s.cache.Put(id, append([]byte(nil), data...))
	return nil
}

func (s *FileStore) Root() PageID { return s.pm.Root() }

func (s *FileStore) SetRoot(id PageID) error { return s.pm.SetRoot(id) }

func (s *FileStore) Sync() error { return s.pm.Sync() }

func (s *FileStore) Close() error {
	s.cache.Clear()
	return s.pm.Close()
}

// Stats returns the statistics of the underlying page file.
func (s *FileStore) Stats() Stats { return s.pm.Stats() }

// CacheHitRatio reports the image cache hit ratio.
func (s *FileStore) CacheHitRatio() float64 { return s.cache.HitRatio() }

func (s *FileStore) readHead(id PageID) (*Page, error) {
	page, err := s.pm.ReadPage(id)
	if err != nil {
		if errors.Is(err, ErrPageOutOfRange) || errors.Is(err, ErrInvalidPageID) {
			return nil, errors.Wrapf(ErrPageNotFound, "page %d", id)
		}
		return nil, err
	}
	if page.Header.PageType != PageTypeIndex {
		return nil, errors.Wrapf(ErrPageNotFound, "page %d has type %s", id, page.Header.PageType)
	}
	return page, nil
}

func (s *FileStore) freeChain(next PageID) error {
	for next != InvalidPageID {
		page, err := s.pm.ReadPage(next)
		if err != nil {
			return err
		}
		if page.Header.PageType != PageTypeOverflow {
			return errors.Wrapf(ErrCorruptedPage, "page %d is not an overflow page", next)
		}
		if err := s.pm.FreePage(next); err != nil {
			return err
		}
		next = NextPageID(page)
	}
	return nil
}
