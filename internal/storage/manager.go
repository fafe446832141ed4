package storage

import (
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
)

// Default options for PageManager.
const (
	DefaultInitialPages = 16
	MinGrowthPages      = 8
)

// Errors for PageManager operations.
var (
	ErrInvalidPageID    = errors.New("invalid page ID")
	ErrPageOutOfRange   = errors.New("page ID out of range")
	ErrPageAlreadyFree  = errors.New("page is already free")
	ErrCannotFreeHeader = errors.New("cannot free header page")
	ErrFileClosed       = errors.New("page manager is closed")
	ErrReadOnly         = errors.New("page manager is read-only")
)

// Options configures the PageManager.
type Options struct {
	InitialPages int  // Initial number of pages to allocate
	CreateIfNew  bool // Create file if it doesn't exist
	ReadOnly     bool // Open in read-only mode
	SyncOnWrite  bool // Sync to disk after each write
}

// DefaultOptions returns the default PageManager options.
func DefaultOptions() Options {
	return Options{
		InitialPages: DefaultInitialPages,
		CreateIfNew:  true,
	}
}

// PageManager handles page allocation, deallocation and I/O on a file of
// fixed-size pages.
type PageManager struct {
	mu          sync.RWMutex
	file        *os.File
	header      *FileHeader
	totalPages  uint64
	freeList    *FreeList
	path        string
	readOnly    bool
	syncOnWrite bool
	closed      bool
}

// OpenPageManager opens or creates a page file at path.
func OpenPageManager(path string, opts Options) (*PageManager, error) {
	if opts.InitialPages <= 0 {
		opts.InitialPages = DefaultInitialPages
	}

	pm := &PageManager{
		freeList:    NewFreeList(),
		path:        path,
		readOnly:    opts.ReadOnly,
		syncOnWrite: opts.SyncOnWrite,
	}

	_, err := os.Stat(path)
	exists := err == nil
	if !exists && (!opts.CreateIfNew || opts.ReadOnly) {
		return nil, errors.Wrapf(os.ErrNotExist, "open %s", path)
	}

	flags := os.O_RDWR
	if opts.ReadOnly {
		flags = os.O_RDONLY
	} else if !exists {
		flags |= os.O_CREATE
	}

	pm.file, err = os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open page file")
	}

	if exists {
		err = pm.loadExisting()
	} else {
		err = pm.initializeNew(opts.InitialPages)
	}
	if err != nil {
		pm.file.Close()
		if !exists {
			os.Remove(path)
		}
		return nil, err
	}

	return pm, nil
}

// loadExisting reads the header and the free list chain.
func (pm *PageManager) loadExisting() error {
	buf := make([]byte, FileHeaderSize)
	if _, err := pm.file.ReadAt(buf, 0); err != nil {
		return errors.Wrap(err, "failed to read header")
	}

	pm.header = &FileHeader{}
	if err := pm.header.DeserializeAndValidate(buf); err != nil {
		return errors.Wrap(err, "invalid header")
	}
	pm.totalPages = pm.header.TotalPages

	var chain []*Page
	for id := pm.header.FreeListHead; id != InvalidPageID; {
		page, err := pm.readPageInternal(id)
		if err != nil {
			return errors.Wrap(err, "failed to load free list")
		}
		chain = append(chain, page)
		id = NextPageID(page)
	}
	pm.freeList.LoadFromPages(chain)

	// The chain pages themselves are released once loaded.
	for _, page := range chain {
		pm.freeList.Push(page.Header.PageID)
	}
	pm.header.FreeListHead = InvalidPageID
	return nil
}

// initializeNew writes a fresh header and marks every other page free.
func (pm *PageManager) initializeNew(initialPages int) error {
	pm.header = NewFileHeader()
	pm.header.TotalPages = uint64(initialPages)
	pm.totalPages = uint64(initialPages)

	if err := pm.file.Truncate(int64(initialPages) * PageSize); err != nil {
		return errors.Wrap(err, "failed to size file")
	}
	for i := initialPages - 1; i >= 1; i-- {
		pm.freeList.Push(PageID(i))
	}

	if err := pm.saveHeaderLocked(); err != nil {
		return err
	}
	return pm.file.Sync()
}

// Close persists the free list and header and closes the file.
func (pm *PageManager) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.closed {
		return ErrFileClosed
	}
	pm.closed = true

	if !pm.readOnly {
		if err := pm.saveFreeListLocked(); err != nil {
			pm.file.Close()
			return errors.Wrap(err, "failed to save free list")
		}
		if err := pm.saveHeaderLocked(); err != nil {
			pm.file.Close()
			return errors.Wrap(err, "failed to save header")
		}
		if err := pm.file.Sync(); err != nil {
			pm.file.Close()
			return errors.Wrap(err, "failed to sync file")
		}
	}

	return pm.file.Close()
}

// saveFreeListLocked writes the free list as a chain of pages taken from
// the free list itself. Must be called with lock held.
func (pm *PageManager) saveFreeListLocked() error {
	free := pm.freeList.PeekAll()
	if len(free) == 0 {
		pm.header.FreeListHead = InvalidPageID
		return nil
	}

	// Each chain page consumes one free id and stores the rest.
	var next PageID
	for len(free) > 0 {
		holder := free[len(free)-1]
		free = free[:len(free)-1]

		n := len(free)
		if n > MaxFreeListEntriesPerPage {
			n = MaxFreeListEntriesPerPage
		}
		batch := free[len(free)-n:]
		free = free[:len(free)-n]

		page := NewPage(holder, PageTypeFree)
		SetNextPageID(page, next)
		for i, id := range batch {
			off := 8 + i*FreeListEntrySize
			putPageID(page.Data[off:], id)
		}
		page.Header.ItemCount = uint16(len(batch))

		if err := pm.writePageInternal(page); err != nil {
			return err
		}
		next = holder
	}

	pm.header.FreeListHead = next
	return nil
}

// saveHeaderLocked writes the header page. Must be called with lock held.
func (pm *PageManager) saveHeaderLocked() error {
	pm.header.TotalPages = pm.totalPages
	buf, err := pm.header.Serialize()
	if err != nil {
		return err
	}
	_, err = pm.file.WriteAt(buf, 0)
	return err
}

// AllocatePage allocates a page of the given type.
func (pm *PageManager) AllocatePage(pageType PageType) (PageID, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.closed {
		return InvalidPageID, ErrFileClosed
	}
	if pm.readOnly {
		return InvalidPageID, ErrReadOnly
	}

	id, ok := pm.freeList.Pop()
	if !ok {
		id = PageID(pm.totalPages)
		if err := pm.growFileLocked(MinGrowthPages); err != nil {
			return InvalidPageID, err
		}
	}

	if err := pm.writePageInternal(NewPage(id, pageType)); err != nil {
		pm.freeList.Push(id)
		return InvalidPageID, err
	}
	return id, nil
}

// growFileLocked extends the file; the first new page is handed to the
// caller, the rest go to the free list. Must be called with lock held.
func (pm *PageManager) growFileLocked(numPages int) error {
	newTotal := pm.totalPages + uint64(numPages)
	if err := pm.file.Truncate(int64(newTotal) * PageSize); err != nil {
		return errors.Wrap(err, "failed to grow file")
	}

	old := pm.totalPages
	pm.totalPages = newTotal
	for i := newTotal - 1; i > old; i-- {
		pm.freeList.Push(PageID(i))
	}
	return nil
}

// FreePage returns a page to the free list.
func (pm *PageManager) FreePage(id PageID) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.closed {
		return ErrFileClosed
	}
	if pm.readOnly {
		return ErrReadOnly
	}
	if id == InvalidPageID {
		return ErrCannotFreeHeader
	}
	if uint64(id) >= pm.totalPages {
		return errors.Wrapf(ErrPageOutOfRange, "page %d", id)
	}
	if pm.freeList.Contains(id) {
		return errors.Wrapf(ErrPageAlreadyFree, "page %d", id)
	}

	if err := pm.writePageInternal(NewPage(id, PageTypeFree)); err != nil {
		return err
	}
	pm.freeList.Push(id)
	return nil
}

// ReadPage reads a page from disk.
func (pm *PageManager) ReadPage(id PageID) (*Page, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if pm.closed {
		return nil, ErrFileClosed
	}
	return pm.readPageInternal(id)
}

func (pm *PageManager) readPageInternal(id PageID) (*Page, error) {
	if id == InvalidPageID {
		return nil, ErrInvalidPageID
	}
	if uint64(id) >= pm.totalPages {
		return nil, errors.Wrapf(ErrPageOutOfRange, "page %d", id)
	}

	buf := make([]byte, PageSize)
	n, err := pm.file.ReadAt(buf, int64(id)*PageSize)
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "failed to read page %d", id)
	}
	if n < PageSize {
		return nil, errors.Newf("incomplete page read: got %d bytes, expected %d", n, PageSize)
	}

	page := &Page{}
	if err := page.Deserialize(buf); err != nil {
		return nil, err
	}
	return page, nil
}

// WritePage writes a page to disk.
func (pm *PageManager) WritePage(page *Page) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.closed {
		return ErrFileClosed
	}
	if pm.readOnly {
		return ErrReadOnly
	}
	return pm.writePageInternal(page)
}

func (pm *PageManager) writePageInternal(page *Page) error {
	id := page.Header.PageID
	if id == InvalidPageID {
		return ErrInvalidPageID
	}
	if uint64(id) >= pm.totalPages {
		return errors.Wrapf(ErrPageOutOfRange, "page %d", id)
	}

	buf, err := page.Serialize()
	if err != nil {
		return err
	}
	if _, err := pm.file.WriteAt(buf, int64(id)*PageSize); err != nil {
		return errors.Wrapf(err, "failed to write page %d", id)
	}
	if pm.syncOnWrite {
		return pm.file.Sync()
	}
	return nil
}

// Sync writes the header and flushes the file.
func (pm *PageManager) Sync() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.closed {
		return ErrFileClosed
	}
	if !pm.readOnly {
		if err := pm.saveHeaderLocked(); err != nil {
			return err
		}
	}
	return pm.file.Sync()
}

// Root returns the root page recorded in the header.
func (pm *PageManager) Root() PageID {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.header.Root
}

// SetRoot records the root page in the header.
func (pm *PageManager) SetRoot(id PageID) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.closed {
		return ErrFileClosed
	}
	pm.header.Root = id
	return pm.saveHeaderLocked()
}

// TotalPages returns the total number of pages in the file.
func (pm *PageManager) TotalPages() uint64 {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.totalPages
}

// FreePageCount returns the number of free pages.
func (pm *PageManager) FreePageCount() int {
	return pm.freeList.Count()
}

// Path returns the file path.
func (pm *PageManager) Path() string {
	return pm.path
}

// Stats holds page file statistics.
type Stats struct {
	TotalPages    uint64
	FreePages     uint64
	UsedPages     uint64
	FileSizeBytes int64
}

// Stats returns current statistics.
func (pm *PageManager) Stats() Stats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	free := uint64(pm.freeList.Count())
	return Stats{
		TotalPages:    pm.totalPages,
		FreePages:     free,
		UsedPages:     pm.totalPages - free - 1,
		FileSizeBytes: int64(pm.totalPages) * PageSize,
	}
}
