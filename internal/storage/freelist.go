package storage

import (
	"encoding/binary"
	"sync"
)

// FreeListEntrySize is the size of each entry in a free list page.
const FreeListEntrySize = 8

// MaxFreeListEntriesPerPage is the number of free page ids one page holds
// after the 8-byte next pointer.
const MaxFreeListEntriesPerPage = (PageDataSize - 8) / FreeListEntrySize

// FreeList tracks released page ids for reuse.
// On disk it is a chain of pages, each laid out as:
//   - Bytes 0-7: next free list page (0 if none)
//   - Bytes 8-…: array of free PageIDs (count in the page header)
type FreeList struct {
	mu    sync.Mutex
	pages []PageID
	set   map[PageID]struct{}
}

// NewFreeList creates an empty FreeList.
func NewFreeList() *FreeList {
	return &FreeList{set: make(map[PageID]struct{})}
}

// Count returns the number of free pages.
func (fl *FreeList) Count() int {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return len(fl.pages)
}

// Push adds a page id. Returns false if it was already free.
func (fl *FreeList) Push(id PageID) bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if _, ok := fl.set[id]; ok {
		return false
	}
	fl.pages = append(fl.pages, id)
	fl.set[id] = struct{}{}
	return true
}

// Pop removes the most recently freed page id (LIFO for locality).
func (fl *FreeList) Pop() (PageID, bool) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if len(fl.pages) == 0 {
		return InvalidPageID, false
	}
	id := fl.pages[len(fl.pages)-1]
	fl.pages = fl.pages[:len(fl.pages)-1]
	delete(fl.set, id)
	return id, true
}

// Contains reports whether id is free.
func (fl *FreeList) Contains(id PageID) bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	_, ok := fl.set[id]
	return ok
}

// PeekAll returns a copy of all free page ids.
func (fl *FreeList) PeekAll() []PageID {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	out := make([]PageID, len(fl.pages))
	copy(out, fl.pages)
	return out
}

// LoadFromPages appends the ids stored in a chain of free list pages.
func (fl *FreeList) LoadFromPages(pages []*Page) {
	for _, page := range pages {
		n := int(page.Header.ItemCount)
		for i := 0; i < n && i < MaxFreeListEntriesPerPage; i++ {
			off := 8 + i*FreeListEntrySize
			if id := PageID(binary.LittleEndian.Uint64(page.Data[off:])); id != InvalidPageID {
				fl.Push(id)
			}
		}
	}
}

// NextPageID reads the chain pointer of a free list or overflow page.
func NextPageID(page *Page) PageID {
	return PageID(binary.LittleEndian.Uint64(page.Data[0:8]))
}

// SetNextPageID writes the chain pointer of a free list or overflow page.
func SetNextPageID(page *Page, next PageID) {
	binary.LittleEndian.PutUint64(page.Data[0:8], uint64(next))
}

func putPageID(buf []byte, id PageID) {
	binary.LittleEndian.PutUint64(buf, uint64(id))
}
