// Package btree provides the B+ Tree engine behind obaidx indexes.
package btree

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/KilimcininKorOglu/obaidx/internal/logging"
	"github.com/KilimcininKorOglu/obaidx/internal/object"
	"github.com/KilimcininKorOglu/obaidx/internal/storage"
)

// Tree errors.
var (
	ErrKeyNotFound                = errors.New("key not found")
	ErrKeyNotUnique               = errors.New("key is not unique")
	ErrDeletedObject              = errors.New("index has been dropped")
	ErrConcurrentStructuralChange = errors.New("index modified during iteration")
	ErrUniqueRequired             = errors.New("operation requires a unique index")
	ErrPrefixUnsupported          = errors.New("key type does not support prefix search")
	ErrInvalidCapacity            = errors.New("page capacity too small")
	ErrIndexOutOfRange            = errors.New("position out of range")
)

// Entry is one leaf item.
type Entry[K any] struct {
	Key   K
	Value object.Handle
}

// Bound is one end of a key range.
type Bound[K any] struct {
	Key       K
	Inclusive bool
}

// Incl returns an inclusive bound at k.
func Incl[K any](k K) *Bound[K] { return &Bound[K]{Key: k, Inclusive: true} }

// Excl returns an exclusive bound at k.
func Excl[K any](k K) *Bound[K] { return &Bound[K]{Key: k} }

// Options configures a Tree.
type Options struct {
	// Unique rejects duplicate keys.
	Unique bool
	// Capacity overrides the codec's page capacity when non-zero.
	Capacity int
	// Store receives page images on Flush. Defaults to a MemoryStore.
	Store storage.PageStore
	// Logger receives structural events at debug level. Defaults to nop.
	Logger logging.Logger
}

// Meta is the root record of a tree, enough to reopen it from its store.
type Meta struct {
	Root     storage.PageID `json:"root"`
	Height   int            `json:"height"`
	Count    int            `json:"count"`
	Unique   bool           `json:"unique"`
	Capacity int            `json:"capacity"`
}

// Tree is a B+ Tree over keys of type K.
// Mutations take the write lock; lookups and cursor steps take the read
// lock.
type Tree[K any] struct {
	mu       sync.RWMutex
	codec    Codec[K]
	store    storage.PageStore
	log      logging.Logger
	capacity int
	minItems int
	unique   bool

	root          storage.PageID
	height        int
	count         int
	updateCounter uint64
	dropped       bool

	tableMu sync.Mutex
	pages   map[storage.PageID]*page[K]
	dirty   map[storage.PageID]struct{}
}

// New creates an empty tree.
func New[K any](c Codec[K], opts Options) (*Tree[K], error) {
	capacity := opts.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity(c)
	}
	if capacity < MinCapacity {
		return nil, errors.Wrapf(ErrInvalidCapacity, "capacity %d, minimum %d", capacity, MinCapacity)
	}

	t := &Tree[K]{
		codec:    c,
		store:    opts.Store,
		log:      opts.Logger,
		capacity: capacity,
		minItems: capacity / 3,
		unique:   opts.Unique,
		pages:    make(map[storage.PageID]*page[K]),
		dirty:    make(map[storage.PageID]struct{}),
	}
	if t.store == nil {
		t.store = storage.NewMemoryStore()
	}
	if t.log == nil {
		t.log = logging.NewNop()
	}
	return t, nil
}

// Open reopens a tree from the root record m. Unique and Capacity in opts
// are ignored in favor of m.
func Open[K any](c Codec[K], m Meta, opts Options) (*Tree[K], error) {
	opts.Unique = m.Unique
	opts.Capacity = m.Capacity
	t, err := New(c, opts)
	if err != nil {
		return nil, err
	}

	t.root = m.Root
	t.height = m.Height
	t.count = m.Count
	if (t.root == storage.InvalidPageID) != (t.height == 0) {
		return nil, errors.Wrapf(ErrCorruptedPage, "root %d with height %d", m.Root, m.Height)
	}
	if t.root != storage.InvalidPageID {
		if _, err := t.load(t.root); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Meta returns the current root record.
func (t *Tree[K]) Meta() Meta {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Meta{
		Root:     t.root,
		Height:   t.height,
		Count:    t.count,
		Unique:   t.unique,
		Capacity: t.capacity,
	}
}

// Count returns the number of entries.
func (t *Tree[K]) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// Height returns 0 for an empty tree and 1 when the root is a leaf.
func (t *Tree[K]) Height() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.height
}

// Unique reports whether duplicate keys are rejected.
func (t *Tree[K]) Unique() bool { return t.unique }

// Capacity returns the maximum number of keys per page.
func (t *Tree[K]) Capacity() int { return t.capacity }

// Codec returns the key codec.
func (t *Tree[K]) Codec() Codec[K] { return t.codec }

// UpdateCounter returns the mutation counter cursors compare against.
func (t *Tree[K]) UpdateCounter() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updateCounter
}

// load returns the decoded page id, reading it from the store on a miss.
func (t *Tree[K]) load(id storage.PageID) (*page[K], error) {
	t.tableMu.Lock()
	defer t.tableMu.Unlock()

	if p, ok := t.pages[id]; ok {
		return p, nil
	}
	img, err := t.store.Read(id)
	if err != nil {
		return nil, errors.Wrapf(err, "load page %d", id)
	}
	p, err := decodePage(t.codec, id, img)
	if err != nil {
		return nil, err
	}
	t.pages[id] = p
	return p, nil
}

// allocate creates an empty page registered as dirty.
func (t *Tree[K]) allocate(leaf bool) (*page[K], error) {
	id, err := t.store.Allocate()
	if err != nil {
		return nil, errors.Wrap(err, "allocate page")
	}
	p := &page[K]{id: id, leaf: leaf}

	t.tableMu.Lock()
	t.pages[id] = p
	t.dirty[id] = struct{}{}
	t.tableMu.Unlock()
	return p, nil
}

// free releases a page from the table and the store.
func (t *Tree[K]) free(id storage.PageID) error {
	t.tableMu.Lock()
	delete(t.pages, id)
	delete(t.dirty, id)
	t.tableMu.Unlock()

	if err := t.store.Free(id); err != nil {
		return errors.Wrapf(err, "free page %d", id)
	}
	return nil
}

// markDirty schedules p to be written on the next Flush.
func (t *Tree[K]) markDirty(p *page[K]) {
	t.tableMu.Lock()
	t.dirty[p.id] = struct{}{}
	t.tableMu.Unlock()
}

// Flush writes every dirty page to the store.
func (t *Tree[K]) Flush() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.dropped {
		return ErrDeletedObject
	}

	t.tableMu.Lock()
	defer t.tableMu.Unlock()

	for id := range t.dirty {
		p := t.pages[id]
		if err := t.store.Write(id, p.encode(t.codec)); err != nil {
			return errors.Wrapf(err, "flush page %d", id)
		}
		delete(t.dirty, id)
	}
	return nil
}

// DirtyPages returns the number of pages awaiting Flush.
func (t *Tree[K]) DirtyPages() int {
	t.tableMu.Lock()
	defer t.tableMu.Unlock()
	return len(t.dirty)
}

// ResidentPages returns the number of decoded pages held in memory.
func (t *Tree[K]) ResidentPages() int {
	t.tableMu.Lock()
	defer t.tableMu.Unlock()
	return len(t.pages)
}

// Evict drops clean decoded pages from the page table; they are read back
// from the store on next access.
func (t *Tree[K]) Evict() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tableMu.Lock()
	defer t.tableMu.Unlock()

	n := 0
	for id := range t.pages {
		if _, dirty := t.dirty[id]; !dirty {
			delete(t.pages, id)
			n++
		}
	}
	return n
}

// Clear removes every entry and frees every page.
func (t *Tree[K]) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dropped {
		return ErrDeletedObject
	}
	if err := t.purge(); err != nil {
		return err
	}
	t.updateCounter++
	return nil
}

// Drop frees every page; afterwards every operation returns
// ErrDeletedObject.
func (t *Tree[K]) Drop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dropped {
		return ErrDeletedObject
	}
	if err := t.purge(); err != nil {
		return err
	}
	t.dropped = true
	t.updateCounter++
	t.log.Debug("index dropped")
	return nil
}

// purge frees the whole page tree. Must be called with the write lock held.
func (t *Tree[K]) purge() error {
	if t.root != storage.InvalidPageID {
		if err := t.purgePage(t.root, t.height); err != nil {
			return err
		}
	}
	t.root = storage.InvalidPageID
	t.height = 0
	t.count = 0
	return nil
}

func (t *Tree[K]) purgePage(id storage.PageID, height int) error {
	if height > 1 {
		p, err := t.load(id)
		if err != nil {
			return err
		}
		for _, child := range p.children {
			if err := t.purgePage(child, height-1); err != nil {
				return err
			}
		}
	}
	return t.free(id)
}

func (t *Tree[K]) checkLive() error {
	if t.dropped {
		return ErrDeletedObject
	}
	return nil
}
