package index

import (
	"github.com/cockroachdb/errors"

	"github.com/KilimcininKorOglu/obaidx/internal/key"
	"github.com/KilimcininKorOglu/obaidx/internal/logging"
	"github.com/KilimcininKorOglu/obaidx/internal/object"
	"github.com/KilimcininKorOglu/obaidx/internal/storage"
	"github.com/KilimcininKorOglu/obaidx/internal/storage/btree"
)

// Index errors.
var (
	ErrIncompatibleKeyType  = errors.New("key type does not match index key type")
	ErrUnsupportedIndexType = errors.New("no index engine for key type")
)

// Engine errors surfaced unchanged by Index.
var (
	ErrKeyNotFound                = btree.ErrKeyNotFound
	ErrKeyNotUnique               = btree.ErrKeyNotUnique
	ErrDeletedObject              = btree.ErrDeletedObject
	ErrConcurrentStructuralChange = btree.ErrConcurrentStructuralChange
	ErrUniqueRequired             = btree.ErrUniqueRequired
	ErrPrefixUnsupported          = btree.ErrPrefixUnsupported
	ErrIndexOutOfRange            = btree.ErrIndexOutOfRange
)

// Options configures an Index.
type Options struct {
	// Name is used in log fields only.
	Name string
	// Unique rejects duplicate keys.
	Unique bool
	// Mode is the cursor mode of Range, Prefix, Reverse and Cursor.
	Mode btree.Mode
	// Capacity overrides the page capacity derived from the key type.
	Capacity int
	// Objects owns the indexed values. Defaults to a new object.Heap.
	Objects object.Store
	// Store receives the index pages. Defaults to a storage.MemoryStore.
	Store storage.PageStore
	// Logger defaults to a nop logger.
	Logger logging.Logger
}

// Index maps keys of one key.Type to objects of an object.Store.
type Index struct {
	name    string
	keyType key.Type
	mode    btree.Mode
	objects object.Store
	log     logging.Logger
	eng     engine
}

// New creates an empty index over keys of type t.
func New(t key.Type, opts Options) (*Index, error) {
	return open(t, nil, opts)
}

func open(t key.Type, m *btree.Meta, opts Options) (*Index, error) {
	if !t.Valid() {
		return nil, errors.Wrapf(ErrUnsupportedIndexType, "%s", t)
	}
	if opts.Objects == nil {
		opts.Objects = object.NewHeap()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	log := opts.Logger.WithFields("index", opts.Name, "keyType", t.String())

	eng, err := newEngine(t, m, btree.Options{
		Unique:   opts.Unique,
		Capacity: opts.Capacity,
		Store:    opts.Store,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	return &Index{
		name:    opts.Name,
		keyType: t,
		mode:    opts.Mode,
		objects: opts.Objects,
		log:     log,
		eng:     eng,
	}, nil
}

// Name returns the index name.
func (ix *Index) Name() string { return ix.name }

// KeyType returns the declared key type.
func (ix *Index) KeyType() key.Type { return ix.keyType }

// Unique reports whether duplicate keys are rejected.
func (ix *Index) Unique() bool { return ix.eng.meta().Unique }

// Mode returns the cursor mode used by Range, Prefix, Reverse and Cursor.
func (ix *Index) Mode() btree.Mode { return ix.mode }

// Objects returns the object store resolving the indexed values.
func (ix *Index) Objects() object.Store { return ix.objects }

func (ix *Index) checkKey(k key.Key) error {
	if k.Type() != ix.keyType {
		return errors.Wrapf(ErrIncompatibleKeyType, "index %q is %s, key is %s", ix.name, ix.keyType, k.Type())
	}
	return nil
}

func (ix *Index) checkBound(k *key.Key) error {
	if k == nil {
		return nil
	}
	return ix.checkKey(*k)
}

func (ix *Index) resolve(h object.Handle) (any, error) {
	obj, err := ix.objects.Resolve(h)
	if err != nil {
		return nil, errors.Wrapf(err, "index %q", ix.name)
	}
	return obj, nil
}

// Get returns the object stored under k. It fails with ErrKeyNotFound on a
// miss and with ErrKeyNotUnique when k matches more than one entry.
func (ix *Index) Get(k key.Key) (any, error) {
	if err := ix.checkKey(k); err != nil {
		return nil, err
	}
	h, ok, err := ix.eng.get(k)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrKeyNotFound, "%s", k)
	}
	return ix.resolve(h)
}

// GetAll returns every object stored under k in insertion order.
func (ix *Index) GetAll(k key.Key) ([]any, error) {
	if err := ix.checkKey(k); err != nil {
		return nil, err
	}
	hs, err := ix.eng.getAll(k)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(hs))
	for _, h := range hs {
		obj, err := ix.resolve(h)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// Contains reports whether any entry has key k.
func (ix *Index) Contains(k key.Key) (bool, error) {
	if err := ix.checkKey(k); err != nil {
		return false, err
	}
	_, ok, err := ix.eng.get(k)
	if errors.Is(err, ErrKeyNotUnique) {
		return true, nil
	}
	return ok, err
}

// Put stores obj under k. It returns false when the index is unique and k
// is already present.
func (ix *Index) Put(k key.Key, obj any) (bool, error) {
	if err := ix.checkKey(k); err != nil {
		return false, err
	}
	h, fresh, err := ix.persist(obj)
	if err != nil {
		return false, err
	}
	inserted, err := ix.eng.put(k, h)
	if fresh && (err != nil || !inserted) {
		if rerr := ix.objects.Release(h); err == nil {
			err = rerr
		}
	}
	return inserted, err
}

// Set stores obj under k, replacing any previous value, and returns the
// previous object or nil. Only unique indexes support Set.
func (ix *Index) Set(k key.Key, obj any) (any, error) {
	if err := ix.checkKey(k); err != nil {
		return nil, err
	}
	if !ix.Unique() {
		return nil, ErrUniqueRequired
	}
	h, fresh, err := ix.persist(obj)
	if err != nil {
		return nil, err
	}
	old, replaced, err := ix.eng.set(k, h)
	if err != nil {
		if fresh {
			_ = ix.objects.Release(h)
		}
		return nil, err
	}
	if !replaced {
		return nil, nil
	}
	return ix.resolve(old)
}

// persist makes obj persistent and reports whether its handle was
// assigned by this call. A fresh handle is released again when no entry
// ends up referring to it.
func (ix *Index) persist(obj any) (object.Handle, bool, error) {
	if h, ok := ix.objects.HandleOf(obj); ok {
		return h, false, nil
	}
	h, err := ix.objects.MakePersistent(obj)
	return h, err == nil, err
}

// Remove deletes the first entry with key k and returns its object.
func (ix *Index) Remove(k key.Key) (any, error) {
	if err := ix.checkKey(k); err != nil {
		return nil, err
	}
	h, err := ix.eng.remove(k)
	if err != nil {
		return nil, err
	}
	return ix.resolve(h)
}

// RemoveIfExists deletes the entry (k, obj) if present.
func (ix *Index) RemoveIfExists(k key.Key, obj any) (bool, error) {
	if err := ix.checkKey(k); err != nil {
		return false, err
	}
	h, ok := ix.objects.HandleOf(obj)
	if !ok {
		return false, nil
	}
	return ix.eng.removeValue(k, h)
}

// RefKey returns the reference key identifying obj, making obj persistent
// first. It is the key form used by indexes over key.TypeRef.
func (ix *Index) RefKey(obj any) (key.Key, error) {
	h, err := ix.objects.MakePersistent(obj)
	if err != nil {
		return key.Key{}, err
	}
	return key.Ref(h), nil
}

// Range returns the objects with keys between from and till in the given
// order. A nil bound is open.
func (ix *Index) Range(from, till *key.Key, order btree.Order) ([]any, error) {
	c, err := ix.Cursor(from, till, order)
	if err != nil {
		return nil, err
	}
	return c.Collect()
}

// Reverse returns every object in descending key order.
func (ix *Index) Reverse() ([]any, error) {
	return ix.Range(nil, nil, btree.Descending)
}

// Prefix returns the entries whose key starts with p, in ascending order.
// Only string and bytes indexes support it.
func (ix *Index) Prefix(p key.Key) ([]Entry, error) {
	if err := ix.checkKey(p); err != nil {
		return nil, err
	}
	es, err := ix.eng.prefix(p)
	if err != nil {
		return nil, err
	}
	return ix.entries(es)
}

// PrefixSearch returns the entries whose key is a prefix of s.
func (ix *Index) PrefixSearch(s key.Key) ([]Entry, error) {
	if err := ix.checkKey(s); err != nil {
		return nil, err
	}
	es, err := ix.eng.prefixSearch(s)
	if err != nil {
		return nil, err
	}
	return ix.entries(es)
}

func (ix *Index) entries(es []entry) ([]Entry, error) {
	out := make([]Entry, 0, len(es))
	for _, e := range es {
		obj, err := ix.resolve(e.value)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Key: e.key, Value: obj})
	}
	return out, nil
}

// Cursor returns a value cursor over [from, till] in the index mode.
func (ix *Index) Cursor(from, till *key.Key, order btree.Order) (*Cursor, error) {
	return ix.CursorMode(from, till, order, ix.mode)
}

// CursorMode is Cursor with an explicit mode.
func (ix *Index) CursorMode(from, till *key.Key, order btree.Order, mode btree.Mode) (*Cursor, error) {
	d, err := ix.EntriesMode(from, till, order, mode)
	if err != nil {
		return nil, err
	}
	return &Cursor{d: d}, nil
}

// Entries returns a dictionary cursor over [from, till] in the index mode.
func (ix *Index) Entries(from, till *key.Key, order btree.Order) (*DictCursor, error) {
	return ix.EntriesMode(from, till, order, ix.mode)
}

// EntriesMode is Entries with an explicit mode.
func (ix *Index) EntriesMode(from, till *key.Key, order btree.Order, mode btree.Mode) (*DictCursor, error) {
	if err := ix.checkBound(from); err != nil {
		return nil, err
	}
	if err := ix.checkBound(till); err != nil {
		return nil, err
	}
	return &DictCursor{c: ix.eng.cursor(from, till, order, mode), ix: ix}, nil
}

// Count returns the number of entries.
func (ix *Index) Count() int { return ix.eng.count() }

// Height returns the tree height, 0 when empty.
func (ix *Index) Height() int { return ix.eng.height() }

// UpdateCounter returns the structural modification counter.
func (ix *Index) UpdateCounter() uint64 { return ix.eng.updateCounter() }

// IndexOfKey returns the ordinal position of the last entry with key at
// most k, or -1 when every key is greater.
func (ix *Index) IndexOfKey(k key.Key) (int, error) {
	if err := ix.checkKey(k); err != nil {
		return 0, err
	}
	return ix.eng.indexOf(k)
}

// GetAt returns the entry at ordinal position i in ascending order.
func (ix *Index) GetAt(i int) (Entry, error) {
	e, err := ix.eng.getAt(i)
	if err != nil {
		return Entry{}, err
	}
	obj, err := ix.resolve(e.value)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Key: e.key, Value: obj}, nil
}

// Clear removes every entry and frees the index pages.
func (ix *Index) Clear() error { return ix.eng.clear() }

// Drop frees every page of the index. Later calls fail with
// ErrDeletedObject.
func (ix *Index) Drop() error { return ix.eng.drop() }

// Flush writes dirty pages to the page store.
func (ix *Index) Flush() error { return ix.eng.flush() }

// Evict drops the clean decoded pages of the tree and returns how many were
// dropped. Later reads decode them again from the page store.
func (ix *Index) Evict() int { return ix.eng.evict() }

// ResidentPages returns the number of decoded pages held in memory.
func (ix *Index) ResidentPages() int { return ix.eng.resident() }

// Meta returns the root record of the underlying tree.
func (ix *Index) Meta() btree.Meta { return ix.eng.meta() }

// Stats returns structural statistics of the underlying tree.
func (ix *Index) Stats() (btree.Stats, error) { return ix.eng.stats() }

// Check verifies the structural invariants of the underlying tree.
func (ix *Index) Check() error { return ix.eng.check() }
