package index

import (
	"github.com/cockroachdb/errors"

	"github.com/KilimcininKorOglu/obaidx/internal/key"
	"github.com/KilimcininKorOglu/obaidx/internal/object"
	"github.com/KilimcininKorOglu/obaidx/internal/storage/btree"
)

// engine is the key-type-erased view of a btree.Tree. Keys reaching it
// already carry the index key type.
type engine interface {
	put(k key.Key, v object.Handle) (bool, error)
	set(k key.Key, v object.Handle) (object.Handle, bool, error)
	get(k key.Key) (object.Handle, bool, error)
	getAll(k key.Key) ([]object.Handle, error)
	remove(k key.Key) (object.Handle, error)
	removeValue(k key.Key, v object.Handle) (bool, error)
	cursor(from, till *key.Key, order btree.Order, mode btree.Mode) entryCursor
	prefix(p key.Key) ([]entry, error)
	prefixSearch(s key.Key) ([]entry, error)
	indexOf(k key.Key) (int, error)
	getAt(i int) (entry, error)
	count() int
	height() int
	updateCounter() uint64
	clear() error
	drop() error
	flush() error
	evict() int
	resident() int
	meta() btree.Meta
	stats() (btree.Stats, error)
	check() error
}

// entry is a leaf item with its key rebuilt as a key.Key.
type entry struct {
	key   key.Key
	value object.Handle
}

// entryCursor is the key-type-erased view of a btree.Cursor.
type entryCursor interface {
	next() (key.Key, object.Handle, bool)
	err() error
}

// typed adapts a btree.Tree[K] to engine. to extracts the native key, from
// rebuilds a key.Key from a native key.
type typed[K any] struct {
	tree *btree.Tree[K]
	to   func(key.Key) K
	from func(K) key.Key
}

// newEngine builds the engine for t, reopening it from m when m is not nil.
func newEngine(t key.Type, m *btree.Meta, opts btree.Options) (engine, error) {
	switch t {
	case key.TypeBool:
		return build(btree.Bool, key.Key.BoolValue, key.Bool, m, opts)
	case key.TypeInt8:
		return build(btree.Int8, func(k key.Key) int8 { return int8(k.IntValue()) }, key.Int8, m, opts)
	case key.TypeUint8:
		return build(btree.Uint8, func(k key.Key) uint8 { return uint8(k.UintValue()) }, key.Uint8, m, opts)
	case key.TypeInt16:
		return build(btree.Int16, func(k key.Key) int16 { return int16(k.IntValue()) }, key.Int16, m, opts)
	case key.TypeUint16:
		return build(btree.Uint16, func(k key.Key) uint16 { return uint16(k.UintValue()) }, key.Uint16, m, opts)
	case key.TypeInt32:
		return build(btree.Int32, func(k key.Key) int32 { return int32(k.IntValue()) }, key.Int32, m, opts)
	case key.TypeUint32:
		return build(btree.Uint32, func(k key.Key) uint32 { return uint32(k.UintValue()) }, key.Uint32, m, opts)
	case key.TypeInt64:
		return build(btree.Int64, key.Key.IntValue, key.Int64, m, opts)
	case key.TypeUint64:
		return build(btree.Uint64, key.Key.UintValue, key.Uint64, m, opts)
	case key.TypeFloat32:
		return build(btree.Float32, func(k key.Key) float32 { return float32(k.FloatValue()) }, key.Float32, m, opts)
	case key.TypeFloat64:
		return build(btree.Float64, key.Key.FloatValue, key.Float64, m, opts)
	case key.TypeString:
		return build[string](btree.String, key.Key.StringValue, key.String, m, opts)
	case key.TypeBytes:
		return build[[]byte](btree.Bytes, key.Key.BytesValue, key.Bytes, m, opts)
	case key.TypeGUID:
		return build(btree.GUID, key.Key.GUIDValue, key.GUID, m, opts)
	case key.TypeDecimal:
		return build(btree.Decimal, key.Key.DecimalValue, key.Decimal, m, opts)
	case key.TypeRef:
		return build(btree.Ref, key.Key.RefValue, key.Ref, m, opts)
	}
	return nil, errors.Wrapf(ErrUnsupportedIndexType, "%s", t)
}

func build[K any](c btree.Codec[K], to func(key.Key) K, from func(K) key.Key, m *btree.Meta, opts btree.Options) (engine, error) {
	var (
		tree *btree.Tree[K]
		err  error
	)
	if m != nil {
		tree, err = btree.Open(c, *m, opts)
	} else {
		tree, err = btree.New(c, opts)
	}
	if err != nil {
		return nil, err
	}
	return &typed[K]{tree: tree, to: to, from: from}, nil
}

func (e *typed[K]) bound(k *key.Key) *btree.Bound[K] {
	if k == nil {
		return nil
	}
	return &btree.Bound[K]{Key: e.to(*k), Inclusive: k.Inclusive}
}

func (e *typed[K]) entries(in []btree.Entry[K]) []entry {
	out := make([]entry, len(in))
	for i, it := range in {
		out[i] = entry{key: e.from(it.Key), value: it.Value}
	}
	return out
}

func (e *typed[K]) put(k key.Key, v object.Handle) (bool, error) {
	return e.tree.Put(e.to(k), v)
}

func (e *typed[K]) set(k key.Key, v object.Handle) (object.Handle, bool, error) {
	return e.tree.Set(e.to(k), v)
}

func (e *typed[K]) get(k key.Key) (object.Handle, bool, error) {
	return e.tree.Get(e.to(k))
}

func (e *typed[K]) getAll(k key.Key) ([]object.Handle, error) {
	return e.tree.GetAll(e.to(k))
}

func (e *typed[K]) remove(k key.Key) (object.Handle, error) {
	return e.tree.Remove(e.to(k))
}

func (e *typed[K]) removeValue(k key.Key, v object.Handle) (bool, error) {
	return e.tree.RemoveValue(e.to(k), v)
}

func (e *typed[K]) cursor(from, till *key.Key, order btree.Order, mode btree.Mode) entryCursor {
	return &typedCursor[K]{c: e.tree.Cursor(e.bound(from), e.bound(till), order, mode), from: e.from}
}

func (e *typed[K]) prefix(p key.Key) ([]entry, error) {
	out, err := e.tree.Prefix(e.to(p))
	return e.entries(out), err
}

func (e *typed[K]) prefixSearch(s key.Key) ([]entry, error) {
	out, err := e.tree.PrefixSearch(e.to(s))
	return e.entries(out), err
}

func (e *typed[K]) indexOf(k key.Key) (int, error) { return e.tree.IndexOf(e.to(k)) }

func (e *typed[K]) getAt(i int) (entry, error) {
	it, err := e.tree.GetAt(i)
	if err != nil {
		return entry{}, err
	}
	return entry{key: e.from(it.Key), value: it.Value}, nil
}

func (e *typed[K]) count() int                  { return e.tree.Count() }
func (e *typed[K]) height() int                 { return e.tree.Height() }
func (e *typed[K]) updateCounter() uint64       { return e.tree.UpdateCounter() }
func (e *typed[K]) clear() error                { return e.tree.Clear() }
func (e *typed[K]) drop() error                 { return e.tree.Drop() }
func (e *typed[K]) flush() error                { return e.tree.Flush() }
func (e *typed[K]) evict() int                  { return e.tree.Evict() }
func (e *typed[K]) resident() int               { return e.tree.ResidentPages() }
func (e *typed[K]) meta() btree.Meta            { return e.tree.Meta() }
func (e *typed[K]) stats() (btree.Stats, error) { return e.tree.Stats() }
func (e *typed[K]) check() error                { return e.tree.Check() }

type typedCursor[K any] struct {
	c    *btree.Cursor[K]
	from func(K) key.Key
}

func (c *typedCursor[K]) next() (key.Key, object.Handle, bool) {
	k, v, ok := c.c.Next()
	if !ok {
		return key.Key{}, object.InvalidHandle, false
	}
	return c.from(k), v, true
}

func (c *typedCursor[K]) err() error { return c.c.Err() }
