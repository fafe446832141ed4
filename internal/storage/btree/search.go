// Package btree provides the B+ Tree engine behind obaidx indexes.
package btree

import (
	"github.com/cockroachdb/errors"

	"github.com/KilimcininKorOglu/obaidx/internal/object"
	"github.com/KilimcininKorOglu/obaidx/internal/storage"
)

// beyond reports whether k lies past the upper bound till.
func (t *Tree[K]) beyond(k K, till *Bound[K]) bool {
	if till == nil {
		return false
	}
	c := t.codec.Compare(k, till.Key)
	return c > 0 || (c == 0 && !till.Inclusive)
}

// before reports whether k lies before the lower bound from.
func (t *Tree[K]) before(k K, from *Bound[K]) bool {
	if from == nil {
		return false
	}
	c := t.codec.Compare(k, from.Key)
	return c < 0 || (c == 0 && !from.Inclusive)
}

// Scan calls fn for every entry between from and till in ascending order
// until fn returns false. A nil bound leaves that side open.
func (t *Tree[K]) Scan(from, till *Bound[K], fn func(k K, v object.Handle) bool) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if err := t.checkLive(); err != nil {
		return err
	}
	if t.root == storage.InvalidPageID {
		return nil
	}
	_, err := t.scanPage(t.root, t.height, from, till, fn)
	return err
}

// scanPage is the recursive range search. It returns true once the upper
// bound is exceeded or fn stops, so callers skip the remaining siblings.
func (t *Tree[K]) scanPage(id storage.PageID, height int, from, till *Bound[K], fn func(K, object.Handle) bool) (bool, error) {
	p, err := t.load(id)
	if err != nil {
		return true, err
	}

	start := 0
	if from != nil {
		start = p.search(t.codec, from.Key, from.Inclusive)
	}

	if height == 1 {
		for i := start; i < p.size(); i++ {
			if t.beyond(p.keys[i], till) {
				return true, nil
			}
			if !fn(p.keys[i], p.values[i]) {
				return true, nil
			}
		}
		return false, nil
	}

	for i := start; i < len(p.children); i++ {
		done, err := t.scanPage(p.children[i], height-1, from, till, fn)
		if done || err != nil {
			return true, err
		}
		// Children right of separator i hold keys >= keys[i].
		if i < p.size() && t.beyond(p.keys[i], till) {
			return true, nil
		}
	}
	return false, nil
}

// Find returns the entries between from and till in ascending order.
func (t *Tree[K]) Find(from, till *Bound[K]) ([]Entry[K], error) {
	var out []Entry[K]
	err := t.Scan(from, till, func(k K, v object.Handle) bool {
		out = append(out, Entry[K]{Key: k, Value: v})
		return true
	})
	return out, err
}

// Get returns the value stored under k. It fails with ErrKeyNotUnique when
// more than one entry matches.
func (t *Tree[K]) Get(k K) (object.Handle, bool, error) {
	var (
		found object.Handle
		n     int
	)
	err := t.Scan(Incl(k), Incl(k), func(_ K, v object.Handle) bool {
		found = v
		n++
		return n < 2
	})
	switch {
	case err != nil:
		return object.InvalidHandle, false, err
	case n > 1:
		return object.InvalidHandle, false, errors.Wrapf(ErrKeyNotUnique, "%v", k)
	case n == 0:
		return object.InvalidHandle, false, nil
	}
	return found, true, nil
}

// GetAll returns every value stored under k in insertion order.
func (t *Tree[K]) GetAll(k K) ([]object.Handle, error) {
	var out []object.Handle
	err := t.Scan(Incl(k), Incl(k), func(_ K, v object.Handle) bool {
		out = append(out, v)
		return true
	})
	return out, err
}

// Contains reports whether any entry has key k.
func (t *Tree[K]) Contains(k K) (bool, error) {
	found := false
	err := t.Scan(Incl(k), Incl(k), func(K, object.Handle) bool {
		found = true
		return false
	})
	return found, err
}

func (t *Tree[K]) prefixCodec() (PrefixCodec[K], error) {
	pc, ok := t.codec.(PrefixCodec[K])
	if !ok {
		return nil, ErrPrefixUnsupported
	}
	return pc, nil
}

// Prefix returns the entries whose key starts with prefix, in key order.
func (t *Tree[K]) Prefix(prefix K) ([]Entry[K], error) {
	pc, err := t.prefixCodec()
	if err != nil {
		return nil, err
	}

	var out []Entry[K]
	err = t.Scan(Incl(prefix), nil, func(k K, v object.Handle) bool {
		if !pc.HasPrefix(k, prefix) {
			return false
		}
		out = append(out, Entry[K]{Key: k, Value: v})
		return true
	})
	return out, err
}

// PrefixSearch returns the entries whose key is a prefix of s, shortest
// key first.
func (t *Tree[K]) PrefixSearch(s K) ([]Entry[K], error) {
	pc, err := t.prefixCodec()
	if err != nil {
		return nil, err
	}

	var out []Entry[K]
	for n := 0; n <= pc.Len(s); n++ {
		p := pc.Truncate(s, n)
		err := t.Scan(Incl(p), Incl(p), func(k K, v object.Handle) bool {
			out = append(out, Entry[K]{Key: k, Value: v})
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// IndexOf returns the ordinal position of the last entry with a key <= k,
// or -1 when every key is greater.
func (t *Tree[K]) IndexOf(k K) (int, error) {
	n := 0
	err := t.Scan(nil, Incl(k), func(K, object.Handle) bool {
		n++
		return true
	})
	return n - 1, err
}

// GetAt returns the entry at ordinal position i in ascending order.
func (t *Tree[K]) GetAt(i int) (Entry[K], error) {
	if i < 0 {
		return Entry[K]{}, errors.Wrapf(ErrIndexOutOfRange, "position %d", i)
	}

	var (
		out   Entry[K]
		found bool
		pos   int
	)
	err := t.Scan(nil, nil, func(k K, v object.Handle) bool {
		if pos == i {
			out, found = Entry[K]{Key: k, Value: v}, true
			return false
		}
		pos++
		return true
	})
	if err != nil {
		return Entry[K]{}, err
	}
	if !found {
		return Entry[K]{}, errors.Wrapf(ErrIndexOutOfRange, "position %d of %d", i, pos)
	}
	return out, nil
}

// Keys returns every key in ascending order.
func (t *Tree[K]) Keys() ([]K, error) {
	var out []K
	err := t.Scan(nil, nil, func(k K, _ object.Handle) bool {
		out = append(out, k)
		return true
	})
	return out, err
}
