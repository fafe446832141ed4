// Package btree provides the B+ Tree engine behind obaidx indexes.
package btree

import (
	"github.com/KilimcininKorOglu/obaidx/internal/object"
	"github.com/KilimcininKorOglu/obaidx/internal/storage"
)

type insertResult int

const (
	insertDone insertResult = iota
	insertOverflow
	insertDuplicate
	insertOverwrite
)

// btreeKey carries one insertion or removal through the recursion. old
// receives the previous value on overwrite, duplicate or removal; sep and
// sibling receive the split of a page that overflowed.
type btreeKey[K any] struct {
	key     K
	value   object.Handle
	old     object.Handle
	sep     K
	sibling storage.PageID
}

// Put inserts k → v. It returns false, and changes nothing, when the tree
// is unique and k is already present.
func (t *Tree[K]) Put(k K, v object.Handle) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkLive(); err != nil {
		return false, err
	}
	res, _, err := t.insert(k, v, false)
	if err != nil {
		return false, err
	}
	return res != insertDuplicate, nil
}

// Set inserts or replaces the value of k and returns the previous value.
// Only unique trees support Set.
func (t *Tree[K]) Set(k K, v object.Handle) (old object.Handle, replaced bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkLive(); err != nil {
		return object.InvalidHandle, false, err
	}
	if !t.unique {
		return object.InvalidHandle, false, ErrUniqueRequired
	}
	res, old, err := t.insert(k, v, true)
	if err != nil {
		return object.InvalidHandle, false, err
	}
	if res == insertOverwrite {
		return old, true, nil
	}
	return object.InvalidHandle, false, nil
}

// insert runs one insertion from the root and commits the root record
// once the page mutations are done. Must be called with the write lock held.
func (t *Tree[K]) insert(k K, v object.Handle, overwrite bool) (insertResult, object.Handle, error) {
	if t.root == storage.InvalidPageID {
		root, err := t.allocate(true)
		if err != nil {
			return insertDone, object.InvalidHandle, err
		}
		root.insertValue(0, k, v)
		t.root = root.id
		t.height = 1
		t.count = 1
		t.updateCounter++
		return insertDone, object.InvalidHandle, nil
	}

	bk := &btreeKey[K]{key: k, value: v}
	res, err := t.insertPage(t.root, bk, t.height, overwrite)
	if err != nil {
		return insertDone, object.InvalidHandle, err
	}

	switch res {
	case insertDuplicate:
		return res, bk.old, nil
	case insertOverwrite:
		t.updateCounter++
		return res, bk.old, nil
	case insertOverflow:
		root, err := t.allocate(false)
		if err != nil {
			return insertDone, object.InvalidHandle, err
		}
		root.keys = []K{bk.sep}
		root.children = []storage.PageID{t.root, bk.sibling}
		t.log.Debug("root split", "old_root", t.root, "new_root", root.id, "height", t.height+1)
		t.root = root.id
		t.height++
	}
	t.count++
	t.updateCounter++
	return res, object.InvalidHandle, nil
}

// insertPage inserts bk below page id, which sits height levels above the
// leaves (1 = leaf).
func (t *Tree[K]) insertPage(id storage.PageID, bk *btreeKey[K], height int, overwrite bool) (insertResult, error) {
	p, err := t.load(id)
	if err != nil {
		return insertDone, err
	}

	if height > 1 {
		// Equal keys go right: unique trees keep a key equal to separator
		// i in child i+1, non-unique trees append after equal keys.
		r := p.upperBound(t.codec, bk.key)
		res, err := t.insertPage(p.children[r], bk, height-1, overwrite)
		if err != nil || res != insertOverflow {
			return res, err
		}
		p.insertChild(r, bk.sep, bk.sibling)
		t.markDirty(p)
		if p.size() <= t.capacity {
			return insertDone, nil
		}
		return insertOverflow, t.split(p, bk)
	}

	var r int
	if t.unique {
		r = p.lowerBound(t.codec, bk.key)
		if r < p.size() && p.compare(t.codec, bk.key, r) == 0 {
			bk.old = p.values[r]
			if !overwrite {
				return insertDuplicate, nil
			}
			p.values[r] = bk.value
			t.markDirty(p)
			return insertOverwrite, nil
		}
	} else {
		r = p.upperBound(t.codec, bk.key)
	}

	p.insertValue(r, bk.key, bk.value)
	t.markDirty(p)
	if p.size() <= t.capacity {
		return insertDone, nil
	}
	return insertOverflow, t.split(p, bk)
}

// split moves the upper half of the over-full page p into a new sibling and
// records the separator in bk. A leaf keeps m = (capacity+1)/2 items and the
// separator is the sibling's first key; an internal page promotes key m.
func (t *Tree[K]) split(p *page[K], bk *btreeKey[K]) error {
	b, err := t.allocate(p.leaf)
	if err != nil {
		return err
	}
	m := (t.capacity + 1) / 2
	bk.sep = p.moveTail(m, b)
	bk.sibling = b.id
	t.markDirty(p)
	return nil
}
