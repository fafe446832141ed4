// Package btree provides the B+ Tree engine behind obaidx indexes.
package btree

import (
	"github.com/cockroachdb/errors"

	"github.com/KilimcininKorOglu/obaidx/internal/object"
	"github.com/KilimcininKorOglu/obaidx/internal/storage"
)

type removeResult int

const (
	removeDone removeResult = iota
	removeUnderflow
	removeNotFound
)

// Remove deletes the first entry with key k and returns its value.
func (t *Tree[K]) Remove(k K) (object.Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkLive(); err != nil {
		return object.InvalidHandle, err
	}
	old, found, err := t.remove(k, object.InvalidHandle, false)
	if err != nil {
		return object.InvalidHandle, err
	}
	if !found {
		return object.InvalidHandle, ErrKeyNotFound
	}
	return old, nil
}

// RemoveValue deletes the entry k → v and reports whether it existed.
func (t *Tree[K]) RemoveValue(k K, v object.Handle) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkLive(); err != nil {
		return false, err
	}
	_, found, err := t.remove(k, v, true)
	return found, err
}

// remove runs one removal from the root. Must be called with the write
// lock held.
func (t *Tree[K]) remove(k K, v object.Handle, matchValue bool) (object.Handle, bool, error) {
	if t.root == storage.InvalidPageID {
		return object.InvalidHandle, false, nil
	}

	bk := &btreeKey[K]{key: k, value: v}
	res, err := t.removePage(t.root, bk, t.height, matchValue)
	if err != nil {
		return object.InvalidHandle, false, err
	}
	if res == removeNotFound {
		return object.InvalidHandle, false, nil
	}

	if res == removeUnderflow {
		if err := t.collapseRoot(); err != nil {
			return object.InvalidHandle, false, err
		}
	}
	t.count--
	t.updateCounter++
	return bk.old, true, nil
}

// collapseRoot replaces an internal root left without keys by its only
// child and drops an empty leaf root.
func (t *Tree[K]) collapseRoot() error {
	root, err := t.load(t.root)
	if err != nil {
		return err
	}
	if root.size() > 0 {
		return nil
	}

	old := t.root
	if root.leaf {
		t.root = storage.InvalidPageID
		t.height = 0
	} else {
		t.root = root.children[0]
		t.height--
	}
	t.log.Debug("root collapsed", "old_root", old, "new_root", t.root, "height", t.height)
	return t.free(old)
}

// removePage deletes bk.key (and bk.value when matchValue) below page id.
func (t *Tree[K]) removePage(id storage.PageID, bk *btreeKey[K], height int, matchValue bool) (removeResult, error) {
	p, err := t.load(id)
	if err != nil {
		return removeNotFound, err
	}

	if height == 1 {
		for i := p.lowerBound(t.codec, bk.key); i < p.size() && p.compare(t.codec, bk.key, i) == 0; i++ {
			if matchValue && p.values[i] != bk.value {
				continue
			}
			bk.old = p.values[i]
			p.removeValue(i)
			t.markDirty(p)
			if p.size() < t.minItems {
				return removeUnderflow, nil
			}
			return removeDone, nil
		}
		return removeNotFound, nil
	}

	// Entries equal to k may continue into the children right of any
	// separator equal to k.
	for r := p.lowerBound(t.codec, bk.key); r < len(p.children); r++ {
		res, err := t.removePage(p.children[r], bk, height-1, matchValue)
		if err != nil {
			return removeNotFound, err
		}
		switch res {
		case removeDone:
			return removeDone, nil
		case removeUnderflow:
			return t.rebalance(p, r)
		}
		if r == p.size() || p.compare(t.codec, bk.key, r) != 0 {
			break
		}
	}
	return removeNotFound, nil
}

// rebalance repairs child r of p after it fell below the minimum, using its
// right sibling when there is one and its left sibling otherwise.
func (t *Tree[K]) rebalance(p *page[K], r int) (removeResult, error) {
	sepIdx := r
	if r == p.size() {
		sepIdx = r - 1
	}
	left, err := t.load(p.children[sepIdx])
	if err != nil {
		return removeNotFound, err
	}
	right, err := t.load(p.children[sepIdx+1])
	if err != nil {
		return removeNotFound, err
	}
	if left.leaf != right.leaf {
		return removeNotFound, errors.AssertionFailedf("siblings %d and %d differ in kind", left.id, right.id)
	}

	t.markDirty(p)
	t.markDirty(left)
	t.markDirty(right)

	// Internal levels fold the separator into the key total so keys are
	// conserved across left, separator and right.
	total := left.size() + right.size()
	if !left.leaf {
		total++
	}

	if total <= t.capacity {
		left.absorb(p.keys[sepIdx], right)
		p.removeChild(sepIdx)
		if err := t.free(right.id); err != nil {
			return removeNotFound, err
		}
		if p.size() < t.minItems {
			return removeUnderflow, nil
		}
		return removeDone, nil
	}

	p.keys[sepIdx] = t.redistribute(left, right, p.keys[sepIdx], total)
	return removeDone, nil
}

// redistribute evens out two siblings holding total keys and returns the
// new separator between them. A leaf pair splits total items evenly; an
// internal pair gives left (total-1)/2 keys, lifts the next key to the
// parent and gives right the rest.
func (t *Tree[K]) redistribute(left, right *page[K], sep K, total int) K {
	m := total / 2
	if !left.leaf {
		m = (total - 1) / 2
	}
	left.absorb(sep, right)
	right.keys = right.keys[:0]
	right.values = right.values[:0]
	right.children = right.children[:0]
	return left.moveTail(m, right)
}
