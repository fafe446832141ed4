// Package btree provides the B+ Tree engine behind obaidx indexes.
package btree

import (
	"github.com/cockroachdb/errors"

	"github.com/KilimcininKorOglu/obaidx/internal/storage"
)

// Stats describes the shape of a tree.
type Stats struct {
	Height        int    `json:"height"`
	Count         int    `json:"count"`
	Capacity      int    `json:"capacity"`
	LeafPages     int    `json:"leafPages"`
	InternalPages int    `json:"internalPages"`
	DirtyPages    int    `json:"dirtyPages"`
	UpdateCounter uint64 `json:"updateCounter"`
}

// Stats walks the tree and counts its pages.
func (t *Tree[K]) Stats() (Stats, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if err := t.checkLive(); err != nil {
		return Stats{}, err
	}
	s := Stats{
		Height:        t.height,
		Count:         t.count,
		Capacity:      t.capacity,
		DirtyPages:    t.DirtyPages(),
		UpdateCounter: t.updateCounter,
	}
	if t.root == storage.InvalidPageID {
		return s, nil
	}
	err := t.walk(t.root, t.height, func(p *page[K]) {
		if p.leaf {
			s.LeafPages++
		} else {
			s.InternalPages++
		}
	})
	return s, err
}

func (t *Tree[K]) walk(id storage.PageID, height int, fn func(*page[K])) error {
	p, err := t.load(id)
	if err != nil {
		return err
	}
	fn(p)
	if height > 1 {
		for _, child := range p.children {
			if err := t.walk(child, height-1, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Check verifies the structural invariants: key order within and across
// pages (strict for unique trees), occupancy of non-root pages between
// capacity/3 and capacity, uniform leaf depth, child counts and the entry
// count.
func (t *Tree[K]) Check() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if err := t.checkLive(); err != nil {
		return err
	}
	if t.root == storage.InvalidPageID {
		if t.height != 0 || t.count != 0 {
			return errors.AssertionFailedf("empty tree with height %d and count %d", t.height, t.count)
		}
		return nil
	}

	n, err := t.checkPage(t.root, t.height, true, nil, nil)
	if err != nil {
		return err
	}
	if n != t.count {
		return errors.AssertionFailedf("count is %d, leaves hold %d", t.count, n)
	}
	return nil
}

// checkPage verifies the subtree at id whose keys must lie within
// [lo, hi] and returns its entry count.
func (t *Tree[K]) checkPage(id storage.PageID, height int, root bool, lo, hi *K) (int, error) {
	p, err := t.load(id)
	if err != nil {
		return 0, err
	}
	if p.leaf != (height == 1) {
		return 0, errors.AssertionFailedf("page %d: leaf=%v at height %d", id, p.leaf, height)
	}

	n := p.size()
	if n > t.capacity {
		return 0, errors.AssertionFailedf("page %d: %d keys exceed capacity %d", id, n, t.capacity)
	}
	if !root && n < t.minItems {
		return 0, errors.AssertionFailedf("page %d: %d keys below minimum %d", id, n, t.minItems)
	}
	if root && n == 0 {
		return 0, errors.AssertionFailedf("page %d: empty root", id)
	}

	for i := 0; i < n; i++ {
		if i > 0 {
			c := t.codec.Compare(p.keys[i-1], p.keys[i])
			if c > 0 || (c == 0 && t.unique && p.leaf) {
				return 0, errors.AssertionFailedf("page %d: keys %d and %d out of order", id, i-1, i)
			}
		}
		if lo != nil && t.codec.Compare(p.keys[i], *lo) < 0 {
			return 0, errors.AssertionFailedf("page %d: key %d below separator", id, i)
		}
		if hi != nil && t.codec.Compare(p.keys[i], *hi) > 0 {
			return 0, errors.AssertionFailedf("page %d: key %d above separator", id, i)
		}
	}

	if p.leaf {
		if len(p.values) != n {
			return 0, errors.AssertionFailedf("page %d: %d keys with %d values", id, n, len(p.values))
		}
		return n, nil
	}

	if len(p.children) != n+1 {
		return 0, errors.AssertionFailedf("page %d: %d keys with %d children", id, n, len(p.children))
	}
	total := 0
	for i, child := range p.children {
		clo, chi := lo, hi
		if i > 0 {
			clo = &p.keys[i-1]
		}
		if i < n {
			chi = &p.keys[i]
		}
		c, err := t.checkPage(child, height-1, false, clo, chi)
		if err != nil {
			return 0, err
		}
		total += c
	}
	return total, nil
}
