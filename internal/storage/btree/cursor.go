// Package btree provides the B+ Tree engine behind obaidx indexes.
package btree

import (
	"github.com/KilimcininKorOglu/obaidx/internal/object"
	"github.com/KilimcininKorOglu/obaidx/internal/storage"
)

// Order is the direction of a cursor.
type Order int

const (
	Ascending Order = iota
	Descending
)

// String returns "asc" or "desc".
func (o Order) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}

// Mode selects how a cursor reacts to mutations made after it was
// positioned.
type Mode int

const (
	// ModeStrict fails with ErrConcurrentStructuralChange.
	ModeStrict Mode = iota
	// ModeTolerant repositions past the last returned entry.
	ModeTolerant
)

// String returns "strict" or "tolerant".
func (m Mode) String() string {
	if m == ModeTolerant {
		return "tolerant"
	}
	return "strict"
}

// frame is one level of a cursor stack. For internal pages pos is a child
// index, for leaves an item index.
type frame struct {
	id  storage.PageID
	pos int
}

// Cursor iterates the entries between two bounds. The stack always points
// at the next candidate entry; an empty stack means the cursor is
// exhausted. Frames hold page ids only, so a cursor never pins pages.
type Cursor[K any] struct {
	tree     *Tree[K]
	from     *Bound[K]
	till     *Bound[K]
	order    Order
	mode     Mode
	stack    []frame
	counter  uint64
	last     Entry[K]
	returned bool
	done     bool
	err      error
}

// Cursor creates a cursor over [from, till] in the given order. A nil bound
// leaves that side open.
func (t *Tree[K]) Cursor(from, till *Bound[K], order Order, mode Mode) *Cursor[K] {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c := &Cursor[K]{tree: t, from: from, till: till, order: order, mode: mode}
	if err := t.checkLive(); err != nil {
		c.err = err
		return c
	}
	c.position(c.startBound())
	return c
}

// Reverse creates a cursor over every entry in descending order.
func (t *Tree[K]) Reverse(mode Mode) *Cursor[K] {
	return t.Cursor(nil, nil, Descending, mode)
}

// startBound is the bound the cursor starts from in its direction.
func (c *Cursor[K]) startBound() *Bound[K] {
	if c.order == Descending {
		return c.till
	}
	return c.from
}

// Err returns the error that stopped the cursor, if any.
func (c *Cursor[K]) Err() error { return c.err }

// Order returns the direction of the cursor.
func (c *Cursor[K]) Order() Order { return c.order }

// Mode returns the concurrency mode of the cursor.
func (c *Cursor[K]) Mode() Mode { return c.mode }

// Next returns the next entry. ok is false once the cursor is exhausted or
// failed; check Err to tell the two apart.
func (c *Cursor[K]) Next() (k K, v object.Handle, ok bool) {
	if c.done || c.err != nil {
		return k, object.InvalidHandle, false
	}

	t := c.tree
	t.mu.RLock()
	defer t.mu.RUnlock()

	if err := t.checkLive(); err != nil {
		c.fail(err)
		return k, object.InvalidHandle, false
	}
	if c.counter != t.updateCounter {
		if c.mode == ModeStrict {
			c.fail(ErrConcurrentStructuralChange)
			return k, object.InvalidHandle, false
		}
		c.refresh()
		if c.err != nil {
			return k, object.InvalidHandle, false
		}
	}

	if len(c.stack) == 0 {
		c.done = true
		return k, object.InvalidHandle, false
	}

	top := c.stack[len(c.stack)-1]
	leaf, err := t.load(top.id)
	if err != nil {
		c.fail(err)
		return k, object.InvalidHandle, false
	}
	k, v = leaf.keyAt(top.pos), leaf.values[top.pos]

	if (c.order == Ascending && t.beyond(k, c.till)) || (c.order == Descending && t.before(k, c.from)) {
		c.stack = c.stack[:0]
		c.done = true
		var zero K
		return zero, object.InvalidHandle, false
	}

	c.last = Entry[K]{Key: k, Value: v}
	c.returned = true
	if err := c.advance(); err != nil {
		c.fail(err)
	}
	return k, v, true
}

// Collect drains the cursor into a slice.
func (c *Cursor[K]) Collect() ([]Entry[K], error) {
	var out []Entry[K]
	for k, v, ok := c.Next(); ok; k, v, ok = c.Next() {
		out = append(out, Entry[K]{Key: k, Value: v})
	}
	return out, c.Err()
}

func (c *Cursor[K]) fail(err error) {
	c.err = err
	c.stack = nil
}

// position rebuilds the stack at the first candidate in the cursor's
// direction relative to b and snapshots the update counter.
// Must be called with the tree read lock held.
func (c *Cursor[K]) position(b *Bound[K]) {
	t := c.tree
	c.stack = c.stack[:0]
	c.counter = t.updateCounter
	if t.root == storage.InvalidPageID {
		return
	}

	id := t.root
	for h := t.height; ; h-- {
		p, err := t.load(id)
		if err != nil {
			c.fail(err)
			return
		}

		var pos int
		if c.order == Ascending {
			if b != nil {
				pos = p.search(t.codec, b.Key, b.Inclusive)
			}
		} else {
			pos = p.size()
			if b != nil {
				// Inclusive upper bounds keep equal keys, exclusive ones
				// stop before them.
				pos = p.search(t.codec, b.Key, !b.Inclusive)
			}
			if h == 1 {
				pos--
			}
		}

		c.stack = append(c.stack, frame{id: id, pos: pos})
		if h == 1 {
			break
		}
		id = p.children[pos]
	}

	if err := c.settle(); err != nil {
		c.fail(err)
	}
}

// advance moves past the entry at the top of the stack.
func (c *Cursor[K]) advance() error {
	top := &c.stack[len(c.stack)-1]
	if c.order == Ascending {
		top.pos++
	} else {
		top.pos--
	}
	return c.settle()
}

// settle walks up while the leaf position ran off its page, steps the
// parent and descends to the nearest leaf item in the cursor's direction.
func (c *Cursor[K]) settle() error {
	t := c.tree
	for len(c.stack) > 0 {
		top := &c.stack[len(c.stack)-1]
		p, err := t.load(top.id)
		if err != nil {
			return err
		}

		limit := len(p.keys)
		if !p.leaf {
			limit = len(p.children)
		}
		if top.pos >= 0 && top.pos < limit {
			if p.leaf {
				return nil
			}
			child, err := t.load(p.children[top.pos])
			if err != nil {
				return err
			}
			pos := 0
			if c.order == Descending {
				pos = len(child.keys) - 1
				if !child.leaf {
					pos = len(child.children) - 1
				}
			}
			if len(c.stack) < t.height {
				c.stack = append(c.stack, frame{id: child.id, pos: pos})
				continue
			}
		}

		c.stack = c.stack[:len(c.stack)-1]
		if len(c.stack) > 0 {
			parent := &c.stack[len(c.stack)-1]
			if c.order == Ascending {
				parent.pos++
			} else {
				parent.pos--
			}
		}
	}
	return nil
}

// refresh repositions a tolerant cursor after the tree changed: it restarts
// at the last returned key and skips the entries already returned. Among
// equal keys it skips up to and including the last returned value, or all
// of them when that value is gone.
// Must be called with the tree read lock held.
func (c *Cursor[K]) refresh() {
	t := c.tree
	t.log.Debug("cursor refresh", "order", c.order.String())

	if !c.returned {
		c.position(c.startBound())
		return
	}

	c.position(Incl(c.last.Key))
	if c.err != nil {
		return
	}

	// Scan the run of equal keys on a copy of the stack.
	probe := &Cursor[K]{tree: t, order: c.order, stack: append([]frame(nil), c.stack...)}
	skip, run := 0, 0
	for len(probe.stack) > 0 {
		top := probe.stack[len(probe.stack)-1]
		p, err := t.load(top.id)
		if err != nil {
			c.fail(err)
			return
		}
		if t.codec.Compare(p.keys[top.pos], c.last.Key) != 0 {
			break
		}
		run++
		if skip == 0 && p.values[top.pos] == c.last.Value {
			skip = run
		}
		if err := probe.advance(); err != nil {
			c.fail(err)
			return
		}
	}
	if skip == 0 {
		skip = run
	}

	for ; skip > 0 && len(c.stack) > 0; skip-- {
		if err := c.advance(); err != nil {
			c.fail(err)
			return
		}
	}
}
