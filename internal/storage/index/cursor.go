package index

import (
	"github.com/KilimcininKorOglu/obaidx/internal/key"
)

// Entry is a key with its resolved object.
type Entry struct {
	Key   key.Key
	Value any
}

// DictCursor iterates (key, object) pairs. Keys are rebuilt from the
// stored page keys, so they carry the index key type.
type DictCursor struct {
	c   entryCursor
	ix  *Index
	err error
}

// Next returns the next pair. ok is false at the end of the range or after
// an error; check Err.
func (c *DictCursor) Next() (k key.Key, obj any, ok bool) {
	if c.err != nil {
		return key.Key{}, nil, false
	}
	k, h, ok := c.c.next()
	if !ok {
		c.err = c.c.err()
		return key.Key{}, nil, false
	}
	obj, err := c.ix.resolve(h)
	if err != nil {
		c.err = err
		return key.Key{}, nil, false
	}
	return k, obj, true
}

// Err returns the error that stopped the cursor, if any.
func (c *DictCursor) Err() error { return c.err }

// Collect drains the cursor.
func (c *DictCursor) Collect() ([]Entry, error) {
	var out []Entry
	for {
		k, obj, ok := c.Next()
		if !ok {
			return out, c.Err()
		}
		out = append(out, Entry{Key: k, Value: obj})
	}
}

// Cursor iterates objects only.
type Cursor struct {
	d *DictCursor
}

// Next returns the next object.
func (c *Cursor) Next() (any, bool) {
	_, obj, ok := c.d.Next()
	return obj, ok
}

// Err returns the error that stopped the cursor, if any.
func (c *Cursor) Err() error { return c.d.Err() }

// Collect drains the cursor.
func (c *Cursor) Collect() ([]any, error) {
	var out []any
	for {
		obj, ok := c.Next()
		if !ok {
			return out, c.Err()
		}
		out = append(out, obj)
	}
}
