package object

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/KilimcininKorOglu/obaidx/internal/storage"
)

// ErrNotBlob is returned when a Durable store is asked to persist anything
// other than a *Blob.
var ErrNotBlob = errors.New("durable store only persists *Blob values")

// Blob is an opaque byte payload owned by a Durable store.
type Blob struct {
	Data []byte
}

// NewBlob wraps a copy of data.
func NewBlob(data []byte) *Blob {
	return &Blob{Data: append([]byte(nil), data...)}
}

// Durable is a Store whose objects outlive the process. Each Blob occupies
// one page of the underlying PageStore and its handle is that page id, so a
// handle read back from an index page resolves after a reopen.
//
// Blob contents are written once, by MakePersistent. Mutating Data after
// that is not persisted.
type Durable struct {
	mu       sync.RWMutex
	pages    storage.PageStore
	byHandle map[Handle]*Blob
	byObject map[*Blob]Handle
}

var _ Store = (*Durable)(nil)

// NewDurable creates a Durable store over pages.
func NewDurable(pages storage.PageStore) *Durable {
	return &Durable{
		pages:    pages,
		byHandle: make(map[Handle]*Blob),
		byObject: make(map[*Blob]Handle),
	}
}

func asBlob(obj any) (*Blob, error) {
	if obj == nil {
		return nil, ErrNilObject
	}
	b, ok := obj.(*Blob)
	if !ok {
		return nil, errors.Wrapf(ErrNotBlob, "%T", obj)
	}
	if b == nil {
		return nil, ErrNilObject
	}
	return b, nil
}

// MakePersistent implements Store.
func (d *Durable) MakePersistent(obj any) (Handle, error) {
	b, err := asBlob(obj)
	if err != nil {
		return InvalidHandle, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if h, ok := d.byObject[b]; ok {
		return h, nil
	}

	id, err := d.pages.Allocate()
	if err != nil {
		return InvalidHandle, errors.Wrap(err, "allocate blob page")
	}
	if err := d.pages.Write(id, b.Data); err != nil {
		_ = d.pages.Free(id)
		return InvalidHandle, errors.Wrapf(err, "write blob %d", id)
	}

	h := Handle(id)
	d.byHandle[h] = b
	d.byObject[b] = h
	return h, nil
}

// HandleOf implements Store.
func (d *Durable) HandleOf(obj any) (Handle, bool) {
	b, err := asBlob(obj)
	if err != nil {
		return InvalidHandle, false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	h, ok := d.byObject[b]
	return h, ok
}

// Resolve implements Store. Blobs not seen since the store was opened are
// read from their page and cached, so repeated calls return the same
// pointer.
func (d *Durable) Resolve(h Handle) (any, error) {
	if h == InvalidHandle {
		return nil, ErrInvalidHandle
	}

	d.mu.RLock()
	b, ok := d.byHandle[h]
	d.mu.RUnlock()
	if ok {
		return b, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if b, ok := d.byHandle[h]; ok {
		return b, nil
	}
	data, err := d.pages.Read(storage.PageID(h))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidHandle, "handle %s: %v", h, err)
	}
	b = &Blob{Data: data}
	d.byHandle[h] = b
	d.byObject[b] = h
	return b, nil
}

// Release implements Store. The blob page is freed.
func (d *Durable) Release(h Handle) error {
	if h == InvalidHandle {
		return ErrInvalidHandle
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.pages.Free(storage.PageID(h)); err != nil {
		return errors.Wrapf(ErrInvalidHandle, "handle %s: %v", h, err)
	}
	if b, ok := d.byHandle[h]; ok {
		delete(d.byObject, b)
		delete(d.byHandle, h)
	}
	return nil
}

// Cached returns the number of blobs held in memory.
func (d *Durable) Cached() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byHandle)
}
