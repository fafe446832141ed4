package object

import (
	"reflect"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
)

// Handle is the stable identity of a persisted object.
type Handle uint64

// InvalidHandle is never assigned to an object.
const InvalidHandle Handle = 0

// String returns the handle in the form "#<n>".
func (h Handle) String() string {
	return "#" + strconv.FormatUint(uint64(h), 10)
}

// Object store errors.
var (
	ErrNilObject        = errors.New("object is nil")
	ErrNotReferenceable = errors.New("object has no identity: only pointer values can be persisted")
	ErrInvalidHandle    = errors.New("invalid object handle")
	ErrNotPersistent    = errors.New("object is not persistent")
)

// Store is the object store capability consumed by the index engine.
type Store interface {
	// MakePersistent assigns a handle to obj if it does not have one yet
	// and returns it.
	MakePersistent(obj any) (Handle, error)
	// HandleOf returns the handle of obj if it is persistent.
	HandleOf(obj any) (Handle, bool)
	// Resolve returns the object identified by h.
	Resolve(h Handle) (any, error)
	// Release forgets the object identified by h.
	Release(h Handle) error
}

// Heap is an in-memory Store keyed by pointer identity.
type Heap struct {
	mu       sync.RWMutex
	next     Handle
	byHandle map[Handle]any
	byObject map[any]Handle
}

// NewHeap creates an empty Heap.
func NewHeap() *Heap {
	return &Heap{
		next:     1,
		byHandle: make(map[Handle]any),
		byObject: make(map[any]Handle),
	}
}

func referenceable(obj any) error {
	if obj == nil {
		return ErrNilObject
	}
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Pointer {
		return errors.Wrapf(ErrNotReferenceable, "%T", obj)
	}
	if v.IsNil() {
		return ErrNilObject
	}
	return nil
}

// MakePersistent implements Store.
func (h *Heap) MakePersistent(obj any) (Handle, error) {
	if err := referenceable(obj); err != nil {
		return InvalidHandle, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if handle, ok := h.byObject[obj]; ok {
		return handle, nil
	}

	handle := h.next
	h.next++
	h.byHandle[handle] = obj
	h.byObject[obj] = handle
	return handle, nil
}

// HandleOf implements Store.
func (h *Heap) HandleOf(obj any) (Handle, bool) {
	if referenceable(obj) != nil {
		return InvalidHandle, false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	handle, ok := h.byObject[obj]
	return handle, ok
}

// Resolve implements Store.
func (h *Heap) Resolve(handle Handle) (any, error) {
	if handle == InvalidHandle {
		return nil, ErrInvalidHandle
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	obj, ok := h.byHandle[handle]
	if !ok {
		return nil, errors.Wrapf(ErrInvalidHandle, "handle %s", handle)
	}
	return obj, nil
}

// Release implements Store.
func (h *Heap) Release(handle Handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	obj, ok := h.byHandle[handle]
	if !ok {
		return errors.Wrapf(ErrInvalidHandle, "handle %s", handle)
	}
	delete(h.byHandle, handle)
	delete(h.byObject, obj)
	return nil
}

// Len returns the number of live objects.
func (h *Heap) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byHandle)
}
