package object

import (
	"testing"

	"github.com/cockroachdb/errors"
)

type document struct {
	title string
}

func TestHeapMakePersistent(t *testing.T) {
	heap := NewHeap()
	doc := &document{title: "a"}

	h1, err := heap.MakePersistent(doc)
	if err != nil {
		t.Fatalf("MakePersistent failed: %v", err)
	}
	if h1 == InvalidHandle {
		t.Fatal("expected a valid handle")
	}

	h2, err := heap.MakePersistent(doc)
	if err != nil {
		t.Fatalf("MakePersistent failed: %v", err)
	}
	if h1 != h2 {
		t.Errorf("same object got two handles: %v and %v", h1, h2)
	}

	other, _ := heap.MakePersistent(&document{title: "a"})
	if other == h1 {
		t.Error("distinct objects must get distinct handles")
	}

	if heap.Len() != 2 {
		t.Errorf("Len() = %d, want 2", heap.Len())
	}
}

func TestHeapRejectsValues(t *testing.T) {
	heap := NewHeap()

	tests := []struct {
		name string
		obj  any
		want error
	}{
		{"nil", nil, ErrNilObject},
		{"nil pointer", (*document)(nil), ErrNilObject},
		{"string", "value", ErrNotReferenceable},
		{"struct", document{}, ErrNotReferenceable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := heap.MakePersistent(tt.obj)
			if !errors.Is(err, tt.want) {
				t.Errorf("MakePersistent(%v) error = %v, want %v", tt.obj, err, tt.want)
			}
		})
	}
}

func TestHeapResolveAndRelease(t *testing.T) {
	heap := NewHeap()
	doc := &document{title: "b"}
	h, _ := heap.MakePersistent(doc)

	got, err := heap.Resolve(h)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.(*document) != doc {
		t.Error("Resolve returned a different object")
	}

	if handle, ok := heap.HandleOf(doc); !ok || handle != h {
		t.Errorf("HandleOf = (%v, %v), want (%v, true)", handle, ok, h)
	}

	if err := heap.Release(h); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := heap.Resolve(h); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Resolve after Release error = %v, want ErrInvalidHandle", err)
	}
	if _, ok := heap.HandleOf(doc); ok {
		t.Error("released object should not have a handle")
	}
	if _, err := heap.Resolve(InvalidHandle); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Resolve(InvalidHandle) error = %v", err)
	}
}
