package object

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/KilimcininKorOglu/obaidx/internal/storage"
)

func TestDurableMakePersistent(t *testing.T) {
	d := NewDurable(storage.NewMemoryStore())
	b := NewBlob([]byte("payload"))

	h1, err := d.MakePersistent(b)
	if err != nil {
		t.Fatalf("MakePersistent failed: %v", err)
	}
	h2, err := d.MakePersistent(b)
	if err != nil {
		t.Fatalf("MakePersistent failed: %v", err)
	}
	if h1 != h2 {
		t.Errorf("same blob got two handles: %v and %v", h1, h2)
	}

	got, ok := d.HandleOf(b)
	if !ok || got != h1 {
		t.Errorf("HandleOf = %v, %v, want %v, true", got, ok, h1)
	}
	if _, ok := d.HandleOf(NewBlob(nil)); ok {
		t.Error("HandleOf reported an unknown blob as persistent")
	}
}

func TestDurableRejectsNonBlob(t *testing.T) {
	d := NewDurable(storage.NewMemoryStore())

	tests := []struct {
		name string
		obj  any
		want error
	}{
		{"nil", nil, ErrNilObject},
		{"nil blob", (*Blob)(nil), ErrNilObject},
		{"struct pointer", &document{}, ErrNotBlob},
		{"string", "text", ErrNotBlob},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.MakePersistent(tt.obj)
			if !errors.Is(err, tt.want) {
				t.Errorf("MakePersistent(%v) error = %v, want %v", tt.obj, err, tt.want)
			}
		})
	}
}

func TestDurableResolveAfterReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs.db")

	pages, err := storage.OpenFileStore(path, storage.DefaultOptions())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	d := NewDurable(pages)
	h, err := d.MakePersistent(NewBlob([]byte("kept across reopen")))
	if err != nil {
		t.Fatalf("MakePersistent failed: %v", err)
	}
	if err := pages.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	pages, err = storage.OpenFileStore(path, storage.DefaultOptions())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer pages.Close()

	d = NewDurable(pages)
	obj, err := d.Resolve(h)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	b := obj.(*Blob)
	if !bytes.Equal(b.Data, []byte("kept across reopen")) {
		t.Errorf("Resolve data = %q, want %q", b.Data, "kept across reopen")
	}

	again, _ := d.Resolve(h)
	if again != obj {
		t.Error("Resolve returned a different pointer for the same handle")
	}
	if got, ok := d.HandleOf(b); !ok || got != h {
		t.Errorf("HandleOf resolved blob = %v, %v, want %v, true", got, ok, h)
	}
}

func TestDurableRelease(t *testing.T) {
	pages := storage.NewMemoryStore()
	d := NewDurable(pages)
	b := NewBlob([]byte("x"))
	h, _ := d.MakePersistent(b)

	if err := d.Release(h); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if pages.Len() != 0 {
		t.Errorf("pages.Len() = %d after Release, want 0", pages.Len())
	}
	if d.Cached() != 0 {
		t.Errorf("Cached() = %d after Release, want 0", d.Cached())
	}
	if _, err := d.Resolve(h); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Resolve after Release error = %v, want ErrInvalidHandle", err)
	}
	if err := d.Release(h); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("second Release error = %v, want ErrInvalidHandle", err)
	}
}
