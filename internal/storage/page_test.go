package storage

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
)

// =============================================================================
// PageType Tests
// =============================================================================

func TestPageTypeString(t *testing.T) {
	tests := []struct {
		pageType PageType
		expected string
	}{
		{PageTypeFree, "Free"},
		{PageTypeIndex, "Index"},
		{PageTypeOverflow, "Overflow"},
		{PageTypeCatalog, "Catalog"},
		{PageType(255), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.pageType.String(); got != tt.expected {
				t.Errorf("PageType.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// =============================================================================
// PageHeader Tests
// =============================================================================

func TestPageHeaderSerializeDeserialize(t *testing.T) {
	original := &PageHeader{
		PageID:    12345,
		PageType:  PageTypeIndex,
		Flags:     PageFlagDirty | PageFlagLeaf,
		ItemCount: 100,
		FreeSpace: 2048,
		Checksum:  0xABCD,
	}

	buf := make([]byte, PageHeaderSize)
	if err := original.Serialize(buf); err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	restored := &PageHeader{}
	if err := restored.Deserialize(buf); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if *restored != *original {
		t.Errorf("Deserialize = %+v, want %+v", *restored, *original)
	}
}

func TestPageHeaderShortBuffer(t *testing.T) {
	h := &PageHeader{}
	if err := h.Serialize(make([]byte, 4)); err != ErrInvalidPageSize {
		t.Errorf("Serialize error = %v, want ErrInvalidPageSize", err)
	}
	if err := h.Deserialize(make([]byte, 4)); err != ErrInvalidPageSize {
		t.Errorf("Deserialize error = %v, want ErrInvalidPageSize", err)
	}
}

func TestPageHeaderDirtyFlag(t *testing.T) {
	h := &PageHeader{Flags: PageFlagLeaf}

	h.SetDirty()
	if !h.IsDirty() {
		t.Error("IsDirty() = false after SetDirty")
	}
	h.ClearDirty()
	if h.IsDirty() {
		t.Error("IsDirty() = true after ClearDirty")
	}
	if h.Flags&PageFlagLeaf == 0 {
		t.Error("ClearDirty cleared the leaf flag")
	}
}

// =============================================================================
// Page Tests
// =============================================================================

func TestPageSerializeRoundTrip(t *testing.T) {
	page := NewPage(7, PageTypeIndex)
	copy(page.Data, []byte("hello index"))
	page.Header.ItemCount = 3

	buf, err := page.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	if len(buf) != PageSize {
		t.Fatalf("len(buf) = %d, want %d", len(buf), PageSize)
	}

	restored := &Page{}
	if err := restored.Deserialize(buf); err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if restored.Header.PageID != 7 || restored.Header.ItemCount != 3 {
		t.Errorf("header = %+v", restored.Header)
	}
	if !bytes.Equal(restored.Data, page.Data) {
		t.Error("data mismatch after round trip")
	}
}

func TestPageDeserializeDetectsCorruption(t *testing.T) {
	page := NewPage(3, PageTypeIndex)
	copy(page.Data, []byte("payload"))
	buf, err := page.Serialize()
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	buf[PageHeaderSize+2] ^= 0xFF

	restored := &Page{}
	if err := restored.Deserialize(buf); !errors.Is(err, ErrInvalidChecksum) {
		t.Errorf("Deserialize error = %v, want ErrInvalidChecksum", err)
	}
}

func TestPageDeserializeFreePageSkipsChecksum(t *testing.T) {
	buf := make([]byte, PageSize)
	buf[PageHeaderSize] = 1

	page := &Page{}
	if err := page.Deserialize(buf); err != nil {
		t.Errorf("Deserialize free page failed: %v", err)
	}
}

func TestPageReset(t *testing.T) {
	page := NewPage(9, PageTypeIndex)
	page.Data[0] = 0xFF
	page.Header.ItemCount = 5
	page.Header.SetDirty()

	page.Reset(PageTypeOverflow)

	if page.Header.PageType != PageTypeOverflow {
		t.Errorf("PageType = %v, want Overflow", page.Header.PageType)
	}
	if page.Header.ItemCount != 0 || page.Header.Flags != 0 {
		t.Errorf("header not reset: %+v", page.Header)
	}
	if page.Header.PageID != 9 {
		t.Errorf("PageID = %d, want 9", page.Header.PageID)
	}
	if page.Data[0] != 0 {
		t.Error("data not cleared")
	}
}
