package storage

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cockroachdb/errors"
)

// PageSize is the size of a file page in bytes.
const PageSize = 4096

// PageHeaderSize is the size of the page header in bytes.
const PageHeaderSize = 16

// PageDataSize is the number of bytes available after the header.
const PageDataSize = PageSize - PageHeaderSize

// PageType represents the type of a page.
type PageType uint8

const (
	// PageTypeFree indicates a free/unused page.
	PageTypeFree PageType = iota
	// PageTypeIndex holds the head of an index page image.
	PageTypeIndex
	// PageTypeOverflow holds the continuation of an image that did not fit.
	PageTypeOverflow
	// PageTypeCatalog holds index catalogue data.
	PageTypeCatalog
)

// String returns the string representation of a PageType.
func (pt PageType) String() string {
	switch pt {
	case PageTypeFree:
		return "Free"
	case PageTypeIndex:
		return "Index"
	case PageTypeOverflow:
		return "Overflow"
	case PageTypeCatalog:
		return "Catalog"
	default:
		return "Unknown"
	}
}

// PageFlag represents flags for a page.
type PageFlag uint8

const (
	// PageFlagDirty indicates the page has been modified.
	PageFlagDirty PageFlag = 1 << iota
	// PageFlagLeaf indicates the page is a leaf node.
	PageFlagLeaf
)

// PageID represents a unique identifier for a page.
type PageID uint64

// InvalidPageID is never allocated; it marks an absent page.
const InvalidPageID PageID = 0

// PageHeader represents the first 16 bytes of each page.
// Layout:
//   - Bytes 0-7:   PageID (uint64)
//   - Byte 8:      PageType (uint8)
//   - Byte 9:      Flags (uint8)
//   - Bytes 10-11: ItemCount (uint16)
//   - Bytes 12-13: FreeSpace (uint16)
//   - Bytes 14-15: Checksum (uint16)
type PageHeader struct {
	PageID    PageID
	PageType  PageType
	Flags     PageFlag
	ItemCount uint16
	FreeSpace uint16
	Checksum  uint16
}

// Errors for page operations.
var (
	ErrInvalidPageSize = errors.New("invalid page size")
	ErrInvalidChecksum = errors.New("page checksum mismatch")
)

// Serialize writes the PageHeader to buf.
func (h *PageHeader) Serialize(buf []byte) error {
	if len(buf) < PageHeaderSize {
		return ErrInvalidPageSize
	}

	binary.LittleEndian.PutUint64(buf[0:8], uint64(h.PageID))
	buf[8] = byte(h.PageType)
	buf[9] = byte(h.Flags)
	binary.LittleEndian.PutUint16(buf[10:12], h.ItemCount)
	binary.LittleEndian.PutUint16(buf[12:14], h.FreeSpace)
	binary.LittleEndian.PutUint16(buf[14:16], h.Checksum)
	return nil
}

// Deserialize reads the PageHeader from buf.
func (h *PageHeader) Deserialize(buf []byte) error {
	if len(buf) < PageHeaderSize {
		return ErrInvalidPageSize
	}

	h.PageID = PageID(binary.LittleEndian.Uint64(buf[0:8]))
	h.PageType = PageType(buf[8])
	h.Flags = PageFlag(buf[9])
	h.ItemCount = binary.LittleEndian.Uint16(buf[10:12])
	h.FreeSpace = binary.LittleEndian.Uint16(buf[12:14])
	h.Checksum = binary.LittleEndian.Uint16(buf[14:16])
	return nil
}

// SetDirty sets the dirty flag.
func (h *PageHeader) SetDirty() { h.Flags |= PageFlagDirty }

// ClearDirty clears the dirty flag.
func (h *PageHeader) ClearDirty() { h.Flags &^= PageFlagDirty }

// IsDirty returns true if the page is marked as dirty.
func (h *PageHeader) IsDirty() bool { return h.Flags&PageFlagDirty != 0 }

// Page represents a complete file page.
type Page struct {
	Header PageHeader
	Data   []byte // Page data excluding header
}

// NewPage creates a new zeroed page with the given ID and type.
func NewPage(pageID PageID, pageType PageType) *Page {
	return &Page{
		Header: PageHeader{
			PageID:    pageID,
			PageType:  pageType,
			FreeSpace: PageDataSize,
		},
		Data: make([]byte, PageDataSize),
	}
}

// Serialize returns the page as PageSize bytes, refreshing the checksum.
func (p *Page) Serialize() ([]byte, error) {
	buf := make([]byte, PageSize)
	return buf, p.SerializeTo(buf)
}

// SerializeTo writes the page into buf, which must hold PageSize bytes.
func (p *Page) SerializeTo(buf []byte) error {
	if len(buf) < PageSize {
		return ErrInvalidPageSize
	}

	p.Header.Checksum = p.CalculateChecksum()
	if err := p.Header.Serialize(buf[:PageHeaderSize]); err != nil {
		return err
	}
	copy(buf[PageHeaderSize:], p.Data)
	return nil
}

// Deserialize reads the page from buf and verifies its checksum.
func (p *Page) Deserialize(buf []byte) error {
	if len(buf) < PageSize {
		return ErrInvalidPageSize
	}

	if err := p.Header.Deserialize(buf[:PageHeaderSize]); err != nil {
		return err
	}

	if len(p.Data) < PageDataSize {
		p.Data = make([]byte, PageDataSize)
	}
	copy(p.Data, buf[PageHeaderSize:PageSize])

	if p.Header.PageType != PageTypeFree && !p.ValidateChecksum() {
		return errors.Wrapf(ErrInvalidChecksum, "page %d", p.Header.PageID)
	}
	return nil
}

// CalculateChecksum computes the CRC32 of the data truncated to 16 bits.
func (p *Page) CalculateChecksum() uint16 {
	return uint16(crc32.ChecksumIEEE(p.Data) & 0xFFFF)
}

// ValidateChecksum verifies the stored checksum.
func (p *Page) ValidateChecksum() bool {
	return p.Header.Checksum == p.CalculateChecksum()
}

// Reset clears the page data and resets the header to the given type.
func (p *Page) Reset(pageType PageType) {
	p.Header.PageType = pageType
	p.Header.Flags = 0
	p.Header.ItemCount = 0
	p.Header.FreeSpace = PageDataSize
	p.Header.Checksum = 0
	clear(p.Data)
}
