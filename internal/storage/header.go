package storage

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cockroachdb/errors"
)

// File header constants.
const (
	// FileHeaderSize is the size of the file header (first page).
	FileHeaderSize = PageSize

	// CurrentVersion is the current file format version.
	CurrentVersion uint32 = 1

	// fileHeaderUsed is the number of header bytes covered by fields.
	fileHeaderUsed = 48
)

// Magic identifies an index file: "OBIX".
var Magic = [4]byte{'O', 'B', 'I', 'X'}

// FileHeader represents the first page of an index file.
// Layout:
//   - Bytes 0-3:   Magic number ("OBIX")
//   - Bytes 4-7:   Version (uint32)
//   - Bytes 8-11:  PageSize (uint32)
//   - Bytes 12-19: TotalPages (uint64)
//   - Bytes 20-27: FreeListHead (PageID)
//   - Bytes 28-35: Root (PageID), the entry point of the catalogue
//   - Bytes 36-43: Reserved
//   - Bytes 44-47: Checksum (CRC32 of bytes 0-43)
type FileHeader struct {
	Magic        [4]byte
	Version      uint32
	PageSize     uint32
	TotalPages   uint64
	FreeListHead PageID
	Root         PageID
	Checksum     uint32
}

// Errors for file header operations.
var (
	ErrInvalidMagic       = errors.New("invalid magic number: not an index file")
	ErrUnsupportedVersion = errors.New("unsupported file format version")
	ErrHeaderChecksum     = errors.New("file header checksum mismatch")
	ErrInvalidHeaderSize  = errors.New("invalid header size")
)

// NewFileHeader creates a FileHeader with default values.
func NewFileHeader() *FileHeader {
	return &FileHeader{
		Magic:      Magic,
		Version:    CurrentVersion,
		PageSize:   PageSize,
		TotalPages: 1,
	}
}

// Serialize returns the header as FileHeaderSize bytes.
func (h *FileHeader) Serialize() ([]byte, error) {
	buf := make([]byte, FileHeaderSize)
	return buf, h.SerializeTo(buf)
}

// SerializeTo writes the header into buf and refreshes the checksum.
func (h *FileHeader) SerializeTo(buf []byte) error {
	if len(buf) < FileHeaderSize {
		return ErrInvalidHeaderSize
	}
	clear(buf[:FileHeaderSize])

	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.PageSize)
	binary.LittleEndian.PutUint64(buf[12:20], h.TotalPages)
	binary.LittleEndian.PutUint64(buf[20:28], uint64(h.FreeListHead))
	binary.LittleEndian.PutUint64(buf[28:36], uint64(h.Root))

	h.Checksum = crc32.ChecksumIEEE(buf[0:44])
	binary.LittleEndian.PutUint32(buf[44:48], h.Checksum)
	return nil
}

// Deserialize reads the header from buf without validating it.
func (h *FileHeader) Deserialize(buf []byte) error {
	if len(buf) < fileHeaderUsed {
		return ErrInvalidHeaderSize
	}

	copy(h.Magic[:], buf[0:4])
	h.Version = binary.LittleEndian.Uint32(buf[4:8])
	h.PageSize = binary.LittleEndian.Uint32(buf[8:12])
	h.TotalPages = binary.LittleEndian.Uint64(buf[12:20])
	h.FreeListHead = PageID(binary.LittleEndian.Uint64(buf[20:28]))
	h.Root = PageID(binary.LittleEndian.Uint64(buf[28:36]))
	h.Checksum = binary.LittleEndian.Uint32(buf[44:48])
	return nil
}

// DeserializeAndValidate reads the header and checks magic, version and
// checksum.
func (h *FileHeader) DeserializeAndValidate(buf []byte) error {
	if err := h.Deserialize(buf); err != nil {
		return err
	}
	if h.Magic != Magic {
		return ErrInvalidMagic
	}
	if h.Version == 0 || h.Version > CurrentVersion {
		return errors.Wrapf(ErrUnsupportedVersion, "version %d", h.Version)
	}
	if crc32.ChecksumIEEE(buf[0:44]) != h.Checksum {
		return ErrHeaderChecksum
	}
	return nil
}
