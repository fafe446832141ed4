// Package btree provides the B+ Tree engine behind obaidx indexes.
package btree

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/KilimcininKorOglu/obaidx/internal/object"
	"github.com/KilimcininKorOglu/obaidx/internal/storage"
)

// Codec orders and serializes the keys of one key type.
//
// A fixed codec has Width() > 0 and appends exactly Width() bytes per key;
// its pages store keys inline. A variable codec has Width() == 0; its pages
// store keys in a blob area addressed by an offset table.
type Codec[K any] interface {
	Compare(a, b K) int
	Width() int
	Append(dst []byte, k K) []byte
	Decode(src []byte) (K, error)
}

// PrefixCodec is implemented by codecs of sequence-like keys that support
// prefix search.
type PrefixCodec[K any] interface {
	Codec[K]
	HasPrefix(k, prefix K) bool
	Len(k K) int
	Truncate(k K, n int) K
}

// ErrKeyDecode is returned when an encoded key does not decode.
var ErrKeyDecode = errors.New("key does not decode")

// refWidth is the encoded size of a child page id or value handle.
const refWidth = 8

// VariableCapacity bounds pages of variable codecs.
const VariableCapacity = 100

// MinCapacity is the smallest fan-out the algorithms accept.
const MinCapacity = 3

// DefaultCapacity derives the page capacity of a codec from the page byte
// budget: fixed codecs fill one page, variable codecs use VariableCapacity.
func DefaultCapacity[K any](c Codec[K]) int {
	w := c.Width()
	if w == 0 {
		return VariableCapacity
	}
	return (storage.PageDataSize - pageHeaderLen - refWidth) / (w + refWidth)
}

type fixedCodec[K any] struct {
	width int
	cmp   func(a, b K) int
	put   func(b []byte, k K)
	get   func(b []byte) K
}

func (c fixedCodec[K]) Compare(a, b K) int { return c.cmp(a, b) }
func (c fixedCodec[K]) Width() int         { return c.width }

func (c fixedCodec[K]) Append(dst []byte, k K) []byte {
	n := len(dst)
	dst = append(dst, make([]byte, c.width)...)
	c.put(dst[n:], k)
	return dst
}

func (c fixedCodec[K]) Decode(src []byte) (K, error) {
	if len(src) != c.width {
		var zero K
		return zero, errors.Wrapf(ErrKeyDecode, "got %d bytes, want %d", len(src), c.width)
	}
	return c.get(src), nil
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

// Fixed-width codecs. Integers and floats are stored little-endian; their
// order comes from Compare, not from the encoded bytes.
var (
	Bool Codec[bool] = fixedCodec[bool]{1, compareBool,
		func(b []byte, k bool) {
			if k {
				b[0] = 1
			}
		},
		func(b []byte) bool { return b[0] != 0 }}

	Int8 Codec[int8] = fixedCodec[int8]{1, cmp.Compare[int8],
		func(b []byte, k int8) { b[0] = byte(k) },
		func(b []byte) int8 { return int8(b[0]) }}

	Uint8 Codec[uint8] = fixedCodec[uint8]{1, cmp.Compare[uint8],
		func(b []byte, k uint8) { b[0] = k },
		func(b []byte) uint8 { return b[0] }}

	Int16 Codec[int16] = fixedCodec[int16]{2, cmp.Compare[int16],
		func(b []byte, k int16) { binary.LittleEndian.PutUint16(b, uint16(k)) },
		func(b []byte) int16 { return int16(binary.LittleEndian.Uint16(b)) }}

	Uint16 Codec[uint16] = fixedCodec[uint16]{2, cmp.Compare[uint16],
		binary.LittleEndian.PutUint16,
		binary.LittleEndian.Uint16}

	Int32 Codec[int32] = fixedCodec[int32]{4, cmp.Compare[int32],
		func(b []byte, k int32) { binary.LittleEndian.PutUint32(b, uint32(k)) },
		func(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) }}

	Uint32 Codec[uint32] = fixedCodec[uint32]{4, cmp.Compare[uint32],
		binary.LittleEndian.PutUint32,
		binary.LittleEndian.Uint32}

	Int64 Codec[int64] = fixedCodec[int64]{8, cmp.Compare[int64],
		func(b []byte, k int64) { binary.LittleEndian.PutUint64(b, uint64(k)) },
		func(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) }}

	Uint64 Codec[uint64] = fixedCodec[uint64]{8, cmp.Compare[uint64],
		binary.LittleEndian.PutUint64,
		binary.LittleEndian.Uint64}

	Float32 Codec[float32] = fixedCodec[float32]{4, cmp.Compare[float32],
		func(b []byte, k float32) { binary.LittleEndian.PutUint32(b, math.Float32bits(k)) },
		func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }}

	Float64 Codec[float64] = fixedCodec[float64]{8, cmp.Compare[float64],
		func(b []byte, k float64) { binary.LittleEndian.PutUint64(b, math.Float64bits(k)) },
		func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }}

	GUID Codec[uuid.UUID] = fixedCodec[uuid.UUID]{16,
		func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) },
		func(b []byte, k uuid.UUID) { copy(b, k[:]) },
		func(b []byte) uuid.UUID {
			var u uuid.UUID
			copy(u[:], b)
			return u
		}}

	// Ref orders object references by their stable handle.
	Ref Codec[object.Handle] = fixedCodec[object.Handle]{8, cmp.Compare[object.Handle],
		func(b []byte, k object.Handle) { binary.LittleEndian.PutUint64(b, uint64(k)) },
		func(b []byte) object.Handle { return object.Handle(binary.LittleEndian.Uint64(b)) }}
)

type stringCodec struct{}

func (stringCodec) Compare(a, b string) int            { return strings.Compare(a, b) }
func (stringCodec) Width() int                         { return 0 }
func (stringCodec) Append(dst []byte, k string) []byte { return append(dst, k...) }
func (stringCodec) Decode(src []byte) (string, error)  { return string(src), nil }
func (stringCodec) HasPrefix(k, prefix string) bool    { return strings.HasPrefix(k, prefix) }
func (stringCodec) Len(k string) int                   { return len(k) }
func (stringCodec) Truncate(k string, n int) string    { return k[:n] }

type bytesCodec struct{}

func (bytesCodec) Compare(a, b []byte) int            { return bytes.Compare(a, b) }
func (bytesCodec) Width() int                         { return 0 }
func (bytesCodec) Append(dst []byte, k []byte) []byte { return append(dst, k...) }
func (bytesCodec) Decode(src []byte) ([]byte, error)  { return bytes.Clone(src), nil }
func (bytesCodec) HasPrefix(k, prefix []byte) bool    { return bytes.HasPrefix(k, prefix) }
func (bytesCodec) Len(k []byte) int                   { return len(k) }
func (bytesCodec) Truncate(k []byte, n int) []byte    { return k[:n:n] }

// Decimal keys are stored as their canonical string and ordered
// numerically, so 1.5 and 1.50 compare equal.
type decimalCodec struct{}

func (decimalCodec) Compare(a, b decimal.Decimal) int { return a.Cmp(b) }
func (decimalCodec) Width() int                       { return 0 }

func (decimalCodec) Append(dst []byte, k decimal.Decimal) []byte {
	return append(dst, k.String()...)
}

func (decimalCodec) Decode(src []byte) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(string(src))
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(ErrKeyDecode, "decimal %q: %v", src, err)
	}
	return d, nil
}

// Variable-width codecs.
var (
	String  PrefixCodec[string]    = stringCodec{}
	Bytes   PrefixCodec[[]byte]    = bytesCodec{}
	Decimal Codec[decimal.Decimal] = decimalCodec{}
)
