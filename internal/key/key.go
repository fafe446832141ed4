package key

import (
	"bytes"
	"cmp"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/KilimcininKorOglu/obaidx/internal/object"
)

// Type is the tag of a Key.
type Type uint8

const (
	// TypeInvalid is the zero Type; no index can be declared over it.
	TypeInvalid Type = iota
	TypeBool
	TypeInt8
	TypeUint8
	TypeInt16
	TypeUint16
	TypeInt32
	TypeUint32
	TypeInt64
	TypeUint64
	TypeFloat32
	TypeFloat64
	TypeString
	TypeBytes
	TypeGUID
	TypeDecimal
	TypeRef
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeInt8:    "int8",
	TypeUint8:   "uint8",
	TypeInt16:   "int16",
	TypeUint16:  "uint16",
	TypeInt32:   "int32",
	TypeUint32:  "uint32",
	TypeInt64:   "int64",
	TypeUint64:  "uint64",
	TypeFloat32: "float32",
	TypeFloat64: "float64",
	TypeString:  "string",
	TypeBytes:   "bytes",
	TypeGUID:    "guid",
	TypeDecimal: "decimal",
	TypeRef:     "ref",
}

// Key errors.
var (
	ErrUnsupportedType = errors.New("unsupported key type")
	ErrInvalidLiteral  = errors.New("invalid key literal")
)

// String returns the lower-case name of the type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Valid reports whether t names a concrete key type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t <= TypeRef
}

// Signed reports whether t is a signed integer type.
func (t Type) Signed() bool {
	return t == TypeInt8 || t == TypeInt16 || t == TypeInt32 || t == TypeInt64
}

// Unsigned reports whether t is an unsigned integer type.
func (t Type) Unsigned() bool {
	return t == TypeUint8 || t == TypeUint16 || t == TypeUint32 || t == TypeUint64
}

// ParseType parses a type name as returned by Type.String.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if t != int(TypeInvalid) && name == s {
			return Type(t), nil
		}
	}
	return TypeInvalid, errors.Wrapf(ErrUnsupportedType, "%q", s)
}

// Key is a typed key value.
type Key struct {
	typ  Type
	num  uint64 // bool, integers (signed values stored as two's complement), refs
	flt  float64
	str  string
	raw  []byte
	guid uuid.UUID
	dec  decimal.Decimal

	// Inclusive marks a closed range endpoint. It is ignored for point
	// operations.
	Inclusive bool
}

// Bool returns a boolean key.
func Bool(v bool) Key {
	var n uint64
	if v {
		n = 1
	}
	return Key{typ: TypeBool, num: n, Inclusive: true}
}

// Int8 returns an int8 key.
func Int8(v int8) Key { return signed(TypeInt8, int64(v)) }

// Int16 returns an int16 key.
func Int16(v int16) Key { return signed(TypeInt16, int64(v)) }

// Int32 returns an int32 key.
func Int32(v int32) Key { return signed(TypeInt32, int64(v)) }

// Int64 returns an int64 key.
func Int64(v int64) Key { return signed(TypeInt64, v) }

// Uint8 returns a uint8 key.
func Uint8(v uint8) Key { return unsigned(TypeUint8, uint64(v)) }

// Uint16 returns a uint16 key.
func Uint16(v uint16) Key { return unsigned(TypeUint16, uint64(v)) }

// Uint32 returns a uint32 key.
func Uint32(v uint32) Key { return unsigned(TypeUint32, uint64(v)) }

// Uint64 returns a uint64 key.
func Uint64(v uint64) Key { return unsigned(TypeUint64, v) }

func signed(t Type, v int64) Key {
	return Key{typ: t, num: uint64(v), Inclusive: true}
}

func unsigned(t Type, v uint64) Key {
	return Key{typ: t, num: v, Inclusive: true}
}

// Float32 returns a float32 key.
func Float32(v float32) Key {
	return Key{typ: TypeFloat32, flt: float64(v), Inclusive: true}
}

// Float64 returns a float64 key.
func Float64(v float64) Key {
	return Key{typ: TypeFloat64, flt: v, Inclusive: true}
}

// String returns a string key.
func String(v string) Key {
	return Key{typ: TypeString, str: v, Inclusive: true}
}

// Bytes returns a byte array key. The slice is copied.
func Bytes(v []byte) Key {
	raw := make([]byte, len(v))
	copy(raw, v)
	return Key{typ: TypeBytes, raw: raw, Inclusive: true}
}

// GUID returns a 128-bit GUID key.
func GUID(v uuid.UUID) Key {
	return Key{typ: TypeGUID, guid: v, Inclusive: true}
}

// Decimal returns a big-decimal key.
func Decimal(v decimal.Decimal) Key {
	return Key{typ: TypeDecimal, dec: v, Inclusive: true}
}

// Ref returns a key referencing another stored object.
func Ref(h object.Handle) Key {
	return Key{typ: TypeRef, num: uint64(h), Inclusive: true}
}

// FromValue builds a Key from a Go value of a supported type.
func FromValue(v any) (Key, error) {
	switch x := v.(type) {
	case Key:
		return x, nil
	case bool:
		return Bool(x), nil
	case int8:
		return Int8(x), nil
	case int16:
		return Int16(x), nil
	case int32:
		return Int32(x), nil
	case int64:
		return Int64(x), nil
	case int:
		return Int64(int64(x)), nil
	case uint8:
		return Uint8(x), nil
	case uint16:
		return Uint16(x), nil
	case uint32:
		return Uint32(x), nil
	case uint64:
		return Uint64(x), nil
	case uint:
		return Uint64(uint64(x)), nil
	case float32:
		return Float32(x), nil
	case float64:
		return Float64(x), nil
	case string:
		return String(x), nil
	case []byte:
		return Bytes(x), nil
	case uuid.UUID:
		return GUID(x), nil
	case decimal.Decimal:
		return Decimal(x), nil
	case object.Handle:
		return Ref(x), nil
	default:
		return Key{}, errors.Wrapf(ErrUnsupportedType, "%T", v)
	}
}

// Parse parses the textual form of a key of type t.
// Byte array keys are written in hex, references as "#n" or "n".
func Parse(t Type, s string) (Key, error) {
	wrap := func(err error) error {
		return errors.Wrapf(ErrInvalidLiteral, "%s %q: %v", t, s, err)
	}

	switch {
	case t == TypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Key{}, wrap(err)
		}
		return Bool(b), nil
	case t.Signed():
		n, err := strconv.ParseInt(s, 10, t.bits())
		if err != nil {
			return Key{}, wrap(err)
		}
		return signed(t, n), nil
	case t.Unsigned():
		n, err := strconv.ParseUint(s, 10, t.bits())
		if err != nil {
			return Key{}, wrap(err)
		}
		return unsigned(t, n), nil
	case t == TypeFloat32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Key{}, wrap(err)
		}
		return Float32(float32(f)), nil
	case t == TypeFloat64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Key{}, wrap(err)
		}
		return Float64(f), nil
	case t == TypeString:
		return String(s), nil
	case t == TypeBytes:
		raw, err := hex.DecodeString(s)
		if err != nil {
			return Key{}, wrap(err)
		}
		return Key{typ: TypeBytes, raw: raw, Inclusive: true}, nil
	case t == TypeGUID:
		g, err := uuid.Parse(s)
		if err != nil {
			return Key{}, wrap(err)
		}
		return GUID(g), nil
	case t == TypeDecimal:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return Key{}, wrap(err)
		}
		return Decimal(d), nil
	case t == TypeRef:
		n, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 10, 64)
		if err != nil {
			return Key{}, wrap(err)
		}
		return Ref(object.Handle(n)), nil
	default:
		return Key{}, errors.Wrapf(ErrUnsupportedType, "%s", t)
	}
}

func (t Type) bits() int {
	switch t {
	case TypeInt8, TypeUint8:
		return 8
	case TypeInt16, TypeUint16:
		return 16
	case TypeInt32, TypeUint32:
		return 32
	default:
		return 64
	}
}

// Type returns the tag of the key.
func (k Key) Type() Type { return k.typ }

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool { return k.typ == TypeInvalid }

// Exclusive returns a copy of k usable as an open range endpoint.
func (k Key) Exclusive() Key {
	k.Inclusive = false
	return k
}

// WithInclusion returns a copy of k with the given inclusion flag.
func (k Key) WithInclusion(inclusive bool) Key {
	k.Inclusive = inclusive
	return k
}

// Ptr returns a pointer to a copy of k, for optional range bounds.
func (k Key) Ptr() *Key { return &k }

// BoolValue returns the value of a boolean key.
func (k Key) BoolValue() bool { return k.num != 0 }

// IntValue returns the value of a signed integer key.
func (k Key) IntValue() int64 { return int64(k.num) }

// UintValue returns the value of an unsigned integer key.
func (k Key) UintValue() uint64 { return k.num }

// FloatValue returns the value of a float32 or float64 key.
func (k Key) FloatValue() float64 { return k.flt }

// StringValue returns the value of a string key.
func (k Key) StringValue() string { return k.str }

// BytesValue returns the value of a byte array key.
func (k Key) BytesValue() []byte { return k.raw }

// GUIDValue returns the value of a GUID key.
func (k Key) GUIDValue() uuid.UUID { return k.guid }

// DecimalValue returns the value of a decimal key.
func (k Key) DecimalValue() decimal.Decimal { return k.dec }

// RefValue returns the handle of an object reference key.
func (k Key) RefValue() object.Handle { return object.Handle(k.num) }

// Value returns the key as the Go value it was built from.
func (k Key) Value() any {
	switch k.typ {
	case TypeBool:
		return k.BoolValue()
	case TypeInt8:
		return int8(k.num)
	case TypeInt16:
		return int16(k.num)
	case TypeInt32:
		return int32(k.num)
	case TypeInt64:
		return int64(k.num)
	case TypeUint8:
		return uint8(k.num)
	case TypeUint16:
		return uint16(k.num)
	case TypeUint32:
		return uint32(k.num)
	case TypeUint64:
		return k.num
	case TypeFloat32:
		return float32(k.flt)
	case TypeFloat64:
		return k.flt
	case TypeString:
		return k.str
	case TypeBytes:
		return k.raw
	case TypeGUID:
		return k.guid
	case TypeDecimal:
		return k.dec
	case TypeRef:
		return object.Handle(k.num)
	default:
		return nil
	}
}

// String formats the key in the form accepted by Parse.
func (k Key) String() string {
	switch {
	case k.typ == TypeBool:
		return strconv.FormatBool(k.BoolValue())
	case k.typ.Signed():
		return strconv.FormatInt(int64(k.num), 10)
	case k.typ.Unsigned():
		return strconv.FormatUint(k.num, 10)
	case k.typ == TypeFloat32:
		return strconv.FormatFloat(k.flt, 'g', -1, 32)
	case k.typ == TypeFloat64:
		return strconv.FormatFloat(k.flt, 'g', -1, 64)
	case k.typ == TypeString:
		return k.str
	case k.typ == TypeBytes:
		return hex.EncodeToString(k.raw)
	case k.typ == TypeGUID:
		return k.guid.String()
	case k.typ == TypeDecimal:
		return k.dec.String()
	case k.typ == TypeRef:
		return object.Handle(k.num).String()
	default:
		return "<invalid>"
	}
}

// GoString implements fmt.GoStringer.
func (k Key) GoString() string {
	return fmt.Sprintf("key.%s(%s)", k.typ, k.String())
}

// Compare orders two keys. Keys of different types are ordered by tag.
// Floats use a total order in which NaN sorts before every other value.
func Compare(a, b Key) int {
	if a.typ != b.typ {
		return cmp.Compare(a.typ, b.typ)
	}

	switch {
	case a.typ == TypeBool || a.typ.Unsigned() || a.typ == TypeRef:
		return cmp.Compare(a.num, b.num)
	case a.typ.Signed():
		return cmp.Compare(int64(a.num), int64(b.num))
	case a.typ == TypeFloat32 || a.typ == TypeFloat64:
		return CompareFloat(a.flt, b.flt)
	case a.typ == TypeString:
		return strings.Compare(a.str, b.str)
	case a.typ == TypeBytes:
		return bytes.Compare(a.raw, b.raw)
	case a.typ == TypeGUID:
		return bytes.Compare(a.guid[:], b.guid[:])
	case a.typ == TypeDecimal:
		return a.dec.Cmp(b.dec)
	default:
		return 0
	}
}

// CompareFloat is the float order used by keys: NaN first, -0 equal to +0.
func CompareFloat(a, b float64) int {
	return cmp.Compare(a, b)
}

// Equal reports whether a and b have the same type and value.
func Equal(a, b Key) bool {
	return a.typ == b.typ && Compare(a, b) == 0
}
