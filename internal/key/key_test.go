package key

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/KilimcininKorOglu/obaidx/internal/object"
)

func TestTypeString(t *testing.T) {
	tests := []struct {
		typ      Type
		expected string
	}{
		{TypeBool, "bool"},
		{TypeInt32, "int32"},
		{TypeUint64, "uint64"},
		{TypeString, "string"},
		{TypeGUID, "guid"},
		{TypeDecimal, "decimal"},
		{TypeRef, "ref"},
		{Type(200), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.expected {
				t.Errorf("Type.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	for typ := TypeBool; typ <= TypeRef; typ++ {
		got, err := ParseType(typ.String())
		if err != nil {
			t.Fatalf("ParseType(%q) failed: %v", typ.String(), err)
		}
		if got != typ {
			t.Errorf("ParseType(%q) = %v, want %v", typ.String(), got, typ)
		}
	}

	if _, err := ParseType("complex128"); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
	if _, err := ParseType("invalid"); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType for the invalid tag, got %v", err)
	}
}

func TestCompare(t *testing.T) {
	g1 := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	g2 := uuid.MustParse("10000000-0000-0000-0000-000000000000")

	tests := []struct {
		name string
		a, b Key
		want int
	}{
		{"bool", Bool(false), Bool(true), -1},
		{"int8 negative", Int8(-5), Int8(3), -1},
		{"int64 equal", Int64(42), Int64(42), 0},
		{"int64 extremes", Int64(math.MinInt64), Int64(math.MaxInt64), -1},
		{"uint64 large", Uint64(math.MaxUint64), Uint64(1), 1},
		{"uint8", Uint8(200), Uint8(100), 1},
		{"float", Float64(1.5), Float64(2.5), -1},
		{"float zero", Float64(math.Copysign(0, -1)), Float64(0), 0},
		{"float NaN first", Float64(math.NaN()), Float64(math.Inf(-1)), -1},
		{"string", String("ab"), String("abc"), -1},
		{"bytes", Bytes([]byte{1, 2}), Bytes([]byte{1, 1, 9}), 1},
		{"guid", GUID(g1), GUID(g2), -1},
		{"decimal", Decimal(decimal.RequireFromString("1.10")), Decimal(decimal.RequireFromString("1.1")), 0},
		{"decimal order", Decimal(decimal.RequireFromString("-3")), Decimal(decimal.RequireFromString("2.5")), -1},
		{"ref", Ref(object.Handle(7)), Ref(object.Handle(3)), 1},
		{"mixed tags", Bool(true), Int8(0), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%#v, %#v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := Compare(tt.b, tt.a); got != -tt.want {
				t.Errorf("Compare(%#v, %#v) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
		})
	}
}

func TestFromValue(t *testing.T) {
	tests := []struct {
		value any
		typ   Type
	}{
		{true, TypeBool},
		{int8(1), TypeInt8},
		{int16(1), TypeInt16},
		{int32(1), TypeInt32},
		{int64(1), TypeInt64},
		{1, TypeInt64},
		{uint8(1), TypeUint8},
		{uint16(1), TypeUint16},
		{uint32(1), TypeUint32},
		{uint64(1), TypeUint64},
		{uint(1), TypeUint64},
		{float32(1), TypeFloat32},
		{1.0, TypeFloat64},
		{"s", TypeString},
		{[]byte("b"), TypeBytes},
		{uuid.New(), TypeGUID},
		{decimal.NewFromInt(3), TypeDecimal},
		{object.Handle(4), TypeRef},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			k, err := FromValue(tt.value)
			if err != nil {
				t.Fatalf("FromValue(%v) failed: %v", tt.value, err)
			}
			if k.Type() != tt.typ {
				t.Errorf("FromValue(%v).Type() = %v, want %v", tt.value, k.Type(), tt.typ)
			}
			if !k.Inclusive {
				t.Error("keys should be inclusive by default")
			}
		})
	}

	if _, err := FromValue(complex(1, 2)); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestParseRoundTrip(t *testing.T) {
	keys := []Key{
		Bool(true),
		Int8(-8),
		Int16(-1600),
		Int32(320000),
		Int64(-1 << 40),
		Uint8(255),
		Uint16(65535),
		Uint32(1 << 31),
		Uint64(1 << 63),
		Float32(1.25),
		Float64(-2.5e10),
		String("hello"),
		Bytes([]byte{0xde, 0xad}),
		GUID(uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")),
		Decimal(decimal.RequireFromString("12345.678")),
		Ref(object.Handle(99)),
	}

	for _, k := range keys {
		t.Run(k.Type().String(), func(t *testing.T) {
			parsed, err := Parse(k.Type(), k.String())
			if err != nil {
				t.Fatalf("Parse(%v, %q) failed: %v", k.Type(), k.String(), err)
			}
			if !Equal(parsed, k) {
				t.Errorf("Parse(%q) = %#v, want %#v", k.String(), parsed, k)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		typ Type
		s   string
	}{
		{TypeInt8, "300"},
		{TypeUint16, "-1"},
		{TypeBool, "maybe"},
		{TypeBytes, "zz"},
		{TypeGUID, "not-a-guid"},
		{TypeDecimal, "1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			if _, err := Parse(tt.typ, tt.s); !errors.Is(err, ErrInvalidLiteral) {
				t.Errorf("Parse(%v, %q) error = %v, want ErrInvalidLiteral", tt.typ, tt.s, err)
			}
		})
	}
}

func TestInclusion(t *testing.T) {
	k := Int32(5)
	if !k.Inclusive {
		t.Fatal("new key should be inclusive")
	}
	ex := k.Exclusive()
	if ex.Inclusive {
		t.Error("Exclusive() should clear the inclusion flag")
	}
	if !k.Inclusive {
		t.Error("Exclusive() must not modify the receiver")
	}
	if !Equal(k, ex) {
		t.Error("inclusion must not affect equality")
	}
	if !ex.WithInclusion(true).Inclusive {
		t.Error("WithInclusion(true) should set the flag")
	}
}

func TestBytesKeyIsCopied(t *testing.T) {
	buf := []byte("abc")
	k := Bytes(buf)
	buf[0] = 'z'
	if string(k.BytesValue()) != "abc" {
		t.Errorf("Bytes key aliases caller buffer: %q", k.BytesValue())
	}
}
