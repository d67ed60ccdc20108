// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastream

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestEncodeFramedString(t *testing.T) {
	t.Parallel()
	encoder := NewEncoder(nil)

	framed, err := encoder.EncodeFramed("hi")
	if err != nil {
		t.Fatalf("EncodeFramed: %v", err)
	}
	want := mustHex(t, "00000008 00000004 00680069")
	if !bytes.Equal(framed, want) {
		t.Fatalf("EncodeFramed(\"hi\"): got %x, want %x", framed, want)
	}

	value, remainder, err := NewDecoder(nil).Decode(framed[4:], TypeShape(TypeString))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if value != NewString("hi") || len(remainder) != 0 {
		t.Errorf("Decode: got %v with %d bytes left, want \"hi\" with none", value, len(remainder))
	}
}

func TestEncodeFramedNullString(t *testing.T) {
	t.Parallel()
	framed, err := NewEncoder(nil).EncodeFramed(NullString())
	if err != nil {
		t.Fatalf("EncodeFramed: %v", err)
	}
	want := mustHex(t, "00000004 ffffffff")
	if !bytes.Equal(framed, want) {
		t.Fatalf("EncodeFramed(null): got %x, want %x", framed, want)
	}

	value, _, err := NewDecoder(nil).Decode(framed[4:], TypeShape(TypeString))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	decoded, ok := value.(String)
	if !ok || !decoded.Null {
		t.Errorf("Decode: got %v, want null String", value)
	}
}

func TestEncodeWireFormat(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"native string", "hi", "00000004 00680069"},
		{"empty string differs from null", NewString(""), "00000000"},
		{"native uint", 7, "00000007"},
		{"native bool", false, "00"},
		{"native float", 1.5, "3ff8000000000000"},
		{"native bytes", []byte{0xde, 0xad}, "00000002 dead"},
		{"explicit int", Int(-1), "ffffffff"},
		{"explicit short", Short(2), "0002"},
		{"explicit int64", Int64(-2), "fffffffffffffffe"},
		{"char", Char('z'), "7a"},
		{"string list", NewStringList("a", "b"), "00000002 00000002 0061 00000002 0062"},
		{"native slice", []any{"a", true}, "00000002 0000000a 00 00000002 0061 00000001 00 01"},
		{"list with null", List{Null{Of: TypeInt}}, "00000001 00000002 01"},
		{"native map sorted", map[string]int{"b": 2, "a": 1}, "00000002 00000002 0061 00000003 00 00000001 00000002 0062 00000003 00 00000002"},
		{
			"map keeps given order",
			Map{{Key: NewString("b"), Value: UInt(2)}, {Key: NewString("a"), Value: UInt(1)}},
			"00000002 00000002 0062 00000003 00 00000002 00000002 0061 00000003 00 00000001",
		},
		{"variant", Variant{Value: NewString("hi")}, "0000000a 00 00000004 00680069"},
		{"null variant", Null{Of: TypeString}, "0000000a 01"},
		{"null user type", Null{Of: TypeUserType, Name: "NetworkId"}, "0000007f 01 0000000a 4e6574776f726b496400"},
		{"nil", nil, ""},
		{"time", Time(60000), "0000ea60"},
		{"native time", time.Date(1970, 1, 2, 0, 0, 1, 0, time.UTC), "00253d8d 000003e8 01"},
		{
			"user type in variant",
			Variant{Value: UserType{Name: "NetworkId", Fields: []Field{{Value: Int(5)}}}},
			"0000007f 00 0000000a 4e6574776f726b496400 00000005",
		},
	}

	encoder := NewEncoder(testRegistry())
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			got, err := encoder.Encode(test.value)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			want := mustHex(t, test.want)
			if !bytes.Equal(got, want) {
				t.Errorf("Encode(%v): got %x, want %x", test.value, got, want)
			}
		})
	}
}

func TestEncodeRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		value any
		want  error
	}{
		{"negative native int", -1, ErrUnsupportedValue},
		{"oversized native int", uint64(1 << 40), ErrUnsupportedValue},
		{"channel", make(chan int), ErrUnsupportedValue},
		{"non-string map key", map[int]string{1: "a"}, ErrUnsupportedValue},
		{"nil list element", List{nil}, ErrUnsupportedValue},
		{"nested variant in field", UserType{Name: "NetworkId", Fields: []Field{{Value: Variant{Value: Int(1)}}}}, ErrUnsupportedValue},
		{"unregistered user type", UserType{Name: "Missing"}, ErrUnregisteredType},
		{"alias of wrong type", UserType{Name: "NetworkId", Fields: []Field{{Value: UInt(1)}}}, ErrUnsupportedValue},
		{"composite field count", UserType{Name: "BufferInfo", Fields: []Field{{Name: "id", Value: Int(1)}}}, ErrUnsupportedValue},
		{"null of unknown type", Null{Of: Type(99)}, ErrUnsupportedValue},
		{"user type without name", Variant{Value: UserType{}}, ErrUnsupportedValue},
	}

	encoder := NewEncoder(testRegistry())
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			data, err := encoder.Encode(test.value)
			if !errors.Is(err, test.want) {
				t.Fatalf("Encode error: got %v, want %v", err, test.want)
			}
			if data != nil {
				t.Errorf("Encode returned %x alongside error", data)
			}
		})
	}
}

func TestEncodeWithoutRegistryWritesUserTypesAsGiven(t *testing.T) {
	t.Parallel()
	value := UserType{Name: "Pair", Fields: []Field{{Name: "a", Value: Short(1)}, {Name: "b", Value: Bool(true)}}}
	got, err := NewEncoder(nil).Encode(value)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if want := mustHex(t, "0001 01"); !bytes.Equal(got, want) {
		t.Errorf("Encode: got %x, want %x", got, want)
	}
}

func TestAppendExtendsBuffer(t *testing.T) {
	t.Parallel()
	prefix := []byte{0xaa}
	got, err := NewEncoder(nil).Append(prefix, Short(1))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if want := []byte{0xaa, 0x00, 0x01}; !bytes.Equal(got, want) {
		t.Errorf("Append: got %x, want %x", got, want)
	}
}

func TestEncodeDecodeComposite(t *testing.T) {
	t.Parallel()
	registry := testRegistry()
	value := UserType{Name: "BufferInfo", Fields: []Field{
		{Name: "id", Value: Int(9)},
		{Name: "network", Value: UserType{Name: "NetworkId", Fields: []Field{{Value: Int(3)}}}},
		{Name: "type", Value: Short(1)},
		{Name: "name", Value: NewByteArray([]byte("#go"))},
	}}

	encoded, err := NewEncoder(registry).Encode(Variant{Value: value})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, remainder, err := NewDecoder(registry).Decode(encoded, VariantShape())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(remainder) != 0 {
		t.Errorf("remainder: got %d bytes, want 0", len(remainder))
	}
	user, ok := Unwrap(decoded).(UserType)
	if !ok {
		t.Fatalf("Decode: got %T, want UserType", Unwrap(decoded))
	}
	name, _ := user.Field("name")
	if string(name.(ByteArray).Data) != "#go" {
		t.Errorf("name field: got %v, want #go", name)
	}
	reencoded, err := NewEncoder(registry).Encode(decoded)
	if err != nil {
		t.Fatalf("re-Encode: %v", err)
	}
	if !bytes.Equal(reencoded, encoded) {
		t.Errorf("re-encoded bytes differ:\n got %x\nwant %x", reencoded, encoded)
	}
}
