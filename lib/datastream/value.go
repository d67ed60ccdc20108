// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastream

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Value is one node of a decoded QDataStream tree. The set of
// implementations is closed: every Value is one of the variant types
// declared in this file, and encoders and decoders switch over them
// exhaustively.
type Value interface {
	// Type returns the wire type id written in a QVariant envelope
	// for this value.
	Type() Type

	// String renders the value in a compact diagnostic notation,
	// e.g. Map{"id": UInt(7)}.
	String() string

	isValue()
}

// Invalid is the empty QVariant. It carries no payload.
type Invalid struct{}

// Bool is a one-byte boolean.
type Bool bool

// Int is a signed 32-bit integer.
type Int int32

// UInt is an unsigned 32-bit integer. It is the default wire type for
// native Go integers.
type UInt uint32

// Int64 is a signed 64-bit integer (qlonglong).
type Int64 int64

// UInt64 is an unsigned 64-bit integer (qulonglong).
type UInt64 uint64

// Short is a signed 16-bit integer.
type Short int16

// Double is an IEEE-754 binary64 value.
type Double float64

// Char is a single 8-bit code unit.
type Char byte

// String is a QString: UTF-16BE text that may be null. A null string
// is distinct from an empty one on the wire.
type String struct {
	Text string
	Null bool
}

// ByteArray is a QByteArray: raw bytes that may be null.
type ByteArray struct {
	Data []byte
	Null bool
}

// StringList is a QStringList.
type StringList []String

// List is a QVariantList. Every element is written inside its own
// QVariant envelope.
type List []Value

// MapEntry is one key/value pair of a [Map].
type MapEntry struct {
	Key   String
	Value Value
}

// Map is a QVariantMap. Entries keep the order they were read or
// supplied in; nothing sorts or deduplicates them.
type Map []MapEntry

// Field is one named member of a [UserType]. Alias user types carry a
// single field with an empty name.
type Field struct {
	Name  string
	Value Value
}

// UserType is an application-defined record. The wire format carries
// no field names; the layout comes from the [Registry] entry for Name.
type UserType struct {
	Name   string
	Fields []Field
}

// Variant forces a QVariant envelope around Value where a bare value
// would otherwise be written, i.e. at the top level of a message.
// Inside List and Map the envelope is always present, so wrapping
// there changes nothing.
type Variant struct {
	Value Value
}

// Null is a QVariant envelope with its is-null flag set. The payload
// is omitted on the wire. Name holds the user type name when Of is
// TypeUserType.
type Null struct {
	Of   Type
	Name string
}

// NullString returns a null QString.
func NullString() String { return String{Null: true} }

// NewString returns a non-null QString holding text.
func NewString(text string) String { return String{Text: text} }

// NewByteArray returns a non-null QByteArray holding data.
func NewByteArray(data []byte) ByteArray {
	if data == nil {
		data = []byte{}
	}
	return ByteArray{Data: data}
}

// NewStringList builds a StringList of non-null strings.
func NewStringList(texts ...string) StringList {
	list := make(StringList, len(texts))
	for index, text := range texts {
		list[index] = String{Text: text}
	}
	return list
}

// Get returns the value of the first entry whose key equals key.
func (m Map) Get(key string) (Value, bool) {
	for _, entry := range m {
		if !entry.Key.Null && entry.Key.Text == key {
			return entry.Value, true
		}
	}
	return nil, false
}

// Field returns the value of the named field.
func (u UserType) Field(name string) (Value, bool) {
	for _, field := range u.Fields {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

// Unwrap strips any number of Variant envelopes from v.
func Unwrap(v Value) Value {
	for {
		variant, ok := v.(Variant)
		if !ok {
			return v
		}
		v = variant.Value
	}
}

func (Invalid) Type() Type    { return TypeInvalid }
func (Bool) Type() Type       { return TypeBool }
func (Int) Type() Type        { return TypeInt }
func (UInt) Type() Type       { return TypeUInt }
func (Int64) Type() Type      { return TypeInt64 }
func (UInt64) Type() Type     { return TypeUInt64 }
func (Short) Type() Type      { return TypeShort }
func (Double) Type() Type     { return TypeDouble }
func (Char) Type() Type       { return TypeChar }
func (String) Type() Type     { return TypeString }
func (ByteArray) Type() Type  { return TypeByteArray }
func (StringList) Type() Type { return TypeStringList }
func (List) Type() Type       { return TypeList }
func (Map) Type() Type        { return TypeMap }
func (Time) Type() Type       { return TypeTime }
func (DateTime) Type() Type   { return TypeDateTime }
func (UserType) Type() Type   { return TypeUserType }
func (n Null) Type() Type     { return n.Of }

// Type returns the type of the wrapped value, or TypeInvalid when the
// envelope is empty.
func (v Variant) Type() Type {
	if v.Value == nil {
		return TypeInvalid
	}
	return v.Value.Type()
}

func (Invalid) isValue()    {}
func (Bool) isValue()       {}
func (Int) isValue()        {}
func (UInt) isValue()       {}
func (Int64) isValue()      {}
func (UInt64) isValue()     {}
func (Short) isValue()      {}
func (Double) isValue()     {}
func (Char) isValue()       {}
func (String) isValue()     {}
func (ByteArray) isValue()  {}
func (StringList) isValue() {}
func (List) isValue()       {}
func (Map) isValue()        {}
func (Time) isValue()       {}
func (DateTime) isValue()   {}
func (UserType) isValue()   {}
func (Variant) isValue()    {}
func (Null) isValue()       {}

func (Invalid) String() string  { return "Invalid" }
func (b Bool) String() string   { return "Bool(" + strconv.FormatBool(bool(b)) + ")" }
func (i Int) String() string    { return "Int(" + strconv.FormatInt(int64(i), 10) + ")" }
func (u UInt) String() string   { return "UInt(" + strconv.FormatUint(uint64(u), 10) + ")" }
func (i Int64) String() string  { return "Int64(" + strconv.FormatInt(int64(i), 10) + ")" }
func (u UInt64) String() string { return "UInt64(" + strconv.FormatUint(uint64(u), 10) + ")" }
func (s Short) String() string  { return "Short(" + strconv.FormatInt(int64(s), 10) + ")" }
func (c Char) String() string   { return fmt.Sprintf("Char(%q)", rune(c)) }

func (d Double) String() string {
	return "Double(" + strconv.FormatFloat(float64(d), 'g', -1, 64) + ")"
}

func (s String) String() string {
	if s.Null {
		return "null"
	}
	return strconv.Quote(s.Text)
}

func (b ByteArray) String() string {
	if b.Null {
		return "ByteArray(null)"
	}
	return "ByteArray(h'" + hex.EncodeToString(b.Data) + "')"
}

func (l StringList) String() string {
	parts := make([]string, len(l))
	for index, element := range l {
		parts[index] = element.String()
	}
	return "StringList[" + strings.Join(parts, ", ") + "]"
}

func (l List) String() string {
	parts := make([]string, len(l))
	for index, element := range l {
		parts[index] = valueString(element)
	}
	return "List[" + strings.Join(parts, ", ") + "]"
}

func (m Map) String() string {
	parts := make([]string, len(m))
	for index, entry := range m {
		parts[index] = entry.Key.String() + ": " + valueString(entry.Value)
	}
	return "Map{" + strings.Join(parts, ", ") + "}"
}

func (u UserType) String() string {
	parts := make([]string, len(u.Fields))
	for index, field := range u.Fields {
		if field.Name == "" {
			parts[index] = valueString(field.Value)
			continue
		}
		parts[index] = field.Name + ": " + valueString(field.Value)
	}
	return u.Name + "{" + strings.Join(parts, ", ") + "}"
}

func (v Variant) String() string { return "Variant(" + valueString(v.Value) + ")" }

func (n Null) String() string {
	if n.Of == TypeUserType {
		return "Null(" + n.Name + ")"
	}
	return "Null(" + n.Of.String() + ")"
}

// valueString renders v, tolerating nil members of hand-built trees.
func valueString(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}
