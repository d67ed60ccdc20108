// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastream

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/unicode"
)

// nullLength is the all-ones length that marks a null QString or
// QByteArray.
const nullLength = 0xFFFFFFFF

// maxDepth bounds container and user type nesting so that a hostile
// body cannot exhaust the goroutine stack.
const maxDepth = 512

// Minimum encoded sizes, used to reject element counts that could not
// possibly fit in the remaining bytes before allocating for them.
const (
	minStringSize  = 4
	minVariantSize = 5
	minEntrySize   = minStringSize + minVariantSize
)

var utf16BigEndian = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

type shapeKind uint8

const (
	shapeVariant shapeKind = iota
	shapeType
	shapeUser
)

// Shape describes the layout of a top-level message body: a QVariant
// envelope, a bare base type, or a bare registered user type. Qt peers
// do not self-describe bare bodies, so the reading side must know the
// shape in advance.
type Shape struct {
	kind     shapeKind
	base     Type
	userType string
}

// VariantShape is a body holding one QVariant envelope. Decoding it
// yields a [Variant] (or a [Null] when the envelope's null flag is set).
func VariantShape() Shape { return Shape{kind: shapeVariant} }

// TypeShape is a body holding the bare payload of base.
func TypeShape(base Type) Shape { return Shape{kind: shapeType, base: base} }

// UserShape is a body holding the bare fields of a registered user type.
func UserShape(name string) Shape { return Shape{kind: shapeUser, base: TypeUserType, userType: name} }

// String renders the shape the way configuration files spell it:
// "variant", a type name, or "user:<Name>".
func (s Shape) String() string {
	switch s.kind {
	case shapeType:
		return s.base.String()
	case shapeUser:
		return "user:" + s.userType
	default:
		return "variant"
	}
}

// ParseShape is the inverse of [Shape.String].
func ParseShape(text string) (Shape, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, "variant") {
		return VariantShape(), nil
	}
	if name, ok := strings.CutPrefix(text, "user:"); ok {
		if name == "" {
			return Shape{}, fmt.Errorf("shape %q: empty user type name", text)
		}
		return UserShape(name), nil
	}
	base, err := ParseType(text)
	if err != nil {
		return Shape{}, fmt.Errorf("shape %q: %w", text, err)
	}
	if base == TypeUserType {
		return Shape{}, fmt.Errorf("shape %q: user types need a name (user:<Name>)", text)
	}
	return TypeShape(base), nil
}

// Decoder turns message bodies into Value trees. A Decoder holds no
// per-message state and may be shared between streams.
type Decoder struct {
	registry *Registry
}

// NewDecoder returns a decoder resolving user types through registry.
// A nil registry is allowed; any user type then fails to decode.
func NewDecoder(registry *Registry) *Decoder {
	return &Decoder{registry: registry}
}

// Decode reads one value of the given shape from the front of data and
// returns it together with the bytes it did not consume. Every nested
// length and count is checked against the bytes present; a short
// buffer is ErrMalformed, never a partial value.
func (d *Decoder) Decode(data []byte, shape Shape) (Value, []byte, error) {
	r := &reader{data: data, registry: d.registry}

	var value Value
	var err error
	switch shape.kind {
	case shapeVariant:
		value, err = r.variant()
		if err == nil {
			if _, isNull := value.(Null); !isNull {
				value = Variant{Value: value}
			}
		}
	case shapeUser:
		value, err = r.userType(shape.userType)
	default:
		value, err = r.payload(shape.base, "")
	}
	if err != nil {
		return nil, nil, err
	}
	return value, data[r.offset:], nil
}

// reader walks one message body.
type reader struct {
	data     []byte
	offset   int
	registry *Registry
	depth    int
	path     []string
}

func (r *reader) fail(start int, sentinel error, format string, args ...any) error {
	detail := fmt.Sprintf(format, args...)
	return &DecodeError{
		Offset: start,
		Path:   strings.Join(r.path, ""),
		Err:    fmt.Errorf("%w: %s", sentinel, detail),
	}
}

func (r *reader) take(count int) ([]byte, error) {
	if count < 0 || len(r.data)-r.offset < count {
		return nil, r.fail(r.offset, ErrMalformed, "need %d bytes, have %d", count, len(r.data)-r.offset)
	}
	chunk := r.data[r.offset : r.offset+count]
	r.offset += count
	return chunk, nil
}

func (r *reader) u8() (uint8, error) {
	chunk, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return chunk[0], nil
}

func (r *reader) u16() (uint16, error) {
	chunk, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(chunk), nil
}

func (r *reader) u32() (uint32, error) {
	chunk, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(chunk), nil
}

func (r *reader) u64() (uint64, error) {
	chunk, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(chunk), nil
}

// count reads an element count and rejects it when count elements of
// at least minSize bytes each cannot fit in what remains.
func (r *reader) count(minSize int) (int, error) {
	start := r.offset
	count, err := r.u32()
	if err != nil {
		return 0, err
	}
	remaining := len(r.data) - r.offset
	if uint64(count)*uint64(minSize) > uint64(remaining) {
		return 0, r.fail(start, ErrMalformed, "count %d exceeds remaining %d bytes", count, remaining)
	}
	return int(count), nil
}

func (r *reader) enter(segment string) error {
	if r.depth >= maxDepth {
		return r.fail(r.offset, ErrMalformed, "nesting deeper than %d", maxDepth)
	}
	r.depth++
	r.path = append(r.path, segment)
	return nil
}

func (r *reader) leave() {
	r.depth--
	r.path = r.path[:len(r.path)-1]
}

// rawBytes reads a length-prefixed byte run as used by QString and
// QByteArray. A nil slice with null=true is returned for the sentinel.
func (r *reader) rawBytes() (data []byte, null bool, err error) {
	length, err := r.u32()
	if err != nil {
		return nil, false, err
	}
	if length == nullLength {
		return nil, true, nil
	}
	if uint64(length) > uint64(len(r.data)-r.offset) {
		return nil, false, r.fail(r.offset-4, ErrMalformed, "length %d exceeds remaining %d bytes", length, len(r.data)-r.offset)
	}
	chunk, err := r.take(int(length))
	if err != nil {
		return nil, false, err
	}
	return chunk, false, nil
}

func (r *reader) qstring() (String, error) {
	start := r.offset
	data, null, err := r.rawBytes()
	if err != nil {
		return String{}, err
	}
	if null {
		return NullString(), nil
	}
	if len(data)%2 != 0 {
		return String{}, r.fail(start, ErrMalformed, "UTF-16 string has odd byte length %d", len(data))
	}
	if unit := unpairedSurrogate(data); unit >= 0 {
		return String{}, r.fail(start, ErrMalformed, "UTF-16 string has an unpaired surrogate at code unit %d", unit)
	}
	text, err := utf16BigEndian.NewDecoder().Bytes(data)
	if err != nil {
		return String{}, r.fail(start, ErrMalformed, "UTF-16 string: %v", err)
	}
	return String{Text: string(text)}, nil
}

// unpairedSurrogate returns the index of the first code unit in the
// UTF-16BE data that is a surrogate without its partner, or -1. The
// decoder would replace such a unit with U+FFFD and change the bytes.
func unpairedSurrogate(data []byte) int {
	for index := 0; index+1 < len(data); index += 2 {
		unit := rune(binary.BigEndian.Uint16(data[index:]))
		if !utf16.IsSurrogate(unit) {
			continue
		}
		if index+3 < len(data) {
			next := rune(binary.BigEndian.Uint16(data[index+2:]))
			if utf16.DecodeRune(unit, next) != '\uFFFD' {
				index += 2
				continue
			}
		}
		return index / 2
	}
	return -1
}

func (r *reader) byteArray() (ByteArray, error) {
	data, null, err := r.rawBytes()
	if err != nil {
		return ByteArray{}, err
	}
	if null {
		return ByteArray{Null: true}, nil
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return ByteArray{Data: copied}, nil
}

// variant reads a QVariant envelope: type id, null flag, user type
// name when applicable, then the payload unless the flag is set.
func (r *reader) variant() (Value, error) {
	start := r.offset
	id, err := r.u32()
	if err != nil {
		return nil, err
	}
	t := Type(id)
	if !t.Valid() {
		return nil, r.fail(start, ErrUnknownType, "type id %d", id)
	}
	flag, err := r.u8()
	if err != nil {
		return nil, err
	}

	var userName string
	if t == TypeUserType {
		nameStart := r.offset
		name, null, err := r.rawBytes()
		if err != nil {
			return nil, err
		}
		if null || len(name) == 0 {
			return nil, r.fail(nameStart, ErrMalformed, "user type envelope without a name")
		}
		// Qt writes the name as a C string, NUL included.
		userName = strings.TrimSuffix(string(name), "\x00")
	}

	if flag != 0 {
		return Null{Of: t, Name: userName}, nil
	}
	return r.payload(t, userName)
}

// payload reads the bare encoding of t.
func (r *reader) payload(t Type, userName string) (Value, error) {
	switch t {
	case TypeInvalid:
		return Invalid{}, nil

	case TypeBool:
		start := r.offset
		b, err := r.u8()
		if err != nil {
			return nil, err
		}
		if b > 1 {
			return nil, r.fail(start, ErrMalformed, "Bool byte %#02x is neither 0 nor 1", b)
		}
		return Bool(b == 1), nil

	case TypeInt:
		u, err := r.u32()
		return Int(int32(u)), err

	case TypeUInt:
		u, err := r.u32()
		return UInt(u), err

	case TypeInt64:
		u, err := r.u64()
		return Int64(int64(u)), err

	case TypeUInt64:
		u, err := r.u64()
		return UInt64(u), err

	case TypeShort:
		u, err := r.u16()
		return Short(int16(u)), err

	case TypeDouble:
		u, err := r.u64()
		return Double(math.Float64frombits(u)), err

	case TypeChar:
		b, err := r.u8()
		return Char(b), err

	case TypeString:
		return r.qstring()

	case TypeByteArray:
		return r.byteArray()

	case TypeStringList:
		return r.stringList()

	case TypeList:
		return r.list()

	case TypeMap:
		return r.mapValue()

	case TypeTime:
		u, err := r.u32()
		return Time(u), err

	case TypeDateTime:
		return r.dateTime()

	case TypeUserType:
		return r.userType(userName)

	default:
		return nil, r.fail(r.offset, ErrUnknownType, "type id %d", uint32(t))
	}
}

func (r *reader) stringList() (Value, error) {
	count, err := r.count(minStringSize)
	if err != nil {
		return nil, err
	}
	list := make(StringList, count)
	for index := range list {
		if err := r.enter("[" + strconv.Itoa(index) + "]"); err != nil {
			return nil, err
		}
		list[index], err = r.qstring()
		r.leave()
		if err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *reader) list() (Value, error) {
	count, err := r.count(minVariantSize)
	if err != nil {
		return nil, err
	}
	list := make(List, count)
	for index := range list {
		if err := r.enter("[" + strconv.Itoa(index) + "]"); err != nil {
			return nil, err
		}
		list[index], err = r.variant()
		r.leave()
		if err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *reader) mapValue() (Value, error) {
	count, err := r.count(minEntrySize)
	if err != nil {
		return nil, err
	}
	entries := make(Map, count)
	for index := range entries {
		key, err := r.qstring()
		if err != nil {
			return nil, err
		}
		if err := r.enter("." + key.Text); err != nil {
			return nil, err
		}
		value, err := r.variant()
		r.leave()
		if err != nil {
			return nil, err
		}
		entries[index] = MapEntry{Key: key, Value: value}
	}
	return entries, nil
}

func (r *reader) dateTime() (Value, error) {
	day, err := r.u32()
	if err != nil {
		return nil, err
	}
	milliseconds, err := r.u32()
	if err != nil {
		return nil, err
	}
	zone, err := r.u8()
	if err != nil {
		return nil, err
	}
	return DateTime{JulianDay: day, Milliseconds: milliseconds, Zone: Zone(zone)}, nil
}

// userType reads the fields of a registered user type in declared
// order.
func (r *reader) userType(name string) (Value, error) {
	def, err := r.registry.Lookup(name)
	if err != nil {
		return nil, &DecodeError{Offset: r.offset, Path: strings.Join(r.path, ""), Err: err}
	}
	if err := r.enter("<" + name + ">"); err != nil {
		return nil, err
	}
	defer r.leave()

	if !def.Composite() {
		value, err := r.payload(def.Base(), "")
		if err != nil {
			return nil, err
		}
		return UserType{Name: name, Fields: []Field{{Value: value}}}, nil
	}

	fields := make([]Field, len(def.FieldList()))
	for index, fieldDef := range def.FieldList() {
		if err := r.enter("." + fieldDef.Name); err != nil {
			return nil, err
		}
		var value Value
		if fieldDef.UserType != "" {
			value, err = r.userType(fieldDef.UserType)
		} else {
			value, err = r.payload(fieldDef.Type, "")
		}
		r.leave()
		if err != nil {
			return nil, err
		}
		fields[index] = Field{Name: fieldDef.Name, Value: value}
	}
	return UserType{Name: name, Fields: fields}, nil
}
