// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastream

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encoder turns values into QDataStream bytes, mirroring [Decoder]
// byte for byte. An Encoder holds no per-message state and may be
// shared between streams.
type Encoder struct {
	registry *Registry
}

// NewEncoder returns an encoder that checks user type values against
// registry. With a nil registry, user types are written exactly as
// given.
func NewEncoder(registry *Registry) *Encoder {
	return &Encoder{registry: registry}
}

// Encode returns the body bytes for v with no length prefix. v is a
// [Value] or a native Go value converted by [ValueOf]. A bare top-level
// value is written without a QVariant envelope; wrap it in [Variant]
// to get one.
func (e *Encoder) Encode(v any) ([]byte, error) {
	return e.Append(nil, v)
}

// EncodeFramed returns v's body preceded by its 4-byte big-endian
// length, ready to write to a stream as one message.
func (e *Encoder) EncodeFramed(v any) ([]byte, error) {
	buffer, err := e.Append(make([]byte, 4, 64), v)
	if err != nil {
		return nil, err
	}
	size := len(buffer) - 4
	if uint64(size) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: body of %d bytes does not fit a 32-bit length", ErrUnsupportedValue, size)
	}
	binary.BigEndian.PutUint32(buffer[:4], uint32(size))
	return buffer, nil
}

// Append encodes v and appends the body bytes to dst.
func (e *Encoder) Append(dst []byte, v any) ([]byte, error) {
	value, err := ValueOf(v)
	if err != nil {
		return nil, err
	}
	w := &writer{buffer: dst, registry: e.registry}
	switch typed := value.(type) {
	case Variant:
		err = w.variant(typed.Value)
	case Null:
		err = w.variant(typed)
	default:
		err = w.payload(value)
	}
	if err != nil {
		return nil, err
	}
	return w.buffer, nil
}

type writer struct {
	buffer   []byte
	registry *Registry
}

func (w *writer) u8(value uint8) {
	w.buffer = append(w.buffer, value)
}

func (w *writer) u16(value uint16) {
	w.buffer = binary.BigEndian.AppendUint16(w.buffer, value)
}

func (w *writer) u32(value uint32) {
	w.buffer = binary.BigEndian.AppendUint32(w.buffer, value)
}

func (w *writer) u64(value uint64) {
	w.buffer = binary.BigEndian.AppendUint64(w.buffer, value)
}

func (w *writer) length(count int) error {
	if uint64(count) >= nullLength {
		return fmt.Errorf("%w: length %d does not fit a 32-bit field", ErrUnsupportedValue, count)
	}
	w.u32(uint32(count))
	return nil
}

func (w *writer) rawBytes(data []byte, null bool) error {
	if null {
		w.u32(nullLength)
		return nil
	}
	if err := w.length(len(data)); err != nil {
		return err
	}
	w.buffer = append(w.buffer, data...)
	return nil
}

func (w *writer) qstring(s String) error {
	if s.Null {
		w.u32(nullLength)
		return nil
	}
	encoded, err := utf16BigEndian.NewEncoder().Bytes([]byte(s.Text))
	if err != nil {
		return fmt.Errorf("%w: string %q: %v", ErrUnsupportedValue, s.Text, err)
	}
	return w.rawBytes(encoded, false)
}

// variant writes v inside a QVariant envelope.
func (w *writer) variant(v Value) error {
	if v == nil {
		return fmt.Errorf("%w: nil value", ErrUnsupportedValue)
	}
	switch typed := v.(type) {
	case Variant:
		return w.variant(typed.Value)
	case Null:
		if !typed.Of.Valid() {
			return fmt.Errorf("%w: null of unknown type %v", ErrUnsupportedValue, typed.Of)
		}
		w.u32(uint32(typed.Of))
		w.u8(1)
		if typed.Of == TypeUserType {
			return w.userTypeName(typed.Name)
		}
		return nil
	case UserType:
		w.u32(uint32(TypeUserType))
		w.u8(0)
		if err := w.userTypeName(typed.Name); err != nil {
			return err
		}
		return w.userType(typed)
	}
	w.u32(uint32(v.Type()))
	w.u8(0)
	return w.payload(v)
}

// userTypeName writes the name as Qt does: a byte array holding the
// name and its terminating NUL.
func (w *writer) userTypeName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: user type without a name", ErrUnsupportedValue)
	}
	return w.rawBytes(append([]byte(name), 0), false)
}

// payload writes the bare encoding of v.
func (w *writer) payload(v Value) error {
	switch typed := v.(type) {
	case Invalid:
		return nil
	case Bool:
		if typed {
			w.u8(1)
		} else {
			w.u8(0)
		}
	case Int:
		w.u32(uint32(typed))
	case UInt:
		w.u32(uint32(typed))
	case Int64:
		w.u64(uint64(typed))
	case UInt64:
		w.u64(uint64(typed))
	case Short:
		w.u16(uint16(typed))
	case Double:
		w.u64(math.Float64bits(float64(typed)))
	case Char:
		w.u8(uint8(typed))
	case String:
		return w.qstring(typed)
	case ByteArray:
		return w.rawBytes(typed.Data, typed.Null)
	case StringList:
		if err := w.length(len(typed)); err != nil {
			return err
		}
		for _, element := range typed {
			if err := w.qstring(element); err != nil {
				return err
			}
		}
	case List:
		if err := w.length(len(typed)); err != nil {
			return err
		}
		for index, element := range typed {
			if err := w.variant(element); err != nil {
				return fmt.Errorf("[%d]: %w", index, err)
			}
		}
	case Map:
		if err := w.length(len(typed)); err != nil {
			return err
		}
		for _, entry := range typed {
			if err := w.qstring(entry.Key); err != nil {
				return err
			}
			if err := w.variant(entry.Value); err != nil {
				return fmt.Errorf("%s: %w", entry.Key, err)
			}
		}
	case Time:
		w.u32(uint32(typed))
	case DateTime:
		w.u32(typed.JulianDay)
		w.u32(typed.Milliseconds)
		w.u8(uint8(typed.Zone))
	case UserType:
		return w.userType(typed)
	case Variant, Null:
		return fmt.Errorf("%w: %v cannot appear where a bare payload is expected", ErrUnsupportedValue, v)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
	return nil
}

// userType writes the fields of u. When the encoder has a registry the
// fields are checked against the registered definition first.
func (w *writer) userType(u UserType) error {
	if w.registry != nil {
		if err := w.checkUserType(u); err != nil {
			return err
		}
	}
	for _, field := range u.Fields {
		if field.Value == nil {
			return fmt.Errorf("%w: %s.%s is nil", ErrUnsupportedValue, u.Name, field.Name)
		}
		if err := w.payload(field.Value); err != nil {
			return fmt.Errorf("%s.%s: %w", u.Name, field.Name, err)
		}
	}
	return nil
}

func (w *writer) checkUserType(u UserType) error {
	def, err := w.registry.Lookup(u.Name)
	if err != nil {
		return err
	}
	if !def.Composite() {
		if len(u.Fields) != 1 || u.Fields[0].Value == nil || u.Fields[0].Value.Type() != def.Base() {
			return fmt.Errorf("%w: %s is an alias of %v", ErrUnsupportedValue, u.Name, def.Base())
		}
		return nil
	}
	declared := def.FieldList()
	if len(u.Fields) != len(declared) {
		return fmt.Errorf("%w: %s has %d fields, registered with %d", ErrUnsupportedValue, u.Name, len(u.Fields), len(declared))
	}
	for index, fieldDef := range declared {
		field := u.Fields[index]
		if field.Value == nil {
			return fmt.Errorf("%w: %s.%s is nil", ErrUnsupportedValue, u.Name, fieldDef.Name)
		}
		if fieldDef.UserType != "" {
			nested, ok := field.Value.(UserType)
			if !ok || nested.Name != fieldDef.UserType {
				return fmt.Errorf("%w: %s.%s must be %s, got %v", ErrUnsupportedValue, u.Name, fieldDef.Name, fieldDef.UserType, field.Value.Type())
			}
			continue
		}
		if field.Value.Type() != fieldDef.Type {
			return fmt.Errorf("%w: %s.%s must be %v, got %v", ErrUnsupportedValue, u.Name, fieldDef.Name, fieldDef.Type, field.Value.Type())
		}
	}
	return nil
}
