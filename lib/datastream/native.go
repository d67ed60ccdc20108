// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastream

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"
)

var (
	numberType = reflect.TypeOf(json.Number(""))
	timeType   = reflect.TypeOf(time.Time{})
	valueType  = reflect.TypeOf((*Value)(nil)).Elem()
)

// ValueOf maps a native Go value to its default wire type:
//
//	bool                     Bool
//	integer kinds            UInt (must fit in 32 unsigned bits)
//	float32, float64         Double
//	string                   String
//	time.Time                DateTime (UTC)
//	[]byte                   ByteArray
//	other slices, arrays     List
//	map[string]T             Map, keys sorted
//	struct                   Map, fields in declaration order
//	nil, nil pointer         Invalid
//
// Values implementing [Value] pass through unchanged, so wrapping a
// native value in a variant type (Int64(n), UserType{...}) overrides
// the default. Struct fields honor a `qds:"name"` tag; `qds:"-"` skips
// the field.
func ValueOf(native any) (Value, error) {
	if native == nil {
		return Invalid{}, nil
	}
	if value, ok := native.(Value); ok {
		return value, nil
	}
	switch typed := native.(type) {
	case json.Number:
		return numberValue(typed)
	case time.Time:
		return DateTimeOf(typed), nil
	case []byte:
		return NewByteArray(typed), nil
	}
	return reflectValue(reflect.ValueOf(native))
}

func reflectValue(value reflect.Value) (Value, error) {
	for value.Kind() == reflect.Pointer || value.Kind() == reflect.Interface {
		if value.IsNil() {
			return Invalid{}, nil
		}
		value = value.Elem()
	}
	if value.Type().Implements(valueType) {
		return value.Interface().(Value), nil
	}
	if value.Type() == timeType {
		return DateTimeOf(value.Interface().(time.Time)), nil
	}
	if value.Type() == numberType {
		return numberValue(value.Interface().(json.Number))
	}

	switch value.Kind() {
	case reflect.Bool:
		return Bool(value.Bool()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		integer := value.Int()
		if integer < 0 || integer > math.MaxUint32 {
			return nil, fmt.Errorf("%w: %d does not fit UInt; wrap it in an explicit type", ErrUnsupportedValue, integer)
		}
		return UInt(integer), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		integer := value.Uint()
		if integer > math.MaxUint32 {
			return nil, fmt.Errorf("%w: %d does not fit UInt; wrap it in an explicit type", ErrUnsupportedValue, integer)
		}
		return UInt(integer), nil

	case reflect.Float32, reflect.Float64:
		return Double(value.Float()), nil

	case reflect.String:
		return String{Text: value.String()}, nil

	case reflect.Slice:
		if value.Type().Elem().Kind() == reflect.Uint8 {
			return NewByteArray(value.Bytes()), nil
		}
		return reflectList(value)

	case reflect.Array:
		return reflectList(value)

	case reflect.Map:
		return reflectMap(value)

	case reflect.Struct:
		return reflectStruct(value)

	default:
		return nil, fmt.Errorf("%w: %s has no wire representation", ErrUnsupportedValue, value.Type())
	}
}

func reflectList(value reflect.Value) (Value, error) {
	list := make(List, value.Len())
	for index := range list {
		element, err := reflectValue(value.Index(index))
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", index, err)
		}
		list[index] = element
	}
	return list, nil
}

func reflectMap(value reflect.Value) (Value, error) {
	if value.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: map key must be string, got %s", ErrUnsupportedValue, value.Type().Key())
	}
	keys := value.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	entries := make(Map, 0, len(keys))
	for _, key := range keys {
		element, err := reflectValue(value.MapIndex(key))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", key.String(), err)
		}
		entries = append(entries, MapEntry{Key: String{Text: key.String()}, Value: element})
	}
	return entries, nil
}

func reflectStruct(value reflect.Value) (Value, error) {
	structType := value.Type()
	entries := make(Map, 0, structType.NumField())
	for i := range structType.NumField() {
		field := structType.Field(i)
		if !field.IsExported() {
			continue
		}
		name, skip := fieldTag(field)
		if skip {
			continue
		}
		if name == "" {
			name = field.Name
		}
		element, err := reflectValue(value.Field(i))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field.Name, err)
		}
		entries = append(entries, MapEntry{Key: String{Text: name}, Value: element})
	}
	return entries, nil
}

// fieldTag returns the qds tag name of a struct field and whether the
// field is excluded.
func fieldTag(field reflect.StructField) (string, bool) {
	tag, ok := field.Tag.Lookup("qds")
	if !ok {
		return "", false
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return "", true
	}
	return name, false
}

func numberValue(number json.Number) (Value, error) {
	if integer, err := number.Int64(); err == nil {
		return reflectValue(reflect.ValueOf(integer))
	}
	float, err := number.Float64()
	if err != nil {
		return nil, fmt.Errorf("%w: number %q", ErrUnsupportedValue, number)
	}
	return Double(float), nil
}

// Convert coerces native to the wire type target. Numbers convert
// between integer widths when the value fits; strings become String,
// ByteArray, or Char; time.Time becomes Time or DateTime. A native that
// is already a Value of the target type passes through, and a Value of
// another type is converted through its native form.
func Convert(native any, target Type) (Value, error) {
	if value, ok := native.(Value); ok {
		if value.Type() == target {
			return value, nil
		}
		native = nativeOf(value)
	}

	switch target {
	case TypeInvalid:
		if native != nil {
			return nil, convertError(native, target)
		}
		return Invalid{}, nil

	case TypeBool:
		if b, ok := native.(bool); ok {
			return Bool(b), nil
		}
		return nil, convertError(native, target)

	case TypeInt:
		integer, err := signedOf(native, math.MinInt32, math.MaxInt32)
		return Int(integer), wrapConvert(err, native, target)

	case TypeShort:
		integer, err := signedOf(native, math.MinInt16, math.MaxInt16)
		return Short(integer), wrapConvert(err, native, target)

	case TypeInt64:
		integer, err := signedOf(native, math.MinInt64, math.MaxInt64)
		return Int64(integer), wrapConvert(err, native, target)

	case TypeUInt:
		integer, err := unsignedOf(native, math.MaxUint32)
		return UInt(integer), wrapConvert(err, native, target)

	case TypeUInt64:
		integer, err := unsignedOf(native, math.MaxUint64)
		return UInt64(integer), wrapConvert(err, native, target)

	case TypeChar:
		switch typed := native.(type) {
		case string:
			if len(typed) != 1 {
				return nil, fmt.Errorf("%w: Char needs a single byte, got %q", ErrUnsupportedValue, typed)
			}
			return Char(typed[0]), nil
		default:
			integer, err := unsignedOf(native, math.MaxUint8)
			return Char(integer), wrapConvert(err, native, target)
		}

	case TypeDouble:
		float, err := floatOf(native)
		return Double(float), wrapConvert(err, native, target)

	case TypeString:
		switch typed := native.(type) {
		case nil:
			return NullString(), nil
		case string:
			return String{Text: typed}, nil
		}
		return nil, convertError(native, target)

	case TypeByteArray:
		switch typed := native.(type) {
		case nil:
			return ByteArray{Null: true}, nil
		case []byte:
			return NewByteArray(typed), nil
		case string:
			return NewByteArray([]byte(typed)), nil
		}
		return nil, convertError(native, target)

	case TypeTime:
		if t, ok := native.(time.Time); ok {
			return TimeOf(t), nil
		}
		integer, err := unsignedOf(native, math.MaxUint32)
		return Time(integer), wrapConvert(err, native, target)

	case TypeDateTime:
		if t, ok := native.(time.Time); ok {
			return DateTimeOf(t), nil
		}
		return nil, convertError(native, target)

	case TypeStringList:
		return convertStringList(native)

	case TypeList, TypeMap:
		value, err := ValueOf(native)
		if err != nil {
			return nil, err
		}
		if value.Type() != target {
			return nil, convertError(native, target)
		}
		return value, nil

	default:
		return nil, fmt.Errorf("%w: cannot convert to %v without a registry", ErrUnsupportedValue, target)
	}
}

func convertStringList(native any) (Value, error) {
	value := reflect.ValueOf(native)
	if value.Kind() != reflect.Slice && value.Kind() != reflect.Array {
		return nil, convertError(native, TypeStringList)
	}
	list := make(StringList, value.Len())
	for index := range list {
		element, err := Convert(value.Index(index).Interface(), TypeString)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", index, err)
		}
		list[index] = element.(String)
	}
	return list, nil
}

// nativeOf returns the Go value a scalar variant carries, or the variant
// itself for containers.
func nativeOf(value Value) any {
	switch typed := value.(type) {
	case Bool:
		return bool(typed)
	case Int:
		return int64(typed)
	case UInt:
		return uint64(typed)
	case Int64:
		return int64(typed)
	case UInt64:
		return uint64(typed)
	case Short:
		return int64(typed)
	case Double:
		return float64(typed)
	case Char:
		return uint64(typed)
	case Time:
		return uint64(typed)
	case String:
		if typed.Null {
			return nil
		}
		return typed.Text
	case ByteArray:
		if typed.Null {
			return nil
		}
		return typed.Data
	case DateTime:
		return typed.Time()
	default:
		return value
	}
}

func signedOf(native any, minimum, maximum int64) (int64, error) {
	switch typed := native.(type) {
	case json.Number:
		integer, err := typed.Int64()
		if err != nil {
			return 0, err
		}
		native = integer
	}
	value := reflect.ValueOf(native)
	var integer int64
	switch value.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		integer = value.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if value.Uint() > math.MaxInt64 {
			return 0, fmt.Errorf("out of range")
		}
		integer = int64(value.Uint())
	case reflect.Float32, reflect.Float64:
		float := value.Float()
		if float != math.Trunc(float) || float < math.MinInt64 || float >= math.MaxInt64 {
			return 0, fmt.Errorf("not an integer")
		}
		integer = int64(float)
	default:
		return 0, fmt.Errorf("not a number")
	}
	if integer < minimum || integer > maximum {
		return 0, fmt.Errorf("out of range")
	}
	return integer, nil
}

func unsignedOf(native any, maximum uint64) (uint64, error) {
	switch typed := native.(type) {
	case json.Number:
		if integer, err := typed.Int64(); err == nil {
			native = integer
		} else {
			var unsigned uint64
			if _, scanErr := fmt.Sscan(typed.String(), &unsigned); scanErr != nil {
				return 0, err
			}
			native = unsigned
		}
	}
	value := reflect.ValueOf(native)
	var integer uint64
	switch value.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if value.Int() < 0 {
			return 0, fmt.Errorf("negative")
		}
		integer = uint64(value.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		integer = value.Uint()
	case reflect.Float32, reflect.Float64:
		float := value.Float()
		if float != math.Trunc(float) || float < 0 || float >= math.MaxUint64 {
			return 0, fmt.Errorf("not an unsigned integer")
		}
		integer = uint64(float)
	default:
		return 0, fmt.Errorf("not a number")
	}
	if integer > maximum {
		return 0, fmt.Errorf("out of range")
	}
	return integer, nil
}

func floatOf(native any) (float64, error) {
	if number, ok := native.(json.Number); ok {
		return number.Float64()
	}
	value := reflect.ValueOf(native)
	switch value.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(value.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(value.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return value.Float(), nil
	default:
		return 0, fmt.Errorf("not a number")
	}
}

func convertError(native any, target Type) error {
	return fmt.Errorf("%w: cannot convert %T to %v", ErrUnsupportedValue, native, target)
}

func wrapConvert(err error, native any, target Type) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: cannot convert %v (%T) to %v: %v", ErrUnsupportedValue, native, native, target, err)
}
