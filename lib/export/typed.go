// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/bureau-foundation/qtstream/lib/datastream"
)

// ErrMalformedTree is returned by [ParseTyped] for input that is not a
// typed tree.
var ErrMalformedTree = errors.New("export: malformed typed tree")

// Typed returns a lossless tree for v built from map[string]any, []any,
// strings, and numbers, suitable for any of the Write functions. Every
// node names its wire type:
//
//	{"type": "String", "value": "hi"}
//	{"type": "String", "null": true}
//	{"type": "Map", "value": [{"key": "id", "value": {"type": "Int", "value": 3}}]}
//	{"type": "UserType", "name": "BufferInfo", "fields": [{"name": "id", "value": ...}]}
//
// [ParseTyped] reverses it exactly. ByteArray data is base64, and
// non-finite doubles are the strings "NaN", "+Inf", and "-Inf".
func Typed(v datastream.Value) any {
	node := map[string]any{"type": v.Type().String()}
	switch typed := v.(type) {
	case datastream.Invalid:
	case datastream.Bool:
		node["value"] = bool(typed)
	case datastream.Int:
		node["value"] = int64(typed)
	case datastream.UInt:
		node["value"] = uint64(typed)
	case datastream.Int64:
		node["value"] = int64(typed)
	case datastream.UInt64:
		node["value"] = uint64(typed)
	case datastream.Short:
		node["value"] = int64(typed)
	case datastream.Char:
		node["value"] = uint64(typed)
	case datastream.Double:
		node["value"] = doubleOf(float64(typed))
	case datastream.Time:
		node["value"] = uint64(typed)
	case datastream.String:
		if typed.Null {
			node["null"] = true
		} else {
			node["value"] = typed.Text
		}
	case datastream.ByteArray:
		if typed.Null {
			node["null"] = true
		} else {
			node["value"] = base64.StdEncoding.EncodeToString(typed.Data)
		}
	case datastream.StringList:
		elements := make([]any, len(typed))
		for index, element := range typed {
			elements[index] = stringOf(element)
		}
		node["value"] = elements
	case datastream.List:
		elements := make([]any, len(typed))
		for index, element := range typed {
			elements[index] = Typed(element)
		}
		node["value"] = elements
	case datastream.Map:
		entries := make([]any, len(typed))
		for index, entry := range typed {
			entries[index] = map[string]any{"key": stringOf(entry.Key), "value": Typed(entry.Value)}
		}
		node["value"] = entries
	case datastream.DateTime:
		node["julian_day"] = uint64(typed.JulianDay)
		node["milliseconds"] = uint64(typed.Milliseconds)
		node["zone"] = uint64(typed.Zone)
	case datastream.UserType:
		fields := make([]any, len(typed.Fields))
		for index, field := range typed.Fields {
			fields[index] = map[string]any{"name": field.Name, "value": Typed(field.Value)}
		}
		node["name"] = typed.Name
		node["fields"] = fields
	case datastream.Variant:
		node["type"] = "Variant"
		node["value"] = Typed(typed.Value)
	case datastream.Null:
		node["type"] = "Null"
		node["of"] = typed.Of.String()
		if typed.Name != "" {
			node["name"] = typed.Name
		}
	}
	return node
}

// stringOf renders a QString as a string, or nil when null.
func stringOf(s datastream.String) any {
	if s.Null {
		return nil
	}
	return s.Text
}

func doubleOf(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return f
}

// ParseTyped builds a Value from a tree produced by [Typed], or from
// the same tree after a round trip through JSON, YAML, or CBOR.
// Numbers may be any Go numeric type or json.Number.
func ParseTyped(tree any) (datastream.Value, error) {
	return parseNode(tree, "$")
}

func parseNode(tree any, path string) (datastream.Value, error) {
	node, ok := asObject(tree)
	if !ok {
		return nil, malformed(path, "want an object, got %T", tree)
	}
	name, ok := node["type"].(string)
	if !ok {
		return nil, malformed(path, "missing type")
	}
	raw, hasValue := node["value"]
	isNull, _ := node["null"].(bool)

	switch name {
	case "Variant":
		inner, err := parseNode(raw, path+".value")
		if err != nil {
			return nil, err
		}
		return datastream.Variant{Value: inner}, nil
	case "Null":
		of, _ := node["of"].(string)
		target, err := datastream.ParseType(of)
		if err != nil {
			return nil, malformed(path, "%v", err)
		}
		userName, _ := node["name"].(string)
		return datastream.Null{Of: target, Name: userName}, nil
	}

	target, err := datastream.ParseType(name)
	if err != nil {
		return nil, malformed(path, "%v", err)
	}
	switch target {
	case datastream.TypeInvalid:
		return datastream.Invalid{}, nil

	case datastream.TypeString:
		if isNull {
			return datastream.NullString(), nil
		}
		text, ok := raw.(string)
		if !ok {
			return nil, malformed(path, "String value must be a string")
		}
		return datastream.NewString(text), nil

	case datastream.TypeByteArray:
		if isNull {
			return datastream.ByteArray{Null: true}, nil
		}
		encoded, ok := raw.(string)
		if !ok {
			return nil, malformed(path, "ByteArray value must be base64 text")
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, malformed(path, "ByteArray value: %v", err)
		}
		return datastream.NewByteArray(data), nil

	case datastream.TypeDouble:
		if text, ok := raw.(string); ok {
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, malformed(path, "Double value %q", text)
			}
			return datastream.Double(f), nil
		}
		return convert(raw, target, path)

	case datastream.TypeStringList:
		elements, ok := raw.([]any)
		if !ok && hasValue {
			return nil, malformed(path, "StringList value must be a list")
		}
		list := make(datastream.StringList, len(elements))
		for index, element := range elements {
			converted, err := datastream.Convert(element, datastream.TypeString)
			if err != nil {
				return nil, malformed(fmt.Sprintf("%s[%d]", path, index), "%v", err)
			}
			list[index] = converted.(datastream.String)
		}
		return list, nil

	case datastream.TypeList:
		elements, ok := raw.([]any)
		if !ok && hasValue {
			return nil, malformed(path, "List value must be a list")
		}
		list := make(datastream.List, len(elements))
		for index, element := range elements {
			value, err := parseNode(element, fmt.Sprintf("%s[%d]", path, index))
			if err != nil {
				return nil, err
			}
			list[index] = value
		}
		return list, nil

	case datastream.TypeMap:
		entries, ok := raw.([]any)
		if !ok && hasValue {
			return nil, malformed(path, "Map value must be a list of entries")
		}
		result := make(datastream.Map, len(entries))
		for index, element := range entries {
			entryPath := fmt.Sprintf("%s[%d]", path, index)
			entry, ok := asObject(element)
			if !ok {
				return nil, malformed(entryPath, "Map entry must be an object")
			}
			key, err := datastream.Convert(entry["key"], datastream.TypeString)
			if err != nil {
				return nil, malformed(entryPath, "key: %v", err)
			}
			value, err := parseNode(entry["value"], entryPath+".value")
			if err != nil {
				return nil, err
			}
			result[index] = datastream.MapEntry{Key: key.(datastream.String), Value: value}
		}
		return result, nil

	case datastream.TypeDateTime:
		day, err := datastream.Convert(node["julian_day"], datastream.TypeUInt)
		if err != nil {
			return nil, malformed(path, "julian_day: %v", err)
		}
		milliseconds, err := datastream.Convert(node["milliseconds"], datastream.TypeUInt)
		if err != nil {
			return nil, malformed(path, "milliseconds: %v", err)
		}
		zone, err := datastream.Convert(node["zone"], datastream.TypeChar)
		if err != nil {
			return nil, malformed(path, "zone: %v", err)
		}
		return datastream.DateTime{
			JulianDay:    uint32(day.(datastream.UInt)),
			Milliseconds: uint32(milliseconds.(datastream.UInt)),
			Zone:         datastream.Zone(zone.(datastream.Char)),
		}, nil

	case datastream.TypeUserType:
		userName, _ := node["name"].(string)
		if userName == "" {
			return nil, malformed(path, "UserType needs a name")
		}
		rawFields, _ := node["fields"].([]any)
		fields := make([]datastream.Field, len(rawFields))
		for index, element := range rawFields {
			fieldPath := fmt.Sprintf("%s.fields[%d]", path, index)
			field, ok := asObject(element)
			if !ok {
				return nil, malformed(fieldPath, "field must be an object")
			}
			fieldName, _ := field["name"].(string)
			value, err := parseNode(field["value"], fieldPath+".value")
			if err != nil {
				return nil, err
			}
			fields[index] = datastream.Field{Name: fieldName, Value: value}
		}
		return datastream.UserType{Name: userName, Fields: fields}, nil
	}
	return convert(raw, target, path)
}

func convert(raw any, target datastream.Type, path string) (datastream.Value, error) {
	value, err := datastream.Convert(raw, target)
	if err != nil {
		return nil, malformed(path, "%v", err)
	}
	return value, nil
}

// asObject accepts the object shapes JSON, YAML, and CBOR decoders
// produce.
func asObject(tree any) (map[string]any, bool) {
	switch typed := tree.(type) {
	case map[string]any:
		return typed, true
	case map[any]any:
		object := make(map[string]any, len(typed))
		for key, value := range typed {
			name, ok := key.(string)
			if !ok {
				return nil, false
			}
			object[name] = value
		}
		return object, true
	}
	return nil, false
}

func malformed(path, format string, args ...any) error {
	return fmt.Errorf("%w at %s: %s", ErrMalformedTree, path, fmt.Sprintf(format, args...))
}

