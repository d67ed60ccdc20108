// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"encoding/base64"
	"time"

	"github.com/bureau-foundation/qtstream/lib/datastream"
)

// Plain returns a compact tree for v that drops wire types: numbers
// become numbers, strings become strings (nil when null), ByteArray
// becomes base64 text, and Map and UserType become objects keyed by
// entry key or field name. A later Map entry with a repeated key
// replaces the earlier one. Alias user types collapse to their single
// value. DateTime renders as RFC 3339 and Time as "15:04:05.000".
//
// Plain is for reading, not for reconstruction; use [Typed] when the
// tree must be encoded again.
func Plain(v datastream.Value) any {
	switch typed := v.(type) {
	case nil, datastream.Invalid, datastream.Null:
		return nil
	case datastream.Bool:
		return bool(typed)
	case datastream.Int:
		return int64(typed)
	case datastream.UInt:
		return uint64(typed)
	case datastream.Int64:
		return int64(typed)
	case datastream.UInt64:
		return uint64(typed)
	case datastream.Short:
		return int64(typed)
	case datastream.Char:
		return string(rune(typed))
	case datastream.Double:
		return doubleOf(float64(typed))
	case datastream.Time:
		if typed == datastream.InvalidTime {
			return nil
		}
		return time.Time{}.Add(typed.Duration()).Format("15:04:05.000")
	case datastream.DateTime:
		return typed.Time().Format(time.RFC3339Nano)
	case datastream.String:
		return stringOf(typed)
	case datastream.ByteArray:
		if typed.Null {
			return nil
		}
		return base64.StdEncoding.EncodeToString(typed.Data)
	case datastream.StringList:
		elements := make([]any, len(typed))
		for index, element := range typed {
			elements[index] = stringOf(element)
		}
		return elements
	case datastream.List:
		elements := make([]any, len(typed))
		for index, element := range typed {
			elements[index] = Plain(element)
		}
		return elements
	case datastream.Map:
		object := make(map[string]any, len(typed))
		for _, entry := range typed {
			object[entry.Key.Text] = Plain(entry.Value)
		}
		return object
	case datastream.UserType:
		if len(typed.Fields) == 1 && typed.Fields[0].Name == "" {
			return Plain(typed.Fields[0].Value)
		}
		object := make(map[string]any, len(typed.Fields))
		for _, field := range typed.Fields {
			object[field.Name] = Plain(field.Value)
		}
		return object
	case datastream.Variant:
		return Plain(typed.Value)
	}
	return nil
}
