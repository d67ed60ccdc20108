// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastream

import (
	"fmt"
	"strings"
)

// Type is a QVariant type id as it appears on the wire. The values are
// protocol constants shared with Qt peers; changing them breaks
// interoperability.
type Type uint32

const (
	TypeInvalid    Type = 0
	TypeBool       Type = 1
	TypeInt        Type = 2
	TypeUInt       Type = 3
	TypeInt64      Type = 4
	TypeUInt64     Type = 5
	TypeDouble     Type = 6
	TypeChar       Type = 7
	TypeMap        Type = 8
	TypeList       Type = 9
	TypeString     Type = 10
	TypeStringList Type = 11
	TypeByteArray  Type = 12
	TypeTime       Type = 15
	TypeDateTime   Type = 16
	TypeUserType   Type = 127
	TypeShort      Type = 133
)

var typeNames = map[Type]string{
	TypeInvalid:    "Invalid",
	TypeBool:       "Bool",
	TypeInt:        "Int",
	TypeUInt:       "UInt",
	TypeInt64:      "Int64",
	TypeUInt64:     "UInt64",
	TypeDouble:     "Double",
	TypeChar:       "Char",
	TypeMap:        "Map",
	TypeList:       "List",
	TypeString:     "String",
	TypeStringList: "StringList",
	TypeByteArray:  "ByteArray",
	TypeTime:       "Time",
	TypeDateTime:   "DateTime",
	TypeUserType:   "UserType",
	TypeShort:      "Short",
}

// String returns the Qt-agnostic name of the type ("String", "UInt",
// ...). Unknown ids render as "Type(n)".
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", uint32(t))
}

// Valid reports whether t is one of the wire types this package can
// encode and decode.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// ParseType resolves a type name as produced by [Type.String]. Matching
// is case-insensitive and accepts the Qt class spelling ("QString",
// "QVariantMap") as well.
func ParseType(name string) (Type, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.TrimPrefix(normalized, "q")
	normalized = strings.TrimPrefix(normalized, "variant")
	for t, typeName := range typeNames {
		if strings.ToLower(typeName) == normalized {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown type name %q", ErrUnknownType, name)
}
