// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastream

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// FieldDef declares one field of a composite user type. When UserType
// is set the field is itself a registered user type and Type is
// ignored; otherwise Type names a base wire type.
type FieldDef struct {
	Name     string
	Type     Type
	UserType string
}

// FieldOf declares a field holding a base wire type.
func FieldOf(name string, t Type) FieldDef {
	return FieldDef{Name: name, Type: t}
}

// FieldOfUser declares a field holding another registered user type.
func FieldOfUser(name, userType string) FieldDef {
	return FieldDef{Name: name, Type: TypeUserType, UserType: userType}
}

// Definition is the registered wire layout of a user type: either an
// alias for a single base type, or an ordered field list.
type Definition struct {
	base   Type
	fields []FieldDef
}

// Alias defines a user type that is written exactly like base.
func Alias(base Type) Definition {
	return Definition{base: base}
}

// Fields defines a composite user type written as its fields in order.
func Fields(fields ...FieldDef) Definition {
	copied := make([]FieldDef, len(fields))
	copy(copied, fields)
	return Definition{base: TypeUserType, fields: copied}
}

// Composite reports whether d is a field list rather than an alias.
func (d Definition) Composite() bool { return d.fields != nil }

// Base returns the aliased type. It is TypeUserType for composites.
func (d Definition) Base() Type { return d.base }

// FieldList returns the declared fields of a composite definition.
func (d Definition) FieldList() []FieldDef { return d.fields }

// Registry maps user type names to their wire layout. A Registry is
// populated at startup and read by any number of decoders and
// encoders afterward; all methods are safe for concurrent use.
type Registry struct {
	mutex       sync.RWMutex
	definitions map[string]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[string]Definition)}
}

// Register stores def under name, replacing any previous definition.
func (r *Registry) Register(name string, def Definition) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.definitions[name] = def
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Definition, error) {
	if r == nil {
		return Definition{}, fmt.Errorf("%w: %q (no registry)", ErrUnregisteredType, name)
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	def, ok := r.definitions[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnregisteredType, name)
	}
	return def, nil
}

// IsComposite reports whether name is registered as a field list.
// Unregistered names report false.
func (r *Registry) IsComposite(name string) bool {
	def, err := r.Lookup(name)
	return err == nil && def.Composite()
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	names := make([]string, 0, len(r.definitions))
	for name := range r.definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check verifies that every field reference names a registered type
// and every base type is one the codec implements.
func (r *Registry) Check() error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	for name, def := range r.definitions {
		if !def.Composite() {
			if !def.base.Valid() || def.base == TypeUserType {
				return fmt.Errorf("user type %q: alias of unsupported type %v", name, def.base)
			}
			continue
		}
		for _, field := range def.fields {
			if field.UserType != "" {
				if _, ok := r.definitions[field.UserType]; !ok {
					return fmt.Errorf("user type %q field %q: %w: %q", name, field.Name, ErrUnregisteredType, field.UserType)
				}
				continue
			}
			if !field.Type.Valid() || field.Type == TypeUserType {
				return fmt.Errorf("user type %q field %q: unsupported type %v", name, field.Name, field.Type)
			}
		}
	}
	return nil
}

// Build converts a native Go value into the registered user type name.
// For an alias, native is converted to the base type. For a composite,
// native must be a struct or a string-keyed map; each declared field is
// looked up by name (struct fields by their qds tag, then
// case-insensitively by Go name) and converted to its declared type.
func (r *Registry) Build(name string, native any) (UserType, error) {
	def, err := r.Lookup(name)
	if err != nil {
		return UserType{}, err
	}
	if !def.Composite() {
		value, err := Convert(native, def.base)
		if err != nil {
			return UserType{}, fmt.Errorf("user type %q: %w", name, err)
		}
		return UserType{Name: name, Fields: []Field{{Value: value}}}, nil
	}

	members, err := nativeMembers(native)
	if err != nil {
		return UserType{}, fmt.Errorf("user type %q: %w", name, err)
	}
	fields := make([]Field, len(def.fields))
	for index, fieldDef := range def.fields {
		member, ok := members(fieldDef.Name)
		if !ok {
			return UserType{}, fmt.Errorf("user type %q: missing field %q", name, fieldDef.Name)
		}
		var value Value
		if fieldDef.UserType != "" {
			nested, err := r.Build(fieldDef.UserType, member)
			if err != nil {
				return UserType{}, fmt.Errorf("user type %q field %q: %w", name, fieldDef.Name, err)
			}
			value = nested
		} else {
			value, err = Convert(member, fieldDef.Type)
			if err != nil {
				return UserType{}, fmt.Errorf("user type %q field %q: %w", name, fieldDef.Name, err)
			}
		}
		fields[index] = Field{Name: fieldDef.Name, Value: value}
	}
	return UserType{Name: name, Fields: fields}, nil
}

// nativeMembers returns a lookup function over the named members of a
// struct or string-keyed map.
func nativeMembers(native any) (func(string) (any, bool), error) {
	value := reflect.ValueOf(native)
	for value.Kind() == reflect.Pointer || value.Kind() == reflect.Interface {
		if value.IsNil() {
			return nil, fmt.Errorf("%w: nil record", ErrUnsupportedValue)
		}
		value = value.Elem()
	}

	switch value.Kind() {
	case reflect.Map:
		if value.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: record map key must be string, got %s", ErrUnsupportedValue, value.Type().Key())
		}
		return func(name string) (any, bool) {
			element := value.MapIndex(reflect.ValueOf(name).Convert(value.Type().Key()))
			if !element.IsValid() {
				return nil, false
			}
			return element.Interface(), true
		}, nil

	case reflect.Struct:
		return func(name string) (any, bool) {
			structType := value.Type()
			for i := range structType.NumField() {
				field := structType.Field(i)
				if !field.IsExported() {
					continue
				}
				tagName, skip := fieldTag(field)
				if skip {
					continue
				}
				if tagName == name || (tagName == "" && strings.EqualFold(field.Name, name)) {
					return value.Field(i).Interface(), true
				}
			}
			return nil, false
		}, nil

	default:
		return nil, fmt.Errorf("%w: record must be a struct or map, got %s", ErrUnsupportedValue, value.Type())
	}
}
