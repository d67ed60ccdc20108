// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastream

import (
	"errors"
	"reflect"
	"sync"
	"testing"
)

func TestRegistryLookup(t *testing.T) {
	t.Parallel()
	registry := testRegistry()

	def, err := registry.Lookup("NetworkId")
	if err != nil {
		t.Fatalf("Lookup(NetworkId): %v", err)
	}
	if def.Composite() || def.Base() != TypeInt {
		t.Errorf("NetworkId: got composite=%v base=%v, want alias of Int", def.Composite(), def.Base())
	}

	def, err = registry.Lookup("BufferInfo")
	if err != nil {
		t.Fatalf("Lookup(BufferInfo): %v", err)
	}
	if !def.Composite() || len(def.FieldList()) != 4 {
		t.Errorf("BufferInfo: got composite=%v with %d fields, want composite with 4", def.Composite(), len(def.FieldList()))
	}

	if _, err := registry.Lookup("Missing"); !errors.Is(err, ErrUnregisteredType) {
		t.Errorf("Lookup(Missing): got %v, want ErrUnregisteredType", err)
	}

	var nilRegistry *Registry
	if _, err := nilRegistry.Lookup("NetworkId"); !errors.Is(err, ErrUnregisteredType) {
		t.Errorf("nil registry Lookup: got %v, want ErrUnregisteredType", err)
	}
}

func TestRegistryIsComposite(t *testing.T) {
	t.Parallel()
	registry := testRegistry()
	registry.Register("Empty", Fields())

	tests := map[string]bool{
		"NetworkId":  false,
		"BufferInfo": true,
		"Empty":      true,
		"Missing":    false,
	}
	for name, want := range tests {
		if got := registry.IsComposite(name); got != want {
			t.Errorf("IsComposite(%q): got %v, want %v", name, got, want)
		}
	}
}

func TestRegistryReplaceAndNames(t *testing.T) {
	t.Parallel()
	registry := NewRegistry()
	registry.Register("Id", Alias(TypeInt))
	registry.Register("Id", Alias(TypeUInt64))
	registry.Register("A", Alias(TypeBool))

	def, err := registry.Lookup("Id")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if def.Base() != TypeUInt64 {
		t.Errorf("replaced definition: got base %v, want UInt64", def.Base())
	}
	if names := registry.Names(); !reflect.DeepEqual(names, []string{"A", "Id"}) {
		t.Errorf("Names: got %v, want [A Id]", names)
	}
}

func TestFieldsCopiesArguments(t *testing.T) {
	t.Parallel()
	fields := []FieldDef{FieldOf("a", TypeInt)}
	def := Fields(fields...)
	fields[0].Name = "mutated"
	if def.FieldList()[0].Name != "a" {
		t.Errorf("definition shares caller's slice: field renamed to %q", def.FieldList()[0].Name)
	}
}

func TestRegistryCheck(t *testing.T) {
	t.Parallel()
	if err := testRegistry().Check(); err != nil {
		t.Errorf("Check on consistent registry: %v", err)
	}

	dangling := NewRegistry()
	dangling.Register("Outer", Fields(FieldOfUser("inner", "Inner")))
	if err := dangling.Check(); !errors.Is(err, ErrUnregisteredType) {
		t.Errorf("Check with dangling reference: got %v, want ErrUnregisteredType", err)
	}

	badAlias := NewRegistry()
	badAlias.Register("Weird", Alias(Type(200)))
	if err := badAlias.Check(); err == nil {
		t.Error("Check accepted an alias of an unknown type")
	}
}

func TestRegistryConcurrentUse(t *testing.T) {
	t.Parallel()
	registry := testRegistry()
	decoder := NewDecoder(registry)
	wire := mustHex(t, "0000007f 00 0000000a 4e6574776f726b496400 00000005")

	var waitGroup sync.WaitGroup
	for index := range 8 {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			for range 50 {
				registry.Register("Extra", Alias(TypeInt))
				if _, _, err := decoder.Decode(wire, VariantShape()); err != nil {
					t.Errorf("goroutine %d: Decode: %v", index, err)
					return
				}
				registry.Names()
			}
		}()
	}
	waitGroup.Wait()
}

func TestRegistryBuild(t *testing.T) {
	t.Parallel()
	registry := testRegistry()

	type buffer struct {
		ID      int
		Network int    `qds:"network"`
		Kind    int    `qds:"type"`
		Name    string `qds:"name"`
		Ignored string `qds:"-"`
	}

	built, err := registry.Build("BufferInfo", buffer{ID: 1, Network: 2, Kind: 4, Name: "#x"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := UserType{Name: "BufferInfo", Fields: []Field{
		{Name: "id", Value: Int(1)},
		{Name: "network", Value: UserType{Name: "NetworkId", Fields: []Field{{Value: Int(2)}}}},
		{Name: "type", Value: Short(4)},
		{Name: "name", Value: NewByteArray([]byte("#x"))},
	}}
	if !reflect.DeepEqual(built, want) {
		t.Errorf("Build(struct): got %v, want %v", built, want)
	}

	fromMap, err := registry.Build("BufferInfo", map[string]any{"id": 1, "network": 2, "type": 4, "name": "#x"})
	if err != nil {
		t.Fatalf("Build(map): %v", err)
	}
	if !reflect.DeepEqual(fromMap, want) {
		t.Errorf("Build(map): got %v, want %v", fromMap, want)
	}

	if _, err := registry.Build("BufferInfo", map[string]any{"id": 1}); err == nil {
		t.Error("Build accepted a record with missing fields")
	}
	if _, err := registry.Build("NetworkId", 1<<40); !errors.Is(err, ErrUnsupportedValue) {
		t.Errorf("Build(NetworkId, 1<<40): got %v, want ErrUnsupportedValue", err)
	}
	if _, err := registry.Build("Missing", 1); !errors.Is(err, ErrUnregisteredType) {
		t.Errorf("Build(Missing): got %v, want ErrUnregisteredType", err)
	}
}
