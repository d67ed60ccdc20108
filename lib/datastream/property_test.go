// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package datastream

import (
	"bytes"
	"math/rand"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// alphabet mixes ASCII, BMP, and astral runes so that UTF-16
// surrogate pairs are exercised.
var alphabet = []rune("aZ0 #é中\U0001F600\U00010348")

// randomTree builds a pseudo-random value tree from rng. The results
// use only types registered in propertyRegistry.
func randomTree(rng *rand.Rand, depth int) Value {
	kinds := 16
	if depth <= 0 {
		kinds = 12
	}
	switch rng.Intn(kinds) {
	case 0:
		return Bool(rng.Intn(2) == 1)
	case 1:
		return Int(int32(rng.Uint32()))
	case 2:
		return UInt(rng.Uint32())
	case 3:
		return Int64(int64(rng.Uint64()))
	case 4:
		return UInt64(rng.Uint64())
	case 5:
		return Short(int16(rng.Uint32()))
	case 6:
		return Double(rng.NormFloat64() * 1e6)
	case 7:
		return Char(byte(rng.Intn(256)))
	case 8:
		return randomString(rng)
	case 9:
		if rng.Intn(5) == 0 {
			return ByteArray{Null: true}
		}
		data := make([]byte, rng.Intn(8))
		rng.Read(data)
		return ByteArray{Data: data}
	case 10:
		return Time(rng.Intn(millisecondsPerDay))
	case 11:
		return DateTime{JulianDay: uint32(unixEpochJulianDay + rng.Intn(20000)), Milliseconds: uint32(rng.Intn(millisecondsPerDay)), Zone: Zone(rng.Intn(3))}
	case 12:
		list := make(StringList, rng.Intn(4))
		for index := range list {
			list[index] = randomString(rng)
		}
		return list
	case 13:
		list := make(List, rng.Intn(4))
		for index := range list {
			list[index] = randomElement(rng, depth-1)
		}
		return list
	case 14:
		entries := make(Map, rng.Intn(4))
		for index := range entries {
			entries[index] = MapEntry{Key: randomString(rng), Value: randomElement(rng, depth-1)}
		}
		return entries
	default:
		return UserType{Name: "Sample", Fields: []Field{
			{Name: "id", Value: UserType{Name: "Id", Fields: []Field{{Value: UInt64(rng.Uint64())}}}},
			{Name: "label", Value: randomString(rng)},
		}}
	}
}

// randomElement returns a value suitable for a List element or Map
// value, occasionally a null envelope or Invalid.
func randomElement(rng *rand.Rand, depth int) Value {
	switch rng.Intn(10) {
	case 0:
		return Null{Of: TypeInt}
	case 1:
		return Null{Of: TypeUserType, Name: "Sample"}
	case 2:
		return Invalid{}
	default:
		return randomTree(rng, depth)
	}
}

func randomString(rng *rand.Rand) String {
	if rng.Intn(6) == 0 {
		return NullString()
	}
	runes := make([]rune, rng.Intn(6))
	for index := range runes {
		runes[index] = alphabet[rng.Intn(len(alphabet))]
	}
	return String{Text: string(runes)}
}

func propertyRegistry() *Registry {
	registry := NewRegistry()
	registry.Register("Id", Alias(TypeUInt64))
	registry.Register("Sample", Fields(
		FieldOfUser("id", "Id"),
		FieldOf("label", TypeString),
	))
	return registry
}

func TestPropertyRoundTrip(t *testing.T) {
	t.Parallel()
	registry := propertyRegistry()
	encoder := NewEncoder(registry)
	decoder := NewDecoder(registry)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("decode inverts encode for variant bodies", prop.ForAll(
		func(seed int64, depth int) bool {
			tree := Variant{Value: randomTree(rand.New(rand.NewSource(seed)), depth)}
			encoded, err := encoder.Encode(tree)
			if err != nil {
				t.Logf("Encode(%v): %v", tree, err)
				return false
			}
			decoded, remainder, err := decoder.Decode(encoded, VariantShape())
			if err != nil {
				t.Logf("Decode(%x): %v", encoded, err)
				return false
			}
			return len(remainder) == 0 && reflect.DeepEqual(decoded, Value(tree))
		},
		gen.Int64(),
		gen.IntRange(0, 4),
	))

	properties.Property("re-encoding a decoded body reproduces its bytes", prop.ForAll(
		func(seed int64, depth int) bool {
			tree := randomTree(rand.New(rand.NewSource(seed)), depth)
			shape := TypeShape(tree.Type())
			if user, ok := tree.(UserType); ok {
				shape = UserShape(user.Name)
			}
			encoded, err := encoder.Encode(tree)
			if err != nil {
				return false
			}
			decoded, _, err := decoder.Decode(encoded, shape)
			if err != nil {
				return false
			}
			reencoded, err := encoder.Encode(decoded)
			return err == nil && bytes.Equal(reencoded, encoded)
		},
		gen.Int64(),
		gen.IntRange(0, 4),
	))

	properties.Property("truncated bodies never decode", prop.ForAll(
		func(seed int64, cut int) bool {
			tree := Variant{Value: randomTree(rand.New(rand.NewSource(seed)), 2)}
			encoded, err := encoder.Encode(tree)
			if err != nil {
				return false
			}
			if cut >= len(encoded) {
				cut = len(encoded) - 1
			}
			value, _, err := decoder.Decode(encoded[:cut], VariantShape())
			return err != nil && value == nil
		},
		gen.Int64(),
		gen.IntRange(0, 64),
	))

	properties.TestingRun(t)
}
