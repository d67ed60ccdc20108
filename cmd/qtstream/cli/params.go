// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// FlagsFromParams returns a flag set bound to the tagged fields of
// params, a pointer to a struct. It panics on an invalid params type,
// which is a programming error.
//
//	var params struct {
//	    Hex   bool   `flag:"hex,x" desc:"input is hex text"`
//	    Shape string `flag:"shape" desc:"message body layout" default:"variant"`
//	}
//	command := &cli.Command{Params: func() any { return &params }, ...}
func FlagsFromParams(name string, params any) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	if err := BindFlags(params, flagSet); err != nil {
		panic(fmt.Sprintf("cli.FlagsFromParams(%q): %v", name, err))
	}
	return flagSet
}

// BindFlags registers one flag per tagged field of params:
//
//   - flag:"name" or flag:"name,n" gives the long name and an optional
//     shorthand; untagged fields are skipped.
//   - desc:"..." is the help text.
//   - default:"..." is parsed by the field's type; empty means zero.
//
// Supported field types are string, bool, int, int64, float64,
// time.Duration, and []string. Embedded structs are bound
// recursively, so shared flag groups compose by embedding.
func BindFlags(params any, flagSet *pflag.FlagSet) error {
	value := reflect.ValueOf(params)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	return bindStruct(value.Elem(), flagSet)
}

func bindStruct(structValue reflect.Value, flagSet *pflag.FlagSet) error {
	structType := structValue.Type()
	for index := range structType.NumField() {
		field := structType.Field(index)
		fieldValue := structValue.Field(index)

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if err := bindStruct(fieldValue, flagSet); err != nil {
				return fmt.Errorf("embedded %s: %w", field.Name, err)
			}
			continue
		}

		tag := field.Tag.Get("flag")
		if tag == "" {
			continue
		}
		if !field.IsExported() {
			return fmt.Errorf("field %s: flag fields must be exported", field.Name)
		}
		name, shorthand, _ := strings.Cut(tag, ",")
		if err := bindField(fieldValue.Addr().Interface(), flagSet, name, shorthand,
			field.Tag.Get("desc"), field.Tag.Get("default")); err != nil {
			return fmt.Errorf("field %s: %w", field.Name, err)
		}
	}
	return nil
}

func bindField(pointer any, flagSet *pflag.FlagSet, name, shorthand, description, defaultText string) error {
	switch target := pointer.(type) {
	case *string:
		flagSet.StringVarP(target, name, shorthand, defaultText, description)
	case *bool:
		value, err := parseDefault(defaultText, strconv.ParseBool)
		if err != nil {
			return fmt.Errorf("default for --%s: %w", name, err)
		}
		flagSet.BoolVarP(target, name, shorthand, value, description)
	case *int:
		value, err := parseDefault(defaultText, strconv.Atoi)
		if err != nil {
			return fmt.Errorf("default for --%s: %w", name, err)
		}
		flagSet.IntVarP(target, name, shorthand, value, description)
	case *int64:
		value, err := parseDefault(defaultText, func(text string) (int64, error) {
			return strconv.ParseInt(text, 10, 64)
		})
		if err != nil {
			return fmt.Errorf("default for --%s: %w", name, err)
		}
		flagSet.Int64VarP(target, name, shorthand, value, description)
	case *float64:
		value, err := parseDefault(defaultText, func(text string) (float64, error) {
			return strconv.ParseFloat(text, 64)
		})
		if err != nil {
			return fmt.Errorf("default for --%s: %w", name, err)
		}
		flagSet.Float64VarP(target, name, shorthand, value, description)
	case *time.Duration:
		value, err := parseDefault(defaultText, time.ParseDuration)
		if err != nil {
			return fmt.Errorf("default for --%s: %w", name, err)
		}
		flagSet.DurationVarP(target, name, shorthand, value, description)
	case *[]string:
		var value []string
		if defaultText != "" {
			value = strings.Split(defaultText, ",")
		}
		flagSet.StringSliceVarP(target, name, shorthand, value, description)
	default:
		return fmt.Errorf("unsupported type %T for flag --%s", pointer, name)
	}
	return nil
}

func parseDefault[T any](text string, parse func(string) (T, error)) (T, error) {
	if text == "" {
		var zero T
		return zero, nil
	}
	return parse(text)
}
