// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"unicode"
)

// openInput returns the command's input: the file named by the single
// positional argument, or stdin when there is none or it is "-".
//
// With hexMode the input is hex text, read whole and decoded to bytes.
// Whitespace between digit pairs is ignored so hexdump-style input
// ("00 00 00 08 ...") pastes directly.
func openInput(env *Environment, args []string, hexMode bool) (io.ReadCloser, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("expected at most one input file, got %d arguments", len(args))
	}

	var input io.ReadCloser = io.NopCloser(env.Stdin)
	name := "stdin"
	if len(args) == 1 && args[0] != "-" {
		file, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		input, name = file, args[0]
	}
	if !hexMode {
		return input, nil
	}

	defer input.Close()
	text, err := io.ReadAll(input)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	data, err := decodeHexInput(text)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// readInput is openInput read to the end.
func readInput(env *Environment, args []string, hexMode bool) ([]byte, error) {
	input, err := openInput(env, args, hexMode)
	if err != nil {
		return nil, err
	}
	defer input.Close()
	data, err := io.ReadAll(input)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

// decodeHexInput strips whitespace from hex text and decodes it.
func decodeHexInput(data []byte) ([]byte, error) {
	cleaned := bytes.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, data)

	if len(cleaned) == 0 {
		return nil, fmt.Errorf("empty input after stripping whitespace from hex")
	}

	decoded := make([]byte, hex.DecodedLen(len(cleaned)))
	count, err := hex.Decode(decoded, cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return decoded[:count], nil
}
