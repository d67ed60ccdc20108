// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/qtstream/lib/datastream"
	"github.com/bureau-foundation/qtstream/lib/export"
)

// documentParams select how message documents are read.
type documentParams struct {
	InputFormat string `flag:"input-format" desc:"document syntax: json or yaml (default: from the file extension, else sniffed)"`
	Native      bool   `flag:"native" desc:"documents are plain values rather than typed trees"`
}

// documentFormat picks the syntax of data: the explicit flag, then the
// file extension, then the first significant byte.
func (p *documentParams) documentFormat(data []byte, path string) (string, error) {
	if p.InputFormat != "" {
		switch format := strings.ToLower(p.InputFormat); format {
		case "json", "yaml":
			return format, nil
		case "jsonc", "jsonl":
			return "json", nil
		case "yml":
			return "yaml", nil
		}
		return "", fmt.Errorf("unknown input format %q (want json or yaml)", p.InputFormat)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc", ".jsonl":
		return "json", nil
	case ".yaml", ".yml":
		return "yaml", nil
	}
	// JSONC may open with a comment, so sniff past comments.
	trimmed := bytes.TrimSpace(jsonc.ToJSON(data))
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return "json", nil
	}
	return "yaml", nil
}

// messages parses every document in data into a message for shape.
// A variant-shaped session wraps values that are not already variants,
// so a document may spell just the inner value.
func (p *documentParams) messages(data []byte, path string, shape datastream.Shape) ([]datastream.Value, error) {
	format, err := p.documentFormat(data, path)
	if err != nil {
		return nil, err
	}
	var documents []any
	if format == "json" {
		documents, err = jsonDocuments(data)
	} else {
		documents, err = yamlDocuments(data)
	}
	if err != nil {
		return nil, err
	}

	values := make([]datastream.Value, 0, len(documents))
	for index, document := range documents {
		var value datastream.Value
		if p.Native {
			value, err = datastream.ValueOf(document)
		} else {
			value, err = export.ParseTyped(document)
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", index+1, err)
		}
		if shape == datastream.VariantShape() {
			switch value.(type) {
			case datastream.Variant, datastream.Null:
			default:
				value = datastream.Variant{Value: value}
			}
		}
		values = append(values, value)
	}
	return values, nil
}

// jsonDocuments reads a sequence of JSON values. Comments and trailing
// commas are accepted; numbers keep their text so 64-bit integers
// survive.
func jsonDocuments(data []byte) ([]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.UseNumber()
	var documents []any
	for {
		var document any
		err := decoder.Decode(&document)
		if errors.Is(err, io.EOF) {
			return documents, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse JSON document %d: %w", len(documents)+1, err)
		}
		documents = append(documents, document)
	}
}

// yamlDocuments reads a "---"-separated YAML stream.
func yamlDocuments(data []byte) ([]any, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	var documents []any
	for {
		var document any
		err := decoder.Decode(&document)
		if errors.Is(err, io.EOF) {
			return documents, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse YAML document %d: %w", len(documents)+1, err)
		}
		documents = append(documents, document)
	}
}
