// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/qtstream/lib/datastream"
)

// Format selects how a tree is serialized.
type Format string

const (
	// FormatJSONLines writes each message as one line of compact JSON.
	FormatJSONLines Format = "jsonl"
	FormatJSON      Format = "json"
	FormatYAML      Format = "yaml"
	FormatCBOR      Format = "cbor"
	// FormatText is the Value's own String form, one line per message.
	FormatText Format = "text"
)

// ParseFormat validates a --format argument.
func ParseFormat(name string) (Format, error) {
	switch format := Format(strings.ToLower(name)); format {
	case FormatJSONLines, FormatJSON, FormatYAML, FormatCBOR, FormatText:
		return format, nil
	}
	return "", fmt.Errorf("unknown output format %q (want jsonl, json, yaml, cbor, or text)", name)
}

// WriteJSON writes tree as indented JSON followed by a newline.
func WriteJSON(w io.Writer, tree any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(tree)
}

// WriteYAML writes tree as a YAML document.
func WriteYAML(w io.Writer, tree any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(tree); err != nil {
		return err
	}
	return encoder.Close()
}

// cborEncoding is Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer forms, no indefinite lengths. The same
// tree always yields the same bytes.
var (
	cborEncoding cbor.EncMode
	cborDecoding cbor.DecMode
)

func init() {
	var err error
	cborEncoding, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("export: CBOR encoder initialization failed: " + err.Error())
	}
	// Trees only ever have string keys; decoding into any must give
	// map[string]any so ParseTyped and encoding/json accept the result.
	cborDecoding, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("export: CBOR decoder initialization failed: " + err.Error())
	}
}

// MarshalCBOR encodes tree deterministically.
func MarshalCBOR(tree any) ([]byte, error) {
	return cborEncoding.Marshal(tree)
}

// UnmarshalCBOR decodes a tree written by [MarshalCBOR].
func UnmarshalCBOR(data []byte) (any, error) {
	var tree any
	if err := cborDecoding.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// Write serializes one message in format. typed selects the lossless
// tree from [Typed] over the [Plain] one; it has no effect on
// FormatText.
func Write(w io.Writer, format Format, value datastream.Value, typed bool) error {
	tree := Plain(value)
	if typed {
		tree = Typed(value)
	}
	switch format {
	case FormatJSONLines:
		encoder := json.NewEncoder(w)
		encoder.SetEscapeHTML(false)
		return encoder.Encode(tree)
	case FormatJSON:
		return WriteJSON(w, tree)
	case FormatYAML:
		// Successive messages form a YAML stream.
		if _, err := io.WriteString(w, "---\n"); err != nil {
			return err
		}
		return WriteYAML(w, tree)
	case FormatCBOR:
		data, err := MarshalCBOR(tree)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case FormatText:
		_, err := fmt.Fprintln(w, value)
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}

// IsTerminal reports whether w is a terminal that accepts color:
// an *os.File attached to a tty, with NO_COLOR unset.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

// Highlight writes source to w, syntax-highlighted as language
// ("json", "yaml") when w is a color terminal and unchanged
// otherwise. Highlighting failures fall back to the plain text.
func Highlight(w io.Writer, source, language string) error {
	if !IsTerminal(w) {
		_, err := io.WriteString(w, source)
		return err
	}
	return highlightTo(w, source, language)
}

func highlightTo(w io.Writer, source, language string) error {
	var buffer bytes.Buffer
	if err := quick.Highlight(&buffer, source, language, "terminal256", "monokai"); err != nil {
		_, err := io.WriteString(w, source)
		return err
	}
	_, err := buffer.WriteTo(w)
	return err
}

// WriteHighlighted is [Write] for human-facing output: JSON and YAML
// are highlighted on a color terminal. CBOR and text pass through
// [Write] unchanged.
func WriteHighlighted(w io.Writer, format Format, value datastream.Value, typed bool) error {
	language := map[Format]string{FormatJSONLines: "json", FormatJSON: "json", FormatYAML: "yaml"}[format]
	if language == "" || !IsTerminal(w) {
		return Write(w, format, value, typed)
	}
	var buffer bytes.Buffer
	if err := Write(&buffer, format, value, typed); err != nil {
		return err
	}
	return highlightTo(w, buffer.String(), language)
}
