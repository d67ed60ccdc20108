// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package framing

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/bureau-foundation/qtstream/lib/datastream"
)

// helloAndNull is "hi" framed followed by a framed null string.
var helloAndNull = []byte{
	0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00, 0x04, 0x00, 0x68, 0x00, 0x69,
	0x00, 0x00, 0x00, 0x04, 0xff, 0xff, 0xff, 0xff,
}

func stringReader(options ...ReaderOption) *Reader {
	return NewReader(datastream.NewDecoder(nil), datastream.TypeShape(datastream.TypeString), options...)
}

// feedChunks feeds each chunk in turn and collects every value.
func feedChunks(t *testing.T, reader *Reader, chunks ...[]byte) []datastream.Value {
	t.Helper()
	var values []datastream.Value
	for index, chunk := range chunks {
		decoded, err := reader.Feed(chunk)
		if err != nil {
			t.Fatalf("Feed chunk %d: %v", index, err)
		}
		values = append(values, decoded...)
	}
	return values
}

func TestReaderSplitsAnywhere(t *testing.T) {
	t.Parallel()
	want := []datastream.Value{datastream.NewString("hi"), datastream.NullString()}

	tests := []struct {
		name   string
		chunks [][]byte
	}{
		{"single chunk", [][]byte{helloAndNull}},
		{"mid prefix then mid body", [][]byte{helloAndNull[:2], helloAndNull[2:9], helloAndNull[9:]}},
		{"at message boundary", [][]byte{helloAndNull[:12], helloAndNull[12:]}},
		{"into second prefix", [][]byte{helloAndNull[:14], helloAndNull[14:18], helloAndNull[18:]}},
		{"with empty chunks", [][]byte{{}, helloAndNull[:5], {}, helloAndNull[5:]}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			reader := stringReader()
			got := feedChunks(t, reader, test.chunks...)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("values: got %v, want %v", got, want)
			}
			if err := reader.End(); err != nil {
				t.Errorf("End: %v", err)
			}
		})
	}
}

func TestReaderOneByteAtATime(t *testing.T) {
	t.Parallel()
	reader := stringReader()
	var got []datastream.Value
	for index := range helloAndNull {
		values, err := reader.Feed(helloAndNull[index : index+1])
		if err != nil {
			t.Fatalf("Feed byte %d: %v", index, err)
		}
		switch index {
		case 11, 19:
			if len(values) != 1 {
				t.Fatalf("byte %d completed %d messages, want 1", index, len(values))
			}
		default:
			if len(values) != 0 {
				t.Fatalf("byte %d completed %d messages, want 0", index, len(values))
			}
		}
		got = append(got, values...)
	}
	if len(got) != 2 || got[0] != datastream.NewString("hi") || got[1] != datastream.NullString() {
		t.Errorf("values: got %v", got)
	}
}

func TestReaderState(t *testing.T) {
	t.Parallel()
	reader := stringReader()
	if reader.State() != AwaitingLength || reader.Buffered() != 0 {
		t.Fatalf("initial: state %v with %d bytes, want awaiting-length with 0", reader.State(), reader.Buffered())
	}
	feedChunks(t, reader, helloAndNull[:3])
	if reader.State() != AwaitingLength || reader.Buffered() != 3 {
		t.Errorf("after 3 bytes: state %v with %d bytes", reader.State(), reader.Buffered())
	}
	feedChunks(t, reader, helloAndNull[3:6])
	if reader.State() != AwaitingBody || reader.Buffered() != 6 {
		t.Errorf("after 6 bytes: state %v with %d bytes", reader.State(), reader.Buffered())
	}
	feedChunks(t, reader, helloAndNull[6:14])
	if reader.State() != AwaitingLength || reader.Buffered() != 2 {
		t.Errorf("into second message: state %v with %d bytes", reader.State(), reader.Buffered())
	}
	if reader.Packets() != 1 {
		t.Errorf("Packets: got %d, want 1", reader.Packets())
	}
}

func TestReaderOversizedPacket(t *testing.T) {
	t.Parallel()
	reader := stringReader()
	values, err := reader.Feed([]byte{0x05, 0x00, 0x00, 0x00})
	if !errors.Is(err, ErrOversizedPacket) {
		t.Fatalf("Feed: got %v, want ErrOversizedPacket", err)
	}
	if len(values) != 0 {
		t.Errorf("Feed returned %d values with the oversize error", len(values))
	}

	// The stream is dead: later chunks, even valid ones, are refused.
	values, err = reader.Feed(helloAndNull)
	if !errors.Is(err, ErrOversizedPacket) || len(values) != 0 {
		t.Errorf("Feed after failure: got %d values, %v", len(values), err)
	}
	if err := reader.End(); !errors.Is(err, ErrOversizedPacket) {
		t.Errorf("End after failure: got %v, want ErrOversizedPacket", err)
	}
}

func TestReaderOversizeDetectedAfterEarlierMessages(t *testing.T) {
	t.Parallel()
	reader := stringReader(WithMaxPacketSize(16))
	chunk := append(append([]byte{}, helloAndNull[:12]...), 0x00, 0x00, 0x00, 0x11)
	values, err := reader.Feed(chunk)
	if !errors.Is(err, ErrOversizedPacket) {
		t.Fatalf("Feed: got %v, want ErrOversizedPacket", err)
	}
	if len(values) != 1 || values[0] != datastream.NewString("hi") {
		t.Errorf("values before failure: got %v, want [\"hi\"]", values)
	}
}

func TestReaderAcceptsLimit(t *testing.T) {
	t.Parallel()
	reader := NewReader(datastream.NewDecoder(nil), datastream.TypeShape(datastream.TypeByteArray), WithMaxPacketSize(8))
	values, err := reader.Feed([]byte{0, 0, 0, 8, 0, 0, 0, 4, 1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Feed at the limit: %v", err)
	}
	if len(values) != 1 {
		t.Errorf("values: got %d, want 1", len(values))
	}
}

func TestReaderTruncatedStream(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		chunk []byte
		want  int
	}{
		{"complete message plus three bytes", append(append([]byte{}, helloAndNull[:12]...), 0, 0, 0), 1},
		{"partial body", helloAndNull[:10], 0},
		{"partial prefix", helloAndNull[:1], 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			reader := stringReader()
			values := feedChunks(t, reader, test.chunk)
			if len(values) != test.want {
				t.Errorf("values: got %d, want %d", len(values), test.want)
			}
			if err := reader.End(); !errors.Is(err, ErrTruncatedStream) {
				t.Errorf("End: got %v, want ErrTruncatedStream", err)
			}
		})
	}
}

func TestReaderMalformedBody(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		wire []byte
		want error
	}{
		// Body claims an 8-byte string inside a 4-byte body.
		{"string overruns body", []byte{0, 0, 0, 4, 0, 0, 0, 8}, datastream.ErrMalformed},
		{"trailing bytes", []byte{0, 0, 0, 6, 0, 0, 0, 0, 0xaa, 0xbb}, ErrTrailingBytes},
		{"empty body", []byte{0, 0, 0, 0}, datastream.ErrMalformed},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			reader := stringReader()
			values, err := reader.Feed(test.wire)
			if !errors.Is(err, test.want) {
				t.Fatalf("Feed: got %v, want %v", err, test.want)
			}
			if len(values) != 0 {
				t.Errorf("Feed returned %v alongside the error", values)
			}
			if !errors.Is(reader.Err(), test.want) {
				t.Errorf("Err: got %v, want %v", reader.Err(), test.want)
			}
		})
	}
}

func TestReaderProgress(t *testing.T) {
	t.Parallel()
	type report struct{ received, size int }
	var reports []report
	reader := stringReader(WithProgress(func(received, size int) {
		reports = append(reports, report{received, size})
	}))
	feedChunks(t, reader, helloAndNull[:6], helloAndNull[6:12])

	want := []report{{6, 8}, {12, 8}}
	if !reflect.DeepEqual(reports, want) {
		t.Errorf("progress: got %v, want %v", reports, want)
	}
}

func TestReaderVariantShape(t *testing.T) {
	t.Parallel()
	encoder := datastream.NewEncoder(nil)
	var stream []byte
	for _, value := range []datastream.Value{
		datastream.Variant{Value: datastream.UInt(1)},
		datastream.Null{Of: datastream.TypeMap},
		datastream.Variant{Value: datastream.List{datastream.NewString("x")}},
	} {
		framed, err := encoder.EncodeFramed(value)
		if err != nil {
			t.Fatalf("EncodeFramed: %v", err)
		}
		stream = append(stream, framed...)
	}

	reader := NewReader(datastream.NewDecoder(nil), datastream.VariantShape())
	values := feedChunks(t, reader, stream)
	want := []datastream.Value{
		datastream.Variant{Value: datastream.UInt(1)},
		datastream.Null{Of: datastream.TypeMap},
		datastream.Variant{Value: datastream.List{datastream.NewString("x")}},
	}
	if !reflect.DeepEqual(values, want) {
		t.Errorf("values: got %v, want %v", values, want)
	}
}

// TestReaderChunkBoundaryInvariance feeds the same framed stream split
// at generated cut points and checks that the decoded sequence never
// changes.
func TestReaderChunkBoundaryInvariance(t *testing.T) {
	t.Parallel()
	encoder := datastream.NewEncoder(nil)
	var stream []byte
	var want []datastream.Value
	for _, native := range []any{"alpha", datastream.NullString(), "", "\U0001F600 astral", "omega"} {
		value, err := datastream.ValueOf(native)
		if err != nil {
			t.Fatalf("ValueOf: %v", err)
		}
		framed, err := encoder.EncodeFramed(value)
		if err != nil {
			t.Fatalf("EncodeFramed: %v", err)
		}
		stream = append(stream, framed...)
		want = append(want, value)
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)
	properties.Property("any split yields the same messages", prop.ForAll(
		func(cuts []int) bool {
			reader := stringReader()
			var got []datastream.Value
			start := 0
			for _, cut := range cuts {
				end := start + cut
				if end > len(stream) {
					end = len(stream)
				}
				values, err := reader.Feed(stream[start:end])
				if err != nil {
					return false
				}
				got = append(got, values...)
				start = end
			}
			values, err := reader.Feed(stream[start:])
			if err != nil {
				return false
			}
			got = append(got, values...)
			return reader.End() == nil && reflect.DeepEqual(got, want)
		},
		gen.SliceOf(gen.IntRange(0, 9)),
	))
	properties.TestingRun(t)
}

func TestReaderDoesNotAliasInput(t *testing.T) {
	t.Parallel()
	reader := NewReader(datastream.NewDecoder(nil), datastream.TypeShape(datastream.TypeByteArray))
	chunk := []byte{0, 0, 0, 6, 0, 0, 0, 2, 'o', 'k'}
	values := feedChunks(t, reader, chunk)
	for index := range chunk {
		chunk[index] = 0
	}
	data := values[0].(datastream.ByteArray).Data
	if !bytes.Equal(data, []byte("ok")) {
		t.Errorf("decoded bytes changed with the input chunk: %q", data)
	}
}
