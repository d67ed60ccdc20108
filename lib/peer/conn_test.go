// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/qtstream/lib/datastream"
	"github.com/bureau-foundation/qtstream/lib/framing"
	"github.com/bureau-foundation/qtstream/lib/testutil"
	"github.com/bureau-foundation/qtstream/transport"
)

func networkRegistry() *datastream.Registry {
	registry := datastream.NewRegistry()
	registry.Register("NetworkId", datastream.Alias(datastream.TypeInt))
	return registry
}

// receiveAsync runs Receive on a goroutine and delivers the outcome.
type received struct {
	value datastream.Value
	err   error
}

func receiveAsync(conn *Conn) <-chan received {
	results := make(chan received, 1)
	go func() {
		value, err := conn.Receive()
		results <- received{value, err}
	}()
	return results
}

func TestSendReceiveOverPipe(t *testing.T) {
	left, right := testutil.Pipe(t)
	options := Options{Registry: networkRegistry()}
	client := New(left, options)
	server := New(right, options)

	message := datastream.Variant{Value: datastream.Map{
		{Key: datastream.NewString("network"), Value: datastream.UserType{Name: "NetworkId", Fields: []datastream.Field{{Value: datastream.Int(3)}}}},
		{Key: datastream.NewString("text"), Value: datastream.NewString("hello")},
	}}

	results := receiveAsync(server)
	if err := client.Send(message); err != nil {
		t.Fatalf("Send: %v", err)
	}
	result := testutil.RequireReceive(t, results, 5*time.Second, "waiting for message")
	if result.err != nil {
		t.Fatalf("Receive: %v", result.err)
	}
	got, ok := datastream.Unwrap(result.value).(datastream.Map)
	if !ok {
		t.Fatalf("Receive: got %v, want a Map", result.value)
	}
	text, _ := got.Get("text")
	if text != datastream.NewString("hello") {
		t.Errorf("text: got %v, want \"hello\"", text)
	}
}

// scriptedTransport returns its reads one by one, then readErr.
type scriptedTransport struct {
	reads   [][]byte
	readErr error
	written bytes.Buffer
	closed  atomic.Bool
}

func (s *scriptedTransport) Read(buffer []byte) (int, error) {
	if len(s.reads) == 0 {
		return 0, s.readErr
	}
	count := copy(buffer, s.reads[0])
	s.reads = s.reads[1:]
	return count, nil
}

func (s *scriptedTransport) Write(data []byte) (int, error) { return s.written.Write(data) }

func (s *scriptedTransport) Close() error {
	s.closed.Store(true)
	return nil
}

var helloFrame = []byte{0, 0, 0, 8, 0, 0, 0, 4, 0, 'h', 0, 'i'}

func TestReceiveChunkedMessagesInOrder(t *testing.T) {
	t.Parallel()
	nullFrame := []byte{0, 0, 0, 4, 0xff, 0xff, 0xff, 0xff}
	stream := append(append([]byte{}, helloFrame...), nullFrame...)
	fake := &scriptedTransport{reads: testutil.Chunks(stream, 3, 10, 14), readErr: io.EOF}
	conn := New(fake, Options{Shape: datastream.TypeShape(datastream.TypeString)})

	for _, want := range []datastream.Value{datastream.NewString("hi"), datastream.NullString()} {
		value, err := conn.Receive()
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		if value != want {
			t.Errorf("Receive: got %v, want %v", value, want)
		}
	}
	if _, err := conn.Receive(); !errors.Is(err, io.EOF) {
		t.Errorf("Receive at end: got %v, want io.EOF", err)
	}
}

func TestReceiveTruncatedStream(t *testing.T) {
	t.Parallel()
	fake := &scriptedTransport{reads: [][]byte{append(append([]byte{}, helloFrame...), 0, 0, 0)}, readErr: io.EOF}
	conn := New(fake, Options{Shape: datastream.TypeShape(datastream.TypeString)})

	if value, err := conn.Receive(); err != nil || value != datastream.NewString("hi") {
		t.Fatalf("Receive: got %v, %v", value, err)
	}
	if _, err := conn.Receive(); !errors.Is(err, framing.ErrTruncatedStream) {
		t.Errorf("Receive: got %v, want ErrTruncatedStream", err)
	}
	if _, err := conn.Receive(); !errors.Is(err, framing.ErrTruncatedStream) {
		t.Errorf("Receive after failure: got %v, want sticky ErrTruncatedStream", err)
	}
}

func TestReceivePassesTransportErrorsAndKeepsPartialFrame(t *testing.T) {
	t.Parallel()
	failure := errors.New("link flapped")
	first := &scriptedTransport{reads: [][]byte{helloFrame[:7]}, readErr: failure}
	conn := New(first, Options{Shape: datastream.TypeShape(datastream.TypeString)})

	if _, err := conn.Receive(); err != failure {
		t.Fatalf("Receive: got %v, want the transport error unchanged", err)
	}

	if removed := conn.RemoveTransport(); removed != first {
		t.Errorf("RemoveTransport returned %v, want the first transport", removed)
	}
	if _, err := conn.Receive(); !errors.Is(err, ErrNoTransport) {
		t.Errorf("Receive without transport: got %v, want ErrNoTransport", err)
	}
	if err := conn.Send("x"); !errors.Is(err, ErrNoTransport) {
		t.Errorf("Send without transport: got %v, want ErrNoTransport", err)
	}

	second := &scriptedTransport{reads: [][]byte{helloFrame[7:]}, readErr: io.EOF}
	conn.SetTransport(second)
	value, err := conn.Receive()
	if err != nil {
		t.Fatalf("Receive after SetTransport: %v", err)
	}
	if value != datastream.NewString("hi") {
		t.Errorf("Receive: got %v, want \"hi\"", value)
	}
	if first.closed.Load() {
		t.Error("SetTransport closed the replaced transport")
	}
}

func TestSendModes(t *testing.T) {
	t.Parallel()
	framed := &scriptedTransport{}
	if err := New(framed, Options{}).Send("hi"); err != nil {
		t.Fatalf("Send framed: %v", err)
	}
	if !bytes.Equal(framed.written.Bytes(), helloFrame) {
		t.Errorf("framed: got %x, want %x", framed.written.Bytes(), helloFrame)
	}

	raw := &scriptedTransport{}
	if err := New(raw, Options{Raw: true}).Send("hi"); err != nil {
		t.Fatalf("Send raw: %v", err)
	}
	if !bytes.Equal(raw.written.Bytes(), helloFrame[4:]) {
		t.Errorf("raw: got %x, want %x", raw.written.Bytes(), helloFrame[4:])
	}
}

func TestRawReceiveTakesEachReadAsOneBody(t *testing.T) {
	t.Parallel()
	fake := &scriptedTransport{
		reads:   [][]byte{helloFrame[4:], {0xff, 0xff, 0xff, 0xff}, {0, 0, 0, 0, 0xaa}},
		readErr: io.EOF,
	}
	conn := New(fake, Options{Raw: true, Shape: datastream.TypeShape(datastream.TypeString)})
	for _, want := range []datastream.Value{datastream.NewString("hi"), datastream.NullString()} {
		value, err := conn.Receive()
		if err != nil || value != want {
			t.Fatalf("Receive: got %v, %v; want %v", value, err, want)
		}
	}
	if _, err := conn.Receive(); !errors.Is(err, framing.ErrTrailingBytes) {
		t.Errorf("Receive: got %v, want ErrTrailingBytes", err)
	}
}

func TestDial(t *testing.T) {
	listener, err := transport.NewTCPListener("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("NewTCPListener: %v", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Serve(ctx, func(ctx context.Context, conn net.Conn) {
		server := New(conn, Options{})
		value, err := server.Receive()
		if err != nil {
			return
		}
		_ = server.Send(value)
	})

	client, err := Dial(ctx, &transport.TCPDialer{Timeout: 5 * time.Second}, listener.Address(), Options{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := client.Send(datastream.Variant{Value: datastream.UInt64(42)}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	result := testutil.RequireReceive(t, receiveAsync(client), 5*time.Second, "waiting for echo")
	if result.err != nil {
		t.Fatalf("Receive: %v", result.err)
	}
	if result.value != (datastream.Variant{Value: datastream.UInt64(42)}) {
		t.Errorf("echo: got %v", result.value)
	}

	if _, err := Dial(ctx, &transport.TCPDialer{Timeout: time.Second}, "127.0.0.1:1", Options{}); err == nil {
		t.Error("Dial to a closed port succeeded")
	}
}
