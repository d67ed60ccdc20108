// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"io"
	"sync"

	"github.com/bureau-foundation/qtstream/lib/datastream"
	"github.com/bureau-foundation/qtstream/lib/export"
)

// outputParams select how received messages are printed.
type outputParams struct {
	Format string `flag:"format,f" desc:"output format: jsonl, json, yaml, cbor, or text" default:"jsonl"`
	Typed  bool   `flag:"typed,t" desc:"print the lossless typed tree instead of plain values"`
}

func (p *outputParams) printer(w io.Writer) (*printer, error) {
	format, err := export.ParseFormat(p.Format)
	if err != nil {
		return nil, err
	}
	return &printer{w: w, format: format, typed: p.Typed}, nil
}

// printer writes whole messages to one output. listen prints from a
// goroutine per connection, so writes are serialized.
type printer struct {
	mutex  sync.Mutex
	w      io.Writer
	format export.Format
	typed  bool
	count  int
}

func (p *printer) print(value datastream.Value) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.count++
	return export.WriteHighlighted(p.w, p.format, value, p.typed)
}

// printed returns the number of messages printed so far.
func (p *printer) printed() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.count
}
