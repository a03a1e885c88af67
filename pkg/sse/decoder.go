// Package sse implements an incremental Server-Sent Events decoder (spec
// §4.G): callers Feed it byte chunks as they arrive off the wire and it
// dispatches a callback once per complete {event, data, id} record.
//
// Field-parsing rules (comment lines, field/value split, leading-space
// trim, multi-line data joined with "\n") are grounded on the teacher's
// pkg/providerutils/streaming.SSEParser, which scans a full io.Reader with
// bufio.Scanner. That pull-based shape can't satisfy the re-entrancy and
// "feed partial chunks, including chunks that split mid-line" requirements
// spec §4.G and §8 call for, so the architecture here is rebuilt as a
// Feed([]byte)-driven state machine that accumulates its own line buffer
// across calls; only the field semantics are kept from the teacher.
package sse

import (
	"bytes"

	"github.com/riveraxe/reactcore/pkg/rterr"
)

// Record is one dispatched SSE event.
type Record struct {
	Event string
	Data  string
	ID    string
}

// Handler is invoked once per complete record. Returning a non-nil error
// aborts the decoder: the state machine moves to aborted and every
// subsequent Feed call fails (spec §4.G "if the user's event handler
// returns non-zero, the parser transitions to aborted").
type Handler func(Record) error

// Decoder is a re-entrant, feed-based SSE line-protocol state machine. The
// zero value is not usable; use New.
type Decoder struct {
	handler Handler

	lineBuf bytes.Buffer
	event   string
	data    bytes.Buffer
	id      string

	aborted bool
}

// New creates a Decoder that calls handler once per dispatched record.
func New(handler Handler) *Decoder {
	return &Decoder{handler: handler}
}

// Feed appends chunk to the decoder's internal line buffer and processes
// every complete line it now contains, dispatching records at each blank
// line. Feed may be called repeatedly with arbitrarily small or
// line-straddling chunks (spec §4.G, testable property: "decoder output is
// identical whether the input arrives as one chunk or as many single-byte
// chunks").
func (d *Decoder) Feed(chunk []byte) error {
	if d.aborted {
		return rterr.New(rterr.InvalidState, "sse: feed called after decoder aborted")
	}

	for _, b := range chunk {
		if b == '\n' {
			line := d.lineBuf.Bytes()
			// Collapse a trailing \r (spec: "\r\n collapsed to one terminator").
			if n := len(line); n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			if err := d.processLine(line); err != nil {
				return err
			}
			d.lineBuf.Reset()
			continue
		}
		d.lineBuf.WriteByte(b)
	}
	return nil
}

func (d *Decoder) processLine(line []byte) error {
	if len(line) == 0 {
		return d.dispatch()
	}
	if line[0] == ':' {
		return nil // comment line, ignored
	}

	field, value := splitField(line)
	switch field {
	case "event":
		d.event = value
	case "data":
		if d.data.Len() > 0 {
			d.data.WriteByte('\n')
		}
		d.data.WriteString(value)
	case "id":
		d.id = value
	default:
		// unrecognized fields are ignored per spec §4.G
	}
	return nil
}

// splitField splits a "field: value" line, stripping at most one leading
// space from value (spec §4.G "value's optional leading space stripped").
func splitField(line []byte) (field, value string) {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return string(line), ""
	}
	field = string(line[:idx])
	rest := line[idx+1:]
	if len(rest) > 0 && rest[0] == ' ' {
		rest = rest[1:]
	}
	return field, string(rest)
}

func (d *Decoder) dispatch() error {
	if d.data.Len() == 0 {
		d.resetRecord()
		return nil
	}

	rec := Record{Event: d.event, Data: d.data.String(), ID: d.id}
	d.resetRecord()

	if err := d.handler(rec); err != nil {
		d.aborted = true
		return rterr.Wrap(rterr.InvalidState, err, "sse: handler aborted stream")
	}
	return nil
}

func (d *Decoder) resetRecord() {
	d.event = ""
	d.data.Reset()
	d.id = ""
}

// Close releases the decoder's internal buffers. The decoder must not be
// used afterward.
func (d *Decoder) Close() {
	d.lineBuf.Reset()
	d.data.Reset()
}
