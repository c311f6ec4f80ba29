// Package stream decodes the assistant service's server-sent event stream
// and accumulates the reply text for display.
package stream

import (
	"bytes"
)

var (
	frameDelimiter = []byte("\n\n")
	dataMarker     = []byte("data: ")
)

// Parser splits a byte stream into frame payloads. Frames are separated by a
// blank line and carry a "data: " marker. Input is buffered until a delimiter
// arrives, so chunk boundaries never change the output.
type Parser struct {
	buf []byte
}

// NewParser returns an empty Parser
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends chunk and returns the payloads of every frame it completed, in
// order. Frames without the marker or with an empty payload are dropped.
func (p *Parser) Feed(chunk []byte) []string {
	p.buf = append(p.buf, chunk...)

	var payloads []string
	for {
		idx := bytes.Index(p.buf, frameDelimiter)
		if idx < 0 {
			break
		}

		frame := bytes.TrimSpace(p.buf[:idx])
		p.buf = p.buf[idx+len(frameDelimiter):]

		if !bytes.HasPrefix(frame, dataMarker) {
			continue
		}
		payload := bytes.TrimSpace(frame[len(dataMarker):])
		if len(payload) == 0 {
			continue
		}
		payloads = append(payloads, string(payload))
	}

	// release the consumed prefix once everything has been read
	if len(p.buf) == 0 {
		p.buf = nil
	}

	return payloads
}

// Buffered returns the number of bytes waiting for a delimiter
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Reset discards any partial frame
func (p *Parser) Reset() {
	p.buf = nil
}
