package stream

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"
)

const defaultChunkSize = 4096

// Decoder reads a response body and yields interpreted events in arrival
// order. Malformed payloads and unknown frame types are logged and skipped.
type Decoder struct {
	r         io.Reader
	parser    *Parser
	chunk     []byte
	pending   []Event
	err       error
	logger    *zap.Logger
	malformed int
	unknown   int
}

// DecoderOption configures a Decoder
type DecoderOption func(*Decoder)

// WithDecoderLogger sets the logger used for skipped frames
func WithDecoderLogger(logger *zap.Logger) DecoderOption {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithChunkSize sets the read size used on the underlying reader
func WithChunkSize(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.chunk = make([]byte, n)
		}
	}
}

// NewDecoder wraps r
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		r:      r,
		parser: NewParser(),
		chunk:  make([]byte, defaultChunkSize),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the next event. It returns io.EOF once the reader is exhausted
// and every buffered event has been handed out. ctx is checked before each
// read; a read already blocked is interrupted only by closing the reader.
func (d *Decoder) Next(ctx context.Context) (Event, error) {
	for {
		if len(d.pending) > 0 {
			ev := d.pending[0]
			d.pending = d.pending[1:]
			return ev, nil
		}
		if d.err != nil {
			return nil, d.err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := d.r.Read(d.chunk)
		if n > 0 {
			d.consume(d.chunk[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if left := d.parser.Buffered(); left > 0 {
					d.logger.Debug("dropping unterminated frame at end of stream", zap.Int("bytes", left))
					d.parser.Reset()
				}
				d.err = io.EOF
			} else {
				d.err = err
			}
		}
	}
}

func (d *Decoder) consume(chunk []byte) {
	for _, payload := range d.parser.Feed(chunk) {
		ev, err := Interpret(payload)
		if err != nil {
			d.malformed++
			d.logger.Debug("skipping malformed frame",
				zap.Error(err),
				zap.String("payload", truncate(payload, 200)),
			)
			continue
		}
		if u, ok := ev.(Unknown); ok {
			d.unknown++
			d.logger.Debug("skipping unhandled frame type", zap.String("type", u.Type))
			continue
		}
		d.pending = append(d.pending, ev)
	}
}

// Skipped returns how many malformed and unknown frames were dropped so far
func (d *Decoder) Skipped() (malformed, unknown int) {
	return d.malformed, d.unknown
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
