// Package sse splits a chunked server-sent-events body into complete records.
//
// The decoder knows nothing about payload contents. It only finds record
// boundaries, keeps the unterminated tail between calls, and recognizes the
// end-of-stream sentinel.
package sse

import "bytes"

const (
	DataPrefix      = "data:"
	DefaultSentinel = "[DONE]"
)

var dataPrefix = []byte(DataPrefix)

// FrameKind distinguishes payload frames from the end-of-stream frame.
type FrameKind int

const (
	FrameData FrameKind = iota
	FrameDone
)

func (k FrameKind) String() string {
	switch k {
	case FrameData:
		return "data"
	case FrameDone:
		return "done"
	default:
		return "unknown"
	}
}

// Frame is one complete record decoded from the stream.
type Frame struct {
	Kind    FrameKind
	Payload string
}

// Decoder turns arbitrarily aligned chunks into frames.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	sentinel string
	pending  []byte
	done     bool
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithSentinel sets the payload that marks the end of the stream.
// An empty sentinel disables sentinel detection.
func WithSentinel(sentinel string) Option {
	return func(d *Decoder) { d.sentinel = sentinel }
}

// NewDecoder creates a Decoder for "data:" records terminated by "[DONE]".
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{sentinel: DefaultSentinel}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed appends chunk to the pending buffer and returns the frames completed by it.
// Once the sentinel frame has been returned, Feed returns nil for all later input.
func (d *Decoder) Feed(chunk []byte) []Frame {
	if d.done {
		return nil
	}
	d.pending = append(d.pending, chunk...)

	var frames []Frame
	for {
		i := bytes.IndexByte(d.pending, '\n')
		if i < 0 {
			break
		}
		record := d.pending[:i]
		d.pending = d.pending[i+1:]

		frame, ok := d.classify(record)
		if !ok {
			continue
		}
		frames = append(frames, frame)
		if frame.Kind == FrameDone {
			d.done = true
			d.pending = nil
			break
		}
	}

	// Compact so the buffer does not pin consumed bytes.
	if len(d.pending) == 0 {
		d.pending = nil
	} else {
		d.pending = append([]byte(nil), d.pending...)
	}
	return frames
}

// Pending returns the bytes of the record that has not been terminated yet.
func (d *Decoder) Pending() string {
	return string(d.pending)
}

// Done reports whether the sentinel frame has been decoded.
func (d *Decoder) Done() bool {
	return d.done
}

func (d *Decoder) classify(record []byte) (Frame, bool) {
	record = bytes.TrimSuffix(record, []byte{'\r'})
	if !bytes.HasPrefix(record, dataPrefix) {
		return Frame{}, false
	}
	payload := record[len(dataPrefix):]
	if len(payload) > 0 && payload[0] == ' ' {
		payload = payload[1:]
	}
	if d.sentinel != "" && string(payload) == d.sentinel {
		return Frame{Kind: FrameDone}, true
	}
	return Frame{Kind: FrameData, Payload: string(payload)}, true
}
