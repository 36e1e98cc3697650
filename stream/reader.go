// Package stream turns the SSE byte stream produced by the turn endpoint into
// typed events.
//
// The wire format is a sequence of frames
//
//	data: {"event": "<name>", "data": {...}}\n\n
//
// terminated by a frame whose payload is the literal [DONE]. Frames may be
// split across reads at arbitrary byte positions; the Reader keeps the
// unterminated tail buffered until the next read completes it.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"concierge/config"
)

// Sentinel is the payload of the frame that ends a stream.
const Sentinel = "[DONE]"

const (
	frameDelimiter = "\n\n"
	dataPrefix     = "data:"
	eventPrefix    = "event:"
	readSize       = 4096
)

// Envelope is one decoded frame before its payload is interpreted.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DecodeError reports a frame whose payload is not a JSON envelope. The Reader
// remains usable after returning one.
type DecodeError struct {
	Frame string
	Err   error
}

func (e *DecodeError) Error() string {
	frame := e.Frame
	if len(frame) > 120 {
		frame = frame[:120] + "..."
	}
	return fmt.Sprintf("malformed frame %q: %v", frame, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrMalformedFrame is matched by every *DecodeError via errors.Is.
var ErrMalformedFrame = errors.New("malformed frame")

func (e *DecodeError) Is(target error) bool { return target == ErrMalformedFrame }

// Reader yields Envelopes from an SSE byte stream.
type Reader struct {
	src  io.Reader
	buf  []byte
	read []byte
	eof  bool // src exhausted
	done bool // sentinel seen or tail flushed
}

func NewReader(r io.Reader) *Reader {
	return &Reader{src: r, read: make([]byte, readSize)}
}

// Next returns the next envelope. It returns io.EOF once the sentinel frame is
// read or the source ends. A frame with an undecodable payload yields a
// *DecodeError; the caller may keep calling Next. A malformed final frame of a
// stream that ended without the sentinel is dropped silently.
func (r *Reader) Next() (Envelope, error) {
	for {
		if r.done {
			return Envelope{}, io.EOF
		}

		if i := bytes.Index(r.buf, []byte(frameDelimiter)); i >= 0 {
			frame := string(r.buf[:i])
			r.buf = r.buf[i+len(frameDelimiter):]
			env, ok, err := r.decodeFrame(frame)
			if err != nil {
				return Envelope{}, err
			}
			if ok {
				return env, nil
			}
			continue
		}

		if r.eof {
			return r.flushTail()
		}

		n, err := r.src.Read(r.read)
		if n > 0 {
			r.buf = append(r.buf, r.read[:n]...)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return Envelope{}, fmt.Errorf("failed to read event stream: %w", err)
			}
			r.eof = true
		}
	}
}

// flushTail handles bytes left after the source ended without a delimiter.
func (r *Reader) flushTail() (Envelope, error) {
	r.done = true
	tail := string(bytes.TrimSpace(r.buf))
	r.buf = nil
	if tail == "" {
		return Envelope{}, io.EOF
	}
	env, ok, err := r.decodeFrame(tail)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Stream] Dropping truncated final frame: %v", err)
		}
		return Envelope{}, io.EOF
	}
	if !ok {
		return Envelope{}, io.EOF
	}
	return env, nil
}

// decodeFrame interprets one frame. ok is false for frames that carry no
// payload (comments, keep-alives) and for the sentinel, which also marks the
// reader done.
func (r *Reader) decodeFrame(frame string) (Envelope, bool, error) {
	var eventName string
	var data []string

	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case line == "" || line[0] == ':':
			continue
		case strings.HasPrefix(line, eventPrefix):
			eventName = strings.TrimSpace(line[len(eventPrefix):])
		case strings.HasPrefix(line, dataPrefix):
			data = append(data, strings.TrimPrefix(line[len(dataPrefix):], " "))
		}
	}

	if len(data) == 0 {
		return Envelope{}, false, nil
	}

	payload := strings.TrimSpace(strings.Join(data, "\n"))
	if payload == Sentinel {
		r.done = true
		return Envelope{}, false, nil
	}

	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Envelope{}, false, &DecodeError{Frame: frame, Err: err}
	}
	if env.Event == "" {
		env.Event = eventName
	}
	return env, true, nil
}
