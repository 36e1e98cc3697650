package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DoneFrame ends every turn stream.
const DoneFrame = "data: [DONE]\n\n"

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// FrameWriter writes turn stream frames, flushing after each one when the
// underlying writer supports it.
type FrameWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func NewFrameWriter(w io.Writer) *FrameWriter {
	fw := &FrameWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		fw.flusher = f
	}
	return fw
}

// WriteEvent writes one data frame wrapping data under event.
func (fw *FrameWriter) WriteEvent(event string, data json.RawMessage) error {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	payload, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", event, err)
	}
	if _, err := fmt.Fprintf(fw.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	fw.flush()
	return nil
}

// WriteDone writes the end-of-stream sentinel.
func (fw *FrameWriter) WriteDone() error {
	if _, err := io.WriteString(fw.w, DoneFrame); err != nil {
		return err
	}
	fw.flush()
	return nil
}

func (fw *FrameWriter) flush() {
	if fw.flusher != nil {
		fw.flusher.Flush()
	}
}
