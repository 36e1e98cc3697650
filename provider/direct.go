package provider

import (
	"context"
	"io"
	"sync"

	"concierge/config"
	"concierge/model"
)

// Streamer writes one turn as frames. ResponsesStreamer is the production
// implementation.
type Streamer interface {
	Stream(ctx context.Context, req model.TurnRequest, fw *FrameWriter) error
}

// DirectTransport runs a Streamer in process and hands its frames to the
// caller through a pipe.
type DirectTransport struct {
	streamer Streamer
}

func NewDirectTransport(s Streamer) *DirectTransport {
	return &DirectTransport{streamer: s}
}

// OpenTurn starts the streamer and returns once it has written its first
// frame. A streamer that fails before writing anything fails the turn.
func (t *DirectTransport) OpenTurn(ctx context.Context, req model.TurnRequest) (io.ReadCloser, error) {
	pr, pw := io.Pipe()
	ready := &readySignal{w: pw, ready: make(chan struct{})}
	errc := make(chan error, 1)

	go func() {
		err := t.streamer.Stream(ctx, req, NewFrameWriter(ready))
		if err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[Provider] Direct turn failed: %v", err)
		}
		pw.CloseWithError(err)
		errc <- err
	}()

	select {
	case <-ready.ready:
		return pr, nil
	case err := <-errc:
		if err != nil {
			pr.Close()
			return nil, err
		}
		// finished without writing; the reader sees an empty stream
		return pr, nil
	}
}

// readySignal closes ready just before the first write. The pipe write blocks
// until the caller reads, so the signal must come first.
type readySignal struct {
	w     io.Writer
	once  sync.Once
	ready chan struct{}
}

func (r *readySignal) Write(p []byte) (int, error) {
	r.once.Do(func() { close(r.ready) })
	return r.w.Write(p)
}
