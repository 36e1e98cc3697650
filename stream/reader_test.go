package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedReader returns its data in pieces of the given sizes.
type chunkedReader struct {
	data  string
	sizes []int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.data == "" {
		return 0, io.EOF
	}
	n := len(c.data)
	if len(c.sizes) > 0 {
		n = c.sizes[0]
		c.sizes = c.sizes[1:]
	}
	if n <= 0 {
		n = 1
	}
	if n > len(c.data) {
		n = len(c.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

func frame(payload string) string { return "data: " + payload + "\n\n" }

func readAll(t *testing.T, r *Reader) ([]Envelope, []error) {
	t.Helper()
	var envs []Envelope
	var errs []error
	for i := 0; i < 1000; i++ {
		env, err := r.Next()
		if errors.Is(err, io.EOF) {
			return envs, errs
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		envs = append(envs, env)
	}
	t.Fatal("reader did not terminate")
	return nil, nil
}

const sampleStream = "data: {\"event\":\"response.output_text.delta\",\"data\":{\"item_id\":\"msg_1\",\"delta\":\"Hel\"}}\n\n" +
	"data: {\"event\":\"response.output_text.delta\",\"data\":{\"item_id\":\"msg_1\",\"delta\":\"lo \\u00e9 😀\"}}\n\n" +
	": keep-alive\n\n" +
	"data: {\"event\":\"response.output_item.done\",\"data\":{\"item\":{\"type\":\"message\",\"id\":\"msg_1\"}}}\n\n" +
	"data: [DONE]\n\n"

func TestReaderFrames(t *testing.T) {
	envs, errs := readAll(t, NewReader(strings.NewReader(sampleStream)))
	require.Empty(t, errs)
	require.Len(t, envs, 3)
	assert.Equal(t, EventOutputTextDelta, envs[0].Event)
	assert.JSONEq(t, `{"item_id":"msg_1","delta":"Hel"}`, string(envs[0].Data))
	assert.Equal(t, EventOutputItemDone, envs[2].Event)
}

func TestReaderStopsAtSentinel(t *testing.T) {
	input := frame(`{"event":"a","data":{}}`) + frame(Sentinel) + frame(`{"event":"b","data":{}}`)
	envs, errs := readAll(t, NewReader(strings.NewReader(input)))
	require.Empty(t, errs)
	require.Len(t, envs, 1)
	assert.Equal(t, "a", envs[0].Event)
}

func TestReaderMalformedMiddleFrame(t *testing.T) {
	input := frame(`{"event":"a","data":{}}`) + frame(`{"event":`) + frame(`{"event":"b","data":{}}`) + frame(Sentinel)
	r := NewReader(strings.NewReader(input))

	env, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", env.Event)

	_, err = r.Next()
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.ErrorIs(t, err, ErrMalformedFrame)

	env, err = r.Next()
	require.NoError(t, err, "reader stays usable after a malformed frame")
	assert.Equal(t, "b", env.Event)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderTruncatedFinalFrameDropped(t *testing.T) {
	input := frame(`{"event":"a","data":{}}`) + `data: {"event":"b","data":{"it`
	envs, errs := readAll(t, NewReader(strings.NewReader(input)))
	assert.Empty(t, errs)
	require.Len(t, envs, 1)
	assert.Equal(t, "a", envs[0].Event)
}

func TestReaderCompleteFinalFrameWithoutDelimiter(t *testing.T) {
	input := frame(`{"event":"a","data":{}}`) + `data: {"event":"b","data":{}}`
	envs, errs := readAll(t, NewReader(strings.NewReader(input)))
	assert.Empty(t, errs)
	require.Len(t, envs, 2)
	assert.Equal(t, "b", envs[1].Event)
}

func TestReaderEventLineFallback(t *testing.T) {
	input := "event: response.completed\ndata: {\"data\":{\"response\":{}}}\n\n"
	envs, errs := readAll(t, NewReader(strings.NewReader(input)))
	require.Empty(t, errs)
	require.Len(t, envs, 1)
	assert.Equal(t, EventResponseCompleted, envs[0].Event)
}

func TestReaderCRLF(t *testing.T) {
	input := "data: {\"event\":\"a\",\"data\":{}}\r\n\n"
	envs, errs := readAll(t, NewReader(strings.NewReader(input)))
	require.Empty(t, errs)
	require.Len(t, envs, 1)
}

func TestReaderSourceError(t *testing.T) {
	_, err := NewReader(errReader{err: errors.New("connection reset")}).Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestProperty_RechunkingPreservesEvents(t *testing.T) {
	want, errs := readAll(t, NewReader(strings.NewReader(sampleStream)))
	require.Empty(t, errs)

	properties := gopter.NewProperties(nil)
	properties.Property("arbitrary chunk boundaries yield the same envelopes", prop.ForAll(
		func(sizes []int) bool {
			got, errs := readAll(t, NewReader(&chunkedReader{data: sampleStream, sizes: sizes}))
			if len(errs) != 0 || len(got) != len(want) {
				return false
			}
			for i := range want {
				if got[i].Event != want[i].Event || string(got[i].Data) != string(want[i].Data) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(1, 17)),
	))
	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
