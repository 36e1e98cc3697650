package partialjson

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{name: "complete object", input: `{"city":"Boston"}`, want: map[string]any{"city": "Boston"}},
		{name: "open brace", input: `{`, want: map[string]any{}},
		{name: "partial key dropped", input: `{"ci`, want: map[string]any{}},
		{name: "key without colon", input: `{"city"`, want: map[string]any{}},
		{name: "key without value", input: `{"city": `, want: map[string]any{}},
		{name: "partial string value kept", input: `{"city":"Bos`, want: map[string]any{"city": "Bos"}},
		{name: "second member partial", input: `{"a":1,"b":tr`, want: map[string]any{"a": 1.0}},
		{name: "trailing comma at eof", input: `{"a":1,`, want: map[string]any{"a": 1.0}},
		{name: "nested", input: `{"a":{"b":[1,2,{"c":"d`, want: map[string]any{"a": map[string]any{"b": []any{1.0, 2.0, map[string]any{"c": "d"}}}}},
		{name: "array partial literal", input: `[1, 2, tr`, want: []any{1.0, 2.0}},
		{name: "array complete literals", input: `[true,false,null]`, want: []any{true, false, nil}},
		{name: "incomplete fraction", input: `[1.`, want: []any{1.0}},
		{name: "incomplete exponent", input: `[2e-`, want: []any{2.0}},
		{name: "lone minus dropped", input: `[-`, want: []any{}},
		{name: "escape split", input: `"a\`, want: "a"},
		{name: "escapes", input: `"line\nbreak \"q\" é"`, want: "line\nbreak \"q\" é"},
		{name: "partial unicode escape", input: `"x\u00`, want: "x"},
		{name: "surrogate pair", input: `"😀"`, want: "😀"},
		{name: "split surrogate pair", input: `"\ud83d\ude0`, want: ""},
		{name: "bare number", input: `42`, want: 42.0},
		{name: "negative fraction", input: `{"lat":-0.5,"lon":12.25e1}`, want: map[string]any{"lat": -0.5, "lon": 122.5}},
		{name: "zero and negative", input: `[0, -1]`, want: []any{0.0, -1.0}},
		{name: "incomplete exponent after fraction", input: `[1.5e`, want: []any{1.5}},
		{name: "leading zero at eof", input: `[0`, want: []any{0.0}},
		{name: "whitespace around", input: "  {\"a\" : 1 }  ", want: map[string]any{"a": 1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{name: "empty", input: "", want: ErrEmpty},
		{name: "spaces", input: "   ", want: ErrEmpty},
		{name: "partial literal only", input: "nu", want: ErrEmpty},
		{name: "garbage", input: "hello", want: ErrInvalid},
		{name: "bad separator", input: `{"a" 1}`, want: ErrInvalid},
		{name: "missing comma", input: `{"a":1 "b":2}`, want: ErrInvalid},
		{name: "unquoted key", input: `{a:1}`, want: ErrInvalid},
		{name: "trailing data", input: `{"a":1}}`, want: ErrInvalid},
		{name: "bad escape", input: `"\q"`, want: ErrInvalid},
		{name: "trailing comma", input: `[1,]`, want: ErrInvalid},
		{name: "leading zero", input: `{"a":0123}`, want: ErrInvalid},
		{name: "negative leading zero", input: `[-01]`, want: ErrInvalid},
		{name: "fraction without digits", input: `[1.e5]`, want: ErrInvalid},
		{name: "letter in fraction", input: `[1.a]`, want: ErrInvalid},
		{name: "double minus", input: `[--1]`, want: ErrInvalid},
		{name: "plus sign", input: `[+1]`, want: ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestParseObject(t *testing.T) {
	obj, err := ParseObject(`{"location":"Paris","unit":"c`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"location": "Paris", "unit": "c"}, obj)

	_, err = ParseObject(`[1,2]`)
	assert.ErrorIs(t, err, ErrInvalid)
}

var documents = []string{
	`{"city":"Boston","days":3,"units":["c","f"],"flags":{"rain":true,"wind":null}}`,
	`[{"name":"Grand Hotel","rating":4.5,"tags":["spa","pool"]},{"name":"Café \"Bleu\" é 😀"}]`,
	`{"query":"hotels near the beach","max":-12.5e+2,"nested":[[],[{}],[1,[2,[3]]]]}`,
}

// Every prefix of a valid document parses (or reports ErrEmpty), and the
// full document matches encoding/json.
func TestProperty_PrefixesNeverInvalid(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("prefixes of valid json parse", prop.ForAll(
		func(docIdx int, cut int) bool {
			doc := documents[docIdx]
			if cut > len(doc) {
				cut = len(doc)
			}
			_, err := Parse(doc[:cut])
			return err == nil || errors.Is(err, ErrEmpty)
		},
		gen.IntRange(0, len(documents)-1),
		gen.IntRange(0, 200),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))

	for _, doc := range documents {
		var want any
		require.NoError(t, json.Unmarshal([]byte(doc), &want))
		got, err := Parse(doc)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
