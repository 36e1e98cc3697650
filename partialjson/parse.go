// Package partialjson parses JSON documents that may be cut off at any byte.
//
// Tool-call arguments arrive as a growing string of deltas. Parse returns the
// value described by the longest complete prefix of the input:
//
//	{"ci                 -> {}
//	{"city":"Bos         -> {"city":"Bos"}
//	{"city":"Boston"}    -> {"city":"Boston"}
//	[1, 2, tr            -> [1, 2]
//
// Partial strings are kept, object keys without a value are dropped, and
// partial literals (tru, nul) are dropped. Input that can never become valid
// JSON returns ErrInvalid; callers keep their previous value in that case.
package partialjson

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var (
	// ErrEmpty is returned when the input holds no value yet.
	ErrEmpty = errors.New("partialjson: no value")
	// ErrInvalid is returned when the input is not a prefix of any JSON document.
	ErrInvalid = errors.New("partialjson: invalid json")
)

// Parse decodes the longest valid prefix of s. Values use the same Go types as
// encoding/json decoding into an interface{}.
func Parse(s string) (any, error) {
	p := &parser{src: s}
	p.skipSpace()
	if p.eof() {
		return nil, ErrEmpty
	}
	v, ok, err := p.value()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEmpty
	}
	p.skipSpace()
	if !p.eof() {
		return nil, fmt.Errorf("%w: trailing data at offset %d", ErrInvalid, p.pos)
	}
	return v, nil
}

// ParseObject is Parse restricted to objects, the shape of tool arguments.
func ParseObject(s string) (map[string]any, error) {
	v, err := Parse(s)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected object, got %T", ErrInvalid, v)
	}
	return obj, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) invalid(what string) error {
	return fmt.Errorf("%w: %s at offset %d", ErrInvalid, what, p.pos)
}

// value parses one value. ok is false when the input ended before anything
// usable was read (e.g. a lone "-" or "tr").
func (p *parser) value() (any, bool, error) {
	p.skipSpace()
	if p.eof() {
		return nil, false, nil
	}
	switch c := p.src[p.pos]; {
	case c == '{':
		return p.object()
	case c == '[':
		return p.array()
	case c == '"':
		s, _, err := p.str()
		if err != nil {
			return nil, false, err
		}
		return s, true, nil
	case c == 't':
		return p.literal("true", true)
	case c == 'f':
		return p.literal("false", false)
	case c == 'n':
		return p.literal("null", nil)
	case c == '-' || (c >= '0' && c <= '9'):
		return p.number()
	default:
		return nil, false, p.invalid(fmt.Sprintf("unexpected %q", c))
	}
}

func (p *parser) object() (any, bool, error) {
	p.pos++ // {
	obj := map[string]any{}
	for {
		p.skipSpace()
		if p.eof() {
			return obj, true, nil
		}
		if p.src[p.pos] == '}' {
			p.pos++
			return obj, true, nil
		}
		if len(obj) > 0 {
			if p.src[p.pos] != ',' {
				return nil, false, p.invalid("expected ',' in object")
			}
			p.pos++
			p.skipSpace()
			if p.eof() {
				return obj, true, nil
			}
		}
		if p.src[p.pos] != '"' {
			return nil, false, p.invalid("expected object key")
		}
		key, complete, err := p.str()
		if err != nil {
			return nil, false, err
		}
		if !complete {
			return obj, true, nil
		}
		p.skipSpace()
		if p.eof() {
			return obj, true, nil
		}
		if p.src[p.pos] != ':' {
			return nil, false, p.invalid("expected ':' after key")
		}
		p.pos++
		v, ok, err := p.value()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return obj, true, nil
		}
		obj[key] = v
		if p.eof() {
			return obj, true, nil
		}
	}
}

func (p *parser) array() (any, bool, error) {
	p.pos++ // [
	arr := []any{}
	for {
		p.skipSpace()
		if p.eof() {
			return arr, true, nil
		}
		if p.src[p.pos] == ']' {
			p.pos++
			return arr, true, nil
		}
		if len(arr) > 0 {
			if p.src[p.pos] != ',' {
				return nil, false, p.invalid("expected ',' in array")
			}
			p.pos++
		}
		v, ok, err := p.value()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return arr, true, nil
		}
		arr = append(arr, v)
	}
}

// str reads a string starting at the opening quote. complete reports whether
// the closing quote was seen.
func (p *parser) str() (string, bool, error) {
	p.pos++ // "
	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == '"':
			p.pos++
			return b.String(), true, nil
		case c == '\\':
			if p.pos+1 >= len(p.src) {
				p.pos = len(p.src)
				return b.String(), false, nil
			}
			esc := p.src[p.pos+1]
			switch esc {
			case '"', '\\', '/':
				b.WriteByte(esc)
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'u':
				r, n, complete, err := p.unicodeEscape(p.pos)
				if err != nil {
					return "", false, err
				}
				if !complete {
					p.pos = len(p.src)
					return b.String(), false, nil
				}
				b.WriteRune(r)
				p.pos += n
				continue
			default:
				return "", false, p.invalid(fmt.Sprintf("bad escape \\%c", esc))
			}
			p.pos += 2
		case c < 0x20:
			return "", false, p.invalid("control character in string")
		default:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			if r == utf8.RuneError && size == 1 && !utf8.FullRuneInString(p.src[p.pos:]) {
				// multi-byte rune cut by the stream boundary
				p.pos = len(p.src)
				return b.String(), false, nil
			}
			b.WriteRune(r)
			p.pos += size
		}
	}
	return b.String(), false, nil
}

// unicodeEscape decodes \uXXXX (and a following low surrogate) at i.
func (p *parser) unicodeEscape(i int) (rune, int, bool, error) {
	hex := func(at int) (rune, bool, error) {
		if at+6 > len(p.src) {
			return 0, false, nil
		}
		v, err := strconv.ParseUint(p.src[at+2:at+6], 16, 32)
		if err != nil {
			return 0, false, p.invalid("bad unicode escape")
		}
		return rune(v), true, nil
	}
	r, ok, err := hex(i)
	if err != nil || !ok {
		return 0, 0, ok, err
	}
	if !utf16.IsSurrogate(r) {
		return r, 6, true, nil
	}
	if i+6 >= len(p.src) {
		return 0, 0, false, nil
	}
	if i+8 > len(p.src) || p.src[i+6:i+8] != `\u` {
		if i+8 > len(p.src) && strings.HasPrefix(`\u`, p.src[i+6:]) {
			return 0, 0, false, nil
		}
		return utf8.RuneError, 6, true, nil
	}
	r2, ok, err := hex(i + 6)
	if err != nil || !ok {
		return 0, 0, ok, err
	}
	return utf16.DecodeRune(r, r2), 12, true, nil
}

func (p *parser) literal(word string, v any) (any, bool, error) {
	rest := p.src[p.pos:]
	if strings.HasPrefix(rest, word) {
		p.pos += len(word)
		return v, true, nil
	}
	if strings.HasPrefix(word, rest) {
		p.pos = len(p.src)
		return nil, false, nil
	}
	return nil, false, p.invalid("bad literal")
}

// number scans a JSON number. At the end of input the longest complete number
// is kept, so "1.", "2e" and "3e-" yield 1, 2 and 3.
func (p *parser) number() (any, bool, error) {
	start := p.pos
	if p.src[p.pos] == '-' {
		p.pos++
	}
	if p.eof() {
		return nil, false, nil
	}
	switch c := p.src[p.pos]; {
	case c == '0':
		p.pos++
		if !p.eof() && isDigit(p.src[p.pos]) {
			return nil, false, p.invalid("leading zero in number")
		}
	case isDigit(c):
		p.digits()
	default:
		return nil, false, p.invalid("bad number")
	}
	end := p.pos

	if !p.eof() && p.src[p.pos] == '.' {
		p.pos++
		if p.digits() > 0 {
			end = p.pos
		} else if !p.eof() {
			return nil, false, p.invalid("bad fraction")
		}
	}
	if end == p.pos && !p.eof() && (p.src[p.pos] == 'e' || p.src[p.pos] == 'E') {
		p.pos++
		if !p.eof() && (p.src[p.pos] == '+' || p.src[p.pos] == '-') {
			p.pos++
		}
		if p.digits() > 0 {
			end = p.pos
		} else if !p.eof() {
			return nil, false, p.invalid("bad exponent")
		}
	}

	f, err := strconv.ParseFloat(p.src[start:end], 64)
	if err != nil {
		return nil, false, p.invalid("bad number")
	}
	return f, true, nil
}

func (p *parser) digits() int {
	n := 0
	for !p.eof() && isDigit(p.src[p.pos]) {
		p.pos++
		n++
	}
	return n
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
