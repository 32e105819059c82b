// Package record implements the key/value records exchanged between
// clients, the broker and transfer modules. A record is an ordered set
// of string fields with a bracketed text encoding:
//
//	[ command = "submit"; src_url = "file:///a"; max_attempts = 3; ]
//
// The same shape carries job specifications, progress reports and
// protocol responses.
package record

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// ErrMalformed is returned by Parse when the input is not a valid
// record. Parse returns io.EOF when the stream ends cleanly before a
// record starts.
var ErrMalformed = errors.New("malformed record")

type Record struct {
	keys   []string
	fields map[string]string
}

func New() *Record {
	return &Record{fields: make(map[string]string)}
}

func (r *Record) Get(key string) string {
	return r.fields[key]
}

func (r *Record) GetInt(key string, def int) int {
	v, ok := r.fields[key]
	if !ok {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}

func (r *Record) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

func (r *Record) Set(key, value string) {
	if _, ok := r.fields[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.fields[key] = value
}

func (r *Record) SetInt(key string, value int) {
	r.Set(key, strconv.Itoa(value))
}

func (r *Record) Remove(key string) {
	if _, ok := r.fields[key]; !ok {
		return
	}

	delete(r.fields, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Merge copies every field of other into r, overwriting on conflict.
func (r *Record) Merge(other *Record) {
	if other == nil {
		return
	}

	for _, k := range other.keys {
		r.Set(k, other.fields[k])
	}
}

// Filter returns a new record containing only the allowed keys, in
// their original order.
func (r *Record) Filter(allowed ...string) *Record {
	out := New()
	for _, k := range r.keys {
		for _, a := range allowed {
			if k == a {
				out.Set(k, r.fields[k])
				break
			}
		}
	}

	return out
}

func (r *Record) Copy() *Record {
	out := New()
	out.Merge(r)
	return out
}

func (r *Record) Len() int {
	return len(r.keys)
}

// Map returns the fields as a plain map, for JSON rendering.
func (r *Record) Map() map[string]string {
	out := make(map[string]string, len(r.keys))
	for k, v := range r.fields {
		out[k] = v
	}

	return out
}

func (r *Record) Bytes() []byte {
	return []byte(r.String())
}

func (r *Record) String() string {
	var b strings.Builder
	b.WriteString("[ ")
	for _, k := range r.keys {
		b.WriteString(k)
		b.WriteString(" = ")
		b.WriteString(quote(r.fields[k]))
		b.WriteString("; ")
	}
	b.WriteString("]\n")

	return b.String()
}

func quote(v string) string {
	if v != "" && isBareValue(v) {
		return v
	}

	var b strings.Builder
	b.WriteByte('"')
	for _, c := range v {
		switch c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(c)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(c)
		}
	}
	b.WriteByte('"')

	return b.String()
}

func isBareValue(v string) bool {
	if _, err := strconv.Atoi(v); err == nil {
		return true
	}

	return false
}

// Parse reads the next record off the stream. It returns io.EOF when
// the stream ends before a record opens, and ErrMalformed (possibly
// wrapped) for anything that is not a record.
func Parse(br *bufio.Reader) (*Record, error) {
	if err := skipSpace(br); err != nil {
		return nil, err
	}

	c, _, err := br.ReadRune()
	if err != nil {
		return nil, err
	}
	if c != '[' {
		return nil, fmt.Errorf("%w: expected '[', got %q", ErrMalformed, c)
	}

	rec := New()
	for {
		if err := skipSpace(br); err != nil {
			return nil, unexpectedEOF(err)
		}

		c, _, err := br.ReadRune()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		if c == ']' {
			return rec, nil
		}

		if err := br.UnreadRune(); err != nil {
			return nil, err
		}

		key, err := readIdent(br)
		if err != nil {
			return nil, err
		}

		if err := skipSpace(br); err != nil {
			return nil, unexpectedEOF(err)
		}
		if c, _, err = br.ReadRune(); err != nil {
			return nil, unexpectedEOF(err)
		} else if c != '=' {
			return nil, fmt.Errorf("%w: expected '=' after %q", ErrMalformed, key)
		}

		if err := skipSpace(br); err != nil {
			return nil, unexpectedEOF(err)
		}

		value, err := readValue(br)
		if err != nil {
			return nil, err
		}

		rec.Set(key, value)

		if err := skipSpace(br); err != nil {
			return nil, unexpectedEOF(err)
		}
		c, _, err = br.ReadRune()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		switch c {
		case ';':
		case ']':
			return rec, nil
		default:
			return nil, fmt.Errorf("%w: expected ';' or ']' after value of %q", ErrMalformed, key)
		}
	}
}

// ParseBytes parses exactly one record from a byte slice.
func ParseBytes(b []byte) (*Record, error) {
	return Parse(bufio.NewReader(strings.NewReader(string(b))))
}

func skipSpace(br *bufio.Reader) error {
	for {
		c, _, err := br.ReadRune()
		if err != nil {
			return err
		}

		if !unicode.IsSpace(c) {
			return br.UnreadRune()
		}
	}
}

func readIdent(br *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		c, _, err := br.ReadRune()
		if err != nil {
			return "", unexpectedEOF(err)
		}

		if c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c) {
			b.WriteRune(c)
			continue
		}

		if err := br.UnreadRune(); err != nil {
			return "", err
		}
		break
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("%w: empty field name", ErrMalformed)
	}

	return b.String(), nil
}

func readValue(br *bufio.Reader) (string, error) {
	c, _, err := br.ReadRune()
	if err != nil {
		return "", unexpectedEOF(err)
	}

	if c == '"' {
		return readQuoted(br)
	}

	// Bare value, runs until ';', ']' or whitespace.
	var b strings.Builder
	for {
		if c == ';' || c == ']' || unicode.IsSpace(c) {
			if err := br.UnreadRune(); err != nil {
				return "", err
			}
			break
		}

		b.WriteRune(c)

		if c, _, err = br.ReadRune(); err != nil {
			return "", unexpectedEOF(err)
		}
	}

	if b.Len() == 0 {
		return "", fmt.Errorf("%w: empty value", ErrMalformed)
	}

	return b.String(), nil
}

func readQuoted(br *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		c, _, err := br.ReadRune()
		if err != nil {
			return "", unexpectedEOF(err)
		}

		switch c {
		case '"':
			return b.String(), nil
		case '\\':
			esc, _, err := br.ReadRune()
			if err != nil {
				return "", unexpectedEOF(err)
			}
			switch esc {
			case 'n':
				b.WriteByte('\n')
			default:
				b.WriteRune(esc)
			}
		default:
			b.WriteRune(c)
		}
	}
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected end of stream", ErrMalformed)
	}

	return err
}
