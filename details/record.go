package details

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Record is an ordered string-keyed mapping. Keys keep the position of their
// first insertion; setting an existing key replaces the value in place.
type Record struct {
	keys   []string
	values map[string]Value
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{values: make(map[string]Value)}
}

// Set stores v under key and returns r for chaining.
func (r *Record) Set(key string, v Value) *Record {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
	return r
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (Value, bool) {
	if r == nil {
		return Value{}, false
	}
	v, ok := r.values[key]
	return v, ok
}

// Lookup walks nested maps, e.g. Lookup("asn", "type").
func (r *Record) Lookup(path ...string) (Value, bool) {
	current := r
	for i, key := range path {
		v, ok := current.Get(key)
		if !ok {
			return Value{}, false
		}
		if i == len(path)-1 {
			return v, true
		}
		if current, ok = v.AsMap(); !ok {
			return Value{}, false
		}
	}
	return Value{}, false
}

// String returns the string stored at path, or "" when absent or not a string.
func (r *Record) String(path ...string) string {
	v, ok := r.Lookup(path...)
	if !ok {
		return ""
	}
	s, _ := v.AsString()
	return s
}

// Bool returns the boolean stored at path, or false.
func (r *Record) Bool(path ...string) bool {
	v, ok := r.Lookup(path...)
	if !ok {
		return false
	}
	b, _ := v.AsBool()
	return b
}

// Keys returns a copy of the keys in insertion order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, len(r.keys))
	copy(keys, r.keys)
	return keys
}

func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Each calls fn for every entry in insertion order.
func (r *Record) Each(fn func(key string, v Value)) {
	if r == nil {
		return
	}
	for _, key := range r.keys {
		fn(key, r.values[key])
	}
}

// Equal reports whether r and o hold equal values in the same key order.
func (r *Record) Equal(o *Record) bool {
	if r.Len() != o.Len() {
		return false
	}
	for i, key := range r.Keys() {
		if o.keys[i] != key {
			return false
		}
		if !r.values[key].Equal(o.values[key]) {
			return false
		}
	}
	return true
}

func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Record) encode(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, key := range r.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeQuoted(buf, key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := r.values[key].encode(buf); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func (r *Record) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeRecord(data)
	if err != nil {
		return err
	}
	*r = *decoded
	return nil
}

// DecodeRecord parses a JSON object keeping the order of its keys at every
// nesting level. Numbers keep their literal text.
func DecodeRecord(data []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	rec, ok := v.AsMap()
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotObject, v.Kind())
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}
	return rec, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return Value{}, fmt.Errorf("details: unexpected delimiter %q", rune(t))
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		return NumberValue(t.String()), nil
	case string:
		return StringValue(t), nil
	}
	return Value{}, fmt.Errorf("details: unexpected token %v", tok)
}

func decodeObject(dec *json.Decoder) (Value, error) {
	rec := NewRecord()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("details: object key is %T", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		rec.Set(key, v)
	}
	// closing brace
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return MapValue(rec), nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	items := []Value{}
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, err
	}
	return ListValue(items...), nil
}
