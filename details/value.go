// Package details models the detail record returned by a lookup handler.
//
// A record is an ordered mapping from response field names to tagged values.
// Order matters: notes render keys in the order the upstream API sent them.
package details

import (
	"bytes"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Map
	List
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Map:
		return "map"
	case List:
		return "list"
	default:
		return "unknown"
	}
}

// Value is one node of a detail record. The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	s    string // string payload, or the literal text of a number
	m    *Record
	l    []Value
}

// NullValue returns the null value.
func NullValue() Value { return Value{} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }

// NumberValue keeps the literal text of a JSON number so that values are
// rendered exactly as the upstream API sent them.
func NumberValue(text string) Value { return Value{kind: Number, s: text} }

// IntValue returns an integer number value.
func IntValue(n int64) Value { return NumberValue(strconv.FormatInt(n, 10)) }

// FloatValue returns Null for NaN and infinities, which JSON cannot carry.
func FloatValue(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return NullValue()
	}
	return NumberValue(strconv.FormatFloat(f, 'f', -1, 64))
}

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: String, s: s} }

// MapValue wraps a nested record; nil becomes an empty map.
func MapValue(r *Record) Value {
	if r == nil {
		r = NewRecord()
	}
	return Value{kind: Map, m: r}
}

// ListValue wraps items; no items gives an empty list, not null.
func ListValue(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: List, l: items}
}

// StringsValue is a shorthand for a list of strings.
func StringsValue(items ...string) Value {
	values := make([]Value, 0, len(items))
	for _, item := range items {
		values = append(values, StringValue(item))
	}
	return ListValue(values...)
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == Null }

// IsScalar reports whether v is a bool, number or string.
func (v Value) IsScalar() bool {
	return v.kind == Bool || v.kind == Number || v.kind == String
}

// IsEmpty reports whether v carries no information worth rendering: null,
// an empty list, an empty map or the placeholder string "None".
func (v Value) IsEmpty() bool {
	switch v.kind {
	case Null:
		return true
	case List:
		return len(v.l) == 0
	case Map:
		return v.m.Len() == 0
	case String:
		return v.s == "None"
	default:
		return false
	}
}

// AsBool returns the boolean held by v and whether v is a bool.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == Bool
}

// AsString returns the string held by v and whether v is a string.
func (v Value) AsString() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return v.s, true
}

// AsNumber returns the literal text of a number.
func (v Value) AsNumber() (string, bool) {
	if v.kind != Number {
		return "", false
	}
	return v.s, true
}

// AsFloat parses a number value as float64.
func (v Value) AsFloat() (float64, bool) {
	if v.kind != Number {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.s, 64)
	return f, err == nil
}

// AsMap returns the nested record held by v.
func (v Value) AsMap() (*Record, bool) {
	if v.kind != Map {
		return nil, false
	}
	return v.m, true
}

// AsList returns the items held by v.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != List {
		return nil, false
	}
	return v.l, true
}

// String renders scalars the way they appear inline in a note. Containers
// render as compact JSON.
func (v Value) String() string {
	switch v.kind {
	case Null:
		return "null"
	case Bool:
		return strconv.FormatBool(v.b)
	case Number, String:
		return v.s
	default:
		raw, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// Equal reports deep equality, including key order of maps.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case Bool:
		return v.b == o.b
	case Number, String:
		return v.s == o.s
	case Map:
		return v.m.Equal(o.m)
	case List:
		if len(v.l) != len(o.l) {
			return false
		}
		for i := range v.l {
			if !v.l[i].Equal(o.l[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON encodes v as compact JSON, keeping map key order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.b))
	case Number:
		buf.WriteString(v.s)
	case String:
		return writeQuoted(buf, v.s)
	case Map:
		return v.m.encode(buf)
	case List:
		buf.WriteByte('[')
		for i, item := range v.l {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}
	return nil
}

// writeQuoted writes s as a JSON string without HTML escaping.
func writeQuoted(buf *bytes.Buffer, s string) error {
	var quoted bytes.Buffer
	enc := json.NewEncoder(&quoted)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(quoted.Bytes(), "\n"))
	return nil
}

// Pretty renders v as JSON indented with four spaces.
func Pretty(v Value) (string, error) {
	raw, err := v.MarshalJSON()
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "    "); err != nil {
		return "", err
	}
	return out.String(), nil
}
