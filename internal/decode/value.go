// Package decode turns notification payload blobs into title, subtitle, body
// and image fields. Every strategy produces the same Value tree so field
// extraction is written once.
package decode

import (
	"fmt"
	"sort"
	"time"

	"howett.net/plist"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindDict
	KindArray
	KindString
	KindNumber
	KindBool
	KindDate
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindDict:
		return "dict"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindData:
		return "data"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a decoded payload node. Dictionaries keep insertion order in Keys.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
	Time time.Time
	Data []byte

	Items  []Value
	Keys   []string
	Fields map[string]Value
}

// Null is the zero Value.
var Null = Value{Kind: KindNull}

func StringValue(s string) Value      { return Value{Kind: KindString, Str: s} }
func NumberValue(n float64) Value     { return Value{Kind: KindNumber, Num: n} }
func BoolValue(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func DateValue(t time.Time) Value     { return Value{Kind: KindDate, Time: t} }
func DataValue(b []byte) Value        { return Value{Kind: KindData, Data: b} }
func ArrayValue(items ...Value) Value { return Value{Kind: KindArray, Items: items} }

// NewDict returns an empty dictionary value.
func NewDict() Value {
	return Value{Kind: KindDict, Fields: map[string]Value{}}
}

// Set adds or replaces a key. A new key is appended to the key order.
func (v *Value) Set(key string, val Value) {
	if v.Fields == nil {
		v.Fields = map[string]Value{}
	}
	if _, ok := v.Fields[key]; !ok {
		v.Keys = append(v.Keys, key)
	}
	v.Fields[key] = val
}

// Get looks up a key in a dictionary value.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindDict {
		return Null, false
	}
	val, ok := v.Fields[key]
	return val, ok
}

// IsDict reports whether v is a dictionary.
func (v Value) IsDict() bool { return v.Kind == KindDict }

// fromNative converts a generic tree produced by the plist decoder. Map
// keys have no order there, so they are sorted for determinism.
func fromNative(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null
	case string:
		return StringValue(t)
	case bool:
		return BoolValue(t)
	case uint64:
		return NumberValue(float64(t))
	case int64:
		return NumberValue(float64(t))
	case int:
		return NumberValue(float64(t))
	case float64:
		return NumberValue(t)
	case float32:
		return NumberValue(float64(t))
	case plist.UID:
		return NumberValue(float64(t))
	case time.Time:
		return DateValue(t)
	case []byte:
		return DataValue(t)
	case []any:
		items := make([]Value, 0, len(t))
		for _, it := range t {
			items = append(items, fromNative(it))
		}
		return ArrayValue(items...)
	case map[string]any:
		d := NewDict()
		for _, k := range sortedKeys(t) {
			d.Set(k, fromNative(t[k]))
		}
		return d
	default:
		return Null
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
