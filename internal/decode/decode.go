package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	"howett.net/plist"
)

// Content is the structured result of decoding a payload.
type Content struct {
	Title    string
	Subtitle string
	Body     string
	Image    []byte
}

// Empty reports whether neither title nor body was found.
func (c Content) Empty() bool {
	return c.Title == "" && c.Body == ""
}

// Strategy is one way of reading a payload into a Value.
type Strategy struct {
	Name   string
	Decode func(payload []byte) (Value, bool)
}

// Strategies lists the decoders in the order they are tried.
var Strategies = []Strategy{
	{Name: "keyed-archive", Decode: parseKeyedArchive},
	{Name: "property-list", Decode: parsePropertyList},
	{Name: "raw", Decode: parseRaw},
}

// Decode runs the strategies in order and returns the first result with a
// title or body. A payload nothing can read yields empty Content.
func Decode(payload []byte) Content {
	c, _ := DecodeWith(payload)
	return c
}

// DecodeWith is Decode that also names the strategy that succeeded.
func DecodeWith(payload []byte) (Content, string) {
	if len(payload) == 0 {
		return Content{}, ""
	}
	for _, s := range Strategies {
		v, ok := s.Decode(payload)
		if !ok {
			continue
		}
		if c := Extract(v); !c.Empty() {
			return c, s.Name
		}
	}
	return Content{}, ""
}

func parsePropertyList(payload []byte) (Value, bool) {
	var root map[string]any
	if _, err := plist.Unmarshal(payload, &root); err != nil {
		return Null, false
	}
	if root == nil {
		return Null, false
	}
	return fromNative(root), true
}

// parseRaw reads UTF-8 text holding a JSON object, possibly surrounded by
// other text.
func parseRaw(payload []byte) (Value, bool) {
	if !utf8.Valid(payload) {
		return Null, false
	}
	start := bytes.IndexByte(payload, '{')
	end := bytes.LastIndexByte(payload, '}')
	if start < 0 || end <= start {
		return Null, false
	}

	dec := json.NewDecoder(bytes.NewReader(payload[start : end+1]))
	dec.UseNumber()
	v, err := readJSON(dec)
	if err != nil || v.Kind != KindDict {
		return Null, false
	}
	return v, true
}

// readJSON builds a Value from the token stream so object key order is kept.
func readJSON(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Null, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			d := NewDict()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Null, err
				}
				key, ok := kt.(string)
				if !ok {
					return Null, fmt.Errorf("object key is %T", kt)
				}
				v, err := readJSON(dec)
				if err != nil {
					return Null, err
				}
				d.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return Null, err
			}
			return d, nil
		case '[':
			var items []Value
			for dec.More() {
				v, err := readJSON(dec)
				if err != nil {
					return Null, err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil {
				return Null, err
			}
			return ArrayValue(items...), nil
		default:
			return Null, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return StringValue(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Null, err
		}
		return NumberValue(f), nil
	case bool:
		return BoolValue(t), nil
	case nil:
		return Null, nil
	default:
		return Null, io.ErrUnexpectedEOF
	}
}
