package decode

import (
	"bytes"
	"fmt"
	"time"

	"howett.net/plist"
)

// archiveMagic is the leading marker of binary property lists, the container
// format of keyed archives.
var archiveMagic = []byte("bplist")

// ReferenceDate is the epoch of archived dates.
var ReferenceDate = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

const maxArchiveDepth = 64

// keyedArchive resolves the object graph of an NSKeyedArchiver payload.
type keyedArchive struct {
	objects []any
	// references currently being resolved; a repeat is a cycle
	active map[plist.UID]bool
}

func parseKeyedArchive(payload []byte) (Value, bool) {
	if !bytes.HasPrefix(payload, archiveMagic) {
		return Null, false
	}

	var root map[string]any
	if _, err := plist.Unmarshal(payload, &root); err != nil {
		return Null, false
	}
	objects, ok := root["$objects"].([]any)
	if !ok {
		return Null, false
	}
	top, ok := root["$top"].(map[string]any)
	if !ok {
		return Null, false
	}

	a := &keyedArchive{objects: objects, active: map[plist.UID]bool{}}
	if v, err := a.unarchive(top); err == nil {
		return v, true
	}
	v, err := a.unarchiveLegacy(top)
	if err != nil {
		return Null, false
	}
	return v, true
}

// unarchive follows $top.root.
func (a *keyedArchive) unarchive(top map[string]any) (Value, error) {
	ref, ok := top["root"]
	if !ok {
		return Null, fmt.Errorf("archive has no root object")
	}
	if _, isUID := ref.(plist.UID); !isUID {
		return Null, fmt.Errorf("archive root is %T, want UID", ref)
	}
	return a.resolve(ref, 0)
}

// unarchiveLegacy treats every $top entry as a field of the result, for
// archives written without a single root key.
func (a *keyedArchive) unarchiveLegacy(top map[string]any) (Value, error) {
	d := NewDict()
	for _, k := range sortedKeys(top) {
		v, err := a.resolve(top[k], 0)
		if err != nil {
			return Null, fmt.Errorf("resolve %s: %w", k, err)
		}
		d.Set(k, v)
	}
	if len(d.Keys) == 0 {
		return Null, fmt.Errorf("empty archive top")
	}
	return d, nil
}

func (a *keyedArchive) resolve(ref any, depth int) (Value, error) {
	if depth > maxArchiveDepth {
		return Null, fmt.Errorf("archive nesting exceeds %d", maxArchiveDepth)
	}
	uid, ok := ref.(plist.UID)
	if !ok {
		return a.object(ref, depth)
	}
	if int(uid) >= len(a.objects) {
		return Null, fmt.Errorf("object reference %d out of range (%d objects)", uid, len(a.objects))
	}
	if a.active[uid] {
		return Null, nil
	}
	a.active[uid] = true
	defer delete(a.active, uid)
	return a.object(a.objects[uid], depth)
}

func (a *keyedArchive) object(obj any, depth int) (Value, error) {
	switch t := obj.(type) {
	case string:
		if t == "$null" {
			return Null, nil
		}
		return StringValue(t), nil
	case []any:
		items := make([]Value, 0, len(t))
		for _, it := range t {
			v, err := a.resolve(it, depth+1)
			if err != nil {
				return Null, err
			}
			items = append(items, v)
		}
		return ArrayValue(items...), nil
	case map[string]any:
		return a.instance(t, depth)
	default:
		return fromNative(obj), nil
	}
}

// instance decodes an archived object by the shape of its keys.
func (a *keyedArchive) instance(obj map[string]any, depth int) (Value, error) {
	if keys, ok := obj["NS.keys"].([]any); ok {
		vals, _ := obj["NS.objects"].([]any)
		if len(vals) != len(keys) {
			return Null, fmt.Errorf("dictionary has %d keys and %d objects", len(keys), len(vals))
		}
		d := NewDict()
		for i := range keys {
			k, err := a.resolve(keys[i], depth+1)
			if err != nil {
				return Null, err
			}
			if k.Kind != KindString {
				continue
			}
			v, err := a.resolve(vals[i], depth+1)
			if err != nil {
				return Null, err
			}
			d.Set(k.Str, v)
		}
		return d, nil
	}
	if items, ok := obj["NS.objects"]; ok {
		return a.resolve(items, depth+1)
	}
	if s, ok := obj["NS.string"]; ok {
		return a.resolve(s, depth+1)
	}
	for _, key := range []string{"NS.bytes", "NS.data"} {
		if b, ok := obj[key]; ok {
			return a.resolve(b, depth+1)
		}
	}
	if ts, ok := obj["NS.time"]; ok {
		v := fromNative(ts)
		if v.Kind != KindNumber {
			return Null, fmt.Errorf("NS.time is %s", v.Kind)
		}
		return DateValue(ReferenceDate.Add(time.Duration(v.Num * float64(time.Second)))), nil
	}

	d := NewDict()
	for _, k := range sortedKeys(obj) {
		if k == "$class" {
			continue
		}
		v, err := a.resolve(obj[k], depth+1)
		if err != nil {
			return Null, err
		}
		d.Set(k, v)
	}
	return d, nil
}
