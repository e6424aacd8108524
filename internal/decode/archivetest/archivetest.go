// Package archivetest builds keyed-archive payloads for tests.
package archivetest

import (
	"howett.net/plist"
)

// Builder accumulates the $objects table of a keyed archive.
type Builder struct {
	objects []any
	classes map[string]plist.UID
}

// New returns a builder whose object 0 is the $null marker.
func New() *Builder {
	return &Builder{objects: []any{"$null"}, classes: map[string]plist.UID{}}
}

// Add appends a raw object and returns its reference.
func (b *Builder) Add(obj any) plist.UID {
	b.objects = append(b.objects, obj)
	return plist.UID(len(b.objects) - 1)
}

// Ref returns v itself when it is already a reference, else archives it.
func (b *Builder) Ref(v any) plist.UID {
	if uid, ok := v.(plist.UID); ok {
		return uid
	}
	return b.Add(v)
}

func (b *Builder) class(name string) plist.UID {
	if uid, ok := b.classes[name]; ok {
		return uid
	}
	uid := b.Add(map[string]any{
		"$classname": name,
		"$classes":   []any{name, "NSObject"},
	})
	b.classes[name] = uid
	return uid
}

// Dict archives an NSDictionary. keys and vals are parallel; a value may be
// a reference returned by another Builder call.
func (b *Builder) Dict(keys []string, vals []any) plist.UID {
	cls := b.class("NSDictionary")
	ks := make([]any, 0, len(keys))
	vs := make([]any, 0, len(vals))
	for i, k := range keys {
		ks = append(ks, b.Add(k))
		vs = append(vs, b.Ref(vals[i]))
	}
	return b.Add(map[string]any{"$class": cls, "NS.keys": ks, "NS.objects": vs})
}

// Array archives an NSArray.
func (b *Builder) Array(vals ...any) plist.UID {
	cls := b.class("NSArray")
	vs := make([]any, 0, len(vals))
	for _, v := range vals {
		vs = append(vs, b.Ref(v))
	}
	return b.Add(map[string]any{"$class": cls, "NS.objects": vs})
}

// Data archives an NSData wrapper.
func (b *Builder) Data(p []byte) plist.UID {
	return b.Add(map[string]any{"$class": b.class("NSData"), "NS.bytes": p})
}

// Encode writes the archive in binary property-list form with root as
// $top.root.
func (b *Builder) Encode(root plist.UID) ([]byte, error) {
	return b.encode(map[string]any{"root": root})
}

// EncodeTop writes the archive with an arbitrary $top dictionary.
func (b *Builder) EncodeTop(top map[string]any) ([]byte, error) {
	return b.encode(top)
}

func (b *Builder) encode(top map[string]any) ([]byte, error) {
	return plist.Marshal(map[string]any{
		"$archiver": "NSKeyedArchiver",
		"$version":  100000,
		"$objects":  b.objects,
		"$top":      top,
	}, plist.BinaryFormat)
}

// Notification is a shortcut for a flat title/body archive.
func Notification(title, body string) ([]byte, error) {
	b := New()
	root := b.Dict([]string{"title", "body"}, []any{title, body})
	return b.Encode(root)
}
