package decode

import (
	"bytes"
	"strings"
)

// Candidate keys per field, highest priority first.
var (
	TitleKeys    = []string{"titl", "title", "Title", "alertTitle", "NSUserNotificationTitle"}
	SubtitleKeys = []string{"subt", "subtitle", "Subtitle", "alertSubtitle"}
	BodyKeys     = []string{"body", "Body", "message", "alertBody", "informativeText", "text"}
	ImageKeys    = []string{"imag", "image", "img", "icon", "attachmentData"}

	attachmentKeys = []string{"atta", "attachments"}

	// containerKeys are nested dictionaries searched before any others.
	containerKeys = []string{"req", "request", "content", "aps", "alert"}
)

const (
	minCandidateImage = 100
	minScannedImage   = 1000
	maxImageScanDepth = 4
)

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegMagic = []byte{0xff, 0xd8, 0xff}
)

// Extract pulls notification fields out of a dictionary value. Non
// dictionaries yield empty Content.
func Extract(v Value) Content {
	if !v.IsDict() {
		return Content{}
	}
	return Content{
		Title:    findString(v, TitleKeys),
		Subtitle: findString(v, SubtitleKeys),
		Body:     findString(v, BodyKeys),
		Image:    findImage(v),
	}
}

// findString returns the first non-empty string under keys, at the top
// level first and then one level down.
func findString(d Value, keys []string) string {
	if s := directString(d, keys); s != "" {
		return s
	}
	for _, child := range nestedDicts(d) {
		if s := directString(child, keys); s != "" {
			return s
		}
	}
	return ""
}

func directString(d Value, keys []string) string {
	for _, k := range keys {
		v, ok := d.Get(k)
		if !ok || v.Kind != KindString {
			continue
		}
		if s := strings.TrimSpace(v.Str); s != "" {
			return s
		}
	}
	return ""
}

// nestedDicts lists the dictionary children of d, well-known containers
// first and then the rest in key order.
func nestedDicts(d Value) []Value {
	var out []Value
	seen := map[string]bool{}
	for _, k := range containerKeys {
		if v, ok := d.Get(k); ok && v.IsDict() {
			out = append(out, v)
			seen[k] = true
		}
	}
	for _, k := range d.Keys {
		if seen[k] {
			continue
		}
		if v := d.Fields[k]; v.IsDict() {
			out = append(out, v)
		}
	}
	return out
}

func findImage(d Value) []byte {
	scopes := append([]Value{d}, nestedDicts(d)...)
	for _, scope := range scopes {
		if b := candidateImage(scope); b != nil {
			return b
		}
	}
	return scanImage(d, 0)
}

func candidateImage(d Value) []byte {
	for _, k := range ImageKeys {
		if v, ok := d.Get(k); ok && v.Kind == KindData && len(v.Data) > minCandidateImage {
			return v.Data
		}
	}
	for _, k := range attachmentKeys {
		v, ok := d.Get(k)
		if !ok || v.Kind != KindArray || len(v.Items) == 0 {
			continue
		}
		first := v.Items[0]
		if data, ok := first.Get("data"); ok && data.Kind == KindData && len(data.Data) > minCandidateImage {
			return data.Data
		}
	}
	return nil
}

// scanImage finds the first large blob that starts with a PNG or JPEG
// signature anywhere under v.
func scanImage(v Value, depth int) []byte {
	if depth > maxImageScanDepth {
		return nil
	}
	switch v.Kind {
	case KindData:
		if len(v.Data) > minScannedImage && looksLikeImage(v.Data) {
			return v.Data
		}
	case KindDict:
		for _, k := range v.Keys {
			if b := scanImage(v.Fields[k], depth+1); b != nil {
				return b
			}
		}
	case KindArray:
		for _, it := range v.Items {
			if b := scanImage(it, depth+1); b != nil {
				return b
			}
		}
	}
	return nil
}

func looksLikeImage(b []byte) bool {
	return bytes.HasPrefix(b, pngMagic) || bytes.HasPrefix(b, jpegMagic)
}
