// Package normalize rewrites the text leaves of decoded query results.
package normalize

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Walk rebuilds v, passing every string leaf through leaf. Maps and slices
// are copied; map keys are transformed too and kept when the result is still
// a string. Values of any other type are returned as they are.
func Walk(v any, leaf func(string) any) any {
	switch t := v.(type) {
	case string:
		return leaf(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[walkKey(k, leaf)] = Walk(val, leaf)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, m := range t {
			out[i] = Walk(m, leaf).(map[string]any)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Walk(val, leaf)
		}
		return out
	default:
		return v
	}
}

func walkKey(k string, leaf func(string) any) string {
	if s, ok := leaf(k).(string); ok {
		return s
	}
	return k
}

// String replaces invalid UTF-8 sequences with U+FFFD and converts s to
// Unicode normalization form C.
func String(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return norm.NFC.String(s)
}

// Value applies String to every text leaf of v.
func Value(v any) any {
	return Walk(v, func(s string) any { return String(s) })
}

// Rows applies String to every text leaf of a page of result rows.
func Rows(rows []map[string]any) []map[string]any {
	return Walk(rows, func(s string) any { return String(s) }).([]map[string]any)
}

// ToBytes converts every text leaf of v to its normalized UTF-8 bytes. Map
// keys stay strings.
func ToBytes(v any) any {
	return Walk(v, func(s string) any { return []byte(String(s)) })
}
