package classify

import (
	"fmt"
	"strings"
)

type tagKind uint8

const (
	kindAbsent tagKind = iota
	kindSingle
	kindMultiple
)

// TagValue is a raw tag value: absent, a single string or a list.
type TagValue struct {
	kind   tagKind
	values []string
}

// Absent returns the value of a missing tag.
func Absent() TagValue { return TagValue{} }

// Single returns a one-value tag.
func Single(s string) TagValue { return TagValue{kind: kindSingle, values: []string{s}} }

// Multiple returns a multi-value tag. The slice is copied.
func Multiple(ss ...string) TagValue {
	return TagValue{kind: kindMultiple, values: append([]string(nil), ss...)}
}

// ParseTagValue converts a decoded tag (nil, string, []string or []any) to
// a TagValue. A string holding OSM's "a;b" list syntax becomes a Multiple.
// Non-string list elements are formatted with %v; other types are formatted
// as a single value.
func ParseTagValue(v any) TagValue {
	switch t := v.(type) {
	case nil:
		return Absent()
	case string:
		if strings.Contains(t, ";") {
			parts := strings.Split(t, ";")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return TagValue{kind: kindMultiple, values: parts}
		}
		return Single(t)
	case []string:
		return Multiple(t...)
	case []any:
		ss := make([]string, len(t))
		for i, e := range t {
			if s, ok := e.(string); ok {
				ss[i] = s
			} else {
				ss[i] = fmt.Sprint(e)
			}
		}
		return TagValue{kind: kindMultiple, values: ss}
	default:
		return Single(fmt.Sprint(t))
	}
}

// First returns the value used for classification.
func (v TagValue) First() (string, bool) {
	if len(v.values) == 0 {
		return "", false
	}
	return v.values[0], true
}

// IsAbsent reports whether the tag was missing.
func (v TagValue) IsAbsent() bool { return v.kind == kindAbsent }

func (v TagValue) String() string {
	switch v.kind {
	case kindAbsent:
		return "<absent>"
	case kindSingle:
		return v.values[0]
	default:
		return "[" + strings.Join(v.values, ",") + "]"
	}
}

// memoKey identifies the classification input. Only the first value
// matters, so lists sharing a head share a key.
func (v TagValue) memoKey() string {
	first, ok := v.First()
	if !ok {
		return "\x00"
	}
	return "s" + first
}
