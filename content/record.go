// Package content holds the canonical content model (posts, categories, tags,
// authors) and the decoders that turn raw CMS records into it.
//
// CMS records arrive in one of two equivalent shapes: fields directly on the
// record, or nested one level under "attributes". Relations are wrapped under
// "data", holding either an object or an array. Record hides the difference.
package content

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Record is a single raw entity as decoded from the CMS JSON.
type Record map[string]any

// AsRecord converts a decoded JSON value into a Record.
// Anything that is not a JSON object yields (nil, false).
func AsRecord(v any) (Record, bool) {
	switch m := v.(type) {
	case Record:
		return m, m != nil
	case map[string]any:
		return Record(m), m != nil
	}
	return nil, false
}

func (r Record) attributes() Record {
	if r == nil {
		return nil
	}
	attrs, _ := AsRecord(r["attributes"])
	return attrs
}

// Field resolves name with the lookup order attributes.<name>, then <name>.
// JSON null counts as absent.
func (r Record) Field(name string) (any, bool) {
	if attrs := r.attributes(); attrs != nil {
		if v, ok := attrs[name]; ok && v != nil {
			return v, true
		}
	}
	if r == nil {
		return nil, false
	}
	if v, ok := r[name]; ok && v != nil {
		return v, true
	}
	return nil, false
}

// String returns the field as a string. Empty strings fall through to the
// next lookup step so that an empty nested value does not hide a flat one.
func (r Record) String(name, def string) string {
	if attrs := r.attributes(); attrs != nil {
		if s, ok := toString(attrs[name]); ok && s != "" {
			return s
		}
	}
	if r != nil {
		if s, ok := toString(r[name]); ok && s != "" {
			return s
		}
	}
	return def
}

// Int returns the field as an int, accepting JSON numbers and numeric strings.
func (r Record) Int(name string, def int) int {
	v, ok := r.Field(name)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return def
		}
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return def
}

// Bool returns the field as a bool, accepting true/false and "true"/"false".
func (r Record) Bool(name string, def bool) bool {
	v, ok := r.Field(name)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	return def
}

// Time parses the field as an RFC 3339 timestamp or a plain YYYY-MM-DD date.
func (r Record) Time(name string) (time.Time, bool) {
	s := r.String(name, "")
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ID returns the record identifier, which always lives on the top level.
func (r Record) ID() int {
	if r == nil {
		return 0
	}
	switch n := r["id"].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

// Relation resolves a single relation field. One "data" envelope is unwrapped;
// a null, absent or empty relation yields (nil, false).
func (r Record) Relation(name string) (Record, bool) {
	v, ok := r.Field(name)
	if !ok {
		return nil, false
	}
	return single(unwrapData(v))
}

// Relations resolves a to-many relation field. A null or absent relation
// yields an empty, non-nil slice.
func (r Record) Relations(name string) []Record {
	out := []Record{}
	v, ok := r.Field(name)
	if !ok {
		return out
	}
	switch items := unwrapData(v).(type) {
	case []any:
		for _, item := range items {
			if rec, ok := AsRecord(item); ok && len(rec) > 0 {
				out = append(out, rec)
			}
		}
	default:
		if rec, ok := AsRecord(items); ok && len(rec) > 0 {
			out = append(out, rec)
		}
	}
	return out
}

// unwrapData strips one {"data": ...} envelope. Objects without a "data" key
// are returned as they are, which is how newer Strapi versions ship relations.
func unwrapData(v any) any {
	m, ok := AsRecord(v)
	if !ok {
		return v
	}
	if inner, has := m["data"]; has {
		return inner
	}
	return v
}

func single(v any) (Record, bool) {
	switch x := v.(type) {
	case []any:
		if len(x) == 1 {
			return single(x[0])
		}
		return nil, false
	default:
		rec, ok := AsRecord(x)
		if !ok || len(rec) == 0 {
			return nil, false
		}
		return rec, true
	}
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case json.Number:
		return s.String(), true
	}
	return "", false
}
