package field

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Type is the indexing type of a metadata field.
type Type string

// Field type constants.
const (
	// Tag is an exact-match field; list values are joined with TagSeparator.
	Tag     Type = "tag"
	Numeric Type = "numeric"
)

// TagSeparator joins multi-valued tags such as technical domains.
// Procurement labels contain commas and slashes, never pipes.
const TagSeparator = "|"

// Filter kinds a field may be queried with.
const (
	KindMatch = "match"
	KindAnyOf = "any_of"
	KindRange = "range"
)

var reservedFieldNames = map[string]bool{
	"id": true, "content": true, "score": true, "vector": true, "metadata": true,
}

// Field is an immutable value object describing an indexed metadata key.
type Field struct {
	name      string
	fieldType Type
}

// New validates and creates a Field.
// Name must be non-empty, max 64 chars, and not reserved.
func New(name string, ft Type) (Field, error) {
	if name == "" {
		return Field{}, fmt.Errorf("field name is required")
	}
	if len(name) > 64 {
		return Field{}, fmt.Errorf("field name %q too long (max 64)", name)
	}
	if reservedFieldNames[name] {
		return Field{}, fmt.Errorf("field name %q is reserved", name)
	}
	if ft != Tag && ft != Numeric {
		return Field{}, fmt.Errorf("invalid field type %q for %q", ft, name)
	}
	return Field{name: name, fieldType: ft}, nil
}

// MustNew is New for package-level schemas; it panics on an invalid definition.
func MustNew(name string, ft Type) Field {
	f, err := New(name, ft)
	if err != nil {
		panic(err)
	}
	return f
}

// Reconstruct creates a Field without validation (storage hydration).
func Reconstruct(name string, ft Type) Field {
	return Field{name: name, fieldType: ft}
}

func (f Field) Name() string    { return f.name }
func (f Field) FieldType() Type { return f.fieldType }

// Supports reports whether a filter of the given kind can target this field.
func (f Field) Supports(kind string) bool {
	switch kind {
	case KindMatch, KindAnyOf:
		return f.fieldType == Tag
	case KindRange:
		return f.fieldType == Numeric
	}
	return false
}

// Encode renders a metadata value in the field's index representation.
// ok is false when the value is empty or does not fit the type, in which
// case the key is left out of the index.
func (f Field) Encode(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	switch f.fieldType {
	case Tag:
		s := tagValue(v)
		return s, s != ""
	case Numeric:
		n, ok := numericValue(v)
		if !ok {
			return "", false
		}
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}
	return "", false
}

func tagValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []string:
		return joinTags(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if e != nil {
				parts = append(parts, fmt.Sprint(e))
			}
		}
		return joinTags(parts)
	default:
		return fmt.Sprint(t)
	}
}

func joinTags(values []string) string {
	out := make([]string, 0, len(values))
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, TagSeparator)
}

func numericValue(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		n, err := t.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return n, err == nil
	}
	return 0, false
}
