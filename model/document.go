package model

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is a fixed-width UTC layout, so lexicographic and chronological
// order of stored timestamps coincide.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// Fields is caller-supplied input for a create or update.
type Fields map[string]any

// Document is a stored entity in canonical form: strings for scalar fields,
// []string for reference sequences, nil for null references and time.Time
// for timestamps.
type Document map[string]any

// ID returns the document identifier.
func (d Document) ID() string { return d.String(FieldID) }

// String returns a string field, or "" when absent or null.
func (d Document) String(name string) string {
	s, _ := d[name].(string)
	return s
}

// Ref returns a nullable reference field.
func (d Document) Ref(name string) *string {
	s, ok := d[name].(string)
	if !ok {
		return nil
	}
	return &s
}

// Refs returns a reference sequence, never nil.
func (d Document) Refs(name string) []string {
	refs, _ := d[name].([]string)
	if refs == nil {
		return []string{}
	}
	return refs
}

// Time returns a timestamp field.
func (d Document) Time(name string) time.Time {
	t, _ := d[name].(time.Time)
	return t
}

// CreatedAt returns the creation timestamp.
func (d Document) CreatedAt() time.Time { return d.Time(FieldCreatedAt) }

// UpdatedAt returns the last-mutation timestamp.
func (d Document) UpdatedAt() time.Time { return d.Time(FieldUpdatedAt) }

// Clone returns a copy that does not share reference sequences with d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		if refs, ok := v.([]string); ok {
			v = append([]string{}, refs...)
		}
		out[k] = v
	}
	return out
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a TimeLayout (or RFC 3339) timestamp.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// EncodeWire converts a document into plain values suitable for a storage
// codec: timestamps become TimeLayout strings.
func EncodeWire(d Document) map[string]any {
	out := make(map[string]any, len(d))
	for k, v := range d {
		if t, ok := v.(time.Time); ok {
			out[k] = FormatTime(t)
			continue
		}
		out[k] = v
	}
	return out
}

// DecodeWire normalizes a decoded storage item into a Document of kind.
// Internal attributes (prefixed "_") and fields outside the schema are dropped;
// missing reference sequences decode as empty.
func DecodeWire(kind Kind, raw map[string]any) (Document, error) {
	schema, err := SchemaFor(kind)
	if err != nil {
		return nil, err
	}
	doc := make(Document, len(schema.Fields))
	for _, f := range schema.Fields {
		v, present := raw[f.Name]
		switch f.Type {
		case TypeString, TypeRef:
			if !present || v == nil {
				continue
			}
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("decode %s.%s: expected string, got %T", kind, f.Name, v)
			}
			doc[f.Name] = s
		case TypeNullableRef:
			if v == nil {
				doc[f.Name] = nil
				continue
			}
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("decode %s.%s: expected string or null, got %T", kind, f.Name, v)
			}
			doc[f.Name] = s
		case TypeRefList:
			refs, err := toStrings(v)
			if err != nil {
				return nil, fmt.Errorf("decode %s.%s: %w", kind, f.Name, err)
			}
			doc[f.Name] = refs
		case TypeTime:
			if !present || v == nil {
				continue
			}
			switch tv := v.(type) {
			case time.Time:
				doc[f.Name] = tv.UTC()
			case string:
				t, err := ParseTime(tv)
				if err != nil {
					return nil, fmt.Errorf("decode %s.%s: %w", kind, f.Name, err)
				}
				doc[f.Name] = t.UTC()
			default:
				return nil, fmt.Errorf("decode %s.%s: expected timestamp, got %T", kind, f.Name, v)
			}
		}
	}
	return doc, nil
}

// IsInternal reports whether an attribute name is reserved for backends.
func IsInternal(name string) bool {
	return strings.HasPrefix(name, "_")
}

func toStrings(v any) ([]string, error) {
	switch vv := v.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return append([]string{}, vv...), nil
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", v)
	}
}

// Coerce converts generic JSON-style values in caller input into their
// canonical Document representation ([]any of strings becomes []string).
// Values that cannot be converted are left for validation to reject.
func Coerce(fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		if list, ok := v.([]any); ok {
			if refs, err := toStrings(list); err == nil {
				v = refs
			}
		}
		out[k] = v
	}
	return out
}
