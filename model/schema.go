// Package model defines the four social-graph entities, their field schemas and
// the document codec shared by every store backend.
package model

import "fmt"

// Kind identifies an entity collection.
type Kind string

const (
	KindAccount      Kind = "account"
	KindPost         Kind = "post"
	KindComment      Kind = "comment"
	KindNotification Kind = "notification"
)

// Kinds lists every entity kind in dependency order (Account is the root).
var Kinds = []Kind{KindAccount, KindPost, KindComment, KindNotification}

// Notification types.
const (
	NotifyFollow  = "follow"
	NotifyLike    = "like"
	NotifyComment = "comment"
)

// NotificationTypes is the closed set accepted for Notification.type.
var NotificationTypes = []string{NotifyFollow, NotifyLike, NotifyComment}

// Length bounds, counted in characters.
const (
	MaxBioLength     = 160
	MaxContentLength = 280
)

// Field names shared across kinds.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// FieldType describes how a field is represented in a Document.
type FieldType int

const (
	// TypeString is a plain string.
	TypeString FieldType = iota
	// TypeRef is a non-null entity identifier.
	TypeRef
	// TypeNullableRef is an entity identifier or nil.
	TypeNullableRef
	// TypeRefList is an ordered sequence of entity identifiers.
	TypeRefList
	// TypeTime is a store-managed timestamp.
	TypeTime
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeRef:
		return "ref"
	case TypeNullableRef:
		return "nullable ref"
	case TypeRefList:
		return "ref list"
	case TypeTime:
		return "time"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Field is one entry of an entity schema.
type Field struct {
	Name     string
	Type     FieldType
	Required bool

	// Unique fields must be distinct across all entities of the kind.
	Unique bool

	// Managed fields are assigned by the store and never accepted from callers.
	Managed bool

	// Format is a validator tag applied in the format phase (e.g. "email").
	Format string

	// MaxLen bounds the length in characters; 0 means unbounded.
	MaxLen int

	// Enum restricts the value to a closed set.
	Enum []string

	// Default is applied on create when the caller omits the field.
	// HasDefault distinguishes a nil default from no default at all.
	Default    any
	HasDefault bool
}

// Schema describes the fields of one entity kind.
type Schema struct {
	Kind   Kind
	Table  string
	Fields []Field

	byName map[string]int
}

// Field returns the named field.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// UniqueFields returns the names of the kind's unique fields in schema order.
func (s *Schema) UniqueFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Unique {
			names = append(names, f.Name)
		}
	}
	return names
}

func newSchema(kind Kind, table string, fields ...Field) *Schema {
	all := append([]Field{{Name: FieldID, Type: TypeRef, Managed: true}}, fields...)
	all = append(all,
		Field{Name: FieldCreatedAt, Type: TypeTime, Managed: true},
		Field{Name: FieldUpdatedAt, Type: TypeTime, Managed: true},
	)
	s := &Schema{Kind: kind, Table: table, Fields: all, byName: make(map[string]int, len(all))}
	for i, f := range all {
		s.byName[f.Name] = i
	}
	return s
}

func optionalString(name string) Field {
	return Field{Name: name, Type: TypeString, Default: "", HasDefault: true}
}

func refList(name string) Field {
	return Field{Name: name, Type: TypeRefList, Default: []string{}, HasDefault: true}
}

var schemas = map[Kind]*Schema{
	KindAccount: newSchema(KindAccount, "accounts",
		Field{Name: "externalId", Type: TypeString, Required: true, Unique: true},
		Field{Name: "email", Type: TypeString, Required: true, Unique: true, Format: "email"},
		Field{Name: "firstName", Type: TypeString, Required: true},
		Field{Name: "lastName", Type: TypeString, Required: true},
		Field{Name: "username", Type: TypeString, Required: true, Unique: true},
		optionalString("profilePicture"),
		optionalString("bannerImage"),
		Field{Name: "bio", Type: TypeString, MaxLen: MaxBioLength, Default: "", HasDefault: true},
		optionalString("location"),
		refList("followers"),
		refList("following"),
	),
	KindPost: newSchema(KindPost, "posts",
		Field{Name: "user", Type: TypeRef, Required: true},
		Field{Name: "content", Type: TypeString, MaxLen: MaxContentLength},
		optionalString("image"),
		refList("likes"),
		refList("comments"),
	),
	KindComment: newSchema(KindComment, "comments",
		Field{Name: "user", Type: TypeRef, Required: true},
		Field{Name: "post", Type: TypeRef, Required: true},
		Field{Name: "content", Type: TypeString, Required: true, MaxLen: MaxContentLength},
		refList("likes"),
	),
	KindNotification: newSchema(KindNotification, "notifications",
		Field{Name: "from", Type: TypeRef, Required: true},
		Field{Name: "to", Type: TypeRef, Required: true},
		Field{Name: "type", Type: TypeString, Required: true, Enum: NotificationTypes},
		Field{Name: "post", Type: TypeNullableRef, Default: nil, HasDefault: true},
		Field{Name: "comment", Type: TypeNullableRef, Default: nil, HasDefault: true},
	),
}

// SchemaFor returns the schema of kind, or an error for unknown kinds.
func SchemaFor(kind Kind) (*Schema, error) {
	s, ok := schemas[kind]
	if !ok {
		return nil, fmt.Errorf("murmur: unknown entity kind %q", string(kind))
	}
	return s, nil
}

// MustSchema is SchemaFor for kinds known at compile time.
func MustSchema(kind Kind) *Schema {
	s, err := SchemaFor(kind)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseKind converts a kind or table name into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s || schemas[k].Table == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("murmur: unknown entity kind %q", s)
}
