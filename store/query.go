package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/jacentio/murmur/model"
)

// Op is a predicate operator.
type Op int

const (
	// OpEq matches a scalar field equal to Value.
	OpEq Op = iota
	// OpContains matches a reference sequence containing Value.
	OpContains
)

// Condition is one conjunct of a query predicate.
type Condition struct {
	Field string
	Op    Op
	Value string
}

// Eq builds an equality condition.
func Eq(field, value string) Condition { return Condition{Field: field, Op: OpEq, Value: value} }

// Contains builds a sequence-membership condition.
func Contains(field, value string) Condition {
	return Condition{Field: field, Op: OpContains, Value: value}
}

// Query selects, orders and limits documents of one kind.
type Query struct {
	Where []Condition

	// SortBy names a string or timestamp field. Default: createdAt.
	SortBy     string
	Descending bool

	// Limit is the maximum number of documents to return (0 = no limit).
	Limit int
}

// SortField returns the effective sort field.
func (q Query) SortField() string {
	if q.SortBy == "" {
		return model.FieldCreatedAt
	}
	return q.SortBy
}

// Validate checks the query against the schema of kind.
func (q Query) Validate(kind model.Kind) error {
	schema, err := model.SchemaFor(kind)
	if err != nil {
		return err
	}
	for _, c := range q.Where {
		f, ok := schema.Field(c.Field)
		if !ok {
			return fmt.Errorf("%w: %s has no field %q", ErrInvalidQuery, kind, c.Field)
		}
		switch c.Op {
		case OpEq:
			if f.Type == model.TypeRefList {
				return fmt.Errorf("%w: use Contains on sequence field %q", ErrInvalidQuery, c.Field)
			}
		case OpContains:
			if f.Type != model.TypeRefList {
				return fmt.Errorf("%w: Contains requires a sequence field, %q is %s", ErrInvalidQuery, c.Field, f.Type)
			}
		default:
			return fmt.Errorf("%w: unknown operator %d", ErrInvalidQuery, c.Op)
		}
	}
	f, ok := schema.Field(q.SortField())
	if !ok || f.Type == model.TypeRefList {
		return fmt.Errorf("%w: cannot sort %s by %q", ErrInvalidQuery, kind, q.SortField())
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return nil
}

// Matches reports whether doc satisfies every condition.
func (q Query) Matches(doc model.Document) bool {
	for _, c := range q.Where {
		switch c.Op {
		case OpEq:
			s, ok := doc[c.Field].(string)
			if !ok || s != c.Value {
				return false
			}
		case OpContains:
			found := false
			for _, ref := range doc.Refs(c.Field) {
				if ref == c.Value {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

// Apply filters, sorts and limits docs in memory. Ties are broken by id.
func (q Query) Apply(docs []model.Document) []model.Document {
	out := make([]model.Document, 0, len(docs))
	for _, d := range docs {
		if q.Matches(d) {
			out = append(out, d)
		}
	}

	field := q.SortField()
	sort.SliceStable(out, func(i, j int) bool {
		c := compareField(out[i][field], out[j][field])
		if c == 0 {
			c = compareField(out[i].ID(), out[j].ID())
		}
		if q.Descending {
			return c > 0
		}
		return c < 0
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// compareField orders nil before strings and timestamps.
func compareField(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		bv, _ := b.(time.Time)
		return av.Compare(bv)
	case string:
		bv, ok := b.(string)
		if !ok {
			return 1
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	default:
		if b == nil {
			return 0
		}
		return -1
	}
}
