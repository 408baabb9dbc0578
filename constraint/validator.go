// Package constraint validates candidate entity fields before they reach the store.
//
// Checks run in a fixed order across the schema of the entity kind:
//
//  1. required-field presence
//  2. type and format
//  3. length bounds
//  4. enum membership
//  5. uniqueness against the store's current snapshot
//
// The first failing check aborts with a [ValidationError] or a
// [UniquenessError]. The uniqueness check is advisory: it can race with a
// concurrent insert, so store backends enforce the same constraint at write time.
package constraint

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jacentio/murmur/model"
)

// UniqueIndex is the read the validator performs against the store.
type UniqueIndex interface {
	// LookupUnique returns the id of the entity currently holding value for field.
	LookupUnique(ctx context.Context, kind model.Kind, field, value string) (ownerID string, found bool, err error)
}

// Options tunes a single validation.
type Options struct {
	// Partial restricts checks to the fields present in the candidate (updates).
	Partial bool

	// SelfID excludes the entity being updated from uniqueness checks.
	SelfID string
}

// Validator checks candidate fields against the entity schemas.
type Validator struct {
	index UniqueIndex
	v     *validator.Validate
}

// New creates a Validator. A nil index disables the uniqueness pre-check.
func New(index UniqueIndex) *Validator {
	return &Validator{
		index: index,
		v:     validator.New(),
	}
}

// Validate checks fields as a candidate for kind.
func (val *Validator) Validate(ctx context.Context, kind model.Kind, fields model.Fields, opts Options) error {
	schema, err := model.SchemaFor(kind)
	if err != nil {
		return err
	}

	if err := checkKeys(schema, fields); err != nil {
		return err
	}

	touched := func(f model.Field) bool {
		if f.Managed {
			return false
		}
		_, ok := fields[f.Name]
		return ok || !opts.Partial
	}

	for _, f := range schema.Fields {
		if !f.Required || !touched(f) {
			continue
		}
		if err := val.checkRequired(kind, f, fields[f.Name]); err != nil {
			return err
		}
	}

	for _, f := range schema.Fields {
		v, ok := fields[f.Name]
		if !ok || !touched(f) {
			continue
		}
		if err := val.checkType(kind, f, v); err != nil {
			return err
		}
	}

	for _, f := range schema.Fields {
		s, ok := fields[f.Name].(string)
		if !ok || f.MaxLen == 0 || !touched(f) {
			continue
		}
		if val.v.Var(s, fmt.Sprintf("max=%d", f.MaxLen)) != nil {
			return reject(kind, f.Name, RuleMaxLength, "longer than %d characters", f.MaxLen)
		}
	}

	for _, f := range schema.Fields {
		s, ok := fields[f.Name].(string)
		if !ok || len(f.Enum) == 0 || !touched(f) {
			continue
		}
		if val.v.Var(s, "oneof="+strings.Join(f.Enum, " ")) != nil {
			return reject(kind, f.Name, RuleEnum, "%q is not one of %s", s, strings.Join(f.Enum, ", "))
		}
	}

	if val.index == nil {
		return nil
	}
	for _, f := range schema.Fields {
		s, ok := fields[f.Name].(string)
		if !ok || !f.Unique || !touched(f) {
			continue
		}
		owner, found, err := val.index.LookupUnique(ctx, kind, f.Name, s)
		if err != nil {
			return fmt.Errorf("check %s.%s uniqueness: %w", kind, f.Name, err)
		}
		if found && owner != opts.SelfID {
			return &UniquenessError{Kind: kind, Field: f.Name, Value: s}
		}
	}
	return nil
}

// checkKeys rejects fields outside the schema and store-managed fields.
func checkKeys(schema *model.Schema, fields model.Fields) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		f, ok := schema.Field(k)
		if !ok {
			return reject(schema.Kind, k, RuleUnknown, "not a field of %s", schema.Kind)
		}
		if f.Managed {
			return reject(schema.Kind, k, RuleManaged, "assigned by the store")
		}
	}
	return nil
}

func (val *Validator) checkRequired(kind model.Kind, f model.Field, v any) error {
	if v == nil || val.v.Var(v, "required") != nil {
		return reject(kind, f.Name, RuleRequired, "is required")
	}
	return nil
}

func (val *Validator) checkType(kind model.Kind, f model.Field, v any) error {
	switch f.Type {
	case model.TypeString:
		s, ok := v.(string)
		if !ok {
			return reject(kind, f.Name, RuleType, "expected string, got %T", v)
		}
		if f.Format != "" && s != "" && val.v.Var(s, f.Format) != nil {
			return reject(kind, f.Name, RuleFormat, "%q is not a valid %s", s, f.Format)
		}
	case model.TypeRef:
		return val.checkRef(kind, f.Name, v)
	case model.TypeNullableRef:
		if v == nil {
			return nil
		}
		return val.checkRef(kind, f.Name, v)
	case model.TypeRefList:
		refs, ok := v.([]string)
		if !ok {
			return reject(kind, f.Name, RuleType, "expected list of ids, got %T", v)
		}
		for _, ref := range refs {
			if err := val.checkRef(kind, f.Name, ref); err != nil {
				return err
			}
		}
	}
	return nil
}

func (val *Validator) checkRef(kind model.Kind, field string, v any) error {
	s, ok := v.(string)
	if !ok {
		return reject(kind, field, RuleType, "expected id, got %T", v)
	}
	if val.v.Var(s, "uuid") != nil {
		return reject(kind, field, RuleFormat, "%q is not a valid id", s)
	}
	return nil
}
