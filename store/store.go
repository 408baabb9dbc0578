package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jacentio/murmur/constraint"
	"github.com/jacentio/murmur/model"
)

// Store validates and persists social-graph entities.
type Store struct {
	backend   Backend
	validator *constraint.Validator
	clock     *monotonic
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock. The store still guarantees strictly
// increasing timestamps on top of it.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = newMonotonic(c) }
}

// WithLogger sets the logger used for write diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Store over backend. The backend also serves the validator's
// uniqueness pre-check.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		validator: constraint.New(backend),
		clock:     newMonotonic(SystemClock),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validator returns the constraint validator used for writes.
func (s *Store) Validator() *constraint.Validator {
	return s.validator
}

// Create validates fields and inserts a new entity of kind.
func (s *Store) Create(ctx context.Context, kind model.Kind, fields model.Fields) (model.Document, error) {
	schema, err := model.SchemaFor(kind)
	if err != nil {
		return nil, err
	}
	fields = model.Coerce(fields)

	if err := s.validator.Validate(ctx, kind, fields, constraint.Options{}); err != nil {
		return nil, err
	}

	doc := make(model.Document, len(schema.Fields))
	for _, f := range schema.Fields {
		if f.Managed {
			continue
		}
		if v, ok := fields[f.Name]; ok {
			doc[f.Name] = copyValue(v)
		} else if f.HasDefault {
			doc[f.Name] = copyValue(f.Default)
		}
	}

	now := s.clock.Now()
	doc[model.FieldID] = uuid.NewString()
	doc[model.FieldCreatedAt] = now
	doc[model.FieldUpdatedAt] = now

	var uniques []UniqueValue
	for _, name := range schema.UniqueFields() {
		uniques = append(uniques, UniqueValue{Field: name, Value: doc.String(name)})
	}

	if err := s.backend.Insert(ctx, kind, doc, uniques); err != nil {
		s.logger.Debug("insert rejected", "kind", kind, "error", err)
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}
	return doc.Clone(), nil
}

// FindByID returns the entity of kind with id, or ErrNotFound.
func (s *Store) FindByID(ctx context.Context, kind model.Kind, id string) (model.Document, error) {
	if _, err := model.SchemaFor(kind); err != nil {
		return nil, err
	}
	item, err := s.backend.Get(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("find %s %s: %w", kind, id, err)
	}
	return item.Doc, nil
}

// FindMany returns the entities of kind selected by q.
func (s *Store) FindMany(ctx context.Context, kind model.Kind, q Query) ([]model.Document, error) {
	if err := q.Validate(kind); err != nil {
		return nil, err
	}
	docs, err := s.backend.Find(ctx, kind, q)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", kind, err)
	}
	return docs, nil
}

// Update re-validates the touched fields and applies patch to the entity.
// updatedAt always moves strictly forward.
func (s *Store) Update(ctx context.Context, kind model.Kind, id string, patch model.Fields) (model.Document, error) {
	schema, err := model.SchemaFor(kind)
	if err != nil {
		return nil, err
	}
	patch = model.Coerce(patch)

	item, err := s.backend.Get(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", kind, id, err)
	}

	opts := constraint.Options{Partial: true, SelfID: id}
	if err := s.validator.Validate(ctx, kind, patch, opts); err != nil {
		return nil, err
	}
	if len(patch) == 0 {
		return item.Doc, nil
	}

	set := make(model.Document, len(patch)+1)
	for k, v := range patch {
		set[k] = copyValue(v)
	}
	set[model.FieldUpdatedAt] = s.clock.After(item.Doc.UpdatedAt())

	var swaps []UniqueSwap
	for _, name := range schema.UniqueFields() {
		next, ok := set[name].(string)
		if !ok {
			continue
		}
		if prev := item.Doc.String(name); prev != next {
			swaps = append(swaps, UniqueSwap{Field: name, Old: prev, New: next})
		}
	}

	if err := s.backend.Update(ctx, kind, id, set, swaps, item.Version); err != nil {
		return nil, fmt.Errorf("update %s %s: %w", kind, id, err)
	}

	merged := item.Doc.Clone()
	for k, v := range set {
		merged[k] = v
	}
	return merged, nil
}

// Delete removes the entity unconditionally. Other entities keep any
// references they hold to it.
func (s *Store) Delete(ctx context.Context, kind model.Kind, id string) error {
	if _, err := model.SchemaFor(kind); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, kind, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	s.logger.Debug("entity deleted", "kind", kind, "id", id)
	return nil
}

// ApplyEdges appends to or removes from embedded reference sequences.
// All ops commit together or not at all.
func (s *Store) ApplyEdges(ctx context.Context, ops ...EdgeOp) error {
	if len(ops) == 0 {
		return nil
	}
	for _, op := range ops {
		schema, err := model.SchemaFor(op.Kind)
		if err != nil {
			return err
		}
		f, ok := schema.Field(op.Field)
		if !ok || f.Type != model.TypeRefList {
			return fmt.Errorf("%w: %s.%s is not a reference sequence", ErrInvalidEdge, op.Kind, op.Field)
		}
		if op.ID == "" || op.Target == "" {
			return fmt.Errorf("%w: owner and target ids are required", ErrInvalidEdge)
		}
	}

	if err := s.backend.ApplyEdges(ctx, ops, s.clock.Now()); err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("edge write failed", "ops", len(ops), "error", err)
		}
		return fmt.Errorf("apply edges: %w", err)
	}
	return nil
}

// LookupUnique exposes the backend's unique index.
func (s *Store) LookupUnique(ctx context.Context, kind model.Kind, field, value string) (string, bool, error) {
	return s.backend.LookupUnique(ctx, kind, field, value)
}

func copyValue(v any) any {
	if refs, ok := v.([]string); ok {
		return append([]string{}, refs...)
	}
	return v
}
