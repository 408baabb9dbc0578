package store

import (
	"context"
	"time"

	"github.com/jacentio/murmur/model"
)

// Item is a stored document together with its optimistic lock version.
type Item struct {
	Doc     model.Document
	Version int64
}

// UniqueValue is a unique-constraint claim written with an insert.
type UniqueValue struct {
	Field string
	Value string
}

// UniqueSwap replaces a unique-constraint claim during an update.
type UniqueSwap struct {
	Field string
	Old   string
	New   string
}

// EdgeOp appends to or removes from a reference sequence embedded in a document.
type EdgeOp struct {
	Kind   model.Kind
	ID     string
	Field  string
	Target string

	// Remove deletes occurrences of Target instead of appending it.
	Remove bool

	// All removes every occurrence; otherwise only the first is removed.
	All bool
}

// Backend is the persistence contract of the store.
type Backend interface {
	// Insert persists a new document and claims its unique values in one atomic
	// write. A taken value fails with a *constraint.UniquenessError; an existing
	// id fails with ErrAlreadyExists.
	Insert(ctx context.Context, kind model.Kind, doc model.Document, uniques []UniqueValue) error

	// Get returns the document with id, or ErrNotFound.
	Get(ctx context.Context, kind model.Kind, id string) (*Item, error)

	// Update sets the given fields if the stored version still equals
	// expectedVersion, swapping unique claims atomically with the write.
	Update(ctx context.Context, kind model.Kind, id string, set model.Document, swaps []UniqueSwap, expectedVersion int64) error

	// Delete removes the document and releases its unique claims.
	// References held by other documents are left untouched.
	Delete(ctx context.Context, kind model.Kind, id string) error

	// Find returns the documents of kind matching q, sorted and limited.
	Find(ctx context.Context, kind model.Kind, q Query) ([]model.Document, error)

	// LookupUnique returns the id of the entity holding value for field.
	LookupUnique(ctx context.Context, kind model.Kind, field, value string) (string, bool, error)

	// ApplyEdges applies all ops atomically. Appends never lose concurrent
	// appends to the same sequence. Every touched document gets an updatedAt
	// of at least at and strictly greater than its previous value.
	ApplyEdges(ctx context.Context, ops []EdgeOp, at time.Time) error
}

// RemovalIndexes returns the positions in refs that a removal op deletes.
func (op EdgeOp) RemovalIndexes(refs []string) []int {
	var idx []int
	for i, ref := range refs {
		if ref != op.Target {
			continue
		}
		idx = append(idx, i)
		if !op.All {
			break
		}
	}
	return idx
}

// Apply returns a copy of refs with op applied. Appends never deduplicate.
func (op EdgeOp) Apply(refs []string) []string {
	out := append([]string{}, refs...)
	if !op.Remove {
		return append(out, op.Target)
	}
	drop := op.RemovalIndexes(refs)
	for i := len(drop) - 1; i >= 0; i-- {
		out = append(out[:drop[i]], out[drop[i]+1:]...)
	}
	return out
}
