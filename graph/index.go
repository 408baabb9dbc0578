// Package graph maintains the directed edges embedded in entities: followers
// and following on accounts, likes and comments on posts, likes on comments.
//
// Sequences are ordered and keep duplicates: liking a post twice leaves the
// liker in the sequence twice. Targets are not checked for existence, so a
// sequence may hold ids of deleted entities until they are pruned.
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacentio/murmur/model"
	"github.com/jacentio/murmur/store"
)

// Store is the part of the entity store the index writes through.
type Store interface {
	ApplyEdges(ctx context.Context, ops ...store.EdgeOp) error
	FindByID(ctx context.Context, kind model.Kind, id string) (model.Document, error)
}

// RemoveMode selects which occurrences RemoveEdge deletes.
type RemoveMode int

const (
	// RemoveFirst deletes the first occurrence only.
	RemoveFirst RemoveMode = iota
	// RemoveAll deletes every occurrence.
	RemoveAll
)

// Index reads and writes edges.
type Index struct {
	store Store
}

// New creates an Index writing through s.
func New(s Store) *Index {
	return &Index{store: s}
}

// AddEdge appends targetID to the owner's sequence for e.
func (ix *Index) AddEdge(ctx context.Context, e Edge, ownerID, targetID string) error {
	if err := ix.store.ApplyEdges(ctx, appendOp(e, ownerID, targetID)); err != nil {
		return fmt.Errorf("add %s edge: %w", e.Name, err)
	}
	return nil
}

// RemoveEdge removes targetID from the owner's sequence for e.
// Removing an absent target is not an error.
func (ix *Index) RemoveEdge(ctx context.Context, e Edge, ownerID, targetID string, mode RemoveMode) error {
	if err := ix.store.ApplyEdges(ctx, removeOp(e, ownerID, targetID, mode)); err != nil {
		return fmt.Errorf("remove %s edge: %w", e.Name, err)
	}
	return nil
}

// Follow records that subject follows object: subject.following and
// object.followers are appended in one atomic write, so the two sides
// cannot drift apart. Both accounts must exist.
func (ix *Index) Follow(ctx context.Context, subjectID, objectID string) error {
	err := ix.store.ApplyEdges(ctx,
		appendOp(Following, subjectID, objectID),
		appendOp(Followers, objectID, subjectID),
	)
	if err != nil {
		return fmt.Errorf("follow: %w", err)
	}
	return nil
}

// Unfollow removes every occurrence of the follow relation from both sides
// in one atomic write.
func (ix *Index) Unfollow(ctx context.Context, subjectID, objectID string) error {
	err := ix.store.ApplyEdges(ctx,
		removeOp(Following, subjectID, objectID, RemoveAll),
		removeOp(Followers, objectID, subjectID, RemoveAll),
	)
	if err != nil {
		return fmt.Errorf("unfollow: %w", err)
	}
	return nil
}

// Targets returns the owner's sequence for e.
func (ix *Index) Targets(ctx context.Context, e Edge, ownerID string) ([]string, error) {
	doc, err := ix.store.FindByID(ctx, e.OwnerKind, ownerID)
	if err != nil {
		return nil, err
	}
	return doc.Refs(e.Field), nil
}

// Prune removes every occurrence of targetID from the sequences of the
// given owners. Owners that no longer exist are skipped.
func (ix *Index) Prune(ctx context.Context, e Edge, ownerIDs []string, targetID string) (int, error) {
	pruned := 0
	seen := make(map[string]bool, len(ownerIDs))
	for _, owner := range ownerIDs {
		if seen[owner] {
			continue
		}
		seen[owner] = true

		err := ix.store.ApplyEdges(ctx, removeOp(e, owner, targetID, RemoveAll))
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return pruned, fmt.Errorf("prune %s edge of %s: %w", e.Name, owner, err)
		}
		pruned++
	}
	return pruned, nil
}

func appendOp(e Edge, ownerID, targetID string) store.EdgeOp {
	return store.EdgeOp{Kind: e.OwnerKind, ID: ownerID, Field: e.Field, Target: targetID}
}

func removeOp(e Edge, ownerID, targetID string, mode RemoveMode) store.EdgeOp {
	return store.EdgeOp{
		Kind:   e.OwnerKind,
		ID:     ownerID,
		Field:  e.Field,
		Target: targetID,
		Remove: true,
		All:    mode == RemoveAll,
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
