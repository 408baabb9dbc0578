// Package store is the entity store of the social graph.
//
// A [Store] assigns identifiers and timestamps, runs the constraint validator
// and persists documents through a [Backend]. Backends own durability and the
// authoritative guarantees the validator can only pre-check:
//
//   - unique values (Account externalId, email, username) are enforced by the
//     backend at write time, so concurrent inserts cannot both succeed
//   - reference-sequence appends are atomic, so concurrent likes or follows
//     are never lost
//   - updatedAt is strictly increasing per entity
//
// Two backends ship with the module: [github.com/jacentio/murmur/store/dynamo]
// and [github.com/jacentio/murmur/store/sqlite].
//
// # Errors
//
//   - [ErrNotFound] - entity doesn't exist
//   - [ErrAlreadyExists] - entity with ID already exists
//   - [ErrConcurrentModification] - optimistic lock failed
//   - [constraint.ValidationError] - a field was rejected
//   - [constraint.UniquenessError] - a unique value is already taken
//
// Any other error comes from the backend and is returned wrapped with the
// failing operation; the store never retries.
package store
