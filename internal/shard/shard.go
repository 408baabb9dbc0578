// Package shard provides partition key generation for distributed DynamoDB tables.
package shard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// UniqueSortKey is the sort key of every unique constraint record.
const UniqueSortKey = "CONSTRAINT"

// UniqueConstraintPK computes a hash-distributed partition key for a unique constraint.
// Uniqueness is global per entity kind, so the key depends only on kind, field and value.
// Hashing spreads constraints across partitions and keeps raw values (emails) out of keys.
func UniqueConstraintPK(kind, field, value string) string {
	data := fmt.Sprintf("%s#%s#%s", kind, field, value)
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:16]) // 128-bit hash as hex
}
