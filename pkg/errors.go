package densehash

// errors.go implements the error taxonomy of §7. Duplicate insert and missing
// erase targets are normal (bool/int) returns, not errors — only the four
// kinds below are ever signalled as errors, as sentinel values checked with
// errors.Is. KeyNotFoundError is the one wrapper type; it unwraps to
// ErrKeyNotFound.
//
// © 2025 densehash authors. MIT License.

import (
	"errors"
	"fmt"
)

// ErrKeyNotFound is returned by At when the key is absent.
var ErrKeyNotFound = errors.New("densehash: key not found")

// ErrCapacityExhausted signals that a resize target would place entries
// beyond the addressable limit the packed entry_index field can hold
// (2^46-1, internal/bucket.MaxEntryIndex). New, NewConcurrent and Reserve
// return it directly; insertInternal/partition.growOnce reach the same
// check but have no error-return slot in their callers' public signatures
// (§6.2), so there it is raised as a panic instead — consistent with §7
// describing this condition as "Fatal."
var ErrCapacityExhausted = errors.New("densehash: capacity exhausted")

// ErrAllocationFailure signals that a requested capacity cannot be rounded
// up to a power of two without overflowing int — the one allocation failure
// this table can detect before ever calling make(). New, NewConcurrent and
// Reserve return it directly and leave the table in its pre-operation
// state; a resize triggered from Insert/Index has no error-return slot to
// report it through, so there it is raised as a panic instead.
var ErrAllocationFailure = errors.New("densehash: allocation failure")

// ErrInvalidOption is returned by New when a functional option receives an
// out-of-range value (e.g. a load factor outside (0, 1)).
var ErrInvalidOption = errors.New("densehash: invalid option")

// KeyNotFoundError wraps ErrKeyNotFound with the offending key for callers
// that want it in logs without a second lookup.
type KeyNotFoundError[K comparable] struct {
	Key K
}

func (e *KeyNotFoundError[K]) Error() string {
	return fmt.Sprintf("densehash: key not found: %v", e.Key)
}

func (e *KeyNotFoundError[K]) Unwrap() error { return ErrKeyNotFound }

// newKeyNotFound builds a KeyNotFoundError that satisfies errors.Is(err,
// ErrKeyNotFound).
func newKeyNotFound[K comparable](key K) error {
	return &KeyNotFoundError[K]{Key: key}
}
