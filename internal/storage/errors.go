// Package storage holds what the in-memory and SQLite backends share.
package storage

import (
	"errors"
	"fmt"
)

// ErrPersistence marks failures of the underlying store. Callers surface it
// without retrying.
var ErrPersistence = errors.New("persistence failure")

// Wrap tags err as a persistence failure for op. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
