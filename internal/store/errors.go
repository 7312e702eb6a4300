package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDepthCycle is returned by CalculateSessionDepth when the parent chain
// exceeds the hard walk limit, which only happens if the adjacency list
// contains a cycle.
var ErrDepthCycle = errors.New("session parent chain exceeds depth limit (cycle?)")

// DatabaseError wraps any SQL-level failure so callers can distinguish
// storage faults from domain errors.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// dbErr wraps err as a DatabaseError unless it is nil or a domain
// sentinel that should pass through untouched.
func dbErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDepthCycle) {
		return err
	}
	return &DatabaseError{Op: op, Err: err}
}
