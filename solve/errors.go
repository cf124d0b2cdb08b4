// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrKind classifies the failures a solver can report.
type ErrKind int

const (
	// ErrInvalidInput bad dimensions, non-bracketing interval or invalid configuration.
	ErrInvalidInput ErrKind = iota + 1
	// ErrArraySize a supplied buffer or workspace does not match the bound dimensions.
	ErrArraySize
	// ErrOutOfMemory reserved for scratch acquisition failures;
	// never produced here since Go allocation failure panics.
	ErrOutOfMemory
	// ErrInvalidOperation an operation was invoked in an unusable state,
	// such as an unbound function or a non-descent search direction.
	ErrInvalidOperation
	// ErrConvergence the evaluation budget was exhausted before any stopping test passed.
	ErrConvergence
	// ErrDivergent a singular or indefinite linear system persisted after recovery attempts.
	ErrDivergent
	// ErrSpurious the iteration stalled at a non-decreasing point.
	ErrSpurious
	// ErrToleranceTooSmall the requested tolerance is finer than floating-point allows.
	ErrToleranceTooSmall
)

func (k ErrKind) String() string {
	switch k {
	case ErrInvalidInput:
		return "invalid input"
	case ErrArraySize:
		return "array size mismatch"
	case ErrOutOfMemory:
		return "out of memory"
	case ErrInvalidOperation:
		return "invalid operation"
	case ErrConvergence:
		return "convergence failure"
	case ErrDivergent:
		return "divergent behavior"
	case ErrSpurious:
		return "spurious convergence"
	case ErrToleranceTooSmall:
		return "tolerance too small"
	}
	return "unknown"
}

// Error is the failure type reported by every solver in this module.
// Op names the originating operation and Err carries the cause chain.
type Error struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the ErrKind from err, or 0 when err does not
// originate from this module.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func errKind(kind ErrKind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

func wrapKind(kind ErrKind, op string, cause error, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.Wrap(cause, msg)}
}
