// Package cos provides common low-level types, errors, and utilities.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"errors"
	"fmt"
	"sync"

	pkgerrors "github.com/pkg/errors"

	"github.com/jkluft/conartist/cmn/debug"
)

// Sentinel error kinds, per the error-handling design: operations on hot
// paths return one of these (or wrap one of these) rather than raising
// exceptions across the append loop.
var (
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrIO                = errors.New("i/o error")
	ErrInvariantViolated = errors.New("invariant violated")
	ErrStopped           = errors.New("stopped")
)

// NewIOErr wraps an OS-level cause with file/op context and a stack trace,
// keeping ErrIO in its chain so callers can still `errors.Is(err, cos.ErrIO)`.
func NewIOErr(op, path string, cause error) error {
	wrapped := pkgerrors.Wrapf(cause, "%s %s", op, path)
	return fmt.Errorf("%w: %w", ErrIO, wrapped)
}

// Errs is a capped, deduplicating multi-error accumulator, used where a scan
// or batch operation must keep going after a per-item failure and report
// all of them at the end (e.g. the stream manager skipping bad files).
type Errs struct {
	errs []error
	mu   sync.Mutex
}

const maxErrs = 16

func (e *Errs) Add(err error) {
	debug.Assert(err != nil)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
	}
}

func (e *Errs) Cnt() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.errs)
}

func (e *Errs) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return nil
	}
	return errors.Join(e.errs...)
}
