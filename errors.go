// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlbuilder

import (
	"database/sql"

	"github.com/pkg/errors"
)

// Errors returned by this package wrap one of the sentinels below so that the
// kind of failure can be checked with errors.Is:
//
//	if errors.Is(err, sqlbuilder.ErrInvalidOperation) {
//		...
//	}
var (
	// ErrInvalidArgument is returned for malformed construction input such as
	// a nil fragment, a nil parameter or an empty IN list.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidOperation is returned when a builder or the materializer is
	// used in a state that does not allow the operation.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrNotImplemented is returned for predicate shapes that are recognised
	// but cannot be translated to SQL.
	ErrNotImplemented = errors.New("not implemented")
)

var ErrNoRows = sql.ErrNoRows
var ErrTXDone = sql.ErrTxDone

func invalidArgument(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}

func invalidOperation(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidOperation, format, args...)
}

func notImplemented(format string, args ...any) error {
	return errors.Wrapf(ErrNotImplemented, format, args...)
}
