package storage

import "errors"

var (
	// ErrConfiguration reports a missing or invalid connection parameter.
	ErrConfiguration = errors.New("storage: configuration error")
	// ErrConnection reports a connect attempt while already connected, or an
	// operation attempted while disconnected.
	ErrConnection = errors.New("storage: connection error")
	// ErrTransactionState reports begin/commit/select called in the wrong
	// transaction state.
	ErrTransactionState = errors.New("storage: transaction state error")
	// ErrArityMismatch reports an insert whose columns and values differ in
	// length (or are empty).
	ErrArityMismatch = errors.New("storage: columns/values arity mismatch")
	// ErrUnknownDialect reports a driver name with no registered dialect.
	ErrUnknownDialect = errors.New("storage: unknown dialect")
)
