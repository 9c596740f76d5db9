package txcore

import (
	"errors"
	"fmt"
)

// Sentinel errors for misuse of the Manager surface.
var (
	// ErrNestedTransaction - Transaction was called while a transaction is
	// already open on this connection. One BEGIN per context.
	ErrNestedTransaction = errors.New("transaction already in progress on this connection")

	// ErrNoTransaction - a per-query savepoint was requested outside any
	// Transaction call, so there is no context to attach it to.
	ErrNoTransaction = errors.New("savepoint option requires an enclosing transaction")
)

// ServerError - structured error response returned by the server for one
// command. It is always surfaced to the caller as an ordinary result; the
// ErrorClassifier decides whether the connection additionally terminates
// after the error has been returned.
type ServerError struct {
	Severity string
	Code     string // SQLSTATE
	Message  string
}

// Error - return the error string.
func (e *ServerError) Error() string {
	if e.Severity == "" {
		return fmt.Sprintf("%s (SQLSTATE %s)", e.Message, e.Code)
	}

	return fmt.Sprintf("%s: %s (SQLSTATE %s)", e.Severity, e.Message, e.Code)
}

// ProtocolViolationError - the believed transaction status disagrees with
// the status the server reported. Always fatal: it is never returned as an
// ordinary error result, only as the reason of an abrupt termination.
type ProtocolViolationError struct {
	Expected TxStatus
	Observed TxStatus
}

// Error - return the error string.
func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Observed)
}

// InFailedTxError - synthetic local error for any command attempted against
// an already failed transaction context. Generated without contacting the
// server.
type InFailedTxError struct{}

// Error - return the error string.
func (e *InFailedTxError) Error() string {
	return "current transaction is failed, commands ignored until rollback"
}

// ReleaseError - a RELEASE SAVEPOINT command failed, so the rollback
// boundary could not be cleanly re-established. It becomes the result of
// the savepoint scope and marks the parent context failed.
type ReleaseError struct {
	Savepoint string
	Cause     *ServerError
}

// Error - return the error string.
func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release of savepoint %s failed: %s", e.Savepoint, e.Cause.Error())
}

// Unwrap - the server error that failed the release.
func (e *ReleaseError) Unwrap() error {
	return e.Cause
}

// TerminationError - typed abrupt-termination event. It is delivered on the
// same call path the last awaited command used, so every party awaiting the
// connection observes the identical reason.
type TerminationError struct {
	Reason error
}

// Error - return the error string.
func (e *TerminationError) Error() string {
	return fmt.Sprintf("connection terminated: %v", e.Reason)
}

// Unwrap - the reason the connection was terminated.
func (e *TerminationError) Unwrap() error {
	return e.Reason
}

// RollbackError - the rolled-back outcome of Transaction. Reason is either
// the value passed to Tx.Rollback or the error that forced the rollback.
type RollbackError struct {
	Reason any
}

// Error - return the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("transaction rolled back: %v", e.Reason)
}

// Unwrap - the underlying error when the rollback reason is one.
func (e *RollbackError) Unwrap() error {
	if err, ok := e.Reason.(error); ok {
		return err
	}

	return nil
}
