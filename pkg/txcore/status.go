package txcore

import "fmt"

// TxStatus is the transaction status of the server session. The single
// source of truth is the status carried on the most recent server response,
// as reported by Executor.CurrentStatus.
type TxStatus int

const (
	// StatusIdle - no transaction block is open.
	StatusIdle TxStatus = iota
	// StatusInTransaction - a transaction block is open and healthy.
	StatusInTransaction
	// StatusFailed - a transaction block is open but aborted; only rollback
	// commands are accepted until it ends.
	StatusFailed
)

func (s TxStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusInTransaction:
		return "in_transaction"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// CommandKind classifies the command just issued. The kind determines the
// transaction status the server is expected to report once the command has
// been processed.
type CommandKind int

const (
	// KindQuery - DML/SELECT; leaves the session status unchanged.
	KindQuery CommandKind = iota
	// KindBegin - BEGIN; opens a transaction block.
	KindBegin
	// KindCommit - COMMIT; closes the transaction block.
	KindCommit
	// KindRollback - ROLLBACK; closes the transaction block.
	KindRollback
	// KindSavepoint - SAVEPOINT <name>; only valid inside a transaction.
	KindSavepoint
	// KindRelease - RELEASE SAVEPOINT <name>; only valid inside a transaction.
	KindRelease
	// KindRollbackTo - ROLLBACK TO SAVEPOINT <name>; clears a failed
	// transaction back to the savepoint.
	KindRollbackTo
)

// StatusTracker derives and verifies the real server transaction status
// after every round trip. A mismatch between the derived expectation and the
// observed status is a protocol-safety violation: once the status is
// inconsistent, pipelined commands can no longer be trusted, so the
// violation is never retried or recovered.
type StatusTracker struct {
	believed TxStatus
}

// NewStatusTracker - StatusTracker constructor. The initial belief must come
// from the server itself (Executor.CurrentStatus), not from an assumption.
func NewStatusTracker(initial TxStatus) *StatusTracker {
	return &StatusTracker{believed: initial}
}

// Believed - the status the tracker currently holds as server truth.
func (t *StatusTracker) Believed() TxStatus {
	return t.believed
}

// Expect derives the status the server must report after the command just
// issued: BEGIN opens a block, COMMIT/ROLLBACK close it, savepoint commands
// keep it open, a plain query leaves the status unchanged. An error response
// aborts an open block, except on COMMIT/ROLLBACK: the server ends the block
// even when it rejects the command (deferred constraint checks run at
// commit), reporting idle. An error outside a block leaves the session idle.
func (t *StatusTracker) Expect(kind CommandKind, errored bool) TxStatus {
	if errored {
		if kind == KindCommit || kind == KindRollback {
			return StatusIdle
		}
		if t.believed == StatusIdle {
			return StatusIdle
		}
		return StatusFailed
	}

	switch kind {
	case KindBegin:
		return StatusInTransaction
	case KindCommit, KindRollback:
		return StatusIdle
	case KindSavepoint, KindRelease, KindRollbackTo:
		return StatusInTransaction
	default:
		return t.believed
	}
}

// Update verifies the observed status against the expectation and, when they
// agree, adopts it as the new belief. A mismatch returns a
// *ProtocolViolationError and leaves the belief untouched; the caller must
// terminate the connection before processing any further command.
func (t *StatusTracker) Update(observed, expected TxStatus) error {
	if observed != expected {
		return &ProtocolViolationError{Expected: expected, Observed: observed}
	}

	t.believed = observed

	return nil
}
