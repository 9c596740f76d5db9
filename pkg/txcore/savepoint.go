package txcore

import (
	"context"
	"errors"
)

// savepointFrame - one live savepoint scope: an explicit per-query
// savepoint, or the anchor savepoint of a naive-mode transaction. Destroyed
// on release.
type savepointFrame struct {
	name     string
	released bool
}

// withQuerySavepoint executes one command as a nested, independently
// rollback-able segment inside the open transaction.
//
// Entering on an already failed context sends no SAVEPOINT (it would itself
// fail server-side); the call fails fast with the local in-failed-transaction
// error instead.
func (m *Manager) withQuerySavepoint(ctx context.Context, tc *TxContext, sql string, args ...any) (*CommandResult, error) {
	if tc.failed {
		return nil, &InFailedTxError{}
	}

	frame := &savepointFrame{name: tc.nextSavepointName()}
	if _, err := m.roundTrip(ctx, KindSavepoint, "SAVEPOINT "+frame.name); err != nil {
		var srvErr *ServerError
		if errors.As(err, &srvErr) {
			tc.markFailed(srvErr)
		}

		return nil, err
	}

	res, unitErr := m.roundTrip(ctx, KindQuery, sql, args...)

	return m.exitScope(ctx, tc, frame, res, unitErr)
}

// exitScope re-establishes the rollback boundary when a savepoint scope
// ends: a failed unit is rolled back to the frame and the frame is then
// unconditionally released; a successful unit releases the frame directly.
//
// Exactly one of unit success, unit error or release failure is returned,
// never a combination. A release failure on a non-failed context becomes
// the returned result and marks the context failed, because the rollback
// boundary could not be cleanly re-established; on an already failed
// context it neither re-fails the context nor replaces the unit's result.
func (m *Manager) exitScope(ctx context.Context, tc *TxContext, frame *savepointFrame, res *CommandResult, unitErr error) (*CommandResult, error) {
	var termErr *TerminationError
	if errors.As(unitErr, &termErr) {
		return nil, unitErr
	}

	if m.terminating {
		// A disconnect decision is already in flight; recovery commands
		// would race the socket teardown.
		if unitErr != nil {
			return res, unitErr
		}

		return nil, &TerminationError{Reason: m.termReason}
	}

	if unitErr != nil {
		// Roll the transaction back to the frame so the failure does not
		// escape to the enclosing context.
		if _, rbErr := m.roundTrip(ctx, KindRollbackTo, "ROLLBACK TO SAVEPOINT "+frame.name); rbErr != nil {
			var srvErr *ServerError
			if !errors.As(rbErr, &srvErr) {
				return nil, rbErr
			}

			tc.markFailed(srvErr)
		}
	}

	alreadyFailed := tc.failed

	_, relErr := m.roundTrip(ctx, KindRelease, "RELEASE SAVEPOINT "+frame.name)
	frame.released = true

	if relErr != nil {
		var srvErr *ServerError
		if !errors.As(relErr, &srvErr) {
			return nil, relErr
		}

		if !alreadyFailed {
			relFailure := &ReleaseError{Savepoint: frame.name, Cause: srvErr}
			tc.markFailed(relFailure)

			return nil, relFailure
		}
	}

	if unitErr != nil {
		return nil, unitErr
	}

	return res, nil
}
