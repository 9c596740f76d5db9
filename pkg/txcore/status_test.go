package txcore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marcodd23/go-txcore/pkg/txcore"
)

// TestStatusTrackerExpect - expectation derived from the command kind and
// whether the command came back as an error.
func TestStatusTrackerExpect(t *testing.T) {
	tests := []struct {
		name     string
		believed txcore.TxStatus
		kind     txcore.CommandKind
		errored  bool
		expected txcore.TxStatus
	}{
		{name: "query outside block keeps idle", believed: txcore.StatusIdle, kind: txcore.KindQuery, expected: txcore.StatusIdle},
		{name: "query inside block keeps in_transaction", believed: txcore.StatusInTransaction, kind: txcore.KindQuery, expected: txcore.StatusInTransaction},
		{name: "begin opens block", believed: txcore.StatusIdle, kind: txcore.KindBegin, expected: txcore.StatusInTransaction},
		{name: "commit closes block", believed: txcore.StatusInTransaction, kind: txcore.KindCommit, expected: txcore.StatusIdle},
		{name: "rollback closes block", believed: txcore.StatusFailed, kind: txcore.KindRollback, expected: txcore.StatusIdle},
		{name: "savepoint keeps block open", believed: txcore.StatusInTransaction, kind: txcore.KindSavepoint, expected: txcore.StatusInTransaction},
		{name: "release keeps block open", believed: txcore.StatusInTransaction, kind: txcore.KindRelease, expected: txcore.StatusInTransaction},
		{name: "rollback to clears failed block", believed: txcore.StatusFailed, kind: txcore.KindRollbackTo, expected: txcore.StatusInTransaction},
		{name: "error outside block leaves idle", believed: txcore.StatusIdle, kind: txcore.KindQuery, errored: true, expected: txcore.StatusIdle},
		{name: "error inside block aborts it", believed: txcore.StatusInTransaction, kind: txcore.KindQuery, errored: true, expected: txcore.StatusFailed},
		{name: "error on commit still ends block", believed: txcore.StatusInTransaction, kind: txcore.KindCommit, errored: true, expected: txcore.StatusIdle},
		{name: "error on rollback still ends block", believed: txcore.StatusFailed, kind: txcore.KindRollback, errored: true, expected: txcore.StatusIdle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := txcore.NewStatusTracker(tt.believed)
			require.Equal(t, tt.expected, tracker.Expect(tt.kind, tt.errored))
		})
	}
}

// TestStatusTrackerUpdate - a matching report becomes the new belief; a
// mismatch is a protocol violation that leaves the belief untouched.
func TestStatusTrackerUpdate(t *testing.T) {
	tracker := txcore.NewStatusTracker(txcore.StatusIdle)

	err := tracker.Update(txcore.StatusInTransaction, txcore.StatusInTransaction)
	require.NoError(t, err)
	require.Equal(t, txcore.StatusInTransaction, tracker.Believed())

	err = tracker.Update(txcore.StatusIdle, txcore.StatusInTransaction)

	var violation *txcore.ProtocolViolationError
	require.ErrorAs(t, err, &violation)
	require.Equal(t, txcore.StatusInTransaction, violation.Expected)
	require.Equal(t, txcore.StatusIdle, violation.Observed)
	require.EqualError(t, violation, "unexpected status: idle")
	require.Equal(t, txcore.StatusInTransaction, tracker.Believed())
}

// TestTxStatusString - the wire-facing names of the status values.
func TestTxStatusString(t *testing.T) {
	require.Equal(t, "idle", txcore.StatusIdle.String())
	require.Equal(t, "in_transaction", txcore.StatusInTransaction.String())
	require.Equal(t, "failed", txcore.StatusFailed.String())
}
