package txcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/marcodd23/go-txcore/pkg/logx"
)

// anchorSavepointName - the savepoint anchoring a naive-mode transaction
// inside the externally opened transaction block.
const anchorSavepointName = "txcore_savepoint"

// Options configures a Manager. The strategy is fixed for the lifetime of
// the connection; DisconnectCodes is the SQLSTATE set of the disconnect
// policy.
type Options struct {
	Strategy        Strategy
	DisconnectCodes []string
}

// QueryOptions - per-call options for a query issued inside a transaction.
type QueryOptions struct {
	// Savepoint wraps the single query in its own savepoint scope so that
	// its failure can be rolled back without aborting the enclosing
	// transaction.
	Savepoint bool
}

// Manager - top-level entry point of the transaction execution core for one
// logical connection.
//
// The Manager owns the per-transaction failed/committed state, routes
// per-call savepoint requests through savepoint scopes, verifies the
// server-reported transaction status after every round trip and applies the
// configured disconnect policy. It performs no internal parallel execution:
// exactly one command is in flight at any time, and serialization of
// concurrent callers on the same connection is a collaborator
// responsibility.
type Manager struct {
	exec        Executor
	supervisor  Supervisor
	tracker     *StatusTracker
	classifier  ErrorClassifier
	strategy    Strategy
	active      *TxContext
	terminating bool
	termReason  error
}

// NewManager - Manager constructor. The initial status belief is read from
// the executor, so a naive-strategy manager created after an external BEGIN
// starts out believing in_transaction.
func NewManager(exec Executor, supervisor Supervisor, opts Options) *Manager {
	return &Manager{
		exec:       exec,
		supervisor: supervisor,
		tracker:    NewStatusTracker(exec.CurrentStatus()),
		classifier: NewErrorClassifier(NewDisconnectPolicy(opts.DisconnectCodes...)),
		strategy:   opts.Strategy,
	}
}

// Status - the transaction status the manager currently believes, which
// after every verified round trip equals server truth.
func (m *Manager) Status() TxStatus {
	return m.tracker.Believed()
}

// Tx - transaction handle passed to the body of Transaction. Valid only
// within that body.
type Tx struct {
	mgr *Manager
	tc  *TxContext
}

// Query executes a single command inside the transaction.
func (t *Tx) Query(ctx context.Context, sql string, args ...any) (*CommandResult, error) {
	return t.mgr.query(ctx, QueryOptions{}, sql, args...)
}

// QueryWithOptions executes a single command inside the transaction,
// optionally wrapped in its own savepoint scope.
func (t *Tx) QueryWithOptions(ctx context.Context, opts QueryOptions, sql string, args ...any) (*CommandResult, error) {
	return t.mgr.query(ctx, opts, sql, args...)
}

// Exec executes a command inside the transaction and returns the number of
// rows affected.
func (t *Tx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	res, err := t.mgr.query(ctx, QueryOptions{}, sql, args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected, nil
}

// Rollback builds the control-flow error that unwinds to the nearest
// Transaction boundary with the given reason. The body must return it:
//
//	return tx.Rollback("stale inventory")
func (t *Tx) Rollback(reason any) error {
	return &RollbackError{Reason: reason}
}

// Query executes a single auto-commit command, or routes through the open
// transaction context when one exists.
func (m *Manager) Query(ctx context.Context, sql string, args ...any) (*CommandResult, error) {
	return m.query(ctx, QueryOptions{}, sql, args...)
}

// QueryWithOptions - like Query with per-call options. A savepoint request
// is rejected when no transaction is open, since there is no context to
// attach it to.
func (m *Manager) QueryWithOptions(ctx context.Context, opts QueryOptions, sql string, args ...any) (*CommandResult, error) {
	return m.query(ctx, opts, sql, args...)
}

// Exec executes a command and returns the number of rows affected.
func (m *Manager) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	res, err := m.query(ctx, QueryOptions{}, sql, args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected, nil
}

func (m *Manager) query(ctx context.Context, opts QueryOptions, sql string, args ...any) (*CommandResult, error) {
	tc := m.active

	if opts.Savepoint {
		if tc == nil {
			return nil, ErrNoTransaction
		}

		return m.withQuerySavepoint(ctx, tc, sql, args...)
	}

	if tc != nil && tc.failed {
		return nil, &InFailedTxError{}
	}

	res, err := m.roundTrip(ctx, KindQuery, sql, args...)
	if err != nil {
		var srvErr *ServerError
		if tc != nil && errors.As(err, &srvErr) {
			tc.markFailed(srvErr)
		}

		return nil, err
	}

	return res, nil
}

// roundTrip sends one command, verifies the reported status against the
// expectation derived from the command kind, and classifies any server
// error. The status check always precedes processing of any further
// command.
func (m *Manager) roundTrip(ctx context.Context, kind CommandKind, sql string, args ...any) (*CommandResult, error) {
	if m.terminating {
		return nil, &TerminationError{Reason: m.termReason}
	}

	res, err := m.exec.Execute(ctx, sql, args...)

	var termErr *TerminationError
	if errors.As(err, &termErr) {
		// The collaborator dropped the connection mid-command; there is no
		// trustworthy status left to verify.
		m.beginTermination(termErr.Reason)
		return nil, termErr
	}

	var srvErr *ServerError
	isServerErr := errors.As(err, &srvErr)
	if err != nil && !isServerErr {
		// Collaborator-level failure (cancellation, IO): the connection can
		// no longer be trusted either.
		m.beginTermination(err)
		return nil, &TerminationError{Reason: err}
	}

	expected := m.tracker.Expect(kind, isServerErr)
	if vErr := m.tracker.Update(m.exec.CurrentStatus(), expected); vErr != nil {
		m.beginTermination(vErr)
		m.supervisor.RequestTermination(vErr)

		return nil, &TerminationError{Reason: vErr}
	}

	if isServerErr {
		if m.classifier.Classify(srvErr) == ClassDisconnect {
			// The caller keeps this error as its ordinary synchronous
			// result; the termination itself is delivered asynchronously by
			// the supervisor.
			m.beginTermination(srvErr)
			m.supervisor.RequestTermination(srvErr)
		}

		return nil, srvErr
	}

	return res, nil
}

func (m *Manager) beginTermination(reason error) {
	if m.terminating {
		return
	}

	m.terminating = true
	m.termReason = reason
}

// Transaction runs body under the configured strategy and returns a
// definite outcome: nil on success, *RollbackError when the work was rolled
// back. An ordinary server error is never returned directly; only a
// termination (*TerminationError) or a misuse sentinel escapes that rule.
func (m *Manager) Transaction(ctx context.Context, body func(ctx context.Context, tx *Tx) error) error {
	if m.active != nil {
		return ErrNestedTransaction
	}

	if m.strategy == StrategyNaive {
		return m.naiveTransaction(ctx, body)
	}

	return m.strictTransaction(ctx, body)
}

// RunInTransaction runs body in a transaction and returns its typed result.
// On a rolled-back outcome the zero value of T is returned together with
// the *RollbackError carrying the rollback reason.
func RunInTransaction[T any](m *Manager, ctx context.Context, body func(ctx context.Context, tx *Tx) (T, error)) (T, error) {
	var out T

	err := m.Transaction(ctx, func(ctx context.Context, tx *Tx) error {
		v, err := body(ctx, tx)
		if err != nil {
			return err
		}

		out = v

		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return out, nil
}

func (m *Manager) strictTransaction(ctx context.Context, body func(ctx context.Context, tx *Tx) error) error {
	if _, err := m.roundTrip(ctx, KindBegin, "BEGIN"); err != nil {
		return err
	}

	tc := newTxContext(StrategyStrict)
	m.active = tc

	defer func() { m.active = nil }()

	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("started transaction: %d", tc.id))

	bodyErr := runBodyGuarded(func() error {
		return body(ctx, &Tx{mgr: m, tc: tc})
	}, func() {
		// Attempt to roll back before propagating the panic, unless the
		// connection has already become unresponsive.
		_ = m.rollbackStrict(ctx, tc)
	})

	var termErr *TerminationError
	if errors.As(bodyErr, &termErr) {
		return bodyErr
	}

	if bodyErr == nil && !tc.failed {
		_, err := m.roundTrip(ctx, KindCommit, "COMMIT")
		if err == nil {
			return nil
		}

		var srvErr *ServerError
		if !errors.As(err, &srvErr) {
			return err
		}

		// Commit rejected: the server already rolled the block back when it
		// refused the COMMIT, so the failure is translated into the
		// rollback-equivalent outcome rather than a distinct error. ROLLBACK
		// is only forced if a block is somehow still open.
		tc.markFailed(srvErr)

		if m.tracker.Believed() != StatusIdle {
			if rbErr := m.rollbackStrict(ctx, tc); rbErr != nil {
				return rbErr
			}
		}

		return &RollbackError{Reason: srvErr}
	}

	// Failed context or body error: the transaction ends in a rollback.
	if rbErr := m.rollbackStrict(ctx, tc); rbErr != nil {
		return rbErr
	}

	var rb *RollbackError
	if errors.As(bodyErr, &rb) {
		return rb
	}

	if bodyErr != nil {
		return &RollbackError{Reason: bodyErr}
	}

	// Body succeeded, but an earlier uncaught error left the context
	// failed; COMMIT is never sent against a failed context.
	return &RollbackError{Reason: tc.cause}
}

// rollbackStrict issues ROLLBACK. A server error on ROLLBACK can only be
// logged at this point; termination is the only error returned.
func (m *Manager) rollbackStrict(ctx context.Context, tc *TxContext) error {
	if m.terminating {
		return &TerminationError{Reason: m.termReason}
	}

	_, err := m.roundTrip(ctx, KindRollback, "ROLLBACK")
	if err != nil {
		var termErr *TerminationError
		if errors.As(err, &termErr) {
			return err
		}

		logx.GetLogger().LogError(ctx, fmt.Sprintf("error rolling back transaction: %d", tc.id), err)

		return nil
	}

	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("rolled back transaction: %d", tc.id))

	return nil
}

func (m *Manager) naiveTransaction(ctx context.Context, body func(ctx context.Context, tx *Tx) error) error {
	frame := &savepointFrame{name: anchorSavepointName}
	if _, err := m.roundTrip(ctx, KindSavepoint, "SAVEPOINT "+frame.name); err != nil {
		return err
	}

	tc := newTxContext(StrategyNaive)
	m.active = tc

	defer func() { m.active = nil }()

	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("anchored transaction %d on savepoint %s", tc.id, frame.name))

	bodyErr := runBodyGuarded(func() error {
		return body(ctx, &Tx{mgr: m, tc: tc})
	}, func() {
		// Re-establish the anchor boundary before propagating the panic so
		// the externally managed outer transaction stays usable.
		_, _ = m.exitScope(ctx, tc, frame, nil, &RollbackError{Reason: "panic in transaction body"})
	})

	var termErr *TerminationError
	if errors.As(bodyErr, &termErr) {
		return bodyErr
	}

	unitErr := bodyErr
	if unitErr == nil && tc.failed {
		// Uncaught earlier failure: releasing the anchor would be a commit,
		// so the outcome is the rollback equivalent carrying that failure.
		unitErr = tc.cause
	}

	if unitErr == nil {
		// Commit is simply the release of the anchor savepoint.
		if _, err := m.exitScope(ctx, tc, frame, nil, nil); err != nil {
			if errors.As(err, &termErr) {
				return err
			}

			return &RollbackError{Reason: err}
		}

		return nil
	}

	if _, err := m.exitScope(ctx, tc, frame, nil, unitErr); err != nil {
		if errors.As(err, &termErr) {
			return err
		}

		// A release failure replaces the unit's own result.
		unitErr = err
	}

	var rb *RollbackError
	if errors.As(unitErr, &rb) {
		return rb
	}

	return &RollbackError{Reason: unitErr}
}

// runBodyGuarded runs body, invoking onPanic before re-raising anything the
// body panicked with.
func runBodyGuarded(body func() error, onPanic func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			onPanic()
			panic(r)
		}
	}()

	return body()
}
