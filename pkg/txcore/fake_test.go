package txcore_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/marcodd23/go-txcore/pkg/txcore"
)

// fakeServer emulates the status bookkeeping of a single server session plus
// a canned response table, so the manager can be exercised without a socket.
// It implements both txcore.Executor and txcore.Supervisor.
type fakeServer struct {
	t *testing.T

	status       txcore.TxStatus
	sent         []string
	responses    map[string]fakeResponse
	statusAfter  map[string]txcore.TxStatus
	terminations []error
	closed       bool
}

type fakeResponse struct {
	result *txcore.CommandResult
	err    *txcore.ServerError
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	return &fakeServer{
		t:           t,
		status:      txcore.StatusIdle,
		responses:   make(map[string]fakeResponse),
		statusAfter: make(map[string]txcore.TxStatus),
	}
}

// respondWith - canned successful result for an exact SQL text.
func (f *fakeServer) respondWith(sql string, result *txcore.CommandResult) {
	f.responses[sql] = fakeResponse{result: result}
}

// failWith - canned error response for an exact SQL text.
func (f *fakeServer) failWith(sql, code, message string) {
	f.responses[sql] = fakeResponse{err: &txcore.ServerError{Severity: "ERROR", Code: code, Message: message}}
}

// forceStatusAfter overrides the status reported after an exact SQL text,
// used to inject a status desync.
func (f *fakeServer) forceStatusAfter(sql string, status txcore.TxStatus) {
	f.statusAfter[sql] = status
}

func (f *fakeServer) countExact(sql string) int {
	n := 0
	for _, sent := range f.sent {
		if sent == sql {
			n++
		}
	}

	return n
}

func (f *fakeServer) countPrefix(prefix string) int {
	n := 0
	for _, sent := range f.sent {
		if strings.HasPrefix(sent, prefix) {
			n++
		}
	}

	return n
}

func (f *fakeServer) Execute(ctx context.Context, sql string, args ...any) (*txcore.CommandResult, error) {
	if f.closed {
		return nil, &txcore.TerminationError{Reason: errors.New("connection closed")}
	}

	f.sent = append(f.sent, sql)

	res, err := f.respond(sql)

	// Session status transition, mirroring the server. COMMIT and ROLLBACK
	// end the block even when they fail.
	switch {
	case err != nil:
		if sql == "COMMIT" || sql == "ROLLBACK" {
			f.status = txcore.StatusIdle
		} else if f.status != txcore.StatusIdle {
			f.status = txcore.StatusFailed
		}
	case sql == "BEGIN":
		f.status = txcore.StatusInTransaction
	case sql == "COMMIT", sql == "ROLLBACK":
		f.status = txcore.StatusIdle
	case strings.HasPrefix(sql, "SAVEPOINT "),
		strings.HasPrefix(sql, "RELEASE SAVEPOINT "),
		strings.HasPrefix(sql, "ROLLBACK TO SAVEPOINT "):
		f.status = txcore.StatusInTransaction
	}

	if forced, ok := f.statusAfter[sql]; ok {
		f.status = forced
	}

	if err != nil {
		return nil, err
	}

	if res == nil {
		res = &txcore.CommandResult{}
	}

	return res, nil
}

// respond applies the aborted-session rule before the canned table: inside a
// failed transaction block only rollback and commit commands are accepted.
func (f *fakeServer) respond(sql string) (*txcore.CommandResult, error) {
	if f.status == txcore.StatusFailed &&
		sql != "ROLLBACK" && sql != "COMMIT" &&
		!strings.HasPrefix(sql, "ROLLBACK TO SAVEPOINT ") {
		return nil, &txcore.ServerError{
			Severity: "ERROR",
			Code:     "25P02",
			Message:  "current transaction is aborted, commands ignored until end of transaction block",
		}
	}

	if resp, ok := f.responses[sql]; ok {
		if resp.err != nil {
			return nil, resp.err
		}

		return resp.result, nil
	}

	return &txcore.CommandResult{}, nil
}

func (f *fakeServer) CurrentStatus() txcore.TxStatus {
	return f.status
}

func (f *fakeServer) RequestTermination(reason error) {
	f.terminations = append(f.terminations, reason)
	f.closed = true
}
