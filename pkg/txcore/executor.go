package txcore

import (
	"context"
)

// CommandResult - structured outcome of one successful command round trip.
type CommandResult struct {
	Columns      []string
	Rows         [][]any
	RowsAffected int64
}

// Executor is the "execute one command, get one structured outcome"
// primitive consumed from the wire-level collaborator. Exactly one command
// is in flight per connection at any time; serialization of concurrent
// callers is the collaborator's responsibility.
//
// Execute returns (*CommandResult, nil) for a completed command,
// (nil, *ServerError) for a structured error response, and
// (nil, *TerminationError) when the connection dropped mid-command.
type Executor interface {
	Execute(ctx context.Context, sql string, args ...any) (*CommandResult, error)
	// CurrentStatus - the transaction status carried on the most recent
	// server response.
	CurrentStatus() TxStatus
}

// Supervisor owns the socket. RequestTermination is fire-and-forget: the
// collaborator closes the connection and delivers a termination signal,
// carrying reason, to every party awaiting it.
type Supervisor interface {
	RequestTermination(reason error)
}
