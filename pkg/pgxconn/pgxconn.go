package pgxconn

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/marcodd23/go-txcore/pkg/configx"
	"github.com/marcodd23/go-txcore/pkg/errorx"
	"github.com/marcodd23/go-txcore/pkg/logx"
	"github.com/marcodd23/go-txcore/pkg/txcore"
)

//###################################
//#     Postgres wire executor      #
//###################################

// Conn - single PostgreSQL connection implementing txcore.Executor and
// txcore.Supervisor on top of pgx. The transaction status reported by the
// server on every ReadyForQuery message is exposed through CurrentStatus.
//
// Exactly one command may be in flight at a time; serializing concurrent
// callers is the responsibility of whoever owns the Conn.
type Conn struct {
	conn *pgx.Conn
	id   uuid.UUID

	mu         sync.Mutex
	terminated bool
	termReason error
}

// Connect establishes a single connection to the database.
func Connect(ctx context.Context, dbConf configx.ConnectionConfig) (*Conn, error) {
	if dbConf.DBName == "" {
		return nil, errorx.NewDatabaseError("error creating connection: DB_Name is EMPTY")
	}

	if dbConf.User == "" {
		return nil, errorx.NewDatabaseError("error creating connection: DB_User is EMPTY")
	}

	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		dbConf.User,
		dbConf.Password,
		dbConf.Host,
		dbConf.Port,
		dbConf.DBName)

	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to database")
	}

	connId := uuid.New()

	logx.
		GetLogger().
		LogInfo(ctx, fmt.Sprintf("Connected to DB=%s, HOST=%s, PORT=%d, CONN_ID=%s",
			dbConf.DBName,
			dbConf.Host,
			dbConf.Port,
			connId))

	return &Conn{conn: conn, id: connId}, nil
}

// Id - unique identifier of this connection, used in log fields.
func (c *Conn) Id() uuid.UUID {
	return c.id
}

// Closed reports whether the connection has been closed, either by
// RequestTermination or by the server going away.
func (c *Conn) Closed() bool {
	return c.conn.IsClosed()
}

// Execute runs one command and collects its complete result. Server error
// responses come back as *txcore.ServerError; a dropped connection comes
// back as *txcore.TerminationError carrying the termination reason.
func (c *Conn) Execute(ctx context.Context, sql string, args ...any) (*txcore.CommandResult, error) {
	if terminated, reason := c.terminationState(); terminated || c.conn.IsClosed() {
		return nil, &txcore.TerminationError{Reason: reason}
	}

	rows, err := c.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, c.mapError(err)
	}

	result := &txcore.CommandResult{}

	for _, fd := range rows.FieldDescriptions() {
		result.Columns = append(result.Columns, fd.Name)
	}

	for rows.Next() {
		values, valErr := rows.Values()
		if valErr != nil {
			rows.Close()
			return nil, c.mapError(valErr)
		}

		result.Rows = append(result.Rows, values)
	}

	rows.Close()

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, c.mapError(rowsErr)
	}

	result.RowsAffected = rows.CommandTag().RowsAffected()

	return result, nil
}

// CurrentStatus - the transaction status byte of the most recent
// ReadyForQuery message: I (idle), T (in transaction), E (failed).
func (c *Conn) CurrentStatus() txcore.TxStatus {
	switch c.conn.PgConn().TxStatus() {
	case 'T':
		return txcore.StatusInTransaction
	case 'E':
		return txcore.StatusFailed
	default:
		return txcore.StatusIdle
	}
}

// RequestTermination closes the connection asynchronously, keeping reason as
// the termination event every later caller observes. Fire-and-forget: the
// in-progress caller's own synchronous result is never replaced.
func (c *Conn) RequestTermination(reason error) {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return
	}

	c.terminated = true
	c.termReason = reason
	c.mu.Unlock()

	logx.GetLogger().LogWarning(context.TODO(),
		fmt.Sprintf("terminating connection %s", c.id), reason)

	go func() {
		if err := c.conn.Close(context.Background()); err != nil {
			logx.GetLogger().LogError(context.TODO(),
				fmt.Sprintf("error closing connection %s", c.id), err)
		}
	}()
}

// Close releases the connection. Used for orderly shutdown, not for policy
// driven termination.
func (c *Conn) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

func (c *Conn) terminationState() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminated {
		return true, c.termReason
	}

	if c.conn.IsClosed() {
		return true, errorx.NewDatabaseError("connection is closed")
	}

	return false, nil
}

// mapError converts pgx level failures into the core error taxonomy.
func (c *Conn) mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &txcore.ServerError{
			Severity: pgErr.Severity,
			Code:     pgErr.Code,
			Message:  pgErr.Message,
		}
	}

	if terminated, reason := c.terminationState(); terminated {
		return &txcore.TerminationError{Reason: reason}
	}

	if c.conn.IsClosed() {
		return &txcore.TerminationError{Reason: err}
	}

	return errorx.NewDatabaseErrorWrapper(err, "error executing command")
}

// NewManager builds a transaction manager bound to this connection, with
// strategy and disconnect policy taken from the transaction configuration.
func (c *Conn) NewManager(txConf configx.TransactionConfig) (*txcore.Manager, error) {
	strategy, err := txcore.ParseStrategy(txConf.Strategy)
	if err != nil {
		return nil, errorx.NewConfigErrorWrapper(err, "invalid transaction configuration")
	}

	return txcore.NewManager(c, c, txcore.Options{
		Strategy:        strategy,
		DisconnectCodes: txConf.DisconnectCodes,
	}), nil
}
