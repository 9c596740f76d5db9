package txcore

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/marcodd23/go-txcore/pkg/logx"
)

// Strategy selects how Transaction drives the server-side transaction.
// Fixed per connection.
type Strategy int

const (
	// StrategyStrict - the manager itself issues BEGIN/COMMIT/ROLLBACK.
	StrategyStrict Strategy = iota
	// StrategyNaive - the caller opened the transaction externally; the
	// manager anchors its own rollback boundary on a savepoint, so rollback
	// only undoes work performed since the Transaction call.
	StrategyNaive
)

func (s Strategy) String() string {
	switch s {
	case StrategyNaive:
		return "naive"
	default:
		return "strict"
	}
}

// ParseStrategy - parse the configured strategy name.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(name) {
	case "", "strict":
		return StrategyStrict, nil
	case "naive":
		return StrategyNaive, nil
	default:
		return StrategyStrict, fmt.Errorf("unknown transaction strategy %q", name)
	}
}

// TxContext - per-Transaction bookkeeping. Created when Transaction is
// entered and destroyed when it returns; exclusively owned by the single
// live call, so no concurrent mutation is possible.
type TxContext struct {
	id        int64
	strategy  Strategy
	failed    bool
	cause     error // first failure; becomes the implicit rollback reason
	spCounter int
}

func newTxContext(strategy Strategy) *TxContext {
	return &TxContext{id: generateRandomInt64Id(), strategy: strategy}
}

// Failed reports whether the context has been marked failed. Once true,
// every later command on the context except rollback short-circuits locally
// until rollback occurs.
func (tc *TxContext) Failed() bool {
	return tc.failed
}

// markFailed records the first failure only; a later failure never replaces
// the original rollback reason.
func (tc *TxContext) markFailed(cause error) {
	if tc.failed {
		return
	}

	tc.failed = true
	tc.cause = cause
}

// nextSavepointName - deterministic per-context savepoint name for a
// query-level scope.
func (tc *TxContext) nextSavepointName() string {
	tc.spCounter++

	return fmt.Sprintf("txcore_sp_%d", tc.spCounter)
}

// generateRandomInt64Id generates a random, non-zero 64-bit transaction
// context id using crypto/rand. Zero is reserved as an invalid id.
func generateRandomInt64Id() int64 {
	var idNum uint64

	for idNum == 0 {
		err := binary.Read(rand.Reader, binary.BigEndian, &idNum)
		if err != nil {
			logx.GetLogger().LogError(context.TODO(), "error generating 64-bit random ID", err)
			continue
		}

		idNum %= uint64(math.MaxInt64)
	}

	return int64(idNum)
}
