package ledger

import "errors"

var (
	// ErrEstimationFailed indicates the ledger predicted the call would
	// revert (quota exhausted, invalid index, bad arguments).
	ErrEstimationFailed = errors.New("ledger: estimation failed")

	// ErrRejected indicates the ledger refused or reverted a submitted
	// transaction.
	ErrRejected = errors.New("ledger: transaction rejected")

	// ErrTimeout indicates an operation exceeded its deadline. For a
	// submission this means the transaction's final state is unknown.
	ErrTimeout = errors.New("ledger: operation timed out")

	// ErrUnreachable indicates the ledger RPC endpoint could not be reached.
	ErrUnreachable = errors.New("ledger: endpoint unreachable")
)
