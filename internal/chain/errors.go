package chain

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/ethereum/go-ethereum"
)

// Sentinel errors for the small RPC failure taxonomy the scanner cares
// about. Everything else stays a transient transport error and is retried.
var (
	// ErrNotFound marks a block, header, or receipt the node does not have.
	ErrNotFound = errors.New("chain: not found")
	// ErrReverted marks an eth_call rejected by contract execution.
	ErrReverted = errors.New("chain: execution reverted")
	// ErrTimeout marks a request that exceeded its deadline.
	ErrTimeout = errors.New("chain: request timed out")
)

// ClassifiedError wraps an RPC error with its taxonomy sentinel.
type ClassifiedError struct {
	Kind error
	Err  error
}

func (e *ClassifiedError) Error() string { return e.Err.Error() }

func (e *ClassifiedError) Unwrap() error { return e.Err }

// Is lets errors.Is match both the sentinel and the wrapped error.
func (e *ClassifiedError) Is(target error) bool {
	return target == e.Kind || errors.Is(e.Err, target)
}

// Classify maps an RPC-layer error onto the taxonomy. The original error
// is preserved for %w chains.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ethereum.NotFound) {
		return &ClassifiedError{Kind: ErrNotFound, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClassifiedError{Kind: ErrTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClassifiedError{Kind: ErrTimeout, Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "execution reverted"), strings.Contains(msg, "revert"):
		return &ClassifiedError{Kind: ErrReverted, Err: err}
	case strings.Contains(msg, "not found"), strings.Contains(msg, "unknown block"):
		return &ClassifiedError{Kind: ErrNotFound, Err: err}
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return &ClassifiedError{Kind: ErrTimeout, Err: err}
	default:
		return err
	}
}

// IsRetryable reports whether a failed call is worth repeating. Reverts
// and missing data are deterministic; timeouts, rate limits, and other
// transport failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrReverted) || errors.Is(err, ErrNotFound) {
		return false
	}
	return true
}
