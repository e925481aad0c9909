package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum"
)

func TestClassifyNotFound(t *testing.T) {
	err := Classify(ethereum.NotFound)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if IsRetryable(err) {
		t.Fatalf("not-found should not be retryable")
	}
}

func TestClassifyReverted(t *testing.T) {
	err := Classify(fmt.Errorf("execution reverted: ERC20: insufficient balance"))
	if !errors.Is(err, ErrReverted) {
		t.Fatalf("expected ErrReverted, got %v", err)
	}
	if IsRetryable(err) {
		t.Fatalf("reverts should not be retryable")
	}
}

func TestClassifyTimeout(t *testing.T) {
	err := Classify(context.DeadlineExceeded)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if !IsRetryable(err) {
		t.Fatalf("timeouts should be retryable")
	}
}

func TestClassifyPassesThroughUnknown(t *testing.T) {
	orig := fmt.Errorf("connection refused")
	err := Classify(orig)
	if err != orig {
		t.Fatalf("unknown errors should pass through unchanged")
	}
	if !IsRetryable(err) {
		t.Fatalf("transport errors should be retryable")
	}
}

func TestClassifyNil(t *testing.T) {
	if Classify(nil) != nil {
		t.Fatalf("nil should classify to nil")
	}
	if IsRetryable(nil) {
		t.Fatalf("nil is not retryable")
	}
}

func TestIsRetryableCancelled(t *testing.T) {
	if IsRetryable(context.Canceled) {
		t.Fatalf("cancellation should stop retries")
	}
}
