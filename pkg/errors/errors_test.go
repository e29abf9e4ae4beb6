package errors_test

import (
	"errors"
	"testing"

	rerrors "github.com/jihwankim/resilience-core/pkg/errors"
)

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := rerrors.Wrap(rerrors.Backpressure, "ingestion buffer full", cause)

	if !rerrors.Is(err, rerrors.Backpressure) {
		t.Fatalf("expected Backpressure kind, got %v", rerrors.KindOf(err))
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected Unwrap to expose the original cause")
	}
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	plain := errors.New("boom")
	if rerrors.KindOf(plain) != rerrors.Internal {
		t.Fatalf("expected Internal default for a plain error")
	}
}

func ExampleNew() {
	err := rerrors.New(rerrors.NotFound, "node power-substation-12 does not exist")
	_ = err
	// Output:
}
