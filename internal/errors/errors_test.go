package errors

import (
	"fmt"
	"testing"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"invalid input", NewInvalidInputError("sigma", 0, "must be positive"), ErrInvalidInput},
		{"convergence", NewConvergenceError(12.5, 0.0001, 5, 200, "budget exhausted"), ErrNoConvergence},
		{"insufficient", NewInsufficientDataError(2, 1, ""), ErrInsufficientData},
		{"store", NewStoreError("save_result", "NIFTY/2024/3", fmt.Errorf("locked")), ErrDatabaseError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := Wrap(tt.err, "outer")
			if !Is(wrapped, tt.sentinel) {
				t.Errorf("expected %v to match %v", wrapped, tt.sentinel)
			}
		})
	}
}

func TestAsRecoversTypedError(t *testing.T) {
	err := Wrapf(NewConvergenceError(3, 1, 2, 10, "out of bracket"), "contract %s", "NIFTY 22000 CE")

	var ce *ConvergenceError
	if !As(err, &ce) {
		t.Fatalf("expected ConvergenceError in chain")
	}
	if ce.Iterations != 10 || ce.Reason != "out of bracket" {
		t.Errorf("unexpected fields: %+v", ce)
	}
}

func TestDataErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("bad row")
	err := NewDataError("bhavcopy", "INFY", "parse failed", inner)
	if !Is(err, inner) {
		t.Errorf("expected DataError to unwrap to inner error")
	}
	if err.Error() != "data error [bhavcopy] INFY: parse failed: bad row" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "x %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}
}
