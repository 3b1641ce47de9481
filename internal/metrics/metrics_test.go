package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{context.DeadlineExceeded, "timeout"},
		{fmt.Errorf("fetching: %w", context.Canceled), "canceled"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := Result(tt.err); got != tt.want {
			t.Errorf("Result(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestObserveDoesNotPanic(t *testing.T) {
	ObserveOperation("push", "orm_Test_t", 3, nil, time.Now())
	ObserveOperation("fetch", "orm_Test_t", 0, errors.New("boom"), time.Now())
	CountEnsure("orm_Test_t", "created")
	SetOpenDatabases(1)
}
