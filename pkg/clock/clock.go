// Package clock abstracts time for components that wait between retries,
// so the execution fill loop can be tested synchronously and an operator
// abort (context cancellation) interrupts a pending wait.
package clock

import (
	"context"
	"time"
)

// Clock supplies the current time and a cancellable sleep.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the wall-clock implementation.
type Real struct{}

// Now returns the current wall-clock time.
func (Real) Now() time.Time { return time.Now() }

// Sleep blocks for d or until ctx is cancelled, returning ctx.Err() in the
// latter case.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
