package application

import (
	"context"
	"errors"
	"time"

	"github.com/rechargetravels/service-booking/pkg/domain"
)

const conflictBackoff = 15 * time.Millisecond

// retryOnConflict re-runs fn while it fails with a Conflict, up to attempts
// times. fn must re-read everything it writes.
func retryOnConflict(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !domain.IsConflict(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * conflictBackoff):
		}
	}
	return err
}

// withSnapshot attaches state to a domain error for admin callers.
func withSnapshot(err error, snapshot any) error {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Snapshot == nil {
		return de.WithSnapshot(snapshot)
	}
	return err
}
