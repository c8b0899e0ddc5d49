package orchestrator

import (
	"context"
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// Error kinds every Client call can surface. Callers branch on these with
// errors.Is; the wrapped error keeps the orchestrator's detail.
var (
	ErrNotFound = errors.New("resource not found")
	ErrTimeout  = errors.New("orchestrator call timed out")
	ErrRejected = errors.New("orchestrator rejected the call")
)

// classify maps an apimachinery error onto the client's error kinds.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case apierrors.IsNotFound(err):
		return fmt.Errorf("%s: %w: %v", op, ErrNotFound, err)
	case apierrors.IsTimeout(err),
		apierrors.IsServerTimeout(err),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	case apierrors.IsForbidden(err),
		apierrors.IsUnauthorized(err),
		apierrors.IsInvalid(err),
		apierrors.IsConflict(err),
		apierrors.IsBadRequest(err):
		return fmt.Errorf("%s: %w: %v", op, ErrRejected, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isRetryable returns true for 5xx and 429 (too many requests). Only
// read-only calls consult this; mutations are never retried.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if apierrors.IsTooManyRequests(err) {
		return true
	}
	if apierrors.IsInternalError(err) || apierrors.IsServerTimeout(err) {
		return true
	}
	var se *apierrors.StatusError
	if errors.As(err, &se) && se.ErrStatus.Code >= 500 {
		return true
	}
	return false
}
