package usecase

import (
	"errors"
	"fmt"

	"herald/services/notification/internal/entity"
)

// ErrInvalidJob marks job payloads that can never succeed.
var ErrInvalidJob = errors.New("invalid job")

// PersistenceError is a failed write of shared notification state. Nothing was
// committed, so the whole job may be retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// LinkError is a failed link for one recipient. It never fails the job.
type LinkError struct {
	UserID         string
	NotificationID string
	Err            error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("failed to link user %s to notification %s: %v", e.UserID, e.NotificationID, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// IsRetryable reports whether running the same job again could succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, entity.ErrNotFound) && !errors.Is(err, ErrInvalidJob)
}
