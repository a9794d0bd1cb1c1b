package usecase

import (
	"context"
	"fmt"

	"herald/services/notification/internal/entity"
	"herald/services/notification/internal/repo/persistent"
)

// Aggregator stores events as notifications, merging into the open record for
// the same (event type, context) when one exists. The merge itself is a single
// conditional upsert in the repository so concurrent workers cannot open two
// records for one key.
type Aggregator struct {
	notifications persistent.NotificationRepository
}

func NewAggregator(notifications persistent.NotificationRepository) *Aggregator {
	return &Aggregator{notifications: notifications}
}

func (a *Aggregator) Upsert(ctx context.Context, event entity.Event) (*entity.Notification, error) {
	if event.Type == "" {
		return nil, fmt.Errorf("%w: event without type", ErrInvalidJob)
	}
	if event.Context.ID == "" {
		return nil, fmt.Errorf("%w: %s event without context", ErrInvalidJob, event.Type)
	}

	n, err := a.notifications.UpsertOpen(ctx, event)
	if err != nil {
		return nil, &PersistenceError{Op: "notification", Err: err}
	}
	return n, nil
}
