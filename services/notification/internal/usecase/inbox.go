package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"herald/pkg/logger"
	"herald/pkg/queue"
	"herald/services/notification/internal/entity"
	"herald/services/notification/internal/repo/persistent"
)

// JobPublisher puts messages on a named queue.
type JobPublisher interface {
	Publish(ctx context.Context, queueName string, body interface{}, priority int) error
}

// InboxUseCase serves the read side of notifications and accepts jobs from
// internal callers.
type InboxUseCase interface {
	GetNotifications(ctx context.Context, userID string, limit, offset int) ([]entity.InboxEntry, int64, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	EnqueueJob(ctx context.Context, eventType entity.EventType, data json.RawMessage) error
}

type inboxUseCase struct {
	notifications persistent.NotificationRepository
	links         persistent.UsersNotificationRepository
	publisher     JobPublisher
	logger        *logger.Logger
}

// NewInboxUseCase builds the inbox use case. publisher may be nil, in which
// case EnqueueJob fails.
func NewInboxUseCase(
	notifications persistent.NotificationRepository,
	links persistent.UsersNotificationRepository,
	publisher JobPublisher,
	log *logger.Logger,
) InboxUseCase {
	return &inboxUseCase{
		notifications: notifications,
		links:         links,
		publisher:     publisher,
		logger:        log,
	}
}

func (uc *inboxUseCase) GetNotifications(ctx context.Context, userID string, limit, offset int) ([]entity.InboxEntry, int64, error) {
	entries, total, err := uc.links.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return entries, total, nil
}

// MarkRead marks the caller's link read and closes the shared record, so the
// next event for the same context opens a fresh notification.
func (uc *inboxUseCase) MarkRead(ctx context.Context, userID, notificationID string) error {
	if err := uc.links.MarkRead(ctx, userID, notificationID); err != nil {
		return err
	}
	if err := uc.notifications.MarkRead(ctx, notificationID); err != nil {
		return fmt.Errorf("failed to close notification: %w", err)
	}
	uc.logger.Info("[NOTIFICATION] User %s read notification %s", userID, notificationID)
	return nil
}

var errNoPublisher = errors.New("job queue is not configured")

func (uc *inboxUseCase) EnqueueJob(ctx context.Context, eventType entity.EventType, data json.RawMessage) error {
	if _, err := DecodeJob(eventType, data); err != nil {
		return err
	}
	if uc.publisher == nil {
		return errNoPublisher
	}

	envelope := JobEnvelope{Type: eventType, Data: data}
	if err := uc.publisher.Publish(ctx, queue.JobsQueueName, envelope, 5); err != nil {
		return fmt.Errorf("failed to enqueue %s job: %w", eventType, err)
	}
	uc.logger.Info("[NOTIFICATION] Enqueued %s job", eventType)
	return nil
}
