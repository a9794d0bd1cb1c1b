package delivery

import (
	"context"
	"errors"
	"fmt"

	"herald/pkg/queue"
	"herald/services/notification/internal/entity"
)

type Publisher interface {
	Publish(ctx context.Context, queueName string, body interface{}, priority int) error
}

// EmailTask is consumed by the mailer, which owns templates and sending.
type EmailTask struct {
	Event          entity.EventType `json:"event"`
	NotificationID string           `json:"notification_id"`
	Recipient      EmailRecipient   `json:"recipient"`
	Community      entity.Community `json:"community"`
}

type EmailRecipient struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// EmailTrigger enqueues one e-mail task per recipient.
type EmailTrigger struct {
	publisher Publisher
	queueName string
}

func NewEmailTrigger(publisher Publisher) *EmailTrigger {
	return &EmailTrigger{publisher: publisher, queueName: queue.EmailQueueName}
}

// Trigger publishes every task even when some fail and returns the joined errors.
func (t *EmailTrigger) Trigger(ctx context.Context, n entity.Notification, community entity.Community, recipients []entity.User) error {
	var errs []error
	for _, r := range recipients {
		task := EmailTask{
			Event:          n.Event,
			NotificationID: n.ID,
			Recipient:      EmailRecipient{ID: r.ID, Email: r.Email, Name: r.Name, Username: r.Username},
			Community:      community,
		}
		if err := t.publisher.Publish(ctx, t.queueName, task, 1); err != nil {
			errs = append(errs, fmt.Errorf("email for %s: %w", r.ID, err))
		}
	}
	return errors.Join(errs...)
}
