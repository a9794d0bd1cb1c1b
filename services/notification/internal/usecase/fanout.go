package usecase

import (
	"context"
	"fmt"
	"sync"

	"herald/services/notification/internal/entity"
	"herald/services/notification/internal/repo/persistent"
)

// LiveDeliverer pushes a linked notification to a connected user.
type LiveDeliverer interface {
	Deliver(ctx context.Context, userID string, n entity.Notification) error
}

// LinkResult is the outcome for one recipient. Err is the link failure;
// DeliveryErr is a failed live push after a successful link.
type LinkResult struct {
	UserID      string
	Link        *entity.UsersNotification
	Err         error
	DeliveryErr error
}

type Fanout struct {
	links persistent.UsersNotificationRepository
	live  LiveDeliverer
}

// NewFanout builds a fan-out step. live may be nil.
func NewFanout(links persistent.UsersNotificationRepository, live LiveDeliverer) *Fanout {
	return &Fanout{links: links, live: live}
}

// LinkAll links every recipient concurrently and waits for all of them.
// Results keep the order of recipients.
func (f *Fanout) LinkAll(ctx context.Context, n entity.Notification, recipients []entity.User) []LinkResult {
	results := make([]LinkResult, len(recipients))

	var wg sync.WaitGroup
	for i, recipient := range recipients {
		wg.Add(1)
		go func(i int, recipient entity.User) {
			defer wg.Done()
			results[i] = f.link(ctx, n, recipient)
		}(i, recipient)
	}
	wg.Wait()

	return results
}

func (f *Fanout) link(ctx context.Context, n entity.Notification, recipient entity.User) LinkResult {
	result := LinkResult{UserID: recipient.ID}

	link, err := f.links.Upsert(ctx, n.ID, recipient.ID)
	if err != nil {
		result.Err = &LinkError{UserID: recipient.ID, NotificationID: n.ID, Err: err}
		return result
	}
	result.Link = link

	if f.live != nil {
		if err := f.live.Deliver(ctx, recipient.ID, n); err != nil {
			result.DeliveryErr = fmt.Errorf("live delivery to %s: %w", recipient.ID, err)
		}
	}
	return result
}
