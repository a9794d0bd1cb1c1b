package usecase

import (
	"context"
	"errors"
	"fmt"

	"herald/pkg/logger"
	"herald/services/notification/internal/entity"
	"herald/services/notification/internal/repo/persistent"
	"herald/services/notification/internal/telemetry"

	"golang.org/x/sync/errgroup"
)

// State is a step of a single job run.
type State string

const (
	StateFetchingPayloads    State = "FETCHING_PAYLOADS"
	StateAggregating         State = "AGGREGATING"
	StateResolvingRecipients State = "RESOLVING_RECIPIENTS"
	StateFanningOut          State = "FANNING_OUT"
	StateDone                State = "DONE"
	StateFailed              State = "FAILED"
)

type PayloadResolver interface {
	Resolve(ctx context.Context, kind entity.Kind, id string) (entity.Payload, error)
}

// ContextTrigger starts the external delivery channel (e-mail) for a
// notification once recipients are known.
type ContextTrigger interface {
	Trigger(ctx context.Context, n entity.Notification, community entity.Community, recipients []entity.User) error
}

// Result describes a finished run. Errors holds the recoverable failures that
// were reported to telemetry; it is never set when Process returns an error.
type Result struct {
	State        State
	Notification *entity.Notification
	Recipients   []entity.User
	Links        []LinkResult
	Errors       []error
}

// Linked counts recipients whose link was stored.
func (r *Result) Linked() int {
	n := 0
	for _, l := range r.Links {
		if l.Err == nil {
			n++
		}
	}
	return n
}

// Processor runs jobs through payload resolution, aggregation, recipient
// resolution and fan-out. Errors before the notification is stored fail the
// run; errors after it are collected and reported.
type Processor struct {
	resolver    PayloadResolver
	aggregator  *Aggregator
	recipients  *RecipientResolver
	fanout      *Fanout
	communities persistent.CommunityRepository
	trigger     ContextTrigger
	reporter    telemetry.Reporter
	logger      *logger.Logger
}

func NewProcessor(
	resolver PayloadResolver,
	aggregator *Aggregator,
	recipients *RecipientResolver,
	fanout *Fanout,
	communities persistent.CommunityRepository,
	trigger ContextTrigger,
	reporter telemetry.Reporter,
	log *logger.Logger,
) *Processor {
	return &Processor{
		resolver:    resolver,
		aggregator:  aggregator,
		recipients:  recipients,
		fanout:      fanout,
		communities: communities,
		trigger:     trigger,
		reporter:    reporter,
		logger:      log,
	}
}

func (p *Processor) Process(ctx context.Context, job Job) (*Result, error) {
	log := p.logger.With("event", job.EventType(), "context_id", job.ContextID())
	result := &Result{State: StateFetchingPayloads}

	payloads, err := p.fetchPayloads(ctx, job.Refs())
	if err != nil {
		result.State = StateFailed
		log.Error("[NOTIFICATION JOB] Failed to fetch payloads: %v", err)
		return result, fmt.Errorf("failed to fetch payloads: %w", err)
	}

	result.State = StateAggregating
	notification, err := p.aggregator.Upsert(ctx, job.BuildEvent(payloads))
	if err != nil {
		result.State = StateFailed
		log.Error("[NOTIFICATION JOB] Failed to store notification: %v", err)
		return result, err
	}
	result.Notification = notification
	log = log.With("notification_id", notification.ID)
	log.Info("[NOTIFICATION JOB] Stored notification with %d actors", len(notification.Actors))

	result.State = StateResolvingRecipients
	users, err := p.recipients.Resolve(ctx, job.RecipientIDs())
	if err != nil {
		result.Errors = append(result.Errors, err)
	}
	result.Recipients = p.recipients.FilterEligible(users)
	if skipped := len(users) - len(result.Recipients); skipped > 0 {
		log.Info("[NOTIFICATION JOB] Skipped %d recipients without a valid email", skipped)
	}

	result.State = StateFanningOut
	result.Links = p.fanout.LinkAll(ctx, *notification, result.Recipients)
	for _, l := range result.Links {
		if l.Err != nil {
			result.Errors = append(result.Errors, l.Err)
		}
		if l.DeliveryErr != nil {
			result.Errors = append(result.Errors, l.DeliveryErr)
		}
	}

	if err := p.triggerDelivery(ctx, job, *notification, result.Recipients); err != nil {
		result.Errors = append(result.Errors, err)
	}

	result.State = StateDone
	p.report(ctx, job, notification, result.Errors)

	log.Info("[NOTIFICATION JOB] Completed: recipients=%d, linked=%d, errors=%d",
		len(result.Recipients), result.Linked(), len(result.Errors))
	return result, nil
}

// fetchPayloads resolves refs concurrently; the first failure cancels the rest.
func (p *Processor) fetchPayloads(ctx context.Context, refs []entity.Ref) ([]entity.Payload, error) {
	payloads := make([]entity.Payload, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			payload, err := p.resolver.Resolve(gctx, ref.Kind, ref.ID)
			if err != nil {
				return fmt.Errorf("%s %s: %w", ref.Kind, ref.ID, err)
			}
			payloads[i] = payload
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return payloads, nil
}

func (p *Processor) triggerDelivery(ctx context.Context, job Job, n entity.Notification, recipients []entity.User) error {
	if p.trigger == nil || len(recipients) == 0 {
		return nil
	}

	community, err := p.communities.GetByID(ctx, job.ContextID())
	if err != nil {
		return fmt.Errorf("failed to load community for delivery: %w", err)
	}
	if err := p.trigger.Trigger(ctx, n, *community, recipients); err != nil {
		return fmt.Errorf("failed to trigger delivery: %w", err)
	}
	return nil
}

func (p *Processor) report(ctx context.Context, job Job, n *entity.Notification, errs []error) {
	if p.reporter == nil {
		return
	}
	for _, err := range errs {
		tags := map[string]string{
			"event":           string(job.EventType()),
			"notification_id": n.ID,
		}
		var linkErr *LinkError
		if errors.As(err, &linkErr) {
			tags["user_id"] = linkErr.UserID
		}
		p.reporter.Report(ctx, err, tags)
	}
}
