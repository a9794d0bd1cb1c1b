package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"herald/pkg/logger"
	pkgqueue "herald/pkg/queue"
	"herald/services/notification/internal/usecase"
)

// JobProcessor runs a decoded job to completion.
type JobProcessor interface {
	Process(ctx context.Context, job usecase.Job) (*usecase.Result, error)
}

// JobConsumer turns queue deliveries into processor runs and tells the broker
// whether a failed message is worth redelivering.
type JobConsumer struct {
	processor JobProcessor
	logger    *logger.Logger
}

func NewJobConsumer(processor JobProcessor, log *logger.Logger) *JobConsumer {
	return &JobConsumer{processor: processor, logger: log}
}

// Handle implements pkg/queue.Handler.
func (c *JobConsumer) Handle(ctx context.Context, body []byte) error {
	var envelope usecase.JobEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return pkgqueue.Permanent(fmt.Errorf("%w: malformed envelope: %v", usecase.ErrInvalidJob, err))
	}

	job, err := usecase.DecodeJob(envelope.Type, envelope.Data)
	if err != nil {
		c.logger.Error("[NOTIFICATION HANDLER] Rejecting job: %v", err)
		return pkgqueue.Permanent(err)
	}

	c.logger.Info("[NOTIFICATION HANDLER] Received %s job for context %s", job.EventType(), job.ContextID())

	if _, err := c.processor.Process(ctx, job); err != nil {
		if !usecase.IsRetryable(err) {
			return pkgqueue.Permanent(err)
		}
		return err
	}
	return nil
}
