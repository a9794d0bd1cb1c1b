package queue

import (
	"context"
	"errors"

	"herald/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one message body. Returning nil acknowledges the message,
// a Permanent error rejects it and any other error requeues it.
type Handler func(ctx context.Context, body []byte) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth redelivering.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func dispatch(ctx context.Context, log *logger.Logger, msg amqp.Delivery, handler Handler) {
	err := handler(ctx, msg.Body)
	switch {
	case err == nil:
		if ackErr := msg.Ack(false); ackErr != nil {
			log.Error("[RABBITMQ] Failed to ack message: %v", ackErr)
		}
	case IsPermanent(err):
		log.Error("[RABBITMQ] Dropping message: %v, body=%s", err, string(msg.Body))
		if nackErr := msg.Nack(false, false); nackErr != nil {
			log.Error("[RABBITMQ] Failed to nack message: %v", nackErr)
		}
	default:
		log.Warn("[RABBITMQ] Requeueing message after handler error: %v", err)
		if nackErr := msg.Nack(false, true); nackErr != nil {
			log.Error("[RABBITMQ] Failed to nack message: %v", nackErr)
		}
	}
}
