package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"herald/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

type recordingAcknowledger struct {
	acked    bool
	nacked   bool
	requeued bool
}

func (r *recordingAcknowledger) Ack(tag uint64, multiple bool) error {
	r.acked = true
	return nil
}

func (r *recordingAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	r.nacked = true
	r.requeued = requeue
	return nil
}

func (r *recordingAcknowledger) Reject(tag uint64, requeue bool) error {
	return r.Nack(tag, false, requeue)
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name        string
		handlerErr  error
		wantAck     bool
		wantRequeue bool
	}{
		{name: "success acks", handlerErr: nil, wantAck: true},
		{name: "transient error requeues", handlerErr: errors.New("db down"), wantRequeue: true},
		{name: "permanent error drops", handlerErr: Permanent(errors.New("bad payload"))},
		{name: "wrapped permanent error drops", handlerErr: fmt.Errorf("job: %w", Permanent(errors.New("missing")))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &recordingAcknowledger{}
			var buf bytes.Buffer
			log := logger.NewWithWriters(&buf, &buf)

			var got []byte
			dispatch(context.Background(), log, amqp.Delivery{Acknowledger: ack, Body: []byte(`{"type":"x"}`)}, func(ctx context.Context, body []byte) error {
				got = body
				return tt.handlerErr
			})

			assert.Equal(t, `{"type":"x"}`, string(got))
			assert.Equal(t, tt.wantAck, ack.acked)
			assert.Equal(t, !tt.wantAck, ack.nacked)
			assert.Equal(t, tt.wantRequeue, ack.requeued)
		})
	}
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	base := errors.New("not found")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
}

func TestClampPriority(t *testing.T) {
	assert.Equal(t, uint8(0), clampPriority(-3))
	assert.Equal(t, uint8(5), clampPriority(5))
	assert.Equal(t, uint8(10), clampPriority(42))
}
