package queue

import (
	"context"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/afthar/transfer-agent/internal/event"
)

type fakeAcknowledger struct {
	acks    int
	nacks   int
	rejects int
	requeue bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error { f.acks++; return nil }

func (f *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	f.nacks++
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.rejects++
	f.requeue = requeue
	return nil
}

func TestHandleDeliveryAcksDecodedEvents(t *testing.T) {
	s := &AMQPSource{logger: zap.NewNop()}

	ev := testEvent()
	body, err := event.Marshal(ev)
	require.NoError(t, err)

	ack := &fakeAcknowledger{}
	d := &amqp.Delivery{Acknowledger: ack, Body: body}

	var handled *event.TransferEvent
	err = s.handleDelivery(context.Background(), d, func(ctx context.Context, ev *event.TransferEvent) bool {
		handled = ev
		return true
	})
	require.NoError(t, err)
	require.NotNil(t, handled)
	assert.Equal(t, ev.EventID, handled.EventID)
	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 0, ack.rejects)
}

func TestHandleDeliveryAcksExhaustedEvents(t *testing.T) {
	// The engine accounts for exhausted events itself, so a false
	// return still acknowledges the delivery
	s := &AMQPSource{logger: zap.NewNop()}

	body, err := event.Marshal(testEvent())
	require.NoError(t, err)

	ack := &fakeAcknowledger{}
	d := &amqp.Delivery{Acknowledger: ack, Body: body}

	err = s.handleDelivery(context.Background(), d, func(ctx context.Context, ev *event.TransferEvent) bool {
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 0, ack.rejects)
}

func TestHandleDeliveryRejectsUndecodable(t *testing.T) {
	s := &AMQPSource{logger: zap.NewNop()}

	ack := &fakeAcknowledger{}
	d := &amqp.Delivery{Acknowledger: ack, Body: []byte("not json")}

	err := s.handleDelivery(context.Background(), d, func(ctx context.Context, ev *event.TransferEvent) bool {
		t.Fatal("handler must not run for undecodable payloads")
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 0, ack.acks)
	assert.Equal(t, 1, ack.rejects)
	assert.False(t, ack.requeue)
}

func TestHandleDeliveryRejectsInvalidEvents(t *testing.T) {
	// Decodes as JSON but fails validation
	s := &AMQPSource{logger: zap.NewNop()}

	ack := &fakeAcknowledger{}
	d := &amqp.Delivery{Acknowledger: ack, Body: []byte(`{"eventId":"evt-1"}`)}

	err := s.handleDelivery(context.Background(), d, func(ctx context.Context, ev *event.TransferEvent) bool {
		t.Fatal("handler must not run for invalid events")
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ack.rejects)
	assert.False(t, ack.requeue)
}
