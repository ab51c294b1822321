package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srgjo27/eventflow/internal/core/domain"
)

type recordingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (c *recordingChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return c.err
}

func (c *recordingChannel) Close() error { return nil }

func TestPublisher_Publish(t *testing.T) {
	ch := &recordingChannel{}
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	p := &Publisher{ch: ch, exchange: "ticket.exchange", now: func() time.Time { return now }}

	err := p.Publish(context.Background(), domain.RKTicketIssued, domain.TicketIssued{TicketID: "t1", BatchID: "b1", PurchasedAt: 1759320000})

	require.NoError(t, err)
	assert.Equal(t, "ticket.exchange", ch.exchange)
	assert.Equal(t, "ticket.issued", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, now, ch.msg.Timestamp)

	var got domain.TicketIssued
	require.NoError(t, json.Unmarshal(ch.msg.Body, &got))
	assert.Equal(t, "t1", got.TicketID)
	assert.Equal(t, int64(1759320000), got.PurchasedAt)
}

func TestPublisher_Errors(t *testing.T) {
	p := &Publisher{ch: &recordingChannel{err: amqp.ErrClosed}, exchange: "x", now: time.Now}

	err := p.Publish(context.Background(), "ticket.delivered", domain.TicketDelivered{TicketID: "t1"})
	assert.ErrorIs(t, err, amqp.ErrClosed)

	err = p.Publish(context.Background(), "ticket.delivered", make(chan int))
	assert.ErrorContains(t, err, "encode ticket.delivered")
}

type fakeAcknowledger struct {
	acked, nacked, requeued bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error { a.acked = true; return nil }

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeued = true, requeue
	return nil
}

func (a *fakeAcknowledger) Reject(uint64, bool) error { return nil }

func TestDispatch(t *testing.T) {
	t.Run("ack on success", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		d := amqp.Delivery{Acknowledger: ack, RoutingKey: "ticket.fulfillment_failed"}

		Dispatch(context.Background(), d, func(context.Context, amqp.Delivery) error { return nil })

		assert.True(t, ack.acked)
		assert.False(t, ack.nacked)
	})

	t.Run("dead-letter on failure", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		d := amqp.Delivery{Acknowledger: ack, RoutingKey: "ticket.fulfillment_failed"}

		Dispatch(context.Background(), d, func(context.Context, amqp.Delivery) error { return errors.New("smtp down") })

		assert.False(t, ack.acked)
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeued)
	})
}
