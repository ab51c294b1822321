package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/srgjo27/eventflow/internal/platform/logging"
)

type ConsumerConfig struct {
	URL      string
	Exchange string
	Queue    string
	Bindings []string
	Prefetch int
	// DLX and DLQ receive messages rejected by the handler. Empty disables
	// dead-lettering.
	DLX  string
	DLQ  string
	Name string
}

// Handler processes one delivery. A nil error acks it; an error rejects it
// to the dead-letter exchange without requeueing.
type Handler func(ctx context.Context, d amqp.Delivery) error

type Consumer struct {
	cfg  ConsumerConfig
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 8
	}
	return &Consumer{cfg: cfg}
}

func (c *Consumer) Connect() error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("rabbit dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel failed: %w", err)
	}

	fail := func(format string, args ...any) error {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf(format, args...)
	}

	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fail("declare exchange %s failed: %w", c.cfg.Exchange, err)
	}

	args := amqp.Table{}
	if c.cfg.DLX != "" {
		args["x-dead-letter-exchange"] = c.cfg.DLX
	}
	q, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, args)
	if err != nil {
		return fail("declare queue failed: %w", err)
	}
	for _, key := range c.cfg.Bindings {
		if err := ch.QueueBind(q.Name, key, c.cfg.Exchange, false, nil); err != nil {
			return fail("bind queue to exchange=%s key=%s failed: %w", c.cfg.Exchange, key, err)
		}
	}

	if c.cfg.DLX != "" {
		if err := ch.ExchangeDeclare(c.cfg.DLX, "topic", true, false, false, false, nil); err != nil {
			return fail("declare dlx failed: %w", err)
		}
		if _, err := ch.QueueDeclare(c.cfg.DLQ, true, false, false, false, nil); err != nil {
			return fail("declare dlq failed: %w", err)
		}
		if err := ch.QueueBind(c.cfg.DLQ, "#", c.cfg.DLX, false, nil); err != nil {
			return fail("bind dlq failed: %w", err)
		}
	}

	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fail("set qos failed: %w", err)
	}

	c.conn = conn
	c.ch = ch
	return nil
}

func (c *Consumer) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Run consumes until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	msgs, err := c.ch.ConsumeWithContext(ctx, c.cfg.Queue, c.cfg.Name, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume failed: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			Dispatch(ctx, d, h)
		}
	}
}

// Dispatch runs h for d and settles the delivery.
func Dispatch(ctx context.Context, d amqp.Delivery, h Handler) {
	log := logging.FromContext(ctx).WithField("routing_key", d.RoutingKey)
	if err := h(ctx, d); err != nil {
		log.WithError(err).Warn("handle error, rejecting to dead-letter")
		if err := d.Nack(false, false); err != nil {
			log.WithError(err).Error("nack failed")
		}
		return
	}
	if err := d.Ack(false); err != nil {
		log.WithError(err).Error("ack failed")
	}
}
