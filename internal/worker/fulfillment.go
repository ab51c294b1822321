package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/srgjo27/eventflow/internal/core/domain"
	"github.com/srgjo27/eventflow/internal/core/services"
	"github.com/srgjo27/eventflow/internal/platform/logging"
)

// Retrier re-runs fulfillment for one ticket.
type Retrier interface {
	Retry(ctx context.Context, ticketID string) (*services.FulfillResult, error)
}

// FulfillmentHandler retries fulfillment for tickets announced on
// ticket.fulfillment_failed.
type FulfillmentHandler struct {
	retrier Retrier
}

func NewFulfillmentHandler(r Retrier) *FulfillmentHandler {
	return &FulfillmentHandler{retrier: r}
}

func (h *FulfillmentHandler) Handle(ctx context.Context, d amqp.Delivery) error {
	log := logging.FromContext(ctx).WithField("routing_key", d.RoutingKey)

	switch d.RoutingKey {
	case domain.RKTicketFulfillmentFailed:
		var ev domain.TicketFulfillmentFailed
		if err := json.Unmarshal(d.Body, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", d.RoutingKey, err)
		}
		if ev.TicketID == "" {
			return fmt.Errorf("decode %s: missing ticket_id", d.RoutingKey)
		}

		log = log.WithField("ticket_id", ev.TicketID)
		res, err := h.retrier.Retry(ctx, ev.TicketID)
		switch {
		case errors.Is(err, domain.ErrFulfillmentInProgress):
			log.Info("[fulfill] another worker is delivering this ticket")
			return nil
		case errors.Is(err, domain.ErrNotFound):
			log.Warn("[fulfill] ticket no longer exists, dropping")
			return nil
		case err != nil:
			return err
		}

		if res.AlreadyDelivered {
			log.Info("[fulfill] ticket already delivered")
		} else {
			log.WithField("sent", res.Sent).Info("[fulfill] ticket delivered on retry")
		}
		return nil

	default:
		log.Info("[fulfill] skip unknown key")
	}
	return nil
}
