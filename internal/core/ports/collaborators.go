package ports

import (
	"context"
	"time"
)

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

type Message struct {
	To         string
	Subject    string
	HTMLBody   string
	Attachment Attachment
}

// Mailer hands a message to the mail collaborator. A nil error means the
// hand-off was accepted, not that the recipient received it.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// AvailabilityCache caches a batch's remaining quantity for read endpoints.
type AvailabilityCache interface {
	Get(ctx context.Context, batchID string) (int, bool, error)
	Set(ctx context.Context, batchID string, remaining int) error
	Invalidate(ctx context.Context, batchID string) error
}

// FulfillmentGuard serializes fulfillment per ticket and remembers tickets
// whose message was already handed off.
type FulfillmentGuard interface {
	// Acquire returns false when another worker holds the ticket.
	Acquire(ctx context.Context, ticketID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, ticketID string) error
	MarkSent(ctx context.Context, ticketID string) error
	WasSent(ctx context.Context, ticketID string) (bool, error)
}

// EventPublisher emits integration events. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}
