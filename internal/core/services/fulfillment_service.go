package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/srgjo27/eventflow/internal/core/artifact"
	"github.com/srgjo27/eventflow/internal/core/domain"
	"github.com/srgjo27/eventflow/internal/core/ports"
	"github.com/srgjo27/eventflow/internal/platform/clock"
	"github.com/srgjo27/eventflow/internal/platform/logging"
)

const (
	defaultLockTTL    = 2 * time.Minute
	defaultSweepLimit = 100
)

// ArtifactGenerator builds the printable ticket for an issued sale.
type ArtifactGenerator interface {
	Generate(buyer *domain.Buyer, event *domain.Event, batch *domain.Batch, ticketID string) (*artifact.Artifact, error)
}

var messageBody = template.Must(template.New("ticket").Parse(`<p>Hello, {{.BuyerName}}!</p>
<p>Your ticket for <b>{{.EventTitle}}</b> is confirmed.</p>
<p>Date: {{.EventDate}}<br>
Batch: {{.BatchName}}<br>
Price: {{.Price}}<br>
Venue: {{.Venue}}<br>
ID: {{.TicketID}}</p>
<p>Your ticket is attached as a PDF. Show the QR code at the event entrance.</p>
<p>Thank you for using EventFlow!</p>
`))

type FulfillInput struct {
	Ticket   *domain.Ticket
	Buyer    *domain.Buyer
	Event    *domain.Event
	Artifact *artifact.Artifact
}

type FulfillResult struct {
	TicketID string `json:"ticket_id"`
	// AlreadyDelivered is set when the ticket was delivered before this call
	// and nothing was done.
	AlreadyDelivered bool `json:"already_delivered"`
	// Sent reports whether this call handed a message to the mailer. A retry
	// after a recorded hand-off only updates the delivery flag.
	Sent        bool      `json:"sent"`
	DeliveredAt time.Time `json:"delivered_at"`
}

type FulfillmentService struct {
	tickets   ports.TicketRepository
	catalog   ports.CatalogRepository
	generator ArtifactGenerator
	mailer    ports.Mailer
	guard     ports.FulfillmentGuard
	publisher ports.EventPublisher
	clock     clock.Clock
	loc       *time.Location
	lockTTL   time.Duration
}

type FulfillmentOption func(*FulfillmentService)

func WithFulfillmentGuard(g ports.FulfillmentGuard, ttl time.Duration) FulfillmentOption {
	return func(s *FulfillmentService) {
		s.guard = g
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

func WithFulfillmentPublisher(p ports.EventPublisher) FulfillmentOption {
	return func(s *FulfillmentService) {
		s.publisher = p
	}
}

// WithDisplayLocation sets the time zone used in buyer-facing text.
func WithDisplayLocation(loc *time.Location) FulfillmentOption {
	return func(s *FulfillmentService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewFulfillmentService(
	tickets ports.TicketRepository,
	catalog ports.CatalogRepository,
	generator ArtifactGenerator,
	mailer ports.Mailer,
	clk clock.Clock,
	opts ...FulfillmentOption,
) *FulfillmentService {
	s := &FulfillmentService{
		tickets:   tickets,
		catalog:   catalog,
		generator: generator,
		mailer:    mailer,
		clock:     clk,
		loc:       time.UTC,
		lockTTL:   defaultLockTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fulfill emails the artifact to the buyer and flags the ticket delivered.
// It never touches inventory: a failure here leaves the sale in place with
// Delivered false, eligible for Retry.
func (s *FulfillmentService) Fulfill(ctx context.Context, in FulfillInput) (*FulfillResult, error) {
	ctx, span := tracer.Start(ctx, "FulfillmentService.Fulfill")
	defer span.End()

	ticket := in.Ticket
	span.SetAttributes(attribute.String("ticket.id", ticket.ID))
	log := logging.FromContext(ctx).WithField("ticket_id", ticket.ID)

	if ticket.Delivered {
		return &FulfillResult{TicketID: ticket.ID, AlreadyDelivered: true, DeliveredAt: deref(ticket.DeliveredAt)}, nil
	}

	if s.guard != nil {
		acquired, err := s.guard.Acquire(ctx, ticket.ID, s.lockTTL)
		switch {
		case err != nil:
			log.WithError(err).Warn("fulfillment guard unavailable, continuing without lock")
		case !acquired:
			return nil, fmt.Errorf("ticket %s: %w", ticket.ID, domain.ErrFulfillmentInProgress)
		default:
			defer func() {
				if err := s.guard.Release(context.WithoutCancel(ctx), ticket.ID); err != nil {
					log.WithError(err).Warn("failed to release fulfillment guard")
				}
			}()
		}
	}

	alreadySent := false
	if s.guard != nil {
		sent, err := s.guard.WasSent(ctx, ticket.ID)
		if err != nil {
			log.WithError(err).Warn("could not read sent marker, sending again")
		}
		alreadySent = sent
	}

	if !alreadySent {
		msg, err := s.compose(in)
		if err != nil {
			return nil, err
		}
		if err := s.mailer.Send(ctx, msg); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "delivery failed")
			return nil, fmt.Errorf("%w: ticket %s: %v", domain.ErrDeliveryFailed, ticket.ID, err)
		}
		log.WithField("to", msg.To).Info("ticket email handed off")

		if s.guard != nil {
			if err := s.guard.MarkSent(ctx, ticket.ID); err != nil {
				log.WithError(err).Warn("failed to record sent marker")
			}
		}
	} else {
		log.Info("ticket email already handed off, only updating delivery flag")
	}

	now := s.clock.Now()
	if err := s.tickets.MarkDelivered(ctx, ticket.ID, now); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("mark ticket %s delivered: %w", ticket.ID, err)
	}
	ticket.Delivered = true
	ticket.DeliveredAt = &now

	if s.publisher != nil {
		err := s.publisher.Publish(ctx, domain.RKTicketDelivered, domain.TicketDelivered{
			TicketID:    ticket.ID,
			DeliveredAt: now.Unix(),
		})
		if err != nil {
			log.WithError(err).Warn("failed to publish ticket.delivered")
		}
	}

	return &FulfillResult{TicketID: ticket.ID, Sent: !alreadySent, DeliveredAt: now}, nil
}

// Retry reloads a ticket and runs artifact generation and delivery again.
// Delivered tickets are reported as such without side effects.
func (s *FulfillmentService) Retry(ctx context.Context, ticketID string) (*FulfillResult, error) {
	ctx, span := tracer.Start(ctx, "FulfillmentService.Retry")
	defer span.End()

	ticketID = strings.TrimSpace(ticketID)
	if ticketID == "" {
		return nil, fmt.Errorf("%w: missing ticket id", domain.ErrInvalidInput)
	}

	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Delivered {
		return &FulfillResult{TicketID: ticket.ID, AlreadyDelivered: true, DeliveredAt: deref(ticket.DeliveredAt)}, nil
	}

	buyer, err := s.catalog.GetBuyer(ctx, ticket.BuyerID)
	if err != nil {
		return nil, err
	}
	current, err := s.catalog.GetEvent(ctx, ticket.EventID)
	if err != nil {
		return nil, err
	}
	event, batch := snapshotRecords(ticket, current)

	art, err := s.generator.Generate(buyer, event, batch, ticket.ID)
	if err != nil {
		return nil, err
	}

	return s.Fulfill(ctx, FulfillInput{Ticket: ticket, Buyer: buyer, Event: event, Artifact: art})
}

// SweepOnce retries fulfillment for undelivered tickets purchased more than
// grace ago and returns how many were delivered.
func (s *FulfillmentService) SweepOnce(ctx context.Context, grace time.Duration) (int, error) {
	log := logging.FromContext(ctx)

	pending, err := s.tickets.ListUndelivered(ctx, s.clock.Now().Add(-grace), defaultSweepLimit)
	if err != nil {
		return 0, fmt.Errorf("list undelivered tickets: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	log.WithField("count", len(pending)).Info("retrying undelivered tickets")

	delivered := 0
	for _, t := range pending {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		res, err := s.Retry(ctx, t.ID)
		if err != nil {
			if errors.Is(err, domain.ErrFulfillmentInProgress) {
				continue
			}
			log.WithError(err).WithField("ticket_id", t.ID).Warn("fulfillment retry failed")
			continue
		}
		if !res.AlreadyDelivered {
			delivered++
		}
	}
	return delivered, nil
}

// RunPendingSweep calls SweepOnce every interval until ctx is done.
func (s *FulfillmentService) RunPendingSweep(ctx context.Context, interval, grace time.Duration) {
	log := logging.FromContext(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.WithField("interval", interval.String()).Info("fulfillment sweep started")

	for {
		select {
		case <-ctx.Done():
			log.Info("fulfillment sweep stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx, grace); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("fulfillment sweep failed")
			}
		}
	}
}

func (s *FulfillmentService) compose(in FulfillInput) (ports.Message, error) {
	if in.Artifact == nil || len(in.Artifact.PDF) == 0 {
		return ports.Message{}, fmt.Errorf("%w: no artifact for ticket %s", domain.ErrArtifactGenerationFailed, in.Ticket.ID)
	}
	if strings.TrimSpace(in.Buyer.Email) == "" {
		return ports.Message{}, fmt.Errorf("%w: buyer %s has no email address", domain.ErrDeliveryFailed, in.Buyer.ID)
	}

	summary := NewSummary(in.Ticket, in.Buyer, in.Event, s.loc)
	var body bytes.Buffer
	if err := messageBody.Execute(&body, summary); err != nil {
		return ports.Message{}, fmt.Errorf("%w: render message: %v", domain.ErrDeliveryFailed, err)
	}

	return ports.Message{
		To:       in.Buyer.Email,
		Subject:  "Your ticket for " + summary.EventTitle,
		HTMLBody: body.String(),
		Attachment: ports.Attachment{
			Filename:    in.Artifact.Filename,
			ContentType: "application/pdf",
			Content:     in.Artifact.PDF,
		},
	}, nil
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
