package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/srgjo27/eventflow/internal/core/domain"
	"github.com/srgjo27/eventflow/internal/core/ports"
	"github.com/srgjo27/eventflow/internal/platform/logging"
)

// Outcome tells a caller what a failed purchase left behind.
type Outcome string

const (
	// OutcomeNotCommitted: nothing was persisted, the whole purchase may be retried.
	OutcomeNotCommitted Outcome = "not_committed"
	// OutcomeFulfillmentPending: the sale is final, only fulfillment should be retried.
	OutcomeFulfillmentPending Outcome = "fulfillment_pending"
)

type PurchaseError struct {
	Outcome  Outcome
	TicketID string
	Err      error
}

func (e *PurchaseError) Error() string {
	if e.TicketID != "" {
		return fmt.Sprintf("%s (ticket %s): %v", e.Outcome, e.TicketID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Outcome, e.Err)
}

func (e *PurchaseError) Unwrap() error {
	return e.Err
}

type PurchaseResult struct {
	TicketID  string  `json:"ticket_id"`
	Summary   Summary `json:"summary"`
	Delivered bool    `json:"delivered"`
}

// PurchaseService sequences issuance, artifact generation and fulfillment.
type PurchaseService struct {
	issuance    *IssuanceService
	fulfillment *FulfillmentService
	generator   ArtifactGenerator
	publisher   ports.EventPublisher
	loc         *time.Location
}

func NewPurchaseService(issuance *IssuanceService, fulfillment *FulfillmentService, generator ArtifactGenerator, publisher ports.EventPublisher, loc *time.Location) *PurchaseService {
	if loc == nil {
		loc = time.UTC
	}
	return &PurchaseService{
		issuance:    issuance,
		fulfillment: fulfillment,
		generator:   generator,
		publisher:   publisher,
		loc:         loc,
	}
}

// IssueAndFulfill sells one ticket and emails it. Once the issuance
// transaction commits the sale is final: fulfillment runs detached from the
// caller's cancellation and its failures are reported as
// OutcomeFulfillmentPending.
func (s *PurchaseService) IssueAndFulfill(ctx context.Context, in IssueInput) (*PurchaseResult, error) {
	issued, err := s.issuance.Issue(ctx, in)
	if err != nil {
		return nil, &PurchaseError{Outcome: OutcomeNotCommitted, Err: err}
	}
	ticket := issued.Ticket

	fctx := context.WithoutCancel(ctx)

	event, batch := snapshotRecords(ticket, issued.Event)
	art, err := s.generator.Generate(issued.Buyer, event, batch, ticket.ID)
	if err != nil {
		return nil, s.fulfillmentPending(fctx, ticket.ID, err)
	}

	res, err := s.fulfillment.Fulfill(fctx, FulfillInput{
		Ticket:   ticket,
		Buyer:    issued.Buyer,
		Event:    issued.Event,
		Artifact: art,
	})
	if err != nil {
		return nil, s.fulfillmentPending(fctx, ticket.ID, err)
	}

	return &PurchaseResult{
		TicketID:  ticket.ID,
		Summary:   NewSummary(ticket, issued.Buyer, issued.Event, s.loc),
		Delivered: !res.DeliveredAt.IsZero(),
	}, nil
}

// IssueOnly sells one ticket and returns the formatted purchase data without
// generating or sending anything.
func (s *PurchaseService) IssueOnly(ctx context.Context, in IssueInput) (*PurchaseResult, error) {
	issued, err := s.issuance.Issue(ctx, in)
	if err != nil {
		return nil, &PurchaseError{Outcome: OutcomeNotCommitted, Err: err}
	}
	return &PurchaseResult{
		TicketID: issued.Ticket.ID,
		Summary:  NewSummary(issued.Ticket, issued.Buyer, issued.Event, s.loc),
	}, nil
}

// RetryFulfillment re-runs fulfillment for an issued ticket.
func (s *PurchaseService) RetryFulfillment(ctx context.Context, ticketID string) (*FulfillResult, error) {
	res, err := s.fulfillment.Retry(ctx, ticketID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrNotFound) {
			return nil, &PurchaseError{Outcome: OutcomeNotCommitted, Err: err}
		}
		return nil, &PurchaseError{Outcome: OutcomeFulfillmentPending, TicketID: ticketID, Err: err}
	}
	return res, nil
}

func (s *PurchaseService) fulfillmentPending(ctx context.Context, ticketID string, cause error) error {
	log := logging.FromContext(ctx).WithField("ticket_id", ticketID)
	log.WithError(cause).Error("ticket issued but fulfillment failed")

	if s.publisher != nil {
		err := s.publisher.Publish(ctx, domain.RKTicketFulfillmentFailed, domain.TicketFulfillmentFailed{
			TicketID: ticketID,
			Reason:   cause.Error(),
		})
		if err != nil {
			log.WithError(err).Warn("failed to publish ticket.fulfillment_failed")
		}
	}
	return &PurchaseError{Outcome: OutcomeFulfillmentPending, TicketID: ticketID, Err: cause}
}
