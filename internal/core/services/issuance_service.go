package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/srgjo27/eventflow/internal/core/domain"
	"github.com/srgjo27/eventflow/internal/core/ports"
	"github.com/srgjo27/eventflow/internal/platform/logging"
)

var tracer = otel.Tracer("github.com/srgjo27/eventflow/internal/core/services")

// Under heavy contention on one batch a purchase can exhaust these attempts
// while units remain; it then fails with domain.ErrTransactionConflict and
// nothing is sold. Raise ISSUANCE_MAX_ATTEMPTS to trade latency for fewer
// such failures.
const defaultIssuanceAttempts = 4

type IssueInput struct {
	BuyerID string `json:"buyer_id"`
	EventID string `json:"event_id"`
	BatchID string `json:"batch_id"`
}

func (in IssueInput) normalized() IssueInput {
	return IssueInput{
		BuyerID: strings.TrimSpace(in.BuyerID),
		EventID: strings.TrimSpace(in.EventID),
		BatchID: strings.TrimSpace(in.BatchID),
	}
}

func (in IssueInput) validate() error {
	var missing []string
	if in.BuyerID == "" {
		missing = append(missing, "buyer_id")
	}
	if in.EventID == "" {
		missing = append(missing, "event_id")
	}
	if in.BatchID == "" {
		missing = append(missing, "batch_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

// Issued is a committed sale together with the records it was issued from.
// Batch is the batch as read inside the committing transaction, with the sold
// unit already taken.
type Issued struct {
	Ticket *domain.Ticket
	Buyer  *domain.Buyer
	Event  *domain.Event
	Batch  *domain.Batch
}

type IssuanceService struct {
	catalog     ports.CatalogRepository
	store       ports.InventoryStore
	cache       ports.AvailabilityCache
	publisher   ports.EventPublisher
	maxAttempts int
	newBackOff  func() backoff.BackOff
	newID       func() string
}

type IssuanceOption func(*IssuanceService)

// WithMaxAttempts bounds how many times a conflicting transaction is run.
func WithMaxAttempts(n int) IssuanceOption {
	return func(s *IssuanceService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRetryBackOff replaces the delay policy between conflicting attempts.
func WithRetryBackOff(fn func() backoff.BackOff) IssuanceOption {
	return func(s *IssuanceService) {
		if fn != nil {
			s.newBackOff = fn
		}
	}
}

func WithAvailabilityCache(c ports.AvailabilityCache) IssuanceOption {
	return func(s *IssuanceService) {
		s.cache = c
	}
}

func WithIssuancePublisher(p ports.EventPublisher) IssuanceOption {
	return func(s *IssuanceService) {
		s.publisher = p
	}
}

func WithTicketIDs(fn func() string) IssuanceOption {
	return func(s *IssuanceService) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func NewIssuanceService(catalog ports.CatalogRepository, store ports.InventoryStore, opts ...IssuanceOption) *IssuanceService {
	s := &IssuanceService{
		catalog:     catalog,
		store:       store,
		maxAttempts: defaultIssuanceAttempts,
		newBackOff:  defaultIssuanceBackOff,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultIssuanceBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	return b
}

// Issue creates one ticket and takes one unit from the batch, atomically.
// Availability is decided on the transaction's snapshot; the read made before
// the transaction only short-circuits batches that are already empty.
func (s *IssuanceService) Issue(ctx context.Context, in IssueInput) (*Issued, error) {
	ctx, span := tracer.Start(ctx, "IssuanceService.Issue")
	defer span.End()

	in = in.normalized()
	span.SetAttributes(
		attribute.String("buyer.id", in.BuyerID),
		attribute.String("event.id", in.EventID),
		attribute.String("batch.id", in.BatchID),
	)
	if err := in.validate(); err != nil {
		return nil, err
	}

	buyer, event, batch, err := s.load(ctx, in)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !batch.BelongsTo(event.ID) {
		return nil, fmt.Errorf("%w: batch %s does not belong to event %s", domain.ErrInvalidInput, batch.ID, event.ID)
	}
	if !batch.IsAvailable() {
		return nil, fmt.Errorf("batch %s: %w", batch.ID, domain.ErrInventoryExhausted)
	}

	ticket, committed, err := s.commit(ctx, buyer, event, batch.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issuance failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("ticket.id", ticket.ID))

	s.afterCommit(ctx, ticket)

	return &Issued{Ticket: ticket, Buyer: buyer, Event: event, Batch: committed}, nil
}

func (s *IssuanceService) load(ctx context.Context, in IssueInput) (*domain.Buyer, *domain.Event, *domain.Batch, error) {
	var (
		buyer *domain.Buyer
		event *domain.Event
		batch *domain.Batch
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		buyer, err = s.catalog.GetBuyer(gctx, in.BuyerID)
		return err
	})
	g.Go(func() (err error) {
		event, err = s.catalog.GetEvent(gctx, in.EventID)
		return err
	})
	g.Go(func() (err error) {
		batch, err = s.catalog.GetBatch(gctx, in.BatchID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return buyer, event, batch, nil
}

func (s *IssuanceService) commit(ctx context.Context, buyer *domain.Buyer, event *domain.Event, batchID string) (*domain.Ticket, *domain.Batch, error) {
	log := logging.FromContext(ctx)

	var (
		ticket *domain.Ticket
		sold   *domain.Batch
	)
	attempt := 0
	op := func() error {
		attempt++
		var (
			staged *domain.Ticket
			read   *domain.Batch
		)
		err := s.store.RunInTx(ctx, func(txCtx context.Context, tx ports.InventoryTx) error {
			current, err := tx.GetBatch(txCtx, batchID)
			if err != nil {
				return err
			}
			if !current.IsAvailable() {
				return fmt.Errorf("batch %s: %w", batchID, domain.ErrInventoryExhausted)
			}
			read = current
			staged = domain.NewTicket(s.newID(), buyer, event, current)
			if err := tx.CreateTicket(txCtx, staged); err != nil {
				return err
			}
			return tx.DecrementBatch(txCtx, current)
		})
		if err == nil {
			ticket = staged
			after := *read
			after.Quantity--
			after.Version++
			sold = &after
			return nil
		}
		if errors.Is(err, domain.ErrTransactionConflict) {
			trace.SpanFromContext(ctx).AddEvent("transaction conflict", trace.WithAttributes(attribute.Int("attempt", attempt)))
			log.WithError(err).WithField("attempt", attempt).Warn("issuance transaction conflicted, retrying")
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), uint64(s.maxAttempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, domain.ErrTransactionConflict) {
			return nil, nil, fmt.Errorf("issue ticket after %d attempts: %w", attempt, err)
		}
		return nil, nil, err
	}

	log.WithFields(logrus.Fields{
		"ticket_id": ticket.ID,
		"batch_id":  batchID,
		"attempts":  attempt,
	}).Info("ticket issued")
	return ticket, sold, nil
}

func (s *IssuanceService) afterCommit(ctx context.Context, ticket *domain.Ticket) {
	log := logging.FromContext(ctx)

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, ticket.BatchID); err != nil {
			log.WithError(err).WithField("batch_id", ticket.BatchID).Warn("failed to invalidate availability cache")
		}
	}

	if s.publisher != nil {
		purchasedAt, _ := ticket.PurchasedAt.EpochSeconds()
		err := s.publisher.Publish(ctx, domain.RKTicketIssued, domain.TicketIssued{
			TicketID:    ticket.ID,
			BuyerID:     ticket.BuyerID,
			EventID:     ticket.EventID,
			BatchID:     ticket.BatchID,
			PurchasedAt: purchasedAt,
		})
		if err != nil {
			log.WithError(err).WithField("ticket_id", ticket.ID).Warn("failed to publish ticket.issued")
		}
	}
}
