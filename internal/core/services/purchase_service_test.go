package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/srgjo27/eventflow/internal/core/artifact"
	"github.com/srgjo27/eventflow/internal/core/domain"
	"github.com/srgjo27/eventflow/internal/core/ports"
	"github.com/srgjo27/eventflow/internal/core/ports/mocks"
	"github.com/srgjo27/eventflow/internal/core/services"
	"github.com/srgjo27/eventflow/internal/platform/clock"
)

type failingGenerator struct{}

func (failingGenerator) Generate(*domain.Buyer, *domain.Event, *domain.Batch, string) (*artifact.Artifact, error) {
	return nil, fmt.Errorf("%w: font missing", domain.ErrArtifactGenerationFailed)
}

func newPurchase(f *fixture, mailer ports.Mailer, publisher ports.EventPublisher, gen services.ArtifactGenerator) *services.PurchaseService {
	issuance := services.NewIssuanceService(f.store, f.store,
		services.WithTicketIDs(func() string { return "tkt-1" }),
		services.WithIssuancePublisher(publisher),
	)
	fulfillment := services.NewFulfillmentService(f.store, f.store, gen, mailer, clock.NewFixed(deliveryTime),
		services.WithDisplayLocation(saoPaulo),
	)
	return services.NewPurchaseService(issuance, fulfillment, gen, publisher, saoPaulo)
}

func TestIssueAndFulfill_Success(t *testing.T) {
	f := newFixture(2)
	mailer := mocks.NewMailer(t)
	publisher := mocks.NewEventPublisher(t)
	svc := newPurchase(f, mailer, publisher, artifact.NewGenerator(artifact.WithLocation(saoPaulo)))

	publisher.On("Publish", mock.Anything, domain.RKTicketIssued, mock.Anything).Return(nil).Once()
	mailer.On("Send", mock.Anything, ticketEmail("ana@example.com")).Return(nil).Once()

	res, err := svc.IssueAndFulfill(context.Background(), f.input())

	require.NoError(t, err)
	assert.Equal(t, "tkt-1", res.TicketID)
	assert.True(t, res.Delivered)
	assert.Equal(t, services.Summary{
		TicketID:   "tkt-1",
		BuyerName:  "Ana Souza",
		BuyerEmail: "ana@example.com",
		EventTitle: "Rock Night",
		EventDate:  "20/11/2026 19:30",
		Venue:      "Arena Norte",
		BatchName:  "First batch",
		Price:      "120.50",
	}, res.Summary)
	assert.Equal(t, 1, f.remaining())
}

func TestIssueAndFulfill_ArtifactMatchesTicketSnapshot(t *testing.T) {
	f := newFixture(2)
	outdated := f.batch
	outdated.Name = "Early bird"
	outdated.Price = 10

	mailer := mocks.NewMailer(t)
	gen := &recordingGenerator{inner: artifact.NewGenerator(artifact.WithLocation(saoPaulo))}
	issuance := services.NewIssuanceService(outdatedCatalog{CatalogRepository: f.store, batch: outdated}, f.store,
		services.WithTicketIDs(func() string { return "tkt-1" }),
	)
	fulfillment := services.NewFulfillmentService(f.store, f.store, gen, mailer, clock.NewFixed(deliveryTime),
		services.WithDisplayLocation(saoPaulo),
	)
	svc := services.NewPurchaseService(issuance, fulfillment, gen, nil, saoPaulo)

	mailer.On("Send", mock.Anything, ticketEmail("ana@example.com")).Return(nil).Once()

	res, err := svc.IssueAndFulfill(context.Background(), f.input())

	require.NoError(t, err)
	require.NotNil(t, gen.batch)
	assert.Equal(t, 120.5, gen.batch.Price)
	assert.Equal(t, "First batch", gen.batch.Name)
	assert.Equal(t, "Rock Night", gen.event.Title)
	assert.Equal(t, "120.50", res.Summary.Price)
	assert.Equal(t, "First batch", res.Summary.BatchName)

	stored, err := f.store.GetTicket(context.Background(), "tkt-1")
	require.NoError(t, err)
	assert.Equal(t, gen.batch.Price, stored.Price)
}

func TestIssueAndFulfill_NotCommitted(t *testing.T) {
	f := newFixture(0)
	// Neither collaborator may be touched when nothing was sold.
	mailer := mocks.NewMailer(t)
	publisher := mocks.NewEventPublisher(t)
	svc := newPurchase(f, mailer, publisher, artifact.NewGenerator())

	res, err := svc.IssueAndFulfill(context.Background(), f.input())

	assert.Nil(t, res)
	var perr *services.PurchaseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, services.OutcomeNotCommitted, perr.Outcome)
	assert.Empty(t, perr.TicketID)
	assert.ErrorIs(t, err, domain.ErrInventoryExhausted)
}

func TestIssueAndFulfill_DeliveryFailureIsFulfillmentPending(t *testing.T) {
	f := newFixture(2)
	mailer := mocks.NewMailer(t)
	publisher := mocks.NewEventPublisher(t)
	svc := newPurchase(f, mailer, publisher, artifact.NewGenerator())

	publisher.On("Publish", mock.Anything, domain.RKTicketIssued, mock.Anything).Return(nil).Once()
	mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp timeout")).Once()
	publisher.On("Publish", mock.Anything, domain.RKTicketFulfillmentFailed, mock.MatchedBy(func(e domain.TicketFulfillmentFailed) bool {
		return e.TicketID == "tkt-1" && e.Reason != ""
	})).Return(nil).Once()

	res, err := svc.IssueAndFulfill(context.Background(), f.input())

	assert.Nil(t, res)
	var perr *services.PurchaseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, services.OutcomeFulfillmentPending, perr.Outcome)
	assert.Equal(t, "tkt-1", perr.TicketID)
	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)

	stored, err := f.store.GetTicket(context.Background(), "tkt-1")
	require.NoError(t, err)
	assert.False(t, stored.Delivered)
	assert.Equal(t, 1, f.remaining(), "the sale is final")
}

func TestIssueAndFulfill_ArtifactFailureIsFulfillmentPending(t *testing.T) {
	f := newFixture(2)
	mailer := mocks.NewMailer(t)
	publisher := mocks.NewEventPublisher(t)
	svc := newPurchase(f, mailer, publisher, failingGenerator{})

	publisher.On("Publish", mock.Anything, domain.RKTicketIssued, mock.Anything).Return(nil).Once()
	publisher.On("Publish", mock.Anything, domain.RKTicketFulfillmentFailed, mock.Anything).
		Return(errors.New("broker down")).Once()

	_, err := svc.IssueAndFulfill(context.Background(), f.input())

	var perr *services.PurchaseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, services.OutcomeFulfillmentPending, perr.Outcome)
	assert.ErrorIs(t, err, domain.ErrArtifactGenerationFailed)
	assert.Equal(t, 1, f.remaining())
	assert.Len(t, f.store.Tickets(), 1)
}

func TestIssueOnly(t *testing.T) {
	f := newFixture(2)
	mailer := mocks.NewMailer(t)
	publisher := mocks.NewEventPublisher(t)
	svc := newPurchase(f, mailer, publisher, artifact.NewGenerator())

	publisher.On("Publish", mock.Anything, domain.RKTicketIssued, mock.Anything).Return(nil).Once()

	res, err := svc.IssueOnly(context.Background(), f.input())

	require.NoError(t, err)
	assert.False(t, res.Delivered)
	assert.Equal(t, "20/11/2026 19:30", res.Summary.EventDate)
	assert.Equal(t, "120.50", res.Summary.Price)

	stored, err := f.store.GetTicket(context.Background(), res.TicketID)
	require.NoError(t, err)
	assert.False(t, stored.Delivered)
}

func TestRetryFulfillment_Outcomes(t *testing.T) {
	f := newFixture(2)
	mailer := mocks.NewMailer(t)
	publisher := mocks.NewEventPublisher(t)
	svc := newPurchase(f, mailer, publisher, artifact.NewGenerator())

	_, err := svc.RetryFulfillment(context.Background(), "unknown")
	var perr *services.PurchaseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, services.OutcomeNotCommitted, perr.Outcome)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	publisher.On("Publish", mock.Anything, domain.RKTicketIssued, mock.Anything).Return(nil).Once()
	_, err = svc.IssueOnly(context.Background(), f.input())
	require.NoError(t, err)

	mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("refused")).Once()
	_, err = svc.RetryFulfillment(context.Background(), "tkt-1")
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, services.OutcomeFulfillmentPending, perr.Outcome)
	assert.Equal(t, "tkt-1", perr.TicketID)

	mailer.On("Send", mock.Anything, mock.Anything).Return(nil).Once()
	res, err := svc.RetryFulfillment(context.Background(), "tkt-1")
	require.NoError(t, err)
	assert.True(t, res.Sent)

	res, err = svc.RetryFulfillment(context.Background(), "tkt-1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyDelivered)
}

func TestPurchaseError_Message(t *testing.T) {
	err := &services.PurchaseError{Outcome: services.OutcomeFulfillmentPending, TicketID: "tkt-9", Err: domain.ErrDeliveryFailed}
	assert.Equal(t, "fulfillment_pending (ticket tkt-9): ticket delivery failed", err.Error())

	err = &services.PurchaseError{Outcome: services.OutcomeNotCommitted, Err: domain.ErrNotFound}
	assert.Equal(t, "not_committed: not found", err.Error())
}
