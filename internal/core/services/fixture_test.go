package services_test

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/srgjo27/eventflow/internal/adapter/repository/memory"
	"github.com/srgjo27/eventflow/internal/core/artifact"
	"github.com/srgjo27/eventflow/internal/core/domain"
	"github.com/srgjo27/eventflow/internal/core/ports"
	"github.com/srgjo27/eventflow/internal/core/services"
	"github.com/srgjo27/eventflow/internal/platform/clock"
)

var (
	purchaseTime = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	eventStart   = time.Date(2026, 11, 20, 22, 30, 0, 0, time.UTC)
	saoPaulo     = time.FixedZone("BRT", -3*60*60)
)

type fixture struct {
	store *memory.Store
	buyer domain.Buyer
	event domain.Event
	batch domain.Batch
}

func newFixture(quantity int) *fixture {
	venue := "Arena Norte"
	f := &fixture{
		store: memory.NewStore(clock.NewFixed(purchaseTime)),
		buyer: domain.Buyer{ID: "buyer-1", Name: "Ana Souza", Email: "ana@example.com"},
		event: domain.Event{ID: "event-1", Title: "Rock Night", StartsAt: domain.TimestampOf(eventStart), Venue: &venue},
		batch: domain.Batch{ID: "batch-1", EventID: "event-1", Name: "First batch", Price: 120.5, Quantity: quantity},
	}
	f.store.PutBuyer(f.buyer)
	f.store.PutEvent(f.event)
	f.store.PutBatch(f.batch)
	return f
}

func (f *fixture) input() services.IssueInput {
	return services.IssueInput{BuyerID: f.buyer.ID, EventID: f.event.ID, BatchID: f.batch.ID}
}

func (f *fixture) remaining() int {
	b, _ := f.store.GetBatch(context.Background(), f.batch.ID)
	return b.Quantity
}

func noDelay() backoff.BackOff {
	return &backoff.ZeroBackOff{}
}

// outdatedCatalog answers batch reads with a fixed copy that no longer matches
// what the store holds, as a read racing a catalog edit would.
type outdatedCatalog struct {
	ports.CatalogRepository
	batch domain.Batch
}

func (c outdatedCatalog) GetBatch(_ context.Context, _ string) (*domain.Batch, error) {
	b := c.batch
	return &b, nil
}

type recordingGenerator struct {
	inner services.ArtifactGenerator
	event *domain.Event
	batch *domain.Batch
}

func (g *recordingGenerator) Generate(buyer *domain.Buyer, event *domain.Event, batch *domain.Batch, ticketID string) (*artifact.Artifact, error) {
	g.event, g.batch = event, batch
	return g.inner.Generate(buyer, event, batch, ticketID)
}
