package ports

import (
	"context"
	"time"

	"github.com/srgjo27/eventflow/internal/core/domain"
)

// CatalogRepository reads the records a purchase references. Missing records
// are reported as domain.ErrNotFound.
type CatalogRepository interface {
	GetBuyer(ctx context.Context, buyerID string) (*domain.Buyer, error)
	GetEvent(ctx context.Context, eventID string) (*domain.Event, error)
	GetBatch(ctx context.Context, batchID string) (*domain.Batch, error)
}

// InventoryStore runs fn inside one transaction with snapshot isolation. The
// transaction commits only when fn returns nil. A commit that loses a race to
// a concurrent writer fails with domain.ErrTransactionConflict and leaves no
// trace.
type InventoryStore interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx InventoryTx) error) error
}

// InventoryTx is the set of operations available inside an issuance
// transaction.
type InventoryTx interface {
	GetBatch(ctx context.Context, batchID string) (*domain.Batch, error)
	// CreateTicket persists ticket and resolves its PurchasedAt with the
	// store's clock.
	CreateTicket(ctx context.Context, ticket *domain.Ticket) error
	// DecrementBatch removes one unit from the batch read earlier in the same
	// transaction.
	DecrementBatch(ctx context.Context, batch *domain.Batch) error
}

type TicketRepository interface {
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
	MarkDelivered(ctx context.Context, ticketID string, at time.Time) error
	ListUndelivered(ctx context.Context, purchasedBefore time.Time, limit int) ([]domain.Ticket, error)
}
