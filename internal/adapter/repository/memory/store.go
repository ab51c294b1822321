package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/srgjo27/eventflow/internal/core/domain"
	"github.com/srgjo27/eventflow/internal/core/ports"
	"github.com/srgjo27/eventflow/internal/platform/clock"
)

// Store is an in-process implementation of the catalog, inventory and ticket
// ports. Transactions are serialized: the store lock is held from the first
// read to commit, so every transaction observes a consistent snapshot and
// writes staged inside fn are applied only when fn succeeds.
type Store struct {
	mu         sync.Mutex
	clock      clock.Clock
	buyers     map[string]domain.Buyer
	events     map[string]domain.Event
	batches    map[string]domain.Batch
	tickets    map[string]domain.Ticket
	commitErrs []error
}

var (
	_ ports.CatalogRepository = (*Store)(nil)
	_ ports.InventoryStore    = (*Store)(nil)
	_ ports.TicketRepository  = (*Store)(nil)
)

func NewStore(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Store{
		clock:   clk,
		buyers:  make(map[string]domain.Buyer),
		events:  make(map[string]domain.Event),
		batches: make(map[string]domain.Batch),
		tickets: make(map[string]domain.Ticket),
	}
}

func (s *Store) PutBuyer(b domain.Buyer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buyers[b.ID] = b
}

func (s *Store) PutEvent(e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
}

func (s *Store) PutBatch(b domain.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches[b.ID] = b
}

// FailCommits queues errors returned by the next commits, one per commit, in
// place of applying their writes.
func (s *Store) FailCommits(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErrs = append(s.commitErrs, errs...)
}

func (s *Store) GetBuyer(_ context.Context, buyerID string) (*domain.Buyer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buyers[buyerID]
	if !ok {
		return nil, fmt.Errorf("buyer %s: %w", buyerID, domain.ErrNotFound)
	}
	return &b, nil
}

func (s *Store) GetEvent(_ context.Context, eventID string) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", eventID, domain.ErrNotFound)
	}
	return &e, nil
}

func (s *Store) GetBatch(_ context.Context, batchID string) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch(batchID)
}

func (s *Store) batch(batchID string) (*domain.Batch, error) {
	b, ok := s.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("batch %s: %w", batchID, domain.ErrNotFound)
	}
	return &b, nil
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx ports.InventoryTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{store: s, decrements: make(map[string]int)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	if len(s.commitErrs) > 0 {
		err := s.commitErrs[0]
		s.commitErrs = s.commitErrs[1:]
		return err
	}

	for id, n := range tx.decrements {
		b := s.batches[id]
		if b.Quantity < n {
			return fmt.Errorf("batch %s: %w", id, domain.ErrInventoryExhausted)
		}
	}
	for id, n := range tx.decrements {
		b := s.batches[id]
		b.Quantity -= n
		b.Version++
		s.batches[id] = b
	}
	for _, t := range tx.tickets {
		s.tickets[t.ID] = t
	}
	return nil
}

type memTx struct {
	store      *Store
	tickets    []domain.Ticket
	decrements map[string]int
}

func (t *memTx) GetBatch(_ context.Context, batchID string) (*domain.Batch, error) {
	return t.store.batch(batchID)
}

func (t *memTx) CreateTicket(_ context.Context, ticket *domain.Ticket) error {
	if _, exists := t.store.tickets[ticket.ID]; exists {
		return fmt.Errorf("ticket %s already exists", ticket.ID)
	}
	ticket.PurchasedAt = domain.TimestampOf(t.store.clock.Now())
	t.tickets = append(t.tickets, *ticket)
	return nil
}

func (t *memTx) DecrementBatch(_ context.Context, batch *domain.Batch) error {
	current, ok := t.store.batches[batch.ID]
	if !ok {
		return fmt.Errorf("batch %s: %w", batch.ID, domain.ErrNotFound)
	}
	if current.Version != batch.Version {
		return fmt.Errorf("batch %s changed since read: %w", batch.ID, domain.ErrTransactionConflict)
	}
	t.decrements[batch.ID]++
	return nil
}

func (s *Store) GetTicket(_ context.Context, ticketID string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, domain.ErrNotFound)
	}
	return &t, nil
}

func (s *Store) MarkDelivered(_ context.Context, ticketID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[ticketID]
	if !ok {
		return fmt.Errorf("ticket %s: %w", ticketID, domain.ErrNotFound)
	}
	if t.Delivered {
		return nil
	}
	t.Delivered = true
	t.DeliveredAt = &at
	s.tickets[ticketID] = t
	return nil
}

func (s *Store) ListUndelivered(_ context.Context, purchasedBefore time.Time, limit int) ([]domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Ticket
	for _, t := range s.tickets {
		if t.Delivered {
			continue
		}
		at, ok := t.PurchasedAt.Time()
		if !ok || !at.Before(purchasedBefore) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := out[i].PurchasedAt.EpochSeconds()
		b, _ := out[j].PurchasedAt.EpochSeconds()
		if a == b {
			return out[i].ID < out[j].ID
		}
		return a < b
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Tickets returns every stored ticket, for inspection.
func (s *Store) Tickets() []domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, t)
	}
	return out
}
