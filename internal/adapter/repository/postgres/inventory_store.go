package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/srgjo27/eventflow/internal/core/domain"
	"github.com/srgjo27/eventflow/internal/core/ports"
)

var _ ports.InventoryStore = (*InventoryStore)(nil)

// InventoryStore runs issuance transactions at REPEATABLE READ. Postgres
// aborts the later of two transactions that update the same batch row with a
// serialization failure, which surfaces as domain.ErrTransactionConflict.
type InventoryStore struct {
	db *sql.DB
}

func NewInventoryStore(db *sql.DB) *InventoryStore {
	return &InventoryStore{db: db}
}

func (s *InventoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx ports.InventoryTx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return mapError("begin transaction", err)
	}

	defer tx.Rollback()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapError("commit transaction", err)
	}

	return nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	return getBatch(ctx, t.tx, batchID)
}

func (t *pgTx) CreateTicket(ctx context.Context, ticket *domain.Ticket) error {
	query := `
	INSERT INTO tickets (id, buyer_id, event_id, batch_id, status, delivered, event_title, batch_name, price)
	VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, $8)
	RETURNING purchased_at
	`

	var purchasedAt sql.NullTime
	err := t.tx.QueryRowContext(ctx, query,
		ticket.ID,
		ticket.BuyerID,
		ticket.EventID,
		ticket.BatchID,
		ticket.Status,
		ticket.EventTitle,
		ticket.BatchName,
		ticket.Price,
	).Scan(&purchasedAt)
	if err != nil {
		return mapError("insert ticket", err)
	}

	if purchasedAt.Valid {
		ticket.PurchasedAt = domain.TimestampOf(purchasedAt.Time)
	}
	return nil
}

func (t *pgTx) DecrementBatch(ctx context.Context, batch *domain.Batch) error {
	query := `
	UPDATE batches
	SET quantity = quantity - 1,
		version = version + 1
	WHERE id = $1 AND version = $2 AND quantity > 0
	`

	result, err := t.tx.ExecContext(ctx, query, batch.ID, batch.Version)
	if err != nil {
		return mapError("decrement batch", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError("decrement batch", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("batch %s was modified by another transaction: %w", batch.ID, domain.ErrTransactionConflict)
	}

	return nil
}
