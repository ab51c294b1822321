package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/srgjo27/eventflow/internal/core/domain"
	"github.com/srgjo27/eventflow/internal/core/ports"
)

var _ ports.TicketRepository = (*TicketRepository)(nil)

type TicketRepository struct {
	db *sql.DB
}

func NewTicketRepository(db *sql.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

const ticketColumns = `id, buyer_id, event_id, batch_id, status, purchased_at, delivered, delivered_at, event_title, batch_name, price`

type scanner interface {
	Scan(dest ...any) error
}

func scanTicket(s scanner) (*domain.Ticket, error) {
	var ticket domain.Ticket
	var purchasedAt, deliveredAt sql.NullTime

	err := s.Scan(
		&ticket.ID,
		&ticket.BuyerID,
		&ticket.EventID,
		&ticket.BatchID,
		&ticket.Status,
		&purchasedAt,
		&ticket.Delivered,
		&deliveredAt,
		&ticket.EventTitle,
		&ticket.BatchName,
		&ticket.Price,
	)
	if err != nil {
		return nil, err
	}

	if purchasedAt.Valid {
		ticket.PurchasedAt = domain.TimestampOf(purchasedAt.Time)
	}
	if deliveredAt.Valid {
		at := deliveredAt.Time.UTC()
		ticket.DeliveredAt = &at
	}

	return &ticket, nil
}

func (r *TicketRepository) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`

	ticket, err := scanTicket(r.db.QueryRowContext(ctx, query, ticketID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ticket %s: %w", ticketID, domain.ErrNotFound)
		}
		return nil, mapError("get ticket", err)
	}

	return ticket, nil
}

// MarkDelivered flips the delivery flag once; later calls keep the first
// delivery time.
func (r *TicketRepository) MarkDelivered(ctx context.Context, ticketID string, at time.Time) error {
	query := `
	UPDATE tickets
	SET delivered = TRUE, delivered_at = $2
	WHERE id = $1 AND delivered = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, ticketID, at)
	if err != nil {
		return mapError("mark ticket delivered", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return mapError("mark ticket delivered", err)
	}

	if rowsAffected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)`, ticketID).Scan(&exists); err != nil {
			return mapError("mark ticket delivered", err)
		}
		if !exists {
			return fmt.Errorf("ticket %s: %w", ticketID, domain.ErrNotFound)
		}
	}

	return nil
}

func (r *TicketRepository) ListUndelivered(ctx context.Context, purchasedBefore time.Time, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + ticketColumns + `
	FROM tickets
	WHERE delivered = FALSE AND purchased_at < $1
	ORDER BY purchased_at, id
	LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, purchasedBefore, limit)
	if err != nil {
		return nil, mapError("list undelivered tickets", err)
	}

	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, mapError("list undelivered tickets", err)
		}

		tickets = append(tickets, *ticket)
	}

	if err := rows.Err(); err != nil {
		return nil, mapError("list undelivered tickets", err)
	}

	return tickets, nil
}
