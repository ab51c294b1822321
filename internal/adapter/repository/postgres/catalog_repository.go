package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/srgjo27/eventflow/internal/core/domain"
	"github.com/srgjo27/eventflow/internal/core/ports"
)

var _ ports.CatalogRepository = (*CatalogRepository)(nil)

type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) GetBuyer(ctx context.Context, buyerID string) (*domain.Buyer, error) {
	query := `
	SELECT id, name, email
	FROM buyers
	WHERE id = $1
	`

	var buyer domain.Buyer
	err := r.db.QueryRowContext(ctx, query, buyerID).Scan(&buyer.ID, &buyer.Name, &buyer.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("buyer %s: %w", buyerID, domain.ErrNotFound)
		}
		return nil, mapError("get buyer", err)
	}

	return &buyer, nil
}

func (r *CatalogRepository) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	query := `
	SELECT id, title, starts_at, venue
	FROM events
	WHERE id = $1
	`

	var event domain.Event
	var startsAt sql.NullTime
	var venue sql.NullString

	err := r.db.QueryRowContext(ctx, query, eventID).Scan(&event.ID, &event.Title, &startsAt, &venue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event %s: %w", eventID, domain.ErrNotFound)
		}
		return nil, mapError("get event", err)
	}

	if startsAt.Valid {
		event.StartsAt = domain.TimestampOf(startsAt.Time)
	}
	if venue.Valid {
		event.Venue = &venue.String
	}

	return &event, nil
}

func (r *CatalogRepository) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	return getBatch(ctx, r.db, batchID)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getBatch(ctx context.Context, q rowQuerier, batchID string) (*domain.Batch, error) {
	query := `
	SELECT id, event_id, name, price, quantity, version
	FROM batches
	WHERE id = $1
	`

	var batch domain.Batch
	var eventID sql.NullString

	err := q.QueryRowContext(ctx, query, batchID).Scan(
		&batch.ID,
		&eventID,
		&batch.Name,
		&batch.Price,
		&batch.Quantity,
		&batch.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("batch %s: %w", batchID, domain.ErrNotFound)
		}
		return nil, mapError("get batch", err)
	}
	batch.EventID = eventID.String

	return &batch, nil
}
