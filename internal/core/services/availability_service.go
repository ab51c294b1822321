package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/srgjo27/eventflow/internal/core/domain"
	"github.com/srgjo27/eventflow/internal/core/ports"
	"github.com/srgjo27/eventflow/internal/platform/logging"
)

type Availability struct {
	BatchID   string `json:"batch_id"`
	Remaining int    `json:"remaining"`
	SoldOut   bool   `json:"sold_out"`
	Cached    bool   `json:"cached"`
}

// AvailabilityService answers "how many are left" for display. It is never
// consulted by issuance.
type AvailabilityService struct {
	catalog ports.CatalogRepository
	cache   ports.AvailabilityCache
}

func NewAvailabilityService(catalog ports.CatalogRepository, cache ports.AvailabilityCache) *AvailabilityService {
	return &AvailabilityService{catalog: catalog, cache: cache}
}

func (s *AvailabilityService) Get(ctx context.Context, batchID string) (*Availability, error) {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("%w: missing batch id", domain.ErrInvalidInput)
	}
	log := logging.FromContext(ctx).WithField("batch_id", batchID)

	if s.cache != nil {
		remaining, ok, err := s.cache.Get(ctx, batchID)
		if err != nil {
			log.WithError(err).Warn("availability cache read failed")
		} else if ok {
			return &Availability{BatchID: batchID, Remaining: remaining, SoldOut: remaining <= 0, Cached: true}, nil
		}
	}

	batch, err := s.catalog.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, batchID, batch.Quantity); err != nil {
			log.WithError(err).Warn("availability cache write failed")
		}
	}
	return &Availability{BatchID: batchID, Remaining: batch.Quantity, SoldOut: batch.Quantity <= 0}, nil
}
