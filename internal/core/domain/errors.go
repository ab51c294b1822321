package domain

import "errors"

var (
	ErrInvalidInput             = errors.New("invalid input")
	ErrNotFound                 = errors.New("not found")
	ErrInventoryExhausted       = errors.New("tickets sold out for this batch")
	ErrTransactionConflict      = errors.New("transaction conflict")
	ErrArtifactGenerationFailed = errors.New("ticket artifact generation failed")
	ErrDeliveryFailed           = errors.New("ticket delivery failed")
	ErrFulfillmentInProgress    = errors.New("ticket fulfillment already in progress")
	ErrStoreUnavailable         = errors.New("store unavailable")
)
