package domain

import (
	"fmt"
	"time"
)

type TicketStatus string

const (
	TicketActive TicketStatus = "active"
)

// Ticket is created once by issuance and mutated once afterwards, when
// fulfillment flips Delivered. EventTitle, BatchName and Price are a snapshot
// taken at purchase time.
type Ticket struct {
	ID          string
	BuyerID     string
	EventID     string
	BatchID     string
	Status      TicketStatus
	PurchasedAt Timestamp
	Delivered   bool
	DeliveredAt *time.Time
	EventTitle  string
	BatchName   string
	Price       float64
}

// NewTicket builds an active, undelivered ticket for batch. The purchase time
// stays pending until the store assigns it.
func NewTicket(id string, buyer *Buyer, event *Event, batch *Batch) *Ticket {
	return &Ticket{
		ID:          id,
		BuyerID:     buyer.ID,
		EventID:     event.ID,
		BatchID:     batch.ID,
		Status:      TicketActive,
		PurchasedAt: PendingTimestamp(),
		Delivered:   false,
		EventTitle:  event.Title,
		BatchName:   batch.Name,
		Price:       batch.Price,
	}
}

// FormatPrice renders an amount with two decimal places, without currency.
func FormatPrice(p float64) string {
	return fmt.Sprintf("%.2f", p)
}
