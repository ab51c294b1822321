package services

import (
	"time"

	"github.com/srgjo27/eventflow/internal/core/domain"
)

// Summary is the human-readable description of a ticket shown to buyers, in
// the email body and in API responses. Event title, batch name and price come
// from the ticket snapshot.
type Summary struct {
	TicketID   string `json:"ticket_id"`
	BuyerName  string `json:"buyer_name"`
	BuyerEmail string `json:"buyer_email"`
	EventTitle string `json:"event_title"`
	EventDate  string `json:"event_date"`
	Venue      string `json:"venue"`
	BatchName  string `json:"batch_name"`
	Price      string `json:"price"`
}

func NewSummary(ticket *domain.Ticket, buyer *domain.Buyer, event *domain.Event, loc *time.Location) Summary {
	return Summary{
		TicketID:   ticket.ID,
		BuyerName:  buyer.Name,
		BuyerEmail: buyer.Email,
		EventTitle: ticket.EventTitle,
		EventDate:  domain.FormatTimestamp(event.StartsAt, loc),
		Venue:      event.VenueOrUnspecified(),
		BatchName:  ticket.BatchName,
		Price:      domain.FormatPrice(ticket.Price),
	}
}

// snapshotRecords rebuilds the event and batch as they were at purchase time,
// keeping the current start time and venue of the event.
func snapshotRecords(ticket *domain.Ticket, event *domain.Event) (*domain.Event, *domain.Batch) {
	ev := *event
	ev.Title = ticket.EventTitle
	batch := &domain.Batch{
		ID:      ticket.BatchID,
		EventID: ticket.EventID,
		Name:    ticket.BatchName,
		Price:   ticket.Price,
	}
	return &ev, batch
}
