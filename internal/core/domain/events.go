package domain

// Routing keys for ticket integration events.
const (
	RKTicketIssued            = "ticket.issued"
	RKTicketDelivered         = "ticket.delivered"
	RKTicketFulfillmentFailed = "ticket.fulfillment_failed"
)

type TicketIssued struct {
	TicketID    string `json:"ticket_id"`
	BuyerID     string `json:"buyer_id"`
	EventID     string `json:"event_id"`
	BatchID     string `json:"batch_id"`
	PurchasedAt int64  `json:"purchased_at"` // unix seconds
}

type TicketDelivered struct {
	TicketID    string `json:"ticket_id"`
	DeliveredAt int64  `json:"delivered_at"`
}

type TicketFulfillmentFailed struct {
	TicketID string `json:"ticket_id"`
	Reason   string `json:"reason"`
}
