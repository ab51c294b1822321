package domain

// Batch is a priced allotment of tickets ("lote") with a finite remaining
// quantity. Version changes on every write and is used for optimistic checks.
type Batch struct {
	ID       string
	EventID  string
	Name     string
	Price    float64
	Quantity int
	Version  int
}

func (b *Batch) IsAvailable() bool {
	return b.Quantity > 0
}

// BelongsTo reports whether the batch is sold for eventID. Batches without an
// event reference are accepted for any event.
func (b *Batch) BelongsTo(eventID string) bool {
	return b.EventID == "" || b.EventID == eventID
}
