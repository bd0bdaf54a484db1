package models

import (
	"github.com/uptrace/bun"
)

// TicketType holds the inventory counters for one event. SoldQuantity
// must never exceed AvailableQuantity; both are mutated only by the
// registration ledger inside the same transaction as the registration
// row write.
type TicketType struct {
	bun.BaseModel `bun:"table:ticket_types"`

	ID                int64   `bun:"id,pk,autoincrement" json:"id"`
	EventID           int64   `bun:"event_id,notnull" json:"event_id"`
	Name              string  `bun:"name,notnull" json:"name"`
	Price             float64 `bun:"price,notnull" json:"price"`
	AvailableQuantity int     `bun:"available_quantity,notnull" json:"available_quantity"`
	SoldQuantity      int     `bun:"sold_quantity,notnull,default:0" json:"sold_quantity"`
	FreeRegistration  bool    `bun:"free_registration" json:"free_registration"`
}

// Remaining returns how many tickets are still sellable.
func (t *TicketType) Remaining() int {
	return t.AvailableQuantity - t.SoldQuantity
}
