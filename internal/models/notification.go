package models

import (
	"time"

	"github.com/uptrace/bun"
)

// RegistrationEvent is the message published to Kafka whenever the
// ledger confirms or cancels a registration. The notification worker
// consumes it and materializes a Notification row for the user.
type RegistrationEvent struct {
	RegistrationID int64     `json:"registration_id"`
	UserID         int64     `json:"user_id"`
	EventID        int64     `json:"event_id"`
	TicketNumber   string    `json:"ticket_number"`
	Action         string    `json:"action"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type Notification struct {
	bun.BaseModel `bun:"table:notifications"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	UserID    int64     `bun:"user_id,notnull" json:"user_id"`
	EventID   int64     `bun:"event_id,notnull" json:"event_id"`
	Message   string    `bun:"message,notnull" json:"message"`
	Read      bool      `bun:"read" json:"read"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
