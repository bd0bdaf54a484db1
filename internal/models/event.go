package models

import (
	"time"

	"github.com/uptrace/bun"
)

// EventStatus is the administrative lifecycle of an event. Only
// registration_open events accept new registrations; the open/closed
// flip is driven automatically by the registration ledger as capacity
// changes, draft and completed are set by administrators.
type EventStatus string

const (
	EventDraft              EventStatus = "draft"
	EventRegistrationOpen   EventStatus = "registration_open"
	EventRegistrationClosed EventStatus = "registration_closed"
	EventCompleted          EventStatus = "completed"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          int64       `bun:"id,pk,autoincrement" json:"id"`
	Title       string      `bun:"title,notnull" json:"title"`
	Description string      `bun:"description" json:"description"`
	StartDate   time.Time   `bun:"start_date,notnull" json:"start_date"`
	EndDate     time.Time   `bun:"end_date,nullzero" json:"end_date"`
	Location    string      `bun:"location" json:"location"`
	Published   bool        `bun:"published" json:"published"`
	Status      EventStatus `bun:"status,notnull,default:'draft'" json:"status"`
	// TicketSequence is the per-event monotonic ticket number counter.
	// Advanced only by the registration ledger; values are never reissued.
	TicketSequence int64     `bun:"ticket_sequence,notnull,default:0" json:"-"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero" json:"updated_at"`
}
