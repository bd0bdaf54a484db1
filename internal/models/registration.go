package models

import (
	"time"

	"github.com/uptrace/bun"
)

// RegistrationStatus is the lifecycle of a registration row. A cancelled
// row is not deleted: it keeps its cancellation history and is reused in
// place if the same user registers for the same event again.
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationApproved  RegistrationStatus = "approved"
	RegistrationRejected  RegistrationStatus = "rejected"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// MaxCancellations caps how often a user may cancel a registration for
// one event. Once reached, re-registration for that event is blocked
// permanently.
const MaxCancellations = 3

type Registration struct {
	bun.BaseModel `bun:"table:registrations"`

	ID                int64              `bun:"id,pk,autoincrement" json:"id"`
	UserID            int64              `bun:"user_id,notnull" json:"user_id"`
	EventID           int64              `bun:"event_id,notnull" json:"event_id"`
	TicketTypeID      int64              `bun:"ticket_type_id,notnull" json:"ticket_type_id"`
	TicketNumber      string             `bun:"ticket_number" json:"ticket_number"`
	PaymentStatus     bool               `bun:"payment_status" json:"payment_status"`
	AmountPaid        float64            `bun:"amount_paid" json:"amount_paid"`
	Status            RegistrationStatus `bun:"status,notnull,default:'pending'" json:"status"`
	SubmissionTime    time.Time          `bun:"submission_time,notnull,default:current_timestamp" json:"submission_time"`
	CancellationCount int                `bun:"cancellation_count,notnull,default:0" json:"cancellation_count"`
}

// Active reports whether the row still holds a ticket.
func (r *Registration) Active() bool {
	return r.Status != RegistrationCancelled
}

// RegistrationConfirmation is returned to the caller after a successful
// Register.
type RegistrationConfirmation struct {
	ID           int64              `json:"id"`
	EventID      int64              `json:"event_id"`
	UserID       int64              `json:"user_id"`
	TicketType   string             `json:"ticket_type"`
	TicketNumber string             `json:"ticket_number"`
	Status       RegistrationStatus `json:"status"`
	QRCode       []byte             `json:"qr_code,omitempty"`
}

// CancellationConfirmation is returned after a successful Cancel. The
// voided ticket number is kept on the row for audit but not returned.
type CancellationConfirmation struct {
	RegistrationID int64  `json:"registration_id"`
	Message        string `json:"message"`
}

// UserTicket is one row of the my-tickets listing: a registration joined
// with its event and ticket type.
type UserTicket struct {
	RegistrationID int64              `json:"registration_id"`
	EventID        int64              `json:"event_id"`
	EventTitle     string             `json:"event_title"`
	TicketType     string             `json:"ticket_type"`
	TicketNumber   string             `json:"ticket_number"`
	Status         RegistrationStatus `json:"status"`
	AmountPaid     float64            `json:"amount_paid"`
	SubmissionTime time.Time          `json:"submission_time"`
}
