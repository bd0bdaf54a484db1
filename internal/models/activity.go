package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UserActivity is a best-effort audit record of who did what, when.
// Writes are fire-and-forget: a failed insert never aborts the
// operation that produced it.
type UserActivity struct {
	bun.BaseModel `bun:"table:user_activities"`

	ID        string    `bun:"id,pk" json:"id"`
	UserID    int64     `bun:"user_id,notnull" json:"user_id"`
	Action    string    `bun:"action,notnull" json:"action"`
	IPAddress string    `bun:"ip_address" json:"ip_address"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}
