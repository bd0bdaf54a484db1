package models

import "time"

// Payment records a Stripe charge against a paid registration. Stored by
// the payment gateway, not by the ledger: free registrations never
// produce one.
type Payment struct {
	ID              string    `json:"id"`
	RegistrationID  int64     `json:"registration_id"`
	UserID          int64     `json:"user_id"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	PaymentIntentID string    `json:"payment_intent_id"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PaymentRequest is the payment gateway's charge request body.
type PaymentRequest struct {
	RegistrationID int64   `json:"registration_id" binding:"required"`
	UserID         int64   `json:"user_id"`
	Amount         float64 `json:"amount" binding:"required,gt=0"`
	Currency       string  `json:"currency"`
	PaymentMethod  string  `json:"payment_method" binding:"required"`
}

// PaymentResponse is what the gateway returns to the frontend.
type PaymentResponse struct {
	PaymentID       string `json:"payment_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	ClientSecret    string `json:"client_secret,omitempty"`
	Status          string `json:"status"`
}
