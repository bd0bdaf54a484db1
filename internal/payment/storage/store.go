package storage

import (
	"ms-registration/internal/models"
)

type Store interface {
	SavePayment(payment *models.Payment) error
	GetPayment(id string) (*models.Payment, error)
	UpdatePaymentStatus(id, status string) error
	GetPaymentByRegistrationID(registrationID int64) (*models.Payment, error)
	MarkRegistrationPaid(registrationID int64) error

	Close() error
	HealthCheck() error
}
