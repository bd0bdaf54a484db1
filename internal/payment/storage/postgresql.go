package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"ms-registration/internal/config"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
)

var ErrPaymentNotFound = errors.New("payment not found")

type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

func NewPostgreSQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*PostgreSQLStore, error) {
	log.LogDatabase("CONNECT", "postgresql", "Connecting to PostgreSQL")

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		log.Error("DATABASE", "Failed to open PostgreSQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		log.Error("DATABASE", "Failed to ping PostgreSQL: "+err.Error())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgreSQLStore{db: db, log: log}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize payment tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize payment tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "postgresql", "PostgreSQL connection established")
	return store, nil
}

func (s *PostgreSQLStore) initTables() error {
	s.log.LogDatabase("MIGRATE", "payments", "Creating payments table if not exists")

	query := `
    CREATE TABLE IF NOT EXISTS payments (
        id VARCHAR(36) PRIMARY KEY,
        registration_id BIGINT NOT NULL,
        user_id BIGINT NOT NULL,
        amount DECIMAL(10,2) NOT NULL,
        currency VARCHAR(3) NOT NULL,
        payment_intent_id VARCHAR(255),
        status VARCHAR(50) NOT NULL,
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );
    `
	_, err := s.db.Exec(query)
	return err
}

func (s *PostgreSQLStore) SavePayment(payment *models.Payment) error {
	query := `
        INSERT INTO payments (id, registration_id, user_id, amount, currency, payment_intent_id, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now

	_, err := s.db.Exec(query,
		payment.ID, payment.RegistrationID, payment.UserID, payment.Amount,
		payment.Currency, payment.PaymentIntentID, payment.Status,
		payment.CreatedAt, payment.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save payment: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) GetPayment(id string) (*models.Payment, error) {
	query := `
        SELECT id, registration_id, user_id, amount, currency, payment_intent_id, status, created_at, updated_at
        FROM payments WHERE id = $1
    `
	return s.scanPayment(s.db.QueryRow(query, id))
}

func (s *PostgreSQLStore) GetPaymentByRegistrationID(registrationID int64) (*models.Payment, error) {
	query := `
        SELECT id, registration_id, user_id, amount, currency, payment_intent_id, status, created_at, updated_at
        FROM payments WHERE registration_id = $1
        ORDER BY created_at DESC LIMIT 1
    `
	return s.scanPayment(s.db.QueryRow(query, registrationID))
}

func (s *PostgreSQLStore) scanPayment(row *sql.Row) (*models.Payment, error) {
	var payment models.Payment
	err := row.Scan(&payment.ID, &payment.RegistrationID, &payment.UserID,
		&payment.Amount, &payment.Currency, &payment.PaymentIntentID,
		&payment.Status, &payment.CreatedAt, &payment.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return &payment, nil
}

func (s *PostgreSQLStore) UpdatePaymentStatus(id, status string) error {
	query := `UPDATE payments SET status = $1, updated_at = $2 WHERE id = $3`
	_, err := s.db.Exec(query, status, time.Now().UTC(), id)
	return err
}

// MarkRegistrationPaid flips the ledger's payment flag once the Stripe
// charge succeeds. The registrations table is owned by the ledger;
// payment_status is the only column the gateway touches.
func (s *PostgreSQLStore) MarkRegistrationPaid(registrationID int64) error {
	query := `UPDATE registrations SET payment_status = TRUE WHERE id = $1`
	res, err := s.db.Exec(query, registrationID)
	if err != nil {
		return fmt.Errorf("mark registration paid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("registration %d not found", registrationID)
	}
	return nil
}

func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}

func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}
