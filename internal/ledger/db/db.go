package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-registration/internal/ledger"
	"ms-registration/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- LOOKUPS ----------------

// ActiveRegistration returns the non-cancelled registration for
// (user, event), or nil when there is none.
func (d *DB) ActiveRegistration(ctx context.Context, userID, eventID int64) (*models.Registration, error) {
	var reg models.Registration
	err := d.Bun.NewSelect().
		Model(&reg).
		Where("user_id = ?", userID).
		Where("event_id = ?", eventID).
		Where("status != ?", models.RegistrationCancelled).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// LatestCancelledRegistration returns the most recently cancelled
// registration for (user, event), or nil when there is none.
func (d *DB) LatestCancelledRegistration(ctx context.Context, userID, eventID int64) (*models.Registration, error) {
	var reg models.Registration
	err := d.Bun.NewSelect().
		Model(&reg).
		Where("user_id = ?", userID).
		Where("event_id = ?", eventID).
		Where("status = ?", models.RegistrationCancelled).
		Order("submission_time DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (d *DB) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// TicketTypeForEvent returns the event's ticket type. The model allows
// several per event but observed usage is one; the first is taken.
func (d *DB) TicketTypeForEvent(ctx context.Context, eventID int64) (*models.TicketType, error) {
	var ticket models.TicketType
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("event_id = ?", eventID).
		Order("id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// CloseEventRegistration flips a stale registration_open event to
// registration_closed. Used on the rejecting path, outside the commit
// transaction, so the correction survives the rollback.
func (d *DB) CloseEventRegistration(ctx context.Context, eventID int64) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("status = ?", models.EventRegistrationClosed).
		Where("id = ?", eventID).
		Where("status = ?", models.EventRegistrationOpen).
		Exec(ctx)
	return err
}

// ---------------- COMMITS ----------------

// CommitRegister books one ticket atomically: conditional counter
// increment, ticket number assignment, registration row write and the
// closing status flip all land in one transaction or not at all.
//
// The increment is guarded by "sold_quantity < available_quantity" so
// two attempts racing past the service-level availability check cannot
// both take the last ticket; the loser sees zero affected rows and gets
// ledger.ErrSoldOut with nothing written.
func (d *DB) CommitRegister(ctx context.Context, reg *models.Registration) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.TicketType)(nil)).
			Set("sold_quantity = sold_quantity + 1").
			Where("id = ?", reg.TicketTypeID).
			Where("sold_quantity < available_quantity").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("increment sold counter: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("increment sold counter: %w", err)
		}
		if affected == 0 {
			return ledger.ErrSoldOut
		}

		seq, err := nextTicketSequence(ctx, tx, reg.EventID)
		if err != nil {
			return fmt.Errorf("advance ticket sequence: %w", err)
		}
		reg.TicketNumber = fmt.Sprintf("%d-%d", reg.EventID, seq)

		if reg.ID != 0 {
			// Re-registration reuses the cancelled row in place; the
			// cancellation count is deliberately left untouched.
			_, err = tx.NewUpdate().
				Model(reg).
				Column("ticket_type_id", "ticket_number", "payment_status", "amount_paid", "status", "submission_time").
				Where("id = ?", reg.ID).
				Exec(ctx)
		} else {
			_, err = tx.NewInsert().Model(reg).Exec(ctx)
		}
		if err != nil {
			return fmt.Errorf("write registration: %w", err)
		}

		var ticket models.TicketType
		if err := tx.NewSelect().
			Model(&ticket).
			Where("id = ?", reg.TicketTypeID).
			Scan(ctx); err != nil {
			return fmt.Errorf("reload ticket type: %w", err)
		}
		var event models.Event
		if err := tx.NewSelect().
			Model(&event).
			Where("id = ?", reg.EventID).
			Scan(ctx); err != nil {
			return fmt.Errorf("reload event: %w", err)
		}

		// The reloaded counter is post-increment; the transition helpers
		// take the pre-sale snapshot.
		snap := ledger.Snapshot{
			EventStatus: event.Status,
			Available:   ticket.AvailableQuantity,
			Sold:        ticket.SoldQuantity - 1,
		}
		if next := ledger.AfterRegister(snap); next != event.Status {
			if _, err := tx.NewUpdate().
				Model((*models.Event)(nil)).
				Set("status = ?", next).
				Where("id = ?", reg.EventID).
				Exec(ctx); err != nil {
				return fmt.Errorf("close event registration: %w", err)
			}
		}
		return nil
	})
}

// CommitCancel voids a registration atomically: the row flip guarded on
// the row still being active, the counter decrement with a floor at
// zero, and the reopening status flip when capacity comes back.
//
// The row flip is guarded by "status != cancelled" so two cancels
// racing past the service-level lookup cannot both return the same
// ticket; the loser sees zero affected rows and gets
// ledger.ErrNoActiveRegistration with nothing written.
func (d *DB) CommitCancel(ctx context.Context, reg *models.Registration) error {
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Registration)(nil)).
			Set("status = ?", models.RegistrationCancelled).
			Set("cancellation_count = cancellation_count + 1").
			Where("id = ?", reg.ID).
			Where("status != ?", models.RegistrationCancelled).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("cancel registration row: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("cancel registration row: %w", err)
		}
		if affected == 0 {
			return ledger.ErrNoActiveRegistration
		}

		if _, err := tx.NewUpdate().
			Model((*models.TicketType)(nil)).
			Set("sold_quantity = sold_quantity - 1").
			Where("id = ?", reg.TicketTypeID).
			Where("sold_quantity > 0").
			Exec(ctx); err != nil {
			return fmt.Errorf("decrement sold counter: %w", err)
		}

		var ticket models.TicketType
		if err := tx.NewSelect().
			Model(&ticket).
			Where("id = ?", reg.TicketTypeID).
			Scan(ctx); err != nil {
			return fmt.Errorf("reload ticket type: %w", err)
		}
		var event models.Event
		if err := tx.NewSelect().
			Model(&event).
			Where("id = ?", reg.EventID).
			Scan(ctx); err != nil {
			return fmt.Errorf("reload event: %w", err)
		}

		// The reloaded counter is post-decrement; the transition helpers
		// take the pre-cancel snapshot.
		snap := ledger.Snapshot{
			EventStatus: event.Status,
			Available:   ticket.AvailableQuantity,
			Sold:        ticket.SoldQuantity + 1,
		}
		if next := ledger.AfterCancel(snap); next != event.Status {
			if _, err := tx.NewUpdate().
				Model((*models.Event)(nil)).
				Set("status = ?", next).
				Where("id = ?", reg.EventID).
				Exec(ctx); err != nil {
				return fmt.Errorf("reopen event registration: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	reg.Status = models.RegistrationCancelled
	reg.CancellationCount++
	return nil
}

// nextTicketSequence advances the per-event monotonic ticket counter
// and returns the new value. Numbers are never reissued, even when the
// registration row that carried an earlier one is reused.
func nextTicketSequence(ctx context.Context, tx bun.Tx, eventID int64) (int64, error) {
	var seq int64
	err := tx.NewUpdate().
		Model((*models.Event)(nil)).
		Set("ticket_sequence = ticket_sequence + 1").
		Where("id = ?", eventID).
		Returning("ticket_sequence").
		Scan(ctx, &seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// ---------------- LISTINGS ----------------

// UserTickets returns every registration of a user joined with its
// event title and ticket type name, newest first.
func (d *DB) UserTickets(ctx context.Context, userID int64) ([]models.UserTicket, error) {
	var regs []models.Registration
	err := d.Bun.NewSelect().
		Model(&regs).
		Where("user_id = ?", userID).
		Order("submission_time DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(regs) == 0 {
		return []models.UserTicket{}, nil
	}

	eventIDs := make([]int64, 0, len(regs))
	ticketTypeIDs := make([]int64, 0, len(regs))
	for _, reg := range regs {
		eventIDs = append(eventIDs, reg.EventID)
		ticketTypeIDs = append(ticketTypeIDs, reg.TicketTypeID)
	}

	var events []models.Event
	if err := d.Bun.NewSelect().
		Model(&events).
		Where("id IN (?)", bun.In(eventIDs)).
		Scan(ctx); err != nil {
		return nil, err
	}
	eventsByID := make(map[int64]models.Event, len(events))
	for _, e := range events {
		eventsByID[e.ID] = e
	}

	var ticketTypes []models.TicketType
	if err := d.Bun.NewSelect().
		Model(&ticketTypes).
		Where("id IN (?)", bun.In(ticketTypeIDs)).
		Scan(ctx); err != nil {
		return nil, err
	}
	typesByID := make(map[int64]models.TicketType, len(ticketTypes))
	for _, t := range ticketTypes {
		typesByID[t.ID] = t
	}

	result := make([]models.UserTicket, len(regs))
	for i, reg := range regs {
		result[i] = models.UserTicket{
			RegistrationID: reg.ID,
			EventID:        reg.EventID,
			EventTitle:     eventsByID[reg.EventID].Title,
			TicketType:     typesByID[reg.TicketTypeID].Name,
			TicketNumber:   reg.TicketNumber,
			Status:         reg.Status,
			AmountPaid:     reg.AmountPaid,
			SubmissionTime: reg.SubmissionTime,
		}
	}
	return result, nil
}
