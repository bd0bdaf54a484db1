package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-registration/internal/models"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	return err
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

func (d *DB) ListEvents(ctx context.Context, publishedOnly bool) ([]models.Event, error) {
	var events []models.Event
	q := d.Bun.NewSelect().
		Model(&events).
		Order("start_date ASC")
	if publishedOnly {
		q = q.Where("published = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (d *DB) UpdateEventStatus(ctx context.Context, eventID int64, status models.EventStatus) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Exec(ctx)
	return err
}

func (d *DB) SetPublished(ctx context.Context, eventID int64, published bool) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Event)(nil)).
		Set("published = ?", published).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Exec(ctx)
	return err
}

func (d *DB) CreateTicketType(ctx context.Context, ticket *models.TicketType) error {
	_, err := d.Bun.NewInsert().Model(ticket).Exec(ctx)
	return err
}

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
