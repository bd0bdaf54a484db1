package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-registration/internal/logger"
	"ms-registration/internal/models"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrInvalidTransition = errors.New("invalid event status transition")
	ErrTicketTypeExists  = errors.New("event already has a ticket type")
	ErrInvalidTicketType = errors.New("invalid ticket type")
)

// DBLayer is the persistence port of the event administration service.
type DBLayer interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, eventID int64) (*models.Event, error)
	ListEvents(ctx context.Context, publishedOnly bool) ([]models.Event, error)
	UpdateEventStatus(ctx context.Context, eventID int64, status models.EventStatus) error
	SetPublished(ctx context.Context, eventID int64, published bool) error
	CreateTicketType(ctx context.Context, ticket *models.TicketType) error
	TicketTypeForEvent(ctx context.Context, eventID int64) (*models.TicketType, error)
}

// Service drives the administrative side of the event lifecycle. The
// automatic open/closed flips stay with the registration ledger; this
// service only performs the manual transitions and validates them.
type Service struct {
	DB  DBLayer
	log *logger.Logger
}

func NewService(db DBLayer, log *logger.Logger) *Service {
	return &Service{DB: db, log: log}
}

// manualTransitions lists the administrator-driven moves. completed is
// terminal for registration purposes.
var manualTransitions = map[models.EventStatus][]models.EventStatus{
	models.EventDraft:              {models.EventRegistrationOpen, models.EventCompleted},
	models.EventRegistrationOpen:   {models.EventRegistrationClosed, models.EventCompleted},
	models.EventRegistrationClosed: {models.EventRegistrationOpen, models.EventCompleted},
	models.EventCompleted:          {},
}

func transitionAllowed(from, to models.EventStatus) bool {
	for _, allowed := range manualTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CreateEvent stores a new event in draft.
func (s *Service) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.Title == "" {
		return errors.New("event title is required")
	}
	event.Status = models.EventDraft
	event.Published = false
	event.CreatedAt = time.Now().UTC()
	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	if s.log != nil {
		s.log.Info("EVENT", fmt.Sprintf("Created event %d (%s)", event.ID, event.Title))
	}
	return nil
}

// Transition moves an event between administrative statuses.
func (s *Service) Transition(ctx context.Context, eventID int64, to models.EventStatus) error {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("load event %d: %w", eventID, err)
	}
	if event == nil {
		return ErrEventNotFound
	}
	if !transitionAllowed(event.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, event.Status, to)
	}
	if err := s.DB.UpdateEventStatus(ctx, eventID, to); err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	if s.log != nil {
		s.log.Info("EVENT", fmt.Sprintf("Event %d: %s -> %s", eventID, event.Status, to))
	}
	return nil
}

// Publish toggles the public listing flag. Publication is independent
// of the registration state machine: an unpublished open event still
// accepts registrations.
func (s *Service) Publish(ctx context.Context, eventID int64, published bool) error {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("load event %d: %w", eventID, err)
	}
	if event == nil {
		return ErrEventNotFound
	}
	return s.DB.SetPublished(ctx, eventID, published)
}

// CreateTicketType attaches the inventory to an event. One ticket type
// per event; counters start at zero sold.
func (s *Service) CreateTicketType(ctx context.Context, ticket *models.TicketType) error {
	if ticket.Price < 0 || ticket.AvailableQuantity <= 0 {
		return ErrInvalidTicketType
	}

	event, err := s.DB.GetEvent(ctx, ticket.EventID)
	if err != nil {
		return fmt.Errorf("load event %d: %w", ticket.EventID, err)
	}
	if event == nil {
		return ErrEventNotFound
	}

	existing, err := s.DB.TicketTypeForEvent(ctx, ticket.EventID)
	if err != nil {
		return fmt.Errorf("check ticket type: %w", err)
	}
	if existing != nil {
		return ErrTicketTypeExists
	}

	ticket.SoldQuantity = 0
	if err := s.DB.CreateTicketType(ctx, ticket); err != nil {
		return fmt.Errorf("create ticket type: %w", err)
	}
	if s.log != nil {
		s.log.Info("EVENT", fmt.Sprintf("Ticket type %d (%s) created for event %d", ticket.ID, ticket.Name, ticket.EventID))
	}
	return nil
}

func (s *Service) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event %d: %w", eventID, err)
	}
	if event == nil {
		return nil, ErrEventNotFound
	}
	return event, nil
}

func (s *Service) ListEvents(ctx context.Context, publishedOnly bool) ([]models.Event, error) {
	return s.DB.ListEvents(ctx, publishedOnly)
}
