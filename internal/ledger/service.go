package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-registration/internal/logger"
	"ms-registration/internal/models"
)

// DBLayer is the transactional persistence port of the ledger. Lookup
// methods return (nil, nil) when no row matches; Commit methods run
// their whole effect inside one transaction and roll back entirely on
// failure.
type DBLayer interface {
	ActiveRegistration(ctx context.Context, userID, eventID int64) (*models.Registration, error)
	LatestCancelledRegistration(ctx context.Context, userID, eventID int64) (*models.Registration, error)
	GetEvent(ctx context.Context, eventID int64) (*models.Event, error)
	TicketTypeForEvent(ctx context.Context, eventID int64) (*models.TicketType, error)
	CloseEventRegistration(ctx context.Context, eventID int64) error
	CommitRegister(ctx context.Context, reg *models.Registration) error
	CommitCancel(ctx context.Context, reg *models.Registration) error
	UserTickets(ctx context.Context, userID int64) ([]models.UserTicket, error)
}

// SubmitLock is a short-lived per-(event, user) lock guarding against
// double submits. It is best effort only: the conditional counter
// update in the DB layer is what actually prevents overbooking.
type SubmitLock interface {
	LockSubmission(eventID, userID int64) (bool, error)
	UnlockSubmission(eventID, userID int64) error
}

type KafkaPublisher interface {
	PublishRegistrationCreated(evt models.RegistrationEvent) error
	PublishRegistrationCancelled(evt models.RegistrationEvent) error
}

// ActivityRecorder records who did what. Fire-and-forget: it returns
// nothing and must never block or fail the calling operation.
type ActivityRecorder interface {
	Record(userID int64, action string)
}

// QRGenerator renders a scannable code for a confirmed ticket.
type QRGenerator interface {
	TicketQR(reg models.Registration) ([]byte, error)
}

// Service is the registration ledger: the only component allowed to
// move a (user, event) pair into or out of holding a ticket, keeping
// the event status and the sold counter consistent with the set of
// active registrations.
type Service struct {
	DB       DBLayer
	Lock     SubmitLock
	Kafka    KafkaPublisher
	Activity ActivityRecorder
	QR       QRGenerator
	log      *logger.Logger
}

func NewService(db DBLayer, lock SubmitLock, kafka KafkaPublisher, activity ActivityRecorder, qr QRGenerator, log *logger.Logger) *Service {
	return &Service{DB: db, Lock: lock, Kafka: kafka, Activity: activity, QR: qr, log: log}
}

// Register books a ticket for (userID, eventID). Preconditions are
// checked in order, each failing with a distinct business error; the
// mutation itself commits as a single transaction in the DB layer.
func (s *Service) Register(ctx context.Context, userID, eventID int64) (*models.RegistrationConfirmation, error) {
	if s.Lock != nil {
		ok, err := s.Lock.LockSubmission(eventID, userID)
		if err != nil {
			s.logWarn("LEDGER", fmt.Sprintf("submit lock unavailable for event=%d user=%d: %v", eventID, userID, err))
		} else if !ok {
			return nil, ErrAlreadyRegistered
		} else {
			defer func() {
				_ = s.Lock.UnlockSubmission(eventID, userID)
			}()
		}
	}

	active, err := s.DB.ActiveRegistration(ctx, userID, eventID)
	if err != nil {
		return nil, fmt.Errorf("check active registration: %w", err)
	}
	if active != nil {
		return nil, ErrAlreadyRegistered
	}

	cancelled, err := s.DB.LatestCancelledRegistration(ctx, userID, eventID)
	if err != nil {
		return nil, fmt.Errorf("check cancelled registration: %w", err)
	}
	if cancelled != nil && cancelled.CancellationCount >= models.MaxCancellations {
		return nil, ErrCancellationLimit
	}

	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event %d: %w", eventID, err)
	}
	if event == nil {
		return nil, ErrRegistrationNotOpen
	}

	// The counters only matter while the event is open; a missing ticket
	// type reads as zero capacity.
	snap := Snapshot{EventStatus: event.Status}
	var ticket *models.TicketType
	if event.Status == models.EventRegistrationOpen {
		ticket, err = s.DB.TicketTypeForEvent(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("load ticket type for event %d: %w", eventID, err)
		}
		if ticket != nil {
			snap.Available = ticket.AvailableQuantity
			snap.Sold = ticket.SoldQuantity
		}
	}

	if healed, admitErr := Admit(snap); admitErr != nil {
		if healed != event.Status {
			// Heal the stale registration_open before rejecting, so the
			// event does not keep advertising capacity it no longer has.
			if err := s.DB.CloseEventRegistration(ctx, eventID); err != nil {
				s.logWarn("LEDGER", fmt.Sprintf("failed to close exhausted event %d: %v", eventID, err))
			}
		}
		return nil, admitErr
	}

	reg := s.buildRegistration(cancelled, userID, eventID, ticket)

	if err := s.DB.CommitRegister(ctx, reg); err != nil {
		if errors.Is(err, ErrSoldOut) {
			// Lost the race for the last ticket: nothing was written,
			// but the event status still needs the self-healing flip.
			if closeErr := s.DB.CloseEventRegistration(ctx, eventID); closeErr != nil {
				s.logWarn("LEDGER", fmt.Sprintf("failed to close exhausted event %d: %v", eventID, closeErr))
			}
			return nil, ErrSoldOut
		}
		return nil, fmt.Errorf("commit registration: %w", err)
	}

	s.record(userID, "register_for_event")
	s.publish(func() error {
		return s.Kafka.PublishRegistrationCreated(models.RegistrationEvent{
			RegistrationID: reg.ID,
			UserID:         userID,
			EventID:        eventID,
			TicketNumber:   reg.TicketNumber,
			Action:         "registration_created",
			OccurredAt:     time.Now().UTC(),
		})
	})

	conf := &models.RegistrationConfirmation{
		ID:           reg.ID,
		EventID:      eventID,
		UserID:       userID,
		TicketType:   ticket.Name,
		TicketNumber: reg.TicketNumber,
		Status:       reg.Status,
	}
	if s.QR != nil {
		qrBytes, err := s.QR.TicketQR(*reg)
		if err != nil {
			s.logWarn("LEDGER", fmt.Sprintf("QR generation failed for registration %d: %v", reg.ID, err))
		} else {
			conf.QRCode = qrBytes
		}
	}
	return conf, nil
}

// Cancel voids the active registration for (userID, eventID), returns
// the ticket to the pool and reopens the event if the cancellation
// freed capacity. The row is kept and its cancellation count raised by
// one.
func (s *Service) Cancel(ctx context.Context, userID, eventID int64) (*models.CancellationConfirmation, error) {
	reg, err := s.DB.ActiveRegistration(ctx, userID, eventID)
	if err != nil {
		return nil, fmt.Errorf("check active registration: %w", err)
	}
	if reg == nil {
		return nil, ErrNoActiveRegistration
	}

	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event %d: %w", eventID, err)
	}
	if event == nil {
		return nil, fmt.Errorf("event %d not found for registration %d", eventID, reg.ID)
	}
	if (Snapshot{EventStatus: event.Status}).Phase() == PhaseCompleted {
		return nil, ErrEventCompleted
	}

	if err := s.DB.CommitCancel(ctx, reg); err != nil {
		if errors.Is(err, ErrNoActiveRegistration) {
			// Lost a race with another cancel of the same row; nothing
			// was written.
			return nil, ErrNoActiveRegistration
		}
		return nil, fmt.Errorf("commit cancellation: %w", err)
	}

	s.record(userID, "cancel_registration")
	s.publish(func() error {
		return s.Kafka.PublishRegistrationCancelled(models.RegistrationEvent{
			RegistrationID: reg.ID,
			UserID:         userID,
			EventID:        eventID,
			Action:         "registration_cancelled",
			OccurredAt:     time.Now().UTC(),
		})
	})

	return &models.CancellationConfirmation{
		RegistrationID: reg.ID,
		Message:        "registration cancelled",
	}, nil
}

// ListUserTickets returns every registration of the user joined with
// its event and ticket type, cancelled ones included.
func (s *Service) ListUserTickets(ctx context.Context, userID int64) ([]models.UserTicket, error) {
	tickets, err := s.DB.UserTickets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tickets for user %d: %w", userID, err)
	}
	return tickets, nil
}

// buildRegistration reuses the latest cancelled row when one exists,
// otherwise starts a fresh one. The ticket number is assigned by the DB
// layer inside the commit transaction.
func (s *Service) buildRegistration(cancelled *models.Registration, userID, eventID int64, ticket *models.TicketType) *models.Registration {
	amount := ticket.Price
	if ticket.FreeRegistration {
		amount = 0
	}

	if cancelled != nil {
		reg := *cancelled
		reg.TicketTypeID = ticket.ID
		reg.PaymentStatus = ticket.FreeRegistration
		reg.AmountPaid = amount
		reg.Status = models.RegistrationApproved
		reg.SubmissionTime = time.Now().UTC()
		return &reg
	}

	return &models.Registration{
		UserID:         userID,
		EventID:        eventID,
		TicketTypeID:   ticket.ID,
		PaymentStatus:  ticket.FreeRegistration,
		AmountPaid:     amount,
		Status:         models.RegistrationApproved,
		SubmissionTime: time.Now().UTC(),
	}
}

func (s *Service) record(userID int64, action string) {
	if s.Activity != nil {
		s.Activity.Record(userID, action)
	}
}

func (s *Service) publish(fn func() error) {
	if s.Kafka == nil {
		return
	}
	if err := fn(); err != nil {
		s.logWarn("KAFKA", fmt.Sprintf("publish failed: %v", err))
	}
}

func (s *Service) logWarn(category, msg string) {
	if s.log != nil {
		s.log.Warn(category, msg)
	}
}
