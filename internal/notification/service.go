package notification

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-registration/internal/logger"
	"ms-registration/internal/models"
)

// Service turns registration ledger events into stored notifications
// for the user. It sits behind the Kafka consumer in the notification
// worker; failures here never reach the ledger.
type Service struct {
	Bun *bun.DB
	Log *logger.Logger
}

func NewService(bunDB *bun.DB, log *logger.Logger) *Service {
	return &Service{Bun: bunDB, Log: log}
}

// HandleRegistrationEvent persists a notification for one consumed
// event. Unknown actions are ignored.
func (s *Service) HandleRegistrationEvent(evt models.RegistrationEvent) {
	var message string
	switch evt.Action {
	case "registration_created":
		message = fmt.Sprintf("Your registration is confirmed, ticket %s.", evt.TicketNumber)
	case "registration_cancelled":
		message = "Your registration has been cancelled."
	default:
		s.Log.Warn("NOTIFY", fmt.Sprintf("Unknown registration event action %q", evt.Action))
		return
	}

	notification := models.Notification{
		UserID:  evt.UserID,
		EventID: evt.EventID,
		Message: message,
	}
	if _, err := s.Bun.NewInsert().Model(&notification).Exec(context.Background()); err != nil {
		s.Log.Error("NOTIFY", fmt.Sprintf("Failed to store notification for user %d: %v", evt.UserID, err))
		return
	}
	s.Log.Info("NOTIFY", fmt.Sprintf("Stored notification %d for user %d", notification.ID, evt.UserID))
}

// UnreadForUser lists the user's unread notifications, newest first.
func (s *Service) UnreadForUser(ctx context.Context, userID int64) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.Bun.NewSelect().
		Model(&notifications).
		Where("user_id = ?", userID).
		Where("read = ?", false).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return notifications, nil
}

// MarkRead flags one notification as seen.
func (s *Service) MarkRead(ctx context.Context, notificationID int64) error {
	_, err := s.Bun.NewUpdate().
		Model((*models.Notification)(nil)).
		Set("read = ?", true).
		Where("id = ?", notificationID).
		Exec(ctx)
	return err
}
