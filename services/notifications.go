package services

import (
	"context"

	"github.com/snap-point/social-api/models"
	"github.com/snap-point/social-api/repository"
)

const feedLimit = 20

type NotificationService struct {
	store repository.Store
}

// List returns the receiver's 20 newest notifications.
func (s *NotificationService) List(ctx context.Context, receiverID uint) ([]models.Notification, error) {
	notifications, err := s.store.FindNotifications(ctx, receiverID, feedLimit)
	if err != nil {
		return nil, appError(err)
	}
	return notifications, nil
}
