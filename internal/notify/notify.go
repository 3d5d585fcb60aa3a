// Package notify serves a user's notifications.
package notify

import (
	"context"

	"github.com/erazemk/lostfound/internal/apperr"
	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/store"
)

// Service lists and acknowledges notifications on behalf of their owner.
type Service struct {
	Store store.NotificationStore
}

// List returns the caller's notifications, newest first.
func (s *Service) List(ctx context.Context, caller model.Identity, unreadOnly bool) ([]model.Notification, error) {
	list, err := s.Store.ListNotifications(ctx, caller.UserID, unreadOnly)
	if err != nil {
		return nil, apperr.Unavailable("listing notifications", err)
	}
	if list == nil {
		list = []model.Notification{}
	}
	return list, nil
}

// MarkRead marks one of the caller's notifications read.
func (s *Service) MarkRead(ctx context.Context, caller model.Identity, id string) error {
	n, err := s.Store.GetNotification(ctx, id)
	if err != nil {
		return apperr.Unavailable("loading notification", err)
	}
	if n == nil {
		return apperr.NotFound("notification not found")
	}
	if n.UserID != caller.UserID {
		return apperr.Forbidden("not your notification")
	}
	if n.Read {
		return nil
	}
	if err := s.Store.MarkNotificationRead(ctx, id); err != nil {
		return apperr.Unavailable("marking notification read", err)
	}
	return nil
}

// MarkAllRead marks every unread notification of the caller read and
// returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, caller model.Identity) (int, error) {
	n, err := s.Store.MarkAllNotificationsRead(ctx, caller.UserID)
	if err != nil {
		return 0, apperr.Unavailable("marking notifications read", err)
	}
	return n, nil
}

// UnreadCount returns the number of unread notifications for the caller.
func (s *Service) UnreadCount(ctx context.Context, caller model.Identity) (int, error) {
	n, err := s.Store.CountUnreadNotifications(ctx, caller.UserID)
	if err != nil {
		return 0, apperr.Unavailable("counting notifications", err)
	}
	return n, nil
}
