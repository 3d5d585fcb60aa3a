package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/lostfound/internal/model"
)

const notificationColumns = `id, user_id, type, item_id, item_title, message, meetup_address, read, created_at`

func scanNotification(row rowScanner) (*model.Notification, error) {
	n := &model.Notification{}
	var createdAt string
	var read int
	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.ItemID, &n.ItemTitle, &n.Message,
		&n.MeetupAddress, &read, &createdAt)
	if err != nil {
		return nil, err
	}
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	n.Read = read != 0
	return n, nil
}

// CreateNotification inserts a notification.
func (s *SQLStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES (`+placeholders(9)+`)`,
		n.ID, n.UserID, n.Type, n.ItemID, n.ItemTitle, n.Message, n.MeetupAddress,
		boolInt(n.Read), formatTime(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

// GetNotification returns a notification by ID.
func (s *SQLStore) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	n, err := scanNotification(s.q.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *SQLStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var list []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		list = append(list, *n)
	}
	return list, rows.Err()
}

// MarkNotificationRead sets the read flag. Marking twice is a no-op.
func (s *SQLStore) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification of a user read.
func (s *SQLStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	result, err := s.q.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return int(n), nil
}

// CountUnreadNotifications returns the number of unread notifications.
func (s *SQLStore) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}
