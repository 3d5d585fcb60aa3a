package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/erazemk/lostfound/internal/model"
)

func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if _, err := s.col(colNotifications).InsertOne(ctx, n); err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	var n model.Notification
	ok, err := findOne(ctx, s.col(colNotifications), bson.M{"_id": id}, &n)
	if err != nil {
		return nil, fmt.Errorf("getting notification: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error) {
	filter := bson.M{"userId": userID}
	if unreadOnly {
		filter["read"] = false
	}
	cur, err := s.col(colNotifications).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	var list []model.Notification
	if err := cur.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("decoding notifications: %w", err)
	}
	return list, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := s.col(colNotifications).UpdateOne(ctx,
		bson.M{"_id": id}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	res, err := s.col(colNotifications).UpdateMany(ctx,
		bson.M{"userId": userID, "read": false}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return int(res.ModifiedCount), nil
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	n, err := s.col(colNotifications).CountDocuments(ctx, bson.M{"userId": userID, "read": false})
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return int(n), nil
}
