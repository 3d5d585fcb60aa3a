package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/lostfound/internal/model"
)

func TestNotifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &model.Notification{UserID: "u1", Type: model.NotifyClaimCreated, Message: "first", CreatedAt: baseTime}
	second := &model.Notification{UserID: "u1", Type: model.NotifyClaimApproved, Message: "second",
		MeetupAddress: "Gate 3", CreatedAt: baseTime.Add(time.Minute)}
	other := &model.Notification{UserID: "u2", Type: model.NotifyClaimRejected, Message: "other", CreatedAt: baseTime}
	for _, n := range []*model.Notification{first, second, other} {
		if err := s.CreateNotification(ctx, n); err != nil {
			t.Fatalf("CreateNotification: %v", err)
		}
	}

	list, err := s.ListNotifications(ctx, "u1", false)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("expected 2 notifications newest first, got %+v", list)
	}
	if list[0].MeetupAddress != "Gate 3" {
		t.Errorf("expected meetup address, got %q", list[0].MeetupAddress)
	}

	count, _ := s.CountUnreadNotifications(ctx, "u1")
	if count != 2 {
		t.Errorf("expected 2 unread, got %d", count)
	}

	s.MarkNotificationRead(ctx, first.ID)
	s.MarkNotificationRead(ctx, first.ID)
	unread, _ := s.ListNotifications(ctx, "u1", true)
	if len(unread) != 1 {
		t.Errorf("expected 1 unread, got %d", len(unread))
	}

	n, _ := s.MarkAllNotificationsRead(ctx, "u1")
	if n != 1 {
		t.Errorf("expected 1 newly read, got %d", n)
	}
	count, _ = s.CountUnreadNotifications(ctx, "u2")
	if count != 1 {
		t.Errorf("other user's notifications must be untouched, got %d unread", count)
	}

	got, _ := s.GetNotification(ctx, "missing")
	if got != nil {
		t.Error("expected nil for missing notification")
	}
}
