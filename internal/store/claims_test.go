package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/lostfound/internal/model"
)

func createClaim(t *testing.T, s *SQLStore, itemID, claimant string, age time.Duration) *model.Claim {
	t.Helper()
	c := &model.Claim{
		ItemID:    itemID,
		ClaimedBy: claimant,
		Message:   "It has my name inside",
		CreatedAt: baseTime.Add(-age),
	}
	if err := s.CreateClaim(context.Background(), c); err != nil {
		t.Fatalf("CreateClaim: %v", err)
	}
	return c
}

func TestCreateClaim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	item := createItem(t, s, "Wallet", model.ItemStatusFound, 0)

	c := createClaim(t, s, item.ID, "u1", 0)
	if c.Status != model.ClaimPending {
		t.Errorf("expected pending, got %q", c.Status)
	}
	if c.ItemTitle != "Wallet" {
		t.Errorf("expected item title copied, got %q", c.ItemTitle)
	}

	got, err := s.GetClaim(ctx, c.ID)
	if err != nil || got == nil {
		t.Fatalf("GetClaim: %v", err)
	}
	if got.ReceivedAt != nil || got.DecidedAt != nil {
		t.Error("expected no decision or receipt times")
	}
}

func TestCreateClaimDuplicatePending(t *testing.T) {
	s := newTestStore(t)
	item := createItem(t, s, "Wallet", model.ItemStatusFound, 0)
	createClaim(t, s, item.ID, "u1", 0)

	err := s.CreateClaim(context.Background(), &model.Claim{ItemID: item.ID, ClaimedBy: "u1", Message: "again"})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	// A different claimant may still claim.
	createClaim(t, s, item.ID, "u2", 0)
}

func TestCreateClaimUnavailableItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	lost := createItem(t, s, "Phone", model.ItemStatusLost, 0)
	claimed := createItem(t, s, "Bike", model.ItemStatusFound, 0)
	s.MarkItemClaimed(ctx, claimed.ID, "u9")

	for _, id := range []string{lost.ID, claimed.ID, "missing"} {
		err := s.CreateClaim(ctx, &model.Claim{ItemID: id, ClaimedBy: "u1", Message: "mine"})
		if !errors.Is(err, ErrItemUnavailable) {
			t.Errorf("item %s: expected ErrItemUnavailable, got %v", id, err)
		}
	}
}

func TestTransitionClaimCompareAndSwap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	item := createItem(t, s, "Watch", model.ItemStatusFound, 0)
	c := createClaim(t, s, item.ID, "u1", 0)

	now := baseTime
	ok, err := s.TransitionClaim(ctx, c.ID, model.ClaimPending, model.ClaimApproved,
		ClaimUpdate{MeetupAddress: "Front desk", DecidedAt: &now})
	if err != nil || !ok {
		t.Fatalf("approve: ok=%v err=%v", ok, err)
	}

	// Stale status loses.
	ok, err = s.TransitionClaim(ctx, c.ID, model.ClaimPending, model.ClaimRejected, ClaimUpdate{})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if ok {
		t.Error("expected transition from stale status to fail")
	}

	got, _ := s.GetClaim(ctx, c.ID)
	if got.Status != model.ClaimApproved || got.MeetupAddress != "Front desk" {
		t.Errorf("unexpected claim: %+v", got)
	}
	if got.DecidedAt == nil || !got.DecidedAt.Equal(now) {
		t.Errorf("expected decided_at %v, got %v", now, got.DecidedAt)
	}

	// Reset undoes the decision fields.
	s.TransitionClaim(ctx, c.ID, model.ClaimApproved, model.ClaimPending, ClaimUpdate{Reset: true})
	got, _ = s.GetClaim(ctx, c.ID)
	if got.Status != model.ClaimPending || got.MeetupAddress != "" || got.DecidedAt != nil {
		t.Errorf("expected reset claim, got %+v", got)
	}
}

func TestTransitionClaimSecondApprovalDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	item := createItem(t, s, "Laptop", model.ItemStatusFound, 0)
	c1 := createClaim(t, s, item.ID, "u1", 0)
	c2 := createClaim(t, s, item.ID, "u2", 0)

	if ok, _ := s.TransitionClaim(ctx, c1.ID, model.ClaimPending, model.ClaimApproved, ClaimUpdate{}); !ok {
		t.Fatal("expected first approval to succeed")
	}
	_, err := s.TransitionClaim(ctx, c2.ID, model.ClaimPending, model.ClaimApproved, ClaimUpdate{})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate for second approval, got %v", err)
	}
}

func TestListClaims(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := createItem(t, s, "A", model.ItemStatusFound, 0)
	b := createItem(t, s, "B", model.ItemStatusFound, 0)

	createClaim(t, s, a.ID, "u1", 2*time.Minute)
	newest := createClaim(t, s, a.ID, "u2", time.Minute)
	createClaim(t, s, b.ID, "u1", 0)
	s.TransitionClaim(ctx, newest.ID, model.ClaimPending, model.ClaimRejected, ClaimUpdate{})

	forA, _ := s.ListClaims(ctx, ClaimFilter{ItemID: a.ID})
	if len(forA) != 2 {
		t.Fatalf("expected 2 claims on A, got %d", len(forA))
	}
	if forA[0].ID != newest.ID {
		t.Error("expected claims newest first")
	}

	mine, _ := s.ListClaims(ctx, ClaimFilter{ClaimedBy: "u1"})
	if len(mine) != 2 {
		t.Errorf("expected 2 claims by u1, got %d", len(mine))
	}

	pending, _ := s.ListClaims(ctx, ClaimFilter{ItemID: a.ID, Statuses: []string{model.ClaimPending}})
	if len(pending) != 1 {
		t.Errorf("expected 1 pending claim on A, got %d", len(pending))
	}
}

func TestListClaimsByDecision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	item := createItem(t, s, "A", model.ItemStatusFound, 0)

	older := createClaim(t, s, item.ID, "u1", 2*time.Minute)
	newer := createClaim(t, s, item.ID, "u2", time.Minute)
	undecided := createClaim(t, s, item.ID, "u3", 3*time.Minute)

	late := baseTime.Add(time.Hour)
	early := baseTime.Add(30 * time.Minute)
	s.TransitionClaim(ctx, older.ID, model.ClaimPending, model.ClaimRejected, ClaimUpdate{DecidedAt: &late})
	s.TransitionClaim(ctx, newer.ID, model.ClaimPending, model.ClaimRejected, ClaimUpdate{DecidedAt: &early})

	got, err := s.ListClaims(ctx, ClaimFilter{ItemID: item.ID, ByDecision: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].ID != older.ID || got[1].ID != newer.ID || got[2].ID != undecided.ID {
		t.Errorf("expected decision order, got %+v", got)
	}
}

func TestListReceivedBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	item := createItem(t, s, "Scarf", model.ItemStatusFound, 0)
	other := createItem(t, s, "Hat", model.ItemStatusFound, 0)
	legacy := createItem(t, s, "Gloves", model.ItemStatusFound, 0)

	day := 24 * time.Hour
	old := createClaim(t, s, item.ID, "u1", 10*day)
	recent := createClaim(t, s, other.ID, "u1", 10*day)
	noReceipt := createClaim(t, s, legacy.ID, "u1", 9*day)

	received := func(c *model.Claim, at *time.Time) {
		s.TransitionClaim(ctx, c.ID, model.ClaimPending, model.ClaimApproved, ClaimUpdate{})
		s.TransitionClaim(ctx, c.ID, model.ClaimApproved, model.ClaimReceived, ClaimUpdate{ReceivedAt: at})
	}
	oldAt := baseTime.Add(-8 * day)
	recentAt := baseTime.Add(-6 * day)
	received(old, &oldAt)
	received(recent, &recentAt)
	received(noReceipt, nil)

	due, err := s.ListReceivedBefore(ctx, baseTime.Add(-7*day))
	if err != nil {
		t.Fatalf("ListReceivedBefore: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due claims, got %d", len(due))
	}
	if due[0].ID != noReceipt.ID || due[1].ID != old.ID {
		t.Errorf("expected legacy claim then old claim, got %s, %s", due[0].ID, due[1].ID)
	}
}

func TestDeleteClaimsForItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	item := createItem(t, s, "Mug", model.ItemStatusFound, 0)
	createClaim(t, s, item.ID, "u1", 0)
	createClaim(t, s, item.ID, "u2", 0)

	n, err := s.DeleteClaimsForItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("DeleteClaimsForItem: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}
}

func TestInTxRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	item := createItem(t, s, "Book", model.ItemStatusFound, 0)

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, tx Store) error {
		if ok, err := tx.MarkItemClaimed(ctx, item.ID, "u1"); err != nil || !ok {
			t.Fatalf("MarkItemClaimed in tx: ok=%v err=%v", ok, err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, _ := s.GetItem(ctx, item.ID)
	if got.Claimed {
		t.Error("expected rollback to undo the claim flag")
	}

	err = s.InTx(ctx, func(ctx context.Context, tx Store) error {
		_, err := tx.MarkItemClaimed(ctx, item.ID, "u1")
		return err
	})
	if err != nil {
		t.Fatalf("InTx commit: %v", err)
	}
	got, _ = s.GetItem(ctx, item.ID)
	if !got.Claimed {
		t.Error("expected committed claim flag")
	}
}
