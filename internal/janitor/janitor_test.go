package janitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/erazemk/lostfound/internal/db"
	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/store"
)

var day = 24 * time.Hour

var received = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newJanitor(s store.Store, now time.Time) *Janitor {
	return &Janitor{
		Store: s,
		Now:   func() time.Time { return now },
		Log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// handOver creates a found item with a losing pending claim and a winning
// claim that was received at receivedAt. A nil receivedAt mimics records
// written before receipt times were stored.
func handOver(t *testing.T, s store.Store, title string, createdAt time.Time, receivedAt *time.Time) *model.Item {
	t.Helper()
	ctx := context.Background()

	item := &model.Item{Title: title, Status: model.ItemStatusFound, ReportedBy: "finder", CreatedAt: createdAt}
	if err := s.CreateItem(ctx, item); err != nil {
		t.Fatal(err)
	}
	win := &model.Claim{ItemID: item.ID, ClaimedBy: "owner", Message: "mine", CreatedAt: createdAt}
	lose := &model.Claim{ItemID: item.ID, ClaimedBy: "other", Message: "also mine", CreatedAt: createdAt}
	for _, c := range []*model.Claim{win, lose} {
		if err := s.CreateClaim(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.TransitionClaim(ctx, lose.ID, model.ClaimPending, model.ClaimRejected, store.ClaimUpdate{}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.TransitionClaim(ctx, win.ID, model.ClaimPending, model.ClaimApproved, store.ClaimUpdate{MeetupAddress: "Library desk"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.MarkItemClaimed(ctx, item.ID, "owner"); err != nil {
		t.Fatal(err)
	}
	ok, err := s.TransitionClaim(ctx, win.ID, model.ClaimApproved, model.ClaimReceived, store.ClaimUpdate{ReceivedAt: receivedAt})
	if err != nil || !ok {
		t.Fatalf("marking received: ok=%v err=%v", ok, err)
	}
	return item
}

func countClaims(t *testing.T, s store.Store, itemID string) int {
	t.Helper()
	claims, err := s.ListClaims(context.Background(), store.ClaimFilter{ItemID: itemID})
	if err != nil {
		t.Fatal(err)
	}
	return len(claims)
}

func TestSweepRespectsRetention(t *testing.T) {
	s := store.NewSQLStore(db.NewTestDB(t))
	ctx := context.Background()
	at := received
	item := handOver(t, s, "Umbrella", received.Add(-day), &at)

	res, err := newJanitor(s, received.Add(6*day)).Sweep(ctx, DefaultRetention)
	if err != nil {
		t.Fatal(err)
	}
	if res.DeletedItems != 0 {
		t.Errorf("expected nothing deleted after 6 days, got %+v", res)
	}
	if got, _ := s.GetItem(ctx, item.ID); got == nil {
		t.Fatal("item removed too early")
	}

	res, err = newJanitor(s, received.Add(8*day)).Sweep(ctx, DefaultRetention)
	if err != nil {
		t.Fatal(err)
	}
	if res.DeletedItems != 1 || res.DeletedClaims != 2 {
		t.Errorf("expected 1 item and 2 claims deleted, got %+v", res)
	}
	if got, _ := s.GetItem(ctx, item.ID); got != nil {
		t.Error("item still present after retention")
	}
	if n := countClaims(t, s, item.ID); n != 0 {
		t.Errorf("expected no claims left, got %d", n)
	}
}

func TestSweepLeavesUnreceivedItems(t *testing.T) {
	s := store.NewSQLStore(db.NewTestDB(t))
	ctx := context.Background()

	old := received.Add(-60 * day)
	item := &model.Item{Title: "Scarf", Status: model.ItemStatusFound, ReportedBy: "finder", CreatedAt: old}
	s.CreateItem(ctx, item)
	c := &model.Claim{ItemID: item.ID, ClaimedBy: "owner", Message: "mine", CreatedAt: old}
	s.CreateClaim(ctx, c)
	s.TransitionClaim(ctx, c.ID, model.ClaimPending, model.ClaimApproved, store.ClaimUpdate{MeetupAddress: "Desk"})

	res, err := newJanitor(s, received).Sweep(ctx, DefaultRetention)
	if err != nil {
		t.Fatal(err)
	}
	if res.DeletedItems != 0 {
		t.Errorf("approved but not received items must stay, got %+v", res)
	}
}

func TestSweepLegacyRecordsUseCreationTime(t *testing.T) {
	s := store.NewSQLStore(db.NewTestDB(t))
	ctx := context.Background()

	oldItem := handOver(t, s, "Old phone", received.Add(-30*day), nil)
	newItem := handOver(t, s, "New phone", received.Add(-2*day), nil)

	res, err := newJanitor(s, received).Sweep(ctx, DefaultRetention)
	if err != nil {
		t.Fatal(err)
	}
	if res.DeletedItems != 1 {
		t.Fatalf("expected 1 deletion, got %+v", res)
	}
	if got, _ := s.GetItem(ctx, oldItem.ID); got != nil {
		t.Error("legacy item past retention should be removed")
	}
	if got, _ := s.GetItem(ctx, newItem.ID); got == nil {
		t.Error("recent legacy item should stay")
	}
}

type flakyStore struct {
	store.Store
	failItem string
}

func (f *flakyStore) DeleteItem(ctx context.Context, id string) error {
	if id == f.failItem {
		return errors.New("disk on fire")
	}
	return f.Store.DeleteItem(ctx, id)
}

func TestSweepContinuesAfterFailure(t *testing.T) {
	s := store.NewSQLStore(db.NewTestDB(t))
	ctx := context.Background()

	first := received.Add(-20 * day)
	second := received.Add(-10 * day)
	bad := handOver(t, s, "Keys", first, &first)
	good := handOver(t, s, "Bottle", second, &second)

	res, err := newJanitor(&flakyStore{Store: s, failItem: bad.ID}, received).Sweep(ctx, DefaultRetention)
	if err != nil {
		t.Fatal(err)
	}
	if res.DeletedItems != 1 || res.Failed != 1 {
		t.Errorf("expected 1 deleted and 1 failed, got %+v", res)
	}
	if got, _ := s.GetItem(ctx, good.ID); got != nil {
		t.Error("sweep should have continued past the failing item")
	}
	if got, _ := s.GetItem(ctx, bad.ID); got == nil {
		t.Error("failing item should still exist")
	}
	if n := countClaims(t, s, bad.ID); n != 2 {
		t.Errorf("claims of the failing item must stay, got %d", n)
	}
}

func TestPreview(t *testing.T) {
	s := store.NewSQLStore(db.NewTestDB(t))
	ctx := context.Background()

	first := received.Add(-20 * day)
	handOver(t, s, "Keys", first, &first)
	recent := received.Add(-day)
	handOver(t, s, "Bottle", recent, &recent)

	j := newJanitor(s, received)
	p, err := j.Preview(ctx, DefaultRetention)
	if err != nil {
		t.Fatal(err)
	}
	if p.Due != 1 {
		t.Errorf("expected 1 due item, got %d", p.Due)
	}
	if p.Oldest == nil || !p.Oldest.Equal(first) {
		t.Errorf("expected oldest %v, got %v", first, p.Oldest)
	}
	if p.LastSweep != nil {
		t.Errorf("expected no last sweep yet, got %v", p.LastSweep)
	}

	if _, err := j.Sweep(ctx, DefaultRetention); err != nil {
		t.Fatal(err)
	}
	p, _ = j.Preview(ctx, DefaultRetention)
	if p.Due != 0 {
		t.Errorf("expected nothing due after sweep, got %d", p.Due)
	}
	if p.LastSweep == nil || !p.LastSweep.Equal(received) {
		t.Errorf("expected last sweep %v, got %v", received, p.LastSweep)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := store.NewSQLStore(db.NewTestDB(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		newJanitor(s, received).Run(ctx, time.Millisecond, DefaultRetention)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
