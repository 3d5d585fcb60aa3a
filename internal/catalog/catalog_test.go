package catalog

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/erazemk/lostfound/internal/apperr"
	"github.com/erazemk/lostfound/internal/db"
	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/store"
)

var (
	finder = model.Identity{UserID: "finder", Email: "finder@uni.edu"}
	loser  = model.Identity{UserID: "loser", Email: "loser@uni.edu"}
)

func setup(t *testing.T, ttl time.Duration) (*Service, *store.SQLStore) {
	t.Helper()
	s := store.NewSQLStore(db.NewTestDB(t))
	svc, err := New(s, ttl)
	if err != nil {
		t.Fatal(err)
	}
	clock := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc, s
}

func TestCreateItem(t *testing.T) {
	svc, _ := setup(t, 0)
	ctx := context.Background()

	item, err := svc.Create(ctx, finder, NewItem{
		Title:        " Blue backpack ",
		Description:  "Found near the bus stop",
		Status:       model.ItemStatusFound,
		Location:     "North gate, bay < 3",
		ReporterName: "Ana",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.Title != "Blue backpack" {
		t.Errorf("expected trimmed title, got %q", item.Title)
	}
	if item.Location != "North gate, bay < 3" {
		t.Errorf("expected location kept as given, got %q", item.Location)
	}
	if item.ReportedBy != finder.UserID || item.Reporter.Email != finder.Email || item.Reporter.Name != "Ana" {
		t.Errorf("unexpected reporter fields %+v", item)
	}
	if item.Claimed || item.Approved {
		t.Error("new items must start unclaimed")
	}
}

func TestCreateItemValidation(t *testing.T) {
	svc, _ := setup(t, 0)
	ctx := context.Background()

	tests := []struct {
		name string
		in   NewItem
	}{
		{"no title", NewItem{Status: model.ItemStatusLost}},
		{"markup title", NewItem{Title: "<i>Blue</i> backpack", Status: model.ItemStatusLost}},
		{"escaped markup", NewItem{Title: "Keys", Description: "&lt;script&gt;", Status: model.ItemStatusLost}},
		{"markup reporter", NewItem{Title: "Keys", Status: model.ItemStatusLost, ReporterName: "<b>Ana</b>"}},
		{"bad status", NewItem{Title: "Keys", Status: "stolen"}},
		{"bad image url", NewItem{Title: "Keys", Status: model.ItemStatusLost, ImageURL: "javascript:alert(1)"}},
	}
	for _, tt := range tests {
		_, err := svc.Create(ctx, finder, tt.in)
		if !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("%s: expected validation error, got %v", tt.name, err)
		}
	}
}

func TestListStatusFilter(t *testing.T) {
	svc, _ := setup(t, 0)
	ctx := context.Background()
	svc.Create(ctx, finder, NewItem{Title: "Umbrella", Status: model.ItemStatusFound})
	svc.Create(ctx, loser, NewItem{Title: "Umbrella", Status: model.ItemStatusLost})

	for status, want := range map[string]int{"": 2, StatusAll: 2, model.ItemStatusLost: 1, model.ItemStatusFound: 1} {
		items, err := svc.List(ctx, status)
		if err != nil {
			t.Fatalf("List(%q): %v", status, err)
		}
		if len(items) != want {
			t.Errorf("List(%q): expected %d, got %d", status, want, len(items))
		}
	}

	if _, err := svc.List(ctx, "stolen"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestListMine(t *testing.T) {
	svc, _ := setup(t, 0)
	ctx := context.Background()
	svc.Create(ctx, finder, NewItem{Title: "Umbrella", Status: model.ItemStatusFound})
	svc.Create(ctx, loser, NewItem{Title: "Phone", Status: model.ItemStatusLost})

	mine, _ := svc.ListMine(ctx, model.Identity{UserID: "new-session", Email: finder.Email})
	if len(mine) != 1 || mine[0].Title != "Umbrella" {
		t.Errorf("expected finder's item by email, got %+v", mine)
	}
}

func TestGetStage(t *testing.T) {
	svc, s := setup(t, 0)
	ctx := context.Background()
	item, _ := svc.Create(ctx, finder, NewItem{Title: "Umbrella", Status: model.ItemStatusFound})

	view, err := svc.Get(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.Stage != model.StageAvailable {
		t.Errorf("expected available, got %q", view.Stage)
	}

	s.CreateClaim(ctx, &model.Claim{ItemID: item.ID, ClaimedBy: loser.UserID, Message: "mine"})
	view, _ = svc.Get(ctx, item.ID)
	if view.Stage != model.StageClaimPending {
		t.Errorf("expected claim_pending, got %q", view.Stage)
	}

	s.MarkItemClaimed(ctx, item.ID, loser.UserID)
	view, _ = svc.Get(ctx, item.ID)
	if view.Stage != model.StageClaimed {
		t.Errorf("expected claimed, got %q", view.Stage)
	}

	if _, err := svc.Get(ctx, "missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMatches(t *testing.T) {
	svc, _ := setup(t, time.Minute)
	ctx := context.Background()

	lostItem, _ := svc.Create(ctx, loser, NewItem{
		Title: "Black Wallet", Description: "leather wallet lost near library", Status: model.ItemStatusLost,
	})
	found, _ := svc.Create(ctx, finder, NewItem{
		Title: "Wallet found", Description: "found a leather wallet near the library", Status: model.ItemStatusFound,
	})

	got, err := svc.Matches(ctx, found.ID)
	if err != nil {
		t.Fatalf("Matches: %v", err)
	}
	if len(got) != 1 || got[0].ID != lostItem.ID {
		t.Fatalf("expected the lost wallet, got %+v", got)
	}

	// A new lost item invalidates cached suggestions.
	svc.Create(ctx, loser, NewItem{Title: "Brown wallet", Status: model.ItemStatusLost})
	got, _ = svc.Matches(ctx, found.ID)
	if len(got) != 2 {
		t.Errorf("expected 2 matches after new lost item, got %d", len(got))
	}

	if _, err := svc.Matches(ctx, lostItem.ID); !apperr.Is(err, apperr.KindInvalidState) {
		t.Errorf("expected invalid state for lost item, got %v", err)
	}
	if _, err := svc.Matches(ctx, "missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMatchesEmptyIsNotNil(t *testing.T) {
	svc, _ := setup(t, 0)
	ctx := context.Background()
	found, _ := svc.Create(ctx, finder, NewItem{Title: "Scarf", Status: model.ItemStatusFound})

	got, err := svc.Matches(ctx, found.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestRecentlyMatched(t *testing.T) {
	svc, s := setup(t, 0)
	ctx := context.Background()

	item, _ := svc.Create(ctx, finder, NewItem{Title: "Umbrella", Status: model.ItemStatusFound})
	other, _ := svc.Create(ctx, finder, NewItem{Title: "Hat", Status: model.ItemStatusFound})

	c := &model.Claim{ItemID: item.ID, ClaimedBy: loser.UserID, Message: "mine"}
	s.CreateClaim(ctx, c)
	decided := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	s.TransitionClaim(ctx, c.ID, model.ClaimPending, model.ClaimApproved, store.ClaimUpdate{DecidedAt: &decided})
	s.CreateClaim(ctx, &model.Claim{ItemID: other.ID, ClaimedBy: loser.UserID, Message: "mine"})

	got, err := svc.RecentlyMatched(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != item.ID {
		t.Fatalf("expected only the approved item, got %+v", got)
	}
	if !got[0].MatchedAt.Equal(decided) {
		t.Errorf("expected matchedAt %v, got %v", decided, got[0].MatchedAt)
	}
}

func TestMatchesAfterItemDeleted(t *testing.T) {
	svc, s := setup(t, time.Minute)
	ctx := context.Background()

	svc.Create(ctx, loser, NewItem{Title: "Black Wallet", Status: model.ItemStatusLost})
	found, _ := svc.Create(ctx, finder, NewItem{Title: "Wallet found", Status: model.ItemStatusFound})
	if got, err := svc.Matches(ctx, found.ID); err != nil || len(got) != 1 {
		t.Fatalf("Matches: %v %+v", err, got)
	}

	if err := s.DeleteItem(ctx, found.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Matches(ctx, found.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found for deleted item despite cached matches, got %v", err)
	}
}

func TestRecentlyMatchedOrderAndLimit(t *testing.T) {
	svc, s := setup(t, 0)
	ctx := context.Background()

	// Claims are created a, b, c but decided c, b, a.
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var items []*model.Item
	for i, title := range []string{"Umbrella", "Hat", "Scarf"} {
		item, _ := svc.Create(ctx, finder, NewItem{Title: title, Status: model.ItemStatusFound})
		items = append(items, item)

		c := &model.Claim{ItemID: item.ID, ClaimedBy: loser.UserID, Message: "mine", CreatedAt: created.Add(time.Duration(i) * time.Hour)}
		if err := s.CreateClaim(ctx, c); err != nil {
			t.Fatal(err)
		}
		decided := created.AddDate(0, 0, 5-i)
		s.TransitionClaim(ctx, c.ID, model.ClaimPending, model.ClaimApproved, store.ClaimUpdate{DecidedAt: &decided})
	}

	got, err := svc.RecentlyMatched(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].ID != items[0].ID || got[1].ID != items[1].ID || got[2].ID != items[2].ID {
		t.Fatalf("expected items in decision order, got %+v", got)
	}

	// A deleted item does not use up the limit.
	s.DeleteItem(ctx, items[0].ID)
	got, _ = svc.RecentlyMatched(ctx, 2)
	if len(got) != 2 || got[0].ID != items[1].ID || got[1].ID != items[2].ID {
		t.Errorf("expected the two remaining items, got %+v", got)
	}
}

func testPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for x := 0; x < 20; x++ {
		for y := 0; y < 10; y++ {
			img.Set(x, y, color.RGBA{0, 128, 0, 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func TestSetImage(t *testing.T) {
	svc, _ := setup(t, 0)
	ctx := context.Background()
	item, _ := svc.Create(ctx, finder, NewItem{Title: "Umbrella", Status: model.ItemStatusFound})

	if _, err := svc.SetImage(ctx, loser, item.ID, bytes.NewReader(testPNG())); !apperr.Is(err, apperr.KindForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if _, err := svc.SetImage(ctx, finder, item.ID, bytes.NewReader([]byte("not an image"))); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}

	updated, err := svc.SetImage(ctx, finder, item.ID, bytes.NewReader(testPNG()))
	if err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	if updated.ImageURL != ImagePath(item.ID) {
		t.Errorf("expected image url %q, got %q", ImagePath(item.ID), updated.ImageURL)
	}

	data, mime, err := svc.Image(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if mime != "image/jpeg" || len(data) == 0 {
		t.Errorf("unexpected stored image: %d bytes, %q", len(data), mime)
	}

	other, _ := svc.Create(ctx, finder, NewItem{Title: "Hat", Status: model.ItemStatusFound})
	if _, _, err := svc.Image(ctx, other.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found for item without image, got %v", err)
	}
}
