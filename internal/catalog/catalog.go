// Package catalog manages item reports and match suggestions.
package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/erazemk/lostfound/internal/apperr"
	"github.com/erazemk/lostfound/internal/cache"
	"github.com/erazemk/lostfound/internal/imaging"
	"github.com/erazemk/lostfound/internal/matching"
	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/store"
	"github.com/erazemk/lostfound/internal/textutil"
)

// Input limits.
const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 5000
	MaxLocationLen    = 300
	MaxCategoryLen    = 100
)

// DefaultRecentLimit is how many recently matched items are shown.
const DefaultRecentLimit = 6

// matchCacheSize bounds the number of found items with cached suggestions.
const matchCacheSize = 512

// StatusAll lists items regardless of status.
const StatusAll = "all"

// Service manages items.
type Service struct {
	Store   store.Store
	Now     func() time.Time
	matches *cache.TTL[string, []model.Item]
}

// New creates a Service. Match suggestions are cached for matchTTL; zero
// disables caching.
func New(s store.Store, matchTTL time.Duration) (*Service, error) {
	svc := &Service{Store: s, Now: func() time.Time { return time.Now().UTC() }}
	if matchTTL > 0 {
		c, err := cache.NewTTL[string, []model.Item](matchCacheSize, matchTTL)
		if err != nil {
			return nil, err
		}
		svc.matches = c
	}
	return svc, nil
}

// NewItem is the input for Create.
type NewItem struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Status       string `json:"status"`
	Category     string `json:"category"`
	Location     string `json:"location"`
	ImageURL     string `json:"imageUrl"`
	ReporterName string `json:"reporterName"`
}

// ItemView is an item with its derived stage.
type ItemView struct {
	Item  *model.Item `json:"item"`
	Stage string      `json:"stage"`
}

// MatchedItem is a found item with an approved claim.
type MatchedItem struct {
	model.Item
	MatchedAt time.Time `json:"matchedAt"`
}

// Create reports a new item on behalf of caller.
func (s *Service) Create(ctx context.Context, caller model.Identity, in NewItem) (*model.Item, error) {
	item := &model.Item{
		Title:       textutil.Clean(in.Title),
		Description: textutil.Clean(in.Description),
		Status:      in.Status,
		Category:    textutil.Clean(in.Category),
		Location:    textutil.Clean(in.Location),
		ImageURL:    in.ImageURL,
		CreatedAt:   s.Now(),
		ReportedBy:  caller.UserID,
		Reporter: model.Reporter{
			Name:  textutil.Clean(in.ReporterName),
			Email: caller.Email,
		},
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}

	if err := s.Store.CreateItem(ctx, item); err != nil {
		return nil, apperr.Unavailable("creating item", err)
	}

	// A new lost item may belong in any cached suggestion list.
	if item.Status == model.ItemStatusLost && s.matches != nil {
		s.matches.Purge()
	}

	slog.Info("item reported", "item", item.ID, "status", item.Status, "reporter", caller.UserID)
	return item, nil
}

func validateItem(item *model.Item) error {
	switch {
	case item.Title == "":
		return apperr.Validation("title required")
	case !model.ValidItemStatus(item.Status):
		return apperr.Validation("status must be lost or found")
	case textutil.TooLong(item.Title, MaxTitleLen):
		return apperr.Validation("title too long")
	case textutil.TooLong(item.Description, MaxDescriptionLen):
		return apperr.Validation("description too long")
	case textutil.TooLong(item.Location, MaxLocationLen):
		return apperr.Validation("location too long")
	case textutil.TooLong(item.Category, MaxCategoryLen):
		return apperr.Validation("category too long")
	}
	for _, f := range []struct{ name, value string }{
		{"title", item.Title},
		{"description", item.Description},
		{"category", item.Category},
		{"location", item.Location},
		{"reporter name", item.Reporter.Name},
	} {
		if textutil.HasMarkup(f.value) {
			return apperr.Validation(f.name + " must be plain text")
		}
	}
	if item.ImageURL != "" {
		u, err := url.Parse(item.ImageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperr.Validation("image url must be an http or https url")
		}
	}
	return nil
}

// Get returns an item and its stage.
func (s *Service) Get(ctx context.Context, id string) (*ItemView, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	hasPending := false
	if !item.Claimed {
		pending, err := s.Store.ListClaims(ctx, store.ClaimFilter{
			ItemID:   id,
			Statuses: []string{model.ClaimPending},
			Limit:    1,
		})
		if err != nil {
			return nil, apperr.Unavailable("loading claims", err)
		}
		hasPending = len(pending) > 0
	}

	return &ItemView{Item: item, Stage: item.Stage(hasPending)}, nil
}

// List returns items newest first. status is lost, found, all or empty.
func (s *Service) List(ctx context.Context, status string) ([]model.Item, error) {
	if status == StatusAll {
		status = ""
	}
	if status != "" && !model.ValidItemStatus(status) {
		return nil, apperr.Validation("status must be lost, found or all")
	}
	items, err := s.Store.ListItems(ctx, store.ItemFilter{Status: status})
	if err != nil {
		return nil, apperr.Unavailable("listing items", err)
	}
	return nonNil(items), nil
}

// ListMine returns the items caller reported, matched by id or email.
func (s *Service) ListMine(ctx context.Context, caller model.Identity) ([]model.Item, error) {
	items, err := s.Store.ListItems(ctx, store.ItemFilter{Owner: &caller})
	if err != nil {
		return nil, apperr.Unavailable("listing items", err)
	}
	return nonNil(items), nil
}

// Matches suggests lost items that may be the given found item.
func (s *Service) Matches(ctx context.Context, id string) ([]model.Item, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		if s.matches != nil && apperr.Is(err, apperr.KindNotFound) {
			s.matches.Delete(id)
		}
		return nil, err
	}
	if s.matches != nil {
		if cached, ok := s.matches.Get(id); ok {
			return cached, nil
		}
	}
	if item.Status != model.ItemStatusFound {
		return nil, apperr.InvalidState("matches are only available for found items")
	}

	pool, err := s.Store.ListItems(ctx, store.ItemFilter{Status: model.ItemStatusLost, UnclaimedOnly: true})
	if err != nil {
		return nil, apperr.Unavailable("loading lost items", err)
	}

	candidates := nonNil(matching.FindCandidates(*item, pool))
	if s.matches != nil {
		s.matches.Set(id, candidates)
	}
	return candidates, nil
}

// RecentlyMatched returns found items whose claims were approved most
// recently, including those already picked up but not yet cleaned up.
func (s *Service) RecentlyMatched(ctx context.Context, limit int) ([]MatchedItem, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	// Not limited in the store: claims whose item is gone are skipped, and
	// settled claims only live until the janitor's retention window.
	settled, err := s.Store.ListClaims(ctx, store.ClaimFilter{
		Statuses:   []string{model.ClaimApproved, model.ClaimReceived},
		ByDecision: true,
	})
	if err != nil {
		return nil, apperr.Unavailable("listing approved claims", err)
	}

	out := []MatchedItem{}
	seen := make(map[string]bool)
	for _, c := range settled {
		if len(out) == limit {
			break
		}
		if seen[c.ItemID] {
			continue
		}
		seen[c.ItemID] = true
		item, err := s.Store.GetItem(ctx, c.ItemID)
		if err != nil {
			return nil, apperr.Unavailable("loading item", err)
		}
		if item == nil || item.Status != model.ItemStatusFound {
			continue
		}
		matchedAt := c.CreatedAt
		if c.DecidedAt != nil {
			matchedAt = *c.DecidedAt
		}
		out = append(out, MatchedItem{Item: *item, MatchedAt: matchedAt})
	}
	return out, nil
}

// SetImage processes and stores a photo for an item. Only the reporter may
// set it.
func (s *Service) SetImage(ctx context.Context, caller model.Identity, id string, r io.Reader) (*model.Item, error) {
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.IsReporter(caller) {
		return nil, apperr.Forbidden("only the reporter can change the photo")
	}

	img, err := imaging.Process(r)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid image", err)
	}

	item.ImageURL = ImagePath(id)
	if err := s.Store.SetItemImage(ctx, id, img.Data, img.MIME, item.ImageURL); err != nil {
		return nil, apperr.Unavailable("storing image", err)
	}
	return item, nil
}

// Image returns an item's stored photo.
func (s *Service) Image(ctx context.Context, id string) ([]byte, string, error) {
	data, mime, err := s.Store.GetItemImage(ctx, id)
	if err != nil {
		return nil, "", apperr.Unavailable("loading image", err)
	}
	if data == nil {
		return nil, "", apperr.NotFound("no image")
	}
	return data, mime, nil
}

// ImagePath is where an item's stored photo is served.
func ImagePath(id string) string {
	return "/api/items/" + url.PathEscape(id) + "/image"
}

func (s *Service) load(ctx context.Context, id string) (*model.Item, error) {
	item, err := s.Store.GetItem(ctx, id)
	if err != nil {
		return nil, apperr.Unavailable("loading item", err)
	}
	if item == nil {
		return nil, apperr.NotFound("item not found")
	}
	return item, nil
}

func nonNil(items []model.Item) []model.Item {
	if items == nil {
		return []model.Item{}
	}
	return items
}
