// Package store defines persistence for items, claims and notifications and
// provides the SQLite implementation. Other backends live in subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/erazemk/lostfound/internal/model"
)

var (
	// ErrDuplicate is returned when a write violates a uniqueness rule: a
	// second pending claim by the same claimant, or a second approved claim
	// on the same item.
	ErrDuplicate = errors.New("store: duplicate record")

	// ErrItemUnavailable is returned by CreateClaim when the item is missing,
	// not a found item, or already claimed at the time of the write.
	ErrItemUnavailable = errors.New("store: item not available for claims")
)

// ItemFilter narrows ListItems. Zero values mean "no constraint".
type ItemFilter struct {
	Status string
	// Owner matches items whose reporter id equals UserID or whose reporter
	// email equals Email (case-insensitive).
	Owner         *model.Identity
	UnclaimedOnly bool
	Limit         int
}

// ClaimFilter narrows ListClaims. Zero values mean "no constraint".
type ClaimFilter struct {
	ItemID    string
	ClaimedBy string
	Statuses  []string
	// ByDecision orders by decision time, newest first, falling back to
	// creation time for undecided claims.
	ByDecision bool
	Limit      int
}

// ClaimUpdate carries the fields written alongside a status transition.
type ClaimUpdate struct {
	MeetupAddress string
	DecidedAt     *time.Time
	ReceivedAt    *time.Time
	// Reset clears meetup address and decision time. Used when an approval
	// has to be undone.
	Reset bool
}

// ItemStore persists items.
type ItemStore interface {
	CreateItem(ctx context.Context, item *model.Item) error
	// GetItem returns (nil, nil) if the item does not exist.
	GetItem(ctx context.Context, id string) (*model.Item, error)
	ListItems(ctx context.Context, f ItemFilter) ([]model.Item, error)
	// MarkItemClaimed sets claimed, approved and claimedBy only if the item
	// is not already claimed. It reports whether the write happened.
	MarkItemClaimed(ctx context.Context, id, claimedBy string) (bool, error)
	ReleaseItemClaim(ctx context.Context, id string) error
	DeleteItem(ctx context.Context, id string) error
	SetItemImage(ctx context.Context, id string, data []byte, mime, url string) error
	// GetItemImage returns (nil, "", nil) if the item has no image.
	GetItemImage(ctx context.Context, id string) ([]byte, string, error)
}

// ClaimStore persists claims.
type ClaimStore interface {
	// CreateClaim inserts a pending claim only if the item is an unclaimed
	// found item. It returns ErrItemUnavailable or ErrDuplicate otherwise.
	CreateClaim(ctx context.Context, c *model.Claim) error
	// GetClaim returns (nil, nil) if the claim does not exist.
	GetClaim(ctx context.Context, id string) (*model.Claim, error)
	// ListClaims returns claims newest first, by creation time unless the
	// filter asks for decision time.
	ListClaims(ctx context.Context, f ClaimFilter) ([]model.Claim, error)
	// TransitionClaim moves a claim from one status to another only if its
	// current status equals from. It reports whether the write happened.
	TransitionClaim(ctx context.Context, id, from, to string, upd ClaimUpdate) (bool, error)
	DeleteClaimsForItem(ctx context.Context, itemID string) (int, error)
	// ListReceivedBefore returns received claims whose receipt time, or
	// creation time when receipt time is missing, is before cutoff. Oldest
	// first.
	ListReceivedBefore(ctx context.Context, cutoff time.Time) ([]model.Claim, error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	// GetNotification returns (nil, nil) if the notification does not exist.
	GetNotification(ctx context.Context, id string) (*model.Notification, error)
	// ListNotifications returns a user's notifications newest first.
	ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
}

// SettingStore persists small key/value settings.
type SettingStore interface {
	// GetSetting returns ("", false, nil) if the key is not set.
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// TokenStore persists revoked credentials.
type TokenStore interface {
	RevokeToken(ctx context.Context, key string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, key string) (bool, error)
}

// Store is the full persistence contract.
type Store interface {
	ItemStore
	ClaimStore
	NotificationStore
	SettingStore
	TokenStore

	// InTx runs fn against a store bound to a single transaction. The
	// transaction commits if fn returns nil. Backends without transactions
	// run fn directly; callers must then rely on the conditional writes.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
	Close() error
}
