package model

import (
	"strings"
	"time"
)

// Item is a single lost or found report.
type Item struct {
	ID          string    `json:"id" bson:"_id"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	Status      string    `json:"status" bson:"status"`
	Category    string    `json:"category,omitempty" bson:"category,omitempty"`
	Location    string    `json:"location" bson:"location"`
	ImageURL    string    `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	ReportedBy  string    `json:"reportedBy" bson:"reportedBy"`
	Reporter    Reporter  `json:"reporter" bson:"reporter"`
	Claimed     bool      `json:"claimed" bson:"claimed"`
	ClaimedBy   string    `json:"claimedBy,omitempty" bson:"claimedBy,omitempty"`
	Approved    bool      `json:"approved" bson:"approved"`
}

// Reporter is the contact snapshot taken when an item is reported.
type Reporter struct {
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
}

// Item statuses. Fixed at creation.
const (
	ItemStatusLost  = "lost"
	ItemStatusFound = "found"
)

// Item stages, derived from the item and its claims.
const (
	StageAvailable    = "available"
	StageClaimPending = "claim_pending"
	StageClaimed      = "claimed"
)

// ValidItemStatus reports whether s is a status an item can be created with.
func ValidItemStatus(s string) bool {
	return s == ItemStatusLost || s == ItemStatusFound
}

// IsReporter reports whether the identity reported this item, either by
// user id or by a matching contact email.
func (it *Item) IsReporter(id Identity) bool {
	if id.UserID != "" && id.UserID == it.ReportedBy {
		return true
	}
	return id.Email != "" && strings.EqualFold(id.Email, it.Reporter.Email)
}

// Claimable reports whether new claims may be submitted against the item.
func (it *Item) Claimable() bool {
	return it.Status == ItemStatusFound && !it.Claimed
}

// Stage derives the display stage of an item given whether it currently has
// a pending claim.
func (it *Item) Stage(hasPending bool) string {
	switch {
	case it.Claimed:
		return StageClaimed
	case hasPending:
		return StageClaimPending
	default:
		return StageAvailable
	}
}
