package model

import "time"

// Notification is a message addressed to a single user.
type Notification struct {
	ID            string    `json:"id" bson:"_id"`
	UserID        string    `json:"userId" bson:"userId"`
	Type          string    `json:"type" bson:"type"`
	ItemID        string    `json:"itemId,omitempty" bson:"itemId,omitempty"`
	ItemTitle     string    `json:"itemTitle,omitempty" bson:"itemTitle,omitempty"`
	Message       string    `json:"message" bson:"message"`
	MeetupAddress string    `json:"meetupAddress,omitempty" bson:"meetupAddress,omitempty"`
	Read          bool      `json:"read" bson:"read"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
}

// Notification types.
const (
	NotifyClaimCreated  = "claim_created"
	NotifyClaimApproved = "claim_approved"
	NotifyClaimRejected = "claim_rejected"
)
