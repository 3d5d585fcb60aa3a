package model

import "time"

// Claim is a request by a user to take possession of a found item.
type Claim struct {
	ID            string     `json:"id" bson:"_id"`
	ItemID        string     `json:"itemId" bson:"itemId"`
	ItemTitle     string     `json:"itemTitle,omitempty" bson:"itemTitle,omitempty"`
	ClaimedBy     string     `json:"claimedBy" bson:"claimedBy"`
	Message       string     `json:"message" bson:"message"`
	Status        string     `json:"status" bson:"status"`
	MeetupAddress string     `json:"meetupAddress,omitempty" bson:"meetupAddress,omitempty"`
	CreatedAt     time.Time  `json:"createdAt" bson:"createdAt"`
	DecidedAt     *time.Time `json:"decidedAt,omitempty" bson:"decidedAt,omitempty"`
	ReceivedAt    *time.Time `json:"receivedAt,omitempty" bson:"receivedAt,omitempty"`
}

// Claim statuses.
const (
	ClaimPending  = "pending"
	ClaimApproved = "approved"
	ClaimRejected = "rejected"
	ClaimReceived = "received"
)

// claimTransitions lists the allowed status changes. Anything not listed is
// rejected, including re-entering the same status.
var claimTransitions = map[string][]string{
	ClaimPending:  {ClaimApproved, ClaimRejected},
	ClaimApproved: {ClaimReceived},
}

// CanTransition reports whether a claim may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range claimTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible from status.
func Terminal(status string) bool {
	return len(claimTransitions[status]) == 0
}
