package notify

import (
	"fmt"
	"time"

	"github.com/erazemk/lostfound/internal/model"
)

// MeetupMarker precedes the meetup address in approval messages.
const MeetupMarker = "Meetup address: "

// ClaimCreated tells a finder that someone wants their found item.
func ClaimCreated(finderID string, item *model.Item, now time.Time) *model.Notification {
	return &model.Notification{
		UserID:    finderID,
		Type:      model.NotifyClaimCreated,
		ItemID:    item.ID,
		ItemTitle: item.Title,
		Message:   "Someone has requested to claim your found item",
		CreatedAt: now,
	}
}

// ClaimApproved tells a claimant where to pick up the item. The address is
// stored in its own field and repeated in the message for display.
func ClaimApproved(c *model.Claim, meetupAddress string, now time.Time) *model.Notification {
	return &model.Notification{
		UserID:        c.ClaimedBy,
		Type:          model.NotifyClaimApproved,
		ItemID:        c.ItemID,
		ItemTitle:     c.ItemTitle,
		Message:       fmt.Sprintf("Your claim for %s was approved. %s%s", c.ItemTitle, MeetupMarker, meetupAddress),
		MeetupAddress: meetupAddress,
		CreatedAt:     now,
	}
}

// ClaimRejected tells a claimant their claim was turned down.
func ClaimRejected(c *model.Claim, now time.Time) *model.Notification {
	return &model.Notification{
		UserID:    c.ClaimedBy,
		Type:      model.NotifyClaimRejected,
		ItemID:    c.ItemID,
		ItemTitle: c.ItemTitle,
		Message:   fmt.Sprintf("Your claim for %s was rejected", c.ItemTitle),
		CreatedAt: now,
	}
}
