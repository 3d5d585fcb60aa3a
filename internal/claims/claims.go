// Package claims implements the claim lifecycle: submission, the finder's
// decision, and the claimant's confirmation of receipt.
package claims

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/erazemk/lostfound/internal/apperr"
	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/notify"
	"github.com/erazemk/lostfound/internal/store"
	"github.com/erazemk/lostfound/internal/textutil"
)

// Input limits.
const (
	MaxProofLen  = 2000
	MaxMeetupLen = 300
)

var (
	errCompetingApproval = errors.New("another claim already approved")
	errNotPending        = errors.New("claim already decided")
)

// Manager runs claim state transitions against a store.
type Manager struct {
	Store store.Store
	Now   func() time.Time
}

// New creates a Manager using the wall clock.
func New(s store.Store) *Manager {
	return &Manager{Store: s, Now: func() time.Time { return time.Now().UTC() }}
}

// Create submits a pending claim by caller on a found item.
func (m *Manager) Create(ctx context.Context, caller model.Identity, itemID, proof string) (*model.Claim, error) {
	proof = textutil.Clean(proof)
	if proof == "" {
		return nil, apperr.Validation("proof message required")
	}
	if textutil.TooLong(proof, MaxProofLen) {
		return nil, apperr.Validation("proof message too long")
	}
	if textutil.HasMarkup(proof) {
		return nil, apperr.Validation("proof message must be plain text")
	}

	item, err := m.Store.GetItem(ctx, itemID)
	if err != nil {
		return nil, apperr.Unavailable("loading item", err)
	}
	if item == nil {
		return nil, apperr.NotFound("item not found")
	}
	if item.Status != model.ItemStatusFound {
		return nil, apperr.InvalidState("only found items can be claimed")
	}
	if item.Claimed {
		return nil, apperr.InvalidState("item already claimed")
	}

	pending, err := m.Store.ListClaims(ctx, store.ClaimFilter{
		ItemID:    itemID,
		ClaimedBy: caller.UserID,
		Statuses:  []string{model.ClaimPending},
		Limit:     1,
	})
	if err != nil {
		return nil, apperr.Unavailable("checking existing claims", err)
	}
	if len(pending) > 0 {
		return nil, apperr.Conflict("you already have a pending claim for this item")
	}

	now := m.Now()
	claim := &model.Claim{
		ItemID:    itemID,
		ClaimedBy: caller.UserID,
		Message:   proof,
		CreatedAt: now,
	}

	err = m.Store.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.CreateClaim(ctx, claim); err != nil {
			return err
		}
		if item.ReportedBy == "" {
			return nil
		}
		return tx.CreateNotification(ctx, notify.ClaimCreated(item.ReportedBy, item, now))
	})
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return nil, apperr.Conflict("you already have a pending claim for this item")
	case errors.Is(err, store.ErrItemUnavailable):
		return nil, apperr.InvalidState("item is no longer available")
	case err != nil:
		return nil, apperr.Unavailable("creating claim", err)
	}

	slog.Info("claim created", "claim", claim.ID, "item", itemID, "claimant", caller.UserID)
	return claim, nil
}

// Decide approves or rejects a pending claim. Only the item's finder may
// decide. Approving requires a meetup address, marks the item claimed and
// rejects every other pending claim on it.
func (m *Manager) Decide(ctx context.Context, caller model.Identity, claimID, decision, meetupAddress string) (*model.Claim, error) {
	if decision != model.ClaimApproved && decision != model.ClaimRejected {
		return nil, apperr.Validation("decision must be approved or rejected")
	}

	claim, item, err := m.load(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if !item.IsReporter(caller) {
		return nil, apperr.Forbidden("only the finder can decide claims on this item")
	}
	if claim.ItemTitle == "" {
		claim.ItemTitle = item.Title
	}
	if claim.Status == model.ClaimApproved && decision == model.ClaimApproved {
		return m.resumeApproval(ctx, claim, item)
	}
	if !model.CanTransition(claim.Status, decision) {
		if model.Terminal(claim.Status) {
			return nil, apperr.InvalidState("claim already decided")
		}
		return nil, apperr.InvalidState("claim already approved")
	}

	if decision == model.ClaimRejected {
		return m.reject(ctx, claim)
	}

	meetupAddress = textutil.Clean(meetupAddress)
	if meetupAddress == "" {
		return nil, apperr.Validation("meetup address required")
	}
	if textutil.TooLong(meetupAddress, MaxMeetupLen) {
		return nil, apperr.Validation("meetup address too long")
	}
	if textutil.HasMarkup(meetupAddress) {
		return nil, apperr.Validation("meetup address must be plain text")
	}

	settled, err := m.Store.ListClaims(ctx, store.ClaimFilter{
		ItemID:   item.ID,
		Statuses: []string{model.ClaimApproved, model.ClaimReceived},
		Limit:    1,
	})
	if err != nil {
		return nil, apperr.Unavailable("checking approvals", err)
	}
	if len(settled) > 0 || item.Claimed {
		return nil, apperr.InvalidState(errCompetingApproval.Error())
	}

	return m.approve(ctx, claim, meetupAddress)
}

func (m *Manager) reject(ctx context.Context, claim *model.Claim) (*model.Claim, error) {
	now := m.Now()
	err := m.Store.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		ok, err := tx.TransitionClaim(ctx, claim.ID, model.ClaimPending, model.ClaimRejected,
			store.ClaimUpdate{DecidedAt: &now})
		if err != nil {
			return err
		}
		if !ok {
			return errNotPending
		}
		return tx.CreateNotification(ctx, notify.ClaimRejected(claim, now))
	})
	if err != nil {
		return nil, decisionError(err)
	}

	claim.Status = model.ClaimRejected
	claim.DecidedAt = &now
	slog.Info("claim rejected", "claim", claim.ID, "item", claim.ItemID)
	return claim, nil
}

// approve writes, in order: the claim's approval, the item's claimed flag,
// the rejection of every sibling pending claim, the rejection notifications
// and finally the approval notification. Each write is conditional on the
// state it expects, so a racing approval on the same item loses at the claim
// write (unique approved claim per item) or at the item write (claimed only
// if not yet claimed). Without a transaction a failure part way leaves the
// claim approved; deciding it again runs resumeApproval.
func (m *Manager) approve(ctx context.Context, claim *model.Claim, meetupAddress string) (*model.Claim, error) {
	now := m.Now()
	var rejected int

	err := m.Store.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		ok, err := tx.TransitionClaim(ctx, claim.ID, model.ClaimPending, model.ClaimApproved,
			store.ClaimUpdate{MeetupAddress: meetupAddress, DecidedAt: &now})
		if errors.Is(err, store.ErrDuplicate) {
			return errCompetingApproval
		}
		if err != nil {
			return err
		}
		if !ok {
			return errNotPending
		}

		marked, err := tx.MarkItemClaimed(ctx, claim.ItemID, claim.ClaimedBy)
		if err != nil {
			undoApproval(ctx, tx, claim)
			return err
		}
		if !marked {
			if _, rerr := tx.TransitionClaim(ctx, claim.ID, model.ClaimApproved, model.ClaimPending,
				store.ClaimUpdate{Reset: true}); rerr != nil {
				slog.Error("failed to revert claim approval", "claim", claim.ID, "error", rerr)
			}
			return errCompetingApproval
		}

		claim.MeetupAddress = meetupAddress
		rejected, err = settle(ctx, tx, claim, now)
		return err
	})
	if err != nil {
		return nil, decisionError(err)
	}

	claim.Status = model.ClaimApproved
	claim.DecidedAt = &now
	slog.Info("claim approved", "claim", claim.ID, "item", claim.ItemID, "rejected_siblings", rejected)
	return claim, nil
}

// resumeApproval finishes an approval that stopped part way. The claim is
// already approved; whatever of the item write, sibling rejections and
// notifications is missing gets written now with the stored meetup address.
func (m *Manager) resumeApproval(ctx context.Context, claim *model.Claim, item *model.Item) (*model.Claim, error) {
	if item.Claimed && item.ClaimedBy != claim.ClaimedBy {
		return nil, apperr.InvalidState(errCompetingApproval.Error())
	}
	notified, err := countNotified(ctx, m.Store, claim.ClaimedBy, model.NotifyClaimApproved, claim.ItemID)
	if err != nil {
		return nil, apperr.Unavailable("checking notifications", err)
	}
	if item.Claimed && notified > 0 {
		return nil, apperr.InvalidState("claim already approved")
	}

	now := m.Now()
	var rejected int
	err = m.Store.InTx(ctx, func(ctx context.Context, tx store.Store) error {
		if !item.Claimed {
			marked, err := tx.MarkItemClaimed(ctx, claim.ItemID, claim.ClaimedBy)
			if err != nil {
				return err
			}
			if !marked {
				return errCompetingApproval
			}
		}
		var err error
		rejected, err = settle(ctx, tx, claim, now)
		return err
	})
	if err != nil {
		return nil, decisionError(err)
	}

	slog.Info("claim approval completed", "claim", claim.ID, "item", claim.ItemID, "rejected_siblings", rejected)
	return claim, nil
}

// settle rejects the remaining pending claims on the approved claim's item
// and writes the notifications that are still missing. It returns how many
// siblings it rejected.
func settle(ctx context.Context, tx store.Store, claim *model.Claim, now time.Time) (int, error) {
	siblings, err := tx.ListClaims(ctx, store.ClaimFilter{
		ItemID:   claim.ItemID,
		Statuses: []string{model.ClaimPending},
	})
	if err != nil {
		return 0, err
	}
	rejected := 0
	for _, s := range siblings {
		if s.ID == claim.ID {
			continue
		}
		ok, err := tx.TransitionClaim(ctx, s.ID, model.ClaimPending, model.ClaimRejected,
			store.ClaimUpdate{DecidedAt: &now})
		if err != nil {
			return rejected, err
		}
		if ok {
			rejected++
		}
	}

	if err := notifyRejected(ctx, tx, claim, now); err != nil {
		return rejected, err
	}

	notified, err := countNotified(ctx, tx, claim.ClaimedBy, model.NotifyClaimApproved, claim.ItemID)
	if err != nil {
		return rejected, err
	}
	if notified == 0 {
		if err := tx.CreateNotification(ctx, notify.ClaimApproved(claim, claim.MeetupAddress, now)); err != nil {
			return rejected, err
		}
	}
	return rejected, nil
}

// notifyRejected gives every rejected claim on the item a claim_rejected
// notification. Notifications carry no claim id, so claims and notifications
// are paired by claimant and item and only the shortfall is written.
func notifyRejected(ctx context.Context, tx store.Store, approved *model.Claim, now time.Time) error {
	rejected, err := tx.ListClaims(ctx, store.ClaimFilter{
		ItemID:   approved.ItemID,
		Statuses: []string{model.ClaimRejected},
	})
	if err != nil {
		return err
	}

	byClaimant := make(map[string][]model.Claim)
	var claimants []string
	for _, c := range rejected {
		if _, ok := byClaimant[c.ClaimedBy]; !ok {
			claimants = append(claimants, c.ClaimedBy)
		}
		byClaimant[c.ClaimedBy] = append(byClaimant[c.ClaimedBy], c)
	}

	for _, userID := range claimants {
		list := byClaimant[userID]
		sent, err := countNotified(ctx, tx, userID, model.NotifyClaimRejected, approved.ItemID)
		if err != nil {
			return err
		}
		for i := sent; i < len(list); i++ {
			c := list[i]
			if c.ItemTitle == "" {
				c.ItemTitle = approved.ItemTitle
			}
			if err := tx.CreateNotification(ctx, notify.ClaimRejected(&c, now)); err != nil {
				return err
			}
		}
	}
	return nil
}

// countNotified returns how many notifications of type typ about itemID the
// user has.
func countNotified(ctx context.Context, s store.NotificationStore, userID, typ, itemID string) (int, error) {
	list, err := s.ListNotifications(ctx, userID, false)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, note := range list {
		if note.Type == typ && note.ItemID == itemID {
			n++
		}
	}
	return n, nil
}

// undoApproval releases the item and returns the claim to pending. Inside a
// transaction the rollback already does this.
func undoApproval(ctx context.Context, tx store.Store, claim *model.Claim) {
	if err := tx.ReleaseItemClaim(ctx, claim.ItemID); err != nil {
		slog.Error("failed to release item", "item", claim.ItemID, "error", err)
	}
	if _, err := tx.TransitionClaim(ctx, claim.ID, model.ClaimApproved, model.ClaimPending,
		store.ClaimUpdate{Reset: true}); err != nil {
		slog.Error("failed to revert claim approval", "claim", claim.ID, "error", err)
	}
}

// MarkReceived records that the claimant picked up the item. The item stays
// in place until the janitor removes it after the retention window.
func (m *Manager) MarkReceived(ctx context.Context, caller model.Identity, claimID string) (*model.Claim, error) {
	claim, err := m.Store.GetClaim(ctx, claimID)
	if err != nil {
		return nil, apperr.Unavailable("loading claim", err)
	}
	if claim == nil {
		return nil, apperr.NotFound("claim not found")
	}
	if claim.ClaimedBy != caller.UserID {
		return nil, apperr.Forbidden("only the claimant can confirm receipt")
	}
	if !model.CanTransition(claim.Status, model.ClaimReceived) {
		return nil, apperr.InvalidState("only approved claims can be marked received")
	}

	now := m.Now()
	ok, err := m.Store.TransitionClaim(ctx, claim.ID, model.ClaimApproved, model.ClaimReceived,
		store.ClaimUpdate{ReceivedAt: &now})
	if err != nil {
		return nil, apperr.Unavailable("updating claim", err)
	}
	if !ok {
		return nil, apperr.InvalidState("claim is no longer approved")
	}

	claim.Status = model.ClaimReceived
	claim.ReceivedAt = &now
	slog.Info("claim received", "claim", claim.ID, "item", claim.ItemID)
	return claim, nil
}

// ListForItem returns every claim on an item. Only the finder may list them.
func (m *Manager) ListForItem(ctx context.Context, caller model.Identity, itemID string) ([]model.Claim, error) {
	item, err := m.Store.GetItem(ctx, itemID)
	if err != nil {
		return nil, apperr.Unavailable("loading item", err)
	}
	if item == nil {
		return nil, apperr.NotFound("item not found")
	}
	if !item.IsReporter(caller) {
		return nil, apperr.Forbidden("only the finder can view claims on this item")
	}

	list, err := m.Store.ListClaims(ctx, store.ClaimFilter{ItemID: itemID})
	if err != nil {
		return nil, apperr.Unavailable("listing claims", err)
	}
	return nonNil(list), nil
}

// ListMine returns the caller's own claims, newest first.
func (m *Manager) ListMine(ctx context.Context, caller model.Identity) ([]model.Claim, error) {
	list, err := m.Store.ListClaims(ctx, store.ClaimFilter{ClaimedBy: caller.UserID})
	if err != nil {
		return nil, apperr.Unavailable("listing claims", err)
	}
	return nonNil(list), nil
}

func (m *Manager) load(ctx context.Context, claimID string) (*model.Claim, *model.Item, error) {
	claim, err := m.Store.GetClaim(ctx, claimID)
	if err != nil {
		return nil, nil, apperr.Unavailable("loading claim", err)
	}
	if claim == nil {
		return nil, nil, apperr.NotFound("claim not found")
	}
	item, err := m.Store.GetItem(ctx, claim.ItemID)
	if err != nil {
		return nil, nil, apperr.Unavailable("loading item", err)
	}
	if item == nil {
		return nil, nil, apperr.NotFound("item not found")
	}
	return claim, item, nil
}

func decisionError(err error) error {
	switch {
	case errors.Is(err, errCompetingApproval):
		return apperr.InvalidState(errCompetingApproval.Error())
	case errors.Is(err, errNotPending):
		return apperr.InvalidState(errNotPending.Error())
	default:
		return apperr.Unavailable("recording decision", err)
	}
}

func nonNil(list []model.Claim) []model.Claim {
	if list == nil {
		return []model.Claim{}
	}
	return list
}
