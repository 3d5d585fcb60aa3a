package mongodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/store"
)

// CreateClaim inserts a pending claim if the item is an unclaimed found
// item. Documents cannot be conditionally inserted against another
// collection, so the item is checked again after the insert and the claim
// withdrawn if an approval landed in between.
func (s *Store) CreateClaim(ctx context.Context, c *model.Claim) error {
	item, err := s.GetItem(ctx, c.ItemID)
	if err != nil {
		return err
	}
	if item == nil || !item.Claimable() {
		return store.ErrItemUnavailable
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.Status = model.ClaimPending
	c.ItemTitle = item.Title

	if _, err := s.col(colClaims).InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("creating claim: %w", err)
	}

	item, err = s.GetItem(ctx, c.ItemID)
	if err != nil {
		return err
	}
	if item == nil || item.Claimed {
		if _, err := s.col(colClaims).DeleteOne(ctx, bson.M{"_id": c.ID}); err != nil {
			return fmt.Errorf("withdrawing claim: %w", err)
		}
		return store.ErrItemUnavailable
	}
	return nil
}

func (s *Store) GetClaim(ctx context.Context, id string) (*model.Claim, error) {
	var c model.Claim
	ok, err := findOne(ctx, s.col(colClaims), bson.M{"_id": id}, &c)
	if err != nil {
		return nil, fmt.Errorf("getting claim: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) ListClaims(ctx context.Context, f store.ClaimFilter) ([]model.Claim, error) {
	filter := bson.M{}
	if f.ItemID != "" {
		filter["itemId"] = f.ItemID
	}
	if f.ClaimedBy != "" {
		filter["claimedBy"] = f.ClaimedBy
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}

	order := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	if f.ByDecision {
		// Missing decidedAt sorts last in descending order.
		order = bson.D{{Key: "decidedAt", Value: -1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	}
	opts := options.Find().SetSort(order)
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	return s.findClaims(ctx, filter, opts)
}

func (s *Store) findClaims(ctx context.Context, filter any, opts ...*options.FindOptions) ([]model.Claim, error) {
	cur, err := s.col(colClaims).Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("listing claims: %w", err)
	}
	var claims []model.Claim
	if err := cur.All(ctx, &claims); err != nil {
		return nil, fmt.Errorf("decoding claims: %w", err)
	}
	return claims, nil
}

func (s *Store) TransitionClaim(ctx context.Context, id, from, to string, upd store.ClaimUpdate) (bool, error) {
	set := bson.M{"status": to}
	unset := bson.M{}

	switch {
	case upd.Reset:
		unset["meetupAddress"] = ""
		unset["decidedAt"] = ""
	case upd.MeetupAddress != "":
		set["meetupAddress"] = upd.MeetupAddress
	}
	if upd.DecidedAt != nil && !upd.Reset {
		set["decidedAt"] = upd.DecidedAt.UTC()
	}
	if upd.ReceivedAt != nil {
		set["receivedAt"] = upd.ReceivedAt.UTC()
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := s.col(colClaims).UpdateOne(ctx, bson.M{"_id": id, "status": from}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, store.ErrDuplicate
		}
		return false, fmt.Errorf("updating claim status: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (s *Store) DeleteClaimsForItem(ctx context.Context, itemID string) (int, error) {
	res, err := s.col(colClaims).DeleteMany(ctx, bson.M{"itemId": itemID})
	if err != nil {
		return 0, fmt.Errorf("deleting claims: %w", err)
	}
	return int(res.DeletedCount), nil
}

// ListReceivedBefore falls back to createdAt for claims stored before
// receivedAt was recorded.
func (s *Store) ListReceivedBefore(ctx context.Context, cutoff time.Time) ([]model.Claim, error) {
	filter := bson.M{
		"status": model.ClaimReceived,
		"$or": bson.A{
			bson.M{"receivedAt": bson.M{"$lt": cutoff}},
			bson.M{"receivedAt": nil, "createdAt": bson.M{"$lt": cutoff}},
		},
	}
	claims, err := s.findClaims(ctx, filter)
	if err != nil {
		return nil, err
	}

	sort.Slice(claims, func(i, j int) bool {
		ti, tj := receiptTime(claims[i]), receiptTime(claims[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return claims[i].ID < claims[j].ID
	})
	return claims, nil
}

func receiptTime(c model.Claim) time.Time {
	if c.ReceivedAt != nil {
		return *c.ReceivedAt
	}
	return c.CreatedAt
}
