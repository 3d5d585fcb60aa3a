package mongodb

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/store"
)

// withoutImage keeps image bytes out of item reads.
var withoutImage = bson.M{"image": 0, "imageMime": 0}

func (s *Store) CreateItem(ctx context.Context, item *model.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	if _, err := s.col(colItems).InsertOne(ctx, item); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("creating item: %w", err)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*model.Item, error) {
	var item model.Item
	ok, err := findOne(ctx, s.col(colItems), bson.M{"_id": id}, &item,
		options.FindOne().SetProjection(withoutImage))
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *Store) ListItems(ctx context.Context, f store.ItemFilter) ([]model.Item, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.UnclaimedOnly {
		filter["claimed"] = false
	}
	if f.Owner != nil {
		or := bson.A{bson.M{"reportedBy": f.Owner.UserID}}
		if f.Owner.Email != "" {
			or = append(or, bson.M{"reporter.email": primitive.Regex{
				Pattern: "^" + regexp.QuoteMeta(f.Owner.Email) + "$",
				Options: "i",
			}})
		}
		filter["$or"] = or
	}

	opts := options.Find().
		SetProjection(withoutImage).
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := s.col(colItems).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	var items []model.Item
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decoding items: %w", err)
	}
	return items, nil
}

func (s *Store) MarkItemClaimed(ctx context.Context, id, claimedBy string) (bool, error) {
	res, err := s.col(colItems).UpdateOne(ctx,
		bson.M{"_id": id, "claimed": false},
		bson.M{"$set": bson.M{"claimed": true, "approved": true, "claimedBy": claimedBy}},
	)
	if err != nil {
		return false, fmt.Errorf("marking item claimed: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (s *Store) ReleaseItemClaim(ctx context.Context, id string) error {
	_, err := s.col(colItems).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set":   bson.M{"claimed": false, "approved": false},
			"$unset": bson.M{"claimedBy": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("releasing item claim: %w", err)
	}
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	if _, err := s.col(colItems).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

func (s *Store) SetItemImage(ctx context.Context, id string, data []byte, mime, url string) error {
	_, err := s.col(colItems).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"image": data, "imageMime": mime, "imageUrl": url}},
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

func (s *Store) GetItemImage(ctx context.Context, id string) ([]byte, string, error) {
	var doc struct {
		Image     []byte `bson:"image"`
		ImageMime string `bson:"imageMime"`
	}
	ok, err := findOne(ctx, s.col(colItems), bson.M{"_id": id}, &doc,
		options.FindOne().SetProjection(bson.M{"image": 1, "imageMime": 1}))
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	if !ok || len(doc.Image) == 0 {
		return nil, "", nil
	}
	return doc.Image, doc.ImageMime, nil
}
