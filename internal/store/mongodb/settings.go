package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var doc struct {
		Value string `bson:"value"`
	}
	ok, err := findOne(ctx, s.col(colSettings), bson.M{"_id": key}, &doc)
	if err != nil {
		return "", false, fmt.Errorf("getting setting %q: %w", key, err)
	}
	return doc.Value, ok, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.col(colSettings).UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"value": value}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("storing setting %q: %w", key, err)
	}
	return nil
}

// RevokeToken records a revoked credential. The TTL index on expiresAt
// removes it once it would have expired anyway.
func (s *Store) RevokeToken(ctx context.Context, key string, expiresAt time.Time) error {
	_, err := s.col(colRevoked).UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$setOnInsert": bson.M{"expiresAt": expiresAt.UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsTokenRevoked ignores entries past expiry that the TTL monitor has not
// removed yet.
func (s *Store) IsTokenRevoked(ctx context.Context, key string) (bool, error) {
	n, err := s.col(colRevoked).CountDocuments(ctx,
		bson.M{"_id": key, "expiresAt": bson.M{"$gt": time.Now().UTC()}})
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return n > 0, nil
}
