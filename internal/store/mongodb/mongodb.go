// Package mongodb implements store.Store on MongoDB.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/erazemk/lostfound/internal/store"
)

// Collection names.
const (
	colItems         = "items"
	colClaims        = "claims"
	colNotifications = "notifications"
	colSettings      = "settings"
	colRevoked       = "revoked_tokens"
)

// Options configures a MongoDB store.
type Options struct {
	URI      string
	Database string
	// Transactions enables multi-document transactions for InTx. Requires a
	// replica set or sharded cluster.
	Transactions bool
}

// Store implements store.Store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	txn    bool
}

var _ store.Store = (*Store)(nil)

// Open connects to MongoDB, verifies the connection and ensures indexes.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Database == "" {
		return nil, errors.New("mongodb: database name required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	s := &Store{client: client, db: client.Database(opts.Database), txn: opts.Transactions}
	if err := s.EnsureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the indexes the store relies on. Idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colItems: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "reportedBy", Value: 1}}},
		},
		colClaims: {
			{Keys: bson.D{{Key: "itemId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "claimedBy", Value: 1}, {Key: "createdAt", Value: -1}}},
			{
				Keys: bson.D{{Key: "itemId", Value: 1}, {Key: "claimedBy", Value: 1}},
				Options: options.Index().
					SetName("unique_pending_per_claimant").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": "pending"}),
			},
			{
				Keys: bson.D{{Key: "itemId", Value: 1}},
				Options: options.Index().
					SetName("unique_approved_per_item").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": "approved"}),
			},
		},
		colNotifications: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		colRevoked: {
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}

	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating %s indexes: %w", col, err)
		}
	}
	return nil
}

// InTx runs fn inside a multi-document transaction when transactions are
// enabled. Otherwise fn runs directly against the store.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if !s.txn || mongo.SessionFromContext(ctx) != nil {
		return fn(ctx, s)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc, s)
	})
	return err
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Drop removes the whole database. Used by tests.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// findOne decodes a single document into v. It returns false if no document
// matched.
func findOne(ctx context.Context, c *mongo.Collection, filter any, v any, opts ...*options.FindOneOptions) (bool, error) {
	err := c.FindOne(ctx, filter, opts...).Decode(v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
