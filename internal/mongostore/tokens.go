package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"spendguard/internal/ledger"
)

const revokedCollection = "revoked_tokens"

type revokedDoc struct {
	JTI       string    `bson:"_id"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

// Revocations keeps revoked token IDs. A TTL index lets the server drop
// expired entries on its own; PurgeRevoked covers the TTL monitor's lag.
type Revocations struct {
	coll *mongo.Collection
}

// Revocations returns the token revocation store sharing s's database.
func (s *Store) Revocations(ctx context.Context) (*Revocations, error) {
	coll := s.txs.Database().Collection(revokedCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return nil, fmt.Errorf("create revocation ttl index: %w", err)
	}
	return &Revocations{coll: coll}, nil
}

func (r *Revocations) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	// $max keeps the later expiry when a token is revoked twice.
	update := bson.D{{Key: "$max", Value: bson.D{{Key: "expiresAt", Value: expiresAt.UTC()}}}}
	_, err := r.coll.UpdateByID(ctx, jti, update, options.Update().SetUpsert(true))
	if err != nil {
		return ledger.Unavailable("revoke token", err)
	}
	return nil
}

func (r *Revocations) IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error) {
	var d revokedDoc
	err := r.coll.FindOne(ctx, bson.D{
		{Key: "_id", Value: jti},
		{Key: "expiresAt", Value: bson.D{{Key: "$gt", Value: now.UTC()}}},
	}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, ledger.Unavailable("check revoked token", err)
	}
	return true, nil
}

func (r *Revocations) PurgeRevoked(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.D{{Key: "expiresAt", Value: bson.D{{Key: "$lte", Value: now.UTC()}}}})
	if err != nil {
		return 0, ledger.Unavailable("purge revoked tokens", err)
	}
	return res.DeletedCount, nil
}
