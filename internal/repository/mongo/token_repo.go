package mongo

import (
	"context"
	"time"

	"fittrack/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const revokedTokenCollectionName = "revoked_tokens"

// revokedToken is the stored form of a blacklisted refresh token.
// A TTL index on expiresAt purges entries once the token would have expired
// on its own anyway.
type revokedToken struct {
	JTI       string    `bson:"jti"`
	ExpiresAt time.Time `bson:"expiresAt"`
	RevokedAt time.Time `bson:"revokedAt"`
}

// mongoTokenRepository implements repository.TokenRepository.
type mongoTokenRepository struct {
	collection *mongo.Collection
}

// NewMongoTokenRepository creates a new revoked-token repository backed by MongoDB.
func NewMongoTokenRepository(db *mongo.Database) repository.TokenRepository {
	return &mongoTokenRepository{
		collection: db.Collection(revokedTokenCollectionName),
	}
}

// Revoke records the token's JWT ID on the blacklist. Revoking a token that
// is already revoked is a no-op, not an error.
func (r *mongoTokenRepository) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	entry := revokedToken{
		JTI:       jti,
		ExpiresAt: expiresAt,
		RevokedAt: time.Now().UTC(),
	}

	_, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return err
	}
	return nil
}

// IsRevoked reports whether the token's JWT ID is on the blacklist.
func (r *mongoTokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"jti": jti})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// EnsureRevokedTokenIndexes creates necessary indexes for the revoked_tokens
// collection, including the TTL index that expires entries alongside the
// tokens they blacklist.
func EnsureRevokedTokenIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "jti", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
