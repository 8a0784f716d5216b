package database

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// TokenBlacklist stores revoked bearer tokens until they would have expired.
type TokenBlacklist struct {
	coll *mongo.Collection
}

func NewTokenBlacklist(coll *mongo.Collection) *TokenBlacklist {
	return &TokenBlacklist{coll: coll}
}

func (b *TokenBlacklist) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := b.coll.InsertOne(ctx, bson.M{
		"token":     token,
		"expiresAt": expiresAt,
		"createdAt": time.Now(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (b *TokenBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	err := b.coll.FindOne(ctx, bson.M{"token": token}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
