package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the unique and TTL indexes the handlers rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.Users, []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "role", Value: 1}}},
		}},
		{s.Products, []mongo.IndexModel{
			{Keys: bson.D{{Key: "sku", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "categoryPath", Value: 1}, {Key: "isActive", Value: 1}}},
			{Keys: bson.D{{Key: "seller", Value: 1}, {Key: "createdAt", Value: -1}}},
		}},
		{s.Categories, []mongo.IndexModel{
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "parent", Value: 1}}},
			{Keys: bson.D{{Key: "ancestors", Value: 1}}},
		}},
		{s.Orders, []mongo.IndexModel{
			{Keys: bson.D{{Key: "orderNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "sellerIds", Value: 1}, {Key: "createdAt", Value: -1}}},
		}},
		{s.Coupons, []mongo.IndexModel{
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{s.SellerApplications, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		}},
		{s.Reviews, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "product", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "product", Value: 1}, {Key: "createdAt", Value: -1}}},
		}},
		{s.Payments, []mongo.IndexModel{
			{Keys: bson.D{{Key: "gatewayOrderId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "order", Value: 1}}},
		}},
		{s.Sessions, []mongo.IndexModel{
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		}},
		{s.BlacklistTokens, []mongo.IndexModel{
			{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		}},
	}

	for _, sp := range specs {
		if _, err := sp.coll.Indexes().CreateMany(ctx, sp.models); err != nil {
			return fmt.Errorf("indexes on %s: %w", sp.coll.Name(), err)
		}
	}
	return nil
}
