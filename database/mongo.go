package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Store owns the Mongo client and the collections used by the API.
type Store struct {
	Client *mongo.Client
	DB     *mongo.Database

	Users              *mongo.Collection
	Products           *mongo.Collection
	Categories         *mongo.Collection
	Orders             *mongo.Collection
	Coupons            *mongo.Collection
	SellerApplications *mongo.Collection
	Reviews            *mongo.Collection
	Payments           *mongo.Collection
	Sessions           *mongo.Collection
	BlacklistTokens    *mongo.Collection
}

func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	if uri == "" || dbName == "" {
		return nil, fmt.Errorf("mongo uri and database name are required")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	log.Println("✅ Connected to MongoDB")
	return NewStore(client, dbName), nil
}

// NewStore wires the collections of dbName on an existing client.
func NewStore(client *mongo.Client, dbName string) *Store {
	db := client.Database(dbName)
	return &Store{
		Client:             client,
		DB:                 db,
		Users:              db.Collection("users"),
		Products:           db.Collection("products"),
		Categories:         db.Collection("categories"),
		Orders:             db.Collection("orders"),
		Coupons:            db.Collection("coupons"),
		SellerApplications: db.Collection("seller_applications"),
		Reviews:            db.Collection("reviews"),
		Payments:           db.Collection("payments"),
		Sessions:           db.Collection("sessions"),
		BlacklistTokens:    db.Collection("blacklist_tokens"),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}
