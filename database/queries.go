package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nomanqadri34/vcx-mart-sub002/models"
)

func (s *Store) ProductByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var p models.Product
	if err := s.Products.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var cp models.Coupon
	err := s.Coupons.FindOne(ctx, bson.M{"code": models.NormalizeCouponCode(code)}).Decode(&cp)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *Store) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.Users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) SKUExists(ctx context.Context, sku string) (bool, error) {
	n, err := s.Products.CountDocuments(ctx, bson.M{"sku": sku})
	return n > 0, err
}
