package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StockLine is one product/size quantity to take from or give back to stock.
type StockLine struct {
	ProductID primitive.ObjectID
	Name      string
	Size      string
	Quantity  int
}

// InsufficientStockError names the line that could not be reserved.
type InsufficientStockError struct {
	Name string
	Size string
}

func (e *InsufficientStockError) Error() string {
	if e.Size != "" {
		return fmt.Sprintf("insufficient stock for %s (size %s)", e.Name, e.Size)
	}
	return fmt.Sprintf("insufficient stock for %s", e.Name)
}

func reserveFilter(l StockLine) bson.M {
	if l.Size == "" {
		return bson.M{"_id": l.ProductID, "stock": bson.M{"$gte": l.Quantity}}
	}
	return bson.M{
		"_id":   l.ProductID,
		"sizes": bson.M{"$elemMatch": bson.M{"size": l.Size, "stock": bson.M{"$gte": l.Quantity}}},
	}
}

func stockDelta(l StockLine, sign int) bson.M {
	inc := bson.M{"stock": sign * l.Quantity, "soldCount": -sign * l.Quantity}
	if l.Size != "" {
		inc["sizes.$.stock"] = sign * l.Quantity
	}
	return bson.M{"$inc": inc}
}

// ReserveStock decrements stock line by line with conditional updates. When
// a line cannot be satisfied, every line already taken is put back.
func (s *Store) ReserveStock(ctx context.Context, lines []StockLine) error {
	taken := make([]StockLine, 0, len(lines))
	for _, l := range lines {
		res, err := s.Products.UpdateOne(ctx, reserveFilter(l), stockDelta(l, -1))
		if err == nil && res.MatchedCount == 0 {
			err = &InsufficientStockError{Name: l.Name, Size: l.Size}
		}
		if err != nil {
			_ = s.ReleaseStock(context.WithoutCancel(ctx), taken)
			return err
		}
		taken = append(taken, l)
	}
	return nil
}

// ReleaseStock returns lines to stock. Failures are reported but do not stop
// the remaining lines from being restored.
func (s *Store) ReleaseStock(ctx context.Context, lines []StockLine) error {
	var firstErr error
	for _, l := range lines {
		filter := bson.M{"_id": l.ProductID}
		if l.Size != "" {
			filter["sizes.size"] = l.Size
		}
		_, err := s.Products.UpdateOne(ctx, filter, stockDelta(l, 1))
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ConsumeCoupon bumps the usage counter, refusing once a limited coupon is used up.
func (s *Store) ConsumeCoupon(ctx context.Context, id primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"_id":      id,
		"isActive": true,
		"$or": bson.A{
			bson.M{"usageLimit": 0},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$usedCount", "$usageLimit"}}},
		},
	}
	res, err := s.Coupons.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"usedCount": 1}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *Store) ReleaseCoupon(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.Coupons.UpdateOne(ctx, bson.M{"_id": id, "usedCount": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"usedCount": -1}})
	return err
}
