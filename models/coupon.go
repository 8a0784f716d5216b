package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

var (
	ErrCouponInactive   = errors.New("coupon is not active")
	ErrCouponNotStarted = errors.New("coupon is not valid yet")
	ErrCouponExpired    = errors.New("coupon has expired")
	ErrCouponExhausted  = errors.New("coupon usage limit reached")
)

type MinOrderError struct {
	Min float64
}

func (e *MinOrderError) Error() string {
	return fmt.Sprintf("minimum order amount for this coupon is %.2f", e.Min)
}

type Coupon struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code           string             `bson:"code" json:"code"`
	Description    string             `bson:"description,omitempty" json:"description,omitempty"`
	DiscountType   string             `bson:"discountType" json:"discountType"`
	Value          float64            `bson:"value" json:"value"`
	MinOrderAmount float64            `bson:"minOrderAmount" json:"minOrderAmount"`
	MaxDiscount    float64            `bson:"maxDiscount" json:"maxDiscount"`
	ValidFrom      time.Time          `bson:"validFrom" json:"validFrom"`
	ValidUntil     time.Time          `bson:"validUntil" json:"validUntil"`
	UsageLimit     int                `bson:"usageLimit" json:"usageLimit"`
	UsedCount      int                `bson:"usedCount" json:"usedCount"`
	IsActive       bool               `bson:"isActive" json:"isActive"`
	CreatedBy      primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks whether the coupon can be applied to subtotal at now.
func (c *Coupon) Validate(subtotal float64, now time.Time) error {
	switch {
	case !c.IsActive:
		return ErrCouponInactive
	case !c.ValidFrom.IsZero() && now.Before(c.ValidFrom):
		return ErrCouponNotStarted
	case !c.ValidUntil.IsZero() && now.After(c.ValidUntil):
		return ErrCouponExpired
	case c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit:
		return ErrCouponExhausted
	case subtotal < c.MinOrderAmount:
		return &MinOrderError{Min: c.MinOrderAmount}
	}
	return nil
}

// Discount returns the amount taken off subtotal, never more than subtotal.
func (c *Coupon) Discount(subtotal float64) float64 {
	sub := decimal.NewFromFloat(subtotal)
	var d decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		d = sub.Mul(decimal.NewFromFloat(c.Value)).Div(decimal.NewFromInt(100))
		if c.MaxDiscount > 0 {
			d = decimal.Min(d, decimal.NewFromFloat(c.MaxDiscount))
		}
	case DiscountFixed:
		d = decimal.NewFromFloat(c.Value)
	}
	if d.IsNegative() {
		return 0
	}
	return decimal.Min(d, sub).Round(2).InexactFloat64()
}
