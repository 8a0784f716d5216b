package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PaymentCreated  = "created"
	PaymentCaptured = "captured"
	PaymentAborted  = "failed"
)

type PaymentEvent struct {
	ID       string    `bson:"id" json:"id"`
	Type     string    `bson:"type" json:"type"`
	Received time.Time `bson:"received" json:"received"`
}

type Payment struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Order            primitive.ObjectID `bson:"order" json:"order"`
	User             primitive.ObjectID `bson:"user" json:"user"`
	GatewayOrderID   string             `bson:"gatewayOrderId" json:"gatewayOrderId"`
	GatewayPaymentID string             `bson:"gatewayPaymentId,omitempty" json:"gatewayPaymentId,omitempty"`
	Amount           int64              `bson:"amount" json:"amount"`
	Currency         string             `bson:"currency" json:"currency"`
	Status           string             `bson:"status" json:"status"`
	FailureReason    string             `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	Events           []PaymentEvent     `bson:"events" json:"events"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ToMinorUnits converts a rupee amount to paise.
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
