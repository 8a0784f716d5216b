package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ApplicationPending     = "pending"
	ApplicationUnderReview = "under_review"
	ApplicationApproved    = "approved"
	ApplicationRejected    = "rejected"
)

var applicationTransitions = map[string][]string{
	ApplicationPending:     {ApplicationUnderReview, ApplicationApproved, ApplicationRejected},
	ApplicationUnderReview: {ApplicationApproved, ApplicationRejected},
}

func CanTransitionApplication(from, to string) bool {
	for _, s := range applicationTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsValidApplicationStatus(s string) bool {
	switch s {
	case ApplicationPending, ApplicationUnderReview, ApplicationApproved, ApplicationRejected:
		return true
	}
	return false
}

type BankAccount struct {
	HolderName    string `bson:"holderName" json:"holderName" binding:"required"`
	AccountNumber string `bson:"accountNumber" json:"accountNumber" binding:"required,min=9,max=18"`
	IFSC          string `bson:"ifsc" json:"ifsc" binding:"required,ifsc"`
	BankName      string `bson:"bankName,omitempty" json:"bankName,omitempty"`
}

// Masked hides all but the last four digits of the account number.
func (b BankAccount) Masked() BankAccount {
	n := len(b.AccountNumber)
	if n > 4 {
		b.AccountNumber = strings.Repeat("X", n-4) + b.AccountNumber[n-4:]
	}
	return b
}

type SellerApplication struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	User            primitive.ObjectID   `bson:"user" json:"user"`
	BusinessName    string               `bson:"businessName" json:"businessName"`
	BusinessType    string               `bson:"businessType" json:"businessType"`
	GSTIN           string               `bson:"gstin,omitempty" json:"gstin,omitempty"`
	PAN             string               `bson:"pan" json:"pan"`
	Phone           string               `bson:"phone" json:"phone"`
	Email           string               `bson:"email" json:"email"`
	Address         Address              `bson:"address" json:"address"`
	BankAccount     BankAccount          `bson:"bankAccount" json:"bankAccount"`
	Categories      []primitive.ObjectID `bson:"categories" json:"categories"`
	Description     string               `bson:"description" json:"description"`
	Status          string               `bson:"status" json:"status"`
	RejectionReason string               `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	ReviewedBy      *primitive.ObjectID  `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time           `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt" json:"updatedAt"`
}

func (a *SellerApplication) IsOpen() bool {
	return a.Status == ApplicationPending || a.Status == ApplicationUnderReview
}

// ProfileFor builds the seller profile granted on approval.
func (a *SellerApplication) ProfileFor(now time.Time) SellerProfile {
	return SellerProfile{
		BusinessName: a.BusinessName,
		BusinessType: a.BusinessType,
		GSTIN:        a.GSTIN,
		Phone:        a.Phone,
		ApprovedAt:   now,
	}
}
