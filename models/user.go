package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
	RoleAdmin    = "admin"
)

var ErrAddressNotFound = errors.New("address not found")

func IsValidRole(role string) bool {
	switch role {
	case RoleCustomer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

type Address struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Label     string             `bson:"label" json:"label"`
	FullName  string             `bson:"fullName" json:"fullName"`
	Phone     string             `bson:"phone" json:"phone"`
	Line1     string             `bson:"line1" json:"line1"`
	Line2     string             `bson:"line2,omitempty" json:"line2,omitempty"`
	Landmark  string             `bson:"landmark,omitempty" json:"landmark,omitempty"`
	City      string             `bson:"city" json:"city"`
	State     string             `bson:"state" json:"state"`
	Pincode   string             `bson:"pincode" json:"pincode"`
	Country   string             `bson:"country" json:"country"`
	IsDefault bool               `bson:"isDefault" json:"isDefault"`
}

// SellerApplicationRef mirrors the user's latest onboarding request.
type SellerApplicationRef struct {
	ApplicationID primitive.ObjectID `bson:"applicationId" json:"applicationId"`
	Status        string             `bson:"status" json:"status"`
	SubmittedAt   time.Time          `bson:"submittedAt" json:"submittedAt"`
	ReviewedAt    *time.Time         `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
}

type SellerProfile struct {
	BusinessName string    `bson:"businessName" json:"businessName"`
	BusinessType string    `bson:"businessType" json:"businessType"`
	GSTIN        string    `bson:"gstin,omitempty" json:"gstin,omitempty"`
	Phone        string    `bson:"phone" json:"phone"`
	ApprovedAt   time.Time `bson:"approvedAt" json:"approvedAt"`
}

type User struct {
	ID                primitive.ObjectID    `bson:"_id,omitempty" json:"id"`
	Name              string                `bson:"name" json:"name"`
	Email             string                `bson:"email" json:"email"`
	Password          string                `bson:"password" json:"-"`
	Phone             string                `bson:"phone,omitempty" json:"phone,omitempty"`
	Avatar            string                `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Role              string                `bson:"role" json:"role"`
	IsActive          bool                  `bson:"isActive" json:"isActive"`
	Addresses         []Address             `bson:"addresses" json:"addresses"`
	SellerApplication *SellerApplicationRef `bson:"sellerApplication,omitempty" json:"sellerApplication,omitempty"`
	SellerProfile     *SellerProfile        `bson:"sellerProfile,omitempty" json:"sellerProfile,omitempty"`
	LastLoginAt       *time.Time            `bson:"lastLoginAt,omitempty" json:"lastLoginAt,omitempty"`
	CreatedAt         time.Time             `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time             `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) FindAddress(id primitive.ObjectID) (Address, bool) {
	for _, a := range u.Addresses {
		if a.ID == id {
			return a, true
		}
	}
	return Address{}, false
}

func (u *User) DefaultAddress() (Address, bool) {
	for _, a := range u.Addresses {
		if a.IsDefault {
			return a, true
		}
	}
	if len(u.Addresses) > 0 {
		return u.Addresses[0], true
	}
	return Address{}, false
}

// AddAddress appends a. The first address is always the default; a new
// default clears the flag on the others.
func AddAddress(addrs []Address, a Address) []Address {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if len(addrs) == 0 {
		a.IsDefault = true
	}
	if a.IsDefault {
		addrs = clearDefault(addrs)
	}
	return append(addrs, a)
}

// ReplaceAddress swaps the address with a.ID, keeping default bookkeeping intact.
func ReplaceAddress(addrs []Address, a Address) ([]Address, error) {
	idx := indexOfAddress(addrs, a.ID)
	if idx < 0 {
		return addrs, ErrAddressNotFound
	}
	wasDefault := addrs[idx].IsDefault
	if a.IsDefault {
		addrs = clearDefault(addrs)
	} else if wasDefault {
		// the only way to drop the default is to pick another one
		a.IsDefault = true
	}
	addrs[idx] = a
	return addrs, nil
}

func SetDefaultAddress(addrs []Address, id primitive.ObjectID) ([]Address, error) {
	idx := indexOfAddress(addrs, id)
	if idx < 0 {
		return addrs, ErrAddressNotFound
	}
	addrs = clearDefault(addrs)
	addrs[idx].IsDefault = true
	return addrs, nil
}

// RemoveAddress deletes id; when it was the default the first remaining
// address is promoted.
func RemoveAddress(addrs []Address, id primitive.ObjectID) ([]Address, error) {
	idx := indexOfAddress(addrs, id)
	if idx < 0 {
		return addrs, ErrAddressNotFound
	}
	wasDefault := addrs[idx].IsDefault
	out := make([]Address, 0, len(addrs)-1)
	out = append(out, addrs[:idx]...)
	out = append(out, addrs[idx+1:]...)
	if wasDefault && len(out) > 0 {
		out[0].IsDefault = true
	}
	return out, nil
}

func indexOfAddress(addrs []Address, id primitive.ObjectID) int {
	for i, a := range addrs {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func clearDefault(addrs []Address) []Address {
	for i := range addrs {
		addrs[i].IsDefault = false
	}
	return addrs
}
