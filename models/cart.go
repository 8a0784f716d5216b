package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrCartItemNotFound = errors.New("item not found in cart")

type CartItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	SellerID  primitive.ObjectID `bson:"sellerId" json:"sellerId"`
	Name      string             `bson:"name" json:"name"`
	Image     string             `bson:"image" json:"image"`
	SKU       string             `bson:"sku" json:"sku"`
	Size      string             `bson:"size" json:"size"`
	Price     float64            `bson:"price" json:"price"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	AddedAt   time.Time          `bson:"addedAt" json:"addedAt"`
}

// Cart is the session-scoped shopping cart. Lines are keyed by product and size.
type Cart struct {
	Items      []CartItem `bson:"items" json:"items"`
	CouponCode string     `bson:"couponCode,omitempty" json:"couponCode,omitempty"`
}

func (c *Cart) index(productID primitive.ObjectID, size string) int {
	for i, it := range c.Items {
		if it.ProductID == productID && it.Size == size {
			return i
		}
	}
	return -1
}

func (c *Cart) Quantity(productID primitive.ObjectID, size string) int {
	if i := c.index(productID, size); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}

// Add merges item into an existing line or appends a new one, returning the
// resulting line. Price and name are refreshed from the incoming item.
func (c *Cart) Add(item CartItem) CartItem {
	if i := c.index(item.ProductID, item.Size); i >= 0 {
		line := &c.Items[i]
		line.Quantity += item.Quantity
		line.Price = item.Price
		line.Name = item.Name
		line.Image = item.Image
		return *line
	}
	if item.AddedAt.IsZero() {
		item.AddedAt = time.Now()
	}
	c.Items = append(c.Items, item)
	return item
}

// Update sets the line quantity; zero or less removes the line.
func (c *Cart) Update(productID primitive.ObjectID, size string, quantity int) error {
	i := c.index(productID, size)
	if i < 0 {
		return ErrCartItemNotFound
	}
	if quantity <= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return nil
	}
	c.Items[i].Quantity = quantity
	return nil
}

func (c *Cart) Remove(productID primitive.ObjectID, size string) bool {
	i := c.index(productID, size)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.CouponCode = ""
}

func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

type PricingRules struct {
	FreeShippingThreshold float64
	ShippingFee           float64
	TaxRate               float64
}

type Totals struct {
	ItemCount  int     `json:"itemCount"`
	Subtotal   float64 `json:"subtotal"`
	Discount   float64 `json:"discount"`
	Shipping   float64 `json:"shipping"`
	Tax        float64 `json:"tax"`
	Total      float64 `json:"total"`
	CouponCode string  `json:"couponCode,omitempty"`
}

func Subtotal(items []CartItem) float64 {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum.Round(2).InexactFloat64()
}

// ComputeTotals prices a set of lines. Tax and the free-shipping threshold
// apply to the subtotal after discount; an empty cart costs nothing.
func ComputeTotals(items []CartItem, rules PricingRules, discount float64) Totals {
	t := Totals{}
	for _, it := range items {
		t.ItemCount += it.Quantity
	}
	if len(items) == 0 {
		return t
	}

	sub := decimal.NewFromFloat(Subtotal(items))
	disc := decimal.NewFromFloat(discount)
	if disc.IsNegative() {
		disc = decimal.Zero
	}
	if disc.GreaterThan(sub) {
		disc = sub
	}
	taxable := sub.Sub(disc)

	shipping := decimal.NewFromFloat(rules.ShippingFee)
	if taxable.GreaterThanOrEqual(decimal.NewFromFloat(rules.FreeShippingThreshold)) {
		shipping = decimal.Zero
	}
	tax := taxable.Mul(decimal.NewFromFloat(rules.TaxRate)).Round(2)

	t.Subtotal = sub.InexactFloat64()
	t.Discount = disc.Round(2).InexactFloat64()
	t.Shipping = shipping.Round(2).InexactFloat64()
	t.Tax = tax.InexactFloat64()
	t.Total = taxable.Add(shipping).Add(tax).Round(2).InexactFloat64()
	return t
}

// Session is the server-side HTTP session document that carries the cart.
type Session struct {
	ID        string              `bson:"_id" json:"id"`
	UserID    *primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`
	Cart      Cart                `bson:"cart" json:"cart"`
	ExpiresAt time.Time           `bson:"expiresAt" json:"expiresAt"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time           `bson:"updatedAt" json:"updatedAt"`
}
