package models

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	OrderPending    = "pending"
	OrderConfirmed  = "confirmed"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
	OrderReturned   = "returned"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"
)

const (
	PaymentMethodCOD    = "cod"
	PaymentMethodOnline = "online"
)

var orderTransitions = map[string][]string{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {OrderReturned},
	OrderCancelled:  {},
	OrderReturned:   {},
}

// progress orders the forward path so item statuses can be rolled up.
var progress = map[string]int{
	OrderPending:    0,
	OrderConfirmed:  1,
	OrderProcessing: 2,
	OrderShipped:    3,
	OrderDelivered:  4,
	OrderReturned:   5,
}

func IsValidOrderStatus(s string) bool {
	_, ok := orderTransitions[s]
	return ok
}

func CanTransition(from, to string) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsCancellable(status string) bool { return CanTransition(status, OrderCancelled) }

type Tracking struct {
	Carrier        string `bson:"carrier" json:"carrier"`
	TrackingNumber string `bson:"trackingNumber" json:"trackingNumber"`
	URL            string `bson:"url,omitempty" json:"url,omitempty"`
}

type OrderItem struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	SellerID  primitive.ObjectID `bson:"sellerId" json:"sellerId"`
	Name      string             `bson:"name" json:"name"`
	Image     string             `bson:"image" json:"image"`
	SKU       string             `bson:"sku" json:"sku"`
	Size      string             `bson:"size" json:"size"`
	Price     float64            `bson:"price" json:"price"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Subtotal  float64            `bson:"subtotal" json:"subtotal"`
	Status    string             `bson:"status" json:"status"`
	Tracking  *Tracking          `bson:"tracking,omitempty" json:"tracking,omitempty"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type StatusChange struct {
	Status string             `bson:"status" json:"status"`
	Note   string             `bson:"note,omitempty" json:"note,omitempty"`
	By     primitive.ObjectID `bson:"by" json:"by"`
	At     time.Time          `bson:"at" json:"at"`
}

type Order struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	OrderNumber     string               `bson:"orderNumber" json:"orderNumber"`
	User            primitive.ObjectID   `bson:"user" json:"user"`
	Items           []OrderItem          `bson:"items" json:"items"`
	SellerIDs       []primitive.ObjectID `bson:"sellerIds" json:"-"`
	ShippingAddress Address              `bson:"shippingAddress" json:"shippingAddress"`
	PaymentMethod   string               `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus   string               `bson:"paymentStatus" json:"paymentStatus"`
	Status          string               `bson:"status" json:"status"`
	Subtotal        float64              `bson:"subtotal" json:"subtotal"`
	Discount        float64              `bson:"discount" json:"discount"`
	Shipping        float64              `bson:"shipping" json:"shipping"`
	Tax             float64              `bson:"tax" json:"tax"`
	Total           float64              `bson:"total" json:"total"`
	CouponCode      string               `bson:"couponCode,omitempty" json:"couponCode,omitempty"`
	Notes           string               `bson:"notes,omitempty" json:"notes,omitempty"`
	StatusHistory   []StatusChange       `bson:"statusHistory" json:"statusHistory"`
	PaidAt          *time.Time           `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	CancelledAt     *time.Time           `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	DeliveredAt     *time.Time           `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// NewOrderNumber formats VCX + yymmdd + six random digits.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("VCX%s%06d", now.Format("060102"), rand.Intn(1000000))
}

// OrderItemFromCart snapshots a cart line into an order line.
func OrderItemFromCart(it CartItem, now time.Time) OrderItem {
	sub := decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
	return OrderItem{
		ID:        primitive.NewObjectID(),
		ProductID: it.ProductID,
		SellerID:  it.SellerID,
		Name:      it.Name,
		Image:     it.Image,
		SKU:       it.SKU,
		Size:      it.Size,
		Price:     it.Price,
		Quantity:  it.Quantity,
		Subtotal:  sub.InexactFloat64(),
		Status:    OrderPending,
		UpdatedAt: now,
	}
}

// SellersOf returns the distinct sellers of items, in first-seen order.
func SellersOf(items []OrderItem) []primitive.ObjectID {
	seen := map[primitive.ObjectID]bool{}
	var out []primitive.ObjectID
	for _, it := range items {
		if !seen[it.SellerID] {
			seen[it.SellerID] = true
			out = append(out, it.SellerID)
		}
	}
	return out
}

func (o *Order) ItemIndex(itemID primitive.ObjectID) int {
	for i, it := range o.Items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

func (o *Order) ContainsProduct(productID primitive.ObjectID) bool {
	for _, it := range o.Items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}

// RollupStatus derives the order status from its items: the least advanced
// status among live items, or cancelled when every item is cancelled.
func RollupStatus(items []OrderItem) string {
	least := ""
	for _, it := range items {
		if it.Status == OrderCancelled {
			continue
		}
		if least == "" || progress[it.Status] < progress[least] {
			least = it.Status
		}
	}
	if least == "" {
		return OrderCancelled
	}
	return least
}

// StatusesBefore lists the forward-path statuses behind next. An order-wide
// move to next only touches items in one of these.
func StatusesBefore(next string) []string {
	target, ok := progress[next]
	if !ok {
		return nil
	}
	out := make([]string, 0, target)
	for _, s := range []string{OrderPending, OrderConfirmed, OrderProcessing, OrderShipped, OrderDelivered} {
		if progress[s] < target {
			out = append(out, s)
		}
	}
	return out
}

// ItemsBefore returns the live items still behind next.
func ItemsBefore(items []OrderItem, next string) []OrderItem {
	behind := StatusesBefore(next)
	out := make([]OrderItem, 0, len(items))
	for _, it := range items {
		for _, s := range behind {
			if it.Status == s {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// ItemsCancellable reports whether no live item has moved past confirmed.
func ItemsCancellable(items []OrderItem) bool {
	for _, it := range items {
		if it.Status != OrderCancelled && !IsCancellable(it.Status) {
			return false
		}
	}
	return true
}

// AdvancesTo reports whether moving from current to next goes forward on the
// fulfilment path (or cancels an order that can still be cancelled).
func AdvancesTo(current, next string) bool {
	if current == next {
		return false
	}
	if next == OrderCancelled {
		return IsCancellable(current)
	}
	if current == OrderCancelled {
		return false
	}
	return progress[next] > progress[current]
}
