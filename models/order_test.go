package models

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestOrderTransitions(t *testing.T) {
	allowed := [][2]string{
		{OrderPending, OrderConfirmed},
		{OrderPending, OrderCancelled},
		{OrderConfirmed, OrderProcessing},
		{OrderConfirmed, OrderCancelled},
		{OrderProcessing, OrderShipped},
		{OrderShipped, OrderDelivered},
		{OrderDelivered, OrderReturned},
	}
	for _, p := range allowed {
		assert.True(t, CanTransition(p[0], p[1]), "%s -> %s", p[0], p[1])
	}

	denied := [][2]string{
		{OrderPending, OrderShipped},
		{OrderProcessing, OrderCancelled},
		{OrderShipped, OrderCancelled},
		{OrderCancelled, OrderPending},
		{OrderReturned, OrderDelivered},
		{"bogus", OrderConfirmed},
	}
	for _, p := range denied {
		assert.False(t, CanTransition(p[0], p[1]), "%s -> %s", p[0], p[1])
	}

	assert.True(t, IsValidOrderStatus(OrderReturned))
	assert.False(t, IsValidOrderStatus("paid"))
}

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	n := NewOrderNumber(now)
	assert.Regexp(t, regexp.MustCompile(`^VCX250307\d{6}$`), n)
}

func TestOrderItemFromCart(t *testing.T) {
	now := time.Now()
	it := OrderItemFromCart(CartItem{ProductID: primitive.NewObjectID(), Price: 19.99, Quantity: 3, Size: "M"}, now)
	assert.False(t, it.ID.IsZero())
	assert.Equal(t, 59.97, it.Subtotal)
	assert.Equal(t, OrderPending, it.Status)
	assert.Equal(t, "M", it.Size)
}

func TestRollupStatus(t *testing.T) {
	items := []OrderItem{
		{Status: OrderShipped},
		{Status: OrderProcessing},
		{Status: OrderCancelled},
	}
	assert.Equal(t, OrderProcessing, RollupStatus(items))

	items[1].Status = OrderDelivered
	assert.Equal(t, OrderShipped, RollupStatus(items))

	all := []OrderItem{{Status: OrderCancelled}, {Status: OrderCancelled}}
	assert.Equal(t, OrderCancelled, RollupStatus(all))
}

func TestAdvancesTo(t *testing.T) {
	assert.True(t, AdvancesTo(OrderPending, OrderProcessing))
	assert.True(t, AdvancesTo(OrderConfirmed, OrderCancelled))
	assert.False(t, AdvancesTo(OrderShipped, OrderCancelled))
	assert.False(t, AdvancesTo(OrderShipped, OrderShipped))
	assert.False(t, AdvancesTo(OrderCancelled, OrderShipped))
}

func TestSellersOfAndLookups(t *testing.T) {
	s1, s2 := primitive.NewObjectID(), primitive.NewObjectID()
	p := primitive.NewObjectID()
	o := Order{Items: []OrderItem{
		{ID: primitive.NewObjectID(), SellerID: s1, ProductID: p},
		{ID: primitive.NewObjectID(), SellerID: s2},
		{ID: primitive.NewObjectID(), SellerID: s1},
	}}
	assert.Equal(t, []primitive.ObjectID{s1, s2}, SellersOf(o.Items))
	assert.Equal(t, 1, o.ItemIndex(o.Items[1].ID))
	assert.Equal(t, -1, o.ItemIndex(primitive.NewObjectID()))
	assert.True(t, o.ContainsProduct(p))
}

func TestApplicationTransitions(t *testing.T) {
	assert.True(t, CanTransitionApplication(ApplicationPending, ApplicationUnderReview))
	assert.True(t, CanTransitionApplication(ApplicationUnderReview, ApplicationApproved))
	assert.True(t, CanTransitionApplication(ApplicationPending, ApplicationRejected))
	assert.False(t, CanTransitionApplication(ApplicationApproved, ApplicationRejected))
	assert.False(t, CanTransitionApplication(ApplicationRejected, ApplicationUnderReview))

	app := SellerApplication{Status: ApplicationUnderReview, BusinessName: "Acme", Phone: "9876543210"}
	assert.True(t, app.IsOpen())
	app.Status = ApplicationRejected
	assert.False(t, app.IsOpen())

	now := time.Now()
	prof := app.ProfileFor(now)
	require.Equal(t, "Acme", prof.BusinessName)
	assert.Equal(t, now, prof.ApprovedAt)
}

func TestBankAccountMasked(t *testing.T) {
	b := BankAccount{AccountNumber: "123456789012"}
	assert.Equal(t, "XXXXXXXX9012", b.Masked().AccountNumber)
	assert.Equal(t, "123456789012", b.AccountNumber)
}

func TestStatusesBefore(t *testing.T) {
	assert.Equal(t, []string{OrderPending, OrderConfirmed}, StatusesBefore(OrderProcessing))
	assert.Equal(t, []string{OrderPending}, StatusesBefore(OrderConfirmed))
	assert.Empty(t, StatusesBefore(OrderPending))
	assert.Len(t, StatusesBefore(OrderReturned), 5)
	assert.Nil(t, StatusesBefore(OrderCancelled))
}

func TestItemsBeforeSkipsAdvancedItems(t *testing.T) {
	items := []OrderItem{
		{Name: "Tee", Status: OrderShipped},
		{Name: "Mug", Status: OrderConfirmed},
		{Name: "Cap", Status: OrderCancelled},
	}
	behind := ItemsBefore(items, OrderProcessing)
	require.Len(t, behind, 1)
	assert.Equal(t, "Mug", behind[0].Name)

	assert.Len(t, ItemsBefore(items, OrderDelivered), 2)
}

func TestItemsCancellable(t *testing.T) {
	assert.True(t, ItemsCancellable([]OrderItem{{Status: OrderPending}, {Status: OrderConfirmed}, {Status: OrderCancelled}}))
	assert.False(t, ItemsCancellable([]OrderItem{{Status: OrderConfirmed}, {Status: OrderShipped}}))
	assert.False(t, ItemsCancellable([]OrderItem{{Status: OrderProcessing}}))
}
