package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nomanqadri34/vcx-mart-sub002/database"
	"github.com/nomanqadri34/vcx-mart-sub002/logger"
	"github.com/nomanqadri34/vcx-mart-sub002/middleware"
	"github.com/nomanqadri34/vcx-mart-sub002/models"
	"github.com/nomanqadri34/vcx-mart-sub002/notify"
	"github.com/nomanqadri34/vcx-mart-sub002/response"
	"github.com/nomanqadri34/vcx-mart-sub002/session"
)

// Inventory is the stock and coupon bookkeeping checkout relies on.
type Inventory interface {
	Catalog
	ReserveStock(ctx context.Context, lines []database.StockLine) error
	ReleaseStock(ctx context.Context, lines []database.StockLine) error
	ConsumeCoupon(ctx context.Context, id primitive.ObjectID) (bool, error)
	ReleaseCoupon(ctx context.Context, id primitive.ObjectID) error
}

type OrderController struct {
	orders    *mongo.Collection
	users     *mongo.Collection
	inventory Inventory
	sessions  session.Store
	notifier  notify.Notifier
	rules     models.PricingRules
	now       func() time.Time
}

func NewOrderController(orders, users *mongo.Collection, inventory Inventory, sessions session.Store, notifier notify.Notifier, rules models.PricingRules) *OrderController {
	return &OrderController{
		orders:    orders,
		users:     users,
		inventory: inventory,
		sessions:  sessions,
		notifier:  notifier,
		rules:     rules,
		now:       time.Now,
	}
}

type checkoutInput struct {
	ShippingAddressID string        `json:"shippingAddressId" binding:"omitempty,objectid"`
	ShippingAddress   *addressInput `json:"shippingAddress"`
	PaymentMethod     string        `json:"paymentMethod" binding:"required,oneof=cod online"`
	CouponCode        string        `json:"couponCode" binding:"omitempty,min=3,max=20"`
	Notes             string        `json:"notes" binding:"max=500"`
}

type statusInput struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note" binding:"max=300"`
}

const orderNumberAttempts = 3

func stockLines(items []models.OrderItem) []database.StockLine {
	lines := make([]database.StockLine, 0, len(items))
	for _, it := range items {
		if it.Status == models.OrderCancelled {
			continue
		}
		lines = append(lines, database.StockLine{ProductID: it.ProductID, Name: it.Name, Size: it.Size, Quantity: it.Quantity})
	}
	return lines
}

// shippingAddress picks the saved address by id, the inline address, or the
// user's default, in that order.
func shippingAddress(user *models.User, body checkoutInput) (models.Address, error) {
	if body.ShippingAddressID != "" {
		id, _ := primitive.ObjectIDFromHex(body.ShippingAddressID)
		a, ok := user.FindAddress(id)
		if !ok {
			return models.Address{}, models.ErrAddressNotFound
		}
		return a, nil
	}
	if body.ShippingAddress != nil {
		return body.ShippingAddress.toModel(primitive.NewObjectID()), nil
	}
	if a, ok := user.DefaultAddress(); ok {
		return a, nil
	}
	return models.Address{}, errors.New("shipping address is required")
}

// refreshItems re-reads every cart line from the catalog and snapshots the
// current price. It fails with a client-facing message when a line can no
// longer be bought.
func (h *OrderController) refreshItems(ctx context.Context, items []models.CartItem) ([]models.CartItem, string, error) {
	out := make([]models.CartItem, 0, len(items))
	for _, it := range items {
		p, err := h.inventory.ProductByID(ctx, it.ProductID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Sprintf("%s is no longer available", it.Name), nil
		}
		if err != nil {
			return nil, "", err
		}
		if !p.IsActive {
			return nil, fmt.Sprintf("%s is no longer available", p.Name), nil
		}
		stock, ok := p.StockFor(it.Size)
		if !ok {
			return nil, fmt.Sprintf("Size %s of %s is no longer available", it.Size, p.Name), nil
		}
		if it.Quantity > stock {
			return nil, fmt.Sprintf("Only %d left in stock for %s", stock, p.Name), nil
		}
		it.Name, it.Price, it.SellerID, it.SKU, it.Image = p.Name, p.Price, p.Seller, p.SKU, p.Thumbnail()
		out = append(out, it)
	}
	return out, "", nil
}

func (h *OrderController) Checkout(c *gin.Context) {
	var body checkoutInput
	if !bind(c, &body) {
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	sess, err := h.sessions.Load(ctx, middleware.SessionID(c))
	if err != nil {
		_ = c.Error(err)
		response.InternalError(c)
		return
	}
	if sess.Cart.IsEmpty() {
		response.BadRequest(c, "Cart is empty")
		return
	}

	var user models.User
	if err := h.users.FindOne(ctx, bson.M{"_id": uid}).Decode(&user); err != nil {
		response.DBError(c, err, "User not found")
		return
	}
	addr, err := shippingAddress(&user, body)
	if errors.Is(err, models.ErrAddressNotFound) {
		response.NotFound(c, "Address not found")
		return
	}
	if err != nil {
		response.BadRequest(c, sentence(err))
		return
	}
	addr.IsDefault = false

	items, problem, err := h.refreshItems(ctx, sess.Cart.Items)
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	if problem != "" {
		response.BadRequest(c, problem)
		return
	}

	var coupon *models.Coupon
	discount := 0.0
	code := body.CouponCode
	if code == "" {
		code = sess.Cart.CouponCode
	}
	if code != "" {
		coupon, err = h.inventory.CouponByCode(ctx, code)
		if err != nil {
			response.DBError(c, err, "Coupon not found")
			return
		}
		sub := models.Subtotal(items)
		if err := coupon.Validate(sub, h.now()); err != nil {
			response.BadRequest(c, sentence(err))
			return
		}
		discount = coupon.Discount(sub)
	}
	totals := models.ComputeTotals(items, h.rules, discount)

	if coupon != nil {
		consumed, err := h.inventory.ConsumeCoupon(ctx, coupon.ID)
		if err != nil {
			response.DBError(c, err, "")
			return
		}
		if !consumed {
			response.BadRequest(c, sentence(models.ErrCouponExhausted))
			return
		}
	}
	rollbackCoupon := func() {
		if coupon == nil {
			return
		}
		if err := h.inventory.ReleaseCoupon(context.WithoutCancel(ctx), coupon.ID); err != nil {
			logger.Error(c, "checkout.coupon_rollback", err, map[string]any{"code": coupon.Code})
		}
	}

	now := h.now()
	order := models.Order{
		ID:              primitive.NewObjectID(),
		User:            uid,
		ShippingAddress: addr,
		PaymentMethod:   body.PaymentMethod,
		PaymentStatus:   models.PaymentPending,
		Status:          models.OrderPending,
		Subtotal:        totals.Subtotal,
		Discount:        totals.Discount,
		Shipping:        totals.Shipping,
		Tax:             totals.Tax,
		Total:           totals.Total,
		Notes:           strings.TrimSpace(body.Notes),
		StatusHistory:   []models.StatusChange{{Status: models.OrderPending, Note: "Order placed", By: uid, At: now}},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if coupon != nil {
		order.CouponCode = coupon.Code
	}
	for _, it := range items {
		order.Items = append(order.Items, models.OrderItemFromCart(it, now))
	}
	order.SellerIDs = models.SellersOf(order.Items)

	lines := stockLines(order.Items)
	if err := h.inventory.ReserveStock(ctx, lines); err != nil {
		rollbackCoupon()
		var short *database.InsufficientStockError
		if errors.As(err, &short) {
			response.BadRequest(c, sentence(short))
			return
		}
		response.DBError(c, err, "")
		return
	}

	if err := h.insertOrder(ctx, &order); err != nil {
		if rerr := h.inventory.ReleaseStock(context.WithoutCancel(ctx), lines); rerr != nil {
			logger.Error(c, "checkout.stock_rollback", rerr, map[string]any{"order_id": order.ID.Hex()})
		}
		rollbackCoupon()
		response.DBError(c, err, "")
		return
	}

	sess.Cart.Clear()
	if err := h.sessions.Save(ctx, sess); err != nil {
		logger.Error(c, "checkout.clear_cart", err, map[string]any{"order_id": order.ID.Hex()})
	}

	h.notifier.OrderPlaced(ctx, user, order)
	logger.Info(c, "order.placed", map[string]any{
		"order_id":     order.ID.Hex(),
		"order_number": order.OrderNumber,
		"total":        order.Total,
		"items":        len(order.Items),
	})
	response.Created(c, "Order placed successfully", order)
}

// insertOrder stores order, drawing a new order number when the random one
// is already taken.
func (h *OrderController) insertOrder(ctx context.Context, order *models.Order) error {
	var err error
	for i := 0; i < orderNumberAttempts; i++ {
		order.OrderNumber = models.NewOrderNumber(order.CreatedAt)
		if _, err = h.orders.InsertOne(ctx, order); !mongo.IsDuplicateKeyError(err) {
			return err
		}
	}
	return err
}

func (h *OrderController) List(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	filter := bson.M{"user": uid}
	if st := c.Query("status"); st != "" {
		if !models.IsValidOrderStatus(st) {
			response.BadRequest(c, "Invalid status")
			return
		}
		filter["status"] = st
	}
	page, limit := response.PageParams(c)

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	listOrders(ctx, c, h.orders, filter, page, limit, nil)
}

// listOrders answers one page of orders matching filter, newest first. When
// keep is set, each order's items are narrowed to those it accepts.
func listOrders(ctx context.Context, c *gin.Context, orders *mongo.Collection, filter bson.M, page, limit int, keep func(models.OrderItem) bool) {
	total, err := orders.CountDocuments(ctx, filter)
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(response.Skip(page, limit)).SetLimit(int64(limit))
	cursor, err := orders.Find(ctx, filter, opts)
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	list := []models.Order{}
	if err := cursor.All(ctx, &list); err != nil {
		response.DBError(c, err, "")
		return
	}
	if keep != nil {
		for i := range list {
			kept := list[i].Items[:0]
			for _, it := range list[i].Items {
				if keep(it) {
					kept = append(kept, it)
				}
			}
			list[i].Items = kept
		}
	}
	response.Paginated(c, list, page, limit, total)
}

// Get returns one of the caller's orders. Admins may read any order.
func (h *OrderController) Get(c *gin.Context) {
	id, ok := paramID(c, "id", "order")
	if !ok {
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	var order models.Order
	if err := h.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		response.DBError(c, err, "Order not found")
		return
	}
	if order.User != uid && !isAdmin(c) {
		logger.Security(c, "order.read_denied", map[string]any{"order_id": id.Hex()})
		response.Forbidden(c, "Access denied")
		return
	}
	response.OK(c, order)
}

type cancelInput struct {
	Reason string `json:"reason" binding:"max=300"`
}

func (h *OrderController) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id", "order")
	if !ok {
		return
	}
	var body cancelInput
	if c.Request.ContentLength != 0 && !bind(c, &body) {
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	var order models.Order
	if err := h.orders.FindOne(ctx, bson.M{"_id": id, "user": uid}).Decode(&order); err != nil {
		response.DBError(c, err, "Order not found")
		return
	}
	if !models.IsCancellable(order.Status) {
		response.BadRequest(c, fmt.Sprintf("Order cannot be cancelled once %s", order.Status))
		return
	}

	note := strings.TrimSpace(body.Reason)
	if note == "" {
		note = "Cancelled by customer"
	}
	updated, err := cancelOrder(ctx, h.orders, h.inventory, &order, uid, note, h.now())
	if err != nil {
		if errors.Is(err, errOrderChanged) {
			response.Conflict(c, "Order was updated by someone else, please retry")
			return
		}
		if errors.Is(err, errItemsInFulfilment) {
			response.BadRequest(c, "Order has items already in fulfilment")
			return
		}
		response.DBError(c, err, "Order not found")
		return
	}

	notifyBuyer(ctx, h.users, h.notifier, updated)
	logger.Info(c, "order.cancel", map[string]any{"order_id": id.Hex()})
	response.Message(c, "Order cancelled", updated)
}

var (
	errOrderChanged      = errors.New("order was modified concurrently")
	errItemsInFulfilment = errors.New("order has items past confirmed")
)

// cancelFilter matches order in the status it was read with while none of
// its items has moved past confirmed.
func cancelFilter(order *models.Order) bson.M {
	return bson.M{
		"_id":    order.ID,
		"status": order.Status,
		"items": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"status": bson.M{"$nin": bson.A{models.OrderPending, models.OrderConfirmed, models.OrderCancelled}},
		}}},
	}
}

// cancelOrder cancels every live item of order, conditional on the status it
// was read with, and returns the stock of those items. Orders with an item
// a seller already moved past confirmed are refused.
func cancelOrder(ctx context.Context, orders *mongo.Collection, inventory Inventory, order *models.Order, by primitive.ObjectID, note string, now time.Time) (*models.Order, error) {
	if !models.ItemsCancellable(order.Items) {
		return nil, errItemsInFulfilment
	}
	lines := stockLines(order.Items)
	set := bson.M{
		"status":           models.OrderCancelled,
		"cancelledAt":      now,
		"updatedAt":        now,
		"items.$[].status": models.OrderCancelled,
	}
	if order.PaymentStatus == models.PaymentPaid {
		set["paymentStatus"] = models.PaymentRefunded
	}
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"statusHistory": models.StatusChange{Status: models.OrderCancelled, Note: note, By: by, At: now}},
	}

	var updated models.Order
	err := orders.FindOneAndUpdate(ctx,
		cancelFilter(order),
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errOrderChanged
	}
	if err != nil {
		return nil, err
	}

	if err := inventory.ReleaseStock(context.WithoutCancel(ctx), lines); err != nil {
		logger.Error(nil, "order.restock", err, map[string]any{"order_id": order.ID.Hex()})
	}
	return &updated, nil
}

// notifyBuyer tells the buyer about a status change. A missing user only
// skips the notification.
func notifyBuyer(ctx context.Context, users *mongo.Collection, notifier notify.Notifier, order *models.Order) {
	var buyer models.User
	if err := users.FindOne(ctx, bson.M{"_id": order.User}).Decode(&buyer); err != nil {
		logger.Error(nil, "notify.lookup_buyer", err, map[string]any{"order_id": order.ID.Hex()})
		return
	}
	notifier.OrderStatusChanged(ctx, buyer, *order)
}
