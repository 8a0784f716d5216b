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
	"github.com/nomanqadri34/vcx-mart-sub002/models"
	"github.com/nomanqadri34/vcx-mart-sub002/response"
)

// statusSideEffects adds the fields that accompany an order reaching next.
func statusSideEffects(set bson.M, order *models.Order, next string) {
	now := set["updatedAt"]
	switch next {
	case models.OrderDelivered:
		set["deliveredAt"] = now
		if order.PaymentMethod == models.PaymentMethodCOD && order.PaymentStatus == models.PaymentPending {
			set["paymentStatus"] = models.PaymentPaid
			set["paidAt"] = now
		}
	case models.OrderReturned:
		if order.PaymentStatus == models.PaymentPaid {
			set["paymentStatus"] = models.PaymentRefunded
		}
	}
}

func (h *OrderController) AdminList(c *gin.Context) {
	filter := bson.M{}
	if st := c.Query("status"); st != "" {
		if !models.IsValidOrderStatus(st) {
			response.BadRequest(c, "Invalid status")
			return
		}
		filter["status"] = st
	}
	switch ps := c.Query("paymentStatus"); ps {
	case "":
	case models.PaymentPending, models.PaymentPaid, models.PaymentFailed, models.PaymentRefunded:
		filter["paymentStatus"] = ps
	default:
		response.BadRequest(c, "Invalid payment status")
		return
	}
	if pm := c.Query("paymentMethod"); pm == models.PaymentMethodCOD || pm == models.PaymentMethodOnline {
		filter["paymentMethod"] = pm
	}
	if s := strings.TrimSpace(c.Query("search")); s != "" {
		filter["$or"] = bson.A{
			bson.M{"orderNumber": containsFold(s)},
			bson.M{"shippingAddress.fullName": containsFold(s)},
			bson.M{"shippingAddress.phone": containsFold(s)},
		}
	}
	page, limit := response.PageParams(c)

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	listOrders(ctx, c, h.orders, filter, page, limit, nil)
}

func (h *OrderController) AdminGet(c *gin.Context) {
	id, ok := paramID(c, "id", "order")
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
	response.OK(c, order)
}

// UpdateStatus moves a whole order along the status table. Items behind the
// new status follow the order; cancelled items stay cancelled.
func (h *OrderController) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c, "id", "order")
	if !ok {
		return
	}
	var body statusInput
	if !bind(c, &body) {
		return
	}
	if !models.IsValidOrderStatus(body.Status) {
		response.BadRequest(c, "Invalid status")
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	var order models.Order
	if err := h.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		response.DBError(c, err, "Order not found")
		return
	}
	if !models.CanTransition(order.Status, body.Status) {
		response.BadRequest(c, fmt.Sprintf("Cannot change status from %s to %s", order.Status, body.Status))
		return
	}

	var (
		updated *models.Order
		err     error
	)
	if body.Status == models.OrderCancelled {
		note := strings.TrimSpace(body.Note)
		if note == "" {
			note = "Cancelled by admin"
		}
		updated, err = cancelOrder(ctx, h.orders, h.inventory, &order, uid, note, h.now())
	} else {
		updated, err = h.advanceOrder(ctx, &order, body, uid)
	}
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
	logger.Audit(c, "order.status", map[string]any{"order_id": id.Hex(), "from": order.Status, "to": body.Status})
	response.Message(c, "Order status updated", updated)
}

// advanceUpdate builds the order-wide move to next. Only items still behind
// next follow the order; items a seller already moved further keep their status.
func advanceUpdate(order *models.Order, body statusInput, by primitive.ObjectID, now time.Time) (bson.M, []interface{}) {
	set := bson.M{
		"status":                  body.Status,
		"updatedAt":               now,
		"items.$[live].status":    body.Status,
		"items.$[live].updatedAt": now,
	}
	statusSideEffects(set, order, body.Status)
	update := bson.M{
		"$set":  set,
		"$push": bson.M{"statusHistory": models.StatusChange{Status: body.Status, Note: strings.TrimSpace(body.Note), By: by, At: now}},
	}
	filters := []interface{}{
		bson.M{"live.status": bson.M{"$in": models.StatusesBefore(body.Status)}},
	}
	return update, filters
}

func (h *OrderController) advanceOrder(ctx context.Context, order *models.Order, body statusInput, by primitive.ObjectID) (*models.Order, error) {
	update, filters := advanceUpdate(order, body, by, h.now())
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetArrayFilters(options.ArrayFilters{Filters: filters})

	var updated models.Order
	err := h.orders.FindOneAndUpdate(ctx, bson.M{"_id": order.ID, "status": order.Status}, update, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errOrderChanged
	}
	if err != nil {
		return nil, err
	}

	if body.Status == models.OrderReturned {
		returned := stockLines(models.ItemsBefore(order.Items, models.OrderReturned))
		if err := h.inventory.ReleaseStock(context.WithoutCancel(ctx), returned); err != nil {
			logger.Error(nil, "order.restock", err, map[string]any{"order_id": order.ID.Hex()})
		}
	}
	return &updated, nil
}

var _ Inventory = (*database.Store)(nil)
