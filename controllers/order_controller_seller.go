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

type trackingInput struct {
	Carrier        string `json:"carrier" binding:"required,max=60"`
	TrackingNumber string `json:"trackingNumber" binding:"required,max=60"`
	URL            string `json:"url" binding:"omitempty,url"`
}

type itemStatusInput struct {
	Status   string         `json:"status" binding:"required"`
	Note     string         `json:"note" binding:"max=300"`
	Tracking *trackingInput `json:"tracking"`
}

// SellerList returns the orders that contain the caller's items, each
// narrowed to those items.
func (h *OrderController) SellerList(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	filter := bson.M{"sellerIds": uid}
	if st := c.Query("status"); st != "" {
		if !models.IsValidOrderStatus(st) {
			response.BadRequest(c, "Invalid status")
			return
		}
		filter["items"] = bson.M{"$elemMatch": bson.M{"sellerId": uid, "status": st}}
	}
	page, limit := response.PageParams(c)

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	listOrders(ctx, c, h.orders, filter, page, limit, func(it models.OrderItem) bool {
		return it.SellerID == uid
	})
}

// itemUpdate applies a status change to a copy of the order's items and
// derives the order status. The order only moves forward.
func itemUpdate(order *models.Order, idx int, body itemStatusInput, now time.Time) ([]models.OrderItem, string) {
	items := append([]models.OrderItem(nil), order.Items...)
	items[idx].Status = body.Status
	items[idx].UpdatedAt = now
	if body.Tracking != nil {
		items[idx].Tracking = &models.Tracking{
			Carrier:        strings.TrimSpace(body.Tracking.Carrier),
			TrackingNumber: strings.TrimSpace(body.Tracking.TrackingNumber),
			URL:            body.Tracking.URL,
		}
	}

	next := order.Status
	if rolled := models.RollupStatus(items); models.AdvancesTo(order.Status, rolled) {
		next = rolled
	}
	return items, next
}

func (h *OrderController) UpdateItemStatus(c *gin.Context) {
	id, ok := paramID(c, "id", "order")
	if !ok {
		return
	}
	itemID, ok := paramID(c, "itemId", "item")
	if !ok {
		return
	}
	var body itemStatusInput
	if !bind(c, &body) {
		return
	}
	if !models.IsValidOrderStatus(body.Status) {
		response.BadRequest(c, "Invalid status")
		return
	}
	if body.Status == models.OrderReturned {
		response.Forbidden(c, "Only an admin can mark items as returned")
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	var order models.Order
	if err := h.orders.FindOne(ctx, bson.M{"_id": id, "sellerIds": uid}).Decode(&order); err != nil {
		response.DBError(c, err, "Order not found")
		return
	}
	idx := order.ItemIndex(itemID)
	if idx < 0 {
		response.NotFound(c, "Order item not found")
		return
	}
	item := order.Items[idx]
	if item.SellerID != uid {
		logger.Security(c, "order.item_denied", map[string]any{"order_id": id.Hex(), "item_id": itemID.Hex()})
		response.Forbidden(c, "Access denied")
		return
	}
	if !models.CanTransition(item.Status, body.Status) {
		response.BadRequest(c, fmt.Sprintf("Cannot change status from %s to %s", item.Status, body.Status))
		return
	}

	now := h.now()
	items, next := itemUpdate(&order, idx, body, now)
	set := bson.M{"items": items, "status": next, "updatedAt": now}
	update := bson.M{"$set": set}
	if next != order.Status {
		statusSideEffects(set, &order, next)
		if next == models.OrderCancelled {
			set["cancelledAt"] = now
			if order.PaymentStatus == models.PaymentPaid {
				set["paymentStatus"] = models.PaymentRefunded
			}
		}
		update["$push"] = bson.M{"statusHistory": models.StatusChange{Status: next, Note: strings.TrimSpace(body.Note), By: uid, At: now}}
	}

	var updated models.Order
	err := h.orders.FindOneAndUpdate(ctx,
		bson.M{"_id": order.ID, "updatedAt": order.UpdatedAt},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		response.Conflict(c, "Order was updated by someone else, please retry")
		return
	}
	if err != nil {
		response.DBError(c, err, "")
		return
	}

	if body.Status == models.OrderCancelled {
		h.restockItem(ctx, c, item)
	}
	if next != order.Status {
		notifyBuyer(ctx, h.users, h.notifier, &updated)
	}
	logger.Audit(c, "order.item_status", map[string]any{
		"order_id": id.Hex(),
		"item_id":  itemID.Hex(),
		"from":     item.Status,
		"to":       body.Status,
		"order":    next,
	})

	updated.Items = sellerItems(updated.Items, uid)
	response.Message(c, "Item status updated", updated)
}

func (h *OrderController) restockItem(ctx context.Context, c *gin.Context, item models.OrderItem) {
	line := database.StockLine{ProductID: item.ProductID, Name: item.Name, Size: item.Size, Quantity: item.Quantity}
	if err := h.inventory.ReleaseStock(context.WithoutCancel(ctx), []database.StockLine{line}); err != nil {
		logger.Error(c, "order.restock", err, map[string]any{"product_id": item.ProductID.Hex()})
	}
}

func sellerItems(items []models.OrderItem, seller primitive.ObjectID) []models.OrderItem {
	out := make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		if it.SellerID == seller {
			out = append(out, it)
		}
	}
	return out
}
