package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nomanqadri34/vcx-mart-sub002/logger"
	"github.com/nomanqadri34/vcx-mart-sub002/models"
	"github.com/nomanqadri34/vcx-mart-sub002/payment"
	"github.com/nomanqadri34/vcx-mart-sub002/response"
)

const WebhookSignatureHeader = "X-Webhook-Signature"

type PaymentController struct {
	payments *mongo.Collection
	orders   *mongo.Collection
	gateway  *payment.Gateway
	now      func() time.Time
}

func NewPaymentController(payments, orders *mongo.Collection, gateway *payment.Gateway) *PaymentController {
	return &PaymentController{payments: payments, orders: orders, gateway: gateway, now: time.Now}
}

type paymentCreateInput struct {
	OrderID string `json:"orderId" binding:"required,objectid"`
}

type paymentVerifyInput struct {
	OrderID        string `json:"orderId" binding:"required,objectid"`
	GatewayOrderID string `json:"gatewayOrderId" binding:"required"`
	PaymentID      string `json:"paymentId" binding:"required"`
	Signature      string `json:"signature" binding:"required,hexadecimal"`
}

// payable reports why order cannot take an online payment, or "" when it can.
func payable(order *models.Order) string {
	switch {
	case order.PaymentMethod != models.PaymentMethodOnline:
		return "Order is not an online payment order"
	case order.PaymentStatus == models.PaymentPaid:
		return "Order is already paid"
	case order.Status == models.OrderCancelled:
		return "Order has been cancelled"
	}
	return ""
}

func (h *PaymentController) Create(c *gin.Context) {
	var body paymentCreateInput
	if !bind(c, &body) {
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	if !h.gateway.Enabled() {
		response.Fail(c, http.StatusServiceUnavailable, "Online payments are not available")
		return
	}
	orderID, _ := primitive.ObjectIDFromHex(body.OrderID)

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	var order models.Order
	if err := h.orders.FindOne(ctx, bson.M{"_id": orderID, "user": uid}).Decode(&order); err != nil {
		response.DBError(c, err, "Order not found")
		return
	}
	if msg := payable(&order); msg != "" {
		response.BadRequest(c, msg)
		return
	}

	gwOrder, err := h.gateway.CreateOrder(models.ToMinorUnits(order.Total), order.OrderNumber)
	if err != nil {
		response.BadRequest(c, sentence(err))
		return
	}
	now := h.now()
	p := models.Payment{
		ID:             primitive.NewObjectID(),
		Order:          order.ID,
		User:           uid,
		GatewayOrderID: gwOrder.ID,
		Amount:         gwOrder.Amount,
		Currency:       gwOrder.Currency,
		Status:         models.PaymentCreated,
		Events:         []models.PaymentEvent{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := h.payments.InsertOne(ctx, p); err != nil {
		response.DBError(c, err, "")
		return
	}

	logger.Info(c, "payment.create", map[string]any{"order_id": order.ID.Hex(), "gateway_order_id": gwOrder.ID, "amount": gwOrder.Amount})
	response.Created(c, "Payment order created", gwOrder)
}

func (h *PaymentController) Verify(c *gin.Context) {
	var body paymentVerifyInput
	if !bind(c, &body) {
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, _ := primitive.ObjectIDFromHex(body.OrderID)

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	var p models.Payment
	err := h.payments.FindOne(ctx, bson.M{"gatewayOrderId": body.GatewayOrderID, "order": orderID, "user": uid}).Decode(&p)
	if err != nil {
		response.DBError(c, err, "Payment not found")
		return
	}
	if p.Status == models.PaymentCaptured {
		response.Message(c, "Payment already verified", p)
		return
	}

	if err := h.gateway.VerifyPayment(body.GatewayOrderID, body.PaymentID, body.Signature); err != nil {
		logger.Security(c, "payment.signature_mismatch", map[string]any{"gateway_order_id": body.GatewayOrderID})
		if ferr := h.markFailed(ctx, &p, body.PaymentID, "signature verification failed"); ferr != nil {
			logger.Error(c, "payment.mark_failed", ferr, map[string]any{"payment_id": p.ID.Hex()})
		}
		response.BadRequest(c, "Payment verification failed")
		return
	}

	refunded, err := h.markCaptured(ctx, &p, body.PaymentID, uid)
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	p.Status, p.GatewayPaymentID = models.PaymentCaptured, body.PaymentID

	if refunded {
		logger.Audit(c, "payment.refund_cancelled", map[string]any{"order_id": orderID.Hex(), "payment_id": body.PaymentID})
		response.Message(c, "Order was cancelled, payment will be refunded", p)
		return
	}
	logger.Info(c, "payment.verified", map[string]any{"order_id": orderID.Hex(), "payment_id": body.PaymentID})
	response.Message(c, "Payment verified", p)
}

// markCaptured records a successful payment and confirms a pending order.
// A capture that lands on a cancelled order marks it refunded instead of
// paid and reports true.
func (h *PaymentController) markCaptured(ctx context.Context, p *models.Payment, paymentID string, by primitive.ObjectID) (bool, error) {
	now := h.now()
	if _, err := h.payments.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{
		"status":           models.PaymentCaptured,
		"gatewayPaymentId": paymentID,
		"failureReason":    "",
		"updatedAt":        now,
	}}); err != nil {
		return false, err
	}

	settled := bson.A{models.PaymentPaid, models.PaymentRefunded}
	res, err := h.orders.UpdateOne(ctx,
		bson.M{"_id": p.Order, "status": models.OrderCancelled, "paymentStatus": bson.M{"$nin": settled}},
		bson.M{"$set": bson.M{"paymentStatus": models.PaymentRefunded, "paidAt": now, "updatedAt": now}},
	)
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	if _, err := h.orders.UpdateOne(ctx,
		bson.M{"_id": p.Order, "status": bson.M{"$ne": models.OrderCancelled}, "paymentStatus": bson.M{"$nin": settled}},
		bson.M{"$set": bson.M{"paymentStatus": models.PaymentPaid, "paidAt": now, "updatedAt": now}},
	); err != nil {
		return false, err
	}
	_, err = h.orders.UpdateOne(ctx,
		bson.M{"_id": p.Order, "status": models.OrderPending},
		bson.M{
			"$set": bson.M{
				"status":               models.OrderConfirmed,
				"items.$[live].status": models.OrderConfirmed,
				"updatedAt":            now,
			},
			"$push": bson.M{"statusHistory": models.StatusChange{Status: models.OrderConfirmed, Note: "Payment received", By: by, At: now}},
		},
		options.Update().SetArrayFilters(options.ArrayFilters{Filters: []interface{}{
			bson.M{"live.status": models.OrderPending},
		}}),
	)
	return false, err
}

func (h *PaymentController) markFailed(ctx context.Context, p *models.Payment, paymentID, reason string) error {
	now := h.now()
	if _, err := h.payments.UpdateOne(ctx, bson.M{"_id": p.ID, "status": bson.M{"$ne": models.PaymentCaptured}}, bson.M{"$set": bson.M{
		"status":           models.PaymentAborted,
		"gatewayPaymentId": paymentID,
		"failureReason":    reason,
		"updatedAt":        now,
	}}); err != nil {
		return err
	}
	_, err := h.orders.UpdateOne(ctx,
		bson.M{"_id": p.Order, "paymentStatus": models.PaymentPending},
		bson.M{"$set": bson.M{"paymentStatus": models.PaymentFailed, "updatedAt": now}})
	return err
}

// Webhook applies gateway events. Each event id is claimed on the payment
// before it is applied so redelivered events are acknowledged without being
// applied twice. A failed apply releases the claim.
func (h *PaymentController) Webhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		response.ValidationError(c, err)
		return
	}
	ev, err := h.gateway.ParseWebhook(raw, c.GetHeader(WebhookSignatureHeader))
	if errors.Is(err, payment.ErrInvalidSignature) {
		logger.Security(c, "payment.webhook_signature", nil)
		response.BadRequest(c, "Invalid webhook signature")
		return
	}
	if err != nil {
		response.BadRequest(c, "Invalid webhook payload")
		return
	}

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	gwOrderID := ev.Payload.Payment.OrderID
	eventID := ev.ID
	if eventID == "" {
		eventID = ev.Event + ":" + ev.Payload.Payment.ID
	}

	var p models.Payment
	err = h.payments.FindOneAndUpdate(ctx,
		bson.M{"gatewayOrderId": gwOrderID, "events.id": bson.M{"$ne": eventID}},
		bson.M{"$push": bson.M{"events": models.PaymentEvent{ID: eventID, Type: ev.Event, Received: h.now()}}},
	).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// unknown order or an event already applied
		response.Message(c, "Event acknowledged", nil)
		return
	}
	if err != nil {
		response.DBError(c, err, "")
		return
	}

	switch ev.Event {
	case payment.EventPaymentCaptured:
		_, err = h.markCaptured(ctx, &p, ev.Payload.Payment.ID, p.User)
	case payment.EventPaymentFailed:
		reason := ev.Payload.Payment.ErrorDescription
		if reason == "" {
			reason = "payment failed"
		}
		err = h.markFailed(ctx, &p, ev.Payload.Payment.ID, reason)
	}
	if err != nil {
		// drop the claim so the gateway's redelivery is applied
		if _, perr := h.payments.UpdateOne(context.WithoutCancel(ctx), bson.M{"_id": p.ID},
			bson.M{"$pull": bson.M{"events": bson.M{"id": eventID}}}); perr != nil {
			logger.Error(c, "payment.webhook_unclaim", perr, map[string]any{"event_id": eventID})
		}
		response.DBError(c, err, "")
		return
	}

	logger.Info(c, "payment.webhook", map[string]any{"event": ev.Event, "event_id": eventID, "gateway_order_id": gwOrderID})
	response.Message(c, "Event processed", nil)
}
