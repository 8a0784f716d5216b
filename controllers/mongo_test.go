package controllers

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"github.com/nomanqadri34/vcx-mart-sub002/auth"
	"github.com/nomanqadri34/vcx-mart-sub002/database"
	"github.com/nomanqadri34/vcx-mart-sub002/models"
	"github.com/nomanqadri34/vcx-mart-sub002/notify"
	"github.com/nomanqadri34/vcx-mart-sub002/payment"
	"github.com/nomanqadri34/vcx-mart-sub002/session"
)

// testStore connects to MONGO_TEST_URI in a throwaway database.
func testStore(t *testing.T) *database.Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	s, err := database.Connect(context.Background(), uri, "vcx_ctl_"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.DB.Drop(context.Background())
		_ = s.Close(context.Background())
	})
	return s
}

// unreachable returns a collection whose every operation fails fast.
func unreachable(t *testing.T, name string) *mongo.Collection {
	t.Helper()
	client, err := mongo.Connect(context.Background(), options.Client().
		ApplyURI("mongodb://127.0.0.1:1").
		SetServerSelectionTimeout(200*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return client.Database("vcx_down").Collection(name)
}

func insert(t *testing.T, coll *mongo.Collection, doc any) {
	t.Helper()
	_, err := coll.InsertOne(context.Background(), doc)
	require.NoError(t, err)
}

func load[T any](t *testing.T, coll *mongo.Collection, id primitive.ObjectID) T {
	t.Helper()
	var out T
	require.NoError(t, coll.FindOne(context.Background(), bson.M{"_id": id}).Decode(&out))
	return out
}

func TestCategoryMoveToRoot(t *testing.T) {
	s := testStore(t)
	root := models.Category{ID: primitive.NewObjectID(), Name: "Men", Slug: "men", Ancestors: []primitive.ObjectID{}, IsActive: true}
	child := models.Category{ID: primitive.NewObjectID(), Name: "Shirts", Slug: "shirts", Parent: &root.ID,
		Ancestors: []primitive.ObjectID{root.ID}, Level: 1, IsActive: true}
	insert(t, s.Categories, root)
	insert(t, s.Categories, child)
	insert(t, s.Products, models.Product{ID: primitive.NewObjectID(), Name: "Oxford", Category: child.ID,
		CategoryPath: []primitive.ObjectID{root.ID, child.ID}, IsActive: true})

	h := NewCategoryController(s.Categories, s.Products)
	r := gin.New()
	r.PUT("/categories/:id", identity(primitive.NewObjectID(), models.RoleAdmin), h.Update)

	w := send(r, http.MethodPut, "/categories/"+child.ID.Hex(), gin.H{"parent": ""})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	moved := load[models.Category](t, s.Categories, child.ID)
	assert.Nil(t, moved.Parent)
	assert.Empty(t, moved.Ancestors)
	assert.Equal(t, 0, moved.Level)

	var p models.Product
	require.NoError(t, s.Products.FindOne(context.Background(), bson.M{"category": child.ID}).Decode(&p))
	assert.Equal(t, []primitive.ObjectID{child.ID}, p.CategoryPath)
}

func seedApplication(t *testing.T, s *database.Store, role string) (models.User, models.SellerApplication) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	user := models.User{ID: primitive.NewObjectID(), Name: "Asha Rao", Email: uuid.NewString()[:8] + "@vcx.test",
		Role: role, IsActive: true, Addresses: []models.Address{}, CreatedAt: now, UpdatedAt: now}
	app := models.SellerApplication{ID: primitive.NewObjectID(), User: user.ID, BusinessName: "Rao Textiles",
		BusinessType: "proprietorship", PAN: "ABCDE1234F", Phone: "9876543210", Email: user.Email,
		BankAccount: models.BankAccount{HolderName: "Asha Rao", AccountNumber: "123456789012", IFSC: "HDFC0001234"},
		Categories: []primitive.ObjectID{}, Status: models.ApplicationPending, CreatedAt: now, UpdatedAt: now}
	user.SellerApplication = &models.SellerApplicationRef{ApplicationID: app.ID, Status: app.Status, SubmittedAt: now}
	insert(t, s.Users, user)
	insert(t, s.SellerApplications, app)
	return user, app
}

func applicationRouter(s *database.Store) *gin.Engine {
	h := NewSellerApplicationController(s.SellerApplications, s.Users, notify.Log{})
	r := gin.New()
	g := r.Group("/admin/seller-applications", identity(primitive.NewObjectID(), models.RoleAdmin))
	g.PUT("/:id/approve", h.Approve)
	return r
}

func TestApproveSellerApplicationPromotesApplicant(t *testing.T) {
	s := testStore(t)
	user, app := seedApplication(t, s, models.RoleCustomer)

	w := send(applicationRouter(s), http.MethodPut, "/admin/seller-applications/"+app.ID.Hex()+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := load[models.User](t, s.Users, user.ID)
	assert.Equal(t, models.RoleSeller, got.Role)
	require.NotNil(t, got.SellerApplication)
	assert.Equal(t, models.ApplicationApproved, got.SellerApplication.Status)
	require.NotNil(t, got.SellerProfile)
	assert.Equal(t, models.ApplicationApproved, load[models.SellerApplication](t, s.SellerApplications, app.ID).Status)

	w = send(applicationRouter(s), http.MethodPut, "/admin/seller-applications/"+app.ID.Hex()+"/approve", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApproveKeepsAdminRoleButSyncsApplication(t *testing.T) {
	s := testStore(t)
	user, app := seedApplication(t, s, models.RoleAdmin)

	w := send(applicationRouter(s), http.MethodPut, "/admin/seller-applications/"+app.ID.Hex()+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := load[models.User](t, s.Users, user.ID)
	assert.Equal(t, models.RoleAdmin, got.Role)
	require.NotNil(t, got.SellerApplication)
	assert.Equal(t, models.ApplicationApproved, got.SellerApplication.Status)
	assert.NotNil(t, got.SellerApplication.ReviewedAt)
}

const (
	testKeySecret     = "key-secret"
	testWebhookSecret = "webhook-secret"
)

func onlineOrder(t *testing.T, s *database.Store, status string) (models.Order, models.Payment) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	order := models.Order{ID: primitive.NewObjectID(), OrderNumber: models.NewOrderNumber(now), User: primitive.NewObjectID(),
		Items: []models.OrderItem{{ID: primitive.NewObjectID(), Name: "Tee", Quantity: 1, Price: 499, Status: status}},
		PaymentMethod: models.PaymentMethodOnline, PaymentStatus: models.PaymentPending, Status: status, Total: 499,
		StatusHistory: []models.StatusChange{}, CreatedAt: now, UpdatedAt: now}
	p := models.Payment{ID: primitive.NewObjectID(), Order: order.ID, User: order.User, GatewayOrderID: "order_" + uuid.NewString()[:12],
		Amount: 49900, Currency: "INR", Status: models.PaymentCreated, Events: []models.PaymentEvent{}, CreatedAt: now, UpdatedAt: now}
	insert(t, s.Orders, order)
	insert(t, s.Payments, p)
	return order, p
}

func deliverWebhook(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(WebhookSignatureHeader, payment.Sign(testWebhookSecret, []byte(body)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func webhookRouter(payments, orders *mongo.Collection) *gin.Engine {
	h := NewPaymentController(payments, orders, payment.NewGateway("key", testKeySecret, testWebhookSecret, "INR"))
	r := gin.New()
	r.POST("/payments/webhook", h.Webhook)
	return r
}

func TestWebhookRedeliveryAfterFailedApply(t *testing.T) {
	s := testStore(t)
	order, p := onlineOrder(t, s, models.OrderPending)
	body := `{"id":"evt_1","event":"payment.captured","payload":{"payment":{"id":"pay_1","order_id":"` + p.GatewayOrderID + `"}}}`

	w := deliverWebhook(webhookRouter(s.Payments, unreachable(t, "orders")), body)
	require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())
	assert.Empty(t, load[models.Payment](t, s.Payments, p.ID).Events)

	healthy := webhookRouter(s.Payments, s.Orders)
	w = deliverWebhook(healthy, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Event processed", envelope(t, w).Message)

	got := load[models.Order](t, s.Orders, order.ID)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus)
	assert.Equal(t, models.OrderConfirmed, got.Status)

	w = deliverWebhook(healthy, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Event acknowledged", envelope(t, w).Message)
	assert.Len(t, load[models.Payment](t, s.Payments, p.ID).Events, 1)
}

func TestVerifyOnCancelledOrderMarksRefund(t *testing.T) {
	s := testStore(t)
	order, p := onlineOrder(t, s, models.OrderCancelled)

	h := NewPaymentController(s.Payments, s.Orders, payment.NewGateway("key", testKeySecret, testWebhookSecret, "INR"))
	r := gin.New()
	r.POST("/payments/verify", identity(order.User, models.RoleCustomer), h.Verify)

	w := send(r, http.MethodPost, "/payments/verify", gin.H{
		"orderId":        order.ID.Hex(),
		"gatewayOrderId": p.GatewayOrderID,
		"paymentId":      "pay_late",
		"signature":      payment.Sign(testKeySecret, []byte(p.GatewayOrderID+"|pay_late")),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := load[models.Order](t, s.Orders, order.ID)
	assert.Equal(t, models.OrderCancelled, got.Status)
	assert.Equal(t, models.PaymentRefunded, got.PaymentStatus)
	assert.Equal(t, models.PaymentCaptured, load[models.Payment](t, s.Payments, p.ID).Status)
}

func TestAdminAdvanceLeavesShippedItems(t *testing.T) {
	s := testStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)
	shipped := models.OrderItem{ID: primitive.NewObjectID(), Name: "Tee", Quantity: 1, Status: models.OrderShipped}
	waiting := models.OrderItem{ID: primitive.NewObjectID(), Name: "Mug", Quantity: 1, Status: models.OrderConfirmed}
	order := models.Order{ID: primitive.NewObjectID(), User: primitive.NewObjectID(), Items: []models.OrderItem{shipped, waiting},
		PaymentMethod: models.PaymentMethodCOD, PaymentStatus: models.PaymentPending, Status: models.OrderConfirmed,
		StatusHistory: []models.StatusChange{}, CreatedAt: now, UpdatedAt: now}
	insert(t, s.Orders, order)

	h := NewOrderController(s.Orders, s.Users, s, session.NewMemoryStore(time.Hour), notify.Log{}, testRules)
	r := gin.New()
	r.PUT("/admin/orders/:id/status", identity(primitive.NewObjectID(), models.RoleAdmin), h.UpdateStatus)

	w := send(r, http.MethodPut, "/admin/orders/"+order.ID.Hex()+"/status", gin.H{"status": models.OrderCancelled})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "Order has items already in fulfilment", errorMessage(t, w))

	w = send(r, http.MethodPut, "/admin/orders/"+order.ID.Hex()+"/status", gin.H{"status": models.OrderProcessing})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := load[models.Order](t, s.Orders, order.ID)
	assert.Equal(t, models.OrderProcessing, got.Status)
	assert.Equal(t, models.OrderShipped, got.Items[0].Status)
	assert.Equal(t, models.OrderProcessing, got.Items[1].Status)
}

func TestLoginLogsFailedLastLoginWrite(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	// a validator that refuses lastLoginAt makes only the bookkeeping write fail
	require.NoError(t, s.DB.CreateCollection(ctx, "users_locked",
		options.CreateCollection().SetValidator(bson.M{"lastLoginAt": bson.M{"$exists": false}})))
	users := s.DB.Collection("users_locked")

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now().UTC()
	insert(t, users, models.User{ID: primitive.NewObjectID(), Name: "Asha Rao", Email: "asha@vcx.test", Password: string(hash),
		Role: models.RoleCustomer, IsActive: true, Addresses: []models.Address{}, CreatedAt: now, UpdatedAt: now})

	var buf bytes.Buffer
	oldW := log.Writer()
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(oldW) })

	h := NewAuthController(users, auth.NewTokenManager("login-secret", time.Hour), nil)
	r := gin.New()
	r.POST("/auth/login", h.Login)

	w := send(r, http.MethodPost, "/auth/login", gin.H{"email": "asha@vcx.test", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, buf.String(), `"action":"auth.last_login"`)
	assert.Contains(t, buf.String(), `"level":"error"`)
}
