package controllers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nomanqadri34/vcx-mart-sub002/logger"
	"github.com/nomanqadri34/vcx-mart-sub002/models"
	"github.com/nomanqadri34/vcx-mart-sub002/response"
)

const (
	revenueMonths  = 6
	topProductsMax = 5
	lowStockMax    = 20
)

type DashboardController struct {
	users        *mongo.Collection
	products     *mongo.Collection
	orders       *mongo.Collection
	applications *mongo.Collection
	lowStock     int
	now          func() time.Time
}

func NewDashboardController(users, products, orders, applications *mongo.Collection, lowStock int) *DashboardController {
	return &DashboardController{
		users:        users,
		products:     products,
		orders:       orders,
		applications: applications,
		lowStock:     lowStock,
		now:          time.Now,
	}
}

type monthKey struct {
	Year  int `bson:"y"`
	Month int `bson:"m"`
}

type monthBucket struct {
	ID      monthKey `bson:"_id"`
	Revenue float64  `bson:"revenue"`
	Orders  int      `bson:"orders"`
}

type MonthlyRevenue struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

type TopProduct struct {
	ProductID string  `bson:"_id" json:"productId"`
	Name      string  `bson:"name" json:"name"`
	Units     int     `bson:"units" json:"units"`
	Revenue   float64 `bson:"revenue" json:"revenue"`
}

type LowStockProduct struct {
	ID    string `bson:"_id" json:"id"`
	Name  string `bson:"name" json:"name"`
	SKU   string `bson:"sku" json:"sku"`
	Stock int    `bson:"stock" json:"stock"`
}

type DashboardStats struct {
	Users               int64             `json:"users"`
	Sellers             int64             `json:"sellers"`
	Products            int64             `json:"products"`
	Orders              int64             `json:"orders"`
	Revenue             float64           `json:"revenue"`
	OrdersByStatus      map[string]int    `json:"ordersByStatus"`
	PendingApplications int64             `json:"pendingApplications"`
	LowStock            []LowStockProduct `json:"lowStock"`
	MonthlyRevenue      []MonthlyRevenue  `json:"monthlyRevenue"`
	TopProducts         []TopProduct      `json:"topProducts"`
}

// revenueWindowStart is the first day of the oldest month in the window.
func revenueWindowStart(now time.Time, months int) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()-time.Month(months-1), 1, 0, 0, 0, 0, time.UTC)
}

// fillMonths lays buckets over the last n calendar months, oldest first,
// with zeroes for months without paid orders.
func fillMonths(now time.Time, n int, buckets []monthBucket) []MonthlyRevenue {
	byKey := make(map[monthKey]monthBucket, len(buckets))
	for _, b := range buckets {
		byKey[b.ID] = b
	}
	start := revenueWindowStart(now, n)
	out := make([]MonthlyRevenue, 0, n)
	for i := 0; i < n; i++ {
		t := start.AddDate(0, i, 0)
		b := byKey[monthKey{Year: t.Year(), Month: int(t.Month())}]
		out = append(out, MonthlyRevenue{Month: t.Format("2006-01"), Revenue: b.Revenue, Orders: b.Orders})
	}
	return out
}

func aggregate[T any](ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) ([]T, error) {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var paidOrders = bson.M{"paymentStatus": models.PaymentPaid}

func (h *DashboardController) collect(ctx context.Context) (DashboardStats, error) {
	var (
		s   DashboardStats
		err error
	)
	if s.Users, err = h.users.CountDocuments(ctx, bson.M{}); err != nil {
		return s, err
	}
	if s.Sellers, err = h.users.CountDocuments(ctx, bson.M{"role": models.RoleSeller}); err != nil {
		return s, err
	}
	if s.Products, err = h.products.CountDocuments(ctx, bson.M{}); err != nil {
		return s, err
	}
	if s.Orders, err = h.orders.CountDocuments(ctx, bson.M{}); err != nil {
		return s, err
	}
	if s.PendingApplications, err = h.applications.CountDocuments(ctx,
		bson.M{"status": bson.M{"$in": openStatuses}}); err != nil {
		return s, err
	}

	revenue, err := aggregate[struct {
		Total float64 `bson:"total"`
	}](ctx, h.orders, mongo.Pipeline{
		{{Key: "$match", Value: paidOrders}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$total"}}}},
	})
	if err != nil {
		return s, err
	}
	if len(revenue) > 0 {
		s.Revenue = revenue[0].Total
	}

	byStatus, err := aggregate[struct {
		Status string `bson:"_id"`
		Count  int    `bson:"count"`
	}](ctx, h.orders, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return s, err
	}
	s.OrdersByStatus = map[string]int{}
	for _, b := range byStatus {
		s.OrdersByStatus[b.Status] = b.Count
	}

	months, err := aggregate[monthBucket](ctx, h.orders, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"paymentStatus": models.PaymentPaid,
			"createdAt":     bson.M{"$gte": revenueWindowStart(h.now(), revenueMonths)},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":     bson.M{"y": bson.M{"$year": "$createdAt"}, "m": bson.M{"$month": "$createdAt"}},
			"revenue": bson.M{"$sum": "$total"},
			"orders":  bson.M{"$sum": 1},
		}}},
	})
	if err != nil {
		return s, err
	}
	s.MonthlyRevenue = fillMonths(h.now(), revenueMonths, months)

	if s.TopProducts, err = aggregate[TopProduct](ctx, h.orders, mongo.Pipeline{
		{{Key: "$unwind", Value: "$items"}},
		{{Key: "$match", Value: bson.M{"items.status": bson.M{"$ne": models.OrderCancelled}}}},
		{{Key: "$group", Value: bson.M{
			"_id":     bson.M{"$toString": "$items.productId"},
			"name":    bson.M{"$first": "$items.name"},
			"units":   bson.M{"$sum": "$items.quantity"},
			"revenue": bson.M{"$sum": "$items.subtotal"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "units", Value: -1}, {Key: "revenue", Value: -1}}}},
		{{Key: "$limit", Value: topProductsMax}},
	}); err != nil {
		return s, err
	}

	if s.LowStock, err = aggregate[LowStockProduct](ctx, h.products, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"isActive": true, "stock": bson.M{"$lte": h.lowStock}}}},
		{{Key: "$sort", Value: bson.D{{Key: "stock", Value: 1}, {Key: "name", Value: 1}}}},
		{{Key: "$limit", Value: lowStockMax}},
		{{Key: "$project", Value: bson.M{"_id": bson.M{"$toString": "$_id"}, "name": 1, "sku": 1, "stock": 1}}},
	}); err != nil {
		return s, err
	}
	return s, nil
}

func (h *DashboardController) Stats(c *gin.Context) {
	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	stats, err := h.collect(ctx)
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	response.OK(c, stats)
}

func (h *DashboardController) ListUsers(c *gin.Context) {
	filter := bson.M{}
	if role := c.Query("role"); role != "" {
		if !models.IsValidRole(role) {
			response.BadRequest(c, "Invalid role")
			return
		}
		filter["role"] = role
	}
	switch c.Query("active") {
	case "true":
		filter["isActive"] = true
	case "false":
		filter["isActive"] = false
	}
	if s := strings.TrimSpace(c.Query("search")); s != "" {
		filter["$or"] = bson.A{
			bson.M{"name": containsFold(s)},
			bson.M{"email": containsFold(s)},
		}
	}
	page, limit := response.PageParams(c)

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	total, err := h.users.CountDocuments(ctx, filter)
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	cursor, err := h.users.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(response.Skip(page, limit)).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"password": 0}))
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		response.DBError(c, err, "")
		return
	}
	response.Paginated(c, users, page, limit, total)
}

type userAdminInput struct {
	Role     *string `json:"role" binding:"omitempty,oneof=customer seller admin"`
	IsActive *bool   `json:"isActive"`
}

func (h *DashboardController) UpdateUser(c *gin.Context) {
	id, ok := paramID(c, "id", "user")
	if !ok {
		return
	}
	var body userAdminInput
	if !bind(c, &body) {
		return
	}
	if body.Role == nil && body.IsActive == nil {
		response.BadRequest(c, "Nothing to update")
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	if id == uid {
		response.BadRequest(c, "You cannot change your own account")
		return
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	set := bson.M{"updatedAt": h.now()}
	if body.Role != nil {
		set["role"] = *body.Role
	}
	if body.IsActive != nil {
		set["isActive"] = *body.IsActive
	}
	var user models.User
	err := h.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&user)
	if err != nil {
		response.DBError(c, err, "User not found")
		return
	}

	fields := map[string]any{"user_id": id.Hex()}
	for k, v := range set {
		if k != "updatedAt" {
			fields[k] = fmt.Sprint(v)
		}
	}
	logger.Audit(c, "user.update", fields)
	response.Message(c, "User updated", user)
}
