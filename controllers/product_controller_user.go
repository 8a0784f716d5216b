package controllers

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nomanqadri34/vcx-mart-sub002/middleware"
	"github.com/nomanqadri34/vcx-mart-sub002/models"
	"github.com/nomanqadri34/vcx-mart-sub002/response"
)

type ProductController struct {
	products   *mongo.Collection
	categories *mongo.Collection
	reviews    *mongo.Collection
	skuExists  models.SKUExists
}

func NewProductController(products, categories, reviews *mongo.Collection, skuExists models.SKUExists) *ProductController {
	return &ProductController{products: products, categories: categories, reviews: reviews, skuExists: skuExists}
}

type productQuery struct {
	Category string   `form:"category" binding:"max=80"`
	Search   string   `form:"search" binding:"max=100"`
	MinPrice *float64 `form:"minPrice" binding:"omitempty,gte=0"`
	MaxPrice *float64 `form:"maxPrice" binding:"omitempty,gte=0"`
	Brand    string   `form:"brand" binding:"max=60"`
	Size     string   `form:"size" binding:"max=10"`
	Featured *bool    `form:"featured"`
	Sort     string   `form:"sort" binding:"omitempty,oneof=newest price_asc price_desc rating popular"`
}

// productFilter translates catalog query params into a Mongo filter. The
// category match goes through categoryPath so subcategories are included.
func productFilter(q productQuery, category *primitive.ObjectID) bson.M {
	filter := bson.M{"isActive": true}
	if category != nil {
		filter["categoryPath"] = *category
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		filter["$or"] = bson.A{
			bson.M{"name": containsFold(s)},
			bson.M{"brand": containsFold(s)},
			bson.M{"tags": containsFold(s)},
		}
	}
	price := bson.M{}
	if q.MinPrice != nil {
		price["$gte"] = *q.MinPrice
	}
	if q.MaxPrice != nil {
		price["$lte"] = *q.MaxPrice
	}
	if len(price) > 0 {
		filter["price"] = price
	}
	if q.Brand != "" {
		filter["brand"] = equalsFold(q.Brand)
	}
	if q.Size != "" {
		filter["sizes"] = bson.M{"$elemMatch": bson.M{"size": equalsFold(q.Size), "stock": bson.M{"$gt": 0}}}
	}
	if q.Featured != nil {
		filter["isFeatured"] = *q.Featured
	}
	return filter
}

func productSort(sort string) bson.D {
	switch sort {
	case "price_asc":
		return bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	case "price_desc":
		return bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: 1}}
	case "rating":
		return bson.D{{Key: "rating.average", Value: -1}, {Key: "rating.count", Value: -1}, {Key: "_id", Value: 1}}
	case "popular":
		return bson.D{{Key: "soldCount", Value: -1}, {Key: "_id", Value: 1}}
	}
	return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
}

func (h *ProductController) List(c *gin.Context) {
	var q productQuery
	if !bindQuery(c, &q) {
		return
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		response.BadRequest(c, "minPrice cannot be greater than maxPrice")
		return
	}
	page, limit := response.PageParams(c)

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	var category *primitive.ObjectID
	if q.Category != "" {
		id, err := h.resolveCategory(ctx, q.Category)
		if errors.Is(err, mongo.ErrNoDocuments) {
			response.Paginated(c, []models.Product{}, page, limit, 0)
			return
		}
		if err != nil {
			response.DBError(c, err, "")
			return
		}
		category = &id
	}

	h.paginate(ctx, c, productFilter(q, category), productSort(q.Sort), page, limit)
}

func (h *ProductController) resolveCategory(ctx context.Context, key string) (primitive.ObjectID, error) {
	if id, err := primitive.ObjectIDFromHex(key); err == nil {
		return id, nil
	}
	var cat models.Category
	err := h.categories.FindOne(ctx, bson.M{"slug": strings.ToLower(key)},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Decode(&cat)
	return cat.ID, err
}

func (h *ProductController) paginate(ctx context.Context, c *gin.Context, filter bson.M, sort bson.D, page, limit int) {
	total, err := h.products.CountDocuments(ctx, filter)
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	opts := options.Find().SetSort(sort).SetSkip(response.Skip(page, limit)).SetLimit(int64(limit))
	cursor, err := h.products.Find(ctx, filter, opts)
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		response.DBError(c, err, "")
		return
	}
	response.Paginated(c, products, page, limit, total)
}

// Get serves a product by id or slug. Inactive products are only visible to
// their seller and to admins.
func (h *ProductController) Get(c *gin.Context) {
	key := c.Param("id")
	filter := bson.M{"slug": strings.ToLower(key)}
	if id, err := primitive.ObjectIDFromHex(key); err == nil {
		filter = bson.M{"_id": id}
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	var p models.Product
	if err := h.products.FindOne(ctx, filter).Decode(&p); err != nil {
		response.DBError(c, err, "Product not found")
		return
	}
	if !p.IsActive {
		uid, _ := middleware.UserID(c)
		if uid != p.Seller && !isAdmin(c) {
			response.NotFound(c, "Product not found")
			return
		}
	}
	response.OK(c, p)
}
