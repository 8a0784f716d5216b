package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nomanqadri34/vcx-mart-sub002/logger"
	"github.com/nomanqadri34/vcx-mart-sub002/models"
	"github.com/nomanqadri34/vcx-mart-sub002/response"
)

type productInput struct {
	Name        string             `json:"name" binding:"required,min=2,max=200"`
	Description string             `json:"description" binding:"required,min=10,max=5000"`
	Brand       string             `json:"brand" binding:"max=60"`
	Category    string             `json:"category" binding:"required,objectid"`
	Price       float64            `json:"price" binding:"required,gt=0"`
	MRP         float64            `json:"mrp" binding:"omitempty,gtefield=Price"`
	Images      []string           `json:"images" binding:"required,min=1,max=10,dive,url"`
	Sizes       []models.SizeStock `json:"sizes" binding:"omitempty,max=20,dive"`
	Stock       int                `json:"stock" binding:"gte=0"`
	SKU         string             `json:"sku" binding:"omitempty,min=3,max=40"`
	Tags        []string           `json:"tags" binding:"max=20"`
	IsActive    *bool              `json:"isActive"`
	IsFeatured  *bool              `json:"isFeatured"`
}

type productUpdateInput struct {
	Name        *string            `json:"name" binding:"omitempty,min=2,max=200"`
	Description *string            `json:"description" binding:"omitempty,min=10,max=5000"`
	Brand       *string            `json:"brand" binding:"omitempty,max=60"`
	Category    *string            `json:"category" binding:"omitempty,objectid"`
	Price       *float64           `json:"price" binding:"omitempty,gt=0"`
	MRP         *float64           `json:"mrp" binding:"omitempty,gte=0"`
	Images      []string           `json:"images" binding:"omitempty,min=1,max=10,dive,url"`
	Sizes       []models.SizeStock `json:"sizes" binding:"omitempty,max=20,dive"`
	Stock       *int               `json:"stock" binding:"omitempty,gte=0"`
	SKU         *string            `json:"sku" binding:"omitempty,min=3,max=40"`
	Tags        []string           `json:"tags" binding:"omitempty,max=20"`
	IsActive    *bool              `json:"isActive"`
	IsFeatured  *bool              `json:"isFeatured"`
}

type stockInput struct {
	Size  string `json:"size" binding:"max=10"`
	Stock *int   `json:"stock" binding:"required,gte=0"`
}

var errDuplicateSize = errors.New("sizes must be unique")

func normalizeSizes(sizes []models.SizeStock) ([]models.SizeStock, error) {
	out := make([]models.SizeStock, 0, len(sizes))
	seen := map[string]bool{}
	for _, s := range sizes {
		s.Size = strings.ToUpper(strings.TrimSpace(s.Size))
		if s.Size == "" {
			continue
		}
		if seen[s.Size] {
			return nil, errDuplicateSize
		}
		seen[s.Size] = true
		out = append(out, s)
	}
	return out, nil
}

func productSlug(name string, id primitive.ObjectID) string {
	hex := id.Hex()
	return models.Slugify(name) + "-" + hex[len(hex)-6:]
}

func categoryPath(cat models.Category) []primitive.ObjectID {
	return append(append([]primitive.ObjectID{}, cat.Ancestors...), cat.ID)
}

func (h *ProductController) activeCategory(ctx context.Context, hex string) (*models.Category, error) {
	id, _ := primitive.ObjectIDFromHex(hex)
	var cat models.Category
	if err := h.categories.FindOne(ctx, bson.M{"_id": id, "isActive": true}).Decode(&cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (h *ProductController) Create(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var body productInput
	if !bind(c, &body) {
		return
	}
	sizes, err := normalizeSizes(body.Sizes)
	if err != nil {
		response.BadRequest(c, "Sizes must be unique")
		return
	}

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	cat, err := h.activeCategory(ctx, body.Category)
	if errors.Is(err, mongo.ErrNoDocuments) {
		response.BadRequest(c, "Category not found")
		return
	}
	if err != nil {
		response.DBError(c, err, "")
		return
	}

	sku := models.NormalizeSKU(body.SKU)
	if sku != "" {
		taken, err := h.skuExists(ctx, sku)
		if err != nil {
			response.DBError(c, err, "")
			return
		}
		if taken {
			response.Conflict(c, "SKU already exists")
			return
		}
	} else {
		sku, err = models.GenerateSKU(ctx, body.Name, h.skuExists)
		if err != nil {
			response.DBError(c, err, "")
			return
		}
	}

	now := time.Now()
	id := primitive.NewObjectID()
	p := models.Product{
		ID:           id,
		Seller:       uid,
		Name:         strings.TrimSpace(body.Name),
		Slug:         productSlug(body.Name, id),
		Description:  body.Description,
		Brand:        strings.TrimSpace(body.Brand),
		Category:     cat.ID,
		CategoryPath: categoryPath(*cat),
		Price:        body.Price,
		MRP:          body.MRP,
		Images:       body.Images,
		Sizes:        sizes,
		Stock:        models.TotalStock(sizes, body.Stock),
		SKU:          sku,
		Tags:         models.NormalizeTags(body.Tags),
		IsActive:     body.IsActive == nil || *body.IsActive,
		IsFeatured:   isAdmin(c) && body.IsFeatured != nil && *body.IsFeatured,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := h.products.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			response.Conflict(c, "SKU already exists")
			return
		}
		response.DBError(c, err, "")
		return
	}

	logger.Audit(c, "product.create", map[string]any{"product_id": p.ID.Hex(), "sku": p.SKU})
	response.Created(c, "Product created", p)
}

// ownedProduct loads the product at :id when the caller may manage it.
func (h *ProductController) ownedProduct(ctx context.Context, c *gin.Context) (*models.Product, bool) {
	uid, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	id, ok := paramID(c, "id", "product")
	if !ok {
		return nil, false
	}
	var p models.Product
	if err := h.products.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		response.DBError(c, err, "Product not found")
		return nil, false
	}
	if p.Seller != uid && !isAdmin(c) {
		logger.Security(c, "product.access.denied", map[string]any{"product_id": id.Hex()})
		response.Forbidden(c, "You do not own this product")
		return nil, false
	}
	return &p, true
}

func (h *ProductController) Update(c *gin.Context) {
	var body productUpdateInput
	if !bind(c, &body) {
		return
	}

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	p, ok := h.ownedProduct(ctx, c)
	if !ok {
		return
	}

	set := bson.M{"updatedAt": time.Now()}
	if body.Name != nil {
		set["name"] = strings.TrimSpace(*body.Name)
	}
	if body.Description != nil {
		set["description"] = *body.Description
	}
	if body.Brand != nil {
		set["brand"] = strings.TrimSpace(*body.Brand)
	}
	price := p.Price
	if body.Price != nil {
		price = *body.Price
		set["price"] = price
	}
	if body.MRP != nil {
		if *body.MRP > 0 && *body.MRP < price {
			response.BadRequest(c, "MRP cannot be lower than price")
			return
		}
		set["mrp"] = *body.MRP
	}
	if body.Images != nil {
		set["images"] = body.Images
	}
	if body.Tags != nil {
		set["tags"] = models.NormalizeTags(body.Tags)
	}
	if body.IsActive != nil {
		set["isActive"] = *body.IsActive
	}
	if body.IsFeatured != nil && isAdmin(c) {
		set["isFeatured"] = *body.IsFeatured
	}

	if body.Category != nil {
		cat, err := h.activeCategory(ctx, *body.Category)
		if errors.Is(err, mongo.ErrNoDocuments) {
			response.BadRequest(c, "Category not found")
			return
		}
		if err != nil {
			response.DBError(c, err, "")
			return
		}
		set["category"], set["categoryPath"] = cat.ID, categoryPath(*cat)
	}

	sizes, stock := p.Sizes, p.Stock
	if body.Sizes != nil {
		s, err := normalizeSizes(body.Sizes)
		if err != nil {
			response.BadRequest(c, "Sizes must be unique")
			return
		}
		sizes = s
	}
	if body.Stock != nil {
		stock = *body.Stock
	}
	if body.Sizes != nil || body.Stock != nil {
		set["sizes"] = sizes
		set["stock"] = models.TotalStock(sizes, stock)
	}

	if body.SKU != nil {
		sku := models.NormalizeSKU(*body.SKU)
		if sku != p.SKU {
			taken, err := h.skuExists(ctx, sku)
			if err != nil {
				response.DBError(c, err, "")
				return
			}
			if taken {
				response.Conflict(c, "SKU already exists")
				return
			}
			set["sku"] = sku
		}
	}

	var updated models.Product
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := h.products.FindOneAndUpdate(ctx, bson.M{"_id": p.ID}, bson.M{"$set": set}, opts).Decode(&updated); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			response.Conflict(c, "SKU already exists")
			return
		}
		response.DBError(c, err, "Product not found")
		return
	}

	logger.Audit(c, "product.update", map[string]any{"product_id": p.ID.Hex()})
	response.Message(c, "Product updated", updated)
}

func (h *ProductController) Delete(c *gin.Context) {
	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	p, ok := h.ownedProduct(ctx, c)
	if !ok {
		return
	}
	if _, err := h.products.DeleteOne(ctx, bson.M{"_id": p.ID}); err != nil {
		response.DBError(c, err, "Product not found")
		return
	}
	if _, err := h.reviews.DeleteMany(ctx, bson.M{"product": p.ID}); err != nil {
		logger.Error(c, "product.delete.reviews", err, map[string]any{"product_id": p.ID.Hex()})
	}

	logger.Audit(c, "product.delete", map[string]any{"product_id": p.ID.Hex()})
	response.Message(c, "Product deleted", nil)
}

func (h *ProductController) UpdateStock(c *gin.Context) {
	var body stockInput
	if !bind(c, &body) {
		return
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	p, ok := h.ownedProduct(ctx, c)
	if !ok {
		return
	}

	size := strings.ToUpper(strings.TrimSpace(body.Size))
	if _, found := p.StockFor(size); !found {
		if len(p.Sizes) > 0 && size == "" {
			response.BadRequest(c, "Size is required for this product")
		} else {
			response.BadRequest(c, "Size not available for this product")
		}
		return
	}

	if len(p.Sizes) == 0 {
		p.Stock = *body.Stock
	} else {
		canonical := p.CanonicalSize(size)
		for i := range p.Sizes {
			if p.Sizes[i].Size == canonical {
				p.Sizes[i].Stock = *body.Stock
			}
		}
		p.Stock = models.TotalStock(p.Sizes, p.Stock)
	}
	p.UpdatedAt = time.Now()

	_, err := h.products.UpdateOne(ctx, bson.M{"_id": p.ID},
		bson.M{"$set": bson.M{"sizes": p.Sizes, "stock": p.Stock, "updatedAt": p.UpdatedAt}})
	if err != nil {
		response.DBError(c, err, "Product not found")
		return
	}

	logger.Audit(c, "product.stock", map[string]any{"product_id": p.ID.Hex(), "size": size, "stock": *body.Stock})
	response.Message(c, "Stock updated", p)
}

// SellerList lists the caller's own products, active or not.
func (h *ProductController) SellerList(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	page, limit := response.PageParams(c)
	filter := bson.M{"seller": uid}
	switch c.Query("status") {
	case "active":
		filter["isActive"] = true
	case "inactive":
		filter["isActive"] = false
	}
	if s := c.Query("search"); s != "" {
		filter["$or"] = bson.A{bson.M{"name": containsFold(s)}, bson.M{"sku": containsFold(s)}}
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()
	h.paginate(ctx, c, filter, productSort(c.Query("sort")), page, limit)
}

// AdminList lists every product, with optional seller and status filters.
func (h *ProductController) AdminList(c *gin.Context) {
	page, limit := response.PageParams(c)
	filter := bson.M{}
	if s := c.Query("seller"); s != "" {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			response.BadRequest(c, "Invalid seller ID")
			return
		}
		filter["seller"] = id
	}
	switch c.Query("status") {
	case "active":
		filter["isActive"] = true
	case "inactive":
		filter["isActive"] = false
	}
	if s := c.Query("search"); s != "" {
		filter["$or"] = bson.A{bson.M{"name": containsFold(s)}, bson.M{"sku": containsFold(s)}}
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()
	h.paginate(ctx, c, filter, productSort(c.Query("sort")), page, limit)
}
