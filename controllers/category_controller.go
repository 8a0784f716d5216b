package controllers

import (
	"context"
	"errors"
	"strconv"
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
	"github.com/nomanqadri34/vcx-mart-sub002/validation"
)

type CategoryController struct {
	categories *mongo.Collection
	products   *mongo.Collection
}

func NewCategoryController(categories, products *mongo.Collection) *CategoryController {
	return &CategoryController{categories: categories, products: products}
}

type categoryInput struct {
	Name        string  `json:"name" binding:"required,min=2,max=60"`
	Description string  `json:"description" binding:"max=500"`
	Image       string  `json:"image" binding:"omitempty,url"`
	Parent      *string `json:"parent" binding:"omitempty,objectid"`
	SortOrder   int     `json:"sortOrder"`
	IsActive    *bool   `json:"isActive"`
}

type categoryUpdateInput struct {
	Name        *string `json:"name" binding:"omitempty,min=2,max=60"`
	Description *string `json:"description" binding:"omitempty,max=500"`
	Image       *string `json:"image" binding:"omitempty,url"`
	// an empty string moves the category to the root
	Parent    *string `json:"parent"`
	SortOrder *int    `json:"sortOrder"`
	IsActive  *bool   `json:"isActive"`
}

type categoryDetail struct {
	models.Category
	Breadcrumbs []models.Category `json:"breadcrumbs"`
	Children    []models.Category `json:"children"`
}

func (h *CategoryController) List(c *gin.Context) {
	filter := bson.M{"isActive": true}
	switch p := c.Query("parent"); {
	case p == "root":
		filter["parent"] = nil
	case p != "":
		id, err := primitive.ObjectIDFromHex(p)
		if err != nil {
			response.BadRequest(c, "Invalid parent ID")
			return
		}
		filter["parent"] = id
	}
	if lv := c.Query("level"); lv != "" {
		level, err := strconv.Atoi(lv)
		if err != nil || level < 0 {
			response.BadRequest(c, "Invalid level")
			return
		}
		filter["level"] = level
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "level", Value: 1}, {Key: "sortOrder", Value: 1}, {Key: "name", Value: 1}})
	cats, err := h.find(ctx, filter, opts)
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	response.OK(c, cats)
}

func (h *CategoryController) Tree(c *gin.Context) {
	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	cats, err := h.find(ctx, bson.M{"isActive": true})
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	tree := models.BuildTree(cats)
	if tree == nil {
		tree = []*models.CategoryNode{}
	}
	response.OK(c, tree)
}

func (h *CategoryController) Get(c *gin.Context) {
	key := c.Param("idOrSlug")
	filter := bson.M{"slug": strings.ToLower(key)}
	if id, err := primitive.ObjectIDFromHex(key); err == nil {
		filter = bson.M{"_id": id}
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	var cat models.Category
	if err := h.categories.FindOne(ctx, filter).Decode(&cat); err != nil {
		response.DBError(c, err, "Category not found")
		return
	}
	if !cat.IsActive && !isAdmin(c) {
		response.NotFound(c, "Category not found")
		return
	}

	detail := categoryDetail{Category: cat, Breadcrumbs: []models.Category{}, Children: []models.Category{}}
	if len(cat.Ancestors) > 0 {
		anc, err := h.find(ctx, bson.M{"_id": bson.M{"$in": cat.Ancestors}})
		if err != nil {
			response.DBError(c, err, "")
			return
		}
		byID := make(map[primitive.ObjectID]models.Category, len(anc))
		for _, a := range anc {
			byID[a.ID] = a
		}
		for _, id := range cat.Ancestors {
			if a, ok := byID[id]; ok {
				detail.Breadcrumbs = append(detail.Breadcrumbs, a)
			}
		}
	}
	children, err := h.find(ctx, bson.M{"parent": cat.ID, "isActive": true},
		options.Find().SetSort(bson.D{{Key: "sortOrder", Value: 1}, {Key: "name", Value: 1}}))
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	detail.Children = children
	response.OK(c, detail)
}

func (h *CategoryController) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Category, error) {
	cursor, err := h.categories.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	cats := []models.Category{}
	if err := cursor.All(ctx, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

func (h *CategoryController) parentCategory(ctx context.Context, hex string) (*models.Category, error) {
	id, _ := primitive.ObjectIDFromHex(hex)
	var parent models.Category
	if err := h.categories.FindOne(ctx, bson.M{"_id": id}).Decode(&parent); err != nil {
		return nil, err
	}
	return &parent, nil
}

func (h *CategoryController) Create(c *gin.Context) {
	var body categoryInput
	if !bind(c, &body) {
		return
	}

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	now := time.Now()
	cat := models.Category{
		ID:          primitive.NewObjectID(),
		Name:        strings.TrimSpace(body.Name),
		Slug:        models.Slugify(body.Name),
		Description: body.Description,
		Image:       body.Image,
		SortOrder:   body.SortOrder,
		IsActive:    body.IsActive == nil || *body.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if cat.Slug == "" {
		response.BadRequest(c, "Name must contain letters or digits")
		return
	}

	var parent *models.Category
	if body.Parent != nil {
		p, err := h.parentCategory(ctx, *body.Parent)
		if errors.Is(err, mongo.ErrNoDocuments) {
			response.BadRequest(c, "Parent category not found")
			return
		}
		if err != nil {
			response.DBError(c, err, "")
			return
		}
		parent = p
		cat.Parent = &p.ID
	}
	cat.Ancestors, cat.Level = models.Lineage(parent)

	if _, err := h.categories.InsertOne(ctx, cat); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			response.Conflict(c, "A category with this name already exists")
			return
		}
		response.DBError(c, err, "")
		return
	}

	logger.Audit(c, "category.create", map[string]any{"category_id": cat.ID.Hex(), "slug": cat.Slug})
	response.Created(c, "Category created", cat)
}

func (h *CategoryController) Update(c *gin.Context) {
	id, ok := paramID(c, "id", "category")
	if !ok {
		return
	}
	var body categoryUpdateInput
	if !bind(c, &body) {
		return
	}
	if body.Parent != nil && *body.Parent != "" && !validation.IsObjectID(*body.Parent) {
		response.BadRequest(c, "Invalid parent ID")
		return
	}

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	var cat models.Category
	if err := h.categories.FindOne(ctx, bson.M{"_id": id}).Decode(&cat); err != nil {
		response.DBError(c, err, "Category not found")
		return
	}

	set := bson.M{"updatedAt": time.Now()}
	if body.Name != nil {
		cat.Name = strings.TrimSpace(*body.Name)
		cat.Slug = models.Slugify(cat.Name)
		if cat.Slug == "" {
			response.BadRequest(c, "Name must contain letters or digits")
			return
		}
		set["name"], set["slug"] = cat.Name, cat.Slug
	}
	if body.Description != nil {
		set["description"] = *body.Description
	}
	if body.Image != nil {
		set["image"] = *body.Image
	}
	if body.SortOrder != nil {
		set["sortOrder"] = *body.SortOrder
	}
	if body.IsActive != nil {
		set["isActive"] = *body.IsActive
	}

	moved := false
	if body.Parent != nil {
		var parent *models.Category
		if *body.Parent != "" {
			p, err := h.parentCategory(ctx, *body.Parent)
			if errors.Is(err, mongo.ErrNoDocuments) {
				response.BadRequest(c, "Parent category not found")
				return
			}
			if err != nil {
				response.DBError(c, err, "")
				return
			}
			if p.IsSelfOrDescendant(cat.ID) {
				response.BadRequest(c, "A category cannot be moved under itself or its descendants")
				return
			}
			parent = p
		}
		cat.Ancestors, cat.Level = models.Lineage(parent)
		if parent != nil {
			cat.Parent = &parent.ID
		} else {
			cat.Parent = nil
		}
		set["parent"], set["ancestors"], set["level"] = cat.Parent, cat.Ancestors, cat.Level
		moved = true
	}

	if _, err := h.categories.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			response.Conflict(c, "A category with this name already exists")
			return
		}
		response.DBError(c, err, "Category not found")
		return
	}

	if moved {
		if err := h.relink(ctx, cat); err != nil {
			logger.Error(c, "category.relink", err, map[string]any{"category_id": id.Hex()})
			_ = c.Error(err)
			response.InternalError(c)
			return
		}
	}

	var updated models.Category
	if err := h.categories.FindOne(ctx, bson.M{"_id": id}).Decode(&updated); err != nil {
		response.DBError(c, err, "Category not found")
		return
	}
	logger.Audit(c, "category.update", map[string]any{"category_id": id.Hex(), "moved": moved})
	response.Message(c, "Category updated", updated)
}

// relink rewrites ancestors and level below a moved category and the
// category paths of the products filed under the whole subtree.
func (h *CategoryController) relink(ctx context.Context, root models.Category) error {
	descendants, err := h.find(ctx, bson.M{"ancestors": root.ID})
	if err != nil {
		return err
	}
	updated := models.RelinkDescendants(root, descendants)

	if len(updated) > 0 {
		writes := make([]mongo.WriteModel, 0, len(updated))
		for _, d := range updated {
			writes = append(writes, mongo.NewUpdateOneModel().
				SetFilter(bson.M{"_id": d.ID}).
				SetUpdate(bson.M{"$set": bson.M{"ancestors": d.Ancestors, "level": d.Level, "updatedAt": time.Now()}}))
		}
		if _, err := h.categories.BulkWrite(ctx, writes); err != nil {
			return err
		}
	}

	for _, cat := range append([]models.Category{root}, updated...) {
		path := append(append([]primitive.ObjectID{}, cat.Ancestors...), cat.ID)
		if _, err := h.products.UpdateMany(ctx, bson.M{"category": cat.ID},
			bson.M{"$set": bson.M{"categoryPath": path}}); err != nil {
			return err
		}
	}
	return nil
}

func (h *CategoryController) Delete(c *gin.Context) {
	id, ok := paramID(c, "id", "category")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	children, err := h.categories.CountDocuments(ctx, bson.M{"parent": id})
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	if children > 0 {
		response.BadRequest(c, "Category has subcategories")
		return
	}
	products, err := h.products.CountDocuments(ctx, bson.M{"category": id})
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	if products > 0 {
		response.BadRequest(c, "Category has products")
		return
	}

	res, err := h.categories.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	if res.DeletedCount == 0 {
		response.NotFound(c, "Category not found")
		return
	}
	logger.Audit(c, "category.delete", map[string]any{"category_id": id.Hex()})
	response.Message(c, "Category deleted", nil)
}
