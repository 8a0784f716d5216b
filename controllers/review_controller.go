package controllers

import (
	"context"
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

type ReviewController struct {
	reviews  *mongo.Collection
	products *mongo.Collection
	orders   *mongo.Collection
	users    *mongo.Collection
}

func NewReviewController(reviews, products, orders, users *mongo.Collection) *ReviewController {
	return &ReviewController{reviews: reviews, products: products, orders: orders, users: users}
}

type reviewInput struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Title   string `json:"title" binding:"max=100"`
	Comment string `json:"comment" binding:"required,min=3,max=1000"`
}

type reviewUpdateInput struct {
	Rating  *int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Title   *string `json:"title" binding:"omitempty,max=100"`
	Comment *string `json:"comment" binding:"omitempty,min=3,max=1000"`
}

type reviewPage struct {
	Items      []models.Review      `json:"items"`
	Pagination response.Pagination  `json:"pagination"`
	Summary    models.RatingSummary `json:"summary"`
}

func (h *ReviewController) ratingBuckets(ctx context.Context, productID primitive.ObjectID) ([]models.RatingBucket, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"product": productID}}},
		{{Key: "$group", Value: bson.M{"_id": "$rating", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := h.reviews.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var buckets []models.RatingBucket
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// recomputeRating refreshes the product's denormalized rating from its reviews.
func (h *ReviewController) recomputeRating(ctx context.Context, productID primitive.ObjectID) error {
	buckets, err := h.ratingBuckets(ctx, productID)
	if err != nil {
		return err
	}
	s := models.SummarizeRatings(buckets)
	_, err = h.products.UpdateOne(ctx, bson.M{"_id": productID},
		bson.M{"$set": bson.M{"rating": models.Rating{Average: s.Average, Count: s.Count}}})
	return err
}

func (h *ReviewController) refreshRating(ctx context.Context, c *gin.Context, productID primitive.ObjectID) {
	if err := h.recomputeRating(context.WithoutCancel(ctx), productID); err != nil {
		logger.Error(c, "review.recompute_rating", err, map[string]any{"product_id": productID.Hex()})
	}
}

func (h *ReviewController) ListForProduct(c *gin.Context) {
	productID, ok := paramID(c, "id", "product")
	if !ok {
		return
	}
	page, limit := response.PageParams(c)
	filter := bson.M{"product": productID}
	sort := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	switch c.Query("sort") {
	case "rating_high":
		sort = bson.D{{Key: "rating", Value: -1}, {Key: "createdAt", Value: -1}}
	case "rating_low":
		sort = bson.D{{Key: "rating", Value: 1}, {Key: "createdAt", Value: -1}}
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	total, err := h.reviews.CountDocuments(ctx, filter)
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	cursor, err := h.reviews.Find(ctx, filter,
		options.Find().SetSort(sort).SetSkip(response.Skip(page, limit)).SetLimit(int64(limit)))
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	items := []models.Review{}
	if err := cursor.All(ctx, &items); err != nil {
		response.DBError(c, err, "")
		return
	}
	buckets, err := h.ratingBuckets(ctx, productID)
	if err != nil {
		response.DBError(c, err, "")
		return
	}

	response.OK(c, reviewPage{
		Items:      items,
		Pagination: response.NewPagination(page, limit, total),
		Summary:    models.SummarizeRatings(buckets),
	})
}

func (h *ReviewController) Create(c *gin.Context) {
	productID, ok := paramID(c, "id", "product")
	if !ok {
		return
	}
	var body reviewInput
	if !bind(c, &body) {
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	var product models.Product
	if err := h.products.FindOne(ctx, bson.M{"_id": productID, "isActive": true},
		options.FindOne().SetProjection(bson.M{"_id": 1, "seller": 1})).Decode(&product); err != nil {
		response.DBError(c, err, "Product not found")
		return
	}
	if product.Seller == uid {
		response.BadRequest(c, "You cannot review your own product")
		return
	}
	var user models.User
	if err := h.users.FindOne(ctx, bson.M{"_id": uid},
		options.FindOne().SetProjection(bson.M{"name": 1})).Decode(&user); err != nil {
		response.DBError(c, err, "User not found")
		return
	}
	delivered, err := h.orders.CountDocuments(ctx, bson.M{
		"user":  uid,
		"items": bson.M{"$elemMatch": bson.M{"productId": productID, "status": models.OrderDelivered}},
	})
	if err != nil {
		response.DBError(c, err, "")
		return
	}

	now := time.Now()
	review := models.Review{
		ID:               primitive.NewObjectID(),
		Product:          productID,
		User:             uid,
		UserName:         user.Name,
		Rating:           body.Rating,
		Title:            strings.TrimSpace(body.Title),
		Comment:          strings.TrimSpace(body.Comment),
		VerifiedPurchase: delivered > 0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if _, err := h.reviews.InsertOne(ctx, review); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			response.Conflict(c, "You have already reviewed this product")
			return
		}
		response.DBError(c, err, "")
		return
	}
	h.refreshRating(ctx, c, productID)

	logger.Info(c, "review.create", map[string]any{"product_id": productID.Hex(), "rating": body.Rating})
	response.Created(c, "Review added", review)
}

func (h *ReviewController) Update(c *gin.Context) {
	id, ok := paramID(c, "id", "review")
	if !ok {
		return
	}
	var body reviewUpdateInput
	if !bind(c, &body) {
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	var review models.Review
	if err := h.reviews.FindOne(ctx, bson.M{"_id": id}).Decode(&review); err != nil {
		response.DBError(c, err, "Review not found")
		return
	}
	if review.User != uid {
		response.Forbidden(c, "You can only edit your own reviews")
		return
	}

	set := bson.M{"updatedAt": time.Now()}
	if body.Rating != nil {
		set["rating"] = *body.Rating
	}
	if body.Title != nil {
		set["title"] = strings.TrimSpace(*body.Title)
	}
	if body.Comment != nil {
		set["comment"] = strings.TrimSpace(*body.Comment)
	}

	var updated models.Review
	if err := h.reviews.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated); err != nil {
		response.DBError(c, err, "Review not found")
		return
	}
	if body.Rating != nil {
		h.refreshRating(ctx, c, review.Product)
	}
	response.Message(c, "Review updated", updated)
}

// Delete removes a review. Authors delete their own; admins may delete any.
func (h *ReviewController) Delete(c *gin.Context) {
	id, ok := paramID(c, "id", "review")
	if !ok {
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	var review models.Review
	if err := h.reviews.FindOne(ctx, bson.M{"_id": id}).Decode(&review); err != nil {
		response.DBError(c, err, "Review not found")
		return
	}
	if review.User != uid && !isAdmin(c) {
		response.Forbidden(c, "You can only delete your own reviews")
		return
	}
	if _, err := h.reviews.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		response.DBError(c, err, "")
		return
	}
	h.refreshRating(ctx, c, review.Product)

	if review.User != uid {
		logger.Audit(c, "review.delete", map[string]any{"review_id": id.Hex(), "author": review.User.Hex()})
	}
	response.Message(c, "Review deleted", nil)
}
