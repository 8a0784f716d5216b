package controllers

import (
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

type CouponController struct {
	coupons *mongo.Collection
	now     func() time.Time
}

func NewCouponController(coupons *mongo.Collection) *CouponController {
	return &CouponController{coupons: coupons, now: time.Now}
}

type couponCreateInput struct {
	Code           string    `json:"code" binding:"required,alphanum,min=3,max=20"`
	Description    string    `json:"description" binding:"max=200"`
	DiscountType   string    `json:"discountType" binding:"required,oneof=percentage fixed"`
	Value          float64   `json:"value" binding:"required,gt=0"`
	MinOrderAmount float64   `json:"minOrderAmount" binding:"gte=0"`
	MaxDiscount    float64   `json:"maxDiscount" binding:"gte=0"`
	ValidFrom      time.Time `json:"validFrom" binding:"required"`
	ValidUntil     time.Time `json:"validUntil" binding:"required,gtfield=ValidFrom"`
	UsageLimit     int       `json:"usageLimit" binding:"gte=0"`
	IsActive       *bool     `json:"isActive"`
}

type couponUpdateInput struct {
	Description    *string    `json:"description" binding:"omitempty,max=200"`
	DiscountType   *string    `json:"discountType" binding:"omitempty,oneof=percentage fixed"`
	Value          *float64   `json:"value" binding:"omitempty,gt=0"`
	MinOrderAmount *float64   `json:"minOrderAmount" binding:"omitempty,gte=0"`
	MaxDiscount    *float64   `json:"maxDiscount" binding:"omitempty,gte=0"`
	ValidFrom      *time.Time `json:"validFrom"`
	ValidUntil     *time.Time `json:"validUntil"`
	UsageLimit     *int       `json:"usageLimit" binding:"omitempty,gte=0"`
	IsActive       *bool      `json:"isActive"`
}

type couponValidateInput struct {
	Code     string  `json:"code" binding:"required,min=3,max=20"`
	Subtotal float64 `json:"subtotal" binding:"gte=0"`
}

var (
	errPercentageTooHigh = errors.New("percentage discount cannot exceed 100")
	errCouponWindow      = errors.New("validUntil must be after validFrom")
)

// checkCoupon enforces the rules that span more than one field.
func checkCoupon(cp models.Coupon) error {
	if cp.DiscountType == models.DiscountPercentage && cp.Value > 100 {
		return errPercentageTooHigh
	}
	if !cp.ValidUntil.After(cp.ValidFrom) {
		return errCouponWindow
	}
	return nil
}

func (h *CouponController) List(c *gin.Context) {
	page, limit := response.PageParams(c)
	filter := bson.M{}
	switch c.Query("active") {
	case "true":
		filter["isActive"] = true
	case "false":
		filter["isActive"] = false
	}
	if s := strings.TrimSpace(c.Query("search")); s != "" {
		filter["code"] = containsFold(s)
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	total, err := h.coupons.CountDocuments(ctx, filter)
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(response.Skip(page, limit)).SetLimit(int64(limit))
	cursor, err := h.coupons.Find(ctx, filter, opts)
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	coupons := []models.Coupon{}
	if err := cursor.All(ctx, &coupons); err != nil {
		response.DBError(c, err, "")
		return
	}
	response.Paginated(c, coupons, page, limit, total)
}

func (h *CouponController) Create(c *gin.Context) {
	var body couponCreateInput
	if !bind(c, &body) {
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	now := h.now()
	cp := models.Coupon{
		ID:             primitive.NewObjectID(),
		Code:           models.NormalizeCouponCode(body.Code),
		Description:    body.Description,
		DiscountType:   body.DiscountType,
		Value:          body.Value,
		MinOrderAmount: body.MinOrderAmount,
		MaxDiscount:    body.MaxDiscount,
		ValidFrom:      body.ValidFrom,
		ValidUntil:     body.ValidUntil,
		UsageLimit:     body.UsageLimit,
		IsActive:       body.IsActive == nil || *body.IsActive,
		CreatedBy:      uid,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := checkCoupon(cp); err != nil {
		response.BadRequest(c, sentence(err))
		return
	}

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	if _, err := h.coupons.InsertOne(ctx, cp); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			response.Conflict(c, "Coupon code already exists")
			return
		}
		response.DBError(c, err, "")
		return
	}
	logger.Audit(c, "coupon.create", map[string]any{"code": cp.Code})
	response.Created(c, "Coupon created", cp)
}

func (h *CouponController) Update(c *gin.Context) {
	id, ok := paramID(c, "id", "coupon")
	if !ok {
		return
	}
	var body couponUpdateInput
	if !bind(c, &body) {
		return
	}

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	var cp models.Coupon
	if err := h.coupons.FindOne(ctx, bson.M{"_id": id}).Decode(&cp); err != nil {
		response.DBError(c, err, "Coupon not found")
		return
	}

	set := bson.M{"updatedAt": h.now()}
	if body.Description != nil {
		cp.Description = *body.Description
		set["description"] = cp.Description
	}
	if body.DiscountType != nil {
		cp.DiscountType = *body.DiscountType
		set["discountType"] = cp.DiscountType
	}
	if body.Value != nil {
		cp.Value = *body.Value
		set["value"] = cp.Value
	}
	if body.MinOrderAmount != nil {
		cp.MinOrderAmount = *body.MinOrderAmount
		set["minOrderAmount"] = cp.MinOrderAmount
	}
	if body.MaxDiscount != nil {
		cp.MaxDiscount = *body.MaxDiscount
		set["maxDiscount"] = cp.MaxDiscount
	}
	if body.ValidFrom != nil {
		cp.ValidFrom = *body.ValidFrom
		set["validFrom"] = cp.ValidFrom
	}
	if body.ValidUntil != nil {
		cp.ValidUntil = *body.ValidUntil
		set["validUntil"] = cp.ValidUntil
	}
	if body.UsageLimit != nil {
		cp.UsageLimit = *body.UsageLimit
		set["usageLimit"] = cp.UsageLimit
	}
	if body.IsActive != nil {
		cp.IsActive = *body.IsActive
		set["isActive"] = cp.IsActive
	}
	if err := checkCoupon(cp); err != nil {
		response.BadRequest(c, sentence(err))
		return
	}

	if _, err := h.coupons.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}); err != nil {
		response.DBError(c, err, "Coupon not found")
		return
	}
	cp.UpdatedAt = set["updatedAt"].(time.Time)
	logger.Audit(c, "coupon.update", map[string]any{"coupon_id": id.Hex()})
	response.Message(c, "Coupon updated", cp)
}

func (h *CouponController) Delete(c *gin.Context) {
	id, ok := paramID(c, "id", "coupon")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	res, err := h.coupons.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	if res.DeletedCount == 0 {
		response.NotFound(c, "Coupon not found")
		return
	}
	logger.Audit(c, "coupon.delete", map[string]any{"coupon_id": id.Hex()})
	response.Message(c, "Coupon deleted", nil)
}

// Validate previews a coupon against a subtotal without consuming it.
func (h *CouponController) Validate(c *gin.Context) {
	var body couponValidateInput
	if !bind(c, &body) {
		return
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	var cp models.Coupon
	err := h.coupons.FindOne(ctx, bson.M{"code": models.NormalizeCouponCode(body.Code)}).Decode(&cp)
	if err != nil {
		response.DBError(c, err, "Coupon not found")
		return
	}
	if err := cp.Validate(body.Subtotal, h.now()); err != nil {
		response.BadRequest(c, sentence(err))
		return
	}
	response.OK(c, gin.H{
		"code":         cp.Code,
		"discountType": cp.DiscountType,
		"value":        cp.Value,
		"discount":     cp.Discount(body.Subtotal),
		"description":  cp.Description,
	})
}
