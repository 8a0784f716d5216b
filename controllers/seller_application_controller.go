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

	"github.com/nomanqadri34/vcx-mart-sub002/logger"
	"github.com/nomanqadri34/vcx-mart-sub002/models"
	"github.com/nomanqadri34/vcx-mart-sub002/notify"
	"github.com/nomanqadri34/vcx-mart-sub002/response"
)

type SellerApplicationController struct {
	applications *mongo.Collection
	users        *mongo.Collection
	notifier     notify.Notifier
	now          func() time.Time
}

func NewSellerApplicationController(applications, users *mongo.Collection, notifier notify.Notifier) *SellerApplicationController {
	return &SellerApplicationController{applications: applications, users: users, notifier: notifier, now: time.Now}
}

type applicationInput struct {
	BusinessName string             `json:"businessName" binding:"required,min=2,max=100"`
	BusinessType string             `json:"businessType" binding:"required,oneof=individual proprietorship partnership llp private_limited public_limited"`
	GSTIN        string             `json:"gstin" binding:"omitempty,gstin"`
	PAN          string             `json:"pan" binding:"required,pan"`
	Phone        string             `json:"phone" binding:"required,phone"`
	Address      addressInput       `json:"address" binding:"required"`
	BankAccount  models.BankAccount `json:"bankAccount" binding:"required"`
	Categories   []string           `json:"categories" binding:"required,min=1,max=10,dive,objectid"`
	Description  string             `json:"description" binding:"required,min=20,max=1000"`
}

type rejectInput struct {
	Reason string `json:"reason" binding:"required,min=5,max=500"`
}

var openStatuses = bson.A{models.ApplicationPending, models.ApplicationUnderReview}

func (in applicationInput) toModel(user *models.User, now time.Time) models.SellerApplication {
	cats := make([]primitive.ObjectID, 0, len(in.Categories))
	for _, hex := range in.Categories {
		id, _ := primitive.ObjectIDFromHex(hex)
		cats = append(cats, id)
	}
	bank := in.BankAccount
	bank.HolderName = strings.TrimSpace(bank.HolderName)
	bank.IFSC = strings.ToUpper(strings.TrimSpace(bank.IFSC))
	return models.SellerApplication{
		ID:           primitive.NewObjectID(),
		User:         user.ID,
		BusinessName: strings.TrimSpace(in.BusinessName),
		BusinessType: in.BusinessType,
		GSTIN:        strings.ToUpper(strings.TrimSpace(in.GSTIN)),
		PAN:          strings.ToUpper(strings.TrimSpace(in.PAN)),
		Phone:        in.Phone,
		Email:        user.Email,
		Address:      in.Address.toModel(primitive.NewObjectID()),
		BankAccount:  bank,
		Categories:   cats,
		Description:  strings.TrimSpace(in.Description),
		Status:       models.ApplicationPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func masked(a models.SellerApplication) models.SellerApplication {
	a.BankAccount = a.BankAccount.Masked()
	return a
}

func (h *SellerApplicationController) Submit(c *gin.Context) {
	var body applicationInput
	if !bind(c, &body) {
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	var user models.User
	if err := h.users.FindOne(ctx, bson.M{"_id": uid}).Decode(&user); err != nil {
		response.DBError(c, err, "User not found")
		return
	}
	if user.Role != models.RoleCustomer {
		response.BadRequest(c, "Only customers can apply to become sellers")
		return
	}
	open, err := h.applications.CountDocuments(ctx, bson.M{"user": uid, "status": bson.M{"$in": openStatuses}})
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	if open > 0 {
		response.Conflict(c, "You already have an application under review")
		return
	}

	app := body.toModel(&user, h.now())
	if _, err := h.applications.InsertOne(ctx, app); err != nil {
		response.DBError(c, err, "")
		return
	}
	ref := models.SellerApplicationRef{ApplicationID: app.ID, Status: app.Status, SubmittedAt: app.CreatedAt}
	if _, err := h.users.UpdateOne(ctx, bson.M{"_id": uid},
		bson.M{"$set": bson.M{"sellerApplication": ref, "updatedAt": app.CreatedAt}}); err != nil {
		logger.Error(c, "seller_application.mirror", err, map[string]any{"application_id": app.ID.Hex()})
	}

	logger.Info(c, "seller_application.submit", map[string]any{"application_id": app.ID.Hex()})
	response.Created(c, "Application submitted", masked(app))
}

// Mine returns the caller's most recent application.
func (h *SellerApplicationController) Mine(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	var app models.SellerApplication
	err := h.applications.FindOne(ctx, bson.M{"user": uid},
		options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})).Decode(&app)
	if err != nil {
		response.DBError(c, err, "No seller application found")
		return
	}
	response.OK(c, masked(app))
}

func (h *SellerApplicationController) AdminList(c *gin.Context) {
	filter := bson.M{}
	if st := c.Query("status"); st != "" {
		if !models.IsValidApplicationStatus(st) {
			response.BadRequest(c, "Invalid status")
			return
		}
		filter["status"] = st
	}
	if s := strings.TrimSpace(c.Query("search")); s != "" {
		filter["$or"] = bson.A{
			bson.M{"businessName": containsFold(s)},
			bson.M{"email": containsFold(s)},
		}
	}
	page, limit := response.PageParams(c)

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	total, err := h.applications.CountDocuments(ctx, filter)
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(response.Skip(page, limit)).SetLimit(int64(limit))
	cursor, err := h.applications.Find(ctx, filter, opts)
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	apps := []models.SellerApplication{}
	if err := cursor.All(ctx, &apps); err != nil {
		response.DBError(c, err, "")
		return
	}
	for i := range apps {
		apps[i] = masked(apps[i])
	}
	response.Paginated(c, apps, page, limit, total)
}

func (h *SellerApplicationController) AdminGet(c *gin.Context) {
	id, ok := paramID(c, "id", "application")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	var app models.SellerApplication
	if err := h.applications.FindOne(ctx, bson.M{"_id": id}).Decode(&app); err != nil {
		response.DBError(c, err, "Application not found")
		return
	}
	response.OK(c, app)
}

func (h *SellerApplicationController) Review(c *gin.Context) {
	h.decide(c, models.ApplicationUnderReview, "")
}

func (h *SellerApplicationController) Approve(c *gin.Context) {
	h.decide(c, models.ApplicationApproved, "")
}

func (h *SellerApplicationController) Reject(c *gin.Context) {
	var body rejectInput
	if !bind(c, &body) {
		return
	}
	h.decide(c, models.ApplicationRejected, strings.TrimSpace(body.Reason))
}

var errApplicationChanged = errors.New("application was modified concurrently")

// decide moves an application to next. Approval also promotes the applicant
// to seller.
func (h *SellerApplicationController) decide(c *gin.Context, next, reason string) {
	id, ok := paramID(c, "id", "application")
	if !ok {
		return
	}
	reviewer, ok := currentUser(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, writeTimeout)
	defer cancel()

	var app models.SellerApplication
	if err := h.applications.FindOne(ctx, bson.M{"_id": id}).Decode(&app); err != nil {
		response.DBError(c, err, "Application not found")
		return
	}
	if !models.CanTransitionApplication(app.Status, next) {
		response.BadRequest(c, fmt.Sprintf("Cannot move application from %s to %s", app.Status, next))
		return
	}

	updated, err := h.transition(ctx, &app, next, reason, reviewer)
	if errors.Is(err, errApplicationChanged) {
		response.Conflict(c, "Application was updated by someone else, please retry")
		return
	}
	if err != nil {
		response.DBError(c, err, "Application not found")
		return
	}

	if err := h.mirror(ctx, updated); err != nil {
		logger.Error(c, "seller_application.mirror", err, map[string]any{"application_id": id.Hex()})
		_ = c.Error(err)
		response.InternalError(c)
		return
	}

	if next != models.ApplicationUnderReview {
		var applicant models.User
		if err := h.users.FindOne(ctx, bson.M{"_id": app.User}).Decode(&applicant); err == nil {
			h.notifier.SellerApplicationDecided(ctx, applicant, *updated)
		}
	}
	logger.Audit(c, "seller_application."+next, map[string]any{"application_id": id.Hex(), "user_id": app.User.Hex()})
	response.Message(c, "Application "+strings.ReplaceAll(next, "_", " "), updated)
}

func (h *SellerApplicationController) transition(ctx context.Context, app *models.SellerApplication, next, reason string, reviewer primitive.ObjectID) (*models.SellerApplication, error) {
	now := h.now()
	set := bson.M{"status": next, "updatedAt": now, "reviewedBy": reviewer, "reviewedAt": now}
	if reason != "" {
		set["rejectionReason"] = reason
	}
	var updated models.SellerApplication
	err := h.applications.FindOneAndUpdate(ctx,
		bson.M{"_id": app.ID, "status": app.Status},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errApplicationChanged
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// mirror copies the application state onto the applicant's user document.
// An approval also grants the seller role and profile, except to admins.
func (h *SellerApplicationController) mirror(ctx context.Context, app *models.SellerApplication) error {
	set := bson.M{
		"sellerApplication.applicationId": app.ID,
		"sellerApplication.status":        app.Status,
		"sellerApplication.submittedAt":   app.CreatedAt,
		"sellerApplication.reviewedAt":    app.ReviewedAt,
		"updatedAt":                       app.UpdatedAt,
	}
	if _, err := h.users.UpdateOne(ctx, bson.M{"_id": app.User}, bson.M{"$set": set}); err != nil {
		return err
	}
	if app.Status != models.ApplicationApproved {
		return nil
	}
	_, err := h.users.UpdateOne(ctx,
		bson.M{"_id": app.User, "role": bson.M{"$ne": models.RoleAdmin}},
		bson.M{"$set": bson.M{"role": models.RoleSeller, "sellerProfile": app.ProfileFor(app.UpdatedAt)}})
	return err
}
