package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"github.com/nomanqadri34/vcx-mart-sub002/auth"
	"github.com/nomanqadri34/vcx-mart-sub002/logger"
	"github.com/nomanqadri34/vcx-mart-sub002/middleware"
	"github.com/nomanqadri34/vcx-mart-sub002/models"
	"github.com/nomanqadri34/vcx-mart-sub002/response"
)

// Revoker blacklists a token until it expires.
type Revoker interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
}

type AuthController struct {
	users   *mongo.Collection
	tokens  *auth.TokenManager
	revoker Revoker
}

func NewAuthController(users *mongo.Collection, tokens *auth.TokenManager, revoker Revoker) *AuthController {
	return &AuthController{users: users, tokens: tokens, revoker: revoker}
}

type registerInput struct {
	Name     string `json:"name" binding:"required,min=2,max=60"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Phone    string `json:"phone" binding:"omitempty,phone"`
}

type loginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type authResult struct {
	User      models.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

func (h *AuthController) Register(c *gin.Context) {
	var body registerInput
	if !bind(c, &body) {
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		_ = c.Error(err)
		response.InternalError(c)
		return
	}

	now := time.Now()
	user := models.User{
		ID:        primitive.NewObjectID(),
		Name:      strings.TrimSpace(body.Name),
		Email:     strings.ToLower(strings.TrimSpace(body.Email)),
		Password:  string(hashedPassword),
		Phone:     body.Phone,
		Role:      models.RoleCustomer,
		IsActive:  true,
		Addresses: []models.Address{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	if n, err := h.users.CountDocuments(ctx, bson.M{"email": user.Email}); err == nil && n > 0 {
		response.Conflict(c, "Email already registered")
		return
	}
	if _, err := h.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			response.Conflict(c, "Email already registered")
			return
		}
		response.DBError(c, err, "")
		return
	}

	token, exp, err := h.tokens.Issue(user.ID.Hex(), user.Role)
	if err != nil {
		_ = c.Error(err)
		response.InternalError(c)
		return
	}

	logger.Info(c, "auth.register", map[string]any{"user_id": user.ID.Hex()})
	response.Created(c, "Registration successful", authResult{User: user, Token: token, ExpiresAt: exp})
}

func (h *AuthController) Login(c *gin.Context) {
	var body loginInput
	if !bind(c, &body) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	var user models.User
	err := h.users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		logger.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": "unknown_email"})
		response.Unauthorized(c, "Invalid email or password")
		return
	}
	if err != nil {
		response.DBError(c, err, "")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(body.Password)); err != nil {
		logger.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": "bad_password"})
		response.Unauthorized(c, "Invalid email or password")
		return
	}
	if !user.IsActive {
		logger.Security(c, "auth.login.inactive", map[string]any{"user_id": user.ID.Hex()})
		response.Forbidden(c, "Account is deactivated")
		return
	}

	token, exp, err := h.tokens.Issue(user.ID.Hex(), user.Role)
	if err != nil {
		_ = c.Error(err)
		response.InternalError(c)
		return
	}

	now := time.Now()
	user.LastLoginAt = &now
	if _, err := h.users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{"lastLoginAt": now}}); err != nil {
		logger.Error(c, "auth.last_login", err, map[string]any{"user_id": user.ID.Hex()})
	}

	logger.Info(c, "auth.login", map[string]any{"user_id": user.ID.Hex()})
	response.Message(c, "Login successful", authResult{User: user, Token: token, ExpiresAt: exp})
}

func (h *AuthController) Logout(c *gin.Context) {
	token := c.GetString(middleware.TokenKey)
	exp, ok := c.Get(middleware.TokenExpiryKey)
	expiresAt, _ := exp.(time.Time)
	if !ok || expiresAt.IsZero() {
		expiresAt = time.Now().Add(24 * time.Hour)
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	if err := h.revoker.Revoke(ctx, token, expiresAt); err != nil {
		_ = c.Error(err)
		response.InternalError(c)
		return
	}
	logger.Info(c, "auth.logout", nil)
	response.Message(c, "Logout successful", nil)
}

func (h *AuthController) loadUser(ctx context.Context, c *gin.Context) (*models.User, bool) {
	uid, ok := currentUser(c)
	if !ok {
		return nil, false
	}
	var user models.User
	if err := h.users.FindOne(ctx, bson.M{"_id": uid}).Decode(&user); err != nil {
		response.DBError(c, err, "User not found")
		return nil, false
	}
	return &user, true
}

func (h *AuthController) Me(c *gin.Context) {
	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	user, ok := h.loadUser(ctx, c)
	if !ok {
		return
	}
	response.OK(c, user)
}

type profileInput struct {
	Name   *string `json:"name" binding:"omitempty,min=2,max=60"`
	Phone  *string `json:"phone" binding:"omitempty,phone"`
	Avatar *string `json:"avatar" binding:"omitempty,url"`
}

func (h *AuthController) UpdateMe(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var body profileInput
	if !bind(c, &body) {
		return
	}

	set := bson.M{"updatedAt": time.Now()}
	if body.Name != nil {
		set["name"] = strings.TrimSpace(*body.Name)
	}
	if body.Phone != nil {
		set["phone"] = *body.Phone
	}
	if body.Avatar != nil {
		set["avatar"] = *body.Avatar
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	var user models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := h.users.FindOneAndUpdate(ctx, bson.M{"_id": uid}, bson.M{"$set": set}, opts).Decode(&user); err != nil {
		response.DBError(c, err, "User not found")
		return
	}
	response.Message(c, "Profile updated", user)
}

type passwordInput struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=72"`
}

func (h *AuthController) ChangePassword(c *gin.Context) {
	var body passwordInput
	if !bind(c, &body) {
		return
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	user, ok := h.loadUser(ctx, c)
	if !ok {
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(body.CurrentPassword)); err != nil {
		logger.Security(c, "auth.password.fail", nil)
		response.BadRequest(c, "Current password is incorrect")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		_ = c.Error(err)
		response.InternalError(c)
		return
	}
	_, err = h.users.UpdateOne(ctx, bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{"password": string(hashed), "updatedAt": time.Now()}})
	if err != nil {
		response.DBError(c, err, "User not found")
		return
	}
	logger.Audit(c, "auth.password.change", nil)
	response.Message(c, "Password updated", nil)
}

type addressInput struct {
	Label     string `json:"label" binding:"max=30"`
	FullName  string `json:"fullName" binding:"required,min=2,max=80"`
	Phone     string `json:"phone" binding:"required,phone"`
	Line1     string `json:"line1" binding:"required,max=200"`
	Line2     string `json:"line2" binding:"max=200"`
	Landmark  string `json:"landmark" binding:"max=100"`
	City      string `json:"city" binding:"required,max=60"`
	State     string `json:"state" binding:"required,max=60"`
	Pincode   string `json:"pincode" binding:"required,pincode"`
	Country   string `json:"country" binding:"max=60"`
	IsDefault bool   `json:"isDefault"`
}

func (in addressInput) toModel(id primitive.ObjectID) models.Address {
	country := strings.TrimSpace(in.Country)
	if country == "" {
		country = "India"
	}
	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = "Home"
	}
	return models.Address{
		ID:        id,
		Label:     label,
		FullName:  strings.TrimSpace(in.FullName),
		Phone:     in.Phone,
		Line1:     strings.TrimSpace(in.Line1),
		Line2:     strings.TrimSpace(in.Line2),
		Landmark:  strings.TrimSpace(in.Landmark),
		City:      strings.TrimSpace(in.City),
		State:     strings.TrimSpace(in.State),
		Pincode:   in.Pincode,
		Country:   country,
		IsDefault: in.IsDefault,
	}
}

func (h *AuthController) ListAddresses(c *gin.Context) {
	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	user, ok := h.loadUser(ctx, c)
	if !ok {
		return
	}
	if user.Addresses == nil {
		user.Addresses = []models.Address{}
	}
	response.OK(c, user.Addresses)
}

// mutateAddresses loads the caller, applies fn to the address list and
// stores the result.
func (h *AuthController) mutateAddresses(c *gin.Context, msg string, status int, fn func([]models.Address) ([]models.Address, error)) {
	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	user, ok := h.loadUser(ctx, c)
	if !ok {
		return
	}
	addrs, err := fn(user.Addresses)
	if errors.Is(err, models.ErrAddressNotFound) {
		response.NotFound(c, "Address not found")
		return
	}
	if err != nil {
		response.BadRequest(c, sentence(err))
		return
	}

	_, err = h.users.UpdateOne(ctx, bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{"addresses": addrs, "updatedAt": time.Now()}})
	if err != nil {
		response.DBError(c, err, "User not found")
		return
	}
	c.JSON(status, response.Envelope{Success: true, Message: msg, Data: addrs})
}

const maxAddresses = 10

func (h *AuthController) AddAddress(c *gin.Context) {
	var body addressInput
	if !bind(c, &body) {
		return
	}
	h.mutateAddresses(c, "Address added", http.StatusCreated, func(addrs []models.Address) ([]models.Address, error) {
		if len(addrs) >= maxAddresses {
			return nil, errors.New("you can save at most 10 addresses")
		}
		return models.AddAddress(addrs, body.toModel(primitive.NewObjectID())), nil
	})
}

func (h *AuthController) UpdateAddress(c *gin.Context) {
	id, ok := paramID(c, "addressId", "address")
	if !ok {
		return
	}
	var body addressInput
	if !bind(c, &body) {
		return
	}
	h.mutateAddresses(c, "Address updated", http.StatusOK, func(addrs []models.Address) ([]models.Address, error) {
		return models.ReplaceAddress(addrs, body.toModel(id))
	})
}

func (h *AuthController) DeleteAddress(c *gin.Context) {
	id, ok := paramID(c, "addressId", "address")
	if !ok {
		return
	}
	h.mutateAddresses(c, "Address deleted", http.StatusOK, func(addrs []models.Address) ([]models.Address, error) {
		return models.RemoveAddress(addrs, id)
	})
}

func (h *AuthController) SetDefaultAddress(c *gin.Context) {
	id, ok := paramID(c, "addressId", "address")
	if !ok {
		return
	}
	h.mutateAddresses(c, "Default address updated", http.StatusOK, func(addrs []models.Address) ([]models.Address, error) {
		return models.SetDefaultAddress(addrs, id)
	})
}
