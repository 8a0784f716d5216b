package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nomanqadri34/vcx-mart-sub002/logger"
	"github.com/nomanqadri34/vcx-mart-sub002/middleware"
	"github.com/nomanqadri34/vcx-mart-sub002/models"
	"github.com/nomanqadri34/vcx-mart-sub002/response"
	"github.com/nomanqadri34/vcx-mart-sub002/session"
)

// Catalog is the read side the cart needs from the store.
type Catalog interface {
	ProductByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	CouponByCode(ctx context.Context, code string) (*models.Coupon, error)
}

type CartController struct {
	sessions session.Store
	catalog  Catalog
	rules    models.PricingRules
	now      func() time.Time
}

func NewCartController(sessions session.Store, catalog Catalog, rules models.PricingRules) *CartController {
	return &CartController{sessions: sessions, catalog: catalog, rules: rules, now: time.Now}
}

type cartView struct {
	Items       []models.CartItem `json:"items"`
	Totals      models.Totals     `json:"totals"`
	CouponError string            `json:"couponError,omitempty"`
}

type cartItemInput struct {
	ProductID string `json:"productId" binding:"required,objectid"`
	Size      string `json:"size" binding:"max=10"`
	Quantity  int    `json:"quantity" binding:"omitempty,min=1,max=100"`
}

type cartQuantityInput struct {
	Size     string `json:"size" binding:"max=10"`
	Quantity *int   `json:"quantity" binding:"required,min=0,max=100"`
}

type couponInput struct {
	Code string `json:"code" binding:"required,min=3,max=20"`
}

// priceCart computes the totals of cart, applying its coupon when it is
// still valid. An invalid coupon is reported but does not fail the request.
func priceCart(ctx context.Context, catalog Catalog, cart models.Cart, rules models.PricingRules, now time.Time) (cartView, error) {
	view := cartView{Items: cart.Items}
	if view.Items == nil {
		view.Items = []models.CartItem{}
	}

	discount := 0.0
	code := cart.CouponCode
	if code != "" && len(cart.Items) > 0 {
		cp, err := catalog.CouponByCode(ctx, code)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			view.CouponError = "Coupon not found"
			code = ""
		case err != nil:
			return view, err
		default:
			sub := models.Subtotal(cart.Items)
			if verr := cp.Validate(sub, now); verr != nil {
				view.CouponError = sentence(verr)
				code = ""
			} else {
				discount = cp.Discount(sub)
			}
		}
	}

	view.Totals = models.ComputeTotals(cart.Items, rules, discount)
	if discount > 0 || (code != "" && len(cart.Items) > 0) {
		view.Totals.CouponCode = code
	}
	return view, nil
}

func (h *CartController) load(ctx context.Context, c *gin.Context) (*models.Session, bool) {
	s, err := h.sessions.Load(ctx, middleware.SessionID(c))
	if err != nil {
		_ = c.Error(err)
		response.InternalError(c)
		return nil, false
	}
	if uid, ok := middleware.UserID(c); ok {
		s.UserID = &uid
	}
	return s, true
}

func (h *CartController) save(ctx context.Context, c *gin.Context, s *models.Session, msg string) {
	if err := h.sessions.Save(ctx, s); err != nil {
		_ = c.Error(err)
		response.InternalError(c)
		return
	}
	h.respond(ctx, c, s, msg)
}

func (h *CartController) respond(ctx context.Context, c *gin.Context, s *models.Session, msg string) {
	view, err := priceCart(ctx, h.catalog, s.Cart, h.rules, h.now())
	if err != nil {
		response.DBError(c, err, "")
		return
	}
	response.Message(c, msg, view)
}

// availableProduct loads productID and checks that quantity of size can be sold.
func (h *CartController) availableProduct(ctx context.Context, c *gin.Context, productID primitive.ObjectID, size string, quantity int) (*models.Product, bool) {
	p, err := h.catalog.ProductByID(ctx, productID)
	if err != nil {
		response.DBError(c, err, "Product not found")
		return nil, false
	}
	if !p.IsActive {
		response.BadRequest(c, "Product is not available")
		return nil, false
	}
	stock, ok := p.StockFor(size)
	if !ok {
		if len(p.Sizes) > 0 && size == "" {
			response.BadRequest(c, "Please select a size")
		} else {
			response.BadRequest(c, "Size not available for this product")
		}
		return nil, false
	}
	if quantity > stock {
		if stock == 0 {
			response.BadRequest(c, "Product is out of stock")
		} else {
			response.BadRequest(c, fmt.Sprintf("Only %d left in stock", stock))
		}
		return nil, false
	}
	return p, true
}

func (h *CartController) Get(c *gin.Context) {
	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	s, ok := h.load(ctx, c)
	if !ok {
		return
	}
	h.respond(ctx, c, s, "")
}

func (h *CartController) AddItem(c *gin.Context) {
	var body cartItemInput
	if !bind(c, &body) {
		return
	}
	if body.Quantity == 0 {
		body.Quantity = 1
	}
	productID, _ := primitive.ObjectIDFromHex(body.ProductID)
	size := strings.TrimSpace(body.Size)

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	s, ok := h.load(ctx, c)
	if !ok {
		return
	}

	p, err := h.catalog.ProductByID(ctx, productID)
	if err != nil {
		response.DBError(c, err, "Product not found")
		return
	}
	size = p.CanonicalSize(size)
	want := s.Cart.Quantity(productID, size) + body.Quantity
	if _, ok := h.availableProduct(ctx, c, productID, size, want); !ok {
		return
	}

	s.Cart.Add(models.CartItem{
		ProductID: p.ID,
		SellerID:  p.Seller,
		Name:      p.Name,
		Image:     p.Thumbnail(),
		SKU:       p.SKU,
		Size:      size,
		Price:     p.Price,
		Quantity:  body.Quantity,
		AddedAt:   h.now(),
	})
	logger.Info(c, "cart.add", map[string]any{"product_id": body.ProductID, "size": size, "qty": body.Quantity})
	h.save(ctx, c, s, "Item added to cart")
}

func (h *CartController) UpdateItem(c *gin.Context) {
	productID, ok := paramID(c, "productId", "product")
	if !ok {
		return
	}
	var body cartQuantityInput
	if !bind(c, &body) {
		return
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	s, ok := h.load(ctx, c)
	if !ok {
		return
	}
	size := h.lineSize(s.Cart, productID, body.Size)
	if s.Cart.Quantity(productID, size) == 0 {
		response.NotFound(c, "Item not found in cart")
		return
	}

	if *body.Quantity > 0 {
		p, ok := h.availableProduct(ctx, c, productID, size, *body.Quantity)
		if !ok {
			return
		}
		// refresh the snapshot so the cart shows the current price
		s.Cart.Add(models.CartItem{ProductID: p.ID, Size: size, Price: p.Price, Name: p.Name, Image: p.Thumbnail()})
	}
	if err := s.Cart.Update(productID, size, *body.Quantity); err != nil {
		response.NotFound(c, "Item not found in cart")
		return
	}
	h.save(ctx, c, s, "Cart updated")
}

// lineSize matches size against the sizes already in the cart for the
// product, ignoring case.
func (h *CartController) lineSize(cart models.Cart, productID primitive.ObjectID, size string) string {
	size = strings.TrimSpace(size)
	for _, it := range cart.Items {
		if it.ProductID == productID && strings.EqualFold(it.Size, size) {
			return it.Size
		}
	}
	return size
}

func (h *CartController) RemoveItem(c *gin.Context) {
	productID, ok := paramID(c, "productId", "product")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	s, ok := h.load(ctx, c)
	if !ok {
		return
	}
	if !s.Cart.Remove(productID, h.lineSize(s.Cart, productID, c.Query("size"))) {
		response.NotFound(c, "Item not found in cart")
		return
	}
	h.save(ctx, c, s, "Item removed from cart")
}

func (h *CartController) Clear(c *gin.Context) {
	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	s, ok := h.load(ctx, c)
	if !ok {
		return
	}
	s.Cart.Clear()
	h.save(ctx, c, s, "Cart cleared")
}

func (h *CartController) ApplyCoupon(c *gin.Context) {
	var body couponInput
	if !bind(c, &body) {
		return
	}

	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	s, ok := h.load(ctx, c)
	if !ok {
		return
	}
	if s.Cart.IsEmpty() {
		response.BadRequest(c, "Cart is empty")
		return
	}

	cp, err := h.catalog.CouponByCode(ctx, body.Code)
	if err != nil {
		response.DBError(c, err, "Coupon not found")
		return
	}
	if err := cp.Validate(models.Subtotal(s.Cart.Items), h.now()); err != nil {
		response.BadRequest(c, sentence(err))
		return
	}
	s.Cart.CouponCode = cp.Code
	h.save(ctx, c, s, "Coupon applied")
}

func (h *CartController) RemoveCoupon(c *gin.Context) {
	ctx, cancel := requestContext(c, queryTimeout)
	defer cancel()

	s, ok := h.load(ctx, c)
	if !ok {
		return
	}
	s.Cart.CouponCode = ""
	h.save(ctx, c, s, "Coupon removed")
}
