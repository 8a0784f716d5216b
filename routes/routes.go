package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nomanqadri34/vcx-mart-sub002/auth"
	"github.com/nomanqadri34/vcx-mart-sub002/config"
	"github.com/nomanqadri34/vcx-mart-sub002/controllers"
	"github.com/nomanqadri34/vcx-mart-sub002/database"
	"github.com/nomanqadri34/vcx-mart-sub002/middleware"
	"github.com/nomanqadri34/vcx-mart-sub002/models"
	"github.com/nomanqadri34/vcx-mart-sub002/notify"
	"github.com/nomanqadri34/vcx-mart-sub002/payment"
	"github.com/nomanqadri34/vcx-mart-sub002/response"
	"github.com/nomanqadri34/vcx-mart-sub002/session"
)

// Deps carries everything the handlers are built from.
type Deps struct {
	Config    config.Config
	Store     *database.Store
	Tokens    *auth.TokenManager
	Blacklist *database.TokenBlacklist
	Sessions  session.Store
	Gateway   *payment.Gateway
	Notifier  notify.Notifier
}

// New builds the engine with the global middleware chain and every route.
func New(d Deps) *gin.Engine {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	_ = r.SetTrustedProxies(nil)

	r.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.AccessLog(),
		cors.New(cors.Config{
			AllowOrigins:     d.Config.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		middleware.BodyLimit(middleware.MaxBodyBytes),
	)

	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	s := d.Store
	rules := models.PricingRules{
		FreeShippingThreshold: d.Config.FreeShippingThreshold,
		ShippingFee:           d.Config.ShippingFee,
		TaxRate:               d.Config.TaxRate,
	}

	authCtl := controllers.NewAuthController(s.Users, d.Tokens, d.Blacklist)
	categoryCtl := controllers.NewCategoryController(s.Categories, s.Products)
	productCtl := controllers.NewProductController(s.Products, s.Categories, s.Reviews, s.SKUExists)
	cartCtl := controllers.NewCartController(d.Sessions, s, rules)
	couponCtl := controllers.NewCouponController(s.Coupons)
	orderCtl := controllers.NewOrderController(s.Orders, s.Users, s, d.Sessions, d.Notifier, rules)
	applicationCtl := controllers.NewSellerApplicationController(s.SellerApplications, s.Users, d.Notifier)
	reviewCtl := controllers.NewReviewController(s.Reviews, s.Products, s.Orders, s.Users)
	paymentCtl := controllers.NewPaymentController(s.Payments, s.Orders, d.Gateway)
	dashboardCtl := controllers.NewDashboardController(s.Users, s.Products, s.Orders, s.SellerApplications, d.Config.LowStockThreshold)
	healthCtl := controllers.NewHealthController(s)

	authRequired := middleware.Authenticate(d.Tokens, d.Blacklist)
	authOptional := middleware.OptionalAuth(d.Tokens, d.Blacklist)
	withSession := middleware.Session(middleware.SessionCookie{
		Name:   d.Config.SessionCookieName,
		TTL:    d.Config.SessionTTL,
		Secure: d.Config.CookieSecure,
	})

	api := r.Group("/api")
	api.GET("/health", healthCtl.Check)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authCtl.Register)
		authGroup.POST("/login", authCtl.Login)

		me := authGroup.Group("", authRequired)
		me.POST("/logout", authCtl.Logout)
		me.GET("/me", authCtl.Me)
		me.PUT("/me", authCtl.UpdateMe)
		me.PUT("/password", authCtl.ChangePassword)
		me.GET("/addresses", authCtl.ListAddresses)
		me.POST("/addresses", authCtl.AddAddress)
		me.PUT("/addresses/:addressId", authCtl.UpdateAddress)
		me.DELETE("/addresses/:addressId", authCtl.DeleteAddress)
		me.PUT("/addresses/:addressId/default", authCtl.SetDefaultAddress)
	}

	api.GET("/categories", categoryCtl.List)
	api.GET("/categories/tree", categoryCtl.Tree)
	api.GET("/categories/:idOrSlug", authOptional, categoryCtl.Get)

	api.GET("/products", productCtl.List)
	api.GET("/products/:id", authOptional, productCtl.Get)
	api.GET("/products/:id/reviews", reviewCtl.ListForProduct)
	api.POST("/products/:id/reviews", authRequired, reviewCtl.Create)
	api.PUT("/reviews/:id", authRequired, reviewCtl.Update)
	api.DELETE("/reviews/:id", authRequired, reviewCtl.Delete)

	cart := api.Group("/cart", withSession, authOptional)
	{
		cart.GET("", cartCtl.Get)
		cart.POST("/items", cartCtl.AddItem)
		cart.PUT("/items/:productId", cartCtl.UpdateItem)
		cart.DELETE("/items/:productId", cartCtl.RemoveItem)
		cart.DELETE("", cartCtl.Clear)
		cart.POST("/coupon", cartCtl.ApplyCoupon)
		cart.DELETE("/coupon", cartCtl.RemoveCoupon)
	}

	api.POST("/coupons/validate", couponCtl.Validate)

	orders := api.Group("/orders", authRequired)
	{
		orders.POST("/checkout", withSession, orderCtl.Checkout)
		orders.GET("", orderCtl.List)
		orders.GET("/:id", orderCtl.Get)
		orders.PUT("/:id/cancel", orderCtl.Cancel)
	}

	applications := api.Group("/seller-applications", authRequired)
	{
		applications.POST("", applicationCtl.Submit)
		applications.GET("/me", applicationCtl.Mine)
	}

	payments := api.Group("/payments")
	{
		payments.POST("/create", authRequired, paymentCtl.Create)
		payments.POST("/verify", authRequired, paymentCtl.Verify)
		payments.POST("/webhook", paymentCtl.Webhook)
	}

	seller := api.Group("/seller", authRequired, middleware.RequireRoles(models.RoleSeller, models.RoleAdmin))
	{
		seller.GET("/products", productCtl.SellerList)
		seller.POST("/products", productCtl.Create)
		seller.PUT("/products/:id", productCtl.Update)
		seller.DELETE("/products/:id", productCtl.Delete)
		seller.PUT("/products/:id/stock", productCtl.UpdateStock)

		seller.GET("/orders", orderCtl.SellerList)
		seller.PUT("/orders/:id/items/:itemId/status", orderCtl.UpdateItemStatus)
	}

	admin := api.Group("/admin", authRequired, middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/dashboard", dashboardCtl.Stats)
		admin.GET("/users", dashboardCtl.ListUsers)
		admin.PUT("/users/:id", dashboardCtl.UpdateUser)

		admin.POST("/categories", categoryCtl.Create)
		admin.PUT("/categories/:id", categoryCtl.Update)
		admin.DELETE("/categories/:id", categoryCtl.Delete)

		admin.GET("/products", productCtl.AdminList)

		admin.GET("/coupons", couponCtl.List)
		admin.POST("/coupons", couponCtl.Create)
		admin.PUT("/coupons/:id", couponCtl.Update)
		admin.DELETE("/coupons/:id", couponCtl.Delete)

		admin.GET("/orders", orderCtl.AdminList)
		admin.GET("/orders/:id", orderCtl.AdminGet)
		admin.PUT("/orders/:id/status", orderCtl.UpdateStatus)

		admin.GET("/seller-applications", applicationCtl.AdminList)
		admin.GET("/seller-applications/:id", applicationCtl.AdminGet)
		admin.PUT("/seller-applications/:id/review", applicationCtl.Review)
		admin.PUT("/seller-applications/:id/approve", applicationCtl.Approve)
		admin.PUT("/seller-applications/:id/reject", applicationCtl.Reject)
	}

	r.NoRoute(func(c *gin.Context) { response.NotFound(c, "Route not found") })
}
