package router

import (
	"github.com/gin-gonic/gin"

	"github.com/cutflow/cutflow-backend/internal/config"
	"github.com/cutflow/cutflow-backend/internal/http/handlers"
	"github.com/cutflow/cutflow-backend/internal/http/middleware"
	"github.com/cutflow/cutflow-backend/internal/models"
)

// UploadsPrefix путь раздачи локального хранилища по подписанным ссылкам.
const UploadsPrefix = "/uploads"

// Handlers собирает все хэндлеры API.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Orders        *handlers.OrderHandler
	Applications  *handlers.ApplicationHandler
	Wallet        *handlers.WalletHandler
	Payments      *handlers.PaymentHandler
	Deliveries    *handlers.DeliveryHandler
	Notifications *handlers.NotificationHandler
	Invoices      *handlers.InvoiceHandler
	YouTube       *handlers.YouTubeHandler
	WS            *handlers.WSHandler
	Health        *handlers.HealthHandler
	// Uploads задаётся только для локального хранилища.
	Uploads *handlers.UploadsHandler
}

// SetupRouter регистрирует маршруты.
func SetupRouter(cfg *config.Config, h Handlers, tokens middleware.AccessParser) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.MaxMultipartMemory = 32 << 20

	r.GET("/health", h.Health.Health)
	if h.Uploads != nil {
		r.GET(UploadsPrefix+"/*filepath", h.Uploads.Serve)
	}

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware("auth", 5, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/logout", h.Auth.Logout)
	}

	webhooks := api.Group("/webhooks")
	webhooks.Use(middleware.RateLimitMiddleware("webhooks", 120, cfg.RateLimitPeriod))
	{
		webhooks.POST("/razorpay", h.Payments.Webhook(models.ProviderRazorpay))
		webhooks.POST("/stripe", h.Payments.Webhook(models.ProviderStripe))
	}

	// Публичные маршруты
	api.GET("/orders", h.Orders.ListOrders)
	api.GET("/ws", h.WS.Handle)
	api.GET("/youtube/callback", h.YouTube.Callback)

	auth := middleware.AuthMiddleware(tokens)
	creator := middleware.RequireRole(models.RoleCreator)
	editor := middleware.RequireRole(models.RoleEditor)
	idParam := middleware.UUIDValidator("id")

	protected := api.Group("/")
	protected.Use(auth)
	{
		protected.GET("/profile", h.Auth.Profile)

		protected.POST("/orders", creator, h.Orders.CreateOrder)
		protected.GET("/orders/my", h.Orders.ListMyOrders)
		protected.GET("/orders/:id", idParam, h.Orders.GetOrder)
		protected.GET("/orders/:id/history", idParam, h.Orders.History)
		protected.POST("/orders/:id/actions/:action", idParam, h.Orders.Act)

		protected.POST("/orders/:id/applications", idParam, editor, h.Applications.Apply)
		protected.GET("/orders/:id/applications", idParam, h.Applications.ListByOrder)
		protected.GET("/applications/my", editor, h.Applications.ListMy)
		protected.POST("/applications/:id/deposit", idParam, editor, h.Applications.PayDeposit)
		protected.POST("/applications/:id/approve", idParam, creator, h.Applications.Approve)
		protected.POST("/applications/:id/reject", idParam, creator, h.Applications.Reject)
		protected.POST("/applications/:id/withdraw", idParam, editor, h.Applications.Withdraw)

		protected.POST("/orders/:id/deliveries", idParam, editor, h.Deliveries.Submit)
		protected.GET("/orders/:id/deliveries", idParam, h.Deliveries.List)
		protected.GET("/deliveries/:id/link", idParam, h.Deliveries.Link)

		protected.GET("/wallet", h.Wallet.GetWallet)
		protected.GET("/wallet/transactions", h.Wallet.ListTransactions)

		protected.GET("/notifications", h.Notifications.ListNotifications)
		protected.GET("/notifications/unread/count", h.Notifications.CountUnread)
		protected.PUT("/notifications/read-all", h.Notifications.MarkAllAsRead)
		protected.PUT("/notifications/:id/read", idParam, h.Notifications.MarkAsRead)

		protected.GET("/invoices", h.Invoices.List)
		protected.GET("/invoices/:orderId", middleware.UUIDValidator("orderId"), h.Invoices.Download)

		protected.GET("/youtube/connect", h.YouTube.Connect)
		protected.GET("/youtube/status", h.YouTube.Status)
		protected.DELETE("/youtube", h.YouTube.Disconnect)
	}

	// Платежи
	payments := api.Group("/payments")
	payments.Use(auth, middleware.RateLimitMiddleware("payments", cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		payments.POST("/orders", h.Payments.CreateOrder)
		payments.POST("/verify", h.Payments.Verify)
		payments.GET("", h.Payments.ListPayments)
	}

	admin := api.Group("/admin")
	admin.Use(auth, middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/orders/:id/resolve", idParam, h.Orders.Resolve)
	}

	return r
}
