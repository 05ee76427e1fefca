package router

import (
	"time"

	"teahaven/internal/config"
	"teahaven/internal/handler"
	"teahaven/internal/infra"
	"teahaven/internal/middleware"
	"teahaven/internal/repository"
	"teahaven/internal/service"
	"teahaven/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, paymentCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	paymentClient := infra.NewPaymentClient(cfg.PaymentProviderURL, paymentCB)

	var idempotency service.IdempotencyStore
	if rdb != nil {
		idempotency = infra.NewRedisIdempotencyStore(rdb)
	} else {
		idempotency = service.NewMemoryIdempotencyStore()
	}

	// ── Repositories ─────────────────────────────────────────────────────────
	productRepo := repository.NewProductRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	cartRepo := repository.NewCartRepository(db)
	addressRepo := repository.NewAddressRepository(db)

	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	// ── Services ─────────────────────────────────────────────────────────────
	stockSvc := service.NewStockService(productRepo, ledgerRepo, dispatcher, cfg.LockTimeout)
	ledgerSvc := service.NewLedgerService(ledgerRepo, productRepo)
	shippingCalc := service.NewShippingCalculator()
	orderSvc := service.NewOrderService(orderRepo, cartRepo, addressRepo, stockSvc, shippingCalc, paymentClient, dispatcher, cfg.LockTimeout)
	checkoutSvc := service.NewCheckoutService(cartRepo, addressRepo, orderSvc, shippingCalc, paymentClient, idempotency, cfg.CheckoutIdempotencyTTL)
	availabilitySvc := service.NewAvailabilityService(productRepo)
	productSvc := service.NewProductService(productRepo, stockSvc)

	// ── Handlers ─────────────────────────────────────────────────────────────
	productsH := handler.NewProductsHandler(productSvc)
	stockH := handler.NewStockHandler(stockSvc, ledgerSvc)
	ordersH := handler.NewOrdersHandler(orderSvc, ledgerSvc)
	checkoutH := handler.NewCheckoutHandler(checkoutSvc, cfg.PaymentWebhookSecret)
	availabilityH := handler.NewAvailabilityHandler(availabilitySvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, paymentCB))

	// Availability reads are public — product pages poll them unauthenticated
	r.GET("/v1/availability/:id", availabilityH.Get)
	r.POST("/v1/availability/check", availabilityH.CheckBatch)

	// Payment provider webhook — authenticated by HMAC signature, not JWT
	r.POST("/v1/checkout/webhook", checkoutH.Webhook)

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		customer := middleware.RequireRole("customer", "staff", "admin")
		staff := middleware.RequireRole("staff", "admin")
		admin := middleware.RequireRole("admin")

		// Catalog — everyone reads, admin writes
		v1.GET("/products", customer, productsH.List)
		v1.GET("/products/:id", customer, productsH.Get)
		prods := v1.Group("/products", admin)
		{
			prods.POST("", productsH.Create)
			prods.PUT("/:id", productsH.Update)
			prods.DELETE("/:id", productsH.Deactivate)
			prods.PATCH("/:id/reactivate", productsH.Reactivate)
		}

		// Stock operations — staff and admin
		stock := v1.Group("/products/:id/stock", staff)
		{
			stock.POST("/add", stockH.AddStock)
			stock.POST("/adjust", stockH.Adjust)
			stock.POST("/damage", stockH.RecordDamage)
			stock.POST("/return", stockH.RecordReturn)
			stock.GET("/ledger", stockH.ListLedger)
			stock.GET("/reconcile", stockH.Reconcile)
			stock.GET("/at", stockH.OnHandAt)
		}
		v1.GET("/inventory/value", staff, stockH.InventoryValue)
		v1.GET("/inventory/low-stock", staff, availabilityH.LowStockReport)

		// Checkout
		v1.POST("/checkout", customer, checkoutH.Begin)
		v1.GET("/checkout/verify/:session_id", customer, checkoutH.Verify)

		// Orders
		v1.POST("/orders", customer, ordersH.Create)
		v1.GET("/orders", customer, ordersH.List)
		v1.GET("/orders/:id", customer, ordersH.Get)
		v1.POST("/orders/:id/cancel", customer, ordersH.Cancel)
		v1.POST("/orders/:id/ship", staff, ordersH.MarkShipped)
		v1.POST("/orders/:id/deliver", staff, ordersH.MarkDelivered)
		v1.POST("/orders/:id/refund", staff, ordersH.Refund)
		v1.GET("/orders/:id/stock-movements", staff, ordersH.StockMovements)
	}

	return r
}
