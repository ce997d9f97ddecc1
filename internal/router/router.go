package router

import (
	"time"

	"imperio/internal/config"
	"imperio/internal/handler"
	"imperio/internal/infra"
	"imperio/internal/middleware"
	"imperio/internal/notify"
	"imperio/internal/pricing"
	"imperio/internal/repository"
	"imperio/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the collaborators built in main that outlive one request:
// event sinks, the job queue and the metrics registry.
type Deps struct {
	Events     notify.Publisher
	Subscriber notify.Subscriber
	Reports    service.ReportQueue
	Metrics    *infra.Metrics
	Gatherer   prometheus.Gatherer
	Limiter    *middleware.RateLimiter
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Events == nil {
		deps.Events = notify.Noop{}
	}
	if deps.Subscriber == nil {
		deps.Subscriber = notify.NewHub()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.Limiter == nil {
		deps.Limiter = middleware.NewRateLimiter(cfg.RateLimit, time.Minute)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigin))
	r.Use(middleware.ErrorHandler())

	// ── Repositories ─────────────────────────────────────────────────────────
	catalogRepo := repository.NewCatalogRepository(db)
	tillRepo := repository.NewTillRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	tableRepo := repository.NewTableRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	engine := pricing.NewEngine(cfg.MinimumOrderAmount(), cfg.InstantDiscountPercent())

	tillSvc := service.NewTillService(tillRepo, deps.Events, deps.Reports, deps.Metrics)
	orderSvc := service.NewOrderService(orderRepo, tableRepo, catalogRepo, tillSvc, engine, deps.Events, deps.Metrics)
	catalogSvc := service.NewCatalogService(catalogRepo, rdb, engine, deps.Events)
	agentSvc := service.NewAgentService(orderSvc, catalogSvc, service.Windows{
		Delivery: cfg.DeliveryWindow,
		Pickup:   cfg.PickupWindow,
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	tillH := handler.NewTillHandler(tillSvc, orderSvc, cfg.StoreName, cfg.ReportStoragePath)
	ordersH := handler.NewOrderHandler(orderSvc)
	storefrontH := handler.NewStorefrontHandler(orderSvc, catalogSvc)
	agentH := handler.NewAgentHandler(agentSvc)
	catalogH := handler.NewCatalogHandler(catalogSvc)
	eventsH := handler.NewEventsHandler(deps.Subscriber, time.Duration(cfg.ResyncSeconds)*time.Second)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))

	// Storefront: no auth, rate limited per IP
	store := r.Group("/v1/storefront", deps.Limiter.Middleware())
	{
		store.GET("/catalog", storefrontH.Catalog)
		store.POST("/quote", storefrontH.Quote)
		store.POST("/orders", storefrontH.PlaceOrder)
	}

	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	staff := middleware.RequireRole(middleware.RoleCashier, middleware.RoleManager)
	manager := middleware.RequireRole(middleware.RoleManager)

	v1 := r.Group("/v1", jwtMW)
	{
		// Conversational agent; managers may call tools when debugging prompts
		v1.POST("/agent/tools/:name", deps.Limiter.Middleware(),
			middleware.RequireRole(middleware.RoleAgent, middleware.RoleManager), agentH.Call)

		till := v1.Group("/till", staff)
		{
			till.POST("/open", tillH.Open)
			till.GET("/current", tillH.Current)
			till.POST("/checkout", tillH.Checkout)
			till.GET("/history", manager, tillH.History)
			till.POST("/:id/movements", tillH.RecordMovement)
			till.GET("/:id/movements", tillH.Movements)
			till.POST("/:id/close", tillH.Close)
			till.GET("/:id/report", tillH.Report)
		}

		orders := v1.Group("/orders", staff)
		{
			orders.GET("", ordersH.List)
			orders.POST("/quote", ordersH.Quote)
			orders.GET("/:id", ordersH.Get)
			orders.PATCH("/:id/status", ordersH.Advance)
			orders.POST("/:id/cancel", ordersH.Cancel)
		}

		tables := v1.Group("/tables", staff)
		{
			tables.GET("", ordersH.Tables)
			tables.GET("/:number/tab", ordersH.TableTab)
			tables.POST("/:number/orders", ordersH.CreateTableOrder)
			tables.POST("/:number/close", ordersH.CloseTable)
		}

		v1.GET("/kitchen/tickets", staff, ordersH.KitchenTickets)
		v1.GET("/events", staff, eventsH.Stream)

		catalog := v1.Group("/catalog", staff)
		{
			catalog.GET("/products", catalogH.Products)
			catalog.GET("/categories", catalogH.Categories)
			catalog.GET("/zones", catalogH.Zones)
			catalog.PUT("/products/:id/price", manager, catalogH.UpdatePrice)
		}
	}

	// Swagger UI, only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
