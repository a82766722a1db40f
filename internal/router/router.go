package router

import (
	"time"

	"github.com/yehgs/icvng-server-sub003/internal/config"
	"github.com/yehgs/icvng-server-sub003/internal/handler"
	"github.com/yehgs/icvng-server-sub003/internal/infra"
	"github.com/yehgs/icvng-server-sub003/internal/middleware"
	"github.com/yehgs/icvng-server-sub003/internal/repository"
	"github.com/yehgs/icvng-server-sub003/internal/service"
	"github.com/yehgs/icvng-server-sub003/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services bundles the domain services shared by the HTTP layer and the
// worker pool.
type Services struct {
	Store   repository.Store
	Stock   service.StockSyncService
	Batches service.StockBatchService
	Pricing service.DirectPricingService
}

// NewServices wires Service ← Repository ← DB/Redis. rdb may be nil, which
// disables the distributed lock, the resync queue and the price cache.
func NewServices(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *Services {
	store := repository.NewStore(db)

	var locker infra.Locker
	var enqueuer service.ResyncEnqueuer
	if rdb != nil {
		locker = infra.NewRedisLocker(rdb, cfg.SyncLockTTL)
		enqueuer = worker.NewDispatcher(rdb)
	}

	stockSvc := service.NewStockSyncService(store, locker)
	return &Services{
		Store:   store,
		Stock:   stockSvc,
		Batches: service.NewStockBatchService(store, stockSvc.AfterBatchWrite, enqueuer),
		Pricing: service.NewDirectPricingService(store, rdb, cfg.PriceCacheTTL),
	}
}

// New returns a configured Gin engine serving svcs.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, svcs *Services) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(cfg.RateLimitPerMinute, time.Minute))

	stockH := handler.NewStockHandler(svcs.Stock)
	batchesH := handler.NewBatchesHandler(svcs.Batches)
	pricingH := handler.NewPricingHandler(svcs.Pricing)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	Register(r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret)), stockH, batchesH, pricingH)
	return r
}

// Register mounts the protected API on v1. Split from New so handler tests
// can mount it without a database.
func Register(v1 *gin.RouterGroup, stockH *handler.StockHandler, batchesH *handler.BatchesHandler, pricingH *handler.PricingHandler) {
	readers := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleDirector, middleware.RoleIT,
		middleware.RoleManager, middleware.RoleWarehouse, middleware.RoleSales)
	stockWriters := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleIT,
		middleware.RoleManager, middleware.RoleWarehouse)
	priceWriters := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleDirector,
		middleware.RoleIT, middleware.RoleManager)
	adminOnly := middleware.RequireRole(middleware.RoleAdmin)

	batches := v1.Group("/batches", stockWriters)
	{
		batches.POST("", batchesH.Create)
		batches.PATCH("/status", batchesH.BulkStatus)
		batches.PUT("/:id", batchesH.Update)
		batches.DELETE("/:id", batchesH.Delete)
	}
	v1.GET("/products/:id/batches", readers, batchesH.ListByProduct)

	stock := v1.Group("/stock")
	{
		stock.GET("/:productId/consistency", readers, stockH.Consistency)
		stock.POST("/consistency", readers, stockH.ConsistencyMany)
		stock.POST("/resync", stockWriters, stockH.Resync)
		stock.POST("/:productId/sync", stockWriters, stockH.ForceSync)
		stock.PUT("/:productId/override", stockWriters, stockH.ApplyOverride)
		stock.DELETE("/:productId/override", stockWriters, stockH.DisableOverride)
	}

	pricing := v1.Group("/pricing")
	{
		pricing.GET("/:productId", readers, pricingH.Get)
		pricing.GET("/:productId/history", readers, pricingH.History)
		pricing.PATCH("/:productId/prices/:tier", priceWriters, pricingH.UpdatePrice)
		pricing.PUT("/:productId/prices", priceWriters, pricingH.BulkUpdate)
		pricing.POST("/:productId/approve", priceWriters, pricingH.Approve)
		pricing.POST("/:productId/override", adminOnly, pricingH.AdminOverride)
		pricing.DELETE("/:productId", adminOnly, pricingH.Deactivate)
	}
}
