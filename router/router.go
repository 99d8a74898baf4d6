package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yeremiapane/restaurant-table-cart/controllers"
	"github.com/yeremiapane/restaurant-table-cart/kds"
	"github.com/yeremiapane/restaurant-table-cart/middlewares"
	"github.com/yeremiapane/restaurant-table-cart/models"
	"github.com/yeremiapane/restaurant-table-cart/services"
	"github.com/yeremiapane/restaurant-table-cart/utils"
	"gorm.io/gorm"
)

// Options carries everything the HTTP layer is wired to.
type Options struct {
	DB             *gorm.DB
	Orders         *services.OrderService
	Admission      *services.AdmissionService
	Lifecycle      *services.LifecycleService
	Hub            *kds.Hub
	AllowedOrigin  string
	TrustedProxies []string
	RateRequests   int
	RateWindow     time.Duration
}

func SetupRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		utils.ErrorLogger.Printf("invalid trusted proxies %v: %v", opts.TrustedProxies, err)
	}

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(opts.AllowedOrigin))
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.MetricsMiddleware())

	hub := opts.Hub
	if hub == nil {
		hub = kds.Default()
	}

	// Inisialisasi controller
	userCtrl := controllers.NewUserController(opts.DB)
	adminCtrl := controllers.NewAdminController(opts.DB)
	tableCtrl := controllers.NewTableController(opts.DB, opts.Lifecycle)
	orderCtrl := controllers.NewOrderController(opts.Lifecycle)
	stateCtrl := controllers.NewOrderStateController(opts.Orders)
	approvalCtrl := controllers.NewApprovalController(opts.Admission)
	kdsCtrl := controllers.NewKDSController(hub, opts.AllowedOrigin)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/login", userCtrl.Login)
	}

	// -- GUEST (Tanpa Auth) --
	guest := r.Group("/")
	guest.Use(middlewares.NewRateLimiter(opts.RateRequests, opts.RateWindow).RateLimit())
	{
		guest.GET("/order-state/:table_id", stateCtrl.GetState)
		guest.POST("/order-state/:table_id", stateCtrl.SubmitCart)

		guest.POST("/approval/:table_id", approvalCtrl.RequestAccess)
		guest.GET("/approval/:table_id", approvalCtrl.ListPending)
		guest.PATCH("/approval/:table_id", approvalCtrl.Resolve)

		guest.POST("/place/:table_id", orderCtrl.PlaceOrder)
	}

	// KDS websocket, token lewat query string
	ws := r.Group("/ws")
	ws.Use(middlewares.WebSocketAuthMiddleware(), middlewares.RoleCheck())
	{
		ws.GET("/:role", kdsCtrl.KDSHandler)
	}

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/admin")
	auth.Use(middlewares.AuthMiddleware())

	auth.GET("/profile", userCtrl.GetProfile)
	auth.POST("/users", middlewares.RequireRoles(models.RoleAdmin), userCtrl.Register)
	auth.GET("/dashboard", middlewares.RequireRoles(models.RoleAdmin), adminCtrl.GetDashboardStats)

	staff := auth.Group("/")
	staff.Use(middlewares.RequireRoles(models.RoleAdmin, models.RoleStaff))
	{
		staff.GET("/tables", tableCtrl.GetAllTables)
		staff.POST("/tables/:table_id/close", tableCtrl.CloseTable)
		staff.POST("/tables/:table_id/open", tableCtrl.OpenTable)
	}

	kitchen := auth.Group("/")
	kitchen.Use(middlewares.RequireRoles(models.RoleAdmin, models.RoleStaff, models.RoleChef))
	{
		kitchen.GET("/orders", orderCtrl.GetAllOrders)
		kitchen.PATCH("/orders/:order_id/items/processed", orderCtrl.MarkItemProcessed)
	}

	return r
}
