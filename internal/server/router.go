package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"powerdash/internal/devices"
	"powerdash/internal/fetchcache"
	"powerdash/internal/handler"
	"powerdash/internal/hub"
	"powerdash/internal/layout"
	"powerdash/internal/localstore"
	"powerdash/internal/metrics"
	"powerdash/internal/middleware"
	"powerdash/internal/model"
	"powerdash/internal/notify"
	"powerdash/internal/session"
)

type Deps struct {
	Session   *session.Store
	API       handler.UsersAPI
	Measure   handler.MeasurementsAPI
	Layout    *layout.Engine
	Catalog   *devices.Catalog
	Cache     *fetchcache.Cache
	State     *localstore.Store
	Center    *notify.Center
	Hub       *hub.Hub
	Metrics   *metrics.Collector
	PushState func() notify.State
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	versionHandler := &handler.VersionHandler{}
	r.GET("/version", versionHandler.Check)

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	loginLimiter := middleware.NewRateLimiter(10, time.Minute)
	authHandler := &handler.AuthHandler{Session: deps.Session}
	r.POST("/v1/login", middleware.RateLimitMiddleware(loginLimiter), authHandler.Login)
	r.POST("/v1/logout", authHandler.Logout)

	protected := r.Group("/v1")
	protected.Use(middleware.RequireSession(deps.Session))
	protected.GET("/me", authHandler.Me)

	usersHandler := &handler.UsersHandler{API: deps.API}
	protected.PUT("/me", usersHandler.UpdateProfile)
	protected.POST("/me/change-password", usersHandler.ChangePassword)

	dashboardHandler := &handler.DashboardHandler{Layout: deps.Layout, Catalog: deps.Catalog}
	protected.GET("/dashboard/widgets", dashboardHandler.Widgets)
	protected.POST("/dashboard/widgets/reorder", dashboardHandler.Reorder)
	protected.POST("/dashboard/widgets/:id/toggle", dashboardHandler.Toggle)

	devicesHandler := &handler.DevicesHandler{Catalog: deps.Catalog}
	protected.GET("/devices", devicesHandler.List)

	measurementsHandler := &handler.MeasurementsHandler{API: deps.Measure, Cache: deps.Cache}
	protected.GET("/measurements/latest", measurementsHandler.Latest)
	protected.GET("/measurements/daily", measurementsHandler.Daily)

	predictionHandler := &handler.PredictionHandler{API: deps.Measure, Cache: deps.Cache, State: deps.State}
	protected.GET("/prediction", predictionHandler.Get)

	notificationsHandler := &handler.NotificationsHandler{Center: deps.Center, PushState: deps.PushState}
	protected.GET("/notifications", notificationsHandler.List)
	protected.POST("/notifications/:id/read", notificationsHandler.MarkRead)
	protected.POST("/notifications/test-alert", notificationsHandler.TestAlert)

	admin := protected.Group("")
	admin.Use(middleware.RequireRole(deps.Session, model.RoleAdmin, model.RoleSuperadmin))
	admin.GET("/users", usersHandler.List)
	admin.PUT("/users/:id", usersHandler.Update)
	admin.DELETE("/users/:id", usersHandler.Delete)

	wsHandler := &handler.WebSocketHandler{Hub: deps.Hub, Session: deps.Session}
	r.GET("/ws", wsHandler.Serve)

	return r
}
