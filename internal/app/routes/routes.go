package routes

import (
	_ "teleconsult-http-service/docs"
	"teleconsult-http-service/internal/app/controllers"
	"teleconsult-http-service/internal/app/middleware"
	"teleconsult-http-service/internal/domain/services/container"
	"teleconsult-http-service/internal/infrastructure/config"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// SetupRouter initializes and returns the configured router
func SetupRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Accept", "Cache-Control", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	serviceContainer := container.NewServiceContainer(db, cfg, nil)

	middleware.InitAuthMiddleware(cfg, db)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	registerRoutes(r, serviceContainer)
	return r
}

// registerRoutes configures all API routes
func registerRoutes(
	r *gin.Engine,
	container *container.ServiceContainer,
) {
	api := r.Group("/api")
	registerPublicRoutes(api, container)
	registerAuthenticatedRoutes(api, container)
	registerAdminRoutes(api, container)
}

// registerPublicRoutes registers routes that need no token
func registerPublicRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	// 10 requests per second per IP, bursts of 20
	api.Use(middleware.IPRateLimiter(10, 20))

	api.GET("/ping", controllers.HandleHealthFunc(container, "ping"))
	api.GET("/health", controllers.HandleHealthFunc(container, "ping"))
	api.GET("/health/status", controllers.HandleHealthFunc(container, "status"))

	api.POST("/auth/login", controllers.HandleJWTFunc(container, "login"))
}

// registerAuthenticatedRoutes registers routes for any signed-in user
func registerAuthenticatedRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	auth := api.Group("/")
	auth.Use(middleware.AuthenticateUser())
	auth.Use(middleware.IPRateLimiter(30, 50))

	// Call signaling
	callGroup := auth.Group("/calls")
	callGroup.Use(middleware.PathRateLimiter(20, 40))
	callGroup.POST("", controllers.HandleCallFunc(container, "initiateCall"))
	callGroup.GET("/:id", controllers.HandleCallFunc(container, "getCall"))
	callGroup.GET("/:id/session", middleware.Cache(middleware.CacheConfig{Expiration: 5 * time.Second}), controllers.HandleCallFunc(container, "getCallSession"))
	callGroup.POST("/:id/accept", controllers.HandleCallFunc(container, "acceptCall"))
	callGroup.POST("/:id/reject", controllers.HandleCallFunc(container, "rejectCall"))
	callGroup.POST("/:id/cancel", controllers.HandleCallFunc(container, "cancelCall"))
	callGroup.POST("/:id/hangup", controllers.HandleCallFunc(container, "hangupCall"))

	// Presence
	presenceGroup := auth.Group("/presence")
	presenceGroup.POST("/heartbeat", controllers.HandlePresenceFunc(container, "heartbeat"))
	presenceGroup.POST("/activity", controllers.HandlePresenceFunc(container, "activity"))
	presenceGroup.POST("/offline", controllers.HandlePresenceFunc(container, "offline"))
	presenceGroup.GET("/roster", middleware.Cache(middleware.CacheConfig{Expiration: 5 * time.Second}), controllers.HandlePresenceFunc(container, "getRoster"))
	presenceGroup.GET("/:uid", controllers.HandlePresenceFunc(container, "getPresence"))

	// Own profile
	profileGroup := auth.Group("/profile")
	profileGroup.GET("", controllers.HandleUserFunc(container, "getProfile"))
	profileGroup.PUT("/notification-preferences", controllers.HandleUserFunc(container, "updateNotificationPreferences"))
	profileGroup.POST("/fcm-tokens", controllers.HandleUserFunc(container, "registerFCMToken"))
	profileGroup.DELETE("/fcm-tokens", controllers.HandleUserFunc(container, "removeFCMToken"))

	// Own call history
	auth.GET("/call-records/mine", controllers.HandleCallRecordFunc(container, "getMyCallRecords"))

	// Missed calls only make sense for call recipients, which in this
	// system means supervisors
	supervisor := api.Group("/")
	supervisor.Use(middleware.AuthenticateSupervisor())
	supervisor.Use(middleware.IPRateLimiter(30, 50))
	supervisor.GET("/call-records/missed", controllers.HandleCallRecordFunc(container, "getMissedCalls"))
}

// registerAdminRoutes registers admin-only routes
func registerAdminRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	admin := api.Group("/")
	admin.Use(middleware.AuthenticateAdmin())
	admin.Use(middleware.IPRateLimiter(30, 50))

	// User management
	userGroup := admin.Group("/users")
	userGroup.GET("", middleware.Cache(middleware.CacheConfig{Expiration: 1 * time.Minute}), controllers.HandleUserFunc(container, "getUsers"))
	userGroup.GET("/:uid", middleware.Cache(middleware.CacheConfig{Expiration: 1 * time.Minute}), controllers.HandleUserFunc(container, "getUser"))
	userGroup.POST("", controllers.HandleUserFunc(container, "createUser"))
	userGroup.PUT("/:uid", controllers.HandleUserFunc(container, "updateUser"))
	userGroup.DELETE("/:uid", controllers.HandleUserFunc(container, "deactivateUser"))
	userGroup.POST("/:uid/reactivate", controllers.HandleUserFunc(container, "reactivateUser"))

	// Call history
	callRecordGroup := admin.Group("/call-records")
	callRecordGroup.GET("", middleware.Cache(middleware.CacheConfig{Expiration: 30 * time.Second}), controllers.HandleCallRecordFunc(container, "getCallRecords"))
	callRecordGroup.GET("/statistics", middleware.Cache(middleware.CacheConfig{Expiration: 5 * time.Minute}), controllers.HandleCallRecordFunc(container, "getStatistics"))
	callRecordGroup.GET("/:id", middleware.Cache(middleware.CacheConfig{Expiration: 1 * time.Minute}), controllers.HandleCallRecordFunc(container, "getCallRecord"))

	// System broadcast
	admin.POST("/system/message", controllers.HandleCallFunc(container, "publishSystemMessage"))
}
