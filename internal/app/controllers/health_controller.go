package controllers

import (
	"teleconsult-http-service/internal/domain/services"
	"teleconsult-http-service/internal/domain/services/container"
	"teleconsult-http-service/internal/error/code"
	"teleconsult-http-service/internal/error/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthCheckController serves liveness and readiness probes
type HealthCheckController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewHealthCheckController creates a health check controller
func NewHealthCheckController(ctx *gin.Context, container *container.ServiceContainer) *HealthCheckController {
	return &HealthCheckController{
		Ctx:       ctx,
		Container: container,
	}
}

// HandleHealthFunc returns a gin handler for health requests
func HandleHealthFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewHealthCheckController(ctx, container)

		switch method {
		case "ping":
			controller.Ping()
		case "status":
			controller.Status()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "invalid method", nil)
		}
	}
}

// Ping is the liveness endpoint
func (h *HealthCheckController) Ping() {
	response.Success(h.Ctx, gin.H{
		"status":  "healthy",
		"message": "pong",
	})
}

// Status reports dependency health
func (h *HealthCheckController) Status() {
	dbStatus := "up"
	if db, ok := h.Container.GetService("db").(*gorm.DB); ok && db != nil {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			dbStatus = "down"
		}
	} else {
		dbStatus = "down"
	}

	redisStatus := "up"
	if redisService, ok := h.Container.GetService("redis").(services.InterfaceRedisService); ok {
		if err := redisService.Ping(); err != nil {
			redisStatus = "down"
		}
	} else {
		redisStatus = "down"
	}

	response.Success(h.Ctx, gin.H{
		"database": dbStatus,
		"redis":    redisStatus,
	})
}
