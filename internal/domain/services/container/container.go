package container

import (
	"context"
	"log"
	"sync"
	"time"

	"teleconsult-http-service/internal/domain/services"
	"teleconsult-http-service/internal/infrastructure/config"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ServiceContainer manages dependency injection for all services
type ServiceContainer struct {
	db     *gorm.DB
	config *config.Config
	redis  *redis.Client

	// Base services
	jwtService   services.InterfaceJWTService
	redisService services.InterfaceRedisService

	// Call signaling
	roomService         services.InterfaceRoomService
	notificationService services.InterfaceNotificationService
	callService         services.InterfaceCallService

	// Business services
	userService       services.InterfaceUserService
	presenceService   services.InterfacePresenceService
	callRecordService services.InterfaceCallRecordService

	mu sync.RWMutex
}

// NewServiceContainer creates a new service container
func NewServiceContainer(db *gorm.DB, cfg *config.Config, redisClient *redis.Client) *ServiceContainer {
	if db == nil {
		panic("database connection is nil")
	}

	if cfg == nil {
		panic("config is nil")
	}

	if redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Redis connection test failed: %v, continuing without cache", err)
		}
	}

	container := &ServiceContainer{
		db:     db,
		config: cfg,
		redis:  redisClient,
	}
	container.initializeServices()
	return container
}

// initializeServices wires up all services
func (c *ServiceContainer) initializeServices() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.jwtService = services.NewJWTService(c.config, c.db)
	c.redisService = services.NewRedisService(c.config)

	c.roomService = services.NewRoomService(c.config)
	c.notificationService = services.NewNotificationService(c.db, c.config)
	c.callService = services.NewCallService(c.db, c.config, c.roomService, c.notificationService)

	if err := c.callService.Connect(); err != nil {
		log.Printf("MQTT connection failed: %v", err)
	}

	c.userService = services.NewUserService(c.db, c.config)
	c.presenceService = services.NewPresenceService(c.db, c.config, c.redisService, c.callService)
	c.callRecordService = services.NewCallRecordService(c.db, c.config)

	// Presence mirror sweep runs for the life of the process
	c.presenceService.StartReconciliation()
}

// GetService returns the service registered under a name
func (c *ServiceContainer) GetService(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch name {
	case "config":
		return c.config
	case "db":
		return c.db
	case "jwt":
		return c.jwtService
	case "redis":
		return c.redisService
	case "room":
		return c.roomService
	case "notification":
		return c.notificationService
	case "call":
		return c.callService
	case "user":
		return c.userService
	case "presence":
		return c.presenceService
	case "call_record":
		return c.callRecordService
	default:
		return nil
	}
}

// GetDB returns the database connection
func (c *ServiceContainer) GetDB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
