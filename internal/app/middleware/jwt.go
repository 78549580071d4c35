package middleware

import (
	"net/http"
	"strings"
	"teleconsult-http-service/internal/domain/services"
	"teleconsult-http-service/internal/infrastructure/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

var jwtService services.InterfaceJWTService

// InitAuthMiddleware initializes the auth middleware
func InitAuthMiddleware(cfg *config.Config, db *gorm.DB) {
	jwtService = services.NewJWTService(cfg, db)
}

// extractToken strips the Bearer prefix from an authorization header
func extractToken(authHeader string) string {
	if len(authHeader) > 7 && strings.HasPrefix(authHeader, "Bearer ") {
		return authHeader[7:]
	}
	return authHeader
}

func unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"code":    401,
		"message": message,
		"data":    nil,
	})
	c.Abort()
}

func forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, gin.H{
		"code":    403,
		"message": message,
		"data":    nil,
	})
	c.Abort()
}

// validateRequest parses the bearer token and returns its claims.
func validateRequest(c *gin.Context) (jwt.MapClaims, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		unauthorized(c, "Authorization header is required")
		return nil, false
	}

	tokenString := extractToken(authHeader)
	token, err := jwtService.ValidateToken(tokenString)
	if err != nil {
		unauthorized(c, "Invalid token: "+err.Error())
		return nil, false
	}

	if !token.Valid {
		unauthorized(c, "Invalid token")
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		unauthorized(c, "Invalid token claims")
		return nil, false
	}

	return claims, true
}

// storeClaims puts the standard claim values into the request context
func storeClaims(c *gin.Context, claims jwt.MapClaims) {
	c.Set("uid", claims["uid"])
	c.Set("role", claims["role"])
	if facilityID, exists := claims["facility_id"]; exists && facilityID != nil {
		c.Set("facilityID", facilityID)
	}
	c.Set("claims", claims)
}

// AuthenticateAdmin requires the admin role
func AuthenticateAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := validateRequest(c)
		if !ok {
			return
		}

		if role, exists := claims["role"].(string); !exists || role != "admin" {
			forbidden(c, "Insufficient permissions: requires admin role")
			return
		}

		storeClaims(c, claims)
		c.Next()
	}
}

// AuthenticateSupervisor requires the supervisor role. Admins may access
// supervisor endpoints too.
func AuthenticateSupervisor() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := validateRequest(c)
		if !ok {
			return
		}

		role, exists := claims["role"].(string)
		if !exists || (role != "supervisor" && role != "admin") {
			forbidden(c, "Insufficient permissions: requires supervisor role")
			return
		}

		storeClaims(c, claims)
		c.Next()
	}
}

// AuthenticateUser requires any valid role
func AuthenticateUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := validateRequest(c)
		if !ok {
			return
		}

		role, exists := claims["role"].(string)
		if !exists || (role != "facility" && role != "supervisor" && role != "admin") {
			forbidden(c, "Insufficient permissions: requires valid user role")
			return
		}

		storeClaims(c, claims)
		c.Next()
	}
}
