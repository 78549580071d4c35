package middleware

import (
	"net/http"
	"net/http/httptest"
	"teleconsult-http-service/internal/domain/services"
	"teleconsult-http-service/internal/infrastructure/config"
	"testing"

	"github.com/gin-gonic/gin"
)

func newSupervisorTestRouter(t *testing.T) (*gin.Engine, services.InterfaceJWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{JWTSecretKey: "test-secret"}
	InitAuthMiddleware(cfg, nil)

	r := gin.New()
	r.GET("/missed", AuthenticateSupervisor(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": c.GetString("uid")})
	})

	return r, services.NewJWTService(cfg, nil)
}

func TestAuthenticateSupervisorRoles(t *testing.T) {
	r, tokens := newSupervisorTestRouter(t)

	cases := []struct {
		name string
		role string
		want int
	}{
		{"supervisor allowed", "supervisor", http.StatusOK},
		{"admin allowed", "admin", http.StatusOK},
		{"facility forbidden", "facility", http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := tokens.GenerateToken("user-1", tc.role, nil)
			if err != nil {
				t.Fatalf("failed to generate token: %v", err)
			}

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/missed", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			r.ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Errorf("role %s: status = %d, want %d", tc.role, w.Code, tc.want)
			}
		})
	}
}

func TestAuthenticateSupervisorMissingToken(t *testing.T) {
	r, _ := newSupervisorTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/missed", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuthenticateSupervisorBadSignature(t *testing.T) {
	r, _ := newSupervisorTestRouter(t)

	otherCfg := &config.Config{JWTSecretKey: "other-secret"}
	token, err := services.NewJWTService(otherCfg, nil).GenerateToken("user-1", "supervisor", nil)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/missed", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
