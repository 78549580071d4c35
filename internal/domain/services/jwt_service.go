package services

import (
	"errors"
	"fmt"
	"teleconsult-http-service/internal/domain/models"
	"teleconsult-http-service/internal/infrastructure/config"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// InterfaceJWTService defines the JWT service interface
type InterfaceJWTService interface {
	GenerateToken(uid string, role string, facilityID *string) (string, error)
	ValidateToken(tokenString string) (*jwt.Token, error)
	ExtractClaims(tokenString string) (*JWTClaims, error)
	Login(email, password string) (*LoginResult, error)
}

// LoginResult represents the outcome of a successful login
type LoginResult struct {
	Token       string      `json:"token"`
	UID         string      `json:"uid"`
	Role        string      `json:"role"`
	Email       string      `json:"email"`
	DisplayName string      `json:"displayName"`
	FacilityID  *string     `json:"facilityId,omitempty"`
	CreatedAt   interface{} `json:"createdAt"`
}

// JWTService provides JWT related services
type JWTService struct {
	secretKey string
	issuer    string
	DB        *gorm.DB
}

// JWTClaims defines the claim structure of a token
type JWTClaims struct {
	UID        string  `json:"uid"`
	Role       string  `json:"role"`
	FacilityID *string `json:"facility_id,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg *config.Config, db *gorm.DB) InterfaceJWTService {
	return &JWTService{
		secretKey: cfg.JWTSecretKey,
		issuer:    "teleconsult-http-service",
		DB:        db,
	}
}

// GenerateToken generates a JWT token
func (s *JWTService) GenerateToken(uid string, role string, facilityID *string) (string, error) {
	// Tokens are valid for 24 hours
	expirationTime := time.Now().Add(24 * time.Hour)

	claims := &JWTClaims{
		UID:        uid,
		Role:       role,
		FacilityID: facilityID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secretKey))
}

// ValidateToken validates a JWT token
func (s *JWTService) ValidateToken(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secretKey), nil
	})
}

// ExtractClaims extracts the claims from a token
func (s *JWTService) ExtractClaims(tokenString string) (*JWTClaims, error) {
	token, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		jwtClaims := &JWTClaims{}

		if iss, ok := claims["iss"].(string); ok {
			jwtClaims.Issuer = iss
		}

		if uid, ok := claims["uid"].(string); ok {
			jwtClaims.UID = uid
		}

		if role, ok := claims["role"].(string); ok {
			jwtClaims.Role = role
		}

		if facilityID, ok := claims["facility_id"].(string); ok {
			jwtClaims.FacilityID = &facilityID
		}

		return jwtClaims, nil
	}

	return nil, errors.New("invalid token claims")
}

// Login authenticates a user by email and password. Deactivated accounts
// keep their row but may not log in.
func (s *JWTService) Login(email, password string) (*LoginResult, error) {
	var user models.User
	if err := s.DB.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, errors.New("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, errors.New("invalid email or password")
	}

	if !user.IsActive {
		return nil, errors.New("account is deactivated")
	}

	token, err := s.GenerateToken(user.UID, string(user.Role), user.FacilityID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:       token,
		UID:         user.UID,
		Role:        string(user.Role),
		Email:       user.Email,
		DisplayName: user.DisplayName,
		FacilityID:  user.FacilityID,
		CreatedAt:   user.CreatedAt,
	}, nil
}
