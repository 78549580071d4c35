package services

import (
	"teleconsult-http-service/internal/infrastructure/config"
	"testing"
)

func newJWTServiceForTest(secret string) InterfaceJWTService {
	return NewJWTService(&config.Config{JWTSecretKey: secret}, nil)
}

func TestGenerateAndExtractClaims(t *testing.T) {
	service := newJWTServiceForTest("unit-test-secret")

	facilityID := "facility-7"
	token, err := service.GenerateToken("user-1", "facility", &facilityID)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := service.ExtractClaims(token)
	if err != nil {
		t.Fatalf("ExtractClaims failed: %v", err)
	}

	if claims.UID != "user-1" {
		t.Errorf("uid = %q, want user-1", claims.UID)
	}
	if claims.Role != "facility" {
		t.Errorf("role = %q, want facility", claims.Role)
	}
	if claims.FacilityID == nil || *claims.FacilityID != "facility-7" {
		t.Errorf("facility_id = %v, want facility-7", claims.FacilityID)
	}
	if claims.Issuer != "teleconsult-http-service" {
		t.Errorf("issuer = %q, want teleconsult-http-service", claims.Issuer)
	}
}

func TestExtractClaimsNoFacility(t *testing.T) {
	service := newJWTServiceForTest("unit-test-secret")

	token, err := service.GenerateToken("admin-1", "admin", nil)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := service.ExtractClaims(token)
	if err != nil {
		t.Fatalf("ExtractClaims failed: %v", err)
	}
	if claims.FacilityID != nil {
		t.Errorf("facility_id = %v, want nil", claims.FacilityID)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	issuer := newJWTServiceForTest("secret-a")
	verifier := newJWTServiceForTest("secret-b")

	token, err := issuer.GenerateToken("user-1", "supervisor", nil)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := verifier.ValidateToken(token); err == nil {
		t.Error("expected validation to fail under a different secret")
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	service := newJWTServiceForTest("unit-test-secret")

	if _, err := service.ValidateToken("not.a.token"); err == nil {
		t.Error("expected validation of a malformed token to fail")
	}
}
