package config

import (
	"reflect"
	"testing"
)

func TestAllowedOrigins(t *testing.T) {
	tests := []struct {
		name    string
		origins string
		want    []string
	}{
		{"single origin", "http://localhost:3000", []string{"http://localhost:3000"}},
		{"multiple origins", "http://localhost:3000,https://app.example.com", []string{"http://localhost:3000", "https://app.example.com"}},
		{"whitespace is trimmed", " http://localhost:3000 , https://app.example.com ", []string{"http://localhost:3000", "https://app.example.com"}},
		{"empty entries are dropped", "http://localhost:3000,,", []string{"http://localhost:3000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{CORSOrigins: tt.origins}
			if got := cfg.AllowedOrigins(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AllowedOrigins() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{
		DBUser:     "app",
		DBPassword: "secret",
		DBHost:     "db.internal",
		DBPort:     "3306",
		DBName:     "teleconsult_db",
	}

	want := "app:secret@tcp(db.internal:3306)/teleconsult_db?charset=utf8mb4&parseTime=True&loc=Local&allowNativePasswords=true&multiStatements=true"
	if got := cfg.GetDSN(); got != want {
		t.Errorf("GetDSN() = %q, want %q", got, want)
	}
}

func TestGetRedisAddr(t *testing.T) {
	cfg := &Config{RedisHost: "redis.internal", RedisPort: "6379"}
	if got := cfg.GetRedisAddr(); got != "redis.internal:6379" {
		t.Errorf("GetRedisAddr() = %q, want redis.internal:6379", got)
	}
}

func TestEnvPrefixSelection(t *testing.T) {
	t.Setenv("ENV_TYPE", "SERVER")
	t.Setenv("SERVER_DB_HOST", "prod-db")
	t.Setenv("DB_HOST", "plain-db")

	cfg := LoadConfig()
	if cfg.DBHost != "prod-db" {
		t.Errorf("DBHost = %q, want prod-db (prefixed variable should win)", cfg.DBHost)
	}
}

func TestEnvFallbackToBareName(t *testing.T) {
	t.Setenv("ENV_TYPE", "LOCAL")
	t.Setenv("DB_NAME", "fallback_db")

	cfg := LoadConfig()
	if cfg.DBName != "fallback_db" {
		t.Errorf("DBName = %q, want fallback_db", cfg.DBName)
	}
}
