package services

import (
	"context"
	"encoding/json"
	"teleconsult-http-service/internal/domain/models"
	"teleconsult-http-service/internal/infrastructure/config"
	"time"

	"github.com/go-redis/redis/v8"
)

// Presence keys live under status:<uid> and carry a TTL so a user whose
// client stops heartbeating decays to offline without an explicit write.
const (
	presenceKeyPrefix = "status:"
	// PresenceTTL bounds how long a presence entry survives without a
	// heartbeat. Heartbeats arrive every 30s, so three missed beats
	// expire the key.
	PresenceTTL = 90 * time.Second
)

// InterfaceRedisService defines the Redis service interface
type InterfaceRedisService interface {
	Set(key string, value interface{}, expiration time.Duration) error
	Get(key string, dest interface{}) error
	Delete(key string) error
	SetPresence(uid string, entry models.PresenceEntry) error
	GetPresence(uid string) (*models.PresenceEntry, error)
	DeletePresence(uid string) error
	ScanPresenceKeys() ([]string, error)
	Ping() error
}

// RedisService handles Redis operations
type RedisService struct {
	Client *redis.Client
	Ctx    context.Context
}

// NewRedisService creates a new Redis service
func NewRedisService(cfg *config.Config) InterfaceRedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()

	return &RedisService{
		Client: client,
		Ctx:    ctx,
	}
}

// Set sets a key-value pair in Redis with expiration
func (s *RedisService) Set(key string, value interface{}, expiration time.Duration) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return s.Client.Set(s.Ctx, key, jsonValue, expiration).Err()
}

// Get gets a value from Redis by key
func (s *RedisService) Get(key string, dest interface{}) error {
	val, err := s.Client.Get(s.Ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Delete deletes a key from Redis
func (s *RedisService) Delete(key string) error {
	return s.Client.Del(s.Ctx, key).Err()
}

// SetPresence writes a user's presence entry with the standard TTL.
func (s *RedisService) SetPresence(uid string, entry models.PresenceEntry) error {
	return s.Set(presenceKeyPrefix+uid, entry, PresenceTTL)
}

// GetPresence reads a user's presence entry. A missing key returns
// redis.Nil, which callers treat as offline.
func (s *RedisService) GetPresence(uid string) (*models.PresenceEntry, error) {
	var entry models.PresenceEntry
	if err := s.Get(presenceKeyPrefix+uid, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeletePresence removes a user's presence entry, used on explicit logout.
func (s *RedisService) DeletePresence(uid string) error {
	return s.Delete(presenceKeyPrefix + uid)
}

// ScanPresenceKeys returns the UIDs of all users with a live presence key.
func (s *RedisService) ScanPresenceKeys() ([]string, error) {
	var uids []string
	iter := s.Client.Scan(s.Ctx, 0, presenceKeyPrefix+"*", 100).Iterator()
	for iter.Next(s.Ctx) {
		uids = append(uids, iter.Val()[len(presenceKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return uids, nil
}

// Ping checks the Redis connection
func (s *RedisService) Ping() error {
	ctx, cancel := context.WithTimeout(s.Ctx, 5*time.Second)
	defer cancel()
	return s.Client.Ping(ctx).Err()
}
