package services

import (
	"errors"
	"log"
	"teleconsult-http-service/internal/domain/models"
	"teleconsult-http-service/internal/infrastructure/config"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

const (
	// HeartbeatInterval is how often clients are expected to heartbeat.
	HeartbeatInterval = 30 * time.Second

	// IdleThreshold demotes an online user to away after this much time
	// without reported activity.
	IdleThreshold = 5 * time.Minute
)

// InterfacePresenceService defines the presence service interface
type InterfacePresenceService interface {
	Heartbeat(uid string) (*models.PresenceEntry, error)
	ReportActivity(uid string) (*models.PresenceEntry, error)
	SetOffline(uid string) error
	GetPresence(uid string) (*models.PresenceEntry, error)
	GetRoster() ([]RosterEntry, error)
	StartReconciliation()
}

// RosterEntry is one callable supervisor with their live presence.
type RosterEntry struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	State       string `json:"state"`
	LastChanged int64  `json:"lastChanged"`
}

// PresenceService tracks user availability. Redis holds the
// authoritative, TTL-bounded entry; the database mirror is a derived
// read cache kept roughly in sync by writes and a periodic sweep. A user
// whose entry expires is offline by definition.
type PresenceService struct {
	DB          *gorm.DB
	Config      *config.Config
	Redis       InterfaceRedisService
	CallService InterfaceCallService
}

// NewPresenceService creates a new presence service
func NewPresenceService(db *gorm.DB, cfg *config.Config, redisService InterfaceRedisService, callService InterfaceCallService) InterfacePresenceService {
	return &PresenceService{
		DB:          db,
		Config:      cfg,
		Redis:       redisService,
		CallService: callService,
	}
}

// ComputePresenceState derives the state a heartbeat should carry given
// the previous entry. Quiet online users decay to away; away and offline
// users stay where they are until activity brings them back.
func ComputePresenceState(previous string, lastActive, now int64) string {
	if previous == models.PresenceOnline && now-lastActive >= int64(IdleThreshold.Seconds()) {
		return models.PresenceAway
	}
	if previous == "" {
		return models.PresenceOnline
	}
	return previous
}

// Heartbeat refreshes a user's presence TTL. A missing entry means the
// user just (re)connected and comes up online; an online user idle past
// the threshold is demoted to away.
func (s *PresenceService) Heartbeat(uid string) (*models.PresenceEntry, error) {
	now := time.Now().Unix()

	entry, err := s.Redis.GetPresence(uid)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return nil, err
		}
		entry = &models.PresenceEntry{
			State:       "",
			LastChanged: now,
			LastActive:  now,
		}
	}

	newState := ComputePresenceState(entry.State, entry.LastActive, now)
	changed := newState != entry.State

	entry.State = newState
	if changed {
		entry.LastChanged = now
	}

	if err := s.Redis.SetPresence(uid, *entry); err != nil {
		return nil, err
	}

	if changed {
		s.mirrorAndBroadcast(uid, newState)
	}

	return entry, nil
}

// ReportActivity records user interaction, bringing them online and
// resetting the idle clock.
func (s *PresenceService) ReportActivity(uid string) (*models.PresenceEntry, error) {
	now := time.Now().Unix()

	entry, err := s.Redis.GetPresence(uid)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return nil, err
		}
		entry = &models.PresenceEntry{}
	}

	changed := entry.State != models.PresenceOnline
	entry.LastActive = now
	if changed {
		entry.State = models.PresenceOnline
		entry.LastChanged = now
	}

	if err := s.Redis.SetPresence(uid, *entry); err != nil {
		return nil, err
	}

	if changed {
		s.mirrorAndBroadcast(uid, models.PresenceOnline)
	}

	return entry, nil
}

// SetOffline drops a user's presence on explicit logout.
func (s *PresenceService) SetOffline(uid string) error {
	if err := s.Redis.DeletePresence(uid); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	s.mirrorAndBroadcast(uid, models.PresenceOffline)
	return nil
}

// GetPresence returns a user's current presence. A missing or expired
// entry reads as offline.
func (s *PresenceService) GetPresence(uid string) (*models.PresenceEntry, error) {
	entry, err := s.Redis.GetPresence(uid)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &models.PresenceEntry{State: models.PresenceOffline}, nil
		}
		return nil, err
	}
	return entry, nil
}

// GetRoster returns all active supervisors with their live presence, the
// list facility staff pick a callee from.
func (s *PresenceService) GetRoster() ([]RosterEntry, error) {
	var supervisors []models.User
	if err := s.DB.Where("role = ? AND is_active = ?", models.RoleSupervisor, true).
		Order("display_name ASC").
		Find(&supervisors).Error; err != nil {
		return nil, err
	}

	roster := make([]RosterEntry, 0, len(supervisors))
	for _, supervisor := range supervisors {
		entry, err := s.GetPresence(supervisor.UID)
		if err != nil {
			log.Printf("[PRESENCE] presence lookup failed: uid=%s, error=%v", supervisor.UID, err)
			entry = &models.PresenceEntry{State: models.PresenceOffline}
		}
		roster = append(roster, RosterEntry{
			UID:         supervisor.UID,
			DisplayName: supervisor.DisplayName,
			Email:       supervisor.Email,
			State:       entry.State,
			LastChanged: entry.LastChanged,
		})
	}

	return roster, nil
}

// StartReconciliation runs the sweep that converges the database mirror
// on Redis. Users whose entry expired are flipped to offline; anything
// else is copied over.
func (s *PresenceService) StartReconciliation() {
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			s.reconcile()
		}
	}()
}

// reconcile performs one sweep pass.
func (s *PresenceService) reconcile() {
	var records []models.PresenceRecord
	if err := s.DB.Where("status <> ?", models.PresenceOffline).Find(&records).Error; err != nil {
		log.Printf("[PRESENCE] reconciliation query failed: %v", err)
		return
	}

	var flipped int
	for _, record := range records {
		entry, err := s.Redis.GetPresence(record.UID)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				// Entry expired, the user is gone
				s.mirrorAndBroadcast(record.UID, models.PresenceOffline)
				flipped++
			}
			continue
		}
		if entry.State != record.Status {
			s.mirrorPresence(record.UID, entry.State)
		}
	}

	if flipped > 0 {
		log.Printf("[PRESENCE] reconciliation flipped %d users offline", flipped)
	}

	// The other direction: live entries whose mirror write was lost
	uids, err := s.Redis.ScanPresenceKeys()
	if err != nil {
		log.Printf("[PRESENCE] presence key scan failed: %v", err)
		return
	}
	for _, uid := range uids {
		var record models.PresenceRecord
		if err := s.DB.Where("uid = ?", uid).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				if entry, err := s.Redis.GetPresence(uid); err == nil {
					s.mirrorPresence(uid, entry.State)
				}
			}
		}
	}
}

// mirrorPresence upserts the database mirror row.
func (s *PresenceService) mirrorPresence(uid, state string) {
	record := models.PresenceRecord{
		UID:      uid,
		Status:   state,
		LastSeen: time.Now(),
	}
	if err := s.DB.Save(&record).Error; err != nil {
		log.Printf("[PRESENCE] mirror write failed: uid=%s, error=%v", uid, err)
	}

	// Keep the denormalized status on the user row in step
	if err := s.DB.Model(&models.User{}).Where("uid = ?", uid).Update("status", state).Error; err != nil {
		log.Printf("[PRESENCE] user status write failed: uid=%s, error=%v", uid, err)
	}
}

// mirrorAndBroadcast updates the mirror and announces the change.
func (s *PresenceService) mirrorAndBroadcast(uid, state string) {
	s.mirrorPresence(uid, state)

	if s.CallService != nil {
		if err := s.CallService.PublishPresenceUpdate(uid, state); err != nil {
			log.Printf("[PRESENCE] broadcast failed: uid=%s, error=%v", uid, err)
		}
	}
}
