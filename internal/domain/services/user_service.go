package services

import (
	"errors"
	"fmt"
	"teleconsult-http-service/internal/domain/models"
	"teleconsult-http-service/internal/infrastructure/config"
	"teleconsult-http-service/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InterfaceUserService defines the user management service interface
type InterfaceUserService interface {
	GetAllUsers(page, pageSize int, role, facilityID string, includeInactive bool) ([]models.User, int64, error)
	GetUserByUID(uid string) (*models.User, error)
	CreateUser(user *models.User, plainPassword string) error
	UpdateUser(uid string, updates map[string]interface{}) (*models.User, error)
	DeactivateUser(uid string) error
	ReactivateUser(uid string) error
	UpdateNotificationPreferences(uid string, prefs models.NotificationPreferences) error
	RegisterFCMToken(uid, token, deviceInfo string) error
	RemoveFCMToken(uid, token string) error
	GetSupervisors() ([]models.User, error)
	EnsureAdminExists(email, password string) error
}

// UserService provides user management services
type UserService struct {
	DB     *gorm.DB
	Config *config.Config
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB, cfg *config.Config) InterfaceUserService {
	return &UserService{
		DB:     db,
		Config: cfg,
	}
}

// GetAllUsers returns a page of users with optional role and facility filters.
// Deactivated accounts are hidden unless includeInactive is set.
func (s *UserService) GetAllUsers(page, pageSize int, role, facilityID string, includeInactive bool) ([]models.User, int64, error) {
	var users []models.User
	var total int64

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := s.DB.Model(&models.User{})
	if role != "" {
		query = query.Where("role = ?", role)
	}
	if facilityID != "" {
		query = query.Where("facility_id = ?", facilityID)
	}
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&users).Error; err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// GetUserByUID returns a single user with its FCM tokens preloaded.
func (s *UserService) GetUserByUID(uid string) (*models.User, error) {
	var user models.User
	if err := s.DB.Preload("FCMTokens").Where("uid = ?", uid).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a new account. The UID is generated here; the caller
// provides everything else. FacilityID is required for facility accounts
// and forbidden for the other roles.
func (s *UserService) CreateUser(user *models.User, plainPassword string) error {
	if !models.ValidRole(user.Role) {
		return fmt.Errorf("invalid role: %s", user.Role)
	}

	if user.Role == models.RoleFacility && (user.FacilityID == nil || *user.FacilityID == "") {
		return errors.New("facility accounts require a facility id")
	}
	if user.Role != models.RoleFacility {
		user.FacilityID = nil
	}

	var count int64
	if err := s.DB.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errors.New("email already registered")
	}

	hashed, err := utils.HashPassword(plainPassword)
	if err != nil {
		return err
	}

	user.UID = uuid.New().String()
	user.Password = hashed
	user.IsActive = true
	user.Status = models.PresenceOffline

	return s.DB.Create(user).Error
}

// UpdateUser applies a partial update to an account. Only whitelisted
// fields can change this way; role and facility moves go through here,
// password changes are re-hashed.
func (s *UserService) UpdateUser(uid string, updates map[string]interface{}) (*models.User, error) {
	var user models.User
	if err := s.DB.Where("uid = ?", uid).First(&user).Error; err != nil {
		return nil, err
	}

	allowed := map[string]bool{
		"display_name": true,
		"phone_number": true,
		"role":         true,
		"facility_id":  true,
		"password":     true,
	}

	filtered := make(map[string]interface{}, len(updates))
	for key, value := range updates {
		if !allowed[key] {
			continue
		}
		filtered[key] = value
	}

	if role, ok := filtered["role"].(string); ok {
		if !models.ValidRole(models.UserRole(role)) {
			return nil, fmt.Errorf("invalid role: %s", role)
		}
		if role != string(models.RoleFacility) {
			filtered["facility_id"] = nil
		}
	}

	if plain, ok := filtered["password"].(string); ok {
		hashed, err := utils.HashPassword(plain)
		if err != nil {
			return nil, err
		}
		filtered["password"] = hashed
	}

	if len(filtered) == 0 {
		return &user, nil
	}

	if err := s.DB.Model(&user).Updates(filtered).Error; err != nil {
		return nil, err
	}

	return s.GetUserByUID(uid)
}

// DeactivateUser soft-deletes an account by flipping IsActive. The row,
// its call history, and its login identity are kept.
func (s *UserService) DeactivateUser(uid string) error {
	result := s.DB.Model(&models.User{}).Where("uid = ?", uid).Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ReactivateUser restores a deactivated account.
func (s *UserService) ReactivateUser(uid string) error {
	result := s.DB.Model(&models.User{}).Where("uid = ?", uid).Update("is_active", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateNotificationPreferences replaces a user's notification preferences.
func (s *UserService) UpdateNotificationPreferences(uid string, prefs models.NotificationPreferences) error {
	result := s.DB.Model(&models.User{}).Where("uid = ?", uid).Updates(map[string]interface{}{
		"notify_push_enabled":         prefs.PushEnabled,
		"notify_email_enabled":        prefs.EmailEnabled,
		"notify_in_app_sound_enabled": prefs.InAppSoundEnabled,
		"notify_notification_sound":   prefs.NotificationSound,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RegisterFCMToken stores a push token for one of the user's devices.
// Registering a token that already exists refreshes its device info.
func (s *UserService) RegisterFCMToken(uid, token, deviceInfo string) error {
	if token == "" {
		return errors.New("token is required")
	}

	var existing models.FCMToken
	err := s.DB.Where("token = ?", token).First(&existing).Error
	if err == nil {
		return s.DB.Model(&existing).Updates(map[string]interface{}{
			"user_uid":    uid,
			"device_info": deviceInfo,
		}).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return s.DB.Create(&models.FCMToken{
		UserUID:    uid,
		Token:      token,
		DeviceInfo: deviceInfo,
	}).Error
}

// RemoveFCMToken drops a push token, used on logout or when the push
// provider reports the token invalid.
func (s *UserService) RemoveFCMToken(uid, token string) error {
	return s.DB.Where("user_uid = ? AND token = ?", uid, token).Delete(&models.FCMToken{}).Error
}

// GetSupervisors returns all active supervisor accounts, the callable
// roster shown to facility staff.
func (s *UserService) GetSupervisors() ([]models.User, error) {
	var users []models.User
	if err := s.DB.Where("role = ? AND is_active = ?", models.RoleSupervisor, true).
		Order("display_name ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// EnsureAdminExists creates the bootstrap admin account if no admin is
// present, so a fresh deployment can be logged into.
func (s *UserService) EnsureAdminExists(email, password string) error {
	var count int64
	if err := s.DB.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	admin := &models.User{
		Email:       email,
		DisplayName: "Administrator",
		Role:        models.RoleAdmin,
	}
	return s.CreateUser(admin, password)
}
