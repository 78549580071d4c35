package models

import (
	"time"
)

// UserRole enumerates the three account types of the system.
type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleSupervisor UserRole = "supervisor"
	RoleFacility   UserRole = "facility"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r UserRole) bool {
	return r == RoleAdmin || r == RoleSupervisor || r == RoleFacility
}

// NotificationPreferences controls which notification channels a user
// has opted into.
type NotificationPreferences struct {
	PushEnabled       bool   `gorm:"default:true" json:"pushEnabled"`
	EmailEnabled      bool   `gorm:"default:false" json:"emailEnabled"`
	InAppSoundEnabled bool   `gorm:"default:true" json:"inAppSoundsEnabled"`
	NotificationSound string `gorm:"type:varchar(50)" json:"notificationSound,omitempty"`
}

// User represents an account: admins manage users, facility staff place
// calls, supervisors receive them. Accounts are soft-deleted by flipping
// IsActive; the row (and its login identity) is kept.
type User struct {
	UID         string   `gorm:"type:varchar(36);primaryKey" json:"uid"`
	Email       string   `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password    string   `gorm:"type:varchar(100);not null" json:"-"`
	DisplayName string   `gorm:"type:varchar(100)" json:"displayName"`
	Role        UserRole `gorm:"type:varchar(20);index" json:"role"`
	// FacilityID is set iff Role == facility.
	FacilityID *string `gorm:"type:varchar(36)" json:"facilityId,omitempty"`
	PhoneNumber string `gorm:"type:varchar(30)" json:"phoneNumber,omitempty"`
	Status      string `gorm:"type:varchar(20);default:offline" json:"status"`
	IsActive    bool   `gorm:"default:true" json:"isActive"`

	NotificationPreferences NotificationPreferences `gorm:"embedded;embeddedPrefix:notify_" json:"notificationPreferences"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Relations
	FCMTokens []FCMToken `gorm:"foreignKey:UserUID;references:UID" json:"fcmTokens,omitempty"`
}
