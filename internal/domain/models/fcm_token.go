package models

import "time"

// FCMToken is one push-delivery token for one of a user's devices.
// Tokens accumulate over devices; re-registering an existing token just
// refreshes its owner and device info.
type FCMToken struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserUID    string    `gorm:"type:varchar(36);index;not null" json:"userUid"`
	Token      string    `gorm:"type:varchar(512);uniqueIndex;not null" json:"-"`
	DeviceInfo string    `gorm:"type:varchar(255)" json:"deviceInfo,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
