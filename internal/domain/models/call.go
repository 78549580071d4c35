package models

import (
	"time"
)

// CallStatus is the lifecycle state of a call record.
type CallStatus string

const (
	CallStatusRinging  CallStatus = "ringing"
	CallStatusActive   CallStatus = "active"
	CallStatusRejected CallStatus = "rejected"
	CallStatusTimeout  CallStatus = "timeout"
	CallStatusEnded    CallStatus = "ended"
)

// validTransitions holds the only forward status progressions a call may
// take. Everything else is rejected.
var validTransitions = map[CallStatus][]CallStatus{
	CallStatusRinging: {CallStatusActive, CallStatusRejected, CallStatusTimeout, CallStatusEnded},
	CallStatusActive:  {CallStatusEnded},
}

// CanTransition reports whether a call may move from one status to another.
func CanTransition(from, to CallStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s admits no further transitions.
func IsTerminal(s CallStatus) bool {
	return len(validTransitions[s]) == 0
}

// Call is the shared record representing one call attempt. Field names on
// the wire are part of the notification dispatcher contract and must not
// change. Participants and the room URL are immutable after creation; only
// status and its timestamps move, and each timestamp is set exactly once.
type Call struct {
	ID            string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	CallerID      string     `gorm:"type:varchar(36);index;not null" json:"callerId"`
	CallerName    string     `gorm:"type:varchar(100)" json:"callerName"`
	RecipientID   string     `gorm:"type:varchar(36);index;not null" json:"recipientId"`
	RecipientName string     `gorm:"type:varchar(100)" json:"recipientName"`
	RoomURL       string     `gorm:"type:varchar(512)" json:"roomUrl"`
	Status        CallStatus `gorm:"type:varchar(20);index" json:"status"`

	// PushNotificationSent guards against duplicate incoming-call pushes;
	// it is set at most once.
	PushNotificationSent   bool       `gorm:"default:false" json:"pushNotificationSent"`
	PushNotificationSentAt *time.Time `json:"pushNotificationSentAt,omitempty"`

	CreatedAt  time.Time  `json:"createdAt"`
	AnsweredAt *time.Time `json:"answeredAt,omitempty"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`

	// DurationSeconds is filled when an active call ends.
	DurationSeconds int `gorm:"default:0" json:"durationSeconds"`
}

// Participant reports whether uid is the caller or the recipient.
func (c *Call) Participant(uid string) bool {
	return c.CallerID == uid || c.RecipientID == uid
}
