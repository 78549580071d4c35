package models

import "time"

// Presence states.
const (
	PresenceOnline  = "online"
	PresenceAway    = "away"
	PresenceOffline = "offline"
)

// PresenceEntry is the realtime-store value kept in Redis under
// status:<uid>. Redis is the source of truth for liveness; the key
// carries a TTL so an abruptly disconnected client decays to offline
// without any explicit write.
type PresenceEntry struct {
	State string `json:"state"`
	// LastChanged is when the state last moved, LastActive when the user
	// last interacted. An online user whose LastActive goes quiet past
	// the idle threshold is demoted to away on the next heartbeat.
	LastChanged int64 `json:"last_changed"`
	LastActive  int64 `json:"last_active"`
}

// PresenceRecord is the database mirror of a user's presence, a derived
// read cache of the Redis entry. The two stores are reconciled by a
// periodic sweep; transient divergence between them is tolerated.
type PresenceRecord struct {
	UID      string    `gorm:"type:varchar(36);primaryKey" json:"uid"`
	Status   string    `gorm:"type:varchar(20)" json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}
