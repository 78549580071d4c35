package models

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// CallSession is the in-memory view of a live call. The durable Call row
// is the source of truth for status; the session exists so the service can
// run the ring timer and answer "is this user busy" without a query.
type CallSession struct {
	CallID       string
	CallerID     string
	RecipientID  string
	RoomURL      string
	StartTime    time.Time
	EndTime      time.Time
	Status       CallStatus
	LastActivity time.Time
	mu           sync.Mutex
}

// CallRegistry tracks all live call sessions.
type CallRegistry struct {
	sessions map[string]*CallSession
	mu       sync.RWMutex
}

// NewCallRegistry creates an empty registry.
func NewCallRegistry() *CallRegistry {
	return &CallRegistry{
		sessions: make(map[string]*CallSession),
	}
}

// CreateSession registers a new live session.
func (r *CallRegistry) CreateSession(callID, callerID, recipientID, roomURL string) (*CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[callID]; exists {
		return nil, errors.New("session already exists")
	}

	session := &CallSession{
		CallID:       callID,
		CallerID:     callerID,
		RecipientID:  recipientID,
		RoomURL:      roomURL,
		StartTime:    time.Now(),
		Status:       CallStatusRinging,
		LastActivity: time.Now(),
	}

	r.sessions[callID] = session

	log.Printf("[CALL] session created: id=%s, caller=%s, recipient=%s", callID, callerID, recipientID)

	return session, nil
}

// GetSession returns the session for a call id.
func (r *CallRegistry) GetSession(callID string) (*CallSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[callID]
	return session, exists
}

// UpdateSessionStatus moves a session to a new status.
func (r *CallRegistry) UpdateSessionStatus(callID string, status CallStatus) error {
	r.mu.RLock()
	session, exists := r.sessions[callID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("session not found: %s", callID)
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	session.Status = status
	session.LastActivity = time.Now()

	return nil
}

// EndSession removes a session from the registry and returns it.
func (r *CallRegistry) EndSession(callID string) (*CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[callID]
	if !exists {
		return nil, fmt.Errorf("session not found: %s", callID)
	}

	session.mu.Lock()
	session.EndTime = time.Now()
	session.LastActivity = time.Now()
	session.mu.Unlock()

	delete(r.sessions, callID)

	log.Printf("[CALL] session ended: id=%s, duration=%v", callID, session.EndTime.Sub(session.StartTime))

	return session, nil
}

// FindByParticipant returns the live session a user takes part in, if any.
// At most one live session per user is allowed (reject-busy policy).
func (r *CallRegistry) FindByParticipant(uid string) (*CallSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, session := range r.sessions {
		if session.CallerID == uid || session.RecipientID == uid {
			return session, true
		}
	}
	return nil, false
}

// GetAllActiveSessions returns a snapshot of all live sessions.
func (r *CallRegistry) GetAllActiveSessions() []*CallSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	activeSessions := make([]*CallSession, 0, len(r.sessions))
	for _, session := range r.sessions {
		activeSessions = append(activeSessions, session)
	}

	return activeSessions
}

// CleanupStaleSessions removes sessions without recent activity and returns
// how many were dropped. Ringing sessions are bounded by the ring timeout,
// active ones by the call timeout.
func (r *CallRegistry) CleanupStaleSessions(callTimeout, ringTimeout time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var cleanedCount int
	now := time.Now()

	for callID, session := range r.sessions {
		session.mu.Lock()
		lastActivity := session.LastActivity
		status := session.Status
		session.mu.Unlock()

		var timeout time.Duration
		if status == CallStatusRinging {
			timeout = ringTimeout
		} else {
			timeout = callTimeout
		}

		if now.Sub(lastActivity) > timeout {
			log.Printf("[CALL] stale session dropped: id=%s, status=%s, last activity=%v", callID, status, lastActivity)
			delete(r.sessions, callID)
			cleanedCount++
		}
	}

	return cleanedCount
}

// SessionExists reports whether a session is registered for a call id.
func (r *CallRegistry) SessionExists(callID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.sessions[callID]
	return exists
}
