package models

import (
	"testing"
	"time"
)

func TestCallRegistryCreateAndGet(t *testing.T) {
	registry := NewCallRegistry()

	session, err := registry.CreateSession("call-1", "caller", "recipient", "https://rooms.example/call-1")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if session.Status != CallStatusRinging {
		t.Errorf("new session status = %s, want %s", session.Status, CallStatusRinging)
	}

	got, exists := registry.GetSession("call-1")
	if !exists {
		t.Fatal("session not found after creation")
	}
	if got.CallerID != "caller" || got.RecipientID != "recipient" {
		t.Errorf("unexpected participants: caller=%s, recipient=%s", got.CallerID, got.RecipientID)
	}

	if _, err := registry.CreateSession("call-1", "x", "y", ""); err == nil {
		t.Error("expected duplicate session creation to fail")
	}
}

func TestCallRegistryFindByParticipant(t *testing.T) {
	registry := NewCallRegistry()
	if _, err := registry.CreateSession("call-1", "caller", "recipient", ""); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, busy := registry.FindByParticipant("caller"); !busy {
		t.Error("caller should be busy")
	}
	if _, busy := registry.FindByParticipant("recipient"); !busy {
		t.Error("recipient should be busy")
	}
	if _, busy := registry.FindByParticipant("bystander"); busy {
		t.Error("bystander should not be busy")
	}

	if _, err := registry.EndSession("call-1"); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if _, busy := registry.FindByParticipant("caller"); busy {
		t.Error("caller should be free after the session ends")
	}
}

func TestCallRegistryUpdateAndEnd(t *testing.T) {
	registry := NewCallRegistry()
	if _, err := registry.CreateSession("call-1", "caller", "recipient", ""); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := registry.UpdateSessionStatus("call-1", CallStatusActive); err != nil {
		t.Fatalf("UpdateSessionStatus failed: %v", err)
	}
	session, _ := registry.GetSession("call-1")
	if session.Status != CallStatusActive {
		t.Errorf("session status = %s, want %s", session.Status, CallStatusActive)
	}

	ended, err := registry.EndSession("call-1")
	if err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if ended.EndTime.IsZero() {
		t.Error("ended session should carry an end time")
	}
	if registry.SessionExists("call-1") {
		t.Error("session should be gone after EndSession")
	}

	if err := registry.UpdateSessionStatus("call-1", CallStatusEnded); err == nil {
		t.Error("expected update of a removed session to fail")
	}
	if _, err := registry.EndSession("call-1"); err == nil {
		t.Error("expected ending a removed session to fail")
	}
}

func TestCallRegistryCleanupStaleSessions(t *testing.T) {
	registry := NewCallRegistry()

	ringing, _ := registry.CreateSession("ringing-call", "a", "b", "")
	active, _ := registry.CreateSession("active-call", "c", "d", "")
	registry.CreateSession("fresh-call", "e", "f", "")

	// Age the first two past their respective timeouts
	ringing.mu.Lock()
	ringing.LastActivity = time.Now().Add(-2 * time.Minute)
	ringing.mu.Unlock()

	active.mu.Lock()
	active.Status = CallStatusActive
	active.LastActivity = time.Now().Add(-3 * time.Hour)
	active.mu.Unlock()

	cleaned := registry.CleanupStaleSessions(2*time.Hour, 1*time.Minute)
	if cleaned != 2 {
		t.Errorf("cleaned = %d, want 2", cleaned)
	}
	if registry.SessionExists("ringing-call") {
		t.Error("stale ringing session should be dropped")
	}
	if registry.SessionExists("active-call") {
		t.Error("stale active session should be dropped")
	}
	if !registry.SessionExists("fresh-call") {
		t.Error("fresh session should survive cleanup")
	}
}

func TestCallRegistryGetAllActiveSessions(t *testing.T) {
	registry := NewCallRegistry()
	registry.CreateSession("call-1", "a", "b", "")
	registry.CreateSession("call-2", "c", "d", "")

	sessions := registry.GetAllActiveSessions()
	if len(sessions) != 2 {
		t.Errorf("len(sessions) = %d, want 2", len(sessions))
	}
}
