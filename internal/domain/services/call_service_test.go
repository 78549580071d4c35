package services

import (
	"sync"
	"teleconsult-http-service/internal/domain/models"
	"testing"
	"time"

	"gorm.io/gorm"
)

// newCallServiceForTest builds a call service with short timers and no
// broker. Publishing falls through to the nil client guard and is logged.
func newCallServiceForTest(db *gorm.DB, notifications InterfaceNotificationService) *CallService {
	return &CallService{
		DB:            db,
		Notifications: notifications,
		Registry:      models.NewCallRegistry(),
		ProcessedMsgs: &sync.Map{},
		CallChannels:  &sync.Map{},

		ringTimeout:     50 * time.Millisecond,
		maxCallDuration: time.Minute,
	}
}

// startSession wires up the control channel and session goroutine the way
// InitiateCall does.
func startSession(s *CallService, call *models.Call) chan CallControlMessage {
	s.Registry.CreateSession(call.ID, call.CallerID, call.RecipientID, call.RoomURL)
	controlChan := make(chan CallControlMessage, 10)
	s.CallChannels.Store(call.ID, controlChan)
	go s.handleCallSession(call.ID, call.CallerID, call.RecipientID, controlChan)
	return controlChan
}

func waitForCallStatus(t *testing.T, db *gorm.DB, callID string, want models.CallStatus) models.Call {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	var call models.Call
	for time.Now().Before(deadline) {
		if err := db.Where("id = ?", callID).First(&call).Error; err != nil {
			t.Fatalf("failed to load call: %v", err)
		}
		if call.Status == want {
			return call
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("call %s status = %s, want %s", callID, call.Status, want)
	return call
}

func waitForPushCount(t *testing.T, rec *pushRecorder, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec.count() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("push sends = %d, want %d", rec.count(), want)
}

// A state operation can race the session goroutine's teardown and touch a
// channel whose session is already gone. Signaling must not take the
// process down in that window.
func TestSignalSessionSurvivesTornDownSession(t *testing.T) {
	service := &CallService{CallChannels: &sync.Map{}}

	staleChan := make(chan CallControlMessage, 1)
	close(staleChan)
	service.CallChannels.Store("call-1", staleChan)

	service.signalSession("call-1", CallControlMessage{
		Signal: SignalAnswered,
		CallID: "call-1",
		Action: "answered",
	})
}

func TestSignalSessionUnknownCall(t *testing.T) {
	service := &CallService{CallChannels: &sync.Map{}}

	service.signalSession("no-such-call", CallControlMessage{
		Signal: SignalHangup,
		CallID: "no-such-call",
		Action: "hangup",
	})
}

func TestRingTimeoutMarksCallMissed(t *testing.T) {
	db := newTestDB(t)
	caller, recipient := seedCallParties(t, db)
	call := seedRingingCall(t, db, caller, recipient)

	rec := &pushRecorder{}
	gateway := newPushGateway(t, rec)
	defer gateway.Close()

	service := newCallServiceForTest(db, newNotificationServiceForTest(db, gateway.URL))
	startSession(service, call)

	updated := waitForCallStatus(t, db, call.ID, models.CallStatusTimeout)
	if updated.EndedAt == nil {
		t.Error("ended_at should be set on a timed out call")
	}

	waitForPushCount(t, rec, 1)
	if types := rec.all(); types[0] != PushTypeMissedCall {
		t.Errorf("push type = %q, want %q", types[0], PushTypeMissedCall)
	}
	if got := rec.count(); got != 1 {
		t.Errorf("push sends = %d, want 1", got)
	}

	if _, ok := service.Registry.GetSession(call.ID); ok {
		t.Error("registry session should be gone after ring timeout")
	}
}

func TestAcceptStopsRingTimer(t *testing.T) {
	db := newTestDB(t)
	caller, recipient := seedCallParties(t, db)
	call := seedRingingCall(t, db, caller, recipient)

	rec := &pushRecorder{}
	gateway := newPushGateway(t, rec)
	defer gateway.Close()

	service := newCallServiceForTest(db, newNotificationServiceForTest(db, gateway.URL))
	startSession(service, call)

	accepted, err := service.AcceptCall(call.ID, recipient.UID)
	if err != nil {
		t.Fatalf("AcceptCall failed: %v", err)
	}
	if accepted.Status != models.CallStatusActive {
		t.Fatalf("status = %s, want %s", accepted.Status, models.CallStatusActive)
	}
	if accepted.AnsweredAt == nil {
		t.Error("answered_at should be set on accept")
	}

	// Well past the ring deadline the call must still be active and no
	// missed call push sent
	time.Sleep(4 * service.ringTimeout)

	var current models.Call
	if err := db.Where("id = ?", call.ID).First(&current).Error; err != nil {
		t.Fatalf("failed to reload call: %v", err)
	}
	if current.Status != models.CallStatusActive {
		t.Errorf("status after ring deadline = %s, want %s", current.Status, models.CallStatusActive)
	}
	if got := rec.count(); got != 0 {
		t.Errorf("push sends = %d, want 0 for an answered call", got)
	}

	ended, err := service.HangupCall(call.ID, recipient.UID)
	if err != nil {
		t.Fatalf("HangupCall failed: %v", err)
	}
	if ended.Status != models.CallStatusEnded {
		t.Errorf("status after hangup = %s, want %s", ended.Status, models.CallStatusEnded)
	}
	if ended.EndedAt == nil {
		t.Error("ended_at should be set on hangup")
	}
}
