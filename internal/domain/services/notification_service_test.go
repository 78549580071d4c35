package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"teleconsult-http-service/internal/domain/models"
	"teleconsult-http-service/internal/infrastructure/config"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database for one test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// A single connection keeps the in-memory database alive
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get underlying connection: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.FCMToken{}, &models.Call{}, &models.PresenceRecord{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func seedCallParties(t *testing.T, db *gorm.DB) (caller, recipient models.User) {
	t.Helper()

	caller = models.User{
		UID:         "facility-1",
		Email:       "nurse@facility.example",
		Password:    "x",
		DisplayName: "Alex Nurse",
		Role:        models.RoleFacility,
		IsActive:    true,
		NotificationPreferences: models.NotificationPreferences{
			PushEnabled: true,
		},
	}
	recipient = models.User{
		UID:         "supervisor-1",
		Email:       "sup@example.com",
		Password:    "x",
		DisplayName: "Sam Supervisor",
		Role:        models.RoleSupervisor,
		IsActive:    true,
		NotificationPreferences: models.NotificationPreferences{
			PushEnabled: true,
		},
	}

	if err := db.Create(&caller).Error; err != nil {
		t.Fatalf("failed to seed caller: %v", err)
	}
	if err := db.Create(&recipient).Error; err != nil {
		t.Fatalf("failed to seed recipient: %v", err)
	}
	if err := db.Create(&models.FCMToken{UserUID: recipient.UID, Token: "device-token-1"}).Error; err != nil {
		t.Fatalf("failed to seed token: %v", err)
	}

	return caller, recipient
}

func seedRingingCall(t *testing.T, db *gorm.DB, caller, recipient models.User) *models.Call {
	t.Helper()

	call := &models.Call{
		ID:            "call-1",
		CallerID:      caller.UID,
		CallerName:    caller.DisplayName,
		RecipientID:   recipient.UID,
		RecipientName: recipient.DisplayName,
		RoomURL:       "https://rooms.example/call-1",
		Status:        models.CallStatusRinging,
	}
	if err := db.Create(call).Error; err != nil {
		t.Fatalf("failed to seed call: %v", err)
	}
	return call
}

// pushRecorder collects the pushes a fake gateway accepted.
type pushRecorder struct {
	mu    sync.Mutex
	types []string
}

func (r *pushRecorder) record(pushType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, pushType)
}

func (r *pushRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.types)
}

func (r *pushRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

// newPushGateway returns a fake push endpoint recording accepted sends.
func newPushGateway(t *testing.T, rec *pushRecorder) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload pushPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode push payload: %v", err)
		}
		rec.record(payload.Data.Type)
		json.NewEncoder(w).Encode(pushResponse{Success: len(payload.RegistrationIDs)})
	}))
}

func newNotificationServiceForTest(db *gorm.DB, gatewayURL string) *NotificationService {
	return &NotificationService{
		DB: db,
		Config: &config.Config{
			PushAPIURL:    gatewayURL,
			PushServerKey: "test-server-key",
		},
		Client: &http.Client{Timeout: 2 * time.Second},
	}
}

func TestIncomingCallPushSentExactlyOnce(t *testing.T) {
	db := newTestDB(t)
	caller, recipient := seedCallParties(t, db)
	call := seedRingingCall(t, db, caller, recipient)

	rec := &pushRecorder{}
	gateway := newPushGateway(t, rec)
	defer gateway.Close()

	service := newNotificationServiceForTest(db, gateway.URL)

	// Double delivery of the same call must be collapsed by the
	// push_notification_sent claim
	service.deliverIncomingCallPush(call.ID)
	service.deliverIncomingCallPush(call.ID)

	if got := rec.count(); got != 1 {
		t.Errorf("push sends = %d, want 1", got)
	}
	if types := rec.all(); len(types) == 1 && types[0] != PushTypeIncomingCall {
		t.Errorf("push type = %q, want %q", types[0], PushTypeIncomingCall)
	}

	var updated models.Call
	if err := db.Where("id = ?", call.ID).First(&updated).Error; err != nil {
		t.Fatalf("failed to reload call: %v", err)
	}
	if !updated.PushNotificationSent {
		t.Error("push_notification_sent should be set after delivery")
	}
	if updated.PushNotificationSentAt == nil {
		t.Error("push_notification_sent_at should be set after delivery")
	}
}

func TestIncomingCallPushSuppressedWhenNotRinging(t *testing.T) {
	db := newTestDB(t)
	caller, recipient := seedCallParties(t, db)
	call := seedRingingCall(t, db, caller, recipient)

	// Answered during the delay window
	now := time.Now()
	if err := db.Model(call).Updates(map[string]interface{}{
		"status":      models.CallStatusActive,
		"answered_at": now,
	}).Error; err != nil {
		t.Fatalf("failed to answer call: %v", err)
	}

	rec := &pushRecorder{}
	gateway := newPushGateway(t, rec)
	defer gateway.Close()

	service := newNotificationServiceForTest(db, gateway.URL)
	service.deliverIncomingCallPush(call.ID)

	if got := rec.count(); got != 0 {
		t.Errorf("push sends = %d, want 0 for an answered call", got)
	}

	var updated models.Call
	db.Where("id = ?", call.ID).First(&updated)
	if updated.PushNotificationSent {
		t.Error("push_notification_sent must stay unset when the push is suppressed")
	}
}

func TestPushHonorsDisabledPreference(t *testing.T) {
	db := newTestDB(t)
	caller, recipient := seedCallParties(t, db)
	if err := db.Model(&models.User{}).Where("uid = ?", recipient.UID).
		Update("notify_push_enabled", false).Error; err != nil {
		t.Fatalf("failed to disable push: %v", err)
	}
	call := seedRingingCall(t, db, caller, recipient)

	rec := &pushRecorder{}
	gateway := newPushGateway(t, rec)
	defer gateway.Close()

	service := newNotificationServiceForTest(db, gateway.URL)
	service.deliverIncomingCallPush(call.ID)

	if got := rec.count(); got != 0 {
		t.Errorf("push sends = %d, want 0 when the user disabled push", got)
	}
}
