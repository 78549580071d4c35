package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"teleconsult-http-service/internal/domain/models"
	"teleconsult-http-service/internal/infrastructure/config"
	"time"

	"gorm.io/gorm"
)

const (
	// PushDelay is how long an incoming call must keep ringing before the
	// recipient gets a push. Calls answered within this window never
	// produce one.
	PushDelay = 5 * time.Second

	PushTypeIncomingCall = "incoming_call"
	PushTypeMissedCall   = "missed_call"
)

// InterfaceNotificationService defines the push dispatcher interface
type InterfaceNotificationService interface {
	ScheduleIncomingCallPush(callID string)
	SendMissedCallPush(callID string) error
}

// NotificationService sends push notifications through the external push
// gateway. The incoming-call push is delayed and idempotent: the
// push_notification_sent flag on the call row is claimed with a
// compare-and-set so concurrent dispatchers send at most one push.
type NotificationService struct {
	DB     *gorm.DB
	Config *config.Config
	Client *http.Client
}

// pushPayload is the gateway request body.
type pushPayload struct {
	RegistrationIDs []string         `json:"registration_ids"`
	Notification    pushNotification `json:"notification"`
	Data            pushData         `json:"data"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// pushData is the data payload the client app routes on. CallID and Type
// are contractual field names.
type pushData struct {
	CallID      string `json:"callId"`
	Type        string `json:"type"`
	ClickAction string `json:"click_action"`
}

// pushResponse is the subset of the gateway response we inspect.
type pushResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		Error string `json:"error,omitempty"`
	} `json:"results"`
}

// NewNotificationService creates a new notification service
func NewNotificationService(db *gorm.DB, cfg *config.Config) InterfaceNotificationService {
	return &NotificationService{
		DB:     db,
		Config: cfg,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ScheduleIncomingCallPush arms the delayed incoming-call push for a
// ringing call. It returns immediately; the wait and the send run in
// their own goroutine.
func (s *NotificationService) ScheduleIncomingCallPush(callID string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PUSH] incoming call push panic: callID=%s, error=%v", callID, r)
			}
		}()

		time.Sleep(PushDelay)
		s.deliverIncomingCallPush(callID)
	}()
}

// deliverIncomingCallPush runs the post-delay re-check and the guarded
// send. Calling it more than once for the same call sends at most one push.
func (s *NotificationService) deliverIncomingCallPush(callID string) {
	var call models.Call
	if err := s.DB.Where("id = ?", callID).First(&call).Error; err != nil {
		log.Printf("[PUSH] call lookup failed: callID=%s, error=%v", callID, err)
		return
	}

	// Answered, rejected, or cancelled during the delay window.
	if call.Status != models.CallStatusRinging {
		log.Printf("[PUSH] call no longer ringing, push suppressed: callID=%s, status=%s", callID, call.Status)
		return
	}

	// Claim the send. Losing the race means another dispatcher already
	// pushed for this call.
	now := time.Now()
	result := s.DB.Model(&models.Call{}).
		Where("id = ? AND push_notification_sent = ?", callID, false).
		Updates(map[string]interface{}{
			"push_notification_sent":    true,
			"push_notification_sent_at": now,
		})
	if result.Error != nil {
		log.Printf("[PUSH] failed to claim push flag: callID=%s, error=%v", callID, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		log.Printf("[PUSH] push already sent for call: callID=%s", callID)
		return
	}

	title := "Incoming call"
	body := fmt.Sprintf("%s is calling you", call.CallerName)
	if err := s.sendToUser(call.RecipientID, title, body, pushData{
		CallID:      call.ID,
		Type:        PushTypeIncomingCall,
		ClickAction: "OPEN_CALL",
	}); err != nil {
		log.Printf("[PUSH] incoming call push failed: callID=%s, error=%v", callID, err)
	}
}

// SendMissedCallPush notifies the recipient that a ringing call timed out.
func (s *NotificationService) SendMissedCallPush(callID string) error {
	var call models.Call
	if err := s.DB.Where("id = ?", callID).First(&call).Error; err != nil {
		return err
	}

	title := "Missed call"
	body := fmt.Sprintf("You missed a call from %s", call.CallerName)
	return s.sendToUser(call.RecipientID, title, body, pushData{
		CallID:      call.ID,
		Type:        PushTypeMissedCall,
		ClickAction: "OPEN_CALL_HISTORY",
	})
}

// sendToUser delivers one push to every registered device of a user,
// honoring the user's push preference.
func (s *NotificationService) sendToUser(uid, title, body string, data pushData) error {
	var user models.User
	if err := s.DB.Preload("FCMTokens").Where("uid = ?", uid).First(&user).Error; err != nil {
		return err
	}

	if !user.NotificationPreferences.PushEnabled {
		log.Printf("[PUSH] push disabled for user, skipping: uid=%s, type=%s", uid, data.Type)
		return nil
	}

	if len(user.FCMTokens) == 0 {
		log.Printf("[PUSH] no registered tokens for user: uid=%s", uid)
		return nil
	}

	tokens := make([]string, 0, len(user.FCMTokens))
	for _, t := range user.FCMTokens {
		tokens = append(tokens, t.Token)
	}

	payload := pushPayload{
		RegistrationIDs: tokens,
		Notification:    pushNotification{Title: title, Body: body},
		Data:            data,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize push payload: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.Config.PushAPIURL, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.Config.PushServerKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push gateway returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var pushResp pushResponse
	if err := json.Unmarshal(respBody, &pushResp); err != nil {
		// The gateway accepted the request; a malformed body only costs
		// us token cleanup.
		log.Printf("[PUSH] could not parse gateway response: %v", err)
		return nil
	}

	s.pruneDeadTokens(uid, tokens, pushResp)

	log.Printf("[PUSH] push sent: uid=%s, type=%s, success=%d, failure=%d",
		uid, data.Type, pushResp.Success, pushResp.Failure)
	return nil
}

// pruneDeadTokens removes tokens the gateway reported as no longer valid.
func (s *NotificationService) pruneDeadTokens(uid string, tokens []string, resp pushResponse) {
	if resp.Failure == 0 || len(resp.Results) != len(tokens) {
		return
	}

	for i, result := range resp.Results {
		if result.Error == "NotRegistered" || result.Error == "InvalidRegistration" {
			if err := s.DB.Where("user_uid = ? AND token = ?", uid, tokens[i]).
				Delete(&models.FCMToken{}).Error; err != nil {
				log.Printf("[PUSH] failed to prune dead token: uid=%s, error=%v", uid, err)
				continue
			}
			log.Printf("[PUSH] pruned dead token: uid=%s", uid)
		}
	}
}
