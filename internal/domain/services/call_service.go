package services

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"teleconsult-http-service/internal/domain/models"
	"teleconsult-http-service/internal/infrastructure/config"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Topic constants
const (
	// Incoming call announcements to recipients
	TopicIncoming = "teleconsult/call/incoming"

	// Caller-side control actions
	TopicCallerControl = "teleconsult/call/control/caller"

	// Recipient-side control actions
	TopicRecipientControl = "teleconsult/call/control/recipient"

	// Presence broadcasts
	TopicPresence = "teleconsult/presence"

	// System messages
	TopicSystem = "teleconsult/system"
)

// Call timing constants
const (
	// RingTimeout bounds how long a call may ring before it becomes a
	// missed call.
	RingTimeout = 45 * time.Second

	// MaxCallDuration is a safety bound on active calls whose parties
	// never hang up.
	MaxCallDuration = 2 * time.Hour
)

// Sentinel errors mapped to business codes by the controllers.
var (
	ErrCallNotFound      = errors.New("call not found")
	ErrInvalidTransition = errors.New("call is not in a state that allows this action")
	ErrRecipientBusy     = errors.New("recipient is already in a call")
	ErrCallerBusy        = errors.New("caller is already in a call")
	ErrNotParticipant    = errors.New("user is not a participant of this call")
)

// InterfaceCallService defines the call signaling service interface
type InterfaceCallService interface {
	Connect() error
	Disconnect()
	InitiateCall(callerID, recipientID string) (*models.Call, error)
	AcceptCall(callID, uid string) (*models.Call, error)
	RejectCall(callID, uid string) (*models.Call, error)
	CancelCall(callID, uid string) (*models.Call, error)
	HangupCall(callID, uid string) (*models.Call, error)
	GetCall(callID string) (*models.Call, error)
	GetCallSession(callID string) (*models.CallSession, bool)
	CleanupStaleSessions() int
	SubscribeToTopics() error
	PublishPresenceUpdate(uid, state string) error
	PublishSystemMessage(messageType string, message map[string]interface{}) error
}

// CallService runs call signaling over MQTT and owns the call state
// machine. Every status move is a compare-and-set against the expected
// current status, so racing actions (answer vs timeout, reject vs cancel)
// resolve to exactly one winner and the loser gets ErrInvalidTransition.
type CallService struct {
	DB             *gorm.DB
	Config         *config.Config
	RoomService    InterfaceRoomService
	Notifications  InterfaceNotificationService
	Client         mqtt.Client
	IsConnected    bool
	connectedMutex sync.RWMutex
	Registry       *models.CallRegistry
	TopicHandlers  map[string]mqtt.MessageHandler
	ProcessedMsgs  *sync.Map
	PublishMutex   sync.Mutex
	SessionMutex   sync.Mutex
	CallChannels   *sync.Map

	// Timer bounds, RingTimeout and MaxCallDuration by default.
	ringTimeout     time.Duration
	maxCallDuration time.Duration
}

// Message structure definitions
type (
	// IncomingCallMessage announces a new call to the recipient
	IncomingCallMessage struct {
		CallID        string `json:"call_id"`
		CallerID      string `json:"caller_id"`
		CallerName    string `json:"caller_name"`
		RecipientID   string `json:"recipient_id"`
		RecipientName string `json:"recipient_name"`
		RoomURL       string `json:"room_url"`
		Timestamp     int64  `json:"timestamp"`
	}

	// ControlMessage carries call control actions in both directions
	ControlMessage struct {
		Action    string `json:"action"`
		CallID    string `json:"call_id"`
		UID       string `json:"uid,omitempty"`
		Timestamp int64  `json:"timestamp"`
		Reason    string `json:"reason,omitempty"`
	}

	// PresenceMessage broadcasts a presence change
	PresenceMessage struct {
		UID       string `json:"uid"`
		State     string `json:"state"`
		Timestamp int64  `json:"timestamp"`
	}

	// SystemMessage carries operational notices
	SystemMessage struct {
		Type      string      `json:"type"`
		Level     string      `json:"level"`
		Message   string      `json:"message"`
		Data      interface{} `json:"data,omitempty"`
		Timestamp int64       `json:"timestamp"`
	}
)

// Call control signal types
type CallControlSignal int

const (
	SignalRinging CallControlSignal = iota
	SignalAnswered
	SignalRejected
	SignalHangup
	SignalError
)

// CallControlMessage is the in-process signal fed to a call's goroutine
type CallControlMessage struct {
	Signal CallControlSignal
	CallID string
	UID    string
	Action string
	Reason string
}

// NewCallService creates a new call signaling service
func NewCallService(db *gorm.DB, cfg *config.Config, roomService InterfaceRoomService, notifications InterfaceNotificationService) InterfaceCallService {
	service := &CallService{
		DB:            db,
		Config:        cfg,
		RoomService:   roomService,
		Notifications: notifications,
		Registry:      models.NewCallRegistry(),
		TopicHandlers: make(map[string]mqtt.MessageHandler),
		IsConnected:   false,
		ProcessedMsgs: &sync.Map{},
		CallChannels:  &sync.Map{},

		ringTimeout:     RingTimeout,
		maxCallDuration: MaxCallDuration,
	}

	service.setupMQTTClient()
	service.setupTopicHandlers()

	go service.startSessionCleanupTask()
	go service.startMsgCleanupTask()

	return service
}

// setupMQTTClient configures the MQTT client
func (s *CallService) setupMQTTClient() {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.Config.MQTTBrokerURL)
	// Unique client ID so multiple service instances do not evict each other
	opts.SetClientID(fmt.Sprintf("%s-%s-%d", s.Config.MQTTClientID, uuid.New().String()[:8], time.Now().UnixNano()))
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Second * 30)
	opts.SetKeepAlive(time.Second * 60)
	opts.SetPingTimeout(time.Second * 10)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)

	opts.SetDefaultPublishHandler(func(client mqtt.Client, msg mqtt.Message) {
		log.Printf("[MQTT] unhandled message: topic=%s", msg.Topic())
	})

	if s.Config.MQTTUsername != "" {
		opts.SetUsername(s.Config.MQTTUsername)
		opts.SetPassword(s.Config.MQTTPassword)
	}

	if strings.HasPrefix(s.Config.MQTTBrokerURL, "ssl://") || strings.HasPrefix(s.Config.MQTTBrokerURL, "tls://") || s.Config.MQTTSSLEnabled {
		log.Println("[MQTT] using TLS connection")
		opts.SetTLSConfig(&tls.Config{
			InsecureSkipVerify: true,
		})
	}

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("[MQTT] connection lost: %v", err)
		s.connectedMutex.Lock()
		s.IsConnected = false
		s.connectedMutex.Unlock()
	})

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("[MQTT] connected to", s.Config.MQTTBrokerURL)
		s.connectedMutex.Lock()
		s.IsConnected = true
		s.connectedMutex.Unlock()

		if err := s.SubscribeToTopics(); err != nil {
			log.Printf("[MQTT] failed to subscribe to topics: %v", err)
		}
	})

	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		log.Println("[MQTT] reconnecting...")
	})

	s.Client = mqtt.NewClient(opts)
}

// setupTopicHandlers registers topic handlers
func (s *CallService) setupTopicHandlers() {
	s.TopicHandlers = map[string]mqtt.MessageHandler{
		TopicCallerControl:    s.handleCallerControl,
		TopicRecipientControl: s.handleRecipientControl,
		TopicSystem:           s.handleSystemMessage,
	}
}

// Connect connects to the MQTT broker with retries
func (s *CallService) Connect() error {
	log.Printf("[MQTT] connecting to %s...", s.Config.MQTTBrokerURL)

	s.PublishMutex.Lock()
	defer s.PublishMutex.Unlock()

	s.connectedMutex.RLock()
	isConnected := s.IsConnected && s.Client.IsConnected()
	s.connectedMutex.RUnlock()

	if isConnected {
		return nil
	}

	maxRetries := 5
	var err error

	for i := 0; i < maxRetries; i++ {
		token := s.Client.Connect()
		if token.WaitTimeout(5*time.Second) && token.Error() == nil {
			s.connectedMutex.Lock()
			s.IsConnected = true
			s.connectedMutex.Unlock()
			log.Printf("[MQTT] connected to %s", s.Config.MQTTBrokerURL)
			return nil
		}

		err = token.Error()
		backoffTime := time.Duration(1<<uint(i)) * time.Second
		log.Printf("[MQTT] connect attempt %d/%d failed: %v, retrying in %v", i+1, maxRetries, err, backoffTime)
		time.Sleep(backoffTime)
	}

	return fmt.Errorf("[MQTT] connection failed after %d attempts: %v", maxRetries, err)
}

// Disconnect disconnects from the MQTT broker
func (s *CallService) Disconnect() {
	if s.Client != nil && s.Client.IsConnected() {
		s.Client.Disconnect(250)
	}
}

// SubscribeToTopics subscribes to the control topics
func (s *CallService) SubscribeToTopics() error {
	// QoS 1, at-least-once; duplicates are dropped by the dedup map
	qos := byte(1)

	for topic, handler := range s.TopicHandlers {
		if token := s.Client.Subscribe(topic, qos, handler); token.Wait() && token.Error() != nil {
			return fmt.Errorf("failed to subscribe [%s]: %v", topic, token.Error())
		}
		log.Printf("[MQTT] subscribed to topic: %s", topic)
	}
	return nil
}

// InitiateCall starts a new call from caller to recipient. The recipient
// must be an active account that is not already on a call, and the caller
// may hold at most one live call at a time.
func (s *CallService) InitiateCall(callerID, recipientID string) (*models.Call, error) {
	s.SessionMutex.Lock()
	defer s.SessionMutex.Unlock()

	if callerID == recipientID {
		return nil, errors.New("cannot call yourself")
	}

	var caller, recipient models.User
	if err := s.DB.Where("uid = ? AND is_active = ?", callerID, true).First(&caller).Error; err != nil {
		return nil, fmt.Errorf("caller lookup failed: %w", err)
	}
	if err := s.DB.Where("uid = ? AND is_active = ?", recipientID, true).First(&recipient).Error; err != nil {
		return nil, fmt.Errorf("recipient lookup failed: %w", err)
	}

	// Busy checks. The registry covers this instance; the query covers
	// calls surviving a restart.
	if _, busy := s.Registry.FindByParticipant(recipientID); busy {
		return nil, ErrRecipientBusy
	}
	if _, busy := s.Registry.FindByParticipant(callerID); busy {
		return nil, ErrCallerBusy
	}

	var liveCount int64
	if err := s.DB.Model(&models.Call{}).
		Where("(caller_id IN (?, ?) OR recipient_id IN (?, ?)) AND status IN (?, ?)",
			callerID, recipientID, callerID, recipientID,
			models.CallStatusRinging, models.CallStatusActive).
		Count(&liveCount).Error; err != nil {
		return nil, err
	}
	if liveCount > 0 {
		return nil, ErrRecipientBusy
	}

	callID := uuid.New().String()

	roomURL, err := s.RoomService.CreateRoom(callID)
	if err != nil {
		return nil, fmt.Errorf("failed to provision room: %w", err)
	}

	call := &models.Call{
		ID:            callID,
		CallerID:      callerID,
		CallerName:    caller.DisplayName,
		RecipientID:   recipientID,
		RecipientName: recipient.DisplayName,
		RoomURL:       roomURL,
		Status:        models.CallStatusRinging,
	}
	if err := s.DB.Create(call).Error; err != nil {
		return nil, fmt.Errorf("failed to create call record: %w", err)
	}

	if _, err := s.Registry.CreateSession(callID, callerID, recipientID, roomURL); err != nil {
		return nil, err
	}

	controlChan := make(chan CallControlMessage, 10)
	s.CallChannels.Store(callID, controlChan)
	go s.handleCallSession(callID, callerID, recipientID, controlChan)

	incoming := IncomingCallMessage{
		CallID:        callID,
		CallerID:      callerID,
		CallerName:    caller.DisplayName,
		RecipientID:   recipientID,
		RecipientName: recipient.DisplayName,
		RoomURL:       roomURL,
		Timestamp:     time.Now().UnixMilli(),
	}
	if err := s.publishMessage(TopicIncoming, incoming); err != nil {
		// The call row stays for history; the live session is torn down.
		s.failCall(callID, "notify_failed")
		return nil, fmt.Errorf("failed to announce call: %w", err)
	}

	timestamp := time.Now().UnixMilli()
	ringControl := ControlMessage{
		Action:    "ringing",
		CallID:    callID,
		Timestamp: timestamp,
	}

	// Mark our own outbound message processed so the subscription loop
	// does not feed it back
	s.markMessageProcessed(callID, "ringing", timestamp)

	if err := s.publishMessage(TopicCallerControl, ringControl); err != nil {
		log.Printf("[MQTT] failed to publish ringing to caller topic: %v", err)
	}
	if err := s.publishMessage(TopicRecipientControl, ringControl); err != nil {
		log.Printf("[MQTT] failed to publish ringing to recipient topic: %v", err)
	}

	controlChan <- CallControlMessage{
		Signal: SignalRinging,
		CallID: callID,
		UID:    callerID,
	}

	// Arm the delayed push for the recipient
	s.Notifications.ScheduleIncomingCallPush(callID)

	log.Printf("[CALL] call initiated: id=%s, caller=%s, recipient=%s", callID, callerID, recipientID)

	return call, nil
}

// handleCallSession owns the timers for one call. The ring timer turns an
// unanswered call into a missed call; the call timer bounds runaway
// active calls. Control signals arrive on the channel from the HTTP and
// MQTT entry points.
func (s *CallService) handleCallSession(callID, callerID, recipientID string, controlChan chan CallControlMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[CALL] session handler panic: callID=%s, error=%v", callID, r)
		}
		// The channel is never closed here: a state operation that lost a
		// CAS race may still be signaling while this goroutine exits. The
		// map entry is dropped and the channel left for the collector.
		s.CallChannels.Delete(callID)
	}()

	status := models.CallStatusRinging
	ringTimer := time.NewTimer(s.ringTimeout)
	defer ringTimer.Stop()

	callTimer := time.NewTimer(s.maxCallDuration)
	defer callTimer.Stop()

	log.Printf("[CALL] session handler started: callID=%s, caller=%s, recipient=%s", callID, callerID, recipientID)

	for {
		select {
		case msg, ok := <-controlChan:
			if !ok {
				log.Printf("[CALL] control channel closed: callID=%s", callID)
				return
			}

			switch msg.Signal {
			case SignalRinging:
				log.Printf("[CALL] ringing: callID=%s", callID)
				status = models.CallStatusRinging

			case SignalAnswered:
				log.Printf("[CALL] answered: callID=%s", callID)
				status = models.CallStatusActive
				if !ringTimer.Stop() {
					select {
					case <-ringTimer.C:
					default:
					}
				}
				callTimer.Reset(s.maxCallDuration)

			case SignalRejected:
				log.Printf("[CALL] rejected: callID=%s, reason=%s", callID, msg.Reason)
				return

			case SignalHangup:
				log.Printf("[CALL] hung up: callID=%s, reason=%s", callID, msg.Reason)
				return

			case SignalError:
				log.Printf("[CALL] error: callID=%s, reason=%s", callID, msg.Reason)
				return
			}

		case <-ringTimer.C:
			if status == models.CallStatusRinging {
				log.Printf("[CALL] ring timeout: callID=%s", callID)
				s.timeoutCall(callID)
				return
			}

		case <-callTimer.C:
			log.Printf("[CALL] max duration reached: callID=%s", callID)
			if _, err := s.hangupByServer(callID, "max_duration"); err != nil {
				log.Printf("[CALL] forced hangup failed: callID=%s, error=%v", callID, err)
			}
			return
		}
	}
}

// transition performs the compare-and-set status move on the call row.
// RowsAffected == 0 means another action won the race.
func (s *CallService) transition(callID string, from, to models.CallStatus, updates map[string]interface{}) (*models.Call, error) {
	if !models.CanTransition(from, to) {
		return nil, ErrInvalidTransition
	}

	if updates == nil {
		updates = make(map[string]interface{})
	}
	updates["status"] = to

	result := s.DB.Model(&models.Call{}).
		Where("id = ? AND status = ?", callID, from).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		var call models.Call
		if err := s.DB.Where("id = ?", callID).First(&call).Error; err != nil {
			return nil, ErrCallNotFound
		}
		return nil, ErrInvalidTransition
	}

	var call models.Call
	if err := s.DB.Where("id = ?", callID).First(&call).Error; err != nil {
		return nil, err
	}
	return &call, nil
}

// requireParticipant loads a call and checks the acting user belongs to it.
func (s *CallService) requireParticipant(callID, uid string) (*models.Call, error) {
	var call models.Call
	if err := s.DB.Where("id = ?", callID).First(&call).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCallNotFound
		}
		return nil, err
	}
	if !call.Participant(uid) {
		return nil, ErrNotParticipant
	}
	return &call, nil
}

// AcceptCall moves a ringing call to active. Only the recipient may accept.
func (s *CallService) AcceptCall(callID, uid string) (*models.Call, error) {
	call, err := s.requireParticipant(callID, uid)
	if err != nil {
		return nil, err
	}
	if call.RecipientID != uid {
		return nil, ErrNotParticipant
	}

	now := time.Now()
	updated, err := s.transition(callID, models.CallStatusRinging, models.CallStatusActive, map[string]interface{}{
		"answered_at": now,
	})
	if err != nil {
		return nil, err
	}

	s.Registry.UpdateSessionStatus(callID, models.CallStatusActive)
	s.signalSession(callID, CallControlMessage{Signal: SignalAnswered, CallID: callID, UID: uid, Action: "answered"})
	s.broadcastControl(callID, "answered", uid, "")

	return updated, nil
}

// RejectCall declines a ringing call. Only the recipient may reject.
func (s *CallService) RejectCall(callID, uid string) (*models.Call, error) {
	call, err := s.requireParticipant(callID, uid)
	if err != nil {
		return nil, err
	}
	if call.RecipientID != uid {
		return nil, ErrNotParticipant
	}

	now := time.Now()
	updated, err := s.transition(callID, models.CallStatusRinging, models.CallStatusRejected, map[string]interface{}{
		"ended_at": now,
	})
	if err != nil {
		return nil, err
	}

	s.signalSession(callID, CallControlMessage{Signal: SignalRejected, CallID: callID, UID: uid, Action: "rejected"})
	s.Registry.EndSession(callID)
	s.broadcastControl(callID, "rejected", uid, "")

	return updated, nil
}

// CancelCall withdraws a still-ringing call. Only the caller may cancel;
// the record ends as "ended", not "rejected", since the recipient never
// acted.
func (s *CallService) CancelCall(callID, uid string) (*models.Call, error) {
	call, err := s.requireParticipant(callID, uid)
	if err != nil {
		return nil, err
	}
	if call.CallerID != uid {
		return nil, ErrNotParticipant
	}

	now := time.Now()
	updated, err := s.transition(callID, models.CallStatusRinging, models.CallStatusEnded, map[string]interface{}{
		"ended_at": now,
	})
	if err != nil {
		return nil, err
	}

	s.signalSession(callID, CallControlMessage{Signal: SignalHangup, CallID: callID, UID: uid, Action: "cancelled"})
	s.Registry.EndSession(callID)
	s.broadcastControl(callID, "cancelled", uid, "")

	return updated, nil
}

// HangupCall ends an active call. Either party may hang up; the duration
// is computed from answeredAt.
func (s *CallService) HangupCall(callID, uid string) (*models.Call, error) {
	call, err := s.requireParticipant(callID, uid)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"ended_at": now,
	}
	if call.AnsweredAt != nil {
		updates["duration_seconds"] = int(now.Sub(*call.AnsweredAt).Seconds())
	}

	updated, err := s.transition(callID, models.CallStatusActive, models.CallStatusEnded, updates)
	if err != nil {
		return nil, err
	}

	s.signalSession(callID, CallControlMessage{Signal: SignalHangup, CallID: callID, UID: uid, Action: "hangup"})
	s.Registry.EndSession(callID)
	s.broadcastControl(callID, "hangup", uid, "")

	return updated, nil
}

// timeoutCall marks an unanswered call missed. Called from the session
// goroutine when the ring timer fires; losing the race to an accept or
// reject is normal and ignored.
func (s *CallService) timeoutCall(callID string) {
	now := time.Now()
	_, err := s.transition(callID, models.CallStatusRinging, models.CallStatusTimeout, map[string]interface{}{
		"ended_at": now,
	})
	if err != nil {
		if !errors.Is(err, ErrInvalidTransition) {
			log.Printf("[CALL] timeout transition failed: callID=%s, error=%v", callID, err)
		}
		return
	}

	s.Registry.EndSession(callID)
	s.broadcastControl(callID, "timeout", "", "ring_timeout")

	if err := s.Notifications.SendMissedCallPush(callID); err != nil {
		log.Printf("[CALL] missed call push failed: callID=%s, error=%v", callID, err)
	}
}

// hangupByServer force-ends a call without a user action, used by the max
// duration timer.
func (s *CallService) hangupByServer(callID, reason string) (*models.Call, error) {
	var call models.Call
	if err := s.DB.Where("id = ?", callID).First(&call).Error; err != nil {
		return nil, ErrCallNotFound
	}

	now := time.Now()
	updates := map[string]interface{}{
		"ended_at": now,
	}
	if call.AnsweredAt != nil {
		updates["duration_seconds"] = int(now.Sub(*call.AnsweredAt).Seconds())
	}

	updated, err := s.transition(callID, models.CallStatusActive, models.CallStatusEnded, updates)
	if err != nil {
		return nil, err
	}

	s.Registry.EndSession(callID)
	s.broadcastControl(callID, "hangup", "", reason)

	return updated, nil
}

// failCall tears down a call whose setup could not complete.
func (s *CallService) failCall(callID, reason string) {
	s.signalSession(callID, CallControlMessage{Signal: SignalError, CallID: callID, Reason: reason})
	s.Registry.EndSession(callID)
	s.DB.Model(&models.Call{}).
		Where("id = ? AND status = ?", callID, models.CallStatusRinging).
		Updates(map[string]interface{}{
			"status":   models.CallStatusEnded,
			"ended_at": time.Now(),
		})
}

// GetCall loads a call record by id.
func (s *CallService) GetCall(callID string) (*models.Call, error) {
	var call models.Call
	if err := s.DB.Where("id = ?", callID).First(&call).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCallNotFound
		}
		return nil, err
	}
	return &call, nil
}

// GetCallSession returns the live session for a call
func (s *CallService) GetCallSession(callID string) (*models.CallSession, bool) {
	return s.Registry.GetSession(callID)
}

// CleanupStaleSessions drops sessions whose timers were lost
func (s *CallService) CleanupStaleSessions() int {
	return s.Registry.CleanupStaleSessions(s.maxCallDuration, s.ringTimeout+15*time.Second)
}

// signalSession feeds a control signal to the call's goroutine if it is
// still running. The send is guarded: the session goroutine may tear down
// between the map load and the send.
func (s *CallService) signalSession(callID string, msg CallControlMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[CALL] session already gone: callID=%s, action=%s", callID, msg.Action)
		}
	}()

	callChannelObj, exists := s.CallChannels.Load(callID)
	if !exists {
		return
	}
	callChannel, ok := callChannelObj.(chan CallControlMessage)
	if !ok {
		return
	}
	select {
	case callChannel <- msg:
	default:
		log.Printf("[CALL] could not signal session: callID=%s, action=%s", callID, msg.Action)
	}
}

// broadcastControl publishes a control message to both party topics so
// every device of both users converges on the same call state.
func (s *CallService) broadcastControl(callID, action, uid, reason string) {
	timestamp := time.Now().UnixMilli()
	controlMsg := ControlMessage{
		Action:    action,
		CallID:    callID,
		UID:       uid,
		Timestamp: timestamp,
		Reason:    reason,
	}

	// Mark our own outbound message processed so the subscription loop
	// does not feed it back
	s.markMessageProcessed(callID, action, timestamp)

	if err := s.publishMessage(TopicCallerControl, controlMsg); err != nil {
		log.Printf("[MQTT] failed to publish %s to caller topic: %v", action, err)
	}
	if err := s.publishMessage(TopicRecipientControl, controlMsg); err != nil {
		log.Printf("[MQTT] failed to publish %s to recipient topic: %v", action, err)
	}
}

// publishMessage publishes a message to a topic
func (s *CallService) publishMessage(topic string, payload interface{}) error {
	if s.Client == nil {
		return errors.New("MQTT client not initialized")
	}

	s.PublishMutex.Lock()
	defer s.PublishMutex.Unlock()

	s.connectedMutex.RLock()
	isConnected := s.IsConnected && s.Client.IsConnected()
	s.connectedMutex.RUnlock()

	if !isConnected {
		log.Printf("[MQTT] client not connected, reconnecting...")
		s.PublishMutex.Unlock()
		err := s.Connect()
		s.PublishMutex.Lock()
		if err != nil {
			return fmt.Errorf("MQTT client not connected: %v", err)
		}
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	// QoS 1, at least once
	qos := byte(1)
	retained := false

	token := s.Client.Publish(topic, qos, retained, jsonData)

	if !token.WaitTimeout(3 * time.Second) {
		return fmt.Errorf("publish timed out")
	}

	if token.Error() != nil {
		return fmt.Errorf("publish failed: %v", token.Error())
	}

	log.Printf("[MQTT] published %T message to topic: %s", payload, topic)
	return nil
}

// PublishPresenceUpdate broadcasts a presence change
func (s *CallService) PublishPresenceUpdate(uid, state string) error {
	return s.publishMessage(TopicPresence, PresenceMessage{
		UID:       uid,
		State:     state,
		Timestamp: time.Now().UnixMilli(),
	})
}

// PublishSystemMessage publishes a system notice
func (s *CallService) PublishSystemMessage(messageType string, message map[string]interface{}) error {
	systemMsg := SystemMessage{
		Type:      messageType,
		Timestamp: time.Now().UnixMilli(),
	}
	if level, ok := message["level"].(string); ok {
		systemMsg.Level = level
	}
	if text, ok := message["message"].(string); ok {
		systemMsg.Message = text
	}
	systemMsg.Data = message["data"]

	return s.publishMessage(TopicSystem, systemMsg)
}

// startSessionCleanupTask periodically drops stale sessions
func (s *CallService) startSessionCleanupTask() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cleanedCount := s.CleanupStaleSessions()
		if cleanedCount > 0 {
			log.Printf("[CALL] cleaned up stale sessions: %d", cleanedCount)
		}
	}
}

// startMsgCleanupTask periodically drops old dedup entries
func (s *CallService) startMsgCleanupTask() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now().Unix()
		count := 0

		s.ProcessedMsgs.Range(func(key, value interface{}) bool {
			if timestamp, ok := value.(int64); ok {
				if now-timestamp > 300 {
					s.ProcessedMsgs.Delete(key)
					count++
				}
			}
			return true
		})

		if count > 0 {
			log.Printf("[MQTT] dropped %d old dedup entries", count)
		}
	}
}

// generateMsgKey builds the dedup key for a message
func generateMsgKey(callID, action string, timestamp int64) string {
	return fmt.Sprintf("%s:%s:%d", callID, action, timestamp)
}

// isMessageProcessed reports whether a message was already handled
func (s *CallService) isMessageProcessed(callID, action string, timestamp int64) bool {
	key := generateMsgKey(callID, action, timestamp)
	_, exists := s.ProcessedMsgs.Load(key)
	return exists
}

// markMessageProcessed records a message as handled
func (s *CallService) markMessageProcessed(callID, action string, timestamp int64) {
	key := generateMsgKey(callID, action, timestamp)
	s.ProcessedMsgs.Store(key, time.Now().Unix())
}

// dispatchControlAction routes an inbound control action to the matching
// state machine operation.
func (s *CallService) dispatchControlAction(controlMsg ControlMessage) error {
	switch controlMsg.Action {
	case "answered":
		_, err := s.AcceptCall(controlMsg.CallID, controlMsg.UID)
		return err
	case "rejected":
		_, err := s.RejectCall(controlMsg.CallID, controlMsg.UID)
		return err
	case "cancelled":
		_, err := s.CancelCall(controlMsg.CallID, controlMsg.UID)
		return err
	case "hangup":
		_, err := s.HangupCall(controlMsg.CallID, controlMsg.UID)
		return err
	default:
		return fmt.Errorf("unsupported action: %s", controlMsg.Action)
	}
}

// handleCallerControl handles control messages published by callers
func (s *CallService) handleCallerControl(_ mqtt.Client, msg mqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[MQTT] caller control handler panic: %v", r)
		}
	}()

	var controlMsg ControlMessage
	if err := json.Unmarshal(msg.Payload(), &controlMsg); err != nil {
		log.Printf("[MQTT] failed to parse caller control message: %v", err)
		return
	}

	// Our own ringing broadcasts come back on this topic
	if controlMsg.Action == "ringing" {
		return
	}

	if s.isMessageProcessed(controlMsg.CallID, controlMsg.Action, controlMsg.Timestamp) {
		log.Printf("[MQTT] skipping duplicate caller control message: %s, callID=%s, timestamp=%d",
			controlMsg.Action, controlMsg.CallID, controlMsg.Timestamp)
		return
	}
	s.markMessageProcessed(controlMsg.CallID, controlMsg.Action, controlMsg.Timestamp)

	if err := s.dispatchControlAction(controlMsg); err != nil {
		log.Printf("[MQTT] caller control action failed: %v", err)
	}
}

// handleRecipientControl handles control messages published by recipients
func (s *CallService) handleRecipientControl(_ mqtt.Client, msg mqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[MQTT] recipient control handler panic: %v", r)
		}
	}()

	var controlMsg ControlMessage
	if err := json.Unmarshal(msg.Payload(), &controlMsg); err != nil {
		log.Printf("[MQTT] failed to parse recipient control message: %v", err)
		return
	}

	if controlMsg.Action == "ringing" {
		return
	}

	if s.isMessageProcessed(controlMsg.CallID, controlMsg.Action, controlMsg.Timestamp) {
		log.Printf("[MQTT] skipping duplicate recipient control message: %s, callID=%s, timestamp=%d",
			controlMsg.Action, controlMsg.CallID, controlMsg.Timestamp)
		return
	}
	s.markMessageProcessed(controlMsg.CallID, controlMsg.Action, controlMsg.Timestamp)

	if err := s.dispatchControlAction(controlMsg); err != nil {
		log.Printf("[MQTT] recipient control action failed: %v", err)
	}
}

// handleSystemMessage handles system notices
func (s *CallService) handleSystemMessage(_ mqtt.Client, msg mqtt.Message) {
	var systemMsg SystemMessage
	if err := json.Unmarshal(msg.Payload(), &systemMsg); err != nil {
		log.Printf("[MQTT] failed to parse system message: %v", err)
		return
	}

	log.Printf("[MQTT] system message: type=%s, level=%s, message=%s",
		systemMsg.Type, systemMsg.Level, systemMsg.Message)
}
