package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"teleconsult-http-service/internal/infrastructure/config"
	"time"
)

// InterfaceRoomService defines the video room provisioning interface
type InterfaceRoomService interface {
	CreateRoom(callID string) (string, error)
}

// RoomService provisions video rooms from the external room provider.
// The returned room URL is treated as an opaque capability: whoever holds
// it can join, so it travels only inside call payloads to the two parties.
type RoomService struct {
	Config *config.Config
	Client *http.Client
}

// roomRequest is the provider's room creation body.
type roomRequest struct {
	Name       string         `json:"name,omitempty"`
	Properties roomProperties `json:"properties"`
}

type roomProperties struct {
	// Two participants only: one caller, one recipient.
	MaxParticipants int `json:"max_participants"`
	// Exp is a hard Unix-time expiry so abandoned rooms are reclaimed
	// by the provider.
	Exp int64 `json:"exp"`
}

// roomResponse is the subset of the provider's response we use.
type roomResponse struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// NewRoomService creates a new room provisioning service
func NewRoomService(cfg *config.Config) InterfaceRoomService {
	return &RoomService{
		Config: cfg,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// CreateRoom creates a two-party video room and returns its URL.
func (s *RoomService) CreateRoom(callID string) (string, error) {
	reqBody := roomRequest{
		Name: "call-" + callID,
		Properties: roomProperties{
			MaxParticipants: 2,
			Exp:             time.Now().Add(2 * time.Hour).Unix(),
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to serialize room request: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.Config.RoomAPIBaseURL+"/v1/rooms", bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.Config.RoomAPIKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("room provider request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("room provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var room roomResponse
	if err := json.Unmarshal(body, &room); err != nil {
		return "", fmt.Errorf("failed to parse room response: %v", err)
	}

	if room.URL == "" {
		return "", fmt.Errorf("room provider returned an empty room URL")
	}

	return room.URL, nil
}
