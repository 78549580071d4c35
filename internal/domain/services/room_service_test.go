package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"teleconsult-http-service/internal/infrastructure/config"
	"testing"
	"time"
)

func newRoomServiceForTest(baseURL string) *RoomService {
	return &RoomService{
		Config: &config.Config{
			RoomAPIBaseURL: baseURL,
			RoomAPIKey:     "test-api-key",
		},
		Client: &http.Client{Timeout: 2 * time.Second},
	}
}

func TestCreateRoom(t *testing.T) {
	var gotRequest roomRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/rooms" {
			t.Errorf("path = %s, want /v1/rooms", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-api-key" {
			t.Errorf("Authorization = %q, want Bearer test-api-key", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}

		json.NewEncoder(w).Encode(roomResponse{
			Name: gotRequest.Name,
			URL:  "https://rooms.example/" + gotRequest.Name,
		})
	}))
	defer server.Close()

	service := newRoomServiceForTest(server.URL)

	url, err := service.CreateRoom("abc-123")
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if url != "https://rooms.example/call-abc-123" {
		t.Errorf("url = %q, want https://rooms.example/call-abc-123", url)
	}

	if gotRequest.Name != "call-abc-123" {
		t.Errorf("room name = %q, want call-abc-123", gotRequest.Name)
	}
	if gotRequest.Properties.MaxParticipants != 2 {
		t.Errorf("max_participants = %d, want 2", gotRequest.Properties.MaxParticipants)
	}
	if exp := gotRequest.Properties.Exp; exp <= time.Now().Unix() {
		t.Errorf("exp = %d, want a future timestamp", exp)
	}
}

func TestCreateRoomProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid-api-key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	service := newRoomServiceForTest(server.URL)

	if _, err := service.CreateRoom("abc-123"); err == nil {
		t.Error("expected an error for a non-200 provider response")
	}
}

func TestCreateRoomEmptyURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(roomResponse{Name: "call-abc-123"})
	}))
	defer server.Close()

	service := newRoomServiceForTest(server.URL)

	if _, err := service.CreateRoom("abc-123"); err == nil {
		t.Error("expected an error for an empty room URL")
	}
}
