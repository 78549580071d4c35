package models

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from CallStatus
		to   CallStatus
		want bool
	}{
		{"ringing to active", CallStatusRinging, CallStatusActive, true},
		{"ringing to rejected", CallStatusRinging, CallStatusRejected, true},
		{"ringing to timeout", CallStatusRinging, CallStatusTimeout, true},
		{"ringing to ended", CallStatusRinging, CallStatusEnded, true},
		{"active to ended", CallStatusActive, CallStatusEnded, true},
		{"active to ringing", CallStatusActive, CallStatusRinging, false},
		{"active to rejected", CallStatusActive, CallStatusRejected, false},
		{"active to timeout", CallStatusActive, CallStatusTimeout, false},
		{"rejected to active", CallStatusRejected, CallStatusActive, false},
		{"timeout to active", CallStatusTimeout, CallStatusActive, false},
		{"ended to active", CallStatusEnded, CallStatusActive, false},
		{"ended to ended", CallStatusEnded, CallStatusEnded, false},
		{"ringing to ringing", CallStatusRinging, CallStatusRinging, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		status CallStatus
		want   bool
	}{
		{CallStatusRinging, false},
		{CallStatusActive, false},
		{CallStatusRejected, true},
		{CallStatusTimeout, true},
		{CallStatusEnded, true},
	}

	for _, tt := range tests {
		if got := IsTerminal(tt.status); got != tt.want {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestCallParticipant(t *testing.T) {
	call := &Call{
		ID:          "call-1",
		CallerID:    "caller-uid",
		RecipientID: "recipient-uid",
	}

	if !call.Participant("caller-uid") {
		t.Error("caller should be a participant")
	}
	if !call.Participant("recipient-uid") {
		t.Error("recipient should be a participant")
	}
	if call.Participant("other-uid") {
		t.Error("unrelated user should not be a participant")
	}
}
