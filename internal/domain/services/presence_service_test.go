package services

import (
	"teleconsult-http-service/internal/domain/models"
	"testing"
	"time"
)

func TestComputePresenceState(t *testing.T) {
	now := time.Now().Unix()
	idle := int64(IdleThreshold.Seconds())

	tests := []struct {
		name       string
		previous   string
		lastActive int64
		want       string
	}{
		{"new entry comes up online", "", now, models.PresenceOnline},
		{"online and recently active stays online", models.PresenceOnline, now - 10, models.PresenceOnline},
		{"online just under the idle threshold stays online", models.PresenceOnline, now - idle + 1, models.PresenceOnline},
		{"online at the idle threshold decays to away", models.PresenceOnline, now - idle, models.PresenceAway},
		{"online long idle decays to away", models.PresenceOnline, now - 2*idle, models.PresenceAway},
		{"away stays away regardless of idle time", models.PresenceAway, now - 2*idle, models.PresenceAway},
		{"away with recent activity stays away until activity is reported", models.PresenceAway, now, models.PresenceAway},
		{"offline stays offline", models.PresenceOffline, now - 2*idle, models.PresenceOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputePresenceState(tt.previous, tt.lastActive, now); got != tt.want {
				t.Errorf("ComputePresenceState(%q, %d, %d) = %q, want %q",
					tt.previous, tt.lastActive, now, got, tt.want)
			}
		})
	}
}
