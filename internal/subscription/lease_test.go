package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLeaseRemaining(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lease := Lease{StartedAt: start, Duration: 600 * time.Second}

	tests := []struct {
		name     string
		elapsed  time.Duration
		expected time.Duration
	}{
		{"at start", 0, 600 * time.Second},
		{"mid lease", 250 * time.Second, 350 * time.Second},
		{"one second left", 599 * time.Second, 1 * time.Second},
		{"exactly expired", 600 * time.Second, 0},
		{"past expiry clamps to zero", 601 * time.Second, 0},
		{"long past expiry clamps to zero", 2 * time.Hour, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, lease.Remaining(start.Add(tt.elapsed)))
		})
	}
}

func TestLeaseRenewalDue(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lease := Lease{StartedAt: start, Duration: 600 * time.Second}

	tests := []struct {
		name      string
		elapsed   time.Duration
		threshold time.Duration
		due       bool
	}{
		{"plenty of lease left", 100 * time.Second, 100 * time.Second, false},
		{"just above threshold", 499 * time.Second, 100 * time.Second, false},
		{"exactly at threshold", 500 * time.Second, 100 * time.Second, true},
		{"below threshold", 550 * time.Second, 100 * time.Second, true},
		{"expired lease", 700 * time.Second, 100 * time.Second, true},
		{"zero threshold before expiry", 599 * time.Second, 0, false},
		{"zero threshold at expiry", 600 * time.Second, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.due, lease.RenewalDue(start.Add(tt.elapsed), tt.threshold))
		})
	}
}

func TestLeaseShorterThanThresholdDueImmediately(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lease := Lease{StartedAt: start, Duration: 60 * time.Second}

	// The device granted less lease than the renewal margin: due at once.
	assert.True(t, lease.RenewalDue(start, 100*time.Second))
}
