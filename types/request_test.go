package types

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewRequestMeta(t *testing.T) {
	m := NewRequestMeta("10.0.0.1:5000")

	if _, err := uuid.Parse(m.RequestID); err != nil {
		t.Errorf("RequestID %q is not a UUID: %v", m.RequestID, err)
	}
	if m.RemoteAddr != "10.0.0.1:5000" {
		t.Errorf("RemoteAddr = %q, want %q", m.RemoteAddr, "10.0.0.1:5000")
	}
	if m.StartedAt.IsZero() {
		t.Error("StartedAt should be set")
	}

	other := NewRequestMeta("")
	if other.RequestID == m.RequestID {
		t.Error("request IDs should be unique")
	}
}

func TestRequestMeta_Day(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	m := &RequestMeta{StartedAt: time.Date(2026, 2, 3, 5, 0, 0, 0, loc)}

	// 05:00 at UTC+10 is the previous day in UTC.
	if got := m.Day(); got != "2026-02-02" {
		t.Errorf("Day() = %q, want %q", got, "2026-02-02")
	}
}

func TestOutcomeStatus_IsSuccess(t *testing.T) {
	tests := []struct {
		status OutcomeStatus
		want   bool
	}{
		{OutcomeSuccess, true},
		{OutcomeError, false},
		{OutcomeAborted, false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.status.IsSuccess(); got != tt.want {
			t.Errorf("%q.IsSuccess() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
