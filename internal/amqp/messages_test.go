package amqp

import (
	"errors"
	"testing"
	"time"

	"finreport/internal/core"
)

func TestReportRequestMessage_JSON(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	msg := NewRangeRequest("u1", from, to)
	if msg.RequestID == "" || msg.RequestedAt.IsZero() {
		t.Fatalf("request not stamped: %+v", msg)
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	got, err := ReportRequestMessageFromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if got.UserID != "u1" || got.From != "2025-01-01" || got.To != "2025-03-31" || got.Months != 0 {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestReportRequestMessage_InvalidJSON(t *testing.T) {
	if _, err := ReportRequestMessageFromJSON([]byte("invalid")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestReportRequestMessage_Period(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		msg      ReportRequestMessage
		wantFrom string
		wantTo   string
		wantErr  error
	}{
		{
			name:     "explicit range",
			msg:      ReportRequestMessage{UserID: "u1", From: "2025-01-01", To: "2025-03-31"},
			wantFrom: "2025-01-01",
			wantTo:   "2025-03-31",
		},
		{
			name:     "rolling window",
			msg:      ReportRequestMessage{UserID: "u1", Months: 1},
			wantFrom: core.RollingMonths(now, 1).From.Format(time.DateOnly),
			wantTo:   core.RollingMonths(now, 1).To.Format(time.DateOnly),
		},
		{
			name:    "reversed range",
			msg:     ReportRequestMessage{UserID: "u1", From: "2025-03-31", To: "2025-01-01"},
			wantErr: core.ErrInvalidRange,
		},
		{
			name:    "bad date",
			msg:     ReportRequestMessage{UserID: "u1", From: "2025-13-01", To: "2025-12-31"},
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "months and range",
			msg:     ReportRequestMessage{UserID: "u1", Months: 2, From: "2025-01-01", To: "2025-03-31"},
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "half range",
			msg:     ReportRequestMessage{UserID: "u1", From: "2025-01-01"},
			wantErr: ErrInvalidMessage,
		},
		{
			name:    "missing user",
			msg:     ReportRequestMessage{Months: 3},
			wantErr: ErrInvalidMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.msg.Period(now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Period() error = %v", err)
			}
			if p.From.Format(time.DateOnly) != tt.wantFrom || p.To.Format(time.DateOnly) != tt.wantTo {
				t.Fatalf("period = %v..%v, want %s..%s", p.From, p.To, tt.wantFrom, tt.wantTo)
			}
		})
	}
}
