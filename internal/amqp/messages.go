package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"finreport/internal/core"
)

// ErrInvalidMessage marks requests that can never succeed; they are
// dropped instead of requeued.
var ErrInvalidMessage = errors.New("invalid report request")

// ReportRequestMessage asks a worker to build and store a report. Either
// Months (rolling window ending today) or From and To (YYYY-MM-DD) are set.
type ReportRequestMessage struct {
	RequestID   string    `json:"requestId"`
	UserID      string    `json:"userId"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to,omitempty"`
	Months      int       `json:"months,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

// NewRangeRequest creates a request for an explicit date range.
func NewRangeRequest(userID string, from, to time.Time) *ReportRequestMessage {
	return &ReportRequestMessage{
		RequestID:   uuid.NewString(),
		UserID:      userID,
		From:        from.Format(time.DateOnly),
		To:          to.Format(time.DateOnly),
		RequestedAt: time.Now().UTC(),
	}
}

// NewRollingRequest creates a request for the last months calendar months.
func NewRollingRequest(userID string, months int) *ReportRequestMessage {
	return &ReportRequestMessage{
		RequestID:   uuid.NewString(),
		UserID:      userID,
		Months:      months,
		RequestedAt: time.Now().UTC(),
	}
}

// Validate checks the message shape without resolving dates.
func (m *ReportRequestMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidMessage)
	}
	hasRange := m.From != "" || m.To != ""
	switch {
	case m.Months < 0:
		return fmt.Errorf("%w: negative months", ErrInvalidMessage)
	case m.Months > 0 && hasRange:
		return fmt.Errorf("%w: months and date range are exclusive", ErrInvalidMessage)
	case m.Months == 0 && (m.From == "" || m.To == ""):
		return fmt.Errorf("%w: need months or both from and to", ErrInvalidMessage)
	}
	return nil
}

// Period resolves the requested window. now anchors rolling windows.
func (m *ReportRequestMessage) Period(now time.Time) (core.Period, error) {
	if err := m.Validate(); err != nil {
		return core.Period{}, err
	}
	if m.Months > 0 {
		return core.RollingMonths(now, m.Months), nil
	}
	from, err := time.Parse(time.DateOnly, m.From)
	if err != nil {
		return core.Period{}, fmt.Errorf("%w: from %q", ErrInvalidMessage, m.From)
	}
	to, err := time.Parse(time.DateOnly, m.To)
	if err != nil {
		return core.Period{}, fmt.Errorf("%w: to %q", ErrInvalidMessage, m.To)
	}
	return core.NewPeriod(from, to)
}

// ToJSON converts the message to JSON bytes
func (m *ReportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportRequestMessageFromJSON creates a message from JSON bytes
func ReportRequestMessageFromJSON(data []byte) (*ReportRequestMessage, error) {
	var msg ReportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
