package calls

import (
	"encoding/json"
	"time"

	"callpulse/internal/events"
)

// Record is one voice call tracked by the store.
//
// Invariants:
// - Events and Messages are append-only and never reordered.
// - Status is updated incrementally from the most recent relevant event,
//   never recomputed from the full log.
// - CreatedAt/StartedAt/EndedAt are set at most once; UpdatedAt on every event.
type Record struct {
	ID      string   `json:"id"`
	Type    CallType `json:"type"`
	Status  Status   `json:"status"`
	Purpose string   `json:"purpose"`

	CustomerNumber string `json:"customerNumber,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	FailedAt  *time.Time `json:"failedAt,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`

	// DurationSeconds is set only on termination.
	DurationSeconds float64 `json:"duration,omitempty"`
	Cost            float64 `json:"cost,omitempty"`
	EndedReason     string  `json:"endedReason,omitempty"`

	// Error is present only for failed/error calls.
	Error string `json:"error,omitempty"`

	// Function-call side channel bookkeeping.
	LastFunction   string          `json:"lastFunction,omitempty"`
	FunctionResult json.RawMessage `json:"functionResult,omitempty"`

	IsSpeaking bool `json:"isSpeaking,omitempty"`

	// Events is the complete raw event history for this call. The global
	// log cap does not apply here.
	Events   []events.Entry `json:"events"`
	Messages []events.Turn  `json:"messages,omitempty"`
}

type CallType string

const (
	TypeOutboundPhone CallType = "outbound-phone"
	TypeInboundPhone  CallType = "inbound-phone"
	TypeWebVoice      CallType = "web-voice"
)

type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusInitiated Status = "initiated"
	StatusRinging   Status = "ringing"
	StatusStarted   Status = "started"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusFailed    Status = "failed"
	StatusError     Status = "error"
)

// Terminal reports whether no further status transition is expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusEnded, StatusFailed, StatusError:
		return true
	default:
		return false
	}
}

// Live reports whether the call counts toward activeCalls.
func (s Status) Live() bool {
	switch s {
	case StatusStarted, StatusActive, StatusRinging:
		return true
	default:
		return false
	}
}

// clone returns a deep copy safe to hand outside the store lock.
func (r *Record) clone() Record {
	out := *r
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		out.EndedAt = &t
	}
	if r.FailedAt != nil {
		t := *r.FailedAt
		out.FailedAt = &t
	}
	out.Events = append([]events.Entry(nil), r.Events...)
	out.Messages = append([]events.Turn(nil), r.Messages...)
	return out
}
