package events

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// Type discriminates webhook events sent by the voice platform.
type Type string

const (
	TypeCallStart       Type = "call-start"
	TypeStatusUpdate    Type = "status-update"
	TypeCallEnd         Type = "call-end"
	TypeCallStartFailed Type = "call-start-failed"
	TypeError           Type = "error"
	TypeCallUpdate      Type = "call-update"
	TypeFunctionCall    Type = "function-call"
	TypeSpeechStart     Type = "speech-start"
	TypeSpeechEnd       Type = "speech-end"
	TypeMessage         Type = "message"
	TypeTranscript      Type = "transcript"
)

// Known reports whether t is one of the enumerated platform event types.
// Unknown types are still ingested; they only skip status transitions.
func (t Type) Known() bool {
	switch t {
	case TypeCallStart, TypeStatusUpdate, TypeCallEnd, TypeCallStartFailed,
		TypeError, TypeCallUpdate, TypeFunctionCall, TypeSpeechStart,
		TypeSpeechEnd, TypeMessage, TypeTranscript:
		return true
	default:
		return false
	}
}

// FunctionCall is the synchronous RPC sub-request some events carry.
type FunctionCall struct {
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// Turn is one transcript turn carried by a message event.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is the normalized form of an inbound webhook payload.
// Only CallID and Type are guaranteed; everything else is optional and
// defaults to its zero value when the payload omits it.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	CallID    string    `json:"call_id"`
	Timestamp time.Time `json:"timestamp"`

	// Status accompanies status-update (from call.status) and call-update
	// (top-level status). Stored verbatim.
	Status string `json:"status,omitempty"`

	// CallType is the platform call type when present, already mapped to
	// the internal vocabulary (outbound-phone, inbound-phone, web-voice).
	CallType string `json:"call_type,omitempty"`

	Purpose        string `json:"purpose,omitempty"`
	CustomerNumber string `json:"customer_number,omitempty"`

	// Termination fields (call-end).
	DurationSeconds float64 `json:"duration,omitempty"`
	Cost            float64 `json:"cost,omitempty"`
	EndedReason     string  `json:"ended_reason,omitempty"`

	// ErrorMessage accompanies error and call-start-failed.
	ErrorMessage string `json:"error,omitempty"`

	FunctionCall *FunctionCall `json:"function_call,omitempty"`
	Message      *Turn         `json:"message,omitempty"`
	Transcript   string        `json:"transcript,omitempty"`

	// Raw is the payload exactly as received.
	Raw json.RawMessage `json:"-"`
}

// Entry is one record in an append-only event history (global log and
// per-call histories share the shape).
type Entry struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	CallID    string          `json:"call_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Entry converts a normalized event into its history record.
func (e Event) Entry() Entry {
	return Entry{
		ID:        e.ID,
		Type:      e.Type,
		CallID:    e.CallID,
		Timestamp: e.Timestamp,
		Data:      e.Raw,
	}
}

// Sequence issues monotonically non-decreasing event ids. Uniqueness is
// guaranteed by the counter; ordering across concurrent arrivals is not.
type Sequence struct {
	n atomic.Uint64
}

func NewSequence() *Sequence { return &Sequence{} }

func (s *Sequence) Next(now time.Time) string {
	return fmt.Sprintf("evt_%d_%06d", now.UnixMilli(), s.n.Add(1))
}
