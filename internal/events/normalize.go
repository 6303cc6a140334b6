package events

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrNoCallID is returned when no call id can be extracted from a payload.
// It is the only validation failure; payload content is otherwise opaque.
var ErrNoCallID = errors.New("events: no call id in payload")

// ErrBadPayload is returned when the body is not a JSON object at all.
var ErrBadPayload = errors.New("events: payload is not a JSON object")

// envelope covers both accepted webhook shapes:
//
//	{type, call: {id, ...}, ...}
//	{message: {type, call: {id, ...}, ...}}
//
// Fields accessed optionally upstream are modeled as optional here.
type envelope struct {
	Type    string    `json:"type"`
	ID      string    `json:"id"`
	Status  string    `json:"status"`
	Call    *callRef  `json:"call"`
	Message *envelope `json:"message"`

	Purpose        string  `json:"purpose"`
	CustomerNumber string  `json:"customerNumber"`
	Duration       float64 `json:"duration"`
	Cost           float64 `json:"cost"`
	EndedReason    string  `json:"endedReason"`
	EndReason      string  `json:"endReason"`
	Error          any     `json:"error"`

	FunctionCall *FunctionCall `json:"functionCall"`

	Role       string  `json:"role"`
	Content    string  `json:"content"`
	Transcript string  `json:"transcript"`
	Timestamp  float64 `json:"timestamp"`
}

type callRef struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	Customer *struct {
		Number string `json:"number"`
	} `json:"customer"`
	Metadata *struct {
		Purpose string `json:"purpose"`
	} `json:"metadata"`
}

// Normalize parses a raw webhook body into a normalized Event.
// The caller assigns Event.ID afterwards; Timestamp is the processing time.
func Normalize(raw []byte, now time.Time) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, ErrBadPayload
	}

	// Nested variant: the real envelope lives under "message".
	inner := &env
	if env.Message != nil && (env.Message.Type != "" || env.Message.Call != nil) {
		inner = env.Message
	}

	callID := ""
	if inner.Call != nil && inner.Call.ID != "" {
		callID = inner.Call.ID
	} else if inner.ID != "" {
		callID = inner.ID
	} else if env.Call != nil && env.Call.ID != "" {
		callID = env.Call.ID
	}
	if callID == "" {
		return Event{}, ErrNoCallID
	}

	ev := Event{
		Type:      Type(strings.TrimSpace(inner.Type)),
		CallID:    callID,
		Timestamp: now,
		Raw:       json.RawMessage(raw),
	}
	if ev.Type == "" {
		ev.Type = TypeCallUpdate
	}

	if inner.Call != nil {
		ev.CallType = mapCallType(inner.Call.Type)
		if inner.Call.Customer != nil {
			ev.CustomerNumber = inner.Call.Customer.Number
		}
		if inner.Call.Metadata != nil {
			ev.Purpose = inner.Call.Metadata.Purpose
		}
	}
	if ev.CustomerNumber == "" {
		ev.CustomerNumber = inner.CustomerNumber
	}
	if ev.Purpose == "" {
		ev.Purpose = inner.Purpose
	}

	switch ev.Type {
	case TypeStatusUpdate:
		if inner.Call != nil {
			ev.Status = inner.Call.Status
		}
	case TypeCallUpdate:
		ev.Status = inner.Status
	case TypeCallEnd:
		ev.DurationSeconds = inner.Duration
		ev.Cost = inner.Cost
		ev.EndedReason = inner.EndedReason
		if ev.EndedReason == "" {
			ev.EndedReason = inner.EndReason
		}
	case TypeError, TypeCallStartFailed:
		ev.ErrorMessage = errorString(inner.Error)
	case TypeFunctionCall:
		ev.FunctionCall = inner.FunctionCall
	case TypeMessage:
		ev.Message = &Turn{
			Role:      inner.Role,
			Content:   inner.Content,
			Timestamp: turnTime(inner.Timestamp, now),
		}
	case TypeTranscript:
		ev.Transcript = inner.Transcript
	}

	return ev, nil
}

// mapCallType maps platform call type labels onto the internal vocabulary.
func mapCallType(t string) string {
	switch t {
	case "outboundPhoneCall", "outbound-phone":
		return "outbound-phone"
	case "inboundPhoneCall", "inbound-phone":
		return "inbound-phone"
	case "webCall", "web-voice":
		return "web-voice"
	default:
		return ""
	}
}

// errorString tolerates both string errors and structured {message} objects.
func errorString(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return e
	case map[string]any:
		if m, ok := e["message"].(string); ok {
			return m
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// turnTime interprets a transcript turn timestamp (unix seconds, possibly
// fractional) and falls back to the processing time.
func turnTime(ts float64, now time.Time) time.Time {
	if ts <= 0 {
		return now
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
