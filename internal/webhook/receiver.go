package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"callpulse/internal/analytics"
	"callpulse/internal/calls"
	"callpulse/internal/events"
	"callpulse/internal/funcs"
	"callpulse/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Broadcaster pushes accepted events to live dashboard clients.
type Broadcaster interface {
	BroadcastEvent(callID string, payload any)
}

// Archiver persists terminal call records. Best effort only.
type Archiver interface {
	ArchiveCall(ctx context.Context, rec calls.Record) error
}

// Receiver handles POST /webhook/vapi: normalize, log, transition,
// aggregate, answer any embedded function call. Each request is processed
// to completion synchronously; there is no queue.
type Receiver struct {
	Store      *calls.Store
	Aggregator *analytics.Aggregator
	Log        *events.Log
	Functions  *funcs.Registry

	// Optional collaborators.
	Broadcast Broadcaster
	Archive   Archiver

	seq   *events.Sequence
	clock func() time.Time
}

func NewReceiver(store *calls.Store, agg *analytics.Aggregator, log *events.Log, fns *funcs.Registry) *Receiver {
	return &Receiver{
		Store:      store,
		Aggregator: agg,
		Log:        log,
		Functions:  fns,
		seq:        events.NewSequence(),
		clock:      time.Now,
	}
}

// WithClock overrides the receiver clock. Test hook.
func (r *Receiver) WithClock(clock func() time.Time) *Receiver {
	r.clock = clock
	return r
}

func (r *Receiver) Handle(c *gin.Context) {
	log := logger.FromGin(c)
	now := r.clock().UTC()

	body, err := c.GetRawData()
	if err != nil {
		// MaxBytesReader surfaces oversized payloads here.
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":   "payload_too_large",
			"message": "webhook payload exceeds the configured size bound",
		})
		return
	}

	ev, err := events.Normalize(body, now)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
		return
	}
	ev.ID = r.seq.Next(now)

	// The raw event is history regardless of what the transition does.
	entry := ev.Entry()
	r.Log.Append(entry)

	res := r.Store.Apply(ev)
	r.Aggregator.OnEvent(ev, res)

	if res.Skipped {
		log.Warn("transition skipped",
			"event_id", ev.ID,
			"call_id", ev.CallID,
			"type", string(ev.Type),
			"reason", res.SkipReason,
		)
	}

	if r.Broadcast != nil {
		r.Broadcast.BroadcastEvent(ev.CallID, gin.H{
			"id":        ev.ID,
			"type":      ev.Type,
			"callId":    ev.CallID,
			"status":    res.After.Status,
			"timestamp": entry.Timestamp,
		})
	}

	if r.Archive != nil && res.Transitioned && res.After.Status.Terminal() {
		archCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		if err := r.Archive.ArchiveCall(archCtx, res.After); err != nil {
			log.Warn("call archive failed", "call_id", ev.CallID, "err", err)
		}
		cancel()
	}

	// Function calls are a synchronous RPC inside the webhook channel: the
	// result travels back in this very response.
	if ev.Type == events.TypeFunctionCall {
		r.respondFunctionCall(c, ev)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "eventId": ev.ID})
}

// BodyLimit bounds webhook payload size before any parsing happens.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func (r *Receiver) respondFunctionCall(c *gin.Context, ev events.Event) {
	if ev.FunctionCall == nil || ev.FunctionCall.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "function-call event without functionCall.name",
		})
		return
	}

	result, err := r.Functions.Dispatch(c.Request.Context(), ev.FunctionCall.Name, ev.FunctionCall.Parameters)
	if err != nil {
		code := "function_error"
		if errors.Is(err, funcs.ErrUnknownFunction) {
			code = "unknown_function"
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": code, "message": err.Error()})
		return
	}

	if b, err := json.Marshal(result); err == nil {
		r.Store.SetFunctionResult(ev.CallID, ev.FunctionCall.Name, b)
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "eventId": ev.ID, "result": result})
}
