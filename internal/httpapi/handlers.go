package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"callpulse/internal/analytics"
	"callpulse/internal/auth"
	"callpulse/internal/calls"
	"callpulse/internal/config"
	"callpulse/internal/events"
	"callpulse/internal/vapi"
	"callpulse/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal modules, return JSON.
type Handlers struct {
	Store      *calls.Store
	Aggregator *analytics.Aggregator
	Log        *events.Log

	Auth  *auth.Manager
	Creds *auth.Authenticator

	Dialer *vapi.Client
	Vapi   config.VapiConfig

	Env     string
	started time.Time
	clock   func() time.Time
}

func NewHandlers() Handlers {
	return Handlers{started: time.Now(), clock: time.Now}
}

// --- Health ---

func (h Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"env":            h.Env,
		"uptime_seconds": int64(h.clock().Sub(h.started).Seconds()),
		"calls_tracked":  h.Store.Len(),
	})
}

// --- Auth ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login verifies the dashboard admin credentials and issues a token pair.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil || h.Creds == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "invalid json"})
		return
	}
	if err := h.Creds.VerifyCredentials(req.Username, req.Password); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "invalid credentials"})
		return
	}
	pair, err := h.Auth.IssuePair(h.clock(), req.Username, "admin")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

// ListCalls returns filtered, paginated calls, newest first.
func (h Handlers) ListCalls(c *gin.Context) {
	f := calls.Filter{
		Type:    calls.CallType(c.Query("type")),
		Status:  calls.Status(c.Query("status")),
		Purpose: c.Query("purpose"),
		Limit:   intQuery(c, "limit", 50),
		Offset:  intQuery(c, "offset", 0),
	}
	items, total := h.Store.List(f)
	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"total":  total,
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

// GetCall never propagates a store-level miss; unknown ids are an explicit
// not-found result.
func (h Handlers) GetCall(c *gin.Context) {
	rec, ok := h.Store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "no call with that id"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// --- Events ---

func (h Handlers) RecentEvents(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	entries := h.Log.Recent(limit)
	c.JSON(http.StatusOK, gin.H{"items": entries, "count": len(entries)})
}

// --- Analytics ---

// Stats returns the rolling snapshot plus activeCalls, which is computed at
// query time because it is not monotonic.
func (h Handlers) Stats(c *gin.Context) {
	snap := h.Aggregator.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"totalCalls":          snap.TotalCalls,
		"successfulCalls":     snap.SuccessfulCalls,
		"failedCalls":         snap.FailedCalls,
		"totalDuration":       snap.TotalDurationSeconds,
		"averageCallDuration": snap.AverageCallDuration,
		"callsByPurpose":      snap.CallsByPurpose,
		"callsByStatus":       snap.CallsByStatus,
		"hourlyStats":         snap.HourlyStats,
		"dailyStats":          snap.DailyStats,
		"activeCalls":         h.Store.ActiveCount(),
	})
}

// --- Outbound ---

type startCallRequest struct {
	CustomerNumber string `json:"customer_number"`
	AssistantID    string `json:"assistant_id"`
	PhoneNumberID  string `json:"phone_number_id"`
	Purpose        string `json:"purpose"`
}

// StartCall asks the voice platform to place an outbound call and seeds the
// store so the platform's webhooks land on a known record.
func (h Handlers) StartCall(c *gin.Context) {
	if h.Dialer == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "dialer not configured"})
		return
	}
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "invalid json"})
		return
	}
	if req.CustomerNumber == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "customer_number required"})
		return
	}
	if req.AssistantID == "" {
		req.AssistantID = h.Vapi.AssistantID
	}
	if req.PhoneNumberID == "" {
		req.PhoneNumberID = h.Vapi.PhoneNumberID
	}

	callID, err := h.Dialer.InitiateCall(c.Request.Context(), vapi.CallRequest{
		CustomerNumber: req.CustomerNumber,
		AssistantID:    req.AssistantID,
		PhoneNumberID:  req.PhoneNumberID,
	})
	if err != nil {
		logger.FromGin(c).Error("call initiation failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "upstream_error", "message": "call initiation failed"})
		return
	}

	rec, created := h.Store.Seed(callID, req.CustomerNumber, req.Purpose)
	if created {
		h.Aggregator.OnCallSeeded(rec)
	}
	c.JSON(http.StatusOK, gin.H{"callId": callID, "status": rec.Status})
}

func intQuery(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
