package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"callpulse/internal/analytics"
	"callpulse/internal/auth"
	"callpulse/internal/calls"
	"callpulse/internal/config"
	"callpulse/internal/events"
	"callpulse/internal/vapi"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

var testNow = time.Unix(1700000000, 0).UTC()

type fixture struct {
	store  *calls.Store
	agg    *analytics.Aggregator
	log    *events.Log
	router *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		store: calls.NewStore().WithClock(func() time.Time { return testNow }),
		agg:   analytics.NewAggregator(),
		log:   events.NewLog(100),
	}
	h := NewHandlers()
	h.Store = f.store
	h.Aggregator = f.agg
	h.Log = f.log
	h.Env = "local"

	f.router = gin.New()
	f.router.GET("/health", h.Health)
	f.router.GET("/api/calls", h.ListCalls)
	f.router.GET("/api/calls/:id", h.GetCall)
	f.router.GET("/api/events", h.RecentEvents)
	f.router.GET("/api/stats", h.Stats)
	return f
}

func (f *fixture) apply(ev events.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = testNow
	}
	res := f.store.Apply(ev)
	f.agg.OnEvent(ev, res)
	f.log.Append(ev.Entry())
}

func (f *fixture) get(t *testing.T, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return w, body
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w, body := f.get(t, "/health")
	if w.Code != 200 || body["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %+v", w.Code, body)
	}
}

func TestGetCall_NotFound(t *testing.T) {
	f := newFixture(t)
	w, body := f.get(t, "/api/calls/nope")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if body["error"] != "not_found" || body["message"] == "" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestGetCall_Found(t *testing.T) {
	f := newFixture(t)
	f.apply(events.Event{ID: "e1", Type: events.TypeCallStart, CallID: "c1"})

	w, body := f.get(t, "/api/calls/c1")
	if w.Code != 200 || body["id"] != "c1" || body["status"] != "started" {
		t.Fatalf("unexpected body: %d %+v", w.Code, body)
	}
}

func TestListCalls_FilterAndPaginate(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.apply(events.Event{
			ID: fmt.Sprintf("e%d", i), Type: events.TypeCallStart,
			CallID: fmt.Sprintf("c%d", i), Purpose: "support",
			Timestamp: testNow.Add(time.Duration(i) * time.Second),
		})
	}

	_, body := f.get(t, "/api/calls?purpose=support&limit=2&offset=1")
	if body["total"].(float64) != 5 {
		t.Fatalf("expected total 5, got %+v", body["total"])
	}
	items := body["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	_, body = f.get(t, "/api/calls?purpose=nothing")
	if body["total"].(float64) != 0 {
		t.Fatalf("expected empty result, got %+v", body)
	}
}

func TestRecentEvents(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.apply(events.Event{ID: fmt.Sprintf("e%d", i), Type: events.TypeCallUpdate, CallID: "c1"})
	}
	_, body := f.get(t, "/api/events?limit=2")
	items := body["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 events, got %d", len(items))
	}
	first := items[0].(map[string]any)
	if first["id"] != "e2" {
		t.Fatalf("expected most recent first, got %+v", first)
	}
}

func TestLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	authCfg := config.AuthConfig{
		JWTSecret:         "test-secret",
		AccessTokenTTL:    time.Hour,
		RefreshTokenTTL:   24 * time.Hour,
		AdminUser:         "admin",
		AdminPasswordHash: string(hash),
	}
	mgr, err := auth.NewManager(authCfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	creds, err := auth.NewAuthenticator(authCfg)
	if err != nil {
		t.Fatalf("new authenticator: %v", err)
	}

	h := NewHandlers()
	h.Auth = mgr
	h.Creds = creds
	router := gin.New()
	router.POST("/api/auth/login", h.Login)

	post := func(payload string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		return w
	}

	w := post(`{"username":"admin","password":"s3cret"}`)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["access_token"] == "" || body["refresh_token"] == "" {
		t.Fatalf("expected token pair, got %+v", body)
	}

	if w := post(`{"username":"admin","password":"wrong"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", w.Code)
	}
	if w := post(`not json`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", w.Code)
	}
}

func TestStartCall(t *testing.T) {
	gin.SetMode(gin.TestMode)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/call" || r.Header.Get("Authorization") != "Bearer key-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"id":"call_abc"}`)
	}))
	defer upstream.Close()

	store := calls.NewStore()
	agg := analytics.NewAggregator()
	h := NewHandlers()
	h.Store = store
	h.Aggregator = agg
	h.Dialer = vapi.NewClient(config.VapiConfig{BaseURL: upstream.URL, APIKey: "key-123"})
	h.Vapi = config.VapiConfig{AssistantID: "asst_1", PhoneNumberID: "pn_1"}

	router := gin.New()
	router.POST("/api/calls/start", h.StartCall)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/calls/start",
		strings.NewReader(`{"customer_number":"+15550001111","purpose":"voice-campaign"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["callId"] != "call_abc" || body["status"] != "initiated" {
		t.Fatalf("unexpected body: %+v", body)
	}

	rec, ok := store.Get("call_abc")
	if !ok || rec.CustomerNumber != "+15550001111" || rec.Purpose != "voice-campaign" {
		t.Fatalf("seed missing or wrong: %+v ok=%v", rec, ok)
	}

	snap := agg.Snapshot()
	if snap.TotalCalls != 1 || snap.CallsByPurpose["voice-campaign"] != 1 {
		t.Fatalf("seeded call must count toward totals: %+v", snap)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/calls/start", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing number, got %d", w.Code)
	}
}

func TestStats_IncludesComputedActiveCalls(t *testing.T) {
	f := newFixture(t)
	f.apply(events.Event{ID: "e1", Type: events.TypeCallStart, CallID: "c1"})
	f.apply(events.Event{ID: "e2", Type: events.TypeCallStart, CallID: "c2"})
	f.apply(events.Event{ID: "e3", Type: events.TypeCallEnd, CallID: "c2", DurationSeconds: 30, EndedReason: "customer-ended-call"})

	_, body := f.get(t, "/api/stats")
	if body["activeCalls"].(float64) != 1 {
		t.Fatalf("expected 1 active call, got %+v", body["activeCalls"])
	}
	if body["totalCalls"].(float64) != 2 || body["successfulCalls"].(float64) != 1 {
		t.Fatalf("unexpected stats: %+v", body)
	}
	if body["averageCallDuration"].(float64) != 15 {
		t.Fatalf("expected average 15, got %+v", body["averageCallDuration"])
	}
}
