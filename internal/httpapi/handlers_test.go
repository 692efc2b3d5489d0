package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"videocall-platform/internal/auth"
	"videocall-platform/internal/billing"
	"videocall-platform/internal/calls"
	"videocall-platform/internal/config"
	"videocall-platform/internal/history"
	"videocall-platform/internal/rtctoken"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	router   *gin.Engine
	balances *billing.MemoryBalances
}

// identityFromHeaders stands in for the JWT middleware: tests put the
// caller identity in X-User-ID / X-Role.
func identityFromHeaders(c *gin.Context) {
	uid := c.GetHeader("X-User-ID")
	role := c.GetHeader("X-Role")
	if uid != "" {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), uid, role))
	}
	c.Next()
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	balances := billing.NewMemoryBalances()
	earnings := billing.NewMemoryEarnings()
	archive := history.NewService(history.NewMemoryRepo())
	tariff := billing.DefaultTariff()

	coord := calls.NewCoordinator(calls.CoordinatorConfig{
		Balances:   balances,
		Earnings:   earnings,
		Tariff:     tariff,
		Archive:    archive,
		PendingTTL: time.Minute,
	})

	h := Handlers{
		Calls:    coord,
		Balances: balances,
		Earnings: earnings,
		Tariff:   tariff,
		History:  archive,
		RTC: rtctoken.NewIssuer(config.RTCConfig{
			AppID:         "app-1",
			AppSecret:     "test-secret",
			CredentialTTL: time.Hour,
		}),
		PollSeconds: 3,
	}

	r := gin.New()
	r.Use(identityFromHeaders)
	r.POST("/calls", h.CreateCall)
	r.GET("/calls/pending", h.PendingCall)
	r.GET("/calls/active", h.ActiveCall)
	r.GET("/calls/:call_id", h.GetCall)
	r.POST("/calls/:call_id/accept", h.AcceptCall)
	r.POST("/calls/:call_id/reject", h.RejectCall)
	r.POST("/calls/:call_id/end", h.EndCall)
	r.POST("/calls/:call_id/token", h.IssueCallCredential)
	r.GET("/billing/balance", h.GetBalance)
	r.GET("/billing/packages", h.ListPackages)
	r.POST("/billing/purchase", h.PurchasePackage)
	r.GET("/billing/earnings", h.GetEarnings)
	r.GET("/history", h.CallHistory)
	r.GET("/history/summary", h.CallSummary)

	return fixture{router: r, balances: balances}
}

func (f fixture) do(t *testing.T, method, path, userID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
		req.Header.Set("X-Role", role)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
	return out
}

func (f fixture) fund(t *testing.T, userID string, credits int64) {
	t.Helper()
	w := f.do(t, http.MethodPost, "/billing/purchase", userID, "caller",
		gin.H{"credits": credits})
	if w.Code != http.StatusOK {
		t.Fatalf("fund failed: %d %s", w.Code, w.Body.String())
	}
}

func TestHandlers_CallLifecycle(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 10)

	w := f.do(t, http.MethodPost, "/calls", "alice", "caller", gin.H{"receiver_id": "bob"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	created := decode(t, w)
	callID, _ := created["id"].(string)
	if callID == "" {
		t.Fatalf("expected call id in %v", created)
	}

	// receiver's poll sees the invitation with the cadence hint
	w = f.do(t, http.MethodGet, "/calls/pending", "bob", "receiver", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pending: %d %s", w.Code, w.Body.String())
	}
	pending := decode(t, w)
	if pending["has_call"] != true {
		t.Fatalf("expected has_call true: %v", pending)
	}
	if pending["poll_seconds"] != float64(3) {
		t.Fatalf("expected poll_seconds 3: %v", pending)
	}

	w = f.do(t, http.MethodPost, "/calls/"+callID+"/accept", "bob", "receiver", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("accept: %d %s", w.Code, w.Body.String())
	}
	if decode(t, w)["status"] != "active" {
		t.Fatalf("expected active")
	}

	// both parties see the call as their active one
	w = f.do(t, http.MethodGet, "/calls/active", "alice", "caller", nil)
	if w.Code != http.StatusOK || decode(t, w)["has_call"] != true {
		t.Fatalf("active: %d %s", w.Code, w.Body.String())
	}

	// both sides can request a room credential while the call is live
	w = f.do(t, http.MethodPost, "/calls/"+callID+"/token", "alice", "caller", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("token: %d %s", w.Code, w.Body.String())
	}
	if decode(t, w)["token"] == "" {
		t.Fatalf("expected credential token")
	}

	w = f.do(t, http.MethodPost, "/calls/"+callID+"/end", "alice", "caller", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("end: %d %s", w.Code, w.Body.String())
	}
	if decode(t, w)["status"] != "ended" {
		t.Fatalf("expected ended")
	}

	// ending again is idempotent
	w = f.do(t, http.MethodPost, "/calls/"+callID+"/end", "bob", "receiver", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("idempotent end: %d %s", w.Code, w.Body.String())
	}

	// no credential for a dead room
	w = f.do(t, http.MethodPost, "/calls/"+callID+"/token", "alice", "caller", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for ended call, got %d", w.Code)
	}

	// history records the completed call
	w = f.do(t, http.MethodGet, "/history/summary", "bob", "receiver", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary: %d %s", w.Code, w.Body.String())
	}
	if decode(t, w)["total_calls"] != float64(1) {
		t.Fatalf("expected 1 archived call: %s", w.Body.String())
	}
}

func TestHandlers_ErrorStatuses(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 10)
	f.fund(t, "carol", 10)

	// out of credits up front
	w := f.do(t, http.MethodPost, "/calls", "broke", "caller", gin.H{"receiver_id": "bob"})
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", w.Code)
	}

	// missing identity
	w = f.do(t, http.MethodPost, "/calls", "", "", gin.H{"receiver_id": "bob"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	// self call
	w = f.do(t, http.MethodPost, "/calls", "alice", "caller", gin.H{"receiver_id": "alice"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/calls", "alice", "caller", gin.H{"receiver_id": "bob"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	callID := decode(t, w)["id"].(string)

	// busy receiver
	w = f.do(t, http.MethodPost, "/calls", "carol", "caller", gin.H{"receiver_id": "bob"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	// wrong receiver accepting
	w = f.do(t, http.MethodPost, "/calls/"+callID+"/accept", "mallory", "receiver", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	// unknown call
	w = f.do(t, http.MethodGet, "/calls/nope", "alice", "caller", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	// double accept
	w = f.do(t, http.MethodPost, "/calls/"+callID+"/accept", "bob", "receiver", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("accept: %d %s", w.Code, w.Body.String())
	}
	w = f.do(t, http.MethodPost, "/calls/"+callID+"/accept", "bob", "receiver", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on double accept, got %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/calls/"+callID+"/end", "bob", "receiver", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("end: %d %s", w.Code, w.Body.String())
	}
}

func TestHandlers_RejectFlow(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "alice", 10)

	w := f.do(t, http.MethodPost, "/calls", "alice", "caller", gin.H{"receiver_id": "bob"})
	callID := decode(t, w)["id"].(string)

	w = f.do(t, http.MethodPost, "/calls/"+callID+"/reject", "bob", "receiver", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reject: %d %s", w.Code, w.Body.String())
	}
	if decode(t, w)["end_reason"] != "rejected" {
		t.Fatalf("expected rejected reason: %s", w.Body.String())
	}

	// poll no longer sees it
	w = f.do(t, http.MethodGet, "/calls/pending", "bob", "receiver", nil)
	if decode(t, w)["has_call"] != false {
		t.Fatalf("expected no pending call")
	}
}

func TestHandlers_BillingEndpoints(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/billing/packages", "alice", "caller", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("packages: %d", w.Code)
	}
	resp := decode(t, w)
	if resp["currency"] != "KES" {
		t.Fatalf("expected KES, got %v", resp["currency"])
	}

	// unknown package
	w = f.do(t, http.MethodPost, "/billing/purchase", "alice", "caller", gin.H{"credits": 7})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/billing/purchase", "alice", "caller", gin.H{"credits": 25})
	if w.Code != http.StatusOK {
		t.Fatalf("purchase: %d %s", w.Code, w.Body.String())
	}
	if decode(t, w)["credits"] != float64(25) {
		t.Fatalf("expected 25 credits: %s", w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/billing/balance", "alice", "caller", nil)
	if w.Code != http.StatusOK || decode(t, w)["credits"] != float64(25) {
		t.Fatalf("balance: %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/billing/earnings", "bob", "receiver", nil)
	if w.Code != http.StatusOK || decode(t, w)["total_minor"] != float64(0) {
		t.Fatalf("earnings: %d %s", w.Code, w.Body.String())
	}
}
