package httpapi

import (
	"errors"
	"net/http"
	"time"

	"videocall-platform/internal/auth"
	"videocall-platform/internal/billing"
	"videocall-platform/internal/calls"
	"videocall-platform/internal/history"
	"videocall-platform/internal/rbac"
	"videocall-platform/internal/rtctoken"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth     *auth.Manager
	Calls    *calls.Coordinator
	Balances billing.Balances
	Earnings billing.EarningsLedger
	Tariff   billing.Tariff
	History  *history.Service
	RTC      *rtctoken.Issuer

	// PollSeconds is the receiver poll cadence hint returned with every
	// pending-call response.
	PollSeconds int
}

// errorStatus maps the typed lifecycle and billing errors onto HTTP
// status codes. Unrecognized errors are internal.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, calls.ErrInvalidArgument),
		errors.Is(err, billing.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, calls.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, calls.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, calls.ErrReceiverBusy),
		errors.Is(err, calls.ErrCallerBusy),
		errors.Is(err, calls.ErrConflict),
		errors.Is(err, calls.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, billing.ErrInsufficientFunds),
		errors.Is(err, billing.ErrOutOfCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, rtctoken.ErrCredentialUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func identity(c *gin.Context) (string, bool) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil || uid == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return "", false
	}
	return uid, true
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	if !rbac.IsValidRole(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

type createCallRequest struct {
	ReceiverID string `json:"receiver_id"`
}

func (h Handlers) CreateCall(c *gin.Context) {
	callerID, ok := identity(c)
	if !ok {
		return
	}
	var req createCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rec, err := h.Calls.CreateCall(c.Request.Context(), callerID, req.ReceiverID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// PendingCall answers the receiver's poll loop. The response always
// carries the poll cadence hint so clients never hardcode it.
func (h Handlers) PendingCall(c *gin.Context) {
	receiverID, ok := identity(c)
	if !ok {
		return
	}
	rec, found := h.Calls.PendingCallFor(c.Request.Context(), receiverID)
	resp := gin.H{"has_call": found, "poll_seconds": h.PollSeconds}
	if found {
		resp["call"] = rec
	}
	c.JSON(http.StatusOK, resp)
}

// ActiveCall returns the party's current Active call, from either side.
func (h Handlers) ActiveCall(c *gin.Context) {
	partyID, ok := identity(c)
	if !ok {
		return
	}
	rec, found := h.Calls.ActiveCallFor(partyID)
	resp := gin.H{"has_call": found}
	if found {
		resp["call"] = rec
	}
	c.JSON(http.StatusOK, resp)
}

func (h Handlers) GetCall(c *gin.Context) {
	partyID, ok := identity(c)
	if !ok {
		return
	}
	rec, err := h.Calls.GetCall(c.Request.Context(), c.Param("call_id"), partyID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h Handlers) AcceptCall(c *gin.Context) {
	receiverID, ok := identity(c)
	if !ok {
		return
	}
	rec, err := h.Calls.AcceptCall(c.Request.Context(), c.Param("call_id"), receiverID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h Handlers) RejectCall(c *gin.Context) {
	receiverID, ok := identity(c)
	if !ok {
		return
	}
	rec, err := h.Calls.RejectCall(c.Request.Context(), c.Param("call_id"), receiverID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h Handlers) EndCall(c *gin.Context) {
	partyID, ok := identity(c)
	if !ok {
		return
	}
	rec, err := h.Calls.EndCall(c.Request.Context(), c.Param("call_id"), partyID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// IssueCallCredential signs a media-room join credential for a
// participant of the call. The call must still be live; ended calls
// get 409 rather than a token for a dead room.
func (h Handlers) IssueCallCredential(c *gin.Context) {
	partyID, ok := identity(c)
	if !ok {
		return
	}
	rec, err := h.Calls.GetCall(c.Request.Context(), c.Param("call_id"), partyID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if rec.Status == calls.StatusEnded {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call already ended"})
		return
	}
	cred, err := h.RTC.Issue(time.Now(), rec.ChannelName, partyID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}

// --- Billing ---

func (h Handlers) GetBalance(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	bal, err := h.Balances.Balance(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "credits": bal})
}

func (h Handlers) ListPackages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"currency": h.Tariff.Currency,
		"packages": billing.Packages(),
	})
}

type purchaseRequest struct {
	Credits int64 `json:"credits"`
}

// PurchasePackage credits the caller with a purchased bundle.
//
// NOTE: Payment capture is out of scope here; this trusts the request
// the way a payment-provider webhook would after verification.
func (h Handlers) PurchasePackage(c *gin.Context) {
	userID, ok := identity(c)
	if !ok {
		return
	}
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	pkg, found := billing.FindPackage(req.Credits)
	if !found {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown package"})
		return
	}
	bal, err := h.Balances.Credit(c.Request.Context(), userID, pkg.Credits)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":     userID,
		"credits":     bal,
		"purchased":   pkg.Credits,
		"price_minor": pkg.PriceMinor,
		"currency":    h.Tariff.Currency,
	})
}

func (h Handlers) GetEarnings(c *gin.Context) {
	receiverID, ok := identity(c)
	if !ok {
		return
	}
	total, err := h.Earnings.Total(c.Request.Context(), receiverID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	entries, err := h.Earnings.List(c.Request.Context(), receiverID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"receiver_id": receiverID,
		"total_minor": total,
		"currency":    h.Tariff.Currency,
		"entries":     entries,
	})
}

// --- History ---

func (h Handlers) CallHistory(c *gin.Context) {
	partyID, ok := identity(c)
	if !ok {
		return
	}
	entries, err := h.History.ListForParty(c.Request.Context(), partyID, 0)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"party_id": partyID, "calls": entries})
}

func (h Handlers) CallSummary(c *gin.Context) {
	partyID, ok := identity(c)
	if !ok {
		return
	}
	summary, err := h.History.SummaryForParty(c.Request.Context(), partyID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
