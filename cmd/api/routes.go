package main

import (
	"videocall-platform/internal/httpapi"
	"videocall-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		// CALLS routes. Creation is the caller's move; the poll, accept
		// and reject endpoints belong to the receiver; either side may
		// end or inspect a call it participates in.
		callGroup := v1.Group("/calls")
		{
			callGroup.POST("", rbac.RequireAnyRole(rbac.RoleCaller), h.CreateCall)
			callGroup.GET("/pending", rbac.RequireAnyRole(rbac.RoleReceiver), h.PendingCall)
			callGroup.GET("/active", h.ActiveCall)
			callGroup.GET("/:call_id", h.GetCall)
			callGroup.POST("/:call_id/accept", rbac.RequireAnyRole(rbac.RoleReceiver), h.AcceptCall)
			callGroup.POST("/:call_id/reject", rbac.RequireAnyRole(rbac.RoleReceiver), h.RejectCall)
			callGroup.POST("/:call_id/end", h.EndCall)
			callGroup.POST("/:call_id/token", h.IssueCallCredential)
		}

		// BILLING routes
		billingGroup := v1.Group("/billing")
		{
			billingGroup.GET("/balance", h.GetBalance)
			billingGroup.GET("/packages", h.ListPackages)
			billingGroup.POST("/purchase", rbac.RequireAnyRole(rbac.RoleCaller), h.PurchasePackage)
			billingGroup.GET("/earnings", rbac.RequireAnyRole(rbac.RoleReceiver), h.GetEarnings)
		}

		// HISTORY routes
		historyGroup := v1.Group("/history")
		{
			historyGroup.GET("", h.CallHistory)
			historyGroup.GET("/summary", h.CallSummary)
		}
	}
}
