package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CandidatePortal/internal/analytics"
	handlers "github.com/router-for-me/CandidatePortal/internal/http/api/auth/handlers"
)

// RegisterAuthRoutes registers the candidate auth endpoints.
// testEvents is non-nil only when analytics test mode is enabled.
func RegisterAuthRoutes(r *gin.Engine, limiter handlers.Limiter, provider handlers.Provider, tracker handlers.Tracker, testEvents *analytics.MemorySink) {
	if r == nil || limiter == nil || provider == nil {
		return
	}

	authHandler := handlers.NewAuthHandler(limiter, provider, tracker)
	authGroup := r.Group("/api/auth")
	authGroup.POST("/apply", authHandler.Apply)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/reset-password", authHandler.ResetPassword)
	authGroup.POST("/verification/resend", authHandler.ResendVerification)

	eventsHandler := handlers.NewAnalyticsEventsHandler(testEvents)
	r.GET("/api/testing/analytics-events", eventsHandler.List)
	r.DELETE("/api/testing/analytics-events", eventsHandler.Clear)
}
