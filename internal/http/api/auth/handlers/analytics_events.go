package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CandidatePortal/internal/analytics"
)

// AnalyticsEventsHandler exposes recorded events for end-to-end tests.
type AnalyticsEventsHandler struct {
	sink *analytics.MemorySink
}

// NewAnalyticsEventsHandler constructs an AnalyticsEventsHandler. A nil sink disables the endpoints.
func NewAnalyticsEventsHandler(sink *analytics.MemorySink) *AnalyticsEventsHandler {
	return &AnalyticsEventsHandler{sink: sink}
}

// List returns recorded events.
func (h *AnalyticsEventsHandler) List(c *gin.Context) {
	if h.sink == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false})
		return
	}
	respondSuccess(c, gin.H{"events": h.sink.Events()})
}

// Clear discards recorded events.
func (h *AnalyticsEventsHandler) Clear(c *gin.Context) {
	if h.sink == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false})
		return
	}
	h.sink.Reset()
	respondSuccess(c, gin.H{"cleared": true})
}
