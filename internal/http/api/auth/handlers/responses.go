package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// FieldErrors maps request fields to validation messages.
type FieldErrors map[string][]string

func respondSuccess(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": data})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"ok": false, "error": gin.H{"code": code, "message": message}})
}

func respondMapped(c *gin.Context, mapped MappedError) {
	respondError(c, mapped.Status, mapped.Code, mapped.Message)
}

func respondValidation(c *gin.Context, fields FieldErrors) {
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": gin.H{
		"code":        CodeValidation,
		"message":     messageValidation,
		"fieldErrors": fields,
	}})
}

// respondRateLimited writes a 429 with the wait time in both header and body.
func respondRateLimited(c *gin.Context, retryAfterSeconds int) {
	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
	c.JSON(http.StatusTooManyRequests, gin.H{"ok": false, "error": gin.H{
		"code":              CodeRateLimited,
		"message":           messageRateLimited,
		"retryAfterSeconds": retryAfterSeconds,
	}})
}
