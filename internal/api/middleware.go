package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	traceKey    = "trace_id"
	traceHeader = "X-Trace-Id"
)

// traceMiddleware assigns every request a trace id, echoed in the response
// header and in every error body.
func traceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(traceHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(traceKey, id)
		c.Header(traceHeader, id)

		start := time.Now()
		c.Next()

		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"trace_id", id)
	}
}

func traceID(c *gin.Context) string {
	return c.GetString(traceKey)
}

func recoverHandler(c *gin.Context, recovered any) {
	slog.Error("panic in handler", "path", c.Request.URL.Path, "panic", recovered, "trace_id", traceID(c))
	abort(c, http.StatusInternalServerError, "internal error")
}

// authMiddleware requires "Authorization: Bearer <token>". An empty token
// disables the route.
func authMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			abort(c, http.StatusForbidden, "ingest is disabled")
			return
		}
		header := c.GetHeader("Authorization")
		got, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			abort(c, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "trace_id": traceID(c)})
}
