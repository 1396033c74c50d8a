package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-Id"

	requestIDKey = "request_id"
	actorIDKey   = "actor_id"

	maxRequestIDLength = 128
)

// RequestContext stores a request id, echoed back to the client, and the
// caller's actor id on the gin context.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)

		if actor := strings.TrimSpace(c.GetHeader(ActorHeader)); actor != "" {
			c.Set(actorIDKey, actor)
		}

		c.Next()
	}
}

func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// ActorIDFrom falls back to the header when RequestContext did not run.
func ActorIDFrom(c *gin.Context) string {
	if actor := c.GetString(actorIDKey); actor != "" {
		return actor
	}
	return strings.TrimSpace(c.GetHeader(ActorHeader))
}

// Recovery answers a panic with a 500 carrying the request id, so a client
// report can be matched to the log line.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			requestID := RequestIDFrom(c)
			event := log.Error().
				Interface("panic", r).
				Str("method", c.Request.Method).
				Str("route", c.FullPath()).
				Str("request_id", requestID)
			if actor := ActorIDFrom(c); actor != "" {
				event = event.Str("actor_id", actor)
			}
			event.Bytes("stack", debug.Stack()).Msg("panic recovered")

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "internal_server_error",
				"requestId": requestID,
			})
		}()
		c.Next()
	}
}
