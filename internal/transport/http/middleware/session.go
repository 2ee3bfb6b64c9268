package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"docqa-client/internal/session"
	"docqa-client/internal/transport/http/response"
)

type SessionReader interface {
	State() session.State
	CheckStatus(ctx context.Context) session.State
}

// RequireSession lets a request through only while the client holds a
// credential. An unresolved state is resolved before deciding.
func RequireSession(sessions SessionReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := sessions.State()
		if state == session.StateUnknown {
			state = sessions.CheckStatus(c.Request.Context())
		}
		if state != session.StateAuthenticated {
			response.Unauthorized(c, "login required")
			c.Abort()
			return
		}
		c.Next()
	}
}
