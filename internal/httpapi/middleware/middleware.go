package middleware

import (
	"log"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ThunderboltDev/Resound/internal/auth"
	"github.com/ThunderboltDev/Resound/internal/common"
)

const (
	RequestIDKey      = "request_id"
	OperatorIDKey     = "operator_id"
	OrganizationIDKey = "organization_id"
)

// RequestID tags every request with an id, honoring an incoming
// X-Request-ID so that ids survive proxies.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(RequestIDKey, rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

// Recovery converts panics into the standard error envelope instead of
// gin's default plain-text response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("panic recovered path=%s err=%v\n%s", c.Request.URL.Path, r, debug.Stack())
				common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// AuthRequired validates the operator bearer token and stores the
// operator id and organization id on the context.
func AuthRequired(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			common.Fail(c, http.StatusUnauthorized, 40100, "missing bearer token")
			c.Abort()
			return
		}
		claims, err := auth.ParseJWT(strings.TrimPrefix(h, "Bearer "), jwtSecret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40101, "invalid token")
			c.Abort()
			return
		}
		c.Set(OperatorIDKey, claims.OperatorID)
		c.Set(OrganizationIDKey, claims.OrganizationID)
		c.Next()
	}
}
