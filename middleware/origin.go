package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"CollabProject/tools/errs"
)

// OriginAllowed reports whether the request's Origin header matches the
// allowlist. An absent Origin header (non-browser client) and an empty
// allowlist both pass.
func OriginAllowed(allowed []string, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimRight(a, "/"), strings.TrimRight(origin, "/")) {
			return true
		}
	}
	return false
}

// CheckOrigin adapts the allowlist for a websocket upgrader.
func CheckOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		return OriginAllowed(allowed, r)
	}
}

// Origin rejects browser requests from origins outside the allowlist
// before they reach the upgrade handler.
func Origin(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !OriginAllowed(allowed, c.Request) {
			c.AbortWithStatusJSON(http.StatusForbidden, errs.ErrOriginNotAllowed)
			return
		}
		c.Next()
	}
}
