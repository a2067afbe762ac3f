package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"CollabProject/tools/errs"
)

// Context keys other modules read the extracted credential from.
const (
	CtxAuthKey = "authorization" // string
)

type Options struct {
	HeaderToken               string // default "authorization"
	QueryToken                string // default "token"; browser clients cannot set headers on upgrade
	EnableAuthorizationBearer bool   // default true
	Required                  bool   // abort with 401 when no token present
}

func DefaultOptions() *Options {
	return &Options{
		HeaderToken:               CtxAuthKey,
		QueryToken:                "token",
		EnableAuthorizationBearer: true,
		Required:                  false,
	}
}

// TokenFromRequest extracts the bearer credential from headers or the
// query string.
func TokenFromRequest(r *http.Request, opts *Options) string {
	if opts == nil {
		opts = DefaultOptions()
	}
	token := strings.TrimSpace(r.Header.Get(opts.HeaderToken))
	if token == "" && opts.EnableAuthorizationBearer {
		if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
			if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				token = strings.TrimSpace(authz[len("bearer "):])
			}
		}
	}
	if token == "" && opts.QueryToken != "" {
		token = strings.TrimSpace(r.URL.Query().Get(opts.QueryToken))
	}
	return token
}

// FromGinContext returns the credential extracted by Middleware, falling
// back to the raw request when the middleware did not run on this route.
func FromGinContext(c *gin.Context) string {
	if v, ok := c.Get(CtxAuthKey); ok {
		if token, ok := v.(string); ok && token != "" {
			return token
		}
	}
	return TokenFromRequest(c.Request, DefaultOptions())
}

// Middleware extracts the credential into the gin context. With
// opts.Required it aborts unauthenticated requests; the websocket gate
// runs with Required=false because its failures use close codes instead.
func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		token := TokenFromRequest(c.Request, opts)
		if token != "" {
			c.Set(CtxAuthKey, token)
		}
		if opts.Required && token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthenticated)
			return
		}
		c.Next()
	}
}
