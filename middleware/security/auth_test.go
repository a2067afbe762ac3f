package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTokenFromRequest(t *testing.T) {
	opts := DefaultOptions()

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("authorization", "tok-header")
	assert.Equal(t, "tok-header", TokenFromRequest(r, opts))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer tok-bearer")
	assert.Equal(t, "tok-bearer", TokenFromRequest(r, opts))

	r = httptest.NewRequest(http.MethodGet, "/ws?token=tok-query", nil)
	assert.Equal(t, "tok-query", TokenFromRequest(r, opts))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.Empty(t, TokenFromRequest(r, opts))
}

func TestTokenPrecedenceHeaderOverQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=from-query", nil)
	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", TokenFromRequest(r, DefaultOptions()))
}

func TestMiddlewareStoresTokenInContext(t *testing.T) {
	router := gin.New()
	var got string
	router.GET("/ws", Middleware(DefaultOptions()), func(c *gin.Context) {
		got = FromGinContext(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws?token=tok-1", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tok-1", got)
}

func TestMiddlewareRequiredRejectsAnonymous(t *testing.T) {
	opts := DefaultOptions()
	opts.Required = true

	router := gin.New()
	router.GET("/stats", Middleware(opts), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Authorization", "Bearer tok-2")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFromGinContextFallsBackToRequest(t *testing.T) {
	// route without the middleware still yields the credential
	router := gin.New()
	var got string
	router.GET("/ws", func(c *gin.Context) {
		got = FromGinContext(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?token=tok-3", nil))
	assert.Equal(t, "tok-3", got)
}
