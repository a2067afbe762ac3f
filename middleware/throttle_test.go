package middleware

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

func TestIPLimiterBurstPerIP(t *testing.T) {
	rl := NewIPLimiter(1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d within burst", i+1)
	}
	assert.False(t, rl.Allow("10.0.0.1"), "burst exhausted")

	// other addresses keep their own bucket
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestThrottleRejectsWith429(t *testing.T) {
	rl := NewIPLimiter(1, 1)

	r := gin.New()
	r.GET("/ws", Throttle(rl), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	do := func() int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.RemoteAddr = "192.168.1.9:4242"
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}
