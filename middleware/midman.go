package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
)

var (
	globalMgr *MiddlewareManager
	once      sync.Once
)

// MiddlewareManager holds a mutable middleware chain so handlers can be
// registered and swapped at startup.
type MiddlewareManager struct {
	mu   sync.RWMutex
	mids []gin.HandlerFunc
}

func NewManager() *MiddlewareManager {
	return &MiddlewareManager{}
}

// Manager returns the global instance (lazy, thread safe).
func Manager() *MiddlewareManager {
	once.Do(func() {
		if globalMgr == nil {
			globalMgr = NewManager()
		}
	})
	return globalMgr
}

// Add registers one middleware.
func (m *MiddlewareManager) Add(h gin.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = append(m.mids, h)
}

// Clear removes every registered middleware.
func (m *MiddlewareManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = nil
}

// Handlers returns a snapshot of the registered chain for route setup.
// Gin runs the snapshot natively, so aborts and c.Next() behave exactly
// as they would on a hand-written route.
func (m *MiddlewareManager) Handlers() []gin.HandlerFunc {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]gin.HandlerFunc{}, m.mids...)
}

// Wrap appends the final handler to the registered chain.
func (m *MiddlewareManager) Wrap(h gin.HandlerFunc) []gin.HandlerFunc {
	return append(m.Handlers(), h)
}
