package natsx

import (
	"context"
	"errors"
	"sync"
	"time"

	"CollabProject/logger"
)

var (
	globalMgr *NatsManager
	startOnce sync.Once

	mu               sync.Mutex
	pendingRoutes    = make(map[string]NatsxRoute)     // routes cached before start
	pendingHandlers  = make(map[string][]NatsxHandler) // handlers cached before start
	registeredBizSet = make(map[string]struct{})
	subscribedBizSet = make(map[string]struct{})
	defaultMws       []NatsxMiddleware
)

// UseGlobalMiddlewares configures global middlewares (e.g. idempotency)
// before StartNats is called.
func UseGlobalMiddlewares(mws ...NatsxMiddleware) {
	mu.Lock()
	defer mu.Unlock()
	defaultMws = append(defaultMws, mws...)
}

// StartNats starts the global manager once and applies everything cached
// through RegisterRoute / RegisterHandler before the start. Routes and
// subscriptions are applied synchronously so callers know the bus is
// usable when StartNats returns.
func StartNats(cfg ...NatsxConfig) error {
	var startErr error
	startOnce.Do(func() {
		var c NatsxConfig
		if len(cfg) > 0 {
			c = cfg[0]
		} else {
			c = NatsxConfig{
				Servers: []string{"nats://127.0.0.1:4222"},
				Name:    "global-nats",
			}
		}

		mu.Lock()
		mws := append([]NatsxMiddleware(nil), defaultMws...)
		mu.Unlock()

		mgr, err := NewNatsManager(c, mws...)
		if err != nil {
			startErr = err
			return
		}

		mu.Lock()
		defer mu.Unlock()
		globalMgr = mgr

		for biz, r := range pendingRoutes {
			if err := globalMgr.RegisterRoute(r); err != nil {
				startErr = err
				logger.Errorf("register route failed (biz=%s): %v", biz, err)
				continue
			}
			registeredBizSet[biz] = struct{}{}
		}
		for biz, hs := range pendingHandlers {
			for _, h := range hs {
				if err := globalMgr.Subscribe(biz, h); err != nil {
					startErr = err
					logger.Errorf("subscribe failed (biz=%s): %v", biz, err)
					continue
				}
			}
			subscribedBizSet[biz] = struct{}{}
		}

		pendingRoutes = make(map[string]NatsxRoute)
		pendingHandlers = make(map[string][]NatsxHandler)
	})
	return startErr
}

// StopNats drains and forgets the global manager.
func StopNats() error {
	mu.Lock()
	defer mu.Unlock()
	if globalMgr == nil {
		return nil
	}
	err := globalMgr.Close()
	globalMgr = nil
	return err
}

// GetNatsManager returns the global singleton, or an error before StartNats.
func GetNatsManager() (*NatsManager, error) {
	mu.Lock()
	defer mu.Unlock()
	if globalMgr == nil {
		return nil, errors.New("NatsManager not started: call StartNats() first")
	}
	return globalMgr, nil
}

// RegisterRoute registers a route globally. Safe to call before or after
// StartNats; duplicate Biz registrations are skipped.
func RegisterRoute(r NatsxRoute) error {
	mu.Lock()
	defer mu.Unlock()

	if _, ok := registeredBizSet[r.Biz]; ok {
		return nil
	}

	if globalMgr == nil {
		pendingRoutes[r.Biz] = r
		registeredBizSet[r.Biz] = struct{}{}
		return nil
	}

	if err := globalMgr.RegisterRoute(r); err != nil {
		return err
	}
	registeredBizSet[r.Biz] = struct{}{}
	return nil
}

// RegisterHandler registers a subscription handler for a Biz. Safe to
// call before or after StartNats.
func RegisterHandler(biz string, h NatsxHandler) error {
	mu.Lock()
	defer mu.Unlock()

	if globalMgr == nil {
		pendingHandlers[biz] = append(pendingHandlers[biz], h)
		return nil
	}

	if err := globalMgr.Subscribe(biz, h); err != nil {
		return err
	}
	subscribedBizSet[biz] = struct{}{}
	return nil
}

// Publish publishes through the global manager (requires StartNats).
func Publish(ctx context.Context, biz string, data []byte, hdr map[string]string) error {
	mu.Lock()
	m := globalMgr
	mu.Unlock()
	if m == nil {
		return errors.New("NatsManager not started")
	}
	return m.Publish(ctx, biz, data, hdr)
}

// PublishOnce publishes with a Nats-Msg-Id for consumer dedupe.
func PublishOnce(ctx context.Context, biz string, data []byte, hdr map[string]string, msgID string) error {
	mu.Lock()
	m := globalMgr
	mu.Unlock()
	if m == nil {
		return errors.New("NatsManager not started")
	}
	return m.PublishOnce(ctx, biz, data, hdr, msgID)
}

// PullConsume batch-consumes a JetStream pull route through the global
// manager. Fails if the route was never registered.
func PullConsume(ctx context.Context, biz string, batch int, wait time.Duration, h NatsxHandler) error {
	mu.Lock()
	m := globalMgr
	mu.Unlock()
	if m == nil {
		return errors.New("NatsManager not started")
	}
	return m.PullConsume(ctx, biz, batch, wait, h)
}
