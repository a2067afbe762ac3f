package natsx

import "golang.org/x/net/context"

// NatsxMessage is the unified message shape handed to handlers.
type NatsxMessage struct {
	Subject string
	Data    []byte
	Header  map[string]string
}

// NatsxHandler processes one message.
type NatsxHandler func(ctx context.Context, msg NatsxMessage) error

// NatsxMiddleware wraps handlers (logging, idempotency, metrics).
type NatsxMiddleware func(NatsxHandler) NatsxHandler

// NatsxChain composes middlewares around a handler.
func NatsxChain(h NatsxHandler, mws ...NatsxMiddleware) NatsxHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
