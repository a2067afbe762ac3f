package gateway

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"CollabProject/service/storage"
)

// Close codes sent to clients. The 4xxx range is application-defined;
// the rest are standard websocket codes.
const (
	CloseBadRequest      = websocket.ClosePolicyViolation   // 1008: missing or malformed parameters
	CloseUnauthorized    = 4401                             // rejected at upgrade
	CloseTooManyRequests = 4429                             // quota or admission limit at connect time
	CloseShutdown        = websocket.CloseGoingAway         // 1001: normal server shutdown
	CloseInternalError   = websocket.CloseInternalServerErr // 1011
)

// Claims is what the external identity verifier returns for a credential.
type Claims struct {
	UserID    string
	Tier      string
	ExpiresAt time.Time
}

// IdentityVerifier is the consumed identity interface. Verify returns
// claims or a coded error; IsRevoked consults the revocation list and
// reports storage health so callers can decide what a degraded check
// means.
type IdentityVerifier interface {
	Verify(ctx context.Context, credential string) (*Claims, error)
	IsRevoked(ctx context.Context, credential string) (bool, storage.Status)
}

// Emitter delivers domain events to the external consumer. Emit never
// blocks the caller; losing an event is acceptable, losing a frame is not.
type Emitter interface {
	Emit(ev Event)
}

// Bus relays room broadcasts between gateway processes.
type Bus interface {
	PublishBroadcast(ctx context.Context, env *Envelope) error
	SubscribeBroadcasts(h func(env *Envelope)) error
}

// Clock is injectable for tests.
type Clock func() time.Time
