package storage

import "github.com/pkg/errors"

// Status is the outcome of a best-effort shared-cache operation. A degraded
// outcome means the shared cache could not serve the call; the caller keeps
// going on local state and logs the reason. It is never an application error.
type Status struct {
	Degraded bool
	Err      error
}

func Ok() Status { return Status{} }

func Degraded(err error) Status { return Status{Degraded: true, Err: err} }

// ErrNotReady marks calls made while the shared cache was never initialized.
var ErrNotReady = errors.New("shared cache not initialized")
