package safe

import (
	"CollabProject/logger"
	"CollabProject/tools/errs"
)

// SafeGo starts a goroutine that recovers from panics so a bad background
// task cannot take the process down.
func SafeGo(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[SafeGo] %v", errs.ErrPanic(r))
			}
		}()
		f()
	}()
}

// Recover runs inside a deferred call and reports the recovered panic, if
// any, through report. Used on per-frame handling paths.
func Recover(report func(err error)) {
	if r := recover(); r != nil {
		if report != nil {
			report(errs.ErrPanic(r))
		} else {
			logger.Errorf("[Recover] %v", errs.ErrPanic(r))
		}
	}
}
