package errs

import (
	"fmt"

	pkgerr "github.com/pkg/errors"
)

// ErrPanic converts a recovered panic value into a coded error with a stack.
func ErrPanic(r any) error {
	if r == nil {
		return nil
	}
	return pkgerr.WithStack(&CodeError{
		Code:   ServerInternalError,
		Msg:    "panic recovered",
		Detail: fmt.Sprint(r),
	})
}
