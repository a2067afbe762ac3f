package errs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	pkgerr "github.com/pkg/errors"
)

// CodeError is the error carried across subsystem boundaries: a stable
// numeric code, a short message, and an optional detail for logs.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// WithDetail returns a copy with the detail appended, leaving the
// registered error value untouched.
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

// Wrap attaches a stack trace to the error value.
func (e *CodeError) Wrap() error {
	return pkgerr.WithStack(e)
}

// WrapMsg clones the error, appends a formatted detail and attaches a stack.
func (e *CodeError) WrapMsg(msg string, kv ...any) error {
	c := &CodeError{Code: e.Code, Msg: e.Msg, Detail: e.Detail}
	if msg != "" || len(kv) > 0 {
		d := toString(msg, kv)
		if c.Detail == "" {
			c.Detail = d
		} else {
			c.Detail += ", " + d
		}
	}
	return pkgerr.WithStack(c)
}

// Is matches by code so errors.Is works across WithDetail/WrapMsg copies.
func (e *CodeError) Is(err error) bool {
	var ce *CodeError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == e.Code
}

// Code extracts the numeric code from err, or fallback when err carries none.
func Code(err error, fallback int) int {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return fallback
}

// New builds an ad-hoc coded error with key/value detail pairs.
func New(msg string, kv ...any) *CodeError {
	return &CodeError{Code: ServerInternalError, Msg: msg, Detail: toString("", kv)}
}

// Wrap attaches a stack trace to err.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return pkgerr.WithStack(err)
}

// WrapMsg annotates err with a formatted message plus a stack trace.
func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return pkgerr.WithStack(pkgerr.WithMessage(err, toString(msg, kv)))
}

func toString(msg string, kv []any) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i < len(kv); i += 2 {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		if i+1 < len(kv) {
			sb.WriteString(fmt.Sprintf("%v=%v", kv[i], kv[i+1]))
		} else {
			sb.WriteString(fmt.Sprintf("%v", kv[i]))
		}
	}
	return sb.String()
}
