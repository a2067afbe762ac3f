package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeErrorMatchingSurvivesWrapping(t *testing.T) {
	err := ErrRateLimited.WrapMsg("conn", "id", "c-1")
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.False(t, errors.Is(err, ErrUnauthenticated))

	// another layer of annotation keeps the identity
	err = WrapMsg(err, "while reading frame")
	assert.True(t, errors.Is(err, ErrRateLimited))

	var ce *CodeError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, RateLimitedError, ce.Code)
}

func TestCodeExtraction(t *testing.T) {
	assert.Equal(t, TokenExpiredError, Code(ErrTokenExpired.Wrap(), 0))
	assert.Equal(t, 42, Code(errors.New("plain"), 42))
	assert.Equal(t, FrameOversizeError, Code(fmt.Errorf("outer: %w", ErrFrameOversize), 0))
}

func TestWithDetailLeavesRegisteredValueUntouched(t *testing.T) {
	d := ErrBadRequest.WithDetail("roomId")
	assert.Equal(t, "roomId", d.Detail)
	assert.Empty(t, ErrBadRequest.Detail, "registered sentinel must stay clean")
	assert.Equal(t, ErrBadRequest.Code, d.Code)

	dd := d.WithDetail("workspaceId")
	assert.Equal(t, "roomId, workspaceId", dd.Detail)
}

func TestWrapMsgFormatsKeyValues(t *testing.T) {
	err := ErrFrameOversize.WrapMsg("", "limit", 1024, "got", 4096)
	var ce *CodeError
	assert.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Detail, "limit=1024")
	assert.Contains(t, ce.Detail, "got=4096")
	assert.Contains(t, err.Error(), "frame exceeds size limit")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil))
	assert.NoError(t, WrapMsg(nil, "ignored"))
}
