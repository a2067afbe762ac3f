package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CollabProject/service/storage"
	"CollabProject/tools/errs"
	"CollabProject/tools/security"
)

func TestJWTVerifierRoundTrip(t *testing.T) {
	opts := security.DefaultOptions([]byte("test-secret"))
	v := NewJWTVerifier(opts, storage.NewDenylist())

	token, hash, exp, err := security.Generate(opts, "u-123", "pro")
	require.NoError(t, err)
	assert.True(t, len(hash) > 7 && hash[:7] == "sha256:")

	claims, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u-123", claims.UserID)
	assert.Equal(t, "pro", claims.Tier)
	assert.WithinDuration(t, exp, claims.ExpiresAt, time.Second)
}

func TestJWTVerifierDefaultsTierToFree(t *testing.T) {
	opts := security.DefaultOptions([]byte("test-secret"))
	v := NewJWTVerifier(opts, storage.NewDenylist())

	token, _, _, err := security.Generate(opts, "u-123", "")
	require.NoError(t, err)

	claims, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "free", claims.Tier)
}

func TestJWTVerifierRejections(t *testing.T) {
	opts := security.DefaultOptions([]byte("test-secret"))
	v := NewJWTVerifier(opts, storage.NewDenylist())
	ctx := context.Background()

	_, err := v.Verify(ctx, "")
	assert.True(t, errors.Is(err, errs.ErrUnauthenticated))

	_, err = v.Verify(ctx, "not.a.token")
	assert.True(t, errors.Is(err, errs.ErrUnauthenticated))

	// signed with a different key
	other, _, _, err := security.Generate(security.DefaultOptions([]byte("wrong")), "u-1", "")
	require.NoError(t, err)
	_, err = v.Verify(ctx, other)
	assert.True(t, errors.Is(err, errs.ErrUnauthenticated))

	// expired tokens map to their own code so clients can refresh
	expired := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "u-1",
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = v.Verify(ctx, signed)
	assert.True(t, errors.Is(err, errs.ErrTokenExpired))

	// a token without a subject is useless no matter how valid
	anon := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err = anon.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = v.Verify(ctx, signed)
	assert.True(t, errors.Is(err, errs.ErrUnauthenticated))
}

func TestJWTVerifierRevocationDegradesOpen(t *testing.T) {
	// the denylist lives in the shared cache, which is down under test:
	// the check must report degraded and not claim the token is revoked
	opts := security.DefaultOptions([]byte("test-secret"))
	v := NewJWTVerifier(opts, storage.NewDenylist())

	token, _, _, err := security.Generate(opts, "u-123", "")
	require.NoError(t, err)

	revoked, st := v.IsRevoked(context.Background(), token)
	assert.False(t, revoked)
	assert.True(t, st.Degraded)
}
