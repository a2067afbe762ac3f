package security

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("k"))
	token, hash, exp, err := Generate(opts, "u-9", "enterprise")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "sha256:"))
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), exp, time.Minute)

	claims, err := Verify(opts, token)
	require.NoError(t, err)
	assert.Equal(t, "u-9", claims.UserID())
	assert.Equal(t, "enterprise", claims.Tier())
	assert.WithinDuration(t, exp, claims.ExpiresAt(), time.Second)
}

func TestVerifyRejectsWrongKeyAndGarbage(t *testing.T) {
	opts := DefaultOptions([]byte("k"))
	token, _, _, err := Generate(opts, "u-9", "")
	require.NoError(t, err)

	_, err = Verify(DefaultOptions([]byte("other")), token)
	assert.Error(t, err)

	_, err = Verify(opts, "garbage")
	assert.Error(t, err)

	_, err = Verify(opts, "")
	assert.Error(t, err)
}

func TestUnsupportedAlgRefused(t *testing.T) {
	_, _, _, err := Generate(Options{Secret: []byte("k"), Alg: "RS256"}, "u", "")
	assert.Error(t, err)

	_, err = Verify(Options{Secret: []byte("k"), Alg: "none"}, "x.y.z")
	assert.Error(t, err)
}

func TestHashTokenIsStable(t *testing.T) {
	a := HashToken("tok")
	b := HashToken("tok")
	c := HashToken("tok2")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
