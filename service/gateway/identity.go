package gateway

import (
	"context"
	"errors"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"CollabProject/service/storage"
	"CollabProject/tools/errs"
	"CollabProject/tools/security"
)

// JWTVerifier is the production identity verifier: HMAC-signed bearer
// tokens, with revocation tracked as token hashes in the shared denylist.
type JWTVerifier struct {
	opts security.Options
	deny *storage.Denylist
}

func NewJWTVerifier(opts security.Options, deny *storage.Denylist) *JWTVerifier {
	return &JWTVerifier{opts: opts, deny: deny}
}

func (v *JWTVerifier) Verify(ctx context.Context, credential string) (*Claims, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, errs.ErrUnauthenticated.WrapMsg("empty credential")
	}
	jc, err := security.Verify(v.opts, credential)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, errs.ErrTokenExpired.WrapMsg("expired", "err", err)
		}
		return nil, errs.ErrUnauthenticated.WrapMsg("verify", "err", err)
	}
	userID := jc.UserID()
	if userID == "" {
		return nil, errs.ErrUnauthenticated.WrapMsg("token has no subject")
	}
	tier := jc.Tier()
	if tier == "" {
		tier = "free"
	}
	return &Claims{
		UserID:    userID,
		Tier:      tier,
		ExpiresAt: jc.ExpiresAt(),
	}, nil
}

// IsRevoked checks the denylist by token hash. The status lets the gate
// decide what a degraded lookup means (it fails open and logs).
func (v *JWTVerifier) IsRevoked(ctx context.Context, credential string) (bool, storage.Status) {
	return v.deny.IsDenied(ctx, security.HashToken(credential))
}

// StaticVerifier resolves fixed token -> claims pairs. Test helper.
type StaticVerifier struct {
	Tokens  map[string]*Claims
	Revoked map[string]bool
}

func (s *StaticVerifier) Verify(ctx context.Context, credential string) (*Claims, error) {
	if c, ok := s.Tokens[credential]; ok {
		return c, nil
	}
	return nil, errs.ErrUnauthenticated.Wrap()
}

func (s *StaticVerifier) IsRevoked(ctx context.Context, credential string) (bool, storage.Status) {
	return s.Revoked[credential], storage.Ok()
}
