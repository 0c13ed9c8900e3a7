package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestJWTGenerateValidate(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "eventhost")
	token, err := manager.Generate("01HQZX3Y4K6F7G8H9J0K1M2AAA", "Ada", "ada@example.com")
	require.NoError(t, err)

	claims, err := manager.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "01HQZX3Y4K6F7G8H9J0K1M2AAA", claims.Subject)
	require.Equal(t, "Ada", claims.Name)
	require.Equal(t, "ada@example.com", claims.Email)
	require.Equal(t, time.Hour, manager.Expiry())
}

func TestJWTGenerateInvalid(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "eventhost")
	_, err := manager.Generate("", "Ada", "ada@example.com")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidateMissing(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "eventhost")
	_, err := manager.Validate("  ")
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestJWTValidateRejects(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "eventhost")

	other := NewJWTManager("other-secret", time.Hour, "eventhost")
	forged, err := other.Generate("user-1", "Ada", "ada@example.com")
	require.NoError(t, err)
	_, err = manager.Validate(forged)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := NewJWTManager("secret", -time.Minute, "eventhost")
	stale, err := expired.Generate("user-1", "Ada", "ada@example.com")
	require.NoError(t, err)
	_, err = manager.Validate(stale)
	require.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := NewJWTManager("secret", time.Hour, "someone-else")
	foreign, err := wrongIssuer.Generate("user-1", "Ada", "ada@example.com")
	require.NoError(t, err)
	_, err = manager.Validate(foreign)
	require.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "user-1", Issuer: "eventhost"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = manager.Validate(unsigned)
	require.True(t, errors.Is(err, ErrInvalidToken))
}

func TestTokenFromHeader(t *testing.T) {
	_, err := TokenFromHeader("nope")
	require.ErrorIs(t, err, ErrMissingToken)

	token, err := TokenFromHeader("Bearer token")
	require.NoError(t, err)
	require.Equal(t, "token", token)

	token, err = TokenFromHeader("bearer   abc")
	require.NoError(t, err)
	require.Equal(t, "abc", token)
}
