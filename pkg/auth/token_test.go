package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func TestParseUnverifiedExtractsIDClaim(t *testing.T) {
	svc := NewTokenService("", false)

	claims, err := svc.Parse(signToken(t, "whatever", jwt.MapClaims{"id": "user-42"}))
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
}

func TestParseFallsBackToSubject(t *testing.T) {
	svc := NewTokenService("", false)

	claims, err := svc.Parse(signToken(t, "whatever", jwt.MapClaims{"sub": "user-7"}))
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.UserID)
}

func TestParseRejectsTokenWithoutIdentity(t *testing.T) {
	svc := NewTokenService("", false)

	_, err := svc.Parse(signToken(t, "whatever", jwt.MapClaims{"foo": "bar"}))
	assert.Error(t, err)
}

func TestParseVerifiedChecksSignature(t *testing.T) {
	svc := NewTokenService("right-key", true)

	claims, err := svc.Parse(signToken(t, "right-key", jwt.MapClaims{"id": "user-1"}))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	_, err = svc.Parse(signToken(t, "wrong-key", jwt.MapClaims{"id": "user-1"}))
	assert.Error(t, err)
}

func TestFromRequest(t *testing.T) {
	svc := NewTokenService("", false)

	r := httptest.NewRequest("POST", "/query", nil)
	_, err := svc.FromRequest(r)
	assert.Error(t, err, "missing header")

	r.Header.Set("Authorization", "Basic abc")
	_, err = svc.FromRequest(r)
	assert.Error(t, err, "not a bearer token")

	r.Header.Set("Authorization", "Bearer "+signToken(t, "k", jwt.MapClaims{"id": "user-1"}))
	claims, err := svc.FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
}
