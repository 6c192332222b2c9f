package jwtx

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestNewAccessClaims(t *testing.T) {
	now := time.Now()
	claims := NewAccessClaims(
		"user-1",
		[]string{"read"},
		time.Hour,
		"staffdir",
		[]string{"client-1"},
		"alice",
		now,
	)

	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "staffdir", claims.Issuer)
	require.Equal(t, jwt.ClaimStrings{"client-1"}, claims.Audience)
	require.Equal(t, "alice", claims.Username)
	require.NotEmpty(t, claims.ID, "jti must be set")
	require.WithinDuration(t, now.Add(time.Hour), claims.ExpiresAt.Time, time.Second)
}

func TestNewJTIUnique(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		jti := NewJTI()
		require.NotEmpty(t, jti)
		require.False(t, seen[jti], "jti collision")
		seen[jti] = true
	}
}

func TestValidateIssuer(t *testing.T) {
	c := Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "staffdir"}}

	require.NoError(t, c.ValidateIssuer("staffdir"))
	require.NoError(t, c.ValidateIssuer(""), "empty expectation enforces nothing")
	require.ErrorIs(t, c.ValidateIssuer("someone-else"), ErrIssuer)
}

func TestValidateAudience(t *testing.T) {
	c := Claims{RegisteredClaims: jwt.RegisteredClaims{Audience: jwt.ClaimStrings{"c1", "c2"}}}

	require.NoError(t, c.ValidateAudience(nil))
	require.NoError(t, c.ValidateAudience([]string{"c2"}))
	require.ErrorIs(t, c.ValidateAudience([]string{"c3"}), ErrAudience)
}

func TestValidateExpiry(t *testing.T) {
	now := time.Now()

	t.Run("valid window", func(t *testing.T) {
		c := Claims{RegisteredClaims: jwt.RegisteredClaims{
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		}}
		require.NoError(t, c.ValidateExpiry())
	})

	t.Run("expired", func(t *testing.T) {
		c := Claims{RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		}}
		require.ErrorIs(t, c.ValidateExpiry(), ErrExpired)
	})

	t.Run("not yet valid", func(t *testing.T) {
		c := Claims{RegisteredClaims: jwt.RegisteredClaims{
			NotBefore: jwt.NewNumericDate(now.Add(time.Minute)),
		}}
		require.ErrorIs(t, c.ValidateExpiry(), ErrNotYetValid)
	})
}
