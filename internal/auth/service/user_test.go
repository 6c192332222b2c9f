package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hallertau/staffdir/internal/auth/domain"
	"github.com/hallertau/staffdir/internal/auth/store"
	"github.com/hallertau/staffdir/pkg/cryptox"
	"github.com/hallertau/staffdir/pkg/idx"
)

func TestUserService(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &UserService{Store: st, DefaultScopes: []string{"read"}}

	t.Run("create hashes the password and assigns an id", func(t *testing.T) {
		u, err := svc.CreateUser(ctx, CreateUserInput{
			Username: "bob",
			Password: "bob-password",
			Scopes:   []string{"read", "write"},
			Salary:   85000,
			Age:      42,
		})
		require.NoError(t, err)
		require.NotEmpty(t, u.ID)
		require.Equal(t, "bob", u.Username)
		require.Equal(t, []string{"read", "write"}, u.Scopes)
		require.EqualValues(t, 85000, u.Salary)
		require.Equal(t, 42, u.Age)
		require.NotEqual(t, "bob-password", u.PasswordHash, "password must never be stored in the clear")
		require.NoError(t, cryptox.VerifyPassword("bob-password", u.PasswordHash))
	})

	t.Run("blank scopes fall back to the defaults", func(t *testing.T) {
		u, err := svc.CreateUser(ctx, CreateUserInput{Username: "carol", Password: "pw"})
		require.NoError(t, err)
		require.Equal(t, []string{"read"}, u.Scopes)
	})

	t.Run("duplicate username is rejected", func(t *testing.T) {
		_, err := svc.CreateUser(ctx, CreateUserInput{Username: "bob", Password: "other"})
		require.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("missing username or password is invalid", func(t *testing.T) {
		_, err := svc.CreateUser(ctx, CreateUserInput{Username: "", Password: "pw"})
		require.ErrorIs(t, err, ErrInvalidRequest)

		_, err = svc.CreateUser(ctx, CreateUserInput{Username: "dave", Password: ""})
		require.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("list returns everything created", func(t *testing.T) {
		users, err := svc.ListUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
	})

	t.Run("delete removes the entry", func(t *testing.T) {
		u, err := svc.CreateUser(ctx, CreateUserInput{Username: "temp", Password: "pw"})
		require.NoError(t, err)

		require.NoError(t, svc.DeleteUser(ctx, u.ID))

		_, err = svc.GetUserByID(ctx, u.ID)
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("deleting an unknown user is not found", func(t *testing.T) {
		require.ErrorIs(t, svc.DeleteUser(ctx, "no-such-id"), ErrUserNotFound)
	})
}

func TestDeleteUserRevokesTokens(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	users := &UserService{Store: st}
	tokens := newTestTokenService(t, st)

	seedClient(t, st, "c1", "c1-secret", []string{GrantPassword, GrantRefreshToken}, []string{"read"})
	victim := seedUser(t, st, "eve", "eve-password", []string{"read"})

	pair, err := tokens.ExchangePassword(ctx, "c1", "c1-secret", "eve", "eve-password", nil)
	require.NoError(t, err)

	claims, err := parseClaims(t, tokens, pair.AccessToken)
	require.NoError(t, err)

	require.NoError(t, users.DeleteUser(ctx, victim.ID))

	// Token rows go with the user row, so the guard sees the access
	// token as dead and the refresh token cannot be redeemed.
	active, err := tokens.Active(ctx, claims.ID)
	require.NoError(t, err)
	require.False(t, active)

	_, err = tokens.ExchangeRefreshToken(ctx, "c1", "c1-secret", pair.RefreshToken, nil)
	require.ErrorIs(t, err, ErrInvalidRefresh)

	// The directory no longer authenticates the deleted user either
	_, err = tokens.ExchangePassword(ctx, "c1", "c1-secret", "eve", "eve-password", nil)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestHousekeepingCleanup(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	user := seedUser(t, st, "hk", "pw", []string{"read"})
	seedClient(t, st, "c1", "s", []string{GrantPassword}, []string{"read"})

	expired := domain.AccessToken{
		ID:        idx.New().String(),
		JTI:       "hk-expired",
		UserID:    user.ID,
		ClientID:  "c1",
		Scopes:    []string{"read"},
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, st.AccessTokens().CreateAccessToken(ctx, expired))

	hk := NewHousekeepingService(st, slog.Default(), time.Hour)
	hk.Start()
	hk.Stop() // the worker runs one cleanup pass before listening for ticks

	_, err := st.AccessTokens().GetAccessTokenByJTI(ctx, "hk-expired")
	require.ErrorIs(t, err, store.ErrNotFound)
}
