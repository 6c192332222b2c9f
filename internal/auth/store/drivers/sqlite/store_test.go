package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hallertau/staffdir/internal/auth/domain"
	"github.com/hallertau/staffdir/internal/auth/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	return st
}

func seedUserRow(t *testing.T, st *Store, id, username string) {
	t.Helper()
	require.NoError(t, st.Users().CreateUser(context.Background(), domain.User{
		ID:           id,
		Username:     username,
		PasswordHash: "not-a-real-hash",
		Scopes:       []string{"read"},
	}))
}

func seedClientRow(t *testing.T, st *Store, id string) {
	t.Helper()
	require.NoError(t, st.Clients().UpsertClient(context.Background(), domain.Client{
		ID:         id,
		Name:       id,
		SecretHash: "not-a-real-hash",
		GrantTypes: []string{"password"},
		Scopes:     []string{"read"},
		AccessTTL:  time.Hour,
		RefreshTTL: 6 * time.Hour,
	}))
}

func TestNotFoundMapping(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	_, err := st.Users().GetUserByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.Clients().GetClientByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.RefreshTokens().GetRefreshTokenByHash(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.AccessTokens().GetAccessTokenByJTI(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRevokeRefreshTokenIsConditional(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	seedUserRow(t, st, "u1", "alice")
	seedClientRow(t, st, "c1")

	tok := domain.RefreshToken{
		ID:        "rt1",
		UserID:    "u1",
		ClientID:  "c1",
		TokenHash: "hash-1",
		Scopes:    []string{"read"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, tok))

	require.NoError(t, st.RefreshTokens().RevokeRefreshToken(ctx, "hash-1"))

	// A second revoke finds no live row; this is what gives concurrent
	// redemption a single winner.
	err := st.RefreshTokens().RevokeRefreshToken(ctx, "hash-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := st.RefreshTokens().GetRefreshTokenByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.True(t, got.Revoked)
}

func TestAuthorizationCodeSingleUse(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	seedUserRow(t, st, "u1", "alice")
	seedClientRow(t, st, "c1")

	code := domain.AuthorizationCode{
		ID:          "ac1",
		UserID:      "u1",
		ClientID:    "c1",
		CodeHash:    "code-hash",
		RedirectURI: "https://app.example/cb",
		Scopes:      []string{"read"},
		ExpiresAt:   time.Now().Add(5 * time.Minute),
	}
	require.NoError(t, st.AuthorizationCodes().CreateAuthorizationCode(ctx, code))

	got, err := st.AuthorizationCodes().GetAuthorizationCodeByHash(ctx, "code-hash")
	require.NoError(t, err)
	require.Nil(t, got.UsedAt)

	require.NoError(t, st.AuthorizationCodes().MarkAuthorizationCodeUsed(ctx, "ac1"))

	err = st.AuthorizationCodes().MarkAuthorizationCodeUsed(ctx, "ac1")
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err = st.AuthorizationCodes().GetAuthorizationCodeByHash(ctx, "code-hash")
	require.NoError(t, err)
	require.NotNil(t, got.UsedAt)
}

func TestDeleteUserCascadesTokenRows(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	seedUserRow(t, st, "u1", "alice")
	seedClientRow(t, st, "c1")

	require.NoError(t, st.AccessTokens().CreateAccessToken(ctx, domain.AccessToken{
		ID:        "at1",
		JTI:       "jti-1",
		UserID:    "u1",
		ClientID:  "c1",
		Scopes:    []string{"read"},
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, st.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
		ID:        "rt1",
		UserID:    "u1",
		ClientID:  "c1",
		TokenHash: "hash-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, st.AuthorizationCodes().CreateAuthorizationCode(ctx, domain.AuthorizationCode{
		ID:        "ac1",
		UserID:    "u1",
		ClientID:  "c1",
		CodeHash:  "code-hash",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	require.NoError(t, st.Users().DeleteUser(ctx, "u1"))

	_, err := st.AccessTokens().GetAccessTokenByJTI(ctx, "jti-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.RefreshTokens().GetRefreshTokenByHash(ctx, "hash-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.AuthorizationCodes().GetAuthorizationCodeByHash(ctx, "code-hash")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	seedUserRow(t, st, "u1", "alice")
	seedClientRow(t, st, "c1")

	sentinel := store.ErrNotFound
	err := st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID:        "rt1",
			UserID:    "u1",
			ClientID:  "c1",
			TokenHash: "hash-1",
			ExpiresAt: time.Now().Add(time.Hour),
		}); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	_, err = st.RefreshTokens().GetRefreshTokenByHash(ctx, "hash-1")
	require.ErrorIs(t, err, store.ErrNotFound, "insert must not survive the rollback")
}

func TestUpsertClientUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	seedClientRow(t, st, "c1")

	require.NoError(t, st.Clients().UpsertClient(ctx, domain.Client{
		ID:         "c1",
		Name:       "renamed",
		SecretHash: "new-hash",
		GrantTypes: []string{"password", "refresh_token"},
		Scopes:     []string{"read", "write"},
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 2 * time.Hour,
	}))

	got, err := st.Clients().GetClientByID(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "renamed", got.Name)
	require.Equal(t, "new-hash", got.SecretHash)
	require.Equal(t, []string{"password", "refresh_token"}, got.GrantTypes)
	require.Equal(t, []string{"read", "write"}, got.Scopes)
	require.Equal(t, 30*time.Minute, got.AccessTTL)

	clients, err := st.Clients().ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 1)
}

func TestScopeSerialization(t *testing.T) {
	require.Equal(t, "read write", joinScopes([]string{"read", "write"}))
	require.Equal(t, []string{"read", "write"}, splitScopes("read write"))
	require.Equal(t, []string{"read"}, splitScopes("  read  read "))
	require.Nil(t, splitScopes(""))
}
