package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hallertau/staffdir/internal/auth/service"
	"github.com/hallertau/staffdir/pkg/authsdk"
)

func TestTokenEndpoint(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.seedClient(t, "c1", "c1-secret",
		[]string{service.GrantPassword, service.GrantRefreshToken},
		[]string{"read", "write"},
	)
	env.seedUser(t, "alice", "alice-password", []string{"read", "write", "delete"})

	t.Run("password grant issues a pair", func(t *testing.T) {
		resp, err := env.sdk.PasswordGrant(ctx, "c1", "c1-secret", "alice", "alice-password", []string{"read"})
		require.NoError(t, err)
		require.NotEmpty(t, resp.AccessToken)
		require.NotEmpty(t, resp.RefreshToken)
		require.Equal(t, "Bearer", resp.TokenType)
		require.Equal(t, 3600, resp.ExpiresIn)
		require.Equal(t, "read", resp.Scope)
	})

	t.Run("wrong password maps to invalid_grant", func(t *testing.T) {
		_, err := env.sdk.PasswordGrant(ctx, "c1", "c1-secret", "alice", "wrong", nil)
		require.Equal(t, authsdk.ErrorCodeInvalidGrant, oauthCode(t, err))
	})

	t.Run("unknown client maps to invalid_client", func(t *testing.T) {
		_, err := env.sdk.PasswordGrant(ctx, "ghost", "whatever", "alice", "alice-password", nil)
		require.Equal(t, authsdk.ErrorCodeInvalidClient, oauthCode(t, err))
	})

	t.Run("scope outside the client registration maps to invalid_scope", func(t *testing.T) {
		_, err := env.sdk.PasswordGrant(ctx, "c1", "c1-secret", "alice", "alice-password", []string{"delete"})
		require.Equal(t, authsdk.ErrorCodeInvalidScope, oauthCode(t, err))
	})

	t.Run("unknown grant type maps to unsupported_grant_type", func(t *testing.T) {
		form := url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {"c1"},
			"client_secret": {"c1-secret"},
		}
		resp, err := http.Post(
			env.server.URL+"/v1/oauth2/token",
			"application/x-www-form-urlencoded",
			strings.NewReader(form.Encode()),
		)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRefreshRotationOverHTTP(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.seedClient(t, "c1", "c1-secret",
		[]string{service.GrantPassword, service.GrantRefreshToken},
		[]string{"read", "write"},
	)
	env.seedUser(t, "alice", "alice-password", []string{"read", "write"})

	pair, err := env.sdk.PasswordGrant(ctx, "c1", "c1-secret", "alice", "alice-password", nil)
	require.NoError(t, err)

	next, err := env.sdk.RefreshGrant(ctx, "c1", "c1-secret", pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The spent token is gone
	_, err = env.sdk.RefreshGrant(ctx, "c1", "c1-secret", pair.RefreshToken)
	require.Equal(t, authsdk.ErrorCodeInvalidGrant, oauthCode(t, err))

	// Revocation kills the replacement too
	require.NoError(t, env.sdk.RevokeToken(ctx, "c1", "c1-secret", next.RefreshToken))
	_, err = env.sdk.RefreshGrant(ctx, "c1", "c1-secret", next.RefreshToken)
	require.Equal(t, authsdk.ErrorCodeInvalidGrant, oauthCode(t, err))
}

func TestUsersGuard(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.seedClient(t, "directory", "dir-secret",
		[]string{service.GrantPassword, service.GrantRefreshToken},
		[]string{"read", "write", "delete"},
	)
	env.seedUser(t, "alice", "alice-password", []string{"read", "write"})
	env.seedUser(t, "root", "root-password", []string{"read", "write", "delete"})

	aliceTok, err := env.sdk.PasswordGrant(ctx, "directory", "dir-secret", "alice", "alice-password", nil)
	require.NoError(t, err)

	rootTok, err := env.sdk.PasswordGrant(ctx, "directory", "dir-secret", "root", "root-password", nil)
	require.NoError(t, err)

	t.Run("no token is no_authentication", func(t *testing.T) {
		_, err := env.sdk.ListUsers(ctx, "")
		require.Equal(t, authsdk.ErrorCodeNoAuthentication, oauthCode(t, err))
	})

	t.Run("garbage token is invalid_token", func(t *testing.T) {
		_, err := env.sdk.ListUsers(ctx, "not-a-jwt")
		require.Equal(t, authsdk.ErrorCodeInvalidToken, oauthCode(t, err))
	})

	t.Run("valid token lists the directory", func(t *testing.T) {
		resp, err := env.sdk.ListUsers(ctx, aliceTok.AccessToken)
		require.NoError(t, err)
		require.Len(t, resp.Users, 2)
	})

	t.Run("create needs only authentication", func(t *testing.T) {
		created, err := env.sdk.CreateUser(ctx, aliceTok.AccessToken, authsdk.CreateUserRequest{
			Username: "bob",
			Password: "bob-password",
			Scopes:   []string{"read"},
			Salary:   72000,
			Age:      28,
		})
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
		require.Equal(t, "bob", created.Username)
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		_, err := env.sdk.CreateUser(ctx, aliceTok.AccessToken, authsdk.CreateUserRequest{
			Username: "bob",
			Password: "other",
		})
		var oe *authsdk.OAuth2Error
		require.ErrorAs(t, err, &oe)
		require.Equal(t, http.StatusConflict, oe.StatusCode)
	})

	t.Run("delete without the delete scope is insufficient_scope", func(t *testing.T) {
		users, err := env.sdk.ListUsers(ctx, aliceTok.AccessToken)
		require.NoError(t, err)

		err = env.sdk.DeleteUser(ctx, aliceTok.AccessToken, users.Users[0].ID)
		require.Equal(t, authsdk.ErrorCodeInsufficientScope, oauthCode(t, err))
	})

	t.Run("delete with the delete scope succeeds", func(t *testing.T) {
		users, err := env.sdk.ListUsers(ctx, rootTok.AccessToken)
		require.NoError(t, err)

		var bobID string
		for _, u := range users.Users {
			if u.Username == "bob" {
				bobID = u.ID
			}
		}
		require.NotEmpty(t, bobID)

		require.NoError(t, env.sdk.DeleteUser(ctx, rootTok.AccessToken, bobID))

		err = env.sdk.DeleteUser(ctx, rootTok.AccessToken, bobID)
		var oe *authsdk.OAuth2Error
		require.ErrorAs(t, err, &oe)
		require.Equal(t, http.StatusNotFound, oe.StatusCode)
	})

	t.Run("revoked access token stops working immediately", func(t *testing.T) {
		require.NoError(t, env.sdk.RevokeToken(ctx, "directory", "dir-secret", aliceTok.AccessToken))

		_, err := env.sdk.ListUsers(ctx, aliceTok.AccessToken)
		require.Equal(t, authsdk.ErrorCodeInvalidToken, oauthCode(t, err))
	})
}

func TestAuthorizeEndpoint(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.seedClient(t, "web", "web-secret",
		[]string{service.GrantAuthorizationCode, service.GrantImplicit, service.GrantRefreshToken},
		[]string{"read", "write"},
	)
	env.seedUser(t, "alice", "alice-password", []string{"read", "write"})

	// Redirects must be inspected, not followed
	hc := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	postAuthorize := func(t *testing.T, form url.Values) *http.Response {
		t.Helper()
		resp, err := hc.Post(
			env.server.URL+"/v1/oauth2/authorize",
			"application/x-www-form-urlencoded",
			strings.NewReader(form.Encode()),
		)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	t.Run("GET demands a login", func(t *testing.T) {
		resp, err := hc.Get(env.server.URL + "/v1/oauth2/authorize?response_type=code&client_id=web&redirect_uri=https://app.example/cb")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("code flow redirects with code and state", func(t *testing.T) {
		resp := postAuthorize(t, url.Values{
			"response_type": {"code"},
			"client_id":     {"web"},
			"redirect_uri":  {"https://app.example/cb"},
			"scope":         {"read"},
			"state":         {"s123"},
			"username":      {"alice"},
			"password":      {"alice-password"},
		})
		require.Equal(t, http.StatusFound, resp.StatusCode)

		loc, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		require.Equal(t, "app.example", loc.Host)

		code := loc.Query().Get("code")
		require.NotEmpty(t, code)
		require.Equal(t, "s123", loc.Query().Get("state"))

		// And the code exchanges at the token endpoint
		pair, err := env.sdk.AuthorizationCodeGrant(ctx, "web", "web-secret", code, "https://app.example/cb")
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)

		// Exactly once
		_, err = env.sdk.AuthorizationCodeGrant(ctx, "web", "web-secret", code, "https://app.example/cb")
		require.Equal(t, authsdk.ErrorCodeInvalidGrant, oauthCode(t, err))
	})

	t.Run("implicit flow puts the token in the fragment", func(t *testing.T) {
		resp := postAuthorize(t, url.Values{
			"response_type": {"token"},
			"client_id":     {"web"},
			"redirect_uri":  {"https://app.example/cb"},
			"scope":         {"read"},
			"state":         {"imp1"},
			"username":      {"alice"},
			"password":      {"alice-password"},
		})
		require.Equal(t, http.StatusFound, resp.StatusCode)

		location := resp.Header.Get("Location")
		_, fragment, found := strings.Cut(location, "#")
		require.True(t, found, "token must travel in the fragment")

		params, err := url.ParseQuery(fragment)
		require.NoError(t, err)
		require.NotEmpty(t, params.Get("access_token"))
		require.Equal(t, "Bearer", params.Get("token_type"))
		require.Equal(t, "3600", params.Get("expires_in"))
		require.Equal(t, "imp1", params.Get("state"))
		require.Empty(t, params.Get("refresh_token"), "implicit flow never returns a refresh token")
	})

	t.Run("bad credentials redirect back with an error", func(t *testing.T) {
		resp := postAuthorize(t, url.Values{
			"response_type": {"code"},
			"client_id":     {"web"},
			"redirect_uri":  {"https://app.example/cb"},
			"state":         {"e1"},
			"username":      {"alice"},
			"password":      {"wrong"},
		})
		require.Equal(t, http.StatusFound, resp.StatusCode)

		loc, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		require.Equal(t, "invalid_grant", loc.Query().Get("error"))
		require.Equal(t, "e1", loc.Query().Get("state"))
	})

	t.Run("unknown response type is rejected outright", func(t *testing.T) {
		resp := postAuthorize(t, url.Values{
			"response_type": {"device"},
			"client_id":     {"web"},
			"redirect_uri":  {"https://app.example/cb"},
			"username":      {"alice"},
			"password":      {"alice-password"},
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSystemEndpoints(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	t.Run("livez", func(t *testing.T) {
		health, err := env.sdk.Livez(ctx)
		require.NoError(t, err)
		require.Equal(t, "ok", health.Status)
		require.Equal(t, "test", health.Version)
	})

	t.Run("readyz", func(t *testing.T) {
		health, err := env.sdk.Readyz(ctx)
		require.NoError(t, err)
		require.Equal(t, "ok", health.Status)
		require.NotNil(t, health.Checks)
		require.Equal(t, "ok", health.Checks.Database)
		require.Equal(t, "ok", health.Checks.Signer)
	})

	t.Run("jwks serves the public key", func(t *testing.T) {
		jwks, err := env.sdk.JWKS(ctx)
		require.NoError(t, err)
		require.Len(t, jwks.Keys, 1)
		require.Equal(t, "test-key", jwks.Keys[0].Kid)
		require.Equal(t, "OKP", jwks.Keys[0].Kty)
	})
}
