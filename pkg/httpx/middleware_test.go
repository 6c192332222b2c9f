package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hallertau/staffdir/pkg/jwtx"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type stubIntrospector struct {
	active bool
	err    error
}

func (s stubIntrospector) Active(ctx context.Context, jti string) (bool, error) {
	return s.active, s.err
}

func newSignedToken(t *testing.T, keys *jwtx.KeySet, issuer string, scopes []string) string {
	t.Helper()

	pemKey, err := jwtx.GenerateEd25519PEM()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("test-key", pemKey)
	require.NoError(t, err)
	require.NoError(t, keys.AddSigner(signer))

	claims := jwtx.NewAccessClaims("user-1", scopes, time.Minute, issuer, []string{"client-1"}, "alice", time.Now())
	token, err := signer.Sign(claims)
	require.NoError(t, err)
	return token
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestBearerAuth(t *testing.T) {
	keys := jwtx.NewKeySet()
	token := newSignedToken(t, keys, "test-issuer", []string{"read"})
	verifier := jwtx.NewVerifierEdDSA(keys, "test-issuer")

	t.Run("missing header is no_authentication", func(t *testing.T) {
		h := BearerAuth(verifier, stubIntrospector{active: true})(okHandler())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, ReasonNoAuthentication, decodeError(t, rec))
		require.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("non-bearer scheme is no_authentication", func(t *testing.T) {
		h := BearerAuth(verifier, stubIntrospector{active: true})(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, ReasonNoAuthentication, decodeError(t, rec))
	})

	t.Run("garbage token is invalid_token", func(t *testing.T) {
		h := BearerAuth(verifier, stubIntrospector{active: true})(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, ReasonInvalidToken, decodeError(t, rec))
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
	})

	t.Run("revoked token is invalid_token", func(t *testing.T) {
		h := BearerAuth(verifier, stubIntrospector{active: false})(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, ReasonInvalidToken, decodeError(t, rec))
	})

	t.Run("store failure is invalid_token", func(t *testing.T) {
		h := BearerAuth(verifier, stubIntrospector{err: errors.New("db down")})(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, ReasonInvalidToken, decodeError(t, rec))
	})

	t.Run("valid token passes and injects identity", func(t *testing.T) {
		var gotUser string
		var gotScopes []string
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUser = UserIDFromContext(r.Context())
			gotScopes = scopesFromCtx(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		h := BearerAuth(verifier, stubIntrospector{active: true})(inner)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "user-1", gotUser)
		require.Equal(t, []string{"read"}, gotScopes)
	})
}

func TestRequireAnyScope(t *testing.T) {
	withScopes := func(scopes []string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := context.WithValue(req.Context(), CtxKeyScopes, scopes)
		return req.WithContext(ctx)
	}

	t.Run("allows matching scope", func(t *testing.T) {
		h := RequireAnyScope("delete")(okHandler())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withScopes([]string{"read", "delete"}))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects missing scope with 403", func(t *testing.T) {
		h := RequireAnyScope("delete")(okHandler())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withScopes([]string{"read", "write"}))

		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, ReasonInsufficientScope, decodeError(t, rec))
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), `scope="delete"`)
	})

	t.Run("rejects empty scope set", func(t *testing.T) {
		h := RequireAnyScope("delete")(okHandler())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withScopes(nil))
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRequireAllScopes(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), CtxKeyScopes, []string{"read", "write"})
	req = req.WithContext(ctx)

	t.Run("needs every scope", func(t *testing.T) {
		h := RequireAllScopes("read", "write")(okHandler())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing one scope fails", func(t *testing.T) {
		h := RequireAllScopes("read", "delete")(okHandler())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestChainOrdering(t *testing.T) {
	var order []string
	mk := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(okHandler(), mk("outer"), mk("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"outer", "inner"}, order)
}
