package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/hallertau/staffdir/pkg/jwtx"
	"github.com/hallertau/staffdir/pkg/slogx"
)

// Denial reason codes carried in the error body of guard responses.
const (
	ReasonNoAuthentication  = "no_authentication"
	ReasonInvalidToken      = "invalid_token"
	ReasonInsufficientScope = "insufficient_scope"
)

// TokenIntrospector answers whether an issued access token is still
// active in the token store. Revoked tokens must die here even before
// their natural expiry.
type TokenIntrospector interface {
	Active(ctx context.Context, jti string) (bool, error)
}

// BearerAuth requires a valid bearer token on every request it wraps.
// Anonymous access is always denied: a missing credential is reported as
// no_authentication, a bad, expired or revoked one as invalid_token.
func BearerAuth(v jwtx.Verifier, tokens TokenIntrospector) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeNoAuthentication(w)
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := v.Verify(raw)
			if err != nil {
				log.Warn("bearer token verification failed", "err", err)
				writeInvalidToken(w, "token verification failed")
				return
			}

			active, err := tokens.Active(ctx, claims.ID)
			if err != nil {
				log.Error("token store lookup failed", "err", err)
				writeInvalidToken(w, "token could not be validated")
				return
			}
			if !active {
				writeInvalidToken(w, "token revoked or expired")
				return
			}

			ctx = contextWithAuth(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func contextWithAuth(ctx context.Context, c jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject)
	ctx = context.WithValue(ctx, CtxKeyScopes, c.Scopes)
	if len(c.Audience) > 0 {
		ctx = context.WithValue(ctx, CtxKeyClientID, c.Audience[0])
	}
	return ctx
}

// RFC 6750-style challenge for requests carrying no credential at all.
func writeNoAuthentication(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             ReasonNoAuthentication,
		"error_description": "authentication required",
	})
}

// RFC 6750-compliant error response for bad bearer credentials.
func writeInvalidToken(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             ReasonInvalidToken,
		"error_description": desc,
	})
}
