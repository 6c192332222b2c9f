package http

import (
	"net/http"
	"strings"

	"github.com/hallertau/staffdir/internal/auth/service"
	"github.com/hallertau/staffdir/pkg/authsdk"
	"github.com/hallertau/staffdir/pkg/httpx"
	"github.com/hallertau/staffdir/pkg/jwtx"
	"github.com/hallertau/staffdir/pkg/slogx"
)

// RevokeHandler serves POST /v1/oauth2/revoke per RFC 7009. Both
// refresh tokens and access tokens (by JWT) are accepted. All tokens,
// even invalid or unknown ones, return 200 OK to prevent token
// scanning.
type RevokeHandler struct {
	TokenService *service.TokenService
	Verifier     jwtx.Verifier
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Revocation Endpoint
//	@Description	Revokes a previously issued token (RFC 7009). Accepts refresh tokens and access tokens.
//	@Description	Idempotent: returns 200 OK even for invalid/unknown tokens.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			token			formData	string	true	"The token to revoke"
//	@Param			token_type_hint	formData	string	false	"Hint about token type"	Enums(access_token, refresh_token)
//	@Success		200				"Token revoked (or was already invalid)"
//	@Failure		400				{object}	map[string]string	"error, error_description"
//	@Header			200				{string}	Cache-Control		"no-store"
//	@Router			/v1/oauth2/revoke [post].
func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	token := r.Form.Get("token")
	hint := r.Form.Get("token_type_hint")

	if token == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	// Failures are logged but never surfaced; RFC 7009 mandates 200 OK
	// regardless.
	switch hint {
	case "access_token":
		h.revokeAccess(r, token)
	case "refresh_token":
		if err := h.TokenService.RevokeRefreshToken(ctx, token); err != nil {
			log.Warn("revoke refresh failed", "err", err)
		}
	default:
		// No hint: try refresh first, fall back to access.
		if err := h.TokenService.RevokeRefreshToken(ctx, token); err != nil {
			h.revokeAccess(r, token)
		}
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{}"))
}

func (h *RevokeHandler) revokeAccess(r *http.Request, token string) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	claims, err := h.Verifier.Verify(token)
	if err != nil {
		log.Warn("revoke access token parse failed", "err", err)
		return
	}
	if err := h.TokenService.RevokeAccessToken(ctx, claims.ID); err != nil {
		log.Warn("revoke access failed", "err", err)
	}
}
