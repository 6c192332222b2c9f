package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hallertau/staffdir/internal/auth/service"
	"github.com/hallertau/staffdir/pkg/authsdk"
	"github.com/hallertau/staffdir/pkg/httpx"
)

// AuthorizeHandler processes OAuth2 authorization requests: the
// authorization code flow (response_type=code) and the implicit flow
// (response_type=token).
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService
	Logger           *slog.Logger
}

// HandleGet godoc
//
//	@Summary		OAuth2 authorization endpoint (GET)
//	@Description	Describes the authorization request and asks the resource owner to authenticate.
//	@Description	Since no session store exists, GET always responds 401 login_required with the
//	@Description	echoed request parameters; the user agent then POSTs credentials back.
//	@Tags			OAuth2
//	@Produce		json
//	@Param			response_type	query		string					true	"code or token"	Enums(code, token)
//	@Param			client_id		query		string					true	"OAuth2 client identifier"
//	@Param			redirect_uri	query		string					true	"Callback URI"
//	@Param			scope			query		string					false	"Space-delimited list of scopes"
//	@Param			state			query		string					false	"Opaque value for CSRF protection"
//	@Failure		401				{object}	map[string]interface{}	"login_required plus the echoed request"
//	@Router			/v1/oauth2/authorize [get]
func (h *AuthorizeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	payload := map[string]any{
		"error":             "login_required",
		"error_description": "user authentication required",
		"response_type":     strings.TrimSpace(query.Get("response_type")),
		"client_id":         strings.TrimSpace(query.Get("client_id")),
		"redirect_uri":      strings.TrimSpace(query.Get("redirect_uri")), // not yet validated here
	}
	if scope := strings.TrimSpace(query.Get("scope")); scope != "" {
		payload["scope"] = scope
	}
	if state := strings.TrimSpace(query.Get("state")); state != "" {
		payload["state"] = state
	}
	httpx.WriteJSON(w, http.StatusUnauthorized, payload)
}

// HandlePost godoc
//
//	@Summary		OAuth2 authorization endpoint (POST)
//	@Description	Authenticates the resource owner with username/password and completes the flow:
//	@Description	response_type=code redirects with ?code=..., response_type=token redirects with
//	@Description	the access token in the URL fragment (implicit flow, no refresh token).
//	@Tags			OAuth2
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			response_type	query		string					true	"code or token"	Enums(code, token)
//	@Param			client_id		query		string					true	"OAuth2 client identifier"
//	@Param			redirect_uri	query		string					true	"Callback URI"
//	@Param			scope			query		string					false	"Space-delimited list of scopes"
//	@Param			state			query		string					false	"Opaque value for CSRF protection"
//	@Param			username		formData	string					true	"Resource owner username"
//	@Param			password		formData	string					true	"Resource owner password"
//	@Success		302				{string}	string					"Redirect to redirect_uri"
//	@Failure		400				{object}	map[string]interface{}	"Invalid request"
//	@Failure		401				{object}	map[string]interface{}	"Authentication failed"
//	@Router			/v1/oauth2/authorize [post]
func (h *AuthorizeHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}

	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	req := h.buildAuthorizeRequest(r.Form, r.URL.Query())
	req.Username = strings.TrimSpace(r.Form.Get("username"))
	req.Password = r.Form.Get("password")

	switch strings.ToLower(req.ResponseType) {
	case "code":
		h.processCode(w, r, req)
	case "token":
		h.processImplicit(w, r, req)
	default:
		authsdk.ErrUnsupportedResponseType.WriteError(w)
	}
}

func (h *AuthorizeHandler) buildAuthorizeRequest(primary, secondary url.Values) service.AuthorizeRequest {
	pick := func(key string) string {
		if v := strings.TrimSpace(primary.Get(key)); v != "" {
			return v
		}
		return strings.TrimSpace(secondary.Get(key))
	}

	return service.AuthorizeRequest{
		ResponseType: pick("response_type"),
		ClientID:     pick("client_id"),
		RedirectURI:  pick("redirect_uri"),
		Scope:        httpx.ParseSpaceDelimitedFields(pick("scope")),
		State:        pick("state"),
	}
}

func (h *AuthorizeHandler) processCode(w http.ResponseWriter, r *http.Request, req service.AuthorizeRequest) {
	resp, err := h.AuthorizeService.IssueAuthorizationCode(r.Context(), req)
	if err != nil {
		h.handleAuthorizeError(w, r, req, err)
		return
	}

	redirectURL, err := buildCodeRedirect(resp.RedirectURI, resp.Code, resp.State)
	if err != nil {
		h.Logger.Error("failed to build redirect URL", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (h *AuthorizeHandler) processImplicit(w http.ResponseWriter, r *http.Request, req service.AuthorizeRequest) {
	resp, err := h.AuthorizeService.IssueImplicitToken(r.Context(), req)
	if err != nil {
		h.handleAuthorizeError(w, r, req, err)
		return
	}

	redirectURL, err := buildFragmentRedirect(resp)
	if err != nil {
		h.Logger.Error("failed to build redirect URL", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	http.Redirect(w, r, redirectURL, http.StatusFound)
}

func (h *AuthorizeHandler) handleAuthorizeError(
	w http.ResponseWriter,
	r *http.Request,
	req service.AuthorizeRequest,
	err error,
) {
	var (
		oauthError *authsdk.OAuth2Error
		errorCode  string
		statusCode int
	)

	switch {
	case errors.Is(err, service.ErrInvalidClient):
		oauthError = authsdk.ErrInvalidClient
		errorCode = authsdk.ErrorCodeInvalidClient
	case errors.Is(err, service.ErrUnsupportedGrant):
		oauthError = authsdk.ErrUnauthorizedClient
		errorCode = authsdk.ErrorCodeUnauthorizedClient
	case errors.Is(err, service.ErrInvalidScope):
		oauthError = authsdk.ErrInvalidScope
		errorCode = authsdk.ErrorCodeInvalidScope
	case errors.Is(err, service.ErrInvalidRequest):
		oauthError = authsdk.ErrInvalidRequest
		errorCode = authsdk.ErrorCodeInvalidRequest
	case errors.Is(err, service.ErrLoginRequired):
		errorCode = "login_required"
		statusCode = http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidCredentials):
		oauthError = authsdk.ErrInvalidGrant
		errorCode = authsdk.ErrorCodeInvalidGrant
	default:
		h.Logger.Error("authorize request failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	// Per RFC 6749 section 4.1.2.1, errors after the client and
	// redirect URI pass muster should redirect back to the client.
	// Client identification failures never redirect.
	if req.RedirectURI != "" && oauthError != authsdk.ErrInvalidClient {
		if redirectURL := buildErrorRedirect(req.RedirectURI, req.State, errorCode, oauthError); redirectURL != "" {
			http.Redirect(w, r, redirectURL, http.StatusFound)
			return
		}
	}

	if oauthError != nil {
		oauthError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, statusCode, map[string]any{
		"error":             errorCode,
		"error_description": "user authentication is required",
	})
}

// buildCodeRedirect constructs the success redirect for the code flow.
func buildCodeRedirect(baseURI, code, state string) (string, error) {
	u, err := url.Parse(baseURI)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// buildFragmentRedirect constructs the implicit flow redirect. The
// token parameters travel in the fragment so they never hit server logs
// on the client side.
func buildFragmentRedirect(resp *service.AuthorizeTokenResponse) (string, error) {
	u, err := url.Parse(resp.RedirectURI)
	if err != nil {
		return "", err
	}

	frag := url.Values{}
	frag.Set("access_token", resp.AccessToken)
	frag.Set("token_type", resp.TokenType)
	frag.Set("expires_in", strconv.Itoa(int(resp.ExpiresIn.Seconds())))
	if resp.Scope != "" {
		frag.Set("scope", resp.Scope)
	}
	if resp.State != "" {
		frag.Set("state", resp.State)
	}
	u.Fragment = ""
	return u.String() + "#" + frag.Encode(), nil
}

// buildErrorRedirect constructs a redirect URL carrying an OAuth2
// error. Returns "" when the base URI does not parse.
func buildErrorRedirect(baseURI, state, errorCode string, oauthError *authsdk.OAuth2Error) string {
	u, err := url.Parse(baseURI)
	if err != nil {
		return ""
	}

	q := u.Query()
	q.Set("error", errorCode)
	if oauthError != nil && oauthError.Description != "" {
		q.Set("error_description", oauthError.Description)
	}
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()

	return u.String()
}
