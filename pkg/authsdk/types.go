package authsdk

import (
	"github.com/hallertau/staffdir/pkg/jwtx"
)

// ErrorResponse is the standard OAuth2 error body per RFC 6749, used
// internally when parsing HTTP error responses. Client code receives
// the typed OAuth2Error instead.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// TokenResponse is the OAuth2 token endpoint response per RFC 6749,
// returned from POST /v1/oauth2/token for every grant type.
type TokenResponse struct {
	// AccessToken is the JWT used to authenticate API requests.
	AccessToken string `json:"access_token"`

	// RefreshToken is the opaque single-use token for obtaining new
	// access tokens. Absent for the implicit flow.
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`

	// Scope is the space-delimited list of granted scopes.
	Scope string `json:"scope,omitempty"`
}

// UserInfo describes one directory entry as returned by the users API.
type UserInfo struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`

	// Username is the user's login name.
	Username string `json:"username"`

	// Scopes lists the authorities this user may be granted in a token.
	Scopes []string `json:"scopes"`

	// Salary is the user's recorded salary.
	Salary int64 `json:"salary"`

	// Age is the user's recorded age.
	Age int `json:"age"`

	// CreatedAt is the creation timestamp in RFC3339 format.
	CreatedAt string `json:"created_at"`
}

// ListUsersResponse wraps the full directory listing.
type ListUsersResponse struct {
	Users []UserInfo `json:"users"`
}

// CreateUserRequest is the payload for creating a directory entry.
type CreateUserRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Scopes   []string `json:"scopes,omitempty"`
	Salary   int64    `json:"salary"`
	Age      int      `json:"age"`
}

// HealthResponse is shared by /livez and /readyz; only readyz fills in
// Checks.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the status of each critical dependency.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// JWKSResponse contains the public keys for verifying access tokens,
// served from GET /.well-known/jwks.json.
type JWKSResponse jwtx.JWKS
