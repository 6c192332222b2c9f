package domain

import "time"

// TokenPair is what the token endpoint returns: the short-lived JWT
// access token and, for non-implicit flows, the opaque refresh token.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	TokenType    string        `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // seconds until expiry
	Scope        string        `json:"scope,omitempty"`      // space-delimited
}

// AccessToken models the stored access token record, keyed by the JWT
// ID so the guard can check revocation without holding the token text.
type AccessToken struct {
	ID        string
	JTI       string
	UserID    string // empty for client-only tokens
	ClientID  string
	Scopes    []string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// RefreshToken models the stored refresh token record. Tokens are kept
// only as fingerprints; ParentID links a rotated token back to the one
// it replaced.
type RefreshToken struct {
	ID        string
	UserID    string
	ClientID  string
	TokenHash string // deterministic fingerprint (base64url SHA-256)
	Scopes    []string
	ParentID  *string // token this one was rotated from
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
