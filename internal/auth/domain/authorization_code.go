package domain

import "time"

// AuthorizationCode represents an OAuth 2.0 authorization code
// issuance. Codes are stored hashed and marked used on redemption.
type AuthorizationCode struct {
	ID          string
	UserID      string
	ClientID    string
	CodeHash    string
	RedirectURI string
	Scopes      []string
	ExpiresAt   time.Time
	UsedAt      *time.Time
	CreatedAt   time.Time
}
