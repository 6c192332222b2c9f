package domain

import "time"

type Client struct {
	ID         string
	Name       string
	SecretHash string
	GrantTypes []string // grant types this client may use
	Scopes     []string
	AccessTTL  time.Duration // access token lifetime for this client
	RefreshTTL time.Duration // refresh token lifetime for this client
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AllowsGrant reports whether the client is registered for the grant
// type.
func (c Client) AllowsGrant(grantType string) bool {
	for _, g := range c.GrantTypes {
		if g == grantType {
			return true
		}
	}
	return false
}
