package store

import (
	"context"
	"errors"

	"github.com/hallertau/staffdir/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement
// it. Sub-repositories keep concerns tidy and testable, and make it
// harder to accidentally nest transactions.
type Store interface {
	Users() Users
	Clients() Clients
	AccessTokens() AccessTokens
	RefreshTokens() RefreshTokens
	AuthorizationCodes() AuthorizationCodes

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g.,
	// refresh rotation). The caller MUST call Commit() or Rollback().
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing on nil and
	// rolling back on error. Preferred over Tx for most callers.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store: the same repos plus Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during the password grant and
	// interactive authorization.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// ListUsers returns all users ordered by creation date (oldest first).
	ListUsers(ctx context.Context) ([]domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// DeleteUser cascades to this user's tokens (per schema).
	DeleteUser(ctx context.Context, userID string) error

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type Clients interface {
	// GetClientByID fetches a client for grant processing.
	GetClientByID(ctx context.Context, id string) (domain.Client, error)

	// ListClients returns all registered clients.
	ListClients(ctx context.Context) ([]domain.Client, error)

	// UpsertClient inserts or replaces a client row. The registry is
	// seeded from configuration at startup and is otherwise immutable.
	UpsertClient(ctx context.Context, c domain.Client) error

	// IsEmpty returns true if there are no clients.
	IsEmpty(ctx context.Context) (bool, error)
}

type AccessTokens interface {
	// CreateAccessToken records an issued access token by its JWT ID.
	CreateAccessToken(ctx context.Context, t domain.AccessToken) error

	// GetAccessTokenByJTI fetches the record for introspection.
	GetAccessTokenByJTI(ctx context.Context, jti string) (domain.AccessToken, error)

	// RevokeAccessToken flips revoked=1 for the given JTI.
	RevokeAccessToken(ctx context.Context, jti string) error

	// RevokeAllUserClientAccessTokens bulk-revokes all live access
	// tokens for a user+client pair (refresh rotation, user deletion).
	RevokeAllUserClientAccessTokens(ctx context.Context, userID, clientID string) error

	// DeleteExpiredAccessTokens is housekeeping.
	DeleteExpiredAccessTokens(ctx context.Context) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken flips revoked=1 and bumps updated_at. Returns
	// ErrNotFound when the token is missing or already revoked, which
	// is what makes single-use redemption race-safe.
	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeAllUserClientRefreshTokens bulk revocation for a
	// user+client pair.
	RevokeAllUserClientRefreshTokens(ctx context.Context, userID, clientID string) error

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context) error
}

type AuthorizationCodes interface {
	// CreateAuthorizationCode stores a freshly minted code.
	CreateAuthorizationCode(ctx context.Context, code domain.AuthorizationCode) error

	// GetAuthorizationCodeByHash fetches a code by its hashed value
	// when redeeming.
	GetAuthorizationCodeByHash(ctx context.Context, hash string) (domain.AuthorizationCode, error)

	// MarkAuthorizationCodeUsed marks a code as consumed. Returns
	// ErrNotFound if the code was already used.
	MarkAuthorizationCodeUsed(ctx context.Context, id string) error

	// DeleteExpiredAuthorizationCodes removes codes past their expiry.
	DeleteExpiredAuthorizationCodes(ctx context.Context) error
}
