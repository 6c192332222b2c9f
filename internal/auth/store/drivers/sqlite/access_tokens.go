package sqlite

import (
	"context"

	"github.com/hallertau/staffdir/internal/auth/domain"
)

type accessTokensRepo struct {
	db dbtx
}

func (r *accessTokensRepo) CreateAccessToken(ctx context.Context, t domain.AccessToken) error {
	var userID any
	if t.UserID != "" {
		userID = t.UserID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO access_tokens (id, jti, user_id, client_id, scopes, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.JTI, userID, t.ClientID, joinScopes(t.Scopes), t.ExpiresAt,
	)
	return err
}

func (r *accessTokensRepo) GetAccessTokenByJTI(
	ctx context.Context,
	jti string,
) (domain.AccessToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, jti, COALESCE(user_id, ''), client_id, scopes, expires_at, revoked, created_at
		 FROM access_tokens WHERE jti = ?`, jti)

	var t domain.AccessToken
	var scopes string
	err := row.Scan(
		&t.ID, &t.JTI, &t.UserID, &t.ClientID, &scopes,
		&t.ExpiresAt, &t.Revoked, &t.CreatedAt,
	)
	if err != nil {
		return domain.AccessToken{}, mapNotFound(err)
	}
	t.Scopes = splitScopes(scopes)
	return t, nil
}

func (r *accessTokensRepo) RevokeAccessToken(ctx context.Context, jti string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE access_tokens SET revoked = 1 WHERE jti = ?`, jti)
	return err
}

func (r *accessTokensRepo) RevokeAllUserClientAccessTokens(
	ctx context.Context,
	userID, clientID string,
) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE access_tokens SET revoked = 1 WHERE user_id = ? AND client_id = ?`,
		userID, clientID,
	)
	return err
}

func (r *accessTokensRepo) DeleteExpiredAccessTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM access_tokens WHERE expires_at < CURRENT_TIMESTAMP`)
	return err
}
