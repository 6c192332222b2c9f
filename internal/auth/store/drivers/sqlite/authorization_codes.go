package sqlite

import (
	"context"
	"database/sql"

	"github.com/hallertau/staffdir/internal/auth/domain"
	"github.com/hallertau/staffdir/internal/auth/store"
)

type authorizationCodesRepo struct {
	db dbtx
}

func (r *authorizationCodesRepo) CreateAuthorizationCode(
	ctx context.Context,
	code domain.AuthorizationCode,
) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO authorization_codes (id, user_id, client_id, code_hash, redirect_uri, scopes, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		code.ID, code.UserID, code.ClientID, code.CodeHash,
		code.RedirectURI, joinScopes(code.Scopes), code.ExpiresAt,
	)
	return err
}

func (r *authorizationCodesRepo) GetAuthorizationCodeByHash(
	ctx context.Context,
	hash string,
) (domain.AuthorizationCode, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, client_id, code_hash, redirect_uri, scopes,
		        expires_at, used_at, created_at
		 FROM authorization_codes WHERE code_hash = ?`, hash)

	var c domain.AuthorizationCode
	var scopes string
	var usedAt sql.NullTime
	err := row.Scan(
		&c.ID, &c.UserID, &c.ClientID, &c.CodeHash, &c.RedirectURI,
		&scopes, &c.ExpiresAt, &usedAt, &c.CreatedAt,
	)
	if err != nil {
		return domain.AuthorizationCode{}, mapNotFound(err)
	}
	c.Scopes = splitScopes(scopes)
	c.UsedAt = mapNullTimePtr(usedAt)
	return c, nil
}

// MarkAuthorizationCodeUsed is conditional on the code being unused so
// a code can be redeemed at most once.
func (r *authorizationCodesRepo) MarkAuthorizationCodeUsed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE authorization_codes SET used_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND used_at IS NULL`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *authorizationCodesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM authorization_codes WHERE expires_at < CURRENT_TIMESTAMP`)
	return err
}
