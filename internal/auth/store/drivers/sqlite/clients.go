package sqlite

import (
	"context"
	"time"

	"github.com/hallertau/staffdir/internal/auth/domain"
)

type clientsRepo struct {
	db dbtx
}

const clientColumns = `id, name, secret_hash, grant_types, scopes,
	access_ttl_secs, refresh_ttl_secs, created_at, updated_at`

func (r *clientsRepo) scanClient(row interface{ Scan(...any) error }) (domain.Client, error) {
	var c domain.Client
	var grantTypes, scopes string
	var accessTTLSecs, refreshTTLSecs int64
	err := row.Scan(
		&c.ID, &c.Name, &c.SecretHash, &grantTypes, &scopes,
		&accessTTLSecs, &refreshTTLSecs, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Client{}, mapNotFound(err)
	}
	c.GrantTypes = splitScopes(grantTypes)
	c.Scopes = splitScopes(scopes)
	c.AccessTTL = time.Duration(accessTTLSecs) * time.Second
	c.RefreshTTL = time.Duration(refreshTTLSecs) * time.Second
	return c, nil
}

func (r *clientsRepo) GetClientByID(ctx context.Context, id string) (domain.Client, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	return r.scanClient(row)
}

func (r *clientsRepo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		c, err := r.scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *clientsRepo) UpsertClient(ctx context.Context, c domain.Client) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, secret_hash, grant_types, scopes, access_ttl_secs, refresh_ttl_secs)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name,
		   secret_hash = excluded.secret_hash,
		   grant_types = excluded.grant_types,
		   scopes = excluded.scopes,
		   access_ttl_secs = excluded.access_ttl_secs,
		   refresh_ttl_secs = excluded.refresh_ttl_secs,
		   updated_at = CURRENT_TIMESTAMP`,
		c.ID, c.Name, c.SecretHash, joinScopes(c.GrantTypes), joinScopes(c.Scopes),
		int64(c.AccessTTL.Seconds()), int64(c.RefreshTTL.Seconds()),
	)
	return err
}

func (r *clientsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}
