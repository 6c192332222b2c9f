package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/hallertau/staffdir/internal/auth/domain"
	"github.com/hallertau/staffdir/internal/auth/store"
	"github.com/hallertau/staffdir/pkg/cryptox"
	"github.com/hallertau/staffdir/pkg/idx"
	"github.com/hallertau/staffdir/pkg/jwtx"
	"github.com/hallertau/staffdir/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidClient      = errors.New("invalid_client")
	ErrInvalidScope       = errors.New("invalid_scope")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
	ErrInvalidGrant       = errors.New("invalid_grant")
	ErrUnsupportedGrant   = errors.New("unsupported_grant_type")
)

// Grant type identifiers accepted by the token endpoint.
const (
	GrantPassword          = "password"
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
	GrantImplicit          = "implicit"
)

type TokenService struct {
	Signer jwtx.Signer
	Store  store.Store
	Issuer string
}

// ExchangePassword implements the OAuth2 resource owner password grant.
//
// Authentication failures are reported uniformly as ErrInvalidCredentials:
// an unknown username and a wrong password are indistinguishable to the
// caller.
func (s *TokenService) ExchangePassword(
	ctx context.Context,
	clientID, clientSecret, username, password string,
	requestedScopes []string,
) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	client, err := s.authenticateClient(ctx, clientID, clientSecret, GrantPassword)
	if err != nil {
		return nil, err
	}

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn time comparable to a real hash check so username
			// probing cannot be timed.
			cryptox.VerifyPasswordDummy(password)
			l.Info("password grant failed", slog.String("client_id", clientID))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		l.Info("password grant failed", slog.String("client_id", clientID))
		return nil, ErrInvalidCredentials
	}

	effective, err := effectiveScopes(requestedScopes, client.Scopes, user.Scopes)
	if err != nil {
		return nil, err
	}

	return s.issuePair(ctx, user, client, effective, now)
}

// ExchangeAuthorizationCode implements the OAuth2 authorization_code
// grant. The code is single use; redemption happens inside one
// transaction so a replayed code fails cleanly.
func (s *TokenService) ExchangeAuthorizationCode(
	ctx context.Context,
	clientID, clientSecret, code, redirectURI string,
) (*domain.TokenPair, error) {
	now := time.Now()

	client, err := s.authenticateClient(ctx, clientID, clientSecret, GrantAuthorizationCode)
	if err != nil {
		return nil, err
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidGrant
	}
	codeHash := cryptox.FingerprintToken(code)

	var result *domain.TokenPair

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		authCode, err := tx.AuthorizationCodes().GetAuthorizationCodeByHash(ctx, codeHash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}

		if authCode.ClientID != client.ID {
			return ErrInvalidClient
		}
		if authCode.RedirectURI != strings.TrimSpace(redirectURI) {
			return ErrInvalidGrant
		}
		if authCode.UsedAt != nil || now.After(authCode.ExpiresAt) {
			return ErrInvalidGrant
		}

		user, err := tx.Users().GetUserByID(ctx, authCode.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}

		// Scopes were already narrowed at authorize time; re-intersect
		// in case the registry or the user changed since.
		effective, err := effectiveScopes(authCode.Scopes, client.Scopes, user.Scopes)
		if err != nil {
			return err
		}

		if err := tx.AuthorizationCodes().MarkAuthorizationCodeUsed(ctx, authCode.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}

		result, err = s.issuePairTx(ctx, tx, user, client, effective, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ExchangeRefreshToken implements the OAuth2 refresh_token grant with
// rotation. The presented token is revoked and replaced inside a single
// transaction; the conditional revoke guarantees that concurrent
// redemptions of the same token produce exactly one winner.
func (s *TokenService) ExchangeRefreshToken(
	ctx context.Context,
	clientID, clientSecret, refreshOpaque string,
	requestedScopes []string, // empty means reuse original scopes
) (*domain.TokenPair, error) {
	now := time.Now()

	client, err := s.authenticateClient(ctx, clientID, clientSecret, GrantRefreshToken)
	if err != nil {
		return nil, err
	}

	fp := cryptox.FingerprintToken(refreshOpaque)

	var result *domain.TokenPair

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		rt, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		if rt.Revoked || now.After(rt.ExpiresAt) {
			return ErrInvalidRefresh
		}
		if rt.ClientID != client.ID {
			return ErrInvalidClient
		}

		user, err := tx.Users().GetUserByID(ctx, rt.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		// Scope narrowing is allowed; anything outside the original
		// grant still has to clear the client and user limits.
		base := rt.Scopes
		if len(requestedScopes) > 0 {
			base = requestedScopes
		}
		effective, err := effectiveScopes(base, client.Scopes, user.Scopes)
		if err != nil {
			return err
		}

		// The conditional update loses cleanly when another redemption
		// got here first.
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, fp); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		result, err = s.issueRotatedPairTx(ctx, tx, user, client, effective, rt.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// RevokeRefreshToken revokes a single refresh token by its opaque
// value. Unknown or already-revoked tokens surface as ErrInvalidRefresh
// so the revoke endpoint can swallow them per RFC 7009.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, refreshOpaque string) error {
	fp := cryptox.FingerprintToken(refreshOpaque)
	err := s.Store.RefreshTokens().RevokeRefreshToken(ctx, fp)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidRefresh
	}
	return err
}

// RevokeAccessToken revokes an access token by its JWT ID.
func (s *TokenService) RevokeAccessToken(ctx context.Context, jti string) error {
	return s.Store.AccessTokens().RevokeAccessToken(ctx, jti)
}

// Active reports whether the access token with the given JWT ID is
// still valid: recorded, unrevoked, unexpired. It satisfies the guard's
// introspection interface.
func (s *TokenService) Active(ctx context.Context, jti string) (bool, error) {
	t, err := s.Store.AccessTokens().GetAccessTokenByJTI(ctx, jti)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if t.Revoked || time.Now().After(t.ExpiresAt) {
		return false, nil
	}
	return true, nil
}

// authenticateClient loads the client, verifies its secret and checks
// it is registered for the grant type. Unknown client and bad secret
// collapse into the same error.
func (s *TokenService) authenticateClient(
	ctx context.Context,
	clientID, clientSecret, grantType string,
) (domain.Client, error) {
	l := slogx.FromContext(ctx)

	client, err := s.Store.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Client{}, ErrInvalidClient
		}
		return domain.Client{}, err
	}

	if client.SecretHash != "" {
		if clientSecret == "" || cryptox.VerifyPassword(clientSecret, client.SecretHash) != nil {
			l.Info("client authentication failed", slog.String("client_id", clientID))
			return domain.Client{}, ErrInvalidClient
		}
	}

	if !client.AllowsGrant(grantType) {
		l.Info("grant type not registered for client",
			slog.String("client_id", clientID),
			slog.String("grant_type", grantType),
		)
		return domain.Client{}, ErrUnsupportedGrant
	}

	return client, nil
}

// issuePair signs an access token and mints a refresh token, recording
// both atomically.
func (s *TokenService) issuePair(
	ctx context.Context,
	user domain.User,
	client domain.Client,
	scopes []string,
	now time.Time,
) (*domain.TokenPair, error) {
	var result *domain.TokenPair
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		result, err = s.issuePairTx(ctx, tx, user, client, scopes, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *TokenService) issuePairTx(
	ctx context.Context,
	tx store.Tx,
	user domain.User,
	client domain.Client,
	scopes []string,
	now time.Time,
) (*domain.TokenPair, error) {
	return s.issueRotatedPairTx(ctx, tx, user, client, scopes, "", now)
}

func (s *TokenService) issueRotatedPairTx(
	ctx context.Context,
	tx store.Tx,
	user domain.User,
	client domain.Client,
	scopes []string,
	parentRefreshID string,
	now time.Time,
) (*domain.TokenPair, error) {
	accessToken, claims, err := s.signAccess(user, client, scopes, now)
	if err != nil {
		return nil, err
	}

	record := domain.AccessToken{
		ID:        idx.New().String(),
		JTI:       claims.ID,
		UserID:    user.ID,
		ClientID:  client.ID,
		Scopes:    scopes,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := tx.AccessTokens().CreateAccessToken(ctx, record); err != nil {
		return nil, err
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	var parentID *string
	if parentRefreshID != "" {
		parentID = &parentRefreshID
	}

	refresh := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    user.ID,
		ClientID:  client.ID,
		TokenHash: cryptox.FingerprintToken(refreshOpaque),
		Scopes:    scopes,
		ParentID:  parentID,
		ExpiresAt: now.Add(refreshTTL(client)),
		Revoked:   false,
	}
	if err := tx.RefreshTokens().CreateRefreshToken(ctx, refresh); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    accessTTL(client),
		Scope:        strings.Join(scopes, " "),
	}, nil
}

func (s *TokenService) signAccess(
	user domain.User,
	client domain.Client,
	scopes []string,
	now time.Time,
) (string, jwtx.Claims, error) {
	claims := jwtx.NewAccessClaims(
		user.ID,             // subject
		scopes,              // scopes
		accessTTL(client),   // token lifetime
		s.Issuer,            // issuer
		[]string{client.ID}, // audience
		user.Username,       // username
		now,                 // current time
	)
	token, err := s.Signer.Sign(claims)
	return token, claims, err
}

func accessTTL(c domain.Client) time.Duration {
	if c.AccessTTL > 0 {
		return c.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func refreshTTL(c domain.Client) time.Duration {
	if c.RefreshTTL > 0 {
		return c.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// effectiveScopes resolves the granted scope set. The request is capped
// by both what the client may grant and what the user holds; an empty
// request defaults to everything both sides allow. A request that
// intersects to nothing is an error, never a silent downgrade to
// defaults.
func effectiveScopes(requested, clientScopes, userScopes []string) ([]string, error) {
	base := requested
	if len(base) == 0 {
		base = clientScopes
	}

	effective := intersectThreeWay(base, clientScopes, userScopes)
	if len(effective) == 0 {
		return nil, ErrInvalidScope
	}
	return effective, nil
}

// intersectThreeWay caps the requested scopes by what the client is
// authorized to grant and what the user's authorities allow. This is
// the mechanism that prevents privilege escalation through the token
// endpoint.
func intersectThreeWay(requested, clientScopes, userScopes []string) []string {
	step1 := intersectScopes(requested, clientScopes)
	return intersectScopes(step1, userScopes)
}

func intersectScopes(a, b []string) []string {
	set := map[string]struct{}{}
	for _, s := range b {
		set[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := set[s]; ok {
			out = append(out, s)
		}
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
