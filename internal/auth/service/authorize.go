package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hallertau/staffdir/internal/auth/domain"
	"github.com/hallertau/staffdir/internal/auth/store"
	"github.com/hallertau/staffdir/pkg/cryptox"
	"github.com/hallertau/staffdir/pkg/idx"
	"github.com/hallertau/staffdir/pkg/slogx"
)

var (
	ErrLoginRequired  = errors.New("login_required")
	ErrInvalidRequest = errors.New("invalid_request")
)

// AuthorizeService implements the redirect-based authorization flows:
// the authorization_code flow (response_type=code) and the implicit
// flow (response_type=token).
type AuthorizeService struct {
	Store   store.Store
	Tokens  *TokenService
	CodeTTL time.Duration
}

// AuthorizeRequest captures the validated inputs of an authorization
// request. Username and password carry the resource owner's interactive
// login.
type AuthorizeRequest struct {
	ResponseType string
	ClientID     string
	RedirectURI  string
	Scope        []string
	State        string

	Username string
	Password string
}

// AuthorizeCodeResponse contains the authorization code and the
// redirect information for response_type=code.
type AuthorizeCodeResponse struct {
	Code        string
	RedirectURI string
	State       string
}

// AuthorizeTokenResponse contains the access token issued directly by
// the implicit flow. No refresh token is ever issued here; the token
// travels in the redirect fragment.
type AuthorizeTokenResponse struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
	Scope       string
	RedirectURI string
	State       string
}

// IssueAuthorizationCode implements the authorization code flow per
// RFC 6749 section 4.1. It authenticates the resource owner, narrows
// the requested scopes by the client registration and the user's
// authorities, and mints a short-lived single-use code.
func (s *AuthorizeService) IssueAuthorizationCode(
	ctx context.Context,
	req AuthorizeRequest,
) (*AuthorizeCodeResponse, error) {
	if !strings.EqualFold(strings.TrimSpace(req.ResponseType), "code") {
		return nil, ErrInvalidRequest
	}

	user, client, scopes, err := s.authenticate(ctx, req, GrantAuthorizationCode)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	code, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, err
	}

	ttl := s.CodeTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	record := domain.AuthorizationCode{
		ID:          idx.New().String(),
		UserID:      user.ID,
		ClientID:    client.ID,
		CodeHash:    cryptox.FingerprintToken(code),
		RedirectURI: req.RedirectURI,
		Scopes:      scopes,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}

	if err := s.Store.AuthorizationCodes().CreateAuthorizationCode(ctx, record); err != nil {
		return nil, err
	}

	return &AuthorizeCodeResponse{
		Code:        code,
		RedirectURI: req.RedirectURI,
		State:       req.State,
	}, nil
}

// IssueImplicitToken implements the implicit flow per RFC 6749 section
// 4.2: the access token is issued straight from the authorization
// endpoint, without a code exchange and without a refresh token.
func (s *AuthorizeService) IssueImplicitToken(
	ctx context.Context,
	req AuthorizeRequest,
) (*AuthorizeTokenResponse, error) {
	if !strings.EqualFold(strings.TrimSpace(req.ResponseType), "token") {
		return nil, ErrInvalidRequest
	}

	user, client, scopes, err := s.authenticate(ctx, req, GrantImplicit)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	accessToken, claims, err := s.Tokens.signAccess(user, client, scopes, now)
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
	if err := s.Store.AccessTokens().CreateAccessToken(ctx, record); err != nil {
		return nil, err
	}

	return &AuthorizeTokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   accessTTL(client),
		Scope:       strings.Join(scopes, " "),
		RedirectURI: req.RedirectURI,
		State:       req.State,
	}, nil
}

// authenticate validates the request shape, loads and checks the
// client, verifies the resource owner's credentials and resolves the
// effective scopes.
func (s *AuthorizeService) authenticate(
	ctx context.Context,
	req AuthorizeRequest,
	grantType string,
) (domain.User, domain.Client, []string, error) {
	log := slogx.FromContext(ctx)

	if strings.TrimSpace(req.ClientID) == "" || strings.TrimSpace(req.RedirectURI) == "" {
		return domain.User{}, domain.Client{}, nil, ErrInvalidRequest
	}

	client, err := s.Store.Clients().GetClientByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, domain.Client{}, nil, ErrInvalidClient
		}
		return domain.User{}, domain.Client{}, nil, err
	}

	if !client.AllowsGrant(grantType) {
		return domain.User{}, domain.Client{}, nil, ErrUnsupportedGrant
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return domain.User{}, domain.Client{}, nil, ErrLoginRequired
	}

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			cryptox.VerifyPasswordDummy(req.Password)
			log.Info("authorize: authentication failed", "client_id", client.ID)
			return domain.User{}, domain.Client{}, nil, ErrInvalidCredentials
		}
		return domain.User{}, domain.Client{}, nil, err
	}

	if cryptox.VerifyPassword(req.Password, user.PasswordHash) != nil {
		log.Info("authorize: authentication failed", "client_id", client.ID)
		return domain.User{}, domain.Client{}, nil, ErrInvalidCredentials
	}

	scopes, err := effectiveScopes(req.Scope, client.Scopes, user.Scopes)
	if err != nil {
		return domain.User{}, domain.Client{}, nil, err
	}

	return user, client, scopes, nil
}
