package service

import (
	"context"
	"errors"
	"strings"

	"github.com/hallertau/staffdir/internal/auth/domain"
	"github.com/hallertau/staffdir/internal/auth/store"
	"github.com/hallertau/staffdir/pkg/cryptox"
	"github.com/hallertau/staffdir/pkg/idx"
)

var (
	ErrUsernameTaken = errors.New("username_taken")
	ErrUserNotFound  = errors.New("user_not_found")
)

type UserService struct {
	Store store.Store

	// DefaultScopes are granted to new users created without explicit
	// scopes.
	DefaultScopes []string
}

// CreateUserInput carries the fields for a new directory entry.
type CreateUserInput struct {
	Username string
	Password string
	Scopes   []string
	Salary   int64
	Age      int
}

// ListUsers returns every directory entry.
func (s *UserService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.Store.Users().ListUsers(ctx)
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

// CreateUser hashes the password and inserts the entry. The username
// must be unique.
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (domain.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return domain.User{}, ErrInvalidRequest
	}

	if _, err := s.Store.Users().GetUserByUsername(ctx, username); err == nil {
		return domain.User{}, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, err
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}

	scopes := dedupe(in.Scopes)
	if len(scopes) == 0 {
		scopes = s.DefaultScopes
	}

	user := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		Scopes:       scopes,
		Salary:       in.Salary,
		Age:          in.Age,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		return domain.User{}, err
	}

	return s.Store.Users().GetUserByID(ctx, user.ID)
}

// DeleteUser removes the entry and revokes every live token issued to
// it, so a deleted user cannot keep using previously issued access.
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetUserByID(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		// Token rows cascade with the user row; deleting is revoking.
		return tx.Users().DeleteUser(ctx, user.ID)
	})
}
