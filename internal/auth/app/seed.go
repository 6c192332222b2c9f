package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hallertau/staffdir/internal/auth/domain"
	"github.com/hallertau/staffdir/internal/auth/service"
	"github.com/hallertau/staffdir/internal/auth/store"
	"github.com/hallertau/staffdir/pkg/cryptox"
)

// seedFile is the YAML schema of the startup registry. Client secrets
// and user passwords appear in plaintext in the file and are hashed
// before they touch the store.
type seedFile struct {
	Clients []seedClient `yaml:"clients"`
	Users   []seedUser   `yaml:"users"`
}

type seedClient struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Secret         string   `yaml:"secret"`
	GrantTypes     []string `yaml:"grant_types"`
	Scopes         []string `yaml:"scopes"`
	AccessTTLSecs  int64    `yaml:"access_ttl_secs"`
	RefreshTTLSecs int64    `yaml:"refresh_ttl_secs"`
}

type seedUser struct {
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Scopes   []string `yaml:"scopes"`
	Salary   int64    `yaml:"salary"`
	Age      int      `yaml:"age"`
}

// seedRegistry loads the YAML registry and writes it into the store.
// Clients are upserted (the registry is the source of truth and is
// immutable at runtime); users are created only if the username is not
// already present, so directory edits survive restarts.
func seedRegistry(
	ctx context.Context,
	path string,
	st store.Store,
	users *service.UserService,
	logger *slog.Logger,
) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("no seed file found, starting with an empty registry", "path", path)
			return nil
		}
		return fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	for _, c := range seed.Clients {
		if c.ID == "" || c.Secret == "" {
			return fmt.Errorf("seed client %q: id and secret are required", c.ID)
		}

		hash, err := cryptox.HashPassword(c.Secret)
		if err != nil {
			return fmt.Errorf("hash secret for client %q: %w", c.ID, err)
		}

		client := domain.Client{
			ID:         c.ID,
			Name:       c.Name,
			SecretHash: hash,
			GrantTypes: c.GrantTypes,
			Scopes:     c.Scopes,
			AccessTTL:  time.Duration(c.AccessTTLSecs) * time.Second,
			RefreshTTL: time.Duration(c.RefreshTTLSecs) * time.Second,
		}

		if err := st.Clients().UpsertClient(ctx, client); err != nil {
			return fmt.Errorf("seed client %q: %w", c.ID, err)
		}
		logger.Info("seeded client", "client_id", c.ID, "grant_types", c.GrantTypes, "scopes", c.Scopes)
	}

	for _, u := range seed.Users {
		_, err := users.CreateUser(ctx, service.CreateUserInput{
			Username: u.Username,
			Password: u.Password,
			Scopes:   u.Scopes,
			Salary:   u.Salary,
			Age:      u.Age,
		})
		if err != nil {
			if errors.Is(err, service.ErrUsernameTaken) {
				logger.Debug("seed user already exists", "username", u.Username)
				continue
			}
			return fmt.Errorf("seed user %q: %w", u.Username, err)
		}
		logger.Info("seeded user", "username", u.Username, "scopes", u.Scopes)
	}

	return nil
}
