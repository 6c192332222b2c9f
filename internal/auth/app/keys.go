package app

import (
	"fmt"
	"log/slog"

	"github.com/hallertau/staffdir/pkg/idx"
	"github.com/hallertau/staffdir/pkg/jwtx"
)

// InitAuthKeys generates an ephemeral Ed25519 signing key on startup and
// builds the shared KeySet and Verifier around it. The key set is static
// for the life of the process; all outstanding tokens become invalid on
// restart.
func InitAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.KeySet, jwtx.Signer, jwtx.Verifier, error) {
	pemKey, err := jwtx.GenerateEd25519PEM()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate Ed25519 key: %w", err)
	}

	kid := idx.New().String()
	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load Ed25519 key: %w", err)
	}
	if err := signer.Validate(); err != nil {
		return nil, nil, nil, err
	}

	keys := jwtx.NewKeySet()
	if err := keys.AddSigner(signer); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to register signing key: %w", err)
	}

	verifier := jwtx.NewVerifierEdDSA(keys, cfg.Issuer)

	logger.Info("generated ephemeral signing key",
		"algorithm", signer.Alg(),
		"kid", kid,
		"issuer", cfg.Issuer,
	)
	logger.Warn("all previously issued tokens are now invalid")

	return keys, signer, verifier, nil
}
