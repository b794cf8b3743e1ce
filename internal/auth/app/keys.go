package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/innkeep/authcore/pkg/cryptox"
	"github.com/innkeep/authcore/pkg/jwtx"
)

// initSigningKey loads the Ed25519 signing key from cfg.SigningKeyFile,
// generating and persisting a fresh one when the file is missing. Persisting
// the key means tokens survive restarts; deleting the file invalidates every
// outstanding token at once.
func initSigningKey(cfg Config, logger *slog.Logger) (*jwtx.Signer, error) {
	path := filepath.Clean(cfg.SigningKeyFile)

	pemKey, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Info("signing key not found, generating", "path", path)

		pemKey, err = cryptox.GenerateEd25519Key()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("create key directory: %w", err)
		}
		if err := os.WriteFile(path, pemKey, 0600); err != nil {
			return nil, fmt.Errorf("persist signing key: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	// The kid is stable for the life of the key file. A single active key is
	// enough here; rotation means replacing the file and accepting that old
	// tokens die with it.
	signer, err := jwtx.NewSigner("authcore-ed25519", pemKey)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}

	logger.Info("signing key loaded", "kid", signer.KID())
	return signer, nil
}
