package bootstrap

import (
	"github.com/rs/zerolog"

	"github.com/baechuer/contacts-api/internal/config"
	"github.com/baechuer/contacts-api/internal/infrastructure/security"
)

// BuildKeyring loads signing keys from JWT_KEYS_FILE when set, otherwise from
// JWT_SECRET / JWT_KEY_ID / JWT_PREVIOUS_KEYS. The watcher is nil for the
// env form.
func BuildKeyring(cfg *config.Config, lg zerolog.Logger) (*security.Keyring, *security.KeyFileWatcher, error) {
	if cfg.JWTKeysFile != "" {
		active, prev, err := security.LoadKeyFile(cfg.JWTKeysFile)
		if err != nil {
			return nil, nil, err
		}
		ring, err := security.NewKeyringWithGrace(cfg.JWTKeyGrace, active, prev...)
		if err != nil {
			return nil, nil, err
		}
		return ring, security.NewKeyFileWatcher(cfg.JWTKeysFile, ring, lg), nil
	}

	prev, err := security.ParsePreviousKeys(cfg.JWTPreviousKeys)
	if err != nil {
		return nil, nil, err
	}
	ring, err := security.NewKeyringWithGrace(cfg.JWTKeyGrace, security.SigningKey{
		ID:     cfg.JWTKeyID,
		Secret: []byte(cfg.JWTSecret),
	}, prev...)
	if err != nil {
		return nil, nil, err
	}
	return ring, nil, nil
}
