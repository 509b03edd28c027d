package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"runtime"

	"github.com/charmbracelet/log"
	"github.com/zalando/go-keyring"
)

const (
	keystoreService = "cloud-integration-migration-tool"
	keystoreUser    = "encryption-key"
)

// GenerateOrLoadKey loads the 32-byte AES-256 key from the system keychain,
// generating and storing a new one if absent.
func GenerateOrLoadKey() ([]byte, error) {
	keyString, err := keyring.Get(keystoreService, keystoreUser)
	if err == nil && keyString != "" {
		return []byte(keyString), nil
	}

	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		log.Warn("keystore lookup failed", "error", err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}

	if err := keyring.Set(keystoreService, keystoreUser, string(key)); err != nil {
		// Linux hosts without a keyring daemon hit this; the key then only
		// lives for the process lifetime.
		log.Warn("failed to store key in keychain, key will be regenerated on next launch", "error", err)
		if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
			return nil, fmt.Errorf("keychain storage required on %s: %w", runtime.GOOS, err)
		}
	}

	return key, nil
}

// DeleteKey removes the encryption key from the keychain.
func DeleteKey() error {
	return keyring.Delete(keystoreService, keystoreUser)
}

// IsKeyStored checks if an encryption key exists in the keychain.
func IsKeyStored() bool {
	_, err := keyring.Get(keystoreService, keystoreUser)
	return err == nil
}
