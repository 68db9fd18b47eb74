package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/mesworks/shopsched/pkg/keyring"
)

const (
	secretService = "shopsched-jwt"
	secretUser    = "signing-secret"
	secretBytes   = 64
)

// SecretManager holds the JWT signing secret in the keyring, generating one
// on first start
type SecretManager struct {
	keyring *keyring.KeyringManager
}

// NewSecretManager creates a secret manager over the given keyring
func NewSecretManager(km *keyring.KeyringManager) *SecretManager {
	return &SecretManager{keyring: km}
}

// GetOrCreateSecret returns the stored signing secret, generating and storing
// a fresh one if none exists yet
func (m *SecretManager) GetOrCreateSecret() ([]byte, error) {
	stored, err := m.keyring.Get(secretService, secretUser)
	if err == nil && stored != "" {
		secret, err := base64.StdEncoding.DecodeString(stored)
		if err != nil {
			return nil, fmt.Errorf("failed to decode stored signing secret: %w", err)
		}
		return secret, nil
	}

	secret := make([]byte, secretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate signing secret: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(secret)
	if err := m.keyring.Set(secretService, secretUser, encoded); err != nil {
		return nil, fmt.Errorf("failed to store signing secret: %w", err)
	}

	return secret, nil
}
