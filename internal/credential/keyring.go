// Package credential reads secrets from the OS keyring when they are not
// supplied through the environment.
package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "noticecal"

// Keyring opens the platform keyring on first use.
type Keyring struct {
	open func() (keyring.Keyring, error)
	ring keyring.Keyring
}

// New returns a Keyring using the platform backends, falling back to an
// encrypted file under fileDir.
func New(fileDir string) *Keyring {
	return &Keyring{open: func() (keyring.Keyring, error) {
		return keyring.Open(keyring.Config{
			ServiceName: serviceName,
			AllowedBackends: []keyring.BackendType{
				keyring.KeychainBackend,
				keyring.SecretServiceBackend,
				keyring.WinCredBackend,
				keyring.PassBackend,
				keyring.FileBackend,
			},
			FileDir:                  fileDir,
			FilePasswordFunc:         keyring.FixedStringPrompt(serviceName + "-file-key"),
			KeychainTrustApplication: true,
		})
	}}
}

// NewFromRing wraps an already opened keyring.
func NewFromRing(ring keyring.Keyring) *Keyring {
	return &Keyring{ring: ring}
}

func (k *Keyring) ringOrOpen() (keyring.Keyring, error) {
	if k.ring != nil {
		return k.ring, nil
	}
	ring, err := k.open()
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	k.ring = ring
	return ring, nil
}

// Get retrieves a credential value by key.
func (k *Keyring) Get(key string) (string, error) {
	ring, err := k.ringOrOpen()
	if err != nil {
		return "", err
	}
	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a credential value by key.
func (k *Keyring) Set(key, value string) error {
	ring, err := k.ringOrOpen()
	if err != nil {
		return err
	}
	if err := ring.Set(keyring.Item{Key: key, Data: []byte(value)}); err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}
