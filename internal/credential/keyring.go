package credential

import (
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "rally"

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/rally/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("rally-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// sourceKey is the keyring key for a calendar source's app-scoped password.
func sourceKey(sourceID string) string {
	return "caldav-password:" + sourceID
}

// SourcePassword retrieves the stored app-scoped password for a calendar
// source. Used when the source row in the database carries no password.
func SourcePassword(sourceID string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(sourceKey(sourceID))
	if err != nil {
		return "", fmt.Errorf("getting credential for source %q: %w", sourceID, err)
	}

	return string(item.Data), nil
}

// SetSourcePassword stores the app-scoped password for a calendar source in
// the system keyring.
func SetSourcePassword(sourceID, password string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  sourceKey(sourceID),
		Data: []byte(password),
	})
	if err != nil {
		return fmt.Errorf("setting credential for source %q: %w", sourceID, err)
	}

	return nil
}

// DeleteSourcePassword removes a calendar source's stored password.
func DeleteSourcePassword(sourceID string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(sourceKey(sourceID))
	if err != nil {
		return fmt.Errorf("deleting credential for source %q: %w", sourceID, err)
	}

	return nil
}
