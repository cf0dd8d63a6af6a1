package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "gridsight-cli"
)

type keyringStore struct {
	key string
}

// getKeyringKey returns a unique key for storing sessions per server
func getKeyringKey(server string) string {
	return fmt.Sprintf("session-%s", server)
}

// NewKeyring returns a store that keeps the session in the OS keychain/credential manager.
// Token and role live in a single keychain entry.
func NewKeyring(server string) Store {
	return &keyringStore{key: getKeyringKey(server)}
}

func (k *keyringStore) Load(_ context.Context) (Session, error) {
	raw, err := keyring.Get(keyringService, k.key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return Session{}, nil
		}
		return Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	return decode([]byte(raw))
}

func (k *keyringStore) Save(_ context.Context, s Session) error {
	if err := validateForSave(s); err != nil {
		return err
	}
	data, err := encode(s)
	if err != nil {
		return err
	}
	if err := keyring.Set(keyringService, k.key, string(data)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (k *keyringStore) Clear(_ context.Context) error {
	if err := keyring.Delete(keyringService, k.key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already cleared
		}
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
