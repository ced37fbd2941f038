package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "igtail"

// KeyringStore keeps the account list as one JSON secret in the system
// keychain. go-keyring cannot enumerate entries, so the whole list lives
// under a single user key.
type KeyringStore struct {
	user string
}

// NewKeyringStore checks that the keychain is reachable. user names the
// entry and defaults to "accounts".
func NewKeyringStore(user string) (*KeyringStore, error) {
	if user == "" {
		user = "accounts"
	}

	probe := "availability_probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, probe)

	return &KeyringStore{user: user}, nil
}

// Load returns an empty list when the entry does not exist yet.
func (s *KeyringStore) Load(ctx context.Context) ([]*Account, error) {
	secret, err := keyring.Get(keyringService, s.user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return []*Account{}, nil
		}
		return nil, fmt.Errorf("read keyring: %w", err)
	}
	return decodeAccounts([]byte(secret))
}

func (s *KeyringStore) Save(ctx context.Context, accounts []*Account) error {
	data, err := encodeAccounts(accounts)
	if err != nil {
		return err
	}
	if err := keyring.Set(keyringService, s.user, string(data)); err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}
