package accounts

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// JSONStore keeps accounts as a plain JSON array on disk.
type JSONStore struct {
	path string
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads the accounts file. A file that does not exist yet holds no accounts.
func (s *JSONStore) Load(ctx context.Context) ([]*Account, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*Account{}, nil
		}
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	return decodeAccounts(data)
}

func (s *JSONStore) Save(ctx context.Context, accounts []*Account) error {
	data, err := encodeAccounts(accounts)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data, 0600)
}
