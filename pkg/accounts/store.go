package accounts

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"igtail/pkg/config"
)

// Store loads and saves the complete account list.
type Store interface {
	Load(ctx context.Context) ([]*Account, error)
	Save(ctx context.Context, accounts []*Account) error
}

// OpenStore builds the backend selected by cfg.Store. The returned closer
// releases backend resources and is never nil.
func OpenStore(cfg config.AccountsConfig) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store {
	case config.StoreJSON, "":
		return NewJSONStore(cfg.Path), noop, nil
	case config.StoreEncrypted:
		s, err := NewEncryptedStore(cfg.Path, cfg.Passphrase)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case config.StoreKeyring:
		s, err := NewKeyringStore(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case config.StoreSQLite:
		s, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown accounts store %q", cfg.Store)
	}
}

func encodeAccounts(accounts []*Account) ([]byte, error) {
	if accounts == nil {
		accounts = []*Account{}
	}
	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal accounts: %w", err)
	}
	return data, nil
}

func decodeAccounts(data []byte) ([]*Account, error) {
	var accounts []*Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("parse accounts: %w", err)
	}
	return accounts, nil
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
