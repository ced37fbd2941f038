package accounts

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000
)

// EncryptedStore keeps the account list AES-GCM encrypted under a key derived
// from a passphrase.
type EncryptedStore struct {
	path       string
	passphrase string
}

type encryptedFile struct {
	Salt      string    `json:"salt"`
	Encrypted string    `json:"encrypted"`
	Version   int       `json:"version"`
	Modified  time.Time `json:"modified"`
}

// NewEncryptedStore falls back to IGTAIL_PASSPHRASE when passphrase is empty.
func NewEncryptedStore(path, passphrase string) (*EncryptedStore, error) {
	if passphrase == "" {
		passphrase = os.Getenv("IGTAIL_PASSPHRASE")
	}
	if passphrase == "" {
		return nil, errors.New("encrypted account store requires a passphrase (set IGTAIL_PASSPHRASE)")
	}
	return &EncryptedStore{path: path, passphrase: passphrase}, nil
}

func (s *EncryptedStore) Load(ctx context.Context) ([]*Account, error) {
	content, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []*Account{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read encrypted accounts: %w", err)
	}

	var file encryptedFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("parse encrypted accounts: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(file.Encrypted)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	plain, err := openGCM(sealed, deriveKey(s.passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("decrypt accounts (wrong passphrase?): %w", err)
	}
	return decodeAccounts(plain)
}

// Save re-encrypts the whole list under a fresh salt.
func (s *EncryptedStore) Save(ctx context.Context, accounts []*Account) error {
	plain, err := encodeAccounts(accounts)
	if err != nil {
		return err
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}
	sealed, err := sealGCM(plain, deriveKey(s.passphrase, salt))
	if err != nil {
		return fmt.Errorf("encrypt accounts: %w", err)
	}

	content, err := json.MarshalIndent(encryptedFile{
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Encrypted: base64.StdEncoding.EncodeToString(sealed),
		Version:   1,
		Modified:  time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal encrypted accounts: %w", err)
	}
	return writeFileAtomic(s.path, content, 0600)
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
}

// sealGCM returns nonce || ciphertext.
func sealGCM(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func openGCM(sealed, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
