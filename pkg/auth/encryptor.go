package auth

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/nacl/box"
	"igtail/pkg/config"
	"igtail/pkg/logger"
)

const (
	passwordTemplate = "#PWD_INSTAGRAM_BROWSER:%d:%d:%s"
	symmetricKeySize = 32
	gcmTagSize       = 16
)

// KeyMaterial is the platform's current password-encryption public key.
type KeyMaterial struct {
	KeyID     int
	Version   int
	PublicKey [32]byte
}

// Encryptor seals passwords the way the web client does before login.
type Encryptor struct {
	source *sharedDataSource
	now    func() time.Time
	rand   io.Reader
}

// NewEncryptor fetches key material through client using the shared data
// URLs in cfg.
func NewEncryptor(client *http.Client, cfg config.InstagramConfig, log logger.Logger) *Encryptor {
	if log == nil {
		log = logger.WithComponent("auth")
	}
	return &Encryptor{
		source: &sharedDataSource{
			client:      client,
			primaryURL:  cfg.SharedDataURL,
			fallbackURL: cfg.SharedDataFallbackURL,
			userAgent:   cfg.UserAgent,
			logger:      log,
		},
		now:  time.Now,
		rand: rand.Reader,
	}
}

// KeyMaterial fetches the current public key, trying the mirror once if the
// primary endpoint fails or lacks a field.
func (e *Encryptor) KeyMaterial(ctx context.Context) (KeyMaterial, error) {
	var km KeyMaterial
	_, err := e.source.load(ctx, false, func(d *sharedData) error {
		if d.Encryption == nil {
			return errors.New("encryption block missing")
		}
		parsed, err := parseKeyMaterial(int(d.Encryption.KeyID), int(d.Encryption.Version), d.Encryption.PublicKey)
		if err != nil {
			return err
		}
		km = parsed
		return nil
	})
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("fetch encryption key: %w", err)
	}
	return km, nil
}

func parseKeyMaterial(keyID, version int, publicKeyHex string) (KeyMaterial, error) {
	if keyID < 0 || keyID > 255 {
		return KeyMaterial{}, fmt.Errorf("key id %d does not fit in a byte", keyID)
	}
	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return KeyMaterial{}, fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != 32 {
		return KeyMaterial{}, fmt.Errorf("public key is %d bytes, want 32", len(raw))
	}
	km := KeyMaterial{KeyID: keyID, Version: version}
	copy(km.PublicKey[:], raw)
	return km, nil
}

// Encrypt returns the sealed password string accepted by the login endpoint.
func (e *Encryptor) Encrypt(ctx context.Context, password string) (string, error) {
	km, err := e.KeyMaterial(ctx)
	if err != nil {
		return "", err
	}
	return sealPassword(km, password, e.now().Unix(), e.rand)
}

// sealPassword encrypts password with a fresh AES-256-GCM key under a zero
// nonce, binding the timestamp as associated data, then wraps the key in an
// anonymous sealed box. Layout before base64:
//
//	[1][key id][len(wrapped key) uint16 LE][wrapped key][tag 16][ciphertext]
func sealPassword(km KeyMaterial, password string, timestamp int64, random io.Reader) (string, error) {
	key := make([]byte, symmetricKeySize)
	if _, err := io.ReadFull(random, key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	aad := []byte(strconv.FormatInt(timestamp, 10))
	sealed := gcm.Seal(nil, nonce, []byte(password), aad)
	ciphertext, tag := sealed[:len(sealed)-gcmTagSize], sealed[len(sealed)-gcmTagSize:]

	wrappedKey, err := box.SealAnonymous(nil, key, &km.PublicKey, random)
	if err != nil {
		return "", fmt.Errorf("seal key: %w", err)
	}

	buf := make([]byte, 0, 4+len(wrappedKey)+gcmTagSize+len(ciphertext))
	buf = append(buf, 1, byte(km.KeyID))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(wrappedKey)))
	buf = append(buf, wrappedKey...)
	buf = append(buf, tag...)
	buf = append(buf, ciphertext...)

	return fmt.Sprintf(passwordTemplate, km.Version, timestamp, base64.StdEncoding.EncodeToString(buf)), nil
}
