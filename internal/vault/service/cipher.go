package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/bolibana/boutique/internal/vault/domain"
)

const masterKeyLen = 32

// NormalizeMasterKey turns a user-supplied key string into 32 raw bytes. It
// tolerates surrounding whitespace, quotes and b'...' wrappers, and attempts
// one base64 re-decode before failing closed.
func NormalizeMasterKey(raw string) ([]byte, error) {
	value := strings.TrimSpace(raw)
	if strings.HasPrefix(value, "b'") && strings.HasSuffix(value, "'") {
		value = value[2 : len(value)-1]
	}
	value = strings.Trim(value, `'"`)
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, domain.ErrNoMasterKey
	}

	decoded, err := decodeBase64(value)
	if err != nil {
		return nil, domain.ErrBadMasterKey
	}
	if len(decoded) == masterKeyLen {
		return decoded, nil
	}

	// Some deployments double-encode the key; try one more round.
	redecoded, err := decodeBase64(strings.TrimSpace(string(decoded)))
	if err == nil && len(redecoded) == masterKeyLen {
		return redecoded, nil
	}
	return nil, domain.ErrBadMasterKey
}

func decodeBase64(value string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	} {
		if decoded, err := enc.DecodeString(value); err == nil {
			return decoded, nil
		}
	}
	return nil, fmt.Errorf("not base64")
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func encrypt(aead cipher.AEAD, plaintext string) (string, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func decrypt(aead cipher.AEAD, ciphertext string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", domain.ErrDecryption
	}
	if len(sealed) < aead.NonceSize() {
		return "", domain.ErrDecryption
	}
	nonce, body := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", domain.ErrDecryption
	}
	return string(plaintext), nil
}
