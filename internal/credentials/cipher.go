// Package credentials encrypts third-party AI keys at rest and resolves them for the
// provider factory.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const (
	hkdfInfo  = "openscribe-api-keys"
	keySize   = 32
	nonceSize = 16
	tagSize   = 16
)

var ErrDecrypt = errors.New("credential decryption failed")

// Sealed is the hex-encoded at-rest form of a secret.
type Sealed struct {
	Ciphertext string
	IV         string
	AuthTag    string
}

// Cipher seals secrets with AES-256-GCM under a key derived per owner from the master key
// with HKDF-SHA256 (salt: owner id, info: openscribe-api-keys).
type Cipher struct {
	master []byte
}

func NewCipher(masterKey []byte) (*Cipher, error) {
	if len(masterKey) != keySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", keySize, len(masterKey))
	}
	return &Cipher{master: append([]byte(nil), masterKey...)}, nil
}

func (c *Cipher) aead(ownerID uuid.UUID) (cipher.AEAD, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, c.master, []byte(ownerID.String()), []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}

// Encrypt seals plaintext for ownerID with a fresh random IV.
func (c *Cipher) Encrypt(ownerID uuid.UUID, plaintext string) (Sealed, error) {
	aead, err := c.aead(ownerID)
	if err != nil {
		return Sealed{}, err
	}
	iv := make([]byte, nonceSize)
	if _, err := rand.Read(iv); err != nil {
		return Sealed{}, fmt.Errorf("generate iv: %w", err)
	}
	out := aead.Seal(nil, iv, []byte(plaintext), nil)
	body, tag := out[:len(out)-tagSize], out[len(out)-tagSize:]
	return Sealed{
		Ciphertext: hex.EncodeToString(body),
		IV:         hex.EncodeToString(iv),
		AuthTag:    hex.EncodeToString(tag),
	}, nil
}

// Decrypt opens s for ownerID. A wrong owner, master key or tampered field yields ErrDecrypt.
func (c *Cipher) Decrypt(ownerID uuid.UUID, s Sealed) (string, error) {
	aead, err := c.aead(ownerID)
	if err != nil {
		return "", err
	}
	body, err := hex.DecodeString(s.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext: %v", ErrDecrypt, err)
	}
	iv, err := hex.DecodeString(s.IV)
	if err != nil || len(iv) != nonceSize {
		return "", fmt.Errorf("%w: invalid iv", ErrDecrypt)
	}
	tag, err := hex.DecodeString(s.AuthTag)
	if err != nil || len(tag) != tagSize {
		return "", fmt.Errorf("%w: invalid auth tag", ErrDecrypt)
	}
	plain, err := aead.Open(nil, iv, append(body, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plain), nil
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
