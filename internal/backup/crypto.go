package backup

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// magic prefixes every encrypted snapshot.
var magic = []byte("VLB1")

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4
)

var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted backup")

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext with a key derived from passphrase.
// Layout: magic, 16-byte salt, 12-byte nonce, AES-256-GCM ciphertext.
func Seal(plaintext []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	gcm, err := newGCM(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(magic)+saltSize+nonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, magic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	// The header is authenticated along with the payload.
	aad := append([]byte(nil), out[:len(magic)+saltSize]...)
	return gcm.Seal(out, nonce, plaintext, aad), nil
}

// Open reverses Seal.
func Open(data []byte, passphrase string) ([]byte, error) {
	header := len(magic) + saltSize
	if !Encrypted(data) || len(data) < header+nonceSize {
		return nil, errors.New("not an encrypted backup")
	}
	salt := data[len(magic):header]
	nonce := data[header : header+nonceSize]

	gcm, err := newGCM(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, data[header+nonceSize:], data[:header])
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}

// Encrypted reports whether data starts with the encrypted snapshot header.
func Encrypted(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}
