// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

// Package credentials decrypts the panel passwords stored by the backend.
//
// Two ciphertext formats are accepted with the same shared key:
//
//   - OpenSSL passphrase format ("U2FsdGVkX1..." in base64): AES-256-CBC with
//     PKCS#7 padding, key and IV derived with EVP_BytesToKey over MD5. This is
//     what the backend has always written.
//   - "v1:" prefixed tokens: AES-256-GCM with a 12-byte nonce, key derived
//     from the shared key with HKDF-SHA256.
package credentials

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5" //nolint:gosec // EVP_BytesToKey of the stored format is defined over MD5
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/hkdf"
)

const (
	hkdfSalt = "panelsync-panel-credentials"
	hkdfInfo = "credential-encryption-v1"

	// v1Prefix marks AES-GCM tokens.
	v1Prefix = "v1:"

	aesKeySize   = 32
	gcmNonceSize = 12
	opensslSalt  = 8
)

// opensslMagic prefixes salted OpenSSL ciphertexts.
var opensslMagic = []byte("Salted__")

var (
	// ErrEmptyKey is returned when no shared key is configured.
	ErrEmptyKey = errors.New("shared key cannot be empty")

	// ErrEmptyCiphertext is returned when a panel has no stored password.
	ErrEmptyCiphertext = errors.New("ciphertext cannot be empty")

	// ErrInvalidCiphertext is returned when the ciphertext format is not recognized.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")

	// ErrDecryptionFailed is returned when decryption fails (wrong key or tampered data).
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Cipher decrypts stored panel passwords with the shared key.
type Cipher struct {
	passphrase []byte
	gcm        cipher.AEAD
}

// NewCipher creates a Cipher for the shared key.
func NewCipher(sharedKey string) (*Cipher, error) {
	if sharedKey == "" {
		return nil, ErrEmptyKey
	}

	key, err := deriveKey(sharedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Cipher{passphrase: []byte(sharedKey), gcm: gcm}, nil
}

// Decrypt returns the plaintext of a stored password in either format.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	ciphertext = strings.TrimSpace(ciphertext)
	if ciphertext == "" {
		return "", ErrEmptyCiphertext
	}
	if strings.HasPrefix(ciphertext, v1Prefix) {
		return c.decryptV1(strings.TrimPrefix(ciphertext, v1Prefix))
	}
	return c.decryptOpenSSL(ciphertext)
}

// EncryptV1 produces a "v1:" token for plaintext.
func (c *Cipher) EncryptV1(plaintext string) (string, error) {
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return v1Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) decryptV1(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed: %s", ErrInvalidCiphertext, err.Error())
	}
	if len(data) < gcmNonceSize+1+c.gcm.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrInvalidCiphertext)
	}
	plaintext, err := c.gcm.Open(nil, data[:gcmNonceSize], data[gcmNonceSize:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

func (c *Cipher) decryptOpenSSL(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed: %s", ErrInvalidCiphertext, err.Error())
	}
	header := len(opensslMagic) + opensslSalt
	if len(data) <= header || !bytes.HasPrefix(data, opensslMagic) {
		return "", fmt.Errorf("%w: missing salt header", ErrInvalidCiphertext)
	}
	body := data[header:]
	if len(body)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: body is not block aligned", ErrInvalidCiphertext)
	}

	key, iv := evpBytesToKey(c.passphrase, data[len(opensslMagic):header])
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create AES cipher: %w", err)
	}
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	plain, err = pkcs7Unpad(plain)
	if err != nil || !utf8.Valid(plain) {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// evpBytesToKey derives a 32-byte key and 16-byte IV the way OpenSSL does
// for "enc -md md5" with a single iteration.
func evpBytesToKey(passphrase, salt []byte) (key, iv []byte) {
	var derived, prev []byte
	for len(derived) < aesKeySize+aes.BlockSize {
		h := md5.New() //nolint:gosec // see import
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:aesKeySize], derived[aesKeySize : aesKeySize+aes.BlockSize]
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrDecryptionFailed
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, ErrDecryptionFailed
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrDecryptionFailed
		}
	}
	return b[:len(b)-n], nil
}

// deriveKey derives the AES-GCM key from the shared key using HKDF-SHA256.
func deriveKey(sharedKey string) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(sharedKey), []byte(hkdfSalt), []byte(hkdfInfo))
	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to read HKDF output: %w", err)
	}
	return key, nil
}
