// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package credentials

import (
	"errors"
	"fmt"

	"github.com/tomtom215/panelsync/internal/models"
)

// ErrCredential marks a panel whose credentials cannot be resolved.
var ErrCredential = errors.New("panel credentials unavailable")

// Resolver turns a registered panel into the credentials sent to the gateway.
type Resolver interface {
	Resolve(panel models.Panel) (models.PanelCredentials, error)
}

// CipherResolver resolves credentials by decrypting the stored password.
type CipherResolver struct {
	cipher *Cipher
}

// NewResolver creates a Resolver for the shared key.
func NewResolver(sharedKey string) (*CipherResolver, error) {
	c, err := NewCipher(sharedKey)
	if err != nil {
		return nil, err
	}
	return &CipherResolver{cipher: c}, nil
}

// Resolve implements Resolver. Every failure wraps ErrCredential.
func (r *CipherResolver) Resolve(panel models.Panel) (models.PanelCredentials, error) {
	password, err := r.cipher.Decrypt(panel.EncryptedPassword)
	if err != nil {
		return models.PanelCredentials{}, fmt.Errorf("%w: panel %s: %w", ErrCredential, panel.ID, err)
	}
	if password == "" {
		return models.PanelCredentials{}, fmt.Errorf("%w: panel %s: decrypted password is empty", ErrCredential, panel.ID)
	}
	return models.PanelCredentials{
		Address:  panel.Address,
		Username: panel.Username,
		Password: password,
	}, nil
}
