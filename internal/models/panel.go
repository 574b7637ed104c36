// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

// Package models defines the data exchanged between the backend, the panel
// gateway and the synchronization engine.
//
// JSON tags follow the wire format of the deployed services, which is why
// most of them are in Spanish.
package models

import "fmt"

// Modality identifies how a subject authenticated at a panel. The numeric
// values are the event codes understood by the gateway.
type Modality int

const (
	ModalityQR          Modality = 1
	ModalityFingerprint Modality = 38
	ModalityFace        Modality = 75
)

// AllModalities returns the modalities queried for every panel.
func AllModalities() []Modality {
	return []Modality{ModalityFace, ModalityQR, ModalityFingerprint}
}

func (m Modality) String() string {
	switch m {
	case ModalityFace:
		return "face"
	case ModalityQR:
		return "qr"
	case ModalityFingerprint:
		return "fingerprint"
	default:
		return fmt.Sprintf("modality(%d)", int(m))
	}
}

// Panel is an access-control panel as registered in the backend.
// The list is fetched fresh on every cycle and never modified here.
type Panel struct {
	ID                string `json:"_id"`
	Name              string `json:"nombre"`
	Address           string `json:"direccion_ip"`
	Username          string `json:"usuario"`
	EncryptedPassword string `json:"contrasena"`
	CheckKind         int    `json:"tipo_evento"`
	AppointmentsOn    bool   `json:"habilitar_citas"`
}

// PanelCredentials are the plaintext credentials sent to the gateway.
type PanelCredentials struct {
	Address  string `json:"direccion_ip"`
	Username string `json:"usuario"`
	Password string `json:"contrasena"`
}

// String never prints the password.
func (c PanelCredentials) String() string {
	return c.Username + "@" + c.Address
}
