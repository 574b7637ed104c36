// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package sync

import (
	"testing"
	"time"

	"github.com/tomtom215/panelsync/internal/models"
)

func TestNormalize(t *testing.T) {
	panel := testPanel(1)
	panel.CheckKind = 2
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ts := []byte(`"2024-03-01T10:00:00Z"`)

	raws := []models.RawEvent{
		{Subject: []byte(`"1042"`), Time: ts, PictureURL: "http://panel/pic/1", Modality: models.ModalityFace},
		{Subject: []byte(`"QR-77"`), Time: ts, Modality: models.ModalityQR},
		{Subject: []byte(`1042`), Time: ts},
		{Subject: []byte(`null`), Time: ts},
		{Subject: []byte(`""`), Time: ts},
		{Time: ts},
		{Subject: []byte(`{"id":"1"}`), Time: ts},
		{Subject: []byte(`"1043"`), Time: []byte(`"yesterday"`)},
	}

	events, dropped := Normalize(panel, raws)
	if dropped != 6 {
		t.Errorf("dropped = %d, want 6", dropped)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}

	face := events[0]
	if face.SubjectID != "1042" || face.ImageRef != "http://panel/pic/1" {
		t.Errorf("face event = %+v", face)
	}
	if face.DeviceKind != models.DeviceKindPanel {
		t.Errorf("DeviceKind = %d, want %d", face.DeviceKind, models.DeviceKindPanel)
	}
	if face.CheckKind != 2 || face.PanelID != panel.ID {
		t.Errorf("CheckKind/PanelID = %d/%s", face.CheckKind, face.PanelID)
	}
	if !face.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", face.CreatedAt, at)
	}
	if face.Modality != models.ModalityFace {
		t.Errorf("Modality = %v", face.Modality)
	}

	qr := events[1]
	if qr.ImageRef != models.QRSentinel {
		t.Errorf("ImageRef = %q, want QR sentinel", qr.ImageRef)
	}
	if qr.NeedsImage() {
		t.Error("QR event must not need an image")
	}
}

func TestNormalizeEmpty(t *testing.T) {
	events, dropped := Normalize(testPanel(1), nil)
	if len(events) != 0 || dropped != 0 {
		t.Errorf("Normalize(nil) = %d events, %d dropped", len(events), dropped)
	}
}
