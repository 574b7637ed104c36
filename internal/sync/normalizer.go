// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package sync

import (
	"errors"

	"github.com/tomtom215/panelsync/internal/metrics"
	"github.com/tomtom215/panelsync/internal/models"
)

// Normalize maps raw gateway records of panel to access events. Records
// without a string subject or with an unparseable time are dropped; the
// number dropped is returned alongside the events.
func Normalize(panel models.Panel, raws []models.RawEvent) ([]models.AccessEvent, int) {
	events := make([]models.AccessEvent, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		ev, err := normalizeOne(panel, raw)
		if err != nil {
			dropped++
			metrics.RecordsDropped.WithLabelValues(dropReason(err)).Inc()
			continue
		}
		events = append(events, ev)
	}
	return events, dropped
}

func normalizeOne(panel models.Panel, raw models.RawEvent) (models.AccessEvent, error) {
	subject, err := raw.SubjectID()
	if err != nil {
		return models.AccessEvent{}, err
	}
	created, err := raw.EventTime()
	if err != nil {
		return models.AccessEvent{}, err
	}
	image := raw.PictureURL
	if image == "" {
		image = models.QRSentinel
	}
	return models.AccessEvent{
		SubjectID:  subject,
		DeviceKind: models.DeviceKindPanel,
		CreatedAt:  created,
		ImageRef:   image,
		CheckKind:  panel.CheckKind,
		PanelID:    panel.ID,
		Modality:   raw.Modality,
	}, nil
}

func dropReason(err error) string {
	if errors.Is(err, models.ErrInvalidEventTime) {
		return "invalid_time"
	}
	return "missing_subject"
}
