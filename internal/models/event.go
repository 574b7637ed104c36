// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package models

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	// DeviceKindPanel is the backend device-kind code for access panels.
	DeviceKindPanel = 3

	// QRSentinel replaces the image reference of events without a capture.
	QRSentinel = "QR"

	// LocalTimeLayout is the timestamp layout the gateway expects in windows.
	LocalTimeLayout = "2006-01-02 15:04:05"

	// ingestTimeLayout matches the ISO form the backend stores.
	ingestTimeLayout = "2006-01-02T15:04:05.000Z"
)

var (
	// ErrMissingSubject marks raw events without a usable subject identifier.
	ErrMissingSubject = errors.New("subject identifier is not a non-empty string")

	// ErrInvalidEventTime marks raw events whose time cannot be parsed.
	ErrInvalidEventTime = errors.New("event time is not a valid timestamp")

	// ErrMalformedRecord marks a gateway record that is not a usable object.
	ErrMalformedRecord = errors.New("malformed gateway record")
)

// RawEvent is one record as returned by the gateway for a single modality.
// Subject and Time are kept raw because panels are not consistent about
// their JSON types.
type RawEvent struct {
	Subject    json.RawMessage `json:"employeeNoString"`
	Time       json.RawMessage `json:"time"`
	PictureURL string          `json:"pictureURL,omitempty"`

	// Modality is set by the fetcher, it is not part of the gateway payload.
	Modality Modality `json:"-"`
}

// UnmarshalJSON decodes one gateway record. A record that is not an object,
// or whose pictureURL is neither a string nor null, fails with
// ErrMalformedRecord so that the caller can drop it alone.
func (r *RawEvent) UnmarshalJSON(data []byte) error {
	var aux struct {
		Subject    json.RawMessage `json:"employeeNoString"`
		Time       json.RawMessage `json:"time"`
		PictureURL json.RawMessage `json:"pictureURL"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	picture := ""
	if raw := bytes.TrimSpace(aux.PictureURL); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if raw[0] != '"' {
			return fmt.Errorf("%w: pictureURL is not a string: %s", ErrMalformedRecord, raw)
		}
		if err := json.Unmarshal(raw, &picture); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedRecord, err)
		}
	}

	r.Subject = aux.Subject
	r.Time = aux.Time
	r.PictureURL = picture
	return nil
}

// SubjectID returns the subject identifier when it is a non-empty JSON string.
func (r RawEvent) SubjectID() (string, error) {
	raw := bytes.TrimSpace(r.Subject)
	if len(raw) == 0 || raw[0] != '"' {
		return "", ErrMissingSubject
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", ErrMissingSubject
	}
	if s == "" {
		return "", ErrMissingSubject
	}
	return s, nil
}

// EventTime parses the record time. Numbers are epoch milliseconds; strings
// may be RFC 3339 or the local layout.
func (r RawEvent) EventTime() (time.Time, error) {
	raw := bytes.TrimSpace(r.Time)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, ErrInvalidEventTime
	}
	if raw[0] != '"' {
		ms, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidEventTime, raw)
		}
		return time.UnixMilli(int64(ms)), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidEventTime, raw)
	}
	return ParseTimestamp(s)
}

// ParseTimestamp accepts the timestamp forms seen from panels.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if t, err := time.ParseInLocation(LocalTimeLayout, s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidEventTime, s)
}

// AccessEvent is the canonical, panel-independent form of an access event.
type AccessEvent struct {
	SubjectID  string    `json:"subject_id"`
	DeviceKind int       `json:"device_kind"`
	CreatedAt  time.Time `json:"created_at"`
	ImageRef   string    `json:"image_ref"`
	CheckKind  int       `json:"check_kind"`
	PanelID    string    `json:"panel_id"`
	Modality   Modality  `json:"modality"`
}

// NeedsImage reports whether the event carries a capture to fetch.
func (e AccessEvent) NeedsImage() bool {
	return e.ImageRef != "" && e.ImageRef != QRSentinel
}

// IdempotencyKey identifies an event across overlapping windows.
func (e AccessEvent) IdempotencyKey() string {
	return e.PanelID + "|" + e.SubjectID + "|" + strconv.FormatInt(e.CreatedAt.UnixMilli(), 10)
}

// IngestRecord is the body the backend ingestion endpoint expects under "datos".
type IngestRecord struct {
	SubjectID  string `json:"ID"`
	DeviceKind int    `json:"tipo_dispositivo"`
	CreatedAt  string `json:"fecha_creacion"`
	Image      string `json:"img_check"`
	CheckKind  int    `json:"tipo_check_panel"`
	PanelID    string `json:"id_panel"`
}

// NewIngestRecord builds the backend payload for e with the fetched image
// (base64, possibly empty).
func NewIngestRecord(e AccessEvent, image string) IngestRecord {
	return IngestRecord{
		SubjectID:  e.SubjectID,
		DeviceKind: e.DeviceKind,
		CreatedAt:  e.CreatedAt.UTC().Format(ingestTimeLayout),
		Image:      image,
		CheckKind:  e.CheckKind,
		PanelID:    e.PanelID,
	}
}
