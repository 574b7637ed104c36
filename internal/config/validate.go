// Panelsync - Access Panel Event Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/panelsync

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig marks configuration errors. They are fatal at startup.
var ErrInvalidConfig = errors.New("invalid configuration")

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator, reporting fields by their koanf path.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	checks := []func() error{
		c.validateDurations,
		c.validateSyncWindow,
		c.validateLedger,
		c.validateOptionalServices,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	path := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return path + " is required"
	case "url":
		return fmt.Sprintf("%s must be an absolute URL, got %q", path, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", path, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s=%s", path, fe.Tag(), fe.Param())
	}
}

func (c *Config) validateDurations() error {
	positive := map[string]time.Duration{
		"backend.timeout":       c.Backend.Timeout,
		"gateway.timeout":       c.Gateway.Timeout,
		"gateway.image_timeout": c.Gateway.ImageTimeout,
		"sync.interval":         c.Sync.Interval,
		"sync.lookback":         c.Sync.Lookback,
	}
	for name, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Sync.Overlap < 0 || c.Sync.Skew < 0 || c.Sync.CycleTimeout < 0 {
		return errors.New("sync.overlap, sync.skew and sync.cycle_timeout must not be negative")
	}
	return nil
}

func (c *Config) validateSyncWindow() error {
	if c.Sync.Overlap >= c.Sync.Lookback {
		return fmt.Errorf("sync.overlap (%s) must be shorter than sync.lookback (%s)", c.Sync.Overlap, c.Sync.Lookback)
	}
	return nil
}

// validateLedger requires the ledger to remember keys at least as long as
// the overlap band they protect.
func (c *Config) validateLedger() error {
	switch c.Ledger.Backend {
	case "disabled":
		return nil
	case "badger":
		if c.Ledger.Path == "" {
			return errors.New("ledger.path is required when ledger.backend=badger")
		}
	}
	if c.Ledger.TTL < c.Sync.Overlap+c.Sync.Skew {
		return fmt.Errorf("ledger.ttl (%s) must cover sync.overlap + sync.skew (%s)", c.Ledger.TTL, c.Sync.Overlap+c.Sync.Skew)
	}
	return nil
}

func (c *Config) validateOptionalServices() error {
	if c.NATS.Enabled && c.NATS.URL == "" {
		return errors.New("nats.url is required when nats.enabled=true")
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		return errors.New("server.addr is required when server.enabled=true")
	}
	return nil
}
