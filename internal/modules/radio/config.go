package radio

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

// Audio backends.
const (
	BackendFFmpeg   = "ffmpeg"
	BackendLavalink = "lavalink"
)

// State store backends.
const (
	StateBackendJSON   = "json"
	StateBackendSQLite = "sqlite"
)

// Config holds the radio module configuration.
type Config struct {
	AudioBackend     string `env:"RADIO_AUDIO_BACKEND" envDefault:"ffmpeg"`
	LavalinkAddress  string `env:"LAVALINK_ADDRESS"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD"`
	LavalinkSecure   bool   `env:"LAVALINK_SECURE" envDefault:"false"`
	FFmpegPath       string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`

	MaxRetries     int           `env:"RADIO_MAX_RETRIES" envDefault:"3"`
	RetryDelay     time.Duration `env:"RADIO_RETRY_DELAY" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"RADIO_CONNECT_TIMEOUT" envDefault:"60s"`

	PersistenceEnabled bool   `env:"RADIO_PERSISTENCE_ENABLED" envDefault:"true"`
	StateBackend       string `env:"RADIO_STATE_BACKEND" envDefault:"json"`
	StatePath          string `env:"RADIO_STATE_PATH"`

	MetadataEnabled  bool          `env:"RADIO_METADATA_ENABLED" envDefault:"true"`
	MetadataInterval time.Duration `env:"RADIO_METADATA_INTERVAL" envDefault:"30s"`
	MetadataTimeout  time.Duration `env:"RADIO_METADATA_TIMEOUT" envDefault:"5s"`

	// Stations maps display names to stream URLs, e.g. "Lofi=https://...,Jazz=https://...".
	Stations map[string]string `env:"RADIO_STATIONS" envKeyValSeparator:"="`
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	var errs []error

	switch c.AudioBackend {
	case BackendFFmpeg:
	case BackendLavalink:
		if c.LavalinkAddress == "" || c.LavalinkPassword == "" {
			errs = append(errs, errors.New("lavalink backend requires LAVALINK_ADDRESS and LAVALINK_PASSWORD"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown audio backend %q", c.AudioBackend))
	}

	if c.PersistenceEnabled {
		switch c.StateBackend {
		case StateBackendJSON, StateBackendSQLite:
		default:
			errs = append(errs, fmt.Errorf("unknown state backend %q", c.StateBackend))
		}
	}

	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("RADIO_MAX_RETRIES must not be negative"))
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"RADIO_RETRY_DELAY", c.RetryDelay},
		{"RADIO_CONNECT_TIMEOUT", c.ConnectTimeout},
		{"RADIO_METADATA_INTERVAL", c.MetadataInterval},
		{"RADIO_METADATA_TIMEOUT", c.MetadataTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", d.name))
		}
	}

	// Station names are matched case-insensitively.
	seen := make(map[string]string, len(c.Stations))
	for _, name := range slices.Sorted(maps.Keys(c.Stations)) {
		if !domain.IsStreamURL(c.Stations[name]) {
			errs = append(errs, fmt.Errorf("station %q has an invalid URL", name))
		}
		key := strings.ToLower(name)
		if other, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("stations %q and %q differ only in case", other, name))
			continue
		}
		seen[key] = name
	}

	return errors.Join(errs...)
}

// statePath returns the configured state file, defaulting per backend.
func (c *Config) statePath() string {
	if c.StatePath != "" {
		return c.StatePath
	}
	if c.StateBackend == StateBackendSQLite {
		return "radio_state.db"
	}
	return "radio_state.json"
}

// stations returns the predefined stations.
func (c *Config) stations() domain.Stations {
	return domain.Stations(c.Stations)
}
