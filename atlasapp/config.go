/*
	VoyageAtlas
	Copyright (c) 2025 The VoyageAtlas Authors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package atlasapp

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/voyageatlas/voyageatlas/cluster"
	"github.com/voyageatlas/voyageatlas/geocode"
	"github.com/voyageatlas/voyageatlas/voyage"
	"go.uber.org/zap"
)

// Environment variables that override the config file.
const (
	EnvNominatimURL = "VOYAGE_NOMINATIM_URL"
	EnvCacheDB      = "VOYAGE_CACHE_DB"
)

// Config describes the application configuration.
type Config struct {
	// Base URL of the Nominatim service used for remote geocoding.
	NominatimURL string `json:"nominatim_url,omitempty"`

	// Sent with every Nominatim request, as required by its usage policy.
	UserAgent string `json:"user_agent,omitempty"`

	// Language of place names returned by reverse geocoding.
	Language string `json:"language,omitempty"`

	// Per-request geocoding timeout. A request that times out
	// has no result.
	Timeout Duration `json:"timeout,omitempty"`

	// Remote geocoding rate limit. The public Nominatim instance
	// allows at most 1 request per second.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`

	// Turns off remote geocoding entirely; only the built-in
	// place table is used and coordinates are not resolved to places.
	Offline bool `json:"offline,omitempty"`

	// Path of the sqlite database that caches reverse geocoding
	// results. Defaults to a file in the user cache directory.
	CacheDB string `json:"cache_db,omitempty"`

	// Turns off the reverse geocoding cache.
	DisableCache bool `json:"disable_cache,omitempty"`

	// Turns off time zone annotation of media with coordinates.
	DisableTimeZones bool `json:"disable_time_zones,omitempty"`

	// Number of files analyzed concurrently. Defaults to the number of CPUs.
	Workers int `json:"workers,omitempty"`

	// Clustering thresholds between consecutive media of an event.
	TimeThreshold       Duration `json:"time_threshold,omitempty"`
	DistanceThresholdKm float64  `json:"distance_threshold_km,omitempty"`

	log *zap.Logger
}

func (cfg *Config) fillDefaults() {
	if cfg.NominatimURL == "" {
		cfg.NominatimURL = geocode.DefaultNominatimURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = geocode.DefaultUserAgent
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = Duration(geocode.DefaultTimeout)
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.CacheDB == "" {
		cfg.CacheDB = filepath.Join(DefaultCacheDir(), "reverse.db")
	}
	if cfg.TimeThreshold <= 0 {
		cfg.TimeThreshold = Duration(cluster.DefaultTimeThreshold)
	}
	if cfg.DistanceThresholdKm <= 0 {
		cfg.DistanceThresholdKm = cluster.DefaultDistanceThresholdKm
	}
	if cfg.log == nil {
		cfg.log = voyage.Log.Named("config").With(zap.Time("loaded", time.Now()))
	}
}

// applyEnv overrides config values with those set in the environment.
func (cfg *Config) applyEnv() {
	if v := os.Getenv(EnvNominatimURL); v != "" {
		cfg.NominatimURL = v
	}
	if v := os.Getenv(EnvCacheDB); v != "" {
		cfg.CacheDB = v
	}
}

func (cfg *Config) clusterOptions() cluster.Options {
	return cluster.Options{
		TimeThreshold:       time.Duration(cfg.TimeThreshold),
		DistanceThresholdKm: cfg.DistanceThresholdKm,
	}
}

// LoadConfig reads the config file at path and applies environment
// overrides. A missing file at the default path is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := new(Config)
	cfgBytes, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && path == DefaultConfigFilePath():
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := json.Unmarshal(cfgBytes, cfg); err != nil {
			return nil, fmt.Errorf("decoding config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// Save writes the config to path as indented JSON.
func (cfg *Config) Save(path string) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	cfgBytes, err := json.MarshalIndent(cfg, "", "\t")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, append(cfgBytes, '\n'), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if cfg.log != nil {
		cfg.log.Info("saved config file", zap.String("path", path))
	}
	return nil
}

// Duration is a time.Duration that is written in JSON as a string
// like "6h" or "5s". Plain numbers are read as seconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var secs float64
		if err2 := json.Unmarshal(b, &secs); err2 != nil {
			return fmt.Errorf("duration must be a string or number of seconds: %w", err)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// DefaultConfigFilePath returns the file path where
// configuration is persisted.
func DefaultConfigFilePath() string {
	cfgDir, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(cfgDir, "voyageatlas", "config.json")
	}
	cfgDir, err = os.UserHomeDir()
	if err == nil {
		return filepath.Join(cfgDir, ".voyageatlas", "config.json")
	}
	return filepath.Join(".voyageatlas", "config.json")
}

// DefaultCacheDir returns the file path where
// a local application cache is persisted.
func DefaultCacheDir() string {
	cacheDir, err := os.UserCacheDir()
	if err == nil {
		return filepath.Join(cacheDir, "voyageatlas")
	}
	homeDir, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(homeDir, ".voyageatlas", "cache")
	}
	return filepath.Join(".voyageatlas", "cache")
}
