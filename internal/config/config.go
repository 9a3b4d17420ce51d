// Package config loads the stellar-meta YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edumarques81/stellar-metadata/internal/domain/metadata"
)

// Cache backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// MPDConfig locates the MPD server used by nowplaying and lyrics --follow.
type MPDConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	MusicDir string `yaml:"music_dir"`
}

// Config contains the program configuration
type Config struct {
	CacheBackend     string `yaml:"cache_backend"`
	CachePath        string `yaml:"cache_path"`
	CoverCacheDir    string `yaml:"cover_cache_dir"`
	CoverSize        int    `yaml:"cover_size"`
	CoverConcurrency int    `yaml:"cover_concurrency"`

	MusicBrainzURL string `yaml:"musicbrainz_url"`
	CoverArtURL    string `yaml:"coverart_url"`
	LRCLibURL      string `yaml:"lrclib_url"`
	AcoustIDURL    string `yaml:"acoustid_url"`
	AcoustIDAPIKey string `yaml:"acoustid_api_key"`
	FpcalcPath     string `yaml:"fpcalc_path"`

	Contact     string        `yaml:"contact"`
	RateLimit   float64       `yaml:"rate_limit"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	SearchLimit int           `yaml:"search_limit"`

	Blacklist             []string `yaml:"blacklist"`
	ExcludedReleaseWords  []string `yaml:"excluded_release_words"`
	RequiredReleaseStatus string   `yaml:"required_release_status"`

	MPD MPDConfig `yaml:"mpd"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	policy := metadata.DefaultPolicy()
	return Config{
		CacheBackend:          BackendJSON,
		CachePath:             "metadata_cache.json",
		CoverCacheDir:         filepath.Join("data", "covers"),
		CoverSize:             250,
		CoverConcurrency:      5,
		MusicBrainzURL:        "https://musicbrainz.org/ws/2",
		CoverArtURL:           "https://coverartarchive.org",
		LRCLibURL:             "https://lrclib.net",
		AcoustIDURL:           "https://api.acoustid.org/v2",
		RateLimit:             1,
		HTTPTimeout:           30 * time.Second,
		SearchLimit:           metadata.DefaultSearchLimit,
		Blacklist:             policy.Blacklist,
		ExcludedReleaseWords:  policy.ExcludedReleaseWords,
		RequiredReleaseStatus: policy.RequiredReleaseStatus,
		MPD: MPDConfig{
			Host: "localhost",
			Port: 6600,
		},
	}
}

// Policy returns the catalog filtering policy described by c.
func (c *Config) Policy() metadata.Policy {
	return metadata.Policy{
		Blacklist:             c.Blacklist,
		ExcludedReleaseWords:  c.ExcludedReleaseWords,
		RequiredReleaseStatus: c.RequiredReleaseStatus,
	}
}

// LoadConfigFile loads configuration from a YAML file.
// If path is empty, searches standard locations. Returns defaults if no file found.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = FindConfigFile()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.CachePath = ExpandHome(cfg.CachePath)
	cfg.CoverCacheDir = ExpandHome(cfg.CoverCacheDir)
	cfg.FpcalcPath = ExpandHome(cfg.FpcalcPath)
	cfg.MPD.MusicDir = ExpandHome(cfg.MPD.MusicDir)

	return cfg, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	locations := []string{
		"./stellar-meta.yaml",
		"./stellar-meta.yml",
	}
	if dir, err := os.UserConfigDir(); err == nil {
		locations = append(locations,
			filepath.Join(dir, "stellar-meta", "config.yaml"),
			filepath.Join(dir, "stellar-meta", "config.yml"),
		)
	}
	if home := homeDir(); home != "" {
		locations = append(locations,
			filepath.Join(home, ".stellar-meta.yaml"),
			filepath.Join(home, ".stellar-meta.yml"),
		)
	}

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.CacheBackend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("unsupported cache_backend '%s', valid backends: %s, %s", c.CacheBackend, BackendJSON, BackendSQLite)
	}

	if c.CachePath == "" {
		return fmt.Errorf("cache_path cannot be empty")
	}
	if c.CoverCacheDir == "" {
		return fmt.Errorf("cover_cache_dir cannot be empty")
	}
	if c.CoverSize < 1 {
		return fmt.Errorf("cover_size must be at least 1, got %d", c.CoverSize)
	}
	if c.CoverConcurrency < 1 {
		return fmt.Errorf("cover_concurrency must be at least 1, got %d", c.CoverConcurrency)
	}
	if c.CoverConcurrency > 20 {
		return fmt.Errorf("cover_concurrency cannot exceed 20, got %d", c.CoverConcurrency)
	}

	urls := map[string]string{
		"musicbrainz_url": c.MusicBrainzURL,
		"coverart_url":    c.CoverArtURL,
		"lrclib_url":      c.LRCLibURL,
		"acoustid_url":    c.AcoustIDURL,
	}
	for key, u := range urls {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("%s must start with http:// or https://, got %q", key, u)
		}
	}

	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative, got %.2f", c.RateLimit)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive, got %s", c.HTTPTimeout)
	}
	if c.SearchLimit < 1 || c.SearchLimit > 100 {
		return fmt.Errorf("search_limit must be between 1 and 100, got %d", c.SearchLimit)
	}
	if c.MPD.Port < 1 || c.MPD.Port > 65535 {
		return fmt.Errorf("mpd.port must be between 1 and 65535, got %d", c.MPD.Port)
	}

	return nil
}
