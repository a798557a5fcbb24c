// Package config loads and persists the well-known honeycomb
// configuration file: the basemap registry plus notification,
// renderer, and object-store settings. Secrets are read from the
// environment rather than the file on disk.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/agrc/honeycomb/internal/basemap"
	"github.com/agrc/honeycomb/internal/errs"
)

const fileName = "config.json"

// Config is the full set of persisted and environment-sourced settings
// the CLI and pipeline components are built from.
type Config struct {
	Share               string            `mapstructure:"share" json:"share"`
	SendEmails          bool              `mapstructure:"sendEmails" json:"sendEmails"`
	NotifyEmails        []string          `mapstructure:"notifyEmails" json:"notifyEmails,omitempty"`
	SMTPServer          string            `mapstructure:"smtpServer" json:"smtpServer,omitempty"`
	SMTPPort            string            `mapstructure:"smtpPort" json:"smtpPort,omitempty"`
	WebhookURL          string            `mapstructure:"webhookUrl" json:"webhookUrl,omitempty"`
	DiscoverBaseURL     string            `mapstructure:"discoverBaseUrl" json:"discoverBaseUrl,omitempty"`
	RendererToolPath    string            `mapstructure:"rendererToolPath" json:"rendererToolPath,omitempty"`
	RendererWorkspace   string            `mapstructure:"rendererWorkspace" json:"rendererWorkspace,omitempty"`
	RendererInstances   int               `mapstructure:"rendererInstances" json:"rendererInstances,omitempty"`
	ObjectStoreEndpoint string            `mapstructure:"objectStoreEndpoint" json:"objectStoreEndpoint,omitempty"`
	ObjectStoreRegion   string            `mapstructure:"objectStoreRegion" json:"objectStoreRegion,omitempty"`
	NightlyHour         *int              `mapstructure:"nightlyHour" json:"nightlyHour,omitempty"`
	UploadPoolSize      int               `mapstructure:"uploadPoolSize" json:"uploadPoolSize,omitempty"`
	Basemaps            []basemap.Basemap `mapstructure:"basemaps" json:"basemaps"`
}

// Default returns the configuration written by `config init`.
func Default() *Config {
	return &Config{
		SendEmails:     false,
		UploadPoolSize: 100,
		Basemaps:       []basemap.Basemap{},
	}
}

// BasemapByName finds a registered basemap by name.
func (c *Config) BasemapByName(name string) (basemap.Basemap, bool) {
	for _, bm := range c.Basemaps {
		if bm.Name == name {
			return bm, true
		}
	}
	return basemap.Basemap{}, false
}

// Store reads and writes the configuration file at path, atomically.
type Store struct {
	path string
}

// New returns a Store for the file at path.
func New(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns the well-known configuration path under the
// user's config directory, honeycomb/config.json.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config directory: %w", err)
	}
	return filepath.Join(dir, "honeycomb", fileName), nil
}

// Exists reports whether a configuration file is already present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the configuration file, decoding it through viper so the
// same mapstructure tags drive both file and (future) flag binding.
// A missing file is not an error: it returns Default().
func (s *Store) Load() (*Config, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, &errs.ConfigurationError{Detail: fmt.Sprintf("parsing config file: %v", err)}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &errs.ConfigurationError{Detail: fmt.Sprintf("decoding config file: %v", err)}
	}
	return cfg, nil
}

// Init writes Default() to path, failing if a configuration already exists.
func (s *Store) Init() (*Config, error) {
	if s.Exists() {
		return nil, &errs.ConfigurationError{Detail: fmt.Sprintf("configuration already exists at %s", s.path)}
	}
	cfg := Default()
	if err := s.Save(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename, the
// same durability pattern the Job Store and Stats Store use.
func (s *Store) Save(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, fileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp config file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp config file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming config file into place: %w", err)
	}
	return nil
}

// AddBasemap registers a basemap, replacing any existing entry of the
// same name.
func (s *Store) AddBasemap(bm basemap.Basemap) error {
	cfg, err := s.Load()
	if err != nil {
		return err
	}

	replaced := false
	for i, existing := range cfg.Basemaps {
		if existing.Name == bm.Name {
			cfg.Basemaps[i] = bm
			replaced = true
			break
		}
	}
	if !replaced {
		cfg.Basemaps = append(cfg.Basemaps, bm)
	}

	return s.Save(cfg)
}

// RemoveBasemap unregisters a basemap by name. It is not an error to
// remove a name that is not registered.
func (s *Store) RemoveBasemap(name string) error {
	cfg, err := s.Load()
	if err != nil {
		return err
	}

	out := make([]basemap.Basemap, 0, len(cfg.Basemaps))
	for _, bm := range cfg.Basemaps {
		if bm.Name != name {
			out = append(out, bm)
		}
	}
	cfg.Basemaps = out

	return s.Save(cfg)
}

// Set updates one named configuration field, mirroring `config.py`'s
// set_config_prop. Unknown keys are a ConfigurationError.
func (s *Store) Set(key, value string) error {
	cfg, err := s.Load()
	if err != nil {
		return err
	}

	switch key {
	case "share":
		cfg.Share = value
	case "sendEmails":
		cfg.SendEmails = value == "true"
	case "smtpServer":
		cfg.SMTPServer = value
	case "smtpPort":
		cfg.SMTPPort = value
	case "webhookUrl":
		cfg.WebhookURL = value
	case "discoverBaseUrl":
		cfg.DiscoverBaseURL = value
	case "rendererToolPath":
		cfg.RendererToolPath = value
	case "rendererWorkspace":
		cfg.RendererWorkspace = value
	case "objectStoreEndpoint":
		cfg.ObjectStoreEndpoint = value
	case "objectStoreRegion":
		cfg.ObjectStoreRegion = value
	default:
		return &errs.ConfigurationError{Detail: fmt.Sprintf("unknown configuration key %q", key)}
	}

	return s.Save(cfg)
}
