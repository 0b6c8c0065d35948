// Package config persists the link registry and engine tuning as a JSON
// file. A link binds one archive to one local folder; the registry is what
// the watch daemon and the directional sync commands resolve archives
// through.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pixelgardenlabs/arcmirror/pkg/buildinfo"
	"github.com/pixelgardenlabs/arcmirror/pkg/plog"
	"github.com/pixelgardenlabs/arcmirror/pkg/util"
)

// ConfigFileName is the name of the configuration file.
const ConfigFileName = "arcmirror.config.json"

// LinkConfig binds an archive to the local folder that mirrors it.
type LinkConfig struct {
	ArchiveID   string `json:"archiveID"`
	ArchivePath string `json:"archivePath"`
	FolderPath  string `json:"folderPath"`
	// Watch marks the link for the watch daemon: changes in the folder
	// trigger debounced syncs into the archive.
	Watch bool `json:"watch"`
}

// EngineConfig carries process-wide tuning.
type EngineConfig struct {
	// DebounceSeconds is the quiescence window between the last folder
	// change and the sync it triggers.
	DebounceSeconds int `json:"debounceSeconds"`
	// KeepGenerations is how many archive generations prune retains.
	KeepGenerations int `json:"keepGenerations"`
}

type Config struct {
	Version  string       `json:"version"`
	LogLevel string       `json:"logLevel"`
	Engine   EngineConfig `json:"engine"`
	// Note: omitempty is intentionally not used so an empty registry still
	// appears in the generated file.
	Links []LinkConfig `json:"links"`
}

// NewDefault returns a configuration with sensible defaults and an empty
// link registry.
func NewDefault() Config {
	return Config{
		Version:  buildinfo.Version,
		LogLevel: "info",
		Engine: EngineConfig{
			DebounceSeconds: 1,  // Matches the engine's default quiescence window.
			KeepGenerations: 10, // Keep a useful history without unbounded growth.
		},
		Links: []LinkConfig{},
	}
}

// DefaultDir returns the per-user directory holding the configuration file.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(base, "arcmirror"), nil
}

// Load reads the configuration from a directory. A missing file is the
// normal first-run case and yields the defaults; a file that exists but
// fails to parse is an error. Fields absent from the file keep their
// default values.
func Load(dir string) (Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	file, err := os.Open(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDefault(), nil
		}
		return Config{}, fmt.Errorf("error opening config file %s: %w", configPath, err)
	}
	defer file.Close()

	plog.Debug("Loading configuration", "path", configPath)
	config := NewDefault()
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return Config{}, fmt.Errorf("error parsing config file %s: %w", configPath, err)
	}
	config.Version = buildinfo.Version
	return config, nil
}

// Save writes the configuration into a directory, creating it as needed.
func (c *Config) Save(dir string) error {
	if err := os.MkdirAll(dir, util.WithUserWritePermission(util.UserWritableDirPerms)); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal config: %w", err)
	}
	configPath := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(configPath, append(data, '\n'), util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("could not write config file %s: %w", configPath, err)
	}
	return nil
}

// FindLink returns the link for an archive id, or nil.
func (c *Config) FindLink(archiveID string) *LinkConfig {
	for i := range c.Links {
		if c.Links[i].ArchiveID == archiveID {
			return &c.Links[i]
		}
	}
	return nil
}

// FindLinkByFolder returns the link whose folder matches the given path, or
// nil.
func (c *Config) FindLinkByFolder(folderPath string) *LinkConfig {
	abs, err := filepath.Abs(folderPath)
	if err != nil {
		return nil
	}
	for i := range c.Links {
		if c.Links[i].FolderPath == abs {
			return &c.Links[i]
		}
	}
	return nil
}

// SetLink inserts or replaces the link for an archive.
func (c *Config) SetLink(link LinkConfig) {
	if existing := c.FindLink(link.ArchiveID); existing != nil {
		*existing = link
		return
	}
	c.Links = append(c.Links, link)
}

// RemoveLink deletes the link for an archive and reports whether one
// existed.
func (c *Config) RemoveLink(archiveID string) bool {
	for i := range c.Links {
		if c.Links[i].ArchiveID == archiveID {
			c.Links = append(c.Links[:i], c.Links[i+1:]...)
			return true
		}
	}
	return false
}
