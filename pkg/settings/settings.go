// Package settings provides a small file-backed key/value store for
// process-wide defaults. The sync engine consults it for the default ignore
// ruleset used when a folder carries no ignore file of its own.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pixelgardenlabs/arcmirror/pkg/util"
)

// FileName is the name of the settings file.
const FileName = "arcmirror.settings.json"

// KeyDefaultIgnoreRules holds the ignore-rule text applied to folders
// without an ignore file.
const KeyDefaultIgnoreRules = "defaultIgnoreRules"

// DefaultIgnoreRules is the built-in fallback ruleset.
const DefaultIgnoreRules = "*.tmp\n*.swp\n.DS_Store\nThumbs.db\n"

var builtinDefaults = map[string]string{
	KeyDefaultIgnoreRules: DefaultIgnoreRules,
}

// Store is a settings store bound to one settings file. Values not present
// in the file fall back to built-in defaults.
type Store struct {
	path string

	mu     sync.RWMutex
	values map[string]string
}

// Open loads the settings file at path, creating an empty store when the
// file does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil // First run, defaults only.
	}
	if err != nil {
		return nil, fmt.Errorf("could not read settings file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("settings file %s is corrupt: %w", path, err)
	}
	return s, nil
}

// OpenDefault opens the settings store at its standard location inside the
// user's configuration directory.
func OpenDefault() (*Store, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("could not determine user config directory: %w", err)
	}
	return Open(filepath.Join(configDir, "arcmirror", FileName))
}

// Get returns the value for a key, falling back to the built-in default.
// Unknown keys return the empty string.
func (s *Store) Get(key string) string {
	s.mu.RLock()
	value, ok := s.values[key]
	s.mu.RUnlock()
	if ok {
		return value
	}
	return builtinDefaults[key]
}

// Set stores a value and persists the settings file.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value

	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("could not create settings directory: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("could not write settings file %s: %w", s.path, err)
	}
	return nil
}
