// Package manifest reads and writes the archive descriptor file. The
// descriptor lives both at the archive root on disk and as a regular entry in
// the archive's tree, so it is the first file copied when a folder is linked.
package manifest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pixelgardenlabs/arcmirror/pkg/util"
)

// FileName is the name of the archive descriptor file.
const FileName = "arc.json"

// PathKey is the descriptor's normalized path inside an archive tree.
const PathKey = "/" + FileName

// Content holds the archive's identity and top-level properties.
type Content struct {
	ID         string    `json:"id"`
	Title      string    `json:"title,omitempty"`
	Version    string    `json:"version"`
	CreatedUTC time.Time `json:"createdUTC"`
	// ReadOnly marks an archive the local user may mirror but never write to.
	ReadOnly bool `json:"readOnly,omitempty"`
}

// New creates a manifest with a fresh random identity.
func New(title, version string) (*Content, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	return &Content{
		ID:         id,
		Title:      title,
		Version:    version,
		CreatedUTC: time.Now().UTC(),
	}, nil
}

// Encode renders the manifest as indented JSON, the exact bytes stored both
// on disk and in the archive tree.
func (c *Content) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("could not marshal manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// Write stores the manifest file into a directory.
func Write(dirPath string, content *Content) error {
	data, err := content.Encode()
	if err != nil {
		return err
	}
	manifestPath := filepath.Join(dirPath, FileName)
	if err := os.WriteFile(manifestPath, data, util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("could not write manifest %s: %w", manifestPath, err)
	}
	return nil
}

// Read loads and parses the manifest file from a directory.
func Read(dirPath string) (*Content, error) {
	manifestPath := filepath.Join(dirPath, FileName)
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("could not read manifest %s: %w", manifestPath, err)
	}
	return Decode(data)
}

// Decode parses manifest bytes.
func Decode(data []byte) (*Content, error) {
	var content Content
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("manifest is corrupt: %w", err)
	}
	if content.ID == "" {
		return nil, fmt.Errorf("manifest is missing an archive id")
	}
	return &content, nil
}

func newID() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("could not generate archive id: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
