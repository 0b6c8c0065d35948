// Package cmd contains the entry points for each arcmirror subcommand.
package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pixelgardenlabs/arcmirror/pkg/config"
	"github.com/pixelgardenlabs/arcmirror/pkg/flagparse"
	"github.com/pixelgardenlabs/arcmirror/pkg/plog"
	"github.com/pixelgardenlabs/arcmirror/pkg/settings"
	"github.com/pixelgardenlabs/arcmirror/pkg/store"
	"github.com/pixelgardenlabs/arcmirror/pkg/syncer"
	"github.com/pixelgardenlabs/arcmirror/pkg/util"
)

// configDir is overridable in tests so commands never touch the real
// user configuration directory.
var configDir = config.DefaultDir

// ApplyLogging configures the global logger from the parsed request and,
// when the request carries no explicit level, from the stored config.
func ApplyLogging(r *flagparse.Request, cfg *config.Config) {
	level := cfg.LogLevel
	if r.Set("log-level") {
		level = r.LogLevel
	}
	switch strings.ToLower(level) {
	case "debug":
		plog.SetDebug(true)
	case "warn", "error":
		plog.SetQuiet(true)
	}
	if r.Quiet {
		plog.SetQuiet(true)
	}
}

// loadConfig loads the user configuration from the default directory.
func loadConfig() (config.Config, string, error) {
	dir, err := configDir()
	if err != nil {
		return config.Config{}, "", fmt.Errorf("could not determine config directory: %w", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return config.Config{}, "", err
	}
	return cfg, dir, nil
}

// resolveLink finds the link addressed by the request, by archive id or by
// folder path. Returns nil when the request names neither.
func resolveLink(cfg *config.Config, r *flagparse.Request) (*config.LinkConfig, error) {
	if r.ArchiveID != "" {
		link := cfg.FindLink(r.ArchiveID)
		if link == nil {
			return nil, fmt.Errorf("no link found for archive id %q", r.ArchiveID)
		}
		return link, nil
	}
	if r.FolderPath != "" {
		abs, err := absFolderPath(r.FolderPath)
		if err != nil {
			return nil, err
		}
		link := cfg.FindLinkByFolder(abs)
		if link == nil {
			return nil, fmt.Errorf("no link found for folder %q", abs)
		}
		return link, nil
	}
	return nil, nil
}

// openArchive opens the archive addressed by the request. The archive is
// located either by an explicit -archive path or through the link registry.
func openArchive(cfg *config.Config, r *flagparse.Request) (*syncer.Archive, *config.LinkConfig, error) {
	if r.ArchivePath != "" {
		abs, err := absFolderPath(r.ArchivePath)
		if err != nil {
			return nil, nil, err
		}
		remote, err := store.OpenRemote(abs)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open archive at %s: %w", abs, err)
		}
		link := cfg.FindLink(remote.ID())
		a := &syncer.Archive{ID: remote.ID(), Store: remote}
		if link != nil {
			a.LinkPath = link.FolderPath
		}
		return a, link, nil
	}

	link, err := resolveLink(cfg, r)
	if err != nil {
		return nil, nil, err
	}
	if link == nil {
		return nil, nil, fmt.Errorf("no archive specified; use -archive, -archive-id or -folder")
	}
	remote, err := store.OpenRemote(link.ArchivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open archive at %s: %w", link.ArchivePath, err)
	}
	if remote.ID() != link.ArchiveID {
		plog.Warn("Archive identity changed since it was linked.",
			"expected", link.ArchiveID, "found", remote.ID())
	}
	return &syncer.Archive{ID: remote.ID(), Store: remote, LinkPath: link.FolderPath}, link, nil
}

// newSyncer builds a syncer backed by the user's settings store. A missing
// or unreadable settings file falls back to built-in defaults.
func newSyncer(pending syncer.PendingChecker) *syncer.Syncer {
	st, err := settings.OpenDefault()
	if err != nil {
		plog.Debug("Settings unavailable, using built-in defaults.", "reason", err)
		return syncer.New(nil, pending)
	}
	return syncer.New(st, pending)
}

func absFolderPath(p string) (string, error) {
	expanded, err := util.ExpandPath(p)
	if err != nil {
		return "", fmt.Errorf("could not expand path %s: %w", p, err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("could not determine absolute path for %s: %w", p, err)
	}
	return abs, nil
}

// PromptForConfirmation prompts the user for a yes/no response.
func PromptForConfirmation(prompt string, defaultYes bool) bool {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}
	fmt.Printf("%s %s: ", prompt, suffix)

	var response string
	_, _ = fmt.Scanln(&response)
	response = strings.ToLower(strings.TrimSpace(response))

	if response == "" {
		return defaultYes
	}
	return response == "y" || response == "yes"
}
