// Package flagparse turns command-line arguments into a typed request. Each
// subcommand registers only the flags it understands; the caller learns
// which flags the user actually set through Request.SetFlags, so explicit
// values can override configuration while defaults do not.
package flagparse

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pixelgardenlabs/arcmirror/pkg/buildinfo"
)

// Request is the parsed command line.
type Request struct {
	Command Command

	// Targets
	ArchivePath string
	ArchiveID   string
	FolderPath  string

	// Behavior
	Title           string
	Watch           bool
	Deep            bool
	AddOnly         bool
	Paths           []string
	FilePath        string
	Keep            int
	Force           bool
	DebounceSeconds int

	// Global
	LogLevel string
	Quiet    bool

	// SetFlags records which flag names the user supplied explicitly.
	SetFlags map[string]bool
}

// Set reports whether the user supplied the named flag.
func (r *Request) Set(name string) bool { return r.SetFlags[name] }

func registerGlobalFlags(fs *flag.FlagSet, r *Request) {
	fs.StringVar(&r.LogLevel, "log-level", "info", "Set the logging level: 'debug', 'info', 'warn', 'error'.")
	fs.BoolVar(&r.Quiet, "quiet", false, "Suppress informational output.")
}

func registerArchiveTargetFlags(fs *flag.FlagSet, r *Request) {
	fs.StringVar(&r.ArchivePath, "archive", "", "Path to the archive directory.")
	fs.StringVar(&r.ArchiveID, "archive-id", "", "Identity of a linked archive.")
	fs.StringVar(&r.FolderPath, "folder", "", "Path to the linked local folder.")
}

func registerSyncFlags(fs *flag.FlagSet, r *Request) {
	fs.BoolVar(&r.Deep, "deep", false, "Compare every directory instead of skipping metadata-identical ones.")
	fs.BoolVar(&r.AddOnly, "add-only", false, "Only add missing entries; never modify or remove existing ones.")
	fs.Func("path", "Restrict the sync to this path (repeatable).", func(v string) error {
		r.Paths = append(r.Paths, v)
		return nil
	})
}

// Parse parses the provided arguments (usually os.Args[1:]).
func Parse(args []string) (*Request, error) {
	if len(args) == 0 || isHelp(args[0]) {
		printTopLevelUsage()
		return &Request{Command: None}, nil
	}

	command, err := ParseCommand(strings.ToLower(args[0]))
	if err != nil {
		printTopLevelUsage()
		return nil, err
	}
	if command == Version {
		return &Request{Command: Version, SetFlags: map[string]bool{}}, nil
	}

	r := &Request{Command: command}
	fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
	registerGlobalFlags(fs, r)

	var description string
	switch command {
	case Init:
		description = "Create a new archive, optionally linked to a folder."
		fs.StringVar(&r.ArchivePath, "archive", "", "Path for the new archive directory. (Required)")
		fs.StringVar(&r.FolderPath, "folder", "", "Folder to link and merge into the new archive.")
		fs.StringVar(&r.Title, "title", "", "Human-readable archive title.")
		fs.BoolVar(&r.Watch, "watch", false, "Mark the new link for the watch daemon.")
	case Link:
		description = "Link a folder to an existing archive and merge their content."
		registerArchiveTargetFlags(fs, r)
		fs.BoolVar(&r.Watch, "watch", false, "Mark the link for the watch daemon.")
	case Unlink:
		description = "Remove the link between a folder and an archive."
		registerArchiveTargetFlags(fs, r)
	case Push:
		description = "Sync the folder's content into the archive."
		registerArchiveTargetFlags(fs, r)
		registerSyncFlags(fs, r)
	case Pull:
		description = "Sync the archive's content into the folder."
		registerArchiveTargetFlags(fs, r)
		registerSyncFlags(fs, r)
	case Merge:
		description = "Run the three-step merge between a folder and an archive."
		registerArchiveTargetFlags(fs, r)
	case Watch:
		description = "Watch linked folders and sync changes after a quiet period."
		fs.IntVar(&r.DebounceSeconds, "debounce-seconds", 0, "Quiescence window before a change triggers a sync.")
	case Diff:
		description = "Show a line diff of one file between folder and archive."
		registerArchiveTargetFlags(fs, r)
		fs.StringVar(&r.FilePath, "file", "", "File path to compare. (Required)")
	case Prune:
		description = "Drop old archive generations and sweep unreferenced content."
		registerArchiveTargetFlags(fs, r)
		fs.IntVar(&r.Keep, "keep", 0, "Number of generations to retain.")
		fs.BoolVar(&r.Force, "force", false, "Skip the confirmation prompt.")
	}

	fs.Usage = func() { printSubcommandUsage(command, description, fs) }
	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}

	r.SetFlags = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { r.SetFlags[f.Name] = true })
	return r, nil
}

func isHelp(s string) bool {
	switch strings.ToLower(s) {
	case "help", "-h", "-help", "--help":
		return true
	}
	return false
}

func printTopLevelUsage() {
	fmt.Fprintf(os.Stderr, "%s %s - mirror folders into versioned archives\n\n", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(os.Stderr, "Usage: arcmirror <command> [flags]\n\nCommands:\n")
	for _, c := range []Command{Init, Link, Unlink, Push, Pull, Merge, Watch, Diff, Prune, Version} {
		fmt.Fprintf(os.Stderr, "  %s\n", c)
	}
	fmt.Fprintf(os.Stderr, "\nRun 'arcmirror <command> -h' for command flags.\n")
}

func printSubcommandUsage(command Command, description string, fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: arcmirror %s [flags]\n\n%s\n\nFlags:\n", command, description)
	fs.PrintDefaults()
}
