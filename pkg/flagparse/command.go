package flagparse

import (
	"fmt"

	"github.com/pixelgardenlabs/arcmirror/pkg/util"
)

// Command is the subcommand selected on the command line.
type Command int

const (
	None Command = iota
	Init
	Link
	Unlink
	Push
	Pull
	Merge
	Watch
	Diff
	Prune
	Version
)

var commandToString = map[Command]string{
	None:    "none",
	Init:    "init",
	Link:    "link",
	Unlink:  "unlink",
	Push:    "push",
	Pull:    "pull",
	Merge:   "merge",
	Watch:   "watch",
	Diff:    "diff",
	Prune:   "prune",
	Version: "version",
}

var stringToCommand map[string]Command

func init() {
	stringToCommand = util.InvertMap(commandToString)
}

func (c Command) String() string {
	if str, ok := commandToString[c]; ok {
		return str
	}
	return fmt.Sprintf("unknown_command(%d)", c)
}

// ParseCommand resolves a command name.
func ParseCommand(s string) (Command, error) {
	if command, ok := stringToCommand[s]; ok {
		return command, nil
	}
	return None, fmt.Errorf("invalid command: %q", s)
}
