package cmd

import (
	"context"
	"io"

	"github.com/mwantia/ninep"
)

// Command represents one executable shell command. Commands receive the
// attached root directory and walk from there; they hold no state between
// invocations.
type Command interface {
	// Name returns the command identifier
	Name() string

	// Description returns human-readable help text
	Description() string

	// Usage returns a usage string for help (e.g. "ls [-l] [path]")
	Usage() string

	// Execute runs the command with parsed arguments.
	// The writer parameter is where command output should be written.
	// Returns exit code (0 = success) and error message
	Execute(ctx context.Context, root ninep.Directory, args *CommandArgs, writer io.Writer) (int, error)

	// GetFlags returns the flag set for this command (this is optional)
	GetFlags() *CommandFlagSet
}
