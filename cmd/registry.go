package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/mwantia/ninep"
)

// Registry holds the available commands and dispatches parsed input lines to
// them.
type Registry struct {
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
	}
}

// Register adds commands to the registry, refusing duplicate names.
func (r *Registry) Register(cmds ...Command) error {
	for _, c := range cmds {
		if _, exists := r.commands[c.Name()]; exists {
			return fmt.Errorf("command %q is already registered", c.Name())
		}
		r.commands[c.Name()] = c
	}
	return nil
}

// Get looks up a command by name.
func (r *Registry) Get(name string) (Command, bool) {
	c, ok := r.commands[name]
	return c, ok
}

// Commands returns all registered commands sorted by name.
func (r *Registry) Commands() []Command {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	cmds := make([]Command, 0, len(names))
	for _, name := range names {
		cmds = append(cmds, r.commands[name])
	}
	return cmds
}

// Execute parses fields as "<command> [args...]" and runs the command against
// root, writing output to writer.
func (r *Registry) Execute(ctx context.Context, root ninep.Directory, fields []string, writer io.Writer) (int, error) {
	if len(fields) == 0 {
		return 0, nil
	}

	command, ok := r.Get(fields[0])
	if !ok {
		return 1, fmt.Errorf("unknown command: %s", fields[0])
	}

	args, err := NewParser(command.GetFlags()).Parse(fields[1:])
	if err != nil {
		return 1, err
	}

	return command.Execute(ctx, root, args, writer)
}

// RegisterBuiltin fills a registry with the standard file commands.
func RegisterBuiltin(r *Registry) error {
	return r.Register(
		&LsCommand{},
		&CatCommand{},
		&WriteCommand{},
		&MkdirCommand{},
		&RmCommand{},
		&MvCommand{},
		&ChmodCommand{},
		&StatCommand{},
		&HelpCommand{registry: r},
	)
}
