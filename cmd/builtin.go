package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mwantia/ninep"
	"github.com/mwantia/ninep/data"
)

// LsCommand lists a directory.
type LsCommand struct{}

func (c *LsCommand) Name() string { return "ls" }
func (c *LsCommand) Description() string { return "List directory contents" }
func (c *LsCommand) Usage() string { return "ls [-l] [path]" }

func (c *LsCommand) GetFlags() *CommandFlagSet {
	return &CommandFlagSet{
		Flags: map[string]*CommandFlag{
			"long": {Name: "long", Short: "l", Type: "bool", Description: "Long listing with mode, size and ownership"},
		},
	}
}

func (c *LsCommand) Execute(ctx context.Context, root ninep.Directory, args *CommandArgs, writer io.Writer) (int, error) {
	path := "/"
	if len(args.Args) > 0 {
		path = args.Args[0]
	}

	dir, err := ResolveDir(ctx, root, path)
	if err != nil {
		return 1, err
	}

	stats, err := dir.ReadDir(ctx)
	if err != nil {
		return 1, err
	}

	for _, st := range stats {
		if args.Bool("long") {
			fmt.Fprintln(writer, statLine(st))
		} else if st.IsDir() {
			fmt.Fprintf(writer, "%s/\n", st.Name)
		} else {
			fmt.Fprintln(writer, st.Name)
		}
	}
	return 0, nil
}

// CatCommand copies a file's content to the output.
type CatCommand struct{}

func (c *CatCommand) Name() string { return "cat" }
func (c *CatCommand) Description() string { return "Print file contents" }
func (c *CatCommand) Usage() string { return "cat <path>" }
func (c *CatCommand) GetFlags() *CommandFlagSet { return nil }

func (c *CatCommand) Execute(ctx context.Context, root ninep.Directory, args *CommandArgs, writer io.Writer) (int, error) {
	if len(args.Args) != 1 {
		return 1, fmt.Errorf("usage: %s", c.Usage())
	}

	file, err := ResolveFile(ctx, root, args.Args[0])
	if err != nil {
		return 1, err
	}

	if _, _, err := file.Open(ctx, data.OpenMode{Sub: data.OpenRead}); err != nil {
		return 1, err
	}
	defer file.Clunk(ctx)

	var offset uint64
	for {
		n, err := file.Read(ctx, writer, offset, 32*1024)
		if err != nil {
			return 1, err
		}
		if n == 0 {
			break
		}
		offset += uint64(n)
	}

	return 0, nil
}

// WriteCommand replaces a file's content, creating the file when needed.
type WriteCommand struct{}

func (c *WriteCommand) Name() string { return "write" }
func (c *WriteCommand) Description() string { return "Write text to a file, creating it if missing" }
func (c *WriteCommand) Usage() string { return "write <path> <text...>" }
func (c *WriteCommand) GetFlags() *CommandFlagSet { return nil }

func (c *WriteCommand) Execute(ctx context.Context, root ninep.Directory, args *CommandArgs, writer io.Writer) (int, error) {
	if len(args.Args) < 2 {
		return 1, fmt.Errorf("usage: %s", c.Usage())
	}
	path := args.Args[0]

	file, err := ResolveFile(ctx, root, path)
	if errors.Is(err, ninep.ErrNotExist) {
		parent, name := Split(path)
		dir, derr := ResolveDir(ctx, root, parent)
		if derr != nil {
			return 1, derr
		}
		if cerr := dir.CreateFile(ctx, name, data.PermissionsFromBits(0o644)); cerr != nil {
			return 1, cerr
		}
		file, err = ResolveFile(ctx, root, path)
	}
	if err != nil {
		return 1, err
	}

	if _, _, err := file.Open(ctx, data.OpenMode{Sub: data.OpenWrite, Truncate: true}); err != nil {
		return 1, err
	}
	defer file.Clunk(ctx)

	content := strings.Join(args.Args[1:], " ")
	n, err := file.Write(ctx, strings.NewReader(content), uint32(len(content)))
	if err != nil {
		return 1, err
	}

	fmt.Fprintf(writer, "wrote %d bytes\n", n)
	return 0, nil
}

// MkdirCommand creates a directory.
type MkdirCommand struct{}

func (c *MkdirCommand) Name() string { return "mkdir" }
func (c *MkdirCommand) Description() string { return "Create a directory" }
func (c *MkdirCommand) Usage() string { return "mkdir <path>" }
func (c *MkdirCommand) GetFlags() *CommandFlagSet { return nil }

func (c *MkdirCommand) Execute(ctx context.Context, root ninep.Directory, args *CommandArgs, writer io.Writer) (int, error) {
	if len(args.Args) != 1 {
		return 1, fmt.Errorf("usage: %s", c.Usage())
	}

	parent, name := Split(args.Args[0])
	dir, err := ResolveDir(ctx, root, parent)
	if err != nil {
		return 1, err
	}

	if err := dir.CreateDir(ctx, name, data.PermissionsFromBits(0o755)); err != nil {
		return 1, err
	}
	return 0, nil
}

// RmCommand removes a file.
type RmCommand struct{}

func (c *RmCommand) Name() string { return "rm" }
func (c *RmCommand) Description() string { return "Remove a file" }
func (c *RmCommand) Usage() string { return "rm <path>" }
func (c *RmCommand) GetFlags() *CommandFlagSet { return nil }

func (c *RmCommand) Execute(ctx context.Context, root ninep.Directory, args *CommandArgs, writer io.Writer) (int, error) {
	if len(args.Args) != 1 {
		return 1, fmt.Errorf("usage: %s", c.Usage())
	}

	file, err := ResolveFile(ctx, root, args.Args[0])
	if err != nil {
		return 1, err
	}

	if err := file.Remove(ctx); err != nil {
		return 1, err
	}
	return 0, nil
}

// MvCommand renames an entity within its parent directory.
type MvCommand struct{}

func (c *MvCommand) Name() string { return "mv" }
func (c *MvCommand) Description() string { return "Rename a file or directory within its parent" }
func (c *MvCommand) Usage() string { return "mv <path> <newname>" }
func (c *MvCommand) GetFlags() *CommandFlagSet { return nil }

func (c *MvCommand) Execute(ctx context.Context, root ninep.Directory, args *CommandArgs, writer io.Writer) (int, error) {
	if len(args.Args) != 2 {
		return 1, fmt.Errorf("usage: %s", c.Usage())
	}
	newName := args.Args[1]
	if strings.Contains(newName, "/") {
		return 1, fmt.Errorf("%w: rename cannot cross directories", ninep.ErrIllegalOperation)
	}

	entity, err := Resolve(ctx, root, args.Args[0])
	if err != nil {
		return 1, err
	}

	fse := entity.FsEntity()
	st, err := fse.Stat(ctx)
	if err != nil {
		return 1, err
	}

	st.Name = newName
	if err := fse.WStat(ctx, st); err != nil {
		return 1, err
	}
	return 0, nil
}

// ChmodCommand changes permission bits.
type ChmodCommand struct{}

func (c *ChmodCommand) Name() string { return "chmod" }
func (c *ChmodCommand) Description() string { return "Change permission bits" }
func (c *ChmodCommand) Usage() string { return "chmod <octal> <path>" }
func (c *ChmodCommand) GetFlags() *CommandFlagSet { return nil }

func (c *ChmodCommand) Execute(ctx context.Context, root ninep.Directory, args *CommandArgs, writer io.Writer) (int, error) {
	if len(args.Args) != 2 {
		return 1, fmt.Errorf("usage: %s", c.Usage())
	}

	bits, err := strconv.ParseUint(args.Args[0], 8, 32)
	if err != nil {
		return 1, fmt.Errorf("invalid permission bits %q", args.Args[0])
	}

	entity, err := Resolve(ctx, root, args.Args[1])
	if err != nil {
		return 1, err
	}

	fse := entity.FsEntity()
	st, err := fse.Stat(ctx)
	if err != nil {
		return 1, err
	}

	st.Mode.Permissions = data.PermissionsFromBits(uint32(bits))
	if err := fse.WStat(ctx, st); err != nil {
		return 1, err
	}
	return 0, nil
}

// StatCommand prints the full metadata of an entity.
type StatCommand struct{}

func (c *StatCommand) Name() string { return "stat" }
func (c *StatCommand) Description() string { return "Print entity metadata" }
func (c *StatCommand) Usage() string { return "stat <path>" }
func (c *StatCommand) GetFlags() *CommandFlagSet { return nil }

func (c *StatCommand) Execute(ctx context.Context, root ninep.Directory, args *CommandArgs, writer io.Writer) (int, error) {
	if len(args.Args) != 1 {
		return 1, fmt.Errorf("usage: %s", c.Usage())
	}

	entity, err := Resolve(ctx, root, args.Args[0])
	if err != nil {
		return 1, err
	}

	st, err := entity.FsEntity().Stat(ctx)
	if err != nil {
		return 1, err
	}

	fmt.Fprintf(writer, "name:   %s\n", st.Name)
	fmt.Fprintf(writer, "qid:    %s\n", st.Qid)
	fmt.Fprintf(writer, "mode:   %s\n", st.Mode)
	fmt.Fprintf(writer, "length: %d\n", st.Length)
	fmt.Fprintf(writer, "owner:  %s:%s (modified by %s)\n", st.UID, st.GID, st.MUID)
	fmt.Fprintf(writer, "atime:  %s\n", time.Unix(int64(st.Atime), 0).Format(time.RFC3339))
	fmt.Fprintf(writer, "mtime:  %s\n", time.Unix(int64(st.Mtime), 0).Format(time.RFC3339))
	return 0, nil
}

// HelpCommand lists the registered commands.
type HelpCommand struct {
	registry *Registry
}

func (c *HelpCommand) Name() string { return "help" }
func (c *HelpCommand) Description() string { return "List available commands" }
func (c *HelpCommand) Usage() string { return "help" }
func (c *HelpCommand) GetFlags() *CommandFlagSet { return nil }

func (c *HelpCommand) Execute(ctx context.Context, root ninep.Directory, args *CommandArgs, writer io.Writer) (int, error) {
	for _, command := range c.registry.Commands() {
		fmt.Fprintf(writer, "%-28s %s\n", command.Usage(), command.Description())
	}
	return 0, nil
}
