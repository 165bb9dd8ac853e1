package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mwantia/ninep"
	"github.com/mwantia/ninep/cmd"
	"github.com/mwantia/ninep/data"
	"github.com/mwantia/ninep/log"
	"github.com/mwantia/ninep/memfs"
	"github.com/mwantia/ninep/sqlfs"
)

var flags = &cmd.CommandFlagSet{
	Flags: map[string]*cmd.CommandFlag{
		"backend": {Name: "backend", Short: "b", Type: "string", Default: "memory", Description: "Backend to use: memory or sqlite"},
		"db":      {Name: "db", Type: "string", Default: "ninep.db", Description: "Database file for the sqlite backend"},
		"user":    {Name: "user", Short: "u", Type: "string", Default: "glenda", Description: "Acting user for the attach"},
		"level":   {Name: "log-level", Type: "string", Default: "warn", Description: "Log level: debug, info, warn, error"},
		"seed":    {Name: "seed", Type: "bool", Description: "Seed a demo hierarchy before starting"},
	},
}

// seedDemo fills an empty filesystem with a small sample hierarchy so the
// shell has something to explore.
func seedDemo(ctx context.Context, root ninep.Directory) error {
	dirs := [][2]string{
		{"", "home"},
		{"home", "glenda"},
		{"home/glenda", "docs"},
		{"", "tmp"},
	}
	for _, d := range dirs {
		parent, err := cmd.ResolveDir(ctx, root, d[0])
		if err != nil {
			return err
		}
		if err := parent.CreateDir(ctx, d[1], data.PermissionsFromBits(0o755)); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", d[1], err)
		}
	}

	files := map[string]string{
		"home/glenda/docs/readme": "Welcome to the ninep demo shell.\n",
		"home/glenda/docs/notes":  "This is a sample file.\n",
		"tmp/scratch":             "Temporary file\n",
	}
	registry := cmd.NewRegistry()
	if err := cmd.RegisterBuiltin(registry); err != nil {
		return err
	}
	for path, content := range files {
		line := []string{"write", path, strings.TrimSuffix(content, "\n")}
		if _, err := registry.Execute(ctx, root, line, os.Stderr); err != nil {
			return fmt.Errorf("failed to seed file %s: %w", path, err)
		}
	}

	return nil
}

func run() error {
	ctx := context.Background()

	args, err := cmd.NewParser(flags).Parse(os.Args[1:])
	if err != nil {
		return err
	}

	user := args.String("user", "glenda")
	logger := log.NewLogger("ninep", log.Parse(args.String("level", "warn")), "", false)

	var root ninep.Directory
	switch backend := args.String("backend", "memory"); backend {
	case "memory":
		fs, err := memfs.New(memfs.WithUser(user, user), memfs.WithLogger(logger))
		if err != nil {
			return err
		}
		if root, err = fs.Attach(ctx, user); err != nil {
			return err
		}
	case "sqlite":
		fs, err := sqlfs.New(args.String("db", "ninep.db"), sqlfs.WithUser(user, user), sqlfs.WithLogger(logger))
		if err != nil {
			return err
		}
		defer fs.Close()
		if root, err = fs.Attach(ctx, user); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown backend %q, expected memory or sqlite", backend)
	}

	if args.Bool("seed") {
		if err := seedDemo(ctx, root); err != nil {
			return err
		}
	}

	registry := cmd.NewRegistry()
	if err := cmd.RegisterBuiltin(registry); err != nil {
		return err
	}

	fmt.Printf("ninep shell, attached as %s. Type 'help' for commands, 'exit' to quit.\n", user)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("9> ")
		if !scanner.Scan() {
			break
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "exit" || fields[0] == "quit" {
			break
		}

		if code, err := registry.Execute(ctx, root, fields, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "error (%d): %v\n", code, err)
		}
	}

	return scanner.Err()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
