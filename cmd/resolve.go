package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwantia/ninep"
	"github.com/mwantia/ninep/data"
)

// Resolve walks a slash-separated path element by element from root. An empty
// path or "/" yields the root itself.
func Resolve(ctx context.Context, root ninep.Directory, path string) (ninep.Entity, error) {
	entity := ninep.DirEntity(root)

	for _, elem := range strings.Split(path, "/") {
		if elem == "" {
			continue
		}

		dir, ok := entity.Dir()
		if !ok {
			return ninep.Entity{}, fmt.Errorf("%w: walk through a file", ninep.ErrIllegalOperation)
		}

		next, err := dir.Walk(ctx, elem)
		if err != nil {
			return ninep.Entity{}, err
		}
		entity = next
	}

	return entity, nil
}

// ResolveDir resolves a path that must name a directory.
func ResolveDir(ctx context.Context, root ninep.Directory, path string) (ninep.Directory, error) {
	entity, err := Resolve(ctx, root, path)
	if err != nil {
		return nil, err
	}

	dir, ok := entity.Dir()
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a directory", ninep.ErrIllegalOperation, path)
	}
	return dir, nil
}

// ResolveFile resolves a path that must name a file.
func ResolveFile(ctx context.Context, root ninep.Directory, path string) (ninep.File, error) {
	entity, err := Resolve(ctx, root, path)
	if err != nil {
		return nil, err
	}

	file, ok := entity.File()
	if !ok {
		return nil, fmt.Errorf("%w: %q is a directory", ninep.ErrIllegalOperation, path)
	}
	return file, nil
}

// Split breaks a path into its parent directory path and final element.
func Split(path string) (parent, name string) {
	trimmed := strings.TrimRight(path, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[:idx], trimmed[idx+1:]
	}
	return "", trimmed
}

// statLine formats one entry the way ls -l would.
func statLine(st data.Stat) string {
	return fmt.Sprintf("%s %8d %-8s %-8s %s", st.Mode, st.Length, st.UID, st.GID, st.Name)
}
