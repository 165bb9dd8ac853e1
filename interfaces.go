package ninep

import (
	"context"
	"io"

	"github.com/mwantia/ninep/data"
)

// FsEntity is the operation set shared by files and directories: metadata
// inspection and replacement. It corresponds to the stat and wstat requests
// of the protocol.
type FsEntity interface {
	// Stat returns a fresh, consistent snapshot of the entity's current
	// metadata. It must not block on unrelated I/O.
	Stat(ctx context.Context) (data.Stat, error)

	// WStat requests a full metadata replacement. Changing Length truncates
	// or extends file content; changing Name renames the entity within its
	// parent directory. The fields are either accepted atomically or the
	// call fails without partial effect. Illegal combinations (renaming the
	// root away from "/", clearing the directory flag on a directory with
	// children, editing the qid) must be rejected, not ignored.
	WStat(ctx context.Context, stat data.Stat) error
}

// Directory is the capability surface of a fid naming a directory.
type Directory interface {
	FsEntity

	// Walk resolves one path element relative to this directory. The name
	// ".." resolves to the parent; "." is not a protocol-level name and
	// receives no special treatment. Walking does not mutate the source
	// directory. Returns ErrNotExist if no such child exists.
	Walk(ctx context.Context, name string) (Entity, error)

	// ReadDir returns a stat snapshot for every child, ordered by name.
	ReadDir(ctx context.Context) ([]data.Stat, error)

	// CreateFile creates a regular file in this directory. Requires write
	// permission on the directory. The created entity is owned by the
	// acting principal, its group matches the directory's group, and its
	// permissions are the requested ones masked by the directory's (see
	// data.EffectivePermissions). The names "." and ".." are illegal.
	// Fails with ErrExist if the name is already taken.
	CreateFile(ctx context.Context, name string, perm data.Permissions) error

	// CreateDir is CreateFile for subdirectories, with the directory
	// permission mask.
	CreateDir(ctx context.Context, name string, perm data.Permissions) error
}

// File is the capability surface of a fid naming a file. A File is a small
// state machine: it starts closed, transitions to open on a successful Open,
// and returns to closed on Clunk or Remove.
type File interface {
	FsEntity

	// Open checks permissions and prepares the fid for I/O. The submode is
	// checked against the file's permission bits for the acting principal;
	// mode.Truncate additionally requires write permission, and truncation
	// is skipped without error when the file is append-only. mode.RClose
	// requires write permission in the parent directory. Opening an
	// exclusive-use file fails with ErrExclusiveConflict while another fid
	// holds it open.
	//
	// All permission checks happen at open time; later permission changes do
	// not affect an already-open fid. Returns the entity's current qid and
	// the advisory IoUnit.
	Open(ctx context.Context, mode data.OpenMode) (data.Qid, IoUnit, error)

	// Mode reports the mode the fid is open in. The second return is false
	// while the fid is closed.
	Mode() (data.OpenMode, bool)

	// Read copies up to count bytes starting at offset into to, returning
	// the number of bytes actually transferred; 0 at end of file. The fid
	// must be open in a readable submode.
	Read(ctx context.Context, to io.Writer, offset uint64, count uint32) (uint32, error)

	// Write records up to count bytes from from, returning the number of
	// bytes actually written. The fid must be open in a writable submode.
	// Append-only files place the data at the current end of file; others
	// write at the fid's current position.
	Write(ctx context.Context, from io.Reader, count uint32) (uint32, error)

	// Clunk releases the fid without touching the entity, except that a fid
	// opened with RClose removes the file as part of the release. The fid
	// transitions to closed and its exclusivity holder, if any, is freed.
	Clunk(ctx context.Context) error

	// Remove removes the file and clunks the fid, even if the removal
	// fails: the transition to closed is unconditional. Requires write
	// permission in the parent directory.
	Remove(ctx context.Context) error
}
