package ninep_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mwantia/ninep"
	"github.com/mwantia/ninep/data"
	"github.com/mwantia/ninep/memfs"
	"github.com/mwantia/ninep/sqlfs"
)

// testBackend gives each conformance test a way to attach as different
// principals to the same filesystem instance.
type testBackend struct {
	attach func(ctx context.Context, user string) (ninep.Directory, error)
}

type testBackendFactory func(tst *testing.T) testBackend

func getTestBackendFactories() map[string]testBackendFactory {
	return map[string]testBackendFactory{
		"memfs": func(tst *testing.T) testBackend {
			fs, err := memfs.New(memfs.WithUser("alice", "staff"))
			if err != nil {
				tst.Fatalf("failed to initialize memfs: %v", err)
			}
			return testBackend{attach: fs.Attach}
		},
		"sqlfs": func(tst *testing.T) testBackend {
			fs, err := sqlfs.New(":memory:", sqlfs.WithUser("alice", "staff"))
			if err != nil {
				tst.Fatalf("failed to initialize sqlfs: %v", err)
			}
			tst.Cleanup(func() { fs.Close() })
			return testBackend{attach: fs.Attach}
		},
	}
}

func attachRoot(t *testing.T, b testBackend, user string) ninep.Directory {
	t.Helper()

	root, err := b.attach(context.Background(), user)
	if err != nil {
		t.Fatalf("attach %s failed: %v", user, err)
	}
	return root
}

func walkFile(t *testing.T, ctx context.Context, dir ninep.Directory, name string) ninep.File {
	t.Helper()

	entity, err := dir.Walk(ctx, name)
	if err != nil {
		t.Fatalf("walk %q failed: %v", name, err)
	}

	file, ok := entity.File()
	if !ok {
		t.Fatalf("walk %q yielded a directory, expected a file", name)
	}
	return file
}

func walkDir(t *testing.T, ctx context.Context, dir ninep.Directory, name string) ninep.Directory {
	t.Helper()

	entity, err := dir.Walk(ctx, name)
	if err != nil {
		t.Fatalf("walk %q failed: %v", name, err)
	}

	sub, ok := entity.Dir()
	if !ok {
		t.Fatalf("walk %q yielded a file, expected a directory", name)
	}
	return sub
}

func writeString(t *testing.T, ctx context.Context, f ninep.File, mode data.OpenMode, content string) {
	t.Helper()

	if _, _, err := f.Open(ctx, mode); err != nil {
		t.Fatalf("open for write failed: %v", err)
	}

	n, err := f.Write(ctx, strings.NewReader(content), uint32(len(content)))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if n != uint32(len(content)) {
		t.Fatalf("short write: %d of %d bytes", n, len(content))
	}

	if err := f.Clunk(ctx); err != nil {
		t.Fatalf("clunk failed: %v", err)
	}
}

func readString(t *testing.T, ctx context.Context, f ninep.File, offset uint64, count uint32) string {
	t.Helper()

	var buf bytes.Buffer
	if _, err := f.Read(ctx, &buf, offset, count); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return buf.String()
}

func TestBackends_CreateAndWalk(t *testing.T) {
	for name, factory := range getTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()
			root := attachRoot(tst, factory(tst), "alice")

			rootStat, err := root.Stat(ctx)
			if err != nil {
				tst.Fatalf("stat root failed: %v", err)
			}
			if rootStat.Name != "/" {
				tst.Errorf("root name is %q, must be /", rootStat.Name)
			}
			if !rootStat.IsDir() {
				tst.Error("root is not a directory")
			}

			if err := root.CreateFile(ctx, "readme", data.PermissionsFromBits(0o644)); err != nil {
				tst.Fatalf("create file failed: %v", err)
			}
			if err := root.CreateDir(ctx, "docs", data.PermissionsFromBits(0o755)); err != nil {
				tst.Fatalf("create dir failed: %v", err)
			}

			file := walkFile(tst, ctx, root, "readme")
			st, err := file.Stat(ctx)
			if err != nil {
				tst.Fatalf("stat failed: %v", err)
			}
			if st.Name != "readme" {
				tst.Errorf("expected name readme, got %q", st.Name)
			}
			if st.Mode.Permissions.Bits() != 0o644 {
				tst.Errorf("expected permissions 0o644, got %#o", st.Mode.Permissions.Bits())
			}
			if st.UID != "alice" {
				tst.Errorf("owner should be the acting principal, got %q", st.UID)
			}
			if st.GID != rootStat.GID {
				tst.Errorf("group should match the directory, got %q", st.GID)
			}

			walkDir(tst, ctx, root, "docs")

			if _, err := root.Walk(ctx, "missing"); !errors.Is(err, ninep.ErrNotExist) {
				tst.Errorf("walk of missing child: expected ErrNotExist, got %v", err)
			}

			// "." is not a protocol-level name; it must not resolve.
			if _, err := root.Walk(ctx, "."); !errors.Is(err, ninep.ErrNotExist) {
				tst.Errorf("walk of \".\": expected ErrNotExist, got %v", err)
			}

			// ".." at the root resolves to the root itself, never to an
			// unrelated entity.
			parent := walkDir(tst, ctx, root, "..")
			parentStat, err := parent.Stat(ctx)
			if err != nil {
				tst.Fatalf("stat of parent failed: %v", err)
			}
			if parentStat.Qid.Path != rootStat.Qid.Path {
				tst.Errorf("walk \"..\" at root left the root: %v != %v", parentStat.Qid, rootStat.Qid)
			}

			// ".." one level down resolves to the root.
			docs := walkDir(tst, ctx, root, "docs")
			up := walkDir(tst, ctx, docs, "..")
			upStat, err := up.Stat(ctx)
			if err != nil {
				tst.Fatalf("stat failed: %v", err)
			}
			if upStat.Qid.Path != rootStat.Qid.Path {
				tst.Errorf("walk \"..\" did not reach the parent")
			}
		})
	}
}

func TestBackends_CreatePermissionMasking(t *testing.T) {
	for name, factory := range getTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()
			root := attachRoot(tst, factory(tst), "alice")

			// Root carries 0o755: a file requesting 0o777 must come out as
			// 0o777 & (~0o666 | (0o755 & 0o666)) = 0o755.
			if err := root.CreateFile(ctx, "x", data.PermissionsFromBits(0o777)); err != nil {
				tst.Fatalf("create failed: %v", err)
			}

			st, err := walkFile(tst, ctx, root, "x").Stat(ctx)
			if err != nil {
				tst.Fatalf("stat failed: %v", err)
			}
			if st.Mode.Permissions.Bits() != 0o755 {
				tst.Errorf("expected effective permissions 0o755, got %#o", st.Mode.Permissions.Bits())
			}
		})
	}
}

func TestBackends_IllegalNames(t *testing.T) {
	for name, factory := range getTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()
			root := attachRoot(tst, factory(tst), "alice")
			perm := data.PermissionsFromBits(0o644)

			for _, bad := range []string{".", "..", "", "a/b"} {
				if err := root.CreateFile(ctx, bad, perm); !errors.Is(err, ninep.ErrIllegalName) {
					tst.Errorf("create %q: expected ErrIllegalName, got %v", bad, err)
				}
				if err := root.CreateDir(ctx, bad, perm); !errors.Is(err, ninep.ErrIllegalName) {
					tst.Errorf("create dir %q: expected ErrIllegalName, got %v", bad, err)
				}
			}

			if err := root.CreateFile(ctx, "taken", perm); err != nil {
				tst.Fatalf("create failed: %v", err)
			}
			if err := root.CreateFile(ctx, "taken", perm); !errors.Is(err, ninep.ErrExist) {
				tst.Errorf("duplicate create: expected ErrExist, got %v", err)
			}
			if err := root.CreateDir(ctx, "taken", perm); !errors.Is(err, ninep.ErrExist) {
				tst.Errorf("create dir over file: expected ErrExist, got %v", err)
			}
		})
	}
}

func TestBackends_ReadWrite(t *testing.T) {
	for name, factory := range getTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()
			root := attachRoot(tst, factory(tst), "alice")

			if err := root.CreateFile(ctx, "notes", data.PermissionsFromBits(0o644)); err != nil {
				tst.Fatalf("create failed: %v", err)
			}

			writer := walkFile(tst, ctx, root, "notes")
			before, _ := writer.Stat(ctx)

			writeString(tst, ctx, writer, data.OpenMode{Sub: data.OpenWrite}, "hello world")

			after, err := writer.Stat(ctx)
			if err != nil {
				tst.Fatalf("stat failed: %v", err)
			}
			if after.Length != 11 {
				tst.Errorf("expected length 11, got %d", after.Length)
			}
			if after.Qid.Version <= before.Qid.Version {
				tst.Errorf("version did not increase on modification: %d -> %d", before.Qid.Version, after.Qid.Version)
			}

			reader := walkFile(tst, ctx, root, "notes")
			if _, _, err := reader.Open(ctx, data.OpenMode{Sub: data.OpenRead}); err != nil {
				tst.Fatalf("open for read failed: %v", err)
			}

			if got := readString(tst, ctx, reader, 0, 1024); got != "hello world" {
				tst.Errorf("expected 'hello world', got %q", got)
			}
			if got := readString(tst, ctx, reader, 6, 5); got != "world" {
				tst.Errorf("offset read: expected 'world', got %q", got)
			}
			if got := readString(tst, ctx, reader, 0, 4); got != "hell" {
				tst.Errorf("short count read: expected 'hell', got %q", got)
			}

			// Reads past end of file transfer zero bytes, not an error.
			var buf bytes.Buffer
			n, err := reader.Read(ctx, &buf, 100, 10)
			if err != nil || n != 0 {
				tst.Errorf("read past EOF: expected (0, nil), got (%d, %v)", n, err)
			}

			// A read-mode fid cannot write; a write-mode fid cannot read.
			if _, err := reader.Write(ctx, strings.NewReader("x"), 1); !errors.Is(err, ninep.ErrIllegalOperation) {
				tst.Errorf("write on read fid: expected ErrIllegalOperation, got %v", err)
			}

			if err := reader.Clunk(ctx); err != nil {
				tst.Fatalf("clunk failed: %v", err)
			}

			// Closed fids reject I/O outright.
			if _, err := reader.Read(ctx, &buf, 0, 1); !errors.Is(err, ninep.ErrClosed) {
				tst.Errorf("read on closed fid: expected ErrClosed, got %v", err)
			}
			if _, err := reader.Write(ctx, strings.NewReader("x"), 1); !errors.Is(err, ninep.ErrClosed) {
				tst.Errorf("write on closed fid: expected ErrClosed, got %v", err)
			}
		})
	}
}

func TestBackends_FidStateMachine(t *testing.T) {
	for name, factory := range getTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()
			root := attachRoot(tst, factory(tst), "alice")

			if err := root.CreateFile(ctx, "f", data.PermissionsFromBits(0o644)); err != nil {
				tst.Fatalf("create failed: %v", err)
			}
			file := walkFile(tst, ctx, root, "f")

			if _, open := file.Mode(); open {
				tst.Error("fresh fid reports open")
			}

			mode := data.OpenMode{Sub: data.OpenReadWrite}
			if _, _, err := file.Open(ctx, mode); err != nil {
				tst.Fatalf("open failed: %v", err)
			}

			got, open := file.Mode()
			if !open || got != mode {
				tst.Errorf("expected open mode %+v, got %+v (open=%v)", mode, got, open)
			}

			// A second open on the same fid is a state violation.
			if _, _, err := file.Open(ctx, mode); !errors.Is(err, ninep.ErrAlreadyOpen) {
				tst.Errorf("double open: expected ErrAlreadyOpen, got %v", err)
			}

			if err := file.Clunk(ctx); err != nil {
				tst.Fatalf("clunk failed: %v", err)
			}
			if _, open := file.Mode(); open {
				tst.Error("fid still open after clunk")
			}
		})
	}
}

func TestBackends_OpenPermissions(t *testing.T) {
	for name, factory := range getTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()
			backend := factory(tst)
			root := attachRoot(tst, backend, "alice")

			if err := root.CreateFile(ctx, "shared", data.PermissionsFromBits(0o644)); err != nil {
				tst.Fatalf("create failed: %v", err)
			}

			// The owner reads and writes.
			owner := walkFile(tst, ctx, root, "shared")
			if _, _, err := owner.Open(ctx, data.OpenMode{Sub: data.OpenReadWrite}); err != nil {
				tst.Fatalf("owner open failed: %v", err)
			}
			owner.Clunk(ctx)

			// Execute is not granted by 0o644.
			if _, _, err := owner.Open(ctx, data.OpenMode{Sub: data.OpenExecute}); !errors.Is(err, ninep.ErrPermission) {
				tst.Errorf("exec open: expected ErrPermission, got %v", err)
			}

			// Another principal falls into the other class: read only.
			otherRoot := attachRoot(tst, backend, "bob")
			other := walkFile(tst, ctx, otherRoot, "shared")
			if _, _, err := other.Open(ctx, data.OpenMode{Sub: data.OpenRead}); err != nil {
				tst.Fatalf("other-class read open failed: %v", err)
			}
			other.Clunk(ctx)

			if _, _, err := other.Open(ctx, data.OpenMode{Sub: data.OpenWrite}); !errors.Is(err, ninep.ErrPermission) {
				tst.Errorf("other-class write open: expected ErrPermission, got %v", err)
			}
			if _, _, err := other.Open(ctx, data.OpenMode{Sub: data.OpenRead, Truncate: true}); !errors.Is(err, ninep.ErrPermission) {
				tst.Errorf("truncate without write permission: expected ErrPermission, got %v", err)
			}

			// An execute-mode fid grants execution only: I/O through it is
			// rejected even though the owner could open for reading.
			if err := root.CreateFile(ctx, "tool", data.PermissionsFromBits(0o755)); err != nil {
				tst.Fatalf("create failed: %v", err)
			}
			tool := walkFile(tst, ctx, root, "tool")
			if _, _, err := tool.Open(ctx, data.OpenMode{Sub: data.OpenExecute}); err != nil {
				tst.Fatalf("exec open on executable file failed: %v", err)
			}
			var buf bytes.Buffer
			if _, err := tool.Read(ctx, &buf, 0, 8); !errors.Is(err, ninep.ErrIllegalOperation) {
				tst.Errorf("read on exec fid: expected ErrIllegalOperation, got %v", err)
			}
			if _, err := tool.Write(ctx, strings.NewReader("x"), 1); !errors.Is(err, ninep.ErrIllegalOperation) {
				tst.Errorf("write on exec fid: expected ErrIllegalOperation, got %v", err)
			}
			tool.Clunk(ctx)
		})
	}
}

func TestBackends_OpenTimePermissions(t *testing.T) {
	for name, factory := range getTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()
			root := attachRoot(tst, factory(tst), "alice")

			if err := root.CreateFile(ctx, "locked", data.PermissionsFromBits(0o644)); err != nil {
				tst.Fatalf("create failed: %v", err)
			}

			file := walkFile(tst, ctx, root, "locked")
			if _, _, err := file.Open(ctx, data.OpenMode{Sub: data.OpenReadWrite}); err != nil {
				tst.Fatalf("open failed: %v", err)
			}

			// Revoke every permission while the fid is open.
			st, err := file.Stat(ctx)
			if err != nil {
				tst.Fatalf("stat failed: %v", err)
			}
			st.Mode.Permissions = data.PermissionsFromBits(0)
			if err := file.WStat(ctx, st); err != nil {
				tst.Fatalf("wstat failed: %v", err)
			}

			// Permissions were evaluated at open time; the open fid keeps
			// working.
			if _, err := file.Write(ctx, strings.NewReader("still here"), 10); err != nil {
				tst.Errorf("write on open fid after revocation failed: %v", err)
			}
			var buf bytes.Buffer
			if _, err := file.Read(ctx, &buf, 0, 64); err != nil {
				tst.Errorf("read on open fid after revocation failed: %v", err)
			}

			// A fresh fid sees the new permissions.
			fresh := walkFile(tst, ctx, root, "locked")
			if _, _, err := fresh.Open(ctx, data.OpenMode{Sub: data.OpenRead}); !errors.Is(err, ninep.ErrPermission) {
				tst.Errorf("fresh open: expected ErrPermission, got %v", err)
			}

			// So does the original fid once it cycles through a clunk.
			if err := file.Clunk(ctx); err != nil {
				tst.Fatalf("clunk failed: %v", err)
			}
			if _, _, err := file.Open(ctx, data.OpenMode{Sub: data.OpenRead}); !errors.Is(err, ninep.ErrPermission) {
				tst.Errorf("reopen after revocation: expected ErrPermission, got %v", err)
			}
		})
	}
}

func TestBackends_AppendOnly(t *testing.T) {
	for name, factory := range getTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()
			root := attachRoot(tst, factory(tst), "alice")

			if err := root.CreateFile(ctx, "journal", data.PermissionsFromBits(0o644)); err != nil {
				tst.Fatalf("create failed: %v", err)
			}

			file := walkFile(tst, ctx, root, "journal")
			st, err := file.Stat(ctx)
			if err != nil {
				tst.Fatalf("stat failed: %v", err)
			}
			st.Mode.FileType.IsAppendOnly = true
			if err := file.WStat(ctx, st); err != nil {
				tst.Fatalf("wstat failed: %v", err)
			}

			writeString(tst, ctx, file, data.OpenMode{Sub: data.OpenWrite}, "abc")

			// A fresh open starts at position 0, but append-only files take
			// data at end of file regardless.
			writeString(tst, ctx, file, data.OpenMode{Sub: data.OpenWrite}, "def")

			reader := walkFile(tst, ctx, root, "journal")
			if _, _, err := reader.Open(ctx, data.OpenMode{Sub: data.OpenRead}); err != nil {
				tst.Fatalf("open for read failed: %v", err)
			}
			if got := readString(tst, ctx, reader, 0, 64); got != "abcdef" {
				tst.Errorf("expected 'abcdef', got %q", got)
			}
			reader.Clunk(ctx)

			// Truncate-on-open succeeds but is skipped for append-only.
			if _, _, err := file.Open(ctx, data.OpenMode{Sub: data.OpenWrite, Truncate: true}); err != nil {
				tst.Fatalf("truncating open on append-only file failed: %v", err)
			}
			file.Clunk(ctx)

			after, err := file.Stat(ctx)
			if err != nil {
				tst.Fatalf("stat failed: %v", err)
			}
			if after.Length != 6 {
				tst.Errorf("append-only file was truncated: length %d", after.Length)
			}
		})
	}
}

func TestBackends_TruncateOnOpen(t *testing.T) {
	for name, factory := range getTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()
			root := attachRoot(tst, factory(tst), "alice")

			if err := root.CreateFile(ctx, "scratch", data.PermissionsFromBits(0o644)); err != nil {
				tst.Fatalf("create failed: %v", err)
			}

			file := walkFile(tst, ctx, root, "scratch")
			writeString(tst, ctx, file, data.OpenMode{Sub: data.OpenWrite}, "hello")

			if _, _, err := file.Open(ctx, data.OpenMode{Sub: data.OpenWrite, Truncate: true}); err != nil {
				tst.Fatalf("truncating open failed: %v", err)
			}
			file.Clunk(ctx)

			st, err := file.Stat(ctx)
			if err != nil {
				tst.Fatalf("stat failed: %v", err)
			}
			if st.Length != 0 {
				tst.Errorf("expected truncated length 0, got %d", st.Length)
			}
		})
	}
}

func TestBackends_ExclusiveOpen(t *testing.T) {
	for name, factory := range getTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()
			root := attachRoot(tst, factory(tst), "alice")

			if err := root.CreateFile(ctx, "lock", data.PermissionsFromBits(0o644)); err != nil {
				tst.Fatalf("create failed: %v", err)
			}

			first := walkFile(tst, ctx, root, "lock")
			st, err := first.Stat(ctx)
			if err != nil {
				tst.Fatalf("stat failed: %v", err)
			}
			st.Mode.FileType.IsExclusive = true
			if err := first.WStat(ctx, st); err != nil {
				tst.Fatalf("wstat failed: %v", err)
			}

			second := walkFile(tst, ctx, root, "lock")

			if _, _, err := first.Open(ctx, data.OpenMode{Sub: data.OpenRead}); err != nil {
				tst.Fatalf("first open failed: %v", err)
			}

			// Only one fid may hold an exclusive-use file open.
			if _, _, err := second.Open(ctx, data.OpenMode{Sub: data.OpenRead}); !errors.Is(err, ninep.ErrExclusiveConflict) {
				tst.Fatalf("second open: expected ErrExclusiveConflict, got %v", err)
			}

			if err := first.Clunk(ctx); err != nil {
				tst.Fatalf("clunk failed: %v", err)
			}

			if _, _, err := second.Open(ctx, data.OpenMode{Sub: data.OpenRead}); err != nil {
				tst.Fatalf("open after release failed: %v", err)
			}
			second.Clunk(ctx)
		})
	}
}

func TestBackends_RemoveOnClose(t *testing.T) {
	for name, factory := range getTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()
			root := attachRoot(tst, factory(tst), "alice")

			if err := root.CreateFile(ctx, "tmp", data.PermissionsFromBits(0o644)); err != nil {
				tst.Fatalf("create failed: %v", err)
			}

			file := walkFile(tst, ctx, root, "tmp")
			if _, _, err := file.Open(ctx, data.OpenMode{Sub: data.OpenWrite, RClose: true}); err != nil {
				tst.Fatalf("open with rclose failed: %v", err)
			}

			if err := file.Clunk(ctx); err != nil {
				tst.Fatalf("clunk failed: %v", err)
			}

			if _, err := root.Walk(ctx, "tmp"); !errors.Is(err, ninep.ErrNotExist) {
				tst.Errorf("file should be removed on clunk, walk got %v", err)
			}
		})
	}
}

func TestBackends_Remove(t *testing.T) {
	for name, factory := range getTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()
			backend := factory(tst)
			root := attachRoot(tst, backend, "alice")

			if err := root.CreateFile(ctx, "gone", data.PermissionsFromBits(0o644)); err != nil {
				tst.Fatalf("create failed: %v", err)
			}

			file := walkFile(tst, ctx, root, "gone")
			oldStat, err := file.Stat(ctx)
			if err != nil {
				tst.Fatalf("stat failed: %v", err)
			}

			if err := file.Remove(ctx); err != nil {
				tst.Fatalf("remove failed: %v", err)
			}
			if _, err := root.Walk(ctx, "gone"); !errors.Is(err, ninep.ErrNotExist) {
				tst.Errorf("removed file still walkable: %v", err)
			}

			// A second remove through the same fid fails, but the fid stays
			// clunked either way.
			if err := file.Remove(ctx); !errors.Is(err, ninep.ErrNotExist) {
				tst.Errorf("double remove: expected ErrNotExist, got %v", err)
			}
			if _, open := file.Mode(); open {
				tst.Error("fid reports open after remove")
			}

			// A recreated name is a different file instance: fresh qid path.
			if err := root.CreateFile(ctx, "gone", data.PermissionsFromBits(0o644)); err != nil {
				tst.Fatalf("recreate failed: %v", err)
			}
			newStat, err := walkFile(tst, ctx, root, "gone").Stat(ctx)
			if err != nil {
				tst.Fatalf("stat failed: %v", err)
			}
			if newStat.Qid.Path == oldStat.Qid.Path {
				tst.Errorf("recreated file reused qid path %#x", oldStat.Qid.Path)
			}

			// Removal requires write permission in the parent directory.
			otherRoot := attachRoot(tst, backend, "bob")
			other := walkFile(tst, ctx, otherRoot, "gone")
			if err := other.Remove(ctx); !errors.Is(err, ninep.ErrPermission) {
				tst.Errorf("remove without parent write: expected ErrPermission, got %v", err)
			}
			if _, err := root.Walk(ctx, "gone"); err != nil {
				tst.Errorf("file vanished after denied remove: %v", err)
			}
		})
	}
}

func TestBackends_WStat(t *testing.T) {
	for name, factory := range getTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()
			backend := factory(tst)
			root := attachRoot(tst, backend, "alice")

			if err := root.CreateFile(ctx, "old", data.PermissionsFromBits(0o644)); err != nil {
				tst.Fatalf("create failed: %v", err)
			}

			file := walkFile(tst, ctx, root, "old")
			writeString(tst, ctx, file, data.OpenMode{Sub: data.OpenWrite}, "hello")

			// Rename within the parent.
			st, err := file.Stat(ctx)
			if err != nil {
				tst.Fatalf("stat failed: %v", err)
			}
			st.Name = "new"
			if err := file.WStat(ctx, st); err != nil {
				tst.Fatalf("rename wstat failed: %v", err)
			}
			if _, err := root.Walk(ctx, "old"); !errors.Is(err, ninep.ErrNotExist) {
				tst.Errorf("old name still resolves after rename")
			}
			walkFile(tst, ctx, root, "new")

			// Rename onto an existing sibling fails without partial effect.
			if err := root.CreateFile(ctx, "blocker", data.PermissionsFromBits(0o644)); err != nil {
				tst.Fatalf("create failed: %v", err)
			}
			st, _ = file.Stat(ctx)
			st.Name = "blocker"
			if err := file.WStat(ctx, st); !errors.Is(err, ninep.ErrExist) {
				tst.Errorf("rename onto sibling: expected ErrExist, got %v", err)
			}
			walkFile(tst, ctx, root, "new")

			// Length change truncates.
			st, _ = file.Stat(ctx)
			st.Length = 3
			if err := file.WStat(ctx, st); err != nil {
				tst.Fatalf("truncating wstat failed: %v", err)
			}
			reader := walkFile(tst, ctx, root, "new")
			if _, _, err := reader.Open(ctx, data.OpenMode{Sub: data.OpenRead}); err != nil {
				tst.Fatalf("open failed: %v", err)
			}
			if got := readString(tst, ctx, reader, 0, 64); got != "hel" {
				tst.Errorf("expected 'hel' after wstat truncate, got %q", got)
			}
			reader.Clunk(ctx)

			// The root cannot be renamed away from "/".
			rootStat, err := root.Stat(ctx)
			if err != nil {
				tst.Fatalf("stat root failed: %v", err)
			}
			renamed := rootStat
			renamed.Name = "not-root"
			if err := root.WStat(ctx, renamed); !errors.Is(err, ninep.ErrIllegalOperation) {
				tst.Errorf("root rename: expected ErrIllegalOperation, got %v", err)
			}

			// The qid is server-owned.
			st, _ = file.Stat(ctx)
			st.Qid.Path++
			if err := file.WStat(ctx, st); !errors.Is(err, ninep.ErrIllegalOperation) {
				tst.Errorf("qid edit: expected ErrIllegalOperation, got %v", err)
			}

			// The directory flag cannot be cleared while children exist.
			if err := root.CreateDir(ctx, "full", data.PermissionsFromBits(0o755)); err != nil {
				tst.Fatalf("create dir failed: %v", err)
			}
			full := walkDir(tst, ctx, root, "full")
			if err := full.CreateFile(ctx, "child", data.PermissionsFromBits(0o644)); err != nil {
				tst.Fatalf("create child failed: %v", err)
			}
			dirStat, _ := full.Stat(ctx)
			dirStat.Mode.FileType.IsDir = false
			if err := full.WStat(ctx, dirStat); !errors.Is(err, ninep.ErrIllegalOperation) {
				tst.Errorf("dir flag clear: expected ErrIllegalOperation, got %v", err)
			}

			// Mode changes require ownership.
			otherRoot := attachRoot(tst, backend, "bob")
			other := walkFile(tst, ctx, otherRoot, "new")
			st, _ = other.Stat(ctx)
			st.Mode.Permissions = data.PermissionsFromBits(0o777)
			if err := other.WStat(ctx, st); !errors.Is(err, ninep.ErrPermission) {
				tst.Errorf("non-owner mode change: expected ErrPermission, got %v", err)
			}
		})
	}
}

func TestBackends_ReadDir(t *testing.T) {
	for name, factory := range getTestBackendFactories() {
		t.Run(name, func(tst *testing.T) {
			ctx := context.Background()
			root := attachRoot(tst, factory(tst), "alice")

			for _, n := range []string{"cherry", "apple", "banana"} {
				if err := root.CreateFile(ctx, n, data.PermissionsFromBits(0o644)); err != nil {
					tst.Fatalf("create %s failed: %v", n, err)
				}
			}
			if err := root.CreateDir(ctx, "zoo", data.PermissionsFromBits(0o755)); err != nil {
				tst.Fatalf("create dir failed: %v", err)
			}

			stats, err := root.ReadDir(ctx)
			if err != nil {
				tst.Fatalf("readdir failed: %v", err)
			}

			expected := []string{"apple", "banana", "cherry", "zoo"}
			if len(stats) != len(expected) {
				tst.Fatalf("expected %d entries, got %d", len(expected), len(stats))
			}
			for i, want := range expected {
				if stats[i].Name != want {
					tst.Errorf("entry %d: expected %q, got %q", i, want, stats[i].Name)
				}
			}
			if !stats[3].IsDir() {
				tst.Error("zoo should list as a directory")
			}
		})
	}
}
