package memfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/mwantia/ninep"
	"github.com/mwantia/ninep/data"
)

// DirHandle is a fid naming a directory, bound to the acting principal that
// attached it.
type DirHandle struct {
	fs   *FS
	n    *node
	user string
}

// FileHandle is a fid naming a file. It owns its open state: closed until a
// successful Open, closed again after Clunk or Remove.
type FileHandle struct {
	fs   *FS
	n    *node
	user string

	mu       sync.Mutex
	open     *data.OpenMode
	pos      uint64
	heldExcl bool
}

var (
	_ ninep.Directory = (*DirHandle)(nil)
	_ ninep.File      = (*FileHandle)(nil)
)

// attached reports whether the node still lives in the tree. A fid can
// outlive its entity when another fid removes it. Caller must hold fs.mu.
func (fs *FS) attached(n *node) bool {
	return fs.nodes[n.path] == n
}

func (d *DirHandle) Stat(ctx context.Context) (data.Stat, error) {
	d.fs.mu.RLock()
	defer d.fs.mu.RUnlock()

	if !d.fs.attached(d.n) {
		return data.Stat{}, fmt.Errorf("%w: stat", ninep.ErrNotExist)
	}

	return d.fs.snapshot(d.n), nil
}

func (d *DirHandle) WStat(ctx context.Context, stat data.Stat) error {
	d.fs.mu.Lock()
	defer d.fs.mu.Unlock()

	return d.fs.wstat(d.n, d.user, stat)
}

func (d *DirHandle) Walk(ctx context.Context, name string) (ninep.Entity, error) {
	d.fs.mu.RLock()
	defer d.fs.mu.RUnlock()

	if !d.fs.attached(d.n) {
		return ninep.Entity{}, fmt.Errorf("%w: walk %q", ninep.ErrNotExist, name)
	}

	// ".." names the parent. The root is its own parent, so walking ".."
	// there resolves to the root again rather than escaping the hierarchy.
	if name == ".." {
		return ninep.DirEntity(&DirHandle{fs: d.fs, n: d.n.parent, user: d.user}), nil
	}

	// "." is not a protocol-level name. It gets no special treatment here;
	// create forbids it as a child name, so the lookup below fails.
	child, exists := d.n.children.Get(name)
	if !exists {
		return ninep.Entity{}, fmt.Errorf("%w: walk %q", ninep.ErrNotExist, name)
	}

	if child.mode.FileType.IsDir {
		return ninep.DirEntity(&DirHandle{fs: d.fs, n: child, user: d.user}), nil
	}
	return ninep.FileEntity(&FileHandle{fs: d.fs, n: child, user: d.user}), nil
}

func (d *DirHandle) ReadDir(ctx context.Context) ([]data.Stat, error) {
	d.fs.mu.RLock()
	defer d.fs.mu.RUnlock()

	if !d.fs.attached(d.n) {
		return nil, fmt.Errorf("%w: readdir", ninep.ErrNotExist)
	}

	stats := make([]data.Stat, 0, d.n.children.Len())
	d.n.children.Scan(func(_ string, child *node) bool {
		stats = append(stats, d.fs.snapshot(child))
		return true
	})

	return stats, nil
}

func (d *DirHandle) CreateFile(ctx context.Context, name string, perm data.Permissions) error {
	return d.createChild(name, perm, false)
}

func (d *DirHandle) CreateDir(ctx context.Context, name string, perm data.Permissions) error {
	return d.createChild(name, perm, true)
}

func (d *DirHandle) createChild(name string, perm data.Permissions, isDir bool) error {
	if err := checkName(name); err != nil {
		return err
	}

	d.fs.mu.Lock()
	defer d.fs.mu.Unlock()

	if !d.fs.attached(d.n) {
		return fmt.Errorf("%w: create %q", ninep.ErrNotExist, name)
	}
	if !class(d.n, d.user).Write {
		return fmt.Errorf("%w: create %q requires write permission in directory", ninep.ErrPermission, name)
	}
	if _, exists := d.n.children.Get(name); exists {
		return fmt.Errorf("%w: %q", ninep.ErrExist, name)
	}

	d.fs.create(d.n, name, perm, isDir, d.user)
	return nil
}

func (f *FileHandle) Stat(ctx context.Context) (data.Stat, error) {
	f.fs.mu.RLock()
	defer f.fs.mu.RUnlock()

	if !f.fs.attached(f.n) {
		return data.Stat{}, fmt.Errorf("%w: stat", ninep.ErrNotExist)
	}

	return f.fs.snapshot(f.n), nil
}

func (f *FileHandle) WStat(ctx context.Context, stat data.Stat) error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	return f.fs.wstat(f.n, f.user, stat)
}

func (f *FileHandle) Open(ctx context.Context, mode data.OpenMode) (data.Qid, ninep.IoUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.open != nil {
		return data.Qid{}, 0, fmt.Errorf("%w: open", ninep.ErrAlreadyOpen)
	}

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if !f.fs.attached(f.n) {
		return data.Qid{}, 0, fmt.Errorf("%w: open", ninep.ErrNotExist)
	}

	// Every permission involved is evaluated here, once. Later permission
	// changes do not affect a fid that is already open.
	perms := class(f.n, f.user)
	sub := mode.Sub
	if sub.NeedsRead() && !perms.Read {
		return data.Qid{}, 0, fmt.Errorf("%w: open for %s", ninep.ErrPermission, sub)
	}
	if sub.NeedsWrite() && !perms.Write {
		return data.Qid{}, 0, fmt.Errorf("%w: open for %s", ninep.ErrPermission, sub)
	}
	if sub.NeedsExecute() && !perms.Execute {
		return data.Qid{}, 0, fmt.Errorf("%w: open for %s", ninep.ErrPermission, sub)
	}
	if mode.Truncate && !perms.Write {
		return data.Qid{}, 0, fmt.Errorf("%w: truncate requires write permission", ninep.ErrPermission)
	}
	if mode.RClose && !class(f.n.parent, f.user).Write {
		return data.Qid{}, 0, fmt.Errorf("%w: rclose requires write permission in parent", ninep.ErrPermission)
	}

	if f.n.mode.FileType.IsExclusive {
		if err := f.fs.excl.Acquire(f.n.path); err != nil {
			return data.Qid{}, 0, err
		}
		f.heldExcl = true
	}

	// Truncation is skipped, not refused, on append-only files.
	if mode.Truncate && !f.n.mode.FileType.IsAppendOnly {
		f.fs.setContent(f.n, nil)
		f.fs.touch(f.n, f.user)
	}

	m := mode
	f.open = &m
	f.pos = 0

	f.fs.log.Debug("open %s mode=%#02x path=%#x", f.n.name, mode.Bits(), f.n.path)
	return f.fs.qid(f.n), f.fs.iounit, nil
}

func (f *FileHandle) Mode() (data.OpenMode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.open == nil {
		return data.OpenMode{}, false
	}
	return *f.open, true
}

func (f *FileHandle) Read(ctx context.Context, to io.Writer, offset uint64, count uint32) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.open == nil {
		return 0, fmt.Errorf("%w: read", ninep.ErrClosed)
	}
	if !f.open.Sub.NeedsRead() {
		return 0, fmt.Errorf("%w: fid not open for reading", ninep.ErrIllegalOperation)
	}

	f.fs.mu.RLock()
	content := f.fs.content(f.n)
	f.fs.mu.RUnlock()

	if offset >= uint64(len(content)) {
		return 0, nil
	}

	chunk := content[offset:]
	if uint64(count) < uint64(len(chunk)) {
		chunk = chunk[:count]
	}

	n, err := to.Write(chunk)
	if err != nil {
		return uint32(n), fmt.Errorf("%w: read: %v", ninep.ErrIO, err)
	}

	return uint32(n), nil
}

func (f *FileHandle) Write(ctx context.Context, from io.Reader, count uint32) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.open == nil {
		return 0, fmt.Errorf("%w: write", ninep.ErrClosed)
	}
	if !f.open.Sub.NeedsWrite() {
		return 0, fmt.Errorf("%w: fid not open for writing", ninep.ErrIllegalOperation)
	}

	buf := make([]byte, count)
	n, err := io.ReadFull(from, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, fmt.Errorf("%w: write: %v", ninep.ErrIO, err)
	}
	buf = buf[:n]

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if !f.fs.attached(f.n) {
		return 0, fmt.Errorf("%w: write", ninep.ErrNotExist)
	}

	pos := f.pos
	if f.n.mode.FileType.IsAppendOnly {
		// Append-only files take data at the current end of file no matter
		// where the fid thinks it is.
		pos = f.n.length
	}

	content := f.fs.content(f.n)
	if end := pos + uint64(len(buf)); end > uint64(len(content)) {
		grown := make([]byte, end)
		copy(grown, content)
		content = grown
	}
	copy(content[pos:], buf)

	f.fs.setContent(f.n, content)
	f.fs.touch(f.n, f.user)
	f.pos = pos + uint64(len(buf))

	return uint32(len(buf)), nil
}

func (f *FileHandle) Clunk(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.open == nil {
		return nil
	}

	rclose := f.open.RClose
	f.reset()

	if rclose {
		f.fs.mu.Lock()
		defer f.fs.mu.Unlock()

		// The permission to remove was checked when the fid was opened.
		if f.fs.attached(f.n) {
			f.fs.unlink(f.n)
			f.fs.touch(f.n.parent, f.user)
		}
	}

	return nil
}

func (f *FileHandle) Remove(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Remove clunks the fid even when the removal itself fails.
	defer f.reset()

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if !f.fs.attached(f.n) {
		return fmt.Errorf("%w: remove", ninep.ErrNotExist)
	}
	if !class(f.n.parent, f.user).Write {
		return fmt.Errorf("%w: remove requires write permission in parent", ninep.ErrPermission)
	}

	f.fs.unlink(f.n)
	f.fs.touch(f.n.parent, f.user)

	return nil
}

// reset drops the fid back to the closed state and frees the exclusivity
// holder if this fid held it. Caller must hold f.mu.
func (f *FileHandle) reset() {
	if f.heldExcl {
		f.fs.excl.Release(f.n.path)
		f.heldExcl = false
	}
	f.open = nil
	f.pos = 0
}
