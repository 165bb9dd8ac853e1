package sqlfs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/mwantia/ninep"
	"github.com/mwantia/ninep/data"
)

// DirHandle is a fid naming a directory row, bound to the acting principal.
type DirHandle struct {
	fs   *FS
	path uint64
	user string
}

// FileHandle is a fid naming a file row. It owns its open state.
type FileHandle struct {
	fs   *FS
	path uint64
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

func (d *DirHandle) Stat(ctx context.Context) (data.Stat, error) {
	st, _, err := getStat(ctx, d.fs.db, d.path)
	return st, err
}

func (d *DirHandle) WStat(ctx context.Context, stat data.Stat) error {
	return d.fs.wstat(ctx, d.path, d.user, stat)
}

func (d *DirHandle) Walk(ctx context.Context, name string) (ninep.Entity, error) {
	_, parent, err := getStat(ctx, d.fs.db, d.path)
	if err != nil {
		return ninep.Entity{}, err
	}

	// ".." names the parent; the root row is its own parent, so walking
	// ".." there resolves to the root again.
	if name == ".." {
		return ninep.DirEntity(&DirHandle{fs: d.fs, path: parent, user: d.user}), nil
	}

	st, err := lookupChild(ctx, d.fs.db, d.path, name)
	if err != nil {
		return ninep.Entity{}, err
	}

	if st.IsDir() {
		return ninep.DirEntity(&DirHandle{fs: d.fs, path: st.Qid.Path, user: d.user}), nil
	}
	return ninep.FileEntity(&FileHandle{fs: d.fs, path: st.Qid.Path, user: d.user}), nil
}

func (d *DirHandle) ReadDir(ctx context.Context) ([]data.Stat, error) {
	rows, err := d.fs.db.QueryContext(ctx,
		"SELECT stat FROM nine_files WHERE parent = ? AND path != parent ORDER BY name", d.path,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}
	defer rows.Close()

	var stats []data.Stat
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("%w: %v", ninep.ErrIO, err)
		}

		var st data.Stat
		if err := st.Unmarshal([]byte(blob)); err != nil {
			return nil, fmt.Errorf("%w: corrupt stat: %v", ninep.ErrIO, err)
		}
		stats = append(stats, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}

	return stats, nil
}

func (d *DirHandle) CreateFile(ctx context.Context, name string, perm data.Permissions) error {
	return d.createChild(ctx, name, perm, false)
}

func (d *DirHandle) CreateDir(ctx context.Context, name string, perm data.Permissions) error {
	return d.createChild(ctx, name, perm, true)
}

func (d *DirHandle) createChild(ctx context.Context, name string, perm data.Permissions, isDir bool) error {
	if err := checkName(name); err != nil {
		return err
	}

	d.fs.mu.Lock()
	defer d.fs.mu.Unlock()

	tx, err := d.fs.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	dir, _, err := getStat(ctx, tx, d.path)
	if err != nil {
		return err
	}
	if !class(dir, d.user).Write {
		return fmt.Errorf("%w: create %q requires write permission in directory", ninep.ErrPermission, name)
	}
	if _, err := lookupChild(ctx, tx, d.path, name); err == nil {
		return fmt.Errorf("%w: %q", ninep.ErrExist, name)
	} else if !errors.Is(err, ninep.ErrNotExist) {
		return err
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO nine_files (parent, name, stat) VALUES (?, ?, '{}')", d.path, name,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}

	now := unixNow()
	st := data.Stat{
		Qid: data.Qid{
			Type: data.FileType{IsDir: isDir},
			Path: uint64(id),
		},
		Mode: data.FileMode{
			Permissions: data.EffectivePermissions(perm, dir.Mode.Permissions, isDir),
			FileType:    data.FileType{IsDir: isDir},
		},
		Atime: now,
		Mtime: now,
		Name:  name,
		UID:   d.user,
		GID:   dir.GID,
		MUID:  d.user,
	}
	if err := putStat(ctx, tx, uint64(id), st); err != nil {
		return err
	}

	touch(&dir, d.user)
	if err := putStat(ctx, tx, d.path, dir); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}

	d.fs.log.Debug("create %s path=%#x mode=%s", name, id, st.Mode)
	return nil
}

func (f *FileHandle) Stat(ctx context.Context) (data.Stat, error) {
	st, _, err := getStat(ctx, f.fs.db, f.path)
	return st, err
}

func (f *FileHandle) WStat(ctx context.Context, stat data.Stat) error {
	return f.fs.wstat(ctx, f.path, f.user, stat)
}

func (f *FileHandle) Open(ctx context.Context, mode data.OpenMode) (data.Qid, ninep.IoUnit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.open != nil {
		return data.Qid{}, 0, fmt.Errorf("%w: open", ninep.ErrAlreadyOpen)
	}

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	tx, err := f.fs.begin(ctx)
	if err != nil {
		return data.Qid{}, 0, err
	}
	defer tx.Rollback()

	st, parent, err := getStat(ctx, tx, f.path)
	if err != nil {
		return data.Qid{}, 0, err
	}

	// Permissions are evaluated here, once; later changes do not affect an
	// already-open fid.
	perms := class(st, f.user)
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
	if mode.RClose {
		dir, _, err := getStat(ctx, tx, parent)
		if err != nil {
			return data.Qid{}, 0, err
		}
		if !class(dir, f.user).Write {
			return data.Qid{}, 0, fmt.Errorf("%w: rclose requires write permission in parent", ninep.ErrPermission)
		}
	}

	if st.Mode.FileType.IsExclusive {
		if err := f.fs.excl.Acquire(f.path); err != nil {
			return data.Qid{}, 0, err
		}
	}

	// Truncation is skipped, not refused, on append-only files.
	if mode.Truncate && !st.Mode.FileType.IsAppendOnly {
		if _, err := tx.ExecContext(ctx,
			"UPDATE nine_files SET data = NULL WHERE path = ?", f.path,
		); err != nil {
			f.releaseExcl(st)
			return data.Qid{}, 0, fmt.Errorf("%w: %v", ninep.ErrIO, err)
		}

		st.Length = 0
		touch(&st, f.user)
		if err := putStat(ctx, tx, f.path, st); err != nil {
			f.releaseExcl(st)
			return data.Qid{}, 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		f.releaseExcl(st)
		return data.Qid{}, 0, fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}

	f.heldExcl = st.Mode.FileType.IsExclusive
	m := mode
	f.open = &m
	f.pos = 0

	f.fs.log.Debug("open %s mode=%#02x path=%#x", st.Name, mode.Bits(), f.path)
	return st.Qid, f.fs.iounit, nil
}

// releaseExcl undoes a provisional exclusivity acquisition when the rest of
// the open fails.
func (f *FileHandle) releaseExcl(st data.Stat) {
	if st.Mode.FileType.IsExclusive {
		f.fs.excl.Release(f.path)
	}
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

	var content []byte
	err := f.fs.db.QueryRowContext(ctx,
		"SELECT data FROM nine_files WHERE path = ?", f.path,
	).Scan(&content)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: read", ninep.ErrNotExist)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}

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

	tx, err := f.fs.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	st, _, err := getStat(ctx, tx, f.path)
	if err != nil {
		return 0, err
	}

	var content []byte
	if err := tx.QueryRowContext(ctx,
		"SELECT data FROM nine_files WHERE path = ?", f.path,
	).Scan(&content); err != nil {
		return 0, fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}

	pos := f.pos
	if st.Mode.FileType.IsAppendOnly {
		// Append-only files take data at the current end of file no matter
		// where the fid thinks it is.
		pos = st.Length
	}

	if end := pos + uint64(len(buf)); end > uint64(len(content)) {
		grown := make([]byte, end)
		copy(grown, content)
		content = grown
	}
	copy(content[pos:], buf)

	if _, err := tx.ExecContext(ctx,
		"UPDATE nine_files SET data = ? WHERE path = ?", content, f.path,
	); err != nil {
		return 0, fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}

	st.Length = uint64(len(content))
	touch(&st, f.user)
	if err := putStat(ctx, tx, f.path, st); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}

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
		// The permission to remove was checked when the fid was opened. The
		// entity may have been removed by another fid in the meantime; that
		// is not an error for a clunk.
		if err := f.fs.remove(ctx, f.path, f.user, true); err != nil && !errors.Is(err, ninep.ErrNotExist) {
			return err
		}
	}

	return nil
}

func (f *FileHandle) Remove(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Remove clunks the fid even when the removal itself fails.
	defer f.reset()

	return f.fs.remove(ctx, f.path, f.user, false)
}

// reset drops the fid back to the closed state and frees the exclusivity
// holder if this fid held it. Caller must hold f.mu.
func (f *FileHandle) reset() {
	if f.heldExcl {
		f.fs.excl.Release(f.path)
		f.heldExcl = false
	}
	f.open = nil
	f.pos = 0
}

// remove deletes an entity row. With skipPermission set the parent-write
// check is bypassed, which is only correct for rclose cleanup where the
// check already happened at open time.
func (fs *FS) remove(ctx context.Context, path uint64, user string, skipPermission bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	tx, err := fs.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	st, parent, err := getStat(ctx, tx, path)
	if err != nil {
		return err
	}

	dir, _, err := getStat(ctx, tx, parent)
	if err != nil {
		return err
	}
	if !skipPermission && !class(dir, user).Write {
		return fmt.Errorf("%w: remove requires write permission in parent", ninep.ErrPermission)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM nine_files WHERE path = ?", path,
	); err != nil {
		return fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}

	touch(&dir, user)
	if err := putStat(ctx, tx, parent, dir); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}

	fs.excl.Forget(path)
	fs.log.Debug("remove %s path=%#x", st.Name, path)
	return nil
}
