package sqlfs

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwantia/ninep"
	"github.com/mwantia/ninep/data"
)

// wstat applies a full metadata replacement to an entity row. Everything is
// validated inside one transaction before any update, so the call either
// takes effect as a whole or rolls back with no partial state.
func (fs *FS) wstat(ctx context.Context, path uint64, user string, st data.Stat) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	tx, err := fs.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	cur, parent, err := getStat(ctx, tx, path)
	if err != nil {
		return err
	}

	// The qid is server-owned. A zero qid means "keep"; anything else must
	// match the current identity exactly.
	if (st.Qid != data.Qid{}) && st.Qid != cur.Qid {
		return fmt.Errorf("%w: wstat cannot change the qid", ninep.ErrIllegalOperation)
	}

	if st.Mode.FileType.IsDir != cur.IsDir() {
		if cur.IsDir() {
			count, err := childCount(ctx, tx, path)
			if err != nil {
				return err
			}
			if count > 0 {
				return fmt.Errorf("%w: wstat cannot clear the directory flag on a directory with children", ninep.ErrIllegalOperation)
			}
		}
		return fmt.Errorf("%w: wstat cannot change an entity between file and directory", ninep.ErrIllegalOperation)
	}

	if st.Mode.Permissions != cur.Mode.Permissions && user != cur.UID {
		return fmt.Errorf("%w: wstat mode change requires ownership", ninep.ErrPermission)
	}
	if (st.UID != cur.UID || st.GID != cur.GID) && user != cur.UID {
		return fmt.Errorf("%w: wstat ownership change requires ownership", ninep.ErrPermission)
	}

	rename := st.Name != cur.Name
	if rename {
		if path == rootPath {
			return fmt.Errorf("%w: the root must be named %q", ninep.ErrIllegalOperation, data.RootName)
		}
		if err := checkName(st.Name); err != nil {
			return err
		}
		if _, err := lookupChild(ctx, tx, parent, st.Name); err == nil {
			return fmt.Errorf("%w: %q", ninep.ErrExist, st.Name)
		} else if !errors.Is(err, ninep.ErrNotExist) {
			return err
		}

		dir, _, err := getStat(ctx, tx, parent)
		if err != nil {
			return err
		}
		if !class(dir, user).Write {
			return fmt.Errorf("%w: rename requires write permission in parent", ninep.ErrPermission)
		}

		touch(&dir, user)
		if err := putStat(ctx, tx, parent, dir); err != nil {
			return err
		}
	}

	if st.Length != cur.Length {
		if cur.IsDir() {
			return fmt.Errorf("%w: wstat cannot change the length of a directory", ninep.ErrIllegalOperation)
		}
		if !class(cur, user).Write {
			return fmt.Errorf("%w: wstat length change requires write permission", ninep.ErrPermission)
		}

		var content []byte
		if err := tx.QueryRowContext(ctx,
			"SELECT data FROM nine_files WHERE path = ?", path,
		).Scan(&content); err != nil {
			return fmt.Errorf("%w: %v", ninep.ErrIO, err)
		}

		if st.Length <= uint64(len(content)) {
			content = content[:st.Length]
		} else {
			grown := make([]byte, st.Length)
			copy(grown, content)
			content = grown
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE nine_files SET data = ? WHERE path = ?", content, path,
		); err != nil {
			return fmt.Errorf("%w: %v", ninep.ErrIO, err)
		}
	}

	next := cur
	next.Mode = st.Mode
	next.Atime = st.Atime
	next.Mtime = st.Mtime
	next.Length = st.Length
	next.Name = st.Name
	next.UID = st.UID
	next.GID = st.GID
	next.MUID = st.MUID
	next.Qid.Type = st.Mode.FileType
	next.Qid.Version++

	if err := putStat(ctx, tx, path, next); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}

	fs.log.Debug("wstat %s path=%#x", next.Name, path)
	return nil
}
