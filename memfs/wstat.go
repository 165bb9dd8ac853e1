package memfs

import (
	"fmt"

	"github.com/mwantia/ninep"
	"github.com/mwantia/ninep/data"
)

// wstat applies a full metadata replacement to a node. Every field is
// validated before anything is mutated, so the call either takes effect as a
// whole or fails with no partial state. Caller must hold fs.mu for writing.
func (fs *FS) wstat(n *node, user string, st data.Stat) error {
	if !fs.attached(n) {
		return fmt.Errorf("%w: wstat", ninep.ErrNotExist)
	}

	// The qid is server-owned. A zero qid means "keep"; anything else must
	// match the current identity exactly.
	if (st.Qid != data.Qid{}) && st.Qid != fs.qid(n) {
		return fmt.Errorf("%w: wstat cannot change the qid", ninep.ErrIllegalOperation)
	}

	cur := n.mode.FileType
	next := st.Mode.FileType
	if next.IsDir != cur.IsDir {
		if cur.IsDir && n.children.Len() > 0 {
			return fmt.Errorf("%w: wstat cannot clear the directory flag on a directory with children", ninep.ErrIllegalOperation)
		}
		return fmt.Errorf("%w: wstat cannot change an entity between file and directory", ninep.ErrIllegalOperation)
	}

	if st.Mode.Permissions != n.mode.Permissions && user != n.uid {
		return fmt.Errorf("%w: wstat mode change requires ownership", ninep.ErrPermission)
	}
	if (st.UID != n.uid || st.GID != n.gid) && user != n.uid {
		return fmt.Errorf("%w: wstat ownership change requires ownership", ninep.ErrPermission)
	}

	rename := st.Name != n.name
	if rename {
		if n == fs.root {
			return fmt.Errorf("%w: the root must be named %q", ninep.ErrIllegalOperation, data.RootName)
		}
		if err := checkName(st.Name); err != nil {
			return err
		}
		if _, exists := n.parent.children.Get(st.Name); exists {
			return fmt.Errorf("%w: %q", ninep.ErrExist, st.Name)
		}
		if !class(n.parent, user).Write {
			return fmt.Errorf("%w: rename requires write permission in parent", ninep.ErrPermission)
		}
	}

	resize := st.Length != n.length
	if resize {
		if cur.IsDir {
			return fmt.Errorf("%w: wstat cannot change the length of a directory", ninep.ErrIllegalOperation)
		}
		if !class(n, user).Write {
			return fmt.Errorf("%w: wstat length change requires write permission", ninep.ErrPermission)
		}
	}

	// Validation done; apply the replacement.
	if rename {
		n.parent.children.Delete(n.name)
		n.name = st.Name
		n.parent.children.Set(n.name, n)
		fs.touch(n.parent, user)
	}

	if resize {
		content := fs.content(n)
		if st.Length <= uint64(len(content)) {
			content = content[:st.Length]
		} else {
			grown := make([]byte, st.Length)
			copy(grown, content)
			content = grown
		}
		fs.setContent(n, content)
	}

	n.mode = data.FileMode{Permissions: st.Mode.Permissions, FileType: next}
	n.atime = st.Atime
	n.mtime = st.Mtime
	n.uid = st.UID
	n.gid = st.GID
	n.muid = st.MUID
	n.version++

	fs.log.Debug("wstat %s path=%#x", n.name, n.path)
	return nil
}
