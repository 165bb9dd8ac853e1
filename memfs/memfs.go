// Package memfs is the in-memory reference implementation of the ninep
// capability contract. It keeps the hierarchy in three layers:
//
// Layer 1 (tree):  per-directory B-tree mapping child name → node for
// ordered lookups and listings.
// Layer 2 (nodes): map of qid path → node for identity lookups.
// Layer 3 (blobs): map of blob ID → content, so file bodies live apart from
// their metadata the way a production backend would keep them in object
// storage.
package memfs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/btree"

	"github.com/mwantia/ninep"
	"github.com/mwantia/ninep/data"
	"github.com/mwantia/ninep/log"
)

// FS is a thread-safe in-memory filesystem. All tree mutations happen under
// one RW mutex; exclusive-open tracking lives in the shared registry keyed
// by qid path.
type FS struct {
	mu sync.RWMutex

	root  *node
	nodes map[uint64]*node
	blobs map[string][]byte

	// Monotonic qid path counter. Never reused, so a deleted and recreated
	// name always gets a fresh identity.
	nextPath uint64

	excl   *ninep.ExclusiveRegistry
	iounit ninep.IoUnit
	log    *log.Logger
}

// node is the identity layer record for one entity. Directories carry a
// child index, files carry a blob reference.
type node struct {
	path    uint64
	version uint32

	name string
	mode data.FileMode

	atime  uint32
	mtime  uint32
	length uint64

	uid  string
	gid  string
	muid string

	parent   *node
	children *btree.Map[string, *node]
	blob     string
}

// New creates an empty filesystem whose root directory is owned by the
// configured user (see WithUser).
func New(opts ...Option) (*FS, error) {
	options := newDefaultOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	fs := &FS{
		nodes:  make(map[uint64]*node),
		blobs:  make(map[string][]byte),
		excl:   ninep.NewExclusiveRegistry(),
		iounit: options.IoUnit,
		log:    options.Logger,
	}

	now := unixNow()
	fs.root = &node{
		path: fs.allocPath(),
		name: data.RootName,
		mode: data.FileMode{
			Permissions: data.PermissionsFromBits(0o755),
			FileType:    data.FileType{IsDir: true},
		},
		atime:    now,
		mtime:    now,
		uid:      options.User,
		gid:      options.Group,
		muid:     options.User,
		children: btree.NewMap[string, *node](0),
	}
	fs.root.parent = fs.root
	fs.nodes[fs.root.path] = fs.root

	return fs, nil
}

// Attach binds an acting principal and returns the root directory, the way a
// 9P attach yields the root fid.
func (fs *FS) Attach(ctx context.Context, user string) (ninep.Directory, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: empty user", ninep.ErrPermission)
	}

	fs.log.Debug("attach user=%s", user)
	return &DirHandle{fs: fs, n: fs.root, user: user}, nil
}

func (fs *FS) allocPath() uint64 {
	fs.nextPath++
	return fs.nextPath
}

func unixNow() uint32 {
	return uint32(time.Now().Unix())
}

// qid builds the identity triple for a node from its current state.
func (fs *FS) qid(n *node) data.Qid {
	return data.Qid{
		Type:    n.mode.FileType,
		Version: n.version,
		Path:    n.path,
	}
}

// snapshot builds a stat value for a node. Caller must hold fs.mu.
func (fs *FS) snapshot(n *node) data.Stat {
	return data.Stat{
		Qid:    fs.qid(n),
		Mode:   n.mode,
		Atime:  n.atime,
		Mtime:  n.mtime,
		Length: n.length,
		Name:   n.name,
		UID:    n.uid,
		GID:    n.gid,
		MUID:   n.muid,
	}
}

// class resolves which permission set applies to user on n. Group
// membership is modelled as the acting user naming the entity's group;
// richer group databases belong to the transport layer's auth story.
func class(n *node, user string) data.IndividualPermissions {
	return n.mode.Permissions.Class(user == n.uid, user == n.gid)
}

// touch bumps the version and modification time of a node after a mutation.
// Caller must hold fs.mu for writing.
func (fs *FS) touch(n *node, user string) {
	n.version++
	n.mtime = unixNow()
	n.muid = user
}

// checkName rejects names the protocol forbids as path elements.
func checkName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ninep.ErrIllegalName, name)
	}

	for _, r := range name {
		if r == '/' {
			return fmt.Errorf("%w: %q contains a slash", ninep.ErrIllegalName, name)
		}
	}

	return nil
}

// create inserts a child under dir. Caller must hold fs.mu for writing and
// have validated permissions.
func (fs *FS) create(dir *node, name string, perm data.Permissions, isDir bool, user string) *node {
	effective := data.EffectivePermissions(perm, dir.mode.Permissions, isDir)

	now := unixNow()
	child := &node{
		path: fs.allocPath(),
		name: name,
		mode: data.FileMode{
			Permissions: effective,
			FileType:    data.FileType{IsDir: isDir},
		},
		atime:  now,
		mtime:  now,
		uid:    user,
		gid:    dir.gid,
		muid:   user,
		parent: dir,
	}
	if isDir {
		child.children = btree.NewMap[string, *node](0)
	}

	dir.children.Set(name, child)
	fs.nodes[child.path] = child
	fs.touch(dir, user)

	fs.log.Debug("create %s path=%#x mode=%s", name, child.path, child.mode)
	return child
}

// unlink detaches a node from the tree and drops all three layers' state
// for it. Caller must hold fs.mu for writing.
func (fs *FS) unlink(n *node) {
	n.parent.children.Delete(n.name)
	delete(fs.nodes, n.path)
	if n.blob != "" {
		delete(fs.blobs, n.blob)
	}
	fs.excl.Forget(n.path)

	fs.log.Debug("remove %s path=%#x", n.name, n.path)
}

// content returns the blob for a file node, which may be nil for an empty
// file. Caller must hold fs.mu.
func (fs *FS) content(n *node) []byte {
	if n.blob == "" {
		return nil
	}
	return fs.blobs[n.blob]
}

// setContent stores content for a file node, allocating a blob ID on first
// write. Caller must hold fs.mu for writing.
func (fs *FS) setContent(n *node, buf []byte) {
	if n.blob == "" {
		n.blob = uuid.NewString()
	}
	fs.blobs[n.blob] = buf
	n.length = uint64(len(buf))
}
