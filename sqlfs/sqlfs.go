// Package sqlfs implements the ninep capability contract on top of a SQLite
// database. Every entity is one row: the qid path is the rowid, the stat
// snapshot is a JSON column, file bodies are blobs. The driver is
// modernc.org/sqlite, so the package builds with CGO disabled.
package sqlfs

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/mwantia/ninep"
	"github.com/mwantia/ninep/data"
	"github.com/mwantia/ninep/log"
)

// rootPath is the qid path of the hierarchy root, seeded by the schema.
const rootPath uint64 = 1

// FS is a SQLite-backed filesystem. The database serializes row access;
// fs.mu serializes multi-statement operations so they stay atomic with
// respect to each other. Exclusive-open tracking is per-process state in the
// shared registry, not row state.
type FS struct {
	mu sync.Mutex
	db *sql.DB

	excl   *ninep.ExclusiveRegistry
	iounit ninep.IoUnit
	log    *log.Logger
}

// New opens or creates a filesystem database. dbPath may be ":memory:".
func New(dbPath string, opts ...Option) (*FS, error) {
	options := newDefaultOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection, so the pool must stay at
	// one. File databases get the same treatment since fs.mu already
	// serializes multi-statement operations.
	db.SetMaxOpenConns(1)

	fs := &FS{
		db:     db,
		excl:   ninep.NewExclusiveRegistry(),
		iounit: options.IoUnit,
		log:    options.Logger,
	}

	if err := fs.initSchema(options.User, options.Group); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return fs, nil
}

// initSchema creates the entity table and seeds the root directory.
// AUTOINCREMENT keeps rowids from being reused, which is exactly the qid
// promise: a deleted and recreated name gets a fresh path.
func (fs *FS) initSchema(user, group string) error {
	schema := `
	CREATE TABLE IF NOT EXISTS nine_files (
		path INTEGER PRIMARY KEY AUTOINCREMENT,
		parent INTEGER NOT NULL,
		name TEXT NOT NULL,
		stat TEXT NOT NULL,
		data BLOB,
		UNIQUE(parent, name)
	);

	CREATE INDEX IF NOT EXISTS idx_nine_parent ON nine_files(parent);
	`

	if _, err := fs.db.Exec(schema); err != nil {
		return err
	}

	root := data.Stat{
		Qid: data.Qid{
			Type: data.FileType{IsDir: true},
			Path: rootPath,
		},
		Mode: data.FileMode{
			Permissions: data.PermissionsFromBits(0o755),
			FileType:    data.FileType{IsDir: true},
		},
		Atime: unixNow(),
		Mtime: unixNow(),
		Name:  data.RootName,
		UID:   user,
		GID:   group,
		MUID:  user,
	}

	blob, err := root.Marshal()
	if err != nil {
		return err
	}

	_, err = fs.db.Exec(`
		INSERT OR IGNORE INTO nine_files (path, parent, name, stat)
		VALUES (?, ?, ?, ?)
	`, rootPath, rootPath, data.RootName, string(blob))

	return err
}

// Close releases the database connection.
func (fs *FS) Close() error {
	return fs.db.Close()
}

// Attach binds an acting principal and returns the root directory.
func (fs *FS) Attach(ctx context.Context, user string) (ninep.Directory, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: empty user", ninep.ErrPermission)
	}

	fs.log.Debug("attach user=%s", user)
	return &DirHandle{fs: fs, path: rootPath, user: user}, nil
}

func unixNow() uint32 {
	return uint32(time.Now().Unix())
}

// querier lets the row helpers run against either the pool or an open
// transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// getStat loads the stat snapshot and parent path for an entity.
func getStat(ctx context.Context, q querier, path uint64) (data.Stat, uint64, error) {
	var parent uint64
	var blob string

	err := q.QueryRowContext(ctx,
		"SELECT parent, stat FROM nine_files WHERE path = ?", path,
	).Scan(&parent, &blob)
	if err == sql.ErrNoRows {
		return data.Stat{}, 0, fmt.Errorf("%w: path %#x", ninep.ErrNotExist, path)
	}
	if err != nil {
		return data.Stat{}, 0, fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}

	var st data.Stat
	if err := st.Unmarshal([]byte(blob)); err != nil {
		return data.Stat{}, 0, fmt.Errorf("%w: corrupt stat for path %#x: %v", ninep.ErrIO, path, err)
	}

	return st, parent, nil
}

// lookupChild resolves one name under a directory.
func lookupChild(ctx context.Context, q querier, parent uint64, name string) (data.Stat, error) {
	var blob string

	err := q.QueryRowContext(ctx,
		"SELECT stat FROM nine_files WHERE parent = ? AND name = ? AND path != parent", parent, name,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return data.Stat{}, fmt.Errorf("%w: %q", ninep.ErrNotExist, name)
	}
	if err != nil {
		return data.Stat{}, fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}

	var st data.Stat
	if err := st.Unmarshal([]byte(blob)); err != nil {
		return data.Stat{}, fmt.Errorf("%w: corrupt stat for %q: %v", ninep.ErrIO, name, err)
	}

	return st, nil
}

// putStat stores a replacement stat snapshot, keeping the name column in
// sync for child lookups.
func putStat(ctx context.Context, q querier, path uint64, st data.Stat) error {
	blob, err := st.Marshal()
	if err != nil {
		return fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}

	if _, err := q.ExecContext(ctx,
		"UPDATE nine_files SET name = ?, stat = ? WHERE path = ?", st.Name, string(blob), path,
	); err != nil {
		return fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}

	return nil
}

// childCount reports how many entities a directory contains.
func childCount(ctx context.Context, q querier, parent uint64) (int, error) {
	var count int

	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM nine_files WHERE parent = ? AND path != parent", parent,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}

	return count, nil
}

// touch bumps the version and modification time of a stat after a mutation.
func touch(st *data.Stat, user string) {
	st.Qid.Version++
	st.Mtime = unixNow()
	st.MUID = user
}

// class resolves the permission set that applies to user, with the same
// single-name group model as memfs.
func class(st data.Stat, user string) data.IndividualPermissions {
	return st.Mode.Permissions.Class(user == st.UID, user == st.GID)
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

// begin opens a transaction; the caller is expected to defer tx.Rollback()
// and call tx.Commit() on the success path.
func (fs *FS) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := fs.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ninep.ErrIO, err)
	}
	return tx, nil
}
