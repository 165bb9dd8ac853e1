package ninep

// Entity is the result of a walk: either a File or a Directory, never both
// and never neither. The tag is the only discriminant a caller may branch on
// after a walk; no runtime type inspection is needed.
type Entity struct {
	file File
	dir  Directory
}

// FileEntity wraps a file handle.
func FileEntity(f File) Entity {
	return Entity{file: f}
}

// DirEntity wraps a directory handle.
func DirEntity(d Directory) Entity {
	return Entity{dir: d}
}

// IsDir reports which variant the entity holds.
func (e Entity) IsDir() bool {
	return e.dir != nil
}

// File returns the file variant. The second return is false for a directory
// entity.
func (e Entity) File() (File, bool) {
	return e.file, e.file != nil
}

// Dir returns the directory variant. The second return is false for a file
// entity.
func (e Entity) Dir() (Directory, bool) {
	return e.dir, e.dir != nil
}

// FsEntity returns the shared capability surface of whichever variant the
// entity holds.
func (e Entity) FsEntity() FsEntity {
	if e.dir != nil {
		return e.dir
	}
	return e.file
}
