package ninep

import "errors"

// Standard errors that backend implementations should return. Callers match
// with errors.Is; implementations wrap them with operation context via
// fmt.Errorf and %w.
var (
	// Permission errors
	ErrPermission = errors.New("ninep: permission denied")

	// Name resolution errors
	ErrNotExist    = errors.New("ninep: file does not exist")
	ErrExist       = errors.New("ninep: file already exists")
	ErrIllegalName = errors.New("ninep: illegal file name")

	// Fid lifecycle errors
	ErrClosed            = errors.New("ninep: fid not open")
	ErrAlreadyOpen       = errors.New("ninep: fid already open")
	ErrIllegalOperation  = errors.New("ninep: illegal operation")
	ErrExclusiveConflict = errors.New("ninep: exclusive file already open")

	// I/O errors
	ErrIO = errors.New("ninep: i/o failure")
)
