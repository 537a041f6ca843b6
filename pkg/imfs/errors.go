package imfs

import (
	"errors"
	"io/fs"

	"github.com/haivivi/imfs/pkg/vpath"
)

// Sentinel errors. Operations return them wrapped in an *fs.PathError, so
// callers classify with errors.Is. Where an io/fs sentinel has the same
// meaning, errors.Is matches it too (ErrNotFound is fs.ErrNotExist, and so
// on), which keeps the fs.FS view compatible with standard helpers.
var (
	ErrNotFound          error = &kindError{"not found", fs.ErrNotExist}
	ErrAlreadyExists     error = &kindError{"already exists", fs.ErrExist}
	ErrDirectoryNotEmpty       = errors.New("directory not empty")
	ErrInvalidPath             = vpath.ErrInvalidPath
	ErrUnsupported       error = &kindError{"operation not supported", errors.ErrUnsupported}
	ErrNotDirectory            = errors.New("not a directory")
	ErrIsDirectory             = errors.New("is a directory")
	ErrClosed            error = &kindError{"file already closed", fs.ErrClosed}
)

type kindError struct {
	msg  string
	base error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.base }

func pathErr(op, path string, err error) error {
	return &fs.PathError{Op: op, Path: vpath.Abs(path), Err: err}
}
