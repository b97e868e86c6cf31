// Package fserr annotates Go errors with POSIX errno values.
//
// Errors stay ordinary Go errors (they wrap with %w and work with errors.Is),
// but carry an "errno" value so callers can collapse an OS failure into a
// single category when they log or report it. The annotation is stored with
// github.com/ansel1/merry.
package fserr

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/ansel1/merry"
	"golang.org/x/sys/unix"
)

// FsError is an errno-like error category.
type FsError int

const (
	NotFoundError  FsError = FsError(int(unix.ENOENT))
	IOError        FsError = FsError(int(unix.EIO))
	PermDenied     FsError = FsError(int(unix.EACCES))
	FileExists     FsError = FsError(int(unix.EEXIST))
	NotDirError    FsError = FsError(int(unix.ENOTDIR))
	IsDirError     FsError = FsError(int(unix.EISDIR))
	InvalidArg     FsError = FsError(int(unix.EINVAL))
	NameTooLong    FsError = FsError(int(unix.ENAMETOOLONG))
	StaleHandle    FsError = FsError(int(unix.ESTALE))
)

// SuccessError is the zero errno.
const SuccessError FsError = 0

const failureErrno = -1

const errnoKey = "errno"

// Value returns the int value of the category.
func (e FsError) Value() int {
	return int(e)
}

func (e FsError) String() string {
	if e == SuccessError {
		return "success"
	}
	return unix.Errno(e).Error()
}

// NewError creates an errno-annotated error from a format string.
func NewError(errValue FsError, format string, a ...any) error {
	return merry.WrapSkipping(fmt.Errorf(format, a...), 1).WithValue(errnoKey, int(errValue))
}

// AddError annotates an existing error. A nil error becomes a new generic one.
func AddError(e error, errValue FsError) error {
	if e == nil {
		return merry.New("regular error").WithValue(errnoKey, int(errValue))
	}
	return merry.WrapSkipping(e, 1).WithValue(errnoKey, int(errValue))
}

// Errno extracts the errno value: 0 for nil, -1 when no value is attached.
func Errno(e error) int {
	if e == nil {
		return int(SuccessError)
	}
	if v, ok := merry.Value(e, errnoKey).(int); ok {
		return v
	}
	return failureErrno
}

// Is reports whether e carries the given category.
func Is(e error, errValue FsError) bool {
	return Errno(e) == int(errValue)
}

// FromOS maps an error returned by the os/io/fs packages to an annotated
// error, keeping the original in the chain.
func FromOS(e error) error {
	if e == nil {
		return nil
	}
	if Errno(e) != failureErrno {
		return e
	}

	var errno unix.Errno
	switch {
	case errors.As(e, &errno):
		return AddError(e, FsError(int(errno)))
	case errors.Is(e, fs.ErrNotExist):
		return AddError(e, NotFoundError)
	case errors.Is(e, fs.ErrPermission):
		return AddError(e, PermDenied)
	case errors.Is(e, fs.ErrExist):
		return AddError(e, FileExists)
	case errors.Is(e, fs.ErrInvalid):
		return AddError(e, InvalidArg)
	default:
		return AddError(e, IOError)
	}
}
