// Package fsys is the filesystem view the verifier inspects and repairs.
//
// It wraps an afero.Fs and exposes the primitives the verification core
// needs: metadata lookup, classification, permission queries, opening files
// for reading, directory enumeration and permission changes.
//
// Permission semantics:
// Permission queries look only at the owner permission bits of an object's
// mode (read 0400, search 0100), regardless of the effective uid of the
// process. Open and ReadDir refuse objects missing those bits with an
// EACCES-annotated error. This keeps results identical whether the server
// runs as root or not, and makes the in-memory backend behave like a
// permission-enforcing filesystem.
package fsys

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/marmos91/dittocheck/internal/fserr"
)

const (
	ownerRead os.FileMode = 0400
	ownerExec os.FileMode = 0100
)

// FS is a permission-aware view over an afero filesystem.
//
// Thread Safety:
// FS holds no mutable state of its own; concurrency guarantees are those of
// the wrapped afero.Fs.
type FS struct {
	fs afero.Fs
}

// New wraps an afero filesystem.
func New(fs afero.Fs) *FS {
	return &FS{fs: fs}
}

// NewOS returns a view over the host filesystem.
func NewOS() *FS {
	return New(afero.NewOsFs())
}

// Stat returns metadata, following symlinks.
func (f *FS) Stat(path string) (os.FileInfo, error) {
	info, err := f.fs.Stat(path)
	if err != nil {
		return nil, fserr.FromOS(err)
	}
	return info, nil
}

// Lstat returns metadata without following symlinks, when the backend can.
func (f *FS) Lstat(path string) (os.FileInfo, error) {
	if l, ok := f.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		if err != nil {
			return nil, fserr.FromOS(err)
		}
		return info, nil
	}
	return f.Stat(path)
}

// Readable reports whether path exists and carries the owner read bit.
func (f *FS) Readable(path string) bool {
	info, err := f.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().Perm()&ownerRead != 0
}

// Executable reports whether path exists and carries the owner execute
// (search, for directories) bit.
func (f *FS) Executable(path string) bool {
	info, err := f.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().Perm()&ownerExec != 0
}

// Open opens a regular file for reading.
func (f *FS) Open(path string) (afero.File, error) {
	info, err := f.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fserr.NewError(fserr.IsDirError, "is a directory: %s", path)
	}
	if info.Mode().Perm()&ownerRead == 0 {
		return nil, fserr.NewError(fserr.PermDenied, "read permission denied: %s", path)
	}

	file, err := f.fs.Open(path)
	if err != nil {
		return nil, fserr.FromOS(err)
	}
	return file, nil
}

// ReadDir lists a directory's entries sorted by name, excluding "." and "..".
func (f *FS) ReadDir(path string) ([]os.FileInfo, error) {
	info, err := f.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fserr.NewError(fserr.NotDirError, "not a directory: %s", path)
	}
	if info.Mode().Perm()&(ownerRead|ownerExec) != ownerRead|ownerExec {
		return nil, fserr.NewError(fserr.PermDenied, "list permission denied: %s", path)
	}

	entries, err := afero.ReadDir(f.fs, path)
	if err != nil {
		return nil, fserr.FromOS(err)
	}

	filtered := entries[:0]
	for _, entry := range entries {
		if name := entry.Name(); name == "." || name == ".." {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered, nil
}

// Chmod replaces the permission bits of path.
func (f *FS) Chmod(path string, mode os.FileMode) error {
	if err := f.fs.Chmod(path, mode.Perm()); err != nil {
		return fserr.FromOS(err)
	}
	return nil
}

// Join joins a directory path and an entry name.
func Join(dir, name string) string {
	return filepath.Join(dir, name)
}
