package fsys

import "os"

// Kind is the classification of a filesystem object.
type Kind int

const (
	// KindOther covers symlinks, sockets, devices and pipes: objects no
	// verification rule applies to.
	KindOther Kind = iota
	KindFile
	KindDirectory
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	default:
		return "other"
	}
}

// KindOf classifies a FileInfo obtained without following symlinks.
func KindOf(info os.FileInfo) Kind {
	mode := info.Mode()
	switch {
	case mode.IsRegular():
		return KindFile
	case mode.IsDir():
		return KindDirectory
	default:
		return KindOther
	}
}

// Classify determines whether path is a regular file, a directory or
// something else. Symlinks are not followed, so a link to a directory is
// KindOther. The error is non-nil when metadata cannot be retrieved.
func (f *FS) Classify(path string) (Kind, error) {
	info, err := f.Lstat(path)
	if err != nil {
		return KindOther, err
	}
	return KindOf(info), nil
}
