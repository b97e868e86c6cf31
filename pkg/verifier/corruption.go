package verifier

import (
	"fmt"
	"io"

	"github.com/marmos91/dittocheck/internal/fserr"
	"github.com/marmos91/dittocheck/internal/logger"
	"github.com/marmos91/dittocheck/pkg/fsys"
	"github.com/marmos91/dittocheck/pkg/handle"
)

// DetectCorruption runs the fixed integrity probe on path and reports
// whether a repair attempt is warranted.
//
// The probe is independent of registered invariants:
//   - regular file: open for reading, stat, read the whole content in
//     bounded chunks
//   - directory: list it and stat every entry, stopping at the first failure
//   - missing path: corrupted
//   - anything else: not corrupted
func (v *Verifier) DetectCorruption(path string) bool {
	kind, err := v.fs.Classify(path)
	if err != nil {
		reason := "metadata unavailable"
		if fserr.Is(err, fserr.NotFoundError) {
			reason = "does not exist"
		}
		v.reportCorruption("missing", path, reason, err)
		return true
	}

	switch kind {
	case fsys.KindFile:
		if err := v.probeFile(path); err != nil {
			v.reportCorruption("file", path, "file probe failed", err)
			return true
		}
	case fsys.KindDirectory:
		if err := v.probeDirectory(path); err != nil {
			v.reportCorruption("directory", path, "directory probe failed", err)
			return true
		}
	}
	return false
}

// DetectHandleCorruption reports whether a handle fails to resolve or
// resolves to a path whose metadata cannot be read.
func (v *Verifier) DetectHandleCorruption(h handle.FileHandle) bool {
	path := v.translator.TranslateHandleToPath(h)
	if path == "" {
		v.reportCorruption("handle", h.String(), "handle does not resolve", nil)
		return true
	}
	if _, err := v.fs.Stat(path); err != nil {
		v.reportCorruption("handle", path, "resolved path cannot be inspected", err)
		return true
	}
	return false
}

func (v *Verifier) probeFile(path string) error {
	f, err := v.fs.Open(path)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	if _, err := f.Stat(); err != nil {
		return fmt.Errorf("stat: %w", fserr.FromOS(err))
	}

	buf := make([]byte, v.config.ReadChunkSize)
	for {
		_, err := f.Read(buf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read: %w", fserr.FromOS(err))
		}
	}
}

func (v *Verifier) probeDirectory(path string) error {
	entries, err := v.fs.ReadDir(path)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	for _, entry := range entries {
		if _, err := v.fs.Stat(fsys.Join(path, entry.Name())); err != nil {
			return fmt.Errorf("stat entry %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func (v *Verifier) reportCorruption(kind, path, reason string, err error) {
	entry := logger.WithPath(path).WithField("kind", kind)
	if err != nil {
		entry.WithField("errno", fserr.Errno(err)).Warn("Corruption detected: %s: %v", reason, err)
	} else {
		entry.Warn("Corruption detected: %s", reason)
	}
	v.metrics.RecordCorruption(kind)
}
