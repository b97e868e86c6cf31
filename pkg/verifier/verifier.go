// Package verifier checks that the filesystem state exposed by the NFS
// server (files, directories and the handles clients hold) satisfies a
// configurable set of invariants, detects corruption and drives best-effort
// repair plus application-supplied recovery actions.
//
// The Verifier answers "is this path/handle/tree valid?" and "can I make it
// valid?". It never decides when to run: callers (the scheduler package, the
// CLI, protocol handlers) do.
//
// Concurrency:
// Every entry point is synchronous and may block on filesystem I/O for its
// full duration; there is no internal timeout or cancellation. Registration
// and recovery trigger invocation serialize on one lock. Checks operate on a
// snapshot of the rules taken when they start. The filesystem itself is not
// snapshotted: a tree mutated during VerifyState may yield results matching
// neither the state before nor after the mutation.
package verifier

import (
	"os"
	"sync/atomic"

	"github.com/marmos91/dittocheck/internal/logger"
	"github.com/marmos91/dittocheck/pkg/fsys"
	"github.com/marmos91/dittocheck/pkg/handle"
	"github.com/marmos91/dittocheck/pkg/metrics"
)

const (
	DefaultReadChunkSize       = 64 * 1024
	DefaultFileRepairMode      = os.FileMode(0644)
	DefaultDirectoryRepairMode = os.FileMode(0755)
)

// Config contains the verifier settings.
type Config struct {
	// Root is the directory VerifyState walks.
	Root string

	// ReadChunkSize bounds each read of the file corruption probe.
	ReadChunkSize int

	// FileRepairMode is applied to corrupted regular files.
	FileRepairMode os.FileMode

	// DirectoryRepairMode is applied to corrupted directories.
	DirectoryRepairMode os.FileMode

	// DisableDefaultInvariants skips seeding the built-in rules.
	DisableDefaultInvariants bool
}

func (c *Config) applyDefaults() {
	if c.ReadChunkSize <= 0 {
		c.ReadChunkSize = DefaultReadChunkSize
	}
	if c.FileRepairMode == 0 {
		c.FileRepairMode = DefaultFileRepairMode
	}
	if c.DirectoryRepairMode == 0 {
		c.DirectoryRepairMode = DefaultDirectoryRepairMode
	}
}

// Verifier is an explicitly owned verification engine. The server creates
// one and passes it wherever checks are needed.
type Verifier struct {
	config      Config
	fs          *fsys.FS
	translator  handle.Translator
	metrics     metrics.VerifierMetrics
	registry    *registry
	initialized atomic.Bool
}

// New creates a Verifier and seeds the default invariants unless
// config.DisableDefaultInvariants is set.
//
// Parameters:
//   - config: Verifier settings; zero values are replaced by defaults
//   - filesystem: Filesystem view to inspect and repair (nil = host filesystem)
//   - translator: Handle to path resolution (nil = no handle resolves)
//   - m: Metrics sink (nil = no collection)
//
// Returns:
//   - *Verifier: Ready to use; Initialize only logs the initial rule counts
func New(config Config, filesystem *fsys.FS, translator handle.Translator, m metrics.VerifierMetrics) *Verifier {
	config.applyDefaults()

	if filesystem == nil {
		filesystem = fsys.NewOS()
	}
	if translator == nil {
		translator = handle.TranslatorFunc(func(handle.FileHandle) string { return "" })
	}
	if m == nil {
		m = metrics.NewNoopVerifierMetrics()
	}

	v := &Verifier{
		config:     config,
		fs:         filesystem,
		translator: translator,
		metrics:    m,
		registry:   newRegistry(),
	}

	if !config.DisableDefaultInvariants {
		v.addDefaultInvariants()
	}

	return v
}

// addDefaultInvariants seeds one rule per domain so that an unconfigured
// verifier still does meaningful work.
func (v *Verifier) addDefaultInvariants() {
	v.AddFileInvariant(Invariant{
		Name:         "file-readable",
		Check:        v.fs.Readable,
		ErrorMessage: "file is not readable",
	})
	v.AddDirectoryInvariant(Invariant{
		Name:         "directory-traversable",
		Check:        v.fs.Executable,
		ErrorMessage: "directory is not traversable",
	})
	v.AddHandleInvariant(Invariant{
		Name: "handle-resolvable",
		Check: func(path string) bool {
			_, err := v.fs.Stat(path)
			return err == nil
		},
		ErrorMessage: "resolved path cannot be inspected",
	})
}

// Initialize prepares the verifier for use. It is idempotent and currently
// always succeeds.
func (v *Verifier) Initialize() bool {
	if v.initialized.CompareAndSwap(false, true) {
		rules := v.registry.snapshot()
		logger.Info("Verifier ready: root=%s file_invariants=%d directory_invariants=%d handle_invariants=%d",
			v.config.Root, len(rules.files), len(rules.directories), len(rules.handles))
	}
	return true
}

// Root returns the directory VerifyState walks.
func (v *Verifier) Root() string {
	return v.config.Root
}
