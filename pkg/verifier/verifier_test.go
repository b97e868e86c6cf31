package verifier

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittocheck/pkg/fsys"
	"github.com/marmos91/dittocheck/pkg/handle"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

// newTestTree builds:
//
//	/export/
//	  docs/
//	    a.txt
//	  readme.txt
func newTestTree(t *testing.T) afero.Fs {
	t.Helper()
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/export/docs", 0755))
	require.NoError(t, afero.WriteFile(mem, "/export/readme.txt", []byte("hello"), 0644))
	require.NoError(t, afero.WriteFile(mem, "/export/docs/a.txt", []byte("a"), 0644))
	return mem
}

func newTestVerifier(t *testing.T, mem afero.Fs, opts ...func(*Config)) *Verifier {
	t.Helper()
	cfg := Config{Root: "/export"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return New(cfg, fsys.New(mem), nil, nil)
}

func withoutDefaults(c *Config) {
	c.DisableDefaultInvariants = true
}

func alwaysFails(name string) Invariant {
	return Invariant{
		Name:         name,
		Check:        func(string) bool { return false },
		ErrorMessage: name + " failed",
	}
}

// faultyFs injects errors for specific paths on top of another afero.Fs.
type faultyFs struct {
	afero.Fs
	failOpen  map[string]error
	failStat  map[string]error
	failChmod map[string]error
}

func (f *faultyFs) Open(name string) (afero.File, error) {
	if err, ok := f.failOpen[name]; ok {
		return nil, err
	}
	return f.Fs.Open(name)
}

func (f *faultyFs) Chmod(name string, mode os.FileMode) error {
	if err, ok := f.failChmod[name]; ok {
		return err
	}
	return f.Fs.Chmod(name, mode)
}

func (f *faultyFs) Stat(name string) (os.FileInfo, error) {
	if err, ok := f.failStat[name]; ok {
		return nil, err
	}
	return f.Fs.Stat(name)
}

// recordingMetrics captures metric calls for assertions.
type recordingMetrics struct {
	mu           sync.Mutex
	operations   []string
	corruptions  []string
	repairs      []bool
	triggerCount int
}

func (m *recordingMetrics) ObserveVerification(op string, _ time.Duration, _ bool, _, _, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations = append(m.operations, op)
}

func (m *recordingMetrics) RecordCorruption(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corruptions = append(m.corruptions, kind)
}

func (m *recordingMetrics) RecordRepair(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repairs = append(m.repairs, success)
}

func (m *recordingMetrics) RecordRecoveryTrigger() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggerCount++
}

func assertConsistent(t *testing.T, res ValidationResult) {
	t.Helper()
	assert.Equal(t, len(res.Violations) == 0, res.Valid, "valid iff no violations")
	assert.Len(t, res.Findings, len(res.Violations))
	assert.False(t, res.Timestamp.IsZero())
}

// ============================================================================
// Registry Tests
// ============================================================================

func TestNew_SeedsDefaultInvariants(t *testing.T) {
	v := newTestVerifier(t, newTestTree(t))

	require.Len(t, v.Invariants(DomainFile), 1)
	assert.Equal(t, "file-readable", v.Invariants(DomainFile)[0].Name)
	require.Len(t, v.Invariants(DomainDirectory), 1)
	assert.Equal(t, "directory-traversable", v.Invariants(DomainDirectory)[0].Name)
	require.Len(t, v.Invariants(DomainHandle), 1)
	assert.Equal(t, "handle-resolvable", v.Invariants(DomainHandle)[0].Name)
	assert.Nil(t, v.Invariants(DomainUnknown))
}

func TestNew_DisableDefaultInvariants(t *testing.T) {
	v := newTestVerifier(t, newTestTree(t), withoutDefaults)

	assert.Empty(t, v.Invariants(DomainFile))
	assert.Empty(t, v.Invariants(DomainDirectory))
	assert.Empty(t, v.Invariants(DomainHandle))
}

func TestAddInvariant_PreservesOrderAndDomain(t *testing.T) {
	v := newTestVerifier(t, newTestTree(t), withoutDefaults)

	v.AddFileInvariant(alwaysFails("first"))
	v.AddFileInvariant(alwaysFails("second"))
	v.AddDirectoryInvariant(alwaysFails("dir"))

	files := v.Invariants(DomainFile)
	require.Len(t, files, 2)
	assert.Equal(t, "first", files[0].Name)
	assert.Equal(t, "second", files[1].Name)
	assert.Len(t, v.Invariants(DomainDirectory), 1)
	assert.Empty(t, v.Invariants(DomainHandle))

	res := v.VerifyPath("/export/readme.txt")
	require.Len(t, res.Violations, 2)
	assert.Equal(t, "first: first failed (path: /export/readme.txt)", res.Violations[0])
	assert.Equal(t, "second: second failed (path: /export/readme.txt)", res.Violations[1])
}

func TestAddInvariant_IgnoresNilPredicate(t *testing.T) {
	v := newTestVerifier(t, newTestTree(t), withoutDefaults)

	v.AddFileInvariant(Invariant{Name: "broken"})
	assert.Empty(t, v.Invariants(DomainFile))
}

func TestDomainString(t *testing.T) {
	assert.Equal(t, "file", DomainFile.String())
	assert.Equal(t, "directory", DomainDirectory.String())
	assert.Equal(t, "handle", DomainHandle.String())
}

func TestInitialize(t *testing.T) {
	v := newTestVerifier(t, newTestTree(t))
	assert.True(t, v.Initialize())
	assert.True(t, v.Initialize(), "initialize is idempotent")
	assert.Equal(t, "/export", v.Root())
}

func TestConfigDefaults(t *testing.T) {
	v := newTestVerifier(t, newTestTree(t))
	assert.Equal(t, DefaultReadChunkSize, v.config.ReadChunkSize)
	assert.Equal(t, DefaultFileRepairMode, v.config.FileRepairMode)
	assert.Equal(t, DefaultDirectoryRepairMode, v.config.DirectoryRepairMode)
}

// ============================================================================
// VerifyPath Tests
// ============================================================================

func TestVerifyPath(t *testing.T) {
	t.Run("ValidFile", func(t *testing.T) {
		v := newTestVerifier(t, newTestTree(t))

		res := v.VerifyPath("/export/readme.txt")
		assertConsistent(t, res)
		assert.True(t, res.Valid)
		assert.Equal(t, 1, res.ObjectsChecked)
		assert.Equal(t, 1, res.InvariantsChecked)
	})

	t.Run("ValidDirectory", func(t *testing.T) {
		v := newTestVerifier(t, newTestTree(t))
		v.AddDirectoryInvariant(Invariant{Name: "always", Check: func(string) bool { return true }})

		res := v.VerifyPath("/export/docs")
		assertConsistent(t, res)
		assert.True(t, res.Valid)
		assert.Equal(t, 1, res.ObjectsChecked)
		assert.Equal(t, 2, res.InvariantsChecked)
	})

	t.Run("NonexistentPath", func(t *testing.T) {
		v := newTestVerifier(t, newTestTree(t))

		res := v.VerifyPath("/export/missing")
		assertConsistent(t, res)
		assert.False(t, res.Valid)
		require.Len(t, res.Violations, 1)
		assert.Contains(t, res.Violations[0], "/export/missing")
		assert.Equal(t, 0, res.ObjectsChecked)
		assert.Equal(t, 0, res.InvariantsChecked)
	})

	t.Run("FileRulesDoNotApplyToDirectories", func(t *testing.T) {
		v := newTestVerifier(t, newTestTree(t), withoutDefaults)
		v.AddFileInvariant(alwaysFails("file-only"))

		res := v.VerifyPath("/export/docs")
		assert.True(t, res.Valid)
		assert.Equal(t, 1, res.ObjectsChecked)
		assert.Equal(t, 0, res.InvariantsChecked)
	})

	t.Run("FailingRulesAreAllEvaluated", func(t *testing.T) {
		v := newTestVerifier(t, newTestTree(t), withoutDefaults)
		v.AddFileInvariant(alwaysFails("one"))
		v.AddFileInvariant(Invariant{Name: "ok", Check: func(string) bool { return true }})
		v.AddFileInvariant(alwaysFails("two"))

		res := v.VerifyPath("/export/readme.txt")
		assertConsistent(t, res)
		assert.Equal(t, 3, res.InvariantsChecked)
		require.Len(t, res.Findings, 2)
		assert.Equal(t, "one", res.Findings[0].Rule)
		assert.Equal(t, DomainFile, res.Findings[0].Domain)
		assert.Equal(t, "two", res.Findings[1].Rule)
	})

	t.Run("PanickingPredicateCountsAsFailure", func(t *testing.T) {
		v := newTestVerifier(t, newTestTree(t), withoutDefaults)
		v.AddFileInvariant(Invariant{
			Name:         "explodes",
			Check:        func(string) bool { panic("boom") },
			ErrorMessage: "predicate panicked",
		})

		var res ValidationResult
		require.NotPanics(t, func() { res = v.VerifyPath("/export/readme.txt") })
		assertConsistent(t, res)
		assert.False(t, res.Valid)
		assert.Equal(t, 1, res.InvariantsChecked)
	})

	t.Run("Idempotent", func(t *testing.T) {
		mem := newTestTree(t)
		require.NoError(t, mem.Chmod("/export/readme.txt", 0200))
		v := newTestVerifier(t, mem)

		first := v.VerifyPath("/export/readme.txt")
		second := v.VerifyPath("/export/readme.txt")
		assert.Equal(t, first.Valid, second.Valid)
		assert.Equal(t, first.Violations, second.Violations)
		assert.Equal(t, first.ObjectsChecked, second.ObjectsChecked)
		assert.Equal(t, first.InvariantsChecked, second.InvariantsChecked)
	})
}

// A file lacking owner read permission fails the one registered
// readability rule.
func TestVerifyPath_UnreadableFile(t *testing.T) {
	mem := newTestTree(t)
	require.NoError(t, mem.Chmod("/export/readme.txt", 0200))

	v := newTestVerifier(t, mem, withoutDefaults)
	v.AddFileInvariant(Invariant{
		Name:         "owner-readable",
		Check:        v.fs.Readable,
		ErrorMessage: "must be owner-readable",
	})

	res := v.VerifyPath("/export/readme.txt")
	assertConsistent(t, res)
	assert.False(t, res.Valid)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "owner-readable: must be owner-readable (path: /export/readme.txt)", res.Violations[0])
}

func TestVerifyPath_SymlinkPassesThrough(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0644))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	v := New(Config{Root: dir}, fsys.NewOS(), nil, nil)
	v.AddFileInvariant(alwaysFails("never-applies"))

	res := v.VerifyPath(link)
	assertConsistent(t, res)
	assert.True(t, res.Valid)
	assert.Equal(t, 0, res.ObjectsChecked)
	assert.Equal(t, 0, res.InvariantsChecked)
}

func TestVerifyPath_SnapshotIsolation(t *testing.T) {
	v := newTestVerifier(t, newTestTree(t), withoutDefaults)

	var once sync.Once
	v.AddFileInvariant(Invariant{
		Name: "registers-more",
		Check: func(string) bool {
			once.Do(func() { v.AddFileInvariant(alwaysFails("late")) })
			return true
		},
	})

	first := v.VerifyPath("/export/readme.txt")
	assert.True(t, first.Valid, "rules registered during a pass are not seen by it")
	assert.Equal(t, 1, first.InvariantsChecked)

	second := v.VerifyPath("/export/readme.txt")
	assert.False(t, second.Valid)
	assert.Equal(t, 2, second.InvariantsChecked)
}

// ============================================================================
// VerifyHandle Tests
// ============================================================================

func TestVerifyHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("Resolved", func(t *testing.T) {
		table := handle.NewMemoryTable()
		h, err := table.Register(ctx, "export", "/export/docs")
		require.NoError(t, err)

		v := New(Config{Root: "/export"}, fsys.New(newTestTree(t)), table, nil)
		res := v.VerifyHandle(h)
		assertConsistent(t, res)
		assert.True(t, res.Valid)
		assert.Equal(t, 1, res.ObjectsChecked)
		assert.Equal(t, 1, res.InvariantsChecked)
	})

	t.Run("ResolvedToMissingPath", func(t *testing.T) {
		table := handle.NewMemoryTable()
		h, err := table.Register(ctx, "export", "/export/gone")
		require.NoError(t, err)

		v := New(Config{Root: "/export"}, fsys.New(newTestTree(t)), table, nil)
		res := v.VerifyHandle(h)
		assertConsistent(t, res)
		require.Len(t, res.Violations, 1)
		assert.Equal(t, "handle-resolvable: resolved path cannot be inspected (handle path: /export/gone)", res.Violations[0])
	})

	t.Run("HandleRulesApplyToAnyKind", func(t *testing.T) {
		translator := handle.TranslatorFunc(func(handle.FileHandle) string { return "/export/readme.txt" })
		v := New(Config{Root: "/export", DisableDefaultInvariants: true}, fsys.New(newTestTree(t)), translator, nil)
		v.AddHandleInvariant(alwaysFails("h"))

		res := v.VerifyHandle(handle.FileHandle("export:x"))
		assert.False(t, res.Valid)
		assert.Equal(t, DomainHandle, res.Findings[0].Domain)
	})
}

// An untranslatable handle yields exactly one violation and no
// handle rule is evaluated.
func TestVerifyHandle_Unresolvable(t *testing.T) {
	evaluated := 0
	v := newTestVerifier(t, newTestTree(t))
	v.AddHandleInvariant(Invariant{
		Name:  "counting",
		Check: func(string) bool { evaluated++; return true },
	})

	res := v.VerifyHandle(handle.FileHandle("export:unknown"))
	assertConsistent(t, res)
	assert.False(t, res.Valid)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "handle could not be resolved to a path: export:unknown", res.Violations[0])
	assert.Equal(t, 0, res.InvariantsChecked)
	assert.Equal(t, 0, res.ObjectsChecked)
	assert.Equal(t, 0, evaluated)
}

// ============================================================================
// VerifyState Tests
// ============================================================================

func TestVerifyState_Counts(t *testing.T) {
	v := newTestVerifier(t, newTestTree(t))
	v.AddFileInvariant(Invariant{Name: "non-empty", Check: func(string) bool { return true }})

	res := v.VerifyState()
	assertConsistent(t, res)
	assert.True(t, res.Valid)
	// root, docs, docs/a.txt, readme.txt
	assert.Equal(t, 4, res.ObjectsChecked)
	// two directories with one rule, two files with two rules
	assert.Equal(t, 6, res.InvariantsChecked)
	assert.Equal(t, 3, res.EntriesTraversed)
}

func TestVerifyState_DepthFirstOrder(t *testing.T) {
	v := newTestVerifier(t, newTestTree(t), withoutDefaults)
	v.AddFileInvariant(alwaysFails("every-file"))

	res := v.VerifyState()
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"/export/docs/a.txt", "/export/readme.txt"}, res.FailedPaths())
}

// An unreadable subdirectory next to readable files yields exactly one
// violation, for the directory.
func TestVerifyState_UnreadableSubdirectory(t *testing.T) {
	t.Run("FailsTraversableRule", func(t *testing.T) {
		mem := newTestTree(t)
		require.NoError(t, mem.MkdirAll("/export/locked", 0755))
		require.NoError(t, afero.WriteFile(mem, "/export/locked/hidden.txt", []byte("x"), 0644))
		require.NoError(t, mem.Chmod("/export/locked", 0000))

		res := newTestVerifier(t, mem).VerifyState()
		assertConsistent(t, res)
		assert.False(t, res.Valid)
		require.Len(t, res.Violations, 1)
		assert.Equal(t, "directory-traversable: directory is not traversable (path: /export/locked)", res.Violations[0])
		assert.Equal(t, 5, res.ObjectsChecked, "root, docs, a.txt, locked, readme.txt")
		assert.Equal(t, 4, res.EntriesTraversed, "hidden.txt is never reached")
	})

	t.Run("PassesRulesButCannotBeListed", func(t *testing.T) {
		mem := newTestTree(t)
		require.NoError(t, mem.MkdirAll("/export/locked", 0755))
		require.NoError(t, mem.Chmod("/export/locked", 0300))

		res := newTestVerifier(t, mem).VerifyState()
		assertConsistent(t, res)
		require.Len(t, res.Violations, 1)
		assert.Equal(t, "cannot read directory: /export/locked", res.Violations[0])
	})

	t.Run("OpenFailureContinuesWithSiblings", func(t *testing.T) {
		faulty := &faultyFs{
			Fs:       newTestTree(t),
			failOpen: map[string]error{"/export/docs": os.ErrPermission},
		}

		res := newTestVerifier(t, faulty).VerifyState()
		assertConsistent(t, res)
		require.Len(t, res.Violations, 1)
		assert.Equal(t, "cannot read directory: /export/docs", res.Violations[0])
		assert.Equal(t, 3, res.ObjectsChecked, "root, docs, readme.txt")
	})

	t.Run("UnrelatedRuleDoesNotMaskListingFailure", func(t *testing.T) {
		faulty := &faultyFs{
			Fs:       newTestTree(t),
			failOpen: map[string]error{"/export/docs": os.ErrInvalid},
		}
		v := newTestVerifier(t, faulty, withoutDefaults)
		v.AddDirectoryInvariant(Invariant{
			Name:         "no-docs",
			Check:        func(path string) bool { return filepath.Base(path) != "docs" },
			ErrorMessage: "docs directories are not allowed",
		})

		res := v.VerifyState()
		assertConsistent(t, res)
		assert.Equal(t, []string{
			"no-docs: docs directories are not allowed (path: /export/docs)",
			"cannot read directory: /export/docs",
		}, res.Violations)
	})
}

func TestVerifyState_UnstatableEntry(t *testing.T) {
	faulty := &faultyFs{
		Fs:       newTestTree(t),
		failStat: map[string]error{"/export/readme.txt": os.ErrInvalid},
	}

	res := newTestVerifier(t, faulty).VerifyState()
	assertConsistent(t, res)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "cannot stat entry: /export/readme.txt", res.Violations[0])
	assert.Equal(t, 3, res.EntriesTraversed)
	assert.Equal(t, 3, res.ObjectsChecked)
}

func TestVerifyState_Root(t *testing.T) {
	t.Run("Missing", func(t *testing.T) {
		v := newTestVerifier(t, newTestTree(t), func(c *Config) { c.Root = "/nowhere" })

		res := v.VerifyState()
		assertConsistent(t, res)
		require.Len(t, res.Violations, 1)
		assert.Equal(t, 0, res.ObjectsChecked)
	})

	t.Run("NotADirectory", func(t *testing.T) {
		v := newTestVerifier(t, newTestTree(t), func(c *Config) { c.Root = "/export/readme.txt" })

		res := v.VerifyState()
		assertConsistent(t, res)
		require.Len(t, res.Violations, 1)
		assert.Contains(t, res.Violations[0], "not a directory")
	})
}

func TestVerifyState_SkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("x"), 0644))
	require.NoError(t, os.Symlink(filepath.Join(dir, "file.txt"), filepath.Join(dir, "link")))

	res := New(Config{Root: dir}, fsys.NewOS(), nil, nil).VerifyState()
	assertConsistent(t, res)
	assert.True(t, res.Valid)
	assert.Equal(t, 2, res.ObjectsChecked, "root and file.txt")
	assert.Equal(t, 2, res.EntriesTraversed, "the link is traversed but not checked")
}

func TestVerify_RecordsMetrics(t *testing.T) {
	m := &recordingMetrics{}
	v := New(Config{Root: "/export"}, fsys.New(newTestTree(t)), nil, m)

	v.VerifyPath("/export/readme.txt")
	v.VerifyHandle(handle.FileHandle("x:y"))
	v.VerifyState()

	assert.Equal(t, []string{"verify_path", "verify_handle", "verify_state"}, m.operations)
}

// ============================================================================
// Result Tests
// ============================================================================

func TestValidationResult_Summary(t *testing.T) {
	res := newResult()
	assert.Equal(t, "valid: objects=0 invariants=0 violations=0 entries=0", res.Summary())

	res.apply([]Invariant{alwaysFails("x")}, DomainFile, "/a")
	assert.Equal(t, "invalid: objects=1 invariants=1 violations=1 entries=0", res.Summary())
}

func TestValidationResult_FailedPaths(t *testing.T) {
	res := newResult()
	res.apply([]Invariant{alwaysFails("x"), alwaysFails("y")}, DomainFile, "/a")
	res.addFinding(Finding{Domain: DomainHandle, Message: "unresolved", Handle: "h"})
	res.apply([]Invariant{alwaysFails("x")}, DomainDirectory, "/b")

	assert.Equal(t, []string{"/a", "/b"}, res.FailedPaths())
	assert.Len(t, res.Violations, 4)
}
