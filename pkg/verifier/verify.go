package verifier

import (
	"os"
	"time"

	"github.com/marmos91/dittocheck/internal/fserr"
	"github.com/marmos91/dittocheck/internal/logger"
	"github.com/marmos91/dittocheck/pkg/fsys"
	"github.com/marmos91/dittocheck/pkg/handle"
	"github.com/marmos91/dittocheck/pkg/metrics"
)

// Messages for violations not produced by a registered rule.
const (
	msgPathMissing      = "path does not exist"
	msgHandleUnresolved = "handle could not be resolved to a path"
	msgEntryUnstatable  = "cannot stat entry"
	msgDirUnreadable    = "cannot read directory"
	msgRootMissing      = "verification root does not exist"
	msgRootNotDirectory = "verification root is not a directory"
)

// VerifyPath applies the file or directory rules to a single path.
//
// Objects that are neither regular files nor directories (symlinks,
// sockets, devices) pass through: no rule applies and the result stays
// valid with zero objects checked. A path whose metadata cannot be read
// yields a single violation and no rule is evaluated.
func (v *Verifier) VerifyPath(path string) ValidationResult {
	rules := v.registry.snapshot()
	res := newResult()

	kind, err := v.fs.Classify(path)
	switch {
	case err != nil:
		logger.WithPath(path).Debug("Verification target missing: %v", err)
		res.addFinding(Finding{Message: msgPathMissing, Path: path})
	case kind == fsys.KindFile:
		res.apply(rules.files, DomainFile, path)
	case kind == fsys.KindDirectory:
		res.apply(rules.directories, DomainDirectory, path)
	}

	v.observe(metrics.OperationVerifyPath, res)
	return *res
}

// VerifyHandle resolves a handle and applies every handle rule to the
// resolved path, whatever kind of object it is. An unresolvable handle
// yields a single violation and no rule is evaluated.
func (v *Verifier) VerifyHandle(h handle.FileHandle) ValidationResult {
	rules := v.registry.snapshot()
	res := newResult()

	path := v.translator.TranslateHandleToPath(h)
	if path == "" {
		res.addFinding(Finding{Domain: DomainHandle, Message: msgHandleUnresolved, Handle: h.String()})
	} else {
		res.apply(rules.handles, DomainHandle, path)
	}

	v.observe(metrics.OperationVerifyHandle, res)
	return *res
}

// dirFrame is one level of the VerifyState work stack.
type dirFrame struct {
	dir     string
	entries []os.FileInfo
	next    int
}

// VerifyState walks the tree under the configured root depth-first,
// applying directory rules to the root and every subdirectory and file
// rules to every regular file.
//
// The walk never aborts on a single object: an entry whose metadata cannot
// be read is recorded and skipped, and an unreadable directory is treated
// as empty. The walk uses an explicit stack, so tree depth does not grow
// the goroutine stack.
func (v *Verifier) VerifyState() ValidationResult {
	rules := v.registry.snapshot()
	res := newResult()
	start := time.Now()
	root := v.config.Root

	kind, err := v.fs.Classify(root)
	switch {
	case err != nil:
		logger.WithPath(root).Error("Cannot verify state: %v", err)
		res.addFinding(Finding{Domain: DomainDirectory, Message: msgRootMissing, Path: root})
		v.observe(metrics.OperationVerifyState, res)
		return *res
	case kind != fsys.KindDirectory:
		res.addFinding(Finding{Domain: DomainDirectory, Message: msgRootNotDirectory, Path: root})
		v.observe(metrics.OperationVerifyState, res)
		return *res
	}

	passed := res.apply(rules.directories, DomainDirectory, root)
	stack := []*dirFrame{{dir: root, entries: v.listForTraversal(res, root, passed)}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next >= len(top.entries) {
			stack = stack[:len(stack)-1]
			continue
		}

		entry := top.entries[top.next]
		top.next++
		path := fsys.Join(top.dir, entry.Name())
		res.EntriesTraversed++

		kind, err := v.fs.Classify(path)
		if err != nil {
			logger.WithPath(path).Warn("Cannot stat entry during traversal: %v", err)
			res.addFinding(Finding{Message: msgEntryUnstatable, Path: path})
			continue
		}

		switch kind {
		case fsys.KindDirectory:
			passed := res.apply(rules.directories, DomainDirectory, path)
			stack = append(stack, &dirFrame{dir: path, entries: v.listForTraversal(res, path, passed)})
		case fsys.KindFile:
			res.apply(rules.files, DomainFile, path)
		}
	}

	logger.Debug("State verification of %s finished in %s: %s", root, time.Since(start), res.Summary())
	v.observe(metrics.OperationVerifyState, res)
	return *res
}

// listForTraversal lists a directory for VerifyState. An unreadable
// directory is treated as empty and recorded as a violation, except when
// the listing was refused for lack of permission and one of the directory's
// own rules already failed: that rule accounts for the access problem, so
// the directory is reported once. Other listing failures are always
// recorded.
func (v *Verifier) listForTraversal(res *ValidationResult, dir string, rulesPassed bool) []os.FileInfo {
	entries, err := v.fs.ReadDir(dir)
	if err != nil {
		logger.WithPath(dir).WithField("errno", fserr.Errno(err)).Warn("Skipping unreadable directory: %v", err)
		if rulesPassed || !fserr.Is(err, fserr.PermDenied) {
			res.addFinding(Finding{Domain: DomainDirectory, Message: msgDirUnreadable, Path: dir})
		}
		return nil
	}
	return entries
}

func (v *Verifier) observe(operation string, res *ValidationResult) {
	v.metrics.ObserveVerification(operation, time.Since(res.Timestamp), res.Valid,
		res.ObjectsChecked, res.InvariantsChecked, len(res.Violations))
}
