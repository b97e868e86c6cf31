package verifier

import (
	"os"

	"github.com/marmos91/dittocheck/internal/fserr"
	"github.com/marmos91/dittocheck/internal/logger"
	"github.com/marmos91/dittocheck/pkg/fsys"
)

// RepairCorruption detects, repairs and re-detects corruption at path.
//
// A path that is not corrupted is left alone and reported as repaired.
// Otherwise permissions are normalized, the recovery trigger registered for
// exactly this path (if any) runs, and the probe is repeated once.
//
// Parameters:
//   - path: Filesystem path to probe and repair
//
// Returns:
//   - bool: false when the corruption persists after the repair attempt
func (v *Verifier) RepairCorruption(path string) bool {
	if !v.DetectCorruption(path) {
		return true
	}

	log := logger.WithPath(path)
	log.Info("Attempting repair")

	if !v.attemptRepair(path) {
		log.Error("Repair attempt failed")
		v.metrics.RecordRepair(false)
		return false
	}

	if v.DetectCorruption(path) {
		log.Error("Corruption persists after repair")
		v.metrics.RecordRepair(false)
		return false
	}

	log.Info("Repair succeeded")
	v.metrics.RecordRepair(true)
	return true
}

// attemptRepair resets permissions and runs the path's recovery trigger.
//
// The permission reset is best-effort: a path that vanished or refuses the
// chmod is logged and the attempt still succeeds, so the re-detection that
// follows (after the trigger had its chance) decides the outcome.
func (v *Verifier) attemptRepair(path string) bool {
	log := logger.WithPath(path)

	kind, err := v.fs.Classify(path)
	switch {
	case err != nil:
		log.Warn("Path vanished before permission reset: %v", err)
	case kind == fsys.KindFile:
		v.resetMode(log, path, "file", v.config.FileRepairMode)
	case kind == fsys.KindDirectory:
		v.resetMode(log, path, "directory", v.config.DirectoryRepairMode)
	}

	v.TriggerRecovery(path)
	return true
}

func (v *Verifier) resetMode(log logger.Entry, path, kind string, mode os.FileMode) {
	if err := v.fs.Chmod(path, mode); err != nil {
		log.WithField("errno", fserr.Errno(err)).Error("Failed to reset %s permissions: %v", kind, err)
		return
	}
	log.Info("Reset %s permissions to %#o", kind, mode)
}

// SetRecoveryTrigger registers the recovery action for path, replacing any
// previous one. Triggers match the exact path only and are never removed
// automatically.
func (v *Verifier) SetRecoveryTrigger(path string, trigger RecoveryTrigger) {
	v.registry.mu.Lock()
	defer v.registry.mu.Unlock()

	v.registry.triggers[path] = trigger
}

// TriggerRecovery runs the recovery action registered for path, outside of
// any corruption detection. It reports whether one ran to completion.
//
// The action runs synchronously with the registry lock held. A panicking
// action is recovered and logged, and counts as not run.
func (v *Verifier) TriggerRecovery(path string) bool {
	v.registry.mu.Lock()
	defer v.registry.mu.Unlock()

	trigger, ok := v.registry.triggers[path]
	if !ok || trigger == nil {
		return false
	}

	log := logger.WithPath(path)
	log.Info("Invoking recovery trigger")
	if !runTrigger(log, trigger) {
		return false
	}
	v.metrics.RecordRecoveryTrigger()
	return true
}

func runTrigger(log logger.Entry, trigger RecoveryTrigger) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovery trigger panicked: %v", r)
			ok = false
		}
	}()
	trigger()
	return true
}
