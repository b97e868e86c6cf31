package verifier

import (
	"sync"

	"github.com/marmos91/dittocheck/internal/logger"
)

// Domain is the kind of object an invariant applies to.
type Domain int

const (
	DomainUnknown Domain = iota
	DomainFile
	DomainDirectory
	DomainHandle
)

func (d Domain) String() string {
	switch d {
	case DomainFile:
		return "file"
	case DomainDirectory:
		return "directory"
	case DomainHandle:
		return "handle"
	default:
		return "unknown"
	}
}

// Predicate reports whether the object at path satisfies an invariant.
type Predicate func(path string) bool

// Invariant is a named predicate with the message reported when it fails.
// Invariants are immutable once registered.
type Invariant struct {
	// Name identifies the rule in violation messages.
	Name string

	// TargetPath is an optional hint about what the rule is meant for.
	// It is informational and never consulted during checks.
	TargetPath string

	// Check is evaluated against every object of the rule's domain.
	Check Predicate

	// ErrorMessage is reported when Check returns false.
	ErrorMessage string
}

// RecoveryTrigger is an application-supplied recovery action for one path.
//
// Triggers run on the caller's goroutine while the registry lock is held:
// they must not call back into the Verifier and should hand long work off.
type RecoveryTrigger func()

// ruleSet is an immutable copy of the registered invariants.
type ruleSet struct {
	files       []Invariant
	directories []Invariant
	handles     []Invariant
}

// registry holds the three invariant sequences and the recovery trigger
// table behind one coarse lock: registration is rare, checks are frequent
// and work on snapshots.
type registry struct {
	mu          sync.Mutex
	files       []Invariant
	directories []Invariant
	handles     []Invariant
	triggers    map[string]RecoveryTrigger
}

func newRegistry() *registry {
	return &registry{
		triggers: make(map[string]RecoveryTrigger),
	}
}

func (r *registry) add(domain Domain, inv Invariant) {
	if inv.Check == nil {
		logger.Error("Ignoring %s invariant %q: nil predicate", domain, inv.Name)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch domain {
	case DomainFile:
		r.files = append(r.files, inv)
	case DomainDirectory:
		r.directories = append(r.directories, inv)
	case DomainHandle:
		r.handles = append(r.handles, inv)
	}
}

// snapshot copies the rule sequences so a check never observes a
// registration that happens while it runs.
func (r *registry) snapshot() ruleSet {
	r.mu.Lock()
	defer r.mu.Unlock()

	return ruleSet{
		files:       append([]Invariant(nil), r.files...),
		directories: append([]Invariant(nil), r.directories...),
		handles:     append([]Invariant(nil), r.handles...),
	}
}

// AddFileInvariant appends a rule evaluated against every regular file.
func (v *Verifier) AddFileInvariant(inv Invariant) {
	v.registry.add(DomainFile, inv)
}

// AddDirectoryInvariant appends a rule evaluated against every directory.
func (v *Verifier) AddDirectoryInvariant(inv Invariant) {
	v.registry.add(DomainDirectory, inv)
}

// AddHandleInvariant appends a rule evaluated against the path every
// resolved handle points to.
func (v *Verifier) AddHandleInvariant(inv Invariant) {
	v.registry.add(DomainHandle, inv)
}

// Invariants returns a copy of the rules registered for a domain, in
// evaluation order.
func (v *Verifier) Invariants(domain Domain) []Invariant {
	rules := v.registry.snapshot()
	switch domain {
	case DomainFile:
		return rules.files
	case DomainDirectory:
		return rules.directories
	case DomainHandle:
		return rules.handles
	default:
		return nil
	}
}
