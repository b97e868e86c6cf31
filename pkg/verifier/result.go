package verifier

import (
	"fmt"
	"time"

	"github.com/marmos91/dittocheck/internal/logger"
)

// Finding is the structured form of one violation.
type Finding struct {
	Domain Domain

	// Rule is the failing invariant's name; empty for existence,
	// resolution and traversal failures.
	Rule string

	Message string

	// Path is the offending path; empty when a handle did not resolve.
	Path string

	// Handle is set for handle checks.
	Handle string
}

// String renders the finding as a violation line.
func (f Finding) String() string {
	switch {
	case f.Rule != "" && f.Domain == DomainHandle:
		return fmt.Sprintf("%s: %s (handle path: %s)", f.Rule, f.Message, f.Path)
	case f.Rule != "":
		return fmt.Sprintf("%s: %s (path: %s)", f.Rule, f.Message, f.Path)
	case f.Path == "" && f.Handle != "":
		return fmt.Sprintf("%s: %s", f.Message, f.Handle)
	default:
		return fmt.Sprintf("%s: %s", f.Message, f.Path)
	}
}

// ValidationResult is the outcome of one verification call.
//
// Valid starts true and only ever becomes false; it is false exactly when
// Violations is non-empty. Findings holds the same violations in structured
// form, in the same order.
type ValidationResult struct {
	Valid      bool
	Violations []string
	Findings   []Finding

	// Timestamp is when the verification call started.
	Timestamp time.Time

	// ObjectsChecked counts objects rules were applied to.
	ObjectsChecked int

	// InvariantsChecked counts rule evaluations, passing or failing.
	InvariantsChecked int

	// EntriesTraversed counts directory entries visited by VerifyState,
	// including entries no rule applies to.
	EntriesTraversed int
}

func newResult() *ValidationResult {
	return &ValidationResult{
		Valid:      true,
		Violations: []string{},
		Findings:   []Finding{},
		Timestamp:  time.Now(),
	}
}

func (r *ValidationResult) addFinding(f Finding) {
	r.Valid = false
	r.Findings = append(r.Findings, f)
	r.Violations = append(r.Violations, f.String())
}

// apply evaluates rules against one object and reports whether all passed.
func (r *ValidationResult) apply(rules []Invariant, domain Domain, path string) bool {
	r.ObjectsChecked++

	passed := true
	for _, rule := range rules {
		r.InvariantsChecked++
		if !evaluate(rule, path) {
			passed = false
			r.addFinding(Finding{
				Domain:  domain,
				Rule:    rule.Name,
				Message: rule.ErrorMessage,
				Path:    path,
			})
		}
	}
	return passed
}

// evaluate runs a predicate, counting a panic as a failed check.
func evaluate(rule Invariant, path string) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			logger.WithPath(path).Error("Invariant %q panicked: %v", rule.Name, p)
			ok = false
		}
	}()
	return rule.Check(path)
}

// FailedPaths returns the distinct paths named by findings, in order.
func (r ValidationResult) FailedPaths() []string {
	seen := make(map[string]struct{}, len(r.Findings))
	paths := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		if f.Path == "" {
			continue
		}
		if _, ok := seen[f.Path]; ok {
			continue
		}
		seen[f.Path] = struct{}{}
		paths = append(paths, f.Path)
	}
	return paths
}

// Summary returns a one-line description of the result.
func (r ValidationResult) Summary() string {
	status := "valid"
	if !r.Valid {
		status = "invalid"
	}
	return fmt.Sprintf("%s: objects=%d invariants=%d violations=%d entries=%d",
		status, r.ObjectsChecked, r.InvariantsChecked, len(r.Violations), r.EntriesTraversed)
}
