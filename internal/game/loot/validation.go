package loot

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// ProblemKind classifies a validation problem.
type ProblemKind uint8

const (
	ProblemMissingReference ProblemKind = iota
	ProblemRecursiveReference
	ProblemReferenceNotAllowed
	ProblemParametersNotProvided
	ProblemUnreachableEntry
	ProblemMissingItem
	ProblemInvalidValue
)

// String returns a short name for the kind.
func (k ProblemKind) String() string {
	switch k {
	case ProblemMissingReference:
		return "missing_reference"
	case ProblemRecursiveReference:
		return "recursive_reference"
	case ProblemReferenceNotAllowed:
		return "reference_not_allowed"
	case ProblemParametersNotProvided:
		return "parameters_not_provided"
	case ProblemUnreachableEntry:
		return "unreachable_entry"
	case ProblemMissingItem:
		return "missing_item"
	case ProblemInvalidValue:
		return "invalid_value"
	}
	return fmt.Sprintf("problem(%d)", uint8(k))
}

// Problem is one finding of static validation.
type Problem struct {
	Kind    ProblemKind
	Path    string
	Message string
}

// String formats the problem as "path: message".
func (p Problem) String() string {
	if p.Path == "" {
		return p.Message
	}
	return p.Path + ": " + p.Message
}

type problemCollector struct {
	problems []Problem
}

// ValidationContext walks a table graph without randomness, collecting
// problems tagged with the path at which they were found.
//
// Child contexts share the problem list but carry their own path and their
// own copy of the visited set, so sibling branches never see each other's
// references.
type ValidationContext struct {
	collector *problemCollector
	path      string
	params    ParamSet
	resolver  Resolver
	visited   map[VisitedElement]struct{}
}

// NewValidationContext validates against params. A nil resolver forbids
// references.
func NewValidationContext(params ParamSet, resolver Resolver) *ValidationContext {
	return &ValidationContext{
		collector: &problemCollector{},
		params:    params,
		resolver:  resolver,
		visited:   make(map[VisitedElement]struct{}),
	}
}

func (vc *ValidationContext) withPath(path string) *ValidationContext {
	out := *vc
	out.path = path
	return &out
}

// Path returns the current path.
func (vc *ValidationContext) Path() string { return vc.path }

// ForChild returns a context for the named field.
func (vc *ValidationContext) ForChild(name string) *ValidationContext {
	if vc.path == "" {
		return vc.withPath(name)
	}
	return vc.withPath(vc.path + "." + name)
}

// ForIndex returns a context for element i of the named list.
func (vc *ValidationContext) ForIndex(name string, i int) *ValidationContext {
	return vc.ForChild(name + "[" + strconv.Itoa(i) + "]")
}

// EnterElement returns a context at path+name with e added to a copy of the
// visited set.
func (vc *ValidationContext) EnterElement(name string, e VisitedElement) *ValidationContext {
	out := vc.withPath(vc.path + name)
	out.visited = maps.Clone(vc.visited)
	out.visited[e] = struct{}{}
	return out
}

// HasVisitedElement reports whether e is on the current path.
func (vc *ValidationContext) HasVisitedElement(e VisitedElement) bool {
	_, ok := vc.visited[e]
	return ok
}

// AllowsReferences reports whether references can be followed.
func (vc *ValidationContext) AllowsReferences() bool { return vc.resolver != nil }

// Resolver returns the resolver, which may be nil.
func (vc *ValidationContext) Resolver() Resolver { return vc.resolver }

// Params returns the parameter set being validated against.
func (vc *ValidationContext) Params() ParamSet { return vc.params }

// WithParams returns a context validating against set.
func (vc *ValidationContext) WithParams(set ParamSet) *ValidationContext {
	out := *vc
	out.params = set
	return &out
}

// Report records a problem at the current path.
func (vc *ValidationContext) Report(kind ProblemKind, msg string) {
	vc.collector.problems = append(vc.collector.problems, Problem{Kind: kind, Path: vc.path, Message: msg})
}

// ValidateUser reports every key in used that the parameter set does not allow.
func (vc *ValidationContext) ValidateUser(used []ContextKey) {
	var missing []ContextKey
	for _, k := range used {
		if !vc.params.IsAllowed(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return
	}
	vc.Report(ProblemParametersNotProvided,
		fmt.Sprintf("parameters %s are not provided in this context", joinKeys(missing)))
}

// Problems returns everything reported through this context or any context
// derived from it.
func (vc *ValidationContext) Problems() []Problem {
	return vc.collector.problems
}

// validateReference follows a named element. Reporting precedence is:
// reference not allowed, recursive reference, missing reference.
func validateReference(vc *ValidationContext, e VisitedElement) {
	if !vc.AllowsReferences() {
		vc.Report(ProblemReferenceNotAllowed, fmt.Sprintf("%s reference %q is not allowed here", e.Category, e.Key))
		return
	}
	if vc.HasVisitedElement(e) {
		vc.Report(ProblemRecursiveReference, fmt.Sprintf("%s %q is recursively called", e.Category, e.Key))
		return
	}
	child := func() *ValidationContext { return vc.EnterElement("->{"+e.Key+"}", e) }
	missing := func() {
		vc.Report(ProblemMissingReference, fmt.Sprintf("missing %s %q", e.Category, e.Key))
	}
	switch e.Category {
	case CategoryTable:
		t, ok := vc.resolver.Table(e.Key)
		if !ok {
			missing()
			return
		}
		t.validateBody(child())
	case CategoryCondition:
		c, ok := vc.resolver.Condition(e.Key)
		if !ok {
			missing()
			return
		}
		c.Validate(child())
	case CategoryFunction:
		f, ok := vc.resolver.Function(e.Key)
		if !ok {
			missing()
			return
		}
		f.Validate(child())
	}
}

// Validate checks t against its own parameter set.
func Validate(t *Table, resolver Resolver) []Problem {
	return ValidateWith(t, t.ParamSet, resolver)
}

// ValidateWith checks t against params.
func ValidateWith(t *Table, params ParamSet, resolver Resolver) []Problem {
	vc := NewValidationContext(params, resolver)
	t.Validate(vc)
	return vc.Problems()
}

// FormatProblems renders problems one per line.
func FormatProblems(problems []Problem) string {
	var b strings.Builder
	for _, p := range problems {
		b.WriteString(p.String())
		b.WriteByte('\n')
	}
	return b.String()
}
