package loot

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lootgen/internal/game/inventory"
)

// FunctionKind enumerates the Function variants.
type FunctionKind uint8

const (
	FunctionSetCount FunctionKind = iota
	FunctionLimitCount
	FunctionSetAttribute
	FunctionCopyParameter
	FunctionExplosionDecay
	FunctionReference
	FunctionSequence
)

var functionNames = [...]string{
	FunctionSetCount:       "set_count",
	FunctionLimitCount:     "limit_count",
	FunctionSetAttribute:   "set_attribute",
	FunctionCopyParameter:  "copy_parameter",
	FunctionExplosionDecay: "explosion_decay",
	FunctionReference:      "reference",
	FunctionSequence:       "sequence",
}

// String returns the serialized type name.
func (k FunctionKind) String() string {
	if int(k) < len(functionNames) {
		return functionNames[k]
	}
	return fmt.Sprintf("function(%d)", uint8(k))
}

// Function transforms one generated stack. Every variant is gated by its
// Conditions; when they fail the stack passes through unchanged.
type Function struct {
	Kind       FunctionKind
	Conditions []Condition

	Count NumberProvider // set_count
	Add   bool           // set_count

	Limit IntRange // limit_count

	Attribute string     // set_attribute, copy_parameter
	Value     string     // set_attribute
	Parameter ContextKey // copy_parameter

	Name string // reference

	Functions []Function // sequence
}

// SetCount sets the stack count to a sampled value, or adds it when add is true.
func SetCount(count NumberProvider, add bool, conds ...Condition) Function {
	return Function{Kind: FunctionSetCount, Count: count, Add: add, Conditions: conds}
}

// LimitCount clamps the stack count to limit.
func LimitCount(limit IntRange, conds ...Condition) Function {
	return Function{Kind: FunctionLimitCount, Limit: limit, Conditions: conds}
}

// SetAttribute sets a named attribute on the stack.
func SetAttribute(name, value string, conds ...Condition) Function {
	return Function{Kind: FunctionSetAttribute, Attribute: name, Value: value, Conditions: conds}
}

// CopyParameter copies the textual form of a context parameter into the
// named attribute.
func CopyParameter(k ContextKey, name string, conds ...Condition) Function {
	return Function{Kind: FunctionCopyParameter, Parameter: k, Attribute: name, Conditions: conds}
}

// ExplosionDecay keeps each unit with probability 1/radius.
func ExplosionDecay(conds ...Condition) Function {
	return Function{Kind: FunctionExplosionDecay, Conditions: conds}
}

// FunctionRef defers to the named function.
func FunctionRef(name string, conds ...Condition) Function {
	return Function{Kind: FunctionReference, Name: name, Conditions: conds}
}

// Sequence applies fns in order.
func Sequence(fns ...Function) Function {
	return Function{Kind: FunctionSequence, Functions: fns}
}

// Apply transforms s. An empty result deletes the item.
func (f Function) Apply(s inventory.ItemStack, ctx *Context) inventory.ItemStack {
	if s.IsEmpty() || !testAll(ctx, f.Conditions) {
		return s
	}
	switch f.Kind {
	case FunctionSetCount:
		n := f.Count.Int(ctx)
		if f.Add {
			n += s.Count
		}
		out := s.Copy()
		out.Count = max(n, 0)
		return out
	case FunctionLimitCount:
		out := s.Copy()
		out.Count = f.Limit.Clamp(ctx, s.Count)
		return out
	case FunctionSetAttribute:
		return s.WithAttribute(f.Attribute, f.Value)
	case FunctionCopyParameter:
		v, ok := ctx.OptionalParameter(f.Parameter)
		if !ok {
			return s
		}
		return s.WithAttribute(f.Attribute, fmt.Sprint(v))
	case FunctionExplosionDecay:
		return explosionDecay(s, ctx)
	case FunctionReference:
		return f.applyReference(s, ctx)
	case FunctionSequence:
		for _, g := range f.Functions {
			s = g.Apply(s, ctx)
			if s.IsEmpty() {
				return s
			}
		}
		return s
	}
	return s
}

func explosionDecay(s inventory.ItemStack, ctx *Context) inventory.ItemStack {
	radius, ok := floatParam(ctx, ParamExplosionRadius)
	if !ok || radius <= 0 {
		return s
	}
	p := 1 / radius
	kept := 0
	for i := 0; i < s.Count; i++ {
		if ctx.Random().Float64() <= p {
			kept++
		}
	}
	out := s.Copy()
	out.Count = kept
	return out
}

func (f Function) applyReference(s inventory.ItemStack, ctx *Context) inventory.ItemStack {
	if ctx.Resolver() == nil {
		return s
	}
	target, ok := ctx.Resolver().Function(f.Name)
	if !ok {
		ctx.Logger().Warn("unknown function reference", zap.String("key", f.Name))
		return s
	}
	el := VisitedElement{Category: CategoryFunction, Key: f.Name}
	if !ctx.PushVisitedElement(el) {
		ctx.warnLoop(el)
		return s
	}
	defer ctx.PopVisitedElement(el)
	return target.Apply(s, ctx)
}

// ReferencedParams returns the context keys the function reads directly.
func (f Function) ReferencedParams() []ContextKey {
	switch f.Kind {
	case FunctionExplosionDecay:
		return []ContextKey{ParamExplosionRadius}
	case FunctionCopyParameter:
		return []ContextKey{f.Parameter}
	}
	return nil
}

// Validate checks the function, its conditions, and its children.
func (f Function) Validate(vc *ValidationContext) {
	vc.ValidateUser(f.ReferencedParams())
	validateConditions(vc, f.Conditions)
	switch f.Kind {
	case FunctionSetCount:
		f.Count.Validate(vc.ForChild("count"))
	case FunctionLimitCount:
		f.Limit.Validate(vc.ForChild("limit"))
	case FunctionSetAttribute, FunctionCopyParameter:
		if f.Attribute == "" {
			vc.Report(ProblemInvalidValue, "attribute name is empty")
		}
	case FunctionReference:
		validateReference(vc, VisitedElement{Category: CategoryFunction, Key: f.Name})
	case FunctionSequence:
		for i, g := range f.Functions {
			g.Validate(vc.ForIndex("functions", i))
		}
	}
}

// decorate returns a sink that runs every stack through fns before passing
// it to sink. Stacks emptied by a function are dropped.
func decorate(sink Sink, fns []Function, ctx *Context) Sink {
	if len(fns) == 0 {
		return sink
	}
	return func(s inventory.ItemStack) {
		for _, f := range fns {
			s = f.Apply(s, ctx)
			if s.IsEmpty() {
				return
			}
		}
		sink(s)
	}
}

func validateFunctions(vc *ValidationContext, fns []Function) {
	for i, f := range fns {
		f.Validate(vc.ForIndex("functions", i))
	}
}
