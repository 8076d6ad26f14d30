package loot

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lootgen/internal/game/dice"
)

// ElementCategory distinguishes the kinds of named elements a table graph can
// reference.
type ElementCategory uint8

const (
	CategoryTable ElementCategory = iota
	CategoryCondition
	CategoryFunction
)

// String returns the category name used in logs and problem messages.
func (c ElementCategory) String() string {
	switch c {
	case CategoryTable:
		return "table"
	case CategoryCondition:
		return "condition"
	case CategoryFunction:
		return "function"
	}
	return fmt.Sprintf("category(%d)", uint8(c))
}

// VisitedElement is the structural identity of a referenced element.
type VisitedElement struct {
	Category ElementCategory
	Key      string
}

// TableElement returns the visited-element identity for a table key.
func TableElement(key string) VisitedElement {
	return VisitedElement{Category: CategoryTable, Key: key}
}

// Context holds the per-request state of one generation call.
//
// A Context is owned by a single goroutine for its lifetime.
//
// Invariant: the visited-element set is empty before and after every
// top-level generation call.
type Context struct {
	params   *Params
	random   dice.RandomSource
	resolver Resolver
	logger   *zap.Logger
	roller   *dice.Roller
	visited  map[VisitedElement]struct{}
}

// ContextBuilder selects the random source for a new Context.
type ContextBuilder struct {
	params *Params
	random dice.RandomSource
}

// NewContextBuilder starts a Context for params.
func NewContextBuilder(params *Params) *ContextBuilder {
	return &ContextBuilder{params: params}
}

// WithRandom uses src for every draw of the Context.
func (b *ContextBuilder) WithRandom(src dice.RandomSource) *ContextBuilder {
	b.random = src
	return b
}

// WithRandomSeed uses a fresh source seeded with seed.
func (b *ContextBuilder) WithRandomSeed(seed int64) *ContextBuilder {
	b.random = dice.NewSeededSource(uint64(seed))
	return b
}

// WithOptionalRandomSeed behaves like WithRandomSeed unless seed is 0, in
// which case the level supplies the source.
func (b *ContextBuilder) WithOptionalRandomSeed(seed int64) *ContextBuilder {
	if seed == 0 {
		return b
	}
	return b.WithRandomSeed(seed)
}

// Create builds the Context. Without an explicit source the level's random
// sequence for sequence is used, or the level's ambient source when sequence
// is empty.
func (b *ContextBuilder) Create(sequence string) *Context {
	level := b.params.level
	src := b.random
	switch {
	case src != nil:
	case sequence != "":
		src = level.RandomSequence(sequence)
	default:
		src = level.Random()
	}

	logger := level.Logger()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{
		params:   b.params,
		random:   src,
		resolver: level.Resolver(),
		logger:   logger,
		roller:   dice.NewLoggedRoller(src, logger),
		visited:  make(map[VisitedElement]struct{}),
	}
}

// Params returns the frozen request inputs.
func (c *Context) Params() *Params { return c.params }

// Random returns the request's random source.
func (c *Context) Random() dice.RandomSource { return c.random }

// Luck returns the request's luck scalar.
func (c *Context) Luck() float64 { return c.params.luck }

// Resolver returns the data resolver, which may be nil.
func (c *Context) Resolver() Resolver { return c.resolver }

// Logger returns the request logger.
func (c *Context) Logger() *zap.Logger { return c.logger }

// HasParameter reports whether k was supplied.
func (c *Context) HasParameter(k ContextKey) bool { return c.params.Has(k) }

// Parameter returns the value for k or an error wrapping ErrMissingParameter.
func (c *Context) Parameter(k ContextKey) (any, error) { return c.params.Parameter(k) }

// OptionalParameter returns the value for k and whether it was supplied.
func (c *Context) OptionalParameter(k ContextKey) (any, bool) { return c.params.OptionalParameter(k) }

// AddDynamicDrops forwards to the params' dynamic drop named name.
func (c *Context) AddDynamicDrops(name string, sink Sink) { c.params.AddDynamicDrops(name, sink) }

// PushVisitedElement records e as being expanded. It returns false, and
// records nothing, when e is already on the current expansion path.
func (c *Context) PushVisitedElement(e VisitedElement) bool {
	if _, ok := c.visited[e]; ok {
		return false
	}
	c.visited[e] = struct{}{}
	return true
}

// PopVisitedElement removes e from the expansion path.
func (c *Context) PopVisitedElement(e VisitedElement) {
	delete(c.visited, e)
}

// HasVisitedElement reports whether e is on the expansion path.
func (c *Context) HasVisitedElement(e VisitedElement) bool {
	_, ok := c.visited[e]
	return ok
}

// VisitedDepth returns the number of elements on the expansion path.
func (c *Context) VisitedDepth() int { return len(c.visited) }

func (c *Context) warnLoop(e VisitedElement) {
	c.logger.Warn("detected infinite loop in loot tables",
		zap.Stringer("category", e.Category),
		zap.String("key", e.Key),
	)
}

// ParamAs returns the value of k converted to T.
//
// Postcondition: returns an error wrapping ErrMissingParameter when k is
// absent, or a type error when the value is not a T.
func ParamAs[T any](c *Context, k ContextKey) (T, error) {
	var zero T
	v, err := c.Parameter(k)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("parameter %s: have %T, want %T", k, v, zero)
	}
	return t, nil
}

// floatParam reads k as a float64, accepting any numeric type.
func floatParam(c *Context, k ContextKey) (float64, bool) {
	v, ok := c.OptionalParameter(k)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}
