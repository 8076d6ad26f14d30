// Package loot generates item stacks from data-authored loot tables and
// distributes them into slot containers.
//
// Tables, pools, entries, conditions, and functions are immutable once built
// and may be evaluated concurrently. All per-request state lives in a Context,
// which is created fresh for every generation call.
package loot

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lootgen/internal/game/dice"
	"github.com/cory-johannsen/lootgen/internal/game/inventory"
)

// ErrMissingParameter is returned when a required context parameter is absent.
var ErrMissingParameter = errors.New("missing required parameter")

// ErrUnexpectedParameter is returned when Params are built with a parameter
// the target ParamSet does not allow.
var ErrUnexpectedParameter = errors.New("parameter not allowed in this context")

// ContextKey names a typed value supplied to a generation request.
type ContextKey string

// Standard context keys.
const (
	ParamThisEntity       ContextKey = "this_entity"
	ParamLastDamagePlayer ContextKey = "last_damage_player"
	ParamAttackingEntity  ContextKey = "attacking_entity"
	ParamOrigin           ContextKey = "origin"
	ParamTool             ContextKey = "tool"
	ParamExplosionRadius  ContextKey = "explosion_radius"
	ParamBlock            ContextKey = "block"
)

// ParamSet describes which context parameters a table requires and which it
// may read.
//
// Invariant: every required key is also allowed.
type ParamSet struct {
	name     string
	required map[ContextKey]struct{}
	allowed  map[ContextKey]struct{}
}

// NewParamSet builds a ParamSet. Required keys are implicitly allowed.
func NewParamSet(name string, required, optional []ContextKey) ParamSet {
	s := ParamSet{
		name:     name,
		required: make(map[ContextKey]struct{}, len(required)),
		allowed:  make(map[ContextKey]struct{}, len(required)+len(optional)),
	}
	for _, k := range required {
		s.required[k] = struct{}{}
		s.allowed[k] = struct{}{}
	}
	for _, k := range optional {
		s.allowed[k] = struct{}{}
	}
	return s
}

// Standard parameter sets.
var (
	ParamSetEmpty  = NewParamSet("empty", nil, nil)
	ParamSetChest  = NewParamSet("chest", []ContextKey{ParamOrigin}, []ContextKey{ParamThisEntity})
	ParamSetEntity = NewParamSet("entity",
		[]ContextKey{ParamThisEntity, ParamOrigin},
		[]ContextKey{ParamLastDamagePlayer, ParamAttackingEntity, ParamExplosionRadius})
	ParamSetBlock = NewParamSet("block",
		[]ContextKey{ParamOrigin, ParamBlock},
		[]ContextKey{ParamThisEntity, ParamTool, ParamExplosionRadius})
	ParamSetGift = NewParamSet("gift", []ContextKey{ParamOrigin, ParamThisEntity}, nil)
	ParamSetAll  = NewParamSet("all", nil, []ContextKey{
		ParamThisEntity, ParamLastDamagePlayer, ParamAttackingEntity,
		ParamOrigin, ParamTool, ParamExplosionRadius, ParamBlock,
	})
)

var paramSetsByName = map[string]ParamSet{
	ParamSetEmpty.name:  ParamSetEmpty,
	ParamSetChest.name:  ParamSetChest,
	ParamSetEntity.name: ParamSetEntity,
	ParamSetBlock.name:  ParamSetBlock,
	ParamSetGift.name:   ParamSetGift,
	ParamSetAll.name:    ParamSetAll,
}

// ParamSetByName returns the standard ParamSet with the given name.
func ParamSetByName(name string) (ParamSet, bool) {
	s, ok := paramSetsByName[name]
	return s, ok
}

// Name returns the set's name, or "all" for the zero value.
func (s ParamSet) Name() string {
	if s.name == "" && s.allowed == nil {
		return ParamSetAll.name
	}
	return s.name
}

// IsAllowed reports whether k may be read in this context. The zero ParamSet
// allows every standard key.
func (s ParamSet) IsAllowed(k ContextKey) bool {
	if s.allowed == nil {
		_, ok := ParamSetAll.allowed[k]
		return ok
	}
	_, ok := s.allowed[k]
	return ok
}

// IsRequired reports whether k must be present.
func (s ParamSet) IsRequired(k ContextKey) bool {
	_, ok := s.required[k]
	return ok
}

// Required returns the required keys in sorted order.
func (s ParamSet) Required() []ContextKey {
	return sortedKeys(s.required)
}

// Allowed returns the allowed keys in sorted order.
func (s ParamSet) Allowed() []ContextKey {
	if s.allowed == nil {
		return ParamSetAll.Allowed()
	}
	return sortedKeys(s.allowed)
}

func sortedKeys(m map[ContextKey]struct{}) []ContextKey {
	out := make([]ContextKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func joinKeys(keys []ContextKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Sink receives generated item stacks.
type Sink func(inventory.ItemStack)

// DynamicDrop injects stacks that the static table graph cannot express.
type DynamicDrop func(sink Sink)

// Resolver looks up the named elements a table graph may reference.
type Resolver interface {
	Table(key string) (*Table, bool)
	Condition(key string) (*Condition, bool)
	Function(key string) (*Function, bool)
	Item(id string) (*inventory.ItemDef, bool)
	Tag(tag string) ([]*inventory.ItemDef, bool)
}

// Level is the world a generation request happens in.
type Level interface {
	// Seed returns the level seed used to derive random sequences.
	Seed() int64
	// Random returns the ambient, non-reproducible random source.
	Random() dice.RandomSource
	// RandomSequence returns the persistent stream for key.
	RandomSequence(key string) dice.RandomSource
	// Resolver returns the loot data the level was loaded with.
	Resolver() Resolver
	// Logger returns the logger for generation warnings.
	Logger() *zap.Logger
}

// Params are the frozen inputs to a generation request.
type Params struct {
	level   Level
	values  map[ContextKey]any
	dynamic map[string]DynamicDrop
	luck    float64
}

// Level returns the level the params were built for.
func (p *Params) Level() Level { return p.level }

// Luck returns the luck scalar.
func (p *Params) Luck() float64 { return p.luck }

// Has reports whether k was supplied.
func (p *Params) Has(k ContextKey) bool {
	_, ok := p.values[k]
	return ok
}

// Parameter returns the value for k or an error wrapping ErrMissingParameter.
func (p *Params) Parameter(k ContextKey) (any, error) {
	v, ok := p.values[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingParameter, k)
	}
	return v, nil
}

// OptionalParameter returns the value for k and whether it was supplied.
func (p *Params) OptionalParameter(k ContextKey) (any, bool) {
	v, ok := p.values[k]
	return v, ok
}

// AddDynamicDrops forwards to the callback registered under name. An unknown
// name is a no-op.
func (p *Params) AddDynamicDrops(name string, sink Sink) {
	if fn, ok := p.dynamic[name]; ok {
		fn(sink)
	}
}

// ParamsBuilder accumulates the inputs of a generation request.
//
// A builder is single-use and not safe for concurrent use.
type ParamsBuilder struct {
	level   Level
	values  map[ContextKey]any
	dynamic map[string]DynamicDrop
	luck    float64
}

// NewParamsBuilder starts a builder for level.
//
// Precondition: level must be non-nil.
func NewParamsBuilder(level Level) *ParamsBuilder {
	return &ParamsBuilder{
		level:   level,
		values:  make(map[ContextKey]any),
		dynamic: make(map[string]DynamicDrop),
	}
}

// WithParameter sets k to v.
func (b *ParamsBuilder) WithParameter(k ContextKey, v any) *ParamsBuilder {
	b.values[k] = v
	return b
}

// WithOptionalParameter sets k to v unless v is nil.
func (b *ParamsBuilder) WithOptionalParameter(k ContextKey, v any) *ParamsBuilder {
	if v == nil {
		delete(b.values, k)
		return b
	}
	b.values[k] = v
	return b
}

// WithDynamicDrop registers fn under name.
func (b *ParamsBuilder) WithDynamicDrop(name string, fn DynamicDrop) *ParamsBuilder {
	b.dynamic[name] = fn
	return b
}

// WithLuck sets the luck scalar.
func (b *ParamsBuilder) WithLuck(luck float64) *ParamsBuilder {
	b.luck = luck
	return b
}

// Build freezes the builder against set.
//
// Postcondition: Returns Params holding every required key of set and no key
// outside it, or an error wrapping ErrMissingParameter / ErrUnexpectedParameter.
func (b *ParamsBuilder) Build(set ParamSet) (*Params, error) {
	var unexpected []ContextKey
	for k := range b.values {
		if !set.IsAllowed(k) {
			unexpected = append(unexpected, k)
		}
	}
	if len(unexpected) > 0 {
		sort.Slice(unexpected, func(i, j int) bool { return unexpected[i] < unexpected[j] })
		return nil, fmt.Errorf("%w: %s in %q", ErrUnexpectedParameter, joinKeys(unexpected), set.Name())
	}
	var missing []ContextKey
	for _, k := range set.Required() {
		if _, ok := b.values[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s in %q", ErrMissingParameter, joinKeys(missing), set.Name())
	}

	values := make(map[ContextKey]any, len(b.values))
	for k, v := range b.values {
		values[k] = v
	}
	dynamic := make(map[string]DynamicDrop, len(b.dynamic))
	for k, v := range b.dynamic {
		dynamic[k] = v
	}
	return &Params{level: b.level, values: values, dynamic: dynamic, luck: b.luck}, nil
}
