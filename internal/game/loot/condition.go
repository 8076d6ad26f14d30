package loot

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lootgen/internal/scripting"
)

// ConditionKind enumerates the Condition variants.
type ConditionKind uint8

const (
	ConditionAllOf ConditionKind = iota
	ConditionAnyOf
	ConditionInverted
	ConditionRandomChance
	ConditionRandomChanceWithLuck
	ConditionSurvivesExplosion
	ConditionKilledByPlayer
	ConditionHasParameter
	ConditionValueCheck
	ConditionReference
	ConditionScript
)

var conditionNames = [...]string{
	ConditionAllOf:                "all_of",
	ConditionAnyOf:                "any_of",
	ConditionInverted:             "inverted",
	ConditionRandomChance:         "random_chance",
	ConditionRandomChanceWithLuck: "random_chance_with_luck",
	ConditionSurvivesExplosion:    "survives_explosion",
	ConditionKilledByPlayer:       "killed_by_player",
	ConditionHasParameter:         "has_parameter",
	ConditionValueCheck:           "value_check",
	ConditionReference:            "reference",
	ConditionScript:               "script",
}

// String returns the serialized type name.
func (k ConditionKind) String() string {
	if int(k) < len(conditionNames) {
		return conditionNames[k]
	}
	return fmt.Sprintf("condition(%d)", uint8(k))
}

// Condition is a predicate over a Context.
type Condition struct {
	Kind ConditionKind

	Terms []Condition // all_of, any_of
	Term  *Condition  // inverted

	Chance         NumberProvider // random_chance, random_chance_with_luck
	LuckMultiplier float64        // random_chance_with_luck

	Parameter ContextKey // has_parameter

	Value NumberProvider // value_check
	Range IntRange       // value_check

	Name string // reference

	Script *scripting.Script // script
	Reads  []ContextKey      // script
}

// AllOf returns a condition that passes when every term passes.
func AllOf(terms ...Condition) Condition { return Condition{Kind: ConditionAllOf, Terms: terms} }

// AnyOf returns a condition that passes when at least one term passes.
func AnyOf(terms ...Condition) Condition { return Condition{Kind: ConditionAnyOf, Terms: terms} }

// Not inverts c.
func Not(c Condition) Condition { return Condition{Kind: ConditionInverted, Term: &c} }

// RandomChance passes with probability p.
func RandomChance(p float64) Condition {
	return Condition{Kind: ConditionRandomChance, Chance: Constant(p)}
}

// RandomChanceWithLuck passes with probability p + luck*multiplier.
func RandomChanceWithLuck(p, multiplier float64) Condition {
	return Condition{Kind: ConditionRandomChanceWithLuck, Chance: Constant(p), LuckMultiplier: multiplier}
}

// SurvivesExplosion passes with probability 1/radius when an explosion radius is present.
func SurvivesExplosion() Condition { return Condition{Kind: ConditionSurvivesExplosion} }

// KilledByPlayer passes when a player dealt the last damage.
func KilledByPlayer() Condition { return Condition{Kind: ConditionKilledByPlayer} }

// HasParameter passes when k was supplied.
func HasParameter(k ContextKey) Condition { return Condition{Kind: ConditionHasParameter, Parameter: k} }

// ValueCheck passes when value falls in r.
func ValueCheck(value NumberProvider, r IntRange) Condition {
	return Condition{Kind: ConditionValueCheck, Value: value, Range: r}
}

// ConditionRef defers to the named condition.
func ConditionRef(name string) Condition { return Condition{Kind: ConditionReference, Name: name} }

// ScriptCondition evaluates s with the declared parameters readable.
func ScriptCondition(s *scripting.Script, reads ...ContextKey) Condition {
	return Condition{Kind: ConditionScript, Script: s, Reads: reads}
}

// Test evaluates the condition.
func (c Condition) Test(ctx *Context) bool {
	switch c.Kind {
	case ConditionAllOf:
		return testAll(ctx, c.Terms)
	case ConditionAnyOf:
		for _, t := range c.Terms {
			if t.Test(ctx) {
				return true
			}
		}
		return false
	case ConditionInverted:
		return c.Term != nil && !c.Term.Test(ctx)
	case ConditionRandomChance:
		return ctx.Random().Float64() < c.Chance.Float(ctx)
	case ConditionRandomChanceWithLuck:
		return ctx.Random().Float64() < c.Chance.Float(ctx)+ctx.Luck()*c.LuckMultiplier
	case ConditionSurvivesExplosion:
		radius, ok := floatParam(ctx, ParamExplosionRadius)
		if !ok || radius <= 0 {
			return true
		}
		return ctx.Random().Float64() <= 1/radius
	case ConditionKilledByPlayer:
		return ctx.HasParameter(ParamLastDamagePlayer)
	case ConditionHasParameter:
		return ctx.HasParameter(c.Parameter)
	case ConditionValueCheck:
		return c.Range.Test(ctx, c.Value.Int(ctx))
	case ConditionReference:
		return c.testReference(ctx)
	case ConditionScript:
		return c.testScript(ctx)
	}
	return false
}

func (c Condition) testReference(ctx *Context) bool {
	if ctx.Resolver() == nil {
		return false
	}
	target, ok := ctx.Resolver().Condition(c.Name)
	if !ok {
		ctx.Logger().Warn("unknown condition reference", zap.String("key", c.Name))
		return false
	}
	el := VisitedElement{Category: CategoryCondition, Key: c.Name}
	if !ctx.PushVisitedElement(el) {
		ctx.warnLoop(el)
		return false
	}
	defer ctx.PopVisitedElement(el)
	return target.Test(ctx)
}

func (c Condition) testScript(ctx *Context) bool {
	if c.Script == nil {
		return false
	}
	params := make(map[string]any, len(c.Reads))
	for _, k := range c.Reads {
		if v, ok := ctx.OptionalParameter(k); ok {
			params[string(k)] = v
		}
	}
	ok, err := c.Script.EvalBool(map[string]any{
		"params": params,
		"luck":   ctx.Luck(),
		"random": ctx.Random().Float64,
	})
	if err != nil {
		ctx.Logger().Warn("loot script failed",
			zap.String("script", c.Script.Name()),
			zap.Error(err),
		)
		return false
	}
	return ok
}

// ReferencedParams returns the context keys the condition reads directly.
func (c Condition) ReferencedParams() []ContextKey {
	switch c.Kind {
	case ConditionSurvivesExplosion:
		return []ContextKey{ParamExplosionRadius}
	case ConditionKilledByPlayer:
		return []ContextKey{ParamLastDamagePlayer}
	case ConditionHasParameter:
		return []ContextKey{c.Parameter}
	case ConditionScript:
		return c.Reads
	}
	return nil
}

// Validate checks the condition and its children.
func (c Condition) Validate(vc *ValidationContext) {
	vc.ValidateUser(c.ReferencedParams())
	switch c.Kind {
	case ConditionAllOf, ConditionAnyOf:
		for i, t := range c.Terms {
			t.Validate(vc.ForIndex("terms", i))
		}
	case ConditionInverted:
		if c.Term == nil {
			vc.Report(ProblemInvalidValue, "inverted condition has no term")
			return
		}
		c.Term.Validate(vc.ForChild("term"))
	case ConditionRandomChance, ConditionRandomChanceWithLuck:
		c.Chance.Validate(vc.ForChild("chance"))
	case ConditionValueCheck:
		c.Value.Validate(vc.ForChild("value"))
		c.Range.Validate(vc.ForChild("range"))
	case ConditionReference:
		validateReference(vc, VisitedElement{Category: CategoryCondition, Key: c.Name})
	case ConditionScript:
		if c.Script == nil {
			vc.Report(ProblemInvalidValue, "script condition has no script")
		}
	}
}

// testAll is the composite AND of conds; an empty list passes.
func testAll(ctx *Context, conds []Condition) bool {
	for _, c := range conds {
		if !c.Test(ctx) {
			return false
		}
	}
	return true
}

func validateConditions(vc *ValidationContext, conds []Condition) {
	for i, c := range conds {
		c.Validate(vc.ForIndex("conditions", i))
	}
}
