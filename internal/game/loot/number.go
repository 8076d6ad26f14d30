package loot

import (
	"fmt"
	"math"

	"github.com/cory-johannsen/lootgen/internal/game/dice"
)

// NumberKind enumerates the NumberProvider variants.
type NumberKind uint8

const (
	NumberConstant NumberKind = iota
	NumberUniform
	NumberBinomial
	NumberDice
)

// String returns the serialized type name.
func (k NumberKind) String() string {
	switch k {
	case NumberConstant:
		return "constant"
	case NumberUniform:
		return "uniform"
	case NumberBinomial:
		return "binomial"
	case NumberDice:
		return "dice"
	}
	return fmt.Sprintf("number(%d)", uint8(k))
}

// NumberProvider samples a number from a Context. The zero value is the
// constant 0.
type NumberProvider struct {
	Kind NumberKind

	Value float64 // constant

	Min, Max *NumberProvider // uniform
	N, P     *NumberProvider // binomial

	Dice dice.Expression // dice
}

// Constant returns a provider that always yields v.
func Constant(v float64) NumberProvider {
	return NumberProvider{Kind: NumberConstant, Value: v}
}

// Uniform returns a provider uniform over [min, max].
func Uniform(min, max float64) NumberProvider {
	return UniformOf(Constant(min), Constant(max))
}

// UniformOf returns a provider uniform between two sampled bounds.
func UniformOf(min, max NumberProvider) NumberProvider {
	return NumberProvider{Kind: NumberUniform, Min: &min, Max: &max}
}

// Binomial returns a provider counting successes of n trials with chance p.
func Binomial(n int, p float64) NumberProvider {
	nn, pp := Constant(float64(n)), Constant(p)
	return NumberProvider{Kind: NumberBinomial, N: &nn, P: &pp}
}

// Dice returns a provider rolling expr.
func Dice(expr dice.Expression) NumberProvider {
	return NumberProvider{Kind: NumberDice, Dice: expr}
}

// Float samples the provider as a float.
func (n NumberProvider) Float(ctx *Context) float64 {
	switch n.Kind {
	case NumberConstant:
		return n.Value
	case NumberUniform:
		lo, hi := n.Min.Float(ctx), n.Max.Float(ctx)
		if hi <= lo {
			return lo
		}
		return lo + ctx.Random().Float64()*(hi-lo)
	case NumberBinomial, NumberDice:
		return float64(n.Int(ctx))
	}
	return 0
}

// Int samples the provider as an integer.
func (n NumberProvider) Int(ctx *Context) int {
	switch n.Kind {
	case NumberConstant:
		return roundHalfUp(n.Value)
	case NumberUniform:
		return dice.IntBetween(ctx.Random(), n.Min.Int(ctx), n.Max.Int(ctx))
	case NumberBinomial:
		trials, p := n.N.Int(ctx), n.P.Float(ctx)
		hits := 0
		for i := 0; i < trials; i++ {
			if ctx.Random().Float64() < p {
				hits++
			}
		}
		return hits
	case NumberDice:
		return ctx.roller.Roll(n.Dice).Total()
	}
	return 0
}

// ConstantValue returns the value and true when the provider is a constant.
func (n NumberProvider) ConstantValue() (float64, bool) {
	if n.Kind != NumberConstant {
		return 0, false
	}
	return n.Value, true
}

// Validate checks nested providers.
func (n NumberProvider) Validate(vc *ValidationContext) {
	switch n.Kind {
	case NumberUniform:
		validateNumberChild(vc.ForChild("min"), n.Min)
		validateNumberChild(vc.ForChild("max"), n.Max)
	case NumberBinomial:
		validateNumberChild(vc.ForChild("n"), n.N)
		validateNumberChild(vc.ForChild("p"), n.P)
	case NumberDice:
		if n.Dice.Count < 1 || n.Dice.Sides < 2 {
			vc.Report(ProblemInvalidValue, fmt.Sprintf("malformed dice expression %q", n.Dice.Raw))
		} else if n.Dice.Count > dice.MaxCount {
			vc.Report(ProblemInvalidValue, fmt.Sprintf("dice expression %q rolls %d dice, more than %d", n.Dice.Raw, n.Dice.Count, dice.MaxCount))
		}
	}
}

func validateNumberChild(vc *ValidationContext, n *NumberProvider) {
	if n == nil {
		vc.Report(ProblemInvalidValue, "missing number provider")
		return
	}
	n.Validate(vc)
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
