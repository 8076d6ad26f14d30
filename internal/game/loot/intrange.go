package loot

// IntRange is an integer interval whose bounds are sampled from NumberProviders.
// A nil bound is open; the zero value accepts every integer.
type IntRange struct {
	Min *NumberProvider
	Max *NumberProvider
}

// Exact returns the range [v, v].
func Exact(v int) IntRange {
	return Between(v, v)
}

// Between returns the range [min, max].
func Between(min, max int) IntRange {
	lo, hi := Constant(float64(min)), Constant(float64(max))
	return IntRange{Min: &lo, Max: &hi}
}

// AtLeast returns the range [min, +inf).
func AtLeast(min int) IntRange {
	lo := Constant(float64(min))
	return IntRange{Min: &lo}
}

// AtMost returns the range (-inf, max].
func AtMost(max int) IntRange {
	hi := Constant(float64(max))
	return IntRange{Max: &hi}
}

// RangeOf returns a range with sampled bounds; either may be nil.
func RangeOf(min, max *NumberProvider) IntRange {
	return IntRange{Min: min, Max: max}
}

// Clamp applies the lower bound and then the upper bound to v.
func (r IntRange) Clamp(ctx *Context, v int) int {
	if r.Min != nil {
		v = max(v, r.Min.Int(ctx))
	}
	if r.Max != nil {
		v = min(v, r.Max.Int(ctx))
	}
	return v
}

// Test reports whether v satisfies every present bound.
func (r IntRange) Test(ctx *Context, v int) bool {
	if r.Min != nil && v < r.Min.Int(ctx) {
		return false
	}
	if r.Max != nil && v > r.Max.Int(ctx) {
		return false
	}
	return true
}

// ExactValue returns v and true when both bounds are the same integral constant.
func (r IntRange) ExactValue() (int, bool) {
	if r.Min == nil || r.Max == nil {
		return 0, false
	}
	lo, ok1 := r.Min.ConstantValue()
	hi, ok2 := r.Max.ConstantValue()
	if !ok1 || !ok2 || lo != hi || lo != float64(int(lo)) {
		return 0, false
	}
	return int(lo), true
}

// Validate checks the bound providers.
func (r IntRange) Validate(vc *ValidationContext) {
	if r.Min != nil {
		r.Min.Validate(vc.ForChild("min"))
	}
	if r.Max != nil {
		r.Max.Validate(vc.ForChild("max"))
	}
}
