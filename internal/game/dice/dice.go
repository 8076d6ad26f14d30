// Package dice provides the randomness abstractions shared by the loot engine
// and the dice-expression roller used by dice-backed number providers.
package dice

import "fmt"

// RollResult holds the full audit trail for a single dice roll evaluation.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string // original expression string, e.g. "2d6+3"
	Dice       []int  // individual die results before modifier
	Modifier   int    // flat modifier (may be negative)
}

// Total returns the sum of all die results plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String returns a human-readable audit string in the format:
//
//	"2d6+3 → [4 5] +3 = 12"
//
// Precondition: r.Expression is non-empty.
func (r RollResult) String() string {
	if r.Expression == "" {
		panic("dice: RollResult.String() precondition violated: Expression must be non-empty")
	}
	return fmt.Sprintf("%s → %v %+d = %d", r.Expression, r.Dice, r.Modifier, r.Total())
}

// Source is the minimal integer randomness provider for dice rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// RandomSource extends Source with the draws the loot engine needs.
//
// Implementations MUST be safe for concurrent use.
type RandomSource interface {
	Source
	// Float64 returns a random float in [0.0, 1.0).
	Float64() float64
	// Bool returns a fair coin flip.
	Bool() bool
}

// IntBetween returns a random int in [lo, hi] inclusive. When hi <= lo it
// returns lo without consuming randomness.
func IntBetween(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.Intn(hi-lo+1)
}

// Shuffle permutes s in place with a Fisher-Yates walk from the tail.
func Shuffle[T any](src Source, s []T) {
	for i := len(s); i > 1; i-- {
		j := src.Intn(i)
		s[i-1], s[j] = s[j], s[i-1]
	}
}
