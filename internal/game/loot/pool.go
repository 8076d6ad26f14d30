package loot

import (
	"math"
)

// Pool is one weighted-choice round of a table.
type Pool struct {
	Entries    []Entry
	Conditions []Condition
	Functions  []Function
	Rolls      NumberProvider
	BonusRolls NumberProvider
}

// NewPool returns a pool rolling rolls times over entries.
func NewPool(rolls NumberProvider, entries ...Entry) Pool {
	return Pool{Rolls: rolls, Entries: entries}
}

// RollCount returns rolls + floor(bonusRolls * luck), never negative.
func (p *Pool) RollCount(ctx *Context) int {
	n := p.Rolls.Int(ctx) + int(math.Floor(p.BonusRolls.Float(ctx)*ctx.Luck()))
	return max(n, 0)
}

// AddRandomItems performs the pool's rolls into sink.
func (p *Pool) AddRandomItems(sink Sink, ctx *Context) {
	if !testAll(ctx, p.Conditions) {
		return
	}
	sink = decorate(sink, p.Functions, ctx)
	n := p.RollCount(ctx)
	for i := 0; i < n; i++ {
		p.addRandomItem(sink, ctx)
	}
}

// addRandomItem performs one weighted draw.
//
// Postcondition: a single surviving candidate is chosen without consuming
// randomness; otherwise exactly one Intn(total) draw is made, with total
// saturating at math.MaxInt.
func (p *Pool) addRandomItem(sink Sink, ctx *Context) {
	luck := ctx.Luck()
	var (
		candidates []Candidate
		weights    []int
		total      int
	)
	for i := range p.Entries {
		p.Entries[i].Expand(ctx, func(c Candidate) {
			w := c.Weight(luck)
			if w <= 0 {
				return
			}
			candidates = append(candidates, c)
			weights = append(weights, w)
			if total > math.MaxInt-w {
				total = math.MaxInt
			} else {
				total += w
			}
		})
	}

	switch len(candidates) {
	case 0:
		return
	case 1:
		candidates[0].CreateItemStack(sink, ctx)
		return
	}
	if total <= 0 {
		return
	}

	r := ctx.Random().Intn(total)
	for i, c := range candidates {
		r -= weights[i]
		if r < 0 {
			c.CreateItemStack(sink, ctx)
			return
		}
	}
}

// Validate checks the pool's rolls, conditions, functions, and entries.
func (p *Pool) Validate(vc *ValidationContext) {
	validateConditions(vc, p.Conditions)
	validateFunctions(vc, p.Functions)
	for i := range p.Entries {
		p.Entries[i].Validate(vc.ForIndex("entries", i))
	}
	p.Rolls.Validate(vc.ForChild("rolls"))
	p.BonusRolls.Validate(vc.ForChild("bonus_rolls"))
}
