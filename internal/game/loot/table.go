package loot

import (
	"github.com/cory-johannsen/lootgen/internal/game/inventory"
)

// Table is a named composition of pools plus table-level functions.
//
// An empty Key marks an anonymous table. Anonymous tables are not tracked
// for cycle detection since nothing can reference them by name.
type Table struct {
	Key            string
	ParamSet       ParamSet
	RandomSequence string
	Pools          []Pool
	Functions      []Function
}

// EmptyTable produces nothing.
var EmptyTable = &Table{Key: "empty", ParamSet: ParamSetEmpty}

// NewTable builds a table from pools.
func NewTable(key string, set ParamSet, pools ...Pool) *Table {
	return &Table{Key: key, ParamSet: set, Pools: pools}
}

// GetRandomItemsRaw rolls every pool into sink through the table functions.
// Re-entering a table already being expanded on the current path logs a
// warning and produces nothing for that branch.
func (t *Table) GetRandomItemsRaw(ctx *Context, sink Sink) {
	if t.Key != "" {
		el := TableElement(t.Key)
		if !ctx.PushVisitedElement(el) {
			ctx.warnLoop(el)
			return
		}
		defer ctx.PopVisitedElement(el)
	}
	sink = decorate(sink, t.Functions, ctx)
	for i := range t.Pools {
		t.Pools[i].AddRandomItems(sink, ctx)
	}
}

// GetRandomItems rolls the table with a fresh context, splitting oversized
// stacks before they reach sink.
func (t *Table) GetRandomItems(params *Params, sink Sink) {
	t.GetRandomItemsFrom(t.newContext(params, 0), sink)
}

// GetRandomItemsSeeded is GetRandomItems with a fixed seed. A zero seed
// uses the level's source.
func (t *Table) GetRandomItemsSeeded(params *Params, seed int64, sink Sink) {
	t.GetRandomItemsFrom(t.newContext(params, seed), sink)
}

// GetRandomItemsFrom rolls the table in ctx, splitting oversized stacks.
func (t *Table) GetRandomItemsFrom(ctx *Context, sink Sink) {
	t.GetRandomItemsRaw(ctx, stackSplitter(sink))
}

// RandomItems collects GetRandomItems into a slice.
func (t *Table) RandomItems(params *Params) []inventory.ItemStack {
	return t.RandomItemsSeeded(params, 0)
}

// RandomItemsSeeded collects GetRandomItemsSeeded into a slice.
func (t *Table) RandomItemsSeeded(params *Params, seed int64) []inventory.ItemStack {
	var out []inventory.ItemStack
	t.GetRandomItemsSeeded(params, seed, collect(&out))
	return out
}

func (t *Table) newContext(params *Params, seed int64) *Context {
	return NewContextBuilder(params).WithOptionalRandomSeed(seed).Create(t.RandomSequence)
}

// stackSplitter re-chunks stacks larger than their item's max stack size.
func stackSplitter(sink Sink) Sink {
	return func(s inventory.ItemStack) {
		limit := s.MaxStackSize()
		if s.Count <= limit {
			sink(s)
			return
		}
		for n := s.Count; n > 0; n -= limit {
			sink(s.CopyWithCount(min(n, limit)))
		}
	}
}

func collect(out *[]inventory.ItemStack) Sink {
	return func(s inventory.ItemStack) { *out = append(*out, s) }
}

// Validate checks the table as a root, with its own key marked visited.
func (t *Table) Validate(vc *ValidationContext) {
	if t.Key != "" {
		vc = vc.EnterElement("{"+t.Key+"}", TableElement(t.Key))
	}
	t.validateBody(vc)
}

func (t *Table) validateBody(vc *ValidationContext) {
	for i := range t.Pools {
		t.Pools[i].Validate(vc.ForIndex("pools", i))
	}
	validateFunctions(vc, t.Functions)
}
