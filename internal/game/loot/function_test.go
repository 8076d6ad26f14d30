package loot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/lootgen/internal/game/inventory"
	"github.com/cory-johannsen/lootgen/internal/game/loot"
)

func TestFunction_SetAndLimitCount(t *testing.T) {
	level, _ := newTestLevel(nil)
	ctx := newContext(t, level, 1)
	s := inventory.NewStack(coinDef(), 3)

	assert.Equal(t, 10, loot.SetCount(loot.Constant(10), false).Apply(s, ctx).Count)
	assert.Equal(t, 13, loot.SetCount(loot.Constant(10), true).Apply(s, ctx).Count)
	assert.True(t, loot.SetCount(loot.Constant(-5), true).Apply(s, ctx).IsEmpty())
	assert.Equal(t, 2, loot.LimitCount(loot.AtMost(2)).Apply(s, ctx).Count)
	assert.Equal(t, 5, loot.LimitCount(loot.AtLeast(5)).Apply(s, ctx).Count)
	assert.Equal(t, 3, s.Count, "functions must not mutate their input")
}

func TestFunction_ConditionsGate(t *testing.T) {
	level, _ := newTestLevel(nil)
	ctx := newContext(t, level, 1)
	s := inventory.NewStack(coinDef(), 3)

	out := loot.SetCount(loot.Constant(9), false, loot.RandomChance(0)).Apply(s, ctx)
	assert.Equal(t, 3, out.Count)
}

func TestFunction_Attributes(t *testing.T) {
	level, _ := newTestLevel(nil)
	ctx := newContext(t, level, 1)
	s := inventory.NewStack(swordDef(), 1)

	out := loot.Sequence(
		loot.SetAttribute("quality", "fine"),
		loot.CopyParameter(loot.ParamOrigin, "found_at"),
		loot.CopyParameter(loot.ParamThisEntity, "owner"),
	).Apply(s, ctx)
	assert.Equal(t, map[string]string{"quality": "fine", "found_at": "0,0,0"}, out.Attributes)
	assert.Nil(t, s.Attributes)
}

func TestFunction_ExplosionDecay(t *testing.T) {
	level, _ := newTestLevel(nil)
	s := inventory.NewStack(coinDef(), 64)

	assert.Equal(t, 64, loot.ExplosionDecay().Apply(s, entityContext(t, level, false, nil)).Count)
	decayed := loot.ExplosionDecay().Apply(s, entityContext(t, level, false, 4.0)).Count
	assert.Less(t, decayed, 64)
	assert.GreaterOrEqual(t, decayed, 0)
}

func TestFunction_ReferenceAndCycle(t *testing.T) {
	reg := loot.NewRegistry(nil)
	double := loot.SetCount(loot.Constant(2), false)
	self := loot.FunctionRef("self")
	require.NoError(t, reg.RegisterFunction("double", &double))
	require.NoError(t, reg.RegisterFunction("self", &self))
	level, logs := newTestLevel(reg)
	ctx := newContext(t, level, 1)
	s := inventory.NewStack(coinDef(), 7)

	assert.Equal(t, 2, loot.FunctionRef("double").Apply(s, ctx).Count)
	assert.Equal(t, 7, loot.FunctionRef("self").Apply(s, ctx).Count)
	assert.Equal(t, 1, logs.FilterMessage(loopWarning).Len())
	assert.Equal(t, 0, ctx.VisitedDepth())
}

func TestFunction_EmptyResultDropsItem(t *testing.T) {
	level, _ := newTestLevel(nil)
	ctx := newContext(t, level, 1)
	table := loot.NewTable("t", loot.ParamSetChest,
		loot.NewPool(loot.Constant(4), loot.ItemDefEntry(coinDef(),
			loot.WithFunctions(loot.SetCount(loot.Constant(0), false), loot.SetAttribute("never", "set")))))

	assert.Empty(t, collectItems(table, ctx))
}
