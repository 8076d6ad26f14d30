package loot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/lootgen/internal/game/loot"
	"github.com/cory-johannsen/lootgen/internal/scripting"
)

func entityContext(t *testing.T, level loot.Level, withPlayer bool, radius any) *loot.Context {
	t.Helper()
	b := loot.NewParamsBuilder(level).
		WithParameter(loot.ParamThisEntity, "zombie").
		WithParameter(loot.ParamOrigin, "here").
		WithOptionalParameter(loot.ParamExplosionRadius, radius)
	if withPlayer {
		b.WithParameter(loot.ParamLastDamagePlayer, "steve")
	}
	p, err := b.Build(loot.ParamSetEntity)
	require.NoError(t, err)
	return loot.NewContextBuilder(p).WithRandomSeed(1).Create("")
}

func TestCondition_Composites(t *testing.T) {
	level, _ := newTestLevel(nil)
	ctx := newContext(t, level, 1)
	yes, no := loot.RandomChance(1), loot.RandomChance(0)

	assert.True(t, loot.AllOf().Test(ctx))
	assert.True(t, loot.AllOf(yes, yes).Test(ctx))
	assert.False(t, loot.AllOf(yes, no).Test(ctx))
	assert.False(t, loot.AnyOf().Test(ctx))
	assert.True(t, loot.AnyOf(no, yes).Test(ctx))
	assert.True(t, loot.Not(no).Test(ctx))
	assert.False(t, loot.Not(yes).Test(ctx))
}

func TestCondition_RandomChanceWithLuck(t *testing.T) {
	level, _ := newTestLevel(nil)
	p, err := loot.NewParamsBuilder(level).
		WithParameter(loot.ParamOrigin, "here").
		WithLuck(10).
		Build(loot.ParamSetChest)
	require.NoError(t, err)
	ctx := loot.NewContextBuilder(p).WithRandomSeed(1).Create("")

	for i := 0; i < 100; i++ {
		require.True(t, loot.RandomChanceWithLuck(0, 0.1).Test(ctx))
	}
}

func TestCondition_EntityParameters(t *testing.T) {
	level, _ := newTestLevel(nil)

	assert.True(t, loot.KilledByPlayer().Test(entityContext(t, level, true, nil)))
	assert.False(t, loot.KilledByPlayer().Test(entityContext(t, level, false, nil)))
	assert.True(t, loot.HasParameter(loot.ParamThisEntity).Test(entityContext(t, level, false, nil)))
	assert.True(t, loot.SurvivesExplosion().Test(entityContext(t, level, false, nil)))
	assert.True(t, loot.SurvivesExplosion().Test(entityContext(t, level, false, 1.0)))

	ctx := entityContext(t, level, false, 1000)
	survived := 0
	for i := 0; i < 1000; i++ {
		if loot.SurvivesExplosion().Test(ctx) {
			survived++
		}
	}
	assert.Less(t, survived, 20)
}

func TestCondition_ValueCheck(t *testing.T) {
	level, _ := newTestLevel(nil)
	ctx := newContext(t, level, 1)

	assert.True(t, loot.ValueCheck(loot.Constant(5), loot.Between(1, 5)).Test(ctx))
	assert.False(t, loot.ValueCheck(loot.Constant(6), loot.Between(1, 5)).Test(ctx))
	assert.True(t, loot.ValueCheck(loot.Uniform(3, 9), loot.AtLeast(3)).Test(ctx))
}

func TestCondition_ReferenceCycleFails(t *testing.T) {
	reg := loot.NewRegistry(nil)
	self := loot.ConditionRef("self")
	require.NoError(t, reg.RegisterCondition("self", &self))
	yes := loot.RandomChance(1)
	require.NoError(t, reg.RegisterCondition("yes", &yes))
	level, logs := newTestLevel(reg)
	ctx := newContext(t, level, 1)

	assert.True(t, loot.ConditionRef("yes").Test(ctx))
	assert.False(t, loot.ConditionRef("self").Test(ctx))
	assert.False(t, loot.ConditionRef("missing").Test(ctx))
	assert.Equal(t, 1, logs.FilterMessage(loopWarning).Len())
	assert.Equal(t, 0, ctx.VisitedDepth())
}

func TestCondition_Script(t *testing.T) {
	mgr := scripting.NewManager(10000, zap.NewNop())
	s, err := mgr.Compile("drop", `return params.this_entity == "zombie" and luck >= 0`)
	require.NoError(t, err)
	level, _ := newTestLevel(nil)

	assert.True(t, loot.ScriptCondition(s, loot.ParamThisEntity).Test(entityContext(t, level, false, nil)))
	assert.False(t, loot.ScriptCondition(s).Test(entityContext(t, level, false, nil)),
		"undeclared parameters are not visible to the script")
}

func TestCondition_ScriptFailureWarns(t *testing.T) {
	mgr := scripting.NewManager(10000, zap.NewNop())
	s, err := mgr.Compile("broken", `return missing_function()`)
	require.NoError(t, err)
	level, logs := newTestLevel(nil)

	assert.False(t, loot.ScriptCondition(s).Test(newContext(t, level, 1)))
	assert.Equal(t, 1, logs.FilterMessage("loot script failed").Len())
}
