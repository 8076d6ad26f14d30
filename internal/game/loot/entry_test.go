package loot_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/lootgen/internal/game/inventory"
	"github.com/cory-johannsen/lootgen/internal/game/loot"
)

func expandNames(t *testing.T, e loot.Entry, ctx *loot.Context) ([]string, bool) {
	t.Helper()
	var names []string
	ok := e.Expand(ctx, func(c loot.Candidate) {
		c.CreateItemStack(func(s inventory.ItemStack) { names = append(names, s.ItemID()) }, ctx)
	})
	return names, ok
}

func TestEntry_Composites(t *testing.T) {
	level, _ := newTestLevel(loot.NewRegistry(testItems(t)))
	ctx := newContext(t, level, 1)
	never := loot.WithConditions(loot.RandomChance(0))

	names, ok := expandNames(t, loot.Alternatives(
		loot.ItemEntry("sword", never),
		loot.ItemEntry("coin"),
		loot.ItemEntry("gem"),
	), ctx)
	assert.True(t, ok)
	assert.Equal(t, []string{"coin"}, names)

	names, ok = expandNames(t, loot.Group(loot.ItemEntry("sword", never), loot.ItemEntry("coin"), loot.ItemEntry("gem")), ctx)
	assert.True(t, ok)
	assert.Equal(t, []string{"coin", "gem"}, names)

	names, ok = expandNames(t, loot.SequenceEntry(loot.ItemEntry("coin"), loot.ItemEntry("sword", never), loot.ItemEntry("gem")), ctx)
	assert.False(t, ok)
	assert.Equal(t, []string{"coin"}, names)

	_, ok = expandNames(t, loot.Alternatives(loot.ItemEntry("sword", never)), ctx)
	assert.False(t, ok)
}

func TestEntry_Tag(t *testing.T) {
	level, _ := newTestLevel(loot.NewRegistry(testItems(t)))
	ctx := newContext(t, level, 1)

	var candidates int
	tag := loot.TagEntry("currency", true)
	tag.Expand(ctx, func(loot.Candidate) { candidates++ })
	assert.Equal(t, 2, candidates)

	names, ok := expandNames(t, loot.TagEntry("currency", false), ctx)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"coin", "gem"}, names)
}

func TestCandidate_Weight(t *testing.T) {
	level, _ := newTestLevel(nil)
	ctx := newContext(t, level, 1)
	e := loot.ItemDefEntry(coinDef(), loot.WithWeight(10), loot.WithQuality(3))

	var c loot.Candidate
	e.Expand(ctx, func(got loot.Candidate) { c = got })
	assert.Equal(t, 10, c.Weight(0))
	assert.Equal(t, 14, c.Weight(1.5))
	assert.Equal(t, 0, c.Weight(-10))
}

func TestCandidate_WeightIsClamped(t *testing.T) {
	level, _ := newTestLevel(nil)
	ctx := newContext(t, level, 1)
	weight := func(e loot.Entry, luck float64) int {
		var c loot.Candidate
		e.Expand(ctx, func(got loot.Candidate) { c = got })
		return c.Weight(luck)
	}

	assert.Equal(t, loot.MaxWeight, weight(loot.ItemDefEntry(coinDef(), loot.WithWeight(math.MaxInt)), 0))
	assert.Equal(t, loot.MaxWeight, weight(loot.ItemDefEntry(coinDef(), loot.WithQuality(5)), 1e300))
	assert.Equal(t, loot.MaxWeight, weight(loot.ItemDefEntry(coinDef(), loot.WithQuality(1)), math.Inf(1)))
	assert.Equal(t, 0, weight(loot.ItemDefEntry(coinDef(), loot.WithQuality(1)), math.Inf(-1)))
	assert.Equal(t, 0, weight(loot.ItemDefEntry(coinDef(), loot.WithQuality(1)), math.NaN()))
	assert.Equal(t, 3, weight(loot.ItemDefEntry(coinDef(), loot.WithWeight(3)), math.Inf(1)))
}

func TestEntry_Dynamic(t *testing.T) {
	level, _ := newTestLevel(nil)
	p, err := loot.NewParamsBuilder(level).
		WithParameter(loot.ParamOrigin, "here").
		WithDynamicDrop("contents", func(sink loot.Sink) {
			sink(inventory.NewStack(gemDef(), 2))
			sink(inventory.NewStack(coinDef(), 1))
		}).
		Build(loot.ParamSetChest)
	require.NoError(t, err)
	ctx := loot.NewContextBuilder(p).WithRandomSeed(1).Create("")

	names, _ := expandNames(t, loot.DynamicEntry("contents"), ctx)
	assert.Equal(t, []string{"gem", "coin"}, names)
}
