package loot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/lootgen/internal/game/inventory"
	"github.com/cory-johannsen/lootgen/internal/game/loot"
)

const loopWarning = "detected infinite loop in loot tables"

func TestTable_SelfReferenceTerminates(t *testing.T) {
	reg := loot.NewRegistry(testItems(t))
	require.NoError(t, reg.RegisterTable(loot.NewTable("a", loot.ParamSetChest,
		loot.NewPool(loot.Constant(1), loot.TableEntry("a")))))
	level, logs := newTestLevel(reg)
	ctx := newContext(t, level, 1)

	a, _ := reg.Table("a")
	assert.Empty(t, collectItems(a, ctx))
	assert.Equal(t, 1, logs.FilterMessage(loopWarning).Len())
	assert.Equal(t, 0, ctx.VisitedDepth())
}

func TestTable_MutualReferenceKeepsOtherDrops(t *testing.T) {
	reg := loot.NewRegistry(testItems(t))
	require.NoError(t, reg.RegisterTable(loot.NewTable("a", loot.ParamSetChest,
		loot.NewPool(loot.Constant(1), loot.ItemEntry("coin")),
		loot.NewPool(loot.Constant(1), loot.TableEntry("b")))))
	require.NoError(t, reg.RegisterTable(loot.NewTable("b", loot.ParamSetChest,
		loot.NewPool(loot.Constant(1), loot.ItemEntry("sword")),
		loot.NewPool(loot.Constant(1), loot.TableEntry("a")))))
	level, logs := newTestLevel(reg)
	ctx := newContext(t, level, 1)

	a, _ := reg.Table("a")
	got := collectItems(a, ctx)
	// a yields a coin, b yields a sword, and b's reference back to a is cut.
	require.Len(t, got, 2)
	assert.Equal(t, "coin", got[0].ItemID())
	assert.Equal(t, "sword", got[1].ItemID())
	assert.Equal(t, 1, logs.FilterMessage(loopWarning).Len())
	assert.Equal(t, 0, ctx.VisitedDepth())
}

func TestTable_SharedSubTableIsNotACycle(t *testing.T) {
	reg := loot.NewRegistry(testItems(t))
	require.NoError(t, reg.RegisterTable(loot.NewTable("shared", loot.ParamSetChest,
		loot.NewPool(loot.Constant(1), loot.ItemEntry("gem")))))
	require.NoError(t, reg.RegisterTable(loot.NewTable("root", loot.ParamSetChest,
		loot.NewPool(loot.Constant(1), loot.Group(loot.TableEntry("shared"), loot.TableEntry("shared"))))))
	level, logs := newTestLevel(reg)

	root, _ := reg.Table("root")
	got := collectItems(root, newContext(t, level, 1))
	assert.Len(t, got, 1, "a group yields two candidates and one is drawn")
	assert.Equal(t, 0, logs.FilterMessage(loopWarning).Len())
}

func TestTable_FunctionsWrapEveryPool(t *testing.T) {
	level, _ := newTestLevel(nil)
	table := loot.NewTable("t", loot.ParamSetChest,
		loot.NewPool(loot.Constant(1), loot.ItemDefEntry(coinDef())),
		loot.NewPool(loot.Constant(1), loot.ItemDefEntry(gemDef())),
	)
	table.Functions = []loot.Function{loot.SetAttribute("source", "t")}

	got := collectItems(table, newContext(t, level, 1))
	require.Len(t, got, 2)
	for _, s := range got {
		assert.Equal(t, "t", s.Attributes["source"])
	}
}

func TestTable_GetRandomItemsSplitsOversizedStacks(t *testing.T) {
	level, _ := newTestLevel(nil)
	table := loot.NewTable("t", loot.ParamSetChest,
		loot.NewPool(loot.Constant(1), loot.ItemDefEntry(coinDef(),
			loot.WithFunctions(loot.SetCount(loot.Constant(150), false)))))

	got := table.RandomItemsSeeded(chestParams(t, level), 3)
	require.Len(t, got, 3)
	assert.Equal(t, []int{64, 64, 22}, []int{got[0].Count, got[1].Count, got[2].Count})
	assert.NotEqual(t, got[0].InstanceID, got[1].InstanceID)
}

func TestTable_SeededRollsReproduce(t *testing.T) {
	level, _ := newTestLevel(nil)
	table := loot.NewTable("t", loot.ParamSetChest,
		loot.NewPool(loot.Uniform(1, 8),
			loot.ItemDefEntry(coinDef(), loot.WithWeight(5)),
			loot.ItemDefEntry(gemDef(), loot.WithWeight(2)),
			loot.ItemDefEntry(swordDef()),
		))
	ids := func(stacks []inventory.ItemStack) []string {
		out := make([]string, len(stacks))
		for i, s := range stacks {
			out[i] = s.ItemID()
		}
		return out
	}
	params := chestParams(t, level)
	assert.Equal(t, ids(table.RandomItemsSeeded(params, 77)), ids(table.RandomItemsSeeded(params, 77)))
}

func TestTable_UnknownItemWarns(t *testing.T) {
	reg := loot.NewRegistry(testItems(t))
	level, logs := newTestLevel(reg)
	table := loot.NewTable("t", loot.ParamSetChest, loot.NewPool(loot.Constant(1), loot.ItemEntry("ghost")))

	assert.Empty(t, collectItems(table, newContext(t, level, 1)))
	assert.Equal(t, 1, logs.FilterMessage("unknown item in loot entry").Len())
}

func TestTable_InlineTableEntry(t *testing.T) {
	level, _ := newTestLevel(nil)
	inner := &loot.Table{Pools: []loot.Pool{loot.NewPool(loot.Constant(2), loot.ItemDefEntry(gemDef()))}}
	table := loot.NewTable("outer", loot.ParamSetChest,
		loot.NewPool(loot.Constant(1), loot.InlineTableEntry(inner)))

	got := collectItems(table, newContext(t, level, 1))
	require.Len(t, got, 2)
	assert.Equal(t, "gem", got[0].ItemID())
}
