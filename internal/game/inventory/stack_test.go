package inventory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/lootgen/internal/game/inventory"
)

func TestItemStack_EmptyStates(t *testing.T) {
	assert.True(t, inventory.EmptyStack.IsEmpty())
	assert.True(t, inventory.NewStack(junkDef("rock"), 0).IsEmpty())
	assert.False(t, inventory.NewStack(junkDef("rock"), 1).IsEmpty())
	assert.Equal(t, "", inventory.EmptyStack.ItemID())
}

func TestItemStack_Split_ConservesCount(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(0, 500).Draw(rt, "count")
		n := rapid.IntRange(-5, 600).Draw(rt, "n")
		s := inventory.NewStack(stackDef("ore", 64), count)
		piece := s.Split(n)
		assert.Equal(rt, count, piece.Count+s.Count)
		assert.GreaterOrEqual(rt, piece.Count, 0)
		assert.NotEqual(rt, s.InstanceID, piece.InstanceID)
	})
}

func TestItemStack_CopyDoesNotShareAttributes(t *testing.T) {
	s := inventory.NewStack(junkDef("rock"), 1).WithAttribute("owner", "ana")
	c := s.Copy()
	c.Attributes["owner"] = "bo"
	assert.Equal(t, "ana", s.Attributes["owner"])

	piece := s.Split(1)
	require.NotNil(t, piece.Attributes)
	piece.Attributes["owner"] = "cy"
	assert.Equal(t, "ana", s.Attributes["owner"])
}

func TestChest_SlotsAndTotals(t *testing.T) {
	c := inventory.NewChest(3)
	assert.Equal(t, 3, c.Size())
	for i := 0; i < c.Size(); i++ {
		assert.True(t, c.IsSlotEmpty(i))
	}
	ore := stackDef("ore", 64)
	ore.Weight = 0.5
	c.SetSlot(1, inventory.NewStack(ore, 10))
	assert.False(t, c.IsSlotEmpty(1))
	assert.Equal(t, 1, c.UsedSlots())
	assert.Equal(t, 10, c.TotalCount())
	assert.InDelta(t, 5.0, c.TotalWeight(), 1e-9)
	assert.Contains(t, c.String(), "1:ore×10")

	c.SetSlot(1, inventory.NewStack(ore, 0))
	assert.True(t, c.IsSlotEmpty(1))
	assert.Empty(t, c.Items())
}
