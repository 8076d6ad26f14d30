package loot

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/lootgen/internal/game/dice"
	"github.com/cory-johannsen/lootgen/internal/game/inventory"
)

// Container is a fixed-size slot collection the fill algorithm writes into.
type Container interface {
	Size() int
	Slot(i int) inventory.ItemStack
	SetSlot(i int, s inventory.ItemStack)
	IsSlotEmpty(i int) bool
}

// Fill generates the table's items and scatters them over c's empty slots,
// splitting stacks to use spare slots. A zero seed uses the level's source.
//
// Precondition: c must not be filled concurrently by another caller.
// Postcondition: only slots that were empty on entry are written; items that
// do not fit are dropped with a warning.
func (t *Table) Fill(c Container, params *Params, seed int64) {
	ctx := t.newContext(params, seed)
	var items []inventory.ItemStack
	t.GetRandomItemsRaw(ctx, collect(&items))

	slots := availableSlots(c, ctx.Random())
	items = shuffleAndSplitItems(items, len(slots), ctx.Random())

	for i, s := range items {
		if len(slots) == 0 {
			ctx.Logger().Warn("tried to over-fill a container",
				zap.String("table", t.Key),
				zap.Int("slots", c.Size()),
				zap.Int("remaining", len(items)-i),
			)
			return
		}
		slot := slots[len(slots)-1]
		slots = slots[:len(slots)-1]
		if s.IsEmpty() {
			c.SetSlot(slot, inventory.EmptyStack)
		} else {
			c.SetSlot(slot, s)
		}
	}
}

// availableSlots returns the empty slot indices of c in random order.
func availableSlots(c Container, rnd dice.Source) []int {
	var slots []int
	for i := 0; i < c.Size(); i++ {
		if c.IsSlotEmpty(i) {
			slots = append(slots, i)
		}
	}
	dice.Shuffle(rnd, slots)
	return slots
}

// shuffleAndSplitItems fragments multi-count stacks while there are more
// free slots than stacks, then shuffles the result. Empty stacks are dropped.
//
// Postcondition: the total count of the result equals that of items.
func shuffleAndSplitItems(items []inventory.ItemStack, slots int, rnd dice.RandomSource) []inventory.ItemStack {
	placed := make([]inventory.ItemStack, 0, len(items))
	var splittable []inventory.ItemStack
	for _, s := range items {
		switch {
		case s.IsEmpty():
		case s.Count > 1:
			splittable = append(splittable, s)
		default:
			placed = append(placed, s)
		}
	}

	for slots-len(placed)-len(splittable) > 0 && len(splittable) > 0 {
		i := dice.IntBetween(rnd, 0, len(splittable)-1)
		s := splittable[i]
		splittable = append(splittable[:i], splittable[i+1:]...)

		piece := s.Split(dice.IntBetween(rnd, 1, s.Count/2))
		for _, part := range [2]inventory.ItemStack{s, piece} {
			if part.Count > 1 && rnd.Bool() {
				splittable = append(splittable, part)
			} else {
				placed = append(placed, part)
			}
		}
	}

	placed = append(placed, splittable...)
	dice.Shuffle(rnd, placed)
	return placed
}
