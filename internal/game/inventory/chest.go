package inventory

import "fmt"

// Chest is a fixed-size slot container.
//
// It is not safe for concurrent use; the caller must serialise access.
type Chest struct {
	slots []ItemStack
}

// NewChest creates a Chest with size empty slots.
//
// Precondition: size >= 0.
func NewChest(size int) *Chest {
	return &Chest{slots: make([]ItemStack, size)}
}

// Size returns the number of slots.
func (c *Chest) Size() int {
	return len(c.slots)
}

// Slot returns the stack in slot i.
//
// Precondition: 0 <= i < Size().
func (c *Chest) Slot(i int) ItemStack {
	return c.slots[i]
}

// SetSlot replaces the stack in slot i. An empty stack clears the slot.
//
// Precondition: 0 <= i < Size().
func (c *Chest) SetSlot(i int, s ItemStack) {
	if s.IsEmpty() {
		c.slots[i] = EmptyStack
		return
	}
	c.slots[i] = s
}

// IsSlotEmpty reports whether slot i holds nothing.
func (c *Chest) IsSlotEmpty(i int) bool {
	return c.slots[i].IsEmpty()
}

// Items returns a snapshot copy of the non-empty stacks.
func (c *Chest) Items() []ItemStack {
	var out []ItemStack
	for _, s := range c.slots {
		if !s.IsEmpty() {
			out = append(out, s.Copy())
		}
	}
	return out
}

// UsedSlots returns the number of occupied slots.
func (c *Chest) UsedSlots() int {
	n := 0
	for _, s := range c.slots {
		if !s.IsEmpty() {
			n++
		}
	}
	return n
}

// TotalCount returns the summed count of every stack in the chest.
func (c *Chest) TotalCount() int {
	total := 0
	for _, s := range c.slots {
		if !s.IsEmpty() {
			total += s.Count
		}
	}
	return total
}

// TotalWeight returns the sum of count*weight over all stacks.
func (c *Chest) TotalWeight() float64 {
	var total float64
	for _, s := range c.slots {
		if !s.IsEmpty() {
			total += float64(s.Count) * s.Def.Weight
		}
	}
	return total
}

// String renders the occupied slots for diagnostics.
func (c *Chest) String() string {
	out := fmt.Sprintf("chest[%d]", len(c.slots))
	for i, s := range c.slots {
		if !s.IsEmpty() {
			out += fmt.Sprintf(" %d:%s×%d", i, s.Def.ID, s.Count)
		}
	}
	return out
}
