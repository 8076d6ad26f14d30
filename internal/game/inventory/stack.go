package inventory

import (
	"maps"

	"github.com/google/uuid"
)

// ItemStack is a quantity of one item. The zero value is the empty stack.
//
// ItemStack is a value type; Copy must be used before mutating Attributes of
// a stack that was obtained from someone else.
type ItemStack struct {
	Def        *ItemDef
	InstanceID string
	Count      int
	Attributes map[string]string
}

// EmptyStack is the canonical empty stack.
var EmptyStack = ItemStack{}

// NewStack creates a stack of count units of def with a fresh instance ID.
//
// Precondition: def must not be nil.
func NewStack(def *ItemDef, count int) ItemStack {
	return ItemStack{
		Def:        def,
		InstanceID: uuid.New().String(),
		Count:      count,
	}
}

// IsEmpty reports whether the stack holds no items.
func (s ItemStack) IsEmpty() bool {
	return s.Def == nil || s.Count <= 0
}

// ItemID returns the item definition ID, or "" for an empty stack.
func (s ItemStack) ItemID() string {
	if s.Def == nil {
		return ""
	}
	return s.Def.ID
}

// MaxStackSize returns the largest legal count for this stack's item.
func (s ItemStack) MaxStackSize() int {
	if s.Def == nil {
		return 1
	}
	return s.Def.MaxStackSize()
}

// Copy returns a deep copy of s that shares no mutable state with it.
func (s ItemStack) Copy() ItemStack {
	out := s
	if s.Attributes != nil {
		out.Attributes = maps.Clone(s.Attributes)
	}
	return out
}

// CopyWithCount returns a deep copy carrying count units and a fresh instance ID.
func (s ItemStack) CopyWithCount(count int) ItemStack {
	out := s.Copy()
	out.Count = count
	out.InstanceID = uuid.New().String()
	return out
}

// WithAttribute returns a copy of s with the named attribute set.
func (s ItemStack) WithAttribute(name, value string) ItemStack {
	out := s.Copy()
	if out.Attributes == nil {
		out.Attributes = make(map[string]string)
	}
	out.Attributes[name] = value
	return out
}

// Split removes up to n units from s and returns them as a new stack.
//
// Postcondition: the returned count plus the remaining s.Count equals the
// original s.Count.
func (s *ItemStack) Split(n int) ItemStack {
	if n > s.Count {
		n = s.Count
	}
	if n < 0 {
		n = 0
	}
	piece := s.CopyWithCount(n)
	s.Count -= n
	return piece
}
