package inventory

import (
	"fmt"
	"sort"
)

// Registry holds item definitions indexed by ID and by tag.
//
// A Registry is populated once at startup and is read-only afterwards, so
// concurrent lookups need no locking.
type Registry struct {
	items map[string]*ItemDef
	tags  map[string][]*ItemDef
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		items: make(map[string]*ItemDef),
		tags:  make(map[string][]*ItemDef),
	}
}

// NewRegistryFrom registers every def and returns the populated Registry.
func NewRegistryFrom(defs []*ItemDef) (*Registry, error) {
	r := NewRegistry()
	for _, d := range defs {
		if err := r.RegisterItem(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RegisterItem adds d to the registry and indexes its tags.
//
// Precondition:  d must not be nil.
// Postcondition: Item(d.ID) returns (d, true); returns error if d.ID already registered.
func (r *Registry) RegisterItem(d *ItemDef) error {
	if _, exists := r.items[d.ID]; exists {
		return fmt.Errorf("inventory: Registry.RegisterItem: item ID %q already registered", d.ID)
	}
	r.items[d.ID] = d
	for _, tag := range d.Tags {
		r.tags[tag] = append(r.tags[tag], d)
	}
	return nil
}

// Item returns the ItemDef for the given id and whether it was found.
func (r *Registry) Item(id string) (*ItemDef, bool) {
	d, ok := r.items[id]
	return d, ok
}

// Tag returns the items carrying tag in registration order, and whether the tag is known.
func (r *Registry) Tag(tag string) ([]*ItemDef, bool) {
	defs, ok := r.tags[tag]
	return defs, ok
}

// AllItems returns all registered ItemDefs sorted by ID.
func (r *Registry) AllItems() []*ItemDef {
	out := make([]*ItemDef, 0, len(r.items))
	for _, d := range r.items {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
