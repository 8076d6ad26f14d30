package loot

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lootgen/internal/game/inventory"
)

// EntryKind enumerates the Entry variants.
type EntryKind uint8

const (
	EntryEmpty EntryKind = iota
	EntryItem
	EntryTag
	EntryTable
	EntryDynamic
	EntryAlternatives
	EntryGroup
	EntrySequence
)

var entryNames = [...]string{
	EntryEmpty:        "empty",
	EntryItem:         "item",
	EntryTag:          "tag",
	EntryTable:        "loot_table",
	EntryDynamic:      "dynamic",
	EntryAlternatives: "alternatives",
	EntryGroup:        "group",
	EntrySequence:     "sequence",
}

// String returns the serialized type name.
func (k EntryKind) String() string {
	if int(k) < len(entryNames) {
		return entryNames[k]
	}
	return fmt.Sprintf("entry(%d)", uint8(k))
}

// IsComposite reports whether the kind only groups child entries.
func (k EntryKind) IsComposite() bool {
	return k == EntryAlternatives || k == EntryGroup || k == EntrySequence
}

// DefaultWeight is the weight of a singleton entry that does not set one.
const DefaultWeight = 1

// MaxWeight bounds the magnitude of an entry's weight and quality, and the
// effective weight of any candidate.
const MaxWeight = math.MaxInt32

// Entry is a node of a pool. Singleton entries yield candidates and produce
// stacks; composite entries only decide which children expand.
type Entry struct {
	Kind       EntryKind
	Conditions []Condition

	// Singleton fields.
	Weight    int
	Quality   int
	Functions []Function

	Name      string             // item id, tag, or dynamic drop name
	Item      *inventory.ItemDef // item; resolved by Name when nil
	ExpandTag bool               // tag: one candidate per tagged item

	TableKey string // loot_table by reference
	Inline   *Table // loot_table defined in place

	Children []Entry // composites
}

// EntryOption customises a singleton entry.
type EntryOption func(*Entry)

// WithWeight sets the base weight.
func WithWeight(w int) EntryOption { return func(e *Entry) { e.Weight = w } }

// WithQuality sets the per-luck weight bonus.
func WithQuality(q int) EntryOption { return func(e *Entry) { e.Quality = q } }

// WithConditions gates the entry.
func WithConditions(c ...Condition) EntryOption {
	return func(e *Entry) { e.Conditions = append(e.Conditions, c...) }
}

// WithFunctions decorates every stack the entry produces.
func WithFunctions(f ...Function) EntryOption {
	return func(e *Entry) { e.Functions = append(e.Functions, f...) }
}

func singleton(kind EntryKind, opts []EntryOption) Entry {
	e := Entry{Kind: kind, Weight: DefaultWeight}
	for _, o := range opts {
		o(&e)
	}
	return e
}

// EmptyEntry yields a candidate that produces nothing.
func EmptyEntry(opts ...EntryOption) Entry { return singleton(EntryEmpty, opts) }

// ItemEntry produces one unit of the item with the given id.
func ItemEntry(id string, opts ...EntryOption) Entry {
	e := singleton(EntryItem, opts)
	e.Name = id
	return e
}

// ItemDefEntry produces one unit of def without resolving it.
func ItemDefEntry(def *inventory.ItemDef, opts ...EntryOption) Entry {
	e := singleton(EntryItem, opts)
	e.Name = def.ID
	e.Item = def
	return e
}

// TagEntry produces the items of tag. With expand each tagged item becomes a
// separate candidate; otherwise one candidate produces all of them.
func TagEntry(tag string, expand bool, opts ...EntryOption) Entry {
	e := singleton(EntryTag, opts)
	e.Name = tag
	e.ExpandTag = expand
	return e
}

// TableEntry rolls the table registered under key.
func TableEntry(key string, opts ...EntryOption) Entry {
	e := singleton(EntryTable, opts)
	e.TableKey = key
	return e
}

// InlineTableEntry rolls t.
func InlineTableEntry(t *Table, opts ...EntryOption) Entry {
	e := singleton(EntryTable, opts)
	e.Inline = t
	return e
}

// DynamicEntry forwards to the dynamic drop registered under name.
func DynamicEntry(name string, opts ...EntryOption) Entry {
	e := singleton(EntryDynamic, opts)
	e.Name = name
	return e
}

// Alternatives expands only the first child that expands.
func Alternatives(children ...Entry) Entry { return Entry{Kind: EntryAlternatives, Children: children} }

// Group expands every child.
func Group(children ...Entry) Entry { return Entry{Kind: EntryGroup, Children: children} }

// SequenceEntry expands children in order until one fails to expand.
func SequenceEntry(children ...Entry) Entry { return Entry{Kind: EntrySequence, Children: children} }

// Candidate is one weighted outcome of expanding an Entry.
type Candidate struct {
	entry *Entry
	item  *inventory.ItemDef // set for expanded tag candidates
}

// Weight returns floor(weight + quality*luck) clamped to [0, MaxWeight].
func (c Candidate) Weight(luck float64) int {
	w := float64(c.entry.Weight)
	if c.entry.Quality != 0 {
		w = math.Floor(w + float64(c.entry.Quality)*luck)
	}
	if math.IsNaN(w) || w <= 0 {
		return 0
	}
	return int(min(w, MaxWeight))
}

// Entry returns the entry the candidate was expanded from.
func (c Candidate) Entry() *Entry { return c.entry }

// CreateItemStack emits the candidate's stacks through the entry's functions.
func (c Candidate) CreateItemStack(sink Sink, ctx *Context) {
	e := c.entry
	sink = decorate(sink, e.Functions, ctx)
	switch e.Kind {
	case EntryEmpty:
	case EntryItem:
		def := e.Item
		if def == nil {
			def = e.resolveItem(ctx)
		}
		if def != nil {
			sink(inventory.NewStack(def, 1))
		}
	case EntryTag:
		if c.item != nil {
			sink(inventory.NewStack(c.item, 1))
			return
		}
		for _, def := range e.resolveTag(ctx) {
			sink(inventory.NewStack(def, 1))
		}
	case EntryTable:
		e.createFromTable(sink, ctx)
	case EntryDynamic:
		ctx.AddDynamicDrops(e.Name, sink)
	}
}

func (e *Entry) resolveItem(ctx *Context) *inventory.ItemDef {
	if r := ctx.Resolver(); r != nil {
		if def, ok := r.Item(e.Name); ok {
			return def
		}
	}
	ctx.Logger().Warn("unknown item in loot entry", zap.String("item", e.Name))
	return nil
}

func (e *Entry) resolveTag(ctx *Context) []*inventory.ItemDef {
	r := ctx.Resolver()
	if r == nil {
		return nil
	}
	defs, _ := r.Tag(e.Name)
	return defs
}

func (e *Entry) createFromTable(sink Sink, ctx *Context) {
	if e.Inline != nil {
		e.Inline.GetRandomItemsRaw(ctx, sink)
		return
	}
	r := ctx.Resolver()
	if r == nil {
		return
	}
	t, ok := r.Table(e.TableKey)
	if !ok {
		ctx.Logger().Warn("unknown loot table reference", zap.String("key", e.TableKey))
		return
	}
	t.GetRandomItemsRaw(ctx, sink)
}

// Expand feeds the entry's candidates to accept and reports whether the
// entry expanded at all. A singleton expands when its conditions pass.
func (e *Entry) Expand(ctx *Context, accept func(Candidate)) bool {
	if !testAll(ctx, e.Conditions) {
		return false
	}
	switch e.Kind {
	case EntryAlternatives:
		for i := range e.Children {
			if e.Children[i].Expand(ctx, accept) {
				return true
			}
		}
		return false
	case EntryGroup:
		for i := range e.Children {
			e.Children[i].Expand(ctx, accept)
		}
		return true
	case EntrySequence:
		for i := range e.Children {
			if !e.Children[i].Expand(ctx, accept) {
				return false
			}
		}
		return true
	case EntryTag:
		if !e.ExpandTag {
			accept(Candidate{entry: e})
			return true
		}
		for _, def := range e.resolveTag(ctx) {
			accept(Candidate{entry: e, item: def})
		}
		return true
	}
	accept(Candidate{entry: e})
	return true
}

// Validate checks the entry and its children.
func (e *Entry) Validate(vc *ValidationContext) {
	validateConditions(vc, e.Conditions)
	if e.Kind.IsComposite() {
		for i := range e.Children {
			e.Children[i].Validate(vc.ForIndex("children", i))
		}
		if e.Kind == EntryAlternatives {
			for i := 0; i < len(e.Children)-1; i++ {
				if len(e.Children[i].Conditions) == 0 {
					vc.ForIndex("children", i+1).Report(ProblemUnreachableEntry,
						fmt.Sprintf("unreachable entry: children[%d] has no conditions", i))
				}
			}
		}
		return
	}

	validateFunctions(vc, e.Functions)
	if e.Weight < -MaxWeight || e.Weight > MaxWeight {
		vc.Report(ProblemInvalidValue, fmt.Sprintf("weight %d outside [%d, %d]", e.Weight, -MaxWeight, MaxWeight))
	}
	if e.Quality < -MaxWeight || e.Quality > MaxWeight {
		vc.Report(ProblemInvalidValue, fmt.Sprintf("quality %d outside [%d, %d]", e.Quality, -MaxWeight, MaxWeight))
	}
	switch e.Kind {
	case EntryItem:
		if e.Item == nil && vc.Resolver() != nil {
			if _, ok := vc.Resolver().Item(e.Name); !ok {
				vc.Report(ProblemMissingItem, fmt.Sprintf("unknown item %q", e.Name))
			}
		}
	case EntryTag:
		if vc.Resolver() != nil {
			if _, ok := vc.Resolver().Tag(e.Name); !ok {
				vc.Report(ProblemMissingItem, fmt.Sprintf("unknown tag %q", e.Name))
			}
		}
	case EntryTable:
		if e.Inline != nil {
			e.Inline.validateBody(vc.ForChild("value"))
			return
		}
		validateReference(vc, TableElement(e.TableKey))
	}
}
