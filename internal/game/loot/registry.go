package loot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cory-johannsen/lootgen/internal/game/inventory"
)

// Registry holds the named tables, conditions, and functions of a data set
// along with the item catalog. It implements Resolver.
//
// A Registry is populated once at startup and is read-only afterwards, so
// concurrent lookups need no locking.
type Registry struct {
	items      *inventory.Registry
	tables     map[string]*Table
	conditions map[string]*Condition
	functions  map[string]*Function
}

// NewRegistry returns an empty Registry resolving items through items.
// A nil items registry resolves no items.
func NewRegistry(items *inventory.Registry) *Registry {
	if items == nil {
		items = inventory.NewRegistry()
	}
	return &Registry{
		items:      items,
		tables:     make(map[string]*Table),
		conditions: make(map[string]*Condition),
		functions:  make(map[string]*Function),
	}
}

// RegisterTable adds t under t.Key.
//
// Postcondition: returns an error if t.Key is empty or already registered.
func (r *Registry) RegisterTable(t *Table) error {
	if t.Key == "" {
		return errors.New("loot: RegisterTable: table has no key")
	}
	if _, exists := r.tables[t.Key]; exists {
		return fmt.Errorf("loot: RegisterTable: table %q already registered", t.Key)
	}
	r.tables[t.Key] = t
	return nil
}

// RegisterCondition adds c under key.
func (r *Registry) RegisterCondition(key string, c *Condition) error {
	if _, exists := r.conditions[key]; exists {
		return fmt.Errorf("loot: RegisterCondition: condition %q already registered", key)
	}
	r.conditions[key] = c
	return nil
}

// RegisterFunction adds f under key.
func (r *Registry) RegisterFunction(key string, f *Function) error {
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("loot: RegisterFunction: function %q already registered", key)
	}
	r.functions[key] = f
	return nil
}

// Table returns the table registered under key.
func (r *Registry) Table(key string) (*Table, bool) {
	t, ok := r.tables[key]
	return t, ok
}

// Condition returns the condition registered under key.
func (r *Registry) Condition(key string) (*Condition, bool) {
	c, ok := r.conditions[key]
	return c, ok
}

// Function returns the function registered under key.
func (r *Registry) Function(key string) (*Function, bool) {
	f, ok := r.functions[key]
	return f, ok
}

// Item resolves an item id through the item catalog.
func (r *Registry) Item(id string) (*inventory.ItemDef, bool) { return r.items.Item(id) }

// Tag resolves an item tag through the item catalog.
func (r *Registry) Tag(tag string) ([]*inventory.ItemDef, bool) { return r.items.Tag(tag) }

// Items returns the item catalog.
func (r *Registry) Items() *inventory.Registry { return r.items }

// Tables returns every registered table sorted by key.
func (r *Registry) Tables() []*Table {
	out := make([]*Table, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ValidateAll validates every table against its own parameter set and
// returns the problems in table key order.
func (r *Registry) ValidateAll() []Problem {
	var out []Problem
	for _, t := range r.Tables() {
		out = append(out, Validate(t, r)...)
	}
	return out
}

// LoadDirectory decodes the tables/, conditions/, and functions/
// subdirectories of dir. Each element's key is its path relative to the
// subdirectory, slash separated, without extension. Missing subdirectories
// are skipped.
//
// Postcondition: returns the first read, decode, or registration error.
func (r *Registry) LoadDirectory(dir string, dec *Decoder) error {
	loaders := []struct {
		sub  string
		load func(key string, data []byte) error
	}{
		{"conditions", func(key string, data []byte) error {
			c, err := dec.DecodeCondition(key, data)
			if err != nil {
				return err
			}
			return r.RegisterCondition(key, c)
		}},
		{"functions", func(key string, data []byte) error {
			f, err := dec.DecodeFunction(key, data)
			if err != nil {
				return err
			}
			return r.RegisterFunction(key, f)
		}},
		{"tables", func(key string, data []byte) error {
			t, err := dec.DecodeTable(key, data)
			if err != nil {
				return err
			}
			return r.RegisterTable(t)
		}},
	}
	for _, l := range loaders {
		if err := walkYAML(filepath.Join(dir, l.sub), l.load); err != nil {
			return fmt.Errorf("LoadDirectory: %w", err)
		}
	}
	return nil
}

func walkYAML(root string, load func(key string, data []byte) error) error {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %q: %w", path, err)
		}
		return load(filepath.ToSlash(strings.TrimSuffix(rel, ext)), data)
	})
}
