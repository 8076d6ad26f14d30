// Package inventory provides item definitions, item stacks, and the slot
// containers that loot is generated into.
package inventory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Kind constants for ItemDef.Kind.
const (
	KindWeapon     = "weapon"
	KindArmor      = "armor"
	KindConsumable = "consumable"
	KindMaterial   = "material"
	KindCurrency   = "currency"
	KindJunk       = "junk"
)

var validKinds = map[string]bool{
	KindWeapon:     true,
	KindArmor:      true,
	KindConsumable: true,
	KindMaterial:   true,
	KindCurrency:   true,
	KindJunk:       true,
}

var tagPattern = regexp.MustCompile(`^[a-z0-9_/]+$`)

// ItemDef defines the static properties of an item loaded from YAML.
type ItemDef struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Kind        string   `yaml:"kind"`
	Weight      float64  `yaml:"weight"`
	Stackable   bool     `yaml:"stackable"`
	MaxStack    int      `yaml:"max_stack"`
	Value       int      `yaml:"value"`
	Tags        []string `yaml:"tags"`
}

// MaxStackSize returns the largest count a single stack of this item may hold.
//
// Postcondition: result >= 1.
func (d *ItemDef) MaxStackSize() int {
	if !d.Stackable || d.MaxStack < 1 {
		return 1
	}
	return d.MaxStack
}

// Validate checks that the ItemDef satisfies its invariants.
//
// Postcondition: returns nil iff all fields are valid.
func (d *ItemDef) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("ID must not be empty"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("Name must not be empty"))
	}
	if !validKinds[d.Kind] {
		errs = append(errs, fmt.Errorf("Kind must be one of weapon, armor, consumable, material, currency, junk; got %q", d.Kind))
	}
	if d.MaxStack < 1 {
		errs = append(errs, errors.New("MaxStack must be >= 1"))
	}
	if d.Weight < 0 {
		errs = append(errs, errors.New("Weight must be >= 0"))
	}
	for _, tag := range d.Tags {
		if !tagPattern.MatchString(tag) {
			errs = append(errs, fmt.Errorf("tag %q must match %s", tag, tagPattern))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("item %q validation failed: %w", d.ID, errors.Join(errs...))
	}
	return nil
}

// LoadItems walks dir for *.yaml and *.yml files, parses each as an ItemDef,
// validates it, and returns the collected slice.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns all valid ItemDefs or the first encountered error.
func LoadItems(dir string) ([]*ItemDef, error) {
	var items []*ItemDef
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %q: %w", path, err)
		}
		var d ItemDef
		if err := yaml.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("parsing %q: %w", path, err)
		}
		if err := d.Validate(); err != nil {
			return fmt.Errorf("invalid item in %q: %w", path, err)
		}
		items = append(items, &d)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("LoadItems: %w", err)
	}
	return items, nil
}
