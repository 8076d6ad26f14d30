// Package level assembles the world a loot request runs in: its seed, the
// ambient random source, named random sequences, and the loaded loot data.
package level

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lootgen/internal/game/dice"
	"github.com/cory-johannsen/lootgen/internal/game/inventory"
	"github.com/cory-johannsen/lootgen/internal/game/loot"
	"github.com/cory-johannsen/lootgen/internal/game/randseq"
	"github.com/cory-johannsen/lootgen/internal/scripting"
)

// Level implements loot.Level.
type Level struct {
	seed      int64
	random    dice.RandomSource
	sequences *randseq.Sequences
	registry  *loot.Registry
	logger    *zap.Logger
}

// Option customises a Level.
type Option func(*Level)

// WithRandom replaces the ambient crypto source.
func WithRandom(src dice.RandomSource) Option {
	return func(l *Level) { l.random = src }
}

// WithSequenceStore persists random sequences in store.
func WithSequenceStore(store randseq.Store) Option {
	return func(l *Level) { l.sequences = randseq.New(l.seed, store, l.logger) }
}

// New returns a level with the given seed resolving loot data from registry.
//
// Precondition: registry and logger must be non-nil.
func New(seed int64, registry *loot.Registry, logger *zap.Logger, opts ...Option) *Level {
	l := &Level{
		seed:     seed,
		random:   dice.NewCryptoSource(),
		registry: registry,
		logger:   logger,
	}
	for _, o := range opts {
		o(l)
	}
	if l.sequences == nil {
		l.sequences = randseq.New(seed, nil, logger)
	}
	return l
}

// Seed returns the level seed.
func (l *Level) Seed() int64 { return l.seed }

// Random returns the ambient random source.
func (l *Level) Random() dice.RandomSource { return l.random }

// RandomSequence returns the persistent sequence for key.
func (l *Level) RandomSequence(key string) dice.RandomSource { return l.sequences.Get(key) }

// Resolver returns the loot registry.
func (l *Level) Resolver() loot.Resolver { return l.registry }

// Logger returns the level logger.
func (l *Level) Logger() *zap.Logger { return l.logger }

// Registry returns the loot registry.
func (l *Level) Registry() *loot.Registry { return l.registry }

// Sequences returns the level's random sequences.
func (l *Level) Sequences() *randseq.Sequences { return l.sequences }

// Table returns the table registered under key or an error.
func (l *Level) Table(key string) (*loot.Table, error) {
	t, ok := l.registry.Table(key)
	if !ok {
		return nil, fmt.Errorf("unknown loot table %q", key)
	}
	return t, nil
}

// Restore loads persisted random sequences.
func (l *Level) Restore(ctx context.Context) error { return l.sequences.Restore(ctx) }

// Flush persists random sequences.
func (l *Level) Flush(ctx context.Context) error { return l.sequences.Flush(ctx) }

// ContentConfig locates the data a level is loaded from.
type ContentConfig struct {
	ItemsDir         string
	LootDir          string
	ScriptInstrLimit int
}

// LoadRegistry reads items and loot data from disk.
//
// Postcondition: returns a populated registry or the first load error.
func LoadRegistry(cfg ContentConfig, logger *zap.Logger) (*loot.Registry, error) {
	defs, err := inventory.LoadItems(cfg.ItemsDir)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	items, err := inventory.NewRegistryFrom(defs)
	if err != nil {
		return nil, fmt.Errorf("registering items: %w", err)
	}
	scripts := scripting.NewManager(cfg.ScriptInstrLimit, logger)
	reg := loot.NewRegistry(items)
	if err := reg.LoadDirectory(cfg.LootDir, loot.NewDecoder(loot.DefaultTypeNames(), scripts)); err != nil {
		return nil, fmt.Errorf("loading loot tables: %w", err)
	}
	logger.Info("loaded loot data",
		zap.Int("items", len(defs)),
		zap.Int("tables", len(reg.Tables())),
		zap.Int("scripts", scripts.Len()),
	)
	return reg, nil
}
