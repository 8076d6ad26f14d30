package loot_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/lootgen/internal/game/dice"
	"github.com/cory-johannsen/lootgen/internal/game/inventory"
	"github.com/cory-johannsen/lootgen/internal/game/loot"
)

// testLevel is a Level with a fixed seed and an observable logger.
type testLevel struct {
	seed     int64
	random   dice.RandomSource
	resolver loot.Resolver
	logger   *zap.Logger
}

func (l *testLevel) Seed() int64               { return l.seed }
func (l *testLevel) Random() dice.RandomSource { return l.random }
func (l *testLevel) Resolver() loot.Resolver   { return l.resolver }
func (l *testLevel) Logger() *zap.Logger       { return l.logger }

func (l *testLevel) RandomSequence(key string) dice.RandomSource {
	return dice.NewSeededSource(uint64(l.seed) + uint64(len(key)))
}

func newTestLevel(resolver loot.Resolver) (*testLevel, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	return &testLevel{
		seed:     42,
		random:   dice.NewSeededSource(42),
		resolver: resolver,
		logger:   zap.New(core),
	}, logs
}

func chestParams(t testing.TB, level loot.Level) *loot.Params {
	t.Helper()
	p, err := loot.NewParamsBuilder(level).
		WithParameter(loot.ParamOrigin, "0,0,0").
		Build(loot.ParamSetChest)
	require.NoError(t, err)
	return p
}

func newContext(t testing.TB, level loot.Level, seed int64) *loot.Context {
	t.Helper()
	return loot.NewContextBuilder(chestParams(t, level)).WithRandomSeed(seed).Create("")
}

func coinDef() *inventory.ItemDef {
	return &inventory.ItemDef{
		ID: "coin", Name: "Coin", Kind: inventory.KindCurrency,
		Stackable: true, MaxStack: 64, Tags: []string{"currency"},
	}
}

func gemDef() *inventory.ItemDef {
	return &inventory.ItemDef{
		ID: "gem", Name: "Gem", Kind: inventory.KindCurrency,
		Stackable: true, MaxStack: 16, Tags: []string{"currency", "valuable"},
	}
}

func swordDef() *inventory.ItemDef {
	return &inventory.ItemDef{ID: "sword", Name: "Sword", Kind: inventory.KindWeapon}
}

func testItems(t testing.TB) *inventory.Registry {
	t.Helper()
	r, err := inventory.NewRegistryFrom([]*inventory.ItemDef{coinDef(), gemDef(), swordDef()})
	require.NoError(t, err)
	return r
}

func collectItems(t *loot.Table, ctx *loot.Context) []inventory.ItemStack {
	var out []inventory.ItemStack
	t.GetRandomItemsRaw(ctx, func(s inventory.ItemStack) { out = append(out, s) })
	return out
}

func totalCount(stacks []inventory.ItemStack) int {
	n := 0
	for _, s := range stacks {
		n += s.Count
	}
	return n
}
