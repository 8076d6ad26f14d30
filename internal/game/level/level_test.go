package level_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/lootgen/internal/game/dice"
	"github.com/cory-johannsen/lootgen/internal/game/inventory"
	"github.com/cory-johannsen/lootgen/internal/game/level"
	"github.com/cory-johannsen/lootgen/internal/game/loot"
	"github.com/cory-johannsen/lootgen/internal/game/randseq"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func contentDir(t *testing.T) level.ContentConfig {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "items", "coin.yaml"), `
id: coin
name: Coin
kind: currency
stackable: true
max_stack: 50
`)
	writeFile(t, filepath.Join(dir, "loot", "tables", "chests", "camp.yaml"), `
parameters: chest
random_sequence: chests/camp
pools:
  - rolls: {type: uniform, min: 1, max: 3}
    entries:
      - type: item
        name: coin
        functions:
          - type: set_count
            count: {type: uniform, min: 1, max: 20}
      - type: empty
        conditions:
          - type: script
            source: return luck > 100
`)
	return level.ContentConfig{
		ItemsDir:         filepath.Join(dir, "items"),
		LootDir:          filepath.Join(dir, "loot"),
		ScriptInstrLimit: 10000,
	}
}

func TestLoadRegistry(t *testing.T) {
	reg, err := level.LoadRegistry(contentDir(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	_, ok := reg.Table("chests/camp")
	assert.True(t, ok)
	_, ok = reg.Item("coin")
	assert.True(t, ok)
	assert.Empty(t, reg.ValidateAll())
}

func TestLoadRegistry_MissingItems(t *testing.T) {
	cfg := contentDir(t)
	cfg.ItemsDir = filepath.Join(t.TempDir(), "absent")
	_, err := level.LoadRegistry(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestLevel_SequenceRollsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	reg, err := level.LoadRegistry(contentDir(t), zap.NewNop())
	require.NoError(t, err)
	store := randseq.NewMemoryStore()

	roll := func(l *level.Level) []inventory.ItemStack {
		table, err := l.Table("chests/camp")
		require.NoError(t, err)
		params, err := loot.NewParamsBuilder(l).WithParameter(loot.ParamOrigin, "camp").Build(table.ParamSet)
		require.NoError(t, err)
		return table.RandomItems(params)
	}
	counts := func(stacks []inventory.ItemStack) []int {
		out := make([]int, len(stacks))
		for i, s := range stacks {
			out[i] = s.Count
		}
		return out
	}

	first := level.New(11, reg, zap.NewNop(), level.WithSequenceStore(store))
	roll(first)
	require.NoError(t, first.Flush(ctx))
	want := counts(roll(first))

	second := level.New(11, reg, zap.NewNop(), level.WithSequenceStore(store))
	require.NoError(t, second.Restore(ctx))
	assert.Equal(t, want, counts(roll(second)))
}

func TestLevel_UnknownTable(t *testing.T) {
	l := level.New(1, loot.NewRegistry(nil), zap.NewNop(), level.WithRandom(dice.NewSeededSource(1)))
	_, err := l.Table("nope")
	assert.Error(t, err)
	assert.Equal(t, int64(1), l.Seed())
	assert.NotNil(t, l.Random())
}

func TestLoadRegistry_BundledContent(t *testing.T) {
	root := filepath.Join("..", "..", "..", "content")
	reg, err := level.LoadRegistry(level.ContentConfig{
		ItemsDir:         filepath.Join(root, "items"),
		LootDir:          filepath.Join(root, "loot"),
		ScriptInstrLimit: 10000,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	keys := make([]string, 0)
	for _, table := range reg.Tables() {
		keys = append(keys, table.Key)
	}
	assert.Equal(t, []string{"chests/dungeon", "entities/zombie", "shared/junk"}, keys)
	assert.Empty(t, loot.FormatProblems(reg.ValidateAll()))

	l := level.New(7, reg, zap.NewNop())
	table, err := l.Table("chests/dungeon")
	require.NoError(t, err)
	params, err := loot.NewParamsBuilder(l).WithParameter(loot.ParamOrigin, "vault").Build(table.ParamSet)
	require.NoError(t, err)
	chest := inventory.NewChest(27)
	table.Fill(chest, params, 0)
	assert.Positive(t, chest.UsedSlots())
}
