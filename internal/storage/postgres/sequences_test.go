package postgres_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/lootgen/internal/game/randseq"
	"github.com/cory-johannsen/lootgen/internal/storage/postgres"
	"github.com/cory-johannsen/lootgen/internal/testutil"
)

func setupSequenceRepo(t *testing.T) *postgres.SequenceRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests are skipped in short mode")
	}
	return postgres.NewSequenceRepository(testutil.NewPool(t))
}

func TestOpen_OwnsPool(t *testing.T) {
	if testing.Short() {
		t.Skip("postgres container tests are skipped in short mode")
	}
	pc := testutil.NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	ctx := context.Background()

	repo, err := postgres.Open(ctx, pc.Config)
	require.NoError(t, err)
	require.NoError(t, repo.Health(ctx, 5*time.Second))
	require.NoError(t, repo.Save(ctx, 3, []randseq.State{{Key: "k", Seed: 1, PCG: []byte{1}}}))
	repo.Close()

	assert.Error(t, repo.Health(ctx, time.Second))
	shared := postgres.NewSequenceRepository(pc.Pool)
	shared.Close()
	got, err := shared.Load(ctx, 3, "k")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Seed)
}

func TestSequenceRepository_LoadMissing(t *testing.T) {
	repo := setupSequenceRepo(t)

	_, err := repo.Load(context.Background(), 42, "chests/dungeon")
	require.Error(t, err)
	assert.ErrorIs(t, err, randseq.ErrNotFound)
}

func TestSequenceRepository_SaveAndLoad(t *testing.T) {
	repo := setupSequenceRepo(t)
	ctx := context.Background()

	states := []randseq.State{
		{Key: "chests/dungeon", Seed: math.MaxUint64, PCG: []byte{1, 2, 3}},
		{Key: "mobs/zombie", Seed: 7, PCG: []byte{4, 5}},
	}
	require.NoError(t, repo.Save(ctx, 42, states))

	got, err := repo.Load(ctx, 42, "chests/dungeon")
	require.NoError(t, err)
	assert.Equal(t, states[0], got)

	all, err := repo.LoadAll(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, states, all)

	other, err := repo.LoadAll(ctx, 43)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSequenceRepository_SaveOverwrites(t *testing.T) {
	repo := setupSequenceRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, 1, []randseq.State{{Key: "k", Seed: 3, PCG: []byte{1}}}))
	require.NoError(t, repo.Save(ctx, 1, []randseq.State{{Key: "k", Seed: 3, PCG: []byte{9, 9}}}))

	got, err := repo.Load(ctx, 1, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9}, got.PCG)
}

func TestSequenceRepository_SaveEmptyKeyRollsBack(t *testing.T) {
	repo := setupSequenceRepo(t)
	ctx := context.Background()

	err := repo.Save(ctx, 5, []randseq.State{{Key: "a", Seed: 1, PCG: []byte{1}}, {Key: "", PCG: []byte{2}}})
	require.Error(t, err)

	all, err := repo.LoadAll(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSequenceRepository_RestoresSequences(t *testing.T) {
	repo := setupSequenceRepo(t)
	ctx := context.Background()

	first := randseq.New(99, repo, zaptest.NewLogger(t))
	src := first.Get("chests/dungeon")
	src.Intn(100)
	require.NoError(t, first.Flush(ctx))
	want := src.Intn(1000)

	second := randseq.New(99, repo, zaptest.NewLogger(t))
	require.NoError(t, second.Restore(ctx))
	assert.Equal(t, want, second.Get("chests/dungeon").Intn(1000))
}

func TestProperty_SequenceRepository_SeedRoundTrip(t *testing.T) {
	repo := setupSequenceRepo(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Uint64().Draw(rt, "seed")
		pcg := rapid.SliceOfN(rapid.Byte(), 1, 32).Draw(rt, "pcg")
		key := rapid.StringMatching(`[a-z]{1,12}`).Draw(rt, "key")

		require.NoError(rt, repo.Save(ctx, 7, []randseq.State{{Key: key, Seed: seed, PCG: pcg}}))
		got, err := repo.Load(ctx, 7, key)
		require.NoError(rt, err)
		assert.Equal(rt, seed, got.Seed)
		assert.Equal(rt, pcg, got.PCG)
	})
}
