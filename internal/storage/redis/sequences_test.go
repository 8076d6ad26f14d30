package redis_test

import (
	"context"
	"math"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/lootgen/internal/config"
	"github.com/cory-johannsen/lootgen/internal/game/randseq"
	"github.com/cory-johannsen/lootgen/internal/storage/redis"
)

func newTestStore(t *testing.T) (*redis.SequenceStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewSequenceStore(client, "loot:sequences"), mr
}

func TestNewClient_Pings(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()
}

func TestNewClient_RequiresAddr(t *testing.T) {
	_, err := redis.NewClient(context.Background(), config.RedisConfig{})
	assert.Error(t, err)
}

func TestNewClient_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := redis.NewClient(context.Background(), config.RedisConfig{Addr: addr})
	assert.Error(t, err)
}

func TestSequenceStore_LoadMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Load(context.Background(), 42, "chests/dungeon")
	require.Error(t, err)
	assert.ErrorIs(t, err, randseq.ErrNotFound)
}

func TestSequenceStore_SaveAndLoad(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	states := []randseq.State{
		{Key: "chests/dungeon", Seed: math.MaxUint64, PCG: []byte{1, 2, 3}},
		{Key: "mobs/zombie", Seed: 7, PCG: []byte{4, 5}},
	}
	require.NoError(t, store.Save(ctx, 42, states))

	assert.NotEmpty(t, mr.HGet("loot:sequences:42", "chests/dungeon"))
	assert.NotEmpty(t, mr.HGet("loot:sequences:42", "mobs/zombie"))

	got, err := store.Load(ctx, 42, "mobs/zombie")
	require.NoError(t, err)
	assert.Equal(t, states[1], got)

	all, err := store.LoadAll(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, states, all)

	other, err := store.LoadAll(ctx, -42)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSequenceStore_SaveEmptyKeyWritesNothing(t *testing.T) {
	store, mr := newTestStore(t)

	err := store.Save(context.Background(), 5, []randseq.State{{Key: "a", PCG: []byte{1}}, {Key: ""}})
	require.Error(t, err)
	assert.False(t, mr.Exists("loot:sequences:5"))
}

func TestSequenceStore_CorruptValue(t *testing.T) {
	store, mr := newTestStore(t)
	mr.HSet("loot:sequences:1", "broken", "not json")

	_, err := store.Load(context.Background(), 1, "broken")
	assert.Error(t, err)
	_, err = store.LoadAll(context.Background(), 1)
	assert.Error(t, err)
}

func TestSequenceStore_RestoresSequences(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first := randseq.New(99, store, zaptest.NewLogger(t))
	src := first.Get("chests/dungeon")
	src.Intn(100)
	require.NoError(t, first.Flush(ctx))
	want := src.Intn(1000)

	second := randseq.New(99, store, zaptest.NewLogger(t))
	require.NoError(t, second.Restore(ctx))
	assert.Equal(t, want, second.Get("chests/dungeon").Intn(1000))
}

func TestProperty_SequenceStore_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		level := rapid.Int64().Draw(rt, "level")
		seed := rapid.Uint64().Draw(rt, "seed")
		pcg := rapid.SliceOfN(rapid.Byte(), 1, 32).Draw(rt, "pcg")
		key := rapid.StringMatching(`[a-z/]{1,16}`).Draw(rt, "key")

		require.NoError(rt, store.Save(ctx, level, []randseq.State{{Key: key, Seed: seed, PCG: pcg}}))
		got, err := store.Load(ctx, level, key)
		require.NoError(rt, err)
		assert.Equal(rt, randseq.State{Key: key, Seed: seed, PCG: pcg}, got)
	})
}
