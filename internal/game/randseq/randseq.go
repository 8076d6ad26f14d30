// Package randseq maintains named random sequences: reproducible random
// streams derived from a level seed and a key, whose generator state can be
// persisted so a sequence continues where it left off across restarts.
package randseq

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/cory-johannsen/lootgen/internal/game/dice"
)

// ErrNotFound is returned by a Store when no state exists for a key.
var ErrNotFound = errors.New("random sequence not found")

// sequenceSalt decorrelates sequence seeds from the raw level seed.
const sequenceSalt = 0x6a09e667f3bcc909

// State is the persisted form of one sequence.
type State struct {
	Key  string
	Seed uint64
	PCG  []byte
}

// Store persists sequence states.
type Store interface {
	// Load returns the state for key or an error wrapping ErrNotFound.
	Load(ctx context.Context, levelSeed int64, key string) (State, error)
	// LoadAll returns every state saved for levelSeed.
	LoadAll(ctx context.Context, levelSeed int64) ([]State, error)
	// Save upserts states for levelSeed.
	Save(ctx context.Context, levelSeed int64, states []State) error
}

// SeedFor derives the seed of the sequence key within a level.
//
// Postcondition: equal (levelSeed, key) pairs always yield equal seeds.
func SeedFor(levelSeed int64, key string) uint64 {
	return mix64(xxhash.Sum64String(key) ^ mix64(uint64(levelSeed)^sequenceSalt))
}

// mix64 is the splitmix64 finalizer.
func mix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Sequences hands out the random sequence for each key of one level.
//
// Sequences is safe for concurrent use.
type Sequences struct {
	mu        sync.Mutex
	levelSeed int64
	seqs      map[string]*dice.SeededSource
	store     Store
	logger    *zap.Logger
}

// New returns the sequences of the level seeded with levelSeed. A nil store
// keeps sequences in memory only.
func New(levelSeed int64, store Store, logger *zap.Logger) *Sequences {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequences{
		levelSeed: levelSeed,
		seqs:      make(map[string]*dice.SeededSource),
		store:     store,
		logger:    logger,
	}
}

// LevelSeed returns the seed the sequences derive from.
func (s *Sequences) LevelSeed() int64 { return s.levelSeed }

// Get returns the sequence for key, creating it on first use.
func (s *Sequences) Get(key string) dice.RandomSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.seqs[key]
	if !ok {
		src = dice.NewSeededSource(SeedFor(s.levelSeed, key))
		s.seqs[key] = src
	}
	return src
}

// Reset discards the state of key so that its next Get starts over.
func (s *Sequences) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seqs, key)
}

// Keys returns the keys of every live sequence in sorted order.
func (s *Sequences) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.seqs))
	for k := range s.seqs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Snapshot captures the state of every live sequence.
func (s *Sequences) Snapshot() ([]State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := make([]State, 0, len(s.seqs))
	for key, src := range s.seqs {
		pcg, err := src.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("snapshotting sequence %q: %w", key, err)
		}
		states = append(states, State{Key: key, Seed: src.Seed(), PCG: pcg})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Key < states[j].Key })
	return states, nil
}

// Flush saves every live sequence to the store. It is a no-op without a store.
func (s *Sequences) Flush(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	states, err := s.Snapshot()
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, s.levelSeed, states); err != nil {
		return fmt.Errorf("flushing random sequences: %w", err)
	}
	s.logger.Debug("flushed random sequences", zap.Int("count", len(states)))
	return nil
}

// Restore replaces live sequences with the states saved in the store.
// States whose seed no longer matches their key are skipped with a warning.
func (s *Sequences) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	states, err := s.store.LoadAll(ctx, s.levelSeed)
	if err != nil {
		return fmt.Errorf("restoring random sequences: %w", err)
	}
	restored := make(map[string]*dice.SeededSource, len(states))
	for _, st := range states {
		if st.Seed != SeedFor(s.levelSeed, st.Key) {
			s.logger.Warn("discarding random sequence with stale seed", zap.String("key", st.Key))
			continue
		}
		src := dice.NewSeededSource(st.Seed)
		if err := src.UnmarshalBinary(st.PCG); err != nil {
			return fmt.Errorf("restoring random sequence %q: %w", st.Key, err)
		}
		restored[st.Key] = src
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, src := range restored {
		s.seqs[k] = src
	}
	s.logger.Info("restored random sequences", zap.Int("count", len(restored)))
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.Mutex
	states map[int64]map[string]State
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[int64]map[string]State)}
}

// Load returns the saved state of key.
func (m *MemoryStore) Load(_ context.Context, levelSeed int64, key string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[levelSeed][key]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return cloneState(st), nil
}

// LoadAll returns every saved state of the level in key order.
func (m *MemoryStore) LoadAll(_ context.Context, levelSeed int64) ([]State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]State, 0, len(m.states[levelSeed]))
	for _, st := range m.states[levelSeed] {
		out = append(out, cloneState(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Save upserts states.
func (m *MemoryStore) Save(_ context.Context, levelSeed int64, states []State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	level, ok := m.states[levelSeed]
	if !ok {
		level = make(map[string]State, len(states))
		m.states[levelSeed] = level
	}
	for _, st := range states {
		level[st.Key] = cloneState(st)
	}
	return nil
}

func cloneState(st State) State {
	st.PCG = append([]byte(nil), st.PCG...)
	return st
}
