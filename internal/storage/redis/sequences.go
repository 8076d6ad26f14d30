// Package redis persists random sequence state in Redis using go-redis v9.
// Each level seed owns one hash whose fields are sequence keys.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cory-johannsen/lootgen/internal/config"
	"github.com/cory-johannsen/lootgen/internal/game/randseq"
)

// record is the hash field value stored per sequence.
type record struct {
	Seed uint64 `json:"seed"`
	PCG  []byte `json:"pcg"`
}

// NewClient creates a client for the configured server and verifies it responds.
//
// Precondition: cfg.Addr must be a non-empty "host:port".
// Postcondition: Returns a reachable client or a non-nil error.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: addr is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

// SequenceStore implements randseq.Store on Redis hashes.
type SequenceStore struct {
	client goredis.Cmdable
	prefix string
}

var _ randseq.Store = (*SequenceStore)(nil)

// NewSequenceStore creates a SequenceStore whose hashes are named
// "{prefix}:{levelSeed}".
//
// Precondition: client must be non-nil.
func NewSequenceStore(client goredis.Cmdable, prefix string) *SequenceStore {
	return &SequenceStore{client: client, prefix: prefix}
}

func (s *SequenceStore) hashKey(levelSeed int64) string {
	return s.prefix + ":" + strconv.FormatInt(levelSeed, 10)
}

// Load retrieves the state of one sequence.
//
// Postcondition: Returns the State or an error wrapping randseq.ErrNotFound.
func (s *SequenceStore) Load(ctx context.Context, levelSeed int64, key string) (randseq.State, error) {
	raw, err := s.client.HGet(ctx, s.hashKey(levelSeed), key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return randseq.State{}, fmt.Errorf("sequence %q: %w", key, randseq.ErrNotFound)
		}
		return randseq.State{}, fmt.Errorf("reading random sequence: %w", err)
	}
	return decodeState(key, raw)
}

// LoadAll retrieves every sequence saved for a level, ordered by key.
//
// Postcondition: Returns an empty slice when the level has no saved sequences.
func (s *SequenceStore) LoadAll(ctx context.Context, levelSeed int64) ([]randseq.State, error) {
	fields, err := s.client.HGetAll(ctx, s.hashKey(levelSeed)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading random sequences: %w", err)
	}
	states := make([]randseq.State, 0, len(fields))
	for key, raw := range fields {
		st, err := decodeState(key, []byte(raw))
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Key < states[j].Key })
	return states, nil
}

// Save writes every state into the level's hash with a single HSET.
//
// Precondition: every state must have a non-empty Key.
// Postcondition: either all states are stored or none are.
func (s *SequenceStore) Save(ctx context.Context, levelSeed int64, states []randseq.State) error {
	if len(states) == 0 {
		return nil
	}
	values := make([]any, 0, 2*len(states))
	for _, st := range states {
		if st.Key == "" {
			return errors.New("saving random sequence: empty key")
		}
		raw, err := json.Marshal(record{Seed: st.Seed, PCG: st.PCG})
		if err != nil {
			return fmt.Errorf("encoding random sequence %q: %w", st.Key, err)
		}
		values = append(values, st.Key, raw)
	}
	if err := s.client.HSet(ctx, s.hashKey(levelSeed), values...).Err(); err != nil {
		return fmt.Errorf("writing random sequences: %w", err)
	}
	return nil
}

func decodeState(key string, raw []byte) (randseq.State, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return randseq.State{}, fmt.Errorf("decoding random sequence %q: %w", key, err)
	}
	return randseq.State{Key: key, Seed: rec.Seed, PCG: rec.PCG}, nil
}
