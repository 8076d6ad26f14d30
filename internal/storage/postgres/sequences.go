package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/lootgen/internal/game/randseq"
)

// SequenceRepository stores random sequence state in the random_sequences
// table. It implements randseq.Store.
type SequenceRepository struct {
	db    *pgxpool.Pool
	owned bool
}

// NewSequenceRepository creates a SequenceRepository backed by the given
// pool. The caller keeps ownership of db.
//
// Precondition: db must be a connected pool with the random_sequences table migrated.
func NewSequenceRepository(db *pgxpool.Pool) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Load retrieves the state of one sequence.
//
// Postcondition: Returns the State or an error wrapping randseq.ErrNotFound.
func (r *SequenceRepository) Load(ctx context.Context, levelSeed int64, key string) (randseq.State, error) {
	var (
		st   randseq.State
		seed int64
	)
	err := r.db.QueryRow(ctx,
		`SELECT key, seed, pcg FROM random_sequences
		 WHERE level_seed = $1 AND key = $2`,
		levelSeed, key,
	).Scan(&st.Key, &seed, &st.PCG)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return randseq.State{}, fmt.Errorf("sequence %q: %w", key, randseq.ErrNotFound)
		}
		return randseq.State{}, fmt.Errorf("querying random sequence: %w", err)
	}
	st.Seed = uint64(seed)
	return st, nil
}

// LoadAll retrieves every sequence saved for a level, ordered by key.
//
// Postcondition: Returns an empty slice when the level has no saved sequences.
func (r *SequenceRepository) LoadAll(ctx context.Context, levelSeed int64) ([]randseq.State, error) {
	rows, err := r.db.Query(ctx,
		`SELECT key, seed, pcg FROM random_sequences
		 WHERE level_seed = $1 ORDER BY key`,
		levelSeed,
	)
	if err != nil {
		return nil, fmt.Errorf("querying random sequences: %w", err)
	}
	defer rows.Close()

	states := []randseq.State{}
	for rows.Next() {
		var (
			st   randseq.State
			seed int64
		)
		if err := rows.Scan(&st.Key, &seed, &st.PCG); err != nil {
			return nil, fmt.Errorf("scanning random sequence: %w", err)
		}
		st.Seed = uint64(seed)
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating random sequences: %w", err)
	}
	return states, nil
}

// Save upserts the given states in a single transaction.
//
// Precondition: every state must have a non-empty Key.
// Postcondition: either all states are stored or none are.
func (r *SequenceRepository) Save(ctx context.Context, levelSeed int64, states []randseq.State) error {
	if len(states) == 0 {
		return nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, st := range states {
		if st.Key == "" {
			return fmt.Errorf("saving random sequence: empty key")
		}
		batch.Queue(
			`INSERT INTO random_sequences (level_seed, key, seed, pcg, updated_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 ON CONFLICT (level_seed, key)
			 DO UPDATE SET seed = EXCLUDED.seed, pcg = EXCLUDED.pcg, updated_at = NOW()`,
			levelSeed, st.Key, int64(st.Seed), st.PCG,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting random sequences: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing random sequences: %w", err)
	}
	return nil
}
