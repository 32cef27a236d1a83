package history

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/varqo/varqo/internal/database"
)

// Repository provides access to the evaluations table. Variable bindings are
// stored as a msgpack blob since their keys vary per objective.
type Repository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewRepository creates a history repository.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "history").Logger(),
	}
}

// Save inserts one evaluation record.
func (r *Repository) Save(e Evaluation) error {
	var blob []byte
	if len(e.Bindings) > 0 {
		var err error
		blob, err = msgpack.Marshal(e.Bindings)
		if err != nil {
			return fmt.Errorf("failed to encode bindings: %w", err)
		}
	}

	_, err := r.db.Exec(
		`INSERT INTO evaluations (id, objective_hash, backend, samples, value, bindings, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ObjectiveHash, e.Backend, e.Samples, e.Value, blob, e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert evaluation: %w", err)
	}
	return nil
}

// ListRecent returns the most recent evaluations, newest first.
func (r *Repository) ListRecent(limit int) ([]Evaluation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(
		`SELECT id, objective_hash, backend, samples, value, bindings, created_at
		 FROM evaluations ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var out []Evaluation
	for rows.Next() {
		var e Evaluation
		var blob []byte
		if err := rows.Scan(&e.ID, &e.ObjectiveHash, &e.Backend, &e.Samples, &e.Value, &blob, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		if len(blob) > 0 {
			if err := msgpack.Unmarshal(blob, &e.Bindings); err != nil {
				return nil, fmt.Errorf("failed to decode bindings for %s: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PruneOlderThan deletes records older than the cutoff and returns the
// number of rows removed.
func (r *Repository) PruneOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM evaluations WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune evaluations: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		r.log.Info().Int64("removed", n).Time("cutoff", cutoff).Msg("Pruned evaluation history")
	}
	return n, nil
}
