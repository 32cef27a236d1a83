package history

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service wraps the repository with id generation and retention policy.
type Service struct {
	repo          *Repository
	retentionDays int
	log           zerolog.Logger
}

// NewService creates a history service. retentionDays <= 0 disables pruning.
func NewService(repo *Repository, retentionDays int, log zerolog.Logger) *Service {
	return &Service{
		repo:          repo,
		retentionDays: retentionDays,
		log:           log.With().Str("service", "history").Logger(),
	}
}

// Record stores one evaluation, assigning it an id and timestamp.
func (s *Service) Record(objectiveHash, backend string, samples int, value float64, bindings map[string]float64) (Evaluation, error) {
	e := Evaluation{
		ID:            uuid.NewString(),
		ObjectiveHash: objectiveHash,
		Backend:       backend,
		Samples:       samples,
		Value:         value,
		Bindings:      bindings,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.Save(e); err != nil {
		return Evaluation{}, err
	}
	return e, nil
}

// Recent returns the newest evaluations.
func (s *Service) Recent(limit int) ([]Evaluation, error) {
	return s.repo.ListRecent(limit)
}

// Prune applies the retention policy.
func (s *Service) Prune() error {
	if s.retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	_, err := s.repo.PruneOlderThan(cutoff)
	return err
}
