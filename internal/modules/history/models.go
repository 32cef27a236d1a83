// Package history records objective evaluations for inspection and
// retention-limited audit.
package history

import "time"

// Evaluation is one recorded objective evaluation.
type Evaluation struct {
	ID            string             `json:"id"`
	ObjectiveHash string             `json:"objective_hash"`
	Backend       string             `json:"backend"`
	Samples       int                `json:"samples"`
	Value         float64            `json:"value"`
	Bindings      map[string]float64 `json:"bindings,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}
