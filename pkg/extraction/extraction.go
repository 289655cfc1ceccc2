// Package extraction provides the medical-entity extraction strategy
// abstraction and the tier-based fallback chain that selects among the
// deep-model service, the language-model service and the deterministic
// pattern rules.
package extraction

import (
	"context"

	"github.com/kart-io/claimflow/internal/model"
)

// Input is the per-claim input to an extraction strategy.
type Input struct {
	ClaimID       string
	Text          string
	KeyValuePairs map[string]string
	Tier          model.Tier
}

// Strategy extracts medical entities from claim text. Implementations map
// their native output into the canonical model.MedicalEntities shape and tag
// ExtractionMethod with their audit identifier.
type Strategy interface {
	// Extract runs one extraction attempt. A timeout, non-success status or
	// malformed response is an error; partial output is never returned.
	Extract(ctx context.Context, in Input) (*model.MedicalEntities, error)

	// Name returns the strategy identifier used for logging and metrics.
	Name() string
}
