package matching

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/licitaware/procurement-match-backend/internal/domain/errors"
	"github.com/licitaware/procurement-match-backend/internal/infrastructure/config"
)

var validate = validator.New()

// Config is the per-run configuration surface. A run is rejected before it
// starts when validation fails.
type Config struct {
	Phase1Threshold float64 `validate:"gte=0,lte=1"`
	Phase2Threshold float64 `validate:"gte=0,lte=1,gtefield=Phase1Threshold"`

	// MaxPages caps the scan per UF; zero falls back to the source's ceiling.
	MaxPages int `validate:"gte=0"`

	// States restricts the registry scan; empty means all UFs.
	States       []string
	ModalityCode int

	// DateFrom/DateTo bound the publication window for new-bid searches.
	// Zero values default to today.
	DateFrom time.Time
	DateTo   time.Time

	// ClearMatches wipes prior matches before a reevaluation run.
	ClearMatches bool
}

// DefaultConfig derives the engine defaults from the application config.
func DefaultConfig(app *config.Config) Config {
	return Config{
		Phase1Threshold: app.Matching.Phase1Threshold,
		Phase2Threshold: app.Matching.Phase2Threshold,
		MaxPages:        app.PNCP.MaxPages,
		States:          app.PNCP.States,
		ModalityCode:    app.PNCP.ModalityCode,
	}
}

// Overrides carries optional per-request knobs from the trigger boundary.
type Overrides struct {
	Phase1Threshold *float64 `json:"phase1_threshold,omitempty"`
	Phase2Threshold *float64 `json:"phase2_threshold,omitempty"`
	MaxPages        *int     `json:"max_pages,omitempty"`
	States          []string `json:"states,omitempty"`
	ClearMatches    *bool    `json:"clear_matches,omitempty"`
}

// Apply merges non-nil overrides onto a copy of c.
func (c Config) Apply(ov Overrides) Config {
	if ov.Phase1Threshold != nil {
		c.Phase1Threshold = *ov.Phase1Threshold
	}
	if ov.Phase2Threshold != nil {
		c.Phase2Threshold = *ov.Phase2Threshold
	}
	if ov.MaxPages != nil {
		c.MaxPages = *ov.MaxPages
	}
	if len(ov.States) > 0 {
		c.States = ov.States
	}
	if ov.ClearMatches != nil {
		c.ClearMatches = *ov.ClearMatches
	}
	return c
}

// Validate rejects threshold configurations the funnel cannot honor.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.NewValidationError("INVALID_MATCH_CONFIG",
			fmt.Sprintf("invalid matching configuration: %v", err)).WithCause(err)
	}
	return nil
}
