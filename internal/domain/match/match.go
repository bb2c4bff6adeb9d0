package match

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Type tags how a match cleared phase 2.
type Type string

const (
	// TypeObjectOnly means phase 2 re-scored the full purchase object
	// because the bid carries no item breakdown.
	TypeObjectOnly Type = "objeto_completo"
	// TypeObjectAndItems means phase 2 confirmed the match on the bid's
	// item descriptions.
	TypeObjectAndItems Type = "objeto_e_itens"
)

// Provenance records which vectorizer produced the confirmed score. Scores
// from different backends are not comparable, so every match carries this.
type Provenance struct {
	Backend string `json:"backend"`
	// Mixed is set when a hybrid vectorizer fell back to its local model
	// at any point during the run that produced this match.
	Mixed bool `json:"mixed,omitempty"`
}

// Match is a confirmed (bid, company) association. At most one current match
// exists per pair; recomputation supersedes, never duplicates.
type Match struct {
	ID            uuid.UUID  `json:"id"`
	BidID         uuid.UUID  `json:"bid_id"`
	CompanyID     uuid.UUID  `json:"company_id"`
	Score         float64    `json:"score"`
	Type          Type       `json:"type"`
	Justification string     `json:"justification,omitempty"`
	Provenance    Provenance `json:"provenance"`
	ComputedAt    time.Time  `json:"computed_at"`
}

// New builds a match, sanitizing the score so NaN/Inf or out-of-range values
// never reach storage.
func New(bidID, companyID uuid.UUID, score float64, t Type, justification string, prov Provenance) *Match {
	return &Match{
		ID:            uuid.New(),
		BidID:         bidID,
		CompanyID:     companyID,
		Score:         SanitizeScore(score),
		Type:          t,
		Justification: justification,
		Provenance:    prov,
		ComputedAt:    time.Now().UTC(),
	}
}

// SanitizeScore clamps a similarity score into [0, 1], mapping NaN and Inf
// to zero.
func SanitizeScore(s float64) float64 {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
