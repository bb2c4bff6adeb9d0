package company

import (
	"time"

	"github.com/google/uuid"
)

// Company is a registered market participant. The matching engine only ever
// reads companies; creation and editing belong to the CRUD layer.
type Company struct {
	ID          uuid.UUID `json:"id"`
	TradeName   string    `json:"trade_name"`
	LegalName   string    `json:"legal_name"`
	TaxID       string    `json:"tax_id"`
	Description string    `json:"description"` // free text: products, services, sector
	Keywords    []string  `json:"keywords,omitempty"`
	Sector      string    `json:"sector,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MatchingText is the text the vectorizers embed for this company.
func (c *Company) MatchingText() string {
	return c.Description
}
