package bid

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxEstimatedValue is the DECIMAL(15,2) ceiling of the licitacoes table.
var maxEstimatedValue = decimal.RequireFromString("999999999999.99")

// Bid is a public procurement opportunity pulled from the PNCP registry.
// The registry control number is the stable external identity; the row is
// never deleted, only moved through statuses.
type Bid struct {
	ID               uuid.UUID           `json:"id"`
	RegistryID       string              `json:"registry_id"` // numeroControlePNCP
	AgencyTaxID      string              `json:"agency_tax_id"`
	PurchaseYear     int                 `json:"purchase_year"`
	PurchaseSequence int                 `json:"purchase_sequence"`
	Description      string              `json:"description"` // objetoCompra
	SourceURL        string              `json:"source_url"`
	EstimatedValue   decimal.NullDecimal `json:"estimated_value"`
	UF               string              `json:"uf"`
	ModalityCode     int                 `json:"modality_code"`
	PublishedAt      *time.Time          `json:"published_at,omitempty"`
	Status           Status              `json:"status"`

	Items []Item `json:"items,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Item is a single line of a bid, used for phase-2 refinement.
type Item struct {
	Number      int                 `json:"number"`
	Description string              `json:"description"`
	Quantity    decimal.Decimal     `json:"quantity"`
	Unit        string              `json:"unit"`
	UnitValue   decimal.NullDecimal `json:"unit_value"`
}

type Status int

const (
	StatusCollected Status = iota
	StatusProcessed
	StatusClosed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusCollected:
		return "coletada"
	case StatusProcessed:
		return "processada"
	case StatusClosed:
		return "encerrada"
	case StatusCancelled:
		return "cancelada"
	default:
		return "unknown"
	}
}

// ParseStatus maps a stored status string back to its enum value.
// Unknown strings come back as StatusCollected so a row is never lost.
func ParseStatus(s string) Status {
	switch s {
	case "processada":
		return StatusProcessed
	case "encerrada":
		return StatusClosed
	case "cancelada":
		return StatusCancelled
	default:
		return StatusCollected
	}
}

// New builds a freshly collected bid from normalized registry fields.
func New(registryID, agencyTaxID string, year, sequence int, description string) *Bid {
	now := time.Now().UTC()
	return &Bid{
		ID:               uuid.New(),
		RegistryID:       registryID,
		AgencyTaxID:      agencyTaxID,
		PurchaseYear:     year,
		PurchaseSequence: sequence,
		Description:      description,
		Status:           StatusCollected,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// SetEstimatedValue applies the persistence guard rails: negatives floor to
// zero, anything above the DECIMAL(15,2) limit is capped.
func (b *Bid) SetEstimatedValue(v decimal.Decimal) {
	if v.IsNegative() {
		v = decimal.Zero
	}
	if v.GreaterThan(maxEstimatedValue) {
		v = maxEstimatedValue
	}
	b.EstimatedValue = decimal.NewNullDecimal(v)
}

// MarkProcessed flips the bid out of the freshly-collected state after a
// matching run has scored it.
func (b *Bid) MarkProcessed() {
	b.Status = StatusProcessed
	b.UpdatedAt = time.Now().UTC()
}
