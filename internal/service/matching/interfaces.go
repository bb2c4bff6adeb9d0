package matching

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/licitaware/procurement-match-backend/internal/domain/bid"
	"github.com/licitaware/procurement-match-backend/internal/domain/company"
	"github.com/licitaware/procurement-match-backend/internal/domain/match"
)

// Vectorizer turns text into a fixed-dimension embedding. Implementations
// must be deterministic for identical input and configuration, and must all
// return vectors of Dimensions() length. Empty or unusable text embeds to the
// zero vector, which cosine similarity treats as non-matching.
type Vectorizer interface {
	// ID identifies the backend and model, e.g. "openai/text-embedding-3-large".
	// It is part of the embedding cache key and of match provenance.
	ID() string
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// FallbackReporter is implemented by vectorizers that can degrade to a
// secondary backend mid-run. The engine marks resulting matches as mixed.
type FallbackReporter interface {
	FallbackUsed() bool
}

// SearchFilters select a page window of the procurement registry.
type SearchFilters struct {
	StartDate    time.Time
	EndDate      time.Time
	UF           string
	ModalityCode int
}

// BidSource is the paginated registry client boundary.
type BidSource interface {
	// FetchPage returns normalized bids for one page and whether the
	// upstream signals more pages. An empty page is not an error.
	FetchPage(ctx context.Context, filters SearchFilters, page int) ([]*bid.Bid, bool, error)
	// FetchItems returns the item breakdown of a single bid. Item fetch
	// failures are per-bid, never fatal to the run.
	FetchItems(ctx context.Context, b *bid.Bid) ([]bid.Item, error)
	// MaxPages is the operator-configured page ceiling per UF.
	MaxPages() int
}

// BidRepository owns bid persistence. Upserts never delete; re-fetching an
// existing registry id only touches updated_at.
type BidRepository interface {
	Upsert(ctx context.Context, b *bid.Bid) (uuid.UUID, error)
	ExistingRegistryIDs(ctx context.Context) (map[string]struct{}, error)
	List(ctx context.Context) ([]*bid.Bid, error)
	SaveItems(ctx context.Context, bidID uuid.UUID, items []bid.Item) error
	ItemsFor(ctx context.Context, bidID uuid.UUID) ([]bid.Item, error)
	UpdateStatus(ctx context.Context, registryID string, status bid.Status) error
}

// CompanyRepository reads the companies maintained by the CRUD layer.
type CompanyRepository interface {
	ListActive(ctx context.Context) ([]*company.Company, error)
}

// MatchRepository persists confirmed matches. ReplaceForBid must swap the
// bid's whole match set, removing pairs absent from the new one, and must
// be atomic: a concurrent reader sees either the old set or the new set.
type MatchRepository interface {
	ReplaceForBid(ctx context.Context, bidID uuid.UUID, matches []*match.Match) error
	DeleteAll(ctx context.Context) error
}

// Metrics is an optional hook for run instrumentation.
type Metrics interface {
	RecordBidProcessed()
	RecordBidFailed()
	RecordMatch(matchType string, score float64)
}
