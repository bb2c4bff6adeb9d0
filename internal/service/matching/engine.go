package matching

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/licitaware/procurement-match-backend/internal/domain/bid"
	"github.com/licitaware/procurement-match-backend/internal/domain/company"
	domerrors "github.com/licitaware/procurement-match-backend/internal/domain/errors"
	"github.com/licitaware/procurement-match-backend/internal/domain/match"
)

// RunState tracks where a matching run is in its lifecycle.
type RunState int

const (
	StateInit RunState = iota
	StateFetching
	StatePhase1Scoring
	StatePhase2Scoring
	StatePersisting
	StateDone
	StateFailed
)

func (s RunState) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateFetching:
		return "fetching"
	case StatePhase1Scoring:
		return "phase1_scoring"
	case StatePhase2Scoring:
		return "phase2_scoring"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RunSummary is the partial-success accounting of a run. Per-bid failures
// are counted here, never allowed to abort the run.
type RunSummary struct {
	State            RunState `json:"state"`
	BidsFetched      int      `json:"bids_fetched"`
	Processed        int      `json:"processed"`
	Failed           int      `json:"failed"`
	Skipped          int      `json:"skipped"`
	Matched          int      `json:"matched"`
	MatchesWithItems int      `json:"matches_with_items"`
	MatchesObject    int      `json:"matches_object"`
	PartialScan      bool     `json:"partial_scan"`
	Message          string   `json:"message"`
}

// Engine runs the two-phase matching funnel: a recall-oriented phase 1 over
// the full purchase object, then a precision-oriented phase 2 over item
// descriptions (or a re-score of the object when no items exist). Only
// phase-2 survivors are persisted.
type Engine struct {
	cfg        Config
	source     BidSource
	bids       BidRepository
	companies  CompanyRepository
	matches    MatchRepository
	vectorizer Vectorizer
	phase2     Vectorizer
	metrics    Metrics
	logger     *zap.Logger
}

// Dependencies collects the engine's collaborators. Phase2Vectorizer is
// optional; when nil, phase 2 reuses the phase-1 instance.
type Dependencies struct {
	Source           BidSource
	Bids             BidRepository
	Companies        CompanyRepository
	Matches          MatchRepository
	Vectorizer       Vectorizer
	Phase2Vectorizer Vectorizer
	Metrics          Metrics
	Logger           *zap.Logger
}

func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Source == nil || deps.Bids == nil || deps.Companies == nil || deps.Matches == nil {
		return nil, domerrors.NewValidationError("MISSING_DEPENDENCY", "engine requires source and repositories")
	}
	if deps.Vectorizer == nil {
		return nil, domerrors.NewValidationError("MISSING_DEPENDENCY", "engine requires a vectorizer")
	}

	phase2 := deps.Phase2Vectorizer
	if phase2 == nil {
		phase2 = deps.Vectorizer
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		cfg:        cfg,
		source:     deps.Source,
		bids:       deps.Bids,
		companies:  deps.Companies,
		matches:    deps.Matches,
		vectorizer: deps.Vectorizer,
		phase2:     phase2,
		metrics:    deps.Metrics,
		logger:     logger,
	}, nil
}

// scoredCompany is a phase-1 survivor awaiting confirmation.
type scoredCompany struct {
	company       *company.Company
	vector        []float64
	phase1Score   float64
	justification string
}

// candidates is the active company set with vectors in the current phase-1
// embedding space. degraded records whether the vectorizer had already
// fallen back when the vectors were computed.
type candidates struct {
	companies []*company.Company
	vectors   [][]float64
	degraded  bool
}

// SearchNewBids fetches bids not yet stored, runs the funnel against all
// active companies and inserts confirmed matches. Re-running against
// unchanged upstream data creates no duplicates: known registry ids are
// skipped and match writes supersede by (bid, company).
func (e *Engine) SearchNewBids(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{State: StateInit}

	cands, err := e.loadCompanies(ctx)
	if err != nil {
		return e.fail(summary, err)
	}
	if len(cands.companies) == 0 {
		summary.State = StateDone
		summary.Message = "no active companies registered; zero candidates, nothing to match"
		return summary, nil
	}

	summary.State = StateFetching
	existing, err := e.bids.ExistingRegistryIDs(ctx)
	if err != nil {
		return e.fail(summary, domerrors.NewPersistenceError("loading known registry ids").WithCause(err))
	}

	newBids, partial, err := e.fetchNewBids(ctx, existing)
	if err != nil {
		// A registry failure means there is nothing to score: abort.
		return e.fail(summary, err)
	}
	summary.PartialScan = partial
	summary.BidsFetched = len(newBids)

	e.logger.Info("registry scan complete",
		zap.Int("new_bids", len(newBids)),
		zap.Bool("partial", partial))

	for _, b := range newBids {
		if err := e.processBid(ctx, b, cands, summary, true); err != nil {
			summary.Failed++
			if e.metrics != nil {
				e.metrics.RecordBidFailed()
			}
			e.logger.Warn("bid skipped after failure",
				zap.String("registry_id", b.RegistryID),
				zap.Error(err))
		}
	}

	e.finish(summary)
	return summary, nil
}

// ReevaluateBids recomputes the funnel for every stored bid. With
// ClearMatches set, prior matches are wiped first so stale scores from an
// outdated vectorizer never survive alongside fresh ones.
func (e *Engine) ReevaluateBids(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{State: StateInit}

	if e.cfg.ClearMatches {
		if err := e.matches.DeleteAll(ctx); err != nil {
			return e.fail(summary, domerrors.NewPersistenceError("clearing prior matches").WithCause(err))
		}
		e.logger.Info("prior matches cleared")
	}

	cands, err := e.loadCompanies(ctx)
	if err != nil {
		return e.fail(summary, err)
	}
	if len(cands.companies) == 0 {
		summary.State = StateDone
		summary.Message = "no active companies registered; zero candidates, nothing to match"
		return summary, nil
	}

	summary.State = StateFetching
	stored, err := e.bids.List(ctx)
	if err != nil {
		return e.fail(summary, domerrors.NewPersistenceError("loading stored bids").WithCause(err))
	}
	summary.BidsFetched = len(stored)
	if len(stored) == 0 {
		summary.State = StateDone
		summary.Message = "no stored bids to reevaluate"
		return summary, nil
	}

	for _, b := range stored {
		if err := e.processBid(ctx, b, cands, summary, false); err != nil {
			summary.Failed++
			if e.metrics != nil {
				e.metrics.RecordBidFailed()
			}
			e.logger.Warn("bid skipped after failure",
				zap.String("registry_id", b.RegistryID),
				zap.Error(err))
		}
	}

	e.finish(summary)
	return summary, nil
}

// loadCompanies reads active companies and embeds their matching text with
// the phase-1 vectorizer. Companies that fail to vectorize are kept with a
// zero vector and simply never match.
func (e *Engine) loadCompanies(ctx context.Context) (*candidates, error) {
	companies, err := e.companies.ListActive(ctx)
	if err != nil {
		return nil, domerrors.NewPersistenceError("loading companies").WithCause(err)
	}

	cands := &candidates{
		companies: companies,
		vectors:   make([][]float64, len(companies)),
	}
	e.embedCompanies(ctx, cands)
	return cands, nil
}

func (e *Engine) embedCompanies(ctx context.Context, cands *candidates) {
	for i, c := range cands.companies {
		vec, err := e.vectorizer.Embed(ctx, c.MatchingText())
		if err != nil {
			e.logger.Warn("company vectorization failed",
				zap.String("company", c.TradeName),
				zap.Error(err))
			vec = make([]float64, e.vectorizer.Dimensions())
		}
		cands.vectors[i] = vec
	}
	cands.degraded = fallbackUsed(e.vectorizer)
}

// refreshCandidates re-embeds the company set after the vectorizer falls
// back mid-run. Vectors from the remote space score zero against anything
// embedded in the fallback space, so keeping them would silently produce
// no matches for the rest of the run.
func (e *Engine) refreshCandidates(ctx context.Context, cands *candidates) {
	if cands.degraded || !fallbackUsed(e.vectorizer) {
		return
	}
	e.logger.Warn("embedding backend degraded mid-run, re-embedding companies in the fallback space",
		zap.Int("companies", len(cands.companies)))
	e.embedCompanies(ctx, cands)
}

// fetchNewBids pages the registry per UF up to the configured ceiling,
// keeping only bids whose registry id is not yet stored.
func (e *Engine) fetchNewBids(ctx context.Context, existing map[string]struct{}) ([]*bid.Bid, bool, error) {
	maxPages := e.cfg.MaxPages
	if maxPages <= 0 {
		maxPages = e.source.MaxPages()
	}
	states := e.cfg.States
	if len(states) == 0 {
		states = []string{""}
	}

	from, to := e.cfg.DateFrom, e.cfg.DateTo
	if from.IsZero() {
		from = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if to.IsZero() {
		to = from
	}

	var collected []*bid.Bid
	seen := make(map[string]struct{})
	partial := false

	for _, uf := range states {
		filters := SearchFilters{
			StartDate:    from,
			EndDate:      to,
			UF:           uf,
			ModalityCode: e.cfg.ModalityCode,
		}

		for page := 1; page <= maxPages; page++ {
			bids, hasMore, err := e.source.FetchPage(ctx, filters, page)
			if err != nil {
				return nil, false, err
			}
			for _, b := range bids {
				if _, ok := existing[b.RegistryID]; ok {
					continue
				}
				if _, ok := seen[b.RegistryID]; ok {
					continue
				}
				seen[b.RegistryID] = struct{}{}
				collected = append(collected, b)
			}
			if !hasMore {
				break
			}
			if page == maxPages {
				partial = true
			}
		}
	}

	return collected, partial, nil
}

// processBid runs the full funnel for one bid. Any error returned here is a
// per-bid failure; the caller counts it and moves on.
func (e *Engine) processBid(ctx context.Context, b *bid.Bid, cands *candidates, summary *RunSummary, fromRegistry bool) error {
	if strings.TrimSpace(b.Description) == "" {
		summary.Skipped++
		e.logger.Debug("bid has empty purchase object, skipping",
			zap.String("registry_id", b.RegistryID))
		return nil
	}

	if fromRegistry {
		id, err := e.bids.Upsert(ctx, b)
		if err != nil {
			return domerrors.NewPersistenceError("upserting bid").WithCause(err)
		}
		b.ID = id

		items, err := e.source.FetchItems(ctx, b)
		if err != nil {
			// Items only refine phase 2; their absence is not fatal.
			e.logger.Warn("item fetch failed, phase 2 will re-score the object",
				zap.String("registry_id", b.RegistryID),
				zap.Error(err))
		} else if len(items) > 0 {
			if err := e.bids.SaveItems(ctx, b.ID, items); err != nil {
				e.logger.Warn("item persistence failed",
					zap.String("registry_id", b.RegistryID),
					zap.Error(err))
			}
			b.Items = items
		}
	} else if len(b.Items) == 0 {
		items, err := e.bids.ItemsFor(ctx, b.ID)
		if err != nil {
			e.logger.Warn("loading stored items failed",
				zap.String("registry_id", b.RegistryID),
				zap.Error(err))
		} else {
			b.Items = items
		}
	}

	summary.State = StatePhase1Scoring
	bidVec, err := e.vectorizer.Embed(ctx, b.Description)
	if err != nil {
		return fmt.Errorf("vectorizing purchase object: %w", err)
	}
	if isZeroVector(bidVec) {
		return fmt.Errorf("purchase object produced an empty embedding")
	}

	// The embed above may have tripped the fallback; company vectors must
	// live in the same space as bidVec before any scoring happens.
	e.refreshCandidates(ctx, cands)

	var survivors []scoredCompany
	for i, c := range cands.companies {
		if isZeroVector(cands.vectors[i]) {
			continue
		}
		score, justification := EnhancedSimilarity(bidVec, cands.vectors[i], b.Description, c.MatchingText())
		if Classify(score, e.cfg.Phase1Threshold) {
			survivors = append(survivors, scoredCompany{
				company:       c,
				vector:        cands.vectors[i],
				phase1Score:   score,
				justification: justification,
			})
		}
	}

	summary.Processed++
	if e.metrics != nil {
		e.metrics.RecordBidProcessed()
	}

	var confirmed []*match.Match
	if len(survivors) > 0 {
		e.logger.Debug("phase 1 survivors",
			zap.String("registry_id", b.RegistryID),
			zap.Int("count", len(survivors)))

		summary.State = StatePhase2Scoring
		confirmed, err = e.confirmPhase2(ctx, b, bidVec, survivors)
		if err != nil {
			return err
		}
	}

	// Always replace, even with an empty set: a pair that stopped clearing
	// the thresholds must lose its previously stored match.
	summary.State = StatePersisting
	if err := e.matches.ReplaceForBid(ctx, b.ID, confirmed); err != nil {
		return domerrors.NewPersistenceError("persisting matches").WithCause(err)
	}
	for _, m := range confirmed {
		summary.Matched++
		switch m.Type {
		case match.TypeObjectAndItems:
			summary.MatchesWithItems++
		default:
			summary.MatchesObject++
		}
		if e.metrics != nil {
			e.metrics.RecordMatch(string(m.Type), m.Score)
		}
	}

	return e.markProcessed(ctx, b)
}

// confirmPhase2 re-scores phase-1 survivors with the phase-2 vectorizer.
// With items, a survivor is confirmed when at least one item description
// clears the threshold and the stored score is the mean of the passing
// items. Without items, the full object is re-scored. Either way every
// persisted score sits at or above Phase2Threshold.
func (e *Engine) confirmPhase2(ctx context.Context, b *bid.Bid, bidVec []float64, survivors []scoredCompany) ([]*match.Match, error) {
	samePhase2 := e.phase2 == e.vectorizer
	// Evaluated per match so a fallback during this very phase is captured.
	prov := func() match.Provenance {
		return match.Provenance{
			Backend: e.phase2.ID(),
			Mixed:   fallbackUsed(e.vectorizer) || fallbackUsed(e.phase2),
		}
	}

	// Company and bid vectors must come from the phase-2 backend; scores
	// across different vectorizers are not comparable.
	companyVec := func(s scoredCompany) []float64 {
		if samePhase2 {
			return s.vector
		}
		vec, err := e.phase2.Embed(ctx, s.company.MatchingText())
		if err != nil {
			e.logger.Warn("phase 2 company vectorization failed",
				zap.String("company", s.company.TradeName),
				zap.Error(err))
			return nil
		}
		return vec
	}

	var confirmed []*match.Match

	if len(b.Items) > 0 {
		itemVectors := make([][]float64, len(b.Items))
		for i, item := range b.Items {
			if strings.TrimSpace(item.Description) == "" {
				continue
			}
			vec, err := e.phase2.Embed(ctx, item.Description)
			if err != nil {
				e.logger.Warn("item vectorization failed",
					zap.Int("item", item.Number),
					zap.Error(err))
				continue
			}
			itemVectors[i] = vec
		}

		for _, s := range survivors {
			cvec := companyVec(s)
			if isZeroVector(cvec) {
				continue
			}

			var passing int
			var total float64
			for i, item := range b.Items {
				if isZeroVector(itemVectors[i]) {
					continue
				}
				score, _ := EnhancedSimilarity(itemVectors[i], cvec, item.Description, s.company.MatchingText())
				if Classify(score, e.cfg.Phase2Threshold) {
					passing++
					total += score
				}
			}

			if passing == 0 {
				continue
			}

			avg := total / float64(passing)
			justification := fmt.Sprintf("fase 1: %s | fase 2: %d itens confirmados (media %.3f)",
				s.justification, passing, avg)
			confirmed = append(confirmed, match.New(
				b.ID, s.company.ID, avg, match.TypeObjectAndItems, justification, prov()))
		}

		return confirmed, nil
	}

	// No item breakdown: phase 2 re-scores the purchase object itself.
	p2BidVec := bidVec
	if !samePhase2 {
		vec, err := e.phase2.Embed(ctx, b.Description)
		if err != nil {
			return nil, fmt.Errorf("phase 2 vectorization: %w", err)
		}
		p2BidVec = vec
	}

	for _, s := range survivors {
		cvec := companyVec(s)
		if isZeroVector(cvec) {
			continue
		}
		score, justification := EnhancedSimilarity(p2BidVec, cvec, b.Description, s.company.MatchingText())
		if !Classify(score, e.cfg.Phase2Threshold) {
			continue
		}
		combined := fmt.Sprintf("fase 1: %s | fase 2: %s", s.justification, justification)
		confirmed = append(confirmed, match.New(
			b.ID, s.company.ID, score, match.TypeObjectOnly, combined, prov()))
	}

	return confirmed, nil
}

func (e *Engine) markProcessed(ctx context.Context, b *bid.Bid) error {
	b.MarkProcessed()
	if err := e.bids.UpdateStatus(ctx, b.RegistryID, b.Status); err != nil {
		return domerrors.NewPersistenceError("updating bid status").WithCause(err)
	}
	return nil
}

func (e *Engine) fail(summary *RunSummary, err error) (*RunSummary, error) {
	summary.State = StateFailed
	summary.Message = err.Error()
	return summary, err
}

func (e *Engine) finish(summary *RunSummary) {
	summary.State = StateDone
	msg := fmt.Sprintf("processed %d bids: %d matches (%d on items, %d on object), %d failed, %d skipped",
		summary.Processed, summary.Matched, summary.MatchesWithItems, summary.MatchesObject,
		summary.Failed, summary.Skipped)
	if summary.PartialScan {
		msg += "; page ceiling reached, scan was partial"
	}
	summary.Message = msg
	e.logger.Info("matching run finished", zap.String("summary", msg))
}

func fallbackUsed(v Vectorizer) bool {
	if r, ok := v.(FallbackReporter); ok {
		return r.FallbackUsed()
	}
	return false
}

func isZeroVector(vec []float64) bool {
	if len(vec) == 0 {
		return true
	}
	for _, f := range vec {
		if f != 0 {
			return false
		}
	}
	return true
}
