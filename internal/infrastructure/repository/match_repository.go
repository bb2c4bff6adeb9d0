package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/licitaware/procurement-match-backend/internal/domain/match"
	"github.com/licitaware/procurement-match-backend/internal/infrastructure/database"
)

// MatchRepository persists confirmed matches. All writes for one bid happen
// in a single transaction so readers never observe a half-replaced set.
type MatchRepository struct {
	pool *database.Pool
}

func NewMatchRepository(pool *database.Pool) *MatchRepository {
	return &MatchRepository{pool: pool}
}

// ReplaceForBid swaps the bid's stored match set for the given one. Pairs
// absent from the new set are removed, so a company that no longer clears
// the thresholds loses its old row instead of keeping a stale score.
func (r *MatchRepository) ReplaceForBid(ctx context.Context, bidID uuid.UUID, matches []*match.Match) error {
	return r.pool.Transaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM matches WHERE licitacao_id = $1`, bidID); err != nil {
			return fmt.Errorf("clearing bid matches: %w", err)
		}

		query := `
			INSERT INTO matches (
				id, licitacao_id, empresa_id, score, tipo, justificativa,
				proveniencia, computed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

		for _, m := range matches {
			prov, err := json.Marshal(m.Provenance)
			if err != nil {
				return fmt.Errorf("encoding provenance: %w", err)
			}
			if _, err := tx.Exec(ctx, query,
				m.ID, bidID, m.CompanyID, m.Score, string(m.Type),
				m.Justification, prov, m.ComputedAt,
			); err != nil {
				return fmt.Errorf("inserting match: %w", err)
			}
		}
		return nil
	})
}

func (r *MatchRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.pool.Pgx().Exec(ctx, `DELETE FROM matches`); err != nil {
		return fmt.Errorf("clearing matches: %w", err)
	}
	return nil
}

// ListForBid returns the current matches of one bid, ordered by score.
func (r *MatchRepository) ListForBid(ctx context.Context, bidID uuid.UUID) ([]*match.Match, error) {
	query := `
		SELECT id, licitacao_id, empresa_id, score, tipo, justificativa,
		       proveniencia, computed_at
		FROM matches
		WHERE licitacao_id = $1
		ORDER BY score DESC`

	rows, err := r.pool.Pgx().Query(ctx, query, bidID)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}
	defer rows.Close()

	var matches []*match.Match
	for rows.Next() {
		var m match.Match
		var tipo string
		var prov []byte
		if err := rows.Scan(&m.ID, &m.BidID, &m.CompanyID, &m.Score, &tipo,
			&m.Justification, &prov, &m.ComputedAt); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		m.Type = match.Type(tipo)
		if err := json.Unmarshal(prov, &m.Provenance); err != nil {
			return nil, fmt.Errorf("decoding provenance: %w", err)
		}
		matches = append(matches, &m)
	}

	return matches, rows.Err()
}
