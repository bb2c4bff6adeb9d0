package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/licitaware/procurement-match-backend/internal/domain/bid"
	"github.com/licitaware/procurement-match-backend/internal/infrastructure/database"
)

// BidRepository persists procurement bids. Rows are keyed by the registry
// control number; re-fetching a known bid only refreshes updated_at, so a
// re-run against unchanged upstream data is a no-op.
type BidRepository struct {
	pool *database.Pool
}

func NewBidRepository(pool *database.Pool) *BidRepository {
	return &BidRepository{pool: pool}
}

func (r *BidRepository) Upsert(ctx context.Context, b *bid.Bid) (uuid.UUID, error) {
	query := `
		INSERT INTO licitacoes (
			id, numero_controle_pncp, cnpj_orgao, ano_compra, sequencial_compra,
			objeto_compra, link_origem, valor_estimado, uf, modalidade_codigo,
			data_publicacao, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (numero_controle_pncp)
		DO UPDATE SET updated_at = NOW()
		RETURNING id`

	var id uuid.UUID
	err := r.pool.Pgx().QueryRow(ctx, query,
		b.ID, b.RegistryID, b.AgencyTaxID, b.PurchaseYear, b.PurchaseSequence,
		b.Description, b.SourceURL, b.EstimatedValue, b.UF, b.ModalityCode,
		b.PublishedAt, b.Status.String(),
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upserting bid %s: %w", b.RegistryID, err)
	}

	return id, nil
}

// ExistingRegistryIDs returns every stored control number as a set, used to
// dedupe registry scans before any per-bid work starts.
func (r *BidRepository) ExistingRegistryIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.pool.Pgx().Query(ctx, `SELECT numero_controle_pncp FROM licitacoes`)
	if err != nil {
		return nil, fmt.Errorf("querying registry ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning registry id: %w", err)
		}
		ids[id] = struct{}{}
	}

	return ids, rows.Err()
}

func (r *BidRepository) List(ctx context.Context) ([]*bid.Bid, error) {
	query := `
		SELECT id, numero_controle_pncp, cnpj_orgao, ano_compra, sequencial_compra,
		       objeto_compra, link_origem, valor_estimado, uf, modalidade_codigo,
		       data_publicacao, status, created_at, updated_at
		FROM licitacoes
		ORDER BY created_at`

	rows, err := r.pool.Pgx().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing bids: %w", err)
	}
	defer rows.Close()

	var bids []*bid.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}

	return bids, rows.Err()
}

func (r *BidRepository) SaveItems(ctx context.Context, bidID uuid.UUID, items []bid.Item) error {
	return r.pool.Transaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO licitacao_itens (
				licitacao_id, numero_item, descricao, quantidade, unidade, valor_unitario
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (licitacao_id, numero_item) DO NOTHING`

		for _, item := range items {
			if _, err := tx.Exec(ctx, query,
				bidID, item.Number, item.Description, item.Quantity,
				item.Unit, item.UnitValue,
			); err != nil {
				return fmt.Errorf("inserting item %d: %w", item.Number, err)
			}
		}
		return nil
	})
}

func (r *BidRepository) ItemsFor(ctx context.Context, bidID uuid.UUID) ([]bid.Item, error) {
	query := `
		SELECT numero_item, descricao, quantidade, unidade, valor_unitario
		FROM licitacao_itens
		WHERE licitacao_id = $1
		ORDER BY numero_item`

	rows, err := r.pool.Pgx().Query(ctx, query, bidID)
	if err != nil {
		return nil, fmt.Errorf("querying bid items: %w", err)
	}
	defer rows.Close()

	var items []bid.Item
	for rows.Next() {
		var item bid.Item
		if err := rows.Scan(&item.Number, &item.Description, &item.Quantity,
			&item.Unit, &item.UnitValue); err != nil {
			return nil, fmt.Errorf("scanning bid item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *BidRepository) UpdateStatus(ctx context.Context, registryID string, status bid.Status) error {
	tag, err := r.pool.Pgx().Exec(ctx,
		`UPDATE licitacoes SET status = $1, updated_at = NOW() WHERE numero_controle_pncp = $2`,
		status.String(), registryID)
	if err != nil {
		return fmt.Errorf("updating bid status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bid %s not found", registryID)
	}
	return nil
}

func scanBid(rows pgx.Rows) (*bid.Bid, error) {
	var b bid.Bid
	var status string
	if err := rows.Scan(
		&b.ID, &b.RegistryID, &b.AgencyTaxID, &b.PurchaseYear, &b.PurchaseSequence,
		&b.Description, &b.SourceURL, &b.EstimatedValue, &b.UF, &b.ModalityCode,
		&b.PublishedAt, &status, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("scanning bid: %w", err)
	}
	b.Status = bid.ParseStatus(status)
	return &b, nil
}
