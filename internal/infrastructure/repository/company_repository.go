package repository

import (
	"context"
	"fmt"

	"github.com/licitaware/procurement-match-backend/internal/domain/company"
	"github.com/licitaware/procurement-match-backend/internal/infrastructure/database"
)

// CompanyRepository reads the companies the matching engine scores against.
type CompanyRepository struct {
	pool *database.Pool
}

func NewCompanyRepository(pool *database.Pool) *CompanyRepository {
	return &CompanyRepository{pool: pool}
}

func (r *CompanyRepository) ListActive(ctx context.Context) ([]*company.Company, error) {
	query := `
		SELECT id, nome_fantasia, razao_social, cnpj, descricao, palavras_chave,
		       setor, created_at, updated_at
		FROM empresas
		WHERE ativa
		ORDER BY nome_fantasia`

	rows, err := r.pool.Pgx().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	defer rows.Close()

	var companies []*company.Company
	for rows.Next() {
		var c company.Company
		if err := rows.Scan(
			&c.ID, &c.TradeName, &c.LegalName, &c.TaxID, &c.Description,
			&c.Keywords, &c.Sector, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning company: %w", err)
		}
		companies = append(companies, &c)
	}

	return companies, rows.Err()
}
