package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/licitaware/procurement-match-backend/internal/domain/bid"
	"github.com/licitaware/procurement-match-backend/internal/domain/match"
	"github.com/licitaware/procurement-match-backend/internal/infrastructure/database"
)

const testSchema = `
CREATE TABLE empresas (
	id UUID PRIMARY KEY,
	nome_fantasia TEXT NOT NULL,
	razao_social TEXT NOT NULL DEFAULT '',
	cnpj TEXT NOT NULL DEFAULT '',
	descricao TEXT NOT NULL DEFAULT '',
	palavras_chave TEXT[] NOT NULL DEFAULT '{}',
	setor TEXT NOT NULL DEFAULT '',
	ativa BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE licitacoes (
	id UUID PRIMARY KEY,
	numero_controle_pncp TEXT NOT NULL UNIQUE,
	cnpj_orgao TEXT NOT NULL DEFAULT '',
	ano_compra INT NOT NULL DEFAULT 0,
	sequencial_compra INT NOT NULL DEFAULT 0,
	objeto_compra TEXT NOT NULL DEFAULT '',
	link_origem TEXT NOT NULL DEFAULT '',
	valor_estimado DECIMAL(15,2),
	uf TEXT NOT NULL DEFAULT '',
	modalidade_codigo INT NOT NULL DEFAULT 0,
	data_publicacao TIMESTAMPTZ,
	status TEXT NOT NULL DEFAULT 'coletada',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE licitacao_itens (
	licitacao_id UUID NOT NULL REFERENCES licitacoes(id) ON DELETE CASCADE,
	numero_item INT NOT NULL,
	descricao TEXT NOT NULL DEFAULT '',
	quantidade DECIMAL(15,4) NOT NULL DEFAULT 0,
	unidade TEXT NOT NULL DEFAULT '',
	valor_unitario DECIMAL(15,2),
	PRIMARY KEY (licitacao_id, numero_item)
);

CREATE TABLE matches (
	id UUID PRIMARY KEY,
	licitacao_id UUID NOT NULL REFERENCES licitacoes(id) ON DELETE CASCADE,
	empresa_id UUID NOT NULL REFERENCES empresas(id) ON DELETE CASCADE,
	score DOUBLE PRECISION NOT NULL,
	tipo TEXT NOT NULL,
	justificativa TEXT NOT NULL DEFAULT '',
	proveniencia JSONB NOT NULL DEFAULT '{}',
	computed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (licitacao_id, empresa_id)
);
`

func setupPool(t *testing.T) *database.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("matching_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.BasicWaitStrategies(),
		postgres.WithSQLDriver("pgx"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pgxPool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pgxPool.Close)

	_, err = pgxPool.Exec(ctx, testSchema)
	require.NoError(t, err)

	return database.NewPoolFromPgx(pgxPool, nil)
}

func insertCompany(t *testing.T, pool *database.Pool, name, description string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Pgx().Exec(context.Background(),
		`INSERT INTO empresas (id, nome_fantasia, descricao) VALUES ($1, $2, $3)`,
		id, name, description)
	require.NoError(t, err)
	return id
}

func TestBidRepositoryUpsertIsIdempotent(t *testing.T) {
	pool := setupPool(t)
	repo := NewBidRepository(pool)
	ctx := context.Background()

	b := bid.New("PNCP-1", "11222333000181", 2026, 1, "Aquisição de notebooks")
	b.UF = "SP"
	b.SetEstimatedValue(decimal.RequireFromString("150000.50"))

	first, err := repo.Upsert(ctx, b)
	require.NoError(t, err)

	// Same control number again: same row, no duplicate.
	dup := bid.New("PNCP-1", "11222333000181", 2026, 1, "Aquisição de notebooks")
	second, err := repo.Upsert(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	ids, err := repo.ExistingRegistryIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	stored, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "PNCP-1", stored[0].RegistryID)
	assert.Equal(t, bid.StatusCollected, stored[0].Status)
	require.True(t, stored[0].EstimatedValue.Valid)
	assert.Equal(t, "150000.5", stored[0].EstimatedValue.Decimal.String())
}

func TestBidRepositoryItems(t *testing.T) {
	pool := setupPool(t)
	repo := NewBidRepository(pool)
	ctx := context.Background()

	b := bid.New("PNCP-2", "11222333000181", 2026, 2, "Material de escritório")
	id, err := repo.Upsert(ctx, b)
	require.NoError(t, err)

	items := []bid.Item{
		{Number: 1, Description: "Papel A4", Quantity: decimal.NewFromInt(100), Unit: "RESMA"},
		{Number: 2, Description: "Caneta azul", Quantity: decimal.NewFromInt(500), Unit: "UN"},
	}
	require.NoError(t, repo.SaveItems(ctx, id, items))
	// Saving again must not duplicate.
	require.NoError(t, repo.SaveItems(ctx, id, items))

	got, err := repo.ItemsFor(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Papel A4", got[0].Description)
	assert.Equal(t, 2, got[1].Number)
}

func TestBidRepositoryUpdateStatus(t *testing.T) {
	pool := setupPool(t)
	repo := NewBidRepository(pool)
	ctx := context.Background()

	b := bid.New("PNCP-3", "11222333000181", 2026, 3, "Serviços de limpeza")
	_, err := repo.Upsert(ctx, b)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, "PNCP-3", bid.StatusProcessed))

	stored, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, bid.StatusProcessed, stored[0].Status)

	assert.Error(t, repo.UpdateStatus(ctx, "nao-existe", bid.StatusProcessed))
}

func TestCompanyRepositoryListActive(t *testing.T) {
	pool := setupPool(t)
	repo := NewCompanyRepository(pool)
	ctx := context.Background()

	insertCompany(t, pool, "Beta TI", "desenvolvimento de software")
	inactiveID := insertCompany(t, pool, "Antiga Ltda", "empresa encerrada")
	_, err := pool.Pgx().Exec(ctx, `UPDATE empresas SET ativa = FALSE WHERE id = $1`, inactiveID)
	require.NoError(t, err)

	companies, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, "Beta TI", companies[0].TradeName)
	assert.Equal(t, "desenvolvimento de software", companies[0].MatchingText())
}

func TestMatchRepositoryReplaceForBid(t *testing.T) {
	pool := setupPool(t)
	bids := NewBidRepository(pool)
	matches := NewMatchRepository(pool)
	ctx := context.Background()

	bidID, err := bids.Upsert(ctx, bid.New("PNCP-4", "11222333000181", 2026, 4, "Câmeras de vigilância"))
	require.NoError(t, err)
	companyID := insertCompany(t, pool, "Seg Total", "monitoramento eletrônico")

	prov := match.Provenance{Backend: "local-hash-v1/512"}
	first := match.New(bidID, companyID, 0.82, match.TypeObjectOnly, "similaridade cosseno: 0.820", prov)
	require.NoError(t, matches.ReplaceForBid(ctx, bidID, []*match.Match{first}))

	// Recomputation supersedes the previous score for the same pair.
	second := match.New(bidID, companyID, 0.91, match.TypeObjectAndItems, "2 itens confirmados", prov)
	require.NoError(t, matches.ReplaceForBid(ctx, bidID, []*match.Match{second}))

	got, err := matches.ListForBid(ctx, bidID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.91, got[0].Score, 1e-9)
	assert.Equal(t, match.TypeObjectAndItems, got[0].Type)
	assert.Equal(t, "local-hash-v1/512", got[0].Provenance.Backend)
	assert.WithinDuration(t, time.Now().UTC(), got[0].ComputedAt, time.Minute)
}

func TestMatchRepositoryReplaceRemovesAbsentPairs(t *testing.T) {
	pool := setupPool(t)
	bids := NewBidRepository(pool)
	matches := NewMatchRepository(pool)
	ctx := context.Background()

	bidID, err := bids.Upsert(ctx, bid.New("PNCP-6", "11222333000181", 2026, 6, "Manutenção predial"))
	require.NoError(t, err)
	companyA := insertCompany(t, pool, "Predial SP", "manutenção e reformas")
	companyB := insertCompany(t, pool, "Obras Leste", "construção civil")

	prov := match.Provenance{Backend: "openai/text-embedding-3-large"}
	require.NoError(t, matches.ReplaceForBid(ctx, bidID, []*match.Match{
		match.New(bidID, companyA, 0.90, match.TypeObjectOnly, "", prov),
		match.New(bidID, companyB, 0.71, match.TypeObjectOnly, "", prov),
	}))

	// Company A dropped below the thresholds on recomputation: its old
	// 0.90 row must not survive the replace.
	require.NoError(t, matches.ReplaceForBid(ctx, bidID, []*match.Match{
		match.New(bidID, companyB, 0.73, match.TypeObjectOnly, "", prov),
	}))

	got, err := matches.ListForBid(ctx, bidID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, companyB, got[0].CompanyID)
	assert.InDelta(t, 0.73, got[0].Score, 1e-9)

	// An empty set clears the bid's matches entirely.
	require.NoError(t, matches.ReplaceForBid(ctx, bidID, nil))
	got, err = matches.ListForBid(ctx, bidID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatchRepositoryDeleteAll(t *testing.T) {
	pool := setupPool(t)
	bids := NewBidRepository(pool)
	matches := NewMatchRepository(pool)
	ctx := context.Background()

	bidID, err := bids.Upsert(ctx, bid.New("PNCP-5", "11222333000181", 2026, 5, "Merenda escolar"))
	require.NoError(t, err)
	companyID := insertCompany(t, pool, "NutriServ", "fornecimento de alimentação")

	m := match.New(bidID, companyID, 0.75, match.TypeObjectOnly, "", match.Provenance{Backend: "mock/keywords-v1"})
	require.NoError(t, matches.ReplaceForBid(ctx, bidID, []*match.Match{m}))

	require.NoError(t, matches.DeleteAll(ctx))

	got, err := matches.ListForBid(ctx, bidID)
	require.NoError(t, err)
	assert.Empty(t, got)
}
