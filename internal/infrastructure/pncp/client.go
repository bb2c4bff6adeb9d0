package pncp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/licitaware/procurement-match-backend/internal/domain/bid"
	"github.com/licitaware/procurement-match-backend/internal/domain/errors"
	"github.com/licitaware/procurement-match-backend/internal/infrastructure/config"
	"github.com/licitaware/procurement-match-backend/internal/service/matching"
)

const dateLayout = "20060102"

// publishedAtLayouts covers the timestamp shapes the registry actually emits.
var publishedAtLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339,
	"2006-01-02",
}

// Client pages the PNCP public consultation API. Requests are rate limited
// and retried a bounded number of times; after the retry budget is spent the
// failure surfaces as SOURCE_UNAVAILABLE and the run aborts.
type Client struct {
	httpClient *http.Client
	cfg        *config.PNCPConfig
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func NewClient(cfg *config.PNCPConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
	}
}

// MaxPages is the configured scan ceiling per UF.
func (c *Client) MaxPages() int {
	if c.cfg.MaxPages > 0 {
		return c.cfg.MaxPages
	}
	return 5
}

// FetchPage returns one normalized page of published procurements. An empty
// page is a valid result, not an error.
func (c *Client) FetchPage(ctx context.Context, filters matching.SearchFilters, page int) ([]*bid.Bid, bool, error) {
	query := url.Values{}
	query.Set("dataInicial", filters.StartDate.Format(dateLayout))
	query.Set("dataFinal", filters.EndDate.Format(dateLayout))
	query.Set("codigoModalidadeContratacao", strconv.Itoa(filters.ModalityCode))
	query.Set("pagina", strconv.Itoa(page))
	query.Set("tamanhoPagina", strconv.Itoa(c.cfg.PageSize))
	if filters.UF != "" {
		query.Set("uf", filters.UF)
	}

	body, status, err := c.get(ctx, c.cfg.BaseURL+"?"+query.Encode())
	if err != nil {
		return nil, false, err
	}
	if status == http.StatusNoContent {
		return nil, false, nil
	}

	var parsed publicationResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, false, errors.NewSourceUnavailableError("registry returned malformed page").WithCause(err)
	}

	bids := make([]*bid.Bid, 0, len(parsed.Data))
	for _, rec := range parsed.Data {
		if rec.NumeroControlePNCP == "" {
			c.logger.Warn("registry record without control number, dropping",
				zap.String("uf", filters.UF),
				zap.Int("page", page))
			continue
		}
		bids = append(bids, normalize(rec))
	}

	hasMore := parsed.PaginasRestantes > 0
	if parsed.TotalPaginas == 0 && len(parsed.Data) == c.cfg.PageSize {
		// Some registry deployments omit pagination counters.
		hasMore = true
	}

	return bids, hasMore, nil
}

// FetchItems loads the item breakdown of one procurement. Failures here are
// degraded by the caller to object-only matching, so errors are plain.
func (c *Client) FetchItems(ctx context.Context, b *bid.Bid) ([]bid.Item, error) {
	endpoint := fmt.Sprintf("%s/orgaos/%s/compras/%d/%d/itens",
		c.cfg.ItemsBaseURL, b.AgencyTaxID, b.PurchaseYear, b.PurchaseSequence)

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}

	var records []itemRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decoding item list: %w", err)
	}

	items := make([]bid.Item, 0, len(records))
	for _, rec := range records {
		items = append(items, bid.Item{
			Number:      rec.NumeroItem,
			Description: rec.Descricao,
			Quantity:    decimal.NewFromFloat(rec.Quantidade),
			Unit:        rec.UnidadeMedida,
			UnitValue:   decimal.NewNullDecimal(decimal.NewFromFloat(rec.ValorUnitarioEstimado)),
		})
	}

	return items, nil
}

// get performs a rate-limited GET with bounded retries. Server-side and
// transport failures are retried with linear backoff; client errors are not.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	attempts := c.cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, errors.NewSourceUnavailableError("registry request cancelled").WithCause(err)
		}

		body, status, err := c.doGet(ctx, endpoint)
		switch {
		case err != nil:
			lastErr = err
		case status >= 500 || status == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("registry returned status %d", status)
		case status >= 400:
			return nil, status, errors.NewSourceUnavailableError(
				fmt.Sprintf("registry rejected request with status %d", status))
		default:
			return body, status, nil
		}

		if attempt < attempts {
			c.logger.Warn("registry request failed, retrying",
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, 0, errors.NewSourceUnavailableError("registry request cancelled").WithCause(ctx.Err())
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
	}

	return nil, 0, errors.NewSourceUnavailableError("registry unavailable after retries").WithCause(lastErr)
}

func (c *Client) doGet(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}

	return body, resp.StatusCode, nil
}

func normalize(rec publicationRecord) *bid.Bid {
	b := bid.New(rec.NumeroControlePNCP, rec.OrgaoEntidade.CNPJ,
		rec.AnoCompra, rec.SequencialCompra, rec.ObjetoCompra)
	b.SourceURL = rec.LinkSistemaOrigem
	b.UF = rec.UnidadeOrgao.UFSigla
	b.ModalityCode = rec.ModalidadeID
	b.SetEstimatedValue(decimal.NewFromFloat(rec.ValorTotalEstimado))

	for _, layout := range publishedAtLayouts {
		if ts, err := time.Parse(layout, rec.DataPublicacaoPNCP); err == nil {
			b.PublishedAt = &ts
			break
		}
	}

	return b
}
